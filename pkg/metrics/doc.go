/*
Package metrics exposes Prometheus metrics for gqlite: query counts and
durations, active sessions, transaction outcomes, WAL appends, cache
hit/miss counters, and stored-graph totals. Call Register once at startup;
embedding applications serve the default registry however they like.
*/
package metrics

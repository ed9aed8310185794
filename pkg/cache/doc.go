/*
Package cache implements gqlite's multi-tier query and catalog caches.

Four logical caches (query results, compiled plans, subquery intermediates,
and session-scoped catalog snapshots) share a three-tier store. Entries are
routed to L1/L2/L3 by size, each tier has its own entry/byte caps, TTL, and
eviction policy behind its own reader-writer lock, and the config validator
rejects tier budgets that exceed the global memory cap.

Coherence is event-driven: DDL and DML fire typed invalidation events
(schema_created, graph_dropped, node_written, ...) synchronously inside the
critical section that performed the change, and the invalidation manager
drops the tag-matching entries. Result and catalog keys additionally embed
the catalog version counter, so even a missed event cannot resurrect a stale
catalog listing.
*/
package cache

/*
Package storage layers graph semantics over the kv driver abstraction.

The Manager maps full graph paths (/schema/graph) to in-memory graph caches
backed by a single "graphs" tree in the KV backend. Reads return value-copies
so callers can mutate freely; a mutation becomes visible to other sessions
only after SaveGraph persists it. The path→cache map is partitioned across 16
lock stripes so concurrent sessions working on different graphs do not
contend.

Write ordering: serialize, write to the backend, then update the cache. A
backend failure therefore never leaves the cache ahead of disk.

Graph serialization is deterministic (id-sorted node and edge slices, sorted
JSON object keys), which the content-addressed duplicate checks rely on.
*/
package storage

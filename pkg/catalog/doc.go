/*
Package catalog implements the pluggable metadata catalogs of gqlite.

Every catalog is a Provider behind the same operation/response contract:
tagged operations (create, update, drop, query) over entity types (schema,
graph, graph type, user, role, index) with JSON-shaped parameters. The
Manager composes the registered providers behind one reader-writer lock —
mutating operations take the write lock, queries the read lock — and owns
snapshot persistence: each provider serializes itself via Save and is stored
in the KV backend inside a {provider, version, bytes} envelope.

The manager also maintains the catalog version counter. Every successful
mutating operation bumps it; query caches embed the counter in their keys so
DDL can never serve stale catalog reads.

Standard providers: schema (name-validated schema entries), graph_metadata
(graph existence and qualified names), graph_type (versioned type
definitions), security (users and roles with system-role invariants), and
index (reserved, logical entries only).
*/
package catalog

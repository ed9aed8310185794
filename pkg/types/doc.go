/*
Package types defines the core data structures used throughout gqlite.

This package contains the fundamental types of the property-graph data model:
values, nodes, edges, and graphs. These types are used by all other packages
for storage, catalog bookkeeping, query execution, and transaction undo.

# Data model

A graph is a pair of node and edge sets. Nodes carry an ordered set of labels
and a property map; edges are directed, carry a single label and a property
map, and must reference existing nodes. Property values are a tagged union
over null, bool, number, string, temporal, list, map, and node/edge
references.

Node and edge identifiers are content-addressed: two INSERTs of structurally
identical content hash to the same identifier, which is how duplicate
detection works. Graph serialization is deterministic (same graph, same
bytes) so content checks can compare hashes.
*/
package types

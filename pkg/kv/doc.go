/*
Package kv defines the storage driver abstraction gqlite persists through.

A Driver exposes named Trees of byte keys to byte values: point reads and
writes, prefix scans, batch variants, and flush. The bolt driver maps trees
to BoltDB buckets (one transaction per operation); the memory driver backs
trees with locked maps for tests. The badger selector is recognized by the
factory but not compiled in and fails with ErrNotSupported.

Driver-level errors (open, list, drop, stat, flush, close) are tagged (I/O,
serialization, backend) so callers can classify failures without string
matching. Per-key tree operations of the bolt driver tag a missing bucket as
a backend error but return BoltDB's own errors untagged.
*/
package kv

/*
Package session manages per-user sessions and their providers.

A Session pins a user's current schema, current graph, explicit transaction,
and permission snapshot. Field access is mediated by a per-session
reader-writer lock, and a separate statement lock serializes execution
within one session id. The session map itself is lock-partitioned like the
storage manager's graph cache.

Two providers implement the same contract: InstanceProvider owns its pool
(each coordinator isolated — embedded mode), while GlobalProvider shares one
process-wide pool between coordinators (server mode). The mode is chosen at
coordinator construction and defaults to instance.

Sessions hold back-references to the storage, catalog, and transaction
managers for executor access; ownership stays with the coordinator.
*/
package session

/*
Package txn provides transaction control, the write-ahead log, and the
per-transaction undo log.

Transactions move Active → Committed | RolledBack | Failed. Every statement
executor appends a WAL record as its first side-effectful step, and the WAL
fsyncs before the in-memory mutation applies. DML executors additionally
record an undo operation per statement — durably in the WAL and on the
transaction's in-memory undo stack — which Rollback replays in reverse.

Recovery on open scans the WAL tail: any transaction that reached neither a
COMMIT nor a ROLLBACK marker has its undo operations reverse-applied against
storage, restoring the pre-transaction state. Only READ COMMITTED isolation
is implemented; other levels are rejected at Begin with an UnsupportedError.
*/
package txn

/*
Package exec implements statement execution: the executor pipeline, the
pattern-match read path, expression evaluation, and graph-type enforcement.

Every executor runs the same three-phase pipeline. PreExecute appends the
statement record to the write-ahead log (fsynced before any mutation); the
category body follows; PostExecute is an optional hook. Data statements run
the unified modification flow — WAL, fetch graph, mutate, record undo,
persist, invalidate caches — while DDL statements order their side effects
so storage and catalog can never disagree about existence (DROP GRAPH
deletes storage first and keeps the catalog entry on failure).

SET and MATCH ... SET are all-or-nothing per statement: every value
expression is evaluated before any property is written, and a single
failure aborts the statement with nothing changed.

CALL serves the reserved gql.* namespace of read-only catalog procedures;
YIELD projects the declared columns and WHERE is pushed down to filter the
yielded rows.
*/
package exec

/*
Package coordinator is the public façade of gqlite: the query coordination
engine that owns every component and exposes the embedding API.

# Architecture

	┌───────────────────── COORDINATOR ─────────────────────────┐
	│                                                            │
	│  ProcessQuery(text, sessionID)                             │
	│      │                                                     │
	│      ▼                                                     │
	│  ┌──────────┐   ┌──────────┐   ┌───────────────────────┐  │
	│  │ Session  │──▶│  Parser  │──▶│ Statement dispatch     │  │
	│  │ resolve  │   │  (gql)   │   │  DDL / DML / TXN / CALL│  │
	│  └──────────┘   └──────────┘   └──────────┬────────────┘  │
	│                                            │               │
	│       ┌────────────┬───────────┬───────────┼────────────┐  │
	│       ▼            ▼           ▼           ▼            ▼  │
	│  ┌─────────┐ ┌─────────┐ ┌─────────┐ ┌─────────┐ ┌──────┐ │
	│  │ Storage │ │ Catalog │ │  Txn    │ │  Cache  │ │ Sess │ │
	│  │ Manager │ │ Manager │ │ Manager │ │ Manager │ │ Prov │ │
	│  └─────────┘ └─────────┘ └──WAL────┘ └─────────┘ └──────┘ │
	│                                                            │
	└────────────────────────────────────────────────────────────┘

Opening a database runs WAL recovery before anything else. Writes run
inside the session's explicit transaction or an implicit single-statement
one; implicit transactions commit on success and roll back on error, and a
statement error inside an explicit transaction rolls the whole transaction
back before surfacing. Cache-eligible reads consult the result cache under
a catalog-version-keyed fingerprint.
*/
package coordinator

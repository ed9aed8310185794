package exec

import (
	"github.com/gqlite/gqlite/pkg/cache"
	"github.com/gqlite/gqlite/pkg/txn"
	"github.com/gqlite/gqlite/pkg/types"
)

// StatementExecutor is the common three-phase pipeline every executor
// participates in: WAL logging in PreExecute, the category-specific body,
// and an optional PostExecute hook.
type StatementExecutor interface {
	// OperationType tags the statement for WAL records and auditing.
	OperationType() txn.OperationType

	// OperationDescription renders the human-readable WAL/log description.
	OperationDescription(ctx *Context) string
}

// PreExecute appends the statement record to the WAL. It is the first
// side-effectful step of every executor; the WAL fsyncs before any
// in-memory mutation.
func PreExecute(ctx *Context, ex StatementExecutor) error {
	if ctx.Txn == nil {
		return Errorf(KindRuntime, "no transaction bound to execution context")
	}
	if err := ctx.Txns.LogOperation(ctx.Txn, ex.OperationType(), ex.OperationDescription(ctx)); err != nil {
		return Errorf(KindStorage, "WAL append failed: %v", err)
	}
	return nil
}

// PostExecutor is implemented by executors needing a post-execution hook.
type PostExecutor interface {
	PostExecute(ctx *Context, rowsAffected int) error
}

func postExecute(ctx *Context, ex StatementExecutor, rowsAffected int) error {
	if pe, ok := ex.(PostExecutor); ok {
		return pe.PostExecute(ctx, rowsAffected)
	}
	return nil
}

// DMLExecutor is a data-statement executor: it mutates the graph in place
// and returns the undo operation plus the affected row count.
type DMLExecutor interface {
	StatementExecutor
	ExecuteModification(g *types.Graph, ctx *Context) (txn.UndoOp, int, error)
}

// RunDML executes the unified data-modification flow: WAL append, fetch the
// graph, apply the modification, record undo, persist, invalidate caches.
func RunDML(ctx *Context, ex DMLExecutor) (*QueryResult, error) {
	if err := PreExecute(ctx, ex); err != nil {
		return nil, err
	}
	if ctx.Txn.IsReadOnly() {
		return nil, Errorf(KindRuntime, "cannot modify data in a READ ONLY transaction")
	}

	path, err := ctx.CurrentGraphPath()
	if err != nil {
		return nil, err
	}
	g, err := ctx.Storage.GetGraph(path)
	if err != nil {
		return nil, Errorf(KindStorage, "failed to load graph %q: %v", path, err)
	}
	if g == nil {
		return nil, Errorf(KindNotFound, "graph %q not found", path)
	}

	undo, affected, err := ex.ExecuteModification(g, ctx)
	if err != nil {
		return nil, err
	}

	if err := ctx.Txns.LogUndo(ctx.Txn, undo); err != nil {
		return nil, Errorf(KindStorage, "failed to record undo: %v", err)
	}
	if err := ctx.Storage.SaveGraph(path, g); err != nil {
		return nil, Errorf(KindStorage, "failed to persist graph %q: %v", path, err)
	}

	if ctx.Cache != nil {
		ctx.Cache.Invalidate(cache.Event{Type: cache.EventNodeWritten, Graph: path})
		ctx.Cache.Invalidate(cache.Event{Type: cache.EventEdgeWritten, Graph: path})
	}

	if err := postExecute(ctx, ex, affected); err != nil {
		return nil, err
	}
	return StatusResult(ex.OperationDescription(ctx), affected), nil
}

// DDLExecutor is a schema-statement executor.
type DDLExecutor interface {
	StatementExecutor
	ExecuteDDL(ctx *Context) (message string, rowsAffected int, err error)
}

// RunDDL executes the DDL flow: WAL append, the operation body, post hook.
func RunDDL(ctx *Context, ex DDLExecutor) (*QueryResult, error) {
	if err := PreExecute(ctx, ex); err != nil {
		return nil, err
	}
	message, affected, err := ex.ExecuteDDL(ctx)
	if err != nil {
		return nil, err
	}
	if err := postExecute(ctx, ex, affected); err != nil {
		return nil, err
	}
	return StatusResult(message, affected), nil
}

// persistCatalog snapshots a provider after a successful mutation. A
// persistence failure keeps the in-memory change and surfaces a warning:
// callers treat the database as degraded rather than failing the statement.
func persistCatalog(ctx *Context, provider string) {
	if err := ctx.Catalog.PersistCatalog(provider); err != nil {
		ctx.AddWarning("catalog persistence failed for provider '" + provider + "': " + err.Error())
	}
}

package exec

import (
	"errors"
	"fmt"

	"github.com/gqlite/gqlite/pkg/cache"
	"github.com/gqlite/gqlite/pkg/gql"
	"github.com/gqlite/gqlite/pkg/txn"
	"github.com/gqlite/gqlite/pkg/types"
)

func cacheEvent(path string) cache.Event {
	return cache.Event{Type: cache.EventNodeWritten, Graph: path}
}

// ExecuteTransactionStatement handles START TRANSACTION, COMMIT, ROLLBACK,
// and SET TRANSACTION. These operate on the session's transaction state
// only and require no graph write permissions.
func ExecuteTransactionStatement(ctx *Context, stmt gql.Statement) (*QueryResult, error) {
	switch s := stmt.(type) {
	case *gql.StartTransactionStatement:
		return startTransaction(ctx, s)
	case *gql.CommitStatement:
		return commitTransaction(ctx)
	case *gql.RollbackStatement:
		return rollbackTransaction(ctx)
	case *gql.SetTransactionStatement:
		return setTransactionCharacteristics(ctx, s)
	}
	return nil, Errorf(KindRuntime, "statement %T is not a transaction statement", stmt)
}

func startTransaction(ctx *Context, stmt *gql.StartTransactionStatement) (*QueryResult, error) {
	if ctx.Session.Transaction() != nil {
		return nil, Errorf(KindRuntime, "transaction already in progress")
	}
	isolation := txn.IsolationLevel(stmt.Isolation)
	if stmt.Isolation == "" {
		isolation = txn.ReadCommitted
	}
	mode := txn.AccessMode(stmt.AccessMode)
	if stmt.AccessMode == "" {
		mode = txn.ReadWrite
	}

	t, err := ctx.Txns.Begin(isolation, mode, ctx.SessionID)
	if err != nil {
		var unsupported *txn.UnsupportedError
		if errors.As(err, &unsupported) {
			return nil, Errorf(KindUnsupported, "%s", unsupported.Feature)
		}
		return nil, Errorf(KindRuntime, "failed to start transaction: %v", err)
	}
	ctx.Session.SetTransaction(t)

	result := &QueryResult{
		Variables: []string{"status", "transaction_id"},
		Rows: []Row{NewRow([]string{"status", "transaction_id"}, map[string]types.Value{
			"status":         types.NewString("Transaction started"),
			"transaction_id": types.NewString(t.ID.String()),
		})},
	}
	return result, nil
}

func commitTransaction(ctx *Context) (*QueryResult, error) {
	t := ctx.Session.Transaction()
	if t == nil {
		return nil, Errorf(KindRuntime, "no transaction in progress")
	}
	if err := ctx.Txns.Commit(t); err != nil {
		return nil, Errorf(KindRuntime, "commit failed: %v", err)
	}
	ctx.Session.SetTransaction(nil)
	return StatusResult("Transaction committed", 0), nil
}

func rollbackTransaction(ctx *Context) (*QueryResult, error) {
	t := ctx.Session.Transaction()
	if t == nil {
		return nil, Errorf(KindRuntime, "no transaction in progress")
	}
	touched := make(map[string]struct{})
	for _, op := range t.UndoLog() {
		op.Paths(touched)
	}
	if err := ctx.Txns.Rollback(t, ctx.Storage); err != nil {
		return nil, Errorf(KindRuntime, "rollback failed: %v", err)
	}
	ctx.Session.SetTransaction(nil)
	InvalidateGraphs(ctx, touched)
	return StatusResult("Transaction rolled back", 0), nil
}

// InvalidateGraphs fires write events for graphs whose contents changed
// outside the unified DML flow (rollback restores).
func InvalidateGraphs(ctx *Context, paths map[string]struct{}) {
	if ctx.Cache == nil {
		return
	}
	for path := range paths {
		ctx.Cache.Invalidate(cacheEvent(path))
	}
}

func setTransactionCharacteristics(ctx *Context, stmt *gql.SetTransactionStatement) (*QueryResult, error) {
	if stmt.Isolation != "" && txn.IsolationLevel(stmt.Isolation) != txn.ReadCommitted {
		return nil, Errorf(KindUnsupported,
			"isolation level %s is not supported; only %s is implemented",
			stmt.Isolation, txn.ReadCommitted)
	}
	message := "Transaction characteristics set:"
	if stmt.Isolation != "" {
		message += " ISOLATION LEVEL " + stmt.Isolation
	}
	if stmt.AccessMode != "" {
		message += " " + stmt.AccessMode
	}
	if stmt.Isolation == "" && stmt.AccessMode == "" {
		message = fmt.Sprintf("Transaction characteristics unchanged (defaults: %s, %s)",
			txn.ReadCommitted, txn.ReadWrite)
	}
	return StatusResult(message, 0), nil
}

// ExecuteSessionStatement handles SESSION SET SCHEMA/GRAPH.
func ExecuteSessionStatement(ctx *Context, stmt *gql.SessionSetStatement) (*QueryResult, error) {
	switch stmt.Target {
	case "schema":
		name, err := ctx.ResolveSchemaName(stmt.Path)
		if err != nil {
			return nil, err
		}
		if _, qerr := ctx.Catalog.QueryReadOnly("schema", catalogGetSchema(name)); qerr != nil {
			return nil, Errorf(KindNotFound, "schema '%s' not found", name)
		}
		ctx.Session.SetCurrentSchema("/" + name)
		res := StatusResult("Session schema set to /"+name, 0)
		res.SessionResult = &SessionResult{
			CurrentSchema: ctx.Session.CurrentSchema(),
			CurrentGraph:  ctx.Session.CurrentGraph(),
		}
		return res, nil
	case "graph":
		path, err := ctx.ResolveGraphPath(stmt.Path)
		if err != nil {
			return nil, err
		}
		exists, err := ctx.Storage.HasGraph(path)
		if err != nil {
			return nil, Errorf(KindStorage, "failed to check graph '%s': %v", path, err)
		}
		if !exists {
			return nil, Errorf(KindNotFound, "graph '%s' not found", path)
		}
		schema, _, _ := types.SplitGraphPath(path)
		ctx.Session.SetCurrentSchema("/" + schema)
		ctx.Session.SetCurrentGraph(path)
		res := StatusResult("Session graph set to "+path, 0)
		res.SessionResult = &SessionResult{
			CurrentSchema: ctx.Session.CurrentSchema(),
			CurrentGraph:  ctx.Session.CurrentGraph(),
		}
		return res, nil
	}
	return nil, Errorf(KindRuntime, "unknown SESSION SET target %q", stmt.Target)
}

package coordinator

import (
	"fmt"
	"strings"
	"time"

	"github.com/gqlite/gqlite/pkg/cache"
	"github.com/gqlite/gqlite/pkg/catalog"
	"github.com/gqlite/gqlite/pkg/exec"
	"github.com/gqlite/gqlite/pkg/gql"
	"github.com/gqlite/gqlite/pkg/kv"
	"github.com/gqlite/gqlite/pkg/log"
	"github.com/gqlite/gqlite/pkg/metrics"
	"github.com/gqlite/gqlite/pkg/session"
	"github.com/gqlite/gqlite/pkg/storage"
	"github.com/gqlite/gqlite/pkg/txn"
)

// Coordinator is the single public façade of the database: it owns the
// storage, catalog, transaction, and cache managers plus the session
// provider, and orchestrates validate → analyze → dispatch for every
// statement.
type Coordinator struct {
	dataDir string

	storage  *storage.Manager
	catalog  *catalog.Manager
	txns     *txn.Manager
	cache    *cache.Manager
	sessions session.Provider

	enforcement exec.EnforcementMode
}

// Open builds a coordinator over the database directory with defaults
// (instance sessions), running WAL recovery first.
func Open(dataDir string) (*Coordinator, error) {
	return OpenWithMode(dataDir, session.ModeInstance)
}

// OpenWithMode selects the session provider mode at construction.
func OpenWithMode(dataDir string, mode session.Mode) (*Coordinator, error) {
	opts, err := loadOptions(dataDir)
	if err != nil {
		return nil, err
	}
	opts.Mode = mode
	return OpenWithOptions(dataDir, opts)
}

// OpenWithOptions builds every component explicitly.
func OpenWithOptions(dataDir string, opts Options) (*Coordinator, error) {
	logger := log.WithComponent("coordinator")

	driver, err := kv.Open(opts.Backend, dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage backend: %w", err)
	}
	store, err := storage.NewManager(driver)
	if err != nil {
		driver.Close()
		return nil, err
	}

	// Recovery runs before the transaction manager starts appending.
	recovered, err := txn.Recover(dataDir, store)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("WAL recovery failed: %w", err)
	}
	if recovered > 0 {
		logger.Info().Int("transactions", recovered).Msg("WAL recovery rolled back unfinished transactions")
	}

	txns, err := txn.NewManager(dataDir)
	if err != nil {
		store.Close()
		return nil, err
	}

	catalogTree, err := store.CatalogTree()
	if err != nil {
		store.Close()
		return nil, err
	}
	catalogMgr, err := catalog.NewManager(catalogTree)
	if err != nil {
		store.Close()
		return nil, err
	}
	if err := catalogMgr.LoadAll(); err != nil {
		store.Close()
		return nil, err
	}
	if err := bootstrapAdmin(catalogMgr); err != nil {
		store.Close()
		return nil, err
	}

	cacheMgr, err := cache.NewManager(opts.Cache)
	if err != nil {
		store.Close()
		return nil, err
	}

	var sessions session.Provider
	if opts.Mode == session.ModeGlobal {
		sessions = session.NewGlobalProvider(store, catalogMgr, txns)
	} else {
		sessions = session.NewInstanceProvider(store, catalogMgr, txns)
	}

	logger.Info().
		Str("path", dataDir).
		Str("backend", string(opts.Backend)).
		Str("session_mode", opts.Mode.String()).
		Msg("database opened")

	return &Coordinator{
		dataDir:     dataDir,
		storage:     store,
		catalog:     catalogMgr,
		txns:        txns,
		cache:       cacheMgr,
		sessions:    sessions,
		enforcement: opts.Enforcement,
	}, nil
}

// bootstrapAdmin ensures the admin user exists with the admin role.
func bootstrapAdmin(catalogMgr *catalog.Manager) error {
	_, err := catalogMgr.Execute("security", catalog.Operation{
		Kind:   catalog.OpCreate,
		Entity: catalog.EntityUser,
		Name:   "admin",
		Params: map[string]any{"roles": []any{catalog.RoleAdmin}},
	})
	if err != nil {
		if catalog.IsAlreadyExists(err) {
			return nil
		}
		return fmt.Errorf("failed to bootstrap admin user: %w", err)
	}
	return catalogMgr.PersistCatalog("security")
}

// Close shuts down the session provider, transaction manager, and storage.
func (c *Coordinator) Close() error {
	if err := c.sessions.Shutdown(); err != nil {
		return err
	}
	if err := c.txns.Close(); err != nil {
		return err
	}
	return c.storage.Close()
}

// DataDir returns the database directory.
func (c *Coordinator) DataDir() string { return c.dataDir }

// --- session surface ---

// CreateSimpleSession opens a session for username, resolving roles and
// permissions from the security catalog (defaulting to the user role).
func (c *Coordinator) CreateSimpleSession(username string) (string, error) {
	roles := []string{catalog.RoleUser}
	resp, err := c.catalog.QueryReadOnly("security", catalog.Operation{
		Kind:   catalog.OpQuery,
		Entity: catalog.EntityUser,
		Name:   "get",
		Params: map[string]any{"name": username},
	})
	if err == nil {
		if raw, ok := resp.Data["roles"].([]any); ok {
			roles = roles[:0]
			for _, r := range raw {
				if s, ok := r.(string); ok {
					roles = append(roles, s)
				}
			}
		}
	}

	perms := session.NewPermissionCache()
	for _, role := range roles {
		roleResp, err := c.catalog.QueryReadOnly("security", catalog.Operation{
			Kind:   catalog.OpQuery,
			Entity: catalog.EntityRole,
			Name:   "get",
			Params: map[string]any{"name": role},
		})
		if err != nil {
			continue
		}
		if rawPerms, ok := roleResp.Data["permissions"].([]any); ok {
			for _, p := range rawPerms {
				if s, ok := p.(string); ok {
					perms.Permissions[s] = true
				}
			}
		}
	}

	id, err := c.sessions.CreateSession(username, roles, perms)
	if err != nil {
		return "", err
	}
	metrics.SessionsActive.Set(float64(c.sessions.SessionCount()))
	return id, nil
}

// CloseSession removes a session.
func (c *Coordinator) CloseSession(sessionID string) error {
	err := c.sessions.RemoveSession(sessionID)
	metrics.SessionsActive.Set(float64(c.sessions.SessionCount()))
	return err
}

// ListSessions returns active session ids.
func (c *Coordinator) ListSessions() []string { return c.sessions.ListSessions() }

// SessionCount returns the number of active sessions.
func (c *Coordinator) SessionCount() int { return c.sessions.SessionCount() }

// --- query surface ---

// ValidateQuery parses the text without executing it.
func (c *Coordinator) ValidateQuery(text string) error {
	if err := gql.Validate(text); err != nil {
		return exec.Errorf(exec.KindSyntax, "%v", err)
	}
	return nil
}

// IsValidQuery reports whether the text parses.
func (c *Coordinator) IsValidQuery(text string) bool {
	return gql.Validate(text) == nil
}

// QueryInfo summarizes a statement without executing it.
type QueryInfo struct {
	QueryType  string
	IsReadOnly bool
}

// AnalyzeQuery parses and classifies the text.
func (c *Coordinator) AnalyzeQuery(text string) (*QueryInfo, error) {
	stmt, err := gql.Parse(text)
	if err != nil {
		return nil, exec.Errorf(exec.KindSyntax, "%v", err)
	}
	kind := stmt.Kind()
	return &QueryInfo{
		QueryType:  string(kind),
		IsReadOnly: gql.IsReadOnly(kind),
	}, nil
}

// QueryPlan is the explain output: a one-line summary plus the plan tree.
type QueryPlan struct {
	Summary string
	Tree    []string
}

// ExplainQuery renders a plan sketch for the statement.
func (c *Coordinator) ExplainQuery(text string) (*QueryPlan, error) {
	stmt, err := gql.Parse(text)
	if err != nil {
		return nil, exec.Errorf(exec.KindSyntax, "%v", err)
	}
	kind := stmt.Kind()
	plan := &QueryPlan{Summary: string(kind)}
	switch s := stmt.(type) {
	case *gql.MatchStatement:
		plan.Tree = append(plan.Tree, fmt.Sprintf("MatchPattern(nodes=%d, edges=%d)",
			len(s.Pattern.Nodes), len(s.Pattern.Edges)))
		if s.Where != nil {
			plan.Tree = append(plan.Tree, "Filter(where)")
		}
		if len(s.Return) > 0 {
			plan.Tree = append(plan.Tree, fmt.Sprintf("Project(columns=%d)", len(s.Return)))
		}
		if len(s.OrderBy) > 0 {
			if s.Limit >= 0 {
				plan.Tree = append(plan.Tree, fmt.Sprintf("TopK(k=%d)", s.Limit))
			} else {
				plan.Tree = append(plan.Tree, "Sort")
			}
		} else if s.Limit >= 0 {
			plan.Tree = append(plan.Tree, fmt.Sprintf("Limit(%d)", s.Limit))
		}
	case *gql.CallStatement:
		plan.Tree = append(plan.Tree, fmt.Sprintf("CallProcedure(%s.%s)", s.Namespace, s.Procedure))
		if len(s.Yield) > 0 {
			plan.Tree = append(plan.Tree, fmt.Sprintf("Yield(%s)", strings.Join(s.Yield, ", ")))
		}
		if s.Where != nil {
			plan.Tree = append(plan.Tree, "Filter(where)")
		}
	default:
		plan.Tree = append(plan.Tree, string(kind))
	}
	return plan, nil
}

// ProcessQuery is the hot path: resolve the session, parse, classify, and
// dispatch to the right executor family.
func (c *Coordinator) ProcessQuery(text, sessionID string) (*exec.QueryResult, error) {
	sess := c.sessions.GetSession(sessionID)
	if sess == nil {
		return nil, exec.Errorf(exec.KindRuntime, "session %q not found", sessionID)
	}
	sess.Touch()

	// Statements within one session are strictly serialized.
	sess.ExecLock()
	defer sess.ExecUnlock()

	stmt, err := gql.Parse(text)
	if err != nil {
		return nil, exec.Errorf(exec.KindSyntax, "%v", err)
	}
	kind := stmt.Kind()
	start := time.Now()

	result, err := c.dispatch(text, stmt, sess)
	metrics.ObserveQuery(string(kind), err, time.Since(start))
	if err != nil {
		return nil, err
	}
	result.ExecutionTimeMS = uint64(time.Since(start).Milliseconds())
	return result, nil
}

func (c *Coordinator) dispatch(text string, stmt gql.Statement, sess *session.Session) (*exec.QueryResult, error) {
	ctx := &exec.Context{
		SessionID:   sess.ID(),
		Session:     sess,
		Catalog:     c.catalog,
		Storage:     c.storage,
		Txns:        c.txns,
		Cache:       c.cache,
		Sessions:    c.sessions,
		Enforcement: c.enforcement,
	}

	switch s := stmt.(type) {
	case *gql.StartTransactionStatement, *gql.CommitStatement,
		*gql.RollbackStatement, *gql.SetTransactionStatement:
		return exec.ExecuteTransactionStatement(ctx, stmt)

	case *gql.SessionSetStatement:
		return exec.ExecuteSessionStatement(ctx, s)

	case *gql.CallStatement:
		result, err := exec.ExecuteCall(ctx, s)
		if err != nil {
			return nil, err
		}
		result.Warnings = ctx.Warnings()
		return result, nil

	case *gql.MatchStatement:
		if s.Kind() == gql.KindMatchReturn {
			return c.runRead(ctx, text, s, sess)
		}
	}

	// Everything else is a write: it runs inside the session's explicit
	// transaction, or an implicit single-statement one.
	return c.runWrite(ctx, stmt, sess)
}

// runRead evaluates MATCH ... RETURN, consulting the result cache when the
// statement is cache-eligible.
func (c *Coordinator) runRead(ctx *exec.Context, text string, stmt *gql.MatchStatement, sess *session.Session) (*exec.QueryResult, error) {
	path, err := ctx.CurrentGraphPath()
	if err != nil {
		return nil, err
	}

	// Reads inside an explicit transaction skip the cache: they must see
	// the transaction's own uncommitted writes.
	cacheable := sess.Transaction() == nil
	fingerprint := cache.Fingerprint(path+"|"+text, c.catalog.Version())
	if cacheable {
		if cached, ok := c.cache.GetResult(fingerprint); ok {
			if res, ok := cached.(*exec.QueryResult); ok {
				// Shallow copy so per-call stamps never mutate the cached
				// entry.
				hit := *res
				return &hit, nil
			}
		}
	}

	g, err := ctx.Storage.GetGraph(path)
	if err != nil {
		return nil, exec.Errorf(exec.KindStorage, "failed to load graph %q: %v", path, err)
	}
	if g == nil {
		return nil, exec.Errorf(exec.KindNotFound, "graph %q not found", path)
	}

	result, err := exec.EvalMatchReturn(ctx, g, stmt)
	if err != nil {
		return nil, err
	}
	result.Warnings = ctx.Warnings()
	if cacheable {
		c.cache.PutResult(fingerprint, result, exec.ApproxResultSize(result), path)
	}
	return result, nil
}

// runWrite wraps DML/DDL in the transaction discipline: implicit
// single-statement transactions commit on success and roll back on error;
// a statement error inside an explicit transaction rolls the whole
// transaction back before surfacing.
func (c *Coordinator) runWrite(ctx *exec.Context, stmt gql.Statement, sess *session.Session) (*exec.QueryResult, error) {
	t := sess.Transaction()
	implicit := t == nil
	if implicit {
		var err error
		t, err = c.txns.BeginImplicit(sess.ID())
		if err != nil {
			return nil, exec.Errorf(exec.KindRuntime, "failed to start implicit transaction: %v", err)
		}
	}
	ctx.Txn = t

	result, err := c.executeWrite(ctx, stmt)
	if err != nil {
		touched := make(map[string]struct{})
		for _, op := range t.UndoLog() {
			op.Paths(touched)
		}
		if rbErr := c.txns.Rollback(t, c.storage); rbErr != nil {
			log.WithComponent("coordinator").Error().Err(rbErr).
				Msg("rollback after statement failure did not complete")
		}
		exec.InvalidateGraphs(ctx, touched)
		if !implicit {
			sess.SetTransaction(nil)
		}
		metrics.TransactionsTotal.WithLabelValues("rolled_back").Inc()
		return nil, err
	}

	if implicit {
		if err := c.txns.Commit(t); err != nil {
			return nil, exec.Errorf(exec.KindRuntime, "implicit commit failed: %v", err)
		}
		metrics.TransactionsTotal.WithLabelValues("committed").Inc()
	}
	result.Warnings = ctx.Warnings()
	return result, nil
}

func (c *Coordinator) executeWrite(ctx *exec.Context, stmt gql.Statement) (*exec.QueryResult, error) {
	switch stmt.Kind() {
	case gql.KindInsert, gql.KindMatchInsert, gql.KindSet, gql.KindMatchSet,
		gql.KindRemove, gql.KindMatchRemove, gql.KindDelete, gql.KindMatchDelete:
		ex, err := exec.DMLStatement(stmt)
		if err != nil {
			return nil, err
		}
		return exec.RunDML(ctx, ex)
	default:
		ex, err := exec.DDLStatementFor(stmt)
		if err != nil {
			return nil, err
		}
		return exec.RunDDL(ctx, ex)
	}
}

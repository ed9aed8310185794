package exec

import (
	"strings"

	"github.com/gqlite/gqlite/pkg/cache"
	"github.com/gqlite/gqlite/pkg/catalog"
	"github.com/gqlite/gqlite/pkg/gql"
	"github.com/gqlite/gqlite/pkg/session"
	"github.com/gqlite/gqlite/pkg/storage"
	"github.com/gqlite/gqlite/pkg/txn"
)

// EnforcementMode controls graph-type validation on writes.
type EnforcementMode int

const (
	// EnforceDisabled skips type validation entirely.
	EnforceDisabled EnforcementMode = iota
	// EnforceAdvisory validates and surfaces violations as warnings.
	EnforceAdvisory
	// EnforceStrict validates and rejects violating statements.
	EnforceStrict
)

func (m EnforcementMode) String() string {
	switch m {
	case EnforceStrict:
		return "strict"
	case EnforceAdvisory:
		return "advisory"
	}
	return "disabled"
}

// Context carries everything a statement executor needs: the session, the
// component handles, the active transaction, and the warning buffer.
// Contexts are per-statement and not shared between goroutines.
type Context struct {
	SessionID string
	Session   *session.Session

	Catalog  *catalog.Manager
	Storage  *storage.Manager
	Txns     *txn.Manager
	Cache    *cache.Manager
	Sessions session.Provider

	// Txn is the transaction this statement runs inside (explicit or
	// implicit).
	Txn *txn.Transaction

	Enforcement EnforcementMode

	// MemoryBudgetBytes bounds result materialization; zero means the
	// default budget.
	MemoryBudgetBytes int

	warnings []string
}

// DefaultMemoryBudget bounds materialized result size per statement.
const DefaultMemoryBudget = 64 * 1024 * 1024

// AddWarning appends a warning for the statement's result.
func (c *Context) AddWarning(msg string) {
	c.warnings = append(c.warnings, msg)
}

// Warnings returns the accumulated warnings.
func (c *Context) Warnings() []string { return c.warnings }

// MemoryBudget returns the effective budget.
func (c *Context) MemoryBudget() int {
	if c.MemoryBudgetBytes > 0 {
		return c.MemoryBudgetBytes
	}
	return DefaultMemoryBudget
}

// CurrentGraphPath resolves the session's current graph, failing with a
// runtime error when no graph context is set.
func (c *Context) CurrentGraphPath() (string, error) {
	if c.Session == nil {
		return "", Errorf(KindRuntime, "no session bound to execution context")
	}
	path := c.Session.CurrentGraph()
	if path == "" {
		return "", Errorf(KindRuntime,
			"no graph context: use 'SESSION SET GRAPH /schema/graph' to select one")
	}
	return path, nil
}

// ResolveGraphPath turns a parsed catalog path into a full /schema/graph
// path, consulting the session schema for relative references.
func (c *Context) ResolveGraphPath(p gql.CatalogPath) (string, error) {
	switch len(p.Segments) {
	case 2:
		return "/" + p.Segments[0] + "/" + p.Segments[1], nil
	case 1:
		schema := ""
		if c.Session != nil {
			schema = strings.TrimPrefix(c.Session.CurrentSchema(), "/")
		}
		if schema == "" {
			return "", Errorf(KindRuntime,
				"cannot resolve relative graph %q: no current schema set; use 'SESSION SET SCHEMA <name>' or a full /schema/graph path",
				p.Segments[0])
		}
		return "/" + schema + "/" + p.Segments[0], nil
	}
	return "", Errorf(KindRuntime, "invalid graph path %q", p.String())
}

// ResolveSchemaName extracts the schema name from a one-segment path.
func (c *Context) ResolveSchemaName(p gql.CatalogPath) (string, error) {
	if len(p.Segments) != 1 {
		return "", Errorf(KindRuntime, "invalid schema path %q", p.String())
	}
	return p.Segments[0], nil
}

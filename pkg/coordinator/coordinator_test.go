package coordinator

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gqlite/gqlite/pkg/exec"
	"github.com/gqlite/gqlite/pkg/kv"
	"github.com/gqlite/gqlite/pkg/session"
	"github.com/gqlite/gqlite/pkg/types"
)

func openTestCoordinator(t *testing.T) *Coordinator {
	t.Helper()
	return openTestCoordinatorWithMode(t, session.ModeInstance)
}

func openTestCoordinatorWithMode(t *testing.T, mode session.Mode) *Coordinator {
	t.Helper()
	opts := DefaultOptions()
	opts.Backend = kv.BackendMemory
	opts.Mode = mode
	coord, err := OpenWithOptions(t.TempDir(), opts)
	require.NoError(t, err)
	t.Cleanup(func() { coord.Close() })
	return coord
}

// newBoundSession creates a session pinned to a fresh /s/g graph.
func newBoundSession(t *testing.T, coord *Coordinator) string {
	t.Helper()
	id, err := coord.CreateSimpleSession("admin")
	require.NoError(t, err)
	mustQuery(t, coord, id, "CREATE SCHEMA s")
	mustQuery(t, coord, id, "CREATE GRAPH /s/g")
	mustQuery(t, coord, id, "SESSION SET GRAPH /s/g")
	return id
}

func mustQuery(t *testing.T, coord *Coordinator, sessionID, text string) *exec.QueryResult {
	t.Helper()
	result, err := coord.ProcessQuery(text, sessionID)
	require.NoError(t, err, "query %q", text)
	return result
}

func firstValue(t *testing.T, result *exec.QueryResult, column string) types.Value {
	t.Helper()
	require.NotEmpty(t, result.Rows, "expected at least one row")
	v, ok := result.Rows[0].Values[column]
	require.True(t, ok, "column %q missing (have %v)", column, result.Variables)
	return v
}

func TestDuplicateInsertIsWarningNotError(t *testing.T) {
	coord := openTestCoordinator(t)
	id := newBoundSession(t, coord)

	first := mustQuery(t, coord, id, "INSERT (:Person {name:'Charlie', age:35})")
	assert.Equal(t, 1, first.RowsAffected)

	second := mustQuery(t, coord, id, "INSERT (:Person {name:'Charlie', age:35})")
	assert.Equal(t, 0, second.RowsAffected)
	require.NotEmpty(t, second.Warnings)
	assert.Contains(t, second.Warnings[0], "Duplicate node detected")

	count := mustQuery(t, coord, id, "MATCH (p:Person) RETURN count(p)")
	assert.Equal(t, float64(1), firstValue(t, count, "count(p)").Number)
}

func TestSetAtomicityAbortsOnBadExpression(t *testing.T) {
	coord := openTestCoordinator(t)
	id := newBoundSession(t, coord)
	mustQuery(t, coord, id, "INSERT (:Person {name:'Alice', age:30, city:'NYC'})")

	_, err := coord.ProcessQuery(
		"MATCH (p:Person {name:'Alice'}) SET p.age = 31, p.birthday = datetime('1992-05-15')", id)
	require.Error(t, err, "date-only string is not a valid datetime")
	assert.True(t, exec.IsKind(err, exec.KindExpression))

	// Nothing was written: the statement is all-or-nothing.
	age := mustQuery(t, coord, id, "MATCH (p:Person {name:'Alice'}) RETURN p.age")
	assert.Equal(t, float64(30), firstValue(t, age, "p.age").Number)
}

func TestTransactionRollbackRestoresData(t *testing.T) {
	coord := openTestCoordinator(t)
	id := newBoundSession(t, coord)
	mustQuery(t, coord, id, "INSERT (:Person {name:'Dave', age:40})")

	mustQuery(t, coord, id, "START TRANSACTION")
	mustQuery(t, coord, id, "MATCH (p:Person {name:'Dave'}) SET p.age = 41")

	// Intra-transaction read observes the uncommitted write.
	during := mustQuery(t, coord, id, "MATCH (p:Person {name:'Dave'}) RETURN p.age")
	assert.Equal(t, float64(41), firstValue(t, during, "p.age").Number)

	mustQuery(t, coord, id, "ROLLBACK")

	after := mustQuery(t, coord, id, "MATCH (p:Person {name:'Dave'}) RETURN p.age")
	assert.Equal(t, float64(40), firstValue(t, after, "p.age").Number)
}

func TestCommitKeepsData(t *testing.T) {
	coord := openTestCoordinator(t)
	id := newBoundSession(t, coord)
	mustQuery(t, coord, id, "INSERT (:Person {name:'Eve', age:20})")

	mustQuery(t, coord, id, "START TRANSACTION")
	mustQuery(t, coord, id, "MATCH (p:Person {name:'Eve'}) SET p.age = 21")
	mustQuery(t, coord, id, "COMMIT")

	after := mustQuery(t, coord, id, "MATCH (p:Person {name:'Eve'}) RETURN p.age")
	assert.Equal(t, float64(21), firstValue(t, after, "p.age").Number)
}

func TestOrderByDescending(t *testing.T) {
	coord := openTestCoordinator(t)
	id := newBoundSession(t, coord)
	mustQuery(t, coord, id, "INSERT (:Person {name:'A', age:30})")
	mustQuery(t, coord, id, "INSERT (:Person {name:'B', age:25})")
	mustQuery(t, coord, id, "INSERT (:Person {name:'C', age:35})")

	result := mustQuery(t, coord, id, "MATCH (p:Person) RETURN p.age AS age ORDER BY p.age DESC")
	require.Len(t, result.Rows, 3)
	var ages []float64
	for _, row := range result.Rows {
		ages = append(ages, row.Values["age"].Number)
	}
	assert.Equal(t, []float64{35, 30, 25}, ages)
}

func TestOrderByWithLimit(t *testing.T) {
	coord := openTestCoordinator(t)
	id := newBoundSession(t, coord)
	mustQuery(t, coord, id, "INSERT (:Person {name:'A', age:30})")
	mustQuery(t, coord, id, "INSERT (:Person {name:'B', age:25})")
	mustQuery(t, coord, id, "INSERT (:Person {name:'C', age:35})")

	result := mustQuery(t, coord, id, "MATCH (p:Person) RETURN p.age AS age ORDER BY p.age DESC LIMIT 2")
	require.Len(t, result.Rows, 2)
	assert.Equal(t, float64(35), result.Rows[0].Values["age"].Number)
	assert.Equal(t, float64(30), result.Rows[1].Values["age"].Number)
}

func TestCatalogCacheInvalidationOnCreateSchema(t *testing.T) {
	coord := openTestCoordinator(t)
	id, err := coord.CreateSimpleSession("admin")
	require.NoError(t, err)

	mustQuery(t, coord, id, "CREATE SCHEMA S1")
	mustQuery(t, coord, id, "CREATE SCHEMA S2")

	before := mustQuery(t, coord, id, "CALL gql.list_schemas()")
	assert.Len(t, before.Rows, 2)

	mustQuery(t, coord, id, "CREATE SCHEMA S3")

	after := mustQuery(t, coord, id, "CALL gql.list_schemas()")
	require.Len(t, after.Rows, 3, "new schema must appear immediately in the same session")
	var names []string
	for _, row := range after.Rows {
		names = append(names, row.Values["schema_name"].Str)
	}
	assert.Contains(t, names, "S3")
}

func TestResultCacheInvalidationOnWrite(t *testing.T) {
	coord := openTestCoordinator(t)
	id := newBoundSession(t, coord)
	mustQuery(t, coord, id, "INSERT (:Person {name:'A', age:1})")

	count := mustQuery(t, coord, id, "MATCH (p:Person) RETURN count(p)")
	assert.Equal(t, float64(1), firstValue(t, count, "count(p)").Number)

	// The write must drop the cached count.
	mustQuery(t, coord, id, "INSERT (:Person {name:'B', age:2})")
	count = mustQuery(t, coord, id, "MATCH (p:Person) RETURN count(p)")
	assert.Equal(t, float64(2), firstValue(t, count, "count(p)").Number)
}

func TestDropGraphClearsEverything(t *testing.T) {
	coord := openTestCoordinator(t)
	id := newBoundSession(t, coord)
	mustQuery(t, coord, id, "INSERT (:Person {name:'X'})")

	mustQuery(t, coord, id, "DROP GRAPH /s/g")

	// Storage no longer has the graph.
	graphs := mustQuery(t, coord, id, "CALL gql.list_graphs()")
	assert.Empty(t, graphs.Rows)

	// The session's current-graph pointer was cleared, so the next data
	// statement fails with a missing-graph-context error.
	_, err := coord.ProcessQuery("MATCH (p:Person) RETURN p", id)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no graph context")
}

func TestDropGraphStatementOrderingBoundaries(t *testing.T) {
	coord := openTestCoordinator(t)
	id, err := coord.CreateSimpleSession("admin")
	require.NoError(t, err)
	mustQuery(t, coord, id, "CREATE SCHEMA s")

	// Missing graph without IF EXISTS fails.
	_, err = coord.ProcessQuery("DROP GRAPH /s/missing", id)
	require.Error(t, err)
	assert.True(t, exec.IsKind(err, exec.KindNotFound))

	// With IF EXISTS it succeeds affecting nothing.
	result := mustQuery(t, coord, id, "DROP GRAPH IF EXISTS /s/missing")
	assert.Equal(t, 0, result.RowsAffected)
}

func TestSchemaBoundaries(t *testing.T) {
	coord := openTestCoordinator(t)
	id, err := coord.CreateSimpleSession("admin")
	require.NoError(t, err)

	// Invalid names rejected at CREATE.
	for _, bad := range []string{"CREATE SCHEMA 1digit"} {
		_, err := coord.ProcessQuery(bad, id)
		assert.Error(t, err, bad)
	}

	// IF NOT EXISTS is idempotent; the second invocation affects 0 rows.
	first := mustQuery(t, coord, id, "CREATE SCHEMA IF NOT EXISTS x")
	assert.Equal(t, 1, first.RowsAffected)
	second := mustQuery(t, coord, id, "CREATE SCHEMA IF NOT EXISTS x")
	assert.Equal(t, 0, second.RowsAffected)

	// DROP SCHEMA IF EXISTS on a missing schema succeeds with 0 rows.
	dropped := mustQuery(t, coord, id, "DROP SCHEMA IF EXISTS missing")
	assert.Equal(t, 0, dropped.RowsAffected)

	// Without IF EXISTS it is a not-found error.
	_, err = coord.ProcessQuery("DROP SCHEMA missing", id)
	require.Error(t, err)
	assert.True(t, exec.IsKind(err, exec.KindNotFound))
}

func TestUnknownProcedureListsAvailable(t *testing.T) {
	coord := openTestCoordinator(t)
	id, err := coord.CreateSimpleSession("admin")
	require.NoError(t, err)

	_, err = coord.ProcessQuery("CALL gql.nonexistent()", id)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gql.list_schemas()")
	assert.NotContains(t, err.Error(), "no graph context")
}

func TestCallYieldWherePushdown(t *testing.T) {
	coord := openTestCoordinator(t)
	id, err := coord.CreateSimpleSession("admin")
	require.NoError(t, err)
	mustQuery(t, coord, id, "CREATE SCHEMA x")
	mustQuery(t, coord, id, "CREATE SCHEMA y")

	result := mustQuery(t, coord, id,
		"CALL gql.list_schemas() YIELD schema_name WHERE schema_name = 'x'")
	require.Len(t, result.Rows, 1)
	assert.Equal(t, "x", result.Rows[0].Values["schema_name"].Str)
	assert.Equal(t, []string{"schema_name"}, result.Variables)
}

func TestSessionModes(t *testing.T) {
	t.Run("instance mode isolates coordinators", func(t *testing.T) {
		coord1 := openTestCoordinator(t)
		coord2 := openTestCoordinator(t)

		id1, err := coord1.CreateSimpleSession("u1")
		require.NoError(t, err)
		_, err = coord2.CreateSimpleSession("u2")
		require.NoError(t, err)

		assert.Equal(t, 1, coord1.SessionCount())
		assert.Equal(t, 1, coord2.SessionCount())
		_, err = coord2.ProcessQuery("CALL gql.list_schemas()", id1)
		assert.Error(t, err, "sessions must not leak between instance coordinators")
	})

	t.Run("global mode shares sessions", func(t *testing.T) {
		session.ResetGlobal()
		t.Cleanup(session.ResetGlobal)

		coord1 := openTestCoordinatorWithMode(t, session.ModeGlobal)
		coord2 := openTestCoordinatorWithMode(t, session.ModeGlobal)

		id, err := coord1.CreateSimpleSession("shared")
		require.NoError(t, err)
		_, err = coord2.ProcessQuery("CALL gql.list_schemas()", id)
		assert.NoError(t, err, "global-mode coordinators share the session pool")
	})
}

func TestSystemRoleProtection(t *testing.T) {
	coord := openTestCoordinator(t)
	id, err := coord.CreateSimpleSession("admin")
	require.NoError(t, err)

	_, err = coord.ProcessQuery("DROP ROLE admin", id)
	assert.Error(t, err)
	_, err = coord.ProcessQuery("DROP ROLE user", id)
	assert.Error(t, err)

	mustQuery(t, coord, id, "CREATE USER carol")
	_, err = coord.ProcessQuery("REVOKE ROLE user FROM carol", id)
	assert.Error(t, err)
	_, err = coord.ProcessQuery("REVOKE ROLE admin FROM admin", id)
	assert.Error(t, err)
}

func TestUnsupportedIsolationLevelRejectedAtRuntime(t *testing.T) {
	coord := openTestCoordinator(t)
	id, err := coord.CreateSimpleSession("admin")
	require.NoError(t, err)

	_, err = coord.ProcessQuery("START TRANSACTION ISOLATION LEVEL SERIALIZABLE", id)
	require.Error(t, err)
	assert.True(t, exec.IsKind(err, exec.KindUnsupported))

	_, err = coord.ProcessQuery("SET TRANSACTION ISOLATION LEVEL REPEATABLE READ", id)
	require.Error(t, err)
	assert.True(t, exec.IsKind(err, exec.KindUnsupported))
}

func TestDeleteRemovesDependentEdges(t *testing.T) {
	coord := openTestCoordinator(t)
	id := newBoundSession(t, coord)
	mustQuery(t, coord, id,
		"INSERT (a:Person {name:'A'})-[:KNOWS]->(b:Person {name:'B'})")

	result := mustQuery(t, coord, id, "MATCH (p:Person {name:'A'}) DELETE p")
	assert.Equal(t, 1, result.RowsAffected)

	count := mustQuery(t, coord, id, "MATCH (p:Person) RETURN count(p)")
	assert.Equal(t, float64(1), firstValue(t, count, "count(p)").Number)

	edges := mustQuery(t, coord, id, "MATCH (a:Person)-[r:KNOWS]->(b:Person) RETURN count(r)")
	assert.Equal(t, float64(0), firstValue(t, edges, "count(r)").Number)
}

func TestRollbackOfDeleteRestoresNodeAndEdges(t *testing.T) {
	coord := openTestCoordinator(t)
	id := newBoundSession(t, coord)
	mustQuery(t, coord, id,
		"INSERT (a:Person {name:'A'})-[:KNOWS]->(b:Person {name:'B'})")

	mustQuery(t, coord, id, "START TRANSACTION")
	mustQuery(t, coord, id, "MATCH (p:Person {name:'A'}) DELETE p")

	during := mustQuery(t, coord, id, "MATCH (p:Person) RETURN count(p)")
	assert.Equal(t, float64(1), firstValue(t, during, "count(p)").Number)

	// Rollback must re-insert the node before its edges, or the edge
	// restore would fail referential integrity.
	mustQuery(t, coord, id, "ROLLBACK")

	nodes := mustQuery(t, coord, id, "MATCH (p:Person) RETURN count(p)")
	assert.Equal(t, float64(2), firstValue(t, nodes, "count(p)").Number)

	edges := mustQuery(t, coord, id, "MATCH (a:Person)-[r:KNOWS]->(b:Person) RETURN count(r)")
	assert.Equal(t, float64(1), firstValue(t, edges, "count(r)").Number)
}

func TestRemovePropertyAndLabel(t *testing.T) {
	coord := openTestCoordinator(t)
	id := newBoundSession(t, coord)
	mustQuery(t, coord, id, "INSERT (:Person {name:'A', age:30})")

	mustQuery(t, coord, id, "MATCH (p:Person {name:'A'}) REMOVE p.age")
	after := mustQuery(t, coord, id, "MATCH (p:Person {name:'A'}) RETURN p.age")
	assert.True(t, firstValue(t, after, "p.age").IsNull())

	mustQuery(t, coord, id, "MATCH (p:Person {name:'A'}) REMOVE p:Person")
	count := mustQuery(t, coord, id, "MATCH (p:Person) RETURN count(p)")
	assert.Equal(t, float64(0), firstValue(t, count, "count(p)").Number)
}

func TestClearGraphPreservesCatalogEntry(t *testing.T) {
	coord := openTestCoordinator(t)
	id := newBoundSession(t, coord)
	mustQuery(t, coord, id, "INSERT (:Person {name:'A'})")

	mustQuery(t, coord, id, "CLEAR GRAPH /s/g")

	count := mustQuery(t, coord, id, "MATCH (p:Person) RETURN count(p)")
	assert.Equal(t, float64(0), firstValue(t, count, "count(p)").Number)

	graphs := mustQuery(t, coord, id, "CALL gql.list_graphs()")
	require.Len(t, graphs.Rows, 1, "CLEAR keeps the catalog entry")
}

func TestRecoveryAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	opts := DefaultOptions()
	opts.Backend = kv.BackendBolt

	coord, err := OpenWithOptions(dir, opts)
	require.NoError(t, err)
	id, err := coord.CreateSimpleSession("admin")
	require.NoError(t, err)
	mustQuery(t, coord, id, "CREATE SCHEMA s")
	mustQuery(t, coord, id, "CREATE GRAPH /s/g")
	mustQuery(t, coord, id, "SESSION SET GRAPH /s/g")
	mustQuery(t, coord, id, "INSERT (:Person {name:'Durable', age:1})")
	require.NoError(t, coord.Close())

	reopened, err := OpenWithOptions(dir, opts)
	require.NoError(t, err)
	defer reopened.Close()
	id2, err := reopened.CreateSimpleSession("admin")
	require.NoError(t, err)
	mustQuery(t, reopened, id2, "SESSION SET GRAPH /s/g")
	count := mustQuery(t, reopened, id2, "MATCH (p:Person) RETURN count(p)")
	assert.Equal(t, float64(1), firstValue(t, count, "count(p)").Number)
}

func TestAnalyzeAndExplain(t *testing.T) {
	coord := openTestCoordinator(t)

	info, err := coord.AnalyzeQuery("MATCH (p:Person) RETURN p")
	require.NoError(t, err)
	assert.Equal(t, "MATCH", info.QueryType)
	assert.True(t, info.IsReadOnly)

	info, err = coord.AnalyzeQuery("INSERT (:Person {name:'x'})")
	require.NoError(t, err)
	assert.False(t, info.IsReadOnly)

	plan, err := coord.ExplainQuery("MATCH (p:Person) RETURN p.age ORDER BY p.age DESC LIMIT 3")
	require.NoError(t, err)
	assert.True(t, strings.Contains(strings.Join(plan.Tree, " "), "TopK"))

	assert.True(t, coord.IsValidQuery("MATCH (p) RETURN p"))
	assert.False(t, coord.IsValidQuery("MATCH ("))
	assert.Error(t, coord.ValidateQuery("NOT A QUERY"))
}

func TestGraphTypeStrictEnforcement(t *testing.T) {
	opts := DefaultOptions()
	opts.Backend = kv.BackendMemory
	opts.Enforcement = exec.EnforceStrict
	coord, err := OpenWithOptions(t.TempDir(), opts)
	require.NoError(t, err)
	t.Cleanup(func() { coord.Close() })

	id, err := coord.CreateSimpleSession("admin")
	require.NoError(t, err)
	mustQuery(t, coord, id, "CREATE GRAPH TYPE person_t AS ( NODE Person (name STRING, age NUMBER) )")
	mustQuery(t, coord, id, "CREATE SCHEMA s")
	mustQuery(t, coord, id, "CREATE GRAPH /s/typed TYPED person_t")
	mustQuery(t, coord, id, "SESSION SET GRAPH /s/typed")

	// Conforming insert passes.
	mustQuery(t, coord, id, "INSERT (:Person {name:'ok', age:30})")

	// Wrong property type rejected under strict enforcement.
	_, err = coord.ProcessQuery("INSERT (:Person {name:'bad', age:'thirty'})", id)
	require.Error(t, err)
	assert.True(t, exec.IsKind(err, exec.KindValidation))

	// Undeclared label rejected.
	_, err = coord.ProcessQuery("INSERT (:Robot {name:'r2'})", id)
	assert.Error(t, err)
}

func TestSessionLifecycle(t *testing.T) {
	coord := openTestCoordinator(t)

	id, err := coord.CreateSimpleSession("admin")
	require.NoError(t, err)
	assert.Contains(t, coord.ListSessions(), id)

	require.NoError(t, coord.CloseSession(id))
	assert.Equal(t, 0, coord.SessionCount())

	_, err = coord.ProcessQuery("CALL gql.list_schemas()", id)
	assert.Error(t, err, "closed session must not execute queries")
}

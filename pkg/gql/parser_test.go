package gql

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDDLStatements(t *testing.T) {
	tests := []struct {
		input string
		kind  StatementKind
	}{
		{"CREATE SCHEMA social", KindCreateSchema},
		{"CREATE SCHEMA /social", KindCreateSchema},
		{"CREATE SCHEMA IF NOT EXISTS social", KindCreateSchema},
		{"DROP SCHEMA social", KindDropSchema},
		{"DROP SCHEMA IF EXISTS social", KindDropSchema},
		{"DROP SCHEMA social CASCADE", KindDropSchema},
		{"CREATE GRAPH /social/friends", KindCreateGraph},
		{"CREATE GRAPH IF NOT EXISTS /social/friends", KindCreateGraph},
		{"CREATE GRAPH /social/friends TYPED social_t", KindCreateGraph},
		{"DROP GRAPH /social/friends", KindDropGraph},
		{"DROP GRAPH IF EXISTS /social/friends CASCADE", KindDropGraph},
		{"CLEAR GRAPH /social/friends", KindClearGraph},
		{"TRUNCATE GRAPH /social/friends", KindTruncateGraph},
		{"CREATE GRAPH TYPE social_t", KindCreateGraphType},
		{"CREATE GRAPH TYPE social_t AS ( NODE Person (name STRING, age NUMBER), EDGE KNOWS FROM Person TO Person )", KindCreateGraphType},
		{"ALTER GRAPH TYPE social_t AS ( NODE Person (name STRING) )", KindAlterGraphType},
		{"DROP GRAPH TYPE social_t CASCADE", KindDropGraphType},
		{"CREATE USER carol PASSWORD 'secret'", KindCreateUser},
		{"DROP USER carol", KindDropUser},
		{"CREATE ROLE analyst", KindCreateRole},
		{"DROP ROLE analyst", KindDropRole},
		{"GRANT ROLE analyst TO carol", KindGrantRole},
		{"REVOKE ROLE analyst FROM carol", KindRevokeRole},
		{"CREATE INDEX byname ON /social/friends", KindCreateIndex},
		{"DROP INDEX byname", KindDropIndex},
		{"ALTER INDEX byname", KindAlterIndex},
		{"OPTIMIZE INDEX byname", KindOptimizeIndex},
		{"REINDEX byname", KindReindex},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			stmt, err := Parse(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.kind, stmt.Kind())
		})
	}
}

func TestParseTransactionStatements(t *testing.T) {
	stmt, err := Parse("START TRANSACTION")
	require.NoError(t, err)
	assert.Equal(t, KindStartTxn, stmt.Kind())

	stmt, err = Parse("START TRANSACTION ISOLATION LEVEL READ COMMITTED READ WRITE")
	require.NoError(t, err)
	start := stmt.(*StartTransactionStatement)
	assert.Equal(t, "READ COMMITTED", start.Isolation)
	assert.Equal(t, "READ WRITE", start.AccessMode)

	stmt, err = Parse("START TRANSACTION ISOLATION LEVEL SERIALIZABLE")
	require.NoError(t, err, "unsupported isolation levels parse; the runtime rejects them")
	assert.Equal(t, "SERIALIZABLE", stmt.(*StartTransactionStatement).Isolation)

	stmt, err = Parse("COMMIT")
	require.NoError(t, err)
	assert.Equal(t, KindCommit, stmt.Kind())

	stmt, err = Parse("ROLLBACK")
	require.NoError(t, err)
	assert.Equal(t, KindRollback, stmt.Kind())

	stmt, err = Parse("SET TRANSACTION ISOLATION LEVEL READ COMMITTED")
	require.NoError(t, err)
	assert.Equal(t, KindSetTxn, stmt.Kind())
}

func TestParseSessionSet(t *testing.T) {
	stmt, err := Parse("SESSION SET SCHEMA social")
	require.NoError(t, err)
	ss := stmt.(*SessionSetStatement)
	assert.Equal(t, "schema", ss.Target)
	assert.Equal(t, []string{"social"}, ss.Path.Segments)

	stmt, err = Parse("SESSION SET GRAPH /social/friends")
	require.NoError(t, err)
	ss = stmt.(*SessionSetStatement)
	assert.Equal(t, "graph", ss.Target)
	assert.Equal(t, []string{"social", "friends"}, ss.Path.Segments)
}

func TestParseInsert(t *testing.T) {
	stmt, err := Parse("INSERT (:Person {name:'Charlie', age:35})")
	require.NoError(t, err)
	insert := stmt.(*InsertStatement)
	require.Len(t, insert.Patterns, 1)
	node := insert.Patterns[0].Nodes[0]
	assert.Equal(t, []string{"Person"}, node.Labels)
	assert.Equal(t, []string{"name", "age"}, node.Properties.Keys)

	stmt, err = Parse("INSERT (a:Person {name:'A'})-[:KNOWS {since: 2019}]->(b:Person {name:'B'})")
	require.NoError(t, err)
	insert = stmt.(*InsertStatement)
	pattern := insert.Patterns[0]
	require.Len(t, pattern.Nodes, 2)
	require.Len(t, pattern.Edges, 1)
	assert.Equal(t, "KNOWS", pattern.Edges[0].Label)
	assert.Equal(t, "right", pattern.Edges[0].Direction)
	assert.Equal(t, "a", pattern.Nodes[0].Variable)
	assert.Equal(t, "b", pattern.Nodes[1].Variable)
}

func TestParseMatchVariants(t *testing.T) {
	tests := []struct {
		input string
		kind  StatementKind
	}{
		{"MATCH (p:Person) RETURN p", KindMatchReturn},
		{"MATCH (p:Person {name:'Alice'}) SET p.age = 31", KindMatchSet},
		{"MATCH (p:Person) REMOVE p.age", KindMatchRemove},
		{"MATCH (p:Person) DELETE p", KindMatchDelete},
		{"MATCH (p:Person) DETACH DELETE p", KindMatchDelete},
		{"MATCH (p:Person) INSERT (q:Copy {of: 'p'})", KindMatchInsert},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			stmt, err := Parse(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.kind, stmt.Kind())
		})
	}
}

func TestParseMatchReturnClauses(t *testing.T) {
	stmt, err := Parse("MATCH (p:Person) WHERE p.age > 30 RETURN p.age AS age, count(p) ORDER BY p.age DESC LIMIT 10")
	require.NoError(t, err)
	m := stmt.(*MatchStatement)
	require.NotNil(t, m.Where)
	require.Len(t, m.Return, 2)
	assert.Equal(t, "age", m.Return[0].Alias)
	require.Len(t, m.OrderBy, 1)
	assert.True(t, m.OrderBy[0].Descending)
	assert.Equal(t, 10, m.Limit)
}

func TestParseEdgeDirections(t *testing.T) {
	stmt, err := Parse("MATCH (a)-[:X]->(b) RETURN a")
	require.NoError(t, err)
	assert.Equal(t, "right", stmt.(*MatchStatement).Pattern.Edges[0].Direction)

	stmt, err = Parse("MATCH (a)<-[:X]-(b) RETURN a")
	require.NoError(t, err)
	assert.Equal(t, "left", stmt.(*MatchStatement).Pattern.Edges[0].Direction)

	stmt, err = Parse("MATCH (a)-[:X]-(b) RETURN a")
	require.NoError(t, err)
	assert.Equal(t, "undirected", stmt.(*MatchStatement).Pattern.Edges[0].Direction)
}

func TestParseCall(t *testing.T) {
	stmt, err := Parse("CALL gql.list_schemas()")
	require.NoError(t, err)
	call := stmt.(*CallStatement)
	assert.Equal(t, "gql", call.Namespace)
	assert.Equal(t, "list_schemas", call.Procedure)

	stmt, err = Parse("CALL gql.list_schemas() YIELD schema_name WHERE schema_name = 'x'")
	require.NoError(t, err)
	call = stmt.(*CallStatement)
	assert.Equal(t, []string{"schema_name"}, call.Yield)
	require.NotNil(t, call.Where)

	stmt, err = Parse("CALL my_proc('arg', 42)")
	require.NoError(t, err)
	call = stmt.(*CallStatement)
	assert.Empty(t, call.Namespace)
	assert.Len(t, call.Args, 2)
}

func TestParseExpressions(t *testing.T) {
	stmt, err := Parse("MATCH (p) WHERE p.age >= 21 AND NOT p.banned OR p.name <> 'x' RETURN p")
	require.NoError(t, err)
	assert.NotNil(t, stmt.(*MatchStatement).Where)

	stmt, err = Parse("MATCH (p) RETURN datetime('2024-01-15T10:30:00Z'), [1, 2, 3], {a: 1, b: 'two'}")
	require.NoError(t, err)
	assert.Len(t, stmt.(*MatchStatement).Return, 3)
}

func TestParseErrors(t *testing.T) {
	inputs := []string{
		"",
		"CREATE",
		"CREATE TABLE t",
		"MATCH (p:Person)",
		"INSERT (:Person {name:'unterminated)",
		"MATCH (a)-[:X]->",
		"CALL gql.list_schemas",
		"SELECT * FROM t",
	}
	for _, input := range inputs {
		t.Run(input, func(t *testing.T) {
			_, err := Parse(input)
			assert.Error(t, err)
		})
	}
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate("MATCH (p:Person) RETURN p"))
	assert.Error(t, Validate("MATCH ("))
}

func TestKeywordsAreCaseInsensitive(t *testing.T) {
	stmt, err := Parse("match (p:Person) return p")
	require.NoError(t, err)
	assert.Equal(t, KindMatchReturn, stmt.Kind())

	stmt, err = Parse("create schema Social")
	require.NoError(t, err)
	assert.Equal(t, KindCreateSchema, stmt.Kind())
}

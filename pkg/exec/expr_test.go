package exec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gqlite/gqlite/pkg/gql"
	"github.com/gqlite/gqlite/pkg/types"
)

func evalText(t *testing.T, expr string) (types.Value, error) {
	t.Helper()
	stmt, err := gql.Parse("MATCH (p) RETURN " + expr)
	require.NoError(t, err)
	return EvalLiteral(stmt.(*gql.MatchStatement).Return[0].Expr)
}

func TestEvalLiterals(t *testing.T) {
	v, err := evalText(t, "42")
	require.NoError(t, err)
	assert.Equal(t, float64(42), v.Number)

	v, err = evalText(t, "'hello'")
	require.NoError(t, err)
	assert.Equal(t, "hello", v.Str)

	v, err = evalText(t, "true")
	require.NoError(t, err)
	assert.True(t, v.Bool)

	v, err = evalText(t, "null")
	require.NoError(t, err)
	assert.True(t, v.IsNull())

	v, err = evalText(t, "[1, 'two', false]")
	require.NoError(t, err)
	require.Equal(t, types.KindList, v.Kind)
	assert.Len(t, v.List, 3)
}

func TestEvalArithmetic(t *testing.T) {
	v, err := evalText(t, "2 + 3 * 4")
	require.NoError(t, err)
	assert.Equal(t, float64(14), v.Number)

	v, err = evalText(t, "(2 + 3) * 4")
	require.NoError(t, err)
	assert.Equal(t, float64(20), v.Number)

	_, err = evalText(t, "1 / 0")
	require.Error(t, err)
	assert.True(t, IsKind(err, KindExpression))
}

func TestEvalDatetimeValidation(t *testing.T) {
	v, err := evalText(t, "datetime('2024-01-15T10:30:00Z')")
	require.NoError(t, err)
	assert.Equal(t, types.KindTemporal, v.Kind)

	// A bare date is not a valid datetime; this failure is what triggers
	// the SET atomicity abort.
	_, err = evalText(t, "datetime('1992-05-15')")
	require.Error(t, err)
	assert.True(t, IsKind(err, KindExpression))

	v, err = evalText(t, "date('1992-05-15')")
	require.NoError(t, err)
	assert.Equal(t, types.KindTemporal, v.Kind)
}

func TestEvalScalarFunctions(t *testing.T) {
	tests := []struct {
		expr string
		want types.Value
	}{
		{"upper('abc')", types.NewString("ABC")},
		{"lower('ABC')", types.NewString("abc")},
		{"trim('  x  ')", types.NewString("x")},
		{"char_length('héllo')", types.NewNumber(5)},
		{"abs(0 - 4)", types.NewNumber(4)},
		{"ceil(1.2)", types.NewNumber(2)},
		{"floor(1.8)", types.NewNumber(1)},
		{"sqrt(9)", types.NewNumber(3)},
		{"coalesce(null, 'fallback')", types.NewString("fallback")},
		{"nullif(1, 1)", types.Null()},
		{"nullif(1, 2)", types.NewNumber(1)},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			v, err := evalText(t, tt.expr)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(v), "want %v, got %v", tt.want, v)
		})
	}

	_, err := evalText(t, "no_such_fn(1)")
	assert.Error(t, err)
}

func TestEvalNullPropagation(t *testing.T) {
	v, err := evalText(t, "null = null")
	require.NoError(t, err)
	assert.True(t, v.IsNull(), "null comparisons yield null")

	v, err = evalText(t, "missing_var = 1")
	require.NoError(t, err)
	assert.True(t, v.IsNull(), "unbound identifiers evaluate to null")
}

func TestMatchBindingsAgainstGraph(t *testing.T) {
	g := types.NewGraph()
	require.NoError(t, g.AddNode(&types.Node{
		ID: "a", Labels: []string{"Person"},
		Properties: map[string]types.Value{"name": types.NewString("A"), "age": types.NewNumber(30)},
	}))
	require.NoError(t, g.AddNode(&types.Node{
		ID: "b", Labels: []string{"Person"},
		Properties: map[string]types.Value{"name": types.NewString("B"), "age": types.NewNumber(40)},
	}))
	require.NoError(t, g.AddEdge(&types.Edge{ID: "e", From: "a", To: "b", Label: "KNOWS"}))

	stmt, err := gql.Parse("MATCH (x:Person)-[r:KNOWS]->(y:Person) RETURN x, y")
	require.NoError(t, err)
	bindings, err := matchBindings(g, stmt.(*gql.MatchStatement).Pattern, nil)
	require.NoError(t, err)
	require.Len(t, bindings, 1)
	assert.Equal(t, "a", bindings[0]["x"].Node.ID)
	assert.Equal(t, "b", bindings[0]["y"].Node.ID)
	assert.Equal(t, "e", bindings[0]["r"].Edge.ID)

	// Undirected matches both orientations.
	stmt, err = gql.Parse("MATCH (x:Person)-[:KNOWS]-(y:Person) RETURN x")
	require.NoError(t, err)
	bindings, err = matchBindings(g, stmt.(*gql.MatchStatement).Pattern, nil)
	require.NoError(t, err)
	assert.Len(t, bindings, 2)

	// WHERE filters bindings.
	stmt, err = gql.Parse("MATCH (x:Person) WHERE x.age > 35 RETURN x")
	require.NoError(t, err)
	bindings, err = matchBindings(g, stmt.(*gql.MatchStatement).Pattern, stmt.(*gql.MatchStatement).Where)
	require.NoError(t, err)
	require.Len(t, bindings, 1)
	assert.Equal(t, "b", bindings[0]["x"].Node.ID)
}

func TestEvalMatchReturnMemoryBudget(t *testing.T) {
	g := types.NewGraph()
	for i := 0; i < 50; i++ {
		require.NoError(t, g.AddNode(&types.Node{
			ID: types.ContentNodeID([]string{"N"}, map[string]types.Value{"i": types.NewNumber(float64(i))}),
			Labels: []string{"N"},
			Properties: map[string]types.Value{"i": types.NewNumber(float64(i))},
		}))
	}
	stmt, err := gql.Parse("MATCH (n:N) RETURN n.i")
	require.NoError(t, err)

	ctx := &Context{MemoryBudgetBytes: 64}
	_, err = EvalMatchReturn(ctx, g, stmt.(*gql.MatchStatement))
	require.Error(t, err)
	assert.True(t, IsKind(err, KindMemoryLimit))
}

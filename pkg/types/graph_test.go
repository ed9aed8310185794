package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContentNodeIDDeterministic(t *testing.T) {
	props := map[string]Value{
		"name": NewString("Charlie"),
		"age":  NewNumber(35),
	}
	id1 := ContentNodeID([]string{"Person"}, props)
	id2 := ContentNodeID([]string{"Person"}, map[string]Value{
		"age":  NewNumber(35),
		"name": NewString("Charlie"),
	})
	assert.Equal(t, id1, id2, "identical content must hash to the identical id")

	id3 := ContentNodeID([]string{"Person"}, map[string]Value{
		"name": NewString("Charlie"),
		"age":  NewNumber(36),
	})
	assert.NotEqual(t, id1, id3)
}

func TestAddEdgeReferentialIntegrity(t *testing.T) {
	g := NewGraph()
	require.NoError(t, g.AddNode(&Node{ID: "a", Properties: map[string]Value{}}))

	err := g.AddEdge(&Edge{ID: "e1", From: "a", To: "missing", Label: "KNOWS"})
	assert.Error(t, err, "edge to a missing node must be rejected")

	require.NoError(t, g.AddNode(&Node{ID: "b", Properties: map[string]Value{}}))
	assert.NoError(t, g.AddEdge(&Edge{ID: "e1", From: "a", To: "b", Label: "KNOWS"}))
}

func TestRemoveNodeCleansUpEdges(t *testing.T) {
	g := NewGraph()
	require.NoError(t, g.AddNode(&Node{ID: "a"}))
	require.NoError(t, g.AddNode(&Node{ID: "b"}))
	require.NoError(t, g.AddEdge(&Edge{ID: "e1", From: "a", To: "b", Label: "KNOWS"}))
	require.NoError(t, g.AddEdge(&Edge{ID: "e2", From: "b", To: "a", Label: "KNOWS"}))

	removed := g.RemoveNode("a")
	assert.Len(t, removed, 2)
	assert.Equal(t, 0, g.EdgeCount())
	assert.Equal(t, 1, g.NodeCount())
}

func TestSerializeRoundTrip(t *testing.T) {
	g := NewGraph()
	require.NoError(t, g.AddNode(&Node{
		ID:     "n1",
		Labels: []string{"Person", "Employee"},
		Properties: map[string]Value{
			"name":  NewString("Alice"),
			"age":   NewNumber(30),
			"tags":  NewList(NewString("x"), NewString("y")),
			"extra": NewMap(map[string]Value{"nested": NewBool(true)}),
		},
	}))
	require.NoError(t, g.AddNode(&Node{ID: "n2", Labels: []string{"Person"}}))
	require.NoError(t, g.AddEdge(&Edge{
		ID: "e1", From: "n1", To: "n2", Label: "KNOWS",
		Properties: map[string]Value{"since": NewNumber(2020)},
	}))

	data, err := g.Serialize()
	require.NoError(t, err)

	restored, err := DeserializeGraph(data)
	require.NoError(t, err)
	assert.True(t, g.Equal(restored), "save-then-load must yield an equal graph")

	// Deterministic output: serializing twice yields identical bytes.
	data2, err := g.Serialize()
	require.NoError(t, err)
	assert.Equal(t, data, data2)

	data3, err := restored.Serialize()
	require.NoError(t, err)
	assert.Equal(t, data, data3)
}

func TestCloneIsValueCopy(t *testing.T) {
	g := NewGraph()
	require.NoError(t, g.AddNode(&Node{
		ID: "n1", Labels: []string{"Person"},
		Properties: map[string]Value{"age": NewNumber(30)},
	}))

	clone := g.Clone()
	clone.Nodes["n1"].SetProperty("age", NewNumber(99))
	clone.Nodes["n1"].AddLabel("Changed")

	assert.Equal(t, float64(30), g.Nodes["n1"].Property("age").Number)
	assert.False(t, g.Nodes["n1"].HasLabel("Changed"))
}

func TestUnionDeduplicatesByID(t *testing.T) {
	g1 := NewGraph()
	require.NoError(t, g1.AddNode(&Node{ID: "a"}))
	require.NoError(t, g1.AddNode(&Node{ID: "b"}))
	require.NoError(t, g1.AddEdge(&Edge{ID: "e1", From: "a", To: "b", Label: "X"}))

	g2 := NewGraph()
	require.NoError(t, g2.AddNode(&Node{ID: "b"}))
	require.NoError(t, g2.AddNode(&Node{ID: "c"}))

	union := g1.Union(g2)
	assert.Equal(t, 3, union.NodeCount())
	assert.Equal(t, 1, union.EdgeCount())
}

func TestValidatePathSegment(t *testing.T) {
	tests := []struct {
		name    string
		segment string
		wantErr bool
	}{
		{"valid name", "social", false},
		{"valid with underscore", "my_graph", false},
		{"empty", "", true},
		{"whitespace only", "   ", true},
		{"contains space", "my graph", true},
		{"digit prefix", "1graph", true},
		{"digit inside is fine", "graph1", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePathSegment(tt.segment)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSplitGraphPath(t *testing.T) {
	schema, graph, err := SplitGraphPath("/social/friends")
	require.NoError(t, err)
	assert.Equal(t, "social", schema)
	assert.Equal(t, "friends", graph)

	_, _, err = SplitGraphPath("/social")
	assert.Error(t, err)

	_, _, err = SplitGraphPath("/social/friends/extra")
	assert.Error(t, err)
}

func TestValueCompare(t *testing.T) {
	assert.Equal(t, -1, NewNumber(25).Compare(NewNumber(30)))
	assert.Equal(t, 1, NewNumber(35).Compare(NewNumber(30)))
	assert.Equal(t, 0, NewNumber(30).Compare(NewNumber(30)))
	assert.Equal(t, -1, NewString("a").Compare(NewString("b")))
	// Null sorts last.
	assert.Equal(t, 1, Null().Compare(NewNumber(1)))
	assert.Equal(t, -1, NewNumber(1).Compare(Null()))
}

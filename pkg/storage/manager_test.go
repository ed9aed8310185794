package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gqlite/gqlite/pkg/kv"
	"github.com/gqlite/gqlite/pkg/types"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(kv.NewMemoryDriver())
	require.NoError(t, err)
	return m
}

func sampleGraph(t *testing.T) *types.Graph {
	t.Helper()
	g := types.NewGraph()
	require.NoError(t, g.AddNode(&types.Node{
		ID: "n1", Labels: []string{"Person"},
		Properties: map[string]types.Value{"name": types.NewString("Alice")},
	}))
	require.NoError(t, g.AddNode(&types.Node{ID: "n2", Labels: []string{"Person"}}))
	require.NoError(t, g.AddEdge(&types.Edge{ID: "e1", From: "n1", To: "n2", Label: "KNOWS"}))
	return g
}

func TestSaveAndGetGraph(t *testing.T) {
	m := newTestManager(t)
	g := sampleGraph(t)

	require.NoError(t, m.SaveGraph("/s/g", g))

	loaded, err := m.GetGraph("/s/g")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.True(t, g.Equal(loaded))
}

func TestGetGraphMissing(t *testing.T) {
	m := newTestManager(t)
	g, err := m.GetGraph("/nope/nothing")
	require.NoError(t, err)
	assert.Nil(t, g)
}

func TestGetGraphReturnsValueCopy(t *testing.T) {
	m := newTestManager(t)
	require.NoError(t, m.SaveGraph("/s/g", sampleGraph(t)))

	first, err := m.GetGraph("/s/g")
	require.NoError(t, err)
	first.Nodes["n1"].SetProperty("name", types.NewString("Mallory"))

	// The mutation is invisible until the caller saves.
	second, err := m.GetGraph("/s/g")
	require.NoError(t, err)
	assert.Equal(t, "Alice", second.Nodes["n1"].Property("name").Str)
}

func TestDeleteGraph(t *testing.T) {
	m := newTestManager(t)
	require.NoError(t, m.SaveGraph("/s/g", sampleGraph(t)))
	require.NoError(t, m.DeleteGraph("/s/g"))

	g, err := m.GetGraph("/s/g")
	require.NoError(t, err)
	assert.Nil(t, g)

	exists, err := m.HasGraph("/s/g")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestListGraphPaths(t *testing.T) {
	m := newTestManager(t)
	require.NoError(t, m.SaveGraph("/a/one", types.NewGraph()))
	require.NoError(t, m.SaveGraph("/a/two", types.NewGraph()))
	require.NoError(t, m.SaveGraph("/b/three", types.NewGraph()))

	all, err := m.ListGraphPaths()
	require.NoError(t, err)
	assert.Equal(t, []string{"/a/one", "/a/two", "/b/three"}, all)

	inA, err := m.ListGraphPathsInSchema("a")
	require.NoError(t, err)
	assert.Equal(t, []string{"/a/one", "/a/two"}, inA)
}

func TestSaveGraphRejectsInvalidPath(t *testing.T) {
	m := newTestManager(t)
	assert.Error(t, m.SaveGraph("no-slash", types.NewGraph()))
	assert.Error(t, m.SaveGraph("/onlyschema", types.NewGraph()))
	assert.Error(t, m.SaveGraph("/1bad/graph", types.NewGraph()))
}

func TestSurvivesReopenOnBolt(t *testing.T) {
	dir := t.TempDir()

	driver, err := kv.OpenBolt(dir)
	require.NoError(t, err)
	m, err := NewManager(driver)
	require.NoError(t, err)
	g := sampleGraph(t)
	require.NoError(t, m.SaveGraph("/s/g", g))
	require.NoError(t, m.Close())

	driver2, err := kv.OpenBolt(dir)
	require.NoError(t, err)
	m2, err := NewManager(driver2)
	require.NoError(t, err)
	defer m2.Close()

	loaded, err := m2.GetGraph("/s/g")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.True(t, g.Equal(loaded))
}

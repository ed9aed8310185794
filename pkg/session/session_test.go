package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gqlite/gqlite/pkg/catalog"
	"github.com/gqlite/gqlite/pkg/kv"
	"github.com/gqlite/gqlite/pkg/storage"
	"github.com/gqlite/gqlite/pkg/txn"
)

func newManagers(t *testing.T) (*storage.Manager, *catalog.Manager, *txn.Manager) {
	t.Helper()
	store, err := storage.NewManager(kv.NewMemoryDriver())
	require.NoError(t, err)
	tree, err := store.CatalogTree()
	require.NoError(t, err)
	catalogMgr, err := catalog.NewManager(tree)
	require.NoError(t, err)
	txns, err := txn.NewManager(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { txns.Close() })
	return store, catalogMgr, txns
}

func TestInstanceProviderLifecycle(t *testing.T) {
	store, catalogMgr, txns := newManagers(t)
	p := NewInstanceProvider(store, catalogMgr, txns)

	id, err := p.CreateSession("alice", []string{"user"}, NewPermissionCache("read", "write"))
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.Equal(t, 1, p.SessionCount())

	s := p.GetSession(id)
	require.NotNil(t, s)
	assert.Equal(t, "alice", s.Username())
	assert.True(t, s.Permissions().Allows("read"))
	assert.False(t, s.Permissions().Allows("drop"))

	require.NoError(t, p.RemoveSession(id))
	assert.Nil(t, p.GetSession(id))
	assert.Equal(t, 0, p.SessionCount())
	assert.Error(t, p.RemoveSession(id))
}

func TestCreateSessionRequiresUsername(t *testing.T) {
	store, catalogMgr, txns := newManagers(t)
	p := NewInstanceProvider(store, catalogMgr, txns)
	_, err := p.CreateSession("", nil, NewPermissionCache())
	assert.Error(t, err)
}

func TestInstanceProvidersAreIsolated(t *testing.T) {
	store, catalogMgr, txns := newManagers(t)
	p1 := NewInstanceProvider(store, catalogMgr, txns)
	p2 := NewInstanceProvider(store, catalogMgr, txns)

	id1, err := p1.CreateSession("u1", nil, NewPermissionCache())
	require.NoError(t, err)
	id2, err := p2.CreateSession("u2", nil, NewPermissionCache())
	require.NoError(t, err)

	assert.NotNil(t, p1.GetSession(id1))
	assert.Nil(t, p1.GetSession(id2))
	assert.NotNil(t, p2.GetSession(id2))
	assert.Nil(t, p2.GetSession(id1))
	assert.Equal(t, 1, p1.SessionCount())
	assert.Equal(t, 1, p2.SessionCount())
}

func TestGlobalProvidersShareSessions(t *testing.T) {
	ResetGlobal()
	t.Cleanup(ResetGlobal)

	store, catalogMgr, txns := newManagers(t)
	p1 := NewGlobalProvider(store, catalogMgr, txns)
	p2 := NewGlobalProvider(store, catalogMgr, txns)

	id, err := p1.CreateSession("shared", nil, NewPermissionCache())
	require.NoError(t, err)

	// Sessions created through one coordinator are visible to another.
	s := p2.GetSession(id)
	require.NotNil(t, s)
	assert.Equal(t, "shared", s.Username())
	assert.Equal(t, 1, p2.SessionCount())
}

func TestInvalidateSessionsForGraph(t *testing.T) {
	store, catalogMgr, txns := newManagers(t)
	p := NewInstanceProvider(store, catalogMgr, txns)

	id1, err := p.CreateSession("u1", nil, NewPermissionCache())
	require.NoError(t, err)
	id2, err := p.CreateSession("u2", nil, NewPermissionCache())
	require.NoError(t, err)

	p.GetSession(id1).SetCurrentGraph("/s/dropped")
	p.GetSession(id2).SetCurrentGraph("/s/other")

	invalidated := p.InvalidateSessionsForGraph("/s/dropped")
	assert.Equal(t, 1, invalidated)
	assert.Empty(t, p.GetSession(id1).CurrentGraph())
	assert.Equal(t, "/s/other", p.GetSession(id2).CurrentGraph())
}

func TestCleanupExpired(t *testing.T) {
	store, catalogMgr, txns := newManagers(t)
	p := NewInstanceProvider(store, catalogMgr, txns)

	idle, err := p.CreateSession("idle", nil, NewPermissionCache())
	require.NoError(t, err)

	time.Sleep(10 * time.Millisecond)
	fresh, err := p.CreateSession("fresh", nil, NewPermissionCache())
	require.NoError(t, err)
	p.GetSession(fresh).Touch()

	removed := p.CleanupExpired(5 * time.Millisecond)
	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, p.SessionCount())
	assert.Nil(t, p.GetSession(idle))
	assert.NotNil(t, p.GetSession(fresh))
}

func TestProviderAccessors(t *testing.T) {
	store, catalogMgr, txns := newManagers(t)
	p := NewInstanceProvider(store, catalogMgr, txns)
	assert.Same(t, store, p.Storage())
	assert.Same(t, catalogMgr, p.Catalog())
	assert.Same(t, txns, p.Transactions())
}

func TestSessionSchemaAndGraphPins(t *testing.T) {
	store, catalogMgr, txns := newManagers(t)
	p := NewInstanceProvider(store, catalogMgr, txns)
	id, err := p.CreateSession("u", nil, NewPermissionCache())
	require.NoError(t, err)

	s := p.GetSession(id)
	assert.Empty(t, s.CurrentSchema())
	assert.Empty(t, s.CurrentGraph())

	s.SetCurrentSchema("/social")
	s.SetCurrentGraph("/social/friends")
	assert.Equal(t, "/social", s.CurrentSchema())
	assert.Equal(t, "/social/friends", s.CurrentGraph())

	assert.False(t, s.ClearGraphIfCurrent("/social/other"))
	assert.True(t, s.ClearGraphIfCurrent("/social/friends"))
	assert.Empty(t, s.CurrentGraph())
}

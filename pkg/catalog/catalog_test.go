package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gqlite/gqlite/pkg/kv"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	driver := kv.NewMemoryDriver()
	tree, err := driver.OpenTree("catalogs")
	require.NoError(t, err)
	m, err := NewManager(tree)
	require.NoError(t, err)
	return m
}

func TestSchemaCreateDropList(t *testing.T) {
	m := newTestManager(t)

	_, err := m.Execute("schema", Operation{Kind: OpCreate, Entity: EntitySchema, Name: "social"})
	require.NoError(t, err)

	// Duplicate create fails with already-exists.
	_, err = m.Execute("schema", Operation{Kind: OpCreate, Entity: EntitySchema, Name: "social"})
	assert.True(t, IsAlreadyExists(err))

	resp, err := m.QueryReadOnly("schema", Operation{Kind: OpQuery, Entity: EntitySchema, Name: "list"})
	require.NoError(t, err)
	require.Len(t, resp.Rows, 1)
	assert.Equal(t, "social", resp.Rows[0]["schema_name"])
	assert.Equal(t, "/social", resp.Rows[0]["schema_path"])

	_, err = m.Execute("schema", Operation{Kind: OpDrop, Entity: EntitySchema, Name: "social"})
	require.NoError(t, err)

	_, err = m.Execute("schema", Operation{Kind: OpDrop, Entity: EntitySchema, Name: "social"})
	assert.True(t, IsNotFound(err))
}

func TestSchemaNameValidation(t *testing.T) {
	m := newTestManager(t)
	for _, bad := range []string{"", "   ", "has space", "1digit"} {
		_, err := m.Execute("schema", Operation{Kind: OpCreate, Entity: EntitySchema, Name: bad})
		assert.Error(t, err, "name %q must be rejected", bad)
	}
}

func TestCatalogVersionBumpsOnMutation(t *testing.T) {
	m := newTestManager(t)
	before := m.Version()

	_, err := m.Execute("schema", Operation{Kind: OpCreate, Entity: EntitySchema, Name: "s1"})
	require.NoError(t, err)
	assert.Greater(t, m.Version(), before)

	// Read-only queries do not bump the version.
	after := m.Version()
	_, err = m.QueryReadOnly("schema", Operation{Kind: OpQuery, Entity: EntitySchema, Name: "list"})
	require.NoError(t, err)
	assert.Equal(t, after, m.Version())
}

func TestSystemRoleInvariants(t *testing.T) {
	m := newTestManager(t)

	// System roles cannot be dropped.
	for _, role := range []string{RoleAdmin, RoleUser} {
		_, err := m.Execute("security", Operation{Kind: OpDrop, Entity: EntityRole, Name: role})
		assert.Error(t, err, "dropping system role %q must fail", role)
	}

	_, err := m.Execute("security", Operation{Kind: OpCreate, Entity: EntityUser, Name: "admin"})
	require.NoError(t, err)
	_, err = m.Execute("security", Operation{
		Kind: OpUpdate, Entity: EntityUser, Name: "admin",
		Params: map[string]any{"add_roles": []any{RoleAdmin}},
	})
	require.NoError(t, err)

	// The user role cannot be revoked from anyone.
	_, err = m.Execute("security", Operation{
		Kind: OpUpdate, Entity: EntityUser, Name: "admin",
		Params: map[string]any{"remove_roles": []any{RoleUser}},
	})
	assert.Error(t, err)

	// The admin role cannot be revoked from the admin user.
	_, err = m.Execute("security", Operation{
		Kind: OpUpdate, Entity: EntityUser, Name: "admin",
		Params: map[string]any{"remove_roles": []any{RoleAdmin}},
	})
	assert.Error(t, err)
}

func TestUserRoleLifecycle(t *testing.T) {
	m := newTestManager(t)

	_, err := m.Execute("security", Operation{Kind: OpCreate, Entity: EntityUser, Name: "carol"})
	require.NoError(t, err)

	// Every user is implicitly granted the user role.
	resp, err := m.QueryReadOnly("security", Operation{
		Kind: OpQuery, Entity: EntityUser, Name: "get",
		Params: map[string]any{"name": "carol"},
	})
	require.NoError(t, err)
	assert.Contains(t, resp.Data["roles"], any(RoleUser))

	_, err = m.Execute("security", Operation{Kind: OpCreate, Entity: EntityRole, Name: "analyst"})
	require.NoError(t, err)
	_, err = m.Execute("security", Operation{
		Kind: OpUpdate, Entity: EntityUser, Name: "carol",
		Params: map[string]any{"add_roles": []any{"analyst"}},
	})
	require.NoError(t, err)

	// Dropping a custom role removes it from members.
	_, err = m.Execute("security", Operation{Kind: OpDrop, Entity: EntityRole, Name: "analyst"})
	require.NoError(t, err)
	resp, err = m.QueryReadOnly("security", Operation{
		Kind: OpQuery, Entity: EntityUser, Name: "get",
		Params: map[string]any{"name": "carol"},
	})
	require.NoError(t, err)
	assert.NotContains(t, resp.Data["roles"], any("analyst"))

	// Granting an unknown role fails.
	_, err = m.Execute("security", Operation{
		Kind: OpUpdate, Entity: EntityUser, Name: "carol",
		Params: map[string]any{"add_roles": []any{"ghost"}},
	})
	assert.True(t, IsNotFound(err))
}

func TestGraphTypeVersioningAndDrop(t *testing.T) {
	m := newTestManager(t)

	specs := map[string]any{
		"node_types": []any{map[string]any{
			"label":      "Person",
			"properties": map[string]any{"name": "STRING"},
		}},
	}
	_, err := m.Execute("graph_type", Operation{
		Kind: OpCreate, Entity: EntityGraphType, Name: "social_t", Params: specs,
	})
	require.NoError(t, err)

	resp, err := m.Execute("graph_type", Operation{
		Kind: OpUpdate, Entity: EntityGraphType, Name: "social_t", Params: specs,
	})
	require.NoError(t, err)
	assert.Equal(t, "1.1.0", resp.Data["version"])

	// A graph referencing the type blocks the drop without cascade.
	_, err = m.Execute("graph_metadata", Operation{
		Kind: OpCreate, Entity: EntityGraph, Name: "s/g",
		Params: map[string]any{"graph_type": "social_t"},
	})
	require.NoError(t, err)

	_, err = m.Execute("graph_type", Operation{
		Kind: OpDrop, Entity: EntityGraphType, Name: "social_t",
	})
	assert.Error(t, err)

	_, err = m.Execute("graph_type", Operation{
		Kind: OpDrop, Entity: EntityGraphType, Name: "social_t", Cascade: true,
	})
	assert.NoError(t, err)
}

func TestGraphMetadataClearStampsModification(t *testing.T) {
	m := newTestManager(t)
	_, err := m.Execute("graph_metadata", Operation{Kind: OpCreate, Entity: EntityGraph, Name: "s/g"})
	require.NoError(t, err)

	_, err = m.Execute("graph_metadata", Operation{
		Kind: OpUpdate, Entity: EntityGraph, Name: "s/g",
		Params: map[string]any{"operation": "clear"},
	})
	require.NoError(t, err)

	_, err = m.Execute("graph_metadata", Operation{
		Kind: OpUpdate, Entity: EntityGraph, Name: "s/g",
		Params: map[string]any{"operation": "bogus"},
	})
	assert.Error(t, err)
}

func TestPersistAndReloadRoundTrip(t *testing.T) {
	driver := kv.NewMemoryDriver()
	tree, err := driver.OpenTree("catalogs")
	require.NoError(t, err)

	m1, err := NewManager(tree)
	require.NoError(t, err)
	_, err = m1.Execute("schema", Operation{Kind: OpCreate, Entity: EntitySchema, Name: "kept"})
	require.NoError(t, err)
	_, err = m1.Execute("security", Operation{Kind: OpCreate, Entity: EntityUser, Name: "dana"})
	require.NoError(t, err)
	require.NoError(t, m1.PersistAll())

	// A fresh manager over the same tree loads the equivalent state.
	m2, err := NewManager(tree)
	require.NoError(t, err)
	require.NoError(t, m2.LoadAll())

	resp, err := m2.QueryReadOnly("schema", Operation{Kind: OpQuery, Entity: EntitySchema, Name: "list"})
	require.NoError(t, err)
	require.Len(t, resp.Rows, 1)
	assert.Equal(t, "kept", resp.Rows[0]["schema_name"])

	resp, err = m2.QueryReadOnly("security", Operation{
		Kind: OpQuery, Entity: EntityUser, Name: "get",
		Params: map[string]any{"name": "dana"},
	})
	require.NoError(t, err)
	assert.Equal(t, "dana", resp.Data["username"])
}

func TestUnknownProviderFails(t *testing.T) {
	m := newTestManager(t)
	_, err := m.Execute("timeseries", Operation{Kind: OpCreate})
	assert.True(t, IsNotFound(err))
}

func TestReadOnlyFallbackRejectsMutations(t *testing.T) {
	m := newTestManager(t)
	_, err := m.QueryReadOnly("index", Operation{Kind: OpCreate, Entity: EntityIndex, Name: "x"})
	assert.Error(t, err)
}

package exec

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/gqlite/gqlite/pkg/cache"
	"github.com/gqlite/gqlite/pkg/catalog"
	"github.com/gqlite/gqlite/pkg/gql"
	"github.com/gqlite/gqlite/pkg/kv"
	"github.com/gqlite/gqlite/pkg/log"
	"github.com/gqlite/gqlite/pkg/txn"
	"github.com/gqlite/gqlite/pkg/types"
)

// DDLStatementFor dispatches a parsed DDL statement to its executor.
func DDLStatementFor(stmt gql.Statement) (DDLExecutor, error) {
	switch s := stmt.(type) {
	case *gql.CreateSchemaStatement:
		return &CreateSchemaExecutor{stmt: s}, nil
	case *gql.DropSchemaStatement:
		return &DropSchemaExecutor{stmt: s}, nil
	case *gql.CreateGraphStatement:
		return &CreateGraphExecutor{stmt: s}, nil
	case *gql.DropGraphStatement:
		return &DropGraphExecutor{stmt: s}, nil
	case *gql.ClearGraphStatement:
		return &ClearGraphExecutor{stmt: s}, nil
	case *gql.TruncateGraphStatement:
		return &TruncateGraphExecutor{stmt: s}, nil
	case *gql.CreateGraphTypeStatement:
		return &CreateGraphTypeExecutor{stmt: s}, nil
	case *gql.AlterGraphTypeStatement:
		return &AlterGraphTypeExecutor{stmt: s}, nil
	case *gql.DropGraphTypeStatement:
		return &DropGraphTypeExecutor{stmt: s}, nil
	case *gql.CreateUserStatement:
		return &CreateUserExecutor{stmt: s}, nil
	case *gql.DropUserStatement:
		return &DropUserExecutor{stmt: s}, nil
	case *gql.CreateRoleStatement:
		return &CreateRoleExecutor{stmt: s}, nil
	case *gql.DropRoleStatement:
		return &DropRoleExecutor{stmt: s}, nil
	case *gql.GrantRoleStatement:
		return &GrantRoleExecutor{stmt: s}, nil
	case *gql.RevokeRoleStatement:
		return &RevokeRoleExecutor{stmt: s}, nil
	case *gql.IndexStatement:
		return &IndexExecutor{stmt: s}, nil
	}
	return nil, Errorf(KindRuntime, "statement %T is not a DDL statement", stmt)
}

// --- CREATE SCHEMA ---

type CreateSchemaExecutor struct {
	stmt *gql.CreateSchemaStatement
}

func (e *CreateSchemaExecutor) OperationType() txn.OperationType { return txn.OpCreateSchema }

func (e *CreateSchemaExecutor) OperationDescription(_ *Context) string {
	if e.stmt.IfNotExists {
		return "CREATE SCHEMA IF NOT EXISTS " + e.stmt.Path.String()
	}
	return "CREATE SCHEMA " + e.stmt.Path.String()
}

func (e *CreateSchemaExecutor) ExecuteDDL(ctx *Context) (string, int, error) {
	name, err := ctx.ResolveSchemaName(e.stmt.Path)
	if err != nil {
		return "", 0, err
	}
	if err := types.ValidatePathSegment(name); err != nil {
		return "", 0, Errorf(KindValidation, "invalid schema name: %v", err)
	}

	_, err = ctx.Catalog.Execute("schema", catalog.Operation{
		Kind:   catalog.OpCreate,
		Entity: catalog.EntitySchema,
		Name:   name,
	})
	if err != nil {
		if catalog.IsAlreadyExists(err) && e.stmt.IfNotExists {
			return fmt.Sprintf("Schema '%s' already exists (if not exists)", name), 0, nil
		}
		if catalog.IsAlreadyExists(err) {
			return "", 0, Errorf(KindCatalog, "schema '%s' already exists", name)
		}
		return "", 0, Errorf(KindCatalog, "failed to create schema '%s': %v", name, err)
	}

	persistCatalog(ctx, "schema")
	if ctx.Cache != nil {
		ctx.Cache.Invalidate(cache.Event{Type: cache.EventSchemaCreated, Schema: name})
	}
	return fmt.Sprintf("Schema '%s' created", name), 1, nil
}

// --- DROP SCHEMA ---

type DropSchemaExecutor struct {
	stmt *gql.DropSchemaStatement
}

func (e *DropSchemaExecutor) OperationType() txn.OperationType { return txn.OpDropSchema }

func (e *DropSchemaExecutor) OperationDescription(_ *Context) string {
	return "DROP SCHEMA " + e.stmt.Path.String()
}

func (e *DropSchemaExecutor) ExecuteDDL(ctx *Context) (string, int, error) {
	name, err := ctx.ResolveSchemaName(e.stmt.Path)
	if err != nil {
		return "", 0, err
	}

	// Graphs under the schema block the drop unless CASCADE.
	graphs, err := ctx.Storage.ListGraphPathsInSchema(name)
	if err != nil {
		return "", 0, Errorf(KindStorage, "failed to list graphs in schema '%s': %v", name, err)
	}
	if len(graphs) > 0 && !e.stmt.Cascade {
		return "", 0, Errorf(KindCatalog,
			"schema '%s' contains %d graph(s); use CASCADE to drop them too", name, len(graphs))
	}
	for _, graphPath := range graphs {
		if err := dropGraphEverywhere(ctx, graphPath); err != nil {
			return "", 0, err
		}
	}

	_, err = ctx.Catalog.Execute("schema", catalog.Operation{
		Kind:   catalog.OpDrop,
		Entity: catalog.EntitySchema,
		Name:   name,
	})
	if err != nil {
		if catalog.IsNotFound(err) && e.stmt.IfExists {
			return fmt.Sprintf("Schema '%s' does not exist (if exists)", name), 0, nil
		}
		if catalog.IsNotFound(err) {
			return "", 0, Errorf(KindNotFound, "schema '%s' not found", name)
		}
		return "", 0, Errorf(KindCatalog, "failed to drop schema '%s': %v", name, err)
	}

	persistCatalog(ctx, "schema")
	if ctx.Cache != nil {
		ctx.Cache.Invalidate(cache.Event{Type: cache.EventSchemaDropped, Schema: name})
	}
	return fmt.Sprintf("Schema '%s' dropped", name), 1, nil
}

// --- CREATE GRAPH ---

type CreateGraphExecutor struct {
	stmt *gql.CreateGraphStatement
}

func (e *CreateGraphExecutor) OperationType() txn.OperationType { return txn.OpCreateGraph }

func (e *CreateGraphExecutor) OperationDescription(_ *Context) string {
	return "CREATE GRAPH " + e.stmt.Path.String()
}

func (e *CreateGraphExecutor) ExecuteDDL(ctx *Context) (string, int, error) {
	path, err := ctx.ResolveGraphPath(e.stmt.Path)
	if err != nil {
		return "", 0, err
	}
	schema, graph, err := types.SplitGraphPath(path)
	if err != nil {
		return "", 0, Errorf(KindValidation, "%v", err)
	}

	// The parent schema must exist.
	if _, err := ctx.Catalog.QueryReadOnly("schema", catalog.Operation{
		Kind:   catalog.OpQuery,
		Entity: catalog.EntitySchema,
		Name:   "get",
		Params: map[string]any{"name": schema},
	}); err != nil {
		return "", 0, Errorf(KindNotFound, "schema '%s' not found: create it before its graphs", schema)
	}

	params := map[string]any{}
	if e.stmt.TypeName != "" {
		if _, err := ctx.Catalog.QueryReadOnly("graph_type", catalog.Operation{
			Kind:   catalog.OpQuery,
			Entity: catalog.EntityGraphType,
			Name:   "get",
			Params: map[string]any{"name": e.stmt.TypeName},
		}); err != nil {
			return "", 0, Errorf(KindNotFound, "graph type '%s' not found", e.stmt.TypeName)
		}
		params["graph_type"] = e.stmt.TypeName
	}

	// Catalog first, then storage, then cache invalidation.
	_, err = ctx.Catalog.Execute("graph_metadata", catalog.Operation{
		Kind:   catalog.OpCreate,
		Entity: catalog.EntityGraph,
		Name:   schema + "/" + graph,
		Params: params,
	})
	if err != nil {
		if catalog.IsAlreadyExists(err) && e.stmt.IfNotExists {
			return fmt.Sprintf("Graph '%s' already exists (if not exists)", path), 0, nil
		}
		if catalog.IsAlreadyExists(err) {
			return "", 0, Errorf(KindCatalog, "graph '%s' already exists", path)
		}
		return "", 0, Errorf(KindCatalog, "failed to create graph '%s': %v", path, err)
	}

	if err := ctx.Storage.SaveGraph(path, types.NewGraph()); err != nil {
		return "", 0, Errorf(KindStorage, "failed to initialize graph '%s': %v", path, err)
	}

	persistCatalog(ctx, "graph_metadata")
	if ctx.Cache != nil {
		ctx.Cache.Invalidate(cache.Event{Type: cache.EventGraphCreated, Graph: path, Schema: schema})
	}
	return fmt.Sprintf("Graph '%s' created", path), 1, nil
}

// --- DROP GRAPH ---

type DropGraphExecutor struct {
	stmt *gql.DropGraphStatement
}

func (e *DropGraphExecutor) OperationType() txn.OperationType { return txn.OpDropGraph }

func (e *DropGraphExecutor) OperationDescription(_ *Context) string {
	if e.stmt.Cascade {
		return "DROP GRAPH " + e.stmt.Path.String() + " CASCADE"
	}
	return "DROP GRAPH " + e.stmt.Path.String()
}

func (e *DropGraphExecutor) ExecuteDDL(ctx *Context) (string, int, error) {
	path, err := ctx.ResolveGraphPath(e.stmt.Path)
	if err != nil {
		return "", 0, err
	}
	exists, err := ctx.Storage.HasGraph(path)
	if err != nil {
		return "", 0, Errorf(KindStorage, "failed to check graph '%s': %v", path, err)
	}
	if !exists {
		if e.stmt.IfExists {
			return fmt.Sprintf("Graph '%s' does not exist (if exists)", path), 0, nil
		}
		return "", 0, Errorf(KindNotFound, "graph '%s' not found", path)
	}
	if err := dropGraphEverywhere(ctx, path); err != nil {
		return "", 0, err
	}
	return fmt.Sprintf("Graph '%s' dropped", path), 1, nil
}

// dropGraphEverywhere implements the destructive-DDL ordering: storage
// first, then catalog, then session invalidation, then cache events. A
// storage failure preserves the catalog entry so the system never claims
// success for a half-deleted graph.
func dropGraphEverywhere(ctx *Context, path string) error {
	schema, graph, err := types.SplitGraphPath(path)
	if err != nil {
		return Errorf(KindValidation, "%v", err)
	}

	if err := ctx.Storage.DeleteGraph(path); err != nil {
		return Errorf(KindStorage, "failed to delete graph data for '%s': %v", path, err)
	}

	if _, err := ctx.Catalog.Execute("graph_metadata", catalog.Operation{
		Kind:   catalog.OpDrop,
		Entity: catalog.EntityGraph,
		Name:   schema + "/" + graph,
	}); err != nil && !catalog.IsNotFound(err) {
		return Errorf(KindCatalog, "failed to drop graph '%s' from catalog: %v", path, err)
	}
	persistCatalog(ctx, "graph_metadata")

	if ctx.Sessions != nil {
		invalidated := ctx.Sessions.InvalidateSessionsForGraph(path)
		if invalidated > 0 {
			log.WithComponent("exec").Info().
				Str("graph", path).Int("sessions", invalidated).
				Msg("sessions unpinned from dropped graph")
		}
	}

	if ctx.Cache != nil {
		// Fans out to result, plan, and subquery caches as well as the
		// catalog cache.
		ctx.Cache.Invalidate(cache.Event{Type: cache.EventGraphDropped, Graph: path, Schema: schema})
	}
	return nil
}

// --- CLEAR / TRUNCATE GRAPH ---

type ClearGraphExecutor struct {
	stmt *gql.ClearGraphStatement
}

func (e *ClearGraphExecutor) OperationType() txn.OperationType { return txn.OpClearGraph }

func (e *ClearGraphExecutor) OperationDescription(_ *Context) string {
	return "CLEAR GRAPH " + e.stmt.Path.String()
}

func (e *ClearGraphExecutor) ExecuteDDL(ctx *Context) (string, int, error) {
	return clearGraph(ctx, e.stmt.Path, "clear", cache.EventGraphCleared)
}

type TruncateGraphExecutor struct {
	stmt *gql.TruncateGraphStatement
}

func (e *TruncateGraphExecutor) OperationType() txn.OperationType { return txn.OpTruncate }

func (e *TruncateGraphExecutor) OperationDescription(_ *Context) string {
	return "TRUNCATE GRAPH " + e.stmt.Path.String()
}

func (e *TruncateGraphExecutor) ExecuteDDL(ctx *Context) (string, int, error) {
	return clearGraph(ctx, e.stmt.Path, "truncate", cache.EventGraphTruncated)
}

func clearGraph(ctx *Context, p gql.CatalogPath, operation string, event cache.EventType) (string, int, error) {
	path, err := ctx.ResolveGraphPath(p)
	if err != nil {
		return "", 0, err
	}
	schema, graph, err := types.SplitGraphPath(path)
	if err != nil {
		return "", 0, Errorf(KindValidation, "%v", err)
	}
	g, err := ctx.Storage.GetGraph(path)
	if err != nil {
		return "", 0, Errorf(KindStorage, "failed to load graph '%s': %v", path, err)
	}
	if g == nil {
		return "", 0, Errorf(KindNotFound, "graph '%s' not found", path)
	}
	emptied := g.NodeCount() + g.EdgeCount()
	g.Clear()
	if err := ctx.Storage.SaveGraph(path, g); err != nil {
		return "", 0, Errorf(KindStorage, "failed to persist graph '%s': %v", path, err)
	}

	// Stamp the modification time via the synthetic catalog update.
	if _, err := ctx.Catalog.Execute("graph_metadata", catalog.Operation{
		Kind:   catalog.OpUpdate,
		Entity: catalog.EntityGraph,
		Name:   schema + "/" + graph,
		Params: map[string]any{"operation": operation},
	}); err != nil && !catalog.IsNotFound(err) {
		ctx.AddWarning(fmt.Sprintf("failed to stamp %s on graph metadata: %v", operation, err))
	}
	persistCatalog(ctx, "graph_metadata")

	if ctx.Cache != nil {
		ctx.Cache.Invalidate(cache.Event{Type: event, Graph: path, Schema: schema})
	}
	return fmt.Sprintf("Graph '%s' emptied (%d entities removed)", path, emptied), emptied, nil
}

// --- GRAPH TYPE DDL ---

type CreateGraphTypeExecutor struct {
	stmt *gql.CreateGraphTypeStatement
}

func (e *CreateGraphTypeExecutor) OperationType() txn.OperationType { return txn.OpCreateType }

func (e *CreateGraphTypeExecutor) OperationDescription(_ *Context) string {
	return "CREATE GRAPH TYPE " + e.stmt.Name
}

func typeParams(nodes []gql.NodeTypeDecl, edges []gql.EdgeTypeDecl) map[string]any {
	nodeSpecs := make([]any, 0, len(nodes))
	for _, n := range nodes {
		nodeSpecs = append(nodeSpecs, map[string]any{
			"label":      n.Label,
			"properties": n.Properties,
		})
	}
	edgeSpecs := make([]any, 0, len(edges))
	for _, ed := range edges {
		edgeSpecs = append(edgeSpecs, map[string]any{
			"label":      ed.Label,
			"from_label": ed.FromLabel,
			"to_label":   ed.ToLabel,
			"properties": ed.Properties,
		})
	}
	return map[string]any{"node_types": nodeSpecs, "edge_types": edgeSpecs}
}

func (e *CreateGraphTypeExecutor) ExecuteDDL(ctx *Context) (string, int, error) {
	_, err := ctx.Catalog.Execute("graph_type", catalog.Operation{
		Kind:   catalog.OpCreate,
		Entity: catalog.EntityGraphType,
		Name:   e.stmt.Name,
		Params: typeParams(e.stmt.NodeTypes, e.stmt.EdgeTypes),
	})
	if err != nil {
		if catalog.IsAlreadyExists(err) && e.stmt.IfNotExists {
			return fmt.Sprintf("Graph type '%s' already exists (if not exists)", e.stmt.Name), 0, nil
		}
		return "", 0, Errorf(KindCatalog, "failed to create graph type '%s': %v", e.stmt.Name, err)
	}
	persistCatalog(ctx, "graph_type")
	return fmt.Sprintf("Graph type '%s' created", e.stmt.Name), 1, nil
}

type AlterGraphTypeExecutor struct {
	stmt *gql.AlterGraphTypeStatement
}

func (e *AlterGraphTypeExecutor) OperationType() txn.OperationType { return txn.OpAlterType }

func (e *AlterGraphTypeExecutor) OperationDescription(_ *Context) string {
	return "ALTER GRAPH TYPE " + e.stmt.Name
}

func (e *AlterGraphTypeExecutor) ExecuteDDL(ctx *Context) (string, int, error) {
	resp, err := ctx.Catalog.Execute("graph_type", catalog.Operation{
		Kind:   catalog.OpUpdate,
		Entity: catalog.EntityGraphType,
		Name:   e.stmt.Name,
		Params: typeParams(e.stmt.NodeTypes, e.stmt.EdgeTypes),
	})
	if err != nil {
		if catalog.IsNotFound(err) {
			return "", 0, Errorf(KindNotFound, "graph type '%s' not found", e.stmt.Name)
		}
		return "", 0, Errorf(KindCatalog, "failed to alter graph type '%s': %v", e.stmt.Name, err)
	}
	persistCatalog(ctx, "graph_type")
	version, _ := resp.Data["version"].(string)
	return fmt.Sprintf("Graph type '%s' altered to version %s", e.stmt.Name, version), 1, nil
}

type DropGraphTypeExecutor struct {
	stmt *gql.DropGraphTypeStatement
}

func (e *DropGraphTypeExecutor) OperationType() txn.OperationType { return txn.OpDropType }

func (e *DropGraphTypeExecutor) OperationDescription(_ *Context) string {
	return "DROP GRAPH TYPE " + e.stmt.Name
}

func (e *DropGraphTypeExecutor) ExecuteDDL(ctx *Context) (string, int, error) {
	_, err := ctx.Catalog.Execute("graph_type", catalog.Operation{
		Kind:    catalog.OpDrop,
		Entity:  catalog.EntityGraphType,
		Name:    e.stmt.Name,
		Cascade: e.stmt.Cascade,
	})
	if err != nil {
		if catalog.IsNotFound(err) && e.stmt.IfExists {
			return fmt.Sprintf("Graph type '%s' does not exist (if exists)", e.stmt.Name), 0, nil
		}
		if catalog.IsNotFound(err) {
			return "", 0, Errorf(KindNotFound, "graph type '%s' not found", e.stmt.Name)
		}
		return "", 0, Errorf(KindCatalog, "failed to drop graph type '%s': %v", e.stmt.Name, err)
	}
	persistCatalog(ctx, "graph_type")
	return fmt.Sprintf("Graph type '%s' dropped", e.stmt.Name), 1, nil
}

// --- USER / ROLE DDL ---

type CreateUserExecutor struct {
	stmt *gql.CreateUserStatement
}

func (e *CreateUserExecutor) OperationType() txn.OperationType { return txn.OpCreateUser }

func (e *CreateUserExecutor) OperationDescription(_ *Context) string {
	return "CREATE USER " + e.stmt.Username
}

func (e *CreateUserExecutor) ExecuteDDL(ctx *Context) (string, int, error) {
	params := map[string]any{}
	if e.stmt.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(e.stmt.Password), bcrypt.DefaultCost)
		if err != nil {
			return "", 0, Errorf(KindRuntime, "failed to hash password: %v", err)
		}
		params["credential_hash"] = string(hash)
	}
	_, err := ctx.Catalog.Execute("security", catalog.Operation{
		Kind:   catalog.OpCreate,
		Entity: catalog.EntityUser,
		Name:   e.stmt.Username,
		Params: params,
	})
	if err != nil {
		if catalog.IsAlreadyExists(err) {
			return "", 0, Errorf(KindCatalog, "user '%s' already exists", e.stmt.Username)
		}
		return "", 0, Errorf(KindCatalog, "failed to create user '%s': %v", e.stmt.Username, err)
	}
	persistCatalog(ctx, "security")
	return fmt.Sprintf("User '%s' created", e.stmt.Username), 1, nil
}

type DropUserExecutor struct {
	stmt *gql.DropUserStatement
}

func (e *DropUserExecutor) OperationType() txn.OperationType { return txn.OpDropUser }

func (e *DropUserExecutor) OperationDescription(_ *Context) string {
	return "DROP USER " + e.stmt.Username
}

func (e *DropUserExecutor) ExecuteDDL(ctx *Context) (string, int, error) {
	_, err := ctx.Catalog.Execute("security", catalog.Operation{
		Kind:   catalog.OpDrop,
		Entity: catalog.EntityUser,
		Name:   e.stmt.Username,
	})
	if err != nil {
		if catalog.IsNotFound(err) && e.stmt.IfExists {
			return fmt.Sprintf("User '%s' does not exist (if exists)", e.stmt.Username), 0, nil
		}
		if catalog.IsNotFound(err) {
			return "", 0, Errorf(KindNotFound, "user '%s' not found", e.stmt.Username)
		}
		return "", 0, Errorf(KindCatalog, "failed to drop user '%s': %v", e.stmt.Username, err)
	}
	persistCatalog(ctx, "security")
	return fmt.Sprintf("User '%s' dropped", e.stmt.Username), 1, nil
}

type CreateRoleExecutor struct {
	stmt *gql.CreateRoleStatement
}

func (e *CreateRoleExecutor) OperationType() txn.OperationType { return txn.OpCreateRole }

func (e *CreateRoleExecutor) OperationDescription(_ *Context) string {
	return "CREATE ROLE " + e.stmt.Name
}

func (e *CreateRoleExecutor) ExecuteDDL(ctx *Context) (string, int, error) {
	_, err := ctx.Catalog.Execute("security", catalog.Operation{
		Kind:   catalog.OpCreate,
		Entity: catalog.EntityRole,
		Name:   e.stmt.Name,
	})
	if err != nil {
		if catalog.IsAlreadyExists(err) {
			return "", 0, Errorf(KindCatalog, "role '%s' already exists", e.stmt.Name)
		}
		return "", 0, Errorf(KindCatalog, "failed to create role '%s': %v", e.stmt.Name, err)
	}
	persistCatalog(ctx, "security")
	return fmt.Sprintf("Role '%s' created", e.stmt.Name), 1, nil
}

type DropRoleExecutor struct {
	stmt *gql.DropRoleStatement
}

func (e *DropRoleExecutor) OperationType() txn.OperationType { return txn.OpDropRole }

func (e *DropRoleExecutor) OperationDescription(_ *Context) string {
	return "DROP ROLE " + e.stmt.Name
}

func (e *DropRoleExecutor) ExecuteDDL(ctx *Context) (string, int, error) {
	_, err := ctx.Catalog.Execute("security", catalog.Operation{
		Kind:   catalog.OpDrop,
		Entity: catalog.EntityRole,
		Name:   e.stmt.Name,
	})
	if err != nil {
		if catalog.IsNotFound(err) && e.stmt.IfExists {
			return fmt.Sprintf("Role '%s' does not exist (if exists)", e.stmt.Name), 0, nil
		}
		if catalog.IsNotFound(err) {
			return "", 0, Errorf(KindNotFound, "role '%s' not found", e.stmt.Name)
		}
		return "", 0, Errorf(KindCatalog, "failed to drop role '%s': %v", e.stmt.Name, err)
	}
	persistCatalog(ctx, "security")
	return fmt.Sprintf("Role '%s' dropped", e.stmt.Name), 1, nil
}

type GrantRoleExecutor struct {
	stmt *gql.GrantRoleStatement
}

func (e *GrantRoleExecutor) OperationType() txn.OperationType { return txn.OpGrantRole }

func (e *GrantRoleExecutor) OperationDescription(_ *Context) string {
	return fmt.Sprintf("GRANT ROLE '%s' TO '%s'", e.stmt.Role, e.stmt.Username)
}

func (e *GrantRoleExecutor) ExecuteDDL(ctx *Context) (string, int, error) {
	// The role and user must both exist before the update.
	if _, err := ctx.Catalog.QueryReadOnly("security", catalog.Operation{
		Kind:   catalog.OpQuery,
		Entity: catalog.EntityRole,
		Name:   "get",
		Params: map[string]any{"name": e.stmt.Role},
	}); err != nil {
		return "", 0, Errorf(KindNotFound, "role '%s' does not exist", e.stmt.Role)
	}
	userResp, err := ctx.Catalog.QueryReadOnly("security", catalog.Operation{
		Kind:   catalog.OpQuery,
		Entity: catalog.EntityUser,
		Name:   "get",
		Params: map[string]any{"name": e.stmt.Username},
	})
	if err != nil {
		return "", 0, Errorf(KindNotFound, "user '%s' does not exist", e.stmt.Username)
	}
	if roles, ok := userResp.Data["roles"].([]any); ok {
		for _, r := range roles {
			if r == e.stmt.Role {
				return fmt.Sprintf("User '%s' already has role '%s'", e.stmt.Username, e.stmt.Role), 0, nil
			}
		}
	}

	_, err = ctx.Catalog.Execute("security", catalog.Operation{
		Kind:   catalog.OpUpdate,
		Entity: catalog.EntityUser,
		Name:   e.stmt.Username,
		Params: map[string]any{"add_roles": []any{e.stmt.Role}},
	})
	if err != nil {
		return "", 0, Errorf(KindCatalog,
			"failed to grant role '%s' to user '%s': %v", e.stmt.Role, e.stmt.Username, err)
	}
	persistCatalog(ctx, "security")
	if ctx.Cache != nil {
		ctx.Cache.Invalidate(cache.Event{Type: cache.EventUserGranted, User: e.stmt.Username})
	}
	return fmt.Sprintf("Role '%s' granted to user '%s'", e.stmt.Role, e.stmt.Username), 1, nil
}

type RevokeRoleExecutor struct {
	stmt *gql.RevokeRoleStatement
}

func (e *RevokeRoleExecutor) OperationType() txn.OperationType { return txn.OpRevokeRole }

func (e *RevokeRoleExecutor) OperationDescription(_ *Context) string {
	return fmt.Sprintf("REVOKE ROLE '%s' FROM '%s'", e.stmt.Role, e.stmt.Username)
}

func (e *RevokeRoleExecutor) ExecuteDDL(ctx *Context) (string, int, error) {
	_, err := ctx.Catalog.Execute("security", catalog.Operation{
		Kind:   catalog.OpUpdate,
		Entity: catalog.EntityUser,
		Name:   e.stmt.Username,
		Params: map[string]any{"remove_roles": []any{e.stmt.Role}},
	})
	if err != nil {
		if catalog.IsNotFound(err) {
			return "", 0, Errorf(KindNotFound, "user '%s' does not exist", e.stmt.Username)
		}
		return "", 0, Errorf(KindCatalog,
			"cannot revoke role '%s' from user '%s': %v", e.stmt.Role, e.stmt.Username, err)
	}
	persistCatalog(ctx, "security")
	if ctx.Cache != nil {
		ctx.Cache.Invalidate(cache.Event{Type: cache.EventUserRevoked, User: e.stmt.Username})
	}
	return fmt.Sprintf("Role '%s' revoked from user '%s'", e.stmt.Role, e.stmt.Username), 1, nil
}

// --- INDEX DDL ---

type IndexExecutor struct {
	stmt *gql.IndexStatement
}

func (e *IndexExecutor) OperationType() txn.OperationType { return txn.OpIndex }

func (e *IndexExecutor) OperationDescription(_ *Context) string {
	switch e.stmt.Verb {
	case gql.KindCreateIndex:
		return "CREATE INDEX " + e.stmt.Name
	case gql.KindDropIndex:
		return "DROP INDEX " + e.stmt.Name
	case gql.KindAlterIndex:
		return "ALTER INDEX " + e.stmt.Name
	case gql.KindOptimizeIndex:
		return "OPTIMIZE INDEX " + e.stmt.Name
	}
	return "REINDEX " + e.stmt.Name
}

func (e *IndexExecutor) ExecuteDDL(ctx *Context) (string, int, error) {
	switch e.stmt.Verb {
	case gql.KindCreateIndex:
		params := map[string]any{"kind": "graph"}
		if len(e.stmt.GraphPath.Segments) > 0 {
			path, err := ctx.ResolveGraphPath(e.stmt.GraphPath)
			if err != nil {
				return "", 0, err
			}
			params["graph_path"] = path
		}
		if _, err := ctx.Catalog.Execute("index", catalog.Operation{
			Kind:   catalog.OpCreate,
			Entity: catalog.EntityIndex,
			Name:   e.stmt.Name,
			Params: params,
		}); err != nil {
			return "", 0, Errorf(KindCatalog, "failed to create index '%s': %v", e.stmt.Name, err)
		}
		// Physical index tree hook.
		if _, err := ctx.Storage.Driver().OpenIndexTree(e.stmt.Name, kv.GraphIndexTreeOptions()); err != nil {
			ctx.AddWarning(fmt.Sprintf("index tree for '%s' could not be opened: %v", e.stmt.Name, err))
		}
		persistCatalog(ctx, "index")
		return fmt.Sprintf("Index '%s' created", e.stmt.Name), 1, nil

	case gql.KindDropIndex:
		if _, err := ctx.Catalog.Execute("index", catalog.Operation{
			Kind:   catalog.OpDrop,
			Entity: catalog.EntityIndex,
			Name:   e.stmt.Name,
		}); err != nil {
			if catalog.IsNotFound(err) {
				return "", 0, Errorf(KindNotFound, "index '%s' not found", e.stmt.Name)
			}
			return "", 0, Errorf(KindCatalog, "failed to drop index '%s': %v", e.stmt.Name, err)
		}
		if err := ctx.Storage.Driver().DropIndex(e.stmt.Name); err != nil {
			ctx.AddWarning(fmt.Sprintf("index tree for '%s' could not be dropped: %v", e.stmt.Name, err))
		}
		persistCatalog(ctx, "index")
		return fmt.Sprintf("Index '%s' dropped", e.stmt.Name), 1, nil

	case gql.KindAlterIndex, gql.KindOptimizeIndex, gql.KindReindex:
		// Lifecycle hooks only: the catalog checks that the logical entry
		// exists; no physical index maintenance is run or scheduled.
		if _, err := ctx.Catalog.Execute("index", catalog.Operation{
			Kind:   catalog.OpUpdate,
			Entity: catalog.EntityIndex,
			Name:   e.stmt.Name,
		}); err != nil {
			if catalog.IsNotFound(err) {
				return "", 0, Errorf(KindNotFound, "index '%s' not found", e.stmt.Name)
			}
			return "", 0, Errorf(KindCatalog, "index operation on '%s' failed: %v", e.stmt.Name, err)
		}
		return fmt.Sprintf("Index '%s' maintenance acknowledged", e.stmt.Name), 1, nil
	}
	return "", 0, Errorf(KindUnsupported, "unknown index operation")
}

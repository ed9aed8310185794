package exec

import (
	"fmt"
	"sort"
	"strings"

	"github.com/gqlite/gqlite/pkg/catalog"
	"github.com/gqlite/gqlite/pkg/gql"
	"github.com/gqlite/gqlite/pkg/types"
)

// systemNamespace is the only recognized procedure namespace. It is
// reserved: users cannot create or drop procedures in it.
const systemNamespace = "gql"

// systemProcedure produces yielded rows for one gql.* procedure.
type systemProcedure struct {
	name    string
	columns []string
	run     func(ctx *Context) ([]map[string]types.Value, error)
}

// systemProcedures is the read-only catalog introspection suite.
var systemProcedures = []systemProcedure{
	{
		name:    "list_schemas",
		columns: []string{"schema_name", "schema_path", "created_at", "modified_at"},
		run:     procListSchemas,
	},
	{
		name:    "list_graphs",
		columns: []string{"graph_name", "schema_name", "graph_path", "graph_type", "created_at", "modified_at"},
		run:     procListGraphs,
	},
	{
		name:    "list_functions",
		columns: []string{"function_name", "category", "description"},
		run:     procListFunctions,
	},
	{
		name:    "list_sessions",
		columns: []string{"session_id", "username", "current_schema", "current_graph"},
		run:     procListSessions,
	},
}

func findProcedure(name string) *systemProcedure {
	for i := range systemProcedures {
		if systemProcedures[i].name == name {
			return &systemProcedures[i]
		}
	}
	return nil
}

func availableProcedures() string {
	names := make([]string, len(systemProcedures))
	for i, p := range systemProcedures {
		names[i] = systemNamespace + "." + p.name + "()"
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}

func catalogGetSchema(name string) catalog.Operation {
	return catalog.Operation{
		Kind:   catalog.OpQuery,
		Entity: catalog.EntitySchema,
		Name:   "get",
		Params: map[string]any{"name": name},
	}
}

// ExecuteCall runs a CALL statement: resolve the procedure, produce rows,
// apply YIELD projection, and push the WHERE predicate down onto the
// yielded rows.
func ExecuteCall(ctx *Context, stmt *gql.CallStatement) (*QueryResult, error) {
	if stmt.Namespace != systemNamespace {
		if stmt.Namespace == "" {
			return nil, Errorf(KindNotFound,
				"unknown procedure '%s': procedures are namespaced; available system procedures: %s",
				stmt.Procedure, availableProcedures())
		}
		return nil, Errorf(KindNotFound,
			"unknown procedure namespace '%s': only '%s' is recognized; available system procedures: %s",
			stmt.Namespace, systemNamespace, availableProcedures())
	}
	proc := findProcedure(stmt.Procedure)
	if proc == nil {
		return nil, Errorf(KindNotFound,
			"unknown procedure '%s.%s'; available system procedures: %s",
			systemNamespace, stmt.Procedure, availableProcedures())
	}

	// Catalog snapshot cache: session-scoped, keyed by catalog version.
	version := ctx.Catalog.Version()
	if ctx.Cache != nil && stmt.Where == nil && len(stmt.Yield) == 0 {
		if cached, ok := ctx.Cache.GetCatalogSnapshot(ctx.SessionID, proc.name, version); ok {
			if res, ok := cached.(*QueryResult); ok {
				hit := *res
				return &hit, nil
			}
		}
	}

	rawRows, err := proc.run(ctx)
	if err != nil {
		return nil, err
	}

	columns := proc.columns
	if len(stmt.Yield) > 0 {
		for _, f := range stmt.Yield {
			if !contains(proc.columns, f) {
				return nil, Errorf(KindRuntime,
					"procedure '%s.%s' does not yield field '%s' (yields: %s)",
					systemNamespace, proc.name, f, strings.Join(proc.columns, ", "))
			}
		}
		columns = stmt.Yield
	}

	var rows []Row
	for _, raw := range rawRows {
		if stmt.Where != nil {
			v, err := Eval(stmt.Where, rowEnv{raw})
			if err != nil {
				return nil, err
			}
			if v.IsNull() || !v.Truthy() {
				continue
			}
		}
		values := make(map[string]types.Value, len(columns))
		for _, col := range columns {
			values[col] = raw[col]
		}
		rows = append(rows, NewRow(columns, values))
	}

	result := &QueryResult{Variables: columns, Rows: rows}
	if ctx.Cache != nil && stmt.Where == nil && len(stmt.Yield) == 0 {
		ctx.Cache.PutCatalogSnapshot(ctx.SessionID, proc.name, version, result, ApproxResultSize(result))
	}
	return result, nil
}

func contains(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}

// rowEnv resolves identifiers against a yielded row, for WHERE pushdown.
type rowEnv struct {
	row map[string]types.Value
}

func (e rowEnv) LookupVar(name string) (types.Value, bool) {
	v, ok := e.row[name]
	return v, ok
}

func (e rowEnv) LookupProperty(object, property string) (types.Value, bool) {
	v, ok := e.row[object+"."+property]
	return v, ok
}

func procListSchemas(ctx *Context) ([]map[string]types.Value, error) {
	resp, err := ctx.Catalog.QueryReadOnly("schema", catalog.Operation{
		Kind:   catalog.OpQuery,
		Entity: catalog.EntitySchema,
		Name:   "list",
	})
	if err != nil {
		return nil, Errorf(KindCatalog, "failed to list schemas: %v", err)
	}
	return catalogRowsToValues(resp.Rows), nil
}

func procListGraphs(ctx *Context) ([]map[string]types.Value, error) {
	resp, err := ctx.Catalog.QueryReadOnly("graph_metadata", catalog.Operation{
		Kind:   catalog.OpQuery,
		Entity: catalog.EntityGraph,
		Name:   "list",
	})
	if err != nil {
		return nil, Errorf(KindCatalog, "failed to list graphs: %v", err)
	}
	return catalogRowsToValues(resp.Rows), nil
}

func procListFunctions(_ *Context) ([]map[string]types.Value, error) {
	var rows []map[string]types.Value
	for _, fn := range ScalarFunctions() {
		rows = append(rows, map[string]types.Value{
			"function_name": types.NewString(fn["name"]),
			"category":      types.NewString(fn["category"]),
			"description":   types.NewString(fn["description"]),
		})
	}
	return rows, nil
}

func procListSessions(ctx *Context) ([]map[string]types.Value, error) {
	if ctx.Sessions == nil {
		return nil, nil
	}
	ids := ctx.Sessions.ListSessions()
	sort.Strings(ids)
	var rows []map[string]types.Value
	for _, id := range ids {
		s := ctx.Sessions.GetSession(id)
		if s == nil {
			continue
		}
		rows = append(rows, map[string]types.Value{
			"session_id":     types.NewString(s.ID()),
			"username":       types.NewString(s.Username()),
			"current_schema": types.NewString(s.CurrentSchema()),
			"current_graph":  types.NewString(s.CurrentGraph()),
		})
	}
	return rows, nil
}

func catalogRowsToValues(in []map[string]any) []map[string]types.Value {
	var out []map[string]types.Value
	for _, raw := range in {
		row := make(map[string]types.Value, len(raw))
		for k, v := range raw {
			switch tv := v.(type) {
			case string:
				row[k] = types.NewString(tv)
			case float64:
				row[k] = types.NewNumber(tv)
			case bool:
				row[k] = types.NewBool(tv)
			case nil:
				row[k] = types.Null()
			default:
				row[k] = types.NewString(fmt.Sprintf("%v", tv))
			}
		}
		out = append(out, row)
	}
	return out
}

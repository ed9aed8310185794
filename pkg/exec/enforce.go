package exec

import (
	"encoding/json"
	"fmt"

	"github.com/gqlite/gqlite/pkg/catalog"
	"github.com/gqlite/gqlite/pkg/types"
)

// remarshal converts a JSON-shaped map into a typed struct.
func remarshal(src any, dst any) error {
	raw, err := json.Marshal(src)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dst)
}

// graphTypeFor resolves the active graph type definition for a graph path,
// or nil when the graph is untyped.
func graphTypeFor(ctx *Context, graphPath string) (*catalog.GraphTypeDefinition, error) {
	schema, graph, err := types.SplitGraphPath(graphPath)
	if err != nil {
		return nil, nil
	}
	resp, err := ctx.Catalog.QueryReadOnly("graph_metadata", catalog.Operation{
		Kind:   catalog.OpQuery,
		Entity: catalog.EntityGraph,
		Name:   "get",
		Params: map[string]any{"name": schema + "/" + graph},
	})
	if err != nil || resp.Data == nil {
		return nil, nil
	}
	typeName, _ := resp.Data["graph_type"].(string)
	if typeName == "" {
		return nil, nil
	}
	typeResp, err := ctx.Catalog.QueryReadOnly("graph_type", catalog.Operation{
		Kind:   catalog.OpQuery,
		Entity: catalog.EntityGraphType,
		Name:   "get",
		Params: map[string]any{"name": typeName},
	})
	if err != nil {
		return nil, nil
	}
	var def catalog.GraphTypeDefinition
	if err := remarshal(typeResp.Data, &def); err != nil {
		return nil, nil
	}
	return &def, nil
}

// checkNodeAgainstType validates a node against the graph's declared node
// types. Returns violation messages; empty means conformant.
func checkNodeAgainstType(def *catalog.GraphTypeDefinition, n *types.Node) []string {
	if def == nil || len(def.NodeTypes) == 0 {
		return nil
	}
	var matched *catalog.NodeTypeSpec
	for i := range def.NodeTypes {
		for _, label := range n.Labels {
			if def.NodeTypes[i].Label == label {
				matched = &def.NodeTypes[i]
				break
			}
		}
		if matched != nil {
			break
		}
	}
	if matched == nil {
		return []string{fmt.Sprintf(
			"node %s carries no label declared by graph type %q", n.ID, def.Name)}
	}
	var violations []string
	for prop, wantKind := range matched.Properties {
		v, ok := n.Properties[prop]
		if !ok {
			continue
		}
		if !valueKindMatches(v, wantKind) {
			violations = append(violations, fmt.Sprintf(
				"property %q of node %s is %s, graph type %q declares %s",
				prop, n.ID, v.Kind, def.Name, wantKind))
		}
	}
	return violations
}

func valueKindMatches(v types.Value, declared string) bool {
	switch declared {
	case "STRING":
		return v.Kind == types.KindString
	case "NUMBER", "FLOAT", "INT", "INTEGER", "DOUBLE":
		return v.Kind == types.KindNumber
	case "BOOL", "BOOLEAN":
		return v.Kind == types.KindBool
	case "TEMPORAL", "DATETIME", "DATE":
		return v.Kind == types.KindTemporal
	case "LIST":
		return v.Kind == types.KindList
	case "MAP":
		return v.Kind == types.KindMap
	}
	return true
}

// enforceNodeType applies the session's enforcement mode to a node write.
// Strict violations become validation errors; advisory violations become
// warnings.
func enforceNodeType(ctx *Context, graphPath string, n *types.Node) error {
	if ctx.Enforcement == EnforceDisabled {
		return nil
	}
	def, err := graphTypeFor(ctx, graphPath)
	if err != nil || def == nil {
		return nil
	}
	violations := checkNodeAgainstType(def, n)
	if len(violations) == 0 {
		return nil
	}
	if ctx.Enforcement == EnforceStrict {
		return Errorf(KindValidation, "graph type violation: %s", violations[0])
	}
	for _, v := range violations {
		ctx.AddWarning("schema advisory: " + v)
	}
	return nil
}

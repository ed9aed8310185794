package exec

import (
	"fmt"

	"github.com/gqlite/gqlite/pkg/gql"
	"github.com/gqlite/gqlite/pkg/txn"
	"github.com/gqlite/gqlite/pkg/types"
)

// DMLStatement dispatches a parsed data statement to its executor.
func DMLStatement(stmt gql.Statement) (DMLExecutor, error) {
	switch s := stmt.(type) {
	case *gql.InsertStatement:
		return &InsertExecutor{stmt: s}, nil
	case *gql.SetStatement:
		return &SetExecutor{stmt: s}, nil
	case *gql.RemoveStatement:
		return &RemoveExecutor{stmt: s}, nil
	case *gql.DeleteStatement:
		return &DeleteExecutor{stmt: s}, nil
	case *gql.MatchStatement:
		switch s.Kind() {
		case gql.KindMatchSet:
			return &MatchSetExecutor{stmt: s}, nil
		case gql.KindMatchRemove:
			return &MatchRemoveExecutor{stmt: s}, nil
		case gql.KindMatchDelete:
			return &MatchDeleteExecutor{stmt: s}, nil
		case gql.KindMatchInsert:
			return &MatchInsertExecutor{stmt: s}, nil
		}
	}
	return nil, Errorf(KindRuntime, "statement %T is not a data statement", stmt)
}

// --- INSERT ---

// InsertExecutor creates nodes and edges from INSERT patterns. Node and
// edge ids are content-addressed; re-inserting identical content is a
// non-fatal duplicate warning with zero affected rows.
type InsertExecutor struct {
	stmt *gql.InsertStatement
}

func (e *InsertExecutor) OperationType() txn.OperationType { return txn.OpInsert }

func (e *InsertExecutor) OperationDescription(ctx *Context) string {
	path := ""
	if ctx.Session != nil {
		path = ctx.Session.CurrentGraph()
	}
	return fmt.Sprintf("INSERT %d pattern(s) into graph '%s'", len(e.stmt.Patterns), path)
}

func (e *InsertExecutor) ExecuteModification(g *types.Graph, ctx *Context) (txn.UndoOp, int, error) {
	return insertPatterns(g, ctx, e.stmt.Patterns, nil)
}

// insertPatterns inserts path patterns, resolving variables against an
// optional existing binding (MATCH ... INSERT). Returns a batch undo.
func insertPatterns(g *types.Graph, ctx *Context, patterns []*gql.PathPattern, bound binding) (txn.UndoOp, int, error) {
	graphPath := ctx.Session.CurrentGraph()
	var undo []txn.UndoOp
	affected := 0

	env := Env(emptyEnv{})
	if bound != nil {
		env = bindingEnv{bound}
	}

	for _, pattern := range patterns {
		// Resolve or create each node; remember ids for edge endpoints.
		nodeIDs := make([]string, len(pattern.Nodes))
		for i, np := range pattern.Nodes {
			if np.Variable != "" && bound != nil {
				if ent, ok := bound[np.Variable]; ok && ent.Node != nil {
					nodeIDs[i] = ent.Node.ID
					continue
				}
			}
			props, err := evalPropMap(np.Properties, env)
			if err != nil {
				return txn.NoneUndo(), 0, err
			}
			id := types.ContentNodeID(np.Labels, props)
			nodeIDs[i] = id
			if g.HasNode(id) {
				ctx.AddWarning(fmt.Sprintf(
					"Duplicate node detected: identical content already exists as %s", id))
				continue
			}
			node := &types.Node{
				ID:         id,
				Labels:     append([]string(nil), np.Labels...),
				Properties: props,
			}
			if err := enforceNodeType(ctx, graphPath, node); err != nil {
				return txn.NoneUndo(), 0, err
			}
			if err := g.AddNode(node); err != nil {
				return txn.NoneUndo(), 0, Errorf(KindRuntime, "insert failed: %v", err)
			}
			undo = append(undo, txn.UndoOp{
				Kind:      txn.UndoDeleteNode,
				GraphPath: graphPath,
				NodeID:    id,
			})
			affected++
		}

		for i, ep := range pattern.Edges {
			props, err := evalPropMap(ep.Properties, env)
			if err != nil {
				return txn.NoneUndo(), 0, err
			}
			from, to := nodeIDs[i], nodeIDs[i+1]
			if ep.Direction == "left" {
				from, to = to, from
			}
			id := types.ContentEdgeID(from, to, ep.Label, props)
			if g.HasEdge(id) {
				ctx.AddWarning(fmt.Sprintf(
					"Duplicate edge detected: identical content already exists as %s", id))
				continue
			}
			edge := &types.Edge{
				ID:         id,
				From:       from,
				To:         to,
				Label:      ep.Label,
				Properties: props,
			}
			if err := g.AddEdge(edge); err != nil {
				return txn.NoneUndo(), 0, Errorf(KindRuntime, "insert failed: %v", err)
			}
			undo = append(undo, txn.UndoOp{
				Kind:      txn.UndoDeleteEdge,
				GraphPath: graphPath,
				EdgeID:    id,
			})
			affected++
		}
	}
	return txn.BatchUndo(undo), affected, nil
}

func evalPropMap(m *gql.MapExpr, env Env) (map[string]types.Value, error) {
	props := make(map[string]types.Value)
	if m == nil {
		return props, nil
	}
	for i, key := range m.Keys {
		v, err := Eval(m.Values[i], env)
		if err != nil {
			return nil, err
		}
		props[key] = v
	}
	return props, nil
}

// --- SET ---

// SetExecutor applies property and label assignments to entities addressed
// by variable name (node id or label). The statement is all-or-nothing:
// every value expression evaluates before any write happens.
type SetExecutor struct {
	stmt *gql.SetStatement
}

func (e *SetExecutor) OperationType() txn.OperationType { return txn.OpSet }

func (e *SetExecutor) OperationDescription(ctx *Context) string {
	path := ""
	if ctx.Session != nil {
		path = ctx.Session.CurrentGraph()
	}
	return fmt.Sprintf("SET properties in graph '%s'", path)
}

func (e *SetExecutor) ExecuteModification(g *types.Graph, ctx *Context) (txn.UndoOp, int, error) {
	// Evaluate every value up front so one bad expression writes nothing.
	evaluated := make([]types.Value, len(e.stmt.Items))
	for i, item := range e.stmt.Items {
		if item.Property == "" {
			continue
		}
		v, err := EvalLiteral(item.Value)
		if err != nil {
			return txn.NoneUndo(), 0, Errorf(KindExpression,
				"failed to evaluate SET %s.%s: %v; statement aborted, no properties written",
				item.Target, item.Property, err)
		}
		evaluated[i] = v
	}

	graphPath := ctx.Session.CurrentGraph()
	var undo []txn.UndoOp
	touched := make(map[string]bool)
	affected := 0

	for i, item := range e.stmt.Items {
		for _, id := range g.NodeIDs() {
			n := g.Nodes[id]
			if n.ID != item.Target && !n.HasLabel(item.Target) {
				continue
			}
			if !touched[n.ID] {
				undo = append(undo, nodeStateUndo(graphPath, n))
				touched[n.ID] = true
			}
			if item.Property != "" {
				n.SetProperty(item.Property, evaluated[i].Clone())
			} else {
				for _, label := range item.Labels {
					n.AddLabel(label)
				}
			}
			if err := enforceNodeType(ctx, graphPath, n); err != nil {
				return txn.NoneUndo(), 0, err
			}
			affected++
		}
	}
	return txn.BatchUndo(undo), affected, nil
}

// nodeStateUndo captures a node's full pre-statement state for rollback.
func nodeStateUndo(graphPath string, n *types.Node) txn.UndoOp {
	props := make(map[string]types.Value, len(n.Properties))
	for k, v := range n.Properties {
		props[k] = v.Clone()
	}
	return txn.UndoOp{
		Kind:          txn.UndoUpdateNode,
		GraphPath:     graphPath,
		NodeID:        n.ID,
		OldProperties: props,
		OldLabels:     append([]string(nil), n.Labels...),
	}
}

func edgeStateUndo(graphPath string, e *types.Edge) txn.UndoOp {
	props := make(map[string]types.Value, len(e.Properties))
	for k, v := range e.Properties {
		props[k] = v.Clone()
	}
	return txn.UndoOp{
		Kind:          txn.UndoUpdateEdge,
		GraphPath:     graphPath,
		EdgeID:        e.ID,
		OldProperties: props,
		OldLabel:      e.Label,
	}
}

// --- MATCH ... SET ---

// MatchSetExecutor applies assignments over a pattern-matched row set. The
// atomicity guarantee extends across all matched entities: one evaluation
// failure anywhere aborts the statement before any write.
type MatchSetExecutor struct {
	stmt *gql.MatchStatement
}

func (e *MatchSetExecutor) OperationType() txn.OperationType { return txn.OpSet }

func (e *MatchSetExecutor) OperationDescription(ctx *Context) string {
	path := ""
	if ctx.Session != nil {
		path = ctx.Session.CurrentGraph()
	}
	return fmt.Sprintf("MATCH ... SET in graph '%s'", path)
}

func (e *MatchSetExecutor) ExecuteModification(g *types.Graph, ctx *Context) (txn.UndoOp, int, error) {
	bindings, err := matchBindings(g, e.stmt.Pattern, e.stmt.Where)
	if err != nil {
		return txn.NoneUndo(), 0, err
	}

	// Phase one: evaluate every (item, row) pair before touching anything.
	type pendingWrite struct {
		b     binding
		item  gql.SetItem
		value types.Value
	}
	var writes []pendingWrite
	for _, b := range bindings {
		env := bindingEnv{b}
		for _, item := range e.stmt.Set {
			w := pendingWrite{b: b, item: item}
			if item.Property != "" {
				v, err := Eval(item.Value, env)
				if err != nil {
					return txn.NoneUndo(), 0, Errorf(KindExpression,
						"failed to evaluate SET %s.%s: %v; statement aborted, no properties written",
						item.Target, item.Property, err)
				}
				w.value = v
			}
			writes = append(writes, w)
		}
	}

	// Phase two: apply.
	graphPath := ctx.Session.CurrentGraph()
	var undo []txn.UndoOp
	touched := make(map[string]bool)
	affected := 0

	for _, w := range writes {
		ent, ok := w.b[w.item.Target]
		if !ok {
			return txn.NoneUndo(), 0, Errorf(KindRuntime,
				"SET target %q is not bound by the MATCH pattern", w.item.Target)
		}
		switch {
		case ent.Node != nil:
			n := g.Node(ent.Node.ID)
			if n == nil {
				continue
			}
			if !touched[n.ID] {
				undo = append(undo, nodeStateUndo(graphPath, n))
				touched[n.ID] = true
			}
			if w.item.Property != "" {
				n.SetProperty(w.item.Property, w.value.Clone())
			} else {
				for _, label := range w.item.Labels {
					n.AddLabel(label)
				}
			}
			if err := enforceNodeType(ctx, graphPath, n); err != nil {
				return txn.NoneUndo(), 0, err
			}
			affected++
		case ent.Edge != nil:
			edge := g.Edge(ent.Edge.ID)
			if edge == nil {
				continue
			}
			if !touched[edge.ID] {
				undo = append(undo, edgeStateUndo(graphPath, edge))
				touched[edge.ID] = true
			}
			if w.item.Property != "" {
				edge.SetProperty(w.item.Property, w.value.Clone())
			}
			affected++
		}
	}
	return txn.BatchUndo(undo), affected, nil
}

// --- REMOVE ---

// RemoveExecutor removes properties or labels from entities addressed by
// variable name, recording full-state undo per entity.
type RemoveExecutor struct {
	stmt *gql.RemoveStatement
}

func (e *RemoveExecutor) OperationType() txn.OperationType { return txn.OpRemove }

func (e *RemoveExecutor) OperationDescription(ctx *Context) string {
	path := ""
	if ctx.Session != nil {
		path = ctx.Session.CurrentGraph()
	}
	return fmt.Sprintf("REMOVE properties in graph '%s'", path)
}

func (e *RemoveExecutor) ExecuteModification(g *types.Graph, ctx *Context) (txn.UndoOp, int, error) {
	graphPath := ctx.Session.CurrentGraph()
	var undo []txn.UndoOp
	touched := make(map[string]bool)
	affected := 0

	for _, item := range e.stmt.Items {
		for _, id := range g.NodeIDs() {
			n := g.Nodes[id]
			if n.ID != item.Target && !n.HasLabel(item.Target) {
				continue
			}
			if !touched[n.ID] {
				undo = append(undo, nodeStateUndo(graphPath, n))
				touched[n.ID] = true
			}
			if applyRemoveItem(n, item) {
				affected++
			}
		}
	}
	return txn.BatchUndo(undo), affected, nil
}

func applyRemoveItem(n *types.Node, item gql.RemoveItem) bool {
	if item.Property != "" {
		if _, ok := n.Properties[item.Property]; ok {
			delete(n.Properties, item.Property)
			return true
		}
		return false
	}
	if item.Label != "" && n.HasLabel(item.Label) {
		n.RemoveLabel(item.Label)
		return true
	}
	return false
}

// --- MATCH ... REMOVE ---

type MatchRemoveExecutor struct {
	stmt *gql.MatchStatement
}

func (e *MatchRemoveExecutor) OperationType() txn.OperationType { return txn.OpRemove }

func (e *MatchRemoveExecutor) OperationDescription(ctx *Context) string {
	path := ""
	if ctx.Session != nil {
		path = ctx.Session.CurrentGraph()
	}
	return fmt.Sprintf("MATCH ... REMOVE in graph '%s'", path)
}

func (e *MatchRemoveExecutor) ExecuteModification(g *types.Graph, ctx *Context) (txn.UndoOp, int, error) {
	bindings, err := matchBindings(g, e.stmt.Pattern, e.stmt.Where)
	if err != nil {
		return txn.NoneUndo(), 0, err
	}
	graphPath := ctx.Session.CurrentGraph()
	var undo []txn.UndoOp
	touched := make(map[string]bool)
	affected := 0

	for _, b := range bindings {
		for _, item := range e.stmt.Remove {
			ent, ok := b[item.Target]
			if !ok || ent.Node == nil {
				continue
			}
			n := g.Node(ent.Node.ID)
			if n == nil {
				continue
			}
			if !touched[n.ID] {
				undo = append(undo, nodeStateUndo(graphPath, n))
				touched[n.ID] = true
			}
			if applyRemoveItem(n, item) {
				affected++
			}
		}
	}
	return txn.BatchUndo(undo), affected, nil
}

// --- DELETE ---

// DeleteExecutor removes nodes addressed by id or label, cleaning up
// dependent edges. Undo re-inserts the nodes and their edges.
type DeleteExecutor struct {
	stmt *gql.DeleteStatement
}

func (e *DeleteExecutor) OperationType() txn.OperationType { return txn.OpDelete }

func (e *DeleteExecutor) OperationDescription(ctx *Context) string {
	path := ""
	if ctx.Session != nil {
		path = ctx.Session.CurrentGraph()
	}
	return fmt.Sprintf("DELETE in graph '%s'", path)
}

func (e *DeleteExecutor) ExecuteModification(g *types.Graph, ctx *Context) (txn.UndoOp, int, error) {
	graphPath := ctx.Session.CurrentGraph()
	var undo []txn.UndoOp
	affected := 0

	for _, target := range e.stmt.Targets {
		var ids []string
		for _, id := range g.NodeIDs() {
			n := g.Nodes[id]
			if n.ID == target || n.HasLabel(target) {
				ids = append(ids, id)
			}
		}
		for _, id := range ids {
			ops, n := deleteNodeWithUndo(g, graphPath, id)
			if n {
				affected++
			}
			undo = append(undo, ops...)
		}
	}
	return txn.BatchUndo(undo), affected, nil
}

// deleteNodeWithUndo removes a node plus incident edges, returning the undo
// ops that restore them.
func deleteNodeWithUndo(g *types.Graph, graphPath, id string) ([]txn.UndoOp, bool) {
	n := g.Node(id)
	if n == nil {
		return nil, false
	}
	saved := n.Clone()
	removedEdges := g.RemoveNode(id)

	// Edges first, node last: Batch applies in reverse push order, so the
	// node is re-inserted before the edges that reference it.
	var ops []txn.UndoOp
	for _, e := range removedEdges {
		ops = append(ops, txn.UndoOp{
			Kind:      txn.UndoInsertEdge,
			GraphPath: graphPath,
			Edge:      e.Clone(),
		})
	}
	ops = append(ops, txn.UndoOp{
		Kind:      txn.UndoInsertNode,
		GraphPath: graphPath,
		Node:      saved,
	})
	return ops, true
}

// --- MATCH ... DELETE ---

type MatchDeleteExecutor struct {
	stmt *gql.MatchStatement
}

func (e *MatchDeleteExecutor) OperationType() txn.OperationType { return txn.OpDelete }

func (e *MatchDeleteExecutor) OperationDescription(ctx *Context) string {
	path := ""
	if ctx.Session != nil {
		path = ctx.Session.CurrentGraph()
	}
	return fmt.Sprintf("MATCH ... DELETE in graph '%s'", path)
}

func (e *MatchDeleteExecutor) ExecuteModification(g *types.Graph, ctx *Context) (txn.UndoOp, int, error) {
	bindings, err := matchBindings(g, e.stmt.Pattern, e.stmt.Where)
	if err != nil {
		return txn.NoneUndo(), 0, err
	}
	graphPath := ctx.Session.CurrentGraph()

	nodeIDs := make(map[string]bool)
	edgeIDs := make(map[string]bool)
	for _, b := range bindings {
		for _, target := range e.stmt.Delete {
			ent, ok := b[target]
			if !ok {
				return txn.NoneUndo(), 0, Errorf(KindRuntime,
					"DELETE target %q is not bound by the MATCH pattern", target)
			}
			if ent.Node != nil {
				nodeIDs[ent.Node.ID] = true
			} else if ent.Edge != nil {
				edgeIDs[ent.Edge.ID] = true
			}
		}
	}

	var undo []txn.UndoOp
	affected := 0
	for id := range edgeIDs {
		if edge := g.Edge(id); edge != nil {
			undo = append(undo, txn.UndoOp{
				Kind:      txn.UndoInsertEdge,
				GraphPath: graphPath,
				Edge:      edge.Clone(),
			})
			g.RemoveEdge(id)
			affected++
		}
	}
	for id := range nodeIDs {
		ops, removed := deleteNodeWithUndo(g, graphPath, id)
		if removed {
			affected++
		}
		undo = append(undo, ops...)
	}
	return txn.BatchUndo(undo), affected, nil
}

// --- MATCH ... INSERT ---

type MatchInsertExecutor struct {
	stmt *gql.MatchStatement
}

func (e *MatchInsertExecutor) OperationType() txn.OperationType { return txn.OpInsert }

func (e *MatchInsertExecutor) OperationDescription(ctx *Context) string {
	path := ""
	if ctx.Session != nil {
		path = ctx.Session.CurrentGraph()
	}
	return fmt.Sprintf("MATCH ... INSERT in graph '%s'", path)
}

func (e *MatchInsertExecutor) ExecuteModification(g *types.Graph, ctx *Context) (txn.UndoOp, int, error) {
	bindings, err := matchBindings(g, e.stmt.Pattern, e.stmt.Where)
	if err != nil {
		return txn.NoneUndo(), 0, err
	}
	var undo []txn.UndoOp
	affected := 0
	for _, b := range bindings {
		op, n, err := insertPatterns(g, ctx, e.stmt.Insert, b)
		if err != nil {
			return txn.NoneUndo(), 0, err
		}
		if op.Kind != txn.UndoNone {
			undo = append(undo, op)
		}
		affected += n
	}
	return txn.BatchUndo(undo), affected, nil
}

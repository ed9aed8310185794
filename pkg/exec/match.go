package exec

import (
	"fmt"
	"sort"
	"strings"

	"github.com/gqlite/gqlite/pkg/gql"
	"github.com/gqlite/gqlite/pkg/types"
)

// boundEntity is a pattern variable's binding: exactly one of Node or Edge.
type boundEntity struct {
	Node *types.Node
	Edge *types.Edge
}

// binding maps pattern variables to entities for one match row.
type binding map[string]boundEntity

// bindingEnv adapts a binding to the expression Env.
type bindingEnv struct {
	b binding
}

func (e bindingEnv) LookupVar(name string) (types.Value, bool) {
	ent, ok := e.b[name]
	if !ok {
		return types.Null(), false
	}
	if ent.Node != nil {
		return types.NewNodeRef(ent.Node.ID), true
	}
	return types.NewEdgeRef(ent.Edge.ID), true
}

func (e bindingEnv) LookupProperty(object, property string) (types.Value, bool) {
	ent, ok := e.b[object]
	if !ok {
		return types.Null(), false
	}
	if ent.Node != nil {
		return ent.Node.Property(property), true
	}
	return ent.Edge.Property(property), true
}

// nodeMatches checks labels and property constraints of a node pattern.
func nodeMatches(n *types.Node, pat *gql.NodePattern, env Env) (bool, error) {
	for _, label := range pat.Labels {
		if !n.HasLabel(label) {
			return false, nil
		}
	}
	if pat.Properties != nil {
		for i, key := range pat.Properties.Keys {
			want, err := Eval(pat.Properties.Values[i], env)
			if err != nil {
				return false, err
			}
			if !n.Property(key).Equal(want) {
				return false, nil
			}
		}
	}
	return true, nil
}

func edgeMatches(e *types.Edge, pat *gql.EdgePattern, env Env) (bool, error) {
	if pat.Label != "" && e.Label != pat.Label {
		return false, nil
	}
	if pat.Properties != nil {
		for i, key := range pat.Properties.Keys {
			want, err := Eval(pat.Properties.Values[i], env)
			if err != nil {
				return false, err
			}
			if !e.Property(key).Equal(want) {
				return false, nil
			}
		}
	}
	return true, nil
}

// matchBindings enumerates all bindings of the pattern against the graph,
// then filters them through the WHERE predicate.
func matchBindings(g *types.Graph, pattern *gql.PathPattern, where gql.Expr) ([]binding, error) {
	if len(pattern.Nodes) == 0 {
		return nil, Errorf(KindRuntime, "empty match pattern")
	}

	var results []binding
	first := pattern.Nodes[0]
	for _, id := range g.NodeIDs() {
		n := g.Nodes[id]
		ok, err := nodeMatches(n, first, emptyEnv{})
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		b := binding{}
		if first.Variable != "" {
			b[first.Variable] = boundEntity{Node: n}
		}
		expanded, err := expandPattern(g, pattern, 0, n, b)
		if err != nil {
			return nil, err
		}
		results = append(results, expanded...)
	}

	if where == nil {
		return results, nil
	}
	filtered := results[:0]
	for _, b := range results {
		v, err := Eval(where, bindingEnv{b})
		if err != nil {
			return nil, err
		}
		if !v.IsNull() && v.Truthy() {
			filtered = append(filtered, b)
		}
	}
	return filtered, nil
}

// expandPattern walks the edge chain starting after node index i anchored at
// node n, accumulating bindings.
func expandPattern(g *types.Graph, pattern *gql.PathPattern, i int, n *types.Node, b binding) ([]binding, error) {
	if i >= len(pattern.Edges) {
		out := make(binding, len(b))
		for k, v := range b {
			out[k] = v
		}
		return []binding{out}, nil
	}

	edgePat := pattern.Edges[i]
	nextPat := pattern.Nodes[i+1]
	var results []binding

	for _, eid := range g.EdgeIDs() {
		e := g.Edges[eid]
		var neighborID string
		switch edgePat.Direction {
		case "right":
			if e.From != n.ID {
				continue
			}
			neighborID = e.To
		case "left":
			if e.To != n.ID {
				continue
			}
			neighborID = e.From
		default: // undirected
			switch n.ID {
			case e.From:
				neighborID = e.To
			case e.To:
				neighborID = e.From
			default:
				continue
			}
		}
		ok, err := edgeMatches(e, edgePat, bindingEnv{b})
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		neighbor := g.Node(neighborID)
		if neighbor == nil {
			continue
		}
		ok, err = nodeMatches(neighbor, nextPat, bindingEnv{b})
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}

		child := make(binding, len(b)+2)
		for k, v := range b {
			child[k] = v
		}
		if edgePat.Variable != "" {
			child[edgePat.Variable] = boundEntity{Edge: e}
		}
		if nextPat.Variable != "" {
			child[nextPat.Variable] = boundEntity{Node: neighbor}
		}
		expanded, err := expandPattern(g, pattern, i+1, neighbor, child)
		if err != nil {
			return nil, err
		}
		results = append(results, expanded...)
	}
	return results, nil
}

// exprName renders a column name for an unaliased return item.
func exprName(e gql.Expr) string {
	switch x := e.(type) {
	case *gql.Ident:
		return x.Name
	case *gql.PropertyAccess:
		return x.Object + "." + x.Property
	case *gql.FuncCall:
		if x.Star {
			return x.Name + "(*)"
		}
		var args []string
		for _, a := range x.Args {
			args = append(args, exprName(a))
		}
		return x.Name + "(" + strings.Join(args, ", ") + ")"
	case *gql.Literal:
		return fmt.Sprintf("%v", x.Value)
	}
	return "expr"
}

// aggregateCall returns the aggregate function if the expression is one.
func aggregateCall(e gql.Expr) *gql.FuncCall {
	fc, ok := e.(*gql.FuncCall)
	if !ok || fc.Namespace != "" {
		return nil
	}
	switch fc.Name {
	case "count", "sum", "avg", "min", "max":
		return fc
	}
	return nil
}

// EvalMatchReturn evaluates MATCH ... RETURN over a graph snapshot.
func EvalMatchReturn(ctx *Context, g *types.Graph, stmt *gql.MatchStatement) (*QueryResult, error) {
	bindings, err := matchBindings(g, stmt.Pattern, stmt.Where)
	if err != nil {
		return nil, err
	}

	columns := make([]string, len(stmt.Return))
	hasAggregate := false
	for i, item := range stmt.Return {
		if item.Alias != "" {
			columns[i] = item.Alias
		} else {
			columns[i] = exprName(item.Expr)
		}
		if aggregateCall(item.Expr) != nil {
			hasAggregate = true
		}
	}

	if hasAggregate {
		row, err := evalAggregates(stmt.Return, columns, bindings)
		if err != nil {
			return nil, err
		}
		return &QueryResult{Variables: columns, Rows: []Row{row}}, nil
	}

	budget := ctx.MemoryBudget()
	useTopK := len(stmt.OrderBy) > 0 && stmt.Limit >= 0

	var rows []sortableRow
	totalSize := 0

	for _, b := range bindings {
		env := bindingEnv{b}
		values := make(map[string]types.Value, len(stmt.Return))
		srcEntities := make(map[string]EntityRef)
		for i, item := range stmt.Return {
			v, err := Eval(item.Expr, env)
			if err != nil {
				return nil, err
			}
			values[columns[i]] = v
			if id, ok := item.Expr.(*gql.Ident); ok {
				if ent, bound := b[id.Name]; bound {
					if ent.Node != nil {
						srcEntities[columns[i]] = EntityRef{Kind: "node", ID: ent.Node.ID}
					} else {
						srcEntities[columns[i]] = EntityRef{Kind: "edge", ID: ent.Edge.ID}
					}
				}
			}
		}
		row := NewRow(columns, values)
		row.SourceEntities = srcEntities

		var keys []types.Value
		for _, key := range stmt.OrderBy {
			v, err := Eval(key.Expr, env)
			if err != nil {
				return nil, err
			}
			keys = append(keys, v)
		}

		rows = append(rows, sortableRow{row: row, keys: keys})
		totalSize += approxRowSize(row)
		if !useTopK && totalSize > budget {
			return nil, Errorf(KindMemoryLimit,
				"result materialization exceeded the %d-byte memory budget", budget)
		}
		if useTopK && len(rows) > stmt.Limit {
			// Streaming top-K: keep the window sorted, discard the excess.
			sortRows(rows, stmt.OrderBy)
			rows = rows[:stmt.Limit]
		}
	}

	if len(stmt.OrderBy) > 0 {
		sortRows(rows, stmt.OrderBy)
	}
	if stmt.Limit >= 0 && len(rows) > stmt.Limit {
		rows = rows[:stmt.Limit]
	}

	out := make([]Row, len(rows))
	for i, r := range rows {
		out[i] = r.row
	}
	return &QueryResult{Variables: columns, Rows: out}, nil
}

type sortableRow struct {
	row  Row
	keys []types.Value
}

func sortRows(rows []sortableRow, orderBy []gql.OrderKey) {
	sort.SliceStable(rows, func(i, j int) bool {
		for k := range orderBy {
			cmp := rows[i].keys[k].Compare(rows[j].keys[k])
			if cmp == 0 {
				continue
			}
			if orderBy[k].Descending {
				return cmp > 0
			}
			return cmp < 0
		}
		return false
	})
}

func evalAggregates(items []gql.ReturnItem, columns []string, bindings []binding) (Row, error) {
	values := make(map[string]types.Value, len(items))
	for i, item := range items {
		fc := aggregateCall(item.Expr)
		if fc == nil {
			// Non-aggregate alongside an aggregate: take the first row's
			// value (single-group semantics).
			if len(bindings) > 0 {
				v, err := Eval(item.Expr, bindingEnv{bindings[0]})
				if err != nil {
					return Row{}, err
				}
				values[columns[i]] = v
			} else {
				values[columns[i]] = types.Null()
			}
			continue
		}

		switch fc.Name {
		case "count":
			if fc.Star || len(fc.Args) == 0 {
				values[columns[i]] = types.NewNumber(float64(len(bindings)))
				continue
			}
			count := 0
			for _, b := range bindings {
				v, err := Eval(fc.Args[0], bindingEnv{b})
				if err != nil {
					return Row{}, err
				}
				if !v.IsNull() {
					count++
				}
			}
			values[columns[i]] = types.NewNumber(float64(count))
		case "sum", "avg", "min", "max":
			if len(fc.Args) != 1 {
				return Row{}, Errorf(KindExpression, "%s() expects 1 argument", fc.Name)
			}
			var nums []float64
			var vals []types.Value
			for _, b := range bindings {
				v, err := Eval(fc.Args[0], bindingEnv{b})
				if err != nil {
					return Row{}, err
				}
				if v.IsNull() {
					continue
				}
				vals = append(vals, v)
				if v.Kind == types.KindNumber {
					nums = append(nums, v.Number)
				}
			}
			if len(vals) == 0 {
				values[columns[i]] = types.Null()
				continue
			}
			switch fc.Name {
			case "sum":
				total := 0.0
				for _, n := range nums {
					total += n
				}
				values[columns[i]] = types.NewNumber(total)
			case "avg":
				if len(nums) == 0 {
					values[columns[i]] = types.Null()
					continue
				}
				total := 0.0
				for _, n := range nums {
					total += n
				}
				values[columns[i]] = types.NewNumber(total / float64(len(nums)))
			case "min":
				best := vals[0]
				for _, v := range vals[1:] {
					if v.Compare(best) < 0 {
						best = v
					}
				}
				values[columns[i]] = best
			case "max":
				best := vals[0]
				for _, v := range vals[1:] {
					if v.Compare(best) > 0 {
						best = v
					}
				}
				values[columns[i]] = best
			}
		}
	}
	return NewRow(columns, values), nil
}

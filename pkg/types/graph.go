package types

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// Node is a labeled property vertex. Labels keep insertion order and are
// membership-tested; Properties map property names to values.
type Node struct {
	ID         string           `json:"id"`
	Labels     []string         `json:"labels"`
	Properties map[string]Value `json:"properties"`
}

// HasLabel reports whether the node carries the given label.
func (n *Node) HasLabel(label string) bool {
	for _, l := range n.Labels {
		if l == label {
			return true
		}
	}
	return false
}

// AddLabel appends a label if not already present.
func (n *Node) AddLabel(label string) {
	if !n.HasLabel(label) {
		n.Labels = append(n.Labels, label)
	}
}

// RemoveLabel removes a label if present.
func (n *Node) RemoveLabel(label string) {
	for i, l := range n.Labels {
		if l == label {
			n.Labels = append(n.Labels[:i], n.Labels[i+1:]...)
			return
		}
	}
}

// SetProperty sets a property value.
func (n *Node) SetProperty(name string, v Value) {
	if n.Properties == nil {
		n.Properties = make(map[string]Value)
	}
	n.Properties[name] = v
}

// Property returns a property value, or null when absent.
func (n *Node) Property(name string) Value {
	if v, ok := n.Properties[name]; ok {
		return v
	}
	return Null()
}

// Clone returns a deep copy of the node.
func (n *Node) Clone() *Node {
	out := &Node{
		ID:         n.ID,
		Labels:     append([]string(nil), n.Labels...),
		Properties: make(map[string]Value, len(n.Properties)),
	}
	for k, v := range n.Properties {
		out.Properties[k] = v.Clone()
	}
	return out
}

// Edge is a directed labeled property edge between two nodes of the same
// graph.
type Edge struct {
	ID         string           `json:"id"`
	From       string           `json:"from"`
	To         string           `json:"to"`
	Label      string           `json:"label"`
	Properties map[string]Value `json:"properties"`
}

// SetProperty sets a property value.
func (e *Edge) SetProperty(name string, v Value) {
	if e.Properties == nil {
		e.Properties = make(map[string]Value)
	}
	e.Properties[name] = v
}

// Property returns a property value, or null when absent.
func (e *Edge) Property(name string) Value {
	if v, ok := e.Properties[name]; ok {
		return v
	}
	return Null()
}

// Clone returns a deep copy of the edge.
func (e *Edge) Clone() *Edge {
	out := &Edge{
		ID:         e.ID,
		From:       e.From,
		To:         e.To,
		Label:      e.Label,
		Properties: make(map[string]Value, len(e.Properties)),
	}
	for k, v := range e.Properties {
		out.Properties[k] = v.Clone()
	}
	return out
}

// Graph is an in-memory property graph: a node set and an edge set with
// referential integrity between them.
type Graph struct {
	Nodes map[string]*Node `json:"nodes"`
	Edges map[string]*Edge `json:"edges"`
}

// NewGraph returns an empty graph.
func NewGraph() *Graph {
	return &Graph{
		Nodes: make(map[string]*Node),
		Edges: make(map[string]*Edge),
	}
}

// HasNode reports whether a node id exists.
func (g *Graph) HasNode(id string) bool {
	_, ok := g.Nodes[id]
	return ok
}

// HasEdge reports whether an edge id exists.
func (g *Graph) HasEdge(id string) bool {
	_, ok := g.Edges[id]
	return ok
}

// Node returns a node by id, or nil.
func (g *Graph) Node(id string) *Node { return g.Nodes[id] }

// Edge returns an edge by id, or nil.
func (g *Graph) Edge(id string) *Edge { return g.Edges[id] }

// AddNode inserts a node. The id must be unique within the graph.
func (g *Graph) AddNode(n *Node) error {
	if n.ID == "" {
		return fmt.Errorf("node id must not be empty")
	}
	if g.HasNode(n.ID) {
		return fmt.Errorf("node %q already exists", n.ID)
	}
	if n.Properties == nil {
		n.Properties = make(map[string]Value)
	}
	g.Nodes[n.ID] = n
	return nil
}

// AddEdge inserts an edge. Both endpoints must exist in the graph.
func (g *Graph) AddEdge(e *Edge) error {
	if e.ID == "" {
		return fmt.Errorf("edge id must not be empty")
	}
	if g.HasEdge(e.ID) {
		return fmt.Errorf("edge %q already exists", e.ID)
	}
	if !g.HasNode(e.From) {
		return fmt.Errorf("edge %q references missing from-node %q", e.ID, e.From)
	}
	if !g.HasNode(e.To) {
		return fmt.Errorf("edge %q references missing to-node %q", e.ID, e.To)
	}
	if e.Properties == nil {
		e.Properties = make(map[string]Value)
	}
	g.Edges[e.ID] = e
	return nil
}

// RemoveNode deletes a node and every edge incident to it. Returns the
// removed edges for undo bookkeeping.
func (g *Graph) RemoveNode(id string) []*Edge {
	var removed []*Edge
	for eid, e := range g.Edges {
		if e.From == id || e.To == id {
			removed = append(removed, e)
			delete(g.Edges, eid)
		}
	}
	delete(g.Nodes, id)
	return removed
}

// RemoveEdge deletes an edge by id.
func (g *Graph) RemoveEdge(id string) {
	delete(g.Edges, id)
}

// NodeCount returns the number of nodes.
func (g *Graph) NodeCount() int { return len(g.Nodes) }

// EdgeCount returns the number of edges.
func (g *Graph) EdgeCount() int { return len(g.Edges) }

// Clear removes every node and edge but keeps the graph itself.
func (g *Graph) Clear() {
	g.Nodes = make(map[string]*Node)
	g.Edges = make(map[string]*Edge)
}

// NodeIDs returns all node ids in sorted order.
func (g *Graph) NodeIDs() []string {
	ids := make([]string, 0, len(g.Nodes))
	for id := range g.Nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// EdgeIDs returns all edge ids in sorted order.
func (g *Graph) EdgeIDs() []string {
	ids := make([]string, 0, len(g.Edges))
	for id := range g.Edges {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// NodesByLabel returns the nodes carrying the label, sorted by id.
func (g *Graph) NodesByLabel(label string) []*Node {
	var out []*Node
	for _, id := range g.NodeIDs() {
		n := g.Nodes[id]
		if label == "" || n.HasLabel(label) {
			out = append(out, n)
		}
	}
	return out
}

// EdgesByLabel returns the edges carrying the label, sorted by id.
func (g *Graph) EdgesByLabel(label string) []*Edge {
	var out []*Edge
	for _, id := range g.EdgeIDs() {
		e := g.Edges[id]
		if label == "" || e.Label == label {
			out = append(out, e)
		}
	}
	return out
}

// Clone returns a deep value-copy of the graph. Mutating the clone never
// affects the original.
func (g *Graph) Clone() *Graph {
	out := NewGraph()
	for id, n := range g.Nodes {
		out.Nodes[id] = n.Clone()
	}
	for id, e := range g.Edges {
		out.Edges[id] = e.Clone()
	}
	return out
}

// Equal reports structural equality over nodes, edges, and properties.
func (g *Graph) Equal(o *Graph) bool {
	if len(g.Nodes) != len(o.Nodes) || len(g.Edges) != len(o.Edges) {
		return false
	}
	for id, n := range g.Nodes {
		on, ok := o.Nodes[id]
		if !ok || len(n.Labels) != len(on.Labels) || len(n.Properties) != len(on.Properties) {
			return false
		}
		for i, l := range n.Labels {
			if on.Labels[i] != l {
				return false
			}
		}
		for k, v := range n.Properties {
			ov, ok := on.Properties[k]
			if !ok || !v.Equal(ov) {
				return false
			}
		}
	}
	for id, e := range g.Edges {
		oe, ok := o.Edges[id]
		if !ok || e.From != oe.From || e.To != oe.To || e.Label != oe.Label ||
			len(e.Properties) != len(oe.Properties) {
			return false
		}
		for k, v := range e.Properties {
			ov, ok := oe.Properties[k]
			if !ok || !v.Equal(ov) {
				return false
			}
		}
	}
	return true
}

// Union merges other into a copy of g, deduplicating nodes and edges by id.
func (g *Graph) Union(other *Graph) *Graph {
	out := g.Clone()
	for id, n := range other.Nodes {
		if !out.HasNode(id) {
			out.Nodes[id] = n.Clone()
		}
	}
	for id, e := range other.Edges {
		if !out.HasEdge(id) && out.HasNode(e.From) && out.HasNode(e.To) {
			out.Edges[id] = e.Clone()
		}
	}
	return out
}

// graphWire is the deterministic serialization shape: nodes and edges as
// id-sorted slices so that identical graphs produce identical bytes.
type graphWire struct {
	Nodes []*Node `json:"nodes"`
	Edges []*Edge `json:"edges"`
}

// Serialize encodes the graph deterministically.
func (g *Graph) Serialize() ([]byte, error) {
	wire := graphWire{
		Nodes: make([]*Node, 0, len(g.Nodes)),
		Edges: make([]*Edge, 0, len(g.Edges)),
	}
	for _, id := range g.NodeIDs() {
		wire.Nodes = append(wire.Nodes, g.Nodes[id])
	}
	for _, id := range g.EdgeIDs() {
		wire.Edges = append(wire.Edges, g.Edges[id])
	}
	return json.Marshal(wire)
}

// DeserializeGraph decodes a graph produced by Serialize.
func DeserializeGraph(data []byte) (*Graph, error) {
	var wire graphWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, err
	}
	g := NewGraph()
	for _, n := range wire.Nodes {
		if n.Properties == nil {
			n.Properties = make(map[string]Value)
		}
		g.Nodes[n.ID] = n
	}
	for _, e := range wire.Edges {
		if e.Properties == nil {
			e.Properties = make(map[string]Value)
		}
		g.Edges[e.ID] = e
	}
	return g, nil
}

// ContentNodeID derives a content-addressed node id from labels and
// properties. Identical content hashes to the identical id.
func ContentNodeID(labels []string, props map[string]Value) string {
	h := xxhash.New()
	for _, l := range labels {
		h.WriteString("l:")
		h.WriteString(l)
		h.WriteString("\x00")
	}
	writeSortedProps(h, props)
	return fmt.Sprintf("n_%016x", h.Sum64())
}

// ContentEdgeID derives a content-addressed edge id.
func ContentEdgeID(from, to, label string, props map[string]Value) string {
	h := xxhash.New()
	h.WriteString(from)
	h.WriteString("\x00")
	h.WriteString(to)
	h.WriteString("\x00")
	h.WriteString(label)
	h.WriteString("\x00")
	writeSortedProps(h, props)
	return fmt.Sprintf("e_%016x", h.Sum64())
}

func writeSortedProps(h *xxhash.Digest, props map[string]Value) {
	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		h.WriteString("p:")
		h.WriteString(k)
		h.WriteString("=")
		h.WriteString(props[k].String())
		h.WriteString("\x00")
	}
}

// ValidatePathSegment checks a single schema or graph name: non-empty, no
// whitespace, not digit-prefixed.
func ValidatePathSegment(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("name cannot be empty")
	}
	if strings.ContainsAny(name, " \t\n\r") {
		return fmt.Errorf("name %q cannot contain whitespace", name)
	}
	if name[0] >= '0' && name[0] <= '9' {
		return fmt.Errorf("name %q cannot start with a digit", name)
	}
	return nil
}

// SplitGraphPath parses a full graph path "/schema/graph" into its parts.
func SplitGraphPath(path string) (schema, graph string, err error) {
	trimmed := strings.TrimPrefix(path, "/")
	parts := strings.Split(trimmed, "/")
	if len(parts) != 2 {
		return "", "", fmt.Errorf("invalid graph path %q: want /schema/graph", path)
	}
	if err := ValidatePathSegment(parts[0]); err != nil {
		return "", "", fmt.Errorf("invalid graph path %q: %w", path, err)
	}
	if err := ValidatePathSegment(parts[1]); err != nil {
		return "", "", fmt.Errorf("invalid graph path %q: %w", path, err)
	}
	return parts[0], parts[1], nil
}

// GraphPath joins schema and graph names into the full path form.
func GraphPath(schema, graph string) string {
	return "/" + schema + "/" + graph
}

package txn

import (
	"fmt"

	"github.com/gqlite/gqlite/pkg/types"
)

// UndoKind tags the undo operation variants.
type UndoKind string

const (
	// UndoInsertNode re-inserts a node (reverses a deletion).
	UndoInsertNode UndoKind = "insert_node"
	// UndoDeleteNode removes a node (reverses an insertion).
	UndoDeleteNode UndoKind = "delete_node"
	// UndoUpdateNode restores a node's former properties and labels.
	UndoUpdateNode UndoKind = "update_node"
	// UndoInsertEdge re-inserts an edge (reverses a deletion).
	UndoInsertEdge UndoKind = "insert_edge"
	// UndoDeleteEdge removes an edge (reverses an insertion).
	UndoDeleteEdge UndoKind = "delete_edge"
	// UndoUpdateEdge restores an edge's former properties and label.
	UndoUpdateEdge UndoKind = "update_edge"
	// UndoBatch bundles undo operations that must reverse atomically.
	UndoBatch UndoKind = "batch"
	// UndoNone is the empty undo for statements that changed nothing.
	UndoNone UndoKind = "none"
)

// UndoOp is a reverse-mutation record. GraphPath addresses the graph the
// operation applies to; the payload fields depend on Kind.
type UndoOp struct {
	Kind      UndoKind `json:"kind"`
	GraphPath string   `json:"graph_path,omitempty"`

	NodeID string      `json:"node_id,omitempty"`
	Node   *types.Node `json:"node,omitempty"`

	EdgeID string      `json:"edge_id,omitempty"`
	Edge   *types.Edge `json:"edge,omitempty"`

	OldProperties map[string]types.Value `json:"old_properties,omitempty"`
	OldLabels     []string               `json:"old_labels,omitempty"`
	OldLabel      string                 `json:"old_label,omitempty"`

	Ops []UndoOp `json:"ops,omitempty"`
}

// NoneUndo returns the empty undo op.
func NoneUndo() UndoOp { return UndoOp{Kind: UndoNone} }

// BatchUndo bundles multiple undo ops; a single op collapses to itself.
func BatchUndo(ops []UndoOp) UndoOp {
	switch len(ops) {
	case 0:
		return NoneUndo()
	case 1:
		return ops[0]
	}
	return UndoOp{Kind: UndoBatch, Ops: ops}
}

// Paths accumulates every graph path the operation touches, recursing into
// batches. Rollback uses this to invalidate caches for restored graphs.
func (op UndoOp) Paths(into map[string]struct{}) {
	if op.GraphPath != "" {
		into[op.GraphPath] = struct{}{}
	}
	for _, child := range op.Ops {
		child.Paths(into)
	}
}

// GraphStore is the slice of the storage manager undo application needs.
type GraphStore interface {
	GetGraph(path string) (*types.Graph, error)
	SaveGraph(path string, g *types.Graph) error
}

// Apply reverses the operation against current storage. Batch members apply
// in reverse push order.
func (op UndoOp) Apply(store GraphStore) error {
	switch op.Kind {
	case UndoNone:
		return nil
	case UndoBatch:
		for i := len(op.Ops) - 1; i >= 0; i-- {
			if err := op.Ops[i].Apply(store); err != nil {
				return err
			}
		}
		return nil
	}

	g, err := store.GetGraph(op.GraphPath)
	if err != nil {
		return fmt.Errorf("undo: failed to load graph %q: %w", op.GraphPath, err)
	}
	if g == nil {
		// The graph is gone (dropped after the operation); nothing to
		// restore into.
		return nil
	}

	switch op.Kind {
	case UndoInsertNode:
		if op.Node != nil && !g.HasNode(op.Node.ID) {
			if err := g.AddNode(op.Node.Clone()); err != nil {
				return fmt.Errorf("undo: %w", err)
			}
		}
	case UndoDeleteNode:
		g.RemoveNode(op.NodeID)
	case UndoUpdateNode:
		if n := g.Node(op.NodeID); n != nil {
			n.Properties = make(map[string]types.Value, len(op.OldProperties))
			for k, v := range op.OldProperties {
				n.Properties[k] = v.Clone()
			}
			n.Labels = append([]string(nil), op.OldLabels...)
		}
	case UndoInsertEdge:
		if op.Edge != nil && !g.HasEdge(op.Edge.ID) {
			if err := g.AddEdge(op.Edge.Clone()); err != nil {
				return fmt.Errorf("undo: %w", err)
			}
		}
	case UndoDeleteEdge:
		g.RemoveEdge(op.EdgeID)
	case UndoUpdateEdge:
		if e := g.Edge(op.EdgeID); e != nil {
			e.Properties = make(map[string]types.Value, len(op.OldProperties))
			for k, v := range op.OldProperties {
				e.Properties[k] = v.Clone()
			}
			e.Label = op.OldLabel
		}
	default:
		return fmt.Errorf("undo: unknown kind %q", op.Kind)
	}

	if err := store.SaveGraph(op.GraphPath, g); err != nil {
		return fmt.Errorf("undo: failed to save graph %q: %w", op.GraphPath, err)
	}
	return nil
}

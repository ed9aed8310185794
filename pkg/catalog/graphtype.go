package catalog

import (
	"encoding/json"
	"fmt"
	"sort"
)

// TypeVersion is a semantic version for a graph type definition.
type TypeVersion struct {
	Major int `json:"major"`
	Minor int `json:"minor"`
	Patch int `json:"patch"`
}

func (v TypeVersion) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// NodeTypeSpec declares a node type: required label plus property names and
// their expected value kinds.
type NodeTypeSpec struct {
	Label      string            `json:"label"`
	Properties map[string]string `json:"properties"`
}

// EdgeTypeSpec declares an edge type between two node labels.
type EdgeTypeSpec struct {
	Label      string            `json:"label"`
	FromLabel  string            `json:"from_label"`
	ToLabel    string            `json:"to_label"`
	Properties map[string]string `json:"properties"`
}

// GraphTypeDefinition is a versioned graph type.
type GraphTypeDefinition struct {
	Name        string         `json:"name"`
	Version     TypeVersion    `json:"version"`
	Predecessor *TypeVersion   `json:"predecessor,omitempty"`
	NodeTypes   []NodeTypeSpec `json:"node_types"`
	EdgeTypes   []EdgeTypeSpec `json:"edge_types"`
}

// GraphTypeProvider stores graph type definitions. ALTER creates a new
// version whose predecessor points at the replaced one.
type GraphTypeProvider struct {
	typesByName map[string]*GraphTypeDefinition
	// references is consulted on DROP; the executor wires it to the
	// graph_metadata provider before use.
	references func(typeName string) bool
}

// NewGraphTypeProvider returns an empty graph type provider.
func NewGraphTypeProvider() *GraphTypeProvider {
	return &GraphTypeProvider{typesByName: make(map[string]*GraphTypeDefinition)}
}

// BindReferenceCheck wires the drop-time reference check.
func (p *GraphTypeProvider) BindReferenceCheck(fn func(typeName string) bool) {
	p.references = fn
}

func (p *GraphTypeProvider) Init(_ *ProviderStorage) error { return nil }

func (p *GraphTypeProvider) Execute(op Operation) (*Response, error) {
	switch op.Kind {
	case OpCreate:
		return p.create(op)
	case OpUpdate:
		return p.alter(op)
	case OpDrop:
		return p.drop(op)
	case OpQuery:
		return p.query(op)
	}
	return nil, NewError(KindNotSupported, "graph_type catalog does not support %s", op.Kind)
}

func (p *GraphTypeProvider) ExecuteReadOnly(op Operation) (*Response, error) {
	if op.Kind == OpQuery {
		return p.query(op)
	}
	return readOnlyFallback(op)
}

func decodeTypeSpecs(params map[string]any) ([]NodeTypeSpec, []EdgeTypeSpec, error) {
	// Round-trip through JSON so both typed structs and generic maps decode.
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, nil, err
	}
	var decoded struct {
		NodeTypes []NodeTypeSpec `json:"node_types"`
		EdgeTypes []EdgeTypeSpec `json:"edge_types"`
	}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, nil, err
	}
	return decoded.NodeTypes, decoded.EdgeTypes, nil
}

func (p *GraphTypeProvider) create(op Operation) (*Response, error) {
	if op.Name == "" {
		return nil, NewError(KindInvalidParams, "graph type name cannot be empty")
	}
	if _, exists := p.typesByName[op.Name]; exists {
		return nil, NewError(KindAlreadyExists, "graph type %q already exists", op.Name)
	}
	nodeTypes, edgeTypes, err := decodeTypeSpecs(op.Params)
	if err != nil {
		return nil, NewError(KindInvalidParams, "invalid graph type specification: %v", err)
	}
	p.typesByName[op.Name] = &GraphTypeDefinition{
		Name:      op.Name,
		Version:   TypeVersion{Major: 1},
		NodeTypes: nodeTypes,
		EdgeTypes: edgeTypes,
	}
	return &Response{Data: map[string]any{"name": op.Name, "version": "1.0.0"}}, nil
}

func (p *GraphTypeProvider) alter(op Operation) (*Response, error) {
	current, exists := p.typesByName[op.Name]
	if !exists {
		return nil, NewError(KindNotFound, "graph type %q not found", op.Name)
	}
	nodeTypes, edgeTypes, err := decodeTypeSpecs(op.Params)
	if err != nil {
		return nil, NewError(KindInvalidParams, "invalid graph type specification: %v", err)
	}
	prev := current.Version
	p.typesByName[op.Name] = &GraphTypeDefinition{
		Name:        op.Name,
		Version:     TypeVersion{Major: prev.Major, Minor: prev.Minor + 1},
		Predecessor: &prev,
		NodeTypes:   nodeTypes,
		EdgeTypes:   edgeTypes,
	}
	return &Response{Data: map[string]any{
		"name":    op.Name,
		"version": p.typesByName[op.Name].Version.String(),
	}}, nil
}

func (p *GraphTypeProvider) drop(op Operation) (*Response, error) {
	if _, exists := p.typesByName[op.Name]; !exists {
		return nil, NewError(KindNotFound, "graph type %q not found", op.Name)
	}
	if !op.Cascade && p.references != nil && p.references(op.Name) {
		return nil, NewError(KindOperationFailed,
			"graph type %q is referenced by existing graphs; use CASCADE to drop anyway", op.Name)
	}
	delete(p.typesByName, op.Name)
	return &Response{Data: map[string]any{"name": op.Name}}, nil
}

func (p *GraphTypeProvider) query(op Operation) (*Response, error) {
	switch op.Name {
	case "list":
		names := make([]string, 0, len(p.typesByName))
		for name := range p.typesByName {
			names = append(names, name)
		}
		sort.Strings(names)
		rows := make([]map[string]any, 0, len(names))
		for _, name := range names {
			t := p.typesByName[name]
			rows = append(rows, map[string]any{
				"type_name": t.Name,
				"version":   t.Version.String(),
			})
		}
		return &Response{Rows: rows}, nil
	case "get":
		name, _ := op.Params["name"].(string)
		t, ok := p.typesByName[name]
		if !ok {
			return nil, NewError(KindNotFound, "graph type %q not found", name)
		}
		raw, err := json.Marshal(t)
		if err != nil {
			return nil, NewError(KindOperationFailed, "failed to encode graph type: %v", err)
		}
		var data map[string]any
		if err := json.Unmarshal(raw, &data); err != nil {
			return nil, NewError(KindOperationFailed, "failed to decode graph type: %v", err)
		}
		return &Response{Data: data}, nil
	}
	return nil, NewError(KindNotSupported, "unknown graph_type query %q", op.Name)
}

// Definition returns the current definition of a type, or nil.
func (p *GraphTypeProvider) Definition(name string) *GraphTypeDefinition {
	return p.typesByName[name]
}

func (p *GraphTypeProvider) Save() ([]byte, error) {
	return json.Marshal(p.typesByName)
}

func (p *GraphTypeProvider) Load(data []byte) error {
	typesByName := make(map[string]*GraphTypeDefinition)
	if err := json.Unmarshal(data, &typesByName); err != nil {
		return NewError(KindPersistence, "failed to decode graph_type catalog: %v", err)
	}
	p.typesByName = typesByName
	return nil
}

func (p *GraphTypeProvider) Schema() Schema {
	return Schema{
		Name:       "graph_type",
		Version:    "1.0",
		Entities:   []string{string(EntityGraphType)},
		Operations: p.SupportedOperations(),
	}
}

func (p *GraphTypeProvider) SupportedOperations() []string {
	return []string{"create", "update", "drop", "query:list", "query:get"}
}

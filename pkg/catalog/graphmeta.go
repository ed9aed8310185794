package catalog

import (
	"encoding/json"
	"sort"
	"strings"
	"time"
)

// GraphEntry records the existence of a graph under its qualified name
// "schema/graph" plus an optional graph-type reference.
type GraphEntry struct {
	QualifiedName string    `json:"qualified_name"`
	SchemaName    string    `json:"schema_name"`
	GraphName     string    `json:"graph_name"`
	GraphType     string    `json:"graph_type,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	ModifiedAt    time.Time `json:"modified_at"`
}

// GraphMetadataProvider tracks graph existence and qualified names.
type GraphMetadataProvider struct {
	graphs map[string]*GraphEntry
}

// NewGraphMetadataProvider returns an empty graph metadata provider.
func NewGraphMetadataProvider() *GraphMetadataProvider {
	return &GraphMetadataProvider{graphs: make(map[string]*GraphEntry)}
}

func (p *GraphMetadataProvider) Init(_ *ProviderStorage) error { return nil }

func (p *GraphMetadataProvider) Execute(op Operation) (*Response, error) {
	switch op.Kind {
	case OpCreate:
		return p.create(op)
	case OpUpdate:
		return p.update(op)
	case OpDrop:
		return p.drop(op)
	case OpQuery:
		return p.query(op)
	}
	return nil, NewError(KindNotSupported, "graph_metadata catalog does not support %s", op.Kind)
}

func (p *GraphMetadataProvider) ExecuteReadOnly(op Operation) (*Response, error) {
	if op.Kind == OpQuery {
		return p.query(op)
	}
	return readOnlyFallback(op)
}

func splitQualified(name string) (schema, graph string, ok bool) {
	parts := strings.SplitN(name, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}

func (p *GraphMetadataProvider) create(op Operation) (*Response, error) {
	schema, graph, ok := splitQualified(op.Name)
	if !ok {
		return nil, NewError(KindInvalidParams, "graph name %q must be qualified as schema/graph", op.Name)
	}
	if _, exists := p.graphs[op.Name]; exists {
		return nil, NewError(KindAlreadyExists, "graph %q already exists", op.Name)
	}
	now := time.Now().UTC()
	entry := &GraphEntry{
		QualifiedName: op.Name,
		SchemaName:    schema,
		GraphName:     graph,
		CreatedAt:     now,
		ModifiedAt:    now,
	}
	if gt, ok := op.Params["graph_type"].(string); ok {
		entry.GraphType = gt
	}
	p.graphs[op.Name] = entry
	return &Response{Data: map[string]any{"qualified_name": op.Name}}, nil
}

// update handles modification stamps. The executor sends synthetic
// operation=clear|truncate events so the entry records when the graph
// contents last changed shape.
func (p *GraphMetadataProvider) update(op Operation) (*Response, error) {
	entry, exists := p.graphs[op.Name]
	if !exists {
		return nil, NewError(KindNotFound, "graph %q not found", op.Name)
	}
	operation, _ := op.Params["operation"].(string)
	switch operation {
	case "clear", "truncate", "touch", "":
		entry.ModifiedAt = time.Now().UTC()
	default:
		return nil, NewError(KindInvalidParams, "unknown graph update operation %q", operation)
	}
	if gt, ok := op.Params["graph_type"].(string); ok {
		entry.GraphType = gt
	}
	return &Response{Data: map[string]any{"qualified_name": op.Name}}, nil
}

func (p *GraphMetadataProvider) drop(op Operation) (*Response, error) {
	if _, exists := p.graphs[op.Name]; !exists {
		return nil, NewError(KindNotFound, "graph %q not found", op.Name)
	}
	delete(p.graphs, op.Name)
	return &Response{Data: map[string]any{"qualified_name": op.Name}}, nil
}

func (p *GraphMetadataProvider) query(op Operation) (*Response, error) {
	switch op.Name {
	case "list":
		schemaFilter, _ := op.Params["schema"].(string)
		names := make([]string, 0, len(p.graphs))
		for name, g := range p.graphs {
			if schemaFilter != "" && g.SchemaName != schemaFilter {
				continue
			}
			names = append(names, name)
		}
		sort.Strings(names)
		rows := make([]map[string]any, 0, len(names))
		for _, name := range names {
			g := p.graphs[name]
			rows = append(rows, map[string]any{
				"graph_name":  g.GraphName,
				"schema_name": g.SchemaName,
				"graph_path":  "/" + g.QualifiedName,
				"graph_type":  g.GraphType,
				"created_at":  g.CreatedAt.Format(time.RFC3339),
				"modified_at": g.ModifiedAt.Format(time.RFC3339),
			})
		}
		return &Response{Rows: rows}, nil
	case "get":
		name, _ := op.Params["name"].(string)
		g, ok := p.graphs[name]
		if !ok {
			return nil, NewError(KindNotFound, "graph %q not found", name)
		}
		return &Response{Data: map[string]any{
			"graph_name":  g.GraphName,
			"schema_name": g.SchemaName,
			"graph_path":  "/" + g.QualifiedName,
			"graph_type":  g.GraphType,
		}}, nil
	}
	return nil, NewError(KindNotSupported, "unknown graph_metadata query %q", op.Name)
}

func (p *GraphMetadataProvider) Save() ([]byte, error) {
	return json.Marshal(p.graphs)
}

func (p *GraphMetadataProvider) Load(data []byte) error {
	graphs := make(map[string]*GraphEntry)
	if err := json.Unmarshal(data, &graphs); err != nil {
		return NewError(KindPersistence, "failed to decode graph_metadata catalog: %v", err)
	}
	p.graphs = graphs
	return nil
}

func (p *GraphMetadataProvider) Schema() Schema {
	return Schema{
		Name:       "graph_metadata",
		Version:    "1.0",
		Entities:   []string{string(EntityGraph)},
		Operations: p.SupportedOperations(),
	}
}

func (p *GraphMetadataProvider) SupportedOperations() []string {
	return []string{"create", "update", "drop", "query:list", "query:get"}
}

// ReferencesGraphType reports whether any graph references the named type.
func (p *GraphMetadataProvider) ReferencesGraphType(typeName string) bool {
	for _, g := range p.graphs {
		if g.GraphType == typeName {
			return true
		}
	}
	return false
}

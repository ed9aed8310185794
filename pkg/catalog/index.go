package catalog

import (
	"encoding/json"
	"sort"
	"time"
)

// IndexEntry is a logical index record. The physical index machinery hangs
// off these entries; only the lifecycle hooks live here.
type IndexEntry struct {
	Name      string    `json:"name"`
	GraphPath string    `json:"graph_path,omitempty"`
	Kind      string    `json:"kind,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// IndexProvider is the reserved index catalog: logical entries plus
// capability introspection.
type IndexProvider struct {
	indexes map[string]*IndexEntry
}

// NewIndexProvider returns an empty index provider.
func NewIndexProvider() *IndexProvider {
	return &IndexProvider{indexes: make(map[string]*IndexEntry)}
}

func (p *IndexProvider) Init(_ *ProviderStorage) error { return nil }

func (p *IndexProvider) Execute(op Operation) (*Response, error) {
	switch op.Kind {
	case OpCreate:
		if op.Name == "" {
			return nil, NewError(KindInvalidParams, "index name cannot be empty")
		}
		if _, exists := p.indexes[op.Name]; exists {
			return nil, NewError(KindAlreadyExists, "index %q already exists", op.Name)
		}
		entry := &IndexEntry{Name: op.Name, CreatedAt: time.Now().UTC()}
		if g, ok := op.Params["graph_path"].(string); ok {
			entry.GraphPath = g
		}
		if k, ok := op.Params["kind"].(string); ok {
			entry.Kind = k
		}
		p.indexes[op.Name] = entry
		return &Response{Data: map[string]any{"name": op.Name}}, nil
	case OpDrop:
		if _, exists := p.indexes[op.Name]; !exists {
			return nil, NewError(KindNotFound, "index %q not found", op.Name)
		}
		delete(p.indexes, op.Name)
		return &Response{Data: map[string]any{"name": op.Name}}, nil
	case OpUpdate:
		if _, exists := p.indexes[op.Name]; !exists {
			return nil, NewError(KindNotFound, "index %q not found", op.Name)
		}
		return &Response{Data: map[string]any{"name": op.Name}}, nil
	case OpQuery:
		if op.Name != "list" {
			return nil, NewError(KindNotSupported, "unknown index query %q", op.Name)
		}
		names := make([]string, 0, len(p.indexes))
		for name := range p.indexes {
			names = append(names, name)
		}
		sort.Strings(names)
		rows := make([]map[string]any, 0, len(names))
		for _, name := range names {
			e := p.indexes[name]
			rows = append(rows, map[string]any{
				"name":       e.Name,
				"graph_path": e.GraphPath,
				"kind":       e.Kind,
			})
		}
		return &Response{Rows: rows}, nil
	}
	return nil, NewError(KindNotSupported, "index catalog does not support %s", op.Kind)
}

func (p *IndexProvider) ExecuteReadOnly(op Operation) (*Response, error) {
	if op.Kind == OpQuery {
		return p.Execute(op)
	}
	return readOnlyFallback(op)
}

func (p *IndexProvider) Save() ([]byte, error) {
	return json.Marshal(p.indexes)
}

func (p *IndexProvider) Load(data []byte) error {
	indexes := make(map[string]*IndexEntry)
	if err := json.Unmarshal(data, &indexes); err != nil {
		return NewError(KindPersistence, "failed to decode index catalog: %v", err)
	}
	p.indexes = indexes
	return nil
}

func (p *IndexProvider) Schema() Schema {
	return Schema{
		Name:       "index",
		Version:    "1.0",
		Entities:   []string{string(EntityIndex)},
		Operations: p.SupportedOperations(),
	}
}

func (p *IndexProvider) SupportedOperations() []string {
	return []string{"create", "update", "drop", "query:list"}
}

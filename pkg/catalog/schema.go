package catalog

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/gqlite/gqlite/pkg/types"
)

// SchemaEntry records a named schema.
type SchemaEntry struct {
	Name       string    `json:"name"`
	Path       string    `json:"path"`
	CreatedAt  time.Time `json:"created_at"`
	ModifiedAt time.Time `json:"modified_at"`
}

// SchemaProvider manages schema entries.
type SchemaProvider struct {
	schemas map[string]*SchemaEntry
}

// NewSchemaProvider returns an empty schema provider.
func NewSchemaProvider() *SchemaProvider {
	return &SchemaProvider{schemas: make(map[string]*SchemaEntry)}
}

func (p *SchemaProvider) Init(_ *ProviderStorage) error { return nil }

func (p *SchemaProvider) Execute(op Operation) (*Response, error) {
	switch op.Kind {
	case OpCreate:
		return p.create(op)
	case OpDrop:
		return p.drop(op)
	case OpQuery:
		return p.query(op)
	}
	return nil, NewError(KindNotSupported, "schema catalog does not support %s", op.Kind)
}

func (p *SchemaProvider) ExecuteReadOnly(op Operation) (*Response, error) {
	if op.Kind == OpQuery {
		return p.query(op)
	}
	return readOnlyFallback(op)
}

func (p *SchemaProvider) create(op Operation) (*Response, error) {
	if err := types.ValidatePathSegment(op.Name); err != nil {
		return nil, NewError(KindInvalidParams, "invalid schema name: %v", err)
	}
	if _, exists := p.schemas[op.Name]; exists {
		return nil, NewError(KindAlreadyExists, "schema %q already exists", op.Name)
	}
	now := time.Now().UTC()
	p.schemas[op.Name] = &SchemaEntry{
		Name:       op.Name,
		Path:       "/" + op.Name,
		CreatedAt:  now,
		ModifiedAt: now,
	}
	return &Response{Data: map[string]any{"name": op.Name}}, nil
}

func (p *SchemaProvider) drop(op Operation) (*Response, error) {
	if _, exists := p.schemas[op.Name]; !exists {
		return nil, NewError(KindNotFound, "schema %q not found", op.Name)
	}
	delete(p.schemas, op.Name)
	return &Response{Data: map[string]any{"name": op.Name}}, nil
}

func (p *SchemaProvider) query(op Operation) (*Response, error) {
	switch op.Name {
	case "list":
		names := make([]string, 0, len(p.schemas))
		for name := range p.schemas {
			names = append(names, name)
		}
		sort.Strings(names)
		rows := make([]map[string]any, 0, len(names))
		for _, name := range names {
			s := p.schemas[name]
			rows = append(rows, map[string]any{
				"schema_name": s.Name,
				"schema_path": s.Path,
				"created_at":  s.CreatedAt.Format(time.RFC3339),
				"modified_at": s.ModifiedAt.Format(time.RFC3339),
			})
		}
		return &Response{Rows: rows}, nil
	case "get":
		name, _ := op.Params["name"].(string)
		s, ok := p.schemas[name]
		if !ok {
			return nil, NewError(KindNotFound, "schema %q not found", name)
		}
		return &Response{Data: map[string]any{
			"schema_name": s.Name,
			"schema_path": s.Path,
		}}, nil
	}
	return nil, NewError(KindNotSupported, "unknown schema query %q", op.Name)
}

func (p *SchemaProvider) Save() ([]byte, error) {
	return json.Marshal(p.schemas)
}

func (p *SchemaProvider) Load(data []byte) error {
	schemas := make(map[string]*SchemaEntry)
	if err := json.Unmarshal(data, &schemas); err != nil {
		return NewError(KindPersistence, "failed to decode schema catalog: %v", err)
	}
	p.schemas = schemas
	return nil
}

func (p *SchemaProvider) Schema() Schema {
	return Schema{
		Name:       "schema",
		Version:    "1.0",
		Entities:   []string{string(EntitySchema)},
		Operations: p.SupportedOperations(),
	}
}

func (p *SchemaProvider) SupportedOperations() []string {
	return []string{"create", "drop", "query:list", "query:get"}
}

// Has reports whether the named schema exists.
func (p *SchemaProvider) Has(name string) bool {
	_, ok := p.schemas[name]
	return ok
}

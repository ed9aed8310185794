package catalog

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/gqlite/gqlite/pkg/kv"
	"github.com/gqlite/gqlite/pkg/log"
)

// snapshotEnvelope is the persisted outer format for provider snapshots.
type snapshotEnvelope struct {
	Provider string `json:"provider"`
	Version  string `json:"version"`
	Bytes    []byte `json:"bytes"`
}

// Manager composes the registry of named providers behind a single
// writer-lock and handles snapshot persistence.
type Manager struct {
	mu        sync.RWMutex
	providers map[string]Provider
	tree      kv.Tree

	// version increments on every successful mutating execute; cache keys
	// embed it so DDL invalidates stale reads.
	version atomic.Uint64
}

// NewManager builds a manager with the standard provider set registered and
// bound to the given catalogs tree.
func NewManager(tree kv.Tree) (*Manager, error) {
	m := &Manager{
		providers: make(map[string]Provider),
		tree:      tree,
	}
	registerAll(m)
	ps := &ProviderStorage{Tree: tree}
	for name, p := range m.providers {
		if err := p.Init(ps); err != nil {
			return nil, fmt.Errorf("failed to init catalog provider %q: %w", name, err)
		}
	}
	return m, nil
}

// registerAll wires the standard providers. Adding a provider is one line
// here plus its implementation.
func registerAll(m *Manager) {
	graphMeta := NewGraphMetadataProvider()
	graphType := NewGraphTypeProvider()
	// DROP GRAPH TYPE must see which graphs still reference the type.
	graphType.BindReferenceCheck(graphMeta.ReferencesGraphType)

	m.register("schema", NewSchemaProvider())
	m.register("graph_metadata", graphMeta)
	m.register("graph_type", graphType)
	m.register("security", NewSecurityProvider())
	m.register("index", NewIndexProvider())
}

func (m *Manager) register(name string, p Provider) {
	m.providers[name] = p
}

// ProviderNames returns the registered provider names in sorted order.
func (m *Manager) ProviderNames() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.providers))
	for name := range m.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Version returns the catalog version counter.
func (m *Manager) Version() uint64 { return m.version.Load() }

// Execute dispatches a mutating operation to the named provider under the
// write lock and bumps the catalog version on success.
func (m *Manager) Execute(name string, op Operation) (*Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.providers[name]
	if !ok {
		return nil, NewError(KindNotFound, "catalog provider %q not registered", name)
	}
	resp, err := p.Execute(op)
	if err != nil {
		return nil, err
	}
	if op.Kind != OpQuery {
		m.version.Add(1)
	}
	return resp, nil
}

// QueryReadOnly dispatches a non-mutating operation under the read lock.
func (m *Manager) QueryReadOnly(name string, op Operation) (*Response, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.providers[name]
	if !ok {
		return nil, NewError(KindNotFound, "catalog provider %q not registered", name)
	}
	return p.ExecuteReadOnly(op)
}

// PersistCatalog snapshots the named provider into the catalogs tree. The
// read lock is held across Save so a concurrent mutation cannot tear the
// snapshot.
func (m *Manager) PersistCatalog(name string) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.providers[name]
	if !ok {
		return NewError(KindNotFound, "catalog provider %q not registered", name)
	}
	data, err := p.Save()
	if err != nil {
		return NewError(KindPersistence, "failed to serialize catalog %q: %v", name, err)
	}
	env := snapshotEnvelope{
		Provider: name,
		Version:  p.Schema().Version,
		Bytes:    data,
	}
	raw, err := json.Marshal(env)
	if err != nil {
		return NewError(KindPersistence, "failed to encode snapshot envelope for %q: %v", name, err)
	}
	if err := m.tree.Insert([]byte(name), raw); err != nil {
		return NewError(KindPersistence, "failed to persist catalog %q: %v", name, err)
	}
	return nil
}

// PersistAll snapshots every provider.
func (m *Manager) PersistAll() error {
	for _, name := range m.ProviderNames() {
		if err := m.PersistCatalog(name); err != nil {
			return err
		}
	}
	return nil
}

// LoadAll restores every provider whose snapshot exists in the tree.
func (m *Manager) LoadAll() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	logger := log.WithComponent("catalog")
	for name, p := range m.providers {
		raw, err := m.tree.Get([]byte(name))
		if err != nil {
			return NewError(KindPersistence, "failed to read snapshot for %q: %v", name, err)
		}
		if raw == nil {
			continue
		}
		var env snapshotEnvelope
		if err := json.Unmarshal(raw, &env); err != nil {
			return NewError(KindPersistence, "corrupt snapshot envelope for %q: %v", name, err)
		}
		if err := p.Load(env.Bytes); err != nil {
			return NewError(KindPersistence, "failed to load catalog %q: %v", name, err)
		}
		logger.Debug().Str("provider", name).Msg("catalog snapshot loaded")
	}
	return nil
}

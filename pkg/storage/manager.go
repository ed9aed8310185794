package storage

import (
	"fmt"
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/gqlite/gqlite/pkg/kv"
	"github.com/gqlite/gqlite/pkg/log"
	"github.com/gqlite/gqlite/pkg/metrics"
	"github.com/gqlite/gqlite/pkg/types"
)

const (
	graphsTree   = "graphs"
	catalogsTree = "catalogs"

	// partitionCount fixes the number of cache partitions. Chosen so that
	// cross-session workloads on distinct graphs rarely contend.
	partitionCount = 16
)

// Manager maps graph paths to in-memory graph caches backed by a KV tree.
// The in-memory cache for a path is updated only after the backend write
// succeeds.
type Manager struct {
	driver kv.Driver
	graphs kv.Tree

	partitions [partitionCount]*partition
}

type partition struct {
	mu    sync.RWMutex
	cache map[string]*types.Graph
}

// NewManager opens the graph tree on the driver and returns a manager.
func NewManager(driver kv.Driver) (*Manager, error) {
	tree, err := driver.OpenTree(graphsTree)
	if err != nil {
		return nil, fmt.Errorf("failed to open graphs tree: %w", err)
	}
	m := &Manager{driver: driver, graphs: tree}
	for i := range m.partitions {
		m.partitions[i] = &partition{cache: make(map[string]*types.Graph)}
	}
	return m, nil
}

// Driver exposes the underlying KV driver (catalog persistence shares it).
func (m *Manager) Driver() kv.Driver { return m.driver }

// CatalogTree opens the tree that catalog snapshots persist into.
func (m *Manager) CatalogTree() (kv.Tree, error) {
	return m.driver.OpenTree(catalogsTree)
}

func (m *Manager) partitionFor(path string) *partition {
	return m.partitions[xxhash.Sum64String(path)%partitionCount]
}

// SaveGraph serializes the graph, writes it to the backend, and then updates
// the in-memory cache for the path.
func (m *Manager) SaveGraph(path string, g *types.Graph) error {
	if _, _, err := types.SplitGraphPath(path); err != nil {
		return err
	}
	data, err := g.Serialize()
	if err != nil {
		return fmt.Errorf("failed to serialize graph %q: %w", path, err)
	}

	p := m.partitionFor(path)
	p.mu.Lock()
	defer p.mu.Unlock()

	existed, err := m.graphs.Contains([]byte(path))
	if err != nil {
		return fmt.Errorf("failed to check graph %q: %w", path, err)
	}
	if err := m.graphs.Insert([]byte(path), data); err != nil {
		return fmt.Errorf("failed to persist graph %q: %w", path, err)
	}
	p.cache[path] = g.Clone()
	if !existed {
		metrics.GraphsTotal.Inc()
	}

	log.WithComponent("storage").Debug().
		Str("graph", path).
		Int("nodes", g.NodeCount()).
		Int("edges", g.EdgeCount()).
		Msg("graph saved")
	return nil
}

// GetGraph returns a value-copy of the graph at path, materializing it from
// the backend on a cache miss. Returns nil when the graph does not exist.
func (m *Manager) GetGraph(path string) (*types.Graph, error) {
	p := m.partitionFor(path)

	p.mu.RLock()
	if g, ok := p.cache[path]; ok {
		clone := g.Clone()
		p.mu.RUnlock()
		return clone, nil
	}
	p.mu.RUnlock()

	data, err := m.graphs.Get([]byte(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read graph %q: %w", path, err)
	}
	if data == nil {
		return nil, nil
	}
	g, err := types.DeserializeGraph(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode graph %q: %w", path, err)
	}

	p.mu.Lock()
	p.cache[path] = g
	clone := g.Clone()
	p.mu.Unlock()
	return clone, nil
}

// HasGraph reports whether a graph exists at path.
func (m *Manager) HasGraph(path string) (bool, error) {
	p := m.partitionFor(path)
	p.mu.RLock()
	if _, ok := p.cache[path]; ok {
		p.mu.RUnlock()
		return true, nil
	}
	p.mu.RUnlock()
	return m.graphs.Contains([]byte(path))
}

// DeleteGraph removes the graph from the backend and drops the cache entry.
// Backend deletion happens first so a failure never leaves the cache
// claiming the graph is gone.
func (m *Manager) DeleteGraph(path string) error {
	p := m.partitionFor(path)
	p.mu.Lock()
	defer p.mu.Unlock()

	existed, err := m.graphs.Contains([]byte(path))
	if err != nil {
		return fmt.Errorf("failed to check graph %q: %w", path, err)
	}
	if err := m.graphs.Remove([]byte(path)); err != nil {
		return fmt.Errorf("failed to delete graph %q: %w", path, err)
	}
	delete(p.cache, path)
	if existed {
		metrics.GraphsTotal.Dec()
	}

	log.WithComponent("storage").Debug().Str("graph", path).Msg("graph deleted")
	return nil
}

// ListGraphPaths returns every stored graph path in key order.
func (m *Manager) ListGraphPaths() ([]string, error) {
	var paths []string
	err := m.graphs.Iter(func(key, _ []byte) error {
		paths = append(paths, string(key))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list graphs: %w", err)
	}
	return paths, nil
}

// ListGraphPathsInSchema returns stored graph paths under /schema/.
func (m *Manager) ListGraphPathsInSchema(schema string) ([]string, error) {
	prefix := "/" + schema + "/"
	var paths []string
	err := m.graphs.ScanPrefix([]byte(prefix), func(key, _ []byte) error {
		paths = append(paths, string(key))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan schema %q: %w", schema, err)
	}
	return paths, nil
}

// Flush forces pending backend writes to disk.
func (m *Manager) Flush() error {
	return m.driver.Flush()
}

// Close flushes and closes the backing driver.
func (m *Manager) Close() error {
	return m.driver.Close()
}

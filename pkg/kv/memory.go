package kv

import (
	"bytes"
	"sort"
	"strings"
	"sync"
)

// MemoryDriver implements Driver with in-process maps. Used by tests and the
// memory backend selector.
type MemoryDriver struct {
	mu    sync.RWMutex
	trees map[string]*memoryTree
}

// NewMemoryDriver returns an empty in-memory driver.
func NewMemoryDriver() *MemoryDriver {
	return &MemoryDriver{trees: make(map[string]*memoryTree)}
}

// OpenTree opens or creates a named tree.
func (d *MemoryDriver) OpenTree(name string) (Tree, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	t, ok := d.trees[name]
	if !ok {
		t = &memoryTree{data: make(map[string][]byte)}
		d.trees[name] = t
	}
	return t, nil
}

// ListTrees returns the names of all non-index trees.
func (d *MemoryDriver) ListTrees() ([]string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var names []string
	for name := range d.trees {
		if !strings.HasPrefix(name, indexTreePrefix) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

// DropTree removes a tree.
func (d *MemoryDriver) DropTree(name string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.trees, name)
	return nil
}

// OpenIndexTree opens an index tree; tuning hints are irrelevant in memory.
func (d *MemoryDriver) OpenIndexTree(name string, _ IndexTreeOptions) (Tree, error) {
	return d.OpenTree(indexTreePrefix + name)
}

// ListIndexes returns the names of all index trees.
func (d *MemoryDriver) ListIndexes() ([]string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var names []string
	for name := range d.trees {
		if strings.HasPrefix(name, indexTreePrefix) {
			names = append(names, strings.TrimPrefix(name, indexTreePrefix))
		}
	}
	sort.Strings(names)
	return names, nil
}

// DropIndex removes an index tree.
func (d *MemoryDriver) DropIndex(name string) error {
	return d.DropTree(indexTreePrefix + name)
}

// TreeStats returns statistics for a tree, or nil when absent.
func (d *MemoryDriver) TreeStats(name string) (*TreeStats, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	t, ok := d.trees[name]
	if !ok {
		return nil, nil
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	var size uint64
	for k, v := range t.data {
		size += uint64(len(k) + len(v))
	}
	return &TreeStats{
		EntryCount:  uint64(len(t.data)),
		SizeBytes:   size,
		MemoryBytes: size,
	}, nil
}

// Flush is a no-op for the memory backend.
func (d *MemoryDriver) Flush() error { return nil }

// Close is a no-op for the memory backend.
func (d *MemoryDriver) Close() error { return nil }

// Type returns BackendMemory.
func (d *MemoryDriver) Type() BackendType { return BackendMemory }

type memoryTree struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func (t *memoryTree) Insert(key, value []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.data[string(key)] = append([]byte(nil), value...)
	return nil
}

func (t *memoryTree) Get(key []byte) ([]byte, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	v, ok := t.data[string(key)]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), v...), nil
}

func (t *memoryTree) Remove(key []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.data, string(key))
	return nil
}

func (t *memoryTree) Contains(key []byte) (bool, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.data[string(key)]
	return ok, nil
}

func (t *memoryTree) Clear() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.data = make(map[string][]byte)
	return nil
}

func (t *memoryTree) IsEmpty() (bool, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.data) == 0, nil
}

func (t *memoryTree) sortedKeys() []string {
	keys := make([]string, 0, len(t.data))
	for k := range t.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (t *memoryTree) Iter(fn func(key, value []byte) error) error {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, k := range t.sortedKeys() {
		if err := fn([]byte(k), t.data[k]); err != nil {
			return err
		}
	}
	return nil
}

func (t *memoryTree) ScanPrefix(prefix []byte, fn func(key, value []byte) error) error {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, k := range t.sortedKeys() {
		if bytes.HasPrefix([]byte(k), prefix) {
			if err := fn([]byte(k), t.data[k]); err != nil {
				return err
			}
		}
	}
	return nil
}

func (t *memoryTree) BatchGet(keys [][]byte) ([][]byte, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([][]byte, len(keys))
	for i, key := range keys {
		if v, ok := t.data[string(key)]; ok {
			out[i] = append([]byte(nil), v...)
		}
	}
	return out, nil
}

func (t *memoryTree) BatchInsert(entries []Entry) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, e := range entries {
		t.data[string(e.Key)] = append([]byte(nil), e.Value...)
	}
	return nil
}

func (t *memoryTree) BatchRemove(keys [][]byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, key := range keys {
		delete(t.data, string(key))
	}
	return nil
}

func (t *memoryTree) Flush() error { return nil }

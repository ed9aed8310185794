package kv

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies driver failures.
type ErrorKind int

const (
	// KindIO is a file-system or device failure.
	KindIO ErrorKind = iota
	// KindSerialization is an encode/decode failure.
	KindSerialization
	// KindBackend is a backend-specific failure.
	KindBackend
)

// Error is the tagged error returned by driver operations.
type Error struct {
	Kind ErrorKind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	prefix := "storage driver error"
	switch e.Kind {
	case KindIO:
		prefix = "I/O error"
	case KindSerialization:
		prefix = "serialization error"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", prefix, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// IOError wraps err as a KindIO driver error.
func IOError(msg string, err error) *Error {
	return &Error{Kind: KindIO, Msg: msg, Err: err}
}

// BackendError wraps err as a KindBackend driver error.
func BackendError(msg string, err error) *Error {
	return &Error{Kind: KindBackend, Msg: msg, Err: err}
}

// ErrNotSupported is returned by the factory for unavailable backends.
var ErrNotSupported = errors.New("storage backend not supported")

// Entry is a key-value pair yielded by iteration.
type Entry struct {
	Key   []byte
	Value []byte
}

// Tree is a named collection of key-value pairs within a driver, similar to
// a bucket in BoltDB or a column family in RocksDB.
type Tree interface {
	// Insert stores a key-value pair.
	Insert(key, value []byte) error

	// Get returns the value for key, or nil when absent.
	Get(key []byte) ([]byte, error)

	// Remove deletes a key.
	Remove(key []byte) error

	// Contains reports whether the key exists.
	Contains(key []byte) (bool, error)

	// Clear removes all entries.
	Clear() error

	// IsEmpty reports whether the tree has no entries.
	IsEmpty() (bool, error)

	// Iter calls fn for every entry in key order. Returning a non-nil error
	// from fn stops the iteration.
	Iter(fn func(key, value []byte) error) error

	// ScanPrefix calls fn for every entry whose key has the prefix.
	ScanPrefix(prefix []byte, fn func(key, value []byte) error) error

	// BatchGet returns values for the keys; missing keys yield nil slots.
	BatchGet(keys [][]byte) ([][]byte, error)

	// BatchInsert stores all entries.
	BatchInsert(entries []Entry) error

	// BatchRemove deletes all keys.
	BatchRemove(keys [][]byte) error

	// Flush forces pending writes to stable storage.
	Flush() error
}

// IndexTreeOptions carries tuning hints for index trees.
type IndexTreeOptions struct {
	IndexType       string
	Compression     bool
	BlockCacheSize  int
	WriteBufferSize int
	BloomFilterBits int
	CustomOptions   map[string]string
}

// DefaultIndexTreeOptions returns the generic index tuning profile.
func DefaultIndexTreeOptions() IndexTreeOptions {
	return IndexTreeOptions{
		IndexType:       "generic",
		Compression:     true,
		BlockCacheSize:  64 * 1024 * 1024,
		WriteBufferSize: 16 * 1024 * 1024,
		BloomFilterBits: 10,
	}
}

// GraphIndexTreeOptions returns the tuning profile for graph indexes.
// Graph data rarely compresses well, so compression stays off.
func GraphIndexTreeOptions() IndexTreeOptions {
	opts := DefaultIndexTreeOptions()
	opts.IndexType = "graph"
	opts.Compression = false
	opts.BloomFilterBits = 12
	return opts
}

// TreeStats reports per-tree statistics.
type TreeStats struct {
	EntryCount  uint64
	SizeBytes   uint64
	MemoryBytes uint64
}

// Driver is the contract every storage backend implements.
type Driver interface {
	// OpenTree opens or creates a named tree.
	OpenTree(name string) (Tree, error)

	// ListTrees returns the names of all trees.
	ListTrees() ([]string, error)

	// DropTree removes a tree and its contents.
	DropTree(name string) error

	// OpenIndexTree opens or creates a tree with index tuning hints.
	OpenIndexTree(name string, opts IndexTreeOptions) (Tree, error)

	// ListIndexes returns the names of all index trees.
	ListIndexes() ([]string, error)

	// DropIndex removes an index tree and its contents.
	DropIndex(name string) error

	// TreeStats returns statistics for a tree, or nil when it is absent.
	TreeStats(name string) (*TreeStats, error)

	// Flush forces all pending writes to stable storage.
	Flush() error

	// Close flushes and releases the backend.
	Close() error

	// Type returns the backend selector this driver serves.
	Type() BackendType
}

// BackendType selects a storage backend implementation.
type BackendType string

const (
	// BackendBolt is the embedded B+tree backend (bbolt).
	BackendBolt BackendType = "bolt"
	// BackendMemory is the in-memory backend for tests.
	BackendMemory BackendType = "memory"
	// BackendBadger is the LSM backend selector. Recognized but not
	// compiled in; Open fails with ErrNotSupported.
	BackendBadger BackendType = "badger"
)

// ParseBackendType parses a backend selector string.
func ParseBackendType(s string) (BackendType, error) {
	switch strings.ToLower(s) {
	case "bolt", "bbolt":
		return BackendBolt, nil
	case "memory", "mem":
		return BackendMemory, nil
	case "badger":
		return BackendBadger, nil
	}
	return "", fmt.Errorf("unknown storage backend %q: valid options: bolt, memory, badger", s)
}

// Open constructs a driver for the selected backend rooted at path.
func Open(backend BackendType, path string) (Driver, error) {
	switch backend {
	case BackendBolt:
		return OpenBolt(path)
	case BackendMemory:
		return NewMemoryDriver(), nil
	case BackendBadger:
		return nil, fmt.Errorf("backend %q: %w", backend, ErrNotSupported)
	}
	return nil, fmt.Errorf("backend %q: %w", backend, ErrNotSupported)
}

package catalog

import (
	"errors"
	"fmt"

	"github.com/gqlite/gqlite/pkg/kv"
)

// EntityType names the kinds of entities catalogs manage.
type EntityType string

const (
	EntitySchema    EntityType = "schema"
	EntityGraph     EntityType = "graph"
	EntityGraphType EntityType = "graph_type"
	EntityUser      EntityType = "user"
	EntityRole      EntityType = "role"
	EntityIndex     EntityType = "index"
)

// OpKind tags the operation variants.
type OpKind string

const (
	OpCreate OpKind = "create"
	OpUpdate OpKind = "update"
	OpDrop   OpKind = "drop"
	OpQuery  OpKind = "query"
)

// Operation is the uniform request shape every provider consumes. Params is
// JSON-shaped: strings, float64 numbers, bools, nested maps and slices.
type Operation struct {
	Kind    OpKind
	Entity  EntityType
	Name    string
	Params  map[string]any
	Cascade bool
}

// Response is the uniform reply shape. Mutations and single-entity "get"
// queries fill Data; "list" queries fill Rows.
type Response struct {
	Data map[string]any
	Rows []map[string]any
}

// ErrorKind classifies catalog failures.
type ErrorKind int

const (
	KindNotFound ErrorKind = iota
	KindAlreadyExists
	KindInvalidParams
	KindPermissionDenied
	KindPersistence
	KindNotSupported
	KindOperationFailed
)

func (k ErrorKind) String() string {
	switch k {
	case KindNotFound:
		return "not found"
	case KindAlreadyExists:
		return "already exists"
	case KindInvalidParams:
		return "invalid parameters"
	case KindPermissionDenied:
		return "permission denied"
	case KindPersistence:
		return "persistence failure"
	case KindNotSupported:
		return "not supported"
	}
	return "operation failed"
}

// Error is the tagged error returned by catalog operations.
type Error struct {
	Kind ErrorKind
	Msg  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("catalog error (%s): %s", e.Kind, e.Msg)
}

// NewError builds a tagged catalog error.
func NewError(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// IsNotFound reports whether err is a catalog not-found error.
func IsNotFound(err error) bool {
	var ce *Error
	return errors.As(err, &ce) && ce.Kind == KindNotFound
}

// IsAlreadyExists reports whether err is a catalog already-exists error.
func IsAlreadyExists(err error) bool {
	var ce *Error
	return errors.As(err, &ce) && ce.Kind == KindAlreadyExists
}

// Schema describes a provider's capabilities.
type Schema struct {
	Name       string   `json:"name"`
	Version    string   `json:"version"`
	Entities   []string `json:"entities"`
	Operations []string `json:"operations"`
}

// Provider is the contract every pluggable catalog satisfies.
type Provider interface {
	// Init binds the persistence target. Called once at registration.
	Init(storage *ProviderStorage) error

	// Execute handles mutating operations. Runs under the manager's write
	// lock.
	Execute(op Operation) (*Response, error)

	// ExecuteReadOnly handles non-mutating operations under a read lock.
	// Implementations may delegate query ops here; the default behavior for
	// non-query ops is a NotSupported error.
	ExecuteReadOnly(op Operation) (*Response, error)

	// Save serializes the full provider state.
	Save() ([]byte, error)

	// Load restores provider state from a Save snapshot.
	Load(data []byte) error

	// Schema describes the provider's capabilities.
	Schema() Schema

	// SupportedOperations lists operation names for discovery.
	SupportedOperations() []string
}

// ProviderStorage is the persistence handle passed to providers at Init.
// Tree is the catalogs tree of the database's KV backend.
type ProviderStorage struct {
	Tree kv.Tree
}

// readOnlyFallback implements the default ExecuteReadOnly contract for
// providers that have no special read path.
func readOnlyFallback(op Operation) (*Response, error) {
	if op.Kind == OpQuery {
		return nil, NewError(KindNotSupported,
			"read-only queries not implemented for this catalog")
	}
	return nil, NewError(KindNotSupported,
		"only query operations are supported in read-only mode")
}

package session

import (
	"sync"
	"time"

	"github.com/gqlite/gqlite/pkg/txn"
)

// PermissionCache is the session's snapshot of effective permissions,
// resolved from role membership at session creation (or re-resolved after
// grants).
type PermissionCache struct {
	Permissions map[string]bool
}

// NewPermissionCache builds a cache from permission names.
func NewPermissionCache(perms ...string) PermissionCache {
	c := PermissionCache{Permissions: make(map[string]bool, len(perms))}
	for _, p := range perms {
		c.Permissions[p] = true
	}
	return c
}

// Allows reports whether the permission (or the wildcard) is held.
func (c PermissionCache) Allows(perm string) bool {
	return c.Permissions["*"] || c.Permissions[perm]
}

// Session is a user's authenticated context. All field access goes through
// the methods, which mediate via the session's reader-writer lock. Within
// one session, statements serialize on a separate statement lock (ExecLock).
type Session struct {
	// execMu serializes statement execution within the session. It is
	// separate from mu so executors can read session fields mid-statement.
	execMu sync.Mutex

	mu sync.RWMutex

	id       string
	username string
	roles    []string
	perms    PermissionCache

	currentSchema string // "/schema" or empty
	currentGraph  string // "/schema/graph" or empty

	transaction *txn.Transaction

	createdAt  time.Time
	lastAccess time.Time
}

func newSession(id, username string, roles []string, perms PermissionCache) *Session {
	now := time.Now().UTC()
	return &Session{
		id:         id,
		username:   username,
		roles:      append([]string(nil), roles...),
		perms:      perms,
		createdAt:  now,
		lastAccess: now,
	}
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// Username returns the session's user.
func (s *Session) Username() string { return s.username }

// Roles returns a copy of the session's role set.
func (s *Session) Roles() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.roles...)
}

// Permissions returns the permission snapshot.
func (s *Session) Permissions() PermissionCache {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.perms
}

// Touch stamps the last-access time.
func (s *Session) Touch() {
	s.mu.Lock()
	s.lastAccess = time.Now().UTC()
	s.mu.Unlock()
}

// IdleSince returns the last-access time.
func (s *Session) IdleSince() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastAccess
}

// CreatedAt returns the creation time.
func (s *Session) CreatedAt() time.Time { return s.createdAt }

// CurrentSchema returns the pinned schema path, or empty.
func (s *Session) CurrentSchema() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentSchema
}

// SetCurrentSchema pins the schema path.
func (s *Session) SetCurrentSchema(path string) {
	s.mu.Lock()
	s.currentSchema = path
	s.mu.Unlock()
}

// CurrentGraph returns the pinned full graph path, or empty.
func (s *Session) CurrentGraph() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentGraph
}

// SetCurrentGraph pins the full graph path.
func (s *Session) SetCurrentGraph(path string) {
	s.mu.Lock()
	s.currentGraph = path
	s.mu.Unlock()
}

// ClearGraphIfCurrent clears the current-graph pointer when it matches path.
// Returns true if the pointer was cleared.
func (s *Session) ClearGraphIfCurrent(path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.currentGraph == path {
		s.currentGraph = ""
		return true
	}
	return false
}

// Transaction returns the active explicit transaction, or nil.
func (s *Session) Transaction() *txn.Transaction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.transaction
}

// SetTransaction installs (or clears, with nil) the explicit transaction.
func (s *Session) SetTransaction(t *txn.Transaction) {
	s.mu.Lock()
	s.transaction = t
	s.mu.Unlock()
}

// ExecLock acquires the session's statement lock. Statements within one
// session are strictly serialized by this lock.
func (s *Session) ExecLock() { s.execMu.Lock() }

// ExecUnlock releases the statement lock.
func (s *Session) ExecUnlock() { s.execMu.Unlock() }

package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"

	"github.com/gqlite/gqlite/pkg/catalog"
	"github.com/gqlite/gqlite/pkg/storage"
	"github.com/gqlite/gqlite/pkg/txn"
)

// Mode selects how a coordinator manages its session pool.
type Mode int

const (
	// ModeInstance gives each coordinator an isolated session pool
	// (embedded mode, the default).
	ModeInstance Mode = iota
	// ModeGlobal shares one process-wide session pool between all
	// coordinators (server mode).
	ModeGlobal
)

func (m Mode) String() string {
	if m == ModeGlobal {
		return "global"
	}
	return "instance"
}

// Provider is the session management contract.
type Provider interface {
	// CreateSession registers a new session and returns its id.
	CreateSession(username string, roles []string, perms PermissionCache) (string, error)

	// GetSession returns the session, or nil when absent.
	GetSession(sessionID string) *Session

	// RemoveSession closes and forgets a session.
	RemoveSession(sessionID string) error

	// ListSessions returns all active session ids.
	ListSessions() []string

	// CleanupExpired removes sessions idle longer than maxIdle and returns
	// how many were removed.
	CleanupExpired(maxIdle time.Duration) int

	// Shutdown closes all sessions.
	Shutdown() error

	// SessionCount returns the number of active sessions.
	SessionCount() int

	// InvalidateSessionsForGraph clears the current-graph pointer of every
	// session pinned to the graph and returns how many were touched.
	InvalidateSessionsForGraph(graphPath string) int

	// Storage returns the bound storage manager.
	Storage() *storage.Manager

	// Catalog returns the bound catalog manager.
	Catalog() *catalog.Manager

	// Transactions returns the bound transaction manager.
	Transactions() *txn.Manager
}

const storePartitions = 16

// store is a lock-partitioned session map, mirroring the storage manager's
// partitioning so cross-session traffic rarely contends.
type store struct {
	partitions [storePartitions]*storePartition
}

type storePartition struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func newStore() *store {
	s := &store{}
	for i := range s.partitions {
		s.partitions[i] = &storePartition{sessions: make(map[string]*Session)}
	}
	return s
}

func (s *store) partitionFor(id string) *storePartition {
	return s.partitions[xxhash.Sum64String(id)%storePartitions]
}

func (s *store) add(sess *Session) {
	p := s.partitionFor(sess.ID())
	p.mu.Lock()
	p.sessions[sess.ID()] = sess
	p.mu.Unlock()
}

func (s *store) get(id string) *Session {
	p := s.partitionFor(id)
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.sessions[id]
}

func (s *store) remove(id string) bool {
	p := s.partitionFor(id)
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.sessions[id]; !ok {
		return false
	}
	delete(p.sessions, id)
	return true
}

func (s *store) list() []string {
	var ids []string
	for _, p := range s.partitions {
		p.mu.RLock()
		for id := range p.sessions {
			ids = append(ids, id)
		}
		p.mu.RUnlock()
	}
	return ids
}

func (s *store) count() int {
	n := 0
	for _, p := range s.partitions {
		p.mu.RLock()
		n += len(p.sessions)
		p.mu.RUnlock()
	}
	return n
}

func (s *store) each(fn func(*Session)) {
	for _, p := range s.partitions {
		p.mu.RLock()
		sessions := make([]*Session, 0, len(p.sessions))
		for _, sess := range p.sessions {
			sessions = append(sessions, sess)
		}
		p.mu.RUnlock()
		for _, sess := range sessions {
			fn(sess)
		}
	}
}

func (s *store) clear() {
	for _, p := range s.partitions {
		p.mu.Lock()
		p.sessions = make(map[string]*Session)
		p.mu.Unlock()
	}
}

// managers bundles the component handles sessions hold back-references to.
// Sessions never own these; the coordinator does.
type managers struct {
	storage *storage.Manager
	catalog *catalog.Manager
	txns    *txn.Manager
}

// baseProvider implements the Provider contract over a store. Instance and
// Global providers differ only in where the store lives.
type baseProvider struct {
	store *store
	mgrs  managers
}

func (p *baseProvider) CreateSession(username string, roles []string, perms PermissionCache) (string, error) {
	if username == "" {
		return "", fmt.Errorf("username cannot be empty")
	}
	id := uuid.NewString()
	p.store.add(newSession(id, username, roles, perms))
	return id, nil
}

func (p *baseProvider) GetSession(sessionID string) *Session {
	return p.store.get(sessionID)
}

func (p *baseProvider) RemoveSession(sessionID string) error {
	if !p.store.remove(sessionID) {
		return fmt.Errorf("session %q not found", sessionID)
	}
	return nil
}

func (p *baseProvider) ListSessions() []string { return p.store.list() }

func (p *baseProvider) CleanupExpired(maxIdle time.Duration) int {
	cutoff := time.Now().UTC().Add(-maxIdle)
	var expired []string
	p.store.each(func(s *Session) {
		if s.IdleSince().Before(cutoff) {
			expired = append(expired, s.ID())
		}
	})
	removed := 0
	for _, id := range expired {
		if p.store.remove(id) {
			removed++
		}
	}
	return removed
}

func (p *baseProvider) Shutdown() error {
	p.store.clear()
	return nil
}

func (p *baseProvider) SessionCount() int { return p.store.count() }

func (p *baseProvider) InvalidateSessionsForGraph(graphPath string) int {
	invalidated := 0
	p.store.each(func(s *Session) {
		if s.ClearGraphIfCurrent(graphPath) {
			invalidated++
		}
	})
	return invalidated
}

func (p *baseProvider) Storage() *storage.Manager  { return p.mgrs.storage }
func (p *baseProvider) Catalog() *catalog.Manager  { return p.mgrs.catalog }
func (p *baseProvider) Transactions() *txn.Manager { return p.mgrs.txns }

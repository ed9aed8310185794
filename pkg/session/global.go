package session

import (
	"sync"

	"github.com/gqlite/gqlite/pkg/catalog"
	"github.com/gqlite/gqlite/pkg/storage"
	"github.com/gqlite/gqlite/pkg/txn"
)

var (
	globalOnce  sync.Once
	globalStore *store
	globalMu    sync.Mutex
)

func sharedStore() *store {
	globalOnce.Do(func() {
		globalStore = newStore()
	})
	return globalStore
}

// ResetGlobal discards the process-wide session pool. Tests use this to
// isolate runs; production code has no reason to call it.
func ResetGlobal() {
	globalMu.Lock()
	defer globalMu.Unlock()
	if globalStore != nil {
		globalStore.clear()
	}
}

// GlobalProvider shares a single process-wide session pool: sessions created
// through one coordinator are visible to every other coordinator in global
// mode. Intended for server front-ends; prefer InstanceProvider when
// embedding.
type GlobalProvider struct {
	baseProvider
}

// NewGlobalProvider binds the process-wide pool to this coordinator's
// managers. The pool is constructed on first use.
func NewGlobalProvider(s *storage.Manager, c *catalog.Manager, t *txn.Manager) *GlobalProvider {
	return &GlobalProvider{baseProvider{
		store: sharedStore(),
		mgrs:  managers{storage: s, catalog: c, txns: t},
	}}
}

// Shutdown of a global provider leaves the shared pool intact: other
// coordinators may still be serving its sessions.
func (p *GlobalProvider) Shutdown() error { return nil }

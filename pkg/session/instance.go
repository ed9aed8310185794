package session

import (
	"github.com/gqlite/gqlite/pkg/catalog"
	"github.com/gqlite/gqlite/pkg/storage"
	"github.com/gqlite/gqlite/pkg/txn"
)

// InstanceProvider owns its session map: two coordinators built in instance
// mode have fully disjoint session pools. This is the embedded-mode default.
type InstanceProvider struct {
	baseProvider
}

// NewInstanceProvider builds an instance-scoped session provider bound to
// the coordinator's managers.
func NewInstanceProvider(s *storage.Manager, c *catalog.Manager, t *txn.Manager) *InstanceProvider {
	return &InstanceProvider{baseProvider{
		store: newStore(),
		mgrs:  managers{storage: s, catalog: c, txns: t},
	}}
}

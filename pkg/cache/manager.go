package cache

import (
	"fmt"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"

	"github.com/gqlite/gqlite/pkg/metrics"
)

// Stats aggregates hit/miss counters. Counters race under relaxed ordering;
// they steer sizing decisions, not correctness.
type Stats struct {
	ResultHits     uint64
	ResultMisses   uint64
	PlanHits       uint64
	PlanMisses     uint64
	SubqueryHits   uint64
	SubqueryMisses uint64
	CatalogHits    uint64
	CatalogMisses  uint64
}

// Manager owns the four logical caches over the shared tier configuration
// and the invalidation manager that keeps them coherent.
type Manager struct {
	cfg Config

	results    *tieredStore
	plans      *tieredStore
	subqueries *tieredStore
	catalog    *tieredStore

	invalidation *InvalidationManager

	resultHits     atomic.Uint64
	resultMisses   atomic.Uint64
	planHits       atomic.Uint64
	planMisses     atomic.Uint64
	subqueryHits   atomic.Uint64
	subqueryMisses atomic.Uint64
	catalogHits    atomic.Uint64
	catalogMisses  atomic.Uint64
}

// NewManager validates the config and builds the cache manager.
func NewManager(cfg Config) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid cache configuration: %w", err)
	}
	m := &Manager{
		cfg:        cfg,
		results:    newTieredStore(cfg),
		plans:      newTieredStore(cfg),
		subqueries: newTieredStore(cfg),
		catalog:    newTieredStore(cfg),
	}
	m.invalidation = newInvalidationManager(cfg.Invalidation,
		m.results, m.plans, m.subqueries, m.catalog)
	return m, nil
}

// Enabled reports whether caching is active.
func (m *Manager) Enabled() bool { return m.cfg.Enabled }

// Fingerprint derives a stable cache key from query text and the catalog
// version current when the entry was produced.
func Fingerprint(queryText string, catalogVersion uint64) string {
	return fmt.Sprintf("%016x@%d", xxhash.Sum64String(queryText), catalogVersion)
}

// GetResult looks up a materialized query result.
func (m *Manager) GetResult(fingerprint string) (any, bool) {
	if !m.cfg.Enabled {
		return nil, false
	}
	v, ok := m.results.get(fingerprint)
	if ok {
		m.resultHits.Add(1)
		metrics.CacheHitsTotal.WithLabelValues("result").Inc()
	} else {
		m.resultMisses.Add(1)
		metrics.CacheMissesTotal.WithLabelValues("result").Inc()
	}
	return v, ok
}

// PutResult stores a materialized query result tagged with the graphs it
// depends on.
func (m *Manager) PutResult(fingerprint string, result any, sizeBytes int, graphPaths ...string) {
	if !m.cfg.Enabled {
		return
	}
	tags := make([]string, 0, len(graphPaths))
	for _, p := range graphPaths {
		tags = append(tags, TagGraph(p))
	}
	m.results.put(fingerprint, result, sizeBytes, tags)
}

// GetPlan looks up a compiled plan by normalized query text.
func (m *Manager) GetPlan(normalizedText string) (any, bool) {
	if !m.cfg.Enabled {
		return nil, false
	}
	v, ok := m.plans.get(normalizedText)
	if ok {
		m.planHits.Add(1)
		metrics.CacheHitsTotal.WithLabelValues("plan").Inc()
	} else {
		m.planMisses.Add(1)
		metrics.CacheMissesTotal.WithLabelValues("plan").Inc()
	}
	return v, ok
}

// PutPlan stores a compiled plan.
func (m *Manager) PutPlan(normalizedText string, plan any, sizeBytes int, graphPaths ...string) {
	if !m.cfg.Enabled {
		return
	}
	tags := []string{TagCatalog}
	for _, p := range graphPaths {
		tags = append(tags, TagGraph(p))
	}
	m.plans.put(normalizedText, plan, sizeBytes, tags)
}

// GetSubquery looks up an intermediate result by subquery kind and
// fingerprint.
func (m *Manager) GetSubquery(kind, fingerprint string) (any, bool) {
	if !m.cfg.Enabled {
		return nil, false
	}
	v, ok := m.subqueries.get(kind + ":" + fingerprint)
	if ok {
		m.subqueryHits.Add(1)
		metrics.CacheHitsTotal.WithLabelValues("subquery").Inc()
	} else {
		m.subqueryMisses.Add(1)
		metrics.CacheMissesTotal.WithLabelValues("subquery").Inc()
	}
	return v, ok
}

// PutSubquery stores an intermediate result.
func (m *Manager) PutSubquery(kind, fingerprint string, rows any, sizeBytes int, graphPaths ...string) {
	if !m.cfg.Enabled {
		return
	}
	tags := []string{}
	for _, p := range graphPaths {
		tags = append(tags, TagGraph(p))
	}
	m.subqueries.put(kind+":"+fingerprint, rows, sizeBytes, tags)
}

// GetCatalogSnapshot looks up a session-scoped catalog listing.
func (m *Manager) GetCatalogSnapshot(sessionID, listing string, catalogVersion uint64) (any, bool) {
	if !m.cfg.Enabled {
		return nil, false
	}
	key := fmt.Sprintf("%s/%s@%d", sessionID, listing, catalogVersion)
	v, ok := m.catalog.get(key)
	if ok {
		m.catalogHits.Add(1)
		metrics.CacheHitsTotal.WithLabelValues("catalog").Inc()
	} else {
		m.catalogMisses.Add(1)
		metrics.CacheMissesTotal.WithLabelValues("catalog").Inc()
	}
	return v, ok
}

// PutCatalogSnapshot stores a session-scoped catalog listing.
func (m *Manager) PutCatalogSnapshot(sessionID, listing string, catalogVersion uint64, rows any, sizeBytes int) {
	if !m.cfg.Enabled {
		return
	}
	key := fmt.Sprintf("%s/%s@%d", sessionID, listing, catalogVersion)
	m.catalog.put(key, rows, sizeBytes, []string{TagCatalog})
}

// Invalidate delivers a typed event to the invalidation manager.
func (m *Manager) Invalidate(ev Event) int {
	if !m.cfg.Enabled {
		return 0
	}
	return m.invalidation.Handle(ev)
}

// Clear empties every logical cache.
func (m *Manager) Clear() {
	m.results.clear()
	m.plans.clear()
	m.subqueries.clear()
	m.catalog.clear()
}

// EntryCount returns the total number of live entries across all caches.
func (m *Manager) EntryCount() int {
	return m.results.len() + m.plans.len() + m.subqueries.len() + m.catalog.len()
}

// Stats snapshots the counters.
func (m *Manager) Stats() Stats {
	return Stats{
		ResultHits:     m.resultHits.Load(),
		ResultMisses:   m.resultMisses.Load(),
		PlanHits:       m.planHits.Load(),
		PlanMisses:     m.planMisses.Load(),
		SubqueryHits:   m.subqueryHits.Load(),
		SubqueryMisses: m.subqueryMisses.Load(),
		CatalogHits:    m.catalogHits.Load(),
		CatalogMisses:  m.catalogMisses.Load(),
	}
}

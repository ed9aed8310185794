package cache

import (
	"github.com/gqlite/gqlite/pkg/log"
)

// EventType names the typed invalidation events DDL and DML fire.
type EventType string

const (
	EventSchemaCreated  EventType = "schema_created"
	EventSchemaDropped  EventType = "schema_dropped"
	EventGraphCreated   EventType = "graph_created"
	EventGraphDropped   EventType = "graph_dropped"
	EventGraphCleared   EventType = "graph_cleared"
	EventGraphTruncated EventType = "graph_truncated"
	EventNodeWritten    EventType = "node_written"
	EventEdgeWritten    EventType = "edge_written"
	EventUserGranted    EventType = "user_granted"
	EventUserRevoked    EventType = "user_revoked"
)

// Event is a typed invalidation notification. Schema and Graph carry the
// affected names when applicable.
type Event struct {
	Type   EventType
	Schema string
	Graph  string // full graph path /schema/graph
	User   string
}

// Tag vocabulary shared by cache writers and the invalidation manager.
const (
	TagCatalog = "catalog"
)

// TagGraph tags entries dependent on a graph's contents.
func TagGraph(path string) string { return "graph:" + path }

// TagSchema tags entries dependent on a schema's existence.
func TagSchema(name string) string { return "schema:" + name }

// tagsFor maps an event to the entry tags it must drop.
func tagsFor(ev Event) map[string]struct{} {
	tags := make(map[string]struct{})
	switch ev.Type {
	case EventSchemaCreated, EventSchemaDropped:
		tags[TagCatalog] = struct{}{}
		if ev.Schema != "" {
			tags[TagSchema(ev.Schema)] = struct{}{}
		}
	case EventGraphCreated, EventGraphDropped, EventGraphCleared, EventGraphTruncated:
		tags[TagCatalog] = struct{}{}
		if ev.Graph != "" {
			tags[TagGraph(ev.Graph)] = struct{}{}
		}
	case EventNodeWritten, EventEdgeWritten:
		if ev.Graph != "" {
			tags[TagGraph(ev.Graph)] = struct{}{}
		}
	case EventUserGranted, EventUserRevoked:
		tags[TagCatalog] = struct{}{}
	}
	return tags
}

// InvalidationManager consumes typed events and drops matching tagged
// entries from the logical caches, subject to the configured strategy.
type InvalidationManager struct {
	strategy InvalidationStrategy
	stores   []*tieredStore
}

func newInvalidationManager(strategy InvalidationStrategy, stores ...*tieredStore) *InvalidationManager {
	return &InvalidationManager{strategy: strategy, stores: stores}
}

// Handle applies one event. Delivery is synchronous: the caller fires it
// inside the critical section that performed the change.
func (im *InvalidationManager) Handle(ev Event) int {
	if !im.strategy.respondsToTags() {
		return 0
	}
	tags := tagsFor(ev)
	if len(tags) == 0 {
		return 0
	}
	dropped := 0
	for _, s := range im.stores {
		dropped += s.dropTagged(tags)
	}
	if dropped > 0 {
		log.WithComponent("cache").Debug().
			Str("event", string(ev.Type)).
			Int("dropped", dropped).
			Msg("cache entries invalidated")
	}
	return dropped
}

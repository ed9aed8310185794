package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// Query metrics
	QueriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gqlite_queries_total",
			Help: "Total number of queries by statement kind and status",
		},
		[]string{"kind", "status"},
	)

	QueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gqlite_query_duration_seconds",
			Help:    "Query execution duration by statement kind",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)

	// Session metrics
	SessionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "gqlite_sessions_active",
			Help: "Number of active sessions",
		},
	)

	// Transaction metrics
	TransactionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gqlite_transactions_total",
			Help: "Total number of transactions by outcome",
		},
		[]string{"outcome"},
	)

	WALAppendsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "gqlite_wal_appends_total",
			Help: "Total number of WAL records appended",
		},
	)

	// Cache metrics
	CacheHitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gqlite_cache_hits_total",
			Help: "Cache hits by logical cache",
		},
		[]string{"cache"},
	)

	CacheMissesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gqlite_cache_misses_total",
			Help: "Cache misses by logical cache",
		},
		[]string{"cache"},
	)

	// Storage metrics
	GraphsTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "gqlite_graphs_total",
			Help: "Total number of stored graphs",
		},
	)
)

// Register registers all metrics with the default Prometheus registry.
// Call once at startup.
func Register() {
	prometheus.MustRegister(
		QueriesTotal,
		QueryDuration,
		SessionsActive,
		TransactionsTotal,
		WALAppendsTotal,
		CacheHitsTotal,
		CacheMissesTotal,
		GraphsTotal,
	)
}

// ObserveQuery records one query execution.
func ObserveQuery(kind string, err error, duration time.Duration) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	QueriesTotal.WithLabelValues(kind, status).Inc()
	QueryDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

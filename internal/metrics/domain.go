package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Namespace prefixes every metric name.
const Namespace = "skuindex"

// Sync and search metrics.
var (
	SyncTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "sync_total",
			Help:      "Product syncs by outcome",
		},
		[]string{"outcome"}, // "ok" / "skipped" / "failed"
	)

	SyncDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "sync_duration_seconds",
			Help:      "Product sync duration in seconds",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
	)

	SyncSkippedVariantsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "sync_skipped_variants_total",
			Help:      "Variants left out of the index because their selections were malformed",
		},
	)

	SearchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "search_duration_seconds",
			Help:      "Search duration in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
		[]string{"path"}, // "sku" / "legacy"
	)

	SearchHits = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "search_hits",
			Help:      "Results returned per search",
			Buckets:   []float64{0, 1, 2, 5, 10, 20, 50, 100},
		},
		[]string{"path"},
	)

	SearchUnavailableTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "search_unavailable_total",
			Help:      "Searches that failed because the index was unavailable",
		},
	)

	OutboxPending = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "outbox_pending",
			Help:      "Sync intents waiting for the relay, parked ones excluded",
		},
	)

	OutboxProcessedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "outbox_processed_total",
			Help:      "Sync intents processed by the relay",
		},
		[]string{"result"}, // "done" / "superseded" / "retry" / "parked"
	)
)

var registerOnce sync.Once

// RegisterDomainMetrics registers the sync, search and outbox metrics.
// Must be called from main; repeated calls are no-ops.
func RegisterDomainMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			SyncTotal,
			SyncDuration,
			SyncSkippedVariantsTotal,
			SearchDuration,
			SearchHits,
			SearchUnavailableTotal,
			OutboxPending,
			OutboxProcessedTotal,
		)
	})
}

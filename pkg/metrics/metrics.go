// Package metrics defines the Prometheus collectors of the memory store.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "querymem"
)

// Search outcomes
const (
	OutcomeOK       = "ok"
	OutcomeEmpty    = "empty"
	OutcomeDegraded = "degraded"
)

// Rebuild reasons
const (
	RebuildCountMismatch = "count_mismatch"
	RebuildMissingIndex  = "missing_index"
	RebuildCorruptIndex  = "corrupt_index"
	RebuildReset         = "reset"
)

// Add failure reasons
const (
	FailureProvider    = "provider"
	FailurePersistence = "persistence"
	FailureInvalid     = "invalid"
)

// Metrics bundles the collectors. Each instance registers on its own
// registerer so several stores can live in one process.
type Metrics struct {
	EntriesAdded  prometheus.Counter
	AddFailures   *prometheus.CounterVec
	Searches      *prometheus.CounterVec
	SearchResults prometheus.Histogram
	Rebuilds      *prometheus.CounterVec
	SessionResets prometheus.Counter
	Entries       prometheus.Gauge
}

// New creates the collectors on reg. A nil reg gets a private registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	return &Metrics{
		EntriesAdded: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "entries_added_total",
			Help:      "Total number of memory entries added",
		}),
		AddFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "add_failures_total",
			Help:      "Total number of failed add operations",
		}, []string{"reason"}),
		Searches: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "searches_total",
			Help:      "Total number of searches by outcome",
		}, []string{"outcome"}),
		SearchResults: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_results",
			Help:      "Number of results returned per search",
			Buckets:   []float64{0, 1, 2, 4, 8, 16, 32, 64},
		}),
		Rebuilds: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "index_rebuilds_total",
			Help:      "Total number of vector index rebuilds by reason",
		}, []string{"reason"}),
		SessionResets: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_reset_total",
			Help:      "Total number of session resets that removed entries",
		}),
		Entries: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "entries",
			Help:      "Current number of stored entries",
		}),
	}
}

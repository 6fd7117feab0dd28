// Package metrics holds the Prometheus collectors for event-list assembly.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for the list service and its cache
type Metrics struct {
	CacheRequests *prometheus.CounterVec
	Truncations   prometheus.Counter
	Occurrences   prometheus.Histogram
	ListDuration  prometheus.Histogram
	Invalidations prometheus.Counter
}

// New registers the collectors with reg. A nil reg keeps them unregistered,
// which is what tests and library callers without a scrape endpoint want.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		CacheRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "eventcal",
				Subsystem: "list",
				Name:      "cache_requests_total",
				Help:      "Event list cache lookups by result",
			},
			[]string{"result"}, // hit, miss
		),
		Truncations: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "eventcal",
			Subsystem: "recurrence",
			Name:      "truncated_expansions_total",
			Help:      "Expansions cut off at the occurrence ceiling",
		}),
		Occurrences: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "eventcal",
			Subsystem: "list",
			Name:      "occurrences",
			Help:      "Occurrences matched per assembled list before truncation",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 6),
		}),
		ListDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "eventcal",
			Subsystem: "list",
			Name:      "assembly_duration_seconds",
			Help:      "Time spent assembling an event list on a cache miss",
			Buckets:   prometheus.DefBuckets,
		}),
		Invalidations: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "eventcal",
			Subsystem: "list",
			Name:      "cache_invalidations_total",
			Help:      "Whole-namespace cache invalidations",
		}),
	}
}

// CacheHit records a cache lookup that returned a stored list.
func (m *Metrics) CacheHit() {
	m.CacheRequests.WithLabelValues("hit").Inc()
}

// CacheMiss records a cache lookup that forced assembly.
func (m *Metrics) CacheMiss() {
	m.CacheRequests.WithLabelValues("miss").Inc()
}

// ObserveAssembly records one list assembly that started at start and
// matched n occurrences.
func (m *Metrics) ObserveAssembly(start time.Time, n int) {
	m.ListDuration.Observe(time.Since(start).Seconds())
	m.Occurrences.Observe(float64(n))
}

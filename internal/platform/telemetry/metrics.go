package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Cache lookup results.
const (
	ResultHit   = "hit"
	ResultMiss  = "miss"
	ResultError = "error"
)

// Metrics holds the prometheus collectors served on /-/metrics.
type Metrics struct {
	// CacheLookups counts feed cache reads by key family and result.
	CacheLookups *prometheus.CounterVec

	// CacheOps counts cache adapter round trips by operation and outcome.
	CacheOps *prometheus.CounterVec

	// CacheBreakerState is 0 closed, 1 half-open, 2 open.
	CacheBreakerState prometheus.Gauge

	// EngagementWrites counts toggles by relation, path and outcome.
	EngagementWrites *prometheus.CounterVec
}

// NewMetrics registers the collectors on reg. A nil reg creates unregistered
// collectors, which is what tests want.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		CacheLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quote_feed",
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Feed cache lookups by key family and result.",
		}, []string{"family", "result"}),
		CacheOps: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quote_feed",
			Subsystem: "cache",
			Name:      "operations_total",
			Help:      "Cache round trips by operation and outcome.",
		}, []string{"op", "outcome"}),
		CacheBreakerState: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "quote_feed",
			Subsystem: "cache",
			Name:      "breaker_state",
			Help:      "Cache circuit breaker state (0 closed, 1 half-open, 2 open).",
		}),
		EngagementWrites: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quote_feed",
			Subsystem: "engagement",
			Name:      "writes_total",
			Help:      "Like/save toggles by relation, path and outcome.",
		}, []string{"relation", "path", "outcome"}),
	}
}

// NopMetrics returns unregistered collectors.
func NopMetrics() *Metrics {
	return NewMetrics(nil)
}

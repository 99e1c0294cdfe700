package telemetry

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetrics_Registers(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.CacheLookups.WithLabelValues("random", ResultHit).Inc()
	m.CacheLookups.WithLabelValues("random", ResultMiss).Add(2)
	m.CacheBreakerState.Set(2)
	m.EngagementWrites.WithLabelValues("like", "cached", "applied").Inc()
	m.CacheOps.WithLabelValues("sadd", "ok").Inc()

	assert.InDelta(t, 2, testutil.ToFloat64(m.CacheLookups.WithLabelValues("random", ResultMiss)), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(m.CacheBreakerState), 0)

	families, err := reg.Gather()
	require.NoError(t, err)

	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}

	assert.ElementsMatch(t, []string{
		"quote_feed_cache_lookups_total",
		"quote_feed_cache_operations_total",
		"quote_feed_cache_breaker_state",
		"quote_feed_engagement_writes_total",
	}, names)
}

func TestNopMetrics_DoesNotPanicOnReuse(t *testing.T) {
	assert.NotPanics(t, func() {
		NopMetrics().CacheOps.WithLabelValues("get", "ok").Inc()
		NopMetrics().CacheOps.WithLabelValues("get", "ok").Inc()
	})
}

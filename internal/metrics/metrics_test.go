package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_Counters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.CacheHit()
	m.CacheHit()
	m.CacheMiss()
	m.CacheInvalidated(3)
	m.Operation("spin", nil)
	m.Operation("spin", errors.New("boom"))
	m.CommissionPaid("withdrawal")
	m.WageringCompleted()

	assert.InDelta(t, 2, testutil.ToFloat64(m.cacheLookups.WithLabelValues("hit")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.cacheLookups.WithLabelValues("miss")), 0)
	assert.InDelta(t, 3, testutil.ToFloat64(m.cacheInvalidations), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.operationsTotal.WithLabelValues("spin", "error")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.commissionPayouts.WithLabelValues("withdrawal")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.wageringCompletions), 0)
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.CacheHit()
		m.CacheMiss()
		m.CacheInvalidated(1)
		m.Operation("bet", nil)
		m.CommissionPaid("gameplay")
		m.WageringCompleted()
		m.WageringFailed()
	})
}

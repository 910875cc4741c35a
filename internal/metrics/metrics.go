package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "casino_wallet"

type Metrics struct {
	cacheLookups        *prometheus.CounterVec
	cacheInvalidations  prometheus.Counter
	operationsTotal     *prometheus.CounterVec
	commissionPayouts   *prometheus.CounterVec
	wageringCompletions prometheus.Counter
	wageringFailures    prometheus.Counter
}

// New registers the collectors on reg. A nil reg uses a private registry,
// which keeps repeated construction in tests from panicking.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)
	return &Metrics{
		cacheLookups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "balance_cache",
				Name:      "lookups_total",
				Help:      "Balance cache lookups partitioned by result.",
			},
			[]string{"result"},
		),
		cacheInvalidations: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "balance_cache",
				Name:      "invalidations_total",
				Help:      "Explicit balance cache invalidations.",
			},
		),
		operationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "ledger",
				Name:      "operations_total",
				Help:      "Atomic ledger operations partitioned by operation and result.",
			},
			[]string{"operation", "result"},
		),
		commissionPayouts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "commission",
				Name:      "payouts_total",
				Help:      "Referral commission payouts partitioned by trigger.",
			},
			[]string{"trigger"},
		),
		wageringCompletions: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "bonus",
				Name:      "wagering_completed_total",
				Help:      "Bonuses whose wagering requirement was met.",
			},
		),
		wageringFailures: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "bonus",
				Name:      "wagering_failures_total",
				Help:      "Wagering updates that were rolled back and skipped.",
			},
		),
	}
}

func (m *Metrics) CacheHit() {
	if m == nil {
		return
	}
	m.cacheLookups.WithLabelValues("hit").Inc()
}

func (m *Metrics) CacheMiss() {
	if m == nil {
		return
	}
	m.cacheLookups.WithLabelValues("miss").Inc()
}

func (m *Metrics) CacheInvalidated(n int) {
	if m == nil {
		return
	}
	m.cacheInvalidations.Add(float64(n))
}

func (m *Metrics) Operation(name string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.operationsTotal.WithLabelValues(name, result).Inc()
}

func (m *Metrics) CommissionPaid(trigger string) {
	if m == nil {
		return
	}
	m.commissionPayouts.WithLabelValues(trigger).Inc()
}

func (m *Metrics) WageringCompleted() {
	if m == nil {
		return
	}
	m.wageringCompletions.Inc()
}

func (m *Metrics) WageringFailed() {
	if m == nil {
		return
	}
	m.wageringFailures.Inc()
}

package recommend

import (
	"github.com/prometheus/client_golang/prometheus"
	gobreaker "github.com/sony/gobreaker/v2"
)

const (
	loadHit      = "hit"
	loadRestored = "restored"
	loadFetched  = "fetched"
	loadFailed   = "failed"

	sourceScored   = "scored"
	sourceFallback = "fallback"
)

// Metrics is nil-safe: a nil *Metrics records nothing.
type Metrics struct {
	Fetches         prometheus.Counter
	Loads           *prometheus.CounterVec
	Items           prometheus.Gauge
	Recommendations *prometheus.CounterVec
	BreakerState    *prometheus.GaugeVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Fetches: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "catalog_cache_fetches_total",
			Help: "Catalog fetches issued by the cache",
		}),
		Loads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "catalog_cache_loads_total",
			Help: "Catalog cache loads by outcome",
		}, []string{"result"}),
		Items: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "catalog_cache_items",
			Help: "Items in the published catalog snapshot",
		}),
		Recommendations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "recommendations_items_total",
			Help: "Recommended items returned, by mode and where they came from",
		}, []string{"mode", "source"}),
		BreakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "catalog_source_breaker_state",
			Help: "Circuit breaker state (0 closed, 1 half-open, 2 open)",
		}, []string{"name"}),
	}

	reg.MustRegister(m.Fetches, m.Loads, m.Items, m.Recommendations, m.BreakerState)
	return m
}

func (m *Metrics) load(result string) {
	if m == nil {
		return
	}
	m.Loads.WithLabelValues(result).Inc()
}

func (m *Metrics) fetch() {
	if m == nil {
		return
	}
	m.Fetches.Inc()
}

func (m *Metrics) items(n int) {
	if m == nil {
		return
	}
	m.Items.Set(float64(n))
}

func (m *Metrics) recommended(mode Mode, source string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.Recommendations.WithLabelValues(string(mode), source).Add(float64(n))
}

func (m *Metrics) breaker(name string, st gobreaker.State) {
	if m == nil {
		return
	}
	var v float64
	switch st {
	case gobreaker.StateHalfOpen:
		v = 1
	case gobreaker.StateOpen:
		v = 2
	}
	m.BreakerState.WithLabelValues(name).Set(v)
}

package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "tree_advisory"

// Metrics holds the Prometheus counters, histograms, and gauges for the advisory engine.
type Metrics struct {
	// Provider metrics.
	FetchRequests *prometheus.CounterVec // labels: outcome={success,error,upstream_error,malformed,circuit_open}
	FetchDuration prometheus.Histogram

	// Engine metrics.
	CacheLookups   *prometheus.CounterVec // labels: result={hit,miss}
	AlertsProduced *prometheus.CounterVec // labels: type, urgency, source={rules,fallback}
	Evaluations    *prometheus.CounterVec // labels: result={alert,none,failed}
	FallbackMode   prometheus.Gauge
}

// NewMetrics creates and registers all advisory metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics(true)

	prometheus.MustRegister(m.Collectors()...)

	return m
}

// NewUnregisteredMetrics creates the full metric set, help text included,
// without touching the default registry. Callers that expose no /metrics
// endpoint use it; they may register it with their own registry.
func NewUnregisteredMetrics() *Metrics {
	return newMetrics(true)
}

// Collectors returns every collector in m, for registering with a custom registry.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.FetchRequests,
		m.FetchDuration,
		m.CacheLookups,
		m.AlertsProduced,
		m.Evaluations,
		m.FallbackMode,
	}
}

// NewMetricsForTesting creates Metrics without registering them to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics(false)
}

func newMetrics(withHelp bool) *Metrics {
	help := func(s string) string {
		if withHelp {
			return s
		}
		return ""
	}
	return &Metrics{
		FetchRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "weather_fetch_requests_total",
			Help:      help("Weather provider requests by outcome."),
		}, []string{"outcome"}),
		FetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "weather_fetch_duration_seconds",
			Help:      help("Weather provider request duration in seconds."),
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshot_cache_total",
			Help:      help("Snapshot cache lookups by result."),
		}, []string{"result"}),
		AlertsProduced: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_total",
			Help:      help("Advisories produced by type, urgency, and source."),
		}, []string{"type", "urgency", "source"}),
		Evaluations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evaluations_total",
			Help:      help("GetAlert calls by result."),
		}, []string{"result"}),
		FallbackMode: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "fallback_mode",
			Help:      help("1 when no provider key is configured and the calendar heuristic is used."),
		}),
	}
}

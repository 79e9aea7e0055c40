package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns a private registry so tests can build as many instances as
// they like without colliding on the global one.
type Metrics struct {
	registry *prometheus.Registry

	transitions     *prometheus.CounterVec
	skippedAssets   *prometheus.CounterVec
	historyFailures prometheus.Counter
	httpRequests    *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "workflow_transitions_total",
			Help: "Workflow state transitions by request kind and resulting state.",
		}, []string{"kind", "transition"}),
		skippedAssets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "workflow_skipped_asset_mutations_total",
			Help: "Approvals whose asset had been deleted before resolution.",
		}, []string{"kind"}),
		historyFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "history_write_failures_total",
			Help: "History entries that could not be written.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		m.transitions,
		m.skippedAssets,
		m.historyFailures,
		m.httpRequests,
	)
	return m
}

func (m *Metrics) Transition(kind, transition string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(kind, transition).Inc()
}

func (m *Metrics) SkippedAsset(kind string) {
	if m == nil {
		return
	}
	m.skippedAssets.WithLabelValues(kind).Inc()
}

func (m *Metrics) HistoryFailure() {
	if m == nil {
		return
	}
	m.historyFailures.Inc()
}

func (m *Metrics) HTTPRequest(method, route, status string) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, status).Inc()
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// TransitionCounter exposes a single series for assertions.
func (m *Metrics) TransitionCounter(kind, transition string) prometheus.Counter {
	return m.transitions.WithLabelValues(kind, transition)
}

func (m *Metrics) SkippedAssetCounter(kind string) prometheus.Counter {
	return m.skippedAssets.WithLabelValues(kind)
}

func (m *Metrics) HistoryFailureCounter() prometheus.Counter {
	return m.historyFailures
}

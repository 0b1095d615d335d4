// Package observability exposes Prometheus metrics for the daemon.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the daemon's Prometheus collectors. A nil *Metrics is valid
// and records nothing, so wiring stays optional in tests.
type Metrics struct {
	registry *prometheus.Registry

	recomputesTotal   *prometheus.CounterVec
	publishErrors     prometheus.Counter
	persistErrors     prometheus.Counter
	persistRetries    prometheus.Counter
	staleEventsTotal  prometheus.Counter
	registeredGauge   prometheus.Gauge
	recoveriesTotal   *prometheus.CounterVec
	handlerErrorTotal prometheus.Counter
}

// New creates the collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		recomputesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "clockwork_recomputes_total",
			Help: "Total recomputes by calculation type and stimulus.",
		}, []string{"type", "stimulus"}),
		publishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "clockwork_publish_errors_total",
			Help: "Total output publishes that failed.",
		}),
		persistErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "clockwork_persist_errors_total",
			Help: "Total state persistence writes that failed.",
		}),
		persistRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "clockwork_persist_retries_total",
			Help: "Total persistence writes retried after failure.",
		}),
		staleEventsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "clockwork_stale_events_total",
			Help: "Total out-of-order entity events discarded.",
		}),
		registeredGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "clockwork_calculations_registered",
			Help: "Number of currently registered calculations.",
		}),
		recoveriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "clockwork_recoveries_total",
			Help: "Total state recoveries at startup by outcome.",
		}, []string{"outcome"}),
		handlerErrorTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "clockwork_handler_errors_total",
			Help: "Total recompute handler failures isolated and logged.",
		}),
	}

	m.registry.MustRegister(
		m.recomputesTotal,
		m.publishErrors,
		m.persistErrors,
		m.persistRetries,
		m.staleEventsTotal,
		m.registeredGauge,
		m.recoveriesTotal,
		m.handlerErrorTotal,
	)
	return m
}

// Handler returns the /metrics endpoint handler.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Recompute records one recompute for a calculation type and stimulus kind.
func (m *Metrics) Recompute(calcType, stimulus string) {
	if m == nil {
		return
	}
	m.recomputesTotal.WithLabelValues(calcType, stimulus).Inc()
}

// PublishError records a failed output push.
func (m *Metrics) PublishError() {
	if m == nil {
		return
	}
	m.publishErrors.Inc()
}

// PersistError records a failed state write.
func (m *Metrics) PersistError() {
	if m == nil {
		return
	}
	m.persistErrors.Inc()
}

// PersistRetry records a retried state write.
func (m *Metrics) PersistRetry() {
	if m == nil {
		return
	}
	m.persistRetries.Inc()
}

// StaleEvent records a discarded out-of-order event.
func (m *Metrics) StaleEvent() {
	if m == nil {
		return
	}
	m.staleEventsTotal.Inc()
}

// SetRegistered sets the registered calculation gauge.
func (m *Metrics) SetRegistered(n int) {
	if m == nil {
		return
	}
	m.registeredGauge.Set(float64(n))
}

// Recovery records one startup recovery outcome ("restored", "fresh",
// "corrupt").
func (m *Metrics) Recovery(outcome string) {
	if m == nil {
		return
	}
	m.recoveriesTotal.WithLabelValues(outcome).Inc()
}

// HandlerError records an isolated recompute failure.
func (m *Metrics) HandlerError() {
	if m == nil {
		return
	}
	m.handlerErrorTotal.Inc()
}

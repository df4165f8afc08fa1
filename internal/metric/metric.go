// Package metric exposes the gateway's operational metrics on a dedicated
// prometheus registry.
package metric

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics contains the gateway-level metrics.
type Metrics struct {
	registry *prometheus.Registry

	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	FieldErrorsTotal *prometheus.CounterVec
	SourceCallsTotal *prometheus.CounterVec
}

// New creates a Metrics instance backed by its own registry, with Go runtime
// and process collectors attached.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "storefront_gateway",
				Subsystem: "graphql",
				Name:      "requests_total",
				Help:      "Total number of GraphQL requests served",
			},
			[]string{"operation", "status"},
		),

		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "storefront_gateway",
				Subsystem: "graphql",
				Name:      "request_duration_seconds",
				Help:      "GraphQL request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation"},
		),

		FieldErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "storefront_gateway",
				Subsystem: "graphql",
				Name:      "field_errors_total",
				Help:      "Total number of field-level resolution errors",
			},
			[]string{"operation"},
		),

		SourceCallsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "storefront_gateway",
				Subsystem: "sources",
				Name:      "calls_total",
				Help:      "Total number of calls per schema source kind",
			},
			[]string{"kind", "status"},
		),
	}

	m.registry.MustRegister(
		m.RequestsTotal,
		m.RequestDuration,
		m.FieldErrorsTotal,
		m.SourceCallsTotal,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the underlying prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the scrape endpoint handler.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordRequest counts one served request and observes its duration.
func (m *Metrics) RecordRequest(operation, status string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(operation, status).Inc()
	m.RequestDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordFieldErrors counts field-level errors surfaced in a response.
func (m *Metrics) RecordFieldErrors(operation string, count int) {
	if count == 0 {
		return
	}
	m.FieldErrorsTotal.WithLabelValues(operation).Add(float64(count))
}

// RecordSourceCall counts one call against a schema source kind.
func (m *Metrics) RecordSourceCall(kind, status string) {
	m.SourceCallsTotal.WithLabelValues(kind, status).Inc()
}

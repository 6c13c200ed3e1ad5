// Package metrics holds the Prometheus collectors shared by the completion
// client, the circuit breaker, the transformation orchestrator and the HTTP
// layer. All collectors live in a custom registry.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics encapsulates Prometheus metrics for reprompt.
//
// A nil *Metrics is valid; every Observe/Record helper is then a no-op so
// the CLI and tests can run without a registry.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP service
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	ActiveRequests  *prometheus.GaugeVec
	ErrorsTotal     *prometheus.CounterVec
	RateLimitHits   *prometheus.CounterVec

	// Completion API
	APIRequestsTotal   *prometheus.CounterVec
	APIRequestDuration *prometheus.HistogramVec

	// Orchestrator
	TransformsTotal   *prometheus.CounterVec
	ExpansionRatio    prometheus.Histogram
	BusyRejections    prometheus.Counter
	RulesReloadsTotal *prometheus.CounterVec

	// Progress feed
	ProgressClients prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with a custom registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	m := &Metrics{
		registry: registry,
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reprompt_http_requests_total",
				Help: "Total number of HTTP requests by endpoint and status",
			},
			[]string{"endpoint", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "reprompt_http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"endpoint"},
		),
		ActiveRequests: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "reprompt_http_active_requests",
				Help: "Number of currently active HTTP requests",
			},
			[]string{"endpoint"},
		),
		ErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reprompt_errors_total",
				Help: "Total number of errors by type",
			},
			[]string{"type"},
		),
		RateLimitHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reprompt_rate_limit_hits_total",
				Help: "Total number of rate limit hits by client",
			},
			[]string{"client"},
		),
		APIRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reprompt_api_requests_total",
				Help: "Total number of completion API calls by model and outcome",
			},
			[]string{"model", "status"},
		),
		APIRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "reprompt_api_request_duration_seconds",
				Help:    "Duration of completion API calls in seconds",
				Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 30, 45, 60},
			},
			[]string{"model"},
		),
		TransformsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reprompt_operations_total",
				Help: "Total number of orchestrated operations by operation and outcome",
			},
			[]string{"operation", "outcome"},
		),
		ExpansionRatio: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "reprompt_transform_expansion_ratio",
				Help:    "Ratio of transformed to original prompt length",
				Buckets: []float64{0.5, 1, 1.5, 2, 3, 5, 8, 13, 21},
			},
		),
		BusyRejections: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "reprompt_busy_rejections_total",
				Help: "Transformations rejected because one was already running for the document",
			},
		),
		RulesReloadsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reprompt_rules_reloads_total",
				Help: "House rules reloads by resulting status",
			},
			[]string{"status"},
		),
		ProgressClients: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "reprompt_progress_clients",
				Help: "Number of connected progress feed clients",
			},
		),
	}

	// Register default Go metrics
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	// Initialize some default metrics
	m.RequestsTotal.WithLabelValues("/health", "200").Add(0)
	m.RequestsTotal.WithLabelValues("/metrics", "200").Add(0)
	m.RequestDuration.WithLabelValues("/health").Observe(0)
	m.RequestDuration.WithLabelValues("/metrics").Observe(0)

	return m
}

// Registry exposes the underlying registry so other components can register
// their own collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler returns a handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: false,
	})
}

// ObserveAPICall records one completion API call.
func (m *Metrics) ObserveAPICall(model, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.APIRequestsTotal.WithLabelValues(model, status).Inc()
	m.APIRequestDuration.WithLabelValues(model).Observe(d.Seconds())
}

// RecordOperation counts an orchestrated operation and its outcome.
func (m *Metrics) RecordOperation(operation, outcome string) {
	if m == nil {
		return
	}
	m.TransformsTotal.WithLabelValues(operation, outcome).Inc()
}

// ObserveExpansion records the expansion ratio of a transformation.
func (m *Metrics) ObserveExpansion(ratio float64) {
	if m == nil {
		return
	}
	m.ExpansionRatio.Observe(ratio)
}

// RecordBusy counts a transformation rejected by the busy guard.
func (m *Metrics) RecordBusy() {
	if m == nil {
		return
	}
	m.BusyRejections.Inc()
}

// RecordRulesReload counts a house rules reload.
func (m *Metrics) RecordRulesReload(status string) {
	if m == nil {
		return
	}
	m.RulesReloadsTotal.WithLabelValues(status).Inc()
}

// ProgressClientConnected adjusts the progress client gauge by delta.
func (m *Metrics) ProgressClientConnected(delta int) {
	if m == nil {
		return
	}
	m.ProgressClients.Add(float64(delta))
}

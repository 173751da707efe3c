// Package metrics exposes the gateway's Prometheus collectors.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nerrad567/fedimint-http/internal/operation"
)

const namespace = "fedimint_http"

// Metrics holds every collector, registered on its own registry.
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	RPCSessions      prometheus.Gauge
	RPCSubscriptions *prometheus.GaugeVec
	RPCRequests      *prometheus.CounterVec
	RPCDuration      *prometheus.HistogramVec

	OperationEvents   *prometheus.CounterVec
	OperationOutcomes *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec

	Federations prometheus.Gauge
}

// New creates and registers the gateway collectors plus the Go runtime and
// process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "HTTP requests by route, method and status code",
			},
			[]string{"route", "method", "status"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"route"},
		),

		RPCSessions: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "rpc",
				Name:      "sessions",
				Help:      "Open JSON-RPC sessions",
			},
		),
		RPCSubscriptions: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "rpc",
				Name:      "subscriptions",
				Help:      "Active JSON-RPC subscriptions by method",
			},
			[]string{"method"},
		),
		RPCRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "rpc",
				Name:      "requests_total",
				Help:      "JSON-RPC requests by method and outcome",
			},
			[]string{"method", "outcome"},
		),
		RPCDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "rpc",
				Name:      "request_duration_seconds",
				Help:      "JSON-RPC request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method"},
		),

		OperationEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "operation",
				Name:      "events_total",
				Help:      "Lifecycle events observed by kind and state",
			},
			[]string{"kind", "state"},
		),
		OperationOutcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "operation",
				Name:      "outcomes_total",
				Help:      "Finished waits by kind and status",
			},
			[]string{"kind", "status"},
		),
		OperationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "operation",
				Name:      "wait_duration_seconds",
				Help:      "Time from subscription to final state in seconds",
				Buckets:   []float64{0.1, 0.5, 1, 5, 15, 60, 300, 1800},
			},
			[]string{"kind"},
		),

		Federations: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "federations",
				Help:      "Federations registered with the gateway",
			},
		),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.HTTPRequests, m.HTTPDuration,
		m.RPCSessions, m.RPCSubscriptions, m.RPCRequests, m.RPCDuration,
		m.OperationEvents, m.OperationOutcomes, m.OperationDuration,
		m.Federations,
	)
	return m
}

// Registry returns the registry holding the collectors.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the collectors in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// RecordHTTP counts one HTTP request.
func (m *Metrics) RecordHTTP(route, method string, status int, elapsed time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	m.HTTPRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.HTTPDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}

// SetFederations records the number of registered federations.
func (m *Metrics) SetFederations(n int) { m.Federations.Set(float64(n)) }

// RecordEvent implements operation.Recorder.
func (m *Metrics) RecordEvent(meta operation.Meta, event any) {
	state := operation.StateOf(event)
	if state == "" {
		state = "unknown"
	}
	m.OperationEvents.WithLabelValues(string(meta.Kind), state).Inc()
}

// RecordOutcome implements operation.Recorder.
func (m *Metrics) RecordOutcome(meta operation.Meta, status operation.Status, _ string, elapsed time.Duration) {
	m.OperationOutcomes.WithLabelValues(string(meta.Kind), status.String()).Inc()
	m.OperationDuration.WithLabelValues(string(meta.Kind)).Observe(elapsed.Seconds())
}

// Package metrics holds the Prometheus collectors of the ledger service.
//
// Collectors live on a dedicated registry rather than the global default so
// that tests and multiple servers in one process never collide.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "ledger"

// Operation results.
const (
	ResultOK       = "ok"
	ResultRejected = "rejected" // client error: validation, not found, funds
	ResultError    = "error"
)

type Metrics struct {
	registry *prometheus.Registry

	HTTPRequests        *prometheus.CounterVec
	HTTPDuration        *prometheus.HistogramVec
	Operations          *prometheus.CounterVec
	IntegrityRuns       prometheus.Counter
	IntegrityDrift      prometheus.Gauge
	IntegrityLastRun    prometheus.Gauge
	PaymentExcess       prometheus.Counter
	EventPublishFailure *prometheus.CounterVec
}

// New registers every collector on a fresh registry, plus the Go runtime
// and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route pattern and status code.",
		}, []string{"method", "route", "status"}),
		HTTPDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route pattern.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		Operations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Ledger mutations by operation and result.",
		}, []string{"operation", "result"}),
		IntegrityRuns: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "integrity_runs_total",
			Help:      "Completed integrity validations.",
		}),
		IntegrityDrift: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "integrity_discrepancies",
			Help:      "Accounts whose balance differs from the sum of their envelopes at the last validation.",
		}),
		IntegrityLastRun: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "integrity_last_run_timestamp_seconds",
			Help:      "Unix time of the last completed integrity validation.",
		}),
		PaymentExcess: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_overpayments_total",
			Help:      "Payment allocations that exceeded the outstanding debt.",
		}),
		EventPublishFailure: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "event_publish_failures_total",
			Help:      "Events that could not be delivered, by event type.",
		}, []string{"type"}),
	}
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveOperation(operation, result string) {
	m.Operations.WithLabelValues(operation, result).Inc()
}

// ObserveIntegrity records the outcome of one validation run.
func (m *Metrics) ObserveIntegrity(discrepancies int, at time.Time) {
	m.IntegrityRuns.Inc()
	m.IntegrityDrift.Set(float64(discrepancies))
	m.IntegrityLastRun.Set(float64(at.Unix()))
}

// Package metrics holds the Prometheus collectors exported on /metrics.
// Every method is safe to call on a nil *Metrics so services can run without instrumentation.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	httpRequestsTotal *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
	reconciliations   *prometheus.CounterVec
	admissions        prometheus.Counter
	discharges        *prometheus.CounterVec
	extractions       *prometheus.CounterVec
	extractionLatency prometheus.Histogram
	kpiCache          *prometheus.CounterVec
	breakerState      *prometheus.GaugeVec
}

// New creates the collectors and registers them with reg
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		httpRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "icu_http_requests_total",
			Help: "Total count of HTTP requests processed by route and status.",
		}, []string{"route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "icu_http_request_duration_seconds",
			Help:    "Histogram of HTTP request durations by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		reconciliations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "icu_bed_reconciliations_total",
			Help: "Structured updates applied to beds, by source and outcome (applied or noop).",
		}, []string{"source", "outcome"}),
		admissions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "icu_bed_admissions_total",
			Help: "First-contact admissions triggered by an update on a vacant bed.",
		}),
		discharges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "icu_bed_discharges_total",
			Help: "Clear-bed operations by outcome (archived, already_vacant, failed).",
		}, []string{"outcome"}),
		extractions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "icu_extractions_total",
			Help: "Calls to the clinical extraction pipeline by outcome.",
		}, []string{"outcome"}),
		extractionLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "icu_extraction_duration_seconds",
			Help:    "Latency of the clinical extraction pipeline.",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		}),
		kpiCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "icu_kpi_cache_total",
			Help: "Dashboard KPI cache lookups by result (hit or miss).",
		}, []string{"result"}),
		breakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "icu_circuit_breaker_state",
			Help: "Circuit breaker state gauge (0 closed, 1 half-open, 2 open).",
		}, []string{"target"}),
	}

	reg.MustRegister(
		m.httpRequestsTotal,
		m.httpDuration,
		m.reconciliations,
		m.admissions,
		m.discharges,
		m.extractions,
		m.extractionLatency,
		m.kpiCache,
		m.breakerState,
	)

	return m
}

// ObserveHTTP records one handled request
func (m *Metrics) ObserveHTTP(route string, status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpRequestsTotal.WithLabelValues(route, status).Inc()
	m.httpDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}

// ObserveReconciliation records an applied or no-op update and whether it admitted a patient
func (m *Metrics) ObserveReconciliation(source string, applied bool, admitted bool) {
	if m == nil {
		return
	}
	outcome := "noop"
	if applied {
		outcome = "applied"
	}
	m.reconciliations.WithLabelValues(source, outcome).Inc()
	if admitted {
		m.admissions.Inc()
	}
}

// ObserveDischarge records the outcome of a clear-bed operation
func (m *Metrics) ObserveDischarge(outcome string) {
	if m == nil {
		return
	}
	m.discharges.WithLabelValues(outcome).Inc()
}

// ObserveExtraction records an extraction call
func (m *Metrics) ObserveExtraction(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.extractions.WithLabelValues(outcome).Inc()
	m.extractionLatency.Observe(elapsed.Seconds())
}

// ObserveKPICache records a cache lookup
func (m *Metrics) ObserveKPICache(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.kpiCache.WithLabelValues("hit").Inc()
		return
	}
	m.kpiCache.WithLabelValues("miss").Inc()
}

// SetBreakerState publishes a circuit breaker state (0 closed, 1 half-open, 2 open)
func (m *Metrics) SetBreakerState(target string, state float64) {
	if m == nil {
		return
	}
	m.breakerState.WithLabelValues(target).Set(state)
}

// Package metrics exposes Prometheus instruments for record mutations, store
// synchronisation and HTTP traffic.
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

const namespace = "potrosnja"

// Metrics groups the instruments. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	mutations    *prometheus.CounterVec
	syncFailures *prometheus.CounterVec
	saveDuration *prometheus.HistogramVec
	records      prometheus.Gauge
	syncState    *prometheus.GaugeVec
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
	rateLimited  prometheus.Counter
}

// New registers every instrument on a fresh registry, together with the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		mutations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "record_mutations_total",
			Help:      "Record mutations by operation (insert, merge, update, delete, import).",
		}, []string{"operation"}),
		syncFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_failures_total",
			Help:      "Failed store operations by store (primary, cache) and operation (load, save).",
		}, []string{"store", "operation"}),
		saveDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "store_save_duration_seconds",
			Help:      "Duration of full-set saves by store.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~10s
		}, []string{"store"}),
		records: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "records",
			Help:      "Number of records held in memory.",
		}),
		syncState: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sync_state",
			Help:      "1 for the current sync state (ok, stale, offline), 0 otherwise.",
		}, []string{"state"}),
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route pattern, method and status code.",
		}, []string{"route", "method", "code"}),
		httpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route pattern.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		rateLimited: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_requests_total",
			Help:      "Write requests refused by the per-client rate limiter.",
		}),
	}
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) RecordMutation(operation string) {
	if m == nil {
		return
	}
	m.mutations.WithLabelValues(operation).Inc()
}

func (m *Metrics) StoreFailure(store, operation string) {
	if m == nil {
		return
	}
	m.syncFailures.WithLabelValues(store, operation).Inc()
}

func (m *Metrics) ObserveSave(store string, d time.Duration) {
	if m == nil {
		return
	}
	m.saveDuration.WithLabelValues(store).Observe(d.Seconds())
}

func (m *Metrics) SetRecords(n int) {
	if m == nil {
		return
	}
	m.records.Set(float64(n))
}

// SetSyncState flips the state gauge so exactly one of states is 1.
func (m *Metrics) SetSyncState(current string, states ...string) {
	if m == nil {
		return
	}
	for _, s := range states {
		v := 0.0
		if s == current {
			v = 1
		}
		m.syncState.WithLabelValues(s).Set(v)
	}
}

func (m *Metrics) ObserveHTTP(route, method string, code int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, method, strconv.Itoa(code)).Inc()
	m.httpDuration.WithLabelValues(route).Observe(d.Seconds())
}

func (m *Metrics) RateLimited() {
	if m == nil {
		return
	}
	m.rateLimited.Inc()
}

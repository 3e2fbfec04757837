// Package metrics owns the prometheus collectors for the feed core.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Result labels shared across collectors.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// Recorder exposes the counters and histograms touched by the feed components.
// A nil *Recorder is valid and records nothing.
type Recorder struct {
	registry            *prometheus.Registry
	catalogFetches      *prometheus.CounterVec
	catalogFetchSeconds *prometheus.HistogramVec
	persistenceWrites   *prometheus.CounterVec
	mutations           *prometheus.CounterVec
	activeSessions      prometheus.Gauge
}

// New registers the feed collectors on a fresh registry.
func New() *Recorder {
	registry := prometheus.NewRegistry()
	recorder := &Recorder{
		registry: registry,
		catalogFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "memeverse_catalog_fetches_total",
			Help: "Upstream catalog fetches by query and result",
		}, []string{"query", "result"}),
		catalogFetchSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "memeverse_catalog_fetch_duration_seconds",
			Help:    "Upstream catalog fetch latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"query"}),
		persistenceWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "memeverse_persistence_writes_total",
			Help: "Mutation log writes by key and result",
		}, []string{"key", "result"}),
		mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "memeverse_mutations_total",
			Help: "User mutations applied to feed sessions by kind",
		}, []string{"kind"}),
		activeSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "memeverse_active_sessions",
			Help: "Feed sessions currently held in memory",
		}),
	}
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		recorder.catalogFetches,
		recorder.catalogFetchSeconds,
		recorder.persistenceWrites,
		recorder.mutations,
		recorder.activeSessions,
	)
	return recorder
}

// Handler serves the registry in the prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Gatherer exposes the underlying registry for tests.
func (r *Recorder) Gatherer() prometheus.Gatherer {
	if r == nil {
		return prometheus.NewRegistry()
	}
	return r.registry
}

// ObserveFetch records one upstream fetch.
func (r *Recorder) ObserveFetch(query string, seconds float64, err error) {
	if r == nil {
		return
	}
	result := ResultSuccess
	if err != nil {
		result = ResultFailure
	}
	r.catalogFetches.WithLabelValues(query, result).Inc()
	r.catalogFetchSeconds.WithLabelValues(query).Observe(seconds)
}

// ObservePersistence records one mutation log write.
func (r *Recorder) ObservePersistence(key string, err error) {
	if r == nil {
		return
	}
	result := ResultSuccess
	if err != nil {
		result = ResultFailure
	}
	r.persistenceWrites.WithLabelValues(key, result).Inc()
}

// ObserveMutation records one applied user mutation.
func (r *Recorder) ObserveMutation(kind string) {
	if r == nil {
		return
	}
	r.mutations.WithLabelValues(kind).Inc()
}

// SetActiveSessions updates the session gauge.
func (r *Recorder) SetActiveSessions(count int) {
	if r == nil {
		return
	}
	r.activeSessions.Set(float64(count))
}

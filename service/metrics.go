package service

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the pipeline's Prometheus collectors. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	RunsTotal           *prometheus.CounterVec
	StageDuration       *prometheus.HistogramVec
	PollQueries         prometheus.Counter
	PollTransientErrors prometheus.Counter
	StagedBytes         prometheus.Histogram
	PaddedObjects       prometheus.Counter
}

// NewMetrics registers all collectors on a fresh registry owned by the caller.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		RunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "topics_pipeline_runs_total",
			Help: "Pipeline runs by outcome",
		}, []string{"outcome"}),
		StageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "topics_stage_duration_seconds",
			Help:    "Time spent in each pipeline stage",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 30, 60, 300, 900, 1800},
		}, []string{"stage"}),
		PollQueries: factory.NewCounter(prometheus.CounterOpts{
			Name: "topics_poll_queries_total",
			Help: "Job status queries issued",
		}),
		PollTransientErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "topics_poll_transient_errors_total",
			Help: "Job status queries that failed with a retryable error",
		}),
		StagedBytes: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "topics_staged_bytes",
			Help:    "Size of staged objects after padding",
			Buckets: prometheus.ExponentialBuckets(256, 4, 8),
		}),
		PaddedObjects: factory.NewCounter(prometheus.CounterOpts{
			Name: "topics_padded_objects_total",
			Help: "Staged objects that needed padding",
		}),
	}
}

// Handler serves the collectors in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) observeRun(outcome string) {
	if m == nil {
		return
	}
	m.RunsTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) observeStage(stage string, start time.Time) {
	if m == nil {
		return
	}
	m.StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

func (m *Metrics) observePollQuery() {
	if m == nil {
		return
	}
	m.PollQueries.Inc()
}

func (m *Metrics) observePollTransient() {
	if m == nil {
		return
	}
	m.PollTransientErrors.Inc()
}

func (m *Metrics) observeStaged(sizeBytes int64, padded bool) {
	if m == nil {
		return
	}
	m.StagedBytes.Observe(float64(sizeBytes))
	if padded {
		m.PaddedObjects.Inc()
	}
}

// Package metrics exposes Prometheus metrics for the link validation pipeline.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsNamespace is the namespace for all link checker metrics.
const MetricsNamespace = "linkcheck"

// Event outcomes.
const (
	OutcomePublishable   = "publishable"
	OutcomeUnpublishable = "unpublishable"
	OutcomeTombstoned    = "tombstoned"
	OutcomeSkipped       = "skipped"
	OutcomeLocked        = "locked"
	OutcomeError         = "error"
)

// Heal attempt results.
const (
	HealImproved    = "improved"
	HealNotImproved = "not_improved"
)

// Batch run results.
const (
	BatchOK      = "ok"
	BatchFailed  = "failed"
	BatchSkipped = "skipped"
)

// Metrics holds all Prometheus metrics for the pipeline. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	EventsTotal          *prometheus.CounterVec
	LinkScore            prometheus.Histogram
	FetchDurationSeconds *prometheus.HistogramVec
	HealAttemptsTotal    *prometheus.CounterVec
	TombstonesCreated    prometheus.Counter
	TombstonesExpired    prometheus.Counter
	BatchRunsTotal       *prometheus.CounterVec
	BatchDurationSeconds prometheus.Histogram
}

// New creates and registers all metrics on reg. A nil reg gets a fresh
// registry that also carries the Go runtime and process collectors.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	factory := promauto.With(reg)
	m := &Metrics{registry: reg}

	m.initEventMetrics(factory)
	m.initTombstoneMetrics(factory)
	m.initBatchMetrics(factory)

	return m
}

func (m *Metrics) initEventMetrics(factory promauto.Factory) {
	m.EventsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Name:      "events_total",
			Help:      "Events handled by the validator, by outcome",
		},
		[]string{"outcome"},
	)

	m.LinkScore = factory.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: MetricsNamespace,
			Name:      "link_score",
			Help:      "Distribution of persisted link health scores",
			Buckets:   prometheus.LinearBuckets(0, 10, 11),
		},
	)

	m.FetchDurationSeconds = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: MetricsNamespace,
			Name:      "fetch_duration_seconds",
			Help:      "Duration of outbound link fetches in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 4, 8, 16},
		},
		[]string{"method"},
	)

	m.HealAttemptsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Name:      "heal_attempts_total",
			Help:      "URL heal attempts, by whether the healed URL scored higher",
		},
		[]string{"result"},
	)
}

func (m *Metrics) initTombstoneMetrics(factory promauto.Factory) {
	m.TombstonesCreated = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Name:      "tombstones_created_total",
			Help:      "Tombstones recorded for permanently dead links",
		},
	)

	m.TombstonesExpired = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Name:      "tombstones_expired_total",
			Help:      "Tombstones removed by the collector",
		},
	)
}

func (m *Metrics) initBatchMetrics(factory promauto.Factory) {
	m.BatchRunsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Name:      "batch_runs_total",
			Help:      "Batch validation runs, by trigger and result",
		},
		[]string{"trigger", "result"},
	)

	m.BatchDurationSeconds = factory.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: MetricsNamespace,
			Name:      "batch_duration_seconds",
			Help:      "Duration of batch validation runs in seconds",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12), // 1s to ~34min
		},
	)
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordEvent counts one handled event.
func (m *Metrics) RecordEvent(outcome string) {
	if m == nil {
		return
	}
	m.EventsTotal.WithLabelValues(outcome).Inc()
}

// ObserveScore records a persisted score.
func (m *Metrics) ObserveScore(score int) {
	if m == nil {
		return
	}
	m.LinkScore.Observe(float64(score))
}

// ObserveFetch records one outbound request.
func (m *Metrics) ObserveFetch(method string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.FetchDurationSeconds.WithLabelValues(method).Observe(elapsed.Seconds())
}

// RecordHeal counts one heal attempt.
func (m *Metrics) RecordHeal(result string) {
	if m == nil {
		return
	}
	m.HealAttemptsTotal.WithLabelValues(result).Inc()
}

// RecordTombstoneCreated counts a newly recorded tombstone.
func (m *Metrics) RecordTombstoneCreated() {
	if m == nil {
		return
	}
	m.TombstonesCreated.Inc()
}

// RecordTombstonesExpired counts tombstones removed by the collector.
func (m *Metrics) RecordTombstonesExpired(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.TombstonesExpired.Add(float64(n))
}

// RecordBatch records a finished (or skipped) batch run.
func (m *Metrics) RecordBatch(trigger, result string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.BatchRunsTotal.WithLabelValues(trigger, result).Inc()
	if result != BatchSkipped {
		m.BatchDurationSeconds.Observe(elapsed.Seconds())
	}
}

// Package metrics exposes pipeline counters for Prometheus. Every method is
// safe on a nil *Metrics so components can run without instrumentation.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	// Namespace is the namespace for all job-autopilot metrics.
	Namespace = "job_autopilot"

	subsystemSearch    = "search"
	subsystemScoring   = "scoring"
	subsystemApply     = "apply"
	subsystemScheduler = "scheduler"
)

// Metrics holds all Prometheus metrics for the pipeline.
type Metrics struct {
	SearchesTotal     *prometheus.CounterVec
	PlatformJobsTotal *prometheus.CounterVec
	PlatformErrors    *prometheus.CounterVec
	SearchDuration    prometheus.Histogram
	ScoresTotal       *prometheus.CounterVec
	ApplicationsTotal *prometheus.CounterVec
	TaskRunsTotal     *prometheus.CounterVec
	TaskDuration      *prometheus.HistogramVec
}

// New creates and registers the metrics on reg, or on the default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	factory := promauto.With(reg)
	m := &Metrics{}

	m.initSearchMetrics(factory)
	m.initScoringMetrics(factory)
	m.initApplyMetrics(factory)
	m.initSchedulerMetrics(factory)

	return m
}

func (m *Metrics) initSearchMetrics(factory promauto.Factory) {
	m.SearchesTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: subsystemSearch,
			Name:      "runs_total",
			Help:      "Total number of searches",
		},
		[]string{"status"},
	)

	m.PlatformJobsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: subsystemSearch,
			Name:      "platform_jobs_total",
			Help:      "Postings returned per platform",
		},
		[]string{"platform"},
	)

	m.PlatformErrors = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: subsystemSearch,
			Name:      "platform_errors_total",
			Help:      "Failed platform searches",
		},
		[]string{"platform"},
	)

	m.SearchDuration = factory.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: subsystemSearch,
			Name:      "duration_seconds",
			Help:      "Duration of a full search in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
		},
	)
}

func (m *Metrics) initScoringMetrics(factory promauto.Factory) {
	m.ScoresTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: subsystemScoring,
			Name:      "jobs_total",
			Help:      "Scored postings by method",
		},
		[]string{"method"},
	)
}

func (m *Metrics) initApplyMetrics(factory promauto.Factory) {
	m.ApplicationsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: subsystemApply,
			Name:      "applications_total",
			Help:      "Application attempts by method and outcome",
		},
		[]string{"method", "outcome"},
	)
}

func (m *Metrics) initSchedulerMetrics(factory promauto.Factory) {
	m.TaskRunsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: subsystemScheduler,
			Name:      "task_runs_total",
			Help:      "Scheduled task runs by outcome",
		},
		[]string{"task", "outcome"},
	)

	m.TaskDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: subsystemScheduler,
			Name:      "task_duration_seconds",
			Help:      "Duration of scheduled task runs in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 15),
		},
		[]string{"task"},
	)
}

// Scoring methods.
const (
	MethodAI       = "ai"
	MethodQuick    = "quick"
	MethodFallback = "fallback"
)

func (m *Metrics) SearchDone(ok bool, took time.Duration) {
	if m == nil {
		return
	}
	m.SearchesTotal.WithLabelValues(outcome(ok)).Inc()
	m.SearchDuration.Observe(took.Seconds())
}

func (m *Metrics) PlatformResult(platform string, count int, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.PlatformErrors.WithLabelValues(platform).Inc()
		return
	}
	m.PlatformJobsTotal.WithLabelValues(platform).Add(float64(count))
}

func (m *Metrics) Scored(method string) {
	if m == nil {
		return
	}
	m.ScoresTotal.WithLabelValues(method).Inc()
}

func (m *Metrics) Application(method string, ok bool) {
	if m == nil {
		return
	}
	m.ApplicationsTotal.WithLabelValues(method, outcome(ok)).Inc()
}

func (m *Metrics) TaskRun(task string, err error, took time.Duration) {
	if m == nil {
		return
	}
	m.TaskRunsTotal.WithLabelValues(task, outcome(err == nil)).Inc()
	m.TaskDuration.WithLabelValues(task).Observe(took.Seconds())
}

func outcome(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}

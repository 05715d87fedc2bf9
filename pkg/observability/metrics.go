// Package observability provides the Prometheus metrics shared by the
// Orchestrator, Sandbox Runner, and Memory Adapter.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// durationBuckets suits container-run and LLM-call latencies, from 100ms
// to two minutes.
var durationBuckets = []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120}

var (
	// RunsTotal counts Orchestrator runs by terminal outcome.
	RunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "neuroforge_runs_total", Help: "Total orchestrator runs"},
		[]string{"outcome"},
	)

	// AttemptsPerRun records how many attempts a run consumed.
	AttemptsPerRun = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "neuroforge_attempts_per_run",
			Help:    "Attempts consumed per run",
			Buckets: []float64{1, 2, 3},
		},
	)

	// RunnerRunsTotal counts Sandbox Runner invocations by language.
	RunnerRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "neuroforge_runner_runs_total", Help: "Total sandbox runner invocations"},
		[]string{"language"},
	)

	// RunnerDuration records container run wall-clock time in seconds.
	RunnerDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "neuroforge_runner_duration_seconds",
			Help:    "Sandbox runner execution duration",
			Buckets: durationBuckets,
		},
		[]string{"language"},
	)

	// RunnerTimeoutsTotal counts runs that hit the wall-clock timeout.
	RunnerTimeoutsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "neuroforge_runner_timeouts_total", Help: "Sandbox runner timeouts"},
		[]string{"language"},
	)

	// RunnerFailuresTotal counts runs that errored before producing a
	// RunResult (infrastructure failures, not nonzero exit codes).
	RunnerFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "neuroforge_runner_failures_total", Help: "Sandbox runner infrastructure failures"},
		[]string{"language"},
	)

	// RunnerConcurrentRuns tracks containers currently executing.
	RunnerConcurrentRuns = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "neuroforge_runner_concurrent_runs", Help: "Containers currently executing"},
	)

	// MemoryUpsertsTotal counts Memory Adapter upserts by namespace.
	MemoryUpsertsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "neuroforge_memory_upserts_total", Help: "Memory adapter upserts"},
		[]string{"namespace"},
	)

	// MemoryQueriesTotal counts Memory Adapter queries by namespace.
	MemoryQueriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "neuroforge_memory_queries_total", Help: "Memory adapter queries"},
		[]string{"namespace"},
	)

	// MemoryQueryLatency records query round-trip latency.
	MemoryQueryLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "neuroforge_memory_query_latency_seconds",
			Help:    "Memory adapter query latency",
			Buckets: durationBuckets,
		},
		[]string{"namespace"},
	)

	// GeneratorLatency records Code Generator call latency.
	GeneratorLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "neuroforge_generator_latency_seconds",
			Help:    "Code generator call latency",
			Buckets: durationBuckets,
		},
	)

	// RepairerLatency records Code Repairer call latency.
	RepairerLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "neuroforge_repairer_latency_seconds",
			Help:    "Code repairer call latency",
			Buckets: durationBuckets,
		},
	)

	// RateLimitRejectedTotal counts requests rejected by the Transport
	// rate limiter.
	RateLimitRejectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "neuroforge_ratelimit_rejected_total", Help: "Rate limit rejections"},
		[]string{"tier"},
	)

	// HTTPRequestsTotal counts Transport HTTP requests by method, path
	// and status code.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "neuroforge_http_requests_total", Help: "Total HTTP requests served"},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration records Transport HTTP request latency.
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "neuroforge_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: durationBuckets,
		},
		[]string{"method", "path"},
	)
)

func init() {
	prometheus.MustRegister(
		RunsTotal,
		AttemptsPerRun,
		RunnerRunsTotal,
		RunnerDuration,
		RunnerTimeoutsTotal,
		RunnerFailuresTotal,
		RunnerConcurrentRuns,
		MemoryUpsertsTotal,
		MemoryQueriesTotal,
		MemoryQueryLatency,
		GeneratorLatency,
		RepairerLatency,
		RateLimitRejectedTotal,
		HTTPRequestsTotal,
		HTTPRequestDuration,
	)
}

// DurationTimer measures elapsed time and records it to a HistogramVec
// keyed by a fixed label set, mirroring prometheus.NewTimer for the
// label-carrying call sites in this module.
type DurationTimer struct {
	start  time.Time
	vec    *prometheus.HistogramVec
	labels []string
}

// NewRunnerDurationTimer starts a timer for one sandbox run.
func NewRunnerDurationTimer(language string) *DurationTimer {
	return &DurationTimer{start: time.Now(), vec: RunnerDuration, labels: []string{language}}
}

// ObserveDuration records elapsed time since the timer was created.
func (t *DurationTimer) ObserveDuration() {
	t.vec.WithLabelValues(t.labels...).Observe(time.Since(t.start).Seconds())
}

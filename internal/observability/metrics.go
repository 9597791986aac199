package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "forgemirror",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests served by the status server.",
		},
		[]string{"method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "forgemirror",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
	syncOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "forgemirror",
			Subsystem: "sync",
			Name:      "outcomes_total",
			Help:      "Per-project workflow outcomes.",
		},
		[]string{"outcome"},
	)
	stepFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "forgemirror",
			Subsystem: "sync",
			Name:      "step_failures_total",
			Help:      "Failed external steps by operation and classified signal.",
		},
		[]string{"op", "signal"},
	)
	workflowDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "forgemirror",
			Subsystem: "sync",
			Name:      "workflow_duration_seconds",
			Help:      "Wall time of one project workflow.",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 14),
		},
	)
	runLastSuccess = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "forgemirror",
			Subsystem: "run",
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last run that completed scheduling and draining.",
		},
	)
	runProjects = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "forgemirror",
			Subsystem: "run",
			Name:      "catalog_projects",
			Help:      "Projects listed in the origin catalog at the last run.",
		},
	)
	legacyImportAvailable = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "forgemirror",
			Subsystem: "sync",
			Name:      "legacy_import_available",
			Help:      "1 while the legacy importer is considered usable in this process.",
		},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			httpRequests, httpDuration,
			syncOutcomes, stepFailures, workflowDuration,
			runLastSuccess, runProjects, legacyImportAvailable,
		)
		legacyImportAvailable.Set(1)
	})
}

func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(method, path, statusLabel).Observe(duration.Seconds())
}

func RecordOutcome(outcome string, duration time.Duration) {
	RegisterMetrics()
	syncOutcomes.WithLabelValues(outcome).Inc()
	if duration > 0 {
		workflowDuration.Observe(duration.Seconds())
	}
}

func RecordStepFailure(op, signal string) {
	RegisterMetrics()
	stepFailures.WithLabelValues(op, signal).Inc()
}

func RecordRun(projects int, finished time.Time) {
	RegisterMetrics()
	runProjects.Set(float64(projects))
	runLastSuccess.Set(float64(finished.Unix()))
}

func RecordLegacyImportAvailable(available bool) {
	RegisterMetrics()
	if available {
		legacyImportAvailable.Set(1)
		return
	}
	legacyImportAvailable.Set(0)
}

// WriteTextfile exports every registered metric in the node_exporter
// textfile-collector format.
func WriteTextfile(path string) error {
	RegisterMetrics()
	return prometheus.WriteToTextfile(path, prometheus.DefaultGatherer)
}

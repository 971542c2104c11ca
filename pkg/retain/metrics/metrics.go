// Package metrics exposes Prometheus collectors for retention runs.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/jamesainslie/retain/pkg/retain/filter"
	"github.com/jamesainslie/retain/pkg/retain/types"
)

// Run results used as the "result" label of retain_runs_total.
const (
	ResultSuccess = "success"
	ResultError   = "error"
)

// Metrics contains the Prometheus collectors for the runner.
type Metrics struct {
	runs         *prometheus.CounterVec
	filesDeleted prometheus.Counter
	bytesFreed   prometheus.Counter
	failures     prometheus.Counter
	rejections   *prometheus.CounterVec
	scanned      prometheus.Counter
	runDuration  prometheus.Histogram
	lastRun      prometheus.Gauge
}

// New registers the collectors with reg. A nil reg uses the default
// Prometheus registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	m := &Metrics{
		runs: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "retain_runs_total",
				Help: "Total number of retention runs",
			},
			[]string{"result"},
		),

		filesDeleted: factory.NewCounter(prometheus.CounterOpts{
			Name: "retain_files_deleted_total",
			Help: "Total number of files deleted",
		}),

		bytesFreed: factory.NewCounter(prometheus.CounterOpts{
			Name: "retain_bytes_freed_total",
			Help: "Total number of bytes freed by deletions",
		}),

		failures: factory.NewCounter(prometheus.CounterOpts{
			Name: "retain_deletion_failures_total",
			Help: "Total number of deletions that failed",
		}),

		rejections: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "retain_files_rejected_total",
				Help: "Total number of files kept, by the filter rule that kept them",
			},
			[]string{"reason"},
		),

		scanned: factory.NewCounter(prometheus.CounterOpts{
			Name: "retain_files_scanned_total",
			Help: "Total number of directory entries evaluated",
		}),

		runDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "retain_run_duration_seconds",
			Help:    "Duration of retention runs in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 10), // 1ms to ~4m
		}),

		lastRun: factory.NewGauge(prometheus.GaugeOpts{
			Name: "retain_last_run_timestamp_seconds",
			Help: "Unix time the last retention run finished",
		}),
	}

	// Every rule gets a series from the start so rates work before the
	// first rejection.
	for _, reason := range filter.Reasons {
		m.rejections.WithLabelValues(reason.String())
	}
	return m
}

// RecordRejection counts a file kept by the named rule.
func (m *Metrics) RecordRejection(reason string) {
	m.rejections.WithLabelValues(reason).Inc()
}

// RecordRun folds a finished run into the counters.
func (m *Metrics) RecordRun(s *types.RunSummary, finished time.Time) {
	m.runs.WithLabelValues(ResultSuccess).Inc()
	m.filesDeleted.Add(float64(s.DeletedCount))
	m.bytesFreed.Add(float64(s.TotalFreedBytes))
	m.failures.Add(float64(s.Failed))
	m.scanned.Add(float64(s.Scanned))
	m.runDuration.Observe(s.Elapsed.Seconds())
	m.lastRun.Set(float64(finished.Unix()))
}

// RecordRunError counts a run that aborted before deleting anything.
func (m *Metrics) RecordRunError() {
	m.runs.WithLabelValues(ResultError).Inc()
}

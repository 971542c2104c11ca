package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamesainslie/retain/pkg/retain/filter"
	"github.com/jamesainslie/retain/pkg/retain/types"
)

func TestRecordRun(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	finished := time.Unix(1700000000, 0)
	m.RecordRun(&types.RunSummary{
		DeletedCount:    5,
		TotalFreedBytes: 5 * types.MiB,
		Scanned:         10,
		Failed:          1,
		Elapsed:         250 * time.Millisecond,
	}, finished)
	m.RecordRun(&types.RunSummary{DeletedCount: 2, TotalFreedBytes: 100, Scanned: 2}, finished)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.runs.WithLabelValues(ResultSuccess)))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.filesDeleted))
	assert.Equal(t, float64(5*types.MiB+100), testutil.ToFloat64(m.bytesFreed))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.failures))
	assert.Equal(t, 12.0, testutil.ToFloat64(m.scanned))
	assert.Equal(t, 1700000000.0, testutil.ToFloat64(m.lastRun))
	assert.Equal(t, 1, testutil.CollectAndCount(m.runDuration))
}

func TestRecordRejection(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.RecordRejection("weekday")
	m.RecordRejection("weekday")
	m.RecordRejection("extension")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.rejections.WithLabelValues("weekday")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.rejections.WithLabelValues("extension")))
	assert.Equal(t, len(filter.Reasons), testutil.CollectAndCount(m.rejections))
}

func TestNew_RejectionSeriesStartAtZero(t *testing.T) {
	m := New(prometheus.NewRegistry())

	require.Equal(t, len(filter.Reasons), testutil.CollectAndCount(m.rejections))
	for _, reason := range filter.Reasons {
		assert.Zero(t, testutil.ToFloat64(m.rejections.WithLabelValues(reason.String())), reason.String())
	}
}

func TestRecordRunError(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.RecordRunError()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues(ResultError)))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.runs.WithLabelValues(ResultSuccess)))
}

func TestNew_RegistersCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.RecordRejection("name")
	m.RecordRunError()

	families, err := reg.Gather()
	require.NoError(t, err)

	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "retain_files_deleted_total")
	assert.Contains(t, names, "retain_files_rejected_total")
	assert.Contains(t, names, "retain_runs_total")
	assert.Contains(t, names, "retain_run_duration_seconds")
}

func TestNew_DuplicateRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg)
	assert.Panics(t, func() { New(reg) })
}

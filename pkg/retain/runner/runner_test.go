package runner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamesainslie/retain/pkg/retain/config"
	"github.com/jamesainslie/retain/pkg/retain/history"
	"github.com/jamesainslie/retain/pkg/retain/metrics"
	"github.com/jamesainslie/retain/pkg/retain/pool"
	"github.com/jamesainslie/retain/pkg/retain/types"
)

// todayConfig returns a config under which a file created now in dir is
// eligible when it has the txt extension: the date range covers today and
// neither today's weekday nor today's day of month is retained.
func todayConfig(t *testing.T, dir string) *config.Config {
	t.Helper()
	now := time.Now()

	otherWeekday := types.ISOWeekday(now)%7 + 1
	otherMonthDay := "01"
	if now.Day() == 1 {
		otherMonthDay = "02"
	}

	cfg, err := config.FromValues(map[string]string{
		config.KeyDelFilePath:           dir,
		config.KeyDelFileType:           "txt",
		config.KeyStartDelTime:          now.AddDate(0, 0, -30).Format(config.DateLayout),
		config.KeyEndDelTime:            now.AddDate(0, 0, 1).Format(config.DateLayout),
		config.KeyFileDeleteNameInclude: "*",
		config.KeyRetentionWeekOfDay:    strconv.Itoa(otherWeekday),
		config.KeyRetentionMonthOfDay:   otherMonthDay,
	})
	require.NoError(t, err)
	return cfg
}

func writeFile(t *testing.T, dir, name string, size int) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), make([]byte, size), 0o644))
}

// populate writes five eligible .txt files of 100..500 bytes and five
// ineligible .log files.
func populate(t *testing.T, dir string) {
	t.Helper()
	for i := 1; i <= 5; i++ {
		writeFile(t, dir, fmt.Sprintf("eligible-%d.txt", i), i*100)
		writeFile(t, dir, fmt.Sprintf("kept-%d.log", i), i*100)
	}
}

func newRunner(t *testing.T, opts Options) *Runner {
	t.Helper()
	if opts.Pool == nil {
		p := pool.New(4, 0)
		t.Cleanup(p.Close)
		opts.Pool = p
	}
	r, err := New(opts)
	require.NoError(t, err)
	return r
}

func remaining(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestRun_DeletesOnlyEligibleFiles(t *testing.T) {
	dir := t.TempDir()
	populate(t, dir)
	r := newRunner(t, Options{Config: todayConfig(t, dir)})

	summary, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(5), summary.DeletedCount)
	assert.Equal(t, int64(1500), summary.TotalFreedBytes)
	assert.Equal(t, int64(10), summary.Scanned)
	assert.Equal(t, int64(5), summary.Eligible)
	assert.Zero(t, summary.Failed)
	assert.Equal(t, dir, summary.Directory)
	assert.NotEmpty(t, summary.RunID)

	assert.ElementsMatch(t, []string{
		"kept-1.log", "kept-2.log", "kept-3.log", "kept-4.log", "kept-5.log",
	}, remaining(t, dir))
	assert.Equal(t, StateDone, r.State())
}

func TestRun_SecondRunIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	populate(t, dir)
	r := newRunner(t, Options{Config: todayConfig(t, dir)})

	_, err := r.Run(context.Background())
	require.NoError(t, err)

	summary, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, summary.DeletedCount)
	assert.Zero(t, summary.TotalFreedBytes)
	assert.Equal(t, int64(5), summary.Scanned)
}

func TestRun_EmptyDirectory(t *testing.T) {
	r := newRunner(t, Options{Config: todayConfig(t, t.TempDir())})

	summary, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, summary.DeletedCount)
	assert.Zero(t, summary.Scanned)
}

func TestRun_SkipsSubdirectories(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.txt"), 0o755))
	writeFile(t, filepath.Join(dir, "nested.txt"), "inner.txt", 10)
	r := newRunner(t, Options{Config: todayConfig(t, dir)})

	summary, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, summary.DeletedCount)
	assert.FileExists(t, filepath.Join(dir, "nested.txt", "inner.txt"))
}

func TestRun_ListingFailureIsFatal(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "does-not-exist")
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	r := newRunner(t, Options{Config: todayConfig(t, missing), Metrics: m})

	summary, err := r.Run(context.Background())
	assert.Nil(t, summary)
	assert.ErrorIs(t, err, ErrListDirectory)
	assert.ErrorIs(t, err, os.ErrNotExist)

	count, err := testutil.GatherAndCount(reg, "retain_runs_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

type fakeDeleter struct {
	mu    sync.Mutex
	calls []string
	fail  map[string]bool
}

func (f *fakeDeleter) Delete(path string) types.DeletionOutcome {
	f.mu.Lock()
	f.calls = append(f.calls, path)
	f.mu.Unlock()

	if f.fail[filepath.Base(path)] {
		return types.DeletionOutcome{Path: path, Err: errors.New("denied")}
	}
	return types.DeletionOutcome{Path: path, Succeeded: true, FreedBytes: 10}
}

func TestRun_FailedDeletionsAreCountedNotFatal(t *testing.T) {
	dir := t.TempDir()
	populate(t, dir)
	fake := &fakeDeleter{fail: map[string]bool{"eligible-2.txt": true, "eligible-4.txt": true}}
	r := newRunner(t, Options{Config: todayConfig(t, dir), Deleter: fake})

	summary, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.Len(t, fake.calls, 5)
	assert.Equal(t, int64(3), summary.DeletedCount)
	assert.Equal(t, int64(30), summary.TotalFreedBytes)
	assert.Equal(t, int64(2), summary.Failed)
}

func TestRun_CancelledContextStopsSubmission(t *testing.T) {
	dir := t.TempDir()
	populate(t, dir)
	fake := &fakeDeleter{}
	r := newRunner(t, Options{Config: todayConfig(t, dir), Deleter: fake})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary, err := r.Run(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, summary)
	assert.Zero(t, summary.Eligible)
	assert.Zero(t, summary.DeletedCount)
	assert.Empty(t, fake.calls)
	assert.Len(t, remaining(t, dir), 10)
}

func TestRun_RecordsHistoryAndMetrics(t *testing.T) {
	dir := t.TempDir()
	populate(t, dir)

	store, err := history.OpenInMemory()
	require.NoError(t, err)
	defer store.Close()

	reg := prometheus.NewRegistry()
	r := newRunner(t, Options{
		Config:  todayConfig(t, dir),
		History: store,
		Metrics: metrics.New(reg),
	})

	summary, err := r.Run(context.Background())
	require.NoError(t, err)

	rec, err := store.Get(summary.RunID)
	require.NoError(t, err)
	assert.Equal(t, int64(5), rec.Summary.DeletedCount)
	assert.Len(t, rec.Files, 5)

	expected := `
# HELP retain_files_rejected_total Total number of files kept, by the filter rule that kept them
# TYPE retain_files_rejected_total counter
retain_files_rejected_total{reason="date_range"} 0
retain_files_rejected_total{reason="excluded"} 0
retain_files_rejected_total{reason="extension"} 5
retain_files_rejected_total{reason="month_day"} 0
retain_files_rejected_total{reason="name"} 0
retain_files_rejected_total{reason="not_regular"} 0
retain_files_rejected_total{reason="weekday"} 0
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "retain_files_rejected_total"))
}

// stateDeleter records the runner's state at every call. On its first call
// it removes the file named vanish from the target directory.
type stateDeleter struct {
	runner *Runner
	dir    string
	vanish string

	once   sync.Once
	mu     sync.Mutex
	states []State
}

func (d *stateDeleter) Delete(path string) types.DeletionOutcome {
	d.mu.Lock()
	d.states = append(d.states, d.runner.State())
	d.mu.Unlock()

	d.once.Do(func() {
		_ = os.Remove(filepath.Join(d.dir, d.vanish))
	})
	return types.DeletionOutcome{Path: path, Succeeded: true, FreedBytes: 1}
}

func TestRun_DeletionsStartBeforeFilteringEnds(t *testing.T) {
	dir := t.TempDir()
	for i := 1; i <= 3; i++ {
		writeFile(t, dir, fmt.Sprintf("a-%d.txt", i), 10)
		writeFile(t, dir, fmt.Sprintf("b-%d.log", i), 10)
	}

	// One worker and a one-slot queue: a-3 cannot be queued until the
	// deletion of a-1 returned, so the b-* entries are evaluated after it.
	p := pool.New(1, 1)
	defer p.Close()

	d := &stateDeleter{dir: dir, vanish: "b-1.log"}
	r := newRunner(t, Options{Config: todayConfig(t, dir), Pool: p, Deleter: d})
	d.runner = r

	summary, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(3), summary.DeletedCount)
	assert.Equal(t, int64(5), summary.Scanned, "b-1.log was removed before the runner reached it")
	assert.FileExists(t, filepath.Join(dir, "b-2.log"))

	require.Len(t, d.states, 3)
	assert.Contains(t, []State{StateFiltering, StateSubmitting}, d.states[0])
}

type panickingDeleter struct {
	panicOn string
}

func (d panickingDeleter) Delete(path string) types.DeletionOutcome {
	if filepath.Base(path) == d.panicOn {
		panic("remove " + path)
	}
	return types.DeletionOutcome{Path: path, Succeeded: true, FreedBytes: 10}
}

func TestRun_PanickedDeletionCountsAsFailed(t *testing.T) {
	dir := t.TempDir()
	populate(t, dir)
	r := newRunner(t, Options{
		Config:  todayConfig(t, dir),
		Deleter: panickingDeleter{panicOn: "eligible-3.txt"},
	})

	summary, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(5), summary.Eligible)
	assert.Equal(t, int64(4), summary.DeletedCount)
	assert.Equal(t, int64(1), summary.Failed)
	assert.Equal(t, summary.Eligible, summary.DeletedCount+summary.Failed)
}

func TestRun_UsesInjectedClock(t *testing.T) {
	dir := t.TempDir()
	start := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	ticks := []time.Time{start, start.Add(3 * time.Second)}
	var i int
	now := func() time.Time {
		tick := ticks[i]
		if i < len(ticks)-1 {
			i++
		}
		return tick
	}

	r := newRunner(t, Options{Config: todayConfig(t, dir), Now: now})
	summary, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, start, summary.Started)
	assert.Equal(t, 3*time.Second, summary.Elapsed)
}

func TestNew_RequiresConfigAndPool(t *testing.T) {
	p := pool.New(1, 0)
	defer p.Close()

	_, err := New(Options{Pool: p})
	assert.Error(t, err)

	_, err = New(Options{Config: &config.Config{}})
	assert.Error(t, err)
}

func TestNew_StartsIdle(t *testing.T) {
	r := newRunner(t, Options{Config: todayConfig(t, t.TempDir())})
	assert.Equal(t, StateIdle, r.State())
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "awaiting_completion", StateAwaitingCompletion.String())
	assert.Equal(t, "done", StateDone.String())
	assert.Equal(t, "unknown", State(99).String())
}

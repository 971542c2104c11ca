// Package runner drives one retention run: it lists the target directory,
// filters each entry and hands every eligible file to the worker pool as
// soon as it is found, then aggregates the outcomes into a RunSummary.
package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/jamesainslie/retain/pkg/retain/config"
	"github.com/jamesainslie/retain/pkg/retain/deleter"
	"github.com/jamesainslie/retain/pkg/retain/filter"
	"github.com/jamesainslie/retain/pkg/retain/history"
	"github.com/jamesainslie/retain/pkg/retain/logging"
	"github.com/jamesainslie/retain/pkg/retain/metrics"
	"github.com/jamesainslie/retain/pkg/retain/pool"
	"github.com/jamesainslie/retain/pkg/retain/scanner"
	"github.com/jamesainslie/retain/pkg/retain/types"
)

// ErrListDirectory is returned when the target directory cannot be read.
var ErrListDirectory = errors.New("cannot list target directory")

// Deleter removes one file and reports the outcome.
type Deleter interface {
	Delete(path string) types.DeletionOutcome
}

// Options configures a Runner. Config and Pool are required.
type Options struct {
	Config *config.Config
	Pool   *pool.Pool

	// Filter defaults to filter.New(Config) logging to the "filter" component.
	Filter *filter.Filter

	// Deleter defaults to deleter.New with os.Remove.
	Deleter Deleter

	// History, when set, receives a record of every completed run.
	History *history.Store

	// Metrics, when set, is updated after every run.
	Metrics *metrics.Metrics

	// Now defaults to time.Now.
	Now func() time.Time
}

// Runner executes retention runs for one configuration.
type Runner struct {
	cfg     *config.Config
	pool    *pool.Pool
	filter  *filter.Filter
	deleter Deleter
	history *history.Store
	metrics *metrics.Metrics
	now     func() time.Time
	logger  *logging.Logger

	mu    sync.Mutex // serializes Run
	state atomic.Int32
}

// New creates a Runner.
func New(opts Options) (*Runner, error) {
	if opts.Config == nil {
		return nil, errors.New("runner: config is required")
	}
	if opts.Pool == nil {
		return nil, errors.New("runner: pool is required")
	}
	if opts.Filter == nil {
		opts.Filter = filter.New(opts.Config, filter.WithLogger(logging.Get("filter")))
	}
	if opts.Deleter == nil {
		opts.Deleter = deleter.New(deleter.Options{})
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Runner{
		cfg:     opts.Config,
		pool:    opts.Pool,
		filter:  opts.Filter,
		deleter: opts.Deleter,
		history: opts.History,
		metrics: opts.Metrics,
		now:     opts.Now,
		logger:  logging.Get("runner"),
	}, nil
}

// State returns the current phase of the runner.
func (r *Runner) State() State {
	return State(r.state.Load())
}

func (r *Runner) setState(s State) {
	r.state.Store(int32(s))
}

// Run performs one retention pass over the target directory. Each entry is
// evaluated in listing order and an eligible file is queued for deletion
// before the next entry is looked at.
//
// A directory that cannot be listed aborts the run with an error wrapping
// ErrListDirectory. Individual deletion failures never abort the run; they
// are counted in RunSummary.Failed.
//
// When ctx is cancelled no further files are submitted, but deletions
// already handed to the pool finish and are counted. Run then returns the
// partial summary together with the context's error.
func (r *Runner) Run(ctx context.Context) (*types.RunSummary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	defer r.setState(StateDone)

	started := r.now()
	summary := &types.RunSummary{
		RunID:     uuid.NewString(),
		Directory: r.cfg.TargetDirectory,
		Started:   started,
	}
	log := r.logger.With("run_id", summary.RunID)

	r.setState(StateListing)
	paths, err := scanner.List(r.cfg.TargetDirectory)
	if err != nil {
		log.Error("listing failed", "dir", r.cfg.TargetDirectory, "error", err)
		if r.metrics != nil {
			r.metrics.RecordRunError()
		}
		return nil, fmt.Errorf("%w: %w", ErrListDirectory, err)
	}
	log.Debug("listed directory", "dir", r.cfg.TargetDirectory, "entries", len(paths))

	batch := pool.NewBatch[types.DeletionOutcome](r.pool)
	var submitErr error
	for i, path := range paths {
		r.setState(StateFiltering)
		rec, ok := r.evaluate(log, path, summary)
		if !ok {
			continue
		}

		r.setState(StateSubmitting)
		err := batch.Submit(ctx, func() types.DeletionOutcome {
			return r.deleter.Delete(rec.Path)
		})
		if err != nil {
			submitErr = err
			log.Warn("stopped submitting deletions", "remaining", len(paths)-i, "error", err)
			break
		}
		summary.Eligible++
	}

	r.setState(StateAwaitingCompletion)
	outcomes := batch.Wait()

	for _, o := range outcomes {
		summary.Add(o)
	}
	finished := r.now()
	summary.Elapsed = finished.Sub(started)
	r.setState(StateAggregated)

	log.Info("run complete",
		"deleted", summary.DeletedCount,
		"freed_mb", fmt.Sprintf("%.2f", types.Megabytes(summary.TotalFreedBytes)),
		"failed", summary.Failed,
		"scanned", summary.Scanned,
		"elapsed", summary.Elapsed.Round(time.Millisecond))

	r.record(log, summary, outcomes, finished)

	if submitErr != nil {
		return summary, fmt.Errorf("run interrupted: %w", submitErr)
	}
	return summary, nil
}

// evaluate stats one entry and runs it through the filter. It reports
// whether the entry should be deleted.
func (r *Runner) evaluate(log *logging.Logger, path string, summary *types.RunSummary) (types.FileRecord, bool) {
	rec, err := scanner.Stat(path)
	if err != nil {
		// Entry vanished between listing and evaluation.
		log.Warn("stat failed", "path", path, "error", err)
		return rec, false
	}
	summary.Scanned++

	decision := r.filter.Evaluate(rec)
	if !decision.Eligible {
		if r.metrics != nil {
			r.metrics.RecordRejection(decision.Reason.String())
		}
		return rec, false
	}

	log.Info("selected for deletion",
		"name", rec.Name,
		"created", rec.Created.Format("2006-01-02 15:04:05"),
		"weekday", rec.ISOWeekday(),
		"size_mb", fmt.Sprintf("%.2f", types.Megabytes(rec.Size)),
		"size", rec.HumanSize())
	return rec, true
}

// record stores the run in history and metrics. Failures here are logged
// and never change the run's result.
func (r *Runner) record(log *logging.Logger, summary *types.RunSummary, outcomes []types.DeletionOutcome, finished time.Time) {
	if r.metrics != nil {
		r.metrics.RecordRun(summary, finished)
	}

	if r.history == nil {
		return
	}
	if err := r.history.Put(history.NewRecord(summary, outcomes, finished)); err != nil {
		log.Warn("failed to record run history", "error", err)
		return
	}
	if days := r.cfg.History.RetentionDays; days > 0 {
		removed, err := r.history.Cleanup(time.Duration(days)*24*time.Hour, finished)
		if err != nil {
			log.Warn("failed to prune run history", "error", err)
		} else if removed > 0 {
			log.Debug("pruned run history", "removed", removed)
		}
	}
}

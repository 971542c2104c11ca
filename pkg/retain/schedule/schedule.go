// Package schedule runs a job on a cron schedule. Overlapping runs are
// skipped: a tick that fires while the previous run is still deleting
// files is dropped.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/jamesainslie/retain/pkg/retain/logging"
)

// ErrEmptySchedule is returned when no cron expression is configured.
var ErrEmptySchedule = errors.New("no schedule configured")

// Job is the work run on every tick.
type Job func(ctx context.Context)

// Scheduler triggers a Job according to a standard five-field cron
// expression or a descriptor such as "@daily" or "@every 1h".
type Scheduler struct {
	spec    string
	job     Job
	cron    *cron.Cron
	logger  *logging.Logger
	mu      sync.Mutex
	running bool
	entry   cron.EntryID
}

// New validates spec and returns a stopped Scheduler.
func New(spec string, job Job) (*Scheduler, error) {
	if spec == "" {
		return nil, ErrEmptySchedule
	}
	if _, err := cron.ParseStandard(spec); err != nil {
		return nil, fmt.Errorf("invalid cron schedule %q: %w", spec, err)
	}

	logger := logging.Get("schedule")
	adapter := cronLogger{logger}
	return &Scheduler{
		spec:   spec,
		job:    job,
		logger: logger,
		cron: cron.New(
			cron.WithLogger(adapter),
			cron.WithChain(cron.Recover(adapter), cron.SkipIfStillRunning(adapter)),
		),
	}, nil
}

// Spec returns the cron expression.
func (s *Scheduler) Spec() string {
	return s.spec
}

// Start schedules the job and begins ticking. The scheduler stops on its
// own when ctx is cancelled; ctx is also passed to every job run.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return errors.New("scheduler already running")
	}

	id, err := s.cron.AddFunc(s.spec, func() {
		s.logger.Info("scheduled run starting")
		s.job(ctx)
	})
	if err != nil {
		return fmt.Errorf("failed to schedule job: %w", err)
	}
	s.entry = id

	s.cron.Start()
	s.running = true
	s.logger.Info("scheduler started", "schedule", s.spec, "next", s.nextLocked())

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	return nil
}

// Stop stops the scheduler and waits for a running job to complete.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	done := s.cron.Stop()
	<-done.Done()
	s.cron.Remove(s.entry)
	s.running = false
	s.logger.Info("scheduler stopped")
}

// IsRunning reports whether the scheduler is ticking.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// NextRun returns the next time the job fires, or nil when not running.
func (s *Scheduler) NextRun() *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}
	next := s.nextLocked()
	return &next
}

func (s *Scheduler) nextLocked() time.Time {
	return s.cron.Entry(s.entry).Next
}

// cronLogger routes cron's internal events to the component logger.
type cronLogger struct {
	l *logging.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debug(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Error(msg, append(keysAndValues, "error", err)...)
}

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/jamesainslie/retain/pkg/retain/config"
	"github.com/jamesainslie/retain/pkg/retain/history"
	"github.com/jamesainslie/retain/pkg/retain/logging"
	"github.com/jamesainslie/retain/pkg/retain/metrics"
	"github.com/jamesainslie/retain/pkg/retain/pool"
	"github.com/jamesainslie/retain/pkg/retain/runner"
	"github.com/jamesainslie/retain/pkg/retain/schedule"
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run repeatedly on a cron schedule",
	Long: `Run retention on a cron schedule until interrupted.

The schedule comes from --cron or the schedule key of the configuration
file. The configuration file is re-read before every run, so edits take
effect at the next tick. The worker count is fixed at startup.

Examples:
  retain schedule --cron "0 3 * * *"          # Every day at 03:00
  retain schedule --cron "@every 6h" --now    # Now, then every six hours
  retain schedule --metrics-addr :9090        # Expose /metrics`,
	Args: cobra.NoArgs,
	RunE: runSchedule,
}

var (
	scheduleCron string
	scheduleNow  bool
	metricsAddr  string
	pidFile      string
)

const shutdownTimeout = 5 * time.Second

func init() {
	scheduleCmd.Flags().StringVar(&scheduleCron, "cron", "", "cron expression (overrides the schedule key)")
	scheduleCmd.Flags().BoolVar(&scheduleNow, "now", false, "run once immediately before waiting for the schedule")
	scheduleCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address (e.g. :9090)")
	scheduleCmd.Flags().StringVar(&pidFile, "pid-file", filepath.Join(config.StateDir(), "schedule.pid"), "pid file guarding against a second scheduler")
	rootCmd.AddCommand(scheduleCmd)
}

// scheduledJob runs retention with a freshly loaded configuration while
// sharing the pool, history store, and metrics across runs.
type scheduledJob struct {
	pool    *pool.Pool
	history *history.Store
	metrics *metrics.Metrics
	logger  *logging.Logger
}

func (j *scheduledJob) run(ctx context.Context) {
	cfg, err := loadConfig()
	if err != nil {
		j.logger.Error("failed to load configuration", "path", configPath(), "error", err)
		j.metrics.RecordRunError()
		return
	}

	r, err := runner.New(runner.Options{
		Config:  cfg,
		Pool:    j.pool,
		History: j.history,
		Metrics: j.metrics,
	})
	if err != nil {
		j.logger.Error("failed to create runner", "error", err)
		return
	}

	if _, err := r.Run(ctx); err != nil {
		j.logger.Error("scheduled run failed", "error", err)
	}
}

func runSchedule(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	spec := cfg.Schedule
	if scheduleCron != "" {
		spec = scheduleCron
	}
	if spec == "" {
		return fmt.Errorf("%w: set %s in %s or pass --cron", schedule.ErrEmptySchedule, config.KeySchedule, configPath())
	}

	if err := setupLogging(cfg); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer func() { _ = logging.Close() }()
	logger := logging.Get("main")

	release, err := schedule.AcquirePIDFile(pidFile)
	if err != nil {
		return err
	}
	defer release()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	p := pool.New(cfg.Workers, 0)
	defer p.Close()

	store := openHistory(cfg)
	if store != nil {
		defer func() { _ = store.Close() }()
	}

	job := &scheduledJob{
		pool:    p,
		history: store,
		metrics: metrics.New(reg),
		logger:  logger,
	}

	sched, err := schedule.New(spec, job.run)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	if metricsAddr != "" {
		srv := serveMetrics(metricsAddr, reg, logger)
		defer func() {
			shutdownCtx, done := context.WithTimeout(context.Background(), shutdownTimeout)
			defer done()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	if scheduleNow {
		job.run(ctx)
	}

	if err := sched.Start(ctx); err != nil {
		return err
	}

	<-ctx.Done()
	sched.Stop()
	logger.Info("shutting down")
	return nil
}

// serveMetrics starts an HTTP server exposing reg on /metrics.
func serveMetrics(addr string, reg *prometheus.Registry, logger *logging.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("serving metrics", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "error", err)
		}
	}()
	return srv
}

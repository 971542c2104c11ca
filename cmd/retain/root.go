package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jamesainslie/retain/pkg/retain/config"
	"github.com/jamesainslie/retain/pkg/retain/history"
	"github.com/jamesainslie/retain/pkg/retain/logging"
	"github.com/jamesainslie/retain/pkg/retain/output"
	"github.com/jamesainslie/retain/pkg/retain/pool"
	"github.com/jamesainslie/retain/pkg/retain/runner"
	"github.com/jamesainslie/retain/pkg/retain/types"
)

var (
	cfgFile string
	rootCmd = &cobra.Command{
		Use:   "retain",
		Short: "Delete expired files from a directory, keeping retained days",
		Long: `Retain deletes files directly inside one directory when they match every
rule in the configuration file: name, extension, creation date range, and
neither a retained weekday nor a retained day of the month.

With no subcommand retain performs a single run and prints a summary.
If the configuration file does not exist a commented default is written
and retain exits with status 2.

Examples:
  retain                          # Run once with ./config.txt
  retain --config /etc/retain.txt # Run once with another file
  retain -o json                  # Print the run summary as JSON
  retain schedule                 # Run on the configured cron schedule
  retain history                  # List past runs`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runOnce,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", config.DefaultFileName, "configuration file")
	rootCmd.PersistentFlags().IntP("workers", "w", 0, "override the number of concurrent deletions (0=use config)")
	rootCmd.PersistentFlags().StringP("output", "o", "text", "summary format: text, plain, json, yaml")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "do not log to the console")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "log debug events to the console")

	_ = viper.BindPFlag("workers", rootCmd.PersistentFlags().Lookup("workers"))
	_ = viper.BindPFlag("output", rootCmd.PersistentFlags().Lookup("output"))
	_ = viper.BindPFlag("quiet", rootCmd.PersistentFlags().Lookup("quiet"))
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// loadConfig reads the configuration file and applies flag overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath())
	if err != nil {
		return nil, err
	}
	if w := viper.GetInt("workers"); w > 0 {
		cfg.Workers = w
	}
	return cfg, nil
}

// setupLogging starts file and console logging for cfg.
func setupLogging(cfg *config.Config) error {
	consoleLevel := cfg.Logging.ConsoleLevel
	switch {
	case viper.GetBool("quiet"):
		consoleLevel = ""
	case viper.GetBool("verbose"):
		consoleLevel = "debug"
	}

	return logging.Init(logging.Config{
		Level:        cfg.Logging.Level,
		Path:         cfg.Logging.Path,
		MaxSizeMB:    cfg.Logging.MaxSizeMB,
		MaxBackups:   cfg.Logging.MaxBackups,
		MaxAge:       cfg.Logging.MaxAge,
		Compress:     cfg.Logging.Compress,
		Components:   cfg.Logging.Components,
		ConsoleLevel: consoleLevel,
	})
}

// openHistory opens the history store when enabled. A store that cannot be
// opened disables history for this process rather than failing the run.
func openHistory(cfg *config.Config) *history.Store {
	if !cfg.History.Enabled {
		return nil
	}
	store, err := history.Open(cfg.History.Path)
	if err != nil {
		logging.Get("main").Warn("run history disabled", "path", cfg.History.Path, "error", err)
		return nil
	}
	return store
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// runOnce performs a single retention run.
func runOnce(cmd *cobra.Command, _ []string) error {
	formatter, err := output.Get(viper.GetString("output"))
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if err := setupLogging(cfg); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer func() { _ = logging.Close() }()

	p := pool.New(cfg.Workers, 0)
	defer p.Close()

	store := openHistory(cfg)
	if store != nil {
		defer func() { _ = store.Close() }()
	}

	r, err := runner.New(runner.Options{Config: cfg, Pool: p, History: store})
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	summary, runErr := r.Run(ctx)
	if summary != nil {
		interrupted := errors.Is(runErr, context.Canceled)
		if err := printSummary(cmd, formatter, summary, interrupted); err != nil {
			return err
		}
	}
	return runErr
}

func printSummary(cmd *cobra.Command, f output.Formatter, s *types.RunSummary, interrupted bool) error {
	var buf bytes.Buffer
	if err := f.Format(&buf, &output.Result{Summary: s, Interrupted: interrupted}); err != nil {
		return fmt.Errorf("failed to format summary: %w", err)
	}
	_, err := cmd.OutOrStdout().Write(buf.Bytes())
	return err
}

// printError prints an error message to stderr.
func printError(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
}

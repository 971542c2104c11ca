package main

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jamesainslie/retain/pkg/retain/config"
	"github.com/jamesainslie/retain/pkg/retain/history"
	"github.com/jamesainslie/retain/pkg/retain/output"
	"github.com/jamesainslie/retain/pkg/retain/types"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List past runs",
	Long: `List past retention runs, newest first.

Every run records its summary and the files it tried to delete. Records
older than historyRetentionDays are pruned after each run.`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

var historyShowCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Show the files deleted by a run",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryShow,
}

var historyCleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove old run records",
	Long:  `Remove run records older than the retention period.`,
	Args:  cobra.NoArgs,
	RunE:  runHistoryClean,
}

var (
	historyLimit int
	historyDays  int
)

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "l", 20, "maximum number of runs to show")
	historyCleanCmd.Flags().IntVar(&historyDays, "days", 0, "retention period in days (0=use config)")

	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyCleanCmd)
	rootCmd.AddCommand(historyCmd)
}

// historySettings returns the history settings from the configuration
// file, or the defaults when the file does not exist. It never writes a
// default configuration.
func historySettings() (config.HistoryConfig, error) {
	defaults := config.HistoryConfig{
		Enabled:       true,
		Path:          config.DefaultHistoryPath(),
		RetentionDays: config.DefaultHistoryRetentionDays,
	}

	if _, err := os.Stat(configPath()); os.IsNotExist(err) {
		return defaults, nil
	}

	cfg, err := config.Load(configPath())
	if err != nil {
		return config.HistoryConfig{}, err
	}
	return cfg.History, nil
}

func openHistoryStore() (*history.Store, config.HistoryConfig, error) {
	settings, err := historySettings()
	if err != nil {
		return nil, settings, err
	}
	store, err := history.Open(settings.Path)
	if err != nil {
		return nil, settings, err
	}
	return store, settings, nil
}

func runHistory(cmd *cobra.Command, _ []string) error {
	formatter, err := output.Get(viper.GetString("output"))
	if err != nil {
		return err
	}

	store, _, err := openHistoryStore()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	records, err := store.List(historyLimit)
	if err != nil {
		return fmt.Errorf("failed to list history: %w", err)
	}

	runs := make([]types.RunSummary, 0, len(records))
	for _, r := range records {
		runs = append(runs, r.Summary)
	}

	var buf bytes.Buffer
	if err := formatter.Format(&buf, &output.Result{History: runs}); err != nil {
		return err
	}
	_, err = cmd.OutOrStdout().Write(buf.Bytes())
	return err
}

func runHistoryShow(cmd *cobra.Command, args []string) error {
	store, _, err := openHistoryStore()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	rec, err := store.Get(args[0])
	if err != nil {
		return fmt.Errorf("failed to get run: %w", err)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintln(w, "Run Details")
	fmt.Fprintln(w, strings.Repeat("=", 60))
	fmt.Fprintf(w, "ID:         %s\n", rec.ID)
	fmt.Fprintf(w, "Directory:  %s\n", rec.Summary.Directory)
	fmt.Fprintf(w, "Started:    %s\n", rec.Started.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(w, "Duration:   %s\n", rec.Finished.Sub(rec.Started).Round(time.Millisecond))
	fmt.Fprintf(w, "Deleted:    %d\n", rec.Summary.DeletedCount)
	fmt.Fprintf(w, "Freed:      %s (%.2f MB)\n",
		types.FormatSize(rec.Summary.TotalFreedBytes), types.Megabytes(rec.Summary.TotalFreedBytes))
	fmt.Fprintf(w, "Failed:     %d\n", rec.Summary.Failed)

	if len(rec.Files) == 0 {
		return nil
	}

	fmt.Fprintln(w, "\nFiles:")
	fmt.Fprintln(w, strings.Repeat("-", 60))
	fmt.Fprintf(w, "%-8s  %-12s  %s\n", "STATUS", "SIZE", "PATH")
	fmt.Fprintln(w, strings.Repeat("-", 60))

	// Limit display to 50 files
	limit := min(len(rec.Files), 50)
	for _, f := range rec.Files[:limit] {
		status := "deleted"
		if !f.Succeeded {
			status = "failed"
		}
		fmt.Fprintf(w, "%-8s  %-12s  %s\n", status, types.FormatSize(f.Size), f.Path)
		if f.Error != "" {
			fmt.Fprintf(w, "          %s\n", f.Error)
		}
	}
	if len(rec.Files) > limit {
		fmt.Fprintf(w, "\n... and %d more files\n", len(rec.Files)-limit)
	}
	return nil
}

func runHistoryClean(cmd *cobra.Command, _ []string) error {
	store, settings, err := openHistoryStore()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	days := settings.RetentionDays
	if historyDays > 0 {
		days = historyDays
	}
	if days <= 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "History retention is disabled; nothing removed.")
		return nil
	}

	removed, err := store.Cleanup(time.Duration(days)*24*time.Hour, time.Now())
	if err != nil {
		return fmt.Errorf("failed to clean history: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Removed %d runs older than %d days.\n", removed, days)
	return nil
}

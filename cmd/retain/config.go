package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/jamesainslie/retain/pkg/retain/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long: `Manage the retain configuration file.

The file is read from ./config.txt unless --config is given. Every key can be
overridden by an environment variable with the RETAIN_ prefix and the key in
upper case:
  RETAIN_DELFILEPATH=/var/log/app
  RETAIN_DELFILETYPE=log
  RETAIN_WORKERS=4`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Long:  `Load the configuration file, apply environment overrides, and print the result.`,
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the default configuration file",
	Long:  `Write a commented default configuration file if one does not exist.`,
	Args:  cobra.NoArgs,
	RunE:  runConfigInit,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show the configuration file path",
	Args:  cobra.NoArgs,
	RunE:  runConfigPath,
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configPathCmd)
	rootCmd.AddCommand(configCmd)
}

// configView is the printable form of config.Config.
type configView struct {
	Source            string   `yaml:"source"`
	TargetDirectory   string   `yaml:"delFilePath"`
	DeleteExtension   string   `yaml:"delFileType"`
	StartDate         string   `yaml:"startDelTime"`
	EndDate           string   `yaml:"endDelTime"`
	NameIncludeToken  string   `yaml:"fileDeleteNameInclude"`
	NameExclude       []string `yaml:"fileDeleteNameExclude,omitempty"`
	RetainedWeekdays  []int    `yaml:"retentionWeekOfDay,flow"`
	RetainedMonthDays []string `yaml:"retentionMonthOfDay,flow"`
	Workers           int      `yaml:"workers"`
	Schedule          string   `yaml:"schedule,omitempty"`
	Logging           struct {
		Level        string `yaml:"level"`
		ConsoleLevel string `yaml:"consoleLevel"`
		Path         string `yaml:"path"`
		MaxSizeMB    int    `yaml:"maxSizeMB"`
		MaxBackups   int    `yaml:"maxBackups"`
		MaxAge       int    `yaml:"maxAge"`
	} `yaml:"logging"`
	History struct {
		Enabled       bool   `yaml:"enabled"`
		Path          string `yaml:"path"`
		RetentionDays int    `yaml:"retentionDays"`
	} `yaml:"history"`
}

func newConfigView(cfg *config.Config) configView {
	v := configView{
		Source:            cfg.Source,
		TargetDirectory:   cfg.TargetDirectory,
		DeleteExtension:   cfg.DeleteExtension,
		StartDate:         cfg.StartDate.Format(config.DateLayout),
		EndDate:           cfg.EndDate.Format(config.DateLayout),
		NameIncludeToken:  cfg.NameIncludeToken,
		NameExclude:       cfg.NameExclude,
		RetainedWeekdays:  cfg.RetainedWeekdays,
		RetainedMonthDays: cfg.RetainedMonthDays,
		Workers:           cfg.Workers,
		Schedule:          cfg.Schedule,
	}

	v.Logging.Level = cfg.Logging.Level
	v.Logging.ConsoleLevel = cfg.Logging.ConsoleLevel
	v.Logging.Path = cfg.Logging.Path
	if v.Logging.Path == "" {
		v.Logging.Path = config.DefaultLogPath()
	}
	v.Logging.MaxSizeMB = cfg.Logging.MaxSizeMB
	v.Logging.MaxBackups = cfg.Logging.MaxBackups
	v.Logging.MaxAge = cfg.Logging.MaxAge

	v.History.Enabled = cfg.History.Enabled
	v.History.Path = cfg.History.Path
	v.History.RetentionDays = cfg.History.RetentionDays
	return v
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	enc := yaml.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent(2)
	if err := enc.Encode(newConfigView(cfg)); err != nil {
		return fmt.Errorf("failed to encode configuration: %w", err)
	}
	return enc.Close()
}

func runConfigInit(cmd *cobra.Command, _ []string) error {
	path := configPath()

	if _, err := os.Stat(path); err == nil {
		fmt.Fprintf(cmd.OutOrStdout(), "Config file already exists: %s\n", path)
		return nil
	}

	if err := config.WriteDefault(path); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created config file: %s\n", path)
	return nil
}

func runConfigPath(cmd *cobra.Command, _ []string) error {
	path := configPath()

	status := "missing"
	if _, err := os.Stat(path); err == nil {
		status = "exists"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s (%s)\n", path, status)
	return nil
}

// configPath returns the absolute configuration file path.
func configPath() string {
	path := cfgFile
	if strings.TrimSpace(path) == "" {
		path = config.DefaultFileName
	}
	if expanded, err := config.ExpandPath(path); err == nil {
		path = expanded
	}
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return path
}

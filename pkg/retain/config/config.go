package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/jamesainslie/retain/pkg/retain/logging"
	"github.com/jamesainslie/retain/pkg/retain/types"
	"github.com/spf13/viper"
)

// Validation errors returned by Load and FromValues.
var (
	// ErrDefaultWritten is returned when the configuration file was missing
	// and a default one was created in its place.
	ErrDefaultWritten = errors.New("default configuration written")

	ErrMissingKey      = errors.New("missing required key")
	ErrInvalidDate     = errors.New("invalid date")
	ErrInvalidRange    = errors.New("start date is after end date")
	ErrInvalidWeekday  = errors.New("invalid weekday")
	ErrInvalidMonthDay = errors.New("invalid day of month")
	ErrInvalidWorkers  = errors.New("workers must be at least 1")
	ErrInvalidValue    = errors.New("invalid value")
)

// LoggingConfig configures application logging.
type LoggingConfig struct {
	Level        string
	ConsoleLevel string
	Path         string
	MaxSizeMB    int
	MaxBackups   int
	MaxAge       int
	Compress     bool

	// Components maps a component name to its own log level.
	Components map[string]string
}

// HistoryConfig configures the run history store.
type HistoryConfig struct {
	Enabled       bool
	Path          string
	RetentionDays int
}

// Config is the validated, read-only configuration of one run.
type Config struct {
	// TargetDirectory is the directory whose direct children are evaluated.
	TargetDirectory string

	// DeleteExtension is the extension, without dot, of files to delete.
	DeleteExtension string

	// StartDate and EndDate bound the creation date, both inclusive.
	// They are midnight in the local time zone.
	StartDate time.Time
	EndDate   time.Time

	// NameIncludeToken must appear in the file name. "*" matches any name.
	NameIncludeToken string

	// NameExclude holds wildcard patterns of names that are never deleted.
	NameExclude []string

	// RetainedWeekdays holds ISO weekdays (1-7) that are never deleted.
	RetainedWeekdays []int

	// RetainedMonthDays holds two-digit days of the month that are never deleted.
	RetainedMonthDays []string

	// Workers is the number of concurrent deletions.
	Workers int

	// Schedule is an optional cron expression for the schedule command.
	Schedule string

	Logging LoggingConfig
	History HistoryConfig

	// Source is the file the configuration was read from, if any.
	Source string
}

// Load reads the configuration file at path (DefaultFileName when empty).
// When the file does not exist a default one is written and an error
// wrapping ErrDefaultWritten is returned.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultFileName
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := WriteDefault(path); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s", ErrDefaultWritten, path)
	}

	values, err := ParseKeyValue(string(data))
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	cfg, err := FromValues(values)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	cfg.Source = path
	return cfg, nil
}

// FromValues builds a validated Config from a key/value map.
// Environment variables prefixed with RETAIN_ override map values.
func FromValues(values map[string]string) (*Config, error) {
	v := newViper()

	settings := make(map[string]interface{}, len(values))
	for k, val := range values {
		settings[k] = val
	}
	if err := v.MergeConfigMap(settings); err != nil {
		return nil, fmt.Errorf("failed to merge config values: %w", err)
	}

	var missing []string
	for _, key := range RequiredKeys {
		if strings.TrimSpace(v.GetString(key)) == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, fmt.Errorf("%w: %s", ErrMissingKey, strings.Join(missing, ", "))
	}

	return build(v)
}

// newViper returns a viper instance with defaults and env binding set up.
func newViper() *viper.Viper {
	v := viper.New()

	v.SetEnvPrefix("RETAIN")
	v.AutomaticEnv()

	v.SetDefault(KeyFileDeleteNameExclude, "")
	v.SetDefault(KeyWorkers, DefaultWorkers)
	v.SetDefault(KeySchedule, "")
	v.SetDefault(KeyLogLevel, DefaultLogLevel)
	v.SetDefault(KeyLogConsoleLevel, DefaultLogConsoleLevel)
	v.SetDefault(KeyLogPath, "")
	v.SetDefault(KeyLogMaxSize, DefaultLogMaxSize)
	v.SetDefault(KeyLogMaxBackups, DefaultLogMaxBackups)
	v.SetDefault(KeyLogMaxAge, DefaultLogMaxAge)
	v.SetDefault(KeyLogCompress, false)
	v.SetDefault(KeyLogComponents, "")
	v.SetDefault(KeyHistoryEnabled, true)
	v.SetDefault(KeyHistoryPath, "")
	v.SetDefault(KeyHistoryRetentionDays, DefaultHistoryRetentionDays)

	return v
}

// build converts the raw settings into a typed Config.
func build(v *viper.Viper) (*Config, error) {
	dir, err := ExpandPath(strings.TrimSpace(v.GetString(KeyDelFilePath)))
	if err != nil {
		return nil, err
	}

	start, err := parseDate(KeyStartDelTime, v.GetString(KeyStartDelTime))
	if err != nil {
		return nil, err
	}
	end, err := parseDate(KeyEndDelTime, v.GetString(KeyEndDelTime))
	if err != nil {
		return nil, err
	}
	if start.After(end) {
		return nil, fmt.Errorf("%w: %s > %s", ErrInvalidRange, start.Format(DateLayout), end.Format(DateLayout))
	}

	weekdays, err := parseWeekdays(v.GetString(KeyRetentionWeekOfDay))
	if err != nil {
		return nil, err
	}

	monthDays, err := parseMonthDays(v.GetString(KeyRetentionMonthOfDay))
	if err != nil {
		return nil, err
	}

	workers, err := parseInt(KeyWorkers, v.GetString(KeyWorkers))
	if err != nil {
		return nil, err
	}
	if workers < 1 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidWorkers, workers)
	}

	logCfg, err := buildLogging(v)
	if err != nil {
		return nil, err
	}

	history, err := buildHistory(v)
	if err != nil {
		return nil, err
	}

	return &Config{
		TargetDirectory:   dir,
		DeleteExtension:   strings.TrimPrefix(strings.TrimSpace(v.GetString(KeyDelFileType)), "."),
		StartDate:         start,
		EndDate:           end,
		NameIncludeToken:  strings.TrimSpace(v.GetString(KeyFileDeleteNameInclude)),
		NameExclude:       ParseList(v.GetString(KeyFileDeleteNameExclude)),
		RetainedWeekdays:  weekdays,
		RetainedMonthDays: monthDays,
		Workers:           workers,
		Schedule:          strings.TrimSpace(v.GetString(KeySchedule)),
		Logging:           logCfg,
		History:           history,
	}, nil
}

func buildLogging(v *viper.Viper) (LoggingConfig, error) {
	maxSize, err := types.ParseSize(v.GetString(KeyLogMaxSize))
	if err != nil {
		return LoggingConfig{}, fmt.Errorf("%w: %s: %w", ErrInvalidValue, KeyLogMaxSize, err)
	}
	maxSizeMB := int(maxSize / types.MiB)
	if maxSizeMB < 1 {
		maxSizeMB = 1
	}

	backups, err := parseInt(KeyLogMaxBackups, v.GetString(KeyLogMaxBackups))
	if err != nil {
		return LoggingConfig{}, err
	}
	age, err := parseInt(KeyLogMaxAge, v.GetString(KeyLogMaxAge))
	if err != nil {
		return LoggingConfig{}, err
	}

	compress, err := strconv.ParseBool(strings.TrimSpace(v.GetString(KeyLogCompress)))
	if err != nil {
		return LoggingConfig{}, fmt.Errorf("%w: %s: %q", ErrInvalidValue, KeyLogCompress, v.GetString(KeyLogCompress))
	}

	components, err := parseComponents(v.GetString(KeyLogComponents))
	if err != nil {
		return LoggingConfig{}, err
	}

	path, err := ExpandPath(strings.TrimSpace(v.GetString(KeyLogPath)))
	if err != nil {
		return LoggingConfig{}, err
	}

	return LoggingConfig{
		Level:        strings.TrimSpace(v.GetString(KeyLogLevel)),
		ConsoleLevel: strings.TrimSpace(v.GetString(KeyLogConsoleLevel)),
		Path:         path,
		MaxSizeMB:    maxSizeMB,
		MaxBackups:   backups,
		MaxAge:       age,
		Compress:     compress,
		Components:   components,
	}, nil
}

// parseComponents parses "component:level" pairs such as
// "runner:debug,pool:warn".
func parseComponents(s string) (map[string]string, error) {
	pairs := ParseList(s)
	if len(pairs) == 0 {
		return nil, nil
	}

	components := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		name, level, ok := strings.Cut(pair, ":")
		name = strings.TrimSpace(name)
		level = strings.TrimSpace(level)
		if !ok || name == "" {
			return nil, fmt.Errorf("%w: %s: %q (want component:level)", ErrInvalidValue, KeyLogComponents, pair)
		}
		if _, err := logging.ParseLevel(level); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrInvalidValue, KeyLogComponents, err)
		}
		components[name] = level
	}
	return components, nil
}

func buildHistory(v *viper.Viper) (HistoryConfig, error) {
	enabled, err := strconv.ParseBool(strings.TrimSpace(v.GetString(KeyHistoryEnabled)))
	if err != nil {
		return HistoryConfig{}, fmt.Errorf("%w: %s: %q", ErrInvalidValue, KeyHistoryEnabled, v.GetString(KeyHistoryEnabled))
	}
	days, err := parseInt(KeyHistoryRetentionDays, v.GetString(KeyHistoryRetentionDays))
	if err != nil {
		return HistoryConfig{}, err
	}

	path, err := ExpandPath(strings.TrimSpace(v.GetString(KeyHistoryPath)))
	if err != nil {
		return HistoryConfig{}, err
	}
	if path == "" {
		path = DefaultHistoryPath()
	}

	return HistoryConfig{
		Enabled:       enabled,
		Path:          path,
		RetentionDays: days,
	}, nil
}

// parseDate parses a YYYY-MM-DD value as local midnight.
func parseDate(key, s string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, strings.TrimSpace(s), time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s=%q (want YYYY-MM-DD)", ErrInvalidDate, key, s)
	}
	return t, nil
}

// parseWeekdays parses a comma-separated list of ISO weekdays.
func parseWeekdays(s string) ([]int, error) {
	tokens := ParseList(s)
	if len(tokens) == 0 {
		return nil, fmt.Errorf("%w: %s is empty", ErrInvalidWeekday, KeyRetentionWeekOfDay)
	}

	days := make([]int, 0, len(tokens))
	for _, tok := range tokens {
		d, err := strconv.Atoi(tok)
		if err != nil || d < 1 || d > 7 {
			return nil, fmt.Errorf("%w: %q (want 1-7)", ErrInvalidWeekday, tok)
		}
		days = append(days, d)
	}
	return days, nil
}

// parseMonthDays parses a comma-separated list of days of the month and
// normalizes each to two digits ("1" becomes "01").
func parseMonthDays(s string) ([]string, error) {
	tokens := ParseList(s)
	if len(tokens) == 0 {
		return nil, fmt.Errorf("%w: %s is empty", ErrInvalidMonthDay, KeyRetentionMonthOfDay)
	}

	days := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		d, err := strconv.Atoi(tok)
		if err != nil || len(tok) > 2 || d < 1 || d > 31 {
			return nil, fmt.Errorf("%w: %q (want 01-31)", ErrInvalidMonthDay, tok)
		}
		days = append(days, fmt.Sprintf("%02d", d))
	}
	return days, nil
}

func parseInt(key, s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q", ErrInvalidValue, key, s)
	}
	return n, nil
}

// ParseList splits a comma-separated string and trims whitespace.
// Empty items are dropped.
func ParseList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}

// WriteDefault writes the default configuration file to path.
// Returns nil without touching the file if it already exists.
func WriteDefault(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return nil
		}
		return fmt.Errorf("failed to create default config: %w", err)
	}

	if _, err := f.WriteString(defaultFileContent); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write default config: %w", err)
	}
	return f.Close()
}

// ExpandPath expands ~ in a path to the user's home directory.
func ExpandPath(path string) (string, error) {
	if !strings.HasPrefix(path, "~") {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	return filepath.Join(homeDir, path[1:]), nil
}

// DataDir returns $XDG_DATA_HOME/retain/ for the history database.
func DataDir() string {
	return filepath.Join(xdg.DataHome, "retain")
}

// StateDir returns $XDG_STATE_HOME/retain/ for log files.
func StateDir() string {
	return filepath.Join(xdg.StateHome, "retain")
}

// DefaultHistoryPath returns the default history database directory.
func DefaultHistoryPath() string {
	return filepath.Join(DataDir(), "history")
}

// DefaultLogPath returns the default log file path.
func DefaultLogPath() string {
	return filepath.Join(StateDir(), "retain.log")
}

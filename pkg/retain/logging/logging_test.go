package logging_test

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jamesainslie/retain/pkg/retain/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// These tests share the package's global state and must not run in parallel.

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input   string
		want    logging.Level
		wantErr bool
	}{
		{"debug", logging.LevelDebug, false},
		{"INFO", logging.LevelInfo, false},
		{"warn", logging.LevelWarn, false},
		{"warning", logging.LevelWarn, false},
		{" error ", logging.LevelError, false},
		{"verbose", logging.LevelInfo, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := logging.ParseLevel(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, logging.ErrInvalidLevel)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLevel_String(t *testing.T) {
	assert.Equal(t, "debug", logging.LevelDebug.String())
	assert.Equal(t, "error", logging.LevelError.String())
	assert.Equal(t, "unknown", logging.Level(42).String())
}

func TestInit_InvalidLevels(t *testing.T) {
	dir := t.TempDir()

	err := logging.Init(logging.Config{Level: "loud", Path: filepath.Join(dir, "a.log")})
	assert.ErrorIs(t, err, logging.ErrInvalidLevel)

	err = logging.Init(logging.Config{
		Level:      "info",
		Path:       filepath.Join(dir, "b.log"),
		Components: map[string]string{"runner": "noisy"},
	})
	assert.ErrorIs(t, err, logging.ErrInvalidLevel)

	err = logging.Init(logging.Config{Level: "info", Path: filepath.Join(dir, "c.log"), ConsoleLevel: "nope"})
	assert.ErrorIs(t, err, logging.ErrInvalidLevel)

	require.NoError(t, logging.Close())
}

func TestInit_WritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "retain.log")

	// Obtained before Init: must pick up the configuration afterwards.
	early := logging.Get("early")

	require.NoError(t, logging.Init(logging.Config{Level: "info", Path: path}))

	early.Info("before init logger", "key", "value")
	logging.Get("runner").Warn("file skipped", "name", "a.txt")
	logging.Get("runner").Debug("hidden at info level")

	require.NoError(t, logging.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	content := string(data)

	assert.Contains(t, content, "before init logger")
	assert.Contains(t, content, "key=value")
	assert.Contains(t, content, "file skipped")
	assert.Contains(t, content, "runner")
	assert.NotContains(t, content, "hidden at info level")
}

func TestInit_ComponentLevelOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "retain.log")
	require.NoError(t, logging.Init(logging.Config{
		Level:      "warn",
		Path:       path,
		Components: map[string]string{"filter": "debug"},
	}))

	logging.Get("filter").Debug("filter debug visible")
	logging.Get("deleter").Info("deleter info hidden")

	require.NoError(t, logging.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "filter debug visible")
	assert.NotContains(t, string(data), "deleter info hidden")
}

func TestConsoleOutput(t *testing.T) {
	var console bytes.Buffer
	logging.SetConsoleWriter(&console)
	defer logging.SetConsoleWriter(os.Stderr)

	path := filepath.Join(t.TempDir(), "retain.log")
	require.NoError(t, logging.Init(logging.Config{Level: "debug", Path: path, ConsoleLevel: "warn"}))

	logger := logging.Get("console-test")
	logger.Info("only in file")
	logger.Error("in both", "err", "boom")

	require.NoError(t, logging.Close())

	out := console.String()
	assert.Contains(t, out, "in both")
	assert.False(t, strings.Contains(out, "only in file"))
}

func TestWith(t *testing.T) {
	path := filepath.Join(t.TempDir(), "retain.log")
	require.NoError(t, logging.Init(logging.Config{Level: "info", Path: path}))

	logger := logging.Get("with-test").With("run", "abc123")
	assert.Equal(t, "with-test", logger.Component())
	logger.Info("tagged")

	require.NoError(t, logging.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "run=abc123")
}

func TestClose_Idempotent(t *testing.T) {
	require.NoError(t, logging.Close())
	require.NoError(t, logging.Close())
}

func TestDefaultConfig(t *testing.T) {
	cfg := logging.DefaultConfig()
	assert.Equal(t, "info", cfg.Level)
	assert.Equal(t, logging.DefaultLogPath(), cfg.Path)
	assert.True(t, strings.HasSuffix(cfg.Path, filepath.Join("retain", "retain.log")))
}

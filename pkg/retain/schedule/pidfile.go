package schedule

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/jamesainslie/retain/pkg/retain/logging"
)

// ErrAlreadyRunning is returned when another scheduler holds the PID file.
var ErrAlreadyRunning = errors.New("scheduler already running")

// AcquirePIDFile records the current process in path so that a second
// scheduler for the same configuration refuses to start. A PID file left
// behind by a process that no longer exists is replaced. The returned
// function removes the file.
func AcquirePIDFile(path string) (release func(), err error) {
	if pid, err := ReadPIDFile(path); err == nil {
		if pid != os.Getpid() && IsProcessRunning(pid) {
			return nil, fmt.Errorf("%w (pid %d, %s)", ErrAlreadyRunning, pid, path)
		}
		logging.Get("schedule").Warn("removing stale pid file", "path", path, "stale_pid", pid)
		_ = os.Remove(path)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create pid directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644); err != nil {
		return nil, fmt.Errorf("failed to write pid file: %w", err)
	}

	return func() { _ = os.Remove(path) }, nil
}

// ReadPIDFile returns the process ID stored in path.
func ReadPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

// IsProcessRunning reports whether a process with the given PID exists.
func IsProcessRunning(pid int) bool {
	if pid <= 0 {
		return false
	}
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = process.Signal(syscall.Signal(0))
	return err == nil || errors.Is(err, syscall.EPERM)
}

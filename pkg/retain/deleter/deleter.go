// Package deleter removes single files and reports what was freed.
package deleter

import (
	"fmt"
	"os"

	"github.com/jamesainslie/retain/pkg/retain/logging"
	"github.com/jamesainslie/retain/pkg/retain/types"
)

// Remover abstracts the filesystem call that removes a file.
type Remover interface {
	Remove(path string) error
}

// RemoverFunc adapts a function to the Remover interface.
type RemoverFunc func(path string) error

// Remove calls f(path).
func (f RemoverFunc) Remove(path string) error {
	return f(path)
}

// OSRemover removes files with os.Remove.
var OSRemover Remover = RemoverFunc(os.Remove)

// Logger is the subset of logging.Logger used for failures.
type Logger interface {
	Error(msg string, args ...interface{})
}

// Options configures a Deleter.
type Options struct {
	// Remover performs the removal. Defaults to OSRemover.
	Remover Remover

	// Logger receives one error event per failed deletion.
	// Defaults to the "deleter" component logger.
	Logger Logger
}

// Deleter removes files one at a time. It is safe for concurrent use.
type Deleter struct {
	remover Remover
	logger  Logger
}

// New creates a Deleter.
func New(opts Options) *Deleter {
	if opts.Remover == nil {
		opts.Remover = OSRemover
	}
	if opts.Logger == nil {
		opts.Logger = logging.Get("deleter")
	}
	return &Deleter{remover: opts.Remover, logger: opts.Logger}
}

// Delete records the size of path and removes it. Failures are logged and
// reported as an unsuccessful outcome with zero freed bytes; Delete never
// panics or returns an error to its caller.
func (d *Deleter) Delete(path string) types.DeletionOutcome {
	info, err := os.Lstat(path)
	if err != nil {
		return d.fail(path, fmt.Errorf("stat %q: %w", path, err))
	}
	size := info.Size()

	if err := d.remover.Remove(path); err != nil {
		return d.fail(path, fmt.Errorf("remove %q: %w", path, err))
	}

	return types.DeletionOutcome{
		Path:       path,
		Succeeded:  true,
		FreedBytes: size,
	}
}

func (d *Deleter) fail(path string, err error) types.DeletionOutcome {
	d.logger.Error("delete failed", "path", path, "error", err)
	return types.DeletionOutcome{Path: path, Err: err}
}

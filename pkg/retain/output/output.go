// Package output renders run summaries for the terminal and for scripts
// (text, plain, json, yaml).
//
// Formatters are looked up by name from a registry:
//
//	formatter, err := output.Get("json")
//	if err != nil {
//	    return err
//	}
//	var buf bytes.Buffer
//	if err := formatter.Format(&buf, &output.Result{Summary: summary}); err != nil {
//	    return err
//	}
package output

import (
	"bytes"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jamesainslie/retain/pkg/retain/types"
)

// Result is what a formatter renders: either the summary of the run that
// just finished, a list of past runs, or both.
type Result struct {
	// Summary is the run that just finished, if any.
	Summary *types.RunSummary

	// History holds past runs, newest first.
	History []types.RunSummary

	// Warnings are shown after the summary.
	Warnings []string

	// Interrupted is set when the run stopped submitting deletions early.
	Interrupted bool
}

// Formatter renders a Result.
type Formatter interface {
	Format(w *bytes.Buffer, r *Result) error
}

// FormatterFactory creates a Formatter.
type FormatterFactory func() Formatter

// Registry manages formatter registration and lookup.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]FormatterFactory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]FormatterFactory)}
}

// Register adds a formatter factory, replacing any with the same name.
func (r *Registry) Register(name string, factory FormatterFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
}

// Get returns a new formatter by name.
func (r *Registry) Get(name string) (Formatter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	factory, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("unknown output format %q (available: %v)", name, r.availableLocked())
	}
	return factory(), nil
}

// Available returns the sorted names of all registered formatters.
func (r *Registry) Available() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.availableLocked()
}

func (r *Registry) availableLocked() []string {
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultRegistry holds the built-in formatters.
var DefaultRegistry = NewRegistry()

// Register adds a formatter factory to the default registry.
func Register(name string, factory FormatterFactory) {
	DefaultRegistry.Register(name, factory)
}

// Get returns a formatter from the default registry.
func Get(name string) (Formatter, error) {
	return DefaultRegistry.Get(name)
}

// Available lists the formatters in the default registry.
func Available() []string {
	return DefaultRegistry.Available()
}

// runDoc is the machine-readable shape of one run, shared by the json
// and yaml formatters.
type runDoc struct {
	ID         string    `json:"id" yaml:"id"`
	Directory  string    `json:"directory" yaml:"directory"`
	Started    time.Time `json:"started" yaml:"started"`
	Elapsed    string    `json:"elapsed" yaml:"elapsed"`
	Deleted    int64     `json:"deleted_count" yaml:"deleted_count"`
	FreedBytes int64     `json:"total_freed_bytes" yaml:"total_freed_bytes"`
	FreedHuman string    `json:"total_freed_human" yaml:"total_freed_human"`
	FreedMB    float64   `json:"total_freed_mb" yaml:"total_freed_mb"`
	Scanned    int64     `json:"scanned" yaml:"scanned"`
	Eligible   int64     `json:"eligible" yaml:"eligible"`
	Failed     int64     `json:"failed" yaml:"failed"`
}

type document struct {
	Run         *runDoc  `json:"run,omitempty" yaml:"run,omitempty"`
	Runs        []runDoc `json:"runs,omitempty" yaml:"runs,omitempty"`
	Warnings    []string `json:"warnings,omitempty" yaml:"warnings,omitempty"`
	Interrupted bool     `json:"interrupted" yaml:"interrupted"`
}

func newRunDoc(s *types.RunSummary) runDoc {
	return runDoc{
		ID:         s.RunID,
		Directory:  s.Directory,
		Started:    s.Started,
		Elapsed:    s.Elapsed.Round(time.Millisecond).String(),
		Deleted:    s.DeletedCount,
		FreedBytes: s.TotalFreedBytes,
		FreedHuman: types.FormatSize(s.TotalFreedBytes),
		FreedMB:    types.Megabytes(s.TotalFreedBytes),
		Scanned:    s.Scanned,
		Eligible:   s.Eligible,
		Failed:     s.Failed,
	}
}

func newDocument(r *Result) document {
	doc := document{Warnings: r.Warnings, Interrupted: r.Interrupted}
	if r.Summary != nil {
		run := newRunDoc(r.Summary)
		doc.Run = &run
	}
	for i := range r.History {
		doc.Runs = append(doc.Runs, newRunDoc(&r.History[i]))
	}
	return doc
}

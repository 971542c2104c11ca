// Package history persists a record of every retention run in a badger
// key/value store so past runs can be listed and inspected.
package history

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jamesainslie/retain/pkg/retain/types"
)

// keyPrefix namespaces run records inside the store.
const keyPrefix = "run\x00"

// File is one deletion attempt within a run.
type File struct {
	Path      string `json:"path" yaml:"path"`
	Size      int64  `json:"size" yaml:"size"`
	Succeeded bool   `json:"succeeded" yaml:"succeeded"`
	Error     string `json:"error,omitempty" yaml:"error,omitempty"`
}

// Record describes a finished run.
type Record struct {
	ID       string           `json:"id" yaml:"id"`
	Started  time.Time        `json:"started" yaml:"started"`
	Finished time.Time        `json:"finished" yaml:"finished"`
	Summary  types.RunSummary `json:"summary" yaml:"summary"`
	Files    []File           `json:"files" yaml:"files"`
}

// NewRecord builds a record from a summary and the outcomes that produced it.
func NewRecord(s *types.RunSummary, outcomes []types.DeletionOutcome, finished time.Time) *Record {
	files := make([]File, 0, len(outcomes))
	for _, o := range outcomes {
		f := File{Path: o.Path, Size: o.FreedBytes, Succeeded: o.Succeeded}
		if o.Err != nil {
			f.Error = o.Err.Error()
		}
		files = append(files, f)
	}

	return &Record{
		ID:       s.RunID,
		Started:  s.Started,
		Finished: finished,
		Summary:  *s,
		Files:    files,
	}
}

// Encode serializes the record to JSON.
func (r *Record) Encode() ([]byte, error) {
	return json.Marshal(r)
}

// Decode deserializes JSON into the record.
func (r *Record) Decode(data []byte) error {
	return json.Unmarshal(data, r)
}

// makeKey orders records by start time: run\x00<unix nanos, zero padded>\x00<id>
func makeKey(started time.Time, id string) []byte {
	return []byte(fmt.Sprintf("%s%020d\x00%s", keyPrefix, started.UnixNano(), id))
}

// parseKey extracts the start time and run ID from a key.
func parseKey(key []byte) (time.Time, string, bool) {
	rest, ok := strings.CutPrefix(string(key), keyPrefix)
	if !ok {
		return time.Time{}, "", false
	}
	ts, id, ok := strings.Cut(rest, "\x00")
	if !ok {
		return time.Time{}, "", false
	}
	var nanos int64
	if _, err := fmt.Sscanf(ts, "%d", &nanos); err != nil {
		return time.Time{}, "", false
	}
	return time.Unix(0, nanos), id, true
}

// Package types provides the core data types shared by the retain packages:
// per-file records, deletion outcomes and run summaries, along with helpers
// for parsing and formatting byte sizes.
package types

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// Size constants for binary (IEC) units.
const (
	KiB int64 = 1024
	MiB int64 = 1024 * KiB
	GiB int64 = 1024 * MiB
	TiB int64 = 1024 * GiB
)

// FileRecord describes one directory entry at evaluation time.
// It is derived from lstat and never cached between evaluations.
type FileRecord struct {
	// Path is the full path to the entry.
	Path string `json:"path" yaml:"path"`

	// Name is the base name of the entry.
	Name string `json:"name" yaml:"name"`

	// Ext is the extension without the leading dot ("txt", not ".txt").
	Ext string `json:"ext" yaml:"ext"`

	// Size is the size in bytes.
	Size int64 `json:"size" yaml:"size"`

	// Created is the creation time as reported by the host filesystem.
	Created time.Time `json:"created" yaml:"created"`

	// Mode is the entry's mode bits.
	Mode os.FileMode `json:"mode" yaml:"mode"`
}

// IsRegular reports whether the record describes a regular file.
func (f *FileRecord) IsRegular() bool {
	return f.Mode.IsRegular()
}

// ISOWeekday returns the creation weekday, Monday=1 through Sunday=7.
func (f *FileRecord) ISOWeekday() int {
	return ISOWeekday(f.Created)
}

// HumanSize returns the size formatted with binary units.
func (f *FileRecord) HumanSize() string {
	return FormatSize(f.Size)
}

// DeletionOutcome is the result of one deletion attempt.
type DeletionOutcome struct {
	// Path is the file that was targeted.
	Path string `json:"path" yaml:"path"`

	// Succeeded is true when the file was removed.
	Succeeded bool `json:"succeeded" yaml:"succeeded"`

	// FreedBytes is the size of the removed file; zero on failure.
	FreedBytes int64 `json:"freed_bytes" yaml:"freed_bytes"`

	// Err holds the failure, if any. It is informational only.
	Err error `json:"-" yaml:"-"`
}

// RunSummary is the externally visible result of one run.
type RunSummary struct {
	// RunID uniquely identifies the run.
	RunID string `json:"run_id" yaml:"run_id"`

	// Directory is the directory that was processed.
	Directory string `json:"directory" yaml:"directory"`

	// DeletedCount is the number of successful deletions.
	DeletedCount int64 `json:"deleted_count" yaml:"deleted_count"`

	// TotalFreedBytes is the sum of bytes freed by successful deletions.
	TotalFreedBytes int64 `json:"total_freed_bytes" yaml:"total_freed_bytes"`

	// Scanned is the number of directory entries evaluated.
	Scanned int64 `json:"scanned" yaml:"scanned"`

	// Eligible is the number of entries submitted for deletion.
	Eligible int64 `json:"eligible" yaml:"eligible"`

	// Failed is the number of deletions that did not succeed.
	Failed int64 `json:"failed" yaml:"failed"`

	// Started is when the run began.
	Started time.Time `json:"started" yaml:"started"`

	// Elapsed is the wall time of the run.
	Elapsed time.Duration `json:"elapsed" yaml:"elapsed"`
}

// Add folds one outcome into the summary. Only successful outcomes
// contribute to DeletedCount and TotalFreedBytes.
func (s *RunSummary) Add(o DeletionOutcome) {
	if !o.Succeeded {
		s.Failed++
		return
	}
	s.DeletedCount++
	s.TotalFreedBytes += o.FreedBytes
}

// ISOWeekday converts t's weekday to ISO numbering (Monday=1 .. Sunday=7).
func ISOWeekday(t time.Time) int {
	wd := int(t.Weekday())
	if wd == 0 {
		return 7
	}
	return wd
}

// sizePattern matches size strings like "100M", "2G", "500K", "1.5GB", etc.
var sizePattern = regexp.MustCompile(`(?i)^\s*([0-9]+(?:\.[0-9]+)?)\s*([KMGT]?(?:i?B)?)\s*$`)

// ErrInvalidSize indicates that the size string could not be parsed.
var ErrInvalidSize = errors.New("invalid size format")

// ErrNegativeSize indicates that a negative size value was provided.
var ErrNegativeSize = errors.New("size cannot be negative")

// ParseSize parses a human-readable size string and returns the size in bytes.
// It supports the following formats:
//   - Plain bytes: "1024", "0"
//   - Kilobytes: "100K", "100KB", "100KiB"
//   - Megabytes: "50M", "50MB", "50MiB"
//   - Gigabytes: "2G", "2GB", "2GiB"
//   - Terabytes: "1T", "1TB", "1TiB"
//
// Units are binary; suffixes are case-insensitive.
func ParseSize(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("%w: empty string", ErrInvalidSize)
	}

	if strings.HasPrefix(s, "-") {
		return 0, ErrNegativeSize
	}

	matches := sizePattern.FindStringSubmatch(s)
	if matches == nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidSize, s)
	}

	value, err := strconv.ParseFloat(matches[1], 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidSize, s)
	}

	suffix := strings.ToUpper(matches[2])
	suffix = strings.TrimSuffix(suffix, "IB")
	suffix = strings.TrimSuffix(suffix, "B")

	var multiplier int64
	switch suffix {
	case "":
		multiplier = 1
	case "K":
		multiplier = KiB
	case "M":
		multiplier = MiB
	case "G":
		multiplier = GiB
	case "T":
		multiplier = TiB
	default:
		return 0, fmt.Errorf("%w: unknown suffix %q", ErrInvalidSize, suffix)
	}

	return int64(value * float64(multiplier)), nil
}

// FormatSize converts a size in bytes to a human-readable string
// using binary units, e.g. FormatSize(1536*1024) returns "1.5 MiB".
func FormatSize(bytes int64) string {
	if bytes < 0 {
		bytes = 0
	}
	return humanize.IBytes(uint64(bytes))
}

// Megabytes returns bytes expressed in MiB, the unit used in run logs.
func Megabytes(bytes int64) float64 {
	return float64(bytes) / float64(MiB)
}

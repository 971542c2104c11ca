package types

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseSize(t *testing.T) {
	tests := []struct {
		input   string
		want    int64
		wantErr error
	}{
		{"0", 0, nil},
		{"1024", 1024, nil},
		{"1K", KiB, nil},
		{"10MB", 10 * MiB, nil},
		{"10MiB", 10 * MiB, nil},
		{"1.5G", GiB + GiB/2, nil},
		{" 2t ", 2 * TiB, nil},
		{"", 0, ErrInvalidSize},
		{"abc", 0, ErrInvalidSize},
		{"-5M", 0, ErrNegativeSize},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseSize(tt.input)
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr), "ParseSize(%q) error = %v, want %v", tt.input, err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormatSize(t *testing.T) {
	assert.Equal(t, "0 B", FormatSize(0))
	assert.Equal(t, "1.0 KiB", FormatSize(1024))
	assert.Equal(t, "1.5 MiB", FormatSize(1536*1024))
	assert.Equal(t, "0 B", FormatSize(-10))
}

func TestISOWeekday(t *testing.T) {
	// 2023-01-15 is a Sunday, 2023-01-16 a Monday.
	sunday := time.Date(2023, 1, 15, 12, 0, 0, 0, time.Local)
	assert.Equal(t, 7, ISOWeekday(sunday))
	assert.Equal(t, 1, ISOWeekday(sunday.AddDate(0, 0, 1)))
	assert.Equal(t, 6, ISOWeekday(sunday.AddDate(0, 0, -1)))
}

func TestRunSummary_Add(t *testing.T) {
	var s RunSummary
	s.Add(DeletionOutcome{Path: "a", Succeeded: true, FreedBytes: 100})
	s.Add(DeletionOutcome{Path: "b", Succeeded: false, FreedBytes: 0})
	s.Add(DeletionOutcome{Path: "c", Succeeded: true, FreedBytes: 50})

	assert.Equal(t, int64(2), s.DeletedCount)
	assert.Equal(t, int64(150), s.TotalFreedBytes)
	assert.Equal(t, int64(1), s.Failed)
}

func TestMegabytes(t *testing.T) {
	assert.InDelta(t, 1.5, Megabytes(MiB+MiB/2), 1e-9)
}

func TestFileRecord_HumanSize(t *testing.T) {
	rec := FileRecord{Size: 3 * MiB}
	assert.Equal(t, "3.0 MiB", rec.HumanSize())
}

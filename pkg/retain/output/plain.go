package output

import (
	"bytes"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/jamesainslie/retain/pkg/retain/types"
)

// PlainFormatter renders tab-aligned columns without styling, one row
// per run, for scripting.
type PlainFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *PlainFormatter) Format(w *bytes.Buffer, r *Result) error {
	tw := tabwriter.NewWriter(w, 0, 0, 1, ' ', 0)

	if _, err := fmt.Fprintln(tw, "ID\tSTARTED\tDELETED\tFREED_BYTES\tFAILED\tDIRECTORY"); err != nil {
		return err
	}

	rows := r.History
	if r.Summary != nil {
		rows = append([]types.RunSummary{*r.Summary}, rows...)
	}
	for _, s := range rows {
		_, err := fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%s\n",
			s.RunID, s.Started.Format(time.RFC3339), s.DeletedCount, s.TotalFreedBytes, s.Failed, s.Directory)
		if err != nil {
			return err
		}
	}

	return tw.Flush()
}

func init() {
	Register("plain", func() Formatter {
		return &PlainFormatter{}
	})
}

var _ Formatter = (*PlainFormatter)(nil)

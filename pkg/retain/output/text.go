package output

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/jamesainslie/retain/pkg/retain/types"
)

// TextFormatter renders a styled summary box and a history table for the
// terminal.
type TextFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *TextFormatter) Format(w *bytes.Buffer, r *Result) error {
	if r.Summary != nil {
		w.WriteString(f.formatSummary(r.Summary, r.Interrupted))
		w.WriteString("\n")
	}

	if r.History != nil {
		w.WriteString(f.formatHistory(r.History))
	}

	if len(r.Warnings) > 0 {
		w.WriteString(WarningStyle.Bold(true).Render("Warnings:"))
		w.WriteString("\n")
		for _, warning := range r.Warnings {
			w.WriteString(WarningStyle.Render("  " + warning))
			w.WriteString("\n")
		}
	}

	return nil
}

func (f *TextFormatter) formatSummary(s *types.RunSummary, interrupted bool) string {
	field := func(label, value string) string {
		return fmt.Sprintf("%s %s", LabelStyle.Render(label), value)
	}

	deleted := SuccessStyle.Render(fmt.Sprintf("%d files", s.DeletedCount))
	if s.DeletedCount == 0 {
		deleted = MutedStyle.Render("nothing to delete")
	}

	lines := []string{
		TitleStyle.Render("Retention run"),
		field("Directory:", ValueStyle.Render(s.Directory)),
		field("Deleted:  ", deleted),
		field("Freed:    ", SizeStyle.Render(fmt.Sprintf("%s (%.2f MB)",
			types.FormatSize(s.TotalFreedBytes), types.Megabytes(s.TotalFreedBytes)))),
		field("Scanned:  ", ValueStyle.Render(fmt.Sprintf("%d entries, %d eligible in %s",
			s.Scanned, s.Eligible, s.Elapsed.Round(time.Millisecond)))),
	}

	if s.Failed > 0 {
		lines = append(lines, field("Failed:   ", ErrorStyle.Render(fmt.Sprintf("%d files (see log)", s.Failed))))
	}
	if interrupted {
		lines = append(lines, WarningStyle.Bold(true).Render("Run interrupted before every file was submitted"))
	}

	return SummaryBox.Render(strings.Join(lines, "\n"))
}

func (f *TextFormatter) formatHistory(runs []types.RunSummary) string {
	if len(runs) == 0 {
		return MutedStyle.Render("No runs recorded") + "\n"
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%s%s%s%s%s\n",
		TableHeaderStyle.Render(padRight("ID", 36)),
		TableHeaderStyle.Render(padRight("WHEN", 16)),
		TableHeaderStyle.Render(padRight("DELETED", 8)),
		TableHeaderStyle.Render(padRight("FREED", 10)),
		TableHeaderStyle.Render("DIRECTORY")))

	for _, run := range runs {
		sb.WriteString(fmt.Sprintf("%s  %s  %s  %s  %s\n",
			padRight(run.RunID, 36),
			MutedStyle.Render(padRight(humanize.Time(run.Started), 16)),
			padRight(fmt.Sprintf("%d", run.DeletedCount), 8),
			SizeStyle.Render(padRight(types.FormatSize(run.TotalFreedBytes), 10)),
			run.Directory))
	}
	return sb.String()
}

func padRight(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}

func init() {
	Register("text", func() Formatter {
		return &TextFormatter{}
	})
}

var _ Formatter = (*TextFormatter)(nil)

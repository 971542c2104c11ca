// Package filter decides whether a single directory entry is eligible for
// deletion. Rules are evaluated in a fixed order and evaluation stops at
// the first rule that fails:
//
//  1. the entry is a regular file
//  2. the name contains the include token ("*" matches everything)
//  3. the extension equals the configured extension
//  4. the creation date lies within [start, end], both inclusive
//  5. the creation weekday is not retained
//  6. the creation day of the month is not retained
//  7. the name matches none of the exclude patterns
//
// Each failed rule is reported as a warning on the filter's logger.
package filter

// Reason identifies the rule that rejected a file.
type Reason int

const (
	// ReasonNone means no rule failed.
	ReasonNone Reason = iota
	// ReasonNotRegular rejects directories, symlinks and special files.
	ReasonNotRegular
	// ReasonName rejects names that lack the include token.
	ReasonName
	// ReasonExtension rejects other extensions.
	ReasonExtension
	// ReasonDateRange rejects files created outside the date range.
	ReasonDateRange
	// ReasonWeekday rejects files created on a retained weekday.
	ReasonWeekday
	// ReasonMonthDay rejects files created on a retained day of the month.
	ReasonMonthDay
	// ReasonExcluded rejects names matching an exclude pattern.
	ReasonExcluded
)

// String returns the label used in logs and metrics.
func (r Reason) String() string {
	switch r {
	case ReasonNone:
		return "none"
	case ReasonNotRegular:
		return "not_regular"
	case ReasonName:
		return "name"
	case ReasonExtension:
		return "extension"
	case ReasonDateRange:
		return "date_range"
	case ReasonWeekday:
		return "weekday"
	case ReasonMonthDay:
		return "month_day"
	case ReasonExcluded:
		return "excluded"
	default:
		return "unknown"
	}
}

// Reasons lists every rejection reason in evaluation order.
var Reasons = []Reason{
	ReasonNotRegular,
	ReasonName,
	ReasonExtension,
	ReasonDateRange,
	ReasonWeekday,
	ReasonMonthDay,
	ReasonExcluded,
}

// Decision is the result of evaluating one file.
type Decision struct {
	// Eligible is true when every rule passed.
	Eligible bool

	// Reason is the first rule that failed; ReasonNone when eligible.
	Reason Reason
}

// Logger receives one warning per rejected file.
// *logging.Logger satisfies it.
type Logger interface {
	Warn(msg string, args ...interface{})
}

type nopLogger struct{}

func (nopLogger) Warn(string, ...interface{}) {}

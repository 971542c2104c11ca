package filter

import (
	"fmt"
	"strings"
	"time"

	"github.com/IGLOU-EU/go-wildcard"
	"github.com/jamesainslie/retain/pkg/retain/config"
	"github.com/jamesainslie/retain/pkg/retain/types"
)

// Filter evaluates files against a read-only configuration.
// It is safe for concurrent use.
type Filter struct {
	cfg      *config.Config
	logger   Logger
	weekdays map[int]struct{}
}

// Option is a functional option for configuring a Filter.
type Option func(*Filter)

// WithLogger sets the logger that receives rejection warnings.
func WithLogger(l Logger) Option {
	return func(f *Filter) {
		if l != nil {
			f.logger = l
		}
	}
}

// New creates a Filter for cfg. Rejections are discarded unless a logger
// is supplied with WithLogger.
func New(cfg *config.Config, opts ...Option) *Filter {
	f := &Filter{
		cfg:      cfg,
		logger:   nopLogger{},
		weekdays: make(map[int]struct{}, len(cfg.RetainedWeekdays)),
	}
	for _, d := range cfg.RetainedWeekdays {
		f.weekdays[d] = struct{}{}
	}

	for _, opt := range opts {
		opt(f)
	}
	return f
}

// ShouldDelete reports whether rec passes every rule.
func (f *Filter) ShouldDelete(rec types.FileRecord) bool {
	return f.Evaluate(rec).Eligible
}

// Evaluate runs the rules in order and returns the first failure.
func (f *Filter) Evaluate(rec types.FileRecord) Decision {
	if !rec.IsRegular() {
		f.logger.Warn("not a regular file", "name", rec.Name, "type", rec.Mode.Type().String())
		return reject(ReasonNotRegular)
	}

	if !f.matchName(rec) {
		f.logger.Warn("name check failed", "name", rec.Name, "include", f.cfg.NameIncludeToken)
		return reject(ReasonName)
	}

	if !f.matchExtension(rec) {
		f.logger.Warn("extension check failed", "name", rec.Name, "ext", rec.Ext, "delete_ext", f.cfg.DeleteExtension)
		return reject(ReasonExtension)
	}

	created := f.localTime(rec.Created)

	if !f.matchDateRange(created) {
		f.logger.Warn("creation date outside range",
			"name", rec.Name,
			"created", created.Format(config.DateLayout),
			"start", f.cfg.StartDate.Format(config.DateLayout),
			"end", f.cfg.EndDate.Format(config.DateLayout),
		)
		return reject(ReasonDateRange)
	}

	if !f.matchWeekday(created) {
		f.logger.Warn("creation weekday retained",
			"name", rec.Name,
			"weekday", types.ISOWeekday(created),
			"retained", joinInts(f.cfg.RetainedWeekdays),
		)
		return reject(ReasonWeekday)
	}

	if !f.matchMonthDay(created) {
		f.logger.Warn("creation day of month retained",
			"name", rec.Name,
			"created", created.Format(config.DateLayout),
			"retained", strings.Join(f.cfg.RetainedMonthDays, ","),
		)
		return reject(ReasonMonthDay)
	}

	if pattern, ok := f.matchExclude(rec); ok {
		f.logger.Warn("name matches exclude pattern", "name", rec.Name, "pattern", pattern)
		return reject(ReasonExcluded)
	}

	return Decision{Eligible: true, Reason: ReasonNone}
}

func reject(r Reason) Decision {
	return Decision{Eligible: false, Reason: r}
}

// matchName checks the include token; "*" matches every name.
func (f *Filter) matchName(rec types.FileRecord) bool {
	token := f.cfg.NameIncludeToken
	return token == config.WildcardToken || strings.Contains(rec.Name, token)
}

// matchExtension compares extensions exactly, case included.
func (f *Filter) matchExtension(rec types.FileRecord) bool {
	return rec.Ext == f.cfg.DeleteExtension
}

// matchDateRange compares calendar days so that files created at any time
// on the start or end date pass.
func (f *Filter) matchDateRange(created time.Time) bool {
	day := time.Date(created.Year(), created.Month(), created.Day(), 0, 0, 0, 0, created.Location())
	return !day.Before(f.cfg.StartDate) && !day.After(f.cfg.EndDate)
}

// matchWeekday passes files whose ISO weekday is not retained.
func (f *Filter) matchWeekday(created time.Time) bool {
	_, retained := f.weekdays[types.ISOWeekday(created)]
	return !retained
}

// matchMonthDay passes files whose date differs from every retained day
// placed in the file's own year and month.
func (f *Filter) matchMonthDay(created time.Time) bool {
	fileDay := created.Format(config.DateLayout)
	for _, day := range f.cfg.RetainedMonthDays {
		retained := fmt.Sprintf("%04d-%02d-%s", created.Year(), int(created.Month()), day)
		if retained == fileDay {
			return false
		}
	}
	return true
}

// matchExclude returns the first exclude pattern matching the name.
func (f *Filter) matchExclude(rec types.FileRecord) (string, bool) {
	for _, pattern := range f.cfg.NameExclude {
		if wildcard.Match(pattern, rec.Name) {
			return pattern, true
		}
	}
	return "", false
}

// localTime expresses t in the time zone of the configured dates.
func (f *Filter) localTime(t time.Time) time.Time {
	return t.In(f.cfg.StartDate.Location())
}

func joinInts(values []int) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = fmt.Sprint(v)
	}
	return strings.Join(parts, ",")
}

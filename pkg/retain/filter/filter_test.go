package filter

import (
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/jamesainslie/retain/pkg/retain/config"
	"github.com/jamesainslie/retain/pkg/retain/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingLogger captures warnings for assertions.
type recordingLogger struct {
	mu       sync.Mutex
	messages []string
	args     [][]interface{}
}

func (r *recordingLogger) Warn(msg string, args ...interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, msg)
	r.args = append(r.args, args)
}

// scenarioConfig mirrors the shipped default configuration.
func scenarioConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.FromValues(map[string]string{
		config.KeyDelFilePath:           "/data",
		config.KeyDelFileType:           "txt",
		config.KeyStartDelTime:          "2022-08-20",
		config.KeyEndDelTime:            "2023-11-24",
		config.KeyFileDeleteNameInclude: "*",
		config.KeyRetentionWeekOfDay:    "6",
		config.KeyRetentionMonthOfDay:   "01,02",
	})
	require.NoError(t, err)
	return cfg
}

func file(name string, created time.Time) types.FileRecord {
	return types.FileRecord{
		Path:    "/data/" + name,
		Name:    name,
		Ext:     extOf(name),
		Size:    1024,
		Created: created,
		Mode:    0o644,
	}
}

func extOf(name string) string {
	for i := len(name) - 1; i > 0; i-- {
		if name[i] == '.' {
			return name[i+1:]
		}
	}
	return ""
}

func day(year int, month time.Month, d, hour int) time.Time {
	return time.Date(year, month, d, hour, 30, 0, 0, time.Local)
}

func TestScenario_SundayReportIsDeleted(t *testing.T) {
	f := New(scenarioConfig(t))

	// 2023-01-15 is a Sunday (ISO 7); day 15 is not retained.
	d := f.Evaluate(file("report.txt", day(2023, 1, 15, 10)))
	assert.True(t, d.Eligible)
	assert.Equal(t, ReasonNone, d.Reason)
	assert.True(t, f.ShouldDelete(file("report.txt", day(2023, 1, 15, 10))))
}

func TestScenario_SaturdayBackupIsRetained(t *testing.T) {
	logger := &recordingLogger{}
	f := New(scenarioConfig(t), WithLogger(logger))

	// 2023-01-14 is a Saturday (ISO 6).
	d := f.Evaluate(file("backup.txt", day(2023, 1, 14, 10)))
	assert.False(t, d.Eligible)
	assert.Equal(t, ReasonWeekday, d.Reason)

	require.Len(t, logger.messages, 1)
	assert.Equal(t, "creation weekday retained", logger.messages[0])
	assert.Contains(t, logger.args[0], "6")
}

func TestEvaluate_RuleOrderAndReasons(t *testing.T) {
	cfg := scenarioConfig(t)
	cfg.NameIncludeToken = "report"
	cfg.NameExclude = []string{"*final*"}
	f := New(cfg)

	dir := file("report.txt", day(2023, 1, 15, 10))
	dir.Mode = os.ModeDir | 0o755

	link := file("report.txt", day(2023, 1, 15, 10))
	link.Mode = os.ModeSymlink | 0o777

	tests := []struct {
		name string
		rec  types.FileRecord
		want Reason
	}{
		{"directory", dir, ReasonNotRegular},
		{"symlink", link, ReasonNotRegular},
		// Wrong name and wrong extension: name is checked first.
		{"name before extension", file("backup.log", day(2023, 1, 15, 10)), ReasonName},
		{"extension", file("report.log", day(2023, 1, 15, 10)), ReasonExtension},
		{"extension case sensitive", file("report.TXT", day(2023, 1, 15, 10)), ReasonExtension},
		{"before range", file("report.txt", day(2022, 8, 19, 23)), ReasonDateRange},
		{"after range", file("report.txt", day(2023, 11, 25, 0)), ReasonDateRange},
		// Saturday and also the 1st: weekday is checked first.
		{"weekday before month day", file("report.txt", day(2023, 7, 1, 10)), ReasonWeekday},
		// 2023-02-01 is a Wednesday.
		{"month day", file("report.txt", day(2023, 2, 1, 10)), ReasonMonthDay},
		{"month day second", file("report.txt", day(2023, 3, 2, 10)), ReasonMonthDay},
		{"excluded", file("report-final.txt", day(2023, 1, 15, 10)), ReasonExcluded},
		{"eligible", file("daily-report.txt", day(2023, 1, 16, 10)), ReasonNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := f.Evaluate(tt.rec)
			assert.Equal(t, tt.want, d.Reason)
			assert.Equal(t, tt.want == ReasonNone, d.Eligible)
		})
	}
}

func TestEvaluate_OneWarningPerRejection(t *testing.T) {
	logger := &recordingLogger{}
	f := New(scenarioConfig(t), WithLogger(logger))

	f.Evaluate(file("a.log", day(2023, 1, 15, 10)))
	f.Evaluate(file("b.txt", day(2021, 1, 15, 10)))
	f.Evaluate(file("c.txt", day(2023, 1, 15, 10)))

	assert.Equal(t, []string{"extension check failed", "creation date outside range"}, logger.messages)
}

func TestEvaluate_NameSubstring(t *testing.T) {
	cfg := scenarioConfig(t)
	cfg.NameIncludeToken = "db"
	f := New(cfg)

	created := day(2023, 1, 16, 10)
	assert.True(t, f.ShouldDelete(file("db.txt", created)))
	assert.True(t, f.ShouldDelete(file("nightly-db-dump.txt", created)))
	assert.True(t, f.ShouldDelete(file("mongodb.txt", created)))
	assert.False(t, f.ShouldDelete(file("DB.txt", created)), "include token is case-sensitive")
	assert.False(t, f.ShouldDelete(file("d-b.txt", created)))
}

// Property: any extension other than the configured one is rejected,
// whatever the other attributes are.
func TestProperty_OtherExtensionNeverDeleted(t *testing.T) {
	f := New(scenarioConfig(t))

	exts := []string{"log", "TXT", "tx", "txtx", "gz", ""}
	start := day(2022, 1, 1, 12)
	for _, ext := range exts {
		for i := 0; i < 800; i += 7 {
			name := "report"
			if ext != "" {
				name += "." + ext
			}
			rec := file(name, start.AddDate(0, 0, i))
			assert.False(t, f.ShouldDelete(rec), "ext %q day %d", ext, i)
		}
	}
}

// Property: "*" makes the name rule pass for every name.
func TestProperty_WildcardMatchesEveryName(t *testing.T) {
	cfg := scenarioConfig(t)
	cfg.NameIncludeToken = "*"
	f := New(cfg)

	names := []string{"a.txt", "*.txt", "no-star.txt", " .txt", "日本語.txt", "x.txt"}
	for _, name := range names {
		d := f.Evaluate(file(name, day(2023, 1, 16, 10)))
		assert.NotEqual(t, ReasonName, d.Reason, name)
	}
}

// Property: both bounds of the range are inclusive at any time of day.
func TestProperty_InclusiveBoundaries(t *testing.T) {
	cfg := scenarioConfig(t)
	cfg.RetainedWeekdays = []int{}
	cfg.RetainedMonthDays = nil
	f := New(cfg)

	for _, hour := range []int{0, 12, 23} {
		assert.True(t, f.ShouldDelete(file("s.txt", day(2022, 8, 20, hour))), "start bound at %02d:30", hour)
		assert.True(t, f.ShouldDelete(file("e.txt", day(2023, 11, 24, hour))), "end bound at %02d:30", hour)
	}
	assert.False(t, f.ShouldDelete(file("e.txt", day(2023, 11, 25, 0))))
	assert.False(t, f.ShouldDelete(file("s.txt", day(2022, 8, 19, 23))))
}

// Property: a retained weekday always wins, whatever else passes.
func TestProperty_RetainedWeekday(t *testing.T) {
	cfg := scenarioConfig(t)
	cfg.RetainedMonthDays = nil
	start := day(2022, 8, 20, 9)

	for wd := 1; wd <= 7; wd++ {
		cfg.RetainedWeekdays = []int{wd}
		f := New(cfg)
		for i := 0; i < 400; i++ {
			created := start.AddDate(0, 0, i)
			got := f.ShouldDelete(file("r.txt", created))
			assert.Equal(t, types.ISOWeekday(created) != wd, got, "weekday %d date %s", wd, created.Format("2006-01-02"))
		}
	}
}

// Property: a retained day of the month is kept in every month and year.
func TestProperty_RetainedMonthDay(t *testing.T) {
	cfg := scenarioConfig(t)
	cfg.RetainedWeekdays = nil
	cfg.RetainedMonthDays = []string{"15", "31"}
	f := New(cfg)

	start := day(2022, 8, 20, 9)
	for i := 0; i < 460; i++ {
		created := start.AddDate(0, 0, i)
		if created.After(cfg.EndDate.AddDate(0, 0, 1)) {
			break
		}
		dom := fmt.Sprintf("%02d", created.Day())
		want := dom != "15" && dom != "31"
		assert.Equal(t, want, f.ShouldDelete(file("r.txt", created)), created.Format("2006-01-02"))
	}
}

func TestEvaluate_UsesConfiguredTimeZone(t *testing.T) {
	cfg := scenarioConfig(t)
	loc := time.FixedZone("UTC+9", 9*3600)
	cfg.StartDate = time.Date(2023, 1, 16, 0, 0, 0, 0, loc)
	cfg.EndDate = time.Date(2023, 1, 16, 0, 0, 0, 0, loc)
	cfg.RetainedWeekdays = nil
	cfg.RetainedMonthDays = nil
	f := New(cfg)

	// 2023-01-15 20:00 UTC is 2023-01-16 05:00 in UTC+9.
	created := time.Date(2023, 1, 15, 20, 0, 0, 0, time.UTC)
	assert.True(t, f.ShouldDelete(file("z.txt", created)))
}

func TestReason_String(t *testing.T) {
	assert.Equal(t, "none", ReasonNone.String())
	assert.Equal(t, "weekday", ReasonWeekday.String())
	assert.Equal(t, "unknown", Reason(99).String())
	assert.Len(t, Reasons, 7)
}

func TestFilter_ConcurrentUse(t *testing.T) {
	f := New(scenarioConfig(t), WithLogger(&recordingLogger{}))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				f.Evaluate(file("c.txt", day(2023, 1, 15+j%7, 10)))
			}
		}()
	}
	wg.Wait()
}

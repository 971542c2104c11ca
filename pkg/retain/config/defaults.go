// Package config loads and validates the retain configuration file.
//
// The file is a flat list of "key = value" lines. Lines starting with '#'
// are comments. Every value can be overridden by an environment variable
// named RETAIN_<KEY> with the key upper-cased (e.g. RETAIN_DELFILETYPE).
package config

// Configuration keys. The first seven are required.
const (
	KeyDelFilePath           = "delFilePath"
	KeyDelFileType           = "delFileType"
	KeyStartDelTime          = "startDelTime"
	KeyEndDelTime            = "endDelTime"
	KeyFileDeleteNameInclude = "fileDeleteNameInclude"
	KeyRetentionWeekOfDay    = "retentionWeekOfDay"
	KeyRetentionMonthOfDay   = "retentionMonthOfDay"

	KeyFileDeleteNameExclude = "fileDeleteNameExclude"
	KeyWorkers               = "workers"
	KeySchedule              = "schedule"
	KeyLogLevel              = "logLevel"
	KeyLogConsoleLevel       = "logConsoleLevel"
	KeyLogPath               = "logPath"
	KeyLogMaxSize            = "logMaxSize"
	KeyLogMaxBackups         = "logMaxBackups"
	KeyLogMaxAge             = "logMaxAge"
	KeyLogCompress           = "logCompress"
	KeyLogComponents         = "logComponents"
	KeyHistoryEnabled        = "historyEnabled"
	KeyHistoryPath           = "historyPath"
	KeyHistoryRetentionDays  = "historyRetentionDays"
)

// RequiredKeys lists the keys that must be present and non-empty.
var RequiredKeys = []string{
	KeyDelFilePath,
	KeyDelFileType,
	KeyStartDelTime,
	KeyEndDelTime,
	KeyFileDeleteNameInclude,
	KeyRetentionWeekOfDay,
	KeyRetentionMonthOfDay,
}

// Default values for optional settings.
const (
	// DefaultFileName is the configuration file read when none is given.
	DefaultFileName = "config.txt"

	// DefaultWorkers is the number of concurrent deletions.
	DefaultWorkers = 10

	// DefaultLogLevel is the file log level.
	DefaultLogLevel = "info"

	// DefaultLogConsoleLevel is the stderr log level.
	DefaultLogConsoleLevel = "info"

	// DefaultLogMaxSize is the size at which the log file is rotated.
	DefaultLogMaxSize = "10MB"

	// DefaultLogMaxBackups is the number of rotated log files kept.
	DefaultLogMaxBackups = 5

	// DefaultLogMaxAge is the number of days rotated log files are kept.
	DefaultLogMaxAge = 30

	// DefaultHistoryRetentionDays is how long run records are kept.
	DefaultHistoryRetentionDays = 30

	// DateLayout is the layout of startDelTime and endDelTime.
	DateLayout = "2006-01-02"

	// WildcardToken matches every file name in fileDeleteNameInclude.
	WildcardToken = "*"
)

// defaultFileContent is written by WriteDefault.
const defaultFileContent = `# retain configuration
#
# Files directly inside delFilePath are deleted when they pass every rule:
# name contains fileDeleteNameInclude, extension equals delFileType,
# creation date lies within [startDelTime, endDelTime] (both inclusive),
# and the creation date is neither a retained weekday nor a retained day
# of the month.

# Directory to clean (not recursive)
delFilePath = ./work

# Extension of files to delete, without the leading dot
delFileType = txt

# First creation date to delete (inclusive, YYYY-MM-DD)
startDelTime = 2022-08-20

# Last creation date to delete (inclusive, YYYY-MM-DD)
endDelTime = 2023-11-24

# Substring the file name must contain; * matches every name
fileDeleteNameInclude = *

# ISO weekdays whose files are always kept (1=Monday .. 7=Sunday)
retentionWeekOfDay = 6

# Days of the month whose files are always kept
retentionMonthOfDay = 01,02

# Optional settings
# fileDeleteNameExclude = *.keep.*,important*
# workers = 10
# schedule = 0 3 * * *
# logLevel = info
# logConsoleLevel = info
# logPath =
# logMaxSize = 10MB
# logMaxBackups = 5
# logMaxAge = 30
# logCompress = false
# logComponents = runner:debug,pool:warn
# historyEnabled = true
# historyPath =
# historyRetentionDays = 30
`

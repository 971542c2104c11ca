//go:build !linux && !darwin && !windows

package scanner

import (
	"os"
	"time"
)

// getCreateTime falls back to the modification time on platforms without
// a reliable creation timestamp.
func getCreateTime(_ string, info os.FileInfo) time.Time {
	return info.ModTime()
}

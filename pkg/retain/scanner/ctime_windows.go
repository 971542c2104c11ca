//go:build windows

package scanner

import (
	"os"
	"syscall"
	"time"
)

// getCreateTime returns the creation time recorded by NTFS.
func getCreateTime(_ string, info os.FileInfo) time.Time {
	attrs, ok := info.Sys().(*syscall.Win32FileAttributeData)
	if !ok {
		return info.ModTime()
	}
	return time.Unix(0, attrs.CreationTime.Nanoseconds())
}

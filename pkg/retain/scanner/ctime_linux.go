//go:build linux

package scanner

import (
	"os"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// getCreateTime returns the creation time of a file.
// It asks statx for the birth time, which ext4, xfs and btrfs record on
// Linux 4.11+. When the filesystem does not report one, the inode change
// time is used instead.
func getCreateTime(path string, info os.FileInfo) time.Time {
	var stx unix.Statx_t
	err := unix.Statx(unix.AT_FDCWD, path, unix.AT_SYMLINK_NOFOLLOW, unix.STATX_BTIME, &stx)
	if err == nil && stx.Mask&unix.STATX_BTIME != 0 {
		return time.Unix(stx.Btime.Sec, int64(stx.Btime.Nsec))
	}

	if stat, ok := info.Sys().(*syscall.Stat_t); ok {
		return time.Unix(int64(stat.Ctim.Sec), int64(stat.Ctim.Nsec))
	}
	return info.ModTime()
}

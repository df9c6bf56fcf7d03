//go:build !windows

package watcher

import (
	"io/fs"
	"syscall"
)

// statIno extracts the filesystem inode number from a FileInfo on
// platforms exposing *syscall.Stat_t. The inode is the stable
// per-filesystem identity rename/move pairing keys on.
func statIno(info fs.FileInfo) (uint64, bool) {
	stat, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return 0, false
	}

	return uint64(stat.Ino), true
}

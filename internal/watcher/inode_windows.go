//go:build windows

package watcher

import (
	"hash/fnv"
	"io/fs"
)

// statIno has no portable inode equivalent on Windows through the standard
// fs.FileInfo; fall back to a pseudo-inode hashed from the entry's base
// name. This is not a real identity: a rename changes the name and so the
// pseudo-inode, so renames are not paired, while a delete and a create of
// same-named entries in different directories share one and are paired as
// a move. It keeps the reference watcher compiling on this platform.
func statIno(info fs.FileInfo) (uint64, bool) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(info.Name()))

	return h.Sum64(), true
}

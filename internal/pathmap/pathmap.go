// Package pathmap computes the (localPath, remotePath) pair for a change
// event and normalizes path segments the way the remote storage expects.
// NFC normalization applies to each name segment individually, never to a
// joined path.
package pathmap

import (
	"path"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// myFilesPrefixes lists recognized spellings of the "root" synonym that
// must be stripped from a remote path before it is used.
var myFilesPrefixes = []string{"my_files/", "./my_files/"}

// Map computes the local and remote paths for a file named name inside
// watchRoot, whose remote mirror lives under remoteRoot (may be empty for
// "no prefix configured").
//
// localPath = join(watchRoot, name).
// remotePath = remoteRoot/dirName/name, or dirName/name if remoteRoot is
// empty, where dirName is the base name of watchRoot.
func Map(watchRoot, remoteRoot, name string) (localPath, remotePath string) {
	normalizedName := NormalizeSegment(name)

	localPath = path.Join(watchRoot, normalizedName)

	dirName := path.Base(watchRoot)

	if remoteRoot == "" {
		remotePath = path.Join(dirName, normalizedName)
	} else {
		remotePath = path.Join(remoteRoot, dirName, normalizedName)
	}

	return localPath, StripMyFilesPrefix(remotePath)
}

// NormalizeSegment applies NFC Unicode normalization to a single path
// segment. Never call this on a full joined path: normalizing across a
// "/" boundary is not meaningful.
func NormalizeSegment(segment string) string {
	return norm.NFC.String(segment)
}

// StripMyFilesPrefix removes a leading "my_files/" or "./my_files/" from a
// remote path, treating it as a synonym for the storage root.
func StripMyFilesPrefix(remotePath string) string {
	for _, prefix := range myFilesPrefixes {
		if strings.HasPrefix(remotePath, prefix) {
			return strings.TrimPrefix(remotePath, prefix)
		}
	}

	return remotePath
}

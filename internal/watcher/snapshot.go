package watcher

import (
	"crypto/sha1" //nolint:gosec // content fingerprint, not a security boundary
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// snapshotEntry records what the last scan observed for one relative path.
type snapshotEntry struct {
	Ino   uint64 `json:"ino"`
	IsDir bool   `json:"is_dir"`
	Hash  string `json:"hash,omitempty"`
	Size  int64  `json:"size"`
	Mtime int64  `json:"mtime"`
}

// snapshot maps a path relative to its watch root to its last-observed
// state. Serialized as the opaque Clock token persisted between scans.
type snapshot map[string]snapshotEntry

func decodeSnapshot(token string) snapshot {
	if token == "" {
		return snapshot{}
	}

	var s snapshot
	if err := json.Unmarshal([]byte(token), &s); err != nil {
		return snapshot{}
	}

	return s
}

func (s snapshot) encode() (string, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("watcher: encoding snapshot: %w", err)
	}

	return string(b), nil
}

// scanRoot walks root and returns its current snapshot.
func scanRoot(root string) (snapshot, error) {
	current := snapshot{}

	err := filepath.WalkDir(root, func(fsPath string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr //nolint:wrapcheck // top-level caller wraps
		}

		if fsPath == root {
			return nil
		}

		rel, err := filepath.Rel(root, fsPath)
		if err != nil {
			return fmt.Errorf("watcher: computing relative path for %s: %w", fsPath, err)
		}

		rel = filepath.ToSlash(rel)

		if d.Type()&fs.ModeSymlink != 0 {
			return skipWalkEntry(d)
		}

		info, err := d.Info()
		if err != nil {
			return nil // entry disappeared mid-walk; treated as absent next diff
		}

		entry := snapshotEntry{
			IsDir: d.IsDir(),
			Size:  info.Size(),
			Mtime: info.ModTime().UnixNano(),
		}

		if ino, ok := statIno(info); ok {
			entry.Ino = ino
		}

		if !d.IsDir() {
			hash, err := sha1Hex(fsPath)
			if err != nil {
				return nil // unreadable file; skip, picked up on a later scan
			}

			entry.Hash = hash
		}

		current[rel] = entry

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("watcher: walking %s: %w", root, err)
	}

	return current, nil
}

// diffSnapshots compares prev to current and emits ChangeEvents for every
// path that appeared, disappeared, or (for files) changed content.
func diffSnapshots(watchRoot string, prev, current snapshot) Batch {
	var batch Batch

	for name, entry := range current {
		prior, existed := prev[name]

		switch {
		case !existed:
			batch = append(batch, changeEventFor(watchRoot, name, entry, true, true))
		case !entry.IsDir && prior.Hash != entry.Hash:
			batch = append(batch, changeEventFor(watchRoot, name, entry, true, false))
		}
	}

	for name, entry := range prev {
		if _, stillPresent := current[name]; !stillPresent {
			batch = append(batch, changeEventFor(watchRoot, name, entry, false, false))
		}
	}

	return batch
}

func changeEventFor(watchRoot, name string, entry snapshotEntry, exists, isNew bool) ChangeEvent {
	entryType := EntryFile
	if entry.IsDir {
		entryType = EntryDir
	}

	ev := ChangeEvent{
		WatchRoot: watchRoot,
		Name:      name,
		Exists:    exists,
		New:       isNew,
		Type:      entryType,
		Ino:       entry.Ino,
	}

	if exists && entryType == EntryFile {
		ev.SHA1Hex = entry.Hash
	}

	return ev
}

func sha1Hex(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("watcher: opening %s for hashing: %w", path, err)
	}
	defer f.Close()

	h := sha1.New() //nolint:gosec // content fingerprint, not a security boundary

	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("watcher: hashing %s: %w", path, err)
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

func skipWalkEntry(d fs.DirEntry) error {
	if d != nil && d.IsDir() {
		return filepath.SkipDir
	}

	return nil
}

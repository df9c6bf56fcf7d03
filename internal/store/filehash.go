package store

import (
	"database/sql"
	"fmt"
	"strings"
)

// GetFileHash returns the last content hash recorded for localPath, or
// ErrNotFound if none is recorded.
func (t *Tx) GetFileHash(localPath string) (*FileHash, error) {
	row := t.tx.QueryRow(
		`SELECT local_path, content_hash, updated_at FROM file_hashes WHERE local_path = ?`,
		localPath,
	)

	var (
		h         FileHash
		updatedAt int64
	)

	err := row.Scan(&h.LocalPath, &h.ContentHash, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("store: getting file hash for %s: %w", localPath, err)
	}

	h.UpdatedAt = unixNanoToTime(updatedAt)

	return &h, nil
}

// PutFileHash records the content hash last propagated for localPath.
func (t *Tx) PutFileHash(localPath, contentHash string) error {
	_, err := t.tx.Exec(
		`INSERT INTO file_hashes (local_path, content_hash, updated_at) VALUES (?, ?, ?)
			ON CONFLICT(local_path) DO UPDATE SET content_hash = excluded.content_hash, updated_at = excluded.updated_at`,
		localPath, contentHash, t.now().UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("store: putting file hash for %s: %w", localPath, err)
	}

	return nil
}

// DeleteFileHash removes the recorded hash for localPath, if any.
func (t *Tx) DeleteFileHash(localPath string) error {
	_, err := t.tx.Exec(`DELETE FROM file_hashes WHERE local_path = ?`, localPath)
	if err != nil {
		return fmt.Errorf("store: deleting file hash for %s: %w", localPath, err)
	}

	return nil
}

// DeleteFileHashesOutsideRoots removes every recorded hash whose local_path
// is not at or below any directory in roots. Called on startup and on
// directory-set hot reload to forget files that used to be synced but whose
// watch root has since been removed from configuration.
func (t *Tx) DeleteFileHashesOutsideRoots(roots []string) error {
	rows, err := t.tx.Query(`SELECT local_path FROM file_hashes`)
	if err != nil {
		return fmt.Errorf("store: listing file hashes: %w", err)
	}

	paths, err := scanStringRows(rows, "store: scanning file hash path", "store: iterating file hashes")
	if err != nil {
		return err
	}

	for _, p := range paths {
		if isUnderAnyRoot(p, roots) {
			continue
		}

		if err := t.DeleteFileHash(p); err != nil {
			return err
		}
	}

	return nil
}

// DeleteFileHashesUnder removes every recorded hash at or below dirPath,
// used when a directory is deleted and its whole subtree must be purged.
func (t *Tx) DeleteFileHashesUnder(dirPath string) error {
	prefix := strings.TrimSuffix(dirPath, "/") + "/"

	_, err := t.tx.Exec(
		`DELETE FROM file_hashes WHERE local_path = ? OR local_path LIKE ? ESCAPE '\'`,
		dirPath, escapeLike(prefix)+"%",
	)
	if err != nil {
		return fmt.Errorf("store: deleting file hashes under %s: %w", dirPath, err)
	}

	return nil
}

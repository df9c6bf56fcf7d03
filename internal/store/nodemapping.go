package store

import (
	"database/sql"
	"fmt"
	"strings"
)

const sqlNodeMappingColumns = `local_path, remote_path, node_uid, parent_node_uid, is_directory, updated_at`

func scanNodeMapping(row *sql.Row) (*NodeMapping, error) {
	var (
		m         NodeMapping
		updatedAt int64
	)

	err := row.Scan(&m.LocalPath, &m.RemotePath, &m.NodeUID, &m.ParentNodeUID, &m.IsDirectory, &updatedAt)
	if err != nil {
		return nil, err //nolint:wrapcheck // callers wrap with context
	}

	m.UpdatedAt = unixNanoToTime(updatedAt)

	return &m, nil
}

// GetNodeMapping returns the remote identity recorded for localPath, or
// ErrNotFound if the path has never been synced. Absence of a mapping is
// what forces DELETE+CREATE instead of RENAME/MOVE.
func (t *Tx) GetNodeMapping(localPath string) (*NodeMapping, error) {
	row := t.tx.QueryRow(`SELECT `+sqlNodeMappingColumns+` FROM node_mapping WHERE local_path = ?`, localPath)

	m, err := scanNodeMapping(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("store: getting node mapping for %s: %w", localPath, err)
	}

	return m, nil
}

// PutNodeMapping records (or replaces) the remote identity for localPath.
func (t *Tx) PutNodeMapping(m NodeMapping) error {
	_, err := t.tx.Exec(
		`INSERT INTO node_mapping (local_path, remote_path, node_uid, parent_node_uid, is_directory, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(local_path) DO UPDATE SET
				remote_path     = excluded.remote_path,
				node_uid        = excluded.node_uid,
				parent_node_uid = excluded.parent_node_uid,
				is_directory    = excluded.is_directory,
				updated_at      = excluded.updated_at`,
		m.LocalPath, m.RemotePath, m.NodeUID, m.ParentNodeUID, m.IsDirectory, t.now().UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("store: putting node mapping for %s: %w", m.LocalPath, err)
	}

	return nil
}

// UpdateNodeMappingPath rewrites localPath/remotePath for an existing
// mapping in place, preserving NodeUID: the in-place RENAME/MOVE path that
// avoids a DELETE+CREATE round trip.
func (t *Tx) UpdateNodeMappingPath(oldLocalPath, newLocalPath, newRemotePath string) error {
	res, err := t.tx.Exec(
		`UPDATE node_mapping SET local_path = ?, remote_path = ?, updated_at = ? WHERE local_path = ?`,
		newLocalPath, newRemotePath, t.now().UnixNano(), oldLocalPath,
	)
	if err != nil {
		return fmt.Errorf("store: moving node mapping %s -> %s: %w", oldLocalPath, newLocalPath, err)
	}

	return requireRowsAffected(res, ErrNotFound, "store: moving node mapping %s -> %s", oldLocalPath, newLocalPath)
}

// UpdateNodeMappingPathAndParent is UpdateNodeMappingPath plus a
// ParentNodeUID rewrite, used for MOVE; RENAME's plain
// UpdateNodeMappingPath leaves the parent untouched.
func (t *Tx) UpdateNodeMappingPathAndParent(oldLocalPath, newLocalPath, newRemotePath, newParentNodeUID string) error {
	res, err := t.tx.Exec(
		`UPDATE node_mapping SET local_path = ?, remote_path = ?, parent_node_uid = ?, updated_at = ? WHERE local_path = ?`,
		newLocalPath, newRemotePath, newParentNodeUID, t.now().UnixNano(), oldLocalPath,
	)
	if err != nil {
		return fmt.Errorf("store: moving node mapping %s -> %s (new parent): %w", oldLocalPath, newLocalPath, err)
	}

	return requireRowsAffected(res, ErrNotFound, "store: moving node mapping %s -> %s (new parent)", oldLocalPath, newLocalPath)
}

// DeleteNodeMapping removes the mapping for localPath, if any.
func (t *Tx) DeleteNodeMapping(localPath string) error {
	_, err := t.tx.Exec(`DELETE FROM node_mapping WHERE local_path = ?`, localPath)
	if err != nil {
		return fmt.Errorf("store: deleting node mapping for %s: %w", localPath, err)
	}

	return nil
}

// DeleteNodeMappingsOutsideRoots removes every mapping whose local_path is
// not at or below any directory in roots, same rule as
// DeleteFileHashesOutsideRoots.
func (t *Tx) DeleteNodeMappingsOutsideRoots(roots []string) error {
	rows, err := t.tx.Query(`SELECT local_path FROM node_mapping`)
	if err != nil {
		return fmt.Errorf("store: listing node mappings: %w", err)
	}

	paths, err := scanStringRows(rows, "store: scanning node mapping path", "store: iterating node mappings")
	if err != nil {
		return err
	}

	for _, p := range paths {
		if isUnderAnyRoot(p, roots) {
			continue
		}

		if err := t.DeleteNodeMapping(p); err != nil {
			return err
		}
	}

	return nil
}

// DeleteNodeMappingsUnder removes every mapping strictly below dirPath.
// The directory's own mapping is deliberately left in place: the executor
// consumes it to resolve the remote node when it processes the directory's
// DELETE job.
func (t *Tx) DeleteNodeMappingsUnder(dirPath string) error {
	prefix := strings.TrimSuffix(dirPath, "/") + "/"

	_, err := t.tx.Exec(
		`DELETE FROM node_mapping WHERE local_path LIKE ? ESCAPE '\'`,
		escapeLike(prefix)+"%",
	)
	if err != nil {
		return fmt.Errorf("store: deleting node mappings under %s: %w", dirPath, err)
	}

	return nil
}

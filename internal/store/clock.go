package store

import (
	"database/sql"
	"fmt"
)

// GetClock returns the resumable watcher cursor for watchedDirectory, or
// ErrNotFound if the directory has never been watched.
func (t *Tx) GetClock(watchedDirectory string) (*Clock, error) {
	row := t.tx.QueryRow(
		`SELECT watched_directory, clock_token, updated_at FROM clocks WHERE watched_directory = ?`,
		watchedDirectory,
	)

	var (
		c         Clock
		updatedAt int64
	)

	err := row.Scan(&c.WatchedDirectory, &c.ClockToken, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("store: getting clock for %s: %w", watchedDirectory, err)
	}

	c.UpdatedAt = unixNanoToTime(updatedAt)

	return &c, nil
}

// PutClock persists the watcher cursor for watchedDirectory.
func (t *Tx) PutClock(watchedDirectory, clockToken string) error {
	_, err := t.tx.Exec(
		`INSERT INTO clocks (watched_directory, clock_token, updated_at) VALUES (?, ?, ?)
			ON CONFLICT(watched_directory) DO UPDATE SET clock_token = excluded.clock_token, updated_at = excluded.updated_at`,
		watchedDirectory, clockToken, t.now().UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("store: putting clock for %s: %w", watchedDirectory, err)
	}

	return nil
}

// DeleteClocksNotIn removes every recorded clock whose directory is not in
// keep. Called when the configured set of watched directories shrinks
// across a hot reload.
func (t *Tx) DeleteClocksNotIn(keep []string) error {
	rows, err := t.tx.Query(`SELECT watched_directory FROM clocks`)
	if err != nil {
		return fmt.Errorf("store: listing clocks: %w", err)
	}

	keepSet := make(map[string]bool, len(keep))
	for _, k := range keep {
		keepSet[k] = true
	}

	var stale []string

	for rows.Next() {
		var dir string
		if err := rows.Scan(&dir); err != nil {
			rows.Close()
			return fmt.Errorf("store: scanning clock directory: %w", err)
		}

		if !keepSet[dir] {
			stale = append(stale, dir)
		}
	}

	if err := rows.Err(); err != nil {
		rows.Close()
		return fmt.Errorf("store: iterating clocks: %w", err)
	}

	rows.Close()

	for _, dir := range stale {
		if _, err := t.tx.Exec(`DELETE FROM clocks WHERE watched_directory = ?`, dir); err != nil {
			return fmt.Errorf("store: deleting stale clock for %s: %w", dir, err)
		}
	}

	return nil
}

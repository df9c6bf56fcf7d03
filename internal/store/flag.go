package store

import (
	"database/sql"
	"fmt"
)

// SetFlag sets the named flag, recording when it was set. Idempotent.
func (t *Tx) SetFlag(name string) error {
	_, err := t.tx.Exec(
		`INSERT INTO flags (name, set_at) VALUES (?, ?) ON CONFLICT(name) DO UPDATE SET set_at = excluded.set_at`,
		name, t.now().UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("store: setting flag %s: %w", name, err)
	}

	return nil
}

// ClearFlag removes the named flag. A no-op if it was not set.
func (t *Tx) ClearFlag(name string) error {
	_, err := t.tx.Exec(`DELETE FROM flags WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("store: clearing flag %s: %w", name, err)
	}

	return nil
}

// IsFlagSet reports whether the named flag is currently set.
func (t *Tx) IsFlagSet(name string) (bool, error) {
	var discard int64

	err := t.tx.QueryRow(`SELECT set_at FROM flags WHERE name = ?`, name).Scan(&discard)
	if err == sql.ErrNoRows {
		return false, nil
	}

	if err != nil {
		return false, fmt.Errorf("store: checking flag %s: %w", name, err)
	}

	return true, nil
}

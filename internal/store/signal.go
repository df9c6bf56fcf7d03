package store

import (
	"database/sql"
	"fmt"
)

// SendSignal enqueues a durable, at-most-once-consumed signal.
// Multiple sends of the same name queue independently; each is
// popped exactly once.
func (t *Tx) SendSignal(name string) error {
	_, err := t.tx.Exec(
		`INSERT INTO signals (name, created_at) VALUES (?, ?)`,
		name, t.now().UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("store: sending signal %s: %w", name, err)
	}

	return nil
}

// HasSignal reports whether at least one signal named name is pending,
// without consuming it.
func (t *Tx) HasSignal(name string) (bool, error) {
	var discard int64

	err := t.tx.QueryRow(`SELECT id FROM signals WHERE name = ? LIMIT 1`, name).Scan(&discard)
	if err == sql.ErrNoRows {
		return false, nil
	}

	if err != nil {
		return false, fmt.Errorf("store: checking signal %s: %w", name, err)
	}

	return true, nil
}

// PopSignal consumes (deletes) the oldest pending signal named name and
// reports whether one was found. Deletion happens before the caller acts on
// the signal (delete-before-notify): a
// crash after delete but before the handler runs drops the signal rather
// than replaying it, which is the chosen tradeoff for a control-plane
// channel that is re-signaled freely by its callers.
func (t *Tx) PopSignal(name string) (bool, error) {
	var id int64

	err := t.tx.QueryRow(`SELECT id FROM signals WHERE name = ? ORDER BY id ASC LIMIT 1`, name).Scan(&id)
	if err == sql.ErrNoRows {
		return false, nil
	}

	if err != nil {
		return false, fmt.Errorf("store: finding signal %s: %w", name, err)
	}

	if _, err := t.tx.Exec(`DELETE FROM signals WHERE id = ?`, id); err != nil {
		return false, fmt.Errorf("store: consuming signal %s: %w", name, err)
	}

	return true, nil
}

// PopSignalsForNames consumes every pending signal whose name is in names
// and returns how many rows were consumed per name. Names outside this set
// are left untouched: signals without a registered listener accumulate
// until one appears, the readiness handshake between producers and the
// daemon.
func (t *Tx) PopSignalsForNames(names []string) (map[string]int, error) {
	counts := make(map[string]int, len(names))

	for _, name := range names {
		res, err := t.tx.Exec(`DELETE FROM signals WHERE name = ?`, name)
		if err != nil {
			return nil, fmt.Errorf("store: consuming signals named %s: %w", name, err)
		}

		n, err := res.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("store: counting consumed signals named %s: %w", name, err)
		}

		counts[name] = int(n)
	}

	return counts, nil
}

// Package store implements transactional persistence for the sync engine:
// jobs, content hashes, local-to-remote node identity mappings, watcher
// cursors, process flags, and inter-process signals.
//
// Store is the sole writer of its SQLite database (db.SetMaxOpenConns(1)).
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	// Pure-Go SQLite driver (no CGO).
	_ "modernc.org/sqlite"
)

// Store is a transactional key-value/relational store over a single SQLite
// database file. All multi-row state changes from one Change Translator
// batch, and every Job Executor outcome, are committed atomically through
// WithTx.
type Store struct {
	db      *sql.DB
	logger  *slog.Logger
	nowFunc func() time.Time // injectable for deterministic tests
}

// Open opens (creating if necessary) the SQLite database at path, runs all
// pending migrations, and returns a ready-to-use Store. The database uses
// WAL mode with synchronous=FULL for crash-safe durability.
func Open(ctx context.Context, path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	dsn := fmt.Sprintf(
		"file:%s?_pragma=journal_mode(WAL)&_pragma=synchronous(FULL)"+
			"&_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)"+
			"&_pragma=journal_size_limit(67108864)",
		path,
	)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: opening database %s: %w", path, err)
	}

	// Sole-writer pattern: only one connection writes at a time, so
	// transactions never contend with each other inside this process.
	db.SetMaxOpenConns(1)

	if err := runMigrations(ctx, db, logger); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("store opened", slog.String("path", path))

	return &Store{db: db, logger: logger, nowFunc: time.Now}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Tx is a transaction handle. All entity CRUD operations are defined as
// methods on *Tx; Store's own convenience methods open one, run a single
// operation, and commit: "scoped to a transaction handle when supplied,
// otherwise implicitly wrapped".
type Tx struct {
	tx      *sql.Tx
	nowFunc func() time.Time
}

// now returns the transaction's notion of the current time.
func (t *Tx) now() time.Time {
	return t.nowFunc()
}

// WithTx runs body inside a single serializable SQLite transaction. If body
// returns an error, the transaction is rolled back; otherwise it is
// committed. This is the Store's single transaction primitive.
func (s *Store) WithTx(ctx context.Context, body func(*Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: beginning transaction: %w", err)
	}

	committed := false
	defer func() {
		if !committed {
			sqlTx.Rollback()
		}
	}()

	tx := &Tx{tx: sqlTx, nowFunc: s.nowFunc}

	if err := body(tx); err != nil {
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("store: committing transaction: %w", err)
	}

	committed = true

	return nil
}

// nullString maps empty string to SQL NULL.
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}

	return sql.NullString{String: s, Valid: true}
}

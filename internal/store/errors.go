package store

import "errors"

// Sentinel errors of the store package. Use errors.Is to classify. Of the
// three, only ErrNotFound is returned by Store operations; SQLite
// constraint and I/O errors are returned wrapped as the driver reports
// them, without ErrConflict or ErrTransient.
var (
	// ErrConflict names a uniqueness violation the caller did not expect
	// to be resolved by upsert (e.g. a non-upserting insert).
	ErrConflict = errors.New("store: uniqueness conflict")

	// ErrNotFound is returned when a lookup finds no matching row.
	ErrNotFound = errors.New("store: not found")

	// ErrTransient names a retryable I/O error on the backing database
	// file (e.g. SQLITE_BUSY surfacing through the busy_timeout window).
	ErrTransient = errors.New("store: transient I/O error")
)

// Package watcher defines the capability the Change Translator consumes
// (a batched stream of filesystem change events), plus a reference
// fsnotify adapter that implements it.
package watcher

import "context"

// EntryType is the kind of filesystem entry a ChangeEvent describes.
type EntryType int

// Recognized entry types.
const (
	EntryFile EntryType = iota
	EntryDir
)

// ChangeEvent is one raw observation from the watcher. Ino is a stable
// per-filesystem inode number used for identity-based rename/move pairing;
// SHA1Hex is populated only when Exists is true and Type is EntryFile.
type ChangeEvent struct {
	WatchRoot string
	Name      string
	Exists    bool
	New       bool
	Type      EntryType
	Ino       uint64
	SHA1Hex   string
}

// Batch is an ordered list of events observed together, committed to the
// Translator as a single transactional unit.
type Batch []ChangeEvent

// BatchHandler processes one batch of events. dryRun suppresses actual job
// enqueueing while still exercising translation logic.
type BatchHandler func(ctx context.Context, batch Batch, dryRun bool) error

// Watcher is the capability the engine orchestrator consumes.
// Implementations own persisting their own resumable cursors
// (Clock rows) internally.
type Watcher interface {
	Connect(ctx context.Context) error
	Close() error

	// QueryAllChanges replays every pending change across configured roots
	// in one shot, invoking onBatch for each batch, and returns the total
	// number of events observed.
	QueryAllChanges(ctx context.Context, roots []string, onBatch BatchHandler, dryRun bool) (int, error)

	// SetupWatchSubscriptions establishes continuous watching across roots,
	// invoking onBatch for every subsequent batch until ctx is canceled.
	SetupWatchSubscriptions(ctx context.Context, roots []string, onBatch BatchHandler, dryRun bool) error
}

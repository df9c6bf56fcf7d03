package signalbus

import (
	"context"

	"github.com/cloudsync/syncd/internal/store"
)

// Well-known flag names. PAUSED suspends the executor's tick
// loop without stopping the watcher; it is persisted in the shared store
// so pause survives a daemon restart.
// RUNNING is set by `syncd run` for the lifetime of the process so other
// readers of the store (such as a future dashboard) can see a daemon is
// active against it. It is descriptive state, not the double-start gate:
// that is the flock taken in cmd/syncd/pidfile.go, and a `run` that wins
// the flock clears and re-sets RUNNING whatever its previous value.
// SERVICE_INSTALLED is kept as a named constant even though the service
// install/uninstall CLI is out of scope for this core; the flag itself is
// core state a future OS-service layer would read and set.
const (
	FlagRunning          = "RUNNING"
	FlagPaused           = "PAUSED"
	FlagServiceInstalled = "SERVICE_INSTALLED"
)

// Flags is a thin convenience wrapper over the store's flag table.
type Flags struct {
	store *store.Store
}

// NewFlags returns a Flags view over s.
func NewFlags(s *store.Store) *Flags {
	return &Flags{store: s}
}

// IsPaused reports whether the engine is currently paused.
func (f *Flags) IsPaused(ctx context.Context) (bool, error) {
	return f.store.IsFlagSet(ctx, FlagPaused)
}

// Pause sets the paused flag.
func (f *Flags) Pause(ctx context.Context) error {
	return f.store.SetFlag(ctx, FlagPaused)
}

// Resume clears the paused flag.
func (f *Flags) Resume(ctx context.Context) error {
	return f.store.ClearFlag(ctx, FlagPaused)
}

// IsRunning reports whether a daemon currently holds the RUNNING flag
// against this store.
func (f *Flags) IsRunning(ctx context.Context) (bool, error) {
	return f.store.IsFlagSet(ctx, FlagRunning)
}

// SetRunning sets the RUNNING flag, marking a daemon active against this
// store.
func (f *Flags) SetRunning(ctx context.Context) error {
	return f.store.SetFlag(ctx, FlagRunning)
}

// ClearRunning clears the RUNNING flag on daemon shutdown.
func (f *Flags) ClearRunning(ctx context.Context) error {
	return f.store.ClearFlag(ctx, FlagRunning)
}

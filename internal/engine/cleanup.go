package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cloudsync/syncd/internal/store"
)

// cleanup runs the startup recovery pass:
// any job left PROCESSING by a process that died mid-execution is returned
// to PENDING, clocks for directories no longer configured are pruned, and
// FileHash/NodeMapping rows left behind by directories dropped from
// configuration are deleted.
func (e *Engine) cleanup(ctx context.Context) error {
	reset, err := e.store.ResetProcessingJobs(ctx)
	if err != nil {
		return fmt.Errorf("engine: resetting processing jobs on startup: %w", err)
	}

	if reset > 0 {
		e.logger.Info("reset orphaned processing jobs", slog.Int64("count", reset))
	}

	roots := localRoots(e.currentDirs())

	err = e.store.WithTx(ctx, func(tx *store.Tx) error {
		if err := tx.DeleteClocksNotIn(roots); err != nil {
			return err
		}

		if err := tx.DeleteFileHashesOutsideRoots(roots); err != nil {
			return err
		}

		return tx.DeleteNodeMappingsOutsideRoots(roots)
	})
	if err != nil {
		return fmt.Errorf("engine: pruning stale state on startup: %w", err)
	}

	return nil
}

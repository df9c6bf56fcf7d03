package watcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/cloudsync/syncd/internal/store"
)

// debounceInterval batches the rapid-fire events a single save or copy
// produces into one rescan, instead of diffing on every fsnotify event.
const debounceInterval = 500 * time.Millisecond

// FsNotifyWatcher implements Watcher over the local filesystem: fsnotify
// delivers raw events, and a snapshot-diff rescan of the affected root turns
// them into ChangeEvents.
type FsNotifyWatcher struct {
	store  *store.Store
	logger *slog.Logger

	mu sync.Mutex
	fw FsWatcher
}

// New returns an FsNotifyWatcher persisting its cursors through s.
func New(s *store.Store, logger *slog.Logger) *FsNotifyWatcher {
	if logger == nil {
		logger = slog.Default()
	}

	return &FsNotifyWatcher{store: s, logger: logger}
}

// Connect starts the underlying fsnotify watcher.
func (w *FsNotifyWatcher) Connect(ctx context.Context) error {
	fw, err := newFsnotifyWatcher()
	if err != nil {
		return fmt.Errorf("watcher: starting fsnotify: %w", err)
	}

	w.mu.Lock()
	w.fw = fw
	w.mu.Unlock()

	return nil
}

// Close stops the underlying fsnotify watcher.
func (w *FsNotifyWatcher) Close() error {
	w.mu.Lock()
	fw := w.fw
	w.mu.Unlock()

	if fw == nil {
		return nil
	}

	if err := fw.Close(); err != nil {
		return fmt.Errorf("watcher: closing fsnotify: %w", err)
	}

	return nil
}

// QueryAllChanges rescans every root against its last persisted snapshot
// and reports the total number of events observed.
func (w *FsNotifyWatcher) QueryAllChanges(ctx context.Context, roots []string, onBatch BatchHandler, dryRun bool) (int, error) {
	total := 0

	for _, root := range roots {
		n, err := w.rescan(ctx, root, onBatch, dryRun)
		if err != nil {
			return total, err
		}

		total += n
	}

	return total, nil
}

// SetupWatchSubscriptions adds every root (recursively) to the fsnotify
// watcher and rescans whichever roots saw activity, debounced, until ctx is
// canceled. New subdirectories are picked up and added as they appear.
func (w *FsNotifyWatcher) SetupWatchSubscriptions(ctx context.Context, roots []string, onBatch BatchHandler, dryRun bool) error {
	w.mu.Lock()
	fw := w.fw
	w.mu.Unlock()

	if fw == nil {
		return errors.New("watcher: SetupWatchSubscriptions called before Connect")
	}

	rootOf := make(map[string]string, len(roots))

	for _, root := range roots {
		if err := addRecursive(fw, root); err != nil {
			return fmt.Errorf("watcher: watching %s: %w", root, err)
		}

		rootOf[root] = root
	}

	dirty := make(map[string]bool)
	timer := time.NewTimer(debounceInterval)
	defer timer.Stop()

	if !timer.Stop() {
		<-timer.C
	}

	armed := false

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-fw.Events():
			if !ok {
				return nil
			}

			if root := rootContaining(roots, ev.Name); root != "" {
				dirty[root] = true

				if !armed {
					timer.Reset(debounceInterval)
					armed = true
				}
			}

		case err, ok := <-fw.Errors():
			if !ok {
				return nil
			}

			w.logger.Error("fsnotify error", slog.String("error", err.Error()))

		case <-timer.C:
			armed = false

			for root := range dirty {
				delete(dirty, root)

				if _, err := w.rescan(ctx, root, onBatch, dryRun); err != nil {
					return err
				}

				if err := addRecursive(fw, root); err != nil {
					w.logger.Error("re-adding watches", slog.String("root", root), slog.String("error", err.Error()))
				}
			}
		}
	}
}

// rescan diffs root's current state against its persisted snapshot,
// delivers the resulting batch (if any), and, unless dryRun, persists the
// new snapshot as root's Clock token.
func (w *FsNotifyWatcher) rescan(ctx context.Context, root string, onBatch BatchHandler, dryRun bool) (int, error) {
	current, err := scanRoot(root)
	if err != nil {
		return 0, fmt.Errorf("watcher: scanning %s: %w", root, err)
	}

	var prev snapshot

	err = w.store.WithTx(ctx, func(tx *store.Tx) error {
		c, err := tx.GetClock(root)
		if errors.Is(err, store.ErrNotFound) {
			prev = snapshot{}
			return nil
		}

		if err != nil {
			return err
		}

		prev = decodeSnapshot(c.ClockToken)

		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("watcher: reading clock for %s: %w", root, err)
	}

	batch := diffSnapshots(root, prev, current)

	if len(batch) > 0 {
		if err := onBatch(ctx, batch, dryRun); err != nil {
			return 0, err
		}
	}

	if dryRun {
		return len(batch), nil
	}

	token, err := current.encode()
	if err != nil {
		return len(batch), err
	}

	err = w.store.WithTx(ctx, func(tx *store.Tx) error {
		return tx.PutClock(root, token)
	})
	if err != nil {
		return len(batch), fmt.Errorf("watcher: persisting clock for %s: %w", root, err)
	}

	return len(batch), nil
}

// addRecursive adds root and every subdirectory beneath it to fw, so
// fsnotify reports events from nested directories (it does not watch
// recursively on its own).
func addRecursive(fw FsWatcher, root string) error {
	current, err := scanRoot(root)
	if err != nil {
		return err
	}

	if err := fw.Add(root); err != nil {
		return fmt.Errorf("watcher: adding %s: %w", root, err)
	}

	for rel, entry := range current {
		if entry.IsDir {
			if err := fw.Add(filepath.Join(root, filepath.FromSlash(rel))); err != nil {
				return fmt.Errorf("watcher: adding %s: %w", rel, err)
			}
		}
	}

	return nil
}

// rootContaining returns whichever configured root is an ancestor of path,
// or "" if none is.
func rootContaining(roots []string, path string) string {
	for _, root := range roots {
		if path == root {
			return root
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			continue
		}

		if rel != "." && !strings.HasPrefix(rel, "..") {
			return root
		}
	}

	return ""
}

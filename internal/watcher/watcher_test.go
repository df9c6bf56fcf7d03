package watcher_test

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/cloudsync/syncd/internal/store"
	"github.com/cloudsync/syncd/internal/watcher"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func openTestStore(t *testing.T) *store.Store {
	t.Helper()

	s, err := store.Open(context.Background(), filepath.Join(t.TempDir(), "sync.db"), discardLogger())
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}

	t.Cleanup(func() { s.Close() })

	return s
}

func TestFsNotifyWatcher_QueryAllChangesReportsNewFileThenSettles(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()

	if err := os.WriteFile(filepath.Join(root, "a.txt"), []byte("hello"), 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	s := openTestStore(t)
	w := watcher.New(s, discardLogger())

	if err := w.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer w.Close()

	var gotBatches []watcher.Batch

	collect := func(_ context.Context, batch watcher.Batch, _ bool) error {
		gotBatches = append(gotBatches, batch)
		return nil
	}

	n, err := w.QueryAllChanges(ctx, []string{root}, collect, false)
	if err != nil {
		t.Fatalf("QueryAllChanges: %v", err)
	}

	if n != 1 {
		t.Fatalf("events = %d, want 1", n)
	}

	if len(gotBatches) != 1 || len(gotBatches[0]) != 1 {
		t.Fatalf("unexpected batches: %#v", gotBatches)
	}

	ev := gotBatches[0][0]
	if ev.Name != "a.txt" || !ev.Exists || !ev.New || ev.Type != watcher.EntryFile {
		t.Errorf("unexpected event: %#v", ev)
	}

	// Second pass against the now-persisted snapshot sees nothing new.
	n, err = w.QueryAllChanges(ctx, []string{root}, collect, false)
	if err != nil {
		t.Fatalf("QueryAllChanges (second pass): %v", err)
	}

	if n != 0 {
		t.Fatalf("events on settled tree = %d, want 0", n)
	}
}

func TestFsNotifyWatcher_DryRunDoesNotPersistClock(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()

	if err := os.WriteFile(filepath.Join(root, "a.txt"), []byte("hello"), 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	s := openTestStore(t)
	w := watcher.New(s, discardLogger())

	if err := w.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer w.Close()

	noop := func(_ context.Context, _ watcher.Batch, _ bool) error { return nil }

	if _, err := w.QueryAllChanges(ctx, []string{root}, noop, true); err != nil {
		t.Fatalf("QueryAllChanges (dry run): %v", err)
	}

	// Nothing was persisted, so a real pass still reports the file as new.
	n, err := w.QueryAllChanges(ctx, []string{root}, noop, false)
	if err != nil {
		t.Fatalf("QueryAllChanges: %v", err)
	}

	if n != 1 {
		t.Fatalf("events after dry run = %d, want 1 (clock should not have been persisted)", n)
	}
}

package engine_test

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/cloudsync/syncd/internal/engine"
	"github.com/cloudsync/syncd/internal/remote/remotetest"
	"github.com/cloudsync/syncd/internal/store"
	"github.com/cloudsync/syncd/internal/watcher"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// stubWatcher replays its one canned batch once per QueryAllChanges call,
// whatever roots it is given, and blocks in SetupWatchSubscriptions until
// canceled, enough to exercise
// Engine.RunOnce/RunWatch without a real filesystem watch.
type stubWatcher struct {
	batch watcher.Batch
}

func (w *stubWatcher) Connect(ctx context.Context) error { return nil }
func (w *stubWatcher) Close() error                      { return nil }

func (w *stubWatcher) QueryAllChanges(ctx context.Context, roots []string, onBatch watcher.BatchHandler, dryRun bool) (int, error) {
	if err := onBatch(ctx, w.batch, dryRun); err != nil {
		return 0, err
	}

	return len(w.batch), nil
}

func (w *stubWatcher) SetupWatchSubscriptions(ctx context.Context, roots []string, onBatch watcher.BatchHandler, dryRun bool) error {
	<-ctx.Done()

	return nil
}

func TestEngine_RunOnceTranslatesAndDrains(t *testing.T) {
	ctx := context.Background()

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.txt"), []byte("hello"), 0o644); err != nil {
		t.Fatalf("writing fixture file: %v", err)
	}

	s, err := store.Open(ctx, filepath.Join(t.TempDir(), "sync.db"), discardLogger())
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	defer s.Close()

	w := &stubWatcher{
		batch: watcher.Batch{
			{WatchRoot: dir, Name: "a.txt", Exists: true, New: true, Type: watcher.EntryFile, SHA1Hex: "h1"},
		},
	}

	fake := remotetest.New()

	e := engine.New(s, fake, w, engine.Config{
		Dirs:            []engine.WatchedDir{{LocalRoot: dir, RemoteRoot: ""}},
		SyncConcurrency: 2,
	}, discardLogger())

	if err := e.RunOnce(ctx, false); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}

	err = s.WithTx(ctx, func(tx *store.Tx) error {
		m, err := tx.GetNodeMapping(filepath.Join(dir, "a.txt"))
		if err != nil {
			return err
		}

		if m.NodeUID == "" {
			t.Error("node mapping has empty NodeUID after RunOnce")
		}

		h, err := tx.GetFileHash(filepath.Join(dir, "a.txt"))
		if err != nil {
			return err
		}

		if h.ContentHash != "h1" {
			t.Errorf("file hash = %s, want h1", h.ContentHash)
		}

		return nil
	})
	if err != nil {
		t.Fatalf("verifying: %v", err)
	}
}

func TestEngine_RunOnceDryRunEnqueuesAndDispatchesNothing(t *testing.T) {
	ctx := context.Background()

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.txt"), []byte("hello"), 0o644); err != nil {
		t.Fatalf("writing fixture file: %v", err)
	}

	s, err := store.Open(ctx, filepath.Join(t.TempDir(), "sync.db"), discardLogger())
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	defer s.Close()

	w := &stubWatcher{
		batch: watcher.Batch{
			{WatchRoot: dir, Name: "a.txt", Exists: true, New: true, Type: watcher.EntryFile, SHA1Hex: "h1"},
		},
	}

	e := engine.New(s, remotetest.New(), w, engine.Config{
		Dirs:            []engine.WatchedDir{{LocalRoot: dir, RemoteRoot: ""}},
		SyncConcurrency: 1,
	}, discardLogger())

	if err := e.RunOnce(ctx, true); err != nil {
		t.Fatalf("RunOnce (dry run): %v", err)
	}

	has, err := s.HasPendingJob(ctx)
	if err != nil {
		t.Fatalf("HasPendingJob: %v", err)
	}

	if has {
		t.Error("dry run left a pending job enqueued")
	}
}

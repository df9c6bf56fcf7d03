package translator_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/cloudsync/syncd/internal/store"
	"github.com/cloudsync/syncd/internal/translator"
	"github.com/cloudsync/syncd/internal/watcher"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func openTestStore(t *testing.T) *store.Store {
	t.Helper()

	dir := t.TempDir()
	s, err := store.Open(context.Background(), filepath.Join(dir, "sync.db"), discardLogger())
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}

	t.Cleanup(func() { _ = s.Close() })

	return s
}

func pendingJobs(t *testing.T, s *store.Store) []*store.SyncJob {
	t.Helper()

	ctx := context.Background()

	var jobs []*store.SyncJob

	for {
		j, err := s.NextPendingJob(ctx)
		if err != nil {
			t.Fatalf("draining pending jobs: %v", err)
		}

		if j == nil {
			break
		}

		jobs = append(jobs, j)
	}

	return jobs
}

// A delete/create pair sharing an inode, with a node mapping present and
// an unchanged parent directory, becomes a single RENAME.
func TestTranslate_RenameWithinDirectory(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	err := s.WithTx(ctx, func(tx *store.Tx) error {
		return tx.PutNodeMapping(store.NodeMapping{
			LocalPath:     "/w/a.txt",
			RemotePath:    "w/a.txt",
			NodeUID:       "uid-1",
			ParentNodeUID: "p-1",
			IsDirectory:   false,
		})
	})
	if err != nil {
		t.Fatalf("seeding node mapping: %v", err)
	}

	tr := translator.New(s, []translator.WatchedDir{{LocalRoot: "/w", RemoteRoot: ""}}, discardLogger())

	batch := watcher.Batch{
		{WatchRoot: "/w", Name: "a.txt", Exists: false, Ino: 42},
		{WatchRoot: "/w", Name: "b.txt", Exists: true, New: true, Ino: 42, Type: watcher.EntryFile, SHA1Hex: "h1"},
	}

	if err := tr.Translate(ctx, batch, false); err != nil {
		t.Fatalf("Translate: %v", err)
	}

	jobs := pendingJobs(t, s)
	if len(jobs) != 1 {
		t.Fatalf("got %d jobs, want 1 (no DELETE/CREATE pair): %+v", len(jobs), jobs)
	}

	j := jobs[0]
	if j.EventType != store.EventRename {
		t.Errorf("EventType = %s, want RENAME", j.EventType)
	}

	if j.OldLocalPath != "/w/a.txt" || j.LocalPath != "/w/b.txt" || j.ContentHash != "h1" {
		t.Errorf("job fields = %+v, want oldLocalPath=/w/a.txt localPath=/w/b.txt hash=h1", j)
	}
}

// A delete/create pair sharing an inode but lacking a node mapping falls
// back to DELETE+CREATE.
func TestTranslate_MoveWithoutMappingFallsBackToDeleteCreate(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	tr := translator.New(s, []translator.WatchedDir{{LocalRoot: "/w", RemoteRoot: ""}}, discardLogger())

	batch := watcher.Batch{
		{WatchRoot: "/w", Name: "sub1/x", Exists: false, Ino: 7, Type: watcher.EntryFile},
		{WatchRoot: "/w", Name: "sub2/x", Exists: true, New: true, Ino: 7, Type: watcher.EntryFile, SHA1Hex: "h2"},
	}

	if err := tr.Translate(ctx, batch, false); err != nil {
		t.Fatalf("Translate: %v", err)
	}

	jobs := pendingJobs(t, s)
	if len(jobs) != 2 {
		t.Fatalf("got %d jobs, want 2 (DELETE + CREATE): %+v", len(jobs), jobs)
	}

	var sawDelete, sawCreate bool

	for _, j := range jobs {
		switch j.EventType {
		case store.EventDelete:
			sawDelete = true

			if j.LocalPath != "/w/sub1/x" {
				t.Errorf("delete job localPath = %s, want /w/sub1/x", j.LocalPath)
			}
		case store.EventCreate:
			sawCreate = true

			if j.LocalPath != "/w/sub2/x" || j.ContentHash != "h2" {
				t.Errorf("create job = %+v, want localPath=/w/sub2/x hash=h2", j)
			}
		default:
			t.Errorf("unexpected event type %s", j.EventType)
		}
	}

	if !sawDelete || !sawCreate {
		t.Errorf("sawDelete=%v sawCreate=%v, want both true", sawDelete, sawCreate)
	}
}

// An update whose content hash matches the stored hash enqueues nothing.
func TestTranslate_UpdateWithUnchangedContentIsNoOp(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	err := s.WithTx(ctx, func(tx *store.Tx) error {
		return tx.PutFileHash("/w/f", "h3")
	})
	if err != nil {
		t.Fatalf("seeding file hash: %v", err)
	}

	tr := translator.New(s, []translator.WatchedDir{{LocalRoot: "/w", RemoteRoot: ""}}, discardLogger())

	batch := watcher.Batch{
		{WatchRoot: "/w", Name: "f", Exists: true, New: false, Type: watcher.EntryFile, SHA1Hex: "h3"},
	}

	if err := tr.Translate(ctx, batch, false); err != nil {
		t.Fatalf("Translate: %v", err)
	}

	jobs := pendingJobs(t, s)
	if len(jobs) != 0 {
		t.Fatalf("got %d jobs, want 0 (unchanged content)", len(jobs))
	}
}

func TestTranslate_UpdateWithChangedContentEnqueuesUpdate(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	err := s.WithTx(ctx, func(tx *store.Tx) error {
		return tx.PutFileHash("/w/f", "h3")
	})
	if err != nil {
		t.Fatalf("seeding file hash: %v", err)
	}

	tr := translator.New(s, []translator.WatchedDir{{LocalRoot: "/w", RemoteRoot: ""}}, discardLogger())

	batch := watcher.Batch{
		{WatchRoot: "/w", Name: "f", Exists: true, New: false, Type: watcher.EntryFile, SHA1Hex: "h4"},
	}

	if err := tr.Translate(ctx, batch, false); err != nil {
		t.Fatalf("Translate: %v", err)
	}

	jobs := pendingJobs(t, s)
	if len(jobs) != 1 || jobs[0].EventType != store.EventUpdate || jobs[0].ContentHash != "h4" {
		t.Fatalf("jobs = %+v, want one UPDATE with hash h4", jobs)
	}
}

func TestTranslate_DirectoryUpdateIgnored(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	tr := translator.New(s, []translator.WatchedDir{{LocalRoot: "/w", RemoteRoot: ""}}, discardLogger())

	batch := watcher.Batch{
		{WatchRoot: "/w", Name: "dir", Exists: true, New: false, Type: watcher.EntryDir},
	}

	if err := tr.Translate(ctx, batch, false); err != nil {
		t.Fatalf("Translate: %v", err)
	}

	if jobs := pendingJobs(t, s); len(jobs) != 0 {
		t.Fatalf("got %d jobs, want 0 (directory metadata-only change ignored)", len(jobs))
	}
}

// Deleting a directory purges all FileHash and NodeMapping rows strictly
// below it.
func TestTranslate_DirectoryDeletePurgesDescendants(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	err := s.WithTx(ctx, func(tx *store.Tx) error {
		if err := tx.PutFileHash("/w/dir/a.txt", "ha"); err != nil {
			return err
		}

		if err := tx.PutNodeMapping(store.NodeMapping{
			LocalPath: "/w/dir/a.txt", RemotePath: "w/dir/a.txt", NodeUID: "uid-a", ParentNodeUID: "p",
		}); err != nil {
			return err
		}

		return tx.PutNodeMapping(store.NodeMapping{
			LocalPath: "/w/dir", RemotePath: "w/dir", NodeUID: "uid-dir", ParentNodeUID: "p", IsDirectory: true,
		})
	})
	if err != nil {
		t.Fatalf("seeding: %v", err)
	}

	tr := translator.New(s, []translator.WatchedDir{{LocalRoot: "/w", RemoteRoot: ""}}, discardLogger())

	batch := watcher.Batch{
		{WatchRoot: "/w", Name: "dir", Exists: false, Type: watcher.EntryDir},
	}

	if err := tr.Translate(ctx, batch, false); err != nil {
		t.Fatalf("Translate: %v", err)
	}

	err = s.WithTx(ctx, func(tx *store.Tx) error {
		if _, err := tx.GetFileHash("/w/dir/a.txt"); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("descendant file hash still present: err=%v", err)
		}

		if _, err := tx.GetNodeMapping("/w/dir/a.txt"); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("descendant node mapping still present: err=%v", err)
		}

		// The directory's own NodeMapping must survive the translator step:
		// the executor consumes it to resolve the remote folder to delete.
		if _, err := tx.GetNodeMapping("/w/dir"); err != nil {
			t.Errorf("directory's own node mapping was purged prematurely: %v", err)
		}

		return nil
	})
	if err != nil {
		t.Fatalf("verifying: %v", err)
	}

	jobs := pendingJobs(t, s)
	if len(jobs) != 1 || jobs[0].EventType != store.EventDelete || jobs[0].LocalPath != "/w/dir" {
		t.Fatalf("jobs = %+v, want one DELETE for /w/dir", jobs)
	}
}

// Idempotence law: enqueuing the same event twice produces one
// PENDING job.
func TestTranslate_IdempotentCreate(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	tr := translator.New(s, []translator.WatchedDir{{LocalRoot: "/w", RemoteRoot: ""}}, discardLogger())

	batch := watcher.Batch{
		{WatchRoot: "/w", Name: "f", Exists: true, New: true, Type: watcher.EntryFile, SHA1Hex: "h1"},
	}

	if err := tr.Translate(ctx, batch, false); err != nil {
		t.Fatalf("Translate (1st): %v", err)
	}

	if err := tr.Translate(ctx, batch, false); err != nil {
		t.Fatalf("Translate (2nd): %v", err)
	}

	jobs := pendingJobs(t, s)
	if len(jobs) != 1 {
		t.Fatalf("got %d jobs, want 1 (idempotent re-enqueue)", len(jobs))
	}
}

// A dry run must not touch FileHash/NodeMapping bookkeeping either: a
// delete event leaves every row for the path in place.
func TestTranslate_DryRunPreservesHashesAndMappings(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	err := s.WithTx(ctx, func(tx *store.Tx) error {
		if err := tx.PutFileHash("/w/f", "h1"); err != nil {
			return err
		}

		return tx.PutNodeMapping(store.NodeMapping{
			LocalPath: "/w/f", RemotePath: "w/f", NodeUID: "uid-f", ParentNodeUID: "p",
		})
	})
	if err != nil {
		t.Fatalf("seeding: %v", err)
	}

	tr := translator.New(s, []translator.WatchedDir{{LocalRoot: "/w", RemoteRoot: ""}}, discardLogger())

	batch := watcher.Batch{
		{WatchRoot: "/w", Name: "f", Exists: false, Type: watcher.EntryFile},
	}

	if err := tr.Translate(ctx, batch, true); err != nil {
		t.Fatalf("Translate (dry run): %v", err)
	}

	err = s.WithTx(ctx, func(tx *store.Tx) error {
		if _, err := tx.GetFileHash("/w/f"); err != nil {
			t.Errorf("file hash purged by dry run: %v", err)
		}

		if _, err := tx.GetNodeMapping("/w/f"); err != nil {
			t.Errorf("node mapping purged by dry run: %v", err)
		}

		return nil
	})
	if err != nil {
		t.Fatalf("verifying: %v", err)
	}

	if jobs := pendingJobs(t, s); len(jobs) != 0 {
		t.Fatalf("got %d jobs, want 0 in dry run", len(jobs))
	}
}

func TestTranslate_DryRunEnqueuesNothing(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	tr := translator.New(s, []translator.WatchedDir{{LocalRoot: "/w", RemoteRoot: ""}}, discardLogger())

	batch := watcher.Batch{
		{WatchRoot: "/w", Name: "f", Exists: true, New: true, Type: watcher.EntryFile, SHA1Hex: "h1"},
	}

	if err := tr.Translate(ctx, batch, true); err != nil {
		t.Fatalf("Translate: %v", err)
	}

	if jobs := pendingJobs(t, s); len(jobs) != 0 {
		t.Fatalf("got %d jobs, want 0 in dry run", len(jobs))
	}
}

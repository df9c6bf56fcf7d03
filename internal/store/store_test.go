package store_test

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cloudsync/syncd/internal/store"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func openTestStore(t *testing.T) *store.Store {
	t.Helper()

	dir := t.TempDir()
	s, err := store.Open(context.Background(), filepath.Join(dir, "sync.db"), discardLogger())
	require.NoError(t, err)

	t.Cleanup(func() { _ = s.Close() })

	return s
}

func TestEnqueueJobUpsertsActiveKey(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	err := s.EnqueueJob(ctx, store.EnqueueParams{
		EventType:   store.EventCreate,
		LocalPath:   "/watch/a.txt",
		RemotePath:  "/remote/a.txt",
		ContentHash: "hash1",
	})
	require.NoError(t, err)

	err = s.EnqueueJob(ctx, store.EnqueueParams{
		EventType:   store.EventUpdate,
		LocalPath:   "/watch/a.txt",
		RemotePath:  "/remote/a.txt",
		ContentHash: "hash2",
	})
	require.NoError(t, err)

	job, err := s.NextPendingJob(ctx)
	require.NoError(t, err)
	require.NotNil(t, job)
	require.Equal(t, store.EventUpdate, job.EventType)
	require.Equal(t, "hash2", job.ContentHash)

	// Leasing the only ready job must empty the queue.
	next, err := s.NextPendingJob(ctx)
	require.NoError(t, err)
	require.Nil(t, next)
}

func TestEnqueueJobAllowsNewRowAfterTerminal(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.EnqueueJob(ctx, store.EnqueueParams{
		EventType:  store.EventCreate,
		LocalPath:  "/watch/a.txt",
		RemotePath: "/remote/a.txt",
	}))

	job, err := s.NextPendingJob(ctx)
	require.NoError(t, err)
	require.NotNil(t, job)

	require.NoError(t, s.MarkJobSynced(ctx, job.ID))

	// Same key, now terminal: a fresh enqueue must create a new row, not
	// collide with the partial unique index.
	require.NoError(t, s.EnqueueJob(ctx, store.EnqueueParams{
		EventType:  store.EventUpdate,
		LocalPath:  "/watch/a.txt",
		RemotePath: "/remote/a.txt",
	}))

	second, err := s.NextPendingJob(ctx)
	require.NoError(t, err)
	require.NotNil(t, second)
	require.NotEqual(t, job.ID, second.ID)
}

func TestResetProcessingJobsOnStartup(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.EnqueueJob(ctx, store.EnqueueParams{
		EventType:  store.EventCreate,
		LocalPath:  "/watch/a.txt",
		RemotePath: "/remote/a.txt",
	}))

	job, err := s.NextPendingJob(ctx)
	require.NoError(t, err)
	require.NotNil(t, job)
	require.Equal(t, store.StatusProcessing, job.Status)

	n, err := s.ResetProcessingJobs(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	recovered, err := s.NextPendingJob(ctx)
	require.NoError(t, err)
	require.NotNil(t, recovered)
	require.Equal(t, job.ID, recovered.ID)
}

func TestScheduleRetryDefersUntilRetryAt(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.EnqueueJob(ctx, store.EnqueueParams{
		EventType:  store.EventCreate,
		LocalPath:  "/watch/a.txt",
		RemotePath: "/remote/a.txt",
	}))

	job, err := s.NextPendingJob(ctx)
	require.NoError(t, err)

	future := time.Now().Add(time.Hour)
	require.NoError(t, s.ScheduleRetry(ctx, job.ID, 1, future, "network unreachable"))

	none, err := s.NextPendingJob(ctx)
	require.NoError(t, err)
	require.Nil(t, none)
}

func TestFlagsRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	set, err := s.IsFlagSet(ctx, "PAUSED")
	require.NoError(t, err)
	require.False(t, set)

	require.NoError(t, s.SetFlag(ctx, "PAUSED"))

	set, err = s.IsFlagSet(ctx, "PAUSED")
	require.NoError(t, err)
	require.True(t, set)

	require.NoError(t, s.ClearFlag(ctx, "PAUSED"))

	set, err = s.IsFlagSet(ctx, "PAUSED")
	require.NoError(t, err)
	require.False(t, set)
}

func TestSignalsConsumedAtMostOnce(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SendSignal(ctx, "RECHECK_CONFIG"))
	require.NoError(t, s.SendSignal(ctx, "SHUTDOWN"))

	counts, err := s.PopSignalsForNames(ctx, []string{"RECHECK_CONFIG", "SHUTDOWN"})
	require.NoError(t, err)
	require.Equal(t, map[string]int{"RECHECK_CONFIG": 1, "SHUTDOWN": 1}, counts)

	counts, err = s.PopSignalsForNames(ctx, []string{"RECHECK_CONFIG", "SHUTDOWN"})
	require.NoError(t, err)
	require.Equal(t, map[string]int{"RECHECK_CONFIG": 0, "SHUTDOWN": 0}, counts)
}

func TestDeleteOutsideRootsPrunesDroppedDirectories(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	err := s.WithTx(ctx, func(tx *store.Tx) error {
		if err := tx.PutFileHash("/watch/kept/a.txt", "h1"); err != nil {
			return err
		}

		if err := tx.PutFileHash("/watch/dropped/b.txt", "h2"); err != nil {
			return err
		}

		if err := tx.PutNodeMapping(store.NodeMapping{
			LocalPath: "/watch/kept/a.txt", RemotePath: "kept/a.txt", NodeUID: "uid-a",
		}); err != nil {
			return err
		}

		return tx.PutNodeMapping(store.NodeMapping{
			LocalPath: "/watch/dropped/b.txt", RemotePath: "dropped/b.txt", NodeUID: "uid-b",
		})
	})
	require.NoError(t, err)

	err = s.WithTx(ctx, func(tx *store.Tx) error {
		if err := tx.DeleteFileHashesOutsideRoots([]string{"/watch/kept"}); err != nil {
			return err
		}

		return tx.DeleteNodeMappingsOutsideRoots([]string{"/watch/kept"})
	})
	require.NoError(t, err)

	err = s.WithTx(ctx, func(tx *store.Tx) error {
		_, err := tx.GetFileHash("/watch/kept/a.txt")
		require.NoError(t, err)

		_, err = tx.GetFileHash("/watch/dropped/b.txt")
		require.ErrorIs(t, err, store.ErrNotFound)

		_, err = tx.GetNodeMapping("/watch/kept/a.txt")
		require.NoError(t, err)

		_, err = tx.GetNodeMapping("/watch/dropped/b.txt")
		require.ErrorIs(t, err, store.ErrNotFound)

		return nil
	})
	require.NoError(t, err)
}

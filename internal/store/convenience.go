package store

import (
	"context"
	"time"
)

// Convenience wrappers run a single *Tx operation inside its own
// transaction, for callers that don't need to batch several writes
// atomically.

// EnqueueJob upserts a job outside any caller-managed transaction.
func (s *Store) EnqueueJob(ctx context.Context, p EnqueueParams) error {
	return s.WithTx(ctx, func(t *Tx) error {
		return t.EnqueueJob(p)
	})
}

// NextPendingJob fetches and leases the next ready job in one transaction.
// Returns nil, nil if none is ready.
func (s *Store) NextPendingJob(ctx context.Context) (*SyncJob, error) {
	var job *SyncJob

	err := s.WithTx(ctx, func(t *Tx) error {
		j, err := t.NextPendingJob()
		if err != nil || j == nil {
			return err
		}

		if err := t.LeaseJob(j.ID); err != nil {
			return err
		}

		j.Status = StatusProcessing
		job = j

		return nil
	})
	if err != nil {
		return nil, err
	}

	return job, nil
}

// MarkJobSynced marks a job SYNCED outside any caller-managed transaction.
func (s *Store) MarkJobSynced(ctx context.Context, id int64) error {
	return s.WithTx(ctx, func(t *Tx) error {
		return t.MarkJobSynced(id)
	})
}

// MarkJobBlocked marks a job BLOCKED outside any caller-managed transaction.
func (s *Store) MarkJobBlocked(ctx context.Context, id int64, lastErr string) error {
	return s.WithTx(ctx, func(t *Tx) error {
		return t.MarkJobBlocked(id, lastErr)
	})
}

// ScheduleRetry returns a job to PENDING with updated retry bookkeeping.
func (s *Store) ScheduleRetry(ctx context.Context, id int64, nRetries int, retryAt time.Time, lastErr string) error {
	return s.WithTx(ctx, func(t *Tx) error {
		return t.ScheduleRetry(id, nRetries, retryAt, lastErr)
	})
}

// ResetProcessingJobs resets every PROCESSING job to PENDING, for startup
// crash recovery.
func (s *Store) ResetProcessingJobs(ctx context.Context) (int64, error) {
	var n int64

	err := s.WithTx(ctx, func(t *Tx) error {
		reset, err := t.ResetProcessingJobs()
		n = reset

		return err
	})

	return n, err
}

// HasPendingJob reports whether at least one job is ready to run (PENDING
// with retry_at <= now), without leasing it. Used by the executor's Drain
// loop to decide whether to keep polling.
func (s *Store) HasPendingJob(ctx context.Context) (bool, error) {
	var has bool

	err := s.WithTx(ctx, func(t *Tx) error {
		j, err := t.NextPendingJob()
		has = j != nil

		return err
	})

	return has, err
}

// IsFlagSet reports whether name is currently set.
func (s *Store) IsFlagSet(ctx context.Context, name string) (bool, error) {
	var set bool

	err := s.WithTx(ctx, func(t *Tx) error {
		v, err := t.IsFlagSet(name)
		set = v

		return err
	})

	return set, err
}

// SetFlag sets the named flag outside any caller-managed transaction.
func (s *Store) SetFlag(ctx context.Context, name string) error {
	return s.WithTx(ctx, func(t *Tx) error {
		return t.SetFlag(name)
	})
}

// ClearFlag clears the named flag outside any caller-managed transaction.
func (s *Store) ClearFlag(ctx context.Context, name string) error {
	return s.WithTx(ctx, func(t *Tx) error {
		return t.ClearFlag(name)
	})
}

// SendSignal enqueues a signal outside any caller-managed transaction.
func (s *Store) SendSignal(ctx context.Context, name string) error {
	return s.WithTx(ctx, func(t *Tx) error {
		return t.SendSignal(name)
	})
}

// PopSignalsForNames consumes every pending signal whose name is in names,
// outside any caller-managed transaction, returning how many rows were
// consumed per name.
func (s *Store) PopSignalsForNames(ctx context.Context, names []string) (map[string]int, error) {
	var counts map[string]int

	err := s.WithTx(ctx, func(t *Tx) error {
		c, err := t.PopSignalsForNames(names)
		counts = c

		return err
	})

	return counts, err
}

// Package executor implements the Job Executor: a bounded-
// concurrency worker pool that dispatches PENDING SyncJobs against a
// remote.Client, classifies failures through internal/queue, and commits
// every terminal outcome (success or reschedule/block) in a single store
// transaction alongside the job's status change.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/cloudsync/syncd/internal/remote"
	"github.com/cloudsync/syncd/internal/store"
)

// Executor dispatches PENDING jobs with bounded concurrency. Concurrency
// is a live-updatable atomic integer read fresh on every Tick.
type Executor struct {
	store  *store.Store
	remote remote.Client
	logger *slog.Logger

	// roots maps each watched local root to its remote path prefix, needed
	// to resolve/create ancestor folders when a CREATE/MOVE target's parent
	// has never been synced (parent directories are auto-created on
	// demand).
	roots map[string]string

	capacity atomic.Int64

	mu     sync.Mutex
	active map[int64]struct{}
	done   chan int64
}

// New returns an Executor with the given initial concurrency. roots maps
// each watched local directory to its remote prefix
// (see internal/translator.WatchedDir; passed here as a plain map to avoid
// an import cycle between the two packages).
func New(s *store.Store, client remote.Client, roots map[string]string, logger *slog.Logger, concurrency int) *Executor {
	if logger == nil {
		logger = slog.Default()
	}

	if concurrency < 1 {
		concurrency = 1
	}

	e := &Executor{
		store:  s,
		remote: client,
		roots:  roots,
		logger: logger,
		active: make(map[int64]struct{}),
		done:   make(chan int64, 4096),
	}
	e.capacity.Store(int64(concurrency))

	return e
}

// SetConcurrency live-updates the pool's capacity, for config hot reload.
func (e *Executor) SetConcurrency(n int) {
	if n < 1 {
		n = 1
	}

	e.capacity.Store(int64(n))
}

// SetRoots live-updates the watch-root-to-remote-prefix map used to
// resolve/auto-create ancestor folders, for the engine's directory-set
// hot reload.
func (e *Executor) SetRoots(roots map[string]string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.roots = roots
}

// ActiveCount reports the number of in-flight job tasks.
func (e *Executor) ActiveCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()

	return len(e.active)
}

// Tick performs one scheduler pass: compute available slots, fetch and
// spawn up to that many pending jobs.
func (e *Executor) Tick(ctx context.Context) error {
	slots := int(e.capacity.Load()) - e.ActiveCount()

	for i := 0; i < slots; i++ {
		job, err := e.store.NextPendingJob(ctx)
		if err != nil {
			return fmt.Errorf("executor: fetching next pending job: %w", err)
		}

		if job == nil {
			return nil
		}

		e.spawn(ctx, job)
	}

	return nil
}

// Drain repeatedly ticks and waits until both the active set and the
// pending-job set are empty, for one-shot sync mode.
func (e *Executor) Drain(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err //nolint:wrapcheck // context cancellation, no extra context needed
		}

		if err := e.Tick(ctx); err != nil {
			return err
		}

		if e.ActiveCount() == 0 {
			has, err := e.store.HasPendingJob(ctx)
			if err != nil {
				return fmt.Errorf("executor: checking for pending jobs: %w", err)
			}

			if !has {
				return nil
			}

			continue
		}

		select {
		case <-e.done:
		case <-ctx.Done():
			return ctx.Err() //nolint:wrapcheck
		}
	}
}

func (e *Executor) spawn(ctx context.Context, job *store.SyncJob) {
	e.mu.Lock()
	e.active[job.ID] = struct{}{}
	e.mu.Unlock()

	go func() {
		defer func() {
			if r := recover(); r != nil {
				// The job row stays PROCESSING; startup cleanup resets it
				// to PENDING on next launch.
				e.logger.Error("job processing panicked",
					slog.Int64("job_id", job.ID), slog.Any("panic", r),
				)
			}

			e.mu.Lock()
			delete(e.active, job.ID)
			e.mu.Unlock()

			select {
			case e.done <- job.ID:
			default:
			}
		}()

		e.process(ctx, job)
	}()
}

// process dispatches one job to completion, converting any failure into a
// store transaction that reschedules or blocks it: the executor never
// propagates an error out of a worker task. A job whose
// failure history already marks it REUPLOAD_NEEDED past the self-heal
// threshold skips straight to the DELETE+CREATE heal instead of repeating
// the dispatch that is expected to fail the same way again.
func (e *Executor) process(ctx context.Context, job *store.SyncJob) {
	if needsSelfHeal(job) {
		if err := e.selfHeal(ctx, job); err != nil {
			// The recovery attempt's own failure is never reclassified as
			// another REUPLOAD_NEEDED: that would let a job alternate
			// between self-heal attempts forever. Downgrade to a standard
			// retry instead.
			e.handleFailureAsOther(ctx, job, err)
		}

		return
	}

	if err := e.dispatch(ctx, job); err != nil {
		e.handleFailure(ctx, job, err)
	}
}

func (e *Executor) dispatch(ctx context.Context, job *store.SyncJob) error {
	switch job.EventType {
	case store.EventDelete:
		return e.processDelete(ctx, job)
	case store.EventCreate, store.EventUpdate:
		return e.processCreateOrUpdate(ctx, job)
	case store.EventRename:
		return e.processRename(ctx, job)
	case store.EventMove:
		return e.processMove(ctx, job)
	default:
		return fmt.Errorf("executor: job %d has unrecognized event type %q", job.ID, job.EventType)
	}
}

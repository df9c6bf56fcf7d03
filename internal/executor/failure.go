package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cloudsync/syncd/internal/queue"
	"github.com/cloudsync/syncd/internal/store"
)

// needsSelfHeal reports whether job's recorded failure history already
// marks it REUPLOAD_NEEDED with enough prior attempts to heal proactively,
// rather than trying (and failing) the normal dispatch a third time.
func needsSelfHeal(job *store.SyncJob) bool {
	if job.LastError == "" {
		return false
	}

	return queue.ShouldSelfHeal(queue.Classify(errors.New(job.LastError)), job.NRetries)
}

// handleFailure classifies a dispatch error and schedules a retry or moves
// the job to BLOCKED. The proactive self-heal check happens
// before dispatch (see needsSelfHeal); a failure reaching here is handled
// with ordinary retry/block bookkeeping.
func (e *Executor) handleFailure(ctx context.Context, job *store.SyncJob, dispatchErr error) {
	e.scheduleOrBlock(ctx, job, dispatchErr, queue.Classify(dispatchErr))
}

// handleFailureAsOther schedules a retry or block using the standard OTHER
// schedule regardless of dispatchErr's content, bypassing queue.Classify.
// Used only for a self-heal recovery's own failure, so a remote that
// keeps signaling REUPLOAD_NEEDED can't bounce a job between self-heal
// attempts forever.
func (e *Executor) handleFailureAsOther(ctx context.Context, job *store.SyncJob, dispatchErr error) {
	e.scheduleOrBlock(ctx, job, dispatchErr, queue.CategoryOther)
}

func (e *Executor) scheduleOrBlock(ctx context.Context, job *store.SyncJob, failErr error, category queue.Category) {
	nextNRetries := job.NRetries + 1
	msg := failErr.Error()

	if queue.ShouldBlock(nextNRetries, category) {
		if err := e.store.MarkJobBlocked(ctx, job.ID, msg); err != nil {
			e.logger.Error("failed to mark job blocked",
				slog.Int64("job_id", job.ID), slog.String("error", err.Error()),
			)
		}

		return
	}

	retryAt := queue.NextRetryAt(time.Now(), nextNRetries, category)

	if err := e.store.ScheduleRetry(ctx, job.ID, nextNRetries, retryAt, msg); err != nil {
		e.logger.Error("failed to schedule job retry",
			slog.Int64("job_id", job.ID), slog.String("error", err.Error()),
		)
	}
}

// selfHeal implements the REUPLOAD_NEEDED recovery path: delete the
// stale remote node the cached NodeMapping points at (if
// any), clear the mapping, and re-upload fresh content at the job's target
// location, reusing the job's own row on success.
func (e *Executor) selfHeal(ctx context.Context, job *store.SyncJob) error {
	staleLocalPath := job.LocalPath
	if job.EventType == store.EventRename || job.EventType == store.EventMove {
		staleLocalPath = job.OldLocalPath
	}

	mapping, err := e.lookupMapping(ctx, staleLocalPath)
	if err != nil {
		return fmt.Errorf("self-heal: %w", err)
	}

	if mapping != nil {
		if err := e.deleteRemote(ctx, mapping.NodeUID); err != nil {
			return fmt.Errorf("self-heal: deleting stale remote node for %s: %w", staleLocalPath, err)
		}

		err := e.store.WithTx(ctx, func(tx *store.Tx) error {
			return tx.DeleteNodeMapping(staleLocalPath)
		})
		if err != nil {
			return fmt.Errorf("self-heal: clearing stale node mapping for %s: %w", staleLocalPath, err)
		}
	}

	recreate := *job
	recreate.EventType = store.EventCreate

	if err := e.processCreateOrUpdate(ctx, &recreate); err != nil {
		return fmt.Errorf("self-heal: re-creating %s: %w", job.LocalPath, err)
	}

	return nil
}

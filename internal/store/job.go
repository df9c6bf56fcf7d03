package store

import (
	"database/sql"
	"fmt"
	"time"
)

// EnqueueParams describes a job to enqueue. OldLocalPath/OldRemotePath are
// only meaningful (and required) for RENAME/MOVE.
type EnqueueParams struct {
	EventType     EventType
	LocalPath     string
	RemotePath    string
	ContentHash   string
	OldLocalPath  string
	OldRemotePath string
}

const sqlEnqueueJob = `
INSERT INTO sync_jobs
	(event_type, local_path, remote_path, status, retry_at, n_retries,
	 last_error, content_hash, old_local_path, old_remote_path, created_at)
VALUES (?, ?, ?, 'PENDING', ?, 0, NULL, ?, ?, ?, ?)
ON CONFLICT(local_path, remote_path) WHERE status IN ('PENDING', 'PROCESSING')
DO UPDATE SET
	event_type      = excluded.event_type,
	status          = 'PENDING',
	retry_at        = excluded.retry_at,
	n_retries       = 0,
	last_error      = NULL,
	content_hash    = excluded.content_hash,
	old_local_path  = excluded.old_local_path,
	old_remote_path = excluded.old_remote_path`

// EnqueueJob upserts a PENDING job for (LocalPath, RemotePath): if a
// non-terminal job already exists for that key, its fields are replaced
// (latest wins, retry counter reset).
func (t *Tx) EnqueueJob(p EnqueueParams) error {
	now := t.now().UnixNano()

	_, err := t.tx.Exec(sqlEnqueueJob,
		string(p.EventType), p.LocalPath, p.RemotePath, now,
		nullString(p.ContentHash), nullString(p.OldLocalPath), nullString(p.OldRemotePath),
		now,
	)
	if err != nil {
		return fmt.Errorf("store: enqueuing job for %s -> %s: %w", p.LocalPath, p.RemotePath, err)
	}

	return nil
}

const sqlSelectJobColumns = `id, event_type, local_path, remote_path, status,
	retry_at, n_retries, last_error, content_hash, old_local_path, old_remote_path, created_at`

func scanJob(s interface{ Scan(...any) error }) (*SyncJob, error) {
	var (
		j             SyncJob
		eventType     string
		status        string
		retryAt       int64
		lastError     sql.NullString
		contentHash   sql.NullString
		oldLocalPath  sql.NullString
		oldRemotePath sql.NullString
		createdAt     int64
	)

	err := s.Scan(
		&j.ID, &eventType, &j.LocalPath, &j.RemotePath, &status,
		&retryAt, &j.NRetries, &lastError, &contentHash, &oldLocalPath, &oldRemotePath, &createdAt,
	)
	if err != nil {
		return nil, err //nolint:wrapcheck // callers wrap with context
	}

	j.EventType = EventType(eventType)
	j.Status = JobStatus(status)
	j.RetryAt = time.Unix(0, retryAt)
	j.LastError = lastError.String
	j.ContentHash = contentHash.String
	j.OldLocalPath = oldLocalPath.String
	j.OldRemotePath = oldRemotePath.String
	j.CreatedAt = time.Unix(0, createdAt)

	return &j, nil
}

// NextPendingJob returns the PENDING job with the smallest RetryAt where
// RetryAt <= now, or nil if none is ready. The returned job
// is not yet marked PROCESSING; callers needing a lease should follow up
// with LeaseJob in the same transaction.
func (t *Tx) NextPendingJob() (*SyncJob, error) {
	row := t.tx.QueryRow(
		`SELECT `+sqlSelectJobColumns+` FROM sync_jobs
			WHERE status = 'PENDING' AND retry_at <= ?
			ORDER BY retry_at ASC LIMIT 1`,
		t.now().UnixNano(),
	)

	job, err := scanJob(row)
	if err == sql.ErrNoRows {
		return nil, nil //nolint:nilnil
	}

	if err != nil {
		return nil, fmt.Errorf("store: fetching next pending job: %w", err)
	}

	return job, nil
}

// LeaseJob transitions a job from PENDING to PROCESSING. Returns
// ErrNotFound if the job is no longer PENDING (e.g. a concurrent lease).
func (t *Tx) LeaseJob(id int64) error {
	res, err := t.tx.Exec(
		`UPDATE sync_jobs SET status = 'PROCESSING' WHERE id = ? AND status = 'PENDING'`,
		id,
	)
	if err != nil {
		return fmt.Errorf("store: leasing job %d: %w", id, err)
	}

	return requireRowsAffected(res, ErrNotFound, "store: leasing job %d", id)
}

// MarkJobSynced transitions a job to the terminal SYNCED state.
func (t *Tx) MarkJobSynced(id int64) error {
	_, err := t.tx.Exec(`UPDATE sync_jobs SET status = 'SYNCED', last_error = NULL WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("store: marking job %d synced: %w", id, err)
	}

	return nil
}

// MarkJobBlocked transitions a job to the terminal BLOCKED state, preserving
// lastErr for operator visibility.
func (t *Tx) MarkJobBlocked(id int64, lastErr string) error {
	_, err := t.tx.Exec(
		`UPDATE sync_jobs SET status = 'BLOCKED', last_error = ? WHERE id = ?`,
		lastErr, id,
	)
	if err != nil {
		return fmt.Errorf("store: blocking job %d: %w", id, err)
	}

	return nil
}

// ScheduleRetry returns a job to PENDING with an updated retry_at, n_retries,
// and last_error.
func (t *Tx) ScheduleRetry(id int64, nRetries int, retryAt time.Time, lastErr string) error {
	_, err := t.tx.Exec(
		`UPDATE sync_jobs
			SET status = 'PENDING', n_retries = ?, retry_at = ?, last_error = ?
			WHERE id = ?`,
		nRetries, retryAt.UnixNano(), lastErr, id,
	)
	if err != nil {
		return fmt.Errorf("store: scheduling retry for job %d: %w", id, err)
	}

	return nil
}

// ResetProcessingJobs resets every PROCESSING job to PENDING with retry_at
// = now. Called on startup for crash recovery: a process that died
// mid-execution leaves jobs PROCESSING forever otherwise. Returns the
// number of rows reset.
func (t *Tx) ResetProcessingJobs() (int64, error) {
	res, err := t.tx.Exec(
		`UPDATE sync_jobs SET status = 'PENDING', retry_at = ? WHERE status = 'PROCESSING'`,
		t.now().UnixNano(),
	)
	if err != nil {
		return 0, fmt.Errorf("store: resetting processing jobs: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("store: counting reset jobs: %w", err)
	}

	return n, nil
}

// GetJob fetches a job by ID.
func (t *Tx) GetJob(id int64) (*SyncJob, error) {
	row := t.tx.QueryRow(`SELECT `+sqlSelectJobColumns+` FROM sync_jobs WHERE id = ?`, id)

	job, err := scanJob(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("store: getting job %d: %w", id, err)
	}

	return job, nil
}

// requireRowsAffected returns sentinelErr (wrapped with a formatted
// message) if res reports zero rows affected.
func requireRowsAffected(res sql.Result, sentinelErr error, format string, args ...any) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf(format+": checking rows affected: %w", append(args, err)...)
	}

	if n == 0 {
		return fmt.Errorf(format+": %w", append(args, sentinelErr)...)
	}

	return nil
}

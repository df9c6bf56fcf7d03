package store

import "time"

// EventType is the kind of change a SyncJob propagates to the remote.
type EventType string

// Recognized event types.
const (
	EventCreate EventType = "CREATE"
	EventUpdate EventType = "UPDATE"
	EventDelete EventType = "DELETE"
	EventRename EventType = "RENAME"
	EventMove   EventType = "MOVE"
)

// JobStatus is the lifecycle state of a SyncJob.
type JobStatus string

// Recognized job statuses. SYNCED and BLOCKED are terminal.
const (
	StatusPending    JobStatus = "PENDING"
	StatusProcessing JobStatus = "PROCESSING"
	StatusSynced     JobStatus = "SYNCED"
	StatusBlocked    JobStatus = "BLOCKED"
)

// SyncJob is a single queued remote operation. Field invariants:
// (LocalPath, RemotePath) is unique across non-terminal jobs;
// RENAME/MOVE always set both Old* fields; DELETE never carries a ContentHash.
type SyncJob struct {
	ID            int64
	EventType     EventType
	LocalPath     string
	RemotePath    string
	Status        JobStatus
	RetryAt       time.Time
	NRetries      int
	LastError     string
	ContentHash   string
	OldLocalPath  string
	OldRemotePath string
	CreatedAt     time.Time
}

// FileHash is the last content hash successfully propagated to the remote
// for a local path. Suppresses redundant UPDATE jobs.
type FileHash struct {
	LocalPath   string
	ContentHash string
	UpdatedAt   time.Time
}

// NodeMapping translates a local path to the opaque remote node identifier
// needed for in-place RENAME/MOVE.
type NodeMapping struct {
	LocalPath     string
	RemotePath    string
	NodeUID       string
	ParentNodeUID string
	IsDirectory   bool
	UpdatedAt     time.Time
}

// Clock is the watcher's resumable per-directory cursor.
type Clock struct {
	WatchedDirectory string
	ClockToken       string
	UpdatedAt        time.Time
}

// Signal is one row of the durable, at-most-once-consumed signal queue.
type Signal struct {
	ID        int64
	Name      string
	CreatedAt time.Time
}

// Package remote defines the narrow capability interface the sync engine
// consumes to talk to the encrypted-node cloud storage backend.
// Authentication, crypto, chunked upload internals, and revision semantics
// live behind this boundary; the engine core never depends on them
// directly.
//
// No concrete production adapter ships in this package. Tests and the
// reference wiring in cmd/syncd use the in-memory fake in
// remote/remotetest.
package remote

import (
	"context"
	"io"
)

// Node is the remote representation of a file or folder: an opaque
// identifier plus the bits the engine needs to record in NodeMapping rows.
type Node struct {
	UID         string
	Name        string
	IsDirectory bool
}

// RelocateOptions describes a rename and/or reparent of an existing node.
// Both fields are optional; NewName alone is a same-directory rename,
// NewParentUID alone is a same-name move, both set is a move-and-rename.
type RelocateOptions struct {
	NewParentUID string
	NewName      string
}

// UploadMetadata carries the local file attributes the remote side wants
// at upload time (size for progress/chunking decisions, content hash for
// server-side verification).
type UploadMetadata struct {
	Size        int64
	ContentHash string
}

// UploadResult is what a completed upload yields: the node identity to
// persist into NodeMapping.
type UploadResult struct {
	NodeUID       string
	ParentNodeUID string
	IsDirectory   bool
}

// ProgressFunc is invoked periodically with cumulative bytes written.
type ProgressFunc func(written int64)

// UploadController is returned by Uploader.WriteStream once the transfer
// has started; Completion blocks until the remote side finishes processing
// the upload and returns the resulting node identity.
type UploadController interface {
	Completion(ctx context.Context) (UploadResult, error)
}

// Uploader streams local file content to the remote side, either creating
// a new node or a new revision of an existing one depending on which
// Client method produced it.
type Uploader interface {
	WriteStream(ctx context.Context, body io.Reader, progress ProgressFunc) (UploadController, error)
}

// NodeOutcome is one element of the per-node result stream TrashNodes and
// DeleteNodes return.
type NodeOutcome struct {
	UID string
	Err error
}

// Client is the capability the Job Executor dispatches remote operations
// against. Every method either succeeds or returns an error
// whose message the Job Queue classifies (internal/queue.Classify) to
// decide retry behavior; Client implementations are not expected to
// retry internally beyond what the transport layer already does.
type Client interface {
	// GetMyFilesRootFolder returns the root node of the user's remote tree.
	GetMyFilesRootFolder(ctx context.Context) (Node, error)

	// IterateFolderChildren streams every child of folderUID to fn. Callers
	// MUST drain the iteration fully even after finding what they were
	// looking for, because some backends only mark their directory listing cache
	// complete once the stream is exhausted. fn
	// returning an error stops iteration early and is propagated; callers
	// that want "stop early without failing" should track a match and
	// never return an error from fn, checking the tracked value after the
	// call returns (see FindNodeByName).
	IterateFolderChildren(ctx context.Context, folderUID string, fn func(Node) error) error

	// CreateFolder creates a new folder named name under parentUID.
	CreateFolder(ctx context.Context, parentUID, name string) (Node, error)

	// GetFileUploader prepares an uploader that creates a brand-new file
	// node named name under parentUID.
	GetFileUploader(ctx context.Context, parentUID, name string, meta UploadMetadata) (Uploader, error)

	// GetFileRevisionUploader prepares an uploader that replaces the
	// content of the existing file node uid.
	GetFileRevisionUploader(ctx context.Context, uid string, meta UploadMetadata) (Uploader, error)

	// TrashNodes moves the given nodes to trash (soft delete).
	TrashNodes(ctx context.Context, uids []string) []NodeOutcome

	// DeleteNodes permanently deletes the given nodes.
	DeleteNodes(ctx context.Context, uids []string) []NodeOutcome

	// RelocateNode renames and/or reparents an existing node in place.
	RelocateNode(ctx context.Context, uid string, opts RelocateOptions) error
}

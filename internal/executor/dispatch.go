package executor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"

	"github.com/cloudsync/syncd/internal/remote"
	"github.com/cloudsync/syncd/internal/store"
)

// processDelete implements the DELETE dispatch: resolve the
// job's NodeMapping, delete the remote node if one was ever recorded (a
// missing mapping means the path was never synced, so the delete is
// already satisfied), then clear the mapping and mark the job SYNCED.
func (e *Executor) processDelete(ctx context.Context, job *store.SyncJob) error {
	mapping, err := e.lookupMapping(ctx, job.LocalPath)
	if err != nil {
		return err
	}

	if mapping != nil {
		if err := e.deleteRemote(ctx, mapping.NodeUID); err != nil {
			return fmt.Errorf("executor: deleting remote node for %s: %w", job.LocalPath, err)
		}
	}

	return e.store.WithTx(ctx, func(tx *store.Tx) error {
		if err := tx.DeleteNodeMapping(job.LocalPath); err != nil {
			return err
		}

		return tx.MarkJobSynced(job.ID)
	})
}

// processCreateOrUpdate implements the CREATE and UPDATE dispatches:
// stream the local file to a fresh upload (CREATE, or
// UPDATE with no prior mapping) or a revision upload (UPDATE with an
// existing mapping), then persist the resulting node identity and content
// hash.
func (e *Executor) processCreateOrUpdate(ctx context.Context, job *store.SyncJob) error {
	file, err := os.Open(job.LocalPath)
	if err != nil {
		return fmt.Errorf("executor: opening %s: %w", job.LocalPath, err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return fmt.Errorf("executor: statting %s: %w", job.LocalPath, err)
	}

	mapping, err := e.lookupMapping(ctx, job.LocalPath)
	if err != nil {
		return err
	}

	meta := remote.UploadMetadata{Size: info.Size(), ContentHash: job.ContentHash}

	var uploader remote.Uploader

	if mapping != nil && job.EventType == store.EventUpdate {
		uploader, err = e.remote.GetFileRevisionUploader(ctx, mapping.NodeUID, meta)
		if err != nil {
			return fmt.Errorf("executor: preparing revision upload for %s: %w", job.LocalPath, err)
		}
	} else {
		parentUID, err := e.resolveParentUID(ctx, path.Dir(job.LocalPath))
		if err != nil {
			return fmt.Errorf("executor: resolving parent for %s: %w", job.LocalPath, err)
		}

		uploader, err = e.remote.GetFileUploader(ctx, parentUID, path.Base(job.LocalPath), meta)
		if err != nil {
			return fmt.Errorf("executor: preparing upload for %s: %w", job.LocalPath, err)
		}
	}

	result, err := e.runUpload(ctx, uploader, file)
	if err != nil {
		return fmt.Errorf("executor: uploading %s: %w", job.LocalPath, err)
	}

	return e.store.WithTx(ctx, func(tx *store.Tx) error {
		if err := tx.PutNodeMapping(store.NodeMapping{
			LocalPath:     job.LocalPath,
			RemotePath:    job.RemotePath,
			NodeUID:       result.NodeUID,
			ParentNodeUID: result.ParentNodeUID,
			IsDirectory:   result.IsDirectory,
		}); err != nil {
			return err
		}

		if err := tx.PutFileHash(job.LocalPath, job.ContentHash); err != nil {
			return err
		}

		return tx.MarkJobSynced(job.ID)
	})
}

func (e *Executor) runUpload(ctx context.Context, uploader remote.Uploader, file *os.File) (remote.UploadResult, error) {
	controller, err := uploader.WriteStream(ctx, file, nil)
	if err != nil {
		return remote.UploadResult{}, fmt.Errorf("writing upload stream: %w", err)
	}

	result, err := controller.Completion(ctx)
	if err != nil {
		return remote.UploadResult{}, fmt.Errorf("awaiting upload completion: %w", err)
	}

	return result, nil
}

// processRename implements the RENAME dispatch: relocate
// the existing node in place under its current parent and rewrite the
// mapping's path, leaving ParentNodeUID untouched.
func (e *Executor) processRename(ctx context.Context, job *store.SyncJob) error {
	mapping, err := e.requireMapping(ctx, job.OldLocalPath)
	if err != nil {
		return err
	}

	newName := path.Base(job.LocalPath)

	if err := e.remote.RelocateNode(ctx, mapping.NodeUID, remote.RelocateOptions{NewName: newName}); err != nil {
		return fmt.Errorf("executor: renaming %s to %s: %w", job.OldLocalPath, newName, err)
	}

	return e.store.WithTx(ctx, func(tx *store.Tx) error {
		if err := tx.UpdateNodeMappingPath(job.OldLocalPath, job.LocalPath, job.RemotePath); err != nil {
			return err
		}

		return tx.MarkJobSynced(job.ID)
	})
}

// processMove implements the MOVE dispatch: resolve the new
// parent's remote UID (auto-creating ancestor folders as needed), relocate
// the node, and rewrite both the path and parent UID in its mapping.
func (e *Executor) processMove(ctx context.Context, job *store.SyncJob) error {
	mapping, err := e.requireMapping(ctx, job.OldLocalPath)
	if err != nil {
		return err
	}

	newParentUID, err := e.resolveParentUID(ctx, path.Dir(job.LocalPath))
	if err != nil {
		return fmt.Errorf("executor: resolving new parent for %s: %w", job.LocalPath, err)
	}

	opts := remote.RelocateOptions{NewParentUID: newParentUID}
	if path.Base(job.OldLocalPath) != path.Base(job.LocalPath) {
		opts.NewName = path.Base(job.LocalPath)
	}

	if err := e.remote.RelocateNode(ctx, mapping.NodeUID, opts); err != nil {
		return fmt.Errorf("executor: moving %s to %s: %w", job.OldLocalPath, job.LocalPath, err)
	}

	return e.store.WithTx(ctx, func(tx *store.Tx) error {
		if err := tx.UpdateNodeMappingPathAndParent(job.OldLocalPath, job.LocalPath, job.RemotePath, newParentUID); err != nil {
			return err
		}

		return tx.MarkJobSynced(job.ID)
	})
}

// lookupMapping returns the NodeMapping for localPath, or nil if none
// exists (not an error; callers decide whether absence is fatal).
func (e *Executor) lookupMapping(ctx context.Context, localPath string) (*store.NodeMapping, error) {
	var mapping *store.NodeMapping

	err := e.store.WithTx(ctx, func(tx *store.Tx) error {
		m, err := tx.GetNodeMapping(localPath)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil
			}

			return err
		}

		mapping = m

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("executor: looking up node mapping for %s: %w", localPath, err)
	}

	return mapping, nil
}

// requireMapping is lookupMapping for dispatches that cannot proceed
// without one (RENAME/MOVE always operate on a previously-synced node).
func (e *Executor) requireMapping(ctx context.Context, localPath string) (*store.NodeMapping, error) {
	mapping, err := e.lookupMapping(ctx, localPath)
	if err != nil {
		return nil, err
	}

	if mapping == nil {
		return nil, fmt.Errorf("executor: no node mapping recorded for %s", localPath)
	}

	return mapping, nil
}

func (e *Executor) deleteRemote(ctx context.Context, nodeUID string) error {
	for _, outcome := range e.remote.DeleteNodes(ctx, []string{nodeUID}) {
		if outcome.Err != nil {
			return fmt.Errorf("node %s: %w", outcome.UID, outcome.Err)
		}
	}

	return nil
}

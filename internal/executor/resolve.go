package executor

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/cloudsync/syncd/internal/pathmap"
	"github.com/cloudsync/syncd/internal/remote"
	"github.com/cloudsync/syncd/internal/store"
)

// remotePathFor computes the remote path that corresponds to localDir,
// given the configured watch roots, using the same formula the translator
// applies to individual events. ok is false if localDir
// falls outside every configured root.
func (e *Executor) remotePathFor(localDir string) (watchRoot, remotePath string, ok bool) {
	e.mu.Lock()
	roots := e.roots
	e.mu.Unlock()

	for root, remoteRoot := range roots {
		if localDir == root {
			_, rp := pathmap.Map(root, remoteRoot, "")
			return root, rp, true
		}

		prefix := strings.TrimSuffix(root, "/") + "/"
		if strings.HasPrefix(localDir, prefix) {
			rel := strings.TrimPrefix(localDir, prefix)
			_, rp := pathmap.Map(root, remoteRoot, rel)

			return root, rp, true
		}
	}

	return "", "", false
}

// resolveParentUID returns the remote node UID of localDir, the local
// directory a CREATE/UPDATE/MOVE target lives in, creating any missing
// ancestor folders along the way. It consults NodeMapping first and only talks
// to the remote when a segment has never been synced.
func (e *Executor) resolveParentUID(ctx context.Context, localDir string) (string, error) {
	var uid string

	err := e.store.WithTx(ctx, func(tx *store.Tx) error {
		m, err := tx.GetNodeMapping(localDir)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil
			}

			return err
		}

		uid = m.NodeUID

		return nil
	})
	if err != nil {
		return "", fmt.Errorf("executor: looking up node mapping for %s: %w", localDir, err)
	}

	if uid != "" {
		return uid, nil
	}

	e.mu.Lock()
	_, isRoot := e.roots[localDir]
	e.mu.Unlock()

	if isRoot {
		return e.resolveWatchRoot(ctx, localDir)
	}

	parentUID, err := e.resolveParentUID(ctx, path.Dir(localDir))
	if err != nil {
		return "", err
	}

	name := path.Base(localDir)

	node, found, err := remote.FindNodeByName(ctx, e.remote, parentUID, name)
	if err != nil {
		return "", fmt.Errorf("executor: looking up remote folder %s under %s: %w", name, parentUID, err)
	}

	if !found {
		node, err = e.remote.CreateFolder(ctx, parentUID, name)
		if err != nil {
			return "", fmt.Errorf("executor: creating remote folder %s under %s: %w", name, parentUID, err)
		}
	}

	_, remotePath, _ := e.remotePathFor(localDir)

	err = e.store.WithTx(ctx, func(tx *store.Tx) error {
		return tx.PutNodeMapping(store.NodeMapping{
			LocalPath:     localDir,
			RemotePath:    remotePath,
			NodeUID:       node.UID,
			ParentNodeUID: parentUID,
			IsDirectory:   true,
		})
	})
	if err != nil {
		return "", fmt.Errorf("executor: recording node mapping for %s: %w", localDir, err)
	}

	return node.UID, nil
}

// resolveWatchRoot resolves the remote folder UID that mirrors one of the
// configured watch roots, seeding its NodeMapping the first time it is
// needed. Per the path-mapping formula, a watch root's
// remote path is "dirName" (the root's base name) under the remote prefix,
// not the MyFiles root itself, so this finds or creates that dirName
// folder rather than returning the MyFiles root folder's UID directly.
func (e *Executor) resolveWatchRoot(ctx context.Context, localRoot string) (string, error) {
	myFiles, err := e.remote.GetMyFilesRootFolder(ctx)
	if err != nil {
		return "", fmt.Errorf("executor: fetching remote root folder: %w", err)
	}

	dirName := path.Base(localRoot)

	node, found, err := remote.FindNodeByName(ctx, e.remote, myFiles.UID, dirName)
	if err != nil {
		return "", fmt.Errorf("executor: looking up remote folder %s: %w", dirName, err)
	}

	if !found {
		node, err = e.remote.CreateFolder(ctx, myFiles.UID, dirName)
		if err != nil {
			return "", fmt.Errorf("executor: creating remote folder %s: %w", dirName, err)
		}
	}

	_, remotePath, _ := e.remotePathFor(localRoot)

	err = e.store.WithTx(ctx, func(tx *store.Tx) error {
		return tx.PutNodeMapping(store.NodeMapping{
			LocalPath:     localRoot,
			RemotePath:    remotePath,
			NodeUID:       node.UID,
			ParentNodeUID: myFiles.UID,
			IsDirectory:   true,
		})
	})
	if err != nil {
		return "", fmt.Errorf("executor: recording node mapping for watch root %s: %w", localRoot, err)
	}

	return node.UID, nil
}

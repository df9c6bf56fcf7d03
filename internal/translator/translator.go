// Package translator implements the Change Translator:
// turning a batch of raw filesystem change events into a minimal,
// semantically-correct set of SyncJobs, including identity-based
// rename/move detection and hash-based no-op suppression. All writes for
// one batch commit atomically through internal/store.
package translator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"

	"github.com/cloudsync/syncd/internal/pathmap"
	"github.com/cloudsync/syncd/internal/store"
	"github.com/cloudsync/syncd/internal/watcher"
)

// WatchedDir pairs a local watch root with the remote path prefix it
// mirrors to.
type WatchedDir struct {
	LocalRoot  string
	RemoteRoot string
}

// Translator converts watcher batches into SyncJob rows.
type Translator struct {
	store  *store.Store
	roots  map[string]string // watch root -> remote root prefix
	logger *slog.Logger
}

// New returns a Translator that maps events under each dir's LocalRoot
// using its RemoteRoot prefix.
func New(s *store.Store, dirs []WatchedDir, logger *slog.Logger) *Translator {
	if logger == nil {
		logger = slog.Default()
	}

	roots := make(map[string]string, len(dirs))
	for _, d := range dirs {
		roots[d.LocalRoot] = d.RemoteRoot
	}

	return &Translator{store: s, roots: roots, logger: logger}
}

// mapped bundles a raw ChangeEvent with its computed local/remote paths,
// computed once so every later step reuses the same mapping.
type mapped struct {
	ev         watcher.ChangeEvent
	localPath  string
	remotePath string
}

// Translate runs the full seven-step algorithm over batch
// in one store transaction. dryRun suppresses job creation and the
// FileHash/NodeMapping purges that accompany deletes, leaving the store
// untouched while still exercising classification and lookups.
func (tr *Translator) Translate(ctx context.Context, batch watcher.Batch, dryRun bool) error {
	return tr.store.WithTx(ctx, func(tx *store.Tx) error {
		return tr.translateTx(tx, batch, dryRun)
	})
}

func (tr *Translator) translateTx(tx *store.Tx, batch watcher.Batch, dryRun bool) error {
	events := make([]mapped, 0, len(batch))

	for _, ev := range batch {
		local, remote := pathmap.Map(ev.WatchRoot, tr.roots[ev.WatchRoot], ev.Name)
		events = append(events, mapped{ev: ev, localPath: local, remotePath: remote})
	}

	var deletes, creates, updates []mapped

	for _, m := range events {
		switch {
		case !m.ev.Exists:
			deletes = append(deletes, m)
		case m.ev.New:
			creates = append(creates, m)
		default:
			updates = append(updates, m)
		}
	}

	pairs, remainingDeletes, remainingCreates := pairByInode(deletes, creates)

	for _, p := range pairs {
		if err := tr.handleRenameOrMovePair(tx, p.from, p.to, dryRun); err != nil {
			return err
		}
	}

	for _, d := range remainingDeletes {
		if err := tr.handleDelete(tx, d, dryRun); err != nil {
			return err
		}
	}

	for _, c := range remainingCreates {
		if err := tr.handleCreate(tx, c, dryRun); err != nil {
			return err
		}
	}

	for _, u := range updates {
		if err := tr.handleUpdate(tx, u, dryRun); err != nil {
			return err
		}
	}

	return nil
}

type renamePair struct {
	from, to mapped
}

// pairByInode implements step 3: identity-based rename/move
// detection by matching inode numbers between the delete and create sets.
func pairByInode(deletes, creates []mapped) (pairs []renamePair, remainingDeletes, remainingCreates []mapped) {
	createByIno := make(map[uint64]mapped, len(creates))
	for _, c := range creates {
		createByIno[c.ev.Ino] = c
	}

	matchedIno := make(map[uint64]bool)

	for _, d := range deletes {
		if c, ok := createByIno[d.ev.Ino]; ok && !matchedIno[d.ev.Ino] {
			pairs = append(pairs, renamePair{from: d, to: c})
			matchedIno[d.ev.Ino] = true

			continue
		}

		remainingDeletes = append(remainingDeletes, d)
	}

	for _, c := range creates {
		if !matchedIno[c.ev.Ino] {
			remainingCreates = append(remainingCreates, c)
		}
	}

	return pairs, remainingDeletes, remainingCreates
}

// handleRenameOrMovePair implements step 4.
func (tr *Translator) handleRenameOrMovePair(tx *store.Tx, from, to mapped, dryRun bool) error {
	_, err := tx.GetNodeMapping(from.localPath)

	switch {
	case err == nil:
		eventType := store.EventMove
		if path.Dir(from.localPath) == path.Dir(to.localPath) {
			eventType = store.EventRename
		}

		if dryRun {
			return nil
		}

		if err := tx.EnqueueJob(store.EnqueueParams{
			EventType:     eventType,
			LocalPath:     to.localPath,
			RemotePath:    to.remotePath,
			ContentHash:   to.ev.SHA1Hex,
			OldLocalPath:  from.localPath,
			OldRemotePath: from.remotePath,
		}); err != nil {
			return fmt.Errorf("translator: enqueuing %s for %s -> %s: %w", eventType, from.localPath, to.localPath, err)
		}

		return nil

	case errors.Is(err, store.ErrNotFound):
		return tr.fallbackDeleteCreate(tx, from, to, dryRun)

	default:
		return fmt.Errorf("translator: looking up node mapping for %s: %w", from.localPath, err)
	}
}

// fallbackDeleteCreate implements the "no NodeMapping" branch of step 4:
// DELETE(from) + CREATE(to), purging any tracked descendants if from was a
// directory.
func (tr *Translator) fallbackDeleteCreate(tx *store.Tx, from, to mapped, dryRun bool) error {
	if dryRun {
		return nil
	}

	if err := tx.DeleteFileHash(from.localPath); err != nil {
		return fmt.Errorf("translator: deleting file hash for %s: %w", from.localPath, err)
	}

	if from.ev.Type == watcher.EntryDir {
		if err := tx.DeleteFileHashesUnder(from.localPath); err != nil {
			return fmt.Errorf("translator: purging file hashes under %s: %w", from.localPath, err)
		}

		if err := tx.DeleteNodeMappingsUnder(from.localPath); err != nil {
			return fmt.Errorf("translator: purging node mappings under %s: %w", from.localPath, err)
		}
	}

	if err := tx.EnqueueJob(store.EnqueueParams{
		EventType:  store.EventDelete,
		LocalPath:  from.localPath,
		RemotePath: from.remotePath,
	}); err != nil {
		return fmt.Errorf("translator: enqueuing fallback DELETE for %s: %w", from.localPath, err)
	}

	if err := tx.EnqueueJob(store.EnqueueParams{
		EventType:   store.EventCreate,
		LocalPath:   to.localPath,
		RemotePath:  to.remotePath,
		ContentHash: to.ev.SHA1Hex,
	}); err != nil {
		return fmt.Errorf("translator: enqueuing fallback CREATE for %s: %w", to.localPath, err)
	}

	return nil
}

// handleDelete implements step 5. FileHash is purged here; NodeMapping
// for the exact path is left for the Job Executor to consume when it
// resolves the remote node to delete.
func (tr *Translator) handleDelete(tx *store.Tx, d mapped, dryRun bool) error {
	if dryRun {
		return nil
	}

	if err := tx.DeleteFileHash(d.localPath); err != nil {
		return fmt.Errorf("translator: deleting file hash for %s: %w", d.localPath, err)
	}

	if d.ev.Type == watcher.EntryDir {
		if err := tx.DeleteFileHashesUnder(d.localPath); err != nil {
			return fmt.Errorf("translator: purging file hashes under %s: %w", d.localPath, err)
		}

		if err := tx.DeleteNodeMappingsUnder(d.localPath); err != nil {
			return fmt.Errorf("translator: purging node mappings under %s: %w", d.localPath, err)
		}
	}

	if err := tx.EnqueueJob(store.EnqueueParams{
		EventType:  store.EventDelete,
		LocalPath:  d.localPath,
		RemotePath: d.remotePath,
	}); err != nil {
		return fmt.Errorf("translator: enqueuing DELETE for %s: %w", d.localPath, err)
	}

	return nil
}

// handleCreate implements step 6.
func (tr *Translator) handleCreate(tx *store.Tx, c mapped, dryRun bool) error {
	if dryRun {
		return nil
	}

	if err := tx.EnqueueJob(store.EnqueueParams{
		EventType:   store.EventCreate,
		LocalPath:   c.localPath,
		RemotePath:  c.remotePath,
		ContentHash: c.ev.SHA1Hex,
	}); err != nil {
		return fmt.Errorf("translator: enqueuing CREATE for %s: %w", c.localPath, err)
	}

	return nil
}

// handleUpdate implements step 7: directory metadata-only
// changes are ignored; file updates whose hash matches the stored FileHash
// are suppressed as no-ops.
func (tr *Translator) handleUpdate(tx *store.Tx, u mapped, dryRun bool) error {
	if u.ev.Type == watcher.EntryDir {
		return nil
	}

	existing, err := tx.GetFileHash(u.localPath)

	switch {
	case err == nil:
		if existing.ContentHash == u.ev.SHA1Hex {
			return nil
		}
	case errors.Is(err, store.ErrNotFound):
		// No recorded hash yet: treat as a real update.
	default:
		return fmt.Errorf("translator: looking up file hash for %s: %w", u.localPath, err)
	}

	if dryRun {
		return nil
	}

	if err := tx.EnqueueJob(store.EnqueueParams{
		EventType:   store.EventUpdate,
		LocalPath:   u.localPath,
		RemotePath:  u.remotePath,
		ContentHash: u.ev.SHA1Hex,
	}); err != nil {
		return fmt.Errorf("translator: enqueuing UPDATE for %s: %w", u.localPath, err)
	}

	return nil
}

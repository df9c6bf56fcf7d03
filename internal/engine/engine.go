// Package engine wires the watcher, translator, executor, store, and
// signal bus into the daemon's two run modes: a one-shot "query
// everything, translate, drain" pass and a continuous watch loop.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/cloudsync/syncd/internal/executor"
	"github.com/cloudsync/syncd/internal/remote"
	"github.com/cloudsync/syncd/internal/signalbus"
	"github.com/cloudsync/syncd/internal/store"
	"github.com/cloudsync/syncd/internal/translator"
	"github.com/cloudsync/syncd/internal/watcher"
)

// WatchedDir pairs a local directory with the remote path prefix it
// mirrors to.
type WatchedDir struct {
	LocalRoot  string
	RemoteRoot string
}

// Config is the engine's mutable runtime configuration; dirs and
// concurrency are hot-reloadable without a restart.
type Config struct {
	Dirs            []WatchedDir
	SyncConcurrency int
	ShutdownTimeout time.Duration
}

// DefaultShutdownTimeout bounds how long RunWatch waits for in-flight jobs
// to finish before returning, if not overridden in Config.
const DefaultShutdownTimeout = 30 * time.Second

// executorPollInterval is how often RunWatch ticks the executor's
// scheduler while watching continuously.
const executorPollInterval = 100 * time.Millisecond

// Engine owns one sync pipeline: a watcher delivering batches to a
// translator, whose enqueued jobs an executor drains against a remote
// client, coordinated through a shared store and signal bus.
type Engine struct {
	store  *store.Store
	client remote.Client
	watch  watcher.Watcher
	bus    *signalbus.Bus
	flags  *signalbus.Flags
	logger *slog.Logger

	mu         sync.RWMutex
	cfg        Config
	translator *translator.Translator
	executor   *executor.Executor
}

// New wires an Engine from its components. Call RunOnce or RunWatch to
// start processing.
func New(s *store.Store, client remote.Client, w watcher.Watcher, cfg Config, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}

	if cfg.SyncConcurrency < 1 {
		cfg.SyncConcurrency = 1
	}

	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = DefaultShutdownTimeout
	}

	e := &Engine{
		store:  s,
		client: client,
		watch:  w,
		bus:    signalbus.New(s, logger),
		flags:  signalbus.NewFlags(s),
		logger: logger,
		cfg:    cfg,
	}

	e.translator = translator.New(s, toTranslatorDirs(cfg.Dirs), logger)
	e.executor = executor.New(s, client, rootsMap(cfg.Dirs), logger, cfg.SyncConcurrency)

	return e
}

func toTranslatorDirs(dirs []WatchedDir) []translator.WatchedDir {
	out := make([]translator.WatchedDir, 0, len(dirs))
	for _, d := range dirs {
		out = append(out, translator.WatchedDir{LocalRoot: d.LocalRoot, RemoteRoot: d.RemoteRoot})
	}

	return out
}

func rootsMap(dirs []WatchedDir) map[string]string {
	roots := make(map[string]string, len(dirs))
	for _, d := range dirs {
		roots[d.LocalRoot] = d.RemoteRoot
	}

	return roots
}

func localRoots(dirs []WatchedDir) []string {
	roots := make([]string, 0, len(dirs))
	for _, d := range dirs {
		roots = append(roots, d.LocalRoot)
	}

	return roots
}

// SetConcurrency live-updates the executor's worker count.
func (e *Engine) SetConcurrency(n int) {
	e.mu.Lock()
	e.cfg.SyncConcurrency = n
	e.mu.Unlock()

	e.executor.SetConcurrency(n)
}

// UpdateDirs live-updates the watched-directory set, rebuilding the
// translator and executor's root maps and pruning clocks for directories
// no longer configured.
func (e *Engine) UpdateDirs(ctx context.Context, dirs []WatchedDir) error {
	e.mu.Lock()
	e.cfg.Dirs = dirs
	e.translator = translator.New(e.store, toTranslatorDirs(dirs), e.logger)
	e.executor.SetRoots(rootsMap(dirs))
	e.mu.Unlock()

	roots := localRoots(dirs)

	err := e.store.WithTx(ctx, func(tx *store.Tx) error {
		if err := tx.DeleteClocksNotIn(roots); err != nil {
			return err
		}

		if err := tx.DeleteFileHashesOutsideRoots(roots); err != nil {
			return err
		}

		return tx.DeleteNodeMappingsOutsideRoots(roots)
	})
	if err != nil {
		return fmt.Errorf("engine: pruning state for updated directory set: %w", err)
	}

	return nil
}

func (e *Engine) currentTranslator() *translator.Translator {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return e.translator
}

func (e *Engine) currentDirs() []WatchedDir {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return e.cfg.Dirs
}

func (e *Engine) shutdownTimeout() time.Duration {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return e.cfg.ShutdownTimeout
}

// onBatch adapts the current translator to watcher.BatchHandler, always
// reading the live translator pointer so a concurrent UpdateDirs takes
// effect on the next batch.
func (e *Engine) onBatch(ctx context.Context, batch watcher.Batch, dryRun bool) error {
	return e.currentTranslator().Translate(ctx, batch, dryRun)
}

// RunOnce performs the one-shot pipeline: reset crashed jobs,
// connect the watcher, replay every pending change, translate it, and
// drain the resulting jobs. dryRun suppresses both job enqueueing and
// remote dispatch (the drain is skipped entirely in that case).
func (e *Engine) RunOnce(ctx context.Context, dryRun bool) error {
	if err := e.cleanup(ctx); err != nil {
		return err
	}

	if err := e.watch.Connect(ctx); err != nil {
		return fmt.Errorf("engine: connecting watcher: %w", err)
	}
	defer e.watch.Close()

	total, err := e.watch.QueryAllChanges(ctx, localRoots(e.currentDirs()), e.onBatch, dryRun)
	if err != nil {
		return fmt.Errorf("engine: querying changes: %w", err)
	}

	e.logger.Info("one-shot sync: translated changes", slog.Int("events", total))

	if dryRun {
		return nil
	}

	if err := e.executor.Drain(ctx); err != nil {
		return fmt.Errorf("engine: draining jobs: %w", err)
	}

	return nil
}

// RunWatch runs continuously until ctx is canceled: the watcher's
// subscription loop, the executor's poll ticker, and the signal bus all
// run concurrently, and a bounded drain runs on the way out.
func (e *Engine) RunWatch(ctx context.Context) error {
	if err := e.cleanup(ctx); err != nil {
		return err
	}

	if err := e.watch.Connect(ctx); err != nil {
		return fmt.Errorf("engine: connecting watcher: %w", err)
	}
	defer e.watch.Close()

	group, gctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		return e.watch.SetupWatchSubscriptions(gctx, localRoots(e.currentDirs()), e.onBatch, false)
	})

	group.Go(func() error {
		return e.pollExecutor(gctx)
	})

	group.Go(func() error {
		return e.bus.Run(gctx)
	})

	group.Go(func() error {
		return e.handlePauseSignals(gctx)
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("engine: watch loop: %w", err)
	}

	return e.waitForDrain()
}

// handlePauseSignals is the Signal Bus side of the pause/resume handshake:
// a CLI producer sends the PAUSE/RESUME signal, and
// this handler is the "daemon's handler" that flips the shared PAUSED flag
// in response. The CLI itself then polls the flag to confirm the daemon
// has acted, rather than waiting on an acknowledgement signal of its own.
func (e *Engine) handlePauseSignals(ctx context.Context) error {
	pauseCh, cancelPause := e.bus.Subscribe(signalbus.SignalPause)
	defer cancelPause()

	resumeCh, cancelResume := e.bus.Subscribe(signalbus.SignalResume)
	defer cancelResume()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-pauseCh:
			if err := e.flags.Pause(ctx); err != nil {
				e.logger.Error("handling pause signal", slog.String("error", err.Error()))
			} else {
				e.logger.Info("paused via signal bus")
			}
		case <-resumeCh:
			if err := e.flags.Resume(ctx); err != nil {
				e.logger.Error("handling resume signal", slog.String("error", err.Error()))
			} else {
				e.logger.Info("resumed via signal bus")
			}
		}
	}
}

func (e *Engine) pollExecutor(ctx context.Context) error {
	ticker := time.NewTicker(executorPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil //nolint:nilerr // context cancellation ends the loop cleanly
		case <-ticker.C:
			paused, err := e.flags.IsPaused(ctx)
			if err != nil {
				e.logger.Error("checking paused flag", slog.String("error", err.Error()))
				continue
			}

			if paused {
				continue
			}

			if err := e.executor.Tick(ctx); err != nil {
				e.logger.Error("executor tick failed", slog.String("error", err.Error()))
			}
		}
	}
}

// waitForDrain gives in-flight jobs up to cfg.ShutdownTimeout to finish
// after the watch loop stops, logging and returning if the deadline passes
// with jobs still active; they resume as PENDING on next startup via
// cleanup's ResetProcessingJobs.
func (e *Engine) waitForDrain() error {
	deadline := time.Now().Add(e.shutdownTimeout())

	for e.executor.ActiveCount() > 0 && time.Now().Before(deadline) {
		time.Sleep(50 * time.Millisecond)
	}

	if n := e.executor.ActiveCount(); n > 0 {
		e.logger.Warn("shutdown timeout reached with jobs still in flight", slog.Int("active", n))
	}

	return nil
}

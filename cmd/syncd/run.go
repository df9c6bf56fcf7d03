package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/cloudsync/syncd/internal/engine"
	"github.com/cloudsync/syncd/internal/signalbus"
	"github.com/cloudsync/syncd/internal/store"
	"github.com/cloudsync/syncd/internal/watcher"
)

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the sync daemon continuously, watching for changes until stopped",
		RunE:  runRun,
	}
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(flagConfig)
	if err != nil {
		return err
	}

	logger := buildLogger(cfg.LogLevel)
	ctx := shutdownContext(cmd.Context(), logger)

	s, err := store.Open(ctx, cfg.DBPath(), logger)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer s.Close()

	cleanup, err := acquireRunLock(ctx, cfg.PIDPath(), signalbus.NewFlags(s))
	if err != nil {
		return err
	}
	defer cleanup()

	w := watcher.New(s, logger)
	client := newRemoteClient(logger)

	e := engine.New(s, client, w, engine.Config{
		Dirs:            cfg.Dirs,
		SyncConcurrency: cfg.SyncConcurrency,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}, logger)

	hupContext(ctx, logger, func() {
		reloaded, err := loadConfig(flagConfig)
		if err != nil {
			logger.Error("reloading config", slog.String("error", err.Error()))
			return
		}

		e.SetConcurrency(reloaded.SyncConcurrency)

		if err := e.UpdateDirs(ctx, reloaded.Dirs); err != nil {
			logger.Error("applying reloaded watched directories", slog.String("error", err.Error()))
		}
	})

	logger.Info("syncd starting", slog.Int("dirs", len(cfg.Dirs)), slog.Int("concurrency", cfg.SyncConcurrency))

	if err := e.RunWatch(ctx); err != nil {
		return fmt.Errorf("running: %w", err)
	}

	return nil
}

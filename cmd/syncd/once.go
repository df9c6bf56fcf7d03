package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cloudsync/syncd/internal/engine"
	"github.com/cloudsync/syncd/internal/store"
	"github.com/cloudsync/syncd/internal/watcher"
)

func newOnceCmd() *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "once",
		Short: "Run a single sync pass (query changes, translate, drain) and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOnce(cmd, dryRun)
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "translate changes without enqueueing or dispatching jobs")

	return cmd
}

func runOnce(cmd *cobra.Command, dryRun bool) error {
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

	w := watcher.New(s, logger)
	client := newRemoteClient(logger)

	e := engine.New(s, client, w, engine.Config{
		Dirs:            cfg.Dirs,
		SyncConcurrency: cfg.SyncConcurrency,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}, logger)

	if err := e.RunOnce(ctx, dryRun); err != nil {
		return fmt.Errorf("running: %w", err)
	}

	return nil
}

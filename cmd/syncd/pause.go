package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/cloudsync/syncd/internal/signalbus"
	"github.com/cloudsync/syncd/internal/store"
)

// ackTimeout bounds how long the CLI waits for a running daemon to act on a
// pause/resume signal before giving up.
const ackTimeout = 5 * time.Second

// newPauseCmd and newResumeCmd send a durable PAUSE/RESUME signal through
// the shared Signal Bus rather than writing the PAUSED
// flag directly: a running daemon's handlePauseSignals handler is the one
// that actually flips the flag, so this command works the same whether or
// not a daemon is currently running: the signal just waits in the queue
// until one subscribes, per the Bus's readiness-handshake behavior. The CLI
// then polls the flag itself to confirm the signal was acted on.
func newPauseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pause",
		Short: "Pause syncing without stopping the daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			return sendPauseSignal(cmd, true)
		},
	}
}

func newResumeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resume",
		Short: "Resume syncing after a pause",
		RunE: func(cmd *cobra.Command, args []string) error {
			return sendPauseSignal(cmd, false)
		},
	}
}

func sendPauseSignal(cmd *cobra.Command, paused bool) error {
	cfg, err := loadConfig(flagConfig)
	if err != nil {
		return err
	}

	logger := buildLogger(cfg.LogLevel)
	ctx := cmd.Context()

	s, err := store.Open(ctx, cfg.DBPath(), logger)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer s.Close()

	bus := signalbus.New(s, logger)
	flags := signalbus.NewFlags(s)

	signalName := signalbus.SignalResume
	verb := "resumed"

	if paused {
		signalName = signalbus.SignalPause
		verb = "paused"
	}

	if err := bus.Send(ctx, signalName); err != nil {
		return fmt.Errorf("sending %s signal: %w", signalName, err)
	}

	if waitForAck(ctx, flags, paused) {
		fmt.Printf("Acknowledged: daemon is now %s.\n", verb)
		return nil
	}

	fmt.Printf("Signal sent but no running daemon acknowledged it within %s; it will take effect once one is running.\n", ackTimeout)

	return nil
}

// waitForAck polls the shared PAUSED flag until it matches wantPaused or
// ackTimeout elapses.
func waitForAck(ctx context.Context, flags *signalbus.Flags, wantPaused bool) bool {
	deadline := time.Now().Add(ackTimeout)

	for time.Now().Before(deadline) {
		paused, err := flags.IsPaused(ctx)
		if err == nil && paused == wantPaused {
			return true
		}

		select {
		case <-ctx.Done():
			return false
		case <-time.After(100 * time.Millisecond):
		}
	}

	return false
}

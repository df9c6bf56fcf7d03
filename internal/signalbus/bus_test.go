package signalbus_test

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cloudsync/syncd/internal/signalbus"
	"github.com/cloudsync/syncd/internal/store"
)

func openTestStore(t *testing.T) *store.Store {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s, err := store.Open(context.Background(), filepath.Join(t.TempDir(), "sync.db"), logger)
	require.NoError(t, err)

	t.Cleanup(func() { _ = s.Close() })

	return s
}

func TestBusDeliversSignalToSubscriber(t *testing.T) {
	s := openTestStore(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	bus := signalbus.New(s, logger)

	ch, cancel := bus.Subscribe(signalbus.SignalReloadConfig)
	defer cancel()

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	go func() { _ = bus.Run(ctx) }()

	require.NoError(t, bus.Send(context.Background(), signalbus.SignalReloadConfig))

	select {
	case <-ch:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for signal delivery")
	}
}

func TestBusSignalAccumulatesUntilListenerRegisters(t *testing.T) {
	s := openTestStore(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	bus := signalbus.New(s, logger)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	go func() { _ = bus.Run(ctx) }()

	require.NoError(t, bus.Send(context.Background(), signalbus.SignalPause))

	// Give the poll loop a few ticks to run with no registered listener;
	// the signal must still be pending: signals without listeners
	// accumulate until a listener appears.
	time.Sleep(3 * signalbus.DefaultPollInterval)

	ch, cancel := bus.Subscribe(signalbus.SignalPause)
	defer cancel()

	select {
	case <-ch:
	case <-time.After(5 * time.Second):
		t.Fatal("signal sent before any listener registered was never delivered once one appeared")
	}
}

func TestFlagsPauseResume(t *testing.T) {
	s := openTestStore(t)
	flags := signalbus.NewFlags(s)
	ctx := context.Background()

	paused, err := flags.IsPaused(ctx)
	require.NoError(t, err)
	require.False(t, paused)

	require.NoError(t, flags.Pause(ctx))

	paused, err = flags.IsPaused(ctx)
	require.NoError(t, err)
	require.True(t, paused)

	require.NoError(t, flags.Resume(ctx))

	paused, err = flags.IsPaused(ctx)
	require.NoError(t, err)
	require.False(t, paused)
}

func TestFlagsRunning(t *testing.T) {
	s := openTestStore(t)
	flags := signalbus.NewFlags(s)
	ctx := context.Background()

	running, err := flags.IsRunning(ctx)
	require.NoError(t, err)
	require.False(t, running)

	require.NoError(t, flags.SetRunning(ctx))

	running, err = flags.IsRunning(ctx)
	require.NoError(t, err)
	require.True(t, running)

	require.NoError(t, flags.ClearRunning(ctx))

	running, err = flags.IsRunning(ctx)
	require.NoError(t, err)
	require.False(t, running)
}

// Package signalbus turns the store's durable signal queue into an
// in-process publish/subscribe mechanism: a poll loop drains pending
// signals and fans each name out to whatever subscribers are currently
// listening, so goroutines inside the same process can react to
// cross-process or cross-component nudges (pause/resume, config reload,
// shutdown) without coupling to SQLite directly. The signal source is the
// database rather than the OS, so producers don't need to know the daemon's
// PID and signals sent before the daemon starts are not lost.
package signalbus

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/cloudsync/syncd/internal/store"
)

// Well-known signal names used across the engine.
const (
	SignalShutdown     = "SHUTDOWN"
	SignalReloadConfig = "RELOAD_CONFIG"
	SignalPause        = "PAUSE"
	SignalResume       = "RESUME"
)

// DefaultPollInterval is how often the Bus's poll loop checks the store for
// new signals.
const DefaultPollInterval = time.Second

// Bus polls a store.Store for pending signals and broadcasts each to
// subscribed listeners.
type Bus struct {
	store        *store.Store
	logger       *slog.Logger
	pollInterval time.Duration

	mu          sync.Mutex
	subscribers map[string][]chan struct{}
}

// New returns a Bus backed by s. Call Run to start its poll loop.
func New(s *store.Store, logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}

	return &Bus{
		store:        s,
		logger:       logger,
		pollInterval: DefaultPollInterval,
		subscribers:  make(map[string][]chan struct{}),
	}
}

// Send durably enqueues a signal, visible to any process sharing the same
// store.
func (b *Bus) Send(ctx context.Context, name string) error {
	return b.store.SendSignal(ctx, name)
}

// Subscribe returns a channel that receives a value each time name is
// observed by the poll loop. The returned cancel function must be called
// to stop receiving and release the channel.
func (b *Bus) Subscribe(name string) (ch <-chan struct{}, cancel func()) {
	c := make(chan struct{}, 1)

	b.mu.Lock()
	b.subscribers[name] = append(b.subscribers[name], c)
	b.mu.Unlock()

	cancelFunc := func() {
		b.mu.Lock()
		defer b.mu.Unlock()

		subs := b.subscribers[name]
		for i, existing := range subs {
			if existing == c {
				b.subscribers[name] = append(subs[:i], subs[i+1:]...)
				break
			}
		}
	}

	return c, cancelFunc
}

// Run polls for pending signals until ctx is canceled, broadcasting each
// observed name to its subscribers. Intended to run as one goroutine in an
// errgroup alongside the executor's own tick loop.
func (b *Bus) Run(ctx context.Context) error {
	ticker := time.NewTicker(b.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := b.pollOnce(ctx); err != nil {
				b.logger.Error("signal bus poll failed", slog.String("error", err.Error()))
			}
		}
	}
}

// pollOnce consumes only signals whose name currently has >=1 registered
// listener. Names with no listener are left in the store so
// they accumulate until a listener registers (the readiness handshake
// between producers and the daemon).
func (b *Bus) pollOnce(ctx context.Context) error {
	names := b.listenedNames()
	if len(names) == 0 {
		return nil
	}

	counts, err := b.store.PopSignalsForNames(ctx, names)
	if err != nil {
		return err //nolint:wrapcheck // logged by caller with context
	}

	for _, name := range names {
		for i := 0; i < counts[name]; i++ {
			b.broadcast(name)
		}
	}

	return nil
}

// listenedNames returns the names with at least one active subscriber.
func (b *Bus) listenedNames() []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	names := make([]string, 0, len(b.subscribers))

	for name, subs := range b.subscribers {
		if len(subs) > 0 {
			names = append(names, name)
		}
	}

	return names
}

func (b *Bus) broadcast(name string) {
	b.mu.Lock()
	subs := append([]chan struct{}(nil), b.subscribers[name]...)
	b.mu.Unlock()

	for _, c := range subs {
		select {
		case c <- struct{}{}:
		default:
			// Subscriber already has an unconsumed notification pending.
		}
	}
}

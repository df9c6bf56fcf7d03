package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/cloudsync/syncd/internal/signalbus"
)

// lockFilePermissions matches the standard config file permissions (owner rw, group/other r).
const lockFilePermissions = 0o644

// lockDirPermissions matches the standard directory permissions (owner rwx, group/other rx).
const lockDirPermissions = 0o755

// acquireRunLock is `syncd run`'s double-start guard. The Flag Registry's
// RUNNING flag alone cannot make that guarantee: a process killed with
// SIGKILL never reaches its deferred ClearRunning, so the flag would wedge
// at "set" forever after any crash. An OS flock on path is what actually
// decides exclusivity, because the kernel releases it the instant the
// holding process dies, crash or not. Flock is kept as the real gate,
// and RUNNING is the descriptive core-state flag a future dashboard or
// status command reads. Winning the flock proves no other process is
// running against this data directory, so it is always safe at that point
// to clear any RUNNING flag a crashed predecessor left behind before
// setting it fresh.
func acquireRunLock(ctx context.Context, path string, flags *signalbus.Flags) (cleanup func(), err error) {
	if path == "" {
		return nil, fmt.Errorf("PID file path is empty: cannot determine data directory")
	}

	dir := filepath.Dir(path)
	if mkdirErr := os.MkdirAll(dir, lockDirPermissions); mkdirErr != nil {
		return nil, fmt.Errorf("creating lock file directory: %w", mkdirErr)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, lockFilePermissions)
	if err != nil {
		return nil, fmt.Errorf("opening lock file: %w", err)
	}

	// Non-blocking exclusive lock; fails immediately if another process holds it.
	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		f.Close()

		return nil, fmt.Errorf("another syncd run is already using %s (could not lock lock file)", dir)
	}

	if err := f.Truncate(0); err != nil {
		f.Close()

		return nil, fmt.Errorf("truncating lock file: %w", err)
	}

	if _, err := fmt.Fprintf(f, "%d\n", os.Getpid()); err != nil {
		f.Close()

		return nil, fmt.Errorf("recording PID in lock file: %w", err)
	}

	if err := f.Sync(); err != nil {
		f.Close()

		return nil, fmt.Errorf("syncing lock file: %w", err)
	}

	if err := flags.ClearRunning(ctx); err != nil {
		f.Close()

		return nil, fmt.Errorf("clearing stale RUNNING flag: %w", err)
	}

	if err := flags.SetRunning(ctx); err != nil {
		f.Close()

		return nil, fmt.Errorf("setting RUNNING flag: %w", err)
	}

	return func() {
		if err := flags.ClearRunning(context.Background()); err != nil {
			// Best-effort: a flock-win by the next `run` self-heals a missed clear.
			_ = err
		}

		os.Remove(path)
		f.Close()
	}, nil
}

// readPIDFile reads the PID from the given file path.
func readPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("reading PID file: %w", err)
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("invalid PID in %s: %w", path, err)
	}

	return pid, nil
}

// sendSIGHUP reads the PID from the daemon's lock file and signals it to
// reload its config without a restart.
func sendSIGHUP(pidPath string) error {
	pid, err := readPIDFile(pidPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("no running daemon found (no PID file at %s)", pidPath)
		}

		return err
	}

	proc, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("finding process %d: %w", pid, err)
	}

	if err := proc.Signal(syscall.Signal(0)); err != nil {
		os.Remove(pidPath)

		return fmt.Errorf("daemon (PID %d) is not running (stale PID file removed)", pid)
	}

	if err := proc.Signal(syscall.SIGHUP); err != nil {
		return fmt.Errorf("sending SIGHUP to daemon (PID %d): %w", pid, err)
	}

	return nil
}

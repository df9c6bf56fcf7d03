package main

import (
	"log/slog"

	"github.com/cloudsync/syncd/internal/remote"
	"github.com/cloudsync/syncd/internal/remote/remotetest"
)

// newRemoteClient builds the remote.Client the engine dispatches against.
//
// No concrete production backend ships in this module; the encrypted-node
// cloud storage API lives behind internal/remote's interface. This wires
// remote/remotetest.Fake, an in-memory stand-in, so
// `syncd run`/`syncd once` are runnable end to end out of the box for
// evaluation and local testing. It has no persistence of its own: every
// process restart starts from an empty remote tree, so NodeMapping rows
// from a prior run will point at nodes that no longer exist. Production
// deployments must replace this function with one that constructs a real
// remote.Client implementation.
func newRemoteClient(logger *slog.Logger) remote.Client {
	logger.Warn("using the in-memory remote/remotetest.Fake backend; " +
		"nothing is durably uploaded anywhere and state does not survive a restart; " +
		"wire a real remote.Client implementation for production use")

	return remotetest.New()
}

package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var (
	flagConfig  string
	flagVerbose bool
	flagDebug   bool
	flagQuiet   bool
)

// newRootCmd assembles the syncd CLI: a background daemon mirroring local
// directories to remote storage, with run/once/reload/pause/resume
// subcommands.
func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "syncd",
		Short:         "Background daemon that mirrors local directories to remote storage",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVarP(&flagConfig, "config", "c", "syncd.toml", "path to the TOML config file")
	root.PersistentFlags().BoolVar(&flagVerbose, "verbose", false, "info-level logging")
	root.PersistentFlags().BoolVar(&flagDebug, "debug", false, "debug-level logging")
	root.PersistentFlags().BoolVar(&flagQuiet, "quiet", false, "error-level logging only")

	root.AddCommand(newRunCmd())
	root.AddCommand(newOnceCmd())
	root.AddCommand(newReloadCmd())
	root.AddCommand(newPauseCmd())
	root.AddCommand(newResumeCmd())

	return root
}

// buildLogger constructs the daemon's logger. cfgLevel is the config-file
// log level (lowest priority); the --verbose/--debug/--quiet CLI flags
// override it. The three flags are not registered as mutually exclusive:
// when several are given, --quiet wins over --debug, which wins over
// --verbose.
func buildLogger(cfgLevel string) *slog.Logger {
	level := slog.LevelWarn

	switch cfgLevel {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "error":
		level = slog.LevelError
	}

	if flagVerbose {
		level = slog.LevelInfo
	}

	if flagDebug {
		level = slog.LevelDebug
	}

	if flagQuiet {
		level = slog.LevelError
	}

	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// exitOnError prints a user-friendly error message to stderr and exits.
func exitOnError(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

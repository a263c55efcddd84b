// Package main is the entry point for the timedmq binary. It
// supports four subcommands:
//
//   - server: runs the broker and serves the BrokerService API
//   - read:   consumes messages from an instance
//   - write:  posts messages to an instance
//   - flush:  resets an instance
//
// Dependencies are assembled via Google Wire; see wire.go.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/otterscale/timedmq/internal/cmd"
	"github.com/otterscale/timedmq/internal/cmd/server"
	"github.com/otterscale/timedmq/internal/config"
	"github.com/otterscale/timedmq/internal/core"
)

// version is injected at build time via -ldflags
// (e.g. -ldflags "-X main.version=v1.2.3").
var version = "devel"

func main() {
	// Cancel on SIGINT (Ctrl+C) or SIGTERM (container runtime).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		// Cobra is configured with SilenceErrors: true, so we
		// print the error here for consistent formatting.
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run wires all dependencies and executes the root Cobra command.
func run(ctx context.Context) error {
	rootCmd, cleanup, err := wireCmd()
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	defer cleanup()

	return rootCmd.ExecuteContext(ctx)
}

// newCmd is a Wire provider that constructs the root Cobra command
// and registers the subcommands. The server injector is deferred
// behind a closure so the broker is only built when the server
// subcommand actually runs.
func newCmd(conf *config.Config) (*cobra.Command, error) {
	c := &cobra.Command{
		Use:           "timedmq",
		Short:         "timedmq: a timed message-passing broker with deferred writes and bounded blocking reads.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	serverCmd, err := cmd.NewServerCommand(conf, func() (*server.Server, func(), error) {
		return wireServer(conf)
	})
	if err != nil {
		return nil, err
	}

	readCmd, err := cmd.NewReadCommand(conf)
	if err != nil {
		return nil, err
	}
	writeCmd, err := cmd.NewWriteCommand(conf)
	if err != nil {
		return nil, err
	}
	flushCmd, err := cmd.NewFlushCommand(conf)
	if err != nil {
		return nil, err
	}

	c.AddCommand(serverCmd, readCmd, writeCmd, flushCmd)

	return c, nil
}

// provideBrokerConfig is a Wire provider that extracts the broker
// engine parameters from the loaded configuration.
func provideBrokerConfig(conf *config.Config) core.BrokerConfig {
	return core.BrokerConfig{
		Instances:      conf.BrokerInstances(),
		MaxMessageSize: conf.BrokerMaxMessageSize(),
		MaxStorageSize: conf.BrokerMaxStorageSize(),
	}
}

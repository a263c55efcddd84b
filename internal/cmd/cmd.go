// Package cmd defines the Cobra subcommands (server plus the read,
// write, and flush drivers) and their Wire provider sets. It bridges
// configuration, dependency injection, and the transport/application
// layers.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/otterscale/timedmq/internal/cmd/client"
	"github.com/otterscale/timedmq/internal/cmd/server"
	"github.com/otterscale/timedmq/internal/config"
)

// ServerInjector builds a fully wired server runtime.
type ServerInjector func() (*server.Server, func(), error)

// NewServerCommand returns the "server" subcommand.
func NewServerCommand(conf *config.Config, newServer ServerInjector) (*cobra.Command, error) {
	cmd := &cobra.Command{
		Use:     "server",
		Short:   "Start the broker server that exposes the BrokerService API",
		Example: "timedmq server --address=:8321 --instances=3 --max-storage-size=65536",
		RunE: func(cmd *cobra.Command, _ []string) error {
			srv, cleanup, err := newServer()
			if err != nil {
				return fmt.Errorf("failed to initialize server: %w", err)
			}
			defer cleanup()

			cfg := server.Config{
				Address:        conf.ServerAddress(),
				AllowedOrigins: conf.ServerAllowedOrigins(),
				AuthToken:      conf.ServerAuthToken(),
			}

			return srv.Run(cmd.Context(), cfg)
		},
	}

	if err := conf.BindFlags(cmd.Flags(), config.ServerOptions); err != nil {
		return nil, err
	}

	return cmd, nil
}

// NewReadCommand returns the "read" driver: it opens a session, sets
// the receive timeout, and prints messages until interrupted.
func NewReadCommand(conf *config.Config) (*cobra.Command, error) {
	cmd := &cobra.Command{
		Use:     "read",
		Short:   "Consume messages from a broker instance",
		Example: "timedmq read --instance=0 --recv-timeout=10s",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return client.New(conf).RunReader(cmd.Context())
		},
	}

	if err := conf.BindFlags(cmd.Flags(), config.ClientOptions); err != nil {
		return nil, err
	}

	return cmd, nil
}

// NewWriteCommand returns the "write" driver: it opens a session,
// sets the send timeout, and posts messages from its arguments, from
// stdin, or periodically in automatic mode.
func NewWriteCommand(conf *config.Config) (*cobra.Command, error) {
	var auto bool

	cmd := &cobra.Command{
		Use:     "write [message ...]",
		Short:   "Post messages to a broker instance",
		Example: "timedmq write --instance=0 --send-timeout=500ms 'hello'",
		RunE: func(cmd *cobra.Command, args []string) error {
			return client.New(conf).RunWriter(cmd.Context(), args, auto)
		},
	}
	cmd.Flags().BoolVar(&auto, "auto", false, "post a random message every interval until interrupted")

	if err := conf.BindFlags(cmd.Flags(), config.ClientOptions); err != nil {
		return nil, err
	}

	return cmd, nil
}

// NewFlushCommand returns the "flush" driver: it resets an instance,
// revoking pending deferred writes and waking parked readers.
func NewFlushCommand(conf *config.Config) (*cobra.Command, error) {
	cmd := &cobra.Command{
		Use:     "flush",
		Short:   "Reset a broker instance",
		Example: "timedmq flush --instance=0",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return client.New(conf).RunFlush(cmd.Context())
		},
	}

	if err := conf.BindFlags(cmd.Flags(), config.ClientOptions); err != nil {
		return nil, err
	}

	return cmd, nil
}

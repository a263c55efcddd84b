//go:build wireinject

package main

import (
	"github.com/google/wire"
	"github.com/spf13/cobra"

	"github.com/otterscale/timedmq/internal/cmd"
	"github.com/otterscale/timedmq/internal/cmd/server"
	"github.com/otterscale/timedmq/internal/config"
	"github.com/otterscale/timedmq/internal/core"
	"github.com/otterscale/timedmq/internal/handler"
)

func wireCmd() (*cobra.Command, func(), error) {
	panic(wire.Build(
		newCmd,
		config.ProviderSet,
	))
}

func wireServer(conf *config.Config) (*server.Server, func(), error) {
	panic(wire.Build(
		provideBrokerConfig,
		core.ProviderSet,
		handler.ProviderSet,
		cmd.ProviderSet,
	))
}

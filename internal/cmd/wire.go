package cmd

import (
	"github.com/google/wire"

	"github.com/otterscale/timedmq/internal/cmd/server"
)

// ProviderSet is the Wire provider set for the CLI layer.
var ProviderSet = wire.NewSet(
	server.NewServer,
	server.NewHandler,
)

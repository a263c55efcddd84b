package handler

import "github.com/google/wire"

// ProviderSet is the Wire provider set for the API handlers.
var ProviderSet = wire.NewSet(NewBrokerService)

package core

import "github.com/google/wire"

// ProviderSet is the Wire provider set for the broker engine.
var ProviderSet = wire.NewSet(NewBroker)

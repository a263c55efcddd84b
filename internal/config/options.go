package config

import (
	"strings"
	"time"

	"github.com/otterscale/timedmq/internal/core"
)

// Option describes a single configuration entry: its viper key, the
// corresponding CLI flag name, the compiled default, and a
// human-readable description shown in --help output.
type Option struct {
	Key         string
	Flag        string
	Default     any
	Description string
}

// ServerOptions defines the configuration entries available in server
// mode. Each entry is registered as a viper default and a CLI flag.
var ServerOptions = []Option{
	{Key: keyServerAddress, Flag: toFlag(keyServerAddress), Default: ":8321", Description: "Server listen address"},
	{Key: keyServerAllowedOrigins, Flag: toFlag(keyServerAllowedOrigins), Default: []string{}, Description: "Server allowed CORS origins"},
	{Key: keyServerAuthToken, Flag: toFlag(keyServerAuthToken), Default: "", Description: "Static bearer token required on RPCs (empty disables auth)"},
	{Key: keyBrokerInstances, Flag: toFlag(keyBrokerInstances), Default: core.DefaultInstances, Description: "Number of broker instances"},
	{Key: keyBrokerMaxMessageSize, Flag: toFlag(keyBrokerMaxMessageSize), Default: core.DefaultMaxMessageSize, Description: "Maximum message size in bytes"},
	{Key: keyBrokerMaxStorageSize, Flag: toFlag(keyBrokerMaxStorageSize), Default: core.DefaultMaxStorageSize, Description: "Per-instance storage budget in bytes"},
}

// ClientOptions defines the configuration entries shared by the
// read, write, and flush driver commands.
var ClientOptions = []Option{
	{Key: keyClientServerURL, Flag: toFlag(keyClientServerURL), Default: "http://127.0.0.1:8321", Description: "Broker server URL"},
	{Key: keyClientAuthToken, Flag: toFlag(keyClientAuthToken), Default: "", Description: "Bearer token sent with RPCs"},
	{Key: keyClientInstance, Flag: toFlag(keyClientInstance), Default: 0, Description: "Target instance index"},
	{Key: keyClientSendTimeout, Flag: toFlag(keyClientSendTimeout), Default: time.Duration(0), Description: "Session send timeout (0 posts immediately)"},
	{Key: keyClientRecvTimeout, Flag: toFlag(keyClientRecvTimeout), Default: time.Duration(0), Description: "Session receive timeout (0 reads non-blocking)"},
	{Key: keyClientInterval, Flag: toFlag(keyClientInterval), Default: time.Second, Description: "Delay between messages in automatic write mode"},
}

// toFlag converts a viper key like "broker.max_message_size" into a
// CLI flag like "max-message-size" by lower-casing, replacing dots
// and underscores with hyphens, and stripping the mode prefix.
func toFlag(key string) string {
	flag := strings.ToLower(key)
	flag = strings.ReplaceAll(flag, ".", "-")
	flag = strings.ReplaceAll(flag, "_", "-")
	flag = strings.TrimPrefix(flag, "server-")
	flag = strings.TrimPrefix(flag, "client-")
	flag = strings.TrimPrefix(flag, "broker-")
	return flag
}

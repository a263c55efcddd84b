// Package config provides unified configuration loading from files,
// environment variables, and CLI flags using viper and pflag.
//
// Resolution order (highest wins):
//  1. CLI flags
//  2. Environment variables (prefix TIMEDMQ_)
//  3. Config file (config.yaml in . or /etc/timedmq/)
//  4. Compiled defaults
package config

// Viper keys for server-mode configuration.
const (
	keyServerAddress        = "server.address"
	keyServerAllowedOrigins = "server.allowed_origins"
	keyServerAuthToken      = "server.auth_token"
)

// Viper keys for the broker engine parameters.
const (
	keyBrokerInstances      = "broker.instances"
	keyBrokerMaxMessageSize = "broker.max_message_size"
	keyBrokerMaxStorageSize = "broker.max_storage_size"
)

// Viper keys for client-mode (read/write/flush drivers) configuration.
const (
	keyClientServerURL   = "client.server_url"
	keyClientAuthToken   = "client.auth_token"
	keyClientInstance    = "client.instance"
	keyClientSendTimeout = "client.send_timeout"
	keyClientRecvTimeout = "client.recv_timeout"
	keyClientInterval    = "client.interval"
)

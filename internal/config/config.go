package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config wraps a viper instance and provides typed accessors for every
// configuration key. Create one via New().
type Config struct {
	v *viper.Viper
}

// New initialises a Config by loading values from environment
// variables, the config file, and compiled defaults (in that priority
// order; CLI flags, bound later via BindFlags, take highest priority).
func New() (*Config, error) {
	v := viper.New()

	// Register compiled defaults for all known options.
	for _, o := range ServerOptions {
		v.SetDefault(o.Key, o.Default)
	}
	for _, o := range ClientOptions {
		v.SetDefault(o.Key, o.Default)
	}

	// Attempt to load a config file from the current directory or
	// the system-wide location.
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/timedmq/")

	if err := v.ReadInConfig(); err != nil {
		var notFoundErr viper.ConfigFileNotFoundError
		if !(errors.As(err, &notFoundErr) || errors.Is(err, os.ErrNotExist)) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Environment variables are prefixed with TIMEDMQ_ and use
	// underscores in place of dots (e.g. TIMEDMQ_SERVER_ADDRESS).
	v.SetEnvPrefix("TIMEDMQ")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	return &Config{v: v}, nil
}

// BindFlags registers CLI flags for the given option slice and binds
// them to the underlying viper keys so that flag values override file
// and environment sources.
func (c *Config) BindFlags(fs *pflag.FlagSet, options []Option) error {
	for _, o := range options {
		switch v := o.Default.(type) {
		case string:
			fs.String(o.Flag, v, o.Description)
		case int:
			fs.Int(o.Flag, v, o.Description)
		case bool:
			fs.Bool(o.Flag, v, o.Description)
		case []string:
			fs.StringSlice(o.Flag, v, o.Description)
		case time.Duration:
			fs.Duration(o.Flag, v, o.Description)
		default:
			return fmt.Errorf("unsupported flag type for key: %s", o.Key)
		}

		if err := c.v.BindPFlag(o.Key, fs.Lookup(o.Flag)); err != nil {
			return fmt.Errorf("failed to bind flag %s: %w", o.Flag, err)
		}
	}

	return nil
}

// ---------------------------------------------------------------------------
// Server-mode accessors
// ---------------------------------------------------------------------------

// ServerAddress returns the HTTP listen address for the server.
func (c *Config) ServerAddress() string {
	return c.v.GetString(keyServerAddress)
}

// ServerAllowedOrigins returns the list of allowed CORS origins.
func (c *Config) ServerAllowedOrigins() []string {
	return c.v.GetStringSlice(keyServerAllowedOrigins)
}

// ServerAuthToken returns the static bearer token required on RPCs.
// Empty disables authentication.
func (c *Config) ServerAuthToken() string {
	return c.v.GetString(keyServerAuthToken)
}

// BrokerInstances returns the number of broker instances.
func (c *Config) BrokerInstances() int {
	return c.v.GetInt(keyBrokerInstances)
}

// BrokerMaxMessageSize returns the maximum message size in bytes.
func (c *Config) BrokerMaxMessageSize() int {
	return c.v.GetInt(keyBrokerMaxMessageSize)
}

// BrokerMaxStorageSize returns the per-instance storage budget in
// bytes.
func (c *Config) BrokerMaxStorageSize() int {
	return c.v.GetInt(keyBrokerMaxStorageSize)
}

// ---------------------------------------------------------------------------
// Client-mode accessors
// ---------------------------------------------------------------------------

// ClientServerURL returns the broker server URL the drivers talk to.
func (c *Config) ClientServerURL() string {
	return c.v.GetString(keyClientServerURL)
}

// ClientAuthToken returns the bearer token the drivers send.
func (c *Config) ClientAuthToken() string {
	return c.v.GetString(keyClientAuthToken)
}

// ClientInstance returns the instance index the drivers target.
func (c *Config) ClientInstance() int {
	return c.v.GetInt(keyClientInstance)
}

// ClientSendTimeout returns the session send timeout for the write
// driver.
func (c *Config) ClientSendTimeout() time.Duration {
	return c.v.GetDuration(keyClientSendTimeout)
}

// ClientRecvTimeout returns the session receive timeout for the read
// driver.
func (c *Config) ClientRecvTimeout() time.Duration {
	return c.v.GetDuration(keyClientRecvTimeout)
}

// ClientInterval returns the delay between messages in automatic
// write mode.
func (c *Config) ClientInterval() time.Duration {
	return c.v.GetDuration(keyClientInterval)
}

// Package config loads graphscout configuration from file, environment, and
// defaults.
//
// Precedence (highest wins): environment (GRAPHSCOUT_*), config file, built-in
// defaults. The config file is YAML, located via --config or the default
// search path ($HOME/.graphscout/config.yaml, then ./graphscout.yaml).
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// Config is the full application configuration.
type Config struct {
	Endpoints Endpoints    `mapstructure:"endpoints"`
	Client    ClientConfig `mapstructure:"client"`
	Cache     CacheConfig  `mapstructure:"cache"`
	Server    ServerConfig `mapstructure:"server"`
}

// Endpoints are the backend service base URLs.
type Endpoints struct {
	// Loader is the loader API base URL (schema, load, suggest-schema).
	Loader string `mapstructure:"loader"`

	// Annotation is the annotation API base URL (annotation, history).
	Annotation string `mapstructure:"annotation"`

	// Integration is the integration/mining API base URL.
	Integration string `mapstructure:"integration"`

	// Socket is the websocket URL for annotation update notifications.
	Socket string `mapstructure:"socket"`
}

// ClientConfig tunes outbound HTTP behavior.
type ClientConfig struct {
	// Timeout bounds each backend request.
	Timeout time.Duration `mapstructure:"timeout"`

	// PollInterval is the pull-mode status cadence.
	PollInterval time.Duration `mapstructure:"poll_interval"`

	// RateLimit is the maximum outbound requests per second per service.
	// Zero disables rate limiting.
	RateLimit float64 `mapstructure:"rate_limit"`
}

// CacheConfig locates the local history cache.
type CacheConfig struct {
	// Path is the history cache file. Empty means the default under the
	// user's home directory.
	Path string `mapstructure:"path"`

	// HistoryLimit caps the persisted history entries.
	HistoryLimit int `mapstructure:"history_limit"`
}

// ServerConfig configures the local status server.
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

const (
	defaultTimeout      = 30 * time.Second
	defaultPollInterval = time.Second
	defaultHistoryLimit = 20
	defaultServerHost   = "localhost"
	defaultServerPort   = 8080
)

// Load reads configuration from the given file path (optional) plus
// environment overrides, returning a fully defaulted Config.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("endpoints.loader", "http://localhost:5001")
	v.SetDefault("endpoints.annotation", "http://localhost:5002")
	v.SetDefault("endpoints.integration", "http://localhost:5003")
	v.SetDefault("endpoints.socket", "ws://localhost:5002/updates")
	v.SetDefault("client.timeout", defaultTimeout)
	v.SetDefault("client.poll_interval", defaultPollInterval)
	v.SetDefault("client.rate_limit", 0.0)
	v.SetDefault("cache.path", "")
	v.SetDefault("cache.history_limit", defaultHistoryLimit)
	v.SetDefault("server.host", defaultServerHost)
	v.SetDefault("server.port", defaultServerPort)

	v.SetEnvPrefix("GRAPHSCOUT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".graphscout"))
		}
		v.AddConfigPath(".")
		// A missing default config file is fine; defaults and env apply.
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	decodeHook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(&cfg, decodeHook); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.applyDerivedDefaults(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyDerivedDefaults fills values that depend on the environment.
func (c *Config) applyDerivedDefaults() error {
	if c.Cache.Path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("resolve home directory for cache path: %w", err)
		}
		c.Cache.Path = filepath.Join(home, ".graphscout", "history.json")
	}
	if c.Client.Timeout <= 0 {
		c.Client.Timeout = defaultTimeout
	}
	if c.Client.PollInterval <= 0 {
		c.Client.PollInterval = defaultPollInterval
	}
	if c.Cache.HistoryLimit <= 0 {
		c.Cache.HistoryLimit = defaultHistoryLimit
	}
	return nil
}

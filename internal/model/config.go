package model

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// APIConfig holds settings for the REST snapshot/write endpoints.
type APIConfig struct {
	// BaseURL is the root URL of the Expertly REST API.
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`

	// TimeoutSec bounds a single HTTP request.
	TimeoutSec int `mapstructure:"timeout_sec" yaml:"timeout_sec"`

	// SnapshotLimit is how many notifications a snapshot fetch requests.
	SnapshotLimit int `mapstructure:"snapshot_limit" yaml:"snapshot_limit"`
}

// StreamConfig holds settings for the push-event connection.
type StreamConfig struct {
	// URL is the websocket endpoint for push events.
	URL string `mapstructure:"url" yaml:"url"`

	// BackoffBaseMs is the initial reconnect delay in milliseconds.
	BackoffBaseMs int `mapstructure:"backoff_base_ms" yaml:"backoff_base_ms"`

	// BackoffCapMs is the maximum reconnect delay in milliseconds.
	BackoffCapMs int `mapstructure:"backoff_cap_ms" yaml:"backoff_cap_ms"`
}

// FeedConfig holds settings for the merged feed projection.
type FeedConfig struct {
	// PageSize is the initial number of entries exposed by the feed.
	PageSize int `mapstructure:"page_size" yaml:"page_size"`

	// PageIncrement is how many entries "load more" adds.
	PageIncrement int `mapstructure:"page_increment" yaml:"page_increment"`
}

// CacheConfig holds settings for the local snapshot cache.
type CacheConfig struct {
	// Path is the sqlite file location. Empty uses the default under
	// the user config directory.
	Path string `mapstructure:"path" yaml:"path"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	API    APIConfig    `mapstructure:"api" yaml:"api"`
	Stream StreamConfig `mapstructure:"stream" yaml:"stream"`
	Feed   FeedConfig   `mapstructure:"feed" yaml:"feed"`
	Cache  CacheConfig  `mapstructure:"cache" yaml:"cache"`
}

// APITimeout returns the configured HTTP timeout as a duration.
func (c *AppConfig) APITimeout() time.Duration {
	return time.Duration(c.API.TimeoutSec) * time.Second
}

// BackoffBase returns the initial reconnect delay as a duration.
func (c *AppConfig) BackoffBase() time.Duration {
	return time.Duration(c.Stream.BackoffBaseMs) * time.Millisecond
}

// BackoffCap returns the maximum reconnect delay as a duration.
func (c *AppConfig) BackoffCap() time.Duration {
	return time.Duration(c.Stream.BackoffCapMs) * time.Millisecond
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/expertly/config.yaml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "config.yaml")
	}
	return filepath.Join(home, ".config", "expertly", "config.yaml")
}

// DefaultCachePath returns the default path for the snapshot cache,
// located at ~/.config/expertly/inbox.db.
func DefaultCachePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "inbox.db")
	}
	return filepath.Join(home, ".config", "expertly", "inbox.db")
}

// defaultAppConfig returns a sensible default configuration.
func defaultAppConfig() *AppConfig {
	return &AppConfig{
		API: APIConfig{
			BaseURL:       "https://api.expertly.app",
			TimeoutSec:    15,
			SnapshotLimit: 50,
		},
		Stream: StreamConfig{
			URL:           "wss://stream.expertly.app/socket",
			BackoffBaseMs: 500,
			BackoffCapMs:  30000,
		},
		Feed: FeedConfig{
			PageSize:      10,
			PageIncrement: 10,
		},
	}
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// If the file does not exist, it returns a default configuration.
func LoadConfig(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	// Set defaults so missing keys resolve to sensible values.
	v.SetDefault("api.base_url", "https://api.expertly.app")
	v.SetDefault("api.timeout_sec", 15)
	v.SetDefault("api.snapshot_limit", 50)
	v.SetDefault("stream.url", "wss://stream.expertly.app/socket")
	v.SetDefault("stream.backoff_base_ms", 500)
	v.SetDefault("stream.backoff_cap_ms", 30000)
	v.SetDefault("feed.page_size", 10)
	v.SetDefault("feed.page_increment", 10)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(*os.PathError); ok {
			return defaultAppConfig(), nil
		}
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return defaultAppConfig(), nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg := defaultAppConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if cfg.Feed.PageSize <= 0 {
		cfg.Feed.PageSize = 10
	}
	if cfg.Feed.PageIncrement <= 0 {
		cfg.Feed.PageIncrement = 10
	}
	if cfg.API.SnapshotLimit <= 0 {
		cfg.API.SnapshotLimit = 50
	}

	return cfg, nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("api", cfg.API)
	v.Set("stream", cfg.Stream)
	v.Set("feed", cfg.Feed)
	v.Set("cache", cfg.Cache)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}

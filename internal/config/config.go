// Package config loads and validates the process configuration from the
// viper-backed config file and environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/bnema/parcel/pkg/bytesize"
)

type Config struct {
	Server ServerConfig `mapstructure:"server"`
	Store  StoreConfig  `mapstructure:"store"`
	Ingest IngestConfig `mapstructure:"ingest"`
}

type ServerConfig struct {
	Port     int    `mapstructure:"port"`
	LogLevel string `mapstructure:"log_level"`
}

type StoreConfig struct {
	DataDir  string `mapstructure:"data_dir"`
	MaxConns int    `mapstructure:"max_conns"`
}

type IngestConfig struct {
	MaxUpload    string  `mapstructure:"max_upload"`
	PublishRate  float64 `mapstructure:"publish_rate"`
	PublishBurst int     `mapstructure:"publish_burst"`

	// MaxUploadBytes is the parsed form of MaxUpload.
	MaxUploadBytes int64 `mapstructure:"-"`
}

// Load reads the configuration out of viper, applies defaults and
// validates the result. A .env file in the working directory is honored
// for local development.
func Load() (*Config, error) {
	// Missing .env is the normal case outside development.
	_ = godotenv.Load()

	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.log_level", "info")
	viper.SetDefault("store.data_dir", defaultDataDir())
	viper.SetDefault("store.max_conns", 8)
	viper.SetDefault("ingest.max_upload", "64MB")
	viper.SetDefault("ingest.publish_rate", 10.0)
	viper.SetDefault("ingest.publish_burst", 20)

	var cfg Config
	if err := viper.UnmarshalKey("server", &cfg.Server); err != nil {
		return nil, fmt.Errorf("unable to decode server config: %w", err)
	}
	if err := viper.UnmarshalKey("store", &cfg.Store); err != nil {
		return nil, fmt.Errorf("unable to decode store config: %w", err)
	}
	if err := viper.UnmarshalKey("ingest", &cfg.Ingest); err != nil {
		return nil, fmt.Errorf("unable to decode ingest config: %w", err)
	}

	if cfg.Store.DataDir == "" {
		cfg.Store.DataDir = defaultDataDir()
	}
	maxUpload, err := bytesize.Parse(cfg.Ingest.MaxUpload)
	if err != nil {
		return nil, fmt.Errorf("invalid ingest.max_upload: %w", err)
	}
	cfg.Ingest.MaxUploadBytes = maxUpload
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}
	if _, err := log.ParseLevel(c.Server.LogLevel); err != nil {
		return fmt.Errorf("server.log_level %q is not a valid level", c.Server.LogLevel)
	}
	if c.Store.MaxConns < 1 {
		return fmt.Errorf("store.max_conns must be at least 1")
	}
	if c.Ingest.MaxUploadBytes < 1 {
		return fmt.Errorf("ingest.max_upload_bytes must be positive")
	}
	if c.Ingest.PublishRate <= 0 {
		return fmt.Errorf("ingest.publish_rate must be positive")
	}
	if c.Ingest.PublishBurst < 1 {
		return fmt.Errorf("ingest.publish_burst must be at least 1")
	}
	return nil
}

// defaultDataDir returns a platform-appropriate default data directory.
func defaultDataDir() string {
	if homeDir, err := os.UserHomeDir(); err == nil {
		return filepath.Join(homeDir, ".local/share/parcel")
	}
	return "./data"
}

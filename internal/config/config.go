// Package config provides engine configuration loaded from environment variables.
package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const logPrefix = "config:Load"

// Config holds simpletalk configuration.
type Config struct {
	// Logging
	LogLevel string `envconfig:"SIMPLETALK_LOG_LEVEL" default:"info"`

	// Inspection side channel over COMMS; empty URL disables it.
	InspectURL     string `envconfig:"SIMPLETALK_INSPECT_URL"`
	InspectName    string `envconfig:"SIMPLETALK_INSPECT_NAME" default:"simpletalk"`
	InspectSubject string `envconfig:"SIMPLETALK_INSPECT_SUBJECT" default:"simpletalk.messages"`

	// Snapshots go to Postgres when DATABASE_URL is set, otherwise to SnapshotDir.
	SnapshotDir string `envconfig:"SIMPLETALK_SNAPSHOT_DIR" default:"."`
	DatabaseURL string `envconfig:"SIMPLETALK_DATABASE_URL"`

	// Plugins: comma separated name@version=url entries.
	PluginEndpoints []string      `envconfig:"SIMPLETALK_PLUGIN_ENDPOINTS"`
	PluginTimeout   time.Duration `envconfig:"SIMPLETALK_PLUGIN_TIMEOUT" default:"10s"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var c Config
	if err := envconfig.Process("", &c); err != nil {
		return nil, fmt.Errorf("%s - %w", logPrefix, err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) Validate() error {
	if _, err := c.SlogLevel(); err != nil {
		return err
	}
	if c.PluginTimeout <= 0 {
		return fmt.Errorf("%s - SIMPLETALK_PLUGIN_TIMEOUT must be positive", logPrefix)
	}
	return nil
}

// SlogLevel maps LogLevel to a slog level.
func (c *Config) SlogLevel() (slog.Level, error) {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("%s - unknown SIMPLETALK_LOG_LEVEL %q", logPrefix, c.LogLevel)
}

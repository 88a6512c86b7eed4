// Package config loads, defaults and validates the pathsync daemon
// configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete pathsync configuration.
//
// Configuration sources (in order of precedence):
//  1. Environment variables (PATHSYNC_*)
//  2. Configuration file (YAML or TOML)
//  3. Default values
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging"`

	// Server configures the update stream endpoint consumers connect to
	Server ServerConfig `mapstructure:"server"`

	// DefaultFS is the URI of the default filesystem, e.g.
	// hdfs://nameservice1. Its scheme resolves scheme-less raw paths
	// during normalization.
	DefaultFS string `mapstructure:"default_fs" validate:"required"`

	// Changelog configures the persistent change log
	Changelog ChangelogConfig `mapstructure:"changelog"`

	// Snapshot configures optional full-image snapshot storage
	Snapshot SnapshotConfig `mapstructure:"snapshot"`

	// Metrics configures the Prometheus endpoint
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive)
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error"`

	// Output specifies where logs are written
	// Valid values: stdout, stderr, or a file path
	Output string `mapstructure:"output" validate:"required"`
}

// ServerConfig configures the consumer-facing stream server.
type ServerConfig struct {
	// Listen is the TCP address in host:port form
	Listen string `mapstructure:"listen" validate:"required"`

	// ShutdownTimeout is the maximum time to wait for graceful shutdown
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required,gt=0"`

	// AcceptRate bounds incoming consumer connections per second.
	// Zero disables the limit.
	AcceptRate uint `mapstructure:"accept_rate"`
}

// ChangelogConfig configures the persistent change log.
type ChangelogConfig struct {
	// Dir is the BadgerDB directory holding the change stream
	Dir string `mapstructure:"dir" validate:"required"`

	// TrimInterval is how often deltas older than the latest full image
	// are dropped. Zero disables automatic trimming.
	TrimInterval time.Duration `mapstructure:"trim_interval"`
}

// SnapshotConfig specifies snapshot store configuration.
//
// The Type field determines which store implementation is used.
// Only the corresponding type-specific configuration section is used.
type SnapshotConfig struct {
	// Type specifies which snapshot store implementation to use
	// Valid values: none, s3
	Type string `mapstructure:"type" validate:"required,oneof=none s3"`

	// S3 contains S3-specific configuration
	// Only used when Type = "s3"
	S3 map[string]any `mapstructure:"s3"`

	// Keep is how many snapshots to retain when pruning alongside the
	// changelog trim
	Keep int `mapstructure:"keep" validate:"gte=0"`
}

// MetricsConfig configures Prometheus metrics collection.
type MetricsConfig struct {
	// Enabled turns metrics collection and the HTTP endpoint on
	Enabled bool `mapstructure:"enabled"`

	// Port is the metrics HTTP port
	Port int `mapstructure:"port" validate:"gte=0,lte=65535"`
}

// Load loads configuration from file, environment, and defaults.
//
// An empty configPath uses the default location
// ($XDG_CONFIG_HOME/pathsync/config.yaml); a missing file is fine and
// leaves the defaults in effect.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setupViper(v, configPath)

	if err := readConfigFile(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// setupViper configures viper with environment variables and config file settings.
func setupViper(v *viper.Viper, configPath string) {
	// Environment variables use the PATHSYNC_ prefix and underscores.
	// Example: PATHSYNC_LOGGING_LEVEL=DEBUG
	v.SetEnvPrefix("PATHSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(getConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// readConfigFile reads the configuration file if it exists.
func readConfigFile(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// No config file means defaults only
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}

// getConfigDir returns the configuration directory path.
//
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config, or falls back to the
// current directory if the home directory cannot be determined.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "pathsync")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "pathsync")
}

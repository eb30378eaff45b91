package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/marmos91/dittovfs/pkg/adapter/fuse"
	"github.com/marmos91/dittovfs/pkg/vfs/badgerfs"
	"github.com/marmos91/dittovfs/pkg/vfs/tmpfs"
)

// Config represents the complete dittovfs configuration.
//
// Configuration sources (in order of precedence):
//  1. Environment variables (DITTOVFS_*)
//  2. Configuration file (YAML)
//  3. Default values
//
// Each backend owns its option struct. The section for a filesystem type is
// only read when that type is mounted.
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Metrics controls the Prometheus endpoint
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`

	// Content defines the named content stores file bodies live in
	Content ContentConfig `mapstructure:"content" yaml:"content"`

	// Filesystems holds per-type backend options
	Filesystems FilesystemsConfig `mapstructure:"filesystems" yaml:"filesystems"`

	// Mounts is the ordered mount table. Exactly one entry targets "/".
	Mounts []MountConfig `mapstructure:"mounts" yaml:"mounts" validate:"dive"`

	// Modules are loaded into the module registry at boot
	Modules []string `mapstructure:"modules" yaml:"modules" validate:"dive,required"`

	// ShutdownTimeout bounds how long services get to stop
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" validate:"required,gt=0"`

	// Adapters contains host exposure configurations
	Adapters AdaptersConfig `mapstructure:"adapters" yaml:"adapters"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive, normalized to uppercase)
	Level string `mapstructure:"level" yaml:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error"`

	// Format specifies the log output format
	// Valid values: text, json
	Format string `mapstructure:"format" yaml:"format" validate:"required,oneof=text json"`

	// Output specifies where logs are written
	// Valid values: stdout, stderr, or a file path
	Output string `mapstructure:"output" yaml:"output" validate:"required"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	Port    int  `mapstructure:"port" yaml:"port" validate:"min=0,max=65535"`
}

// ContentConfig maps store names to content store definitions.
type ContentConfig struct {
	Stores map[string]ContentStoreConfig `mapstructure:"stores" yaml:"stores" validate:"dive"`
}

// ContentStoreConfig specifies one content store.
//
// The Type field determines which store implementation is used.
// Only the corresponding type-specific section is read.
type ContentStoreConfig struct {
	// Type specifies which content store implementation to use
	// Valid values: memory, filesystem, s3
	Type string `mapstructure:"type" yaml:"type" validate:"required,oneof=memory filesystem s3"`

	// Filesystem options, only used when Type = "filesystem"
	Filesystem map[string]any `mapstructure:"filesystem" yaml:"filesystem,omitempty"`

	// S3 options, only used when Type = "s3"
	S3 map[string]any `mapstructure:"s3" yaml:"s3,omitempty"`
}

// FilesystemsConfig holds backend options by filesystem type. sysfs has
// no options.
type FilesystemsConfig struct {
	Tmpfs    tmpfs.Config   `mapstructure:"tmpfs" yaml:"tmpfs"`
	Badgerfs BadgerfsConfig `mapstructure:"badgerfs" yaml:"badgerfs"`
}

// BadgerfsConfig adds the content store binding to the badgerfs options.
type BadgerfsConfig struct {
	badgerfs.Config `mapstructure:",squash" yaml:",inline"`

	// ContentStore names the entry of content.stores holding file bodies
	ContentStore string `mapstructure:"content_store" yaml:"content_store" validate:"required"`
}

// MountConfig is one entry of the mount table.
type MountConfig struct {
	// FSType names a registered filesystem type, e.g. "tmpfs"
	FSType string `mapstructure:"fstype" yaml:"fstype" validate:"required"`

	// Target is the absolute mountpoint; "/" for the root mount
	Target string `mapstructure:"target" yaml:"target" validate:"required,startswith=/"`
}

// AdaptersConfig contains all host adapter configurations.
type AdaptersConfig struct {
	// FUSE exposes the tree on the host
	FUSE fuse.Config `mapstructure:"fuse" yaml:"fuse"`
}

// Load loads configuration from file, environment, and defaults.
//
// An empty configPath searches the default location; a missing file there
// is not an error.
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

// setupViper configures environment variables and config file lookup.
// Environment variables use the DITTOVFS_ prefix, e.g.
// DITTOVFS_LOGGING_LEVEL=DEBUG.
func setupViper(v *viper.Viper, configPath string) {
	v.SetEnvPrefix("DITTOVFS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		return
	}
	v.AddConfigPath(getConfigDir())
	v.SetConfigName("config")
	v.SetConfigType("yaml")
}

func readConfigFile(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}

// getConfigDir returns $XDG_CONFIG_HOME/dittovfs, ~/.config/dittovfs, or
// "." if the home directory is unknown.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "dittovfs")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "dittovfs")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// ConfigExists checks if a config file exists at the default location.
func ConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}

// GetConfigDir returns the configuration directory path.
func GetConfigDir() string {
	return getConfigDir()
}

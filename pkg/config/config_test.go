package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	return path
}

func TestLoad_DefaultConfig(t *testing.T) {
	configPath := writeConfig(t, `
logging:
  level: "info"

mounts:
  - fstype: tmpfs
    target: /
  - fstype: sysfs
    target: /sys

modules:
  - ext4
  - fuse
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Logging.Level != "INFO" {
		t.Errorf("Expected normalized level 'INFO', got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" {
		t.Errorf("Expected default format 'text', got %q", cfg.Logging.Format)
	}
	if cfg.ShutdownTimeout != 30*time.Second {
		t.Errorf("Expected default shutdown_timeout 30s, got %v", cfg.ShutdownTimeout)
	}
	if len(cfg.Mounts) != 2 || cfg.Mounts[1].FSType != "sysfs" {
		t.Errorf("Expected the configured mount table, got %+v", cfg.Mounts)
	}
	if len(cfg.Modules) != 2 {
		t.Errorf("Expected 2 modules, got %v", cfg.Modules)
	}
	if _, ok := cfg.Content.Stores[DefaultContentStore]; !ok {
		t.Errorf("Expected default content store to be added")
	}
}

func TestLoad_NoConfigFile(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", tmpDir)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Expected defaults when no config file exists, got error: %v", err)
	}
	if cfg.Mounts[0].Target != "/" {
		t.Errorf("Expected default root mount, got %+v", cfg.Mounts)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	configPath := writeConfig(t, "logging:\n  level: [unclosed\n")

	if _, err := Load(configPath); err == nil {
		t.Fatal("Expected error for invalid YAML")
	}
}

func TestLoad_Durations(t *testing.T) {
	configPath := writeConfig(t, `
shutdown_timeout: 5s
filesystems:
  badgerfs:
    path: /var/lib/dittovfs
    cache_ttl: 250ms
    content_store: default
adapters:
  fuse:
    attr_timeout: 2s
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if cfg.ShutdownTimeout != 5*time.Second {
		t.Errorf("Expected 5s, got %v", cfg.ShutdownTimeout)
	}
	if cfg.Filesystems.Badgerfs.CacheTTL != 250*time.Millisecond {
		t.Errorf("Expected 250ms cache_ttl, got %v", cfg.Filesystems.Badgerfs.CacheTTL)
	}
	if cfg.Filesystems.Badgerfs.Path != "/var/lib/dittovfs" {
		t.Errorf("Expected squashed badgerfs path, got %q", cfg.Filesystems.Badgerfs.Path)
	}
	if cfg.Adapters.FUSE.AttrTimeout != 2*time.Second {
		t.Errorf("Expected 2s attr_timeout, got %v", cfg.Adapters.FUSE.AttrTimeout)
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	configPath := writeConfig(t, `
mounts:
  - fstype: sysfs
    target: /sys
`)

	if _, err := Load(configPath); err == nil {
		t.Fatal("Expected error when the root mount is missing")
	}
}

func TestGetDefaultConfigPath(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/xdg")

	if got := GetDefaultConfigPath(); got != "/xdg/dittovfs/config.yaml" {
		t.Errorf("Expected /xdg/dittovfs/config.yaml, got %q", got)
	}
	if filepath.Base(GetConfigDir()) != "dittovfs" {
		t.Errorf("Expected directory name 'dittovfs', got %q", GetConfigDir())
	}
}

func TestConfigExists(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	if ConfigExists() {
		t.Fatal("Expected no config in a fresh directory")
	}
	if _, err := InitConfig(false); err != nil {
		t.Fatalf("InitConfig failed: %v", err)
	}
	if !ConfigExists() {
		t.Error("Expected config to exist after InitConfig")
	}
}

func TestLoad_EnvironmentVariables(t *testing.T) {
	t.Setenv("DITTOVFS_LOGGING_LEVEL", "ERROR")
	t.Setenv("DITTOVFS_METRICS_PORT", "9191")

	configPath := writeConfig(t, `
logging:
  level: "INFO"
metrics:
  enabled: true
  port: 9090
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Logging.Level != "ERROR" {
		t.Errorf("Expected level 'ERROR' from env var, got %q", cfg.Logging.Level)
	}
	if cfg.Metrics.Port != 9191 {
		t.Errorf("Expected port 9191 from env var, got %d", cfg.Metrics.Port)
	}
}

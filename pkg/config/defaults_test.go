package config

import (
	"testing"
	"time"
)

func TestApplyDefaults_Logging(t *testing.T) {
	cfg := &Config{Logging: LoggingConfig{Level: "debug"}}
	ApplyDefaults(cfg)

	if cfg.Logging.Level != "DEBUG" {
		t.Errorf("Expected level normalized to DEBUG, got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" || cfg.Logging.Output != "stdout" {
		t.Errorf("Unexpected logging defaults: %+v", cfg.Logging)
	}
}

func TestApplyDefaults_MountTable(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if len(cfg.Mounts) != 2 {
		t.Fatalf("Expected 2 default mounts, got %d", len(cfg.Mounts))
	}
	if cfg.Mounts[0] != (MountConfig{FSType: "tmpfs", Target: "/"}) {
		t.Errorf("Expected tmpfs root, got %+v", cfg.Mounts[0])
	}
	if cfg.Mounts[1] != (MountConfig{FSType: "sysfs", Target: "/sys"}) {
		t.Errorf("Expected sysfs at /sys, got %+v", cfg.Mounts[1])
	}
}

func TestApplyDefaults_Content(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	store, ok := cfg.Content.Stores[DefaultContentStore]
	if !ok {
		t.Fatal("Expected default content store")
	}
	if store.Type != "filesystem" {
		t.Errorf("Expected filesystem default store, got %q", store.Type)
	}
	if store.Filesystem["path"] == "" {
		t.Error("Expected default filesystem path")
	}
}

func TestApplyDefaults_ContentFilesystemPath(t *testing.T) {
	cfg := &Config{Content: ContentConfig{Stores: map[string]ContentStoreConfig{
		"bodies": {Type: "filesystem"},
		"fast":   {Type: "memory"},
	}}}
	ApplyDefaults(cfg)

	if _, ok := cfg.Content.Stores["bodies"].Filesystem["path"]; !ok {
		t.Error("Expected a path for a filesystem store without one")
	}
	if cfg.Content.Stores["fast"].Filesystem != nil {
		t.Error("Memory store should not get filesystem options")
	}
	if _, ok := cfg.Content.Stores[DefaultContentStore]; ok {
		t.Error("Default store must not be added when stores are configured")
	}
}

func TestApplyDefaults_Filesystems(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.Filesystems.Tmpfs.Mode != 0755 {
		t.Errorf("Expected tmpfs mode 0755, got %o", cfg.Filesystems.Tmpfs.Mode)
	}
	b := cfg.Filesystems.Badgerfs
	if b.CacheSize != 4096 || b.CacheTTL != 5*time.Second {
		t.Errorf("Unexpected badgerfs cache defaults: size=%d ttl=%v", b.CacheSize, b.CacheTTL)
	}
	if b.Path == "" {
		t.Error("Expected default badgerfs path")
	}
	if b.ContentStore != DefaultContentStore {
		t.Errorf("Expected content store %q, got %q", DefaultContentStore, b.ContentStore)
	}
}

func TestApplyDefaults_InMemoryBadgerfsHasNoPath(t *testing.T) {
	cfg := &Config{}
	cfg.Filesystems.Badgerfs.InMemory = true
	ApplyDefaults(cfg)

	if cfg.Filesystems.Badgerfs.Path != "" {
		t.Errorf("In-memory badgerfs should not get a path, got %q", cfg.Filesystems.Badgerfs.Path)
	}
}

func TestApplyDefaults_FUSE(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	f := cfg.Adapters.FUSE
	if f.Enabled {
		t.Error("FUSE must stay disabled unless configured")
	}
	if f.Mountpoint == "" {
		t.Error("Expected default mountpoint")
	}
	if f.AttrTimeout != time.Second || f.EntryTimeout != time.Second {
		t.Errorf("Unexpected timeouts: %v %v", f.AttrTimeout, f.EntryTimeout)
	}
}

func TestApplyDefaults_PreservesExplicitValues(t *testing.T) {
	cfg := &Config{
		Logging:         LoggingConfig{Level: "WARN", Format: "json", Output: "stderr"},
		Metrics:         MetricsConfig{Port: 9999},
		ShutdownTimeout: time.Minute,
		Mounts:          []MountConfig{{FSType: "badgerfs", Target: "/"}},
		Modules:         []string{"loop"},
	}
	ApplyDefaults(cfg)

	if cfg.Logging.Format != "json" || cfg.Logging.Output != "stderr" {
		t.Errorf("Logging overridden: %+v", cfg.Logging)
	}
	if cfg.Metrics.Port != 9999 {
		t.Errorf("Metrics port overridden: %d", cfg.Metrics.Port)
	}
	if cfg.ShutdownTimeout != time.Minute {
		t.Errorf("Shutdown timeout overridden: %v", cfg.ShutdownTimeout)
	}
	if len(cfg.Mounts) != 1 || cfg.Mounts[0].FSType != "badgerfs" {
		t.Errorf("Mount table overridden: %+v", cfg.Mounts)
	}
}

func TestGetDefaultConfig_IsValid(t *testing.T) {
	if err := Validate(GetDefaultConfig()); err != nil {
		t.Fatalf("Default config is invalid: %v", err)
	}
}

package config

import (
	"strings"
	"testing"
)

func validConfig() *Config {
	return GetDefaultConfig()
}

func TestValidate_Default(t *testing.T) {
	if err := Validate(validConfig()); err != nil {
		t.Fatalf("Expected default config to be valid, got %v", err)
	}
}

func TestValidate_RootMountFirst(t *testing.T) {
	cfg := validConfig()
	cfg.Mounts = []MountConfig{
		{FSType: "sysfs", Target: "/sys"},
		{FSType: "tmpfs", Target: "/"},
	}

	err := Validate(cfg)
	if err == nil || !strings.Contains(err.Error(), "mounts[0]") {
		t.Fatalf("Expected root mount error, got %v", err)
	}
}

func TestValidate_EmptyMountTable(t *testing.T) {
	cfg := validConfig()
	cfg.Mounts = nil

	if err := Validate(cfg); err == nil {
		t.Fatal("Expected error for empty mount table")
	}
}

func TestValidate_DuplicateTargets(t *testing.T) {
	cfg := validConfig()
	cfg.Mounts = append(cfg.Mounts, MountConfig{FSType: "tmpfs", Target: "/sys"})

	err := Validate(cfg)
	if err == nil || !strings.Contains(err.Error(), "duplicate target") {
		t.Fatalf("Expected duplicate target error, got %v", err)
	}
}

func TestValidate_RelativeTarget(t *testing.T) {
	cfg := validConfig()
	cfg.Mounts = append(cfg.Mounts, MountConfig{FSType: "tmpfs", Target: "scratch"})

	if err := Validate(cfg); err == nil {
		t.Fatal("Expected error for relative mount target")
	}
}

func TestValidate_BadgerfsContentStore(t *testing.T) {
	cfg := validConfig()
	cfg.Mounts = append(cfg.Mounts, MountConfig{FSType: "badgerfs", Target: "/data"})
	cfg.Filesystems.Badgerfs.ContentStore = "missing"

	err := Validate(cfg)
	if err == nil || !strings.Contains(err.Error(), "content_store") {
		t.Fatalf("Expected content store error, got %v", err)
	}

	cfg.Filesystems.Badgerfs.ContentStore = DefaultContentStore
	if err := Validate(cfg); err != nil {
		t.Fatalf("Expected valid config, got %v", err)
	}
}

func TestValidate_UnmountedBadgerfsIgnoresStore(t *testing.T) {
	cfg := validConfig()
	cfg.Filesystems.Badgerfs.ContentStore = "missing"

	if err := Validate(cfg); err != nil {
		t.Fatalf("badgerfs options must only matter when mounted, got %v", err)
	}
}

func TestValidate_DuplicateModules(t *testing.T) {
	cfg := validConfig()
	cfg.Modules = []string{"ext4", "fuse", "ext4"}

	err := Validate(cfg)
	if err == nil || !strings.Contains(err.Error(), "duplicate module") {
		t.Fatalf("Expected duplicate module error, got %v", err)
	}
}

func TestValidate_LogLevel(t *testing.T) {
	cfg := validConfig()
	cfg.Logging.Level = "VERBOSE"

	if err := Validate(cfg); err == nil {
		t.Fatal("Expected error for invalid log level")
	}
}

func TestValidate_ContentStoreType(t *testing.T) {
	cfg := validConfig()
	cfg.Content.Stores["weird"] = ContentStoreConfig{Type: "tape"}

	if err := Validate(cfg); err == nil {
		t.Fatal("Expected error for unknown content store type")
	}
}

func TestValidate_FUSERequiresMountpoint(t *testing.T) {
	cfg := validConfig()
	cfg.Adapters.FUSE.Enabled = true
	cfg.Adapters.FUSE.Mountpoint = ""

	if err := Validate(cfg); err == nil {
		t.Fatal("Expected error for FUSE without mountpoint")
	}
}

func TestValidate_ShutdownTimeout(t *testing.T) {
	cfg := validConfig()
	cfg.ShutdownTimeout = 0

	if err := Validate(cfg); err == nil {
		t.Fatal("Expected error for zero shutdown timeout")
	}
}

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestInitConfig(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", tmpDir)

	path, err := InitConfig(false)
	if err != nil {
		t.Fatalf("InitConfig failed: %v", err)
	}

	expected := filepath.Join(tmpDir, "dittovfs", "config.yaml")
	if path != expected {
		t.Errorf("Expected path %q, got %q", expected, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read generated config: %v", err)
	}
	content := string(data)

	if !strings.Contains(content, "dittovfs Configuration File") {
		t.Error("Generated config is missing the header")
	}
	for _, section := range []string{"logging:", "metrics:", "content:", "filesystems:", "mounts:", "modules:", "adapters:"} {
		if !strings.Contains(content, section) {
			t.Errorf("Generated config is missing section %q", section)
		}
	}
}

func TestInitConfig_RefusesOverwrite(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	if _, err := InitConfig(false); err != nil {
		t.Fatalf("First InitConfig failed: %v", err)
	}
	if _, err := InitConfig(false); err == nil {
		t.Fatal("Expected error when config already exists")
	}
	if _, err := InitConfig(true); err != nil {
		t.Fatalf("InitConfig with force failed: %v", err)
	}
}

func TestInitConfigToPath_CreatesParents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "dittovfs.yaml")

	if err := InitConfigToPath(path, false); err != nil {
		t.Fatalf("InitConfigToPath failed: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("Config file not created: %v", err)
	}
}

func TestGeneratedConfigLoads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := InitConfigToPath(path, false); err != nil {
		t.Fatalf("InitConfigToPath failed: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Generated config does not load: %v", err)
	}

	def := GetDefaultConfig()
	if cfg.ShutdownTimeout != def.ShutdownTimeout {
		t.Errorf("Shutdown timeout changed in round trip: %v vs %v", cfg.ShutdownTimeout, def.ShutdownTimeout)
	}
	if len(cfg.Mounts) != len(def.Mounts) {
		t.Errorf("Mount table changed in round trip: %+v", cfg.Mounts)
	}
	if cfg.Filesystems.Badgerfs.CacheTTL != def.Filesystems.Badgerfs.CacheTTL {
		t.Errorf("Badgerfs cache_ttl changed in round trip: %v", cfg.Filesystems.Badgerfs.CacheTTL)
	}
}

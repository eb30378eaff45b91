package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/marmos91/dittovfs/pkg/adapter/fuse"
)

// DefaultContentStore is the content store created when none is configured.
const DefaultContentStore = "default"

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// Zero values are replaced; explicit values are preserved. Backend-specific
// defaults are delegated to the backend's own ApplyDefaults.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyMetricsDefaults(&cfg.Metrics)
	applyContentDefaults(&cfg.Content)
	applyFilesystemsDefaults(&cfg.Filesystems)

	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}

	if len(cfg.Mounts) == 0 {
		cfg.Mounts = []MountConfig{
			{FSType: "tmpfs", Target: "/"},
			{FSType: "sysfs", Target: "/sys"},
		}
	}
	if cfg.Modules == nil {
		cfg.Modules = []string{}
	}

	applyFUSEDefaults(&cfg.Adapters.FUSE)
}

// applyLoggingDefaults sets logging defaults and normalizes the level.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

func applyMetricsDefaults(cfg *MetricsConfig) {
	if cfg.Port == 0 {
		cfg.Port = 9090
	}
}

// applyContentDefaults adds a filesystem store under the default name when
// no store is configured.
func applyContentDefaults(cfg *ContentConfig) {
	if len(cfg.Stores) == 0 {
		cfg.Stores = map[string]ContentStoreConfig{
			DefaultContentStore: {
				Type: "filesystem",
				Filesystem: map[string]any{
					"path": filepath.Join(os.TempDir(), "dittovfs", "content"),
				},
			},
		}
	}

	for name, store := range cfg.Stores {
		if store.Type == "filesystem" {
			if store.Filesystem == nil {
				store.Filesystem = make(map[string]any)
			}
			if _, ok := store.Filesystem["path"]; !ok {
				store.Filesystem["path"] = filepath.Join(os.TempDir(), "dittovfs", "content-"+name)
			}
		}
		cfg.Stores[name] = store
	}
}

func applyFilesystemsDefaults(cfg *FilesystemsConfig) {
	if cfg.Tmpfs.Mode == 0 {
		cfg.Tmpfs.Mode = 0755
	}

	cfg.Badgerfs.ApplyDefaults()
	if cfg.Badgerfs.Path == "" && !cfg.Badgerfs.InMemory {
		cfg.Badgerfs.Path = filepath.Join(os.TempDir(), "dittovfs", "badger")
	}
	if cfg.Badgerfs.ContentStore == "" {
		cfg.Badgerfs.ContentStore = DefaultContentStore
	}
}

// applyFUSEDefaults fills adapter defaults. Enabled is left alone so an
// explicit false survives.
func applyFUSEDefaults(cfg *fuse.Config) {
	cfg.ApplyDefaults()
	if cfg.Mountpoint == "" {
		cfg.Mountpoint = filepath.Join(os.TempDir(), "dittovfs", "mnt")
	}
}

// GetDefaultConfig returns a Config with all default values applied.
// Used for config file generation and tests.
func GetDefaultConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

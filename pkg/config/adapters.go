package config

import (
	"github.com/marmos91/dittovfs/pkg/adapter"
	"github.com/marmos91/dittovfs/pkg/adapter/fuse"
	"github.com/marmos91/dittovfs/pkg/vfs"
)

// CreateAdapters creates every enabled adapter over v. An empty result is
// valid: the tree is then reachable only through the shell.
func CreateAdapters(cfg *Config, v *vfs.VFS) []adapter.Adapter {
	var adapters []adapter.Adapter

	if cfg.Adapters.FUSE.Enabled {
		adapters = append(adapters, fuse.New(cfg.Adapters.FUSE, v))
	}

	return adapters
}

// Package tmpfs implements a read-write in-memory filesystem.
//
// Every Mount produces a fresh, empty tree; nothing survives an unmount.
package tmpfs

import (
	"github.com/marmos91/dittovfs/internal/logger"
	"github.com/marmos91/dittovfs/pkg/vfs"
)

// Config configures the root directory of new mounts.
type Config struct {
	// Mode holds the permission bits of the root directory.
	// Default: 0755
	Mode uint32 `mapstructure:"mode" yaml:"mode"`

	// UID and GID own the root directory.
	UID uint32 `mapstructure:"uid" yaml:"uid"`
	GID uint32 `mapstructure:"gid" yaml:"gid"`

	// MaxFileSize caps the size of a single file in bytes. Files never grow
	// past 4 GiB; 0 means that ceiling.
	MaxFileSize int64 `mapstructure:"max_file_size" yaml:"max_file_size"`
}

// FileSystem is the tmpfs backend. It is not exclusive.
type FileSystem struct {
	cfg Config
}

// New creates a tmpfs backend.
func New(cfg Config) *FileSystem {
	if cfg.Mode == 0 {
		cfg.Mode = 0o755
	}
	return &FileSystem{cfg: cfg}
}

func (fs *FileSystem) Name() string {
	return "tmpfs"
}

func (fs *FileSystem) Mount() (vfs.SuperBlock, vfs.DirInode, error) {
	root := newDir(vfs.NewPermission(fs.cfg.Mode), fs.cfg.UID, fs.cfg.GID, fs.cfg.MaxFileSize)
	logger.Debug("tmpfs: new tree (mode %04o)", fs.cfg.Mode)
	return &superBlock{fs: fs}, root, nil
}

func (fs *FileSystem) FinishMount(*vfs.Dentry) {}

type superBlock struct {
	fs *FileSystem
}

func (sb *superBlock) FileSystem() vfs.FileSystem {
	return sb.fs
}

func (sb *superBlock) Unmount() error {
	return nil
}

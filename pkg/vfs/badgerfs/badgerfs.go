// Package badgerfs implements a persistent read-write filesystem on
// BadgerDB.
//
// Inode records and directory entries live in the database; file bodies
// live in a content.Store keyed by inode uuid. Decoded records are kept in
// an expirable LRU in front of the database.
//
// The backend is exclusive: one database can be mounted once at a time.
// Because the database may be changed by another process between mounts,
// the backend asks the VFS to revalidate cached dentries.
package badgerfs

import (
	"fmt"
	"strings"
	"sync"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"

	"github.com/marmos91/dittovfs/internal/logger"
	"github.com/marmos91/dittovfs/pkg/content"
	"github.com/marmos91/dittovfs/pkg/vfs"
)

// Config configures a badgerfs backend.
type Config struct {
	// Path is the database directory. Required unless InMemory is set.
	Path string `mapstructure:"path" yaml:"path"`

	// InMemory keeps the database in memory; nothing survives an unmount.
	InMemory bool `mapstructure:"in_memory" yaml:"in_memory"`

	// CacheSize bounds the number of cached inode records.
	// Default: 4096
	CacheSize int `mapstructure:"cache_size" yaml:"cache_size"`

	// CacheTTL is how long a cached record stays valid.
	// Default: 5s
	CacheTTL time.Duration `mapstructure:"cache_ttl" yaml:"cache_ttl"`

	// Mode, UID and GID describe the root directory of a new database.
	// Default mode: 0755
	Mode uint32 `mapstructure:"mode" yaml:"mode"`
	UID  uint32 `mapstructure:"uid" yaml:"uid"`
	GID  uint32 `mapstructure:"gid" yaml:"gid"`
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.CacheSize == 0 {
		c.CacheSize = 4096
	}
	if c.CacheTTL == 0 {
		c.CacheTTL = 5 * time.Second
	}
	if c.Mode == 0 {
		c.Mode = 0o755
	}
}

// FileSystem is the badgerfs backend.
type FileSystem struct {
	cfg     Config
	content content.Store

	mu     sync.Mutex
	active *state
}

// New creates a backend storing file bodies in store.
func New(cfg Config, store content.Store) (*FileSystem, error) {
	cfg.ApplyDefaults()
	if cfg.Path == "" && !cfg.InMemory {
		return nil, fmt.Errorf("badgerfs: path is required unless in_memory is set")
	}
	if store == nil {
		return nil, fmt.Errorf("badgerfs: content store is required")
	}
	return &FileSystem{cfg: cfg, content: store}, nil
}

func (fs *FileSystem) Name() string {
	return "badgerfs"
}

func (fs *FileSystem) CachePolicy() vfs.CachePolicy {
	return vfs.CacheRevalidate
}

func (fs *FileSystem) location() string {
	if fs.cfg.InMemory {
		return "memory"
	}
	return fs.cfg.Path
}

func (fs *FileSystem) Mount() (vfs.SuperBlock, vfs.DirInode, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if fs.active != nil {
		return nil, nil, fmt.Errorf("badgerfs at %s is already mounted: %w", fs.location(), vfs.EBUSY)
	}

	db, err := fs.open()
	if err != nil {
		return nil, nil, err
	}

	st := newState(db, fs.content, fs.cfg.CacheSize, fs.cfg.CacheTTL)
	rootID, err := st.ensureRoot(vfs.NewPermission(fs.cfg.Mode), fs.cfg.UID, fs.cfg.GID)
	if err != nil {
		if cerr := db.Close(); cerr != nil {
			logger.Debug("badgerfs: close after failed mount: %v", cerr)
		}
		return nil, nil, err
	}

	root, err := st.node(rootID, vfs.TypeDirectory)
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	dir, _ := root.Dir()

	fs.active = st
	logger.Debug("badgerfs: opened database at %s (root %s)", fs.location(), rootID)
	return &superBlock{fs: fs, st: st}, dir, nil
}

func (fs *FileSystem) open() (*badger.DB, error) {
	var opts badger.Options
	if fs.cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true).WithMemTableSize(8 << 20)
	} else {
		opts = badger.DefaultOptions(fs.cfg.Path)
	}
	opts = opts.
		WithLogger(badgerLogger{}).
		WithLoggingLevel(badger.WARNING).
		WithCompression(options.None)

	db, err := badger.Open(opts)
	if err != nil {
		if strings.Contains(err.Error(), "directory lock") {
			return nil, fmt.Errorf("badgerfs at %s is in use: %v: %w", fs.location(), err, vfs.EBUSY)
		}
		return nil, fmt.Errorf("failed to open BadgerDB at %s: %w", fs.location(), err)
	}
	return db, nil
}

func (fs *FileSystem) FinishMount(*vfs.Dentry) {}

// Mounted reports whether the database is currently open.
func (fs *FileSystem) Mounted() bool {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.active != nil
}

type superBlock struct {
	fs *FileSystem
	st *state
}

func (sb *superBlock) FileSystem() vfs.FileSystem {
	return sb.fs
}

// Unmount closes the database. The slot is released even if closing fails.
func (sb *superBlock) Unmount() error {
	sb.fs.mu.Lock()
	if sb.fs.active == sb.st {
		sb.fs.active = nil
	}
	sb.fs.mu.Unlock()

	return sb.st.close()
}

// badgerLogger routes badger's own logging through the process logger.
type badgerLogger struct{}

func (badgerLogger) Errorf(format string, v ...any) {
	logger.Error("badger: "+strings.TrimSpace(format), v...)
}

func (badgerLogger) Warningf(format string, v ...any) {
	logger.Warn("badger: "+strings.TrimSpace(format), v...)
}

func (badgerLogger) Infof(format string, v ...any) {
	logger.Info("badger: "+strings.TrimSpace(format), v...)
}

func (badgerLogger) Debugf(format string, v ...any) {
	logger.Debug("badger: "+strings.TrimSpace(format), v...)
}

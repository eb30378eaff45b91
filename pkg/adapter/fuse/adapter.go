// Package fuse exposes a VFS tree on the host through go-fuse.
//
// Every host request is translated into a path operation on the VFS, so
// mounts inside the tree (sysfs, badgerfs) are visible on the host exactly
// as the syscall layer sees them.
package fuse

import (
	"context"
	"fmt"
	"os"
	"sync"
	"syscall"

	gofusefs "github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/marmos91/dittovfs/internal/logger"
	"github.com/marmos91/dittovfs/internal/ratelimiter"
	"github.com/marmos91/dittovfs/pkg/vfs"
)

// Adapter implements adapter.Adapter for FUSE.
type Adapter struct {
	cfg     Config
	vfs     *vfs.VFS
	limiter *ratelimiter.RateLimiter

	mu       sync.Mutex
	server   *fuse.Server
	closing  bool
	stopOnce sync.Once
	stopped  chan struct{}
}

// New creates a FUSE adapter over v. Nothing is mounted until Serve.
func New(cfg Config, v *vfs.VFS) *Adapter {
	cfg.ApplyDefaults()

	a := &Adapter{
		cfg:     cfg,
		vfs:     v,
		stopped: make(chan struct{}),
	}
	if cfg.RateLimit.Enabled {
		a.limiter = ratelimiter.New(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)
	}
	return a
}

func (a *Adapter) Protocol() string {
	return "FUSE"
}

func (a *Adapter) Endpoint() string {
	return a.cfg.Mountpoint
}

// Root returns the host inode for the VFS root.
func (a *Adapter) Root() gofusefs.InodeEmbedder {
	return &node{adapter: a, path: "/"}
}

// admit charges one request against the rate limit.
func (a *Adapter) admit() syscall.Errno {
	if !a.limiter.Allow() {
		return syscall.EAGAIN
	}
	return gofusefs.OK
}

func (a *Adapter) options() *gofusefs.Options {
	return &gofusefs.Options{
		AttrTimeout:  durationPtr(a.cfg.AttrTimeout),
		EntryTimeout: durationPtr(a.cfg.EntryTimeout),
		MountOptions: fuse.MountOptions{
			AllowOther:    a.cfg.AllowOther,
			Debug:         a.cfg.Debug,
			FsName:        "dittovfs",
			Name:          "dittovfs",
			DisableXAttrs: true,
		},
	}
}

// Serve mounts the tree and blocks until ctx is cancelled or the host
// unmounts it.
func (a *Adapter) Serve(ctx context.Context) error {
	if err := os.MkdirAll(a.cfg.Mountpoint, 0755); err != nil {
		return fmt.Errorf("failed to create mountpoint %s: %w", a.cfg.Mountpoint, err)
	}

	server, err := gofusefs.Mount(a.cfg.Mountpoint, a.Root(), a.options())
	if err != nil {
		return fmt.Errorf("failed to mount FUSE at %s: %w", a.cfg.Mountpoint, err)
	}

	a.mu.Lock()
	if a.closing {
		a.mu.Unlock()
		return server.Unmount()
	}
	a.server = server
	a.mu.Unlock()
	logger.Info("FUSE adapter mounted at %s", a.cfg.Mountpoint)

	done := make(chan struct{})
	go func() {
		server.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		return a.Stop(context.Background())
	case <-a.stopped:
		return nil
	case <-done:
		logger.Info("FUSE mount at %s was released by the host", a.cfg.Mountpoint)
		return nil
	}
}

// Stop unmounts the host mount. Safe to call more than once.
func (a *Adapter) Stop(context.Context) error {
	var err error
	a.stopOnce.Do(func() {
		defer close(a.stopped)

		a.mu.Lock()
		a.closing = true
		server := a.server
		a.mu.Unlock()
		if server == nil {
			return
		}

		logger.Debug("FUSE adapter unmounting %s", a.cfg.Mountpoint)
		if uerr := server.Unmount(); uerr != nil {
			err = fmt.Errorf("failed to unmount %s: %w", a.cfg.Mountpoint, uerr)
			return
		}
		logger.Info("FUSE adapter stopped")
	})
	return err
}

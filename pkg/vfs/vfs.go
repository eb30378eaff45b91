package vfs

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/marmos91/dittovfs/internal/logger"
	"github.com/marmos91/dittovfs/pkg/metrics"
)

// VFS owns the mount table and resolves paths across it.
//
// Mount table changes are serialized by mu. Path walks take mu only to read
// the root; below it they follow the covered pointers on dentries, which are set and cleared while
// mu is held. Backends are never called with mu held.
type VFS struct {
	mu      sync.Mutex
	root    *Mount
	mounts  []*Mount
	nextID  uint64
	metrics metrics.VFSMetrics
}

// New creates an empty VFS. A nil m disables metrics.
func New(m metrics.VFSMetrics) *VFS {
	if m == nil {
		m = metrics.NewNoopVFSMetrics()
	}
	return &VFS{metrics: m}
}

// Metrics returns the collector the VFS reports to.
func (v *VFS) Metrics() metrics.VFSMetrics {
	return v.metrics
}

// Root returns the root dentry of the tree, nil before MountRoot.
func (v *VFS) Root() *Dentry {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.root == nil {
		return nil
	}
	return v.root.root
}

func (v *VFS) rootDentry() (*Dentry, error) {
	if root := v.Root(); root != nil {
		return root, nil
	}
	return nil, fmt.Errorf("no root filesystem mounted: %w", ENOENT)
}

// MountRoot mounts fs as "/". EBUSY if a root is already mounted.
func (v *VFS) MountRoot(fs FileSystem) error {
	if fs == nil {
		return EINVAL
	}

	check := func() error {
		if v.root != nil {
			return fmt.Errorf("root filesystem already mounted: %w", EBUSY)
		}
		return nil
	}
	_, err := v.attach(fs, nil, check)
	return err
}

// Mount attaches fs on top of target. target must be a directory of a
// mounted filesystem that is not already covered.
func (v *VFS) Mount(fs FileSystem, target *Dentry) (*Mount, error) {
	if fs == nil || target == nil {
		return nil, EINVAL
	}
	if !target.inode.IsDir() {
		return nil, ENOTDIR
	}

	check := func() error {
		if v.root == nil {
			return fmt.Errorf("no root filesystem mounted: %w", ENOENT)
		}
		if !v.attached(target.mount) {
			return fmt.Errorf("mount target is not part of the tree: %w", EINVAL)
		}
		if target.IsMountpoint() {
			return fmt.Errorf("%s is already a mountpoint: %w", target.Path(), EBUSY)
		}
		return nil
	}
	return v.attach(fs, target, check)
}

// attach runs the two-phase backend mount and links the result into the
// table. check validates the table and runs under v.mu, once before the
// backend is asked to mount and again before linking. The backend itself
// is only called with v.mu released.
func (v *VFS) attach(fs FileSystem, target *Dentry, check func() error) (*Mount, error) {
	v.mu.Lock()
	err := check()
	v.mu.Unlock()
	if err != nil {
		return nil, err
	}

	sb, rootDir, err := fs.Mount()
	if err != nil {
		return nil, err
	}

	m := &Mount{
		fs:         fs,
		sb:         sb,
		mountpoint: target,
		policy:     PolicyOf(fs),
		metrics:    v.metrics,
	}
	m.root = &Dentry{inode: DirNode(rootDir), mount: m}
	fs.FinishMount(m.root)

	v.mu.Lock()
	if err := check(); err != nil {
		v.mu.Unlock()
		v.release(m, m.Path())
		return nil, err
	}
	v.nextID++
	m.id = v.nextID
	if target != nil {
		m.parent = target.mount
		target.setCovered(m)
		if target.parent != nil {
			target.parent.pin(target)
		}
	} else {
		v.root = m
	}
	v.mounts = append(v.mounts, m)
	active := len(v.mounts)
	v.mu.Unlock()

	v.metrics.SetActiveMounts(int64(active))
	logger.Info("Mounted %s on %s (cache policy: %s)", fs.Name(), m.Path(), m.policy)
	return m, nil
}

// release hands a detached mount back to its backend. Backend errors are
// logged only.
func (v *VFS) release(m *Mount, path string) {
	if err := m.sb.Unmount(); err != nil {
		logger.Warn("Unmount of %s at %s reported: %v", m.fs.Name(), path, err)
	}
}

func (v *VFS) attached(m *Mount) bool {
	if m == nil {
		return false
	}
	for _, cur := range v.mounts {
		if cur == m {
			return true
		}
	}
	return false
}

// Unmount detaches the mount whose root is target.
//
// The root mount, mounts with submounts and mounts with open files are busy.
// The mount leaves the table before the backend's Unmount runs, so the
// backend is free to walk paths. Its error is logged and otherwise ignored;
// once the preconditions pass the mount is always detached.
func (v *VFS) Unmount(target *Dentry) error {
	if target == nil {
		return EINVAL
	}

	v.mu.Lock()
	m := target.mount
	if m == nil || m.root != target || !v.attached(m) {
		v.mu.Unlock()
		return fmt.Errorf("%s is not a mount root: %w", target.Path(), EINVAL)
	}
	if err := v.detach(m); err != nil {
		v.mu.Unlock()
		return err
	}
	path := m.Path()
	mp := m.mountpoint
	mp.setCovered(nil)
	if mp.parent != nil && mp.policy() == CacheNever {
		mp.parent.RemoveChildForce(mp.name)
	}
	active := len(v.mounts)
	v.mu.Unlock()

	v.release(m, path)

	v.metrics.SetActiveMounts(int64(active))
	logger.Info("Unmounted %s from %s", m.fs.Name(), path)
	return nil
}

// detach checks that m is idle and removes it from the table. Caller holds
// v.mu.
func (v *VFS) detach(m *Mount) error {
	if m == v.root {
		return fmt.Errorf("cannot unmount the root filesystem: %w", EBUSY)
	}
	for _, other := range v.mounts {
		if other.parent == m {
			return fmt.Errorf("%s has submounts: %w", m.Path(), EBUSY)
		}
	}
	if n := m.OpenFiles(); n > 0 {
		return fmt.Errorf("%s has %d open files: %w", m.Path(), n, EBUSY)
	}
	for i, cur := range v.mounts {
		if cur == m {
			v.mounts = append(v.mounts[:i], v.mounts[i+1:]...)
			break
		}
	}
	return nil
}

// UnmountAll detaches every mount except the root, newest first. Used at
// shutdown; busy mounts are logged and skipped.
func (v *VFS) UnmountAll() {
	v.mu.Lock()
	mounts := make([]*Mount, len(v.mounts))
	copy(mounts, v.mounts)
	v.mu.Unlock()

	for i := len(mounts) - 1; i >= 0; i-- {
		m := mounts[i]
		if m.mountpoint == nil {
			continue
		}
		if err := v.Unmount(m.root); err != nil {
			logger.Warn("Failed to unmount %s: %v", m.Path(), err)
		}
	}
}

// UnmountRoot detaches the root filesystem. It fails with EBUSY while other
// mounts remain or files on the root are open. Like Unmount, backend
// errors are only logged.
func (v *VFS) UnmountRoot() error {
	v.mu.Lock()
	m := v.root
	if m == nil {
		v.mu.Unlock()
		return fmt.Errorf("no root filesystem mounted: %w", EINVAL)
	}
	if len(v.mounts) > 1 {
		v.mu.Unlock()
		return fmt.Errorf("root has %d submounts: %w", len(v.mounts)-1, EBUSY)
	}
	if n := m.OpenFiles(); n > 0 {
		v.mu.Unlock()
		return fmt.Errorf("root has %d open files: %w", n, EBUSY)
	}
	v.root = nil
	v.mounts = nil
	v.mu.Unlock()

	v.release(m, "/")

	v.metrics.SetActiveMounts(0)
	logger.Info("Unmounted root %s", m.fs.Name())
	return nil
}

// Mounts returns a snapshot of the mount table in mount order.
func (v *VFS) Mounts() []MountInfo {
	v.mu.Lock()
	defer v.mu.Unlock()

	infos := make([]MountInfo, 0, len(v.mounts))
	for _, m := range v.mounts {
		infos = append(infos, MountInfo{
			ID:     m.id,
			FSType: m.fs.Name(),
			Path:   m.Path(),
			Policy: m.policy,
		})
	}
	return infos
}

func (v *VFS) observe(op string, start time.Time, err error) {
	v.metrics.RecordOperation(op, time.Since(start), err)
}

var global atomic.Pointer[VFS]

// Init publishes v as the process-wide VFS. It succeeds once; later calls
// return EBUSY.
func Init(v *VFS) error {
	if v == nil {
		return EINVAL
	}
	if !global.CompareAndSwap(nil, v) {
		return fmt.Errorf("vfs already initialized: %w", EBUSY)
	}
	return nil
}

// Global returns the VFS published by Init. Calling it before Init is a
// programming error and panics.
func Global() *VFS {
	v := global.Load()
	if v == nil {
		panic("vfs: Global called before Init")
	}
	return v
}

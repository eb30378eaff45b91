package vfs

import (
	"sync/atomic"

	"github.com/marmos91/dittovfs/pkg/metrics"
)

// Mount records one filesystem attached to the tree.
type Mount struct {
	id         uint64
	fs         FileSystem
	sb         SuperBlock
	root       *Dentry
	mountpoint *Dentry
	parent     *Mount
	policy     CachePolicy
	metrics    metrics.VFSMetrics

	openFiles atomic.Int64
}

// ID returns the mount's sequence number.
func (m *Mount) ID() uint64 {
	return m.id
}

// FileSystem returns the mounted backend.
func (m *Mount) FileSystem() FileSystem {
	return m.fs
}

// SuperBlock returns the live mount state handed out by the backend.
func (m *Mount) SuperBlock() SuperBlock {
	return m.sb
}

// Root returns the root dentry of the mounted tree.
func (m *Mount) Root() *Dentry {
	return m.root
}

// Mountpoint returns the covered dentry, nil for the root mount.
func (m *Mount) Mountpoint() *Dentry {
	return m.mountpoint
}

// Path returns where the mount is attached.
func (m *Mount) Path() string {
	if m.mountpoint == nil {
		return "/"
	}
	return m.mountpoint.Path()
}

// CachePolicy returns the policy the backend declared at mount time.
func (m *Mount) CachePolicy() CachePolicy {
	return m.policy
}

// OpenFiles returns the number of open file objects inside the mount.
func (m *Mount) OpenFiles() int64 {
	return m.openFiles.Load()
}

func (m *Mount) recordHit() {
	if m != nil {
		m.metrics.RecordCacheHit(m.fs.Name())
	}
}

func (m *Mount) recordMiss() {
	if m != nil {
		m.metrics.RecordCacheMiss(m.fs.Name())
	}
}

// MountInfo is a snapshot of one mount table entry.
type MountInfo struct {
	ID     uint64
	FSType string
	Path   string
	Policy CachePolicy
}

package vfs

import (
	"fmt"
	"sort"
	"sync"
)

// FileSystem is a mountable backend.
//
// A FileSystem is registered once under its Name and may be mounted any
// number of times, each mount producing its own SuperBlock. It never sees
// paths: the VFS resolves names through dentries and only calls down into
// DirInode methods with single path components.
//
// Mount Protocol:
//
// Mounting is two-phase:
//  1. Mount hands out the superblock and root directory.
//  2. The VFS wraps the root in a dentry and calls FinishMount with it,
//     so the backend can keep a reference for later evictions.
//  3. Only then is the mount linked into the mount table.
//
// If the mount cannot be linked after Mount succeeded (the target was
// covered concurrently, for example), the VFS calls SuperBlock.Unmount on
// the returned superblock and the mount never becomes visible.
//
// Exclusive backends:
// A backend that can hold only one live mount returns EBUSY from Mount
// until the previous SuperBlock has been unmounted.
//
// Locking:
// The VFS never holds its mount table lock while calling Mount,
// FinishMount or SuperBlock.Unmount, so these may resolve paths or read
// the mount table.
//
// Thread Safety:
// Implementations must be safe for concurrent use by multiple goroutines.
type FileSystem interface {
	// Name is the filesystem type, e.g. "tmpfs".
	//
	// Returns:
	//   - string: A non-empty name, unique within a Registry
	Name() string

	// Mount starts a mount.
	//
	// Returns:
	//   - SuperBlock: Live state of the new mount, released by Unmount
	//   - DirInode: The root directory of the mounted tree
	//   - error: EBUSY for an exclusive backend that is already mounted,
	//     or any backend failure (opening a database, for example)
	Mount() (SuperBlock, DirInode, error)

	// FinishMount receives the root dentry built over the root returned
	// by Mount. It cannot fail and runs before the mount is visible to
	// path walks.
	//
	// Parameters:
	//   - root: The dentry wrapping the root DirInode of this mount
	FinishMount(root *Dentry)
}

// SuperBlock is the live state of one mount.
//
// A SuperBlock is owned by exactly one Mount. Its Unmount is called once,
// after the mount has been removed from the mount table (or after a failed
// link, see FileSystem).
type SuperBlock interface {
	// FileSystem returns the backend that produced this superblock.
	FileSystem() FileSystem

	// Unmount releases the mount: closes databases, drops the exclusive
	// claim, forgets the root dentry.
	//
	// Returns:
	//   - error: Logged by the VFS. It never blocks detaching the mount,
	//     which has already left the table when Unmount runs.
	Unmount() error
}

// CachePolicy declares how dentries over a backend stay coherent with it.
type CachePolicy int

const (
	// CacheAlways trusts cached children until they are evicted by a VFS
	// mutation or by the backend itself.
	CacheAlways CachePolicy = iota

	// CacheRevalidate re-checks every cache hit with a backend lookup and
	// replaces stale entries.
	CacheRevalidate

	// CacheNever bypasses the cache; every lookup reaches the backend.
	CacheNever
)

func (p CachePolicy) String() string {
	switch p {
	case CacheAlways:
		return "always"
	case CacheRevalidate:
		return "revalidate"
	case CacheNever:
		return "never"
	default:
		return "unknown"
	}
}

// CachePolicyProvider is implemented by backends that need a policy other
// than CacheAlways.
type CachePolicyProvider interface {
	CachePolicy() CachePolicy
}

// PolicyOf returns the cache policy fs declares.
func PolicyOf(fs FileSystem) CachePolicy {
	if p, ok := fs.(CachePolicyProvider); ok {
		return p.CachePolicy()
	}
	return CacheAlways
}

// Registry maps filesystem type names to backends.
type Registry struct {
	mu          sync.RWMutex
	filesystems map[string]FileSystem
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{filesystems: make(map[string]FileSystem)}
}

// Register adds fs under its Name. Duplicates are rejected with EEXIST.
func (r *Registry) Register(fs FileSystem) error {
	if fs == nil {
		return fmt.Errorf("cannot register nil filesystem: %w", EINVAL)
	}
	name := fs.Name()
	if name == "" {
		return fmt.Errorf("cannot register filesystem with empty name: %w", EINVAL)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.filesystems[name]; exists {
		return fmt.Errorf("filesystem %q already registered: %w", name, EEXIST)
	}
	r.filesystems[name] = fs
	return nil
}

// Get returns the backend registered as name, or ENODEV.
func (r *Registry) Get(name string) (FileSystem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	fs, ok := r.filesystems[name]
	if !ok {
		return nil, fmt.Errorf("unknown filesystem type %q: %w", name, ENODEV)
	}
	return fs, nil
}

// Names returns the registered type names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.filesystems))
	for name := range r.filesystems {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

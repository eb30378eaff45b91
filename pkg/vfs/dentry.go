package vfs

import (
	"sort"
	"strings"
	"sync"
)

// Dentry binds a name to an inode inside the directory tree and caches the
// children that have been looked up through it.
//
// Dentries are never created for "." or "..". The children map is guarded by
// mu, which is never held across a call into the backend.
type Dentry struct {
	name   string
	parent *Dentry
	inode  Inode
	mount  *Mount

	mu       sync.Mutex
	children map[string]*Dentry
	covered  *Mount
}

// NewRootDentry builds a detached dentry over a directory inode. The VFS
// uses it for mount roots; tests use it to drive a backend directly.
func NewRootDentry(dir DirInode) *Dentry {
	return &Dentry{inode: DirNode(dir)}
}

func newChild(parent *Dentry, name string, inode Inode) *Dentry {
	return &Dentry{name: name, parent: parent, inode: inode, mount: parent.mount}
}

// Name returns the name under which the dentry was looked up.
func (d *Dentry) Name() string {
	return d.name
}

// Parent returns the parent dentry in the same mount, nil for a mount root.
func (d *Dentry) Parent() *Dentry {
	return d.parent
}

// Inode returns the inode the dentry is bound to.
func (d *Dentry) Inode() Inode {
	return d.inode
}

// Mount returns the mount the dentry belongs to, nil when detached.
func (d *Dentry) Mount() *Mount {
	return d.mount
}

// IsMountpoint reports whether another filesystem is mounted on d.
func (d *Dentry) IsMountpoint() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.covered != nil
}

// coveringMount returns the mount stacked on d, if any.
func (d *Dentry) coveringMount() *Mount {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.covered
}

func (d *Dentry) setCovered(m *Mount) {
	d.mu.Lock()
	d.covered = m
	d.mu.Unlock()
}

func (d *Dentry) policy() CachePolicy {
	if d.mount == nil {
		return CacheAlways
	}
	return d.mount.policy
}

// Lookup returns the child dentry for name, consulting the cache first and
// the backend on a miss. Only directories can be searched.
func (d *Dentry) Lookup(name string) (*Dentry, error) {
	dir, err := d.inode.Dir()
	if err != nil {
		return nil, err
	}

	policy := d.policy()

	d.mu.Lock()
	child, ok := d.children[name]
	d.mu.Unlock()

	if ok {
		switch {
		case policy == CacheAlways || child.IsMountpoint():
			d.mount.recordHit()
			return child, nil
		case policy == CacheRevalidate:
			return d.revalidate(dir, name, child)
		}
	}

	d.mount.recordMiss()

	inode, err := dir.Lookup(name)
	if err != nil {
		return nil, err
	}
	return d.insert(name, inode, false), nil
}

// revalidate checks a cached child against the backend.
func (d *Dentry) revalidate(dir DirInode, name string, child *Dentry) (*Dentry, error) {
	inode, err := dir.Lookup(name)
	if err != nil {
		if IsErrno(err, ENOENT) {
			d.evict(name, child)
		}
		return nil, err
	}

	if inode.Same(child.inode) {
		d.mount.recordHit()
		return child, nil
	}

	d.mount.recordMiss()
	return d.insert(name, inode, true), nil
}

// insert caches a child. With replace unset an entry that raced in first is
// kept and returned instead.
func (d *Dentry) insert(name string, inode Inode, replace bool) *Dentry {
	child := newChild(d, name, inode)
	if d.policy() == CacheNever {
		return child
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if existing, ok := d.children[name]; ok {
		if !replace || existing.IsMountpoint() {
			return existing
		}
	}
	if d.children == nil {
		d.children = make(map[string]*Dentry)
	}
	d.children[name] = child
	return child
}

// pin keeps child in the cache regardless of policy. Mountpoints must stay
// reachable through their parent.
func (d *Dentry) pin(child *Dentry) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.children == nil {
		d.children = make(map[string]*Dentry)
	}
	d.children[child.name] = child
}

// Insert caches inode as the child name, replacing a stale entry. Used after
// create, mkdir and symlink succeed.
func (d *Dentry) Insert(name string, inode Inode) *Dentry {
	return d.insert(name, inode, true)
}

func (d *Dentry) evict(name string, expected *Dentry) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if cur, ok := d.children[name]; ok && cur == expected && !cur.IsMountpoint() {
		delete(d.children, name)
	}
}

// RemoveChildForce drops the cached child name. Absent names are ignored.
// A child that is currently a mountpoint stays cached; the mount pins it.
func (d *Dentry) RemoveChildForce(name string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if child, ok := d.children[name]; ok && !child.IsMountpoint() {
		delete(d.children, name)
	}
}

// CachedChild returns the cached child name without touching the backend.
func (d *Dentry) CachedChild(name string) (*Dentry, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	child, ok := d.children[name]
	return child, ok
}

// Children returns the names currently cached under d, sorted.
func (d *Dentry) Children() []string {
	d.mu.Lock()
	defer d.mu.Unlock()

	names := make([]string, 0, len(d.children))
	for name := range d.children {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Path returns the absolute path of d, crossing mount boundaries.
func (d *Dentry) Path() string {
	var parts []string
	for cur := d; cur != nil; {
		if cur.parent == nil {
			if cur.mount == nil || cur.mount.mountpoint == nil {
				break
			}
			cur = cur.mount.mountpoint
			continue
		}
		parts = append(parts, cur.name)
		cur = cur.parent
	}

	if len(parts) == 0 {
		return "/"
	}
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return "/" + strings.Join(parts, "/")
}

package vfs

import (
	"sync"
	"sync/atomic"
)

// fakeDir is a minimal directory backend whose children can be changed
// behind the VFS's back.
type fakeDir struct {
	mu       sync.Mutex
	children map[string]Inode
	lookups  atomic.Int32
}

func newFakeDir() *fakeDir {
	return &fakeDir{children: make(map[string]Inode)}
}

func (d *fakeDir) set(name string, inode Inode) {
	d.mu.Lock()
	d.children[name] = inode
	d.mu.Unlock()
}

func (d *fakeDir) remove(name string) {
	d.mu.Lock()
	delete(d.children, name)
	d.mu.Unlock()
}

func (d *fakeDir) Stat() (Stat, error)        { return Stat{Type: TypeDirectory, Perm: 0o755}, nil }
func (d *fakeDir) Chown(uint32, uint32) error { return nil }
func (d *fakeDir) Chmod(Permission) error     { return nil }

func (d *fakeDir) Open() (DirHandle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	entries := make([]DirEntry, 0, len(d.children)+2)
	for name, inode := range d.children {
		entries = append(entries, DirEntry{Type: inode.Type(), Name: name})
	}
	entries = append(entries, DirEntry{TypeDirectory, "."}, DirEntry{TypeDirectory, ".."})
	return NewListDir(entries), nil
}

func (d *fakeDir) Lookup(name string) (Inode, error) {
	d.lookups.Add(1)
	d.mu.Lock()
	defer d.mu.Unlock()
	inode, ok := d.children[name]
	if !ok {
		return Inode{}, ENOENT
	}
	return inode, nil
}

func (d *fakeDir) Mkdir(name string, _ Permission) (DirInode, error) {
	child := newFakeDir()
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.children[name]; ok {
		return nil, EEXIST
	}
	d.children[name] = DirNode(child)
	return child, nil
}

func (d *fakeDir) Create(string, Permission) (FileInode, error) { return nil, ENOSYS }
func (d *fakeDir) Unlink(string) error                          { return ENOSYS }
func (d *fakeDir) Rmdir(string) error                           { return ENOSYS }
func (d *fakeDir) Symlink(string, string) (SymlinkInode, error) { return nil, ENOSYS }

// fakeFS mounts a fixed root directory with a configurable cache policy.
type fakeFS struct {
	name       string
	root       *fakeDir
	policy     CachePolicy
	unmountErr error

	// Optional hooks run inside FinishMount and Unmount.
	onFinish  func(root *Dentry)
	onUnmount func()

	mu        sync.Mutex
	exclusive bool
	mounted   bool
	finished  *Dentry
	unmounts  int
}

func newFakeFS(name string, policy CachePolicy) *fakeFS {
	return &fakeFS{name: name, root: newFakeDir(), policy: policy}
}

func (fs *fakeFS) Name() string             { return fs.name }
func (fs *fakeFS) CachePolicy() CachePolicy { return fs.policy }

func (fs *fakeFS) Mount() (SuperBlock, DirInode, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if fs.exclusive && fs.mounted {
		return nil, nil, EBUSY
	}
	fs.mounted = true
	return &fakeSB{fs: fs}, fs.root, nil
}

func (fs *fakeFS) FinishMount(root *Dentry) {
	fs.mu.Lock()
	fs.finished = root
	fs.mu.Unlock()
	if fs.onFinish != nil {
		fs.onFinish(root)
	}
}

type fakeSB struct {
	fs *fakeFS
}

func (sb *fakeSB) FileSystem() FileSystem { return sb.fs }

func (sb *fakeSB) Unmount() error {
	if sb.fs.onUnmount != nil {
		sb.fs.onUnmount()
	}
	sb.fs.mu.Lock()
	defer sb.fs.mu.Unlock()
	sb.fs.mounted = false
	sb.fs.unmounts++
	return sb.fs.unmountErr
}

// fakeFile is a file capability that cannot be opened.
type fakeFile struct{}

func (fakeFile) Stat() (Stat, error)          { return Stat{Type: TypeRegular}, nil }
func (fakeFile) Chown(uint32, uint32) error   { return nil }
func (fakeFile) Chmod(Permission) error       { return nil }
func (fakeFile) Open(int) (FileHandle, error) { return nil, ENOSYS }

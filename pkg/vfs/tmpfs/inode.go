package tmpfs

import (
	"sort"
	"strings"
	"sync"

	"github.com/marmos91/dittovfs/pkg/vfs"
)

// attrs is the metadata shared by every tmpfs inode.
type attrs struct {
	mu    sync.RWMutex
	perm  vfs.Permission
	uid   uint32
	gid   uint32
	atime vfs.TimeSpec
	mtime vfs.TimeSpec
	ctime vfs.TimeSpec
}

func (a *attrs) init(perm vfs.Permission, uid, gid uint32) {
	now := vfs.Now()
	a.perm = perm & vfs.PermMask
	a.uid, a.gid = uid, gid
	a.atime, a.mtime, a.ctime = now, now, now
}

func (a *attrs) stat(kind vfs.FileType, size uint64) vfs.Stat {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return vfs.Stat{
		Perm:       a.perm,
		UID:        a.uid,
		GID:        a.gid,
		Size:       size,
		Type:       kind,
		AccessTime: a.atime,
		ModifyTime: a.mtime,
		ChangeTime: a.ctime,
	}
}

func (a *attrs) Chown(uid, gid uint32) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.uid, a.gid = uid, gid
	a.ctime = vfs.Now()
	return nil
}

func (a *attrs) Chmod(perm vfs.Permission) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.perm = perm & vfs.PermMask
	a.ctime = vfs.Now()
	return nil
}

func (a *attrs) touchModify() {
	a.mu.Lock()
	now := vfs.Now()
	a.mtime, a.ctime = now, now
	a.mu.Unlock()
}

func (a *attrs) touchAccess() {
	a.mu.Lock()
	a.atime = vfs.Now()
	a.mu.Unlock()
}

func (a *attrs) owner() (uint32, uint32) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.uid, a.gid
}

// DirInode is an in-memory directory. Its children map is guarded by its
// own mutex, so sibling directories mutate independently.
type DirInode struct {
	attrs
	maxFileSize int64

	childMu  sync.RWMutex
	children map[string]vfs.Inode
	removed  bool
}

// NewDirInode creates a detached empty directory.
func NewDirInode(perm vfs.Permission, uid, gid uint32) *DirInode {
	return newDir(perm, uid, gid, 0)
}

func newDir(perm vfs.Permission, uid, gid uint32, maxFileSize int64) *DirInode {
	d := &DirInode{
		maxFileSize: maxFileSize,
		children:    make(map[string]vfs.Inode),
	}
	d.init(perm, uid, gid)
	return d
}

func (d *DirInode) Stat() (vfs.Stat, error) {
	return d.stat(vfs.TypeDirectory, 0), nil
}

func (d *DirInode) Open() (vfs.DirHandle, error) {
	d.childMu.RLock()
	names := make([]string, 0, len(d.children))
	for name := range d.children {
		names = append(names, name)
	}
	sort.Strings(names)

	entries := make([]vfs.DirEntry, 0, len(names)+2)
	for _, name := range names {
		entries = append(entries, vfs.DirEntry{Type: d.children[name].Type(), Name: name})
	}
	d.childMu.RUnlock()

	entries = append(entries,
		vfs.DirEntry{Type: vfs.TypeDirectory, Name: "."},
		vfs.DirEntry{Type: vfs.TypeDirectory, Name: ".."},
	)
	d.touchAccess()
	return vfs.NewListDir(entries), nil
}

func (d *DirInode) Lookup(name string) (vfs.Inode, error) {
	d.childMu.RLock()
	defer d.childMu.RUnlock()

	child, ok := d.children[name]
	if !ok {
		return vfs.Inode{}, vfs.ENOENT
	}
	return child, nil
}

// add inserts child under name unless the name is taken. A directory that
// has been removed accepts no new entries.
func (d *DirInode) add(name string, child vfs.Inode) error {
	if err := validName(name); err != nil {
		return err
	}

	d.childMu.Lock()
	if d.removed {
		d.childMu.Unlock()
		return vfs.ENOENT
	}
	if _, exists := d.children[name]; exists {
		d.childMu.Unlock()
		return vfs.EEXIST
	}
	d.children[name] = child
	d.childMu.Unlock()

	d.touchModify()
	return nil
}

func (d *DirInode) Mkdir(name string, perm vfs.Permission) (vfs.DirInode, error) {
	uid, gid := d.owner()
	child := newDir(perm, uid, gid, d.maxFileSize)
	if err := d.add(name, vfs.DirNode(child)); err != nil {
		return nil, err
	}
	return child, nil
}

func (d *DirInode) Create(name string, perm vfs.Permission) (vfs.FileInode, error) {
	uid, gid := d.owner()
	child := &FileInode{maxSize: d.maxFileSize}
	child.init(perm, uid, gid)
	if err := d.add(name, vfs.FileNode(child)); err != nil {
		return nil, err
	}
	return child, nil
}

func (d *DirInode) Symlink(target, name string) (vfs.SymlinkInode, error) {
	uid, gid := d.owner()
	child := &SymlinkInode{target: target}
	child.init(0o777, uid, gid)
	if err := d.add(name, vfs.SymlinkNode(child)); err != nil {
		return nil, err
	}
	return child, nil
}

func (d *DirInode) Unlink(name string) error {
	d.childMu.Lock()
	child, ok := d.children[name]
	switch {
	case !ok:
		d.childMu.Unlock()
		return vfs.ENOENT
	case child.IsDir():
		d.childMu.Unlock()
		return vfs.EISDIR
	}
	delete(d.children, name)
	d.childMu.Unlock()

	d.touchModify()
	return nil
}

func (d *DirInode) Rmdir(name string) error {
	d.childMu.Lock()
	child, ok := d.children[name]
	if !ok {
		d.childMu.Unlock()
		return vfs.ENOENT
	}
	sub, err := child.Dir()
	if err != nil {
		d.childMu.Unlock()
		return err
	}

	// Lock order is parent then child. The child stays locked until it is
	// unlinked so no entry can be added after the emptiness check.
	dir := sub.(*DirInode)
	dir.childMu.Lock()
	if len(dir.children) != 0 {
		dir.childMu.Unlock()
		d.childMu.Unlock()
		return vfs.ENOTEMPTY
	}
	dir.removed = true
	delete(d.children, name)
	dir.childMu.Unlock()
	d.childMu.Unlock()

	d.touchModify()
	return nil
}

// Len returns the number of children.
func (d *DirInode) Len() int {
	d.childMu.RLock()
	defer d.childMu.RUnlock()
	return len(d.children)
}

func validName(name string) error {
	switch {
	case name == "" || strings.ContainsRune(name, '/') || strings.ContainsRune(name, 0):
		return vfs.EINVAL
	case name == "." || name == "..":
		return vfs.EEXIST
	case len(name) > vfs.MaxNameLen:
		return vfs.ENAMETOOLONG
	}
	return nil
}

// sizeCeiling bounds every tmpfs file, whatever MaxFileSize says, since the
// whole body is one allocation.
const sizeCeiling int64 = 1 << 32

// FileInode is an in-memory regular file.
type FileInode struct {
	attrs
	maxSize int64

	dataMu sync.RWMutex
	data   []byte
}

func (f *FileInode) Stat() (vfs.Stat, error) {
	f.dataMu.RLock()
	size := uint64(len(f.data))
	f.dataMu.RUnlock()
	return f.stat(vfs.TypeRegular, size), nil
}

func (f *FileInode) Open(flags int) (vfs.FileHandle, error) {
	return &fileHandle{inode: f}, nil
}

func (f *FileInode) readAt(p []byte, off int64) int {
	f.dataMu.RLock()
	defer f.dataMu.RUnlock()

	if off >= int64(len(f.data)) {
		return 0
	}
	return copy(p, f.data[off:])
}

func (f *FileInode) limit() int64 {
	if f.maxSize > 0 && f.maxSize < sizeCeiling {
		return f.maxSize
	}
	return sizeCeiling
}

func (f *FileInode) writeAt(p []byte, off int64) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	end, err := vfs.WriteEnd(off, len(p), f.limit())
	if err != nil {
		return 0, err
	}

	f.dataMu.Lock()
	if end > int64(len(f.data)) {
		f.grow(end)
	}
	n := copy(f.data[off:], p)
	f.dataMu.Unlock()

	f.touchModify()
	return n, nil
}

// grow extends data to size with zeros. Caller holds dataMu.
func (f *FileInode) grow(size int64) {
	if size <= int64(cap(f.data)) {
		f.data = f.data[:size]
		return
	}
	capacity := size + size/4
	if capacity > sizeCeiling {
		capacity = size
	}
	buf := make([]byte, size, capacity)
	copy(buf, f.data)
	f.data = buf
}

func (f *FileInode) truncate(size int64) error {
	if size > f.limit() {
		return vfs.EFBIG
	}

	f.dataMu.Lock()
	switch {
	case size > int64(len(f.data)):
		f.grow(size)
	default:
		clear(f.data[size:])
		f.data = f.data[:size]
	}
	f.dataMu.Unlock()

	f.touchModify()
	return nil
}

func (f *FileInode) size() int64 {
	f.dataMu.RLock()
	defer f.dataMu.RUnlock()
	return int64(len(f.data))
}

// SymlinkInode is an in-memory symbolic link.
type SymlinkInode struct {
	attrs
	target string
}

func (s *SymlinkInode) Stat() (vfs.Stat, error) {
	return s.stat(vfs.TypeSymlink, uint64(len(s.target))), nil
}

func (s *SymlinkInode) Target() (string, error) {
	s.touchAccess()
	return s.target, nil
}

package vfs

import (
	"sync"
	"sync/atomic"

	"github.com/marmos91/dittovfs/pkg/metrics"
)

// Open flags, numbered as on Linux.
const (
	O_RDONLY    = 0x0
	O_WRONLY    = 0x1
	O_RDWR      = 0x2
	O_ACCMODE   = 0x3
	O_CREAT     = 0o100
	O_EXCL      = 0o200
	O_TRUNC     = 0o1000
	O_APPEND    = 0o2000
	O_NONBLOCK  = 0o4000
	O_DIRECTORY = 0o200000
	O_NOFOLLOW  = 0o400000
	O_CLOEXEC   = 0o2000000
)

// statusFlags are the bits F_SETFL may change after open.
const statusFlags = O_APPEND | O_NONBLOCK

// File is an open file object. Several descriptors, possibly in several
// tasks, may share one File; it is released when the last reference is
// closed.
type File struct {
	dentry  *Dentry
	kind    FileType
	metrics metrics.VFSMetrics
	refs    atomic.Int32

	mu      sync.Mutex
	flags   int
	fh      FileHandle
	dh      DirHandle
	pending *DirEntry
	closed  bool
}

func newFile(d *Dentry, flags int, fh FileHandle, dh DirHandle, m metrics.VFSMetrics) *File {
	f := &File{
		dentry:  d,
		kind:    d.inode.Type(),
		metrics: m,
		flags:   flags &^ (O_CREAT | O_EXCL | O_TRUNC | O_NOFOLLOW | O_CLOEXEC),
		fh:      fh,
		dh:      dh,
	}
	f.refs.Store(1)
	if d.mount != nil {
		d.mount.openFiles.Add(1)
	}
	m.AddOpenFiles(1)
	return f
}

// Dentry returns the dentry the file was opened through.
func (f *File) Dentry() *Dentry {
	return f.dentry
}

// Type returns the type of the opened inode.
func (f *File) Type() FileType {
	return f.kind
}

// Flags returns the access mode and status flags.
func (f *File) Flags() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.flags
}

// SetFlags replaces the status flags (O_APPEND, O_NONBLOCK). The access
// mode is fixed at open.
func (f *File) SetFlags(flags int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.flags = (f.flags &^ statusFlags) | (flags & statusFlags)
}

func (f *File) readable() bool {
	mode := f.flags & O_ACCMODE
	return mode == O_RDONLY || mode == O_RDWR
}

func (f *File) writable() bool {
	mode := f.flags & O_ACCMODE
	return mode == O_WRONLY || mode == O_RDWR
}

func (f *File) fileHandle() (FileHandle, error) {
	if f.closed {
		return nil, EBADF
	}
	if f.fh == nil {
		return nil, EISDIR
	}
	return f.fh, nil
}

// Read reads from the current offset.
func (f *File) Read(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	fh, err := f.fileHandle()
	if err != nil {
		return 0, err
	}
	if !f.readable() {
		return 0, EBADF
	}
	return fh.Read(p)
}

// Write writes at the current offset, or at end of file with O_APPEND.
func (f *File) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	fh, err := f.fileHandle()
	if err != nil {
		return 0, err
	}
	if !f.writable() {
		return 0, EBADF
	}
	if f.flags&O_APPEND != 0 {
		if _, err := fh.Seek(0, SeekEnd); err != nil {
			return 0, err
		}
	}
	return fh.Write(p)
}

// ReadAt reads at off and leaves the offset after the data read.
func (f *File) ReadAt(p []byte, off int64) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	fh, err := f.fileHandle()
	if err != nil {
		return 0, err
	}
	if !f.readable() {
		return 0, EBADF
	}
	if _, err := fh.Seek(off, SeekStart); err != nil {
		return 0, err
	}
	return fh.Read(p)
}

// WriteAt writes at off. O_APPEND is ignored, as with pwrite on a file
// opened without it.
func (f *File) WriteAt(p []byte, off int64) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	fh, err := f.fileHandle()
	if err != nil {
		return 0, err
	}
	if !f.writable() {
		return 0, EBADF
	}
	if _, err := fh.Seek(off, SeekStart); err != nil {
		return 0, err
	}
	return fh.Write(p)
}

// Seek moves the offset. Directories accept only a rewind to 0.
func (f *File) Seek(offset int64, whence int) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return 0, EBADF
	}
	if f.dh != nil {
		if offset != 0 || whence != SeekStart {
			return 0, EINVAL
		}
		f.dh.Rewind()
		f.pending = nil
		return 0, nil
	}
	if f.fh == nil {
		return 0, ESPIPE
	}
	if whence < SeekStart || whence > SeekEnd {
		return 0, EINVAL
	}
	return f.fh.Seek(offset, whence)
}

// ReadDir feeds entries to fn until the listing ends or fn returns false.
// The entry fn rejected is delivered again on the next call.
func (f *File) ReadDir(fn func(DirEntry) bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return EBADF
	}
	if f.dh == nil {
		return ENOTDIR
	}

	for {
		var e DirEntry
		if f.pending != nil {
			e = *f.pending
			f.pending = nil
		} else {
			next, ok := f.dh.Next()
			if !ok {
				return nil
			}
			e = next
		}
		if !fn(e) {
			f.pending = &e
			return nil
		}
	}
}

// Stat returns the attributes of the opened inode.
func (f *File) Stat() (Stat, error) {
	f.mu.Lock()
	closed := f.closed
	f.mu.Unlock()

	if closed {
		return Stat{}, EBADF
	}
	return f.dentry.inode.Metadata().Stat()
}

// Truncate changes the file size. The file must be open for writing.
func (f *File) Truncate(size int64) error {
	if size < 0 {
		return EINVAL
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	fh, err := f.fileHandle()
	if err != nil {
		if err == EISDIR {
			return EINVAL
		}
		return err
	}
	if !f.writable() {
		return EINVAL
	}
	return fh.Truncate(size)
}

// IncRef adds a reference, e.g. for dup or fork.
func (f *File) IncRef() {
	f.refs.Add(1)
}

// Close drops one reference and releases the handle with the last one.
func (f *File) Close() error {
	if f.refs.Add(-1) > 0 {
		return nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return EBADF
	}
	f.closed = true

	if f.dentry.mount != nil {
		f.dentry.mount.openFiles.Add(-1)
	}
	f.metrics.AddOpenFiles(-1)

	if f.fh != nil {
		return f.fh.Close()
	}
	return nil
}

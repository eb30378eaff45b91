package sys

import (
	"time"

	"github.com/marmos91/dittovfs/pkg/fdtable"
	"github.com/marmos91/dittovfs/pkg/task"
	"github.com/marmos91/dittovfs/pkg/vfs"
)

// Open opens path and installs the file in the lowest free descriptor.
func (s *Syscalls) Open(t *task.Task, path string, flags int, mode uint32) int64 {
	f, err := s.vfs.Open(t.Cwd(), path, flags, vfs.NewPermission(mode))
	if err != nil {
		return ret(err)
	}

	fd, ok := t.Files.AllocFrom(0, f, flags&vfs.O_CLOEXEC != 0)
	if !ok {
		_ = f.Close()
		return vfs.EMFILE.Neg()
	}
	return int64(fd)
}

// Creat is Open with O_CREAT|O_WRONLY|O_TRUNC.
func (s *Syscalls) Creat(t *task.Task, path string, mode uint32) int64 {
	return s.Open(t, path, vfs.O_CREAT|vfs.O_WRONLY|vfs.O_TRUNC, mode)
}

// Close releases fd.
func (s *Syscalls) Close(t *task.Task, fd int) (result int64) {
	defer func(start time.Time) { s.record("close", start, result) }(time.Now())

	idx, ok := fdtable.FromInt(fd)
	if !ok {
		return vfs.EBADF.Neg()
	}
	f, ok := t.Files.Close(idx)
	if !ok {
		return vfs.EBADF.Neg()
	}
	return ret(f.Close())
}

// Read reads into buf from the descriptor's offset.
func (s *Syscalls) Read(t *task.Task, fd int, buf []byte) (result int64) {
	defer func(start time.Time) { s.record("read", start, result) }(time.Now())

	f, err := GetFile(t, fd)
	if err != nil {
		return ret(err)
	}
	return retN(f.Read(buf))
}

// Write writes buf at the descriptor's offset.
func (s *Syscalls) Write(t *task.Task, fd int, buf []byte) (result int64) {
	defer func(start time.Time) { s.record("write", start, result) }(time.Now())

	f, err := GetFile(t, fd)
	if err != nil {
		return ret(err)
	}
	return retN(f.Write(buf))
}

// Writev writes each buffer in order. A failure after some bytes were
// written reports the partial count.
func (s *Syscalls) Writev(t *task.Task, fd int, iov [][]byte) (result int64) {
	defer func(start time.Time) { s.record("writev", start, result) }(time.Now())

	f, err := GetFile(t, fd)
	if err != nil {
		return ret(err)
	}

	var total int64
	for _, buf := range iov {
		n, err := f.Write(buf)
		total += int64(n)
		if err != nil {
			if total > 0 {
				return total
			}
			return ret(err)
		}
		if n < len(buf) {
			break
		}
	}
	return total
}

// Lseek repositions the descriptor's offset.
func (s *Syscalls) Lseek(t *task.Task, fd int, offset int64, whence int) (result int64) {
	defer func(start time.Time) { s.record("lseek", start, result) }(time.Now())

	f, err := GetFile(t, fd)
	if err != nil {
		return ret(err)
	}
	pos, err := f.Seek(offset, whence)
	if err != nil {
		return ret(err)
	}
	return pos
}

// Fstat fills st with the attributes of the open file.
func (s *Syscalls) Fstat(t *task.Task, fd int, st *vfs.Stat) (result int64) {
	defer func(start time.Time) { s.record("fstat", start, result) }(time.Now())

	f, err := GetFile(t, fd)
	if err != nil {
		return ret(err)
	}
	got, err := f.Stat()
	if err != nil {
		return ret(err)
	}
	*st = got
	return 0
}

// Ftruncate resizes the open file.
func (s *Syscalls) Ftruncate(t *task.Task, fd int, length int64) (result int64) {
	defer func(start time.Time) { s.record("ftruncate", start, result) }(time.Now())

	f, err := GetFile(t, fd)
	if err != nil {
		return ret(err)
	}
	return ret(f.Truncate(length))
}

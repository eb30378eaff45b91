// Package sys adapts the VFS to the system call convention: every call
// returns a non-negative result on success and a negated errno on failure.
//
// Descriptor arguments are raw ints and are validated against the calling
// task's descriptor table. The package holds no VFS state of its own.
package sys

import (
	"time"

	"github.com/marmos91/dittovfs/pkg/fdtable"
	"github.com/marmos91/dittovfs/pkg/task"
	"github.com/marmos91/dittovfs/pkg/vfs"
)

// Syscalls binds the system call surface to one VFS and filesystem registry.
type Syscalls struct {
	vfs         *vfs.VFS
	filesystems *vfs.Registry
}

// New creates the syscall surface.
func New(v *vfs.VFS, filesystems *vfs.Registry) *Syscalls {
	return &Syscalls{vfs: v, filesystems: filesystems}
}

// VFS returns the VFS the calls operate on.
func (s *Syscalls) VFS() *vfs.VFS {
	return s.vfs
}

// GetFile returns the open file behind a raw descriptor number. Numbers
// outside the table and empty slots both yield EBADF.
func GetFile(t *task.Task, fd int) (*vfs.File, error) {
	idx, ok := fdtable.FromInt(fd)
	if !ok {
		return nil, vfs.EBADF
	}
	f, ok := t.Files.Get(idx)
	if !ok {
		return nil, vfs.EBADF
	}
	return f, nil
}

// ret encodes err in the syscall convention.
func ret(err error) int64 {
	if err == nil {
		return 0
	}
	return vfs.ErrnoOf(err).Neg()
}

// retN encodes a count or an error.
func retN(n int, err error) int64 {
	if err != nil {
		return ret(err)
	}
	return int64(n)
}

// record reports a descriptor operation; path operations are recorded by
// the VFS itself.
func (s *Syscalls) record(op string, start time.Time, result int64) {
	var err error
	if result < 0 {
		err = vfs.Errno(-result)
	}
	s.vfs.Metrics().RecordOperation(op, time.Since(start), err)
}

package sys

import (
	"github.com/marmos91/dittovfs/pkg/fdtable"
	"github.com/marmos91/dittovfs/pkg/task"
	"github.com/marmos91/dittovfs/pkg/vfs"
)

// fcntl commands, numbered as on Linux.
const (
	F_DUPFD         = 0
	F_GETFD         = 1
	F_SETFD         = 2
	F_GETFL         = 3
	F_SETFL         = 4
	F_DUPFD_CLOEXEC = 1030

	FD_CLOEXEC = 1
)

// Fcntl manipulates a descriptor.
func (s *Syscalls) Fcntl(t *task.Task, fd int, cmd int, arg int) int64 {
	f, err := GetFile(t, fd)
	if err != nil {
		return ret(err)
	}
	idx := fdtable.Fd(fd)

	switch cmd {
	case F_DUPFD, F_DUPFD_CLOEXEC:
		return s.dupFrom(t, f, arg, cmd == F_DUPFD_CLOEXEC)

	case F_GETFD:
		cloexec, ok := t.Files.CloseOnExec(idx)
		if !ok {
			return vfs.EBADF.Neg()
		}
		if cloexec {
			return FD_CLOEXEC
		}
		return 0

	case F_SETFD:
		if !t.Files.SetCloseOnExec(idx, arg&FD_CLOEXEC != 0) {
			return vfs.EBADF.Neg()
		}
		return 0

	case F_GETFL:
		return int64(f.Flags())

	case F_SETFL:
		f.SetFlags(arg)
		return 0

	default:
		return vfs.EINVAL.Neg()
	}
}

func (s *Syscalls) dupFrom(t *task.Task, f *vfs.File, min int, cloexec bool) int64 {
	start, ok := fdtable.FromInt(min)
	if !ok {
		return vfs.EINVAL.Neg()
	}
	f.IncRef()
	fd, ok := t.Files.AllocFrom(start, f, cloexec)
	if !ok {
		_ = f.Close()
		return vfs.EMFILE.Neg()
	}
	return int64(fd)
}

// Dup duplicates fd into the lowest free descriptor.
func (s *Syscalls) Dup(t *task.Task, fd int) int64 {
	f, err := GetFile(t, fd)
	if err != nil {
		return ret(err)
	}
	return s.dupFrom(t, f, 0, false)
}

// Dup2 makes newfd refer to the same open file as oldfd, closing whatever
// newfd held before.
func (s *Syscalls) Dup2(t *task.Task, oldfd, newfd int) int64 {
	f, err := GetFile(t, oldfd)
	if err != nil {
		return ret(err)
	}
	target, ok := fdtable.FromInt(newfd)
	if !ok {
		return vfs.EBADF.Neg()
	}
	if oldfd == newfd {
		return int64(newfd)
	}

	f.IncRef()
	if prev := t.Files.Install(target, f); prev != nil {
		_ = prev.Close()
	}
	return int64(newfd)
}

// Ioctl validates fd and rejects every request: no backend implements a
// terminal or device.
func (s *Syscalls) Ioctl(t *task.Task, fd int, request uint, arg uintptr) int64 {
	if _, err := GetFile(t, fd); err != nil {
		return ret(err)
	}
	return vfs.ENOTTY.Neg()
}

package sys

import (
	"github.com/marmos91/dittovfs/pkg/task"
	"github.com/marmos91/dittovfs/pkg/vfs"
)

// Stat fills st for path, following a final symlink.
func (s *Syscalls) Stat(t *task.Task, path string, st *vfs.Stat) int64 {
	got, err := s.vfs.Stat(t.Cwd(), path)
	if err != nil {
		return ret(err)
	}
	*st = got
	return 0
}

// Lstat is Stat without following a final symlink.
func (s *Syscalls) Lstat(t *task.Task, path string, st *vfs.Stat) int64 {
	got, err := s.vfs.Lstat(t.Cwd(), path)
	if err != nil {
		return ret(err)
	}
	*st = got
	return 0
}

func (s *Syscalls) Mkdir(t *task.Task, path string, mode uint32) int64 {
	return ret(s.vfs.Mkdir(t.Cwd(), path, vfs.NewPermission(mode)))
}

func (s *Syscalls) Rmdir(t *task.Task, path string) int64 {
	return ret(s.vfs.Rmdir(t.Cwd(), path))
}

func (s *Syscalls) Unlink(t *task.Task, path string) int64 {
	return ret(s.vfs.Unlink(t.Cwd(), path))
}

// Symlink creates linkPath pointing at target. The target is stored
// verbatim and need not exist.
func (s *Syscalls) Symlink(t *task.Task, target, linkPath string) int64 {
	return ret(s.vfs.Symlink(t.Cwd(), target, linkPath))
}

// Readlink copies the link target into buf without a terminating NUL and
// returns the number of bytes copied. A short buffer truncates silently.
func (s *Syscalls) Readlink(t *task.Task, path string, buf []byte) int64 {
	if len(buf) == 0 {
		return vfs.EINVAL.Neg()
	}
	target, err := s.vfs.Readlink(t.Cwd(), path)
	if err != nil {
		return ret(err)
	}
	return int64(copy(buf, target))
}

func (s *Syscalls) Chmod(t *task.Task, path string, mode uint32) int64 {
	return ret(s.vfs.Chmod(t.Cwd(), path, vfs.NewPermission(mode)))
}

func (s *Syscalls) Chown(t *task.Task, path string, uid, gid uint32) int64 {
	return ret(s.vfs.Chown(t.Cwd(), path, uid, gid))
}

func (s *Syscalls) Truncate(t *task.Task, path string, length int64) int64 {
	return ret(s.vfs.Truncate(t.Cwd(), path, length))
}

// Chdir changes the task's working directory.
func (s *Syscalls) Chdir(t *task.Task, path string) int64 {
	d, err := s.vfs.Resolve(t.Cwd(), path, true)
	if err != nil {
		return ret(err)
	}
	if !d.Inode().IsDir() {
		return vfs.ENOTDIR.Neg()
	}
	t.SetCwd(d)
	return 0
}

// Getcwd writes the NUL-terminated working directory into buf and returns
// its length including the NUL. ERANGE if buf is too small.
func (s *Syscalls) Getcwd(t *task.Task, buf []byte) int64 {
	path := "/"
	if cwd := t.Cwd(); cwd != nil {
		path = cwd.Path()
	}
	if len(path)+1 > len(buf) {
		return vfs.ERANGE.Neg()
	}
	n := copy(buf, path)
	buf[n] = 0
	return int64(n + 1)
}

// Mount mounts a new instance of the filesystem type fstype on target.
// The source argument is accepted for compatibility and ignored.
func (s *Syscalls) Mount(t *task.Task, source, target, fstype string) int64 {
	fs, err := s.filesystems.Get(fstype)
	if err != nil {
		return ret(err)
	}
	return ret(s.vfs.MountAt(t.Cwd(), target, fs))
}

// Umount detaches the filesystem mounted at target.
func (s *Syscalls) Umount(t *task.Task, target string) int64 {
	return ret(s.vfs.UnmountAt(t.Cwd(), target))
}

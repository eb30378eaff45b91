package vfs

import (
	"errors"
	"fmt"
)

// Errno is the closed error space of the VFS. Values follow Linux numbering
// so the syscall layer can negate them directly.
type Errno int

const (
	EPERM        Errno = 1
	ENOENT       Errno = 2
	EIO          Errno = 5
	EBADF        Errno = 9
	EAGAIN       Errno = 11
	EACCES       Errno = 13
	EBUSY        Errno = 16
	EEXIST       Errno = 17
	EXDEV        Errno = 18
	ENODEV       Errno = 19
	ENOTDIR      Errno = 20
	EISDIR       Errno = 21
	EINVAL       Errno = 22
	EMFILE       Errno = 24
	ENOTTY       Errno = 25
	EFBIG        Errno = 27
	ENOSPC       Errno = 28
	ESPIPE       Errno = 29
	EROFS        Errno = 30
	ERANGE       Errno = 34
	ENAMETOOLONG Errno = 36
	ENOSYS       Errno = 38
	ENOTEMPTY    Errno = 39
	ELOOP        Errno = 40
)

var errnoInfo = map[Errno][2]string{
	EPERM:        {"EPERM", "operation not permitted"},
	ENOENT:       {"ENOENT", "no such file or directory"},
	EIO:          {"EIO", "input/output error"},
	EBADF:        {"EBADF", "bad file descriptor"},
	EAGAIN:       {"EAGAIN", "resource temporarily unavailable"},
	EACCES:       {"EACCES", "permission denied"},
	EBUSY:        {"EBUSY", "device or resource busy"},
	EEXIST:       {"EEXIST", "file exists"},
	EXDEV:        {"EXDEV", "invalid cross-device link"},
	ENODEV:       {"ENODEV", "no such device"},
	ENOTDIR:      {"ENOTDIR", "not a directory"},
	EISDIR:       {"EISDIR", "is a directory"},
	EINVAL:       {"EINVAL", "invalid argument"},
	EMFILE:       {"EMFILE", "too many open files"},
	ENOTTY:       {"ENOTTY", "inappropriate ioctl for device"},
	EFBIG:        {"EFBIG", "file too large"},
	ENOSPC:       {"ENOSPC", "no space left on device"},
	ESPIPE:       {"ESPIPE", "illegal seek"},
	EROFS:        {"EROFS", "read-only file system"},
	ERANGE:       {"ERANGE", "numerical result out of range"},
	ENAMETOOLONG: {"ENAMETOOLONG", "file name too long"},
	ENOSYS:       {"ENOSYS", "function not implemented"},
	ENOTEMPTY:    {"ENOTEMPTY", "directory not empty"},
	ELOOP:        {"ELOOP", "too many levels of symbolic links"},
}

func (e Errno) Error() string {
	if info, ok := errnoInfo[e]; ok {
		return info[1]
	}
	return fmt.Sprintf("errno %d", int(e))
}

// Name returns the symbolic name, e.g. "ENOENT".
func (e Errno) Name() string {
	if info, ok := errnoInfo[e]; ok {
		return info[0]
	}
	return fmt.Sprintf("E%d", int(e))
}

// Neg returns the negated value used as a syscall return.
func (e Errno) Neg() int64 {
	return -int64(e)
}

// ErrnoOf maps err onto the error space. nil maps to 0, wrapped Errnos are
// unwrapped, anything else is an infrastructure failure and maps to EIO.
func ErrnoOf(err error) Errno {
	if err == nil {
		return 0
	}
	var e Errno
	if errors.As(err, &e) {
		return e
	}
	return EIO
}

// IsErrno reports whether err maps to want.
func IsErrno(err error, want Errno) bool {
	return err != nil && ErrnoOf(err) == want
}

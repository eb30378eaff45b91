package sys_test

import (
	"testing"

	"github.com/marmos91/dittovfs/pkg/fdtable"
	"github.com/marmos91/dittovfs/pkg/kmod"
	"github.com/marmos91/dittovfs/pkg/sys"
	"github.com/marmos91/dittovfs/pkg/task"
	"github.com/marmos91/dittovfs/pkg/vfs"
	"github.com/marmos91/dittovfs/pkg/vfs/sysfs"
	"github.com/marmos91/dittovfs/pkg/vfs/tmpfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func errno(e vfs.Errno) int64 {
	return e.Neg()
}

func setup(t *testing.T) (*sys.Syscalls, *task.Task, *kmod.Registry) {
	t.Helper()

	mods := kmod.NewRegistry()
	sysFS := sysfs.New(mods)
	mods.OnRemove(sysFS.RemoveModuleNode)

	filesystems := vfs.NewRegistry()
	require.NoError(t, filesystems.Register(tmpfs.New(tmpfs.Config{})))
	require.NoError(t, filesystems.Register(sysFS))

	v := vfs.New(nil)
	require.NoError(t, v.MountRoot(tmpfs.New(tmpfs.Config{})))

	tk := task.New(1, 0, 0, v.Root())
	t.Cleanup(tk.Exit)
	return sys.New(v, filesystems), tk, mods
}

func TestGetFile(t *testing.T) {
	s, tk, _ := setup(t)

	for _, fd := range []int{-1, 256, 1000} {
		_, err := sys.GetFile(tk, fd)
		assert.ErrorIs(t, err, vfs.EBADF, "fd %d", fd)
	}

	_, err := sys.GetFile(tk, 3)
	assert.ErrorIs(t, err, vfs.EBADF)

	fd := s.Creat(tk, "/a", 0o644)
	require.GreaterOrEqual(t, fd, int64(0))

	idx, ok := fdtable.FromInt(int(fd))
	require.True(t, ok)
	stored, ok := tk.Files.Get(idx)
	require.True(t, ok)

	got, err := sys.GetFile(tk, int(fd))
	require.NoError(t, err)
	assert.Same(t, stored, got)
}

func TestBadDescriptorCalls(t *testing.T) {
	s, tk, _ := setup(t)
	buf := make([]byte, 16)

	assert.Equal(t, errno(vfs.EBADF), s.Read(tk, 7, buf))
	assert.Equal(t, errno(vfs.EBADF), s.Write(tk, -1, buf))
	assert.Equal(t, errno(vfs.EBADF), s.Close(tk, 300))
	assert.Equal(t, errno(vfs.EBADF), s.Lseek(tk, 5, 0, vfs.SeekStart))
	assert.Equal(t, errno(vfs.EBADF), s.Getdents(tk, 5, buf))
	assert.Equal(t, errno(vfs.EBADF), s.Fcntl(tk, 5, sys.F_GETFL, 0))
	assert.Equal(t, errno(vfs.EBADF), s.Ioctl(tk, 5, 0x5401, 0))

	var st vfs.Stat
	assert.Equal(t, errno(vfs.EBADF), s.Fstat(tk, 5, &st))
}

func TestReadWriteRoundTrip(t *testing.T) {
	s, tk, _ := setup(t)

	fd := int(s.Open(tk, "/greeting", vfs.O_CREAT|vfs.O_RDWR, 0o644))
	require.GreaterOrEqual(t, fd, 0)
	assert.Equal(t, 0, fd, "lowest free slot")

	assert.Equal(t, int64(5), s.Write(tk, fd, []byte("hello")))
	assert.Equal(t, int64(6), s.Writev(tk, fd, [][]byte{[]byte(", "), []byte("vfs!")}))
	assert.Equal(t, int64(0), s.Lseek(tk, fd, 0, vfs.SeekStart))

	buf := make([]byte, 32)
	n := s.Read(tk, fd, buf)
	require.Equal(t, int64(11), n)
	assert.Equal(t, "hello, vfs!", string(buf[:n]))

	var st vfs.Stat
	require.Equal(t, int64(0), s.Fstat(tk, fd, &st))
	assert.Equal(t, int64(11), st.Size)
	assert.Equal(t, vfs.TypeRegular, st.Type)

	assert.Equal(t, int64(0), s.Close(tk, fd))
	assert.Equal(t, errno(vfs.EBADF), s.Close(tk, fd))
}

func TestOpenErrors(t *testing.T) {
	s, tk, _ := setup(t)

	assert.Equal(t, errno(vfs.ENOENT), s.Open(tk, "/missing", vfs.O_RDONLY, 0))
	assert.Equal(t, errno(vfs.ENOENT), s.Open(tk, "", vfs.O_RDONLY, 0))

	require.GreaterOrEqual(t, s.Creat(tk, "/f", 0o644), int64(0))
	assert.Equal(t, errno(vfs.EEXIST), s.Open(tk, "/f", vfs.O_CREAT|vfs.O_EXCL|vfs.O_WRONLY, 0o644))
	assert.Equal(t, errno(vfs.ENOTDIR), s.Open(tk, "/f", vfs.O_RDONLY|vfs.O_DIRECTORY, 0))
	assert.Equal(t, errno(vfs.EISDIR), s.Open(tk, "/", vfs.O_WRONLY, 0))
}

func TestDescriptorTableFull(t *testing.T) {
	s, tk, _ := setup(t)
	require.GreaterOrEqual(t, s.Creat(tk, "/f", 0o644), int64(0))

	for tk.Files.Count() < fdtable.Size {
		require.GreaterOrEqual(t, s.Open(tk, "/f", vfs.O_RDONLY, 0), int64(0))
	}
	assert.Equal(t, errno(vfs.EMFILE), s.Open(tk, "/f", vfs.O_RDONLY, 0))
	assert.Equal(t, errno(vfs.EMFILE), s.Dup(tk, 0))
}

func TestPathCalls(t *testing.T) {
	s, tk, _ := setup(t)

	require.Equal(t, int64(0), s.Mkdir(tk, "/dir", 0o750))
	assert.Equal(t, errno(vfs.EEXIST), s.Mkdir(tk, "/dir", 0o750))

	var st vfs.Stat
	require.Equal(t, int64(0), s.Stat(tk, "/dir", &st))
	assert.Equal(t, vfs.TypeDirectory, st.Type)
	assert.Equal(t, vfs.Permission(0o750), st.Perm)

	require.Equal(t, int64(0), s.Chmod(tk, "/dir", 0o700))
	require.Equal(t, int64(0), s.Chown(tk, "/dir", 10, 20))
	require.Equal(t, int64(0), s.Stat(tk, "/dir", &st))
	assert.Equal(t, vfs.Permission(0o700), st.Perm)
	assert.Equal(t, uint32(10), st.UID)
	assert.Equal(t, uint32(20), st.GID)

	require.Equal(t, int64(0), s.Symlink(tk, "/dir", "/link"))
	buf := make([]byte, 64)
	n := s.Readlink(tk, "/link", buf)
	require.Equal(t, int64(4), n)
	assert.Equal(t, "/dir", string(buf[:n]))
	assert.Equal(t, int64(2), s.Readlink(tk, "/link", buf[:2]), "short buffer truncates")

	require.Equal(t, int64(0), s.Lstat(tk, "/link", &st))
	assert.Equal(t, vfs.TypeSymlink, st.Type)

	fd := s.Creat(tk, "/dir/file", 0o644)
	require.GreaterOrEqual(t, fd, int64(0))
	require.Equal(t, int64(3), s.Write(tk, int(fd), []byte("abc")))
	require.Equal(t, int64(0), s.Truncate(tk, "/dir/file", 1))
	require.Equal(t, int64(0), s.Fstat(tk, int(fd), &st))
	assert.Equal(t, int64(1), st.Size)
	require.Equal(t, int64(0), s.Ftruncate(tk, int(fd), 0))
	require.Equal(t, int64(0), s.Close(tk, int(fd)))

	assert.Equal(t, errno(vfs.ENOTEMPTY), s.Rmdir(tk, "/dir"))
	require.Equal(t, int64(0), s.Unlink(tk, "/dir/file"))
	require.Equal(t, int64(0), s.Rmdir(tk, "/dir"))
	require.Equal(t, int64(0), s.Unlink(tk, "/link"))
	assert.Equal(t, errno(vfs.ENOENT), s.Stat(tk, "/dir", &st))
}

func TestChdirGetcwd(t *testing.T) {
	s, tk, _ := setup(t)

	buf := make([]byte, 64)
	require.Equal(t, int64(2), s.Getcwd(tk, buf))
	assert.Equal(t, "/\x00", string(buf[:2]))

	require.Equal(t, int64(0), s.Mkdir(tk, "/a", 0o755))
	require.Equal(t, int64(0), s.Mkdir(tk, "a/b", 0o755))
	require.Equal(t, int64(0), s.Chdir(tk, "/a/b"))

	n := s.Getcwd(tk, buf)
	require.Equal(t, int64(5), n)
	assert.Equal(t, "/a/b\x00", string(buf[:n]))
	assert.Equal(t, errno(vfs.ERANGE), s.Getcwd(tk, buf[:4]))

	require.GreaterOrEqual(t, s.Creat(tk, "rel", 0o644), int64(0))
	var st vfs.Stat
	assert.Equal(t, int64(0), s.Stat(tk, "/a/b/rel", &st))

	require.Equal(t, int64(0), s.Chdir(tk, ".."))
	assert.Equal(t, int64(3), s.Getcwd(tk, buf))
	assert.Equal(t, errno(vfs.ENOTDIR), s.Chdir(tk, "/a/b/rel"))
	assert.Equal(t, errno(vfs.ENOENT), s.Chdir(tk, "/nowhere"))
}

func readAllDirents(t *testing.T, s *sys.Syscalls, tk *task.Task, fd int, size int) []string {
	t.Helper()

	var names []string
	buf := make([]byte, size)
	for {
		n := s.Getdents(tk, fd, buf)
		require.GreaterOrEqual(t, n, int64(0))
		if n == 0 {
			return names
		}
		for _, e := range sys.DecodeDirents(buf[:n]) {
			names = append(names, e.Name)
		}
	}
}

func TestGetdents(t *testing.T) {
	s, tk, _ := setup(t)
	require.Equal(t, int64(0), s.Mkdir(tk, "/d", 0o755))
	for _, name := range []string{"alpha", "beta", "gamma"} {
		require.GreaterOrEqual(t, s.Creat(tk, "/d/"+name, 0o644), int64(0))
	}

	fd := int(s.Open(tk, "/d", vfs.O_RDONLY|vfs.O_DIRECTORY, 0))
	require.GreaterOrEqual(t, fd, 0)

	t.Run("LargeBuffer", func(t *testing.T) {
		names := readAllDirents(t, s, tk, fd, 4096)
		assert.ElementsMatch(t, []string{".", "..", "alpha", "beta", "gamma"}, names)
	})

	t.Run("ResumesAcrossCalls", func(t *testing.T) {
		require.Equal(t, int64(0), s.Lseek(tk, fd, 0, vfs.SeekStart))
		names := readAllDirents(t, s, tk, fd, sys.DirentLen("gamma"))
		assert.ElementsMatch(t, []string{".", "..", "alpha", "beta", "gamma"}, names)
	})

	t.Run("BufferTooSmall", func(t *testing.T) {
		require.Equal(t, int64(0), s.Lseek(tk, fd, 0, vfs.SeekStart))
		assert.Equal(t, errno(vfs.EINVAL), s.Getdents(tk, fd, make([]byte, 2)))
	})

	file := int(s.Open(tk, "/d/alpha", vfs.O_RDONLY, 0))
	assert.Equal(t, errno(vfs.ENOTDIR), s.Getdents(tk, file, make([]byte, 64)))
}

func TestDirentEncoding(t *testing.T) {
	s, tk, _ := setup(t)
	require.GreaterOrEqual(t, s.Creat(tk, "/x", 0o644), int64(0))

	fd := int(s.Open(tk, "/", vfs.O_RDONLY, 0))
	buf := make([]byte, 256)
	n := s.Getdents(tk, fd, buf)
	require.Greater(t, n, int64(0))

	reclen := int(buf[0]) | int(buf[1])<<8
	require.LessOrEqual(t, reclen, int(n))
	name := string(buf[3 : reclen-1])
	assert.Equal(t, byte(0), buf[reclen-1])
	assert.Equal(t, sys.DirentLen(name), reclen)
}

func TestFcntl(t *testing.T) {
	s, tk, _ := setup(t)
	fd := int(s.Open(tk, "/f", vfs.O_CREAT|vfs.O_WRONLY|vfs.O_CLOEXEC, 0o644))
	require.GreaterOrEqual(t, fd, 0)

	assert.Equal(t, int64(vfs.O_WRONLY), s.Fcntl(tk, fd, sys.F_GETFL, 0))
	assert.Equal(t, int64(sys.FD_CLOEXEC), s.Fcntl(tk, fd, sys.F_GETFD, 0))

	require.Equal(t, int64(0), s.Fcntl(tk, fd, sys.F_SETFD, 0))
	assert.Equal(t, int64(0), s.Fcntl(tk, fd, sys.F_GETFD, 0))

	require.Equal(t, int64(0), s.Fcntl(tk, fd, sys.F_SETFL, vfs.O_APPEND|vfs.O_RDWR))
	assert.Equal(t, int64(vfs.O_WRONLY|vfs.O_APPEND), s.Fcntl(tk, fd, sys.F_GETFL, 0), "access mode is fixed")

	dup := s.Fcntl(tk, fd, sys.F_DUPFD, 10)
	assert.Equal(t, int64(10), dup)
	a, _ := sys.GetFile(tk, fd)
	b, _ := sys.GetFile(tk, int(dup))
	assert.Same(t, a, b)

	cloexecDup := s.Fcntl(tk, fd, sys.F_DUPFD_CLOEXEC, 10)
	assert.Equal(t, int64(11), cloexecDup)
	assert.Equal(t, int64(sys.FD_CLOEXEC), s.Fcntl(tk, int(cloexecDup), sys.F_GETFD, 0))

	assert.Equal(t, errno(vfs.EINVAL), s.Fcntl(tk, fd, sys.F_DUPFD, 999))
	assert.Equal(t, errno(vfs.EINVAL), s.Fcntl(tk, fd, 12345, 0))
}

func TestDupSharesOffset(t *testing.T) {
	s, tk, _ := setup(t)
	fd := int(s.Open(tk, "/f", vfs.O_CREAT|vfs.O_RDWR, 0o644))
	require.Equal(t, int64(6), s.Write(tk, fd, []byte("abcdef")))

	dup := int(s.Dup(tk, fd))
	require.Equal(t, int64(2), s.Lseek(tk, dup, 2, vfs.SeekStart))
	require.Equal(t, int64(0), s.Close(tk, fd))

	buf := make([]byte, 8)
	n := s.Read(tk, dup, buf)
	assert.Equal(t, "cdef", string(buf[:n]))

	assert.Equal(t, int64(40), s.Dup2(tk, dup, 40))
	assert.Equal(t, int64(40), s.Dup2(tk, 40, 40))
	assert.Equal(t, errno(vfs.EBADF), s.Dup2(tk, dup, 256))
	assert.Equal(t, errno(vfs.EBADF), s.Dup2(tk, 99, 41))
}

func TestIoctl(t *testing.T) {
	s, tk, _ := setup(t)
	fd := int(s.Creat(tk, "/f", 0o644))
	assert.Equal(t, errno(vfs.ENOTTY), s.Ioctl(tk, fd, 0x5401, 0))
}

func TestMountUmount(t *testing.T) {
	s, tk, mods := setup(t)
	require.NoError(t, mods.Load(kmod.Module{Name: "net"}))
	require.Equal(t, int64(0), s.Mkdir(tk, "/sys", 0o755))
	require.Equal(t, int64(0), s.Mkdir(tk, "/other", 0o755))

	assert.Equal(t, errno(vfs.ENODEV), s.Mount(tk, "none", "/sys", "ext4"))
	require.Equal(t, int64(0), s.Mount(tk, "sysfs", "/sys", "sysfs"))
	assert.Equal(t, errno(vfs.EBUSY), s.Mount(tk, "sysfs", "/other", "sysfs"))

	var st vfs.Stat
	require.Equal(t, int64(0), s.Stat(tk, "/sys/modules/net", &st))
	assert.Equal(t, errno(vfs.EPERM), s.Mkdir(tk, "/sys/modules/x", 0o755))

	fd := int(s.Open(tk, "/sys/modules", vfs.O_RDONLY, 0))
	require.GreaterOrEqual(t, fd, 0)
	assert.Equal(t, errno(vfs.EBUSY), s.Umount(tk, "/sys"))
	require.Equal(t, int64(0), s.Close(tk, fd))

	require.Equal(t, int64(0), s.Umount(tk, "/sys"))
	assert.Equal(t, errno(vfs.EINVAL), s.Umount(tk, "/sys"))
	require.Equal(t, int64(0), s.Mount(tk, "sysfs", "/other", "sysfs"))
}

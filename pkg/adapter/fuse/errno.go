package fuse

import (
	"syscall"
	"time"

	gofusefs "github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/marmos91/dittovfs/pkg/vfs"
)

// toErrno maps a VFS error onto the host errno. vfs.Errno shares Linux
// numbering, so the conversion is direct.
func toErrno(err error) syscall.Errno {
	if err == nil {
		return gofusefs.OK
	}
	return syscall.Errno(vfs.ErrnoOf(err))
}

// modeBits returns the S_IFMT bits for a file type.
func modeBits(t vfs.FileType) uint32 {
	switch t {
	case vfs.TypeDirectory:
		return fuse.S_IFDIR
	case vfs.TypeSymlink:
		return fuse.S_IFLNK
	default:
		return fuse.S_IFREG
	}
}

// fillAttr copies a VFS stat into a FUSE attribute block.
func fillAttr(st vfs.Stat, out *fuse.Attr) {
	out.Mode = modeBits(st.Type) | uint32(st.Perm)
	out.Size = st.Size
	out.Blocks = (st.Size + 511) / 512
	out.Uid = st.UID
	out.Gid = st.GID
	out.Nlink = 1
	if st.Type == vfs.TypeDirectory {
		out.Nlink = 2
	}

	atime := st.AccessTime.Time()
	mtime := st.ModifyTime.Time()
	ctime := st.ChangeTime.Time()
	out.SetTimes(&atime, &mtime, &ctime)
}

// openFlags keeps the open(2) bits the VFS understands. Both sides use
// Linux values.
func openFlags(flags uint32) int {
	return int(flags) & (vfs.O_ACCMODE | vfs.O_CREAT | vfs.O_EXCL | vfs.O_TRUNC | vfs.O_APPEND)
}

func durationPtr(d time.Duration) *time.Duration {
	return &d
}

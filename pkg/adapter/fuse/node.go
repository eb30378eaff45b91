package fuse

import (
	"context"
	"path"
	"syscall"

	gofusefs "github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/marmos91/dittovfs/pkg/vfs"
)

// node is one host inode. It remembers its VFS path; the tree has no
// rename, so a path stays valid for the life of the node.
type node struct {
	gofusefs.Inode

	adapter *Adapter
	path    string
}

var (
	_ gofusefs.InodeEmbedder  = (*node)(nil)
	_ gofusefs.NodeGetattrer  = (*node)(nil)
	_ gofusefs.NodeSetattrer  = (*node)(nil)
	_ gofusefs.NodeLookuper   = (*node)(nil)
	_ gofusefs.NodeReaddirer  = (*node)(nil)
	_ gofusefs.NodeOpener     = (*node)(nil)
	_ gofusefs.NodeCreater    = (*node)(nil)
	_ gofusefs.NodeMkdirer    = (*node)(nil)
	_ gofusefs.NodeUnlinker   = (*node)(nil)
	_ gofusefs.NodeRmdirer    = (*node)(nil)
	_ gofusefs.NodeSymlinker  = (*node)(nil)
	_ gofusefs.NodeReadlinker = (*node)(nil)
)

func (n *node) fsys() *vfs.VFS {
	return n.adapter.vfs
}

func (n *node) child(name string) string {
	return path.Join(n.path, name)
}

// newChild stats p and wraps it in a new host inode.
func (n *node) newChild(ctx context.Context, p string, out *fuse.EntryOut) (*gofusefs.Inode, syscall.Errno) {
	st, err := n.fsys().Lstat(nil, p)
	if err != nil {
		return nil, toErrno(err)
	}
	fillAttr(st, &out.Attr)
	out.SetAttrTimeout(n.adapter.cfg.AttrTimeout)
	out.SetEntryTimeout(n.adapter.cfg.EntryTimeout)

	child := &node{adapter: n.adapter, path: p}
	return n.NewInode(ctx, child, gofusefs.StableAttr{Mode: modeBits(st.Type)}), gofusefs.OK
}

func (n *node) Getattr(_ context.Context, _ gofusefs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	if errno := n.adapter.admit(); errno != gofusefs.OK {
		return errno
	}
	st, err := n.fsys().Lstat(nil, n.path)
	if err != nil {
		return toErrno(err)
	}
	fillAttr(st, &out.Attr)
	out.SetTimeout(n.adapter.cfg.AttrTimeout)
	return gofusefs.OK
}

// Setattr applies mode, owner and size changes. Time updates are ignored.
func (n *node) Setattr(_ context.Context, _ gofusefs.FileHandle, in *fuse.SetAttrIn, out *fuse.AttrOut) syscall.Errno {
	if errno := n.adapter.admit(); errno != gofusefs.OK {
		return errno
	}
	v := n.fsys()

	if mode, ok := in.GetMode(); ok {
		if err := v.Chmod(nil, n.path, vfs.NewPermission(mode)); err != nil {
			return toErrno(err)
		}
	}

	uid, setUID := in.GetUID()
	gid, setGID := in.GetGID()
	if setUID || setGID {
		st, err := v.Lstat(nil, n.path)
		if err != nil {
			return toErrno(err)
		}
		if !setUID {
			uid = st.UID
		}
		if !setGID {
			gid = st.GID
		}
		if err := v.Chown(nil, n.path, uid, gid); err != nil {
			return toErrno(err)
		}
	}

	if size, ok := in.GetSize(); ok {
		if err := v.Truncate(nil, n.path, int64(size)); err != nil {
			return toErrno(err)
		}
	}

	st, err := v.Lstat(nil, n.path)
	if err != nil {
		return toErrno(err)
	}
	fillAttr(st, &out.Attr)
	return gofusefs.OK
}

func (n *node) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*gofusefs.Inode, syscall.Errno) {
	if errno := n.adapter.admit(); errno != gofusefs.OK {
		return nil, errno
	}
	return n.newChild(ctx, n.child(name), out)
}

func (n *node) Readdir(context.Context) (gofusefs.DirStream, syscall.Errno) {
	if errno := n.adapter.admit(); errno != gofusefs.OK {
		return nil, errno
	}
	entries, err := n.fsys().ReadDir(nil, n.path)
	if err != nil {
		return nil, toErrno(err)
	}

	out := make([]fuse.DirEntry, 0, len(entries))
	for _, e := range entries {
		if e.Name == "." || e.Name == ".." {
			continue
		}
		out = append(out, fuse.DirEntry{Name: e.Name, Mode: modeBits(e.Type)})
	}
	return gofusefs.NewListDirStream(out), gofusefs.OK
}

func (n *node) Open(_ context.Context, flags uint32) (gofusefs.FileHandle, uint32, syscall.Errno) {
	if errno := n.adapter.admit(); errno != gofusefs.OK {
		return nil, 0, errno
	}
	f, err := n.fsys().Open(nil, n.path, openFlags(flags), 0)
	if err != nil {
		return nil, 0, toErrno(err)
	}
	return &handle{adapter: n.adapter, file: f}, fuse.FOPEN_DIRECT_IO, gofusefs.OK
}

func (n *node) Create(ctx context.Context, name string, flags, mode uint32, out *fuse.EntryOut) (*gofusefs.Inode, gofusefs.FileHandle, uint32, syscall.Errno) {
	if errno := n.adapter.admit(); errno != gofusefs.OK {
		return nil, nil, 0, errno
	}
	p := n.child(name)
	f, err := n.fsys().Open(nil, p, openFlags(flags)|vfs.O_CREAT, vfs.NewPermission(mode))
	if err != nil {
		return nil, nil, 0, toErrno(err)
	}

	inode, errno := n.newChild(ctx, p, out)
	if errno != gofusefs.OK {
		_ = f.Close()
		return nil, nil, 0, errno
	}
	return inode, &handle{adapter: n.adapter, file: f}, fuse.FOPEN_DIRECT_IO, gofusefs.OK
}

func (n *node) Mkdir(ctx context.Context, name string, mode uint32, out *fuse.EntryOut) (*gofusefs.Inode, syscall.Errno) {
	if errno := n.adapter.admit(); errno != gofusefs.OK {
		return nil, errno
	}
	p := n.child(name)
	if err := n.fsys().Mkdir(nil, p, vfs.NewPermission(mode)); err != nil {
		return nil, toErrno(err)
	}
	return n.newChild(ctx, p, out)
}

func (n *node) Unlink(_ context.Context, name string) syscall.Errno {
	if errno := n.adapter.admit(); errno != gofusefs.OK {
		return errno
	}
	return toErrno(n.fsys().Unlink(nil, n.child(name)))
}

func (n *node) Rmdir(_ context.Context, name string) syscall.Errno {
	if errno := n.adapter.admit(); errno != gofusefs.OK {
		return errno
	}
	return toErrno(n.fsys().Rmdir(nil, n.child(name)))
}

func (n *node) Symlink(ctx context.Context, target, name string, out *fuse.EntryOut) (*gofusefs.Inode, syscall.Errno) {
	if errno := n.adapter.admit(); errno != gofusefs.OK {
		return nil, errno
	}
	p := n.child(name)
	if err := n.fsys().Symlink(nil, target, p); err != nil {
		return nil, toErrno(err)
	}
	return n.newChild(ctx, p, out)
}

func (n *node) Readlink(context.Context) ([]byte, syscall.Errno) {
	if errno := n.adapter.admit(); errno != gofusefs.OK {
		return nil, errno
	}
	target, err := n.fsys().Readlink(nil, n.path)
	if err != nil {
		return nil, toErrno(err)
	}
	return []byte(target), gofusefs.OK
}

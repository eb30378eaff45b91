package badgerfs

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/marmos91/dittovfs/pkg/content"
	"github.com/marmos91/dittovfs/pkg/vfs"
)

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

// node carries the metadata operations every inode kind shares.
type node struct {
	s  *state
	id uuid.UUID
}

func (n *node) Stat() (vfs.Stat, error) {
	r, err := n.s.get(n.id)
	if err != nil {
		return vfs.Stat{}, err
	}
	return r.stat(), nil
}

func (n *node) Chown(uid, gid uint32) error {
	return n.s.update(n.id, func(r *record) error {
		r.UID, r.GID = uid, gid
		r.touchChange()
		return nil
	})
}

func (n *node) Chmod(perm vfs.Permission) error {
	return n.s.update(n.id, func(r *record) error {
		r.Perm = uint32(perm & vfs.PermMask)
		r.touchChange()
		return nil
	})
}

type dirInode struct {
	node
}

func (d *dirInode) Open() (vfs.DirHandle, error) {
	entries, err := d.s.list(d.id)
	if err != nil {
		return nil, err
	}
	return vfs.NewListDir(entries), nil
}

func (d *dirInode) Lookup(name string) (vfs.Inode, error) {
	return d.s.lookup(d.id, name)
}

func (d *dirInode) Mkdir(name string, perm vfs.Permission) (vfs.DirInode, error) {
	id, err := d.s.create(d.id, name, newRecord(vfs.TypeDirectory, perm, 0, 0))
	if err != nil {
		return nil, err
	}
	n, err := d.s.node(id, vfs.TypeDirectory)
	if err != nil {
		return nil, err
	}
	return n.Dir()
}

func (d *dirInode) Create(name string, perm vfs.Permission) (vfs.FileInode, error) {
	id, err := d.s.create(d.id, name, newRecord(vfs.TypeRegular, perm, 0, 0))
	if err != nil {
		return nil, err
	}
	n, err := d.s.node(id, vfs.TypeRegular)
	if err != nil {
		return nil, err
	}
	return n.File()
}

func (d *dirInode) Symlink(target, name string) (vfs.SymlinkInode, error) {
	r := newRecord(vfs.TypeSymlink, 0o777, 0, 0)
	r.Target = target
	r.Size = uint64(len(target))

	id, err := d.s.create(d.id, name, r)
	if err != nil {
		return nil, err
	}
	n, err := d.s.node(id, vfs.TypeSymlink)
	if err != nil {
		return nil, err
	}
	return n.Symlink()
}

func (d *dirInode) Unlink(name string) error {
	return d.s.remove(d.id, name, false)
}

func (d *dirInode) Rmdir(name string) error {
	return d.s.remove(d.id, name, true)
}

type fileInode struct {
	node
}

func (f *fileInode) Open(int) (vfs.FileHandle, error) {
	if _, err := f.s.get(f.id); err != nil {
		return nil, err
	}
	return &fileHandle{inode: f}, nil
}

func (f *fileInode) size() (int64, error) {
	r, err := f.s.get(f.id)
	if err != nil {
		return 0, err
	}
	return int64(r.Size), nil
}

func (f *fileInode) readAt(p []byte, off int64) (int, error) {
	size, err := f.size()
	if err != nil {
		return 0, err
	}
	if off >= size {
		return 0, nil
	}
	if remaining := size - off; int64(len(p)) > remaining {
		p = p[:remaining]
	}
	return f.s.content.ReadAt(context.Background(), contentID(f.id), p, off)
}

// contentErr maps a content store error onto the errno space.
func contentErr(err error) error {
	if errors.Is(err, content.ErrTooLarge) {
		return vfs.EFBIG
	}
	return err
}

func (f *fileInode) writeAt(p []byte, off int64) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	end, err := vfs.WriteEnd(off, len(p), 0)
	if err != nil {
		return 0, err
	}
	if _, err := f.s.get(f.id); err != nil {
		return 0, err
	}
	if err := f.s.content.WriteAt(context.Background(), contentID(f.id), p, off); err != nil {
		return 0, contentErr(err)
	}

	err = f.s.update(f.id, func(r *record) error {
		if uint64(end) > r.Size {
			r.Size = uint64(end)
		}
		r.touchModify()
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(p), nil
}

func (f *fileInode) truncate(size int64) error {
	if _, err := f.s.get(f.id); err != nil {
		return err
	}
	if err := f.s.content.Truncate(context.Background(), contentID(f.id), uint64(size)); err != nil {
		return contentErr(err)
	}
	return f.s.update(f.id, func(r *record) error {
		r.Size = uint64(size)
		r.touchModify()
		return nil
	})
}

type symlinkInode struct {
	node
}

func (l *symlinkInode) Target() (string, error) {
	r, err := l.s.get(l.id)
	if err != nil {
		return "", err
	}
	return r.Target, nil
}

package vfs

import "time"

// Open opens path relative to cwd.
//
// O_CREAT creates a regular file when the name is missing; with O_EXCL an
// existing name fails with EEXIST. O_NOFOLLOW refuses a final symlink with
// ELOOP, O_DIRECTORY a non-directory with ENOTDIR. Directories open
// read-only. O_TRUNC empties a regular file opened for writing.
func (v *VFS) Open(cwd *Dentry, path string, flags int, perm Permission) (f *File, err error) {
	defer func(start time.Time) { v.observe("open", start, err) }(time.Now())

	d, err := v.lookupForOpen(cwd, path, flags, perm)
	if err != nil {
		return nil, err
	}

	switch d.inode.Type() {
	case TypeSymlink:
		return nil, ELOOP

	case TypeDirectory:
		if flags&O_ACCMODE != O_RDONLY || flags&O_CREAT != 0 {
			return nil, EISDIR
		}
		dir, _ := d.inode.Dir()
		dh, err := dir.Open()
		if err != nil {
			return nil, err
		}
		return newFile(d, flags, nil, dh, v.metrics), nil

	case TypeRegular:
		if flags&O_DIRECTORY != 0 {
			return nil, ENOTDIR
		}
		fi, _ := d.inode.File()
		fh, err := fi.Open(flags)
		if err != nil {
			return nil, err
		}
		mode := flags & O_ACCMODE
		if flags&O_TRUNC != 0 && (mode == O_WRONLY || mode == O_RDWR) {
			if err := fh.Truncate(0); err != nil {
				_ = fh.Close()
				return nil, err
			}
		}
		return newFile(d, flags, fh, nil, v.metrics), nil

	default:
		return nil, EINVAL
	}
}

func (v *VFS) lookupForOpen(cwd *Dentry, path string, flags int, perm Permission) (*Dentry, error) {
	follow := flags&O_NOFOLLOW == 0
	if flags&O_CREAT == 0 {
		return v.Resolve(cwd, path, follow)
	}

	parent, name, err := v.ResolveParent(cwd, path)
	if err != nil {
		return nil, err
	}
	if isDotName(name) || hasTrailingSlash(path) {
		return nil, EISDIR
	}

	d, err := parent.Lookup(name)
	switch {
	case err == nil:
		if flags&O_EXCL != 0 {
			return nil, EEXIST
		}
		d = enterMounts(d)
		if d.inode.Type() == TypeSymlink && follow {
			w := &walker{v: v}
			return w.follow(parent, d)
		}
		return d, nil

	case IsErrno(err, ENOENT):
		dir, err := parent.inode.Dir()
		if err != nil {
			return nil, err
		}
		fi, err := dir.Create(name, perm)
		if err != nil {
			return nil, err
		}
		return parent.Insert(name, FileNode(fi)), nil

	default:
		return nil, err
	}
}

// Stat returns the attributes of path, following a final symlink.
func (v *VFS) Stat(cwd *Dentry, path string) (st Stat, err error) {
	defer func(start time.Time) { v.observe("stat", start, err) }(time.Now())

	d, err := v.Resolve(cwd, path, true)
	if err != nil {
		return Stat{}, err
	}
	return d.inode.Metadata().Stat()
}

// Lstat is Stat without following a final symlink.
func (v *VFS) Lstat(cwd *Dentry, path string) (st Stat, err error) {
	defer func(start time.Time) { v.observe("lstat", start, err) }(time.Now())

	d, err := v.Resolve(cwd, path, false)
	if err != nil {
		return Stat{}, err
	}
	return d.inode.Metadata().Stat()
}

// Mkdir creates a directory.
func (v *VFS) Mkdir(cwd *Dentry, path string, perm Permission) (err error) {
	defer func(start time.Time) { v.observe("mkdir", start, err) }(time.Now())

	parent, name, err := v.ResolveParent(cwd, path)
	if err != nil {
		return err
	}
	if isDotName(name) {
		return EEXIST
	}

	dir, err := parent.inode.Dir()
	if err != nil {
		return err
	}
	child, err := dir.Mkdir(name, perm)
	if err != nil {
		return err
	}
	parent.Insert(name, DirNode(child))
	return nil
}

// Rmdir removes an empty directory.
func (v *VFS) Rmdir(cwd *Dentry, path string) (err error) {
	defer func(start time.Time) { v.observe("rmdir", start, err) }(time.Now())

	parent, name, err := v.ResolveParent(cwd, path)
	if err != nil {
		return err
	}
	switch name {
	case "":
		return EBUSY
	case ".":
		return EINVAL
	case "..":
		return ENOTEMPTY
	}
	if child, ok := parent.CachedChild(name); ok && child.IsMountpoint() {
		return EBUSY
	}

	dir, err := parent.inode.Dir()
	if err != nil {
		return err
	}
	if err := dir.Rmdir(name); err != nil {
		return err
	}
	parent.RemoveChildForce(name)
	return nil
}

// Unlink removes a non-directory.
func (v *VFS) Unlink(cwd *Dentry, path string) (err error) {
	defer func(start time.Time) { v.observe("unlink", start, err) }(time.Now())

	parent, name, err := v.ResolveParent(cwd, path)
	if err != nil {
		return err
	}
	if isDotName(name) {
		return EISDIR
	}
	if hasTrailingSlash(path) {
		return ENOTDIR
	}
	if child, ok := parent.CachedChild(name); ok && child.IsMountpoint() {
		return EBUSY
	}

	dir, err := parent.inode.Dir()
	if err != nil {
		return err
	}
	if err := dir.Unlink(name); err != nil {
		return err
	}
	parent.RemoveChildForce(name)
	return nil
}

// Symlink creates linkPath pointing at target. The target is stored as
// given and not checked.
func (v *VFS) Symlink(cwd *Dentry, target, linkPath string) (err error) {
	defer func(start time.Time) { v.observe("symlink", start, err) }(time.Now())

	if target == "" {
		return ENOENT
	}
	if len(target) > MaxPathLen {
		return ENAMETOOLONG
	}

	parent, name, err := v.ResolveParent(cwd, linkPath)
	if err != nil {
		return err
	}
	if isDotName(name) || hasTrailingSlash(linkPath) {
		return EEXIST
	}

	dir, err := parent.inode.Dir()
	if err != nil {
		return err
	}
	sl, err := dir.Symlink(target, name)
	if err != nil {
		return err
	}
	parent.Insert(name, SymlinkNode(sl))
	return nil
}

// Readlink returns the target stored in the symlink at path.
func (v *VFS) Readlink(cwd *Dentry, path string) (target string, err error) {
	defer func(start time.Time) { v.observe("readlink", start, err) }(time.Now())

	d, err := v.Resolve(cwd, path, false)
	if err != nil {
		return "", err
	}
	sl, err := d.inode.Symlink()
	if err != nil {
		return "", err
	}
	return sl.Target()
}

// Chmod replaces the permission bits of path.
func (v *VFS) Chmod(cwd *Dentry, path string, perm Permission) (err error) {
	defer func(start time.Time) { v.observe("chmod", start, err) }(time.Now())

	d, err := v.Resolve(cwd, path, true)
	if err != nil {
		return err
	}
	return d.inode.Metadata().Chmod(perm & PermMask)
}

// Chown changes the owner of path.
func (v *VFS) Chown(cwd *Dentry, path string, uid, gid uint32) (err error) {
	defer func(start time.Time) { v.observe("chown", start, err) }(time.Now())

	d, err := v.Resolve(cwd, path, true)
	if err != nil {
		return err
	}
	return d.inode.Metadata().Chown(uid, gid)
}

// Truncate sets the size of the regular file at path.
func (v *VFS) Truncate(cwd *Dentry, path string, size int64) (err error) {
	defer func(start time.Time) { v.observe("truncate", start, err) }(time.Now())

	if size < 0 {
		return EINVAL
	}
	d, err := v.Resolve(cwd, path, true)
	if err != nil {
		return err
	}
	fi, err := d.inode.File()
	if err != nil {
		return err
	}
	fh, err := fi.Open(O_WRONLY)
	if err != nil {
		return err
	}
	if err := fh.Truncate(size); err != nil {
		_ = fh.Close()
		return err
	}
	return fh.Close()
}

// ReadDir returns the complete listing of the directory at path,
// including "." and "..".
func (v *VFS) ReadDir(cwd *Dentry, path string) ([]DirEntry, error) {
	f, err := v.Open(cwd, path, O_RDONLY|O_DIRECTORY, 0)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	var entries []DirEntry
	err = f.ReadDir(func(e DirEntry) bool {
		entries = append(entries, e)
		return true
	})
	return entries, err
}

// MountAt resolves path and mounts fs there.
func (v *VFS) MountAt(cwd *Dentry, path string, fs FileSystem) (err error) {
	defer func(start time.Time) { v.observe("mount", start, err) }(time.Now())

	target, err := v.Resolve(cwd, path, true)
	if err != nil {
		return err
	}
	_, err = v.Mount(fs, target)
	return err
}

// UnmountAt resolves path and unmounts the filesystem rooted there.
func (v *VFS) UnmountAt(cwd *Dentry, path string) (err error) {
	defer func(start time.Time) { v.observe("umount", start, err) }(time.Now())

	target, err := v.Resolve(cwd, path, true)
	if err != nil {
		return err
	}
	return v.Unmount(target)
}

func isDotName(name string) bool {
	return name == "" || name == "." || name == ".."
}

func hasTrailingSlash(path string) bool {
	return len(path) > 1 && path[len(path)-1] == '/'
}

package vfs

import "strings"

const (
	// MaxSymlinkDepth bounds symlink expansions in one walk.
	MaxSymlinkDepth = 40

	// MaxNameLen is the longest single path component.
	MaxNameLen = 255

	// MaxPathLen is the longest path accepted by a walk.
	MaxPathLen = 4096
)

type walker struct {
	v     *VFS
	links int
}

// Resolve walks path starting at cwd (or at the root for absolute paths).
// Symlinks in intermediate components are always followed; the final
// component is followed only when followLast is set.
func (v *VFS) Resolve(cwd *Dentry, path string, followLast bool) (*Dentry, error) {
	w := &walker{v: v}
	return w.walk(cwd, path, followLast)
}

// ResolveParent resolves everything but the last component of path and
// returns the parent directory together with the final name. The name may
// be "", "." or ".." for paths like "/", "a/." or "a/.."; callers decide.
func (v *VFS) ResolveParent(cwd *Dentry, path string) (*Dentry, string, error) {
	if err := checkPath(path); err != nil {
		return nil, "", err
	}

	trimmed := strings.TrimRight(path, "/")
	if trimmed == "" {
		root, err := v.rootDentry()
		return root, "", err
	}

	dirPart, name := "", trimmed
	if i := strings.LastIndexByte(trimmed, '/'); i >= 0 {
		dirPart, name = trimmed[:i+1], trimmed[i+1:]
	}
	if len(name) > MaxNameLen {
		return nil, "", ENAMETOOLONG
	}

	w := &walker{v: v}
	var (
		parent *Dentry
		err    error
	)
	if dirPart == "" {
		parent, err = w.start(cwd, ".")
	} else {
		parent, err = w.walk(cwd, dirPart, true)
	}
	if err != nil {
		return nil, "", err
	}
	if !parent.inode.IsDir() {
		return nil, "", ENOTDIR
	}
	return parent, name, nil
}

func checkPath(path string) error {
	if path == "" {
		return ENOENT
	}
	if len(path) > MaxPathLen {
		return ENAMETOOLONG
	}
	return nil
}

func (w *walker) start(cwd *Dentry, path string) (*Dentry, error) {
	if strings.HasPrefix(path, "/") || cwd == nil {
		root, err := w.v.rootDentry()
		if err != nil {
			return nil, err
		}
		return enterMounts(root), nil
	}
	return cwd, nil
}

func (w *walker) walk(cwd *Dentry, path string, followLast bool) (*Dentry, error) {
	if err := checkPath(path); err != nil {
		return nil, err
	}

	cur, err := w.start(cwd, path)
	if err != nil {
		return nil, err
	}

	trailingSlash := strings.HasSuffix(path, "/")
	comps := strings.FieldsFunc(path, func(r rune) bool { return r == '/' })

	for i, name := range comps {
		last := i == len(comps)-1

		if !cur.inode.IsDir() {
			return nil, ENOTDIR
		}

		switch name {
		case ".":
			continue
		case "..":
			cur = w.v.parentOf(cur)
			continue
		}
		if len(name) > MaxNameLen {
			return nil, ENAMETOOLONG
		}

		next, err := cur.Lookup(name)
		if err != nil {
			return nil, err
		}
		next = enterMounts(next)

		if next.inode.Type() == TypeSymlink && (!last || followLast || trailingSlash) {
			next, err = w.follow(cur, next)
			if err != nil {
				return nil, err
			}
		}
		cur = next
	}

	if trailingSlash && !cur.inode.IsDir() {
		return nil, ENOTDIR
	}
	return cur, nil
}

// follow expands the symlink at link, relative to its directory dir.
func (w *walker) follow(dir, link *Dentry) (*Dentry, error) {
	w.links++
	if w.links > MaxSymlinkDepth {
		return nil, ELOOP
	}

	sl, err := link.inode.Symlink()
	if err != nil {
		return nil, err
	}
	target, err := sl.Target()
	if err != nil {
		return nil, err
	}
	return w.walk(dir, target, true)
}

// parentOf returns the ".." of d, climbing out of mount roots. The parent
// of the global root is the root itself.
func (v *VFS) parentOf(d *Dentry) *Dentry {
	for d.parent == nil {
		if d.mount == nil || d.mount.mountpoint == nil {
			return d
		}
		d = d.mount.mountpoint
	}
	return d.parent
}

// enterMounts descends through any filesystems stacked on d.
func enterMounts(d *Dentry) *Dentry {
	for {
		m := d.coveringMount()
		if m == nil {
			return d
		}
		d = m.root
	}
}

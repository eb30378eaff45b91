package sysfs

import "github.com/marmos91/dittovfs/pkg/vfs"

// readOnly rejects every mutation with EPERM.
type readOnly struct{}

func (readOnly) Chown(uint32, uint32) error { return vfs.EPERM }
func (readOnly) Chmod(vfs.Permission) error { return vfs.EPERM }
func (readOnly) Unlink(string) error        { return vfs.EPERM }
func (readOnly) Rmdir(string) error         { return vfs.EPERM }

func (readOnly) Mkdir(string, vfs.Permission) (vfs.DirInode, error) {
	return nil, vfs.EPERM
}

func (readOnly) Create(string, vfs.Permission) (vfs.FileInode, error) {
	return nil, vfs.EPERM
}

func (readOnly) Symlink(string, string) (vfs.SymlinkInode, error) {
	return nil, vfs.EPERM
}

func dirStat(perm vfs.Permission) vfs.Stat {
	return vfs.Stat{Perm: perm, Type: vfs.TypeDirectory}
}

func withDots(entries []vfs.DirEntry) []vfs.DirEntry {
	return append(entries,
		vfs.DirEntry{Type: vfs.TypeDirectory, Name: "."},
		vfs.DirEntry{Type: vfs.TypeDirectory, Name: ".."},
	)
}

type rootDir struct {
	readOnly
	modules *modulesDir
}

func (d *rootDir) Stat() (vfs.Stat, error) {
	return dirStat(0o555), nil
}

func (d *rootDir) Open() (vfs.DirHandle, error) {
	return vfs.NewListDir(withDots([]vfs.DirEntry{
		{Type: vfs.TypeDirectory, Name: modulesDirName},
	})), nil
}

func (d *rootDir) Lookup(name string) (vfs.Inode, error) {
	if name == modulesDirName {
		return vfs.DirNode(d.modules), nil
	}
	return vfs.Inode{}, vfs.ENOENT
}

type modulesDir struct {
	readOnly
	source ModuleSource
}

func (d *modulesDir) Stat() (vfs.Stat, error) {
	return dirStat(0o500), nil
}

// Open snapshots the loaded module names.
func (d *modulesDir) Open() (vfs.DirHandle, error) {
	names := d.source.Names()
	entries := make([]vfs.DirEntry, 0, len(names)+2)
	for _, name := range names {
		entries = append(entries, vfs.DirEntry{Type: vfs.TypeDirectory, Name: name})
	}
	return vfs.NewListDir(withDots(entries)), nil
}

// Lookup mints a fresh placeholder for a loaded module.
func (d *modulesDir) Lookup(name string) (vfs.Inode, error) {
	if !d.source.Contains(name) {
		return vfs.Inode{}, vfs.ENOENT
	}
	return vfs.DirNode(&moduleDir{}), nil
}

// moduleDir is the empty per-module placeholder.
type moduleDir struct {
	readOnly
}

func (d *moduleDir) Stat() (vfs.Stat, error) {
	return dirStat(0), nil
}

func (d *moduleDir) Open() (vfs.DirHandle, error) {
	return vfs.NewListDir(withDots(nil)), nil
}

func (d *moduleDir) Lookup(string) (vfs.Inode, error) {
	return vfs.Inode{}, vfs.ENOENT
}

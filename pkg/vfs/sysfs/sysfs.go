// Package sysfs projects the loaded kernel modules as a read-only tree:
//
//	/            (0555)  modules
//	/modules     (0500)  one empty directory per loaded module
//
// Only one mount may be live at a time. The module registry notifies the
// backend through RemoveModuleNode so a stale cached entry does not outlive
// its module.
package sysfs

import (
	"sync"

	"github.com/marmos91/dittovfs/internal/logger"
	"github.com/marmos91/dittovfs/pkg/vfs"
)

// ModuleSource is the read view of the module registry.
type ModuleSource interface {
	// Names returns the loaded module names as one consistent snapshot.
	Names() []string

	// Contains reports whether name is loaded.
	Contains(name string) bool
}

const modulesDirName = "modules"

// mountSlot is the state of the live mount. root is nil between Mount and
// FinishMount.
type mountSlot struct {
	root *vfs.Dentry
}

// FileSystem is the sysfs backend.
type FileSystem struct {
	root *rootDir

	mu   sync.Mutex
	slot *mountSlot
}

// New creates a sysfs backend over modules.
func New(modules ModuleSource) *FileSystem {
	return &FileSystem{
		root: &rootDir{modules: &modulesDir{source: modules}},
	}
}

func (fs *FileSystem) Name() string {
	return "sysfs"
}

// Mount claims the mount slot. EBUSY while another mount is live.
func (fs *FileSystem) Mount() (vfs.SuperBlock, vfs.DirInode, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if fs.slot != nil {
		return nil, nil, vfs.EBUSY
	}
	fs.slot = &mountSlot{}
	return &superBlock{fs: fs}, fs.root, nil
}

// FinishMount stores the root dentry for RemoveModuleNode.
func (fs *FileSystem) FinishMount(root *vfs.Dentry) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if fs.slot != nil {
		fs.slot.root = root
	}
}

// Mounted reports whether a mount is live.
func (fs *FileSystem) Mounted() bool {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.slot != nil
}

func (fs *FileSystem) rootDentry() *vfs.Dentry {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if fs.slot == nil {
		return nil
	}
	return fs.slot.root
}

// RemoveModuleNode evicts the cached entry for a removed module. It is a
// no-op when nothing is mounted, and any failure is logged and dropped.
func (fs *FileSystem) RemoveModuleNode(name string) {
	root := fs.rootDentry()
	if root == nil {
		return
	}

	modules, err := root.Lookup(modulesDirName)
	if err != nil {
		logger.Debug("sysfs: dropping removal of %s: %v", name, err)
		return
	}
	modules.RemoveChildForce(name)
}

type superBlock struct {
	fs *FileSystem
}

func (sb *superBlock) FileSystem() vfs.FileSystem {
	return sb.fs
}

// Unmount empties the mount slot.
func (sb *superBlock) Unmount() error {
	sb.fs.mu.Lock()
	sb.fs.slot = nil
	sb.fs.mu.Unlock()
	return nil
}

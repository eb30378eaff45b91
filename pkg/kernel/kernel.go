// Package kernel assembles a running VFS from configuration.
//
// Boot builds the filesystem registry (tmpfs, sysfs, badgerfs), mounts the
// configured root, performs the remaining mounts in order, connects the
// module registry to sysfs and preloads modules. Shutdown undoes all of it.
package kernel

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"sync"

	"github.com/marmos91/dittovfs/internal/logger"
	"github.com/marmos91/dittovfs/pkg/config"
	"github.com/marmos91/dittovfs/pkg/content"
	"github.com/marmos91/dittovfs/pkg/kmod"
	"github.com/marmos91/dittovfs/pkg/sys"
	"github.com/marmos91/dittovfs/pkg/task"
	"github.com/marmos91/dittovfs/pkg/vfs"
	"github.com/marmos91/dittovfs/pkg/vfs/sysfs"
	"github.com/marmos91/dittovfs/pkg/vfs/tmpfs"
)

// mountpointPerm is used for directories created to hold a mount.
const mountpointPerm = vfs.Permission(0o755)

// Kernel is a booted VFS together with the registries around it.
type Kernel struct {
	VFS         *vfs.VFS
	Filesystems *vfs.Registry
	Modules     *kmod.Registry
	Sys         *sys.Syscalls
	Metrics     *config.MetricsResult

	sysfs    *sysfs.FileSystem
	stores   map[string]content.Store
	unhook   func()
	nextPID  int
	pidMu    sync.Mutex
	stopOnce sync.Once
	stopErr  error
}

// Boot builds and mounts everything cfg describes. cfg is expected to have
// passed config.Validate. On failure everything already set up is torn down.
func Boot(ctx context.Context, cfg *config.Config) (*Kernel, error) {
	if len(cfg.Mounts) == 0 || cfg.Mounts[0].Target != "/" {
		return nil, fmt.Errorf("mount table must start with the root mount: %w", vfs.EINVAL)
	}

	metricsResult := config.InitializeMetrics(cfg)

	k := &Kernel{
		VFS:         vfs.New(metricsResult.VFSMetrics),
		Filesystems: vfs.NewRegistry(),
		Modules:     kmod.NewRegistry(),
		Metrics:     metricsResult,
		unhook:      func() {},
		nextPID:     1,
	}
	k.Sys = sys.New(k.VFS, k.Filesystems)

	if err := k.boot(ctx, cfg); err != nil {
		if shutdownErr := k.Shutdown(); shutdownErr != nil {
			logger.Debug("Cleanup after failed boot: %v", shutdownErr)
		}
		return nil, err
	}

	logger.Info("Kernel booted: %d mount(s), %d module(s)", len(k.VFS.Mounts()), k.Modules.Len())
	return k, nil
}

func (k *Kernel) boot(ctx context.Context, cfg *config.Config) error {
	stores, err := config.CreateContentStores(ctx, &cfg.Content)
	if err != nil {
		return err
	}
	k.stores = stores

	if err := k.registerFilesystems(cfg); err != nil {
		return err
	}

	k.unhook = k.Modules.OnRemove(k.sysfs.RemoveModuleNode)

	root := cfg.Mounts[0]
	rootFS, err := k.Filesystems.Get(root.FSType)
	if err != nil {
		return fmt.Errorf("root mount: %w", err)
	}
	if err := k.VFS.MountRoot(rootFS); err != nil {
		return fmt.Errorf("root mount (%s): %w", root.FSType, err)
	}

	for _, m := range cfg.Mounts[1:] {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := k.mount(m); err != nil {
			return err
		}
	}

	for _, name := range cfg.Modules {
		if err := k.Modules.Load(kmod.Module{Name: name}); err != nil {
			return fmt.Errorf("preload module %q: %w", name, err)
		}
	}
	return nil
}

func (k *Kernel) registerFilesystems(cfg *config.Config) error {
	k.sysfs = sysfs.New(k.Modules)

	badger, err := config.CreateBadgerfs(&cfg.Filesystems.Badgerfs, k.stores)
	if err != nil {
		if usesFSType(cfg.Mounts, "badgerfs") {
			return err
		}
		// Only fatal when something mounts it.
		logger.Warn("badgerfs unavailable: %v", err)
	}

	filesystems := []vfs.FileSystem{tmpfs.New(cfg.Filesystems.Tmpfs), k.sysfs}
	if badger != nil {
		filesystems = append(filesystems, badger)
	}
	for _, fs := range filesystems {
		if err := k.Filesystems.Register(fs); err != nil {
			return err
		}
	}
	logger.Debug("Registered filesystems: %s", strings.Join(k.Filesystems.Names(), ", "))
	return nil
}

func usesFSType(mounts []config.MountConfig, fstype string) bool {
	for _, m := range mounts {
		if m.FSType == fstype {
			return true
		}
	}
	return false
}

// mount attaches one mount table entry, creating the target directory and
// any missing parents first.
func (k *Kernel) mount(m config.MountConfig) error {
	fs, err := k.Filesystems.Get(m.FSType)
	if err != nil {
		return fmt.Errorf("mount %s: %w", m.Target, err)
	}
	if err := k.mkdirAll(m.Target); err != nil {
		return fmt.Errorf("mount %s: create mountpoint: %w", m.Target, err)
	}
	if err := k.VFS.MountAt(k.VFS.Root(), m.Target, fs); err != nil {
		return fmt.Errorf("mount %s (%s): %w", m.Target, m.FSType, err)
	}
	return nil
}

func (k *Kernel) mkdirAll(target string) error {
	root := k.VFS.Root()
	current := "/"
	for _, elem := range strings.Split(strings.Trim(path.Clean(target), "/"), "/") {
		if elem == "" {
			continue
		}
		current = path.Join(current, elem)
		err := k.VFS.Mkdir(root, current, mountpointPerm)
		if err != nil && !errors.Is(err, vfs.EEXIST) {
			return err
		}
	}
	return nil
}

// NewTask creates a task rooted at "/" with a fresh descriptor table and the
// next free pid.
func (k *Kernel) NewTask(uid, gid uint32) *task.Task {
	k.pidMu.Lock()
	pid := k.nextPID
	k.nextPID++
	k.pidMu.Unlock()
	return task.New(pid, uid, gid, k.VFS.Root())
}

// ContentStore returns the named content store.
func (k *Kernel) ContentStore(name string) (content.Store, bool) {
	s, ok := k.stores[name]
	return s, ok
}

// Shutdown unmounts every filesystem, newest first, then the root, and
// closes the content stores. Only the root unmount error is returned; it
// reports EBUSY while files on the root are still open. Later calls return
// the first result.
func (k *Kernel) Shutdown() error {
	k.stopOnce.Do(func() {
		k.VFS.UnmountAll()
		if k.VFS.Root() != nil {
			k.stopErr = k.VFS.UnmountRoot()
		}
		k.unhook()
		config.CloseContentStores(k.stores)
		logger.Info("Kernel shut down")
	})
	return k.stopErr
}

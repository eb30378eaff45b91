package kernel

import (
	"context"
	"testing"

	"github.com/marmos91/dittovfs/pkg/config"
	"github.com/marmos91/dittovfs/pkg/vfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testConfig keeps every backend in memory.
func testConfig(mounts ...config.MountConfig) *config.Config {
	cfg := config.GetDefaultConfig()
	cfg.Content.Stores = map[string]config.ContentStoreConfig{
		config.DefaultContentStore: {Type: "memory"},
	}
	cfg.Filesystems.Badgerfs.Path = ""
	cfg.Filesystems.Badgerfs.InMemory = true
	if len(mounts) > 0 {
		cfg.Mounts = mounts
	}
	return cfg
}

func boot(t *testing.T, cfg *config.Config) *Kernel {
	t.Helper()
	k, err := Boot(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = k.Shutdown() })
	return k
}

func TestBootDefaultMounts(t *testing.T) {
	cfg := testConfig()
	cfg.Modules = []string{"ext4", "fuse"}
	k := boot(t, cfg)

	mounts := k.VFS.Mounts()
	require.Len(t, mounts, 2)
	assert.Equal(t, "tmpfs", mounts[0].FSType)
	assert.Equal(t, "/", mounts[0].Path)
	assert.Equal(t, "sysfs", mounts[1].FSType)
	assert.Equal(t, "/sys", mounts[1].Path)

	assert.Equal(t, []string{"badgerfs", "sysfs", "tmpfs"}, k.Filesystems.Names())

	entries, err := k.VFS.ReadDir(nil, "/sys/modules")
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		if e.Name != "." && e.Name != ".." {
			names = append(names, e.Name)
		}
	}
	assert.Equal(t, []string{"ext4", "fuse"}, names)
}

func TestBootCreatesNestedMountpoints(t *testing.T) {
	k := boot(t, testConfig(
		config.MountConfig{FSType: "tmpfs", Target: "/"},
		config.MountConfig{FSType: "tmpfs", Target: "/mnt/scratch/tmp"},
		config.MountConfig{FSType: "badgerfs", Target: "/data"},
	))

	st, err := k.VFS.Stat(nil, "/mnt/scratch")
	require.NoError(t, err)
	assert.Equal(t, vfs.TypeDirectory, st.Type)

	mounts := k.VFS.Mounts()
	require.Len(t, mounts, 3)
	assert.Equal(t, "/mnt/scratch/tmp", mounts[1].Path)
	assert.Equal(t, "badgerfs", mounts[2].FSType)
}

func TestBadgerfsMountThroughSyscalls(t *testing.T) {
	k := boot(t, testConfig(
		config.MountConfig{FSType: "tmpfs", Target: "/"},
		config.MountConfig{FSType: "badgerfs", Target: "/data"},
	))
	tk := k.NewTask(0, 0)
	t.Cleanup(tk.Exit)

	fd := k.Sys.Creat(tk, "/data/hello", 0o644)
	require.GreaterOrEqual(t, fd, int64(0))
	assert.Equal(t, int64(5), k.Sys.Write(tk, int(fd), []byte("hello")))
	assert.Equal(t, int64(0), k.Sys.Close(tk, int(fd)))

	var st vfs.Stat
	require.Equal(t, int64(0), k.Sys.Stat(tk, "/data/hello", &st))
	assert.Equal(t, int64(5), st.Size)

	store, ok := k.ContentStore(config.DefaultContentStore)
	require.True(t, ok)
	assert.NotNil(t, store)
}

func TestModuleRemovalReachesSysfs(t *testing.T) {
	cfg := testConfig()
	cfg.Modules = []string{"net"}
	k := boot(t, cfg)

	_, err := k.VFS.Stat(nil, "/sys/modules/net")
	require.NoError(t, err)

	require.NoError(t, k.Modules.Unload("net"))

	_, err = k.VFS.Stat(nil, "/sys/modules/net")
	assert.ErrorIs(t, err, vfs.ENOENT)
}

func TestBootFailures(t *testing.T) {
	t.Run("UnknownFSType", func(t *testing.T) {
		_, err := Boot(context.Background(), testConfig(
			config.MountConfig{FSType: "tmpfs", Target: "/"},
			config.MountConfig{FSType: "ext4", Target: "/ext"},
		))
		assert.ErrorIs(t, err, vfs.ENODEV)
	})

	t.Run("MissingRoot", func(t *testing.T) {
		_, err := Boot(context.Background(), testConfig(
			config.MountConfig{FSType: "sysfs", Target: "/sys"},
		))
		assert.ErrorIs(t, err, vfs.EINVAL)
	})

	t.Run("SysfsTwice", func(t *testing.T) {
		_, err := Boot(context.Background(), testConfig(
			config.MountConfig{FSType: "tmpfs", Target: "/"},
			config.MountConfig{FSType: "sysfs", Target: "/sys"},
			config.MountConfig{FSType: "sysfs", Target: "/sys2"},
		))
		assert.ErrorIs(t, err, vfs.EBUSY)
	})

	t.Run("DuplicateModule", func(t *testing.T) {
		cfg := testConfig()
		cfg.Modules = []string{"net", "net"}
		_, err := Boot(context.Background(), cfg)
		assert.ErrorIs(t, err, vfs.EEXIST)
	})

	t.Run("CancelledContext", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := Boot(ctx, testConfig())
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestShutdown(t *testing.T) {
	t.Run("Idempotent", func(t *testing.T) {
		k, err := Boot(context.Background(), testConfig())
		require.NoError(t, err)

		require.NoError(t, k.Shutdown())
		assert.Nil(t, k.VFS.Root())
		assert.Empty(t, k.VFS.Mounts())
		require.NoError(t, k.Shutdown())
	})

	t.Run("OpenFileKeepsRootBusy", func(t *testing.T) {
		k, err := Boot(context.Background(), testConfig())
		require.NoError(t, err)

		f, err := k.VFS.Open(nil, "/busy", vfs.O_CREAT|vfs.O_RDWR, 0o644)
		require.NoError(t, err)

		assert.ErrorIs(t, k.Shutdown(), vfs.EBUSY)
		require.NoError(t, f.Close())
	})
}

func TestNewTaskAssignsPIDs(t *testing.T) {
	k := boot(t, testConfig())

	a := k.NewTask(0, 0)
	b := k.NewTask(1000, 1000)
	t.Cleanup(a.Exit)
	t.Cleanup(b.Exit)

	assert.Equal(t, 1, a.PID)
	assert.Equal(t, 2, b.PID)
	assert.Equal(t, "/", a.Cwd().Path())
}

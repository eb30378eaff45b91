package vfs

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mountFake mounts a fake backend as the root of a fresh VFS.
func mountFake(t *testing.T, policy CachePolicy) (*VFS, *fakeFS) {
	t.Helper()
	fs := newFakeFS("fake", policy)
	v := New(nil)
	require.NoError(t, v.MountRoot(fs))
	return v, fs
}

func TestDentryLookup(t *testing.T) {
	t.Run("MissPopulatesCache", func(t *testing.T) {
		v, fs := mountFake(t, CacheAlways)
		fs.root.set("a", DirNode(newFakeDir()))

		first, err := v.Root().Lookup("a")
		require.NoError(t, err)
		second, err := v.Root().Lookup("a")
		require.NoError(t, err)

		assert.Same(t, first, second)
		assert.Equal(t, int32(1), fs.root.lookups.Load())
		assert.Equal(t, []string{"a"}, v.Root().Children())
		assert.Same(t, v.Root(), first.Parent())
		assert.Equal(t, "a", first.Name())
	})

	t.Run("NotFoundIsNotCached", func(t *testing.T) {
		v, fs := mountFake(t, CacheAlways)

		_, err := v.Root().Lookup("ghost")
		assert.Equal(t, ENOENT, err)
		assert.Empty(t, v.Root().Children())

		fs.root.set("ghost", DirNode(newFakeDir()))
		_, err = v.Root().Lookup("ghost")
		assert.NoError(t, err)
	})

	t.Run("NonDirectory", func(t *testing.T) {
		d := &Dentry{inode: FileNode(fakeFile{})}
		_, err := d.Lookup("x")
		assert.Equal(t, ENOTDIR, err)
	})

	t.Run("ConcurrentMissesConverge", func(t *testing.T) {
		v, fs := mountFake(t, CacheAlways)
		fs.root.set("shared", DirNode(newFakeDir()))

		const workers = 32
		results := make([]*Dentry, workers)
		var wg sync.WaitGroup
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				d, err := v.Root().Lookup("shared")
				assert.NoError(t, err)
				results[i] = d
			}()
		}
		wg.Wait()

		cached, ok := v.Root().CachedChild("shared")
		require.True(t, ok)
		for _, d := range results {
			assert.Same(t, cached, d)
		}
	})
}

func TestCachePolicies(t *testing.T) {
	t.Run("AlwaysServesStaleEntries", func(t *testing.T) {
		v, fs := mountFake(t, CacheAlways)
		fs.root.set("a", DirNode(newFakeDir()))

		_, err := v.Root().Lookup("a")
		require.NoError(t, err)
		fs.root.remove("a")

		_, err = v.Root().Lookup("a")
		assert.NoError(t, err, "CacheAlways trusts the cache until evicted")

		v.Root().RemoveChildForce("a")
		_, err = v.Root().Lookup("a")
		assert.Equal(t, ENOENT, err)
	})

	t.Run("RevalidateEvictsRemoved", func(t *testing.T) {
		v, fs := mountFake(t, CacheRevalidate)
		fs.root.set("a", DirNode(newFakeDir()))

		_, err := v.Root().Lookup("a")
		require.NoError(t, err)
		fs.root.remove("a")

		_, err = v.Root().Lookup("a")
		assert.Equal(t, ENOENT, err)
		assert.Empty(t, v.Root().Children())
	})

	t.Run("RevalidateReplacesChanged", func(t *testing.T) {
		v, fs := mountFake(t, CacheRevalidate)
		fs.root.set("a", DirNode(newFakeDir()))

		first, err := v.Root().Lookup("a")
		require.NoError(t, err)
		again, err := v.Root().Lookup("a")
		require.NoError(t, err)
		assert.Same(t, first, again)

		replacement := newFakeDir()
		fs.root.set("a", DirNode(replacement))

		second, err := v.Root().Lookup("a")
		require.NoError(t, err)
		assert.NotSame(t, first, second)
		dir, err := second.Inode().Dir()
		require.NoError(t, err)
		assert.Same(t, replacement, dir)
	})

	t.Run("NeverCaches", func(t *testing.T) {
		v, fs := mountFake(t, CacheNever)
		fs.root.set("a", DirNode(newFakeDir()))

		_, err := v.Root().Lookup("a")
		require.NoError(t, err)
		_, err = v.Root().Lookup("a")
		require.NoError(t, err)

		assert.Empty(t, v.Root().Children())
		assert.Equal(t, int32(2), fs.root.lookups.Load())
	})

	t.Run("NeverStillReachesMountpoints", func(t *testing.T) {
		v, fs := mountFake(t, CacheNever)
		fs.root.set("mnt", DirNode(newFakeDir()))

		require.NoError(t, v.MountAt(nil, "/mnt", newFakeFS("inner", CacheAlways)))

		d, err := v.Resolve(nil, "/mnt", true)
		require.NoError(t, err)
		assert.Equal(t, "inner", d.Mount().FileSystem().Name())

		require.NoError(t, v.UnmountAt(nil, "/mnt"))
		assert.Empty(t, v.Root().Children())
	})
}

func TestRemoveChildForce(t *testing.T) {
	t.Run("AbsentIsSilent", func(t *testing.T) {
		v, _ := mountFake(t, CacheAlways)
		assert.NotPanics(t, func() { v.Root().RemoveChildForce("nothing") })
	})

	t.Run("MountpointIsPinned", func(t *testing.T) {
		v, fs := mountFake(t, CacheAlways)
		fs.root.set("mnt", DirNode(newFakeDir()))
		require.NoError(t, v.MountAt(nil, "/mnt", newFakeFS("inner", CacheAlways)))

		v.Root().RemoveChildForce("mnt")

		child, ok := v.Root().CachedChild("mnt")
		require.True(t, ok)
		assert.True(t, child.IsMountpoint())
	})
}

func TestDentryPath(t *testing.T) {
	v, fs := mountFake(t, CacheAlways)
	a := newFakeDir()
	fs.root.set("a", DirNode(a))
	a.set("b", DirNode(newFakeDir()))

	inner := newFakeFS("inner", CacheAlways)
	inner.root.set("deep", DirNode(newFakeDir()))

	require.NoError(t, v.MountAt(nil, "/a/b", inner))

	d, err := v.Resolve(nil, "/a/b/deep", true)
	require.NoError(t, err)
	assert.Equal(t, "/a/b/deep", d.Path())
	assert.Equal(t, "/", v.Root().Path())

	up, err := v.Resolve(d, "../..", true)
	require.NoError(t, err)
	assert.Equal(t, "/a", up.Path())

	assert.Same(t, inner.finished, d.Parent())
	assert.Equal(t, "/", NewRootDentry(newFakeDir()).Path())
}

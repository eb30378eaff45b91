package kmod

import (
	"strings"
	"sync"
	"testing"

	"github.com/marmos91/dittovfs/pkg/vfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry(t *testing.T) {
	t.Run("LoadAndNames", func(t *testing.T) {
		r := NewRegistry()
		require.NoError(t, r.Load(Module{Name: "net"}))
		require.NoError(t, r.Load(Module{Name: "fs_ext", Size: 4096}))

		assert.Equal(t, []string{"fs_ext", "net"}, r.Names())
		assert.Equal(t, 2, r.Len())

		m, ok := r.Get("fs_ext")
		require.True(t, ok)
		assert.Equal(t, uint64(4096), m.Size)
		assert.False(t, m.LoadedAt.IsZero())
	})

	t.Run("DuplicateLoad", func(t *testing.T) {
		r := NewRegistry()
		require.NoError(t, r.Load(Module{Name: "net"}))
		assert.True(t, vfs.IsErrno(r.Load(Module{Name: "net"}), vfs.EEXIST))
	})

	t.Run("EmptyName", func(t *testing.T) {
		r := NewRegistry()
		assert.True(t, vfs.IsErrno(r.Load(Module{}), vfs.EINVAL))
	})

	t.Run("InvalidNames", func(t *testing.T) {
		r := NewRegistry()
		for _, name := range []string{".", "..", "net/ipv4", "nul\x00byte"} {
			assert.True(t, vfs.IsErrno(r.Load(Module{Name: name}), vfs.EINVAL), name)
		}
		long := strings.Repeat("m", vfs.MaxNameLen+1)
		assert.True(t, vfs.IsErrno(r.Load(Module{Name: long}), vfs.ENAMETOOLONG))
		require.NoError(t, r.Load(Module{Name: strings.Repeat("m", vfs.MaxNameLen)}))
		assert.Equal(t, 1, r.Len())
	})

	t.Run("UnloadMissing", func(t *testing.T) {
		r := NewRegistry()
		assert.True(t, vfs.IsErrno(r.Unload("ghost"), vfs.ENOENT))
	})
}

func TestRemovalObservers(t *testing.T) {
	t.Run("CalledAfterRemoval", func(t *testing.T) {
		r := NewRegistry()
		require.NoError(t, r.Load(Module{Name: "net"}))

		var seen []string
		var stillLoaded bool
		r.OnRemove(func(name string) {
			seen = append(seen, name)
			// The registry lock is released; reading it must not deadlock.
			stillLoaded = r.Contains(name)
		})

		require.NoError(t, r.Unload("net"))
		assert.Equal(t, []string{"net"}, seen)
		assert.False(t, stillLoaded)
	})

	t.Run("NotCalledOnFailedUnload", func(t *testing.T) {
		r := NewRegistry()
		called := false
		r.OnRemove(func(string) { called = true })

		require.Error(t, r.Unload("ghost"))
		assert.False(t, called)
	})

	t.Run("RegistrationOrderAndUnregister", func(t *testing.T) {
		r := NewRegistry()
		require.NoError(t, r.Load(Module{Name: "a"}))
		require.NoError(t, r.Load(Module{Name: "b"}))

		var order []int
		r.OnRemove(func(string) { order = append(order, 1) })
		unregister := r.OnRemove(func(string) { order = append(order, 2) })
		r.OnRemove(func(string) { order = append(order, 3) })

		require.NoError(t, r.Unload("a"))
		assert.Equal(t, []int{1, 2, 3}, order)

		unregister()
		order = nil
		require.NoError(t, r.Unload("b"))
		assert.Equal(t, []int{1, 3}, order)
	})

	t.Run("ConcurrentUnloads", func(t *testing.T) {
		r := NewRegistry()
		names := []string{"m0", "m1", "m2", "m3", "m4", "m5", "m6", "m7"}
		for _, n := range names {
			require.NoError(t, r.Load(Module{Name: n}))
		}

		var mu sync.Mutex
		removed := make(map[string]int)
		r.OnRemove(func(name string) {
			mu.Lock()
			removed[name]++
			mu.Unlock()
		})

		var wg sync.WaitGroup
		for _, n := range names {
			wg.Add(2)
			go func() { defer wg.Done(); _ = r.Unload(n) }()
			go func() { defer wg.Done(); _ = r.Unload(n) }()
		}
		wg.Wait()

		assert.Equal(t, 0, r.Len())
		for _, n := range names {
			assert.Equal(t, 1, removed[n], n)
		}
	})
}

package vfstest

import (
	"sort"
	"testing"

	"github.com/marmos91/dittovfs/pkg/vfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mount builds a VFS with a fresh backend mounted as root. The tree is
// unmounted when the test ends.
func (suite *BackendTestSuite) mount(test *testing.T) *vfs.VFS {
	test.Helper()

	v := vfs.New(nil)
	require.NoError(test, v.MountRoot(suite.NewFS(test)))
	test.Cleanup(func() {
		v.UnmountAll()
		_ = v.UnmountRoot()
	})
	return v
}

// EntryNames returns the names of entries, sorted.
func EntryNames(entries []vfs.DirEntry) []string {
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name)
	}
	sort.Strings(names)
	return names
}

// AssertErrno checks that err maps to the expected errno.
func AssertErrno(test *testing.T, expected vfs.Errno, err error, msgAndArgs ...any) bool {
	test.Helper()
	if err == nil {
		return assert.Fail(test, "Expected an error but got nil", msgAndArgs...)
	}
	return assert.Equal(test, expected, vfs.ErrnoOf(err), msgAndArgs...)
}

// AssertDots checks that entries hold exactly one "." and one "..".
func AssertDots(test *testing.T, entries []vfs.DirEntry) {
	test.Helper()
	dot, dotdot := 0, 0
	for _, e := range entries {
		switch e.Name {
		case ".":
			dot++
		case "..":
			dotdot++
		}
	}
	assert.Equal(test, 1, dot, "exactly one '.' entry")
	assert.Equal(test, 1, dotdot, "exactly one '..' entry")
}

func writeFile(test *testing.T, v *vfs.VFS, path string, data []byte) {
	test.Helper()
	f, err := v.Open(nil, path, vfs.O_WRONLY|vfs.O_CREAT|vfs.O_TRUNC, 0o644)
	require.NoError(test, err)
	n, err := f.Write(data)
	require.NoError(test, err)
	require.Equal(test, len(data), n)
	require.NoError(test, f.Close())
}

func readFile(test *testing.T, v *vfs.VFS, path string) []byte {
	test.Helper()
	f, err := v.Open(nil, path, vfs.O_RDONLY, 0)
	require.NoError(test, err)
	defer func() { _ = f.Close() }()

	var out []byte
	buf := make([]byte, 7)
	for {
		n, err := f.Read(buf)
		require.NoError(test, err)
		if n == 0 {
			return out
		}
		out = append(out, buf[:n]...)
	}
}

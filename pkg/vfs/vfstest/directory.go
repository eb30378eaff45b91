package vfstest

import (
	"fmt"
	"sync"
	"testing"

	"github.com/marmos91/dittovfs/pkg/vfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (suite *BackendTestSuite) RunDirectoryTests(test *testing.T) {
	test.Run("EmptyRootListing", suite.TestDirectory_EmptyRootListing)
	test.Run("LookupMissing", suite.TestDirectory_LookupMissing)
	test.Run("Mkdir", suite.TestDirectory_Mkdir)
	test.Run("MkdirExisting", suite.TestDirectory_MkdirExisting)
	test.Run("Nested", suite.TestDirectory_Nested)
	test.Run("Rmdir", suite.TestDirectory_Rmdir)
	test.Run("RmdirNotEmpty", suite.TestDirectory_RmdirNotEmpty)
	test.Run("RmdirNotDirectory", suite.TestDirectory_RmdirNotDirectory)
	test.Run("RmdirMissing", suite.TestDirectory_RmdirMissing)
	test.Run("CreateInRemoved", suite.TestDirectory_CreateInRemoved)
	test.Run("RmdirRacesCreate", suite.TestDirectory_RmdirRacesCreate)
	test.Run("ListingTypes", suite.TestDirectory_ListingTypes)
	test.Run("Rewind", suite.TestDirectory_Rewind)
}

// TestDirectory_EmptyRootListing verifies an empty directory lists only the dots.
func (suite *BackendTestSuite) TestDirectory_EmptyRootListing(test *testing.T) {
	v := suite.mount(test)

	entries, err := v.ReadDir(nil, "/")
	require.NoError(test, err)

	assert.Equal(test, []string{".", ".."}, EntryNames(entries))
	AssertDots(test, entries)
}

// TestDirectory_LookupMissing verifies absent names report ENOENT.
func (suite *BackendTestSuite) TestDirectory_LookupMissing(test *testing.T) {
	v := suite.mount(test)

	_, err := v.Stat(nil, "/missing")
	AssertErrno(test, vfs.ENOENT, err)

	_, err = v.Root().Lookup("missing")
	AssertErrno(test, vfs.ENOENT, err)

	_, err = v.Stat(nil, "/missing/deeper")
	AssertErrno(test, vfs.ENOENT, err)
}

// TestDirectory_Mkdir verifies a new directory is listed and stat-able.
func (suite *BackendTestSuite) TestDirectory_Mkdir(test *testing.T) {
	v := suite.mount(test)

	require.NoError(test, v.Mkdir(nil, "/docs", 0o750))

	st, err := v.Stat(nil, "/docs")
	require.NoError(test, err)
	assert.Equal(test, vfs.TypeDirectory, st.Type)
	assert.Equal(test, vfs.Permission(0o750), st.Perm)

	entries, err := v.ReadDir(nil, "/")
	require.NoError(test, err)
	assert.Equal(test, []string{".", "..", "docs"}, EntryNames(entries))
	AssertDots(test, entries)

	entries, err = v.ReadDir(nil, "/docs")
	require.NoError(test, err)
	assert.Equal(test, []string{".", ".."}, EntryNames(entries))
}

// TestDirectory_MkdirExisting verifies name collisions report EEXIST.
func (suite *BackendTestSuite) TestDirectory_MkdirExisting(test *testing.T) {
	v := suite.mount(test)

	require.NoError(test, v.Mkdir(nil, "/a", 0o755))
	AssertErrno(test, vfs.EEXIST, v.Mkdir(nil, "/a", 0o755))

	writeFile(test, v, "/f", nil)
	AssertErrno(test, vfs.EEXIST, v.Mkdir(nil, "/f", 0o755))
}

// TestDirectory_Nested verifies relative walks and ".." handling.
func (suite *BackendTestSuite) TestDirectory_Nested(test *testing.T) {
	v := suite.mount(test)

	require.NoError(test, v.Mkdir(nil, "/a", 0o755))
	require.NoError(test, v.Mkdir(nil, "/a/b", 0o755))
	require.NoError(test, v.Mkdir(nil, "/a/b/c", 0o755))

	b, err := v.Resolve(nil, "/a/b", true)
	require.NoError(test, err)
	assert.Equal(test, "/a/b", b.Path())

	c, err := v.Resolve(b, "c", true)
	require.NoError(test, err)
	assert.Equal(test, "/a/b/c", c.Path())

	up, err := v.Resolve(c, "../../.", true)
	require.NoError(test, err)
	assert.Equal(test, "/a", up.Path())

	root, err := v.Resolve(c, "../../../../..", true)
	require.NoError(test, err)
	assert.Equal(test, "/", root.Path())
}

// TestDirectory_Rmdir verifies an empty directory can be removed.
func (suite *BackendTestSuite) TestDirectory_Rmdir(test *testing.T) {
	v := suite.mount(test)

	require.NoError(test, v.Mkdir(nil, "/gone", 0o755))
	_, err := v.Stat(nil, "/gone")
	require.NoError(test, err)

	require.NoError(test, v.Rmdir(nil, "/gone"))

	_, err = v.Stat(nil, "/gone")
	AssertErrno(test, vfs.ENOENT, err)

	entries, err := v.ReadDir(nil, "/")
	require.NoError(test, err)
	assert.Equal(test, []string{".", ".."}, EntryNames(entries))
}

// TestDirectory_RmdirNotEmpty verifies ENOTEMPTY.
func (suite *BackendTestSuite) TestDirectory_RmdirNotEmpty(test *testing.T) {
	v := suite.mount(test)

	require.NoError(test, v.Mkdir(nil, "/full", 0o755))
	writeFile(test, v, "/full/file", []byte("x"))

	AssertErrno(test, vfs.ENOTEMPTY, v.Rmdir(nil, "/full"))

	_, err := v.Stat(nil, "/full/file")
	require.NoError(test, err)
}

// TestDirectory_RmdirNotDirectory verifies ENOTDIR.
func (suite *BackendTestSuite) TestDirectory_RmdirNotDirectory(test *testing.T) {
	v := suite.mount(test)

	writeFile(test, v, "/file", nil)
	AssertErrno(test, vfs.ENOTDIR, v.Rmdir(nil, "/file"))
}

// TestDirectory_RmdirMissing verifies ENOENT.
func (suite *BackendTestSuite) TestDirectory_RmdirMissing(test *testing.T) {
	v := suite.mount(test)
	AssertErrno(test, vfs.ENOENT, v.Rmdir(nil, "/nope"))
}

// TestDirectory_ListingTypes verifies entry type tags.
func (suite *BackendTestSuite) TestDirectory_ListingTypes(test *testing.T) {
	v := suite.mount(test)

	require.NoError(test, v.Mkdir(nil, "/dir", 0o755))
	writeFile(test, v, "/file", []byte("data"))
	require.NoError(test, v.Symlink(nil, "/file", "/link"))

	entries, err := v.ReadDir(nil, "/")
	require.NoError(test, err)

	types := make(map[string]vfs.FileType)
	for _, e := range entries {
		types[e.Name] = e.Type
	}
	assert.Equal(test, vfs.TypeDirectory, types["dir"])
	assert.Equal(test, vfs.TypeRegular, types["file"])
	assert.Equal(test, vfs.TypeSymlink, types["link"])
	AssertDots(test, entries)
}

// TestDirectory_Rewind verifies a listing restarts after a rewind.
func (suite *BackendTestSuite) TestDirectory_Rewind(test *testing.T) {
	v := suite.mount(test)

	require.NoError(test, v.Mkdir(nil, "/a", 0o755))
	f, err := v.Open(nil, "/", vfs.O_RDONLY|vfs.O_DIRECTORY, 0)
	require.NoError(test, err)
	defer func() { _ = f.Close() }()

	collect := func() []vfs.DirEntry {
		var out []vfs.DirEntry
		require.NoError(test, f.ReadDir(func(e vfs.DirEntry) bool {
			out = append(out, e)
			return true
		}))
		return out
	}

	first := collect()
	assert.Len(test, first, 3)
	assert.Empty(test, collect())

	_, err = f.Seek(0, vfs.SeekStart)
	require.NoError(test, err)
	assert.Equal(test, first, collect())
}

// TestDirectory_CreateInRemoved verifies a removed directory accepts no new
// entries through a dentry that still points at it.
func (suite *BackendTestSuite) TestDirectory_CreateInRemoved(test *testing.T) {
	v := suite.mount(test)
	require.NoError(test, v.Mkdir(nil, "/gone", 0o755))

	cwd, err := v.Resolve(nil, "/gone", true)
	require.NoError(test, err)
	require.NoError(test, v.Rmdir(nil, "/gone"))

	AssertErrno(test, vfs.ENOENT, v.Mkdir(cwd, "sub", 0o755))
	AssertErrno(test, vfs.ENOENT, v.Symlink(cwd, "/target", "link"))
	_, err = v.Open(cwd, "file", vfs.O_WRONLY|vfs.O_CREAT, 0o644)
	AssertErrno(test, vfs.ENOENT, err)

	_, err = v.Stat(nil, "/gone")
	AssertErrno(test, vfs.ENOENT, err)
}

// TestDirectory_RmdirRacesCreate verifies a create that races an rmdir of
// its parent either fails or keeps the parent alive, and is never lost.
func (suite *BackendTestSuite) TestDirectory_RmdirRacesCreate(test *testing.T) {
	v := suite.mount(test)

	for i := 0; i < 50; i++ {
		dir := fmt.Sprintf("/race%02d", i)
		require.NoError(test, v.Mkdir(nil, dir, 0o755))
		cwd, err := v.Resolve(nil, dir, true)
		require.NoError(test, err)

		var rmErr, mkErr error
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			rmErr = v.Rmdir(nil, dir)
		}()
		go func() {
			defer wg.Done()
			mkErr = v.Mkdir(cwd, "child", 0o755)
		}()
		wg.Wait()

		switch {
		case rmErr == nil:
			AssertErrno(test, vfs.ENOENT, mkErr, "create after rmdir of %s", dir)
		case mkErr == nil:
			AssertErrno(test, vfs.ENOTEMPTY, rmErr)
			_, err := v.Stat(nil, dir+"/child")
			assert.NoError(test, err)
		default:
			test.Fatalf("%s: rmdir %v, mkdir %v", dir, rmErr, mkErr)
		}
	}
}

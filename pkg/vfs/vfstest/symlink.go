package vfstest

import (
	"strings"
	"testing"

	"github.com/marmos91/dittovfs/pkg/vfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (suite *BackendTestSuite) RunSymlinkTests(test *testing.T) {
	test.Run("Readlink", suite.TestSymlink_Readlink)
	test.Run("FollowFile", suite.TestSymlink_FollowFile)
	test.Run("FollowDirectory", suite.TestSymlink_FollowDirectory)
	test.Run("Relative", suite.TestSymlink_Relative)
	test.Run("Dangling", suite.TestSymlink_Dangling)
	test.Run("Loop", suite.TestSymlink_Loop)
	test.Run("NoFollow", suite.TestSymlink_NoFollow)
	test.Run("Unlink", suite.TestSymlink_Unlink)
}

// TestSymlink_Readlink verifies the stored target is returned verbatim.
func (suite *BackendTestSuite) TestSymlink_Readlink(test *testing.T) {
	v := suite.mount(test)

	require.NoError(test, v.Symlink(nil, "../somewhere/else", "/link"))

	target, err := v.Readlink(nil, "/link")
	require.NoError(test, err)
	assert.Equal(test, "../somewhere/else", target)

	st, err := v.Lstat(nil, "/link")
	require.NoError(test, err)
	assert.Equal(test, vfs.TypeSymlink, st.Type)

	AssertErrno(test, vfs.EEXIST, v.Symlink(nil, "x", "/link"))

	writeFile(test, v, "/plain", nil)
	_, err = v.Readlink(nil, "/plain")
	AssertErrno(test, vfs.EINVAL, err)
}

// TestSymlink_FollowFile verifies opening through a link reaches the target.
func (suite *BackendTestSuite) TestSymlink_FollowFile(test *testing.T) {
	v := suite.mount(test)
	writeFile(test, v, "/target", []byte("payload"))
	require.NoError(test, v.Symlink(nil, "/target", "/link"))

	assert.Equal(test, []byte("payload"), readFile(test, v, "/link"))

	st, err := v.Stat(nil, "/link")
	require.NoError(test, err)
	assert.Equal(test, vfs.TypeRegular, st.Type)
	assert.Equal(test, uint64(7), st.Size)
}

// TestSymlink_FollowDirectory verifies links in intermediate components.
func (suite *BackendTestSuite) TestSymlink_FollowDirectory(test *testing.T) {
	v := suite.mount(test)
	require.NoError(test, v.Mkdir(nil, "/real", 0o755))
	writeFile(test, v, "/real/file", []byte("x"))
	require.NoError(test, v.Symlink(nil, "/real", "/alias"))

	assert.Equal(test, []byte("x"), readFile(test, v, "/alias/file"))

	d, err := v.Resolve(nil, "/alias/", false)
	require.NoError(test, err)
	assert.Equal(test, vfs.TypeDirectory, d.Inode().Type())
}

// TestSymlink_Relative verifies relative targets resolve from the link's directory.
func (suite *BackendTestSuite) TestSymlink_Relative(test *testing.T) {
	v := suite.mount(test)
	require.NoError(test, v.Mkdir(nil, "/a", 0o755))
	require.NoError(test, v.Mkdir(nil, "/b", 0o755))
	writeFile(test, v, "/b/data", []byte("rel"))
	require.NoError(test, v.Symlink(nil, "../b/data", "/a/link"))

	assert.Equal(test, []byte("rel"), readFile(test, v, "/a/link"))
}

// TestSymlink_Dangling verifies a missing target reports ENOENT.
func (suite *BackendTestSuite) TestSymlink_Dangling(test *testing.T) {
	v := suite.mount(test)
	require.NoError(test, v.Symlink(nil, "/nowhere", "/dangling"))

	_, err := v.Stat(nil, "/dangling")
	AssertErrno(test, vfs.ENOENT, err)

	_, err = v.Lstat(nil, "/dangling")
	require.NoError(test, err)
}

// TestSymlink_Loop verifies cycles stop with ELOOP.
func (suite *BackendTestSuite) TestSymlink_Loop(test *testing.T) {
	v := suite.mount(test)
	require.NoError(test, v.Symlink(nil, "/b", "/a"))
	require.NoError(test, v.Symlink(nil, "/a", "/b"))

	_, err := v.Stat(nil, "/a")
	AssertErrno(test, vfs.ELOOP, err)

	require.NoError(test, v.Symlink(nil, "self/x", "/self"))
	_, err = v.Stat(nil, "/self")
	AssertErrno(test, vfs.ELOOP, err)

	long := "/" + strings.Repeat("x", vfs.MaxNameLen+1)
	_, err = v.Stat(nil, long)
	AssertErrno(test, vfs.ENAMETOOLONG, err)
}

// TestSymlink_NoFollow verifies O_NOFOLLOW refuses a final link.
func (suite *BackendTestSuite) TestSymlink_NoFollow(test *testing.T) {
	v := suite.mount(test)
	writeFile(test, v, "/target", nil)
	require.NoError(test, v.Symlink(nil, "/target", "/link"))

	_, err := v.Open(nil, "/link", vfs.O_RDONLY|vfs.O_NOFOLLOW, 0)
	AssertErrno(test, vfs.ELOOP, err)
}

// TestSymlink_Unlink verifies removing a link leaves its target.
func (suite *BackendTestSuite) TestSymlink_Unlink(test *testing.T) {
	v := suite.mount(test)
	writeFile(test, v, "/target", []byte("stay"))
	require.NoError(test, v.Symlink(nil, "/target", "/link"))

	require.NoError(test, v.Unlink(nil, "/link"))

	_, err := v.Lstat(nil, "/link")
	AssertErrno(test, vfs.ENOENT, err)
	assert.Equal(test, []byte("stay"), readFile(test, v, "/target"))
}

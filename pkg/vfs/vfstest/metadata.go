package vfstest

import (
	"testing"
	"time"

	"github.com/marmos91/dittovfs/pkg/vfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (suite *BackendTestSuite) RunMetadataTests(test *testing.T) {
	test.Run("Chmod", suite.TestMetadata_Chmod)
	test.Run("Chown", suite.TestMetadata_Chown)
	test.Run("Timestamps", suite.TestMetadata_Timestamps)
	test.Run("FileStat", suite.TestMetadata_FileStat)
}

// TestMetadata_Chmod verifies permission bits are replaced.
func (suite *BackendTestSuite) TestMetadata_Chmod(test *testing.T) {
	v := suite.mount(test)
	writeFile(test, v, "/f", nil)
	require.NoError(test, v.Mkdir(nil, "/d", 0o755))

	require.NoError(test, v.Chmod(nil, "/f", 0o4600))
	require.NoError(test, v.Chmod(nil, "/d", 0o1777))

	st, err := v.Stat(nil, "/f")
	require.NoError(test, err)
	assert.Equal(test, vfs.Permission(0o4600), st.Perm)

	st, err = v.Stat(nil, "/d")
	require.NoError(test, err)
	assert.Equal(test, vfs.Permission(0o1777), st.Perm)
	assert.Equal(test, "rwxrwxrwt", st.Perm.String())

	AssertErrno(test, vfs.ENOENT, v.Chmod(nil, "/missing", 0o644))
}

// TestMetadata_Chown verifies owner changes.
func (suite *BackendTestSuite) TestMetadata_Chown(test *testing.T) {
	v := suite.mount(test)
	writeFile(test, v, "/f", nil)

	require.NoError(test, v.Chown(nil, "/f", 1000, 100))

	st, err := v.Stat(nil, "/f")
	require.NoError(test, err)
	assert.Equal(test, uint32(1000), st.UID)
	assert.Equal(test, uint32(100), st.GID)
}

// TestMetadata_Timestamps verifies writes advance the modification time.
func (suite *BackendTestSuite) TestMetadata_Timestamps(test *testing.T) {
	v := suite.mount(test)
	writeFile(test, v, "/f", []byte("a"))

	before, err := v.Stat(nil, "/f")
	require.NoError(test, err)
	assert.NotZero(test, before.ModifyTime.Sec)

	time.Sleep(10 * time.Millisecond)

	f, err := v.Open(nil, "/f", vfs.O_WRONLY|vfs.O_APPEND, 0)
	require.NoError(test, err)
	_, err = f.Write([]byte("b"))
	require.NoError(test, err)
	require.NoError(test, f.Close())

	after, err := v.Stat(nil, "/f")
	require.NoError(test, err)
	assert.True(test, after.ModifyTime.Time().After(before.ModifyTime.Time()))
}

// TestMetadata_FileStat verifies Stat through an open file.
func (suite *BackendTestSuite) TestMetadata_FileStat(test *testing.T) {
	v := suite.mount(test)
	writeFile(test, v, "/f", []byte("12345"))

	f, err := v.Open(nil, "/f", vfs.O_RDONLY, 0)
	require.NoError(test, err)

	st, err := f.Stat()
	require.NoError(test, err)
	assert.Equal(test, uint64(5), st.Size)

	require.NoError(test, f.Close())
	_, err = f.Stat()
	AssertErrno(test, vfs.EBADF, err)
}

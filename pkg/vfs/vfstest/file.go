package vfstest

import (
	"bytes"
	"math"
	"testing"

	"github.com/marmos91/dittovfs/pkg/vfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (suite *BackendTestSuite) RunFileTests(test *testing.T) {
	test.Run("CreateWriteRead", suite.TestFile_CreateWriteRead)
	test.Run("CreateExclusive", suite.TestFile_CreateExclusive)
	test.Run("OpenMissing", suite.TestFile_OpenMissing)
	test.Run("Seek", suite.TestFile_Seek)
	test.Run("SparseWrite", suite.TestFile_SparseWrite)
	test.Run("Append", suite.TestFile_Append)
	test.Run("Truncate", suite.TestFile_Truncate)
	test.Run("OpenTruncate", suite.TestFile_OpenTruncate)
	test.Run("AccessMode", suite.TestFile_AccessMode)
	test.Run("Unlink", suite.TestFile_Unlink)
	test.Run("UnlinkDirectory", suite.TestFile_UnlinkDirectory)
	test.Run("Large", suite.TestFile_Large)
	test.Run("SeekPastEndWrite", suite.TestFile_SeekPastEndWrite)
	test.Run("ExtremeOffset", suite.TestFile_ExtremeOffset)
	test.Run("HugeTruncate", suite.TestFile_HugeTruncate)
	test.Run("EmptyWrite", suite.TestFile_EmptyWrite)
}

// TestFile_CreateWriteRead verifies the basic content round trip.
func (suite *BackendTestSuite) TestFile_CreateWriteRead(test *testing.T) {
	v := suite.mount(test)

	writeFile(test, v, "/hello.txt", []byte("hello, world"))

	assert.Equal(test, []byte("hello, world"), readFile(test, v, "/hello.txt"))

	st, err := v.Stat(nil, "/hello.txt")
	require.NoError(test, err)
	assert.Equal(test, vfs.TypeRegular, st.Type)
	assert.Equal(test, uint64(12), st.Size)
	assert.Equal(test, vfs.Permission(0o644), st.Perm)
}

// TestFile_CreateExclusive verifies O_EXCL on an existing name.
func (suite *BackendTestSuite) TestFile_CreateExclusive(test *testing.T) {
	v := suite.mount(test)

	writeFile(test, v, "/once", nil)

	_, err := v.Open(nil, "/once", vfs.O_WRONLY|vfs.O_CREAT|vfs.O_EXCL, 0o644)
	AssertErrno(test, vfs.EEXIST, err)

	f, err := v.Open(nil, "/once", vfs.O_WRONLY|vfs.O_CREAT, 0o644)
	require.NoError(test, err)
	require.NoError(test, f.Close())
}

// TestFile_OpenMissing verifies ENOENT without O_CREAT.
func (suite *BackendTestSuite) TestFile_OpenMissing(test *testing.T) {
	v := suite.mount(test)

	_, err := v.Open(nil, "/nothing", vfs.O_RDONLY, 0)
	AssertErrno(test, vfs.ENOENT, err)
}

// TestFile_Seek verifies absolute, relative and end-relative seeks.
func (suite *BackendTestSuite) TestFile_Seek(test *testing.T) {
	v := suite.mount(test)
	writeFile(test, v, "/seek", []byte("0123456789"))

	f, err := v.Open(nil, "/seek", vfs.O_RDONLY, 0)
	require.NoError(test, err)
	defer func() { _ = f.Close() }()

	buf := make([]byte, 3)

	pos, err := f.Seek(4, vfs.SeekStart)
	require.NoError(test, err)
	assert.Equal(test, int64(4), pos)
	n, err := f.Read(buf)
	require.NoError(test, err)
	assert.Equal(test, "456", string(buf[:n]))

	pos, err = f.Seek(-2, vfs.SeekCurrent)
	require.NoError(test, err)
	assert.Equal(test, int64(5), pos)

	pos, err = f.Seek(-3, vfs.SeekEnd)
	require.NoError(test, err)
	assert.Equal(test, int64(7), pos)
	n, err = f.Read(buf)
	require.NoError(test, err)
	assert.Equal(test, "789", string(buf[:n]))

	n, err = f.Read(buf)
	require.NoError(test, err)
	assert.Zero(test, n)

	_, err = f.Seek(-1, vfs.SeekStart)
	AssertErrno(test, vfs.EINVAL, err)
}

// TestFile_SparseWrite verifies writing past the end zero-fills the gap.
func (suite *BackendTestSuite) TestFile_SparseWrite(test *testing.T) {
	v := suite.mount(test)

	f, err := v.Open(nil, "/sparse", vfs.O_RDWR|vfs.O_CREAT, 0o644)
	require.NoError(test, err)
	_, err = f.WriteAt([]byte("end"), 5)
	require.NoError(test, err)
	require.NoError(test, f.Close())

	assert.Equal(test, []byte("\x00\x00\x00\x00\x00end"), readFile(test, v, "/sparse"))
}

// TestFile_Append verifies O_APPEND always writes at end of file.
func (suite *BackendTestSuite) TestFile_Append(test *testing.T) {
	v := suite.mount(test)
	writeFile(test, v, "/log", []byte("one\n"))

	f, err := v.Open(nil, "/log", vfs.O_WRONLY|vfs.O_APPEND, 0)
	require.NoError(test, err)
	_, err = f.Seek(0, vfs.SeekStart)
	require.NoError(test, err)
	_, err = f.Write([]byte("two\n"))
	require.NoError(test, err)
	require.NoError(test, f.Close())

	assert.Equal(test, []byte("one\ntwo\n"), readFile(test, v, "/log"))
}

// TestFile_Truncate verifies shrinking and extending.
func (suite *BackendTestSuite) TestFile_Truncate(test *testing.T) {
	v := suite.mount(test)
	writeFile(test, v, "/t", []byte("abcdefgh"))

	require.NoError(test, v.Truncate(nil, "/t", 3))
	assert.Equal(test, []byte("abc"), readFile(test, v, "/t"))

	require.NoError(test, v.Truncate(nil, "/t", 5))
	assert.Equal(test, []byte("abc\x00\x00"), readFile(test, v, "/t"))

	st, err := v.Stat(nil, "/t")
	require.NoError(test, err)
	assert.Equal(test, uint64(5), st.Size)

	AssertErrno(test, vfs.EINVAL, v.Truncate(nil, "/t", -1))

	require.NoError(test, v.Mkdir(nil, "/d", 0o755))
	AssertErrno(test, vfs.EISDIR, v.Truncate(nil, "/d", 0))
}

// TestFile_OpenTruncate verifies O_TRUNC empties a file opened for writing.
func (suite *BackendTestSuite) TestFile_OpenTruncate(test *testing.T) {
	v := suite.mount(test)
	writeFile(test, v, "/t", []byte("long content"))

	f, err := v.Open(nil, "/t", vfs.O_RDONLY|vfs.O_TRUNC, 0)
	require.NoError(test, err)
	require.NoError(test, f.Close())
	assert.Equal(test, []byte("long content"), readFile(test, v, "/t"))

	writeFile(test, v, "/t", []byte("short"))
	assert.Equal(test, []byte("short"), readFile(test, v, "/t"))
}

// TestFile_AccessMode verifies reads and writes honor the access mode.
func (suite *BackendTestSuite) TestFile_AccessMode(test *testing.T) {
	v := suite.mount(test)
	writeFile(test, v, "/ro", []byte("data"))

	ro, err := v.Open(nil, "/ro", vfs.O_RDONLY, 0)
	require.NoError(test, err)
	_, err = ro.Write([]byte("x"))
	AssertErrno(test, vfs.EBADF, err)
	require.NoError(test, ro.Close())

	wo, err := v.Open(nil, "/ro", vfs.O_WRONLY, 0)
	require.NoError(test, err)
	_, err = wo.Read(make([]byte, 1))
	AssertErrno(test, vfs.EBADF, err)
	require.NoError(test, wo.Close())

	require.NoError(test, v.Mkdir(nil, "/dir", 0o755))
	_, err = v.Open(nil, "/dir", vfs.O_WRONLY, 0)
	AssertErrno(test, vfs.EISDIR, err)

	_, err = v.Open(nil, "/ro", vfs.O_RDONLY|vfs.O_DIRECTORY, 0)
	AssertErrno(test, vfs.ENOTDIR, err)
}

// TestFile_Unlink verifies a removed file is gone.
func (suite *BackendTestSuite) TestFile_Unlink(test *testing.T) {
	v := suite.mount(test)
	writeFile(test, v, "/rm", []byte("bye"))

	require.NoError(test, v.Unlink(nil, "/rm"))

	_, err := v.Stat(nil, "/rm")
	AssertErrno(test, vfs.ENOENT, err)
	AssertErrno(test, vfs.ENOENT, v.Unlink(nil, "/rm"))

	// The name is free again.
	writeFile(test, v, "/rm", []byte("again"))
	assert.Equal(test, []byte("again"), readFile(test, v, "/rm"))
}

// TestFile_UnlinkDirectory verifies EISDIR.
func (suite *BackendTestSuite) TestFile_UnlinkDirectory(test *testing.T) {
	v := suite.mount(test)
	require.NoError(test, v.Mkdir(nil, "/d", 0o755))
	AssertErrno(test, vfs.EISDIR, v.Unlink(nil, "/d"))
}

// TestFile_Large verifies content larger than a typical buffer.
func (suite *BackendTestSuite) TestFile_Large(test *testing.T) {
	v := suite.mount(test)

	data := bytes.Repeat([]byte("0123456789abcdef"), 16*1024)
	writeFile(test, v, "/big", data)

	got := readFile(test, v, "/big")
	assert.Equal(test, len(data), len(got))
	assert.True(test, bytes.Equal(data, got))
}

// TestFile_SeekPastEndWrite verifies a write after seeking beyond the end
// zero-fills the hole and reads past the end return nothing.
func (suite *BackendTestSuite) TestFile_SeekPastEndWrite(test *testing.T) {
	v := suite.mount(test)
	writeFile(test, v, "/hole", []byte("ab"))

	f, err := v.Open(nil, "/hole", vfs.O_RDWR, 0)
	require.NoError(test, err)
	defer func() { _ = f.Close() }()

	pos, err := f.Seek(20, vfs.SeekEnd)
	require.NoError(test, err)
	assert.Equal(test, int64(22), pos)

	n, err := f.Read(make([]byte, 4))
	require.NoError(test, err)
	assert.Zero(test, n)

	_, err = f.Write([]byte("z"))
	require.NoError(test, err)

	want := append([]byte("ab"), make([]byte, 20)...)
	want = append(want, 'z')
	assert.Equal(test, want, readFile(test, v, "/hole"))

	st, err := f.Stat()
	require.NoError(test, err)
	assert.Equal(test, uint64(23), st.Size)
}

// TestFile_ExtremeOffset verifies offsets near the int64 limit fail with
// an errno and leave the file untouched.
func (suite *BackendTestSuite) TestFile_ExtremeOffset(test *testing.T) {
	v := suite.mount(test)
	writeFile(test, v, "/edge", []byte("keep"))

	f, err := v.Open(nil, "/edge", vfs.O_RDWR, 0)
	require.NoError(test, err)
	defer func() { _ = f.Close() }()

	pos, err := f.Seek(math.MaxInt64, vfs.SeekStart)
	require.NoError(test, err)
	assert.Equal(test, int64(math.MaxInt64), pos)

	n, err := f.Read(make([]byte, 4))
	require.NoError(test, err)
	assert.Zero(test, n)

	_, err = f.Write([]byte("x"))
	AssertErrno(test, vfs.EFBIG, err)

	_, err = f.WriteAt([]byte("xy"), math.MaxInt64-1)
	AssertErrno(test, vfs.EFBIG, err)

	_, err = f.Seek(1, vfs.SeekCurrent)
	AssertErrno(test, vfs.EINVAL, err)
	_, err = f.Seek(math.MaxInt64, vfs.SeekEnd)
	AssertErrno(test, vfs.EINVAL, err)

	assert.Equal(test, []byte("keep"), readFile(test, v, "/edge"))
}

// TestFile_HugeTruncate verifies a truncate beyond what the backend can
// hold fails with EFBIG instead of allocating.
func (suite *BackendTestSuite) TestFile_HugeTruncate(test *testing.T) {
	v := suite.mount(test)
	writeFile(test, v, "/huge", []byte("data"))

	f, err := v.Open(nil, "/huge", vfs.O_RDWR, 0)
	require.NoError(test, err)
	AssertErrno(test, vfs.EFBIG, f.Truncate(1<<60))
	require.NoError(test, f.Close())

	AssertErrno(test, vfs.EFBIG, v.Truncate(nil, "/huge", math.MaxInt64))

	st, err := v.Stat(nil, "/huge")
	require.NoError(test, err)
	assert.Equal(test, uint64(4), st.Size)
	assert.Equal(test, []byte("data"), readFile(test, v, "/huge"))
}

// TestFile_EmptyWrite verifies a zero-length write past the end does not
// extend the file.
func (suite *BackendTestSuite) TestFile_EmptyWrite(test *testing.T) {
	v := suite.mount(test)
	writeFile(test, v, "/empty", []byte("abc"))

	f, err := v.Open(nil, "/empty", vfs.O_WRONLY, 0)
	require.NoError(test, err)
	n, err := f.WriteAt(nil, 100)
	require.NoError(test, err)
	assert.Zero(test, n)
	require.NoError(test, f.Close())

	st, err := v.Stat(nil, "/empty")
	require.NoError(test, err)
	assert.Equal(test, uint64(3), st.Size)
}

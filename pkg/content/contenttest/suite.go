// Package contenttest is a conformance suite for content.Store
// implementations.
package contenttest

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"sync"
	"testing"

	"github.com/marmos91/dittovfs/pkg/content"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// StoreTestSuite runs the Store contract against fresh stores.
//
//	suite := &contenttest.StoreTestSuite{
//	    NewStore: func(t *testing.T) content.Store { return memory.New() },
//	}
//	suite.Run(t)
type StoreTestSuite struct {
	// NewStore returns an empty store. It is called once per test.
	NewStore func(t *testing.T) content.Store
}

// Run executes all tests in the suite.
func (suite *StoreTestSuite) Run(t *testing.T) {
	t.Run("MissingIsEmpty", suite.testMissingIsEmpty)
	t.Run("WriteAt_ReadAt", suite.testWriteRead)
	t.Run("WriteAt_Sparse", suite.testSparse)
	t.Run("WriteAt_Overwrite", suite.testOverwrite)
	t.Run("ReadAt_ShortAtEnd", suite.testShortRead)
	t.Run("NegativeOffset", suite.testNegativeOffset)
	t.Run("OutOfRange", suite.testOutOfRange)
	t.Run("Truncate", suite.testTruncate)
	t.Run("Delete", suite.testDelete)
	t.Run("Concurrent", suite.testConcurrent)
}

func (suite *StoreTestSuite) newStore(t *testing.T) content.Store {
	t.Helper()
	store := suite.NewStore(t)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func readAll(t *testing.T, store content.Store, id content.ContentID) []byte {
	t.Helper()
	ctx := context.Background()

	size, err := store.Size(ctx, id)
	require.NoError(t, err)
	buf := make([]byte, size)
	n, err := store.ReadAt(ctx, id, buf, 0)
	require.NoError(t, err)
	require.Equal(t, int(size), n)
	return buf
}

func (suite *StoreTestSuite) testMissingIsEmpty(t *testing.T) {
	store := suite.newStore(t)
	ctx := context.Background()

	size, err := store.Size(ctx, "missing")
	require.NoError(t, err)
	assert.Zero(t, size)

	n, err := store.ReadAt(ctx, "missing", make([]byte, 8), 0)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func (suite *StoreTestSuite) testWriteRead(t *testing.T) {
	store := suite.newStore(t)
	ctx := context.Background()

	require.NoError(t, store.WriteAt(ctx, "a", []byte("hello world"), 0))
	assert.Equal(t, []byte("hello world"), readAll(t, store, "a"))

	buf := make([]byte, 5)
	n, err := store.ReadAt(ctx, "a", buf, 6)
	require.NoError(t, err)
	assert.Equal(t, "world", string(buf[:n]))
}

func (suite *StoreTestSuite) testSparse(t *testing.T) {
	store := suite.newStore(t)
	ctx := context.Background()

	require.NoError(t, store.WriteAt(ctx, "sparse", []byte("xy"), 4))
	assert.Equal(t, []byte{0, 0, 0, 0, 'x', 'y'}, readAll(t, store, "sparse"))
}

func (suite *StoreTestSuite) testOverwrite(t *testing.T) {
	store := suite.newStore(t)
	ctx := context.Background()

	require.NoError(t, store.WriteAt(ctx, "o", []byte("abcdef"), 0))
	require.NoError(t, store.WriteAt(ctx, "o", []byte("XY"), 2))
	assert.Equal(t, []byte("abXYef"), readAll(t, store, "o"))

	require.NoError(t, store.WriteAt(ctx, "o", []byte("123"), 5))
	assert.Equal(t, []byte("abXYe123"), readAll(t, store, "o"))
}

func (suite *StoreTestSuite) testShortRead(t *testing.T) {
	store := suite.newStore(t)
	ctx := context.Background()
	require.NoError(t, store.WriteAt(ctx, "s", []byte("0123456789"), 0))

	buf := make([]byte, 8)
	n, err := store.ReadAt(ctx, "s", buf, 6)
	require.NoError(t, err)
	assert.Equal(t, "6789", string(buf[:n]))

	n, err = store.ReadAt(ctx, "s", buf, 10)
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = store.ReadAt(ctx, "s", buf, 100)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func (suite *StoreTestSuite) testNegativeOffset(t *testing.T) {
	store := suite.newStore(t)
	ctx := context.Background()

	assert.ErrorIs(t, store.WriteAt(ctx, "n", []byte("x"), -1), content.ErrInvalidOffset)
	_, err := store.ReadAt(ctx, "n", make([]byte, 1), -1)
	assert.ErrorIs(t, err, content.ErrInvalidOffset)
}

func (suite *StoreTestSuite) testOutOfRange(t *testing.T) {
	store := suite.newStore(t)
	ctx := context.Background()

	assert.ErrorIs(t, store.WriteAt(ctx, "r", []byte("x"), math.MaxInt64), content.ErrTooLarge)
	assert.ErrorIs(t, store.Truncate(ctx, "r", math.MaxUint64), content.ErrTooLarge)

	size, err := store.Size(ctx, "r")
	require.NoError(t, err)
	assert.Zero(t, size)
}

func (suite *StoreTestSuite) testTruncate(t *testing.T) {
	store := suite.newStore(t)
	ctx := context.Background()

	require.NoError(t, store.WriteAt(ctx, "t", []byte("abcdef"), 0))
	require.NoError(t, store.Truncate(ctx, "t", 3))
	assert.Equal(t, []byte("abc"), readAll(t, store, "t"))

	require.NoError(t, store.Truncate(ctx, "t", 5))
	assert.Equal(t, []byte{'a', 'b', 'c', 0, 0}, readAll(t, store, "t"))

	require.NoError(t, store.Truncate(ctx, "t", 0))
	assert.Empty(t, readAll(t, store, "t"))

	require.NoError(t, store.Truncate(ctx, "fresh", 4))
	assert.Equal(t, make([]byte, 4), readAll(t, store, "fresh"))
}

func (suite *StoreTestSuite) testDelete(t *testing.T) {
	store := suite.newStore(t)
	ctx := context.Background()

	require.NoError(t, store.WriteAt(ctx, "d", []byte("data"), 0))
	require.NoError(t, store.Delete(ctx, "d"))

	size, err := store.Size(ctx, "d")
	require.NoError(t, err)
	assert.Zero(t, size)

	require.NoError(t, store.Delete(ctx, "d"), "delete is idempotent")
}

func (suite *StoreTestSuite) testConcurrent(t *testing.T) {
	store := suite.newStore(t)
	ctx := context.Background()

	const workers = 8
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := content.ContentID(fmt.Sprintf("c-%d", i))
			assert.NoError(t, store.WriteAt(ctx, id, bytes.Repeat([]byte{byte(i)}, 64), 0))
		}(i)
	}
	wg.Wait()

	for i := 0; i < workers; i++ {
		id := content.ContentID(fmt.Sprintf("c-%d", i))
		assert.Equal(t, bytes.Repeat([]byte{byte(i)}, 64), readAll(t, store, id))
	}
}

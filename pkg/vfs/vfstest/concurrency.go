package vfstest

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/marmos91/dittovfs/pkg/vfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (suite *BackendTestSuite) RunConcurrencyTests(test *testing.T) {
	test.Run("CreateSameName", suite.TestConcurrency_CreateSameName)
	test.Run("DistinctNames", suite.TestConcurrency_DistinctNames)
}

// TestConcurrency_CreateSameName verifies exactly one exclusive create wins.
func (suite *BackendTestSuite) TestConcurrency_CreateSameName(test *testing.T) {
	v := suite.mount(test)

	const workers = 16
	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f, err := v.Open(nil, "/race", vfs.O_WRONLY|vfs.O_CREAT|vfs.O_EXCL, 0o644)
			if err != nil {
				assert.Equal(test, vfs.EEXIST, vfs.ErrnoOf(err))
				return
			}
			wins.Add(1)
			_ = f.Close()
		}()
	}
	wg.Wait()

	assert.Equal(test, int32(1), wins.Load())
}

// TestConcurrency_DistinctNames verifies no update is lost across siblings.
func (suite *BackendTestSuite) TestConcurrency_DistinctNames(test *testing.T) {
	v := suite.mount(test)
	require.NoError(test, v.Mkdir(nil, "/dir", 0o755))

	const workers = 24
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(test, v.Mkdir(nil, fmt.Sprintf("/dir/d%02d", i), 0o755))
		}()
	}
	wg.Wait()

	entries, err := v.ReadDir(nil, "/dir")
	require.NoError(test, err)
	assert.Len(test, entries, workers+2)
	AssertDots(test, entries)
}

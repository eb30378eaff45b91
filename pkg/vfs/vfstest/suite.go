// Package vfstest provides a conformance suite for read-write vfs backends.
package vfstest

import (
	"testing"

	"github.com/marmos91/dittovfs/pkg/vfs"
)

// BackendTestSuite exercises the vfs.FileSystem contract through the VFS
// path operations, so the same tests cover the dentry cache in front of the
// backend.
type BackendTestSuite struct {
	// NewFS returns a backend whose next Mount yields an empty root. It is
	// called once per test.
	NewFS func(test *testing.T) vfs.FileSystem
}

// Run executes all tests in the suite.
func (suite *BackendTestSuite) Run(test *testing.T) {
	test.Run("Directory", suite.RunDirectoryTests)
	test.Run("File", suite.RunFileTests)
	test.Run("Symlink", suite.RunSymlinkTests)
	test.Run("Metadata", suite.RunMetadataTests)
	test.Run("Concurrency", suite.RunConcurrencyTests)
}

package metrics

import "time"

// VFSMetrics provides observability for the virtual filesystem layer.
//
// It is optional: components given a nil VFSMetrics fall back to
// NewNoopVFSMetrics.
type VFSMetrics interface {
	// RecordOperation records a completed path or descriptor operation.
	//
	// Parameters:
	//   - operation: Operation name (e.g., "open", "mkdir", "getdents")
	//   - duration: Time taken to complete the operation
	//   - err: Error if the operation failed, nil if successful
	RecordOperation(operation string, duration time.Duration, err error)

	// RecordCacheHit records a dentry cache hit for a filesystem type.
	RecordCacheHit(fsType string)

	// RecordCacheMiss records a dentry cache miss for a filesystem type.
	RecordCacheMiss(fsType string)

	// SetActiveMounts updates the number of mounted filesystems.
	SetActiveMounts(count int64)

	// AddOpenFiles adjusts the number of open file objects by delta.
	AddOpenFiles(delta int64)
}

type noopVFSMetrics struct{}

// NewNoopVFSMetrics returns a VFSMetrics that discards everything.
func NewNoopVFSMetrics() VFSMetrics {
	return noopVFSMetrics{}
}

func (noopVFSMetrics) RecordOperation(string, time.Duration, error) {}
func (noopVFSMetrics) RecordCacheHit(string)                        {}
func (noopVFSMetrics) RecordCacheMiss(string)                       {}
func (noopVFSMetrics) SetActiveMounts(int64)                        {}
func (noopVFSMetrics) AddOpenFiles(int64)                           {}

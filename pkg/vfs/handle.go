package vfs

import (
	"math"
	"sync"
)

// Whence values for FileHandle.Seek.
const (
	SeekStart   = 0
	SeekCurrent = 1
	SeekEnd     = 2
)

// MaxFileSize is the largest size any file may reach.
const MaxFileSize = math.MaxInt64

// WriteEnd returns the offset just past n bytes written at off. It fails
// with EFBIG when that end would pass limit; a limit of 0 means
// MaxFileSize. The check never overflows.
func WriteEnd(off int64, n int, limit int64) (int64, error) {
	if limit <= 0 {
		limit = MaxFileSize
	}
	if off < 0 {
		return 0, EINVAL
	}
	if off > limit-int64(n) {
		return 0, EFBIG
	}
	return off + int64(n), nil
}

// SeekPos computes the new offset of a seek from base. A result below zero
// or past MaxFileSize is EINVAL.
func SeekPos(base, offset int64) (int64, error) {
	if offset > 0 && base > MaxFileSize-offset {
		return 0, EINVAL
	}
	pos := base + offset
	if pos < 0 {
		return 0, EINVAL
	}
	return pos, nil
}

// FileHandle is a positioned byte stream over a regular file. Read returns
// 0 and a nil error at end of file.
type FileHandle interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Seek(offset int64, whence int) (int64, error)
	Truncate(size int64) error
	Close() error
}

// DirHandle is a lazy, finite, restartable directory listing.
type DirHandle interface {
	// Next returns the next entry, or false once the listing is exhausted.
	Next() (DirEntry, bool)

	// Rewind restarts the listing from the first entry.
	Rewind()
}

// ListDir is a DirHandle over a listing captured at open time.
type ListDir struct {
	mu      sync.Mutex
	entries []DirEntry
	pos     int
}

// NewListDir wraps entries. The slice is owned by the ListDir afterwards.
func NewListDir(entries []DirEntry) *ListDir {
	return &ListDir{entries: entries}
}

func (d *ListDir) Next() (DirEntry, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.pos >= len(d.entries) {
		return DirEntry{}, false
	}
	e := d.entries[d.pos]
	d.pos++
	return e, true
}

func (d *ListDir) Rewind() {
	d.mu.Lock()
	d.pos = 0
	d.mu.Unlock()
}

// Len returns the total number of entries in the listing.
func (d *ListDir) Len() int {
	return len(d.entries)
}

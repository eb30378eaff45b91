// Package content stores file bodies for persistent filesystem backends.
//
// A Store is a flat keyspace of byte arrays addressed by ContentID. It knows
// nothing about names, directories or attributes: the backend owning the
// inode records decides which id holds which file's data.
//
// Missing content behaves as empty content. Reading it yields no bytes,
// its size is 0, writing or truncating it creates it, and deleting it is a
// no-op. This lets a backend allocate an inode without touching the store.
package content

import (
	"context"
	"errors"
	"math"
)

// ContentID identifies one body in a Store. It is opaque to callers; the
// badgerfs backend uses the inode uuid.
type ContentID string

// Store is the content storage contract. Implementations are safe for
// concurrent use; concurrent writes to the same id are last-writer-wins.
type Store interface {
	// ReadAt reads into p starting at offset. It returns fewer than len(p)
	// bytes only when the content ends first, and 0 at or past the end.
	// It never returns io.EOF.
	ReadAt(ctx context.Context, id ContentID, p []byte, offset int64) (int, error)

	// WriteAt writes data at offset, zero-filling any gap past the end.
	WriteAt(ctx context.Context, id ContentID, data []byte, offset int64) error

	// Truncate resizes the content, zero-filling when it grows.
	Truncate(ctx context.Context, id ContentID, size uint64) error

	// Size returns the content length in bytes.
	Size(ctx context.Context, id ContentID) (uint64, error)

	// Delete removes the content. Deleting missing content succeeds.
	Delete(ctx context.Context, id ContentID) error

	// Close releases the store's resources.
	Close() error
}

var (
	// ErrInvalidOffset is returned for negative offsets.
	ErrInvalidOffset = errors.New("invalid offset")

	// ErrClosed is returned by operations on a closed store.
	ErrClosed = errors.New("content store closed")

	// ErrTooLarge is returned when a write or truncate would take the
	// content past what the store can hold.
	ErrTooLarge = errors.New("content too large")
)

// MaxBufferedSize bounds content held as a single in-memory buffer, as the
// memory and s3 stores do.
const MaxBufferedSize int64 = 1 << 32

// CheckRange validates a write of n bytes at offset against limit.
func CheckRange(offset int64, n int, limit int64) error {
	if offset < 0 {
		return ErrInvalidOffset
	}
	if offset > limit-int64(n) {
		return ErrTooLarge
	}
	return nil
}

// CheckSize validates a truncate to size against limit.
func CheckSize(size uint64, limit int64) error {
	if size > uint64(limit) {
		return ErrTooLarge
	}
	return nil
}

// Splice copies data into buf at offset, growing buf with zeros as needed,
// and returns the result. Stores that rewrite whole objects share it. The
// result never exceeds MaxBufferedSize.
func Splice(buf, data []byte, offset int64) ([]byte, error) {
	if err := CheckRange(offset, len(data), MaxBufferedSize); err != nil {
		return buf, err
	}
	end := offset + int64(len(data))
	if end > int64(len(buf)) {
		grown := make([]byte, end)
		copy(grown, buf)
		buf = grown
	}
	copy(buf[offset:], data)
	return buf, nil
}

// Resize returns buf cut or zero-extended to size, up to MaxBufferedSize.
func Resize(buf []byte, size uint64) ([]byte, error) {
	if err := CheckSize(size, MaxBufferedSize); err != nil {
		return buf, err
	}
	if size <= uint64(len(buf)) {
		return buf[:size], nil
	}
	grown := make([]byte, size)
	copy(grown, buf)
	return grown, nil
}

// ReadFrom copies the part of buf starting at offset into p.
func ReadFrom(buf, p []byte, offset int64) int {
	if offset >= int64(len(buf)) {
		return 0
	}
	return copy(p, buf[offset:])
}

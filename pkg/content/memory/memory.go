// Package memory implements an in-process content store. Contents are lost
// when the process exits; it backs tests and throwaway badgerfs mounts.
package memory

import (
	"context"
	"sync"

	"github.com/marmos91/dittovfs/pkg/content"
)

// Store keeps every body in a map.
type Store struct {
	mu     sync.RWMutex
	data   map[content.ContentID][]byte
	closed bool
}

// New creates an empty store.
func New() *Store {
	return &Store{data: make(map[content.ContentID][]byte)}
}

func (s *Store) ReadAt(ctx context.Context, id content.ContentID, p []byte, offset int64) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if offset < 0 {
		return 0, content.ErrInvalidOffset
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0, content.ErrClosed
	}
	return content.ReadFrom(s.data[id], p, offset), nil
}

func (s *Store) WriteAt(ctx context.Context, id content.ContentID, data []byte, offset int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if offset < 0 {
		return content.ErrInvalidOffset
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return content.ErrClosed
	}
	buf, err := content.Splice(s.data[id], data, offset)
	if err != nil {
		return err
	}
	s.data[id] = buf
	return nil
}

func (s *Store) Truncate(ctx context.Context, id content.ContentID, size uint64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return content.ErrClosed
	}
	buf, err := content.Resize(s.data[id], size)
	if err != nil {
		return err
	}
	s.data[id] = buf
	return nil
}

func (s *Store) Size(ctx context.Context, id content.ContentID) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0, content.ErrClosed
	}
	return uint64(len(s.data[id])), nil
}

func (s *Store) Delete(ctx context.Context, id content.ContentID) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return content.ErrClosed
	}
	delete(s.data, id)
	return nil
}

// Len returns the number of stored bodies.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.data = nil
	return nil
}

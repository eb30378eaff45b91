// Package fs implements a content store keeping one host file per body.
package fs

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"syscall"

	"github.com/marmos91/dittovfs/pkg/content"
)

// Store writes bodies under basePath. File names are the hex-encoded
// content ids, so any id is a safe file name.
type Store struct {
	basePath string
}

// New creates basePath if needed and returns a store rooted there.
func New(ctx context.Context, basePath string) (*Store, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if basePath == "" {
		return nil, fmt.Errorf("content base path is required")
	}
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}
	return &Store{basePath: basePath}, nil
}

// BasePath returns the directory holding the bodies.
func (s *Store) BasePath() string {
	return s.basePath
}

func (s *Store) path(id content.ContentID) string {
	return filepath.Join(s.basePath, hex.EncodeToString([]byte(id)))
}

func (s *Store) ReadAt(ctx context.Context, id content.ContentID, p []byte, offset int64) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if offset < 0 {
		return 0, content.ErrInvalidOffset
	}

	f, err := os.Open(s.path(id))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to open content %s: %w", id, err)
	}
	defer func() { _ = f.Close() }()

	n, err := f.ReadAt(p, offset)
	if err != nil && !errors.Is(err, io.EOF) {
		return n, fmt.Errorf("failed to read content %s: %w", id, err)
	}
	return n, nil
}

func (s *Store) WriteAt(ctx context.Context, id content.ContentID, data []byte, offset int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := content.CheckRange(offset, len(data), math.MaxInt64); err != nil {
		return err
	}

	f, err := os.OpenFile(s.path(id), os.O_WRONLY|os.O_CREATE, 0644)
	if err != nil {
		return fmt.Errorf("failed to open content %s: %w", id, err)
	}

	if _, err := f.WriteAt(data, offset); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write content %s: %w", id, hostLimit(err))
	}
	return f.Close()
}

func (s *Store) Truncate(ctx context.Context, id content.ContentID, size uint64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := content.CheckSize(size, math.MaxInt64); err != nil {
		return err
	}

	f, err := os.OpenFile(s.path(id), os.O_WRONLY|os.O_CREATE, 0644)
	if err != nil {
		return fmt.Errorf("failed to open content %s: %w", id, err)
	}
	if err := f.Truncate(int64(size)); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to truncate content %s: %w", id, hostLimit(err))
	}
	return f.Close()
}

func (s *Store) Size(ctx context.Context, id content.ContentID) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	info, err := os.Stat(s.path(id))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to stat content %s: %w", id, err)
	}
	return uint64(info.Size()), nil
}

func (s *Store) Delete(ctx context.Context, id content.ContentID) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := os.Remove(s.path(id)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete content %s: %w", id, err)
	}
	return nil
}

func (s *Store) Close() error {
	return nil
}

// hostLimit reports the host filesystem's size limit as ErrTooLarge.
func hostLimit(err error) error {
	if errors.Is(err, syscall.EFBIG) {
		return fmt.Errorf("%w: %v", content.ErrTooLarge, err)
	}
	return err
}

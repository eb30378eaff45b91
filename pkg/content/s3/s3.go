// Package s3 implements a content store on Amazon S3 or an S3-compatible
// service.
//
// Objects cannot be patched in place, so WriteAt and Truncate download the
// whole object, modify it and upload it again. Range reads go straight to
// S3. Bodies are expected to be small; this is not a large-file store.
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/marmos91/dittovfs/internal/logger"
	"github.com/marmos91/dittovfs/pkg/content"
)

// Config configures the store.
type Config struct {
	// Client is the configured S3 client.
	Client *s3.Client

	// Bucket must already exist.
	Bucket string

	// KeyPrefix is prepended to every object key, e.g. "dittovfs/".
	KeyPrefix string
}

// Store keeps one object per content id.
type Store struct {
	client    *s3.Client
	bucket    string
	keyPrefix string

	// writeMu serializes read-modify-write cycles.
	writeMu sync.Mutex
}

// New verifies bucket access and returns the store.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if cfg.Client == nil {
		return nil, fmt.Errorf("S3 client is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}

	_, err := cfg.Client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(cfg.Bucket),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to access bucket %q: %w", cfg.Bucket, err)
	}

	logger.Debug("S3 content store ready: bucket=%s prefix=%q", cfg.Bucket, cfg.KeyPrefix)
	return &Store{
		client:    cfg.Client,
		bucket:    cfg.Bucket,
		keyPrefix: cfg.KeyPrefix,
	}, nil
}

func (s *Store) key(id content.ContentID) string {
	return s.keyPrefix + string(id)
}

func isNotFound(err error) bool {
	var noSuchKey *types.NoSuchKey
	var notFound *types.NotFound
	return errors.As(err, &noSuchKey) || errors.As(err, &notFound)
}

func isInvalidRange(err error) bool {
	var apiErr smithy.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode() == "InvalidRange"
}

func (s *Store) ReadAt(ctx context.Context, id content.ContentID, p []byte, offset int64) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if offset < 0 {
		return 0, content.ErrInvalidOffset
	}
	if len(p) == 0 {
		return 0, nil
	}

	// Range is inclusive.
	rangeStr := fmt.Sprintf("bytes=%d-%d", offset, offset+int64(len(p))-1)
	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(id)),
		Range:  aws.String(rangeStr),
	})
	if err != nil {
		if isNotFound(err) || isInvalidRange(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to get object range: %w", err)
	}
	defer func() { _ = result.Body.Close() }()

	n, err := io.ReadFull(result.Body, p)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return n, fmt.Errorf("failed to read object body: %w", err)
	}
	return n, nil
}

// load downloads the whole object; a missing object is empty.
func (s *Store) load(ctx context.Context, id content.ContentID) ([]byte, error) {
	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(id)),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get object: %w", err)
	}
	defer func() { _ = result.Body.Close() }()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read object body: %w", err)
	}
	return data, nil
}

func (s *Store) store(ctx context.Context, id content.ContentID, data []byte) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(s.key(id)),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		return fmt.Errorf("failed to put object: %w", err)
	}
	return nil
}

func (s *Store) WriteAt(ctx context.Context, id content.ContentID, data []byte, offset int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if offset < 0 {
		return content.ErrInvalidOffset
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	existing, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	buf, err := content.Splice(existing, data, offset)
	if err != nil {
		return err
	}
	return s.store(ctx, id, buf)
}

func (s *Store) Truncate(ctx context.Context, id content.ContentID, size uint64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := content.CheckSize(size, content.MaxBufferedSize); err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if size == 0 {
		return s.store(ctx, id, nil)
	}
	existing, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	buf, err := content.Resize(existing, size)
	if err != nil {
		return err
	}
	return s.store(ctx, id, buf)
}

func (s *Store) Size(ctx context.Context, id content.ContentID) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	result, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(id)),
	})
	if err != nil {
		if isNotFound(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to head object: %w", err)
	}
	if result.ContentLength == nil {
		return 0, fmt.Errorf("content length not available for %s", id)
	}
	return uint64(*result.ContentLength), nil
}

func (s *Store) Delete(ctx context.Context, id content.ContentID) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(id)),
	})
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("failed to delete object: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return nil
}

package config

import (
	"context"
	"fmt"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/retry"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/mitchellh/mapstructure"

	"github.com/marmos91/dittovfs/internal/logger"
	"github.com/marmos91/dittovfs/pkg/content"
	contentFs "github.com/marmos91/dittovfs/pkg/content/fs"
	contentMemory "github.com/marmos91/dittovfs/pkg/content/memory"
	contentS3 "github.com/marmos91/dittovfs/pkg/content/s3"
	"github.com/marmos91/dittovfs/pkg/vfs/badgerfs"
)

// CreateContentStore creates one content store from its configuration.
//
// The Type field selects the implementation; the matching options map is
// decoded with mapstructure and handed to the store's constructor.
//
// Supported types:
//   - "memory": pkg/content/memory (lost on exit)
//   - "filesystem": pkg/content/fs (one file per content id)
//   - "s3": pkg/content/s3 (Amazon S3 or compatible storage)
func CreateContentStore(ctx context.Context, cfg ContentStoreConfig) (content.Store, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	switch cfg.Type {
	case "memory":
		return contentMemory.New(), nil
	case "filesystem":
		return createFilesystemContentStore(ctx, cfg.Filesystem)
	case "s3":
		return createS3ContentStore(ctx, cfg.S3)
	default:
		return nil, fmt.Errorf("unknown content store type: %q", cfg.Type)
	}
}

// CreateContentStores creates every configured store. On failure the stores
// already created are closed.
func CreateContentStores(ctx context.Context, cfg *ContentConfig) (map[string]content.Store, error) {
	names := make([]string, 0, len(cfg.Stores))
	for name := range cfg.Stores {
		names = append(names, name)
	}
	sort.Strings(names)

	stores := make(map[string]content.Store, len(names))
	for _, name := range names {
		store, err := CreateContentStore(ctx, cfg.Stores[name])
		if err != nil {
			CloseContentStores(stores)
			return nil, fmt.Errorf("content store %q: %w", name, err)
		}
		stores[name] = store
		logger.Debug("Created %s content store %q", cfg.Stores[name].Type, name)
	}
	return stores, nil
}

// CloseContentStores closes every store, logging failures.
func CloseContentStores(stores map[string]content.Store) {
	for name, store := range stores {
		if err := store.Close(); err != nil {
			logger.Warn("Failed to close content store %q: %v", name, err)
		}
	}
}

// CreateBadgerfs builds the badgerfs backend bound to its content store.
func CreateBadgerfs(cfg *BadgerfsConfig, stores map[string]content.Store) (*badgerfs.FileSystem, error) {
	store, ok := stores[cfg.ContentStore]
	if !ok {
		return nil, fmt.Errorf("badgerfs: content store %q is not defined", cfg.ContentStore)
	}
	return badgerfs.New(cfg.Config, store)
}

func createFilesystemContentStore(ctx context.Context, options map[string]any) (content.Store, error) {
	var storeCfg struct {
		Path string `mapstructure:"path"`
	}
	if err := mapstructure.Decode(options, &storeCfg); err != nil {
		return nil, fmt.Errorf("failed to decode filesystem content store config: %w", err)
	}
	if storeCfg.Path == "" {
		return nil, fmt.Errorf("filesystem content store: path is required")
	}

	store, err := contentFs.New(ctx, storeCfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to create filesystem content store: %w", err)
	}
	return store, nil
}

// s3StoreConfig holds the options of an s3 content store.
type s3StoreConfig struct {
	Region          string `mapstructure:"region"`
	Bucket          string `mapstructure:"bucket"`
	KeyPrefix       string `mapstructure:"key_prefix"`
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	MaxRetries      int    `mapstructure:"max_retries"`
}

func createS3ContentStore(ctx context.Context, options map[string]any) (content.Store, error) {
	var storeCfg s3StoreConfig
	if err := mapstructure.Decode(options, &storeCfg); err != nil {
		return nil, fmt.Errorf("failed to decode S3 content store config: %w", err)
	}
	if storeCfg.Bucket == "" {
		return nil, fmt.Errorf("S3 content store: bucket is required")
	}
	if storeCfg.Region == "" {
		return nil, fmt.Errorf("S3 content store: region is required")
	}

	client, err := newS3Client(ctx, storeCfg)
	if err != nil {
		return nil, err
	}

	store, err := contentS3.New(ctx, contentS3.Config{
		Client:    client,
		Bucket:    storeCfg.Bucket,
		KeyPrefix: storeCfg.KeyPrefix,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 content store: %w", err)
	}

	logger.Info("S3 content store initialized: bucket=%s, region=%s, prefix=%s",
		storeCfg.Bucket, storeCfg.Region, storeCfg.KeyPrefix)
	return store, nil
}

// newS3Client builds an S3 client from static or default-chain
// credentials. A custom endpoint (MinIO, Localstack) switches to path-style
// addressing.
func newS3Client(ctx context.Context, storeCfg s3StoreConfig) (*s3.Client, error) {
	configOptions := []func(*awsConfig.LoadOptions) error{
		awsConfig.WithRegion(storeCfg.Region),
	}

	if storeCfg.AccessKeyID != "" && storeCfg.SecretAccessKey != "" {
		configOptions = append(configOptions, awsConfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(storeCfg.AccessKeyID, storeCfg.SecretAccessKey, ""),
		))
	}

	maxRetries := storeCfg.MaxRetries
	if maxRetries == 0 {
		maxRetries = 10
	}
	configOptions = append(configOptions, awsConfig.WithRetryer(func() aws.Retryer {
		return retry.NewStandard(func(o *retry.StandardOptions) {
			o.MaxAttempts = maxRetries
		})
	}))

	awsCfg, err := awsConfig.LoadDefaultConfig(ctx, configOptions...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if storeCfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(storeCfg.Endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

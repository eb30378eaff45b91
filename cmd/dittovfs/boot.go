package main

import (
	"context"
	"fmt"
	"io"

	"github.com/marmos91/dittovfs/internal/logger"
	"github.com/marmos91/dittovfs/pkg/config"
	"github.com/marmos91/dittovfs/pkg/kernel"
	"github.com/marmos91/dittovfs/pkg/vfs"
)

// bootFromConfig loads the configuration, sets up logging and boots the
// kernel. The returned closer releases the log file.
func bootFromConfig(ctx context.Context, configPath string) (*config.Config, *kernel.Kernel, io.Closer, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, err
	}

	logCloser, err := logger.Configure(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	if err != nil {
		return nil, nil, nil, err
	}

	k, err := kernel.Boot(ctx, cfg)
	if err != nil {
		_ = logCloser.Close()
		return nil, nil, nil, fmt.Errorf("boot failed: %w", err)
	}

	if err := vfs.Init(k.VFS); err != nil {
		_ = k.Shutdown()
		_ = logCloser.Close()
		return nil, nil, nil, err
	}

	return cfg, k, logCloser, nil
}

func shutdown(k *kernel.Kernel, logCloser io.Closer) {
	if err := k.Shutdown(); err != nil {
		logger.Warn("Shutdown incomplete: %v", err)
	}
	_ = logCloser.Close()
}

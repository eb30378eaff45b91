package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/marmos91/dittovfs/internal/logger"
	"github.com/marmos91/dittovfs/pkg/config"
	"github.com/marmos91/dittovfs/pkg/server"
)

func runServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file (default: "+config.GetDefaultConfigPath()+")")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, k, logCloser, err := bootFromConfig(ctx, *configPath)
	if err != nil {
		return err
	}
	defer shutdown(k, logCloser)

	srv := server.New(cfg.ShutdownTimeout)
	for _, a := range config.CreateAdapters(cfg, k.VFS) {
		if err := srv.AddAdapter(a); err != nil {
			return err
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	if len(srv.Adapters()) > 0 {
		g.Go(func() error { return srv.Serve(gctx) })
	} else {
		logger.Warn("No adapters enabled; the tree is only reachable through 'dittovfs shell'")
	}

	if k.Metrics.Server != nil {
		g.Go(func() error { return k.Metrics.Server.Start(gctx) })
	}

	logger.Info("dittovfs is running. Press Ctrl+C to stop.")

	g.Go(func() error {
		<-gctx.Done()
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Service error: %v", err)
		return err
	}
	logger.Info("Shutdown signal received, stopping")
	return nil
}

// Package server runs the host adapters that expose one VFS.
package server

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/marmos91/dittovfs/internal/logger"
	"github.com/marmos91/dittovfs/pkg/adapter"
)

// DefaultStopTimeout bounds the Stop calls issued at shutdown.
const DefaultStopTimeout = 30 * time.Second

// Server manages the lifecycle of the adapters registered with it. All
// adapters share the VFS they were built with.
//
// Lifecycle:
//  1. Creation: New()
//  2. Registration: AddAdapter() for each adapter
//  3. Startup: Serve() runs all adapters concurrently
//  4. Shutdown: context cancellation or the first adapter failure stops all
//     adapters in reverse registration order
//
// Serve must only be called once.
type Server struct {
	stopTimeout time.Duration

	mu       sync.RWMutex
	adapters []adapter.Adapter
	served   bool
}

// New creates a server. A zero stopTimeout selects DefaultStopTimeout.
func New(stopTimeout time.Duration) *Server {
	if stopTimeout <= 0 {
		stopTimeout = DefaultStopTimeout
	}
	return &Server{
		stopTimeout: stopTimeout,
		adapters:    make([]adapter.Adapter, 0, 2),
	}
}

// AddAdapter registers a. Two adapters may not share a protocol and
// endpoint.
//
// Panics if a is nil or Serve has already been called.
func (s *Server) AddAdapter(a adapter.Adapter) error {
	if a == nil {
		panic("adapter cannot be nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.served {
		panic("cannot add adapter after Serve() has been called")
	}

	for _, existing := range s.adapters {
		if existing.Protocol() == a.Protocol() && existing.Endpoint() == a.Endpoint() {
			return fmt.Errorf("%s adapter already registered at %s", a.Protocol(), a.Endpoint())
		}
	}

	s.adapters = append(s.adapters, a)
	logger.Info("Registered %s adapter at %s", a.Protocol(), a.Endpoint())
	return nil
}

// Adapters returns a snapshot of the registered adapters.
func (s *Server) Adapters() []adapter.Adapter {
	s.mu.RLock()
	defer s.mu.RUnlock()

	adapters := make([]adapter.Adapter, len(s.adapters))
	copy(adapters, s.adapters)
	return adapters
}

// Serve starts every adapter and blocks until all of them have returned.
//
// Cancellation of ctx and the failure of any adapter both stop the rest.
// A graceful shutdown returns nil; otherwise the first adapter error is
// returned, prefixed with its protocol.
func (s *Server) Serve(ctx context.Context) error {
	s.mu.Lock()
	if s.served {
		s.mu.Unlock()
		return errors.New("server: Serve already called")
	}
	s.served = true
	adapters := make([]adapter.Adapter, len(s.adapters))
	copy(adapters, s.adapters)
	s.mu.Unlock()

	if len(adapters) == 0 {
		return errors.New("no adapters registered; call AddAdapter() before Serve()")
	}

	logger.Info("Starting %d adapter(s)", len(adapters))

	g, gctx := errgroup.WithContext(ctx)
	for _, a := range adapters {
		g.Go(func() error {
			logger.Info("Starting %s adapter at %s", a.Protocol(), a.Endpoint())
			if err := a.Serve(gctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("%s adapter failed: %v", a.Protocol(), err)
				return fmt.Errorf("%s adapter error: %w", a.Protocol(), err)
			}
			logger.Info("%s adapter stopped", a.Protocol())
			return nil
		})
	}

	finished := make(chan struct{})
	watcherDone := make(chan struct{})
	go func() {
		defer close(watcherDone)
		select {
		case <-gctx.Done():
			logger.Info("Shutdown signal received (reason: %v)", context.Cause(gctx))
			s.stopAll(adapters)
		case <-finished:
		}
	}()

	err := g.Wait()
	close(finished)
	<-watcherDone

	logger.Info("Server stopped")
	return err
}

// stopAll signals every adapter to stop, newest first. Errors are logged;
// the adapters' Serve goroutines do the actual cleanup.
func (s *Server) stopAll(adapters []adapter.Adapter) {
	ctx, cancel := context.WithTimeout(context.Background(), s.stopTimeout)
	defer cancel()

	logger.Info("Initiating graceful shutdown of %d adapter(s)", len(adapters))

	for i := len(adapters) - 1; i >= 0; i-- {
		a := adapters[i]
		if err := a.Stop(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Error stopping %s adapter: %v", a.Protocol(), err)
		} else {
			logger.Debug("%s adapter stop signal sent", a.Protocol())
		}
	}
}

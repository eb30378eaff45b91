// Package metrics provides Prometheus metrics collection for dittovfs components.
//
// All metrics are optional. If the registry is not initialized, constructors
// return no-op implementations, so the VFS runs identically with or without
// collection enabled.
//
// Usage:
//
//	metrics.InitRegistry()
//	vfsMetrics := prometheus.NewVFSMetrics()
//	v := vfs.New(vfsMetrics)
//
//	// Or nil for no-op behavior
//	v := vfs.New(nil)
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// registry is written once by InitRegistry and read everywhere else.
	registry     *prometheus.Registry
	registryOnce sync.Once
)

// InitRegistry initializes the global Prometheus registry.
//
// Safe to call multiple times; only the first call has an effect.
func InitRegistry() {
	registryOnce.Do(func() {
		registry = prometheus.NewRegistry()
	})
}

// GetRegistry returns the global Prometheus registry, or nil when metrics
// are disabled.
func GetRegistry() *prometheus.Registry {
	return registry
}

// IsEnabled reports whether InitRegistry has been called.
func IsEnabled() bool {
	return GetRegistry() != nil
}

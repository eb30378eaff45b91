package config

import (
	"github.com/marmos91/dittovfs/pkg/metrics"
	promMetrics "github.com/marmos91/dittovfs/pkg/metrics/prometheus"
)

// MetricsResult contains the metrics components created from configuration.
type MetricsResult struct {
	// Server exposes /metrics; nil if disabled
	Server *metrics.Server

	// VFSMetrics is never nil; a no-op when disabled
	VFSMetrics metrics.VFSMetrics
}

// InitializeMetrics creates the metrics components.
//
// When enabled it initializes the global Prometheus registry and builds the
// HTTP server. When disabled it returns no-op collectors.
func InitializeMetrics(cfg *Config) *MetricsResult {
	if !cfg.Metrics.Enabled {
		return &MetricsResult{VFSMetrics: metrics.NewNoopVFSMetrics()}
	}

	metrics.InitRegistry()

	return &MetricsResult{
		Server:     metrics.NewServer(metrics.ServerConfig{Port: cfg.Metrics.Port}),
		VFSMetrics: promMetrics.NewVFSMetrics(),
	}
}

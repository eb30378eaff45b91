package prometheus

import (
	"sync"
	"time"

	"github.com/marmos91/dittovfs/pkg/metrics"
	"github.com/marmos91/dittovfs/pkg/vfs"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// vfsMetrics is the Prometheus implementation of metrics.VFSMetrics.
type vfsMetrics struct {
	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	cacheHits         *prometheus.CounterVec
	cacheMisses       *prometheus.CounterVec
	activeMounts      prometheus.Gauge
	openFiles         prometheus.Gauge
}

var (
	vfsOnce     sync.Once
	vfsInstance metrics.VFSMetrics
)

// NewVFSMetrics returns the Prometheus-backed VFSMetrics.
//
// Collectors are registered once per process; later calls return the same
// instance. Returns a no-op implementation if metrics are not enabled.
func NewVFSMetrics() metrics.VFSMetrics {
	if !metrics.IsEnabled() {
		return metrics.NewNoopVFSMetrics()
	}

	vfsOnce.Do(func() {
		reg := metrics.GetRegistry()

		vfsInstance = &vfsMetrics{
			operationsTotal: promauto.With(reg).NewCounterVec(
				prometheus.CounterOpts{
					Name: "dittovfs_operations_total",
					Help: "Total number of VFS operations by operation and status",
				},
				[]string{"operation", "status", "error_code"},
			),
			operationDuration: promauto.With(reg).NewHistogramVec(
				prometheus.HistogramOpts{
					Name: "dittovfs_operation_duration_seconds",
					Help: "Duration of VFS operations in seconds",
					Buckets: []float64{
						0.00001, // 10µs
						0.0001,  // 100µs
						0.001,   // 1ms
						0.01,    // 10ms
						0.1,     // 100ms
						1,       // 1s
					},
				},
				[]string{"operation"},
			),
			cacheHits: promauto.With(reg).NewCounterVec(
				prometheus.CounterOpts{
					Name: "dittovfs_dentry_cache_hits_total",
					Help: "Dentry cache hits by filesystem type",
				},
				[]string{"fs_type"},
			),
			cacheMisses: promauto.With(reg).NewCounterVec(
				prometheus.CounterOpts{
					Name: "dittovfs_dentry_cache_misses_total",
					Help: "Dentry cache misses by filesystem type",
				},
				[]string{"fs_type"},
			),
			activeMounts: promauto.With(reg).NewGauge(
				prometheus.GaugeOpts{
					Name: "dittovfs_active_mounts",
					Help: "Number of mounted filesystems",
				},
			),
			openFiles: promauto.With(reg).NewGauge(
				prometheus.GaugeOpts{
					Name: "dittovfs_open_files",
					Help: "Number of open file objects",
				},
			),
		}
	})

	return vfsInstance
}

func (m *vfsMetrics) RecordOperation(operation string, duration time.Duration, err error) {
	status, code := "success", ""
	if err != nil {
		status, code = "error", vfs.ErrnoOf(err).Name()
	}

	m.operationsTotal.WithLabelValues(operation, status, code).Inc()
	m.operationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

func (m *vfsMetrics) RecordCacheHit(fsType string) {
	m.cacheHits.WithLabelValues(fsType).Inc()
}

func (m *vfsMetrics) RecordCacheMiss(fsType string) {
	m.cacheMisses.WithLabelValues(fsType).Inc()
}

func (m *vfsMetrics) SetActiveMounts(count int64) {
	m.activeMounts.Set(float64(count))
}

func (m *vfsMetrics) AddOpenFiles(delta int64) {
	m.openFiles.Add(float64(delta))
}

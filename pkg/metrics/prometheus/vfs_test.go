package prometheus

import (
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/dittovfs/pkg/metrics"
	"github.com/marmos91/dittovfs/pkg/vfs"
)

// value returns the counter or gauge value of the series name{labels}.
func value(t *testing.T, name string, labels map[string]string) float64 {
	t.Helper()

	families, err := metrics.GetRegistry().Gather()
	require.NoError(t, err)

	for _, f := range families {
		if f.GetName() != name {
			continue
		}
		for _, m := range f.GetMetric() {
			if !matches(m.GetLabel(), labels) {
				continue
			}
			if c := m.GetCounter(); c != nil {
				return c.GetValue()
			}
			return m.GetGauge().GetValue()
		}
	}
	t.Fatalf("series %s%v not found", name, labels)
	return 0
}

// matches compares label sets, treating an absent label as empty.
func matches(pairs []*dto.LabelPair, want map[string]string) bool {
	got := make(map[string]string, len(pairs))
	for _, p := range pairs {
		got[p.GetName()] = p.GetValue()
	}
	for k, v := range want {
		if got[k] != v {
			return false
		}
	}
	for k, v := range got {
		if want[k] != v {
			return false
		}
	}
	return true
}

func TestVFSMetrics(t *testing.T) {
	metrics.InitRegistry()

	m := NewVFSMetrics()
	_, ok := m.(*vfsMetrics)
	require.True(t, ok, "expected the Prometheus implementation once the registry exists")
	assert.Same(t, m, NewVFSMetrics())

	m.RecordOperation("mkdir", time.Millisecond, nil)
	m.RecordOperation("mkdir", time.Millisecond, vfs.EEXIST)
	m.RecordOperation("open", time.Millisecond, vfs.ENOENT)

	ops := "dittovfs_operations_total"
	assert.Equal(t, 1.0, value(t, ops, map[string]string{"operation": "mkdir", "status": "success", "error_code": ""}))
	assert.Equal(t, 1.0, value(t, ops, map[string]string{"operation": "mkdir", "status": "error", "error_code": "EEXIST"}))
	assert.Equal(t, 1.0, value(t, ops, map[string]string{"operation": "open", "status": "error", "error_code": "ENOENT"}))

	m.RecordCacheHit("tmpfs")
	m.RecordCacheHit("tmpfs")
	m.RecordCacheMiss("sysfs")
	assert.Equal(t, 2.0, value(t, "dittovfs_dentry_cache_hits_total", map[string]string{"fs_type": "tmpfs"}))
	assert.Equal(t, 1.0, value(t, "dittovfs_dentry_cache_misses_total", map[string]string{"fs_type": "sysfs"}))

	m.SetActiveMounts(3)
	m.AddOpenFiles(2)
	m.AddOpenFiles(-1)
	assert.Equal(t, 3.0, value(t, "dittovfs_active_mounts", nil))
	assert.Equal(t, 1.0, value(t, "dittovfs_open_files", nil))
}

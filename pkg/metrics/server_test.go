package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestServerRoutes(t *testing.T) {
	s := NewServer(ServerConfig{})
	assert.Equal(t, 9090, s.port)

	rec := httptest.NewRecorder()
	s.server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "/metrics")

	rec = httptest.NewRecorder()
	s.server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/elsewhere", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServerMetricsEndpoint(t *testing.T) {
	InitRegistry()
	s := NewServer(ServerConfig{Port: 9191})

	rec := httptest.NewRecorder()
	s.server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestNoopVFSMetrics(t *testing.T) {
	m := NewNoopVFSMetrics()
	assert.NotPanics(t, func() {
		m.RecordOperation("open", 0, nil)
		m.RecordCacheHit("tmpfs")
		m.RecordCacheMiss("tmpfs")
		m.SetActiveMounts(1)
		m.AddOpenFiles(1)
	})
}

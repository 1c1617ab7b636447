package monitoring

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func newRouter(m *Monitor) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(m.Middleware())
	router.GET("/columns", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/metrics", m.MetricsHandler())
	router.GET("/health", m.HealthHandler())
	router.GET("/health/ready", m.ReadinessHandler())
	router.GET("/health/live", m.LivenessHandler())
	return router
}

func get(router *gin.Engine, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", path, nil)
	router.ServeHTTP(w, req)
	return w
}

func TestMonitor_RecordsRequests(t *testing.T) {
	m := New()
	m.RegisterGauge("websocket_connections", "Open websocket connections.", func() float64 { return 3 })
	router := newRouter(m)

	get(router, "/columns")
	get(router, "/nowhere")

	body := get(router, "/metrics").Body.String()
	assert.Contains(t, body, `kanban_http_requests_total{method="GET",route="/columns",status="200"} 1`)
	assert.Contains(t, body, `route="unmatched",status="404"`)
	assert.Contains(t, body, "kanban_http_request_duration_seconds_bucket")
	assert.Contains(t, body, "kanban_websocket_connections 3")
	assert.Contains(t, body, "go_goroutines")
}

func TestMonitor_HealthChecks(t *testing.T) {
	m := New()
	m.RegisterHealthCheck("database", func(ctx context.Context) error { return nil })
	router := newRouter(m)

	w := get(router, "/health")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"healthy"`)
	assert.Equal(t, http.StatusOK, get(router, "/health/ready").Code)

	m.RegisterHealthCheck("redis", func(ctx context.Context) error { return errors.New("connection refused") })

	w = get(router, "/health")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), "connection refused"))

	w = get(router, "/health/ready")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "not ready")

	assert.Equal(t, http.StatusOK, get(router, "/health/live").Code)
}

func TestMonitor_RunHealthChecks(t *testing.T) {
	m := New()
	m.RegisterHealthCheck("ok", func(ctx context.Context) error { return nil })
	m.RegisterHealthCheck("bad", func(ctx context.Context) error { return errors.New("down") })

	results := m.RunHealthChecks(context.Background())
	assert.Equal(t, "healthy", results["ok"].Status)
	assert.Equal(t, "unhealthy", results["bad"].Status)
	assert.Equal(t, "down", results["bad"].Message)
	assert.False(t, healthy(results))
}

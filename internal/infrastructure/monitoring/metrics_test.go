package monitoring

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetricsIsolatedRegistries(t *testing.T) {
	a := NewMetrics()
	b := NewMetrics()

	a.RecordReload("divergence")

	assert.Equal(t, 1.0, testutil.ToFloat64(a.Reloads.WithLabelValues("divergence")))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.Reloads.WithLabelValues("divergence")))
}

func TestSnapshotCounters(t *testing.T) {
	m := NewMetrics()

	m.RecordHTTPRequest("GET", "/health", "200", time.Millisecond)
	m.RecordHTTPRequest("POST", "/api/mfe-toggle", "400", time.Millisecond)
	m.RecordAppLoad("navbar", "native", "success", time.Millisecond)
	m.RecordAppLoad("orders", "global-script", "failed", time.Millisecond)
	m.RecordAppLoad("billing", "native", "disabled", 0)
	m.RecordReload("remote-toggle")

	snap := m.GetSnapshot()
	assert.Equal(t, int64(2), snap.TotalRequests)
	assert.Equal(t, int64(1), snap.TotalErrors)
	assert.Equal(t, int64(3), snap.AppLoads)
	assert.Equal(t, int64(1), snap.LoadFailures)
	assert.Equal(t, int64(1), snap.Reloads)
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordDetection("native")
		m.RecordProbe(true)
		m.RecordPollTick("toggle", "skipped")
		m.ObserveMeasure("navbar:mount", time.Millisecond)
		_ = m.GetSnapshot()
	})
	assert.NotPanics(t, func() {
		NewTimer(nil, "detect", "range").Stop("success")
	})
}

func TestMiddlewareUsesRouteTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := NewMetrics()

	router := gin.New()
	router.Use(Middleware(m))
	router.GET("/apps/:name", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	router.GET("/metrics", gin.WrapH(m.Handler()))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/apps/navbar", nil))
	require.Equal(t, http.StatusNoContent, w.Code)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("GET", "/apps/:name", "204")))

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, w.Body.String(), "shell_http_requests_total")
}

func TestMiddlewareSkipsTimingForStreams(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := NewMetrics()

	router := gin.New()
	router.Use(Middleware(m, "/stream"))
	router.GET("/stream", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/stream", nil))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("GET", "/stream", "200")))
	assert.Equal(t, 0, testutil.CollectAndCount(m.RequestDuration))
}

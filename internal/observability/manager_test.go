package observability

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap/zaptest"

	"github.com/Additional-Code/tabline/internal/config"
)

func TestManagerPrometheusMetrics(t *testing.T) {
	var cfg config.Config
	cfg.Observability.ServiceName = "tabline-test"
	cfg.Observability.EnableMetrics = true
	cfg.Observability.MetricsExporter = "prometheus"
	cfg.Observability.PrometheusPath = "/metrics"

	lc := fxtest.NewLifecycle(t)
	mgr, err := NewManager(lc, cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	lc.RequireStart()
	defer lc.RequireStop()

	assert.True(t, mgr.MetricsEnabled())
	assert.False(t, mgr.TracingEnabled())
	require.NotNil(t, mgr.MetricsHandler())

	rec := httptest.NewRecorder()
	mgr.MetricsHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestManagerDisabledExporters(t *testing.T) {
	var cfg config.Config
	cfg.Observability.EnableTracing = true
	cfg.Observability.TraceExporter = "none"
	cfg.Observability.EnableMetrics = true
	cfg.Observability.MetricsExporter = "none"

	lc := fxtest.NewLifecycle(t)
	mgr, err := NewManager(lc, cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	lc.RequireStart().RequireStop()

	assert.False(t, mgr.TracingEnabled())
	assert.False(t, mgr.MetricsEnabled())
	assert.Nil(t, mgr.MetricsHandler())
}

func TestManagerOTLPRequiresEndpoint(t *testing.T) {
	var cfg config.Config
	cfg.Observability.EnableTracing = true
	cfg.Observability.TraceExporter = "otlp"

	_, err := NewManager(fxtest.NewLifecycle(t), cfg, zaptest.NewLogger(t))
	assert.ErrorContains(t, err, "OBS_OTLP_ENDPOINT")
}

package routes

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/orderflow-backend/api/controllers"
	"github.com/angelmondragon/orderflow-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/orderflow-backend/pkg/errors"
	"github.com/angelmondragon/orderflow-backend/pkg/logger"
	"github.com/angelmondragon/orderflow-backend/pkg/metrics"
	"github.com/angelmondragon/orderflow-backend/pkg/types"
)

type stubPinger struct {
	err error
}

func (s stubPinger) Ping(context.Context) error {
	return s.err
}

func testConfig() *config.Config {
	return &config.Config{App: config.AppConfig{Env: "test"}}
}

func serve(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthLive(t *testing.T) {
	router := NewRouter(testConfig(), logger.Nop(), Dependencies{DB: stubPinger{}})

	rec := serve(t, router, "/health/live")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "test", rec.Header().Get("X-Orderflow-Env"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}

func TestHealthReadyWithoutRedis(t *testing.T) {
	router := NewRouter(testConfig(), logger.Nop(), Dependencies{DB: stubPinger{}})

	rec := serve(t, router, "/health/ready")
	require.Equal(t, http.StatusOK, rec.Code)

	var body types.SuccessEnvelope
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	data := body.Data.(map[string]any)
	checks := data["checks"].(map[string]any)
	assert.Equal(t, "up", checks["database"])
	assert.Equal(t, "disabled", checks["redis"])
}

func TestHealthReadyReportsFailingDependency(t *testing.T) {
	router := NewRouter(testConfig(), logger.Nop(), Dependencies{
		DB:    stubPinger{},
		Redis: stubPinger{err: errors.New("connection refused")},
	})

	rec := serve(t, router, "/health/ready")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body types.ErrorEnvelope
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, string(pkgerrors.CodeDependency), body.Error.Code)
	checks := body.Error.Details.(map[string]any)
	assert.Equal(t, "down", checks["redis"])
	assert.Equal(t, "up", checks["database"])
}

func TestHealthReadyIncludesExtraProbes(t *testing.T) {
	router := NewRouter(testConfig(), logger.Nop(), Dependencies{
		DB:     stubPinger{},
		Probes: map[string]controllers.Pinger{"kafka": stubPinger{err: errors.New("no broker")}},
	})

	rec := serve(t, router, "/health/ready")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var body types.ErrorEnvelope
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "down", body.Error.Details.(map[string]any)["kafka"])
}

func TestRequestIDIsPropagated(t *testing.T) {
	router := NewRouter(testConfig(), logger.Nop(), Dependencies{DB: stubPinger{}})

	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	req.Header.Set("X-Request-Id", "req-42")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, "req-42", rec.Header().Get("X-Request-Id"))
}

func TestMetricsEndpointExposesRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	wm := metrics.NewWorkflowMetrics(reg)
	wm.IncTransition("sale", "completed", metrics.OutcomeApplied)

	router := NewRouter(testConfig(), logger.Nop(), Dependencies{DB: stubPinger{}, Registry: reg})

	rec := serve(t, router, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), `order_transitions_total{kind="sale",outcome="applied",to="completed"} 1`), string(body))
}

func TestUnknownRouteIsNotFound(t *testing.T) {
	router := NewRouter(testConfig(), logger.Nop(), Dependencies{DB: stubPinger{}})
	rec := serve(t, router, "/orders")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Conceptual-Machines/abc-api/internal/config"
	"github.com/Conceptual-Machines/abc-api/internal/metrics"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{Environment: "test"}
	cwMetrics, err := metrics.NewClient(context.Background(), cfg.Environment)
	require.NoError(t, err)

	router := gin.New()
	parseHandler := NewParseHandler(cfg, nil, cwMetrics)
	router.POST("/api/v1/parse", parseHandler.Parse)

	healthHandler := NewHealthHandler(nil)
	router.GET("/health", healthHandler.HealthCheck)

	tuneBookHandler := NewTuneBookHandler(cfg, nil)
	router.POST("/api/v1/tunebooks", tuneBookHandler.Create)
	router.GET("/api/v1/tunebooks/:id", tuneBookHandler.Get)
	return router
}

func postJSON(t *testing.T, router *gin.Engine, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestParseEndpoint(t *testing.T) {
	router := testRouter(t)

	w := postJSON(t, router, "/api/v1/parse", ParseRequest{
		Source: "X:1\nT:Test Tune\nL:1/4\nK:G\nGABc|",
	})
	require.Equal(t, http.StatusOK, w.Code)

	var resp ParseResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Tunes, 1)
	assert.Equal(t, 1, resp.Tunes[0].Ref)
	assert.Equal(t, "Test Tune", resp.Tunes[0].Title)
	require.Contains(t, resp.Tunes[0].Voices, "1")
	assert.NotEmpty(t, resp.Tunes[0].Voices["1"].Measures)
}

func TestParseEndpoint_MissingSource(t *testing.T) {
	router := testRouter(t)
	w := postJSON(t, router, "/api/v1/parse", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestParseEndpoint_InvalidVersionOverride(t *testing.T) {
	router := testRouter(t)
	w := postJSON(t, router, "/api/v1/parse", ParseRequest{
		Source:        "X:1\nK:C\nC",
		FormatVersion: "latest",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestParseEndpoint_DiagnosticsReported(t *testing.T) {
	router := testRouter(t)

	// "@" matches nothing: the tolerant lexer skips it and diagnoses.
	w := postJSON(t, router, "/api/v1/parse", ParseRequest{
		Source: "X:1\nL:1/4\nK:C\nC@D|",
	})
	require.Equal(t, http.StatusOK, w.Code)

	var resp ParseResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Diagnostics)
	require.Len(t, resp.Tunes, 1)
}

func TestTuneBookEndpoints_StorageUnavailable(t *testing.T) {
	// Without a configured database the parse endpoint keeps working but
	// tune book storage reports unavailable.
	router := testRouter(t)

	w := postJSON(t, router, "/api/v1/tunebooks", CreateTuneBookRequest{
		Source: "X:1\nK:C\nCDE|",
	})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/tunebooks/some-id", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHealthEndpoint(t *testing.T) {
	router := testRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp["status"])
	assert.Equal(t, "not configured", resp["database"])
}

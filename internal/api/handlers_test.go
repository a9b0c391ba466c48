package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flightassist/skyguard/internal/agent"
	"github.com/flightassist/skyguard/internal/ai/pattern"
	"github.com/flightassist/skyguard/internal/audit"
	"github.com/flightassist/skyguard/internal/config"
	"github.com/flightassist/skyguard/internal/runway"
	"github.com/flightassist/skyguard/internal/tools"
	"github.com/flightassist/skyguard/internal/weather"
	"github.com/flightassist/skyguard/pkg/logger"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New(logger.Config{Level: "error", Format: "json"})
	require.NoError(t, err)
	return log
}

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Port:               8080,
			Host:               "127.0.0.1",
			CORSAllowedOrigins: []string{"*"},
		},
		Logging: config.LoggingConfig{Level: "error", Format: "json"},
	}
}

func testAgent(t *testing.T) *agent.Agent {
	t.Helper()
	registry := tools.NewRegistry()
	registry.Register(tools.FetchAircraftSpecsDescriptor())
	registry.Register(tools.CalculateFuelBurnDescriptor())
	registry.Register(tools.QueryManualDescriptor())
	registry.Register(tools.SelectBestRunwayDescriptor(runway.Catalog{"KDEN": {"26", "8"}}, 15, true))
	registry.Register(tools.LogFlightEventDescriptor(tools.NewMemoryEventLogger()))

	sink := audit.NewSink(filepath.Join(t.TempDir(), "audit.jsonl"), testLogger(t))
	return agent.New(registry, nil, pattern.New(), sink, testLogger(t), agent.DefaultConfig())
}

func testWeatherService(t *testing.T, upstreamUp bool) *weather.Service {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !upstreamUp {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"icaoId":"KDEN","wdir":180,"wspd":10,"visib":"10","fltCat":"VFR"}]`))
	}))
	t.Cleanup(srv.Close)

	client := weather.NewClient(weather.Config{APIBaseURL: srv.URL, RequestTimeoutSeconds: 5, MaxRetries: 0}, testLogger(t))
	sink := audit.NewSink(filepath.Join(t.TempDir(), "audit.jsonl"), testLogger(t))
	return weather.NewService(client, sink, 60, testLogger(t))
}

func TestHandleQueryRejectsEmptyBody(t *testing.T) {
	h := NewHandler(testAgent(t), nil, testConfig(), testLogger(t))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/query", bytes.NewBufferString(`{}`))
	rec := httptest.NewRecorder()

	h.HandleQuery(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleQueryReturnsWireShape(t *testing.T) {
	h := NewHandler(testAgent(t), nil, testConfig(), testLogger(t))
	body, err := json.Marshal(queryRequest{Query: "hello"})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/query", bytes.NewBuffer(body))
	rec := httptest.NewRecorder()

	h.HandleQuery(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp wireResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "text", resp.ResponseType)
	assert.Equal(t, "skipped", resp.GuardrailStatus)
	assert.False(t, resp.IsFallback)
}

func TestHandleQueryStreamEmitsNDJSONEndingInFinal(t *testing.T) {
	h := NewHandler(testAgent(t), nil, testConfig(), testLogger(t))
	body, err := json.Marshal(queryRequest{Query: "hello"})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/query/stream", bytes.NewBuffer(body))
	rec := httptest.NewRecorder()

	h.HandleQueryStream(rec, req)

	lines := bytes.Split(bytes.TrimSpace(rec.Body.Bytes()), []byte("\n"))
	require.NotEmpty(t, lines)

	var last struct {
		Type string `json:"type"`
	}
	require.NoError(t, json.Unmarshal(lines[len(lines)-1], &last))
	assert.Equal(t, "final", last.Type)
}

func TestHandleHealthReportsOKWithoutWeatherService(t *testing.T) {
	h := NewHandler(testAgent(t), nil, testConfig(), testLogger(t))
	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	rec := httptest.NewRecorder()

	h.HandleHealth(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, true, body["weather_healthy"])
}

func TestHandleHealthReportsOKAfterLiveFetch(t *testing.T) {
	ws := testWeatherService(t, true)
	_, err := ws.FetchMETAR(context.Background(), "KDEN")
	require.NoError(t, err)

	h := NewHandler(testAgent(t), ws, testConfig(), testLogger(t))
	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	rec := httptest.NewRecorder()

	h.HandleHealth(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, true, body["weather_healthy"])
}

func TestHandleHealthReportsDegradedAfterFallbackFetch(t *testing.T) {
	ws := testWeatherService(t, false)
	_, err := ws.FetchMETAR(context.Background(), "KDEN")
	require.NoError(t, err)

	h := NewHandler(testAgent(t), ws, testConfig(), testLogger(t))
	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	rec := httptest.NewRecorder()

	h.HandleHealth(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "degraded", body["status"])
	assert.Equal(t, false, body["weather_healthy"])
}

package tools

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flightassist/skyguard/internal/audit"
	"github.com/flightassist/skyguard/internal/runway"
	"github.com/flightassist/skyguard/internal/weather"
	"github.com/flightassist/skyguard/pkg/logger"
)

func testLogger(t *testing.T) *logger.Logger {
	log, err := logger.New(logger.Config{Level: "error", Format: "json"})
	require.NoError(t, err)
	return log
}

func TestRegistryExecuteUnknownTool(t *testing.T) {
	r := NewRegistry()
	res := r.Execute(context.Background(), "nope", nil)
	assert.NotEmpty(t, res.Error)
}

func TestRegistryValidatesRequiredArgs(t *testing.T) {
	r := NewRegistry()
	r.Register(FetchAircraftSpecsDescriptor())
	res := r.Execute(context.Background(), "fetch_aircraft_specs", map[string]interface{}{})
	assert.Contains(t, res.Error, "missing required argument")
}

func TestFetchAircraftSpecsKnown(t *testing.T) {
	r := NewRegistry()
	r.Register(FetchAircraftSpecsDescriptor())
	res := r.Execute(context.Background(), "fetch_aircraft_specs", map[string]interface{}{"aircraft_id": "N12345"})
	require.Empty(t, res.Error)
	assert.Equal(t, "Cessna 172", res.Data["type"])
}

func TestFetchAircraftSpecsUnknown(t *testing.T) {
	r := NewRegistry()
	r.Register(FetchAircraftSpecsDescriptor())
	res := r.Execute(context.Background(), "fetch_aircraft_specs", map[string]interface{}{"aircraft_id": "N00000"})
	assert.Contains(t, res.Error, "not found")
}

func TestCalculateFuelBurn(t *testing.T) {
	r := NewRegistry()
	r.Register(CalculateFuelBurnDescriptor())
	res := r.Execute(context.Background(), "calculate_fuel_burn", map[string]interface{}{
		"distance_nm": 200.0, "aircraft_type": "Cessna 172", "headwind_kt": 10.0,
	})
	require.Empty(t, res.Error)
	assert.InDelta(t, 2.0, res.Data["flight_hours"], 0.01)
}

func TestQueryManualKnownTopic(t *testing.T) {
	r := NewRegistry()
	r.Register(QueryManualDescriptor())
	res := r.Execute(context.Background(), "query_manual", map[string]interface{}{"topic": "crosswind_limits"})
	require.Empty(t, res.Error)
	assert.Contains(t, res.Data["result"], "12 knots")
}

func TestLogFlightEvent(t *testing.T) {
	r := NewRegistry()
	mem := NewMemoryEventLogger()
	r.Register(LogFlightEventDescriptor(mem))
	res := r.Execute(context.Background(), "log_flight_event", map[string]interface{}{
		"pilot_id": "P1", "event_type": "flight_completed", "data": map[string]interface{}{"hours": 2.0},
	})
	require.Empty(t, res.Error)
	assert.True(t, res.Data["success"].(bool))
	assert.Len(t, mem.Events(), 1)
}

func TestFetchMETARDescriptor(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	log := testLogger(t)
	client := weather.NewClient(weather.Config{APIBaseURL: srv.URL, RequestTimeoutSeconds: 5, MaxRetries: 0}, log)
	sink := audit.NewSink(t.TempDir()+"/audit.jsonl", log)
	service := weather.NewService(client, sink, 60, log)

	r := NewRegistry()
	r.Register(FetchMETARDescriptor(service))
	res := r.Execute(context.Background(), "fetch_metar", map[string]interface{}{"icao_code": "KDEN"})
	require.Empty(t, res.Error)
	assert.Equal(t, "fallback", res.Data["source"])
}

func TestFetchMETARDescriptorRejectsMalformedICAO(t *testing.T) {
	log := testLogger(t)
	client := weather.NewClient(weather.Config{APIBaseURL: "http://unused.invalid", RequestTimeoutSeconds: 5, MaxRetries: 0}, log)
	sink := audit.NewSink(t.TempDir()+"/audit.jsonl", log)
	service := weather.NewService(client, sink, 60, log)

	r := NewRegistry()
	r.Register(FetchMETARDescriptor(service))
	res := r.Execute(context.Background(), "fetch_metar", map[string]interface{}{"icao_code": "toolongname"})
	assert.Nil(t, res.Data)
	assert.Contains(t, res.Error, "invalid station")
}

func TestSelectBestRunwayDescriptorWithExplicitRunways(t *testing.T) {
	r := NewRegistry()
	r.Register(SelectBestRunwayDescriptor(nil, 10, false))
	res := r.Execute(context.Background(), "select_best_runway", map[string]interface{}{
		"metar_data": map[string]interface{}{"station": "KDEN", "wind": "260 @ 13"},
		"runways":    []interface{}{"26", "08"},
	})
	require.Empty(t, res.Error)
	best := res.Data["best"].(map[string]interface{})
	assert.Equal(t, "26", best["designator"])
}

func TestSelectBestRunwayDescriptorUsesCatalogFallback(t *testing.T) {
	catalog := runway.Catalog{"KDEN": {"26", "08"}}
	r := NewRegistry()
	r.Register(SelectBestRunwayDescriptor(catalog, 10, false))
	res := r.Execute(context.Background(), "select_best_runway", map[string]interface{}{
		"metar_data": map[string]interface{}{"station": "KDEN", "wind": "260 @ 13"},
	})
	require.Empty(t, res.Error)
	assert.NotNil(t, res.Data["best"])
}

func TestSelectBestRunwayDescriptorResolvesStationVariation(t *testing.T) {
	r := NewRegistry()
	r.Register(SelectBestRunwayDescriptor(nil, 10, true))
	res := r.Execute(context.Background(), "select_best_runway", map[string]interface{}{
		"metar_data": map[string]interface{}{"station": "KDEN", "wind": "220 @ 10"},
		"runways":    []interface{}{"26"},
	})
	require.Empty(t, res.Error)
	best := res.Data["best"].(map[string]interface{})
	assert.InDelta(t, 7.4, best["crosswind_kt"], 0.5)
}

func TestGenerateATCPhraseLandingClearance(t *testing.T) {
	r := NewRegistry()
	r.Register(GenerateATCPhraseDescriptor())
	res := r.Execute(context.Background(), "generate_atc_phrase", map[string]interface{}{
		"metar_data": map[string]interface{}{
			"station": "KDEN", "wind": "260 @ 13", "wind_gust": 18.0, "flight_category": "VFR",
		},
		"runway_designator": "26",
		"station_callsign":  "Denver Tower",
	})
	require.Empty(t, res.Error)
	assert.Contains(t, res.Data["full_transmission"], "Denver Tower")
	assert.Contains(t, res.Data["phrase"], "cleared to land")
}

func TestGenerateATCPhraseUnknownType(t *testing.T) {
	r := NewRegistry()
	r.Register(GenerateATCPhraseDescriptor())
	res := r.Execute(context.Background(), "generate_atc_phrase", map[string]interface{}{
		"metar_data":         map[string]interface{}{"wind": "260 @ 13"},
		"runway_designator":  "26",
		"phrase_type":        "bogus",
	})
	assert.Contains(t, res.Error, "unknown phrase_type")
}

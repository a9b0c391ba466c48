package weather

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flightassist/skyguard/internal/audit"
	"github.com/flightassist/skyguard/pkg/logger"
)

func testLogger(t *testing.T) *logger.Logger {
	log, err := logger.New(logger.Config{Level: "error", Format: "json"})
	require.NoError(t, err)
	return log
}

func TestFallbackForKnownStation(t *testing.T) {
	rec := fallbackFor("KDEN")
	assert.Equal(t, SourceFallback, rec.Source)
	assert.Equal(t, "KDEN", rec.Station)
	require.NotNil(t, rec.WindSpeed)
	assert.Equal(t, 15, *rec.WindSpeed)
}

func TestFallbackForUnknownStationIsDeterministic(t *testing.T) {
	a := syntheticFallback("ZZZZ")
	b := syntheticFallback("ZZZZ")
	assert.Equal(t, a, b)
}

func TestFallbackForUnknownStationVariesByStation(t *testing.T) {
	a := syntheticFallback("AAAA")
	b := syntheticFallback("BBBB")
	assert.NotEqual(t, a.WindDirection, b.WindDirection)
}

func TestFallbackForEmptyStation(t *testing.T) {
	rec := fallbackFor("")
	assert.Equal(t, CategoryUnknown, rec.FlightCategory)
	assert.Nil(t, rec.WindSpeed)
}

func TestRecordWindString(t *testing.T) {
	rec := Record{WindDirection: intp(220), WindSpeed: intp(12), WindGust: intp(18)}
	assert.Equal(t, "220 @ 12 G 18", rec.WindString())

	rec2 := Record{WindSpeed: intp(5)}
	assert.Equal(t, "VRB @ 5", rec2.WindString())

	rec3 := Record{}
	assert.Equal(t, "", rec3.WindString())
}

func TestServiceFetchMETARUsesUpstream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode([]rawMETAR{{
			Station: "KDEN", ObsTime: "181853Z", RawText: "KDEN 181853Z 18015KT 10SM",
			WindDir: intp(180), WindSpeed: intp(15), Visib: "10", FlightRules: "VFR",
		}})
	}))
	defer srv.Close()

	log := testLogger(t)
	client := NewClient(Config{APIBaseURL: srv.URL, RequestTimeoutSeconds: 5, MaxRetries: 1}, log)
	sink := audit.NewSink(t.TempDir()+"/audit.jsonl", log)
	service := NewService(client, sink, 60, log)

	rec, err := service.FetchMETAR(context.Background(), "kden")
	require.NoError(t, err)
	assert.Equal(t, SourceLive, rec.Source)
	assert.Equal(t, "KDEN", rec.Station)
}

func TestServiceFetchMETARFallsBackOnUpstreamFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	log := testLogger(t)
	client := NewClient(Config{APIBaseURL: srv.URL, RequestTimeoutSeconds: 5, MaxRetries: 0}, log)
	sink := audit.NewSink(t.TempDir()+"/audit.jsonl", log)
	service := NewService(client, sink, 60, log)

	rec, err := service.FetchMETAR(context.Background(), "KDEN")
	require.NoError(t, err)
	assert.Equal(t, SourceFallback, rec.Source)
}

func TestServiceHealthReportsHealthyBeforeAnyFetch(t *testing.T) {
	log := testLogger(t)
	client := NewClient(Config{APIBaseURL: "http://unused.invalid", RequestTimeoutSeconds: 5, MaxRetries: 0}, log)
	sink := audit.NewSink(t.TempDir()+"/audit.jsonl", log)
	service := NewService(client, sink, 60, log)

	assert.True(t, service.Health())
}

func TestServiceHealthTracksLastFetchSource(t *testing.T) {
	up := true
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !up {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode([]rawMETAR{{Station: "KDEN", WindSpeed: intp(10), Visib: "10"}})
	}))
	defer srv.Close()

	log := testLogger(t)
	client := NewClient(Config{APIBaseURL: srv.URL, RequestTimeoutSeconds: 5, MaxRetries: 0}, log)
	sink := audit.NewSink(t.TempDir()+"/audit.jsonl", log)
	service := NewService(client, sink, 0, log)

	_, err := service.FetchMETAR(context.Background(), "KDEN")
	require.NoError(t, err)
	assert.True(t, service.Health())

	up = false
	_, err = service.FetchMETAR(context.Background(), "KBDU")
	require.NoError(t, err)
	assert.False(t, service.Health())
}

func TestServiceFetchMETARRejectsMalformedICAO(t *testing.T) {
	log := testLogger(t)
	client := NewClient(Config{APIBaseURL: "http://unused.invalid", RequestTimeoutSeconds: 5, MaxRetries: 0}, log)
	sink := audit.NewSink(t.TempDir()+"/audit.jsonl", log)
	service := NewService(client, sink, 60, log)

	for _, icao := range []string{"12", "toolongname", "", "KD3N"} {
		_, err := service.FetchMETAR(context.Background(), icao)
		require.Error(t, err)
		var invalid *InvalidStationError
		assert.ErrorAs(t, err, &invalid)
	}
}

func TestServiceFetchMETARCachesResult(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode([]rawMETAR{{Station: "KBDU", WindSpeed: intp(10), Visib: "10"}})
	}))
	defer srv.Close()

	log := testLogger(t)
	client := NewClient(Config{APIBaseURL: srv.URL, RequestTimeoutSeconds: 5, MaxRetries: 1}, log)
	sink := audit.NewSink(t.TempDir()+"/audit.jsonl", log)
	service := NewService(client, sink, 60, log)

	_, err := service.FetchMETAR(context.Background(), "KBDU")
	require.NoError(t, err)
	_, err = service.FetchMETAR(context.Background(), "KBDU")
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

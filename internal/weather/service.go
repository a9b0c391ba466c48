package weather

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/flightassist/skyguard/internal/audit"
	"github.com/flightassist/skyguard/pkg/logger"
)

// cacheEntry pairs a Record with the time it was stored, for TTL eviction.
type cacheEntry struct {
	record   Record
	storedAt time.Time
}

// Service is the C2 Weather Fetcher contract: for a well-formed ICAO,
// FetchMETAR never returns an error to the caller, always resolving to
// either a live or a deterministic fallback Record, and always leaving a
// fetch trace in the audit sink. A malformed ICAO is the one error case.
type Service struct {
	client *Client
	sink   *audit.Sink
	logger *logger.Logger

	ttl   time.Duration
	mu    sync.RWMutex
	cache map[string]cacheEntry

	lastSource  Source
	everFetched bool
}

// NewService wires an upstream Client, audit Sink, and a short-TTL
// per-ICAO cache into the weather fetcher.
func NewService(client *Client, sink *audit.Sink, ttlSeconds int, log *logger.Logger) *Service {
	return &Service{
		client: client,
		sink:   sink,
		logger: log.Named("weather-service"),
		ttl:    time.Duration(ttlSeconds) * time.Second,
		cache:  make(map[string]cacheEntry),
	}
}

// FetchMETAR resolves the METAR for icao, preferring a fresh cache entry,
// then the upstream client, then the deterministic fallback catalog if the
// upstream call fails. Once past validation it never returns a non-nil
// error for upstream failure: that failure is reflected in the Record's
// Source field instead. A malformed icao is rejected with
// *InvalidStationError before any cache lookup, upstream call, or audit
// trace.
func (s *Service) FetchMETAR(ctx context.Context, icao string) (Record, error) {
	icao = strings.ToUpper(strings.TrimSpace(icao))
	if !isValidICAO(icao) {
		return Record{}, &InvalidStationError{ICAO: icao}
	}

	start := time.Now()

	if rec, ok := s.fromCache(icao); ok {
		s.emitFetchTrace(icao, true, time.Since(start), "cache")
		s.recordSource(rec.Source)
		return rec, nil
	}

	rec, err := s.client.FetchMETAR(ctx, icao)
	latency := time.Since(start)

	if err != nil {
		s.logger.Warn("upstream METAR fetch failed, using fallback",
			logger.String("airport", icao), logger.Error(err))
		rec = fallbackFor(icao)
		rec.FetchedAt = time.Now()
		s.store(icao, rec)
		s.emitFetchTrace(icao, false, latency, "upstream")
		s.recordSource(rec.Source)
		return rec, nil
	}

	rec.FetchedAt = time.Now()
	s.store(icao, rec)
	s.emitFetchTrace(icao, true, latency, "upstream")
	s.recordSource(rec.Source)
	return rec, nil
}

// Health reports whether the most recent FetchMETAR call resolved to a
// live upstream record rather than the fallback catalog. It never issues
// its own upstream probe, so calling it is free of side effects; before
// any fetch has happened it reports healthy, since there's no evidence of
// trouble yet.
func (s *Service) Health() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !s.everFetched || s.lastSource == SourceLive
}

func (s *Service) recordSource(src Source) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSource = src
	s.everFetched = true
}

func (s *Service) fromCache(icao string) (Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.cache[icao]
	if !ok {
		return Record{}, false
	}
	if time.Since(entry.storedAt) > s.ttl {
		return Record{}, false
	}
	return entry.record, true
}

func (s *Service) store(icao string, rec Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache[icao] = cacheEntry{record: rec, storedAt: time.Now()}
}

func (s *Service) emitFetchTrace(icao string, ok bool, latency time.Duration, path string) {
	b := audit.NewBuilder(audit.CategoryFetch, time.Now()).
		WithContext(map[string]interface{}{
			"airport": icao,
			"path":    path,
		})
	b.Log("fetch", map[string]interface{}{
		"ok":         ok,
		"latency_ms": latency.Milliseconds(),
	})
	s.sink.Emit(b.Build())
}

package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/flightassist/skyguard/pkg/logger"
)

// Config controls the upstream HTTP client's behavior.
type Config struct {
	APIBaseURL            string
	RequestTimeoutSeconds int
	MaxRetries            int
	CacheTTLSeconds       int
}

// rawMETAR is the upstream wire shape: a loosely-typed aviationweather.gov
// style METAR record. Fields absent upstream decode to zero values, which
// the mapping in toRecord treats as "unknown" rather than "zero knots".
type rawMETAR struct {
	Station     string  `json:"icaoId"`
	ObsTime     string  `json:"reportTime"`
	RawText     string  `json:"rawOb"`
	WindDir     *int    `json:"wdir"`
	WindSpeed   *int    `json:"wspd"`
	WindGust    *int    `json:"wgst"`
	Temp        *int    `json:"temp"`
	Dewpoint    *int    `json:"dewp"`
	Visib       string  `json:"visib"`
	Altimeter   *string `json:"altim"`
	FlightRules string  `json:"fltCat"`
}

// Client performs HTTP requests against the upstream METAR provider with
// retry/backoff.
type Client struct {
	config     Config
	httpClient *http.Client
	logger     *logger.Logger
}

// NewClient creates a new upstream METAR client.
func NewClient(cfg Config, log *logger.Logger) *Client {
	return &Client{
		config: cfg,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.RequestTimeoutSeconds) * time.Second,
		},
		logger: log.Named("weather-client"),
	}
}

// FetchMETAR performs the upstream HTTP round trip for one station,
// retrying with exponential backoff. Callers never see a transport error
// directly: Service.FetchMETAR absorbs it into a fallback Record.
func (c *Client) FetchMETAR(ctx context.Context, icao string) (Record, error) {
	url := fmt.Sprintf("%s/metar?ids=%s&format=json", c.config.APIBaseURL, icao)

	var raw []rawMETAR
	if err := c.fetchWithRetry(ctx, url, icao, &raw); err != nil {
		return Record{}, err
	}
	if len(raw) == 0 {
		return Record{}, fmt.Errorf("no METAR data found for %s", icao)
	}
	return toRecord(raw[0]), nil
}

func (c *Client) fetchWithRetry(ctx context.Context, url, icao string, target interface{}) error {
	var lastErr error

	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(500*(1<<uint(attempt-1))) * time.Millisecond
			c.logger.Info("retrying METAR fetch",
				logger.String("airport", icao),
				logger.Int("attempt", attempt),
				logger.String("backoff", backoff.String()))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("METAR request failed: %w", err)
			c.logger.Warn("METAR request failed, may retry",
				logger.String("airport", icao), logger.Error(err),
				logger.Int("attempt", attempt+1))
			continue
		}

		func() {
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				lastErr = fmt.Errorf("unexpected status code: %d", resp.StatusCode)
				c.logger.Warn("METAR upstream returned non-OK status, may retry",
					logger.String("airport", icao),
					logger.Int("status_code", resp.StatusCode))
				return
			}
			if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
				lastErr = fmt.Errorf("error decoding METAR response: %w", err)
				return
			}
			lastErr = nil
		}()

		if lastErr == nil {
			return nil
		}
	}

	c.logger.Error("all attempts to fetch METAR failed",
		logger.String("airport", icao), logger.Error(lastErr))
	return lastErr
}

func toRecord(raw rawMETAR) Record {
	rec := Record{
		Station:       raw.Station,
		Time:          raw.ObsTime,
		Raw:           raw.RawText,
		WindDirection: raw.WindDir,
		WindSpeed:     raw.WindSpeed,
		WindGust:      raw.WindGust,
		TemperatureC:  raw.Temp,
		DewpointC:     raw.Dewpoint,
		Altimeter:     raw.Altimeter,
		Source:        SourceLive,
	}
	if v, err := strconv.ParseFloat(raw.Visib, 64); err == nil {
		rec.VisibilitySM = &v
	}
	switch raw.FlightRules {
	case "VFR", "MVFR", "IFR", "LIFR":
		rec.FlightCategory = FlightCategory(raw.FlightRules)
	default:
		rec.FlightCategory = CategoryUnknown
	}
	return rec
}

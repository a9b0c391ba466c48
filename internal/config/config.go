// Package config loads and validates the service's TOML configuration.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Config is the root configuration structure, decoded from a single TOML
// file and validated before the service starts.
type Config struct {
	Server    ServerConfig    `toml:"server"`    // HTTP transport settings
	Logging   LoggingConfig   `toml:"logging"`   // Structured logging settings
	Station   StationConfig   `toml:"station"`   // Default airport and runway-selection policy
	Weather   WeatherConfig   `toml:"weather"`   // Upstream METAR fetcher settings
	Agent     AgentConfig     `toml:"agent"`      // Agentic loop ceilings and deadlines
	Guardrail GuardrailConfig `toml:"guardrail"` // C7/C8 verification policy
	AI        AIConfig        `toml:"ai"`         // LLM backend selection
	Audit     AuditConfig     `toml:"audit"`     // C9 audit trace sink
}

// ServerConfig contains HTTP server configuration settings.
type ServerConfig struct {
	Port               int      `toml:"port"`                  // Primary HTTP port for the server
	Host               string   `toml:"host"`                  // Host address to bind to (e.g., 127.0.0.1 for localhost only, 0.0.0.0 for all interfaces)
	CORSAllowedOrigins []string `toml:"cors_allowed_origins"`  // List of origins allowed for CORS requests (use ["*"] for all origins)
	ReadTimeoutSecs    int      `toml:"read_timeout_seconds"`  // Maximum duration for reading the entire request (0 = no timeout)
	WriteTimeoutSecs   int      `toml:"write_timeout_seconds"` // Maximum duration for writing the response (0 = no timeout, recommended for streaming)
	IdleTimeoutSecs    int      `toml:"idle_timeout_seconds"`  // Maximum duration to wait for the next request when keep-alives are enabled
	StaticFilesDir     string   `toml:"static_files_dir"`      // Directory to serve static files from (e.g., "www")
}

// LoggingConfig contains application logging configuration.
type LoggingConfig struct {
	Level  string `toml:"level"`  // Log level: "debug", "info", "warn", or "error"
	Format string `toml:"format"` // Log format: "json" (structured) or "console" (human-readable)
}

// StationConfig carries the default airport used when a query doesn't
// name one, plus each known airport's runway catalog.
type StationConfig struct {
	DefaultAirportCode   string              `toml:"default_airport_code"`    // Loaded and defaulted to KDEN but not read elsewhere; the pattern decider's fallback airport is fixed at KDEN
	RunwayCatalog        map[string][]string `toml:"runway_catalog"`          // ICAO -> runway designators (e.g. {"KDEN": ["8","26","34L","34R"]})
	DefaultMaxCrosswindKt float64            `toml:"default_max_crosswind_kt"` // Runway-selection crosswind limit absent a tool-call override
}

// WeatherConfig contains settings for the upstream METAR fetcher.
type WeatherConfig struct {
	APIBaseURL            string `toml:"api_base_url"`              // Base URL of the upstream aviationweather.gov-style METAR API
	RequestTimeoutSeconds int    `toml:"request_timeout_seconds"`   // Per-attempt HTTP timeout
	MaxRetries            int    `toml:"max_retries"`               // Exponential-backoff retry attempts before falling back
	CacheTTLSeconds       int    `toml:"cache_ttl_seconds"`         // How long a fetched record is served from cache
}

// AgentConfig tunes the C5 reasoning loop's ceilings and deadlines.
type AgentConfig struct {
	MaxLoops          int `toml:"max_loops"`            // Hard ceiling on THINK/ACT/OBSERVE/DECIDE iterations
	RequestDeadlineMs int `toml:"request_deadline_ms"`  // Overall per-request deadline
	CallDeadlineMs    int `toml:"call_deadline_ms"`     // Per-tool-call / per-LLM-call deadline
}

// GuardrailConfig tunes the C7/C8 verification policy.
//
// MagneticCorrectionEnabled is a *bool, not a bool: BurntSushi/toml leaves
// an omitted key at Go's zero value, which for a bool is false, and that
// would silently flip the documented default. The pointer lets
// applyDefaults tell "absent from the file" (nil) apart from "explicitly
// set to false" (non-nil, false) and default only the former to true.
type GuardrailConfig struct {
	ThresholdKt               float64 `toml:"threshold_kt"`                // Numeric tolerance T in C7 (default 3.0)
	UseGustForVerification    bool    `toml:"use_gust_for_verification"`   // If true, verification uses gust speed when > sustained
	MagneticCorrectionEnabled *bool   `toml:"magnetic_correction_enabled"` // If true (the default), applies station variation before computing Delta
}

// MagneticCorrection reports the effective magnetic-correction setting,
// defaulting to true when the config file didn't set one. Load always
// populates the pointer via applyDefaults; callers that construct a Config
// directly (tests) leave it nil and get the documented default here.
func (g GuardrailConfig) MagneticCorrection() bool {
	return g.MagneticCorrectionEnabled == nil || *g.MagneticCorrectionEnabled
}

// AIConfig selects and configures the C6 LLM adapter.
type AIConfig struct {
	Backend     string `toml:"backend"`      // "pattern" (deterministic) or "gemini" (external)
	GeminiModel string `toml:"gemini_model"` // Gemini model id, e.g. "gemini-2.0-flash"
	GeminiAPIKeyEnv string `toml:"gemini_api_key_env"` // Name of the environment variable holding the Gemini API key
}

// AuditConfig points at the C9 audit trace sink.
type AuditConfig struct {
	LogPath string `toml:"log_path"` // Append-only JSONL sink path for C9
}

// Load decodes the configuration from the given TOML file path and
// validates it.
func Load(path string) (*Config, error) {
	var cfg Config

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", path)
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadWithFallback tries a preferred path, then a small list of
// conventional locations, returning the first config that loads
// successfully.
func LoadWithFallback(preferredPath string) (*Config, error) {
	searchPaths := []string{preferredPath, "configs/config.toml", "config.toml"}

	uniquePaths := make([]string, 0, len(searchPaths))
	seen := make(map[string]bool)
	for _, path := range searchPaths {
		if path != "" && !seen[path] {
			uniquePaths = append(uniquePaths, path)
			seen[path] = true
		}
	}

	var lastErr error
	for _, path := range uniquePaths {
		if _, err := os.Stat(path); err == nil {
			cfg, err := Load(path)
			if err != nil {
				lastErr = fmt.Errorf("failed to load config from %s: %w", path, err)
				continue
			}
			return cfg, nil
		}
		lastErr = fmt.Errorf("config file not found: %s", path)
	}

	return nil, fmt.Errorf("config file not found in any of the expected locations: %v. Last error: %w", uniquePaths, lastErr)
}

// applyDefaults fills in the documented defaults for any zero-valued
// field a TOML file left unset.
func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	if c.Station.DefaultAirportCode == "" {
		c.Station.DefaultAirportCode = "KDEN"
	}
	if c.Station.DefaultMaxCrosswindKt == 0 {
		c.Station.DefaultMaxCrosswindKt = 15.0
	}
	if c.Weather.APIBaseURL == "" {
		c.Weather.APIBaseURL = "https://aviationweather.gov/api/data"
	}
	if c.Weather.RequestTimeoutSeconds == 0 {
		c.Weather.RequestTimeoutSeconds = 5
	}
	if c.Weather.MaxRetries == 0 {
		c.Weather.MaxRetries = 3
	}
	if c.Weather.CacheTTLSeconds == 0 {
		c.Weather.CacheTTLSeconds = 60
	}
	if c.Agent.MaxLoops == 0 {
		c.Agent.MaxLoops = 8
	}
	if c.Agent.RequestDeadlineMs == 0 {
		c.Agent.RequestDeadlineMs = 30000
	}
	if c.Agent.CallDeadlineMs == 0 {
		c.Agent.CallDeadlineMs = 10000
	}
	if c.Guardrail.ThresholdKt == 0 {
		c.Guardrail.ThresholdKt = 3.0
	}
	if c.Guardrail.MagneticCorrectionEnabled == nil {
		enabled := true
		c.Guardrail.MagneticCorrectionEnabled = &enabled
	}
	if c.AI.Backend == "" {
		c.AI.Backend = "pattern"
	}
	if c.AI.GeminiModel == "" {
		c.AI.GeminiModel = "gemini-2.0-flash"
	}
	if c.AI.GeminiAPIKeyEnv == "" {
		c.AI.GeminiAPIKeyEnv = "GEMINI_API_KEY"
	}
	if c.Audit.LogPath == "" {
		c.Audit.LogPath = "audit.jsonl"
	}
}

// Validate checks invariants applyDefaults can't repair on its own.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug/info/warn/error, got %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("logging.format must be json or console, got %q", c.Logging.Format)
	}
	if c.Agent.MaxLoops <= 0 {
		return fmt.Errorf("agent.max_loops must be positive, got %d", c.Agent.MaxLoops)
	}
	if c.Guardrail.ThresholdKt < 0 {
		return fmt.Errorf("guardrail.threshold_kt must be non-negative, got %f", c.Guardrail.ThresholdKt)
	}
	switch c.AI.Backend {
	case "pattern", "gemini":
	default:
		return fmt.Errorf("ai.backend must be pattern or gemini, got %q", c.AI.Backend)
	}
	return nil
}

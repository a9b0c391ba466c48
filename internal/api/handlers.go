package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/flightassist/skyguard/internal/agent"
	"github.com/flightassist/skyguard/internal/config"
	"github.com/flightassist/skyguard/internal/weather"
	"github.com/flightassist/skyguard/pkg/logger"
)

// Handler contains the API handlers for the query surface.
type Handler struct {
	agent   *agent.Agent
	weather *weather.Service
	config  *config.Config
	logger  *logger.Logger
}

// NewHandler creates a new API handler.
func NewHandler(agentSvc *agent.Agent, weatherSvc *weather.Service, cfg *config.Config, log *logger.Logger) *Handler {
	return &Handler{
		agent:   agentSvc,
		weather: weatherSvc,
		config:  cfg,
		logger:  log.Named("api-handler"),
	}
}

// queryRequest mirrors the documented request shape.
type queryRequest struct {
	Query    string `json:"query"`
	Location string `json:"location,omitempty"`
	UserID   string `json:"user_id,omitempty"`
}

// HandleQuery answers a single request with one JSON response after the
// full Think-Act-Observe-Decide loop and guardrail pipeline have run.
func (h *Handler) HandleQuery(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Query == "" {
		http.Error(w, "query is required", http.StatusBadRequest)
		return
	}

	resp, err := h.agent.Run(r.Context(), req.Query)
	if err != nil {
		h.logger.Error("agent run failed", logger.Error(err), logger.String("query", req.Query))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	h.logger.Info("query answered",
		logger.String("response_type", resp.ResponseType),
		logger.String("guardrail_status", string(resp.GuardrailStatus)),
		logger.Bool("is_fallback", resp.IsFallback),
		logger.Duration("duration", time.Since(start)),
	)

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(toWireResponse(resp)); err != nil {
		h.logger.Error("failed to encode response", logger.Error(err))
	}
}

// HandleQueryStream answers a request with a line-delimited JSON event
// stream, one object per line, flushed as each event is produced.
func (h *Handler) HandleQueryStream(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Query == "" {
		http.Error(w, "query is required", http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Cache-Control", "no-cache, no-store")
	w.Header().Set("Connection", "keep-alive")

	flusher, canFlush := w.(http.Flusher)

	events := h.agent.RunStream(r.Context(), req.Query)
	encoder := json.NewEncoder(w)
	for ev := range events {
		if err := encoder.Encode(ev); err != nil {
			h.logger.Warn("failed to encode stream event, closing", logger.Error(err))
			return
		}
		if canFlush {
			flusher.Flush()
		}
	}
}

// HandleHealth reports liveness plus whether the weather subsystem's most
// recent fetch was live or fell back to the synthetic catalog.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	weatherHealthy := h.weather == nil || h.weather.Health()

	status := "ok"
	if !weatherHealthy {
		status = "degraded"
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":          status,
		"time":            time.Now().UTC().Format(time.RFC3339),
		"weather_healthy": weatherHealthy,
	})
}

// wireResponse is the documented external response shape; it exists so
// the agent package's internal FinalResponse representation is free to
// evolve without breaking callers.
type wireResponse struct {
	ResponseType    string                 `json:"response_type"`
	Metar           map[string]interface{} `json:"metar,omitempty"`
	Landing         map[string]interface{} `json:"landing,omitempty"`
	TextResponse    string                 `json:"text_response,omitempty"`
	GuardrailStatus string                 `json:"guardrail_status"`
	IsFallback      bool                   `json:"is_fallback"`
	Details         map[string]interface{} `json:"details,omitempty"`
}

func toWireResponse(resp agent.FinalResponse) wireResponse {
	out := wireResponse{
		ResponseType:    resp.ResponseType,
		GuardrailStatus: string(resp.GuardrailStatus),
		IsFallback:      resp.IsFallback,
		Details:         resp.Details,
	}

	if metar, ok := resp.Payload["metar"].(map[string]interface{}); ok {
		out.Metar = metar
	}
	if landing, ok := resp.Payload["landing"].(map[string]interface{}); ok {
		out.Landing = landing
	}
	if text, ok := resp.Payload["text"].(string); ok {
		out.TextResponse = text
	}
	return out
}

// Package agent implements the C5 Agentic Loop: it drives a
// Think-Act-Observe-Decide state machine over the tool registry, tracks
// the METAR and runway heading observed along the way, and hands the
// finished draft to the C7/C8 guardrail pipeline before returning.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/flightassist/skyguard/internal/ai"
	"github.com/flightassist/skyguard/internal/audit"
	"github.com/flightassist/skyguard/internal/guardrail"
	"github.com/flightassist/skyguard/internal/tools"
	"github.com/flightassist/skyguard/internal/weather"
	"github.com/flightassist/skyguard/pkg/logger"
)

// State is the per-request AgentState: the running transcript plus
// whatever the loop has observed so far about METAR and runway geometry.
type State struct {
	Query                   string
	Transcript              []ai.ChatMessage
	TrackedMetar            *weather.Record
	TrackedRunwayHeadingMag *int
	TrackedRunwayDesignator *string
	TrackedCrosswindKt      *float64
	TrackedHeadwindKt       *float64
	LoopIndex               int
	Terminal                bool
}

// FinalResponse mirrors spec §3's FinalResponse.
type FinalResponse struct {
	ResponseType    string
	Payload         map[string]interface{}
	GuardrailStatus guardrail.Status
	IsFallback      bool
	Details         map[string]interface{}
}

// Config tunes the loop's ceilings and the guardrail policy it applies at
// RESPOND time.
type Config struct {
	MaxLoops        int
	RequestDeadline time.Duration
	CallDeadline    time.Duration
	Guardrail       guardrail.Config
}

// DefaultConfig mirrors the service's documented defaults.
func DefaultConfig() Config {
	return Config{
		MaxLoops:        8,
		RequestDeadline: 30 * time.Second,
		CallDeadline:    10 * time.Second,
		Guardrail:       guardrail.DefaultConfig(),
	}
}

// Agent drives the reasoning loop. primary is tried first each THINK step;
// fallback (the deterministic pattern decider) is used for a single call
// whenever primary errors or times out twice in a row, per the
// retry-once-then-downgrade policy.
type Agent struct {
	registry *tools.Registry
	primary  ai.Decider
	fallback ai.Decider
	sink     *audit.Sink
	logger   *logger.Logger
	cfg      Config
}

// New builds an Agent. primary may be nil, in which case fallback alone
// drives every THINK step (the all-deterministic configuration used when
// no external LLM backend is configured).
func New(registry *tools.Registry, primary, fallback ai.Decider, sink *audit.Sink, log *logger.Logger, cfg Config) *Agent {
	return &Agent{registry: registry, primary: primary, fallback: fallback, sink: sink, logger: log.Named("agent"), cfg: cfg}
}

// Run executes one request end to end: THINK/ACT/OBSERVE/DECIDE until a
// final answer is produced or MAX_LOOPS is reached, then the guardrail
// pipeline on the draft.
func (a *Agent) Run(ctx context.Context, query string) (FinalResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, a.cfg.RequestDeadline)
	defer cancel()

	state := &State{Query: query, Transcript: []ai.ChatMessage{{Role: "user", Content: query}}}

	draftText, canceled := a.runLoop(ctx, state)
	if canceled {
		return FinalResponse{
			ResponseType:    "text",
			Payload:         map[string]interface{}{"text": "Request canceled."},
			GuardrailStatus: guardrail.StatusSkipped,
			Details:         map[string]interface{}{"canceled": true},
		}, nil
	}

	outcome := guardrail.RunPipeline(draftText, state.TrackedMetar, state.TrackedRunwayHeadingMag, a.cfg.Guardrail, a.regenerator(ctx, state), a.sink)
	return a.buildFinalResponse(state, outcome), nil
}

// runLoop drives the state machine and returns the draft text (the text
// of the first DecisionFinal, or a forced summary once MAX_LOOPS is hit)
// and whether the context was canceled before a draft was produced.
func (a *Agent) runLoop(ctx context.Context, state *State) (string, bool) {
	for {
		if ctx.Err() != nil {
			return "", true
		}

		decision, err := a.decide(ctx, state.Transcript)
		if err != nil {
			a.logger.Warn("decide failed, forcing a conservative draft", logger.Error(err))
			return "I was unable to complete this request due to a backend error.", false
		}

		switch decision.Kind {
		case ai.DecisionFinal:
			return decision.Text, false

		case ai.DecisionAbort:
			a.logger.Info("decider aborted", logger.String("reason", decision.Reason))
			return fmt.Sprintf("I'm unable to help with that: %s", decision.Reason), false

		case ai.DecisionTool:
			if ctx.Err() != nil {
				return "", true
			}
			a.act(ctx, state, decision)
		}

		state.LoopIndex++
		if state.LoopIndex >= a.cfg.MaxLoops {
			return a.forceSummary(ctx, state), false
		}
	}
}

// act dispatches one tool call, appends its result to the transcript as a
// "tool" role message, and updates tracked METAR/runway state.
func (a *Agent) act(ctx context.Context, state *State, decision ai.Decision) {
	callCtx, cancel := context.WithTimeout(ctx, a.cfg.CallDeadline)
	defer cancel()

	result := a.registry.Execute(callCtx, decision.ToolName, decision.ToolArgs)

	var payload map[string]interface{}
	if result.Error != "" {
		payload = map[string]interface{}{"error": result.Error}
	} else {
		payload = result.Data
	}

	observation, err := json.Marshal(map[string]interface{}{"tool": decision.ToolName, "result": payload})
	if err != nil {
		observation = []byte(fmt.Sprintf(`{"tool":%q,"result":{"error":"failed to encode tool result"}}`, decision.ToolName))
	}
	state.Transcript = append(state.Transcript,
		ai.ChatMessage{Role: "assistant", Content: fmt.Sprintf("calling %s", decision.ToolName)},
		ai.ChatMessage{Role: "tool", Content: string(observation)},
	)

	a.track(state, decision.ToolName, payload)
}

// track implements _track(result): it records the latest observed METAR
// and runway geometry so the guardrail can re-derive the draft's claim
// independently of the tool chain that produced it.
func (a *Agent) track(state *State, toolName string, payload map[string]interface{}) {
	switch toolName {
	case "fetch_metar":
		if station, ok := payload["station"].(string); ok && station != "" {
			state.TrackedMetar = metarFromPayload(payload)
		}
	case "select_best_runway":
		best, ok := payload["best"].(map[string]interface{})
		if !ok {
			return
		}
		if heading, ok := toInt(best["heading_mag"]); ok {
			state.TrackedRunwayHeadingMag = &heading
		}
		if designator, ok := best["designator"].(string); ok {
			state.TrackedRunwayDesignator = &designator
		}
		if cross, ok := best["crosswind_kt"].(float64); ok {
			state.TrackedCrosswindKt = &cross
		}
		if head, ok := best["headwind_kt"].(float64); ok {
			state.TrackedHeadwindKt = &head
		}
	}
}

func toInt(v interface{}) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	}
	return 0, false
}

func metarFromPayload(payload map[string]interface{}) *weather.Record {
	rec := &weather.Record{}
	if v, ok := payload["station"].(string); ok {
		rec.Station = v
	}
	if v, ok := payload["time"].(string); ok {
		rec.Time = v
	}
	if v, ok := payload["raw"].(string); ok {
		rec.Raw = v
	}
	if v, ok := payload["flight_category"].(string); ok {
		rec.FlightCategory = weather.FlightCategory(v)
	}
	if v, ok := payload["source"].(string); ok {
		rec.Source = weather.Source(v)
	}
	if v, ok := toInt(payload["wind_direction"]); ok {
		rec.WindDirection = &v
	}
	if v, ok := toInt(payload["wind_speed"]); ok {
		rec.WindSpeed = &v
	}
	if v, ok := toInt(payload["wind_gust"]); ok {
		rec.WindGust = &v
	}
	if v, ok := toInt(payload["temp_c"]); ok {
		rec.TemperatureC = &v
	}
	if v, ok := toInt(payload["dewpoint_c"]); ok {
		rec.DewpointC = &v
	}
	if v, ok := payload["visibility_sm"].(float64); ok {
		rec.VisibilitySM = &v
	}
	if v, ok := payload["altimeter"].(string); ok {
		rec.Altimeter = &v
	}
	return rec
}

// forceSummary implements DECIDE's MAX_LOOPS escape hatch: it asks the
// decider for a final answer given everything observed so far, ignoring
// any further tool calls it might request.
func (a *Agent) forceSummary(ctx context.Context, state *State) string {
	prompt := ai.ChatMessage{Role: "user", Content: "Summarize now with the best available information. Do not call any more tools."}
	transcript := append(append([]ai.ChatMessage{}, state.Transcript...), prompt)
	decision, err := a.decide(ctx, transcript)
	if err != nil || decision.Kind != ai.DecisionFinal {
		return "I was unable to reach a final answer within the allotted number of steps."
	}
	return decision.Text
}

// regenerator adapts the loop's decide step into the callback shape C8's
// Reflect expects.
func (a *Agent) regenerator(ctx context.Context, state *State) func(prompt string) (string, error) {
	return func(prompt string) (string, error) {
		transcript := append(append([]ai.ChatMessage{}, state.Transcript...), ai.ChatMessage{Role: "user", Content: prompt})
		decision, err := a.decide(ctx, transcript)
		if err != nil {
			return "", err
		}
		if decision.Kind != ai.DecisionFinal {
			return "", fmt.Errorf("reflection expected a final answer, got a %v decision", decision.Kind)
		}
		return decision.Text, nil
	}
}

// decide implements C6's retry-once-then-downgrade-to-Pattern policy: it
// is the loop's responsibility, not the external backend's, since only
// the loop holds a reference to the fallback decider.
func (a *Agent) decide(ctx context.Context, transcript []ai.ChatMessage) (ai.Decision, error) {
	specs := a.registry.Specs()

	if a.primary == nil {
		return a.fallback.Decide(ctx, transcript, specs)
	}

	callCtx, cancel := context.WithTimeout(ctx, a.cfg.CallDeadline)
	decision, err := a.primary.Decide(callCtx, transcript, specs)
	cancel()
	if err == nil {
		return decision, nil
	}
	a.logger.Warn("external decider failed, retrying once", logger.Error(err))

	callCtx, cancel = context.WithTimeout(ctx, a.cfg.CallDeadline)
	decision, err = a.primary.Decide(callCtx, transcript, specs)
	cancel()
	if err == nil {
		return decision, nil
	}
	a.logger.Warn("external decider failed twice, downgrading to pattern decider for this call", logger.Error(err))

	return a.fallback.Decide(ctx, transcript, specs)
}

func (a *Agent) buildFinalResponse(state *State, outcome guardrail.Outcome) FinalResponse {
	payload := map[string]interface{}{"text": outcome.FinalText}
	responseType := "text"

	if state.TrackedMetar != nil {
		responseType = "metar"
		payload["metar"] = metarToResponseMap(state.TrackedMetar)

		if state.TrackedRunwayHeadingMag != nil {
			landing := map[string]interface{}{"runway_heading": *state.TrackedRunwayHeadingMag}
			if state.TrackedRunwayDesignator != nil {
				landing["runway_number"] = *state.TrackedRunwayDesignator
			}
			if state.TrackedCrosswindKt != nil {
				landing["crosswind_kt"] = *state.TrackedCrosswindKt
			}
			if state.TrackedHeadwindKt != nil {
				landing["headwind_kt"] = *state.TrackedHeadwindKt
			}
			payload["landing"] = landing
		}
	}

	return FinalResponse{
		ResponseType:    responseType,
		Payload:         payload,
		GuardrailStatus: outcome.Status,
		IsFallback:      outcome.IsFallback,
		Details: map[string]interface{}{
			"verification": outcome.Verification,
			"trace_id":     outcome.TraceID,
			"loops":        state.LoopIndex,
		},
	}
}

func metarToResponseMap(rec *weather.Record) map[string]interface{} {
	m := map[string]interface{}{
		"station":         rec.Station,
		"time":            rec.Time,
		"raw":             rec.Raw,
		"wind":            rec.WindString(),
		"flight_category": string(rec.FlightCategory),
		"source":          string(rec.Source),
	}
	if rec.WindDirection != nil {
		m["wind_direction"] = *rec.WindDirection
	}
	if rec.WindSpeed != nil {
		m["wind_speed"] = *rec.WindSpeed
	}
	if rec.WindGust != nil {
		m["wind_gust"] = *rec.WindGust
	}
	if rec.TemperatureC != nil {
		m["temperature_c"] = *rec.TemperatureC
	}
	if rec.DewpointC != nil {
		m["dewpoint_c"] = *rec.DewpointC
	}
	return m
}

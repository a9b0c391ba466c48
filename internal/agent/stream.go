package agent

import (
	"context"
	"encoding/json"
	"time"

	"github.com/flightassist/skyguard/internal/ai"
	"github.com/flightassist/skyguard/internal/guardrail"
	"github.com/flightassist/skyguard/pkg/logger"
)

// EventType names one line-delimited event in the streaming variant.
type EventType string

const (
	EventThought    EventType = "thought"
	EventToolCall   EventType = "tool_call"
	EventToolResult EventType = "tool_result"
	EventDraft      EventType = "draft"
	EventGuardrail  EventType = "guardrail"
	EventReflection EventType = "reflection"
	EventSafeFail   EventType = "safe_fail"
	EventFinal      EventType = "final"
)

// Event is one line of the NDJSON stream.
type Event struct {
	Type    EventType   `json:"type"`
	TS      int64       `json:"ts"`
	Payload interface{} `json:"payload,omitempty"`
}

// RunStream runs the same Think-Act-Observe-Decide loop as Run but emits
// an event per step instead of returning a single response. The channel
// is closed after the final event is sent; ordering is strictly causal
// and a guardrail event is emitted exactly once per terminal path.
func (a *Agent) RunStream(ctx context.Context, query string) <-chan Event {
	events := make(chan Event, 16)

	go func() {
		defer close(events)

		ctx, cancel := context.WithTimeout(ctx, a.cfg.RequestDeadline)
		defer cancel()

		state := &State{Query: query, Transcript: []ai.ChatMessage{{Role: "user", Content: query}}}
		emit := func(t EventType, payload interface{}) {
			select {
			case events <- Event{Type: t, TS: time.Now().UnixMilli(), Payload: payload}:
			case <-ctx.Done():
			}
		}

		draftText, canceled := a.streamLoop(ctx, state, emit)
		if canceled {
			emit(EventFinal, map[string]interface{}{"canceled": true})
			return
		}

		emit(EventDraft, map[string]interface{}{"text": draftText})

		outcome := a.streamGuardrail(ctx, draftText, state, emit)
		response := a.buildFinalResponse(state, outcome)
		emit(EventFinal, response)
	}()

	return events
}

func (a *Agent) streamLoop(ctx context.Context, state *State, emit func(EventType, interface{})) (string, bool) {
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
			emit(EventThought, map[string]interface{}{"final_answer": decision.Text})
			return decision.Text, false

		case ai.DecisionAbort:
			emit(EventThought, map[string]interface{}{"abort": decision.Reason})
			return "I'm unable to help with that: " + decision.Reason, false

		case ai.DecisionTool:
			if ctx.Err() != nil {
				return "", true
			}
			emit(EventThought, map[string]interface{}{"tool": decision.ToolName})
			emit(EventToolCall, map[string]interface{}{"tool": decision.ToolName, "args": decision.ToolArgs})
			result := a.dispatchAndTrack(ctx, state, decision)
			emit(EventToolResult, map[string]interface{}{"tool": decision.ToolName, "result": result})
		}

		state.LoopIndex++
		if state.LoopIndex >= a.cfg.MaxLoops {
			return a.forceSummary(ctx, state), false
		}
	}
}

// dispatchAndTrack is act's logic factored out so the streaming path can
// report the raw result payload in a tool_result event.
func (a *Agent) dispatchAndTrack(ctx context.Context, state *State, decision ai.Decision) map[string]interface{} {
	a.act(ctx, state, decision)
	last := state.Transcript[len(state.Transcript)-1]
	var observation struct {
		Tool   string                 `json:"tool"`
		Result map[string]interface{} `json:"result"`
	}
	_ = json.Unmarshal([]byte(last.Content), &observation)
	return observation.Result
}

// streamGuardrail runs a preliminary Verify to decide which events this
// terminal path needs (pass/skip needs only "guardrail"; failure needs
// "guardrail" then "reflection" and possibly "safe_fail"), then delegates
// the actual outcome and its audit trail to guardrail.RunPipeline so the
// streaming and non-streaming paths never disagree about what happened.
func (a *Agent) streamGuardrail(ctx context.Context, draftText string, state *State, emit func(EventType, interface{})) guardrail.Outcome {
	preliminary := guardrail.Verify(draftText, state.TrackedMetar, state.TrackedRunwayHeadingMag, a.cfg.Guardrail)
	emit(EventGuardrail, preliminary)

	outcome := guardrail.RunPipeline(draftText, state.TrackedMetar, state.TrackedRunwayHeadingMag, a.cfg.Guardrail, a.regenerator(ctx, state), a.sink)

	if preliminary.Status == guardrail.StatusFailed {
		emit(EventReflection, map[string]interface{}{"before": preliminary, "after": outcome.Verification})
		if outcome.IsFallback {
			emit(EventSafeFail, map[string]interface{}{"trace_id": outcome.TraceID})
		}
	}
	return outcome
}

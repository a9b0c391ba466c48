// Package ai defines the contract between the agentic loop and whatever
// decides its next step: a real language model or a deterministic pattern
// matcher.
package ai

import "context"

// ChatMessage is one turn in a chat-style conversation.
type ChatMessage struct {
	Role    string // "system", "user", "assistant", or "tool"
	Content string
}

// ToolParam describes one named argument a tool accepts.
type ToolParam struct {
	Name        string
	Type        string // "string", "number", "boolean", "object", or "array"
	Required    bool
	Description string
}

// ToolSpec is the catalog entry a backend is told about so it can decide to
// call a tool by name.
type ToolSpec struct {
	Name        string
	Description string
	Params      []ToolParam
}

// DecisionKind identifies which variant of Decision is populated.
type DecisionKind int

const (
	// DecisionTool asks the loop to dispatch a named tool call.
	DecisionTool DecisionKind = iota
	// DecisionFinal carries a finished answer for the user.
	DecisionFinal
	// DecisionAbort asks the loop to stop without an answer.
	DecisionAbort
)

// Decision is the sum type a backend returns for one THINK step: exactly
// one of ToolName (+Args), Text, or Reason is meaningful, selected by Kind.
type Decision struct {
	Kind DecisionKind

	ToolName string
	ToolArgs map[string]any

	Text string

	Reason string
}

// Decider is the interface the agentic loop actually calls each THINK step.
// It is implemented by the deterministic pattern backend directly, and by
// an adapter that owns a real LLM client and a declared tool catalog for
// the external backend.
type Decider interface {
	Decide(ctx context.Context, transcript []ChatMessage, tools []ToolSpec) (Decision, error)
}

// Package tools implements the C4 tool registry and dispatcher: a typed
// table mapping tool names to handlers over JSON-like arguments, used by
// the agentic loop to fetch weather, pick runways, and perform the other
// supporting lookups and calculations.
package tools

import (
	"context"
	"fmt"

	"github.com/flightassist/skyguard/internal/ai"
)

// Result is the structured outcome of a tool call. Error is non-empty on
// failure; Data holds the success payload. Handlers never panic — any
// failure, including a recovered one, becomes an Error string here.
type Result struct {
	Data  map[string]interface{} `json:"data,omitempty"`
	Error string                 `json:"error,omitempty"`
}

// Handler executes one tool call against validated arguments.
type Handler func(ctx context.Context, args map[string]interface{}) Result

// Descriptor pairs a tool's advertised schema with its handler.
type Descriptor struct {
	Spec    ai.ToolSpec
	Handler Handler
}

// Registry is the C4 typed tool table: name -> Descriptor.
type Registry struct {
	tools map[string]Descriptor
	order []string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Descriptor)}
}

// Register adds a tool descriptor, overwriting any prior registration
// under the same name.
func (r *Registry) Register(d Descriptor) {
	if _, exists := r.tools[d.Spec.Name]; !exists {
		r.order = append(r.order, d.Spec.Name)
	}
	r.tools[d.Spec.Name] = d
}

// Specs returns the advertised ToolSpec for every registered tool, in
// registration order, for handing to a Decider.
func (r *Registry) Specs() []ai.ToolSpec {
	specs := make([]ai.ToolSpec, 0, len(r.order))
	for _, name := range r.order {
		specs = append(specs, r.tools[name].Spec)
	}
	return specs
}

// Execute validates args against the named tool's declared parameters and
// dispatches to its handler. It never panics the caller: a missing tool,
// a validation failure, or a handler panic all surface as Result.Error.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]interface{}) (res Result) {
	defer func() {
		if p := recover(); p != nil {
			res = Result{Error: fmt.Sprintf("tool %q panicked: %v", name, p)}
		}
	}()

	d, ok := r.tools[name]
	if !ok {
		return Result{Error: fmt.Sprintf("tool %q not found", name)}
	}
	if err := validate(d.Spec, args); err != nil {
		return Result{Error: err.Error()}
	}
	return d.Handler(ctx, args)
}

func validate(spec ai.ToolSpec, args map[string]interface{}) error {
	for _, p := range spec.Params {
		v, present := args[p.Name]
		if !present {
			if p.Required {
				return fmt.Errorf("tool %q: missing required argument %q", spec.Name, p.Name)
			}
			continue
		}
		if !matchesType(v, p.Type) {
			return fmt.Errorf("tool %q: argument %q must be %s", spec.Name, p.Name, p.Type)
		}
	}
	return nil
}

func matchesType(v interface{}, want string) bool {
	switch want {
	case "string":
		_, ok := v.(string)
		return ok
	case "number":
		switch v.(type) {
		case float64, int, int64:
			return true
		}
		return false
	case "boolean":
		_, ok := v.(bool)
		return ok
	case "object":
		_, ok := v.(map[string]interface{})
		return ok
	case "array":
		_, ok := v.([]interface{})
		return ok
	default:
		return true
	}
}

// stringArg and friends are small helpers handlers use to pull typed
// values out of the loosely-typed args map without repeating assertions.
func stringArg(args map[string]interface{}, key string) (string, bool) {
	v, ok := args[key].(string)
	return v, ok
}

func floatArg(args map[string]interface{}, key string) (float64, bool) {
	switch v := args[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return 0, false
}

func boolArg(args map[string]interface{}, key string) (bool, bool) {
	v, ok := args[key].(bool)
	return v, ok
}

func objectArg(args map[string]interface{}, key string) (map[string]interface{}, bool) {
	v, ok := args[key].(map[string]interface{})
	return v, ok
}

func arrayArg(args map[string]interface{}, key string) ([]interface{}, bool) {
	v, ok := args[key].([]interface{})
	return v, ok
}

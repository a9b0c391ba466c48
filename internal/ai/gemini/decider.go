package gemini

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/flightassist/skyguard/internal/ai"
)

// Decider adapts a Gemini Provider plus a declared tool catalog into an
// ai.Decider: it converts the catalog to genai function declarations,
// issues one GenerateContent call, and turns the first candidate's parts
// into a Decision.
type Decider struct {
	provider *Provider
	model    string
}

// NewDecider returns a Decider backed by the given Provider.
func NewDecider(provider *Provider, model string) *Decider {
	if model == "" {
		model = "gemini-2.0-flash"
	}
	return &Decider{provider: provider, model: model}
}

func toSchema(p ai.ToolParam) *genai.Schema {
	schema := &genai.Schema{Description: p.Description}
	switch p.Type {
	case "number":
		schema.Type = genai.TypeNumber
	case "boolean":
		schema.Type = genai.TypeBoolean
	case "object":
		schema.Type = genai.TypeObject
	case "array":
		schema.Type = genai.TypeArray
	default:
		schema.Type = genai.TypeString
	}
	return schema
}

func toFunctionDeclaration(spec ai.ToolSpec) *genai.FunctionDeclaration {
	props := map[string]*genai.Schema{}
	var required []string
	for _, p := range spec.Params {
		props[p.Name] = toSchema(p)
		if p.Required {
			required = append(required, p.Name)
		}
	}
	return &genai.FunctionDeclaration{
		Name:        spec.Name,
		Description: spec.Description,
		Parameters: &genai.Schema{
			Type:       genai.TypeObject,
			Properties: props,
			Required:   required,
		},
	}
}

func toContents(transcript []ai.ChatMessage) (*genai.Content, []*genai.Content) {
	var systemInstruction *genai.Content
	var contents []*genai.Content
	for _, m := range transcript {
		switch m.Role {
		case "system":
			systemInstruction = genai.NewContentFromText(m.Content, genai.RoleUser)
		case "assistant":
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleModel))
		case "tool":
			contents = append(contents, genai.NewContentFromText("Tool observation: "+m.Content, genai.RoleUser))
		default:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		}
	}
	return systemInstruction, contents
}

// Decide implements ai.Decider against the real Gemini API.
func (d *Decider) Decide(ctx context.Context, transcript []ai.ChatMessage, toolsCatalog []ai.ToolSpec) (ai.Decision, error) {
	systemInstruction, contents := toContents(transcript)

	var declarations []*genai.FunctionDeclaration
	for _, spec := range toolsCatalog {
		declarations = append(declarations, toFunctionDeclaration(spec))
	}

	config := &genai.GenerateContentConfig{
		SystemInstruction: systemInstruction,
	}
	if len(declarations) > 0 {
		config.Tools = []*genai.Tool{{FunctionDeclarations: declarations}}
	}

	resp, err := d.provider.client.Models.GenerateContent(ctx, d.model, contents, config)
	if err != nil {
		return ai.Decision{}, fmt.Errorf("gemini decide failed: %w", err)
	}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ai.Decision{}, fmt.Errorf("gemini returned an empty response")
	}

	var text string
	for _, part := range resp.Candidates[0].Content.Parts {
		if part.FunctionCall != nil {
			return ai.Decision{
				Kind:     ai.DecisionTool,
				ToolName: part.FunctionCall.Name,
				ToolArgs: part.FunctionCall.Args,
			}, nil
		}
		text += part.Text
	}
	if text == "" {
		return ai.Decision{}, fmt.Errorf("gemini returned neither a function call nor text")
	}
	return ai.Decision{Kind: ai.DecisionFinal, Text: text}, nil
}

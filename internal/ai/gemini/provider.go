// Package gemini implements the C6 External LLM backend: a Decider backed
// by the real Gemini API that declares the tool catalog and parses the
// model's reply into the agentic loop's Decision sum type.
package gemini

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// Provider holds the Gemini client Decider issues calls against.
type Provider struct {
	client *genai.Client
}

// NewProvider creates a Gemini-backed Provider.
func NewProvider(ctx context.Context, apiKey string) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return &Provider{client: client}, nil
}

// Close does nothing and always returns nil; the underlying client is not
// closed.
func (p *Provider) Close() error {
	return nil
}

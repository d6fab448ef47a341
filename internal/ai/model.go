// Package ai holds the provider-neutral model gateway: request types, structured
// output schemas, retry policy and token/cost accounting.
package ai

import (
	"context"
	"fmt"
	"strings"
)

// Model is a single language-model backend.
type Model interface {
	// Provider returns a short provider name used in logs.
	Provider() string
	// Model returns the model identifier used when a request does not set one.
	Model() string
	// SupportsStructuredOutput reports whether the backend can constrain output to a JSON schema.
	SupportsStructuredOutput() bool
	// Generate performs exactly one provider call.
	Generate(ctx context.Context, req Request) (*Completion, error)
}

// GenerationParams are the tunable knobs of a single call.
type GenerationParams struct {
	// Model selects the pricing tier and quality.
	Model string `mapstructure:"model"`
	// Temperature ranges from 0 (deterministic) to 1 (maximum variation).
	Temperature float64 `mapstructure:"temperature"`
	// MaxOutputTokens caps the response length. Output is truncated, not rejected. Zero means provider default.
	MaxOutputTokens int `mapstructure:"max-output-tokens"`
}

// Validate rejects parameters no provider would accept.
func (p GenerationParams) Validate() error {
	if p.Temperature < 0 || p.Temperature > 1 {
		return fmt.Errorf("temperature %.2f is outside [0, 1]", p.Temperature)
	}
	if p.MaxOutputTokens < 0 {
		return fmt.Errorf("max output tokens must not be negative, got %d", p.MaxOutputTokens)
	}
	return nil
}

// Request is one prompt sent through the gateway.
type Request struct {
	System string
	Prompt string
	Params GenerationParams
	// Schema, when set, requires the response to be a JSON document matching it.
	Schema *Schema
}

// Validate checks that the request is well formed.
func (r Request) Validate() error {
	if strings.TrimSpace(r.Prompt) == "" {
		return fmt.Errorf("prompt must not be empty")
	}
	if err := r.Params.Validate(); err != nil {
		return err
	}
	if r.Schema != nil && strings.TrimSpace(r.Schema.Name) == "" {
		return fmt.Errorf("structured output schema must be named")
	}
	return nil
}

// Completion is a provider response with its reported token usage.
type Completion struct {
	Text         string
	InputTokens  int
	OutputTokens int
}

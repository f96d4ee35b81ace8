// Package llm provides the language model abstraction used for intent
// classification and reply generation.
package llm

import (
	"context"
	"errors"
)

// ErrEmptyResponse is returned when the model produced no text.
var ErrEmptyResponse = errors.New("llm returned an empty response")

// Request is a single completion request.
type Request struct {
	// System is the instruction prompt.
	System string
	// User is the user-turn content.
	User string
	// Temperature controls sampling; zero is deterministic.
	Temperature float32
	// MaxTokens caps the reply length. Zero leaves the provider default.
	MaxTokens int32
	// JSON asks the provider for a JSON-only reply.
	JSON bool
}

// LLM generates text completions.
type LLM interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// Func adapts a function to the LLM interface.
type Func func(ctx context.Context, req Request) (string, error)

// Generate implements LLM.
func (f Func) Generate(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

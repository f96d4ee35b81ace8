// Package compose renders replies and follow-up suggestions. Free-text
// answers come from the language model; every answer has a deterministic
// template when the model fails.
package compose

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/Veraticus/shopassist/internal/llm"
)

// Composer renders replies.
type Composer struct {
	llm     llm.LLM
	persona string
	logger  *zap.Logger
}

// Option configures a Composer.
type Option func(*Composer)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Composer) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithPersona prefixes every system prompt with the store's persona.
func WithPersona(prompt string) Option {
	return func(c *Composer) {
		c.persona = strings.TrimSpace(prompt)
	}
}

// New creates a composer.
func New(model llm.LLM, opts ...Option) (*Composer, error) {
	if model == nil {
		return nil, fmt.Errorf("composer: llm is required")
	}
	c := &Composer{llm: model, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.Named("compose")
	return c, nil
}

// generate returns the model's trimmed reply, or false when it failed or
// returned nothing.
func (c *Composer) generate(ctx context.Context, kind string, req llm.Request) (string, bool) {
	if c.persona != "" {
		req.System = c.persona + "\n\n" + req.System
	}
	out, err := c.llm.Generate(ctx, req)
	if err != nil {
		c.logger.Warn("reply generation failed, using template", zap.String("kind", kind), zap.Error(err))
		return "", false
	}
	out = strings.TrimSpace(out)
	if out == "" {
		c.logger.Warn("reply generation returned nothing, using template", zap.String("kind", kind))
		return "", false
	}
	return out, true
}

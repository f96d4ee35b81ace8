// Package mocks provides scripted and in-memory collaborators for tests.
package mocks

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/Veraticus/shopassist/internal/llm"
)

// ScriptedResponse is one scripted LLM reply.
type ScriptedResponse struct {
	// Text returned when the script matches.
	Text string

	// Error returned instead of Text.
	Error error

	// UserPattern is matched against the user prompt (regex). Empty matches any.
	UserPattern string

	// SystemPattern is matched against the system prompt (regex). Empty matches any.
	SystemPattern string

	// Delay before replying, honoring context cancellation.
	Delay time.Duration

	// Repeatable scripts may match more than once.
	Repeatable bool
}

// LLMCall records one Generate call.
type LLMCall struct {
	Request   llm.Request
	Timestamp time.Time
}

// ScriptedLLM implements llm.LLM with scripted replies.
type ScriptedLLM struct {
	mu            sync.Mutex
	scripts       []ScriptedResponse
	used          []bool
	calls         []LLMCall
	fallbackText  string
	fallbackError error
	strictMode    bool
}

// ScriptedLLMOption configures a ScriptedLLM.
type ScriptedLLMOption func(*ScriptedLLM)

// WithStrictMode makes unmatched calls fail.
func WithStrictMode() ScriptedLLMOption {
	return func(s *ScriptedLLM) {
		s.strictMode = true
	}
}

// WithFallback sets the reply used when no script matches.
func WithFallback(text string) ScriptedLLMOption {
	return func(s *ScriptedLLM) {
		s.fallbackText = text
	}
}

// WithFallbackError sets the error returned when no script matches.
func WithFallbackError(err error) ScriptedLLMOption {
	return func(s *ScriptedLLM) {
		s.fallbackError = err
	}
}

// NewScriptedLLM creates a ScriptedLLM.
func NewScriptedLLM(opts ...ScriptedLLMOption) *ScriptedLLM {
	s := &ScriptedLLM{}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AddScript appends a script.
func (s *ScriptedLLM) AddScript(script ScriptedResponse) *ScriptedLLM {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.scripts = append(s.scripts, script)
	s.used = append(s.used, false)
	return s
}

// AddSimpleScript appends a one-shot text reply that matches anything.
func (s *ScriptedLLM) AddSimpleScript(text string) *ScriptedLLM {
	return s.AddScript(ScriptedResponse{Text: text})
}

// AddErrorScript appends a one-shot error.
func (s *ScriptedLLM) AddErrorScript(err error) *ScriptedLLM {
	return s.AddScript(ScriptedResponse{Error: err})
}

// AddPatternScript appends a repeatable reply for user prompts matching pattern.
func (s *ScriptedLLM) AddPatternScript(userPattern, text string) *ScriptedLLM {
	return s.AddScript(ScriptedResponse{UserPattern: userPattern, Text: text, Repeatable: true})
}

// AddSystemScript appends a repeatable reply for system prompts matching pattern.
func (s *ScriptedLLM) AddSystemScript(systemPattern, text string) *ScriptedLLM {
	return s.AddScript(ScriptedResponse{SystemPattern: systemPattern, Text: text, Repeatable: true})
}

// Generate implements llm.LLM.
func (s *ScriptedLLM) Generate(ctx context.Context, req llm.Request) (string, error) {
	s.mu.Lock()
	s.calls = append(s.calls, LLMCall{Request: req, Timestamp: time.Now()})

	var script *ScriptedResponse
	for i := range s.scripts {
		sc := s.scripts[i]
		if s.used[i] && !sc.Repeatable {
			continue
		}
		if !matchesPattern(sc.UserPattern, req.User) || !matchesPattern(sc.SystemPattern, req.System) {
			continue
		}
		s.used[i] = true
		script = &sc
		break
	}
	strict, fbText, fbErr := s.strictMode, s.fallbackText, s.fallbackError
	s.mu.Unlock()

	if script == nil {
		switch {
		case strict:
			return "", fmt.Errorf("no script matches prompt: %q", req.User)
		case fbErr != nil:
			return "", fbErr
		case fbText != "":
			return fbText, nil
		default:
			return "No script configured for this prompt", nil
		}
	}

	if script.Delay > 0 {
		select {
		case <-time.After(script.Delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if script.Error != nil {
		return "", script.Error
	}
	return script.Text, nil
}

func matchesPattern(pattern, value string) bool {
	if pattern == "" {
		return true
	}
	matched, err := regexp.MatchString(pattern, value)
	return err == nil && matched
}

// Calls returns a copy of the recorded calls.
func (s *ScriptedLLM) Calls() []LLMCall {
	s.mu.Lock()
	defer s.mu.Unlock()

	calls := make([]LLMCall, len(s.calls))
	copy(calls, s.calls)
	return calls
}

// CallCount returns how many calls were made.
func (s *ScriptedLLM) CallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

// ExpectUserPromptContains verifies some call's user prompt contained substr.
func (s *ScriptedLLM) ExpectUserPromptContains(substr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, call := range s.calls {
		if strings.Contains(call.Request.User, substr) {
			return nil
		}
	}
	return fmt.Errorf("no call contained prompt substring: %q", substr)
}

// Reset clears recorded calls and script usage.
func (s *ScriptedLLM) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls = nil
	for i := range s.used {
		s.used[i] = false
	}
}

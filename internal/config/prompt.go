package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrEmptyPrompt is returned for a prompt that is blank after trimming.
var ErrEmptyPrompt = errors.New("system prompt is empty")

// maxPromptBytes bounds the persona prompt prepended to every model call.
const maxPromptBytes = 16 << 10

// LoadSystemPrompt reads the persona prompt at path. An empty path returns
// fallback, which must itself be valid.
func LoadSystemPrompt(path, fallback string) (string, error) {
	if path == "" {
		if err := ValidateSystemPrompt(fallback); err != nil {
			return "", err
		}
		return strings.TrimSpace(fallback), nil
	}

	content, err := os.ReadFile(path) // #nosec G304 - path comes from config
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("system prompt file not found: %s", path)
		}
		return "", fmt.Errorf("failed to read system prompt: %w", err)
	}

	prompt := string(content)
	if err := ValidateSystemPrompt(prompt); err != nil {
		return "", fmt.Errorf("%s: %w", path, err)
	}
	return strings.TrimSpace(prompt), nil
}

// ValidateSystemPrompt rejects blank or oversized prompts.
func ValidateSystemPrompt(prompt string) error {
	trimmed := strings.TrimSpace(prompt)
	if trimmed == "" {
		return ErrEmptyPrompt
	}
	if len(trimmed) > maxPromptBytes {
		return fmt.Errorf("system prompt is %d bytes, limit is %d", len(trimmed), maxPromptBytes)
	}
	return nil
}

package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/shopassist/internal/config"
)

func writePrompt(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "system-prompt.md")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadSystemPrompt(t *testing.T) {
	tests := []struct {
		name        string
		path        func(t *testing.T) string
		fallback    string
		want        string
		errContains string
	}{
		{
			name: "loads and trims file",
			path: func(t *testing.T) string {
				return writePrompt(t, "\nYou help shoppers at Acme Outfitters.\n\n")
			},
			want: "You help shoppers at Acme Outfitters.",
		},
		{
			name:     "empty path uses fallback",
			path:     func(*testing.T) string { return "" },
			fallback: "Default persona.",
			want:     "Default persona.",
		},
		{
			name:        "missing file",
			path:        func(*testing.T) string { return "/nonexistent/system-prompt.md" },
			errContains: "system prompt file not found",
		},
		{
			name:        "whitespace-only file",
			path:        func(t *testing.T) string { return writePrompt(t, "  \n\t ") },
			errContains: "system prompt is empty",
		},
		{
			name:        "blank fallback",
			path:        func(*testing.T) string { return "" },
			errContains: "system prompt is empty",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := config.LoadSystemPrompt(tt.path(t), tt.fallback)
			if tt.errContains != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errContains)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidateSystemPrompt(t *testing.T) {
	assert.ErrorIs(t, config.ValidateSystemPrompt(" \n"), config.ErrEmptyPrompt)
	assert.NoError(t, config.ValidateSystemPrompt("Be brief."))
	assert.Error(t, config.ValidateSystemPrompt(strings.Repeat("x", 20<<10)))
}

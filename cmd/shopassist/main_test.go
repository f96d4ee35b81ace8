package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Veraticus/shopassist/internal/catalog"
	"github.com/Veraticus/shopassist/internal/config"
	"github.com/Veraticus/shopassist/internal/llm"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
	})
	err := rootCmd.Execute()
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "shopassist "+version+"\n", out)
}

func TestSeedCommand(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "catalog.db")
	t.Setenv("SHOPASSIST_CATALOG_DB", dbPath)
	t.Setenv("SHOPASSIST_LOG_LEVEL", "error")

	out, err := execute(t, "seed",
		"--config", filepath.Join(t.TempDir(), "missing.yaml"),
		"--file", filepath.Join("..", "..", "data", "sample_catalog.json"))
	require.NoError(t, err)
	assert.Contains(t, out, "Loaded 4 products and 1 orders")

	store, err := catalog.OpenSQLite(dbPath)
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	p, err := store.Product(context.Background(), "8002")
	require.NoError(t, err)
	assert.Equal(t, "Blue Fleece Hoodie", p.Title)

	o, err := store.FetchOrder(context.Background(), 1234, "shopper@example.com")
	require.NoError(t, err)
	assert.Len(t, o.LineItems, 2)
}

func TestSeedCommand_MissingFile(t *testing.T) {
	t.Setenv("SHOPASSIST_CATALOG_DB", filepath.Join(t.TempDir(), "catalog.db"))
	t.Setenv("SHOPASSIST_LOG_LEVEL", "error")

	_, err := execute(t, "seed",
		"--config", filepath.Join(t.TempDir(), "missing.yaml"),
		"--file", filepath.Join(t.TempDir(), "nope.json"))
	assert.ErrorContains(t, err, "failed to read seed file")
}

func TestNewModel_WithoutAPIKey(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.LLM.APIKey = ""

	model, err := newModel(context.Background(), cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	_, err = model.Generate(context.Background(), llm.Request{User: "hi"})
	assert.ErrorIs(t, err, errNoModel)
}

func TestEmbeddedSystemPromptIsValid(t *testing.T) {
	require.NoError(t, config.ValidateSystemPrompt(embeddedSystemPrompt))
}

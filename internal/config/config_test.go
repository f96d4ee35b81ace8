package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/shopassist/internal/config"
)

var overrideVars = []string{
	"GEMINI_API_KEY", "SHOPASSIST_LLM_MODEL", "SHOPASSIST_SYSTEM_PROMPT",
	"APP_HOST", "APP_PORT", "REDIS_ADDR", "SHOPASSIST_SESSION_BACKEND",
	"SHOPASSIST_CATALOG_DB", "SHOPASSIST_HISTORY_DB", "SHOPASSIST_WORKERS",
	"SHOPASSIST_LOG_LEVEL", "DEBUG",
}

// clearEnv blanks every override so the host environment cannot leak in.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range overrideVars {
		t.Setenv(name, "")
	}
}

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := config.DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "0.0.0.0:8000", cfg.Addr())
	assert.Equal(t, 30*time.Minute, cfg.GetSessionTTL())
	assert.Equal(t, 45*time.Second, cfg.GetTurnTimeout())
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, config.DefaultConfig(), cfg)
}

func TestLoad_YAMLOverridesDefaults(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "shopassist.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9090
session:
  backend: redis
  ttl: 1h
queue:
  workers: 2
resolver:
  keyword_fallback: false
`), 0o600))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, config.BackendRedis, cfg.Session.Backend)
	assert.Equal(t, time.Hour, cfg.GetSessionTTL())
	assert.Equal(t, 2, cfg.Queue.Workers)
	assert.False(t, cfg.Resolver.KeywordFallback)
	// Untouched sections keep their defaults.
	assert.Equal(t, "data/catalog.db", cfg.Catalog.DatabasePath)
	assert.Equal(t, 0.5, cfg.Resolver.OverlapThreshold)
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("GEMINI_API_KEY", "test-key")
	t.Setenv("APP_HOST", "127.0.0.1")
	t.Setenv("APP_PORT", "8081")
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("SHOPASSIST_WORKERS", "3")
	t.Setenv("DEBUG", "true")

	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, "test-key", cfg.LLM.APIKey)
	assert.Equal(t, "127.0.0.1:8081", cfg.Addr())
	assert.Equal(t, config.BackendRedis, cfg.Session.Backend)
	assert.Equal(t, "redis:6379", cfg.Session.RedisAddr)
	assert.Equal(t, 3, cfg.Queue.Workers)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "console", cfg.Logging.Format)
}

func TestLoad_InvalidInput(t *testing.T) {
	clearEnv(t)
	t.Setenv("APP_PORT", "eighty")
	_, err := config.Load("")
	assert.ErrorContains(t, err, "APP_PORT")

	clearEnv(t)
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [unterminated"), 0o600))
	_, err = config.Load(path)
	assert.ErrorContains(t, err, "failed to parse config")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		errMsg string
	}{
		{"bad port", func(c *config.Config) { c.Server.Port = 0 }, "invalid server port"},
		{"bad duration", func(c *config.Config) { c.Session.TTL = "soon" }, "session.ttl"},
		{"unknown backend", func(c *config.Config) { c.Session.Backend = "memcached" }, "invalid session backend"},
		{"redis without addr", func(c *config.Config) {
			c.Session.Backend = config.BackendRedis
			c.Session.RedisAddr = ""
		}, "redis_addr"},
		{"no workers", func(c *config.Config) { c.Queue.Workers = 0 }, "queue.workers"},
		{"threshold out of range", func(c *config.Config) { c.Resolver.OverlapThreshold = 1.5 }, "overlap_threshold"},
		{"bad level", func(c *config.Config) { c.Logging.Level = "loud" }, "invalid log level"},
		{"bad format", func(c *config.Config) { c.Logging.Format = "xml" }, "invalid log format"},
		{"history without path", func(c *config.Config) { c.History.DatabasePath = "" }, "history.database_path"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.DefaultConfig()
			tt.mutate(cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.errMsg)
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "nested", "shopassist.yaml")
	cfg := config.DefaultConfig()
	cfg.Queue.RateLimitPerMinute = 12
	require.NoError(t, cfg.Save(path))

	loaded, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 12, loaded.Queue.RateLimitPerMinute)
}

func TestLoadEnvFiles(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("SHOPASSIST_LLM_MODEL=gemini-test\nAPP_HOST=10.0.0.1\n"), 0o600))
	t.Setenv("APP_HOST", "already-set")
	t.Cleanup(func() { _ = os.Unsetenv("SHOPASSIST_LLM_MODEL") })
	require.NoError(t, os.Unsetenv("SHOPASSIST_LLM_MODEL"))

	require.NoError(t, config.LoadEnvFiles(path, filepath.Join(t.TempDir(), "missing.env")))
	assert.Equal(t, "gemini-test", os.Getenv("SHOPASSIST_LLM_MODEL"))
	assert.Equal(t, "already-set", os.Getenv("APP_HOST"))
}

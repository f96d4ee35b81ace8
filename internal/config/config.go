// Package config loads shopassist configuration from YAML, .env files and
// environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Session backends.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Config holds all shopassist configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	LLM      LLMConfig      `yaml:"llm"`
	Catalog  CatalogConfig  `yaml:"catalog"`
	History  HistoryConfig  `yaml:"history"`
	Session  SessionConfig  `yaml:"session"`
	Queue    QueueConfig    `yaml:"queue"`
	Resolver ResolverConfig `yaml:"resolver"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Host            string `yaml:"host"`
	Port            int    `yaml:"port"`
	ReadTimeout     string `yaml:"read_timeout"`
	WriteTimeout    string `yaml:"write_timeout"`
	ShutdownTimeout string `yaml:"shutdown_timeout"`
}

// LLMConfig configures the language model.
type LLMConfig struct {
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"`
	// Timeout bounds each model call.
	Timeout string `yaml:"timeout"`
	// SystemPromptPath overrides the built-in persona prompt.
	SystemPromptPath string `yaml:"system_prompt_path"`
}

// CatalogConfig configures the product and order database.
type CatalogConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// HistoryConfig configures conversation record persistence.
type HistoryConfig struct {
	Enabled      bool   `yaml:"enabled"`
	DatabasePath string `yaml:"database_path"`
}

// SessionConfig configures where session state lives.
type SessionConfig struct {
	Backend         string `yaml:"backend"`
	TTL             string `yaml:"ttl"`
	CleanupInterval string `yaml:"cleanup_interval"`
	RedisAddr       string `yaml:"redis_addr"`
	RedisPassword   string `yaml:"redis_password"`
	RedisDB         int    `yaml:"redis_db"`
	RedisPrefix     string `yaml:"redis_prefix"`
}

// QueueConfig configures turn processing.
type QueueConfig struct {
	Workers            int    `yaml:"workers"`
	RateLimitPerMinute int    `yaml:"rate_limit_per_minute"`
	RateLimitBurst     int    `yaml:"rate_limit_burst"`
	TurnTimeout        string `yaml:"turn_timeout"`
}

// ResolverConfig tunes product reference resolution.
type ResolverConfig struct {
	KeywordFallback  bool    `yaml:"keyword_fallback"`
	OverlapThreshold float64 `yaml:"overlap_threshold"`
}

// LoggingConfig configures the logger.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
	// Format is json or console.
	Format string `yaml:"format"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8000,
			ReadTimeout:     "15s",
			WriteTimeout:    "60s",
			ShutdownTimeout: "10s",
		},
		LLM: LLMConfig{
			Model:   "gemini-2.0-flash",
			Timeout: "30s",
		},
		Catalog: CatalogConfig{
			DatabasePath: "data/catalog.db",
		},
		History: HistoryConfig{
			Enabled:      true,
			DatabasePath: "data/history.db",
		},
		Session: SessionConfig{
			Backend:         BackendMemory,
			TTL:             "30m",
			CleanupInterval: "5m",
			RedisAddr:       "localhost:6379",
			RedisPrefix:     "shopassist:session:",
		},
		Queue: QueueConfig{
			Workers:            8,
			RateLimitPerMinute: 30,
			RateLimitBurst:     5,
			TurnTimeout:        "45s",
		},
		Resolver: ResolverConfig{
			KeywordFallback:  true,
			OverlapThreshold: 0.5,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// LoadEnvFiles loads .env files into the process environment. Missing files
// are skipped and variables already set are kept.
func LoadEnvFiles(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, path := range paths {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("failed to load %s: %w", path, err)
		}
	}
	return nil
}

// Load reads the YAML file at path over the defaults and applies environment
// overrides. A missing file, or an empty path, yields the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		case !os.IsNotExist(err):
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration as YAML.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

func (c *Config) applyEnvOverrides() error {
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		c.LLM.APIKey = key
	}
	if model := os.Getenv("SHOPASSIST_LLM_MODEL"); model != "" {
		c.LLM.Model = model
	}
	if path := os.Getenv("SHOPASSIST_SYSTEM_PROMPT"); path != "" {
		c.LLM.SystemPromptPath = path
	}

	if host := os.Getenv("APP_HOST"); host != "" {
		c.Server.Host = host
	}
	if port := os.Getenv("APP_PORT"); port != "" {
		n, err := strconv.Atoi(port)
		if err != nil {
			return fmt.Errorf("invalid APP_PORT %q: %w", port, err)
		}
		c.Server.Port = n
	}

	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		c.Session.RedisAddr = addr
		c.Session.Backend = BackendRedis
	}
	if backend := os.Getenv("SHOPASSIST_SESSION_BACKEND"); backend != "" {
		c.Session.Backend = backend
	}

	if path := os.Getenv("SHOPASSIST_CATALOG_DB"); path != "" {
		c.Catalog.DatabasePath = path
	}
	if path := os.Getenv("SHOPASSIST_HISTORY_DB"); path != "" {
		c.History.DatabasePath = path
	}
	if workers := os.Getenv("SHOPASSIST_WORKERS"); workers != "" {
		n, err := strconv.Atoi(workers)
		if err != nil {
			return fmt.Errorf("invalid SHOPASSIST_WORKERS %q: %w", workers, err)
		}
		c.Queue.Workers = n
	}

	if level := os.Getenv("SHOPASSIST_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if debug, _ := strconv.ParseBool(os.Getenv("DEBUG")); debug {
		c.Logging.Level = "debug"
		c.Logging.Format = "console"
	}
	return nil
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// GetLLMTimeout returns the model call timeout.
func (c *Config) GetLLMTimeout() time.Duration {
	return parseDuration(c.LLM.Timeout, 30*time.Second)
}

// GetSessionTTL returns the idle session lifetime.
func (c *Config) GetSessionTTL() time.Duration {
	return parseDuration(c.Session.TTL, 30*time.Minute)
}

// GetCleanupInterval returns how often expired in-memory sessions are swept.
func (c *Config) GetCleanupInterval() time.Duration {
	return parseDuration(c.Session.CleanupInterval, 5*time.Minute)
}

// GetTurnTimeout returns the deadline for one chat turn.
func (c *Config) GetTurnTimeout() time.Duration {
	return parseDuration(c.Queue.TurnTimeout, 45*time.Second)
}

// GetReadTimeout returns the HTTP read timeout.
func (c *Config) GetReadTimeout() time.Duration {
	return parseDuration(c.Server.ReadTimeout, 15*time.Second)
}

// GetWriteTimeout returns the HTTP write timeout.
func (c *Config) GetWriteTimeout() time.Duration {
	return parseDuration(c.Server.WriteTimeout, 60*time.Second)
}

// GetShutdownTimeout returns the graceful shutdown budget.
func (c *Config) GetShutdownTimeout() time.Duration {
	return parseDuration(c.Server.ShutdownTimeout, 10*time.Second)
}

func parseDuration(s string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

// ValidLogLevels lists the accepted logging levels.
var ValidLogLevels = []string{"debug", "info", "warn", "error"}

// Validate checks the configuration. The API key is not required: without
// one every reply uses its deterministic template.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	for name, value := range map[string]string{
		"llm.timeout":              c.LLM.Timeout,
		"session.ttl":              c.Session.TTL,
		"session.cleanup_interval": c.Session.CleanupInterval,
		"queue.turn_timeout":       c.Queue.TurnTimeout,
		"server.read_timeout":      c.Server.ReadTimeout,
		"server.write_timeout":     c.Server.WriteTimeout,
		"server.shutdown_timeout":  c.Server.ShutdownTimeout,
	} {
		if value == "" {
			continue
		}
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("invalid %s %q: %w", name, value, err)
		}
	}

	switch c.Session.Backend {
	case BackendMemory:
	case BackendRedis:
		if c.Session.RedisAddr == "" {
			return fmt.Errorf("session.redis_addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("invalid session backend: %s (valid: %s, %s)", c.Session.Backend, BackendMemory, BackendRedis)
	}

	if c.Catalog.DatabasePath == "" {
		return fmt.Errorf("catalog.database_path is required")
	}
	if c.History.Enabled && c.History.DatabasePath == "" {
		return fmt.Errorf("history.database_path is required when history is enabled")
	}
	if c.Queue.Workers <= 0 {
		return fmt.Errorf("queue.workers must be positive, got %d", c.Queue.Workers)
	}
	if c.Queue.RateLimitPerMinute < 0 || c.Queue.RateLimitBurst < 0 {
		return fmt.Errorf("queue rate limits must not be negative")
	}
	if c.Resolver.OverlapThreshold < 0 || c.Resolver.OverlapThreshold > 1 {
		return fmt.Errorf("resolver.overlap_threshold must be within [0, 1], got %v", c.Resolver.OverlapThreshold)
	}

	level := strings.ToLower(c.Logging.Level)
	validLevel := false
	for _, l := range ValidLogLevels {
		if level == l {
			validLevel = true
			break
		}
	}
	if !validLevel {
		return fmt.Errorf("invalid log level: %s (valid: %v)", c.Logging.Level, ValidLogLevels)
	}
	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		return fmt.Errorf("invalid log format: %s (valid: json, console)", c.Logging.Format)
	}
	return nil
}

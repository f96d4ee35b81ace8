package main

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Veraticus/shopassist/internal/agent"
	"github.com/Veraticus/shopassist/internal/catalog"
	"github.com/Veraticus/shopassist/internal/config"
	"github.com/Veraticus/shopassist/internal/history"
	"github.com/Veraticus/shopassist/internal/llm"
	"github.com/Veraticus/shopassist/internal/metrics"
	"github.com/Veraticus/shopassist/internal/queue"
	"github.com/Veraticus/shopassist/internal/resolver"
	"github.com/Veraticus/shopassist/internal/server"
	"github.com/Veraticus/shopassist/internal/session"
)

//go:embed system-prompt.md
var embeddedSystemPrompt string

// errNoModel makes every model call fail so replies use their templates.
var errNoModel = errors.New("no language model configured")

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return serve(ctx, cfg, logger)
	},
}

// components holds everything serve starts and stops.
type components struct {
	catalog  *catalog.SQLiteStore
	history  *history.SQLiteStore
	redis    *redis.Client
	cleanup  *session.CleanupService
	queue    *queue.Manager
	server   *server.Server
	sessions session.Store
}

func serve(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	logger.Info("shopassist starting", zap.String("version", version))

	c, err := initializeComponents(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer c.close(logger)

	if err := c.queue.Start(ctx); err != nil {
		return fmt.Errorf("failed to start queue: %w", err)
	}
	if c.cleanup != nil {
		c.cleanup.Start(ctx)
	}

	runErr := c.server.Run(ctx, cfg.Addr())

	if c.cleanup != nil {
		c.cleanup.Stop()
	}
	if err := c.queue.Shutdown(cfg.GetShutdownTimeout()); err != nil {
		logger.Warn("queue shutdown incomplete", zap.Error(err))
	}
	logger.Info("shutdown complete")
	return runErr
}

func initializeComponents(ctx context.Context, cfg *config.Config, logger *zap.Logger) (_ *components, err error) {
	c := &components{}
	defer func() {
		if err != nil {
			c.close(logger)
		}
	}()

	persona, err := config.LoadSystemPrompt(cfg.LLM.SystemPromptPath, embeddedSystemPrompt)
	if err != nil {
		return nil, err
	}

	if c.catalog, err = catalog.OpenSQLite(cfg.Catalog.DatabasePath); err != nil {
		return nil, err
	}

	if cfg.History.Enabled {
		if c.history, err = history.OpenSQLite(cfg.History.DatabasePath); err != nil {
			return nil, err
		}
	}

	switch cfg.Session.Backend {
	case config.BackendRedis:
		c.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Session.RedisAddr,
			Password: cfg.Session.RedisPassword,
			DB:       cfg.Session.RedisDB,
		})
		if err := c.redis.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Session.RedisAddr, err)
		}
		c.sessions = session.NewRedisStore(c.redis,
			session.WithTTL(cfg.GetSessionTTL()),
			session.WithPrefix(cfg.Session.RedisPrefix))
	default:
		mem := session.NewMemoryStore(cfg.GetSessionTTL())
		c.sessions = mem
		c.cleanup = session.NewCleanupService(mem, cfg.GetCleanupInterval(), logger)
	}

	model, err := newModel(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	m := metrics.New()
	c.queue = queue.NewManager(
		queue.WithWorkers(cfg.Queue.Workers),
		queue.WithRateLimiter(queue.NewRateLimiter(cfg.Queue.RateLimitPerMinute, cfg.Queue.RateLimitBurst)),
		queue.WithLimiterSweep(cfg.GetCleanupInterval(), cfg.GetSessionTTL()),
		queue.WithPanicHandler(queue.NewMetricsPanicHandler(
			queue.NewLogPanicHandler(logger),
			func(*queue.Job, any) { m.IncPanics() },
		)),
		queue.WithObserver(m),
		queue.WithLogger(logger),
	)

	opts := []agent.Option{
		agent.WithResolver(resolver.New(
			resolver.WithKeywordFallback(cfg.Resolver.KeywordFallback),
			resolver.WithOverlapThreshold(cfg.Resolver.OverlapThreshold),
		)),
		agent.WithPersona(persona),
		agent.WithQueue(c.queue),
		agent.WithMetrics(m),
		agent.WithTurnTimeout(cfg.GetTurnTimeout()),
		agent.WithLogger(logger),
	}
	serverOpts := []server.Option{
		server.WithMetrics(m),
		server.WithCatalog(c.catalog, c.catalog),
		server.WithTimeouts(cfg.GetReadTimeout(), cfg.GetWriteTimeout(), cfg.GetShutdownTimeout()),
		server.WithLogger(logger),
	}
	if c.history != nil {
		opts = append(opts, agent.WithHistory(c.history))
		serverOpts = append(serverOpts, server.WithHistory(c.history))
	}

	handler, err := agent.NewHandler(c.sessions, c.catalog, c.catalog, model, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create agent handler: %w", err)
	}
	if c.server, err = server.New(handler, c.sessions, serverOpts...); err != nil {
		return nil, err
	}
	return c, nil
}

func newModel(ctx context.Context, cfg *config.Config, logger *zap.Logger) (llm.LLM, error) {
	if cfg.LLM.APIKey == "" {
		logger.Warn("GEMINI_API_KEY not set; replies use templates only")
		return llm.Func(func(context.Context, llm.Request) (string, error) {
			return "", errNoModel
		}), nil
	}
	client, err := llm.NewGenAIClient(ctx, cfg.LLM.APIKey, cfg.LLM.Model, cfg.GetLLMTimeout())
	if err != nil {
		return nil, err
	}
	logger.Info("language model configured", zap.String("model", cfg.LLM.Model))
	return client, nil
}

func (c *components) close(logger *zap.Logger) {
	if c.redis != nil {
		if err := c.redis.Close(); err != nil {
			logger.Warn("failed to close redis client", zap.Error(err))
		}
	}
	if c.history != nil {
		if err := c.history.Close(); err != nil {
			logger.Warn("failed to close history store", zap.Error(err))
		}
	}
	if c.catalog != nil {
		if err := c.catalog.Close(); err != nil {
			logger.Warn("failed to close catalog", zap.Error(err))
		}
	}
}

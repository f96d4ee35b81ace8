package session

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultCleanupInterval is how often expired sessions are swept.
const DefaultCleanupInterval = time.Minute

// Expirer is a store that needs periodic sweeping.
type Expirer interface {
	CleanupExpired() int
	Stats() map[string]int
}

// CleanupService periodically sweeps expired sessions.
type CleanupService struct {
	store    Expirer
	interval time.Duration
	logger   *zap.Logger
	cancel   context.CancelFunc
	done     chan struct{}
	mu       sync.Mutex
	running  bool
}

// NewCleanupService creates a cleanup service. A non-positive interval uses
// DefaultCleanupInterval.
func NewCleanupService(store Expirer, interval time.Duration, logger *zap.Logger) *CleanupService {
	if interval <= 0 {
		interval = DefaultCleanupInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CleanupService{
		store:    store,
		interval: interval,
		logger:   logger.Named("session.cleanup"),
	}
}

// Start begins sweeping in the background. Starting twice is a no-op.
func (c *CleanupService) Start(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return
	}

	cleanupCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})
	c.running = true

	go c.run(cleanupCtx, c.done)
}

// Stop stops the sweeper and waits for it to exit.
func (c *CleanupService) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	cancel, done := c.cancel, c.done
	c.mu.Unlock()

	cancel()
	<-done
}

// IsRunning reports whether the sweeper is active.
func (c *CleanupService) IsRunning() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

func (c *CleanupService) run(ctx context.Context, done chan struct{}) {
	defer func() {
		c.mu.Lock()
		c.running = false
		close(done)
		c.mu.Unlock()
	}()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.sweep()
	for {
		select {
		case <-ctx.Done():
			c.logger.Info("cleanup service stopping")
			return
		case <-ticker.C:
			c.sweep()
		}
	}
}

func (c *CleanupService) sweep() {
	start := time.Now()
	removed := c.store.CleanupExpired()
	if removed > 0 {
		c.logger.Info("cleaned up expired sessions",
			zap.Int("removed", removed),
			zap.Duration("duration", time.Since(start)),
		)
	}
	stats := c.store.Stats()
	c.logger.Debug("session stats after cleanup",
		zap.Int("total", stats["total"]),
		zap.Int("active", stats["active"]),
	)
}

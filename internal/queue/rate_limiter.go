package queue

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter limits how often each session may submit a turn. A nil
// *RateLimiter allows everything.
type RateLimiter struct {
	limit rate.Limit
	burst int
	now   func() time.Time

	mu       sync.Mutex
	limiters map[string]*sessionLimiter
}

type sessionLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter allows perMinute turns per session with the given burst.
// perMinute <= 0 disables limiting.
func NewRateLimiter(perMinute, burst int) *RateLimiter {
	if perMinute <= 0 {
		return nil
	}
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		limit:    rate.Limit(float64(perMinute) / 60),
		burst:    burst,
		now:      time.Now,
		limiters: make(map[string]*sessionLimiter),
	}
}

// Allow reports whether sessionID may submit a turn now.
func (rl *RateLimiter) Allow(sessionID string) bool {
	if rl == nil {
		return true
	}
	now := rl.now()

	rl.mu.Lock()
	sl, ok := rl.limiters[sessionID]
	if !ok {
		sl = &sessionLimiter{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.limiters[sessionID] = sl
	}
	sl.lastSeen = now
	rl.mu.Unlock()

	return sl.limiter.AllowN(now, 1)
}

// Forget drops limiters idle for longer than idle and returns how many were
// removed.
func (rl *RateLimiter) Forget(idle time.Duration) int {
	if rl == nil {
		return 0
	}
	cutoff := rl.now().Add(-idle)

	rl.mu.Lock()
	defer rl.mu.Unlock()
	removed := 0
	for id, sl := range rl.limiters {
		if sl.lastSeen.Before(cutoff) {
			delete(rl.limiters, id)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked sessions.
func (rl *RateLimiter) Len() int {
	if rl == nil {
		return 0
	}
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.limiters)
}

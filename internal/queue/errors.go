package queue

import (
	"errors"
	"fmt"
	"strings"
)

// Common queue errors.
var (
	// ErrRateLimited indicates the session sent turns faster than allowed.
	ErrRateLimited = errors.New("rate limited")

	// ErrQueueStopped indicates the manager is not accepting work.
	ErrQueueStopped = errors.New("queue stopped")

	// ErrInvalidSession indicates an empty session id.
	ErrInvalidSession = errors.New("invalid session id")
)

// PanicError is returned for a job whose function panicked.
type PanicError struct {
	Value any
	Stack []byte
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("job panicked: %v", e.Value)
}

// IsRateLimitError reports whether err is ErrRateLimited or reads like a
// provider quota error.
func IsRateLimitError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, ErrRateLimited) {
		return true
	}

	errMsg := strings.ToLower(err.Error())
	rateLimitIndicators := []string{
		"rate limit",
		"rate-limit",
		"ratelimit",
		"too many requests",
		"429",
		"quota exceeded",
		"resource_exhausted",
		"throttled",
	}
	for _, indicator := range rateLimitIndicators {
		if strings.Contains(errMsg, indicator) {
			return true
		}
	}
	return false
}

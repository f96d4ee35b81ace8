// Package queue serializes conversation turns per session while running
// distinct sessions concurrently on a fixed worker pool.
package queue

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Job is one unit of work for a session.
type Job struct {
	ID         string
	SessionID  string
	EnqueuedAt time.Time

	ctx  context.Context
	fn   func(ctx context.Context) error
	done chan error
}

func newJob(ctx context.Context, sessionID string, fn func(ctx context.Context) error) *Job {
	return &Job{
		ID:         uuid.NewString(),
		SessionID:  sessionID,
		EnqueuedAt: time.Now(),
		ctx:        ctx,
		fn:         fn,
		done:       make(chan error, 1),
	}
}

// finish reports the job's outcome. Only the first call has effect.
func (j *Job) finish(err error) {
	select {
	case j.done <- err:
	default:
	}
}

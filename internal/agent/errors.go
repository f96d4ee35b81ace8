package agent

import (
	"context"
	"errors"

	"github.com/Veraticus/shopassist/internal/compose"
	"github.com/Veraticus/shopassist/internal/queue"
)

// ErrorType classifies a failed turn for the reply shown to the shopper.
type ErrorType int

const (
	// ErrorTypeUnknown is any failure without a more specific message.
	ErrorTypeUnknown ErrorType = iota
	// ErrorTypeCancelled is a turn whose caller went away.
	ErrorTypeCancelled
	// ErrorTypeTimeout is a turn that ran past its deadline.
	ErrorTypeTimeout
	// ErrorTypeRateLimit is a session sending turns too quickly, or a
	// collaborator reporting quota exhaustion.
	ErrorTypeRateLimit
	// ErrorTypeUnavailable is a turn rejected because the service is stopping.
	ErrorTypeUnavailable
	// ErrorTypePanic is a turn that panicked.
	ErrorTypePanic
)

// String returns a lowercase name for logs and metrics.
func (t ErrorType) String() string {
	switch t {
	case ErrorTypeCancelled:
		return "cancelled"
	case ErrorTypeTimeout:
		return "timeout"
	case ErrorTypeRateLimit:
		return "rate_limited"
	case ErrorTypeUnavailable:
		return "unavailable"
	case ErrorTypePanic:
		return "panic"
	default:
		return "unknown"
	}
}

// ErrorRecovery turns turn failures into shopper-facing replies.
type ErrorRecovery struct {
	messages map[ErrorType]string
}

// NewErrorRecovery creates a new error recovery handler.
func NewErrorRecovery() *ErrorRecovery {
	return &ErrorRecovery{
		messages: map[ErrorType]string{
			ErrorTypeCancelled:   "The request was canceled. Please try again if you still need assistance.",
			ErrorTypeTimeout:     "The request took too long to process. Please try again in a moment.",
			ErrorTypeRateLimit:   "I'm currently experiencing high demand. Please try again in a few moments.",
			ErrorTypeUnavailable: "I'm restarting right now. Please try again in a moment.",
			ErrorTypePanic:       compose.ErrorReply,
			ErrorTypeUnknown:     compose.ErrorReply,
		},
	}
}

// ClassifyError determines the type of err.
func (r *ErrorRecovery) ClassifyError(err error) ErrorType {
	if err == nil {
		return ErrorTypeUnknown
	}

	var panicErr *queue.PanicError
	switch {
	case errors.Is(err, context.Canceled):
		return ErrorTypeCancelled
	case errors.Is(err, context.DeadlineExceeded):
		return ErrorTypeTimeout
	case queue.IsRateLimitError(err):
		return ErrorTypeRateLimit
	case errors.Is(err, queue.ErrQueueStopped):
		return ErrorTypeUnavailable
	case errors.As(err, &panicErr):
		return ErrorTypePanic
	default:
		return ErrorTypeUnknown
	}
}

// UserMessage returns the reply for err.
func (r *ErrorRecovery) UserMessage(err error) string {
	return r.messages[r.ClassifyError(err)]
}

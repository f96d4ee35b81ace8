package queue

import (
	"runtime/debug"

	"go.uber.org/zap"
)

// PanicHandler is told about jobs that panicked.
type PanicHandler interface {
	HandlePanic(job *Job, panicValue any, stackTrace []byte)
}

// LogPanicHandler logs panics with their stack trace.
type LogPanicHandler struct {
	logger *zap.Logger
}

// NewLogPanicHandler returns a handler that logs to logger.
func NewLogPanicHandler(logger *zap.Logger) *LogPanicHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogPanicHandler{logger: logger}
}

// HandlePanic implements PanicHandler.
func (h *LogPanicHandler) HandlePanic(job *Job, panicValue any, stackTrace []byte) {
	h.logger.Error("panic in job",
		zap.String("job_id", job.ID),
		zap.String("session_id", job.SessionID),
		zap.Any("panic", panicValue),
		zap.ByteString("stack_trace", stackTrace),
	)
}

// MetricsPanicHandler counts panics and delegates to another handler.
type MetricsPanicHandler struct {
	wrapped PanicHandler
	onPanic func(job *Job, panicValue any)
}

// NewMetricsPanicHandler wraps another handler to add metrics tracking.
func NewMetricsPanicHandler(wrapped PanicHandler, onPanic func(*Job, any)) *MetricsPanicHandler {
	return &MetricsPanicHandler{
		wrapped: wrapped,
		onPanic: onPanic,
	}
}

// HandlePanic implements PanicHandler.
func (h *MetricsPanicHandler) HandlePanic(job *Job, panicValue any, stackTrace []byte) {
	if h.onPanic != nil {
		h.onPanic(job, panicValue)
	}
	if h.wrapped != nil {
		h.wrapped.HandlePanic(job, panicValue, stackTrace)
	}
}

// runJob runs job's function, converting a panic into a *PanicError.
func runJob(job *Job, handler PanicHandler) (err error) {
	defer func() {
		if r := recover(); r != nil {
			stack := debug.Stack()
			if handler != nil {
				handler.HandlePanic(job, r, stack)
			}
			err = &PanicError{Value: r, Stack: stack}
		}
	}()
	return job.fn(job.ctx)
}

package logger

import (
	"context"
	"time"

	"go.uber.org/zap"
)

type ctxKey int

const (
	requestIDKey ctxKey = iota
	participantKey
)

// WithRequestID binds a correlation id to the context for downstream log lines.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// WithParticipant binds the acting participant's id to the context.
func WithParticipant(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, participantKey, id)
}

// ContextLogger resolves request-scoped fields out of a context before
// logging, so every line of one request carries the same correlation id.
type ContextLogger struct {
	logger *zap.Logger
}

func NewContextLogger(logger *zap.Logger) *ContextLogger {
	return &ContextLogger{logger: logger}
}

// WithContext returns the logger enriched with whatever request-scoped
// fields the context carries.
func (cl *ContextLogger) WithContext(ctx context.Context) *zap.Logger {
	fields := make([]zap.Field, 0, 2)
	if id, ok := ctx.Value(requestIDKey).(string); ok && id != "" {
		fields = append(fields, zap.String("request_id", id))
	}
	if id, ok := ctx.Value(participantKey).(string); ok && id != "" {
		fields = append(fields, zap.String("user_id", id))
	}
	if len(fields) == 0 {
		return cl.logger
	}
	return cl.logger.With(fields...)
}

// LogRequest writes the access log line for a finished HTTP request.
func (cl *ContextLogger) LogRequest(ctx context.Context, method, path string, statusCode int, duration time.Duration) {
	cl.WithContext(ctx).Info("http_request",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status_code", statusCode),
		zap.Int64("duration_ms", duration.Milliseconds()),
	)
}

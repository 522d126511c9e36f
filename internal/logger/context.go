package logger

import (
	"context"

	"go.uber.org/zap"
)

const RequestIDHeader = "X-Request-ID"

type ctxKey struct{}

func WithContext(ctx context.Context, log *zap.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, log)
}

// FromContext returns the request-scoped logger, or a no-op logger when the
// context was not produced by Middleware.
func FromContext(ctx context.Context) *zap.Logger {
	if ctx != nil {
		if log, ok := ctx.Value(ctxKey{}).(*zap.Logger); ok {
			return log
		}
	}
	return zap.NewNop()
}

package bproxy

import (
	"context"

	"go.uber.org/zap"
)

type ctxKey int

const ctxKeyLogger ctxKey = iota

var nopLogger = zap.NewNop()

// WithLog returns a context that carries the logger.
func WithLog(ctx context.Context, logs *zap.Logger) context.Context {
	return context.WithValue(ctx, ctxKeyLogger, logs)
}

// Log returns the request-scoped logger from the context. A no-op logger is returned when none is set.
func Log(ctx context.Context) *zap.Logger {
	if logs, ok := ctx.Value(ctxKeyLogger).(*zap.Logger); ok && logs != nil {
		return logs
	}
	return nopLogger
}

func mediaTypesField(key string, mts []MediaType) zap.Field {
	return zap.String(key, formatMediaTypes(mts))
}

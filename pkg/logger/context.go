package logger

import (
	"context"
	"log/slog"
)

type ctxKey string

const fieldsKey ctxKey = "logger.fields"

// With returns a context carrying fields in addition to any already present.
// Loggers obtained through From or Bind include them.
func With(ctx context.Context, fields ...any) context.Context {
	prev := fieldsFrom(ctx)
	merged := make([]any, 0, len(prev)+len(fields))
	merged = append(merged, prev...)
	merged = append(merged, fields...)
	return context.WithValue(ctx, fieldsKey, merged)
}

// From returns the process logger enriched with the context fields.
func From(ctx context.Context) *slog.Logger {
	return Bind(ctx, LoggerWrapper())
}

// Bind enriches l with the context fields. Components holding their own
// logger use it to pick up request-scoped fields such as the trace id.
func Bind(ctx context.Context, l *slog.Logger) *slog.Logger {
	fields := fieldsFrom(ctx)
	if len(fields) == 0 {
		return l
	}
	return l.With(fields...)
}

func fieldsFrom(ctx context.Context) []any {
	if ctx == nil {
		return nil
	}
	fields, _ := ctx.Value(fieldsKey).([]any)
	return fields
}

package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

var defaultLogger *slog.Logger

func Init(env string) {
	InitWithLevel(env, "")
}

// InitWithLevel behaves like Init but lets the configured level win over the
// environment default. Unknown levels fall back to the environment default.
func InitWithLevel(env, level string) {
	defaultLogger = New(os.Stdout, env, level)
	slog.SetDefault(defaultLogger)
}

// New builds a logger writing to w without touching the process default.
func New(w io.Writer, env, level string) *slog.Logger {
	var handler slog.Handler

	if env == "production" {
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: parseLevel(level, slog.LevelInfo)})
	} else {
		handler = slog.NewTextHandler(w, &slog.HandlerOptions{Level: parseLevel(level, slog.LevelDebug)})
	}

	return slog.New(handler)
}

func LoggerWrapper() *slog.Logger {
	if defaultLogger == nil {
		// lazy initialize a development logger to avoid nil pointer panics
		Init("development")
	}
	return defaultLogger
}

func parseLevel(level string, fallback slog.Level) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return fallback
	}
}

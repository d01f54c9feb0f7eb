package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const (
	// RequestIDKey is the context key for the inbound request ID
	RequestIDKey ContextKey = "request_id"
	// RunIDKey is the context key for the pipeline run ID
	RunIDKey ContextKey = "run_id"
	// JobIDKey is the context key for the analysis job ID once one is assigned
	JobIDKey ContextKey = "job_id"
)

// Config holds logger configuration
type Config struct {
	Level  string // debug, info, warn, error
	Format string // json, text
}

// Init initializes the global slog logger with the given configuration
func Init(cfg *Config) {
	InitWriter(cfg, os.Stdout)
}

// InitWriter is Init with an explicit destination.
func InitWriter(cfg *Config, w io.Writer) {
	opts := &slog.HandlerOptions{
		Level: ParseLevel(cfg.Level),
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	slog.SetDefault(slog.New(handler))
}

// ParseLevel maps a level name to a slog level, defaulting to info.
func ParseLevel(name string) slog.Level {
	switch name {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// WithJobID returns a copy of ctx carrying the analysis job ID.
func WithJobID(ctx context.Context, jobID string) context.Context {
	return context.WithValue(ctx, JobIDKey, jobID)
}

// WithRunID returns a copy of ctx carrying the pipeline run ID.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, RunIDKey, runID)
}

// WithContext returns a logger with context values extracted
func WithContext(ctx context.Context) *slog.Logger {
	logger := slog.Default()

	for _, key := range []ContextKey{RequestIDKey, RunIDKey, JobIDKey} {
		if v, ok := ctx.Value(key).(string); ok && v != "" {
			logger = logger.With(string(key), v)
		}
	}

	return logger
}

// Info logs at info level with context
func Info(ctx context.Context, msg string, args ...any) {
	WithContext(ctx).Info(msg, args...)
}

// Debug logs at debug level with context
func Debug(ctx context.Context, msg string, args ...any) {
	WithContext(ctx).Debug(msg, args...)
}

// Warn logs at warn level with context
func Warn(ctx context.Context, msg string, args ...any) {
	WithContext(ctx).Warn(msg, args...)
}

// Error logs at error level with context
func Error(ctx context.Context, msg string, args ...any) {
	WithContext(ctx).Error(msg, args...)
}

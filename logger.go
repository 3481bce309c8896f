package rayknn

import (
	"context"
	"log/slog"
	"os"
	"time"
)

// Logger wraps slog.Logger with rayknn-specific context.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
// level sets the minimum log level (e.g., slog.LevelDebug, slog.LevelInfo).
func NewJSONLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// NoopLogger creates a Logger that discards all log output.
func NoopLogger() *Logger {
	return NewLogger(slog.DiscardHandler)
}

// WithK adds a k (neighbor count) field to the logger.
func (l *Logger) WithK(k int) *Logger {
	return &Logger{
		Logger: l.Logger.With("k", k),
	}
}

// WithCount adds a count field to the logger.
func (l *Logger) WithCount(count int) *Logger {
	return &Logger{
		Logger: l.Logger.With("count", count),
	}
}

// WithComponent tags all records with the emitting component.
func (l *Logger) WithComponent(name string) *Logger {
	return &Logger{
		Logger: l.Logger.With("component", name),
	}
}

// LogBuild logs an index or scene build.
func (l *Logger) LogBuild(ctx context.Context, primitives int, bytes int64, elapsed time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "build failed",
			"primitives", primitives,
			"error", err,
		)
		return
	}
	l.InfoContext(ctx, "build completed",
		"primitives", primitives,
		"bytes", bytes,
		"elapsed", elapsed,
	)
}

// LogQuery logs a k-NN query.
func (l *Logger) LogQuery(ctx context.Context, k, found int, radius float32, err error) {
	if err != nil {
		l.WarnContext(ctx, "query rejected",
			"k", k,
			"radius", radius,
			"error", err,
		)
		return
	}
	l.DebugContext(ctx, "query completed",
		"k", k,
		"results", found,
		"radius", radius,
	)
}

// LogTrace logs a rejected ray query. Successful traces are too frequent to log.
func (l *Logger) LogTrace(ctx context.Context, op string, err error) {
	if err != nil {
		l.WarnContext(ctx, "trace rejected",
			"op", op,
			"error", err,
		)
	}
}

// LogSnapshot logs a snapshot save or load.
func (l *Logger) LogSnapshot(ctx context.Context, op, name string, err error) {
	if err != nil {
		l.ErrorContext(ctx, "snapshot failed",
			"op", op,
			"name", name,
			"error", err,
		)
		return
	}
	l.InfoContext(ctx, "snapshot completed",
		"op", op,
		"name", name,
	)
}

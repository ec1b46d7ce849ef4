package docgo

import (
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with docgo-specific context.
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
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NoopLogger creates a Logger that discards all log output.
// Use this to disable logging entirely.
func NoopLogger() *Logger {
	return &Logger{
		Logger: slog.New(slog.DiscardHandler),
	}
}

// WithModel adds a model field to the logger.
func (l *Logger) WithModel(name string) *Logger {
	return &Logger{
		Logger: l.Logger.With("model", name),
	}
}

// WithCollection adds a collection field to the logger.
func (l *Logger) WithCollection(name string) *Logger {
	return &Logger{
		Logger: l.Logger.With("collection", name),
	}
}

// LogCreate logs a document creation.
func (l *Logger) LogCreate(id string, err error) {
	if err != nil {
		l.Error("create failed",
			"id", id,
			"error", err,
		)
	} else {
		l.Debug("create completed",
			"id", id,
		)
	}
}

// LogUpdate logs a document update.
func (l *Logger) LogUpdate(id string, err error) {
	if err != nil {
		l.Error("update failed",
			"id", id,
			"error", err,
		)
	} else {
		l.Debug("update completed",
			"id", id,
		)
	}
}

// LogDelete logs a document deletion.
func (l *Logger) LogDelete(id string, removed bool, err error) {
	if err != nil {
		l.Error("delete failed",
			"id", id,
			"error", err,
		)
	} else {
		l.Debug("delete completed",
			"id", id,
			"removed", removed,
		)
	}
}

// LogBackup logs a backup upload.
func (l *Logger) LogBackup(name string, size int, err error) {
	if err != nil {
		l.Error("backup upload failed",
			"blob", name,
			"error", err,
		)
	} else {
		l.Info("backup uploaded",
			"blob", name,
			"bytes", size,
		)
	}
}

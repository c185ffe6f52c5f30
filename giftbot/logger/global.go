package logger

import (
	"log/slog"
	"time"
)

// LogWorkflow logs a finished workflow operation
func LogWorkflow(name string, duration time.Duration, err error, attrs ...any) {
	base := []any{
		slog.String("type", "wf"),
		slog.String("op", name),
		slog.Duration("took", duration),
	}

	if err != nil {
		slog.Error("Workflow failed", append(append(base, attrs...), slog.Any("error", err))...)
	} else {
		slog.Info("Workflow executed", append(base, attrs...)...)
	}
}

// LogQuery logs database operations
func LogQuery(query string, duration time.Duration, err error) {
	attrs := []any{
		slog.String("type", "db"),
		slog.Duration("took", duration),
		slog.String("query", query),
	}

	if err != nil {
		slog.Error("Query failed", append(attrs, slog.Any("error", err))...)
	} else {
		slog.Debug("Query executed", attrs...)
	}
}

// LogSystem logs system events
func LogSystem(msg string, attrs ...any) {
	slog.Info(msg, append([]any{slog.String("type", "sys")}, attrs...)...)
}

// LogError logs error events
func LogError(msg string, err error, attrs ...any) {
	base := []any{
		slog.String("type", "error"),
		slog.Any("error", err),
	}
	slog.Error(msg, append(base, attrs...)...)
}

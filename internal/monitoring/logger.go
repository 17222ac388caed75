package monitoring

import (
	"log/slog"
	"os"
	"time"
)

// Logger provides structured logging with domain-specific helpers.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a JSON logger writing to stdout.
func NewLogger() *Logger {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				return slog.Attr{
					Key:   "timestamp",
					Value: slog.StringValue(a.Value.Time().Format(time.RFC3339)),
				}
			}
			return a
		},
	})

	return &Logger{
		Logger: slog.New(handler),
	}
}

// RequestLogger logs HTTP request details.
func (l *Logger) RequestLogger(method, path, ip string, statusCode int, duration time.Duration) {
	l.Info("HTTP Request",
		"method", method,
		"path", path,
		"ip", ip,
		"status_code", statusCode,
		"duration_ms", duration.Milliseconds(),
	)
}

// ReportLogger logs a completed scoring run.
func (l *Logger) ReportLogger(entityType, entityID string, score, flagged int, duration time.Duration, cacheHit bool) {
	l.Info("Risk report computed",
		"entity_type", entityType,
		"entity_id", entityID,
		"score", score,
		"flagged_metrics", flagged,
		"duration_ms", duration.Milliseconds(),
		"cache_hit", cacheHit,
	)
}

// StorageErrorLogger logs a persistent-store failure.
func (l *Logger) StorageErrorLogger(err error, operation string) {
	l.Error("Storage operation failed",
		"error", err.Error(),
		"operation", operation,
	)
}

// SchedulerLogger logs snapshot scheduler activity.
func (l *Logger) SchedulerLogger(event string, entities, failures int, duration time.Duration) {
	l.Info("Snapshot scheduler",
		"event", event,
		"entities", entities,
		"failures", failures,
		"duration_ms", duration.Milliseconds(),
	)
}

// APIErrorLogger logs API errors with context.
func (l *Logger) APIErrorLogger(err error, method, path, ip string, statusCode int) {
	l.Error("API Error",
		"error", err.Error(),
		"method", method,
		"path", path,
		"ip", ip,
		"status_code", statusCode,
	)
}

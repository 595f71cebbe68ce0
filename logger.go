package framework

import (
	"log/slog"
	"os"
	"strings"
)

// Logger defines the interface for orchestrator logging. The framework uses
// structured logging with variadic key-value pairs, compatible with slog and
// similar libraries:
//
//	logger.Info("Starting component", "component", "database")
//
// All orchestration activity (load path compilation, component start/stop,
// hook firing, error escalation) is logged through this interface, so
// embedding applications control how framework logs appear. Idempotent no-ops
// and other fine-grained scheduling detail log at Debug.
type Logger interface {
	Info(msg string, args ...any)
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
	Debug(msg string, args ...any)
}

// slogLogger adapts a *slog.Logger to the Logger interface.
type slogLogger struct {
	logger *slog.Logger
}

// NewSlogLogger wraps an existing slog logger for use by the orchestrator.
func NewSlogLogger(logger *slog.Logger) Logger {
	return &slogLogger{logger: logger}
}

func (l *slogLogger) Info(msg string, args ...any)  { l.logger.Info(msg, args...) }
func (l *slogLogger) Error(msg string, args ...any) { l.logger.Error(msg, args...) }
func (l *slogLogger) Warn(msg string, args ...any)  { l.logger.Warn(msg, args...) }
func (l *slogLogger) Debug(msg string, args ...any) { l.logger.Debug(msg, args...) }

// newDefaultLogger builds the fallback text logger used when no Logger is
// supplied through options.
func newDefaultLogger(level string) Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLogLevel(level),
	})
	return &slogLogger{logger: slog.New(handler)}
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug", "trace":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

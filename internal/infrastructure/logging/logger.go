package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/nerrad567/iedsim/internal/infrastructure/config"
)

// serviceName is attached to every record.
const serviceName = "iedsim"

// Logger wraps slog.Logger with the simulator's default fields.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Logger struct {
	*slog.Logger
	closer io.Closer
}

// New creates a Logger from configuration.
//
// Output is stdout, stderr, or "file" (appending to cfg.File). Format is
// json (default) or text. Every record carries service and version.
//
// Returns an error only when the log file cannot be opened.
func New(cfg config.LoggingConfig, version string) (*Logger, error) {
	var (
		output io.Writer
		closer io.Closer
	)
	switch strings.ToLower(cfg.Output) {
	case "stderr":
		output = os.Stderr
	case "file":
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
		if err != nil {
			return nil, fmt.Errorf("opening log file: %w", err)
		}
		output, closer = f, f
	default:
		output = os.Stdout
	}

	l := NewWithWriter(output, cfg.Level, cfg.Format, version)
	l.closer = closer
	return l, nil
}

// NewWithWriter creates a Logger writing to w. Used by New and by tests
// that inspect output.
func NewWithWriter(w io.Writer, level, format, version string) *Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}

	var handler slog.Handler
	switch strings.ToLower(format) {
	case "text":
		handler = slog.NewTextHandler(w, opts)
	default:
		handler = slog.NewJSONHandler(w, opts)
	}

	handler = handler.WithAttrs([]slog.Attr{
		slog.String("service", serviceName),
		slog.String("version", version),
	})

	return &Logger{Logger: slog.New(handler)}
}

// parseLevel converts a level name to slog.Level, defaulting to info.
func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// With returns a child Logger with additional default attributes.
//
//	mbLogger := logger.With("component", "modbus")
//	mbLogger.Info("listening") // includes component=modbus
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}

// Close releases the log file, if one was opened.
func (l *Logger) Close() error {
	if l.closer == nil {
		return nil
	}
	return l.closer.Close()
}

// Default returns a JSON info-level logger on stdout for use before
// configuration is loaded.
func Default() *Logger {
	return NewWithWriter(os.Stdout, "info", "json", "dev")
}

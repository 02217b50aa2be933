package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/nerrad567/loxhue-core/internal/infrastructure/config"
)

// Log categories used by the bridge. They travel as the "category"
// attribute and drive filtering in the log history.
const (
	CategoryKey = "category"

	CategorySystem = "SYSTEM"
	CategoryLight  = "LIGHT"
	CategorySensor = "SENSOR"
	CategoryButton = "BUTTON"
)

// Logger wraps slog.Logger with bridge-specific functionality.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Logger struct {
	*slog.Logger
}

// New creates a new Logger with the specified configuration.
//
// It configures:
//   - Output format (JSON for production, text for development)
//   - Log level filtering (cfg.Debug forces debug)
//   - Default fields (service name, version)
//
// Parameters:
//   - cfg: Logging configuration from config.yaml
//   - version: Application version for default field
//
// Returns:
//   - *Logger: Configured logger ready for use
func New(cfg config.LoggingConfig, version string) *Logger {
	return &Logger{Logger: slog.New(newHandler(cfg, version, nil))}
}

// NewWithRecorder is New plus a copy of every enabled record handed to rec.
// The log history store is the usual recorder.
func NewWithRecorder(cfg config.LoggingConfig, version string, rec Recorder) *Logger {
	return &Logger{Logger: slog.New(newHandler(cfg, version, rec))}
}

func newHandler(cfg config.LoggingConfig, version string, rec Recorder) slog.Handler {
	var output io.Writer
	switch strings.ToLower(cfg.Output) {
	case "stderr":
		output = os.Stderr
	default:
		output = os.Stdout
	}

	level := parseLevel(cfg.Level)
	if cfg.Debug {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "text":
		handler = slog.NewTextHandler(output, opts)
	default:
		handler = slog.NewJSONHandler(output, opts)
	}

	if rec != nil {
		handler = Tee(handler, rec)
	}

	return handler.WithAttrs([]slog.Attr{
		slog.String("service", "loxhue"),
		slog.String("version", version),
	})
}

// parseLevel converts a string log level to slog.Level.
//
// Supported levels: debug, info, warn, error
// Defaults to info if unrecognised.
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

// With returns a new Logger with additional default attributes.
//
// Example:
//
//	lightLog := logger.With(logging.CategoryKey, logging.CategoryLight)
//	lightLog.Info("command sent") // recorded under LIGHT
func (l *Logger) With(args ...any) *Logger {
	return &Logger{
		Logger: l.Logger.With(args...),
	}
}

// Category is shorthand for With(CategoryKey, category).
func (l *Logger) Category(category string) *Logger {
	return l.With(CategoryKey, category)
}

// Default creates a logger for use before configuration is loaded.
func Default() *Logger {
	return New(config.LoggingConfig{
		Level:  "info",
		Format: "json",
		Output: "stdout",
	}, "dev")
}

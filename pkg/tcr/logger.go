package tcr

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// NewLogger builds the structured logger described by config, writing to stdout.
func NewLogger(config *LoggingConfig) *slog.Logger {
	return NewLoggerWithWriter(config, os.Stdout)
}

// NewLoggerWithWriter builds the structured logger described by config.
func NewLoggerWithWriter(config *LoggingConfig, writer io.Writer) *slog.Logger {
	if config == nil {
		config = &LoggingConfig{}
	}

	opts := &slog.HandlerOptions{
		Level:     ParseLevel(config.Level),
		AddSource: config.AddSource,
	}

	var handler slog.Handler
	switch strings.ToLower(config.Format) {
	case "text":
		handler = slog.NewTextHandler(writer, opts)
	default: // json
		handler = slog.NewJSONHandler(writer, opts)
	}

	return slog.New(handler)
}

// ParseLevel maps a level name to a slog.Level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

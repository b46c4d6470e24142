package logger

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// Config selects the level and handler of the CLI logger.
type Config struct {
	Level  slog.Level
	Format string // "json" or "text"
}

// DefaultConfig is info-level text output.
func DefaultConfig() Config {
	return Config{
		Level:  slog.LevelInfo,
		Format: "text",
	}
}

// ParseConfig builds a Config from the textual level and format used by
// flags and LOG_LEVEL/LOG_FORMAT.
func ParseConfig(level, format string) (Config, error) {
	cfg := DefaultConfig()

	switch strings.ToLower(strings.TrimSpace(level)) {
	case "", "info":
	case "debug":
		cfg.Level = slog.LevelDebug
	case "warn", "warning":
		cfg.Level = slog.LevelWarn
	case "error":
		cfg.Level = slog.LevelError
	default:
		return Config{}, fmt.Errorf("unknown log level %q", level)
	}

	switch f := strings.ToLower(strings.TrimSpace(format)); f {
	case "":
	case "json", "text":
		cfg.Format = f
	default:
		return Config{}, fmt.Errorf("unknown log format %q", format)
	}

	return cfg, nil
}

// New creates a logger writing to w and installs it as the slog default.
// The CLI passes stderr so command output on stdout stays clean.
func New(w io.Writer, cfg Config) *slog.Logger {
	var handler slog.Handler

	opts := &slog.HandlerOptions{
		Level: cfg.Level,
	}

	switch cfg.Format {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	default:
		handler = slog.NewTextHandler(w, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)

	return logger
}

package runtime

import (
	"io"
	"log/slog"

	"github.com/loqalabs/loqa-minutes/internal/config"
)

// NewLogger builds the process logger from the telemetry settings.
func NewLogger(cfg config.TelemetryConfig, w io.Writer) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.LogFormat == "text" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

package observability

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"agentteam/internal/shared/logging"
)

// NewLogger builds the process slog logger and installs it as the backend
// for component loggers.
func NewLogger(config LoggingConfig, output io.Writer) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(config.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if output == nil {
		output = os.Stdout
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if strings.EqualFold(config.Format, "text") {
		handler = slog.NewTextHandler(output, opts)
	} else {
		handler = slog.NewJSONHandler(output, opts)
	}
	logger := slog.New(handler)
	logging.SetBase(logger)
	return logger
}

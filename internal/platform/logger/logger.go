package logger

import (
	"io"
	"log/slog"
	"os"

	"brpl/internal/platform/config"
)

// New returns the process logger: JSON in production, text elsewhere.
func New(cfg config.Server) *slog.Logger {
	return NewWithWriter(os.Stdout, cfg)
}

func NewWithWriter(w io.Writer, cfg config.Server) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelDebug}
	if cfg.IsProduction() {
		opts.Level = slog.LevelInfo
		return slog.New(slog.NewJSONHandler(w, opts)).With("service", "brpl-gateway")
	}
	return slog.New(slog.NewTextHandler(w, opts)).With("service", "brpl-gateway")
}

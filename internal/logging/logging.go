// Package logging builds the process-wide slog logger.
package logging

import (
	"io"
	"log/slog"
)

// New returns a text logger at level and installs it as the slog default.
// Every record carries the process role, e.g. "api" or "client".
func New(w io.Writer, level slog.Level, role string) *slog.Logger {
	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
	if role != "" {
		logger = logger.With("role", role)
	}
	slog.SetDefault(logger)
	return logger
}

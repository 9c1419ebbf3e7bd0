// Package logging builds the diagnostic logger. Diagnostics go to stderr as
// slog text records; user-facing progress is rendered separately.
package logging

import (
	"io"
	"log/slog"

	"github.com/NielsdaWheelz/stencil/internal/config"
)

// New returns a text logger writing to w at the level named by level.
// verbose forces debug. An unparseable level falls back to warn.
func New(w io.Writer, level string, verbose bool) *slog.Logger {
	l, err := config.ParseLevel(level)
	if err != nil {
		l = slog.LevelWarn
	}
	if verbose {
		l = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: l}))
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

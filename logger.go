package ggdevice

import (
	"log/slog"

	"github.com/gogpu/ggdevice/internal/logging"
)

// SetLogger configures the logger for ggdevice and all its sub-packages.
// By default, ggdevice produces no log output.
//
// SetLogger is safe for concurrent use. Pass nil to restore the silent default.
//
// Log levels used by ggdevice:
//   - [slog.LevelDebug]: create-resources cycle progress, async completions
//   - [slog.LevelInfo]: device creation and recovery
//   - [slog.LevelWarn]: device loss, contract violations, release errors
//
// Example:
//
//	ggdevice.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
//	    Level: slog.LevelDebug,
//	})))
func SetLogger(l *slog.Logger) {
	logging.Set(l)
}

// Logger returns the current logger used by ggdevice.
func Logger() *slog.Logger {
	return logging.Logger()
}

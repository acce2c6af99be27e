// Package logging holds the process-wide logger shared by ggdevice and its
// sub-packages. It lives in internal/ so that device/ and ctxpool/ can log
// through the same logger without importing the root package.
package logging

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// nopHandler drops every record. Because Enabled reports false at all
// levels, slog never builds the record in the first place.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

// NewNop returns a logger whose handler drops everything.
func NewNop() *slog.Logger { return slog.New(nopHandler{}) }

var (
	quiet   = NewNop()
	current atomic.Pointer[slog.Logger] // nil until the first Set
)

// Set swaps in l for ggdevice, device and ctxpool. Passing nil makes them
// quiet again.
func Set(l *slog.Logger) {
	current.Store(l)
}

// Logger returns whatever Set last stored, or the quiet logger. It may be
// called from any goroutine.
func Logger() *slog.Logger {
	if l := current.Load(); l != nil {
		return l
	}
	return quiet
}

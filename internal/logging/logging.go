// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package logging holds the module-wide logger shared by imagebridge and its
// sub-packages. The public surface is imagebridge.SetLogger / Logger; this
// package only exists so that packages the root imports can log without an
// import cycle.
package logging

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// nopHandler is a slog.Handler that silently discards all log records.
// The Enabled method returns false so the caller skips message formatting
// entirely, making disabled logging effectively zero-cost.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

// NewNopLogger creates a logger that silently discards all output.
func NewNopLogger() *slog.Logger { return slog.New(nopHandler{}) }

// loggerPtr stores the active logger. Accessed atomically so that Set can be
// called concurrently with logging from any goroutine.
var loggerPtr atomic.Pointer[slog.Logger]

func init() {
	l := NewNopLogger()
	loggerPtr.Store(l)
}

// Set stores the module-wide logger. Pass nil to restore the silent default.
func Set(l *slog.Logger) {
	if l == nil {
		l = NewNopLogger()
	}
	loggerPtr.Store(l)
}

// Logger returns the current module-wide logger.
func Logger() *slog.Logger {
	return loggerPtr.Load()
}

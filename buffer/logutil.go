// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package buffer

import (
	"log/slog"

	"github.com/gogpu/imagebridge/internal/logging"
)

// SetLogger configures the logger for the buffer package. The root
// imagebridge.SetLogger covers this; only callers using buffer standalone
// need it.
func SetLogger(l *slog.Logger) { logging.Set(l) }

func logger() *slog.Logger { return logging.Logger() }

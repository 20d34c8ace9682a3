package imagebridge

import (
	"log/slog"

	"github.com/gogpu/imagebridge/internal/logging"
)

// SetLogger configures the logger for imagebridge and all its sub-packages.
// By default, imagebridge produces no log output. Call SetLogger to enable
// logging.
//
// SetLogger is safe for concurrent use: it stores the new logger atomically.
// Pass nil to disable logging (restore default silent behavior).
//
// Log levels used by imagebridge:
//   - [slog.LevelDebug]: internal diagnostics (working-set diffs, buffer reuse)
//   - [slog.LevelInfo]: important lifecycle events (publisher detach)
//   - [slog.LevelWarn]: non-fatal issues (closed channel, dropped frames)
//
// Example:
//
//	// Enable info-level logging to stderr:
//	imagebridge.SetLogger(slog.Default())
//
//	// Enable debug-level logging for full diagnostics:
//	imagebridge.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
//	    Level: slog.LevelDebug,
//	})))
func SetLogger(l *slog.Logger) {
	logging.Set(l)
}

// Logger returns the current logger used by imagebridge and its sub-packages.
//
// Logger is safe for concurrent use.
func Logger() *slog.Logger {
	return logging.Logger()
}

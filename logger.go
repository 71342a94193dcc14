package tilefx

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/gogpu/tilefx/backend/cpu"
	"github.com/gogpu/tilefx/backend/gpu"
	"github.com/gogpu/tilefx/internal/parallel"
)

// nopHandler is a slog.Handler that silently discards all log records.
// The Enabled method returns false so the caller skips message formatting
// entirely, making disabled logging effectively zero-cost.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

func newNopLogger() *slog.Logger { return slog.New(nopHandler{}) }

// loggerPtr stores the active logger. Accessed atomically so that
// SetLogger can be called concurrently with logging from any goroutine.
var loggerPtr atomic.Pointer[slog.Logger]

func init() {
	loggerPtr.Store(newNopLogger())
}

// SetLogger configures the logger for tilefx and its backends.
// By default, tilefx produces no log output. Call SetLogger to enable logging.
//
// SetLogger is safe for concurrent use. Pass nil to restore the default
// silent behavior.
//
// Log levels used by tilefx:
//   - [slog.LevelDebug]: per-call tracing (tile counts, effect compiles, pool growth)
//   - [slog.LevelInfo]: device initialization and shutdown
//   - [slog.LevelWarn]: recoverable failures (GPU fallback, eviction readback errors)
//
// The ops and filter packages read the root logger through [Logger].
//
// Example:
//
//	tilefx.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
//	    Level: slog.LevelDebug,
//	})))
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = newNopLogger()
	}
	loggerPtr.Store(l)

	cpu.SetLogger(l)
	gpu.SetLogger(l)
	parallel.SetLogger(l)
}

// Logger returns the current logger used by tilefx.
// Sub-packages (ops/, filter/) call this to share the same logger
// configuration without introducing import cycles.
//
// Logger is safe for concurrent use.
func Logger() *slog.Logger {
	return loggerPtr.Load()
}

package tilera

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/gogpu/tilera/internal/tile"
	"github.com/gogpu/tilera/shaderc"
)

// nopHandler is a slog.Handler that silently discards all log records.
// Enabled returns false so callers skip message formatting entirely.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

func newNopLogger() *slog.Logger { return slog.New(nopHandler{}) }

// loggerPtr stores the active logger. Accessed atomically so that
// SetLogger can be called while a Context is recording.
var loggerPtr atomic.Pointer[slog.Logger]

func init() {
	loggerPtr.Store(newNopLogger())
}

// SetLogger configures the logger for tilera and its sub-packages.
// By default, tilera produces no log output.
//
// SetLogger is safe for concurrent use. Pass nil to restore silence.
//
// Log levels used by tilera:
//   - [slog.LevelDebug]: image layouts, memory blocks, shader cache loads
//   - [slog.LevelInfo]: context lifecycle (adapter, init, destroy)
//   - [slog.LevelWarn]: degraded paths (vertex copy fallback, failed cleanup)
//   - [slog.LevelError]: queue error state, descriptor exhaustion
//
// Example:
//
//	tilera.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
//	    Level: slog.LevelDebug,
//	})))
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = newNopLogger()
	}
	loggerPtr.Store(l)
	tile.SetLogger(l)
	shaderc.SetLogger(l)
}

// Logger returns the current logger used by tilera.
// The hwdec package and the CLI call this to share one configuration.
func Logger() *slog.Logger {
	return loggerPtr.Load()
}

func slogger() *slog.Logger { return loggerPtr.Load() }

// Package shaderc provides the shader compiler service used by tilera.
//
// A Compiler turns shader source for one stage into GPU code. The bundled
// implementation compiles WGSL with github.com/gogpu/naga. Other compilers
// register with Register, following the database/sql driver pattern:
//
//	func init() {
//	    shaderc.Register("mycc", func() shaderc.Compiler { return New() })
//	}
package shaderc

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/gogpu/gputypes"
)

// Compiler errors.
var (
	// ErrUnsupportedStage is returned for stages the compiler cannot target.
	ErrUnsupportedStage = errors.New("shaderc: unsupported shader stage")

	// ErrMissingEntryPoint is returned when the source has no entry point for the stage.
	ErrMissingEntryPoint = errors.New("shaderc: no entry point for stage")

	// ErrEmptySource is returned for empty shader source.
	ErrEmptySource = errors.New("shaderc: empty shader source")
)

// Compiler compiles shader source to GPU code.
// Implementations must be safe for concurrent use.
type Compiler interface {
	// Name identifies the compiler in logs and the registry.
	Name() string

	// Compile compiles source for stage.
	Compile(stage gputypes.ShaderStage, source string) ([]byte, error)
}

// StageName returns a short name for a single stage.
func StageName(s gputypes.ShaderStage) string {
	switch s {
	case gputypes.ShaderStageVertex:
		return "vertex"
	case gputypes.ShaderStageFragment:
		return "fragment"
	case gputypes.ShaderStageCompute:
		return "compute"
	}
	return "unknown"
}

type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

var loggerPtr atomic.Pointer[slog.Logger]

func init() {
	loggerPtr.Store(slog.New(nopHandler{}))
}

func slogger() *slog.Logger { return loggerPtr.Load() }

// SetLogger sets the logger for compiler diagnostics. nil disables logging.
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = slog.New(nopHandler{})
	}
	loggerPtr.Store(l)
}

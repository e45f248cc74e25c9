package tilera

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/tilera/shaderc"
)

// countingCompiler is a test compiler that records how often it runs.
// The produced code is derived from the stage and source, so equal inputs
// give equal code.
type countingCompiler struct {
	calls int
	fail  bool
}

func (c *countingCompiler) Name() string { return "counting" }

func (c *countingCompiler) Compile(stage gputypes.ShaderStage, src string) ([]byte, error) {
	c.calls++
	if c.fail || strings.Contains(src, "syntax error") {
		return nil, errors.New("counting: syntax error")
	}
	return []byte(fmt.Sprintf("%s:%s", shaderc.StageName(stage), src)), nil
}

// newTestContext opens a headless context with a counting compiler.
func newTestContext(t *testing.T, opts ...ContextOption) (*Context, *countingCompiler) {
	t.Helper()
	cc := &countingCompiler{}
	ctx, err := NewHeadless(append([]ContextOption{WithCompiler(cc)}, opts...)...)
	if err != nil {
		t.Fatalf("NewHeadless() error = %v", err)
	}
	t.Cleanup(ctx.Destroy)
	return ctx, cc
}

func mustFormat(t *testing.T, name string) *Format {
	t.Helper()
	f, err := FormatByName(name)
	if err != nil {
		t.Fatalf("FormatByName(%q) error = %v", name, err)
	}
	return f
}

func mustTexture(t *testing.T, ctx *Context, p TextureParams) *Texture {
	t.Helper()
	tex, err := ctx.CreateTexture(p)
	if err != nil {
		t.Fatalf("CreateTexture(%+v) error = %v", p, err)
	}
	t.Cleanup(tex.Destroy)
	return tex
}

// pattern returns n bytes of a repeating non-zero pattern.
func pattern(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i*7 + 1)
	}
	return b
}

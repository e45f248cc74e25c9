package tilera

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"sync"
	"testing"
)

// captureLogs installs a text logger at level and restores the previous
// logger when the test ends.
func captureLogs(t *testing.T, level slog.Level) *bytes.Buffer {
	t.Helper()
	orig := Logger()
	t.Cleanup(func() { SetLogger(orig) })
	var buf bytes.Buffer
	SetLogger(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: level})))
	return &buf
}

func TestNopHandler(t *testing.T) {
	h := nopHandler{}
	bg := context.Background()
	for _, level := range []slog.Level{slog.LevelDebug, slog.LevelError} {
		if h.Enabled(bg, level) {
			t.Errorf("Enabled(%v) = true", level)
		}
	}
	if err := h.Handle(bg, slog.Record{}); err != nil {
		t.Errorf("Handle() = %v", err)
	}
	if _, ok := h.WithAttrs([]slog.Attr{slog.Int("slot", 3)}).(nopHandler); !ok {
		t.Error("WithAttrs() left the nop handler")
	}
	if _, ok := h.WithGroup("tile").(nopHandler); !ok {
		t.Error("WithGroup() left the nop handler")
	}
}

func TestLoggerDefaultSilent(t *testing.T) {
	l := Logger()
	if l == nil {
		t.Fatal("Logger() = nil")
	}
	if l.Enabled(context.Background(), slog.LevelWarn) {
		t.Error("default logger enabled at warn")
	}
}

func TestSetLogger(t *testing.T) {
	buf := captureLogs(t, slog.LevelInfo)
	Logger().Info("slice begin", "slice", 2)
	if !strings.Contains(buf.String(), "slice=2") {
		t.Errorf("log output = %q", buf.String())
	}

	SetLogger(nil)
	if l := Logger(); l == nil || l.Enabled(context.Background(), slog.LevelError) {
		t.Error("SetLogger(nil) did not restore a silent logger")
	}
}

func TestSetLoggerPropagatesToDevice(t *testing.T) {
	buf := captureLogs(t, slog.LevelDebug)

	ctx, _ := newTestContext(t)
	mustTexture(t, ctx, TextureParams{Dimensions: 2, W: 4, H: 4, Format: mustFormat(t, "r8")})

	out := buf.String()
	for _, want := range []string{
		"tilera: creating context",
		"tilera: texture created",
		"tile: image layout",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q", want)
		}
	}
}

func TestDebugMarkerSilentOnHealthyQueue(t *testing.T) {
	buf := captureLogs(t, slog.LevelError)
	ctx, _ := newTestContext(t)
	ctx.DebugMarker("frame 1")
	if buf.Len() != 0 {
		t.Errorf("DebugMarker on healthy queue logged %q", buf.String())
	}
}

func TestLoggerConcurrentAccess(t *testing.T) {
	orig := Logger()
	t.Cleanup(func() { SetLogger(orig) })

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			Logger().Debug("concurrent read")
		}()
		go func() {
			defer wg.Done()
			SetLogger(slog.Default())
			SetLogger(nil)
		}()
	}
	wg.Wait()
}

func BenchmarkLoggerDisabledLog(b *testing.B) {
	l := Logger()
	b.ReportAllocs()
	for b.Loop() {
		l.Debug("descriptor", "slot", 1)
	}
}

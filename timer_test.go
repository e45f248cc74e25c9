package tilera

import (
	"errors"
	"testing"

	"github.com/gogpu/tilera/internal/tile"
)

func TestTimerFirstResultsAreZero(t *testing.T) {
	ctx, _ := newTestContext(t)
	tm, err := ctx.NewTimer()
	if err != nil {
		t.Fatalf("NewTimer() error = %v", err)
	}
	defer tm.Destroy()

	if got := tm.Start(); got != 0 {
		t.Errorf("first Start() = %d, want 0", got)
	}
	if got := tm.Stop(); got != 0 {
		t.Errorf("first Stop() = %d, want 0", got)
	}
	if ctx.Queue().Pending() == 0 {
		t.Error("Stop() did not submit")
	}
}

func TestTimerMeasuresAfterTwoFrames(t *testing.T) {
	ctx, _ := newTestContext(t)
	tm, err := ctx.NewTimer()
	if err != nil {
		t.Fatal(err)
	}
	defer tm.Destroy()

	frame := func() uint64 {
		v := tm.Start()
		ctx.DebugMarker("timed work")
		ctx.cmd().Barrier(tile.BarrierNone, 0)
		tm.Stop()
		drain(t, ctx)
		return v
	}
	if v := frame(); v != 0 {
		t.Errorf("frame 1 result = %d, want 0", v)
	}
	// Frame 2 reads the other, still empty, query.
	if v := frame(); v != 0 {
		t.Errorf("frame 2 result = %d, want 0", v)
	}
	// Frame 3 reads what frame 1 measured.
	v := frame()
	if v == 0 {
		t.Fatal("frame 3 result = 0, want frame 1 duration")
	}
	if v != tm.Result() {
		t.Errorf("Result() = %d, want %d", tm.Result(), v)
	}
}

func TestTimerExhaustionAndRecycling(t *testing.T) {
	ctx, _ := newTestContext(t)
	timers := make([]*Timer, 0, MaxQueries/timerQueries)
	for range MaxQueries / timerQueries {
		tm, err := ctx.NewTimer()
		if err != nil {
			t.Fatalf("NewTimer() #%d error = %v", len(timers)+1, err)
		}
		timers = append(timers, tm)
	}
	if _, err := ctx.NewTimer(); !errors.Is(err, ErrQueriesExhausted) {
		t.Fatalf("NewTimer() past the pool error = %v, want ErrQueriesExhausted", err)
	}

	// Leave a measurement behind in the timer that gets recycled.
	old := timers[10]
	for range 3 {
		old.Start()
		old.Stop()
		drain(t, ctx)
	}
	idx := old.idx
	old.Destroy()
	old.Destroy()

	tm, err := ctx.NewTimer()
	if err != nil {
		t.Fatalf("NewTimer() after Destroy error = %v", err)
	}
	if tm.idx != idx {
		t.Errorf("recycled queries = %v, want %v", tm.idx, idx)
	}
	if got := tm.Start(); got != 0 {
		t.Errorf("recycled timer first Start() = %d, want 0", got)
	}
	if _, err := ctx.NewTimer(); !errors.Is(err, ErrQueriesExhausted) {
		t.Errorf("NewTimer() with pool full again error = %v, want ErrQueriesExhausted", err)
	}
}

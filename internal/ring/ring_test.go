package ring

import (
	"errors"
	"testing"

	"github.com/gogpu/tilera/internal/tile"
)

func newRing(t *testing.T) *Ring {
	t.Helper()
	dev, err := tile.OpenNoop()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(dev.Close)
	q, err := dev.CreateQueue()
	if err != nil {
		t.Fatal(err)
	}
	r, err := New(dev, q, 100)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(r.Destroy)
	return r
}

func TestSliceSizeAligned(t *testing.T) {
	r := newRing(t)
	if r.SliceSize() != 0x1000 {
		t.Errorf("SliceSize = %#x, want 0x1000", r.SliceSize())
	}
	if r.CmdBuf().Capacity() != 0x1000 {
		t.Errorf("initial capacity = %#x", r.CmdBuf().Capacity())
	}
}

func TestRingCyclesThreeSlices(t *testing.T) {
	r := newRing(t)
	var seen []int
	for i := 0; i < 7; i++ {
		if err := r.Begin(); err != nil {
			t.Fatalf("Begin %d: %v", i, err)
		}
		seen = append(seen, r.Current())
		r.CmdBuf().Barrier(tile.BarrierNone, 0)
		if err := r.End(nil); err != nil {
			t.Fatalf("End %d: %v", i, err)
		}
	}
	want := []int{1, 2, 0, 1, 2, 0, 1}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("slice order = %v, want %v", seen, want)
		}
	}
}

func TestSliceFenceObservedBeforeReuse(t *testing.T) {
	r := newRing(t)
	var done tile.Fence
	for i := 0; i < 10; i++ {
		if err := r.Begin(); err != nil {
			t.Fatal(err)
		}
		r.CmdBuf().Barrier(tile.BarrierFull, tile.InvalidateImage)
		if err := r.End(&done); err != nil {
			t.Fatal(err)
		}
	}
	for i := 0; i < Slices; i++ {
		if r.Uses(i) != r.Observed(i) {
			t.Errorf("slice %d: used %d times, observed %d", i, r.Uses(i), r.Observed(i))
		}
	}
	if err := done.Wait(tile.Forever); err != nil {
		t.Errorf("done fence: %v", err)
	}
}

func TestFirstBeginWaitsIdle(t *testing.T) {
	r := newRing(t)
	var setup tile.Fence
	r.CmdBuf().SignalFence(&setup, false)
	if err := r.Submit(); err != nil {
		t.Fatal(err)
	}
	if err := r.Begin(); err != nil {
		t.Fatal(err)
	}
	if err := setup.Wait(tile.Poll); err != nil {
		t.Errorf("setup work not retired by first Begin: %v", err)
	}
}

func TestSliceOverflow(t *testing.T) {
	r := newRing(t)
	if err := r.Begin(); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 200; i++ {
		r.CmdBuf().Barrier(tile.BarrierNone, 0)
	}
	if err := r.End(nil); !errors.Is(err, tile.ErrCmdBufFull) {
		t.Errorf("End err = %v, want ErrCmdBufFull", err)
	}
}

func TestDestroyedRing(t *testing.T) {
	r := newRing(t)
	r.Destroy()
	if err := r.Begin(); !errors.Is(err, ErrClosed) {
		t.Errorf("Begin err = %v", err)
	}
}

// Package ring manages command memory as a ring of slices, each guarded by
// a fence, so recording never overwrites commands the GPU has not consumed.
package ring

import (
	"errors"
	"fmt"

	"github.com/gogpu/tilera/internal/tile"
)

// Slices is the number of command memory slices.
const Slices = 3

// DefaultSliceSize is the command memory per slice.
const DefaultSliceSize = 0x10000

// ErrClosed is returned when using a destroyed ring.
var ErrClosed = errors.New("ring: closed")

// Ring cycles a command buffer over Slices regions of one memory block.
type Ring struct {
	dev   *tile.Device
	queue *tile.Queue
	mem   *tile.MemBlock
	cmd   *tile.CmdBuf

	sliceSize uint32
	fences    [Slices]tile.Fence
	cur       int
	started   bool

	// uses counts binds of each slice; observed counts fence waits that
	// completed before the bind.
	uses     [Slices]int
	observed [Slices]int
}

// New allocates command memory and binds the command buffer to slice 0.
func New(dev *tile.Device, queue *tile.Queue, sliceSize uint32) (*Ring, error) {
	if sliceSize == 0 {
		sliceSize = DefaultSliceSize
	}
	sliceSize = tile.AlignUp(sliceSize, tile.MemBlockAlignment)
	mem, err := dev.CreateMemBlock(tile.MemBlockDesc{
		Label: "command ring",
		Size:  sliceSize * Slices,
		Flags: tile.MemCPUUncached | tile.MemGPUCached,
	})
	if err != nil {
		return nil, fmt.Errorf("ring: command memory: %w", err)
	}
	r := &Ring{
		dev:       dev,
		queue:     queue,
		mem:       mem,
		cmd:       dev.NewCmdBuf(),
		sliceSize: sliceSize,
	}
	r.cmd.AddMemory(mem, 0, sliceSize)
	r.uses[0] = 1
	r.observed[0] = 1
	return r, nil
}

// CmdBuf returns the command buffer bound to the current slice.
func (r *Ring) CmdBuf() *tile.CmdBuf { return r.cmd }

// Queue returns the queue the ring submits to.
func (r *Ring) Queue() *tile.Queue { return r.queue }

// Current returns the index of the slice being recorded.
func (r *Ring) Current() int { return r.cur }

// SliceSize returns the bytes of command memory per slice.
func (r *Ring) SliceSize() uint32 { return r.sliceSize }

// Begin moves recording to the next slice, waiting until the GPU is done
// with it. The first call waits for the queue to go idle. Commands still
// pending in the old slice are submitted first.
func (r *Ring) Begin() error {
	if r.mem == nil {
		return ErrClosed
	}
	// Work recorded between frames goes ahead of the new frame.
	if r.cmd.Len() > 0 {
		if err := r.submit(); err != nil {
			return err
		}
	}
	if !r.started {
		if err := r.queue.WaitIdle(); err != nil {
			return fmt.Errorf("ring: initial wait: %w", err)
		}
		r.started = true
	}
	r.cur = (r.cur + 1) % Slices
	if err := r.fences[r.cur].Wait(tile.Forever); err != nil {
		return fmt.Errorf("ring: slice %d: %w", r.cur, err)
	}
	r.observed[r.cur]++
	r.uses[r.cur]++
	r.cmd.Clear()
	r.cmd.AddMemory(r.mem, uint32(r.cur)*r.sliceSize, r.sliceSize)
	return nil
}

// End signals done (if non-nil) and the slice fence, then submits and flushes.
func (r *Ring) End(done *tile.Fence) error {
	if r.mem == nil {
		return ErrClosed
	}
	if done != nil {
		r.cmd.SignalFence(done, false)
	}
	r.cmd.SignalFence(&r.fences[r.cur], false)
	if err := r.submit(); err != nil {
		return err
	}
	r.queue.Flush()
	return nil
}

// Submit finishes the recorded commands and submits them without flushing.
func (r *Ring) Submit() error { return r.submit() }

// Flush submits recorded commands and makes them visible to the GPU.
func (r *Ring) Flush() error {
	if err := r.submit(); err != nil {
		return err
	}
	r.queue.Flush()
	return nil
}

func (r *Ring) submit() error {
	list, err := r.cmd.Finish()
	if err != nil {
		return fmt.Errorf("ring: slice %d: %w", r.cur, err)
	}
	r.queue.Submit(list)
	return nil
}

// Uses returns how often slice i was bound for recording.
func (r *Ring) Uses(i int) int { return r.uses[i] }

// Observed returns how often slice i was bound after its fence completed.
func (r *Ring) Observed(i int) int { return r.observed[i] }

// Destroy releases command memory. The caller waits for idle first.
func (r *Ring) Destroy() {
	if r.mem == nil {
		return
	}
	r.mem.Destroy()
	r.mem = nil
}

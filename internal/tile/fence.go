package tile

import (
	"errors"
	"fmt"
)

// Fence errors.
var (
	// ErrTimeout is returned by a Poll wait on a pending fence.
	ErrTimeout = errors.New("tile: fence not yet signalled")

	// ErrTimeoutGranularity is returned for timeouts other than Poll and Forever.
	ErrTimeoutGranularity = errors.New("tile: only Poll and Forever waits are supported")

	// ErrNeverSignaled is returned when a Forever wait targets a signal that
	// was never flushed to the GPU.
	ErrNeverSignaled = errors.New("tile: fence signal was never flushed")

	// ErrQueueError is returned when the queue faulted before the fence was reached.
	ErrQueueError = errors.New("tile: queue is in error state")
)

// Wait timeouts.
const (
	Poll    int64 = 0
	Forever int64 = -1
)

// Fence is a GPU-to-host completion token. The zero value is ready to use
// and reads as signalled until a signal is recorded.
type Fence struct {
	dev     *Device
	armed   uint64
	reached uint64
}

// arm counts a newly recorded signal.
func (f *Fence) arm(d *Device) uint64 {
	f.dev = d
	f.armed++
	return f.armed
}

// reach is called by the executor when signal seq runs.
func (f *Fence) reach(seq uint64) {
	if seq > f.reached {
		f.reached = seq
	}
}

// Signalled reports whether the latest recorded signal has executed.
func (f *Fence) Signalled() bool { return f.reached >= f.armed }

// Wait blocks until the fence is signalled. timeout must be Poll or Forever.
// A Forever wait drives the simulated GPU through flushed work.
func (f *Fence) Wait(timeout int64) error {
	if f.Signalled() {
		return nil
	}
	q := f.dev.queue
	switch timeout {
	case Poll:
		if q != nil && q.IsInErrorState() {
			return ErrQueueError
		}
		return ErrTimeout
	case Forever:
		if q == nil {
			return ErrNeverSignaled
		}
		q.retireUntil(f)
		if f.Signalled() {
			return nil
		}
		if q.IsInErrorState() {
			return fmt.Errorf("%w: %v", ErrQueueError, q.errState)
		}
		return ErrNeverSignaled
	}
	return fmt.Errorf("%w: got %d", ErrTimeoutGranularity, timeout)
}

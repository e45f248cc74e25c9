package tile

import (
	"fmt"
)

// QueueStats counts queue activity.
type QueueStats struct {
	Submits  int
	Flushes  int
	Lists    int
	Commands int
}

// String returns a compact summary.
func (s QueueStats) String() string {
	return fmt.Sprintf("Queue[%d submits, %d flushes, %d lists, %d commands]",
		s.Submits, s.Flushes, s.Lists, s.Commands)
}

// Queue is the device's single submission queue.
//
// Submitted lists become visible to the GPU only on Flush. Visible lists
// execute when the host blocks on them: Fence.Wait(Forever), WaitIdle or Retire.
type Queue struct {
	dev *Device

	pending []*CmdList
	visible []*CmdList

	errState error
	stats    QueueStats
}

// Submit appends list to the queue. It is not visible to the GPU until Flush.
func (q *Queue) Submit(list *CmdList) {
	if list == nil || list.Len() == 0 {
		return
	}
	q.pending = append(q.pending, list)
	q.stats.Submits++
	if _, err := q.dev.halQueue.Submit(nil); err != nil {
		slogger().Warn("tile: hal submit failed", "err", err)
	}
}

// SignalFence queues a signal of f after all previously submitted work.
func (q *Queue) SignalFence(f *Fence, flush bool) {
	q.Submit(&CmdList{cmds: []Command{SignalFenceCommand{Fence: f, Seq: f.arm(q.dev), Flush: flush}}})
}

// WaitFence makes later submissions wait for f.
func (q *Queue) WaitFence(f *Fence) {
	if f == nil {
		return
	}
	q.Submit(&CmdList{cmds: []Command{WaitFenceCommand{Fence: f, Seq: f.armed}}})
}

// Flush makes submitted work visible to the GPU.
func (q *Queue) Flush() {
	if len(q.pending) == 0 {
		return
	}
	q.visible = append(q.visible, q.pending...)
	q.pending = q.pending[:0]
	q.stats.Flushes++
}

// Retire executes all visible work.
func (q *Queue) Retire() {
	for len(q.visible) > 0 {
		q.runNext()
	}
}

// WaitIdle flushes and executes everything submitted.
func (q *Queue) WaitIdle() error {
	q.Flush()
	q.Retire()
	if err := q.dev.hal.WaitIdle(); err != nil {
		return fmt.Errorf("tile: hal wait idle: %w", err)
	}
	if q.errState != nil {
		return fmt.Errorf("%w: %v", ErrQueueError, q.errState)
	}
	return nil
}

// IsInErrorState reports whether a previous list faulted.
func (q *Queue) IsInErrorState() bool { return q.errState != nil }

// Stats returns queue counters.
func (q *Queue) Stats() QueueStats { return q.stats }

// Pending returns the number of submitted lists not yet flushed.
func (q *Queue) Pending() int { return len(q.pending) }

// retireUntil executes visible lists until f is signalled or nothing is left.
func (q *Queue) retireUntil(f *Fence) {
	for len(q.visible) > 0 && !f.Signalled() {
		q.runNext()
	}
}

func (q *Queue) runNext() {
	l := q.visible[0]
	q.visible[0] = nil
	q.visible = q.visible[1:]
	q.stats.Lists++
	if q.errState != nil {
		return
	}
	for _, c := range l.cmds {
		q.stats.Commands++
		if err := q.dev.execute(c); err != nil {
			q.errState = err
			slogger().Error("tile: queue fault", "cmd", c.Type().String(), "err", err)
			return
		}
	}
}

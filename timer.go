package tilera

import (
	"encoding/binary"
	"fmt"

	"github.com/gogpu/tilera/internal/tile"
)

// timerQueries is the number of queries a timer alternates between, so
// the result read at Start belongs to a frame that already completed.
const timerQueries = 2

// Timer measures GPU time between Start and Stop with timestamp reports.
// Results lag one use behind: Start returns the duration measured by the
// Start/Stop pair before the previous one.
type Timer struct {
	ctx    *Context
	idx    [timerQueries]int
	cur    int
	result uint64
}

// NewTimer reserves a pair of queries for a timer.
func (c *Context) NewTimer() (*Timer, error) {
	t := &Timer{ctx: c}
	if n := len(c.freeQueries); n > 0 {
		t.idx = c.freeQueries[n-1]
		c.freeQueries = c.freeQueries[:n-1]
		c.clearQueries(t.idx)
		return t, nil
	}
	if c.numQueries+timerQueries > MaxQueries {
		return nil, fmt.Errorf("%w: %d of %d in use", ErrQueriesExhausted, c.numQueries, MaxQueries)
	}
	for i := range t.idx {
		t.idx[i] = c.numQueries
		c.numQueries++
	}
	return t, nil
}

// clearQueries zeroes recycled queries so a new timer starts at zero.
func (c *Context) clearQueries(idx [timerQueries]int) {
	mem := c.queryMem.CPUAddr()
	for _, q := range idx {
		off := 2 * q * queryStride
		clear(mem[off : off+2*queryStride])
	}
}

// Start records the opening timestamp and returns the last completed
// measurement in nanoseconds, or 0 if none exists yet.
func (t *Timer) Start() uint64 {
	c := t.ctx
	t.cur = (t.cur + 1) % timerQueries
	q := t.idx[t.cur]
	off := 2 * q * queryStride

	mem := c.queryMem.CPUAddr()[off : off+2*queryStride]
	var w [4]uint64
	for i := range w {
		w[i] = binary.LittleEndian.Uint64(mem[i*8:])
	}
	t.result = 0
	if w[3] > w[1] {
		t.result = tile.TimestampToNs(w[3] - w[1])
	}

	c.cmd().ReportCounter(tile.CounterTimestamp, c.queryMem.GPUAddr()+uint64(off))
	return t.result
}

// Stop records the closing timestamp, submits the recorded commands
// without flushing and returns the value Start returned.
func (t *Timer) Stop() uint64 {
	c := t.ctx
	q := t.idx[t.cur]
	c.cmd().ReportCounter(tile.CounterTimestamp, c.queryMem.GPUAddr()+uint64((2*q+1)*queryStride))
	if err := c.ring.Submit(); err != nil {
		slogger().Warn("tilera: timer submit", "err", err)
	}
	return t.result
}

// Result returns the last value reported by Start.
func (t *Timer) Result() uint64 { return t.result }

// Destroy returns the timer's queries to the context.
func (t *Timer) Destroy() {
	if t == nil || t.ctx == nil {
		return
	}
	t.ctx.freeQueries = append(t.ctx.freeQueries, t.idx)
	t.ctx = nil
}

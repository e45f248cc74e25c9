// Package desc allocates descriptor slots from a fixed-capacity bitset.
package desc

import (
	"errors"
	"math/bits"
)

// Capacity is the number of descriptor slots.
const Capacity = 128

// Invalid is returned by Allocate when no slot is free.
const Invalid = -1

// ErrExhausted is returned when every slot is in use.
var ErrExhausted = errors.New("desc: descriptor table exhausted")

// Table tracks which descriptor slots are in use.
// The zero value is an empty table.
type Table struct {
	words [Capacity / 64]uint64
}

// Allocate returns the lowest free slot and marks it used.
func (t *Table) Allocate() (int, error) {
	for i, w := range t.words {
		if w == ^uint64(0) {
			continue
		}
		bit := bits.TrailingZeros64(^w)
		t.words[i] |= 1 << bit
		return i*64 + bit, nil
	}
	return Invalid, ErrExhausted
}

// Release frees slot i. Releasing a free or out-of-range slot is a no-op.
func (t *Table) Release(i int) {
	if i < 0 || i >= Capacity {
		return
	}
	t.words[i/64] &^= 1 << (i % 64)
}

// InUse reports whether slot i is allocated.
func (t *Table) InUse(i int) bool {
	if i < 0 || i >= Capacity {
		return false
	}
	return t.words[i/64]&(1<<(i%64)) != 0
}

// Count returns the number of allocated slots.
func (t *Table) Count() int {
	n := 0
	for _, w := range t.words {
		n += bits.OnesCount64(w)
	}
	return n
}

package tile

import (
	"errors"
	"fmt"
	"sync"
)

// Memory management errors.
var (
	// ErrMemoryBudgetExceeded is returned when an allocation would exceed the budget.
	ErrMemoryBudgetExceeded = errors.New("tile: memory budget exceeded")

	// ErrInvalidSize is returned for zero-sized or misaligned memory blocks.
	ErrInvalidSize = errors.New("tile: invalid memory block size")

	// ErrOutOfRange is returned when an access falls outside a memory block.
	ErrOutOfRange = errors.New("tile: access out of memory block range")

	// ErrUnmappedAddress is returned when a GPU address does not resolve to a live block.
	ErrUnmappedAddress = errors.New("tile: unmapped GPU address")
)

// Memory layout constants.
const (
	// MemBlockAlignment is the required alignment of memory block sizes and
	// imported storage.
	MemBlockAlignment = 0x1000

	// ShaderCodeAlignment is the required alignment of shader code offsets.
	ShaderCodeAlignment = 0x100

	// ShaderCodeUnusableSize is the trailer every code block must reserve
	// for instruction prefetch.
	ShaderCodeUnusableSize = 0x80
)

// AlignUp rounds v up to a multiple of a, which must be a power of two.
func AlignUp[T ~uint32 | ~uint64 | ~int](v, a T) T {
	return (v + a - 1) &^ (a - 1)
}

// MemoryStats contains device memory usage statistics.
type MemoryStats struct {
	// BudgetBytes is the allocation budget in bytes (0 = unlimited).
	BudgetBytes uint64

	// UsedBytes is the currently allocated device memory in bytes.
	// Imported storage is not counted.
	UsedBytes uint64

	// BlockCount is the number of live device-owned blocks.
	BlockCount int

	// ImportCount is the number of live blocks wrapping host storage.
	ImportCount int

	// PeakBytes is the high-water mark of UsedBytes.
	PeakBytes uint64
}

// Utilization returns UsedBytes as a fraction of the budget, or 0 when
// the budget is unlimited.
func (s MemoryStats) Utilization() float64 {
	if s.BudgetBytes == 0 {
		return 0
	}
	return float64(s.UsedBytes) / float64(s.BudgetBytes)
}

// String returns a human-readable string of memory stats.
func (s MemoryStats) String() string {
	if s.BudgetBytes == 0 {
		return fmt.Sprintf("Memory[%d KiB used, %d blocks, %d imports]",
			s.UsedBytes/1024, s.BlockCount, s.ImportCount)
	}
	return fmt.Sprintf("Memory[%.1f%% used, %d/%d KiB, %d blocks, %d imports]",
		s.Utilization()*100,
		s.UsedBytes/1024,
		s.BudgetBytes/1024,
		s.BlockCount,
		s.ImportCount)
}

// memoryTracker accounts device-owned allocations against a budget.
// It never evicts: an allocation that does not fit fails.
type memoryTracker struct {
	mu sync.Mutex

	budget  uint64
	used    uint64
	peak    uint64
	blocks  int
	imports int
}

// reserve accounts size bytes, failing if the budget would be exceeded.
func (t *memoryTracker) reserve(size uint64) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.budget != 0 && t.used+size > t.budget {
		return fmt.Errorf("%w: need %d KiB, %d/%d KiB in use",
			ErrMemoryBudgetExceeded, size/1024, t.used/1024, t.budget/1024)
	}
	t.used += size
	t.blocks++
	if t.used > t.peak {
		t.peak = t.used
	}
	return nil
}

// release returns size bytes reserved earlier.
func (t *memoryTracker) release(size uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.used -= size
	t.blocks--
}

func (t *memoryTracker) addImport(delta int) {
	t.mu.Lock()
	t.imports += delta
	t.mu.Unlock()
}

func (t *memoryTracker) stats() MemoryStats {
	t.mu.Lock()
	defer t.mu.Unlock()
	return MemoryStats{
		BudgetBytes: t.budget,
		UsedBytes:   t.used,
		BlockCount:  t.blocks,
		ImportCount: t.imports,
		PeakBytes:   t.peak,
	}
}

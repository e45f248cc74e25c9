package tile

import (
	"fmt"
	"strings"
	"unsafe"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// MemFlags describes the cache attributes and usage of a memory block.
type MemFlags uint32

const (
	// MemCPUUncached maps the block write-combined on the CPU.
	MemCPUUncached MemFlags = 1 << iota
	// MemCPUCached maps the block cached on the CPU; writes need FlushCPUCache.
	MemCPUCached
	// MemGPUUncached bypasses the GPU L2 cache.
	MemGPUUncached
	// MemGPUCached goes through the GPU L2 cache.
	MemGPUCached
	// MemCode allows the block to hold shader code.
	MemCode
	// MemImage allows the block to back images.
	MemImage
	// MemZeroFill clears the block at creation.
	MemZeroFill
)

var memFlagNames = [...]string{
	"CpuUncached", "CpuCached", "GpuUncached", "GpuCached", "Code", "Image", "ZeroFill",
}

// String returns the set flags joined with '|'.
func (f MemFlags) String() string {
	if f == 0 {
		return "None"
	}
	var parts []string
	for i, name := range memFlagNames {
		if f&(1<<i) != 0 {
			parts = append(parts, name)
		}
	}
	return strings.Join(parts, "|")
}

// CPUCached reports whether host writes must be flushed before GPU reads.
func (f MemFlags) CPUCached() bool { return f&MemCPUCached != 0 }

// MemBlockDesc describes a memory block to create.
type MemBlockDesc struct {
	// Label is an optional debug name.
	Label string

	// Size in bytes. Must be a non-zero multiple of MemBlockAlignment.
	Size uint32

	// Flags selects cache attributes and usage.
	Flags MemFlags

	// Storage, when non-nil, imports caller-owned host memory instead of
	// allocating device memory. The block aliases Storage; it may be shorter
	// than Size when Size was rounded up to the alignment.
	Storage []byte
}

// MemBlock is a contiguous range of GPU-visible memory with a CPU mapping.
type MemBlock struct {
	dev   *Device
	label string

	// raw is the HAL buffer backing device-owned blocks; nil for imports.
	raw hal.Buffer

	// data is the CPU view of the block.
	data []byte

	addr     uint64
	size     uint32
	flags    MemFlags
	imported bool

	flushes   int
	destroyed bool
}

// CreateMemBlock allocates or imports a memory block.
func (d *Device) CreateMemBlock(desc MemBlockDesc) (*MemBlock, error) {
	if desc.Size == 0 || desc.Size%MemBlockAlignment != 0 {
		return nil, fmt.Errorf("%w: %d (alignment %#x)", ErrInvalidSize, desc.Size, MemBlockAlignment)
	}
	if desc.Storage != nil && uint64(len(desc.Storage)) > uint64(desc.Size) {
		return nil, fmt.Errorf("%w: storage %d bytes exceeds block size %d",
			ErrInvalidSize, len(desc.Storage), desc.Size)
	}

	m := &MemBlock{
		dev:   d,
		label: desc.Label,
		size:  desc.Size,
		flags: desc.Flags,
	}

	if desc.Storage != nil {
		m.data = desc.Storage
		m.imported = true
		d.mem.addImport(1)
	} else {
		if err := d.mem.reserve(uint64(desc.Size)); err != nil {
			return nil, err
		}
		raw, err := d.hal.CreateBuffer(&hal.BufferDescriptor{
			Label: desc.Label,
			Size:  uint64(desc.Size),
			Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageMapWrite |
				gputypes.BufferUsageCopySrc | gputypes.BufferUsageCopyDst |
				gputypes.BufferUsageStorage,
		})
		if err != nil {
			d.mem.release(uint64(desc.Size))
			return nil, fmt.Errorf("tile: create memory block %q: %w", desc.Label, err)
		}
		mapping, err := d.hal.MapBuffer(raw, 0, uint64(desc.Size))
		if err != nil {
			d.hal.DestroyBuffer(raw)
			d.mem.release(uint64(desc.Size))
			return nil, fmt.Errorf("tile: map memory block %q: %w", desc.Label, err)
		}
		m.raw = raw
		m.data = unsafe.Slice((*byte)(mapping.Ptr), desc.Size)
		if desc.Flags&MemZeroFill != 0 {
			clear(m.data)
		}
	}

	d.track(m)
	slogger().Debug("tile: memory block created",
		"label", desc.Label, "size", desc.Size, "flags", desc.Flags.String(),
		"addr", fmt.Sprintf("%#x", m.addr), "import", desc.Storage != nil)
	return m, nil
}

// CPUAddr returns the CPU view of the block, or nil once destroyed.
func (m *MemBlock) CPUAddr() []byte {
	if m.destroyed {
		return nil
	}
	return m.data
}

// GPUAddr returns the GPU virtual address of the first byte.
func (m *MemBlock) GPUAddr() uint64 { return m.addr }

// Size returns the block size in bytes.
func (m *MemBlock) Size() uint32 { return m.size }

// Flags returns the creation flags.
func (m *MemBlock) Flags() MemFlags { return m.flags }

// Label returns the debug name.
func (m *MemBlock) Label() string { return m.label }

// Imported reports whether the block wraps caller-owned storage.
func (m *MemBlock) Imported() bool { return m.imported }

// FlushCPUCache writes back CPU cache lines covering [offset, offset+size).
// The simulator keeps a single coherent copy, so only the call is recorded.
func (m *MemBlock) FlushCPUCache(offset, size uint32) {
	if uint64(offset)+uint64(size) > uint64(m.size) {
		slogger().Warn("tile: cache flush out of range",
			"label", m.label, "offset", offset, "size", size, "block", m.size)
		return
	}
	m.flushes++
}

// Flushes returns the number of CPU cache flushes issued on the block.
func (m *MemBlock) Flushes() int { return m.flushes }

// Destroy releases the block. Imported storage is left to its owner.
// The caller must ensure no pending GPU work still references the block.
func (m *MemBlock) Destroy() {
	if m == nil || m.destroyed {
		return
	}
	m.destroyed = true
	m.dev.untrack(m)
	if !m.imported {
		if err := m.dev.hal.UnmapBuffer(m.raw); err != nil {
			slogger().Warn("tile: unmap failed", "label", m.label, "err", err)
		}
		m.dev.hal.DestroyBuffer(m.raw)
		m.dev.mem.release(uint64(m.size))
		m.raw = nil
	} else {
		m.dev.mem.addImport(-1)
	}
	m.data = nil
}

package tilera

import (
	"errors"
	"fmt"

	"github.com/gogpu/tilera/internal/tile"
)

// BufferType is the intended use of a buffer.
type BufferType uint8

// Buffer types.
const (
	// BufferTexUpload is a staging buffer for texture uploads. It is
	// CPU-cached and GPU-uncached.
	BufferTexUpload BufferType = iota + 1
	// BufferUniform is updated through inline command pushes.
	BufferUniform
	// BufferShaderStorage is read and written by shaders.
	BufferShaderStorage
)

// String returns the buffer type name.
func (t BufferType) String() string {
	switch t {
	case BufferTexUpload:
		return "tex_upload"
	case BufferUniform:
		return "uniform"
	case BufferShaderStorage:
		return "shader_storage"
	}
	return fmt.Sprintf("BufferType(%d)", t)
}

// BufferParams describes a buffer to create.
type BufferParams struct {
	Type BufferType
	Size int

	// HostMapped exposes the buffer memory through Buffer.Data.
	HostMapped bool

	// InitialData is written with Update after creation.
	InitialData []byte
}

// Buffer is linear device memory with a completion fence.
type Buffer struct {
	ctx       *Context
	params    BufferParams
	mem       *tile.MemBlock
	fence     tile.Fence
	cpuCached bool
}

// Params returns the creation parameters. InitialData is always nil.
func (b *Buffer) Params() BufferParams { return b.params }

// Data returns the CPU view of a host-mapped buffer, or nil.
func (b *Buffer) Data() []byte {
	if !b.params.HostMapped || b.mem == nil {
		return nil
	}
	return b.mem.CPUAddr()[:b.params.Size]
}

// GPUAddr returns the device address of the first byte.
func (b *Buffer) GPUAddr() uint64 { return b.mem.GPUAddr() }

// CreateBuffer allocates a buffer.
func (c *Context) CreateBuffer(p BufferParams) (*Buffer, error) {
	if p.Size <= 0 {
		return nil, fmt.Errorf("%w: buffer size %d", ErrOutOfRange, p.Size)
	}
	cached := p.Type == BufferTexUpload
	flags := tile.MemCPUUncached | tile.MemGPUCached
	if cached {
		flags = tile.MemCPUCached | tile.MemGPUUncached
	}
	mem, err := c.dev.CreateMemBlock(tile.MemBlockDesc{
		Label: "buffer " + p.Type.String(),
		Size:  tile.AlignUp(uint32(p.Size), tile.MemBlockAlignment),
		Flags: flags,
	})
	if err != nil {
		return nil, err
	}
	initial := p.InitialData
	p.InitialData = nil
	b := &Buffer{ctx: c, params: p, mem: mem, cpuCached: cached}
	if initial != nil {
		if err := b.Update(0, initial); err != nil {
			mem.Destroy()
			return nil, err
		}
	}
	return b, nil
}

// Update writes data at offset.
//
// Uniform buffers are updated by an inline push recorded in the command
// stream, which does not block. Other buffers submit pending commands and
// wait for the queue to go idle before the host copy.
func (b *Buffer) Update(offset int, data []byte) error {
	if offset < 0 || offset+len(data) > b.params.Size {
		return fmt.Errorf("%w: %d bytes at %d in %d byte buffer", ErrOutOfRange, len(data), offset, b.params.Size)
	}
	c := b.ctx
	if b.params.Type == BufferUniform {
		if len(data) > tile.MaxPushSize {
			return fmt.Errorf("%w: %w", ErrOutOfRange, tile.ErrPushTooLarge)
		}
		c.cmd().PushConstants(b.mem.GPUAddr(), b.mem.Size(), uint32(offset), data)
		return c.cmd().Err()
	}
	if err := c.waitIdle(); err != nil {
		return err
	}
	copy(b.mem.CPUAddr()[offset:], data)
	if b.cpuCached {
		b.mem.FlushCPUCache(uint32(offset), uint32(len(data)))
	}
	return nil
}

// Poll reports whether the last operation on the buffer completed. It never
// blocks. A buffer that was never used reads as completed.
func (b *Buffer) Poll() bool {
	err := b.fence.Wait(tile.Poll)
	if err != nil && !errors.Is(err, tile.ErrTimeout) {
		slogger().Warn("tilera: buffer poll", "err", err)
	}
	return err == nil
}

// PollBuffer is Buffer.Poll.
func (c *Context) PollBuffer(b *Buffer) bool { return b.Poll() }

// Destroy frees the buffer memory. The caller must ensure no pending GPU
// work references the buffer.
func (b *Buffer) Destroy() {
	if b == nil {
		return
	}
	b.mem.Destroy()
	b.mem = nil
}

package tile

import (
	"errors"
	"fmt"

	"github.com/gogpu/gputypes"
)

// Command buffer errors.
var (
	// ErrCmdBufFull is returned when recorded commands exceed the memory given to the buffer.
	ErrCmdBufFull = errors.New("tile: command buffer memory exhausted")

	// ErrPushTooLarge is returned for inline pushes above MaxPushSize.
	ErrPushTooLarge = errors.New("tile: inline push too large")
)

const (
	// MaxPushSize is the largest inline data push.
	MaxPushSize = 0x7ffc

	cmdHeaderSize  = 8
	cmdPayloadSize = 24
)

// encodedSize is the command memory consumed by c.
func encodedSize(c Command) uint32 {
	switch c := c.(type) {
	case PushConstantsCommand:
		return cmdHeaderSize + 16 + AlignUp(uint32(len(c.Data)), 4)
	case PushDataCommand:
		return cmdHeaderSize + 8 + AlignUp(uint32(len(c.Data)), 4)
	case BindShadersCommand:
		return cmdHeaderSize + 8*uint32(len(c.Shaders)) + 4
	case BindVtxAttribStateCommand:
		return cmdHeaderSize + 8*uint32(len(c.Attribs))
	case BindVtxBufferStateCommand:
		return cmdHeaderSize + 8*uint32(len(c.Buffers))
	}
	return cmdHeaderSize + cmdPayloadSize
}

// CmdList is a finished, submittable sequence of commands.
type CmdList struct {
	cmds []Command
}

// Commands returns the recorded commands.
func (l *CmdList) Commands() []Command { return l.cmds }

// Len returns the number of commands.
func (l *CmdList) Len() int { return len(l.cmds) }

type cmdRegion struct {
	mem    *MemBlock
	offset uint32
	size   uint32
}

// CmdBuf records commands into memory handed to it with AddMemory.
// Errors are sticky: once a record fails, later records are dropped and
// Finish reports the first error.
type CmdBuf struct {
	dev      *Device
	regions  []cmdRegion
	capacity uint64
	used     uint64
	cmds     []Command
	err      error
}

// NewCmdBuf creates an empty command buffer.
func (d *Device) NewCmdBuf() *CmdBuf {
	return &CmdBuf{dev: d}
}

// AddMemory gives the buffer [offset, offset+size) of mem to record into.
func (b *CmdBuf) AddMemory(mem *MemBlock, offset, size uint32) {
	if uint64(offset)+uint64(size) > uint64(mem.Size()) {
		b.fail(fmt.Errorf("%w: command memory %#x+%#x in %q", ErrOutOfRange, offset, size, mem.Label()))
		return
	}
	b.regions = append(b.regions, cmdRegion{mem: mem, offset: offset, size: size})
	b.capacity += uint64(size)
}

// Clear drops recorded commands and all memory regions.
func (b *CmdBuf) Clear() {
	b.regions = b.regions[:0]
	b.capacity = 0
	b.used = 0
	b.cmds = nil
	b.err = nil
}

// Finish returns the commands recorded since the last Finish. Memory
// consumed so far stays consumed until Clear.
func (b *CmdBuf) Finish() (*CmdList, error) {
	if b.err != nil {
		err := b.err
		b.err = nil
		b.cmds = nil
		return nil, err
	}
	l := &CmdList{cmds: b.cmds}
	b.cmds = nil
	return l, nil
}

// Err returns the sticky recording error, if any.
func (b *CmdBuf) Err() error { return b.err }

// Len returns the number of commands pending Finish.
func (b *CmdBuf) Len() int { return len(b.cmds) }

// Used returns command memory consumed since Clear.
func (b *CmdBuf) Used() uint64 { return b.used }

// Capacity returns the command memory available since Clear.
func (b *CmdBuf) Capacity() uint64 { return b.capacity }

func (b *CmdBuf) fail(err error) {
	if b.err == nil {
		b.err = err
		slogger().Warn("tile: command recording failed", "err", err)
	}
}

func (b *CmdBuf) record(c Command) {
	if b.err != nil {
		return
	}
	n := uint64(encodedSize(c))
	if b.used+n > b.capacity {
		b.fail(fmt.Errorf("%w: %s needs %d bytes, %d/%d used",
			ErrCmdBufFull, c.Type(), n, b.used, b.capacity))
		return
	}
	b.used += n
	b.cmds = append(b.cmds, c)
}

// Barrier records a barrier.
func (b *CmdBuf) Barrier(mode BarrierMode, inv InvalidateFlags) {
	b.record(BarrierCommand{Mode: mode, Invalidate: inv})
}

// SignalFence records a GPU-side signal of f.
func (b *CmdBuf) SignalFence(f *Fence, flush bool) {
	n := len(b.cmds)
	b.record(SignalFenceCommand{Fence: f, Seq: f.armed + 1, Flush: flush})
	if len(b.cmds) > n {
		f.arm(b.dev)
	}
}

// WaitFence records a GPU-side wait on f.
func (b *CmdBuf) WaitFence(f *Fence) {
	b.record(WaitFenceCommand{Fence: f, Seq: f.armed})
}

// ReportCounter records a counter write of 16 bytes at addr.
func (b *CmdBuf) ReportCounter(c Counter, addr uint64) {
	b.record(ReportCounterCommand{Counter: c, Addr: addr})
}

// CopyBufferToImage records a linear-to-image copy.
func (b *CmdBuf) CopyBufferToImage(src CopyBuf, dst *Image, rect ImageRect) {
	b.record(CopyBufferToImageCommand{Src: src, Dst: dst, Rect: rect})
}

// CopyImageToBuffer records an image-to-linear copy.
func (b *CmdBuf) CopyImageToBuffer(src *Image, rect ImageRect, dst CopyBuf) {
	b.record(CopyImageToBufferCommand{Src: src, Rect: rect, Dst: dst})
}

// BlitImage records an image blit.
func (b *CmdBuf) BlitImage(src *Image, srcRect ImageRect, dst *Image, dstRect ImageRect, flags BlitFlags) {
	b.record(BlitImageCommand{Src: src, SrcRect: srcRect, Dst: dst, DstRect: dstRect, Flags: flags})
}

// PushConstants records an inline uniform update. data is copied.
func (b *CmdBuf) PushConstants(addr uint64, size, offset uint32, data []byte) {
	if len(data) > MaxPushSize {
		b.fail(fmt.Errorf("%w: %d bytes", ErrPushTooLarge, len(data)))
		return
	}
	b.record(PushConstantsCommand{Addr: addr, Size: size, Offset: offset, Data: clone(data)})
}

// PushData records an inline memory write. data is copied.
func (b *CmdBuf) PushData(addr uint64, data []byte) {
	if len(data) > MaxPushSize {
		b.fail(fmt.Errorf("%w: %d bytes", ErrPushTooLarge, len(data)))
		return
	}
	b.record(PushDataCommand{Addr: addr, Data: clone(data)})
}

// BindRenderTarget binds the color target.
func (b *CmdBuf) BindRenderTarget(color *Image) {
	b.record(BindRenderTargetCommand{Color: color})
}

// SetScissor sets the scissor rectangle.
func (b *CmdBuf) SetScissor(s Scissor) { b.record(SetScissorCommand{Scissor: s}) }

// SetViewport sets the viewport.
func (b *CmdBuf) SetViewport(v Viewport) { b.record(SetViewportCommand{Viewport: v}) }

// ClearColorFloat clears the render target with a float color.
func (b *CmdBuf) ClearColorFloat(target uint32, mask ColorMask, color [4]float32) {
	b.record(ClearColorFloatCommand{Target: target, Mask: mask, Color: color})
}

// ClearColorUint clears the render target with an integer color.
func (b *CmdBuf) ClearColorUint(target uint32, mask ColorMask, color [4]uint32) {
	b.record(ClearColorUintCommand{Target: target, Mask: mask, Color: color})
}

// DiscardColor invalidates the render target contents.
func (b *CmdBuf) DiscardColor(target uint32) { b.record(DiscardColorCommand{Target: target}) }

// BindShaders binds shaders to the stages in mask.
func (b *CmdBuf) BindShaders(mask StageFlag, shaders ...*Shader) {
	b.record(BindShadersCommand{Mask: mask, Shaders: shaders})
}

// BindRasterizerState binds rasterizer state.
func (b *CmdBuf) BindRasterizerState(s RasterizerState) {
	b.record(BindRasterizerStateCommand{State: s})
}

// BindColorState binds color state.
func (b *CmdBuf) BindColorState(s ColorState) { b.record(BindColorStateCommand{State: s}) }

// BindColorWriteState binds color write masks.
func (b *CmdBuf) BindColorWriteState(s ColorWriteState) {
	b.record(BindColorWriteStateCommand{State: s})
}

// BindDepthStencilState binds depth/stencil state.
func (b *CmdBuf) BindDepthStencilState(s DepthStencilState) {
	b.record(BindDepthStencilStateCommand{State: s})
}

// BindBlendState binds the blend equation of target.
func (b *CmdBuf) BindBlendState(target uint32, s gputypes.BlendState) {
	b.record(BindBlendStateCommand{Target: target, State: s})
}

// BindVtxBuffer binds vertex buffer slot.
func (b *CmdBuf) BindVtxBuffer(slot uint32, addr uint64, size uint32) {
	b.record(BindVtxBufferCommand{Slot: slot, Addr: addr, Size: size})
}

// BindVtxAttribState binds the vertex attribute layout.
func (b *CmdBuf) BindVtxAttribState(attribs ...VtxAttribState) {
	b.record(BindVtxAttribStateCommand{Attribs: attribs})
}

// BindVtxBufferState binds the vertex buffer layout.
func (b *CmdBuf) BindVtxBufferState(buffers ...VtxBufferState) {
	b.record(BindVtxBufferStateCommand{Buffers: buffers})
}

// BindTexture binds a combined texture handle.
func (b *CmdBuf) BindTexture(stage Stage, slot uint32, h ResHandle) {
	b.record(BindTextureCommand{Stage: stage, Slot: slot, Handle: h})
}

// BindImage binds a storage image handle.
func (b *CmdBuf) BindImage(stage Stage, slot uint32, h ResHandle) {
	b.record(BindImageCommand{Stage: stage, Slot: slot, Handle: h})
}

// BindUniformBuffer binds a uniform buffer range.
func (b *CmdBuf) BindUniformBuffer(stage Stage, slot uint32, addr uint64, size uint32) {
	b.record(BindUniformBufferCommand{Stage: stage, Slot: slot, Addr: addr, Size: size})
}

// BindStorageBuffer binds a storage buffer range.
func (b *CmdBuf) BindStorageBuffer(stage Stage, slot uint32, addr uint64, size uint32) {
	b.record(BindStorageBufferCommand{Stage: stage, Slot: slot, Addr: addr, Size: size})
}

// BindSamplerDescriptorSet binds the sampler table.
func (b *CmdBuf) BindSamplerDescriptorSet(addr uint64, count uint32) {
	b.record(BindSamplerDescriptorSetCommand{Addr: addr, Count: count})
}

// BindImageDescriptorSet binds the image table.
func (b *CmdBuf) BindImageDescriptorSet(addr uint64, count uint32) {
	b.record(BindImageDescriptorSetCommand{Addr: addr, Count: count})
}

// Draw records a non-indexed draw.
func (b *CmdBuf) Draw(prim Primitive, vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	b.record(DrawCommand{
		Primitive:     prim,
		VertexCount:   vertexCount,
		InstanceCount: instanceCount,
		FirstVertex:   firstVertex,
		FirstInstance: firstInstance,
	})
}

// DispatchCompute records a compute dispatch.
func (b *CmdBuf) DispatchCompute(x, y, z uint32) {
	b.record(DispatchComputeCommand{X: x, Y: y, Z: z})
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	return append([]byte(nil), b...)
}

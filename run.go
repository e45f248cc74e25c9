package tilera

import (
	"fmt"

	"github.com/gogpu/tilera/internal/desc"
	"github.com/gogpu/tilera/internal/tile"
)

// InputValue binds a resource to the pipeline input at Index.
type InputValue struct {
	Index int

	// Texture is set for VarTex and VarImageW inputs.
	Texture *Texture

	// Buffer is set for VarBufRO and VarBufRW inputs.
	Buffer *Buffer
}

// RunParams describes one draw or dispatch.
type RunParams struct {
	Pipeline *Pipeline
	Values   []InputValue

	// Raster only.
	Target      *Texture
	VertexData  []byte
	VertexCount int
	Viewport    Rect
	Scissors    Rect

	// Compute only.
	ComputeGroups [3]int
}

// Run records a draw or dispatch with its resource bindings and barriers.
// Parameters are validated before anything is recorded.
func (c *Context) Run(p RunParams) error {
	if err := validateRun(&p); err != nil {
		return err
	}
	pl := p.Pipeline
	stage := tile.StageFragment
	if pl.params.Type == PipelineCompute {
		stage = tile.StageCompute
	}

	cb := c.cmd()
	for _, v := range p.Values {
		in := pl.params.Inputs[v.Index]
		slot := uint32(in.Binding)
		switch in.Type {
		case VarTex:
			s := uint32(v.Texture.slot)
			cb.BindTexture(stage, slot, tile.TextureHandle(s, s))
		case VarImageW:
			cb.BindImage(stage, slot, tile.ImageHandle(uint32(v.Texture.slot)))
		case VarBufRO, VarBufRW:
			b := v.Buffer
			if b.params.HostMapped {
				b.mem.FlushCPUCache(0, b.mem.Size())
			}
			if in.Type == VarBufRO {
				cb.BindUniformBuffer(stage, slot, b.mem.GPUAddr(), uint32(b.params.Size))
			} else {
				cb.BindStorageBuffer(stage, slot, b.mem.GPUAddr(), uint32(b.params.Size))
			}
		}
	}

	// Waiting for primitives here keeps host-side frame pacing predictable.
	cb.Barrier(tile.BarrierPrimitives, 0)

	if pl.params.Type == PipelineRaster {
		if err := c.runRaster(&p); err != nil {
			return err
		}
	} else {
		c.runCompute(&p)
	}
	return cb.Err()
}

func validateRun(p *RunParams) error {
	pl := p.Pipeline
	if pl == nil || pl.codeMem == nil {
		return fmt.Errorf("%w: no pipeline", ErrInvalidRunParams)
	}
	for i, v := range p.Values {
		if v.Index < 0 || v.Index >= len(pl.params.Inputs) {
			return fmt.Errorf("%w: value %d: input index %d of %d", ErrInvalidRunParams, i, v.Index, len(pl.params.Inputs))
		}
		in := pl.params.Inputs[v.Index]
		switch in.Type {
		case VarTex, VarImageW:
			if v.Texture == nil || v.Buffer != nil {
				return fmt.Errorf("%w: input %q wants a texture", ErrInvalidRunParams, in.Name)
			}
			if v.Texture.slot == desc.Invalid {
				return fmt.Errorf("%w: input %q texture has no descriptor slot", ErrInvalidRunParams, in.Name)
			}
		case VarBufRO, VarBufRW:
			if v.Buffer == nil || v.Texture != nil {
				return fmt.Errorf("%w: input %q wants a buffer", ErrInvalidRunParams, in.Name)
			}
		default:
			return fmt.Errorf("%w: input %q of type %s takes no value", ErrInvalidRunParams, in.Name, in.Type)
		}
	}
	if pl.params.Type == PipelineRaster {
		if p.Target == nil {
			return fmt.Errorf("%w: raster run without target", ErrInvalidRunParams)
		}
		if p.VertexCount < 0 || p.VertexCount*pl.params.VertexStride > len(p.VertexData) {
			return fmt.Errorf("%w: %d vertices of %d bytes, have %d bytes",
				ErrInvalidRunParams, p.VertexCount, pl.params.VertexStride, len(p.VertexData))
		}
	} else {
		for _, g := range p.ComputeGroups {
			if g < 0 {
				return fmt.Errorf("%w: compute groups %v", ErrInvalidRunParams, p.ComputeGroups)
			}
		}
	}
	return nil
}

func (c *Context) runRaster(p *RunParams) error {
	pl := p.Pipeline
	size := p.VertexCount * pl.params.VertexStride

	if uint64(size) > uint64(pl.vtxMem.Size()) {
		// The old vertex block may still be read by queued or recorded draws.
		if err := c.waitIdle(); err != nil {
			return err
		}
		mem, err := c.dev.CreateMemBlock(tile.MemBlockDesc{
			Label: "vertices",
			Size:  tile.AlignUp(uint32(size), tile.MemBlockAlignment),
			Flags: tile.MemCPUUncached | tile.MemGPUCached,
		})
		if err != nil {
			return err
		}
		pl.vtxMem.Destroy()
		pl.vtxMem = mem
	}

	cb := c.cmd()
	switch {
	case size == 0:
	case size <= tile.MaxPushSize:
		cb.PushData(pl.vtxMem.GPUAddr(), p.VertexData[:size])
	default:
		slogger().Debug("tilera: vertex data too large for inline push", "size", size)
		if err := c.waitIdle(); err != nil {
			return err
		}
		copy(pl.vtxMem.CPUAddr(), p.VertexData[:size])
	}

	vp, sc := p.Viewport, p.Scissors
	if sc.Y0 > sc.Y1 {
		sc.Y0, sc.Y1 = sc.Y1, sc.Y0
	}
	cb.BindRenderTarget(p.Target.image)
	if pl.params.InvalidateTarget {
		cb.DiscardColor(0)
	}
	if pl.params.EnableBlend {
		cb.BindBlendState(0, pl.blend)
	}
	cb.SetViewport(tile.Viewport{
		X: float32(vp.X0), Y: float32(vp.Y0),
		Width: float32(vp.W()), Height: float32(vp.H()),
		Near: 0, Far: 1,
	})
	cb.SetScissor(tile.Scissor{
		X: uint32(max(sc.X0, 0)), Y: uint32(max(sc.Y0, 0)),
		Width: uint32(max(sc.W(), 0)), Height: uint32(max(sc.H(), 0)),
	})
	cb.BindShaders(tile.StageFlagGraphicsMask, pl.shaders...)
	cb.BindRasterizerState(pl.rasterizer)
	cb.BindColorState(pl.color)
	cb.BindColorWriteState(pl.colorWrite)
	cb.BindDepthStencilState(pl.depth)
	cb.BindVtxBuffer(0, pl.vtxMem.GPUAddr(), pl.vtxMem.Size())
	cb.BindVtxAttribState(pl.attribs...)
	cb.BindVtxBufferState(pl.vtxState)
	cb.Draw(tile.PrimitiveTriangles, uint32(p.VertexCount), 1, 0, 0)
	cb.Barrier(tile.BarrierFragments, tile.InvalidateImage)
	return nil
}

func (c *Context) runCompute(p *RunParams) {
	pl := p.Pipeline
	cb := c.cmd()
	cb.BindShaders(tile.StageFlagCompute, pl.shaders[0])
	g := p.ComputeGroups
	cb.DispatchCompute(uint32(g[0]), uint32(g[1]), uint32(g[2]))
	cb.Barrier(tile.BarrierPrimitives, tile.InvalidateShader|tile.InvalidateImage)

	for _, v := range p.Values {
		if pl.params.Inputs[v.Index].Type == VarBufRW {
			cb.SignalFence(&v.Buffer.fence, true)
		}
	}
}

package tile

import "github.com/gogpu/gputypes"

// CommandType identifies a recorded GPU command.
type CommandType uint8

const (
	// Synchronization
	CmdBarrier CommandType = iota
	CmdSignalFence
	CmdWaitFence
	CmdReportCounter

	// Transfers
	CmdCopyBufferToImage
	CmdCopyImageToBuffer
	CmdBlitImage
	CmdPushConstants
	CmdPushData

	// Render target
	CmdBindRenderTarget
	CmdSetScissor
	CmdSetViewport
	CmdClearColorFloat
	CmdClearColorUint
	CmdDiscardColor

	// Pipeline state
	CmdBindShaders
	CmdBindRasterizerState
	CmdBindColorState
	CmdBindColorWriteState
	CmdBindDepthStencilState
	CmdBindBlendState
	CmdBindVtxBuffer
	CmdBindVtxAttribState
	CmdBindVtxBufferState

	// Resources
	CmdBindTexture
	CmdBindImage
	CmdBindUniformBuffer
	CmdBindStorageBuffer
	CmdBindSamplerDescriptorSet
	CmdBindImageDescriptorSet

	// Work
	CmdDraw
	CmdDispatchCompute
)

var commandTypeNames = [...]string{
	CmdBarrier:                  "Barrier",
	CmdSignalFence:              "SignalFence",
	CmdWaitFence:                "WaitFence",
	CmdReportCounter:            "ReportCounter",
	CmdCopyBufferToImage:        "CopyBufferToImage",
	CmdCopyImageToBuffer:        "CopyImageToBuffer",
	CmdBlitImage:                "BlitImage",
	CmdPushConstants:            "PushConstants",
	CmdPushData:                 "PushData",
	CmdBindRenderTarget:         "BindRenderTarget",
	CmdSetScissor:               "SetScissor",
	CmdSetViewport:              "SetViewport",
	CmdClearColorFloat:          "ClearColorFloat",
	CmdClearColorUint:           "ClearColorUint",
	CmdDiscardColor:             "DiscardColor",
	CmdBindShaders:              "BindShaders",
	CmdBindRasterizerState:      "BindRasterizerState",
	CmdBindColorState:           "BindColorState",
	CmdBindColorWriteState:      "BindColorWriteState",
	CmdBindDepthStencilState:    "BindDepthStencilState",
	CmdBindBlendState:           "BindBlendState",
	CmdBindVtxBuffer:            "BindVtxBuffer",
	CmdBindVtxAttribState:       "BindVtxAttribState",
	CmdBindVtxBufferState:       "BindVtxBufferState",
	CmdBindTexture:              "BindTexture",
	CmdBindImage:                "BindImage",
	CmdBindUniformBuffer:        "BindUniformBuffer",
	CmdBindStorageBuffer:        "BindStorageBuffer",
	CmdBindSamplerDescriptorSet: "BindSamplerDescriptorSet",
	CmdBindImageDescriptorSet:   "BindImageDescriptorSet",
	CmdDraw:                     "Draw",
	CmdDispatchCompute:          "DispatchCompute",
}

// String returns the command name.
func (c CommandType) String() string {
	if int(c) < len(commandTypeNames) {
		return commandTypeNames[c]
	}
	return "Unknown"
}

// Command is implemented by every recorded command.
type Command interface {
	Type() CommandType
}

// BarrierCommand orders work and invalidates caches.
type BarrierCommand struct {
	Mode       BarrierMode
	Invalidate InvalidateFlags
}

func (BarrierCommand) Type() CommandType { return CmdBarrier }

// SignalFenceCommand signals Fence when preceding work completes.
type SignalFenceCommand struct {
	Fence *Fence
	Seq   uint64
	Flush bool
}

func (SignalFenceCommand) Type() CommandType { return CmdSignalFence }

// WaitFenceCommand stalls the GPU until Fence is signalled.
type WaitFenceCommand struct {
	Fence *Fence
	Seq   uint64
}

func (WaitFenceCommand) Type() CommandType { return CmdWaitFence }

// ReportCounterCommand writes {counter, timestamp} to Addr.
type ReportCounterCommand struct {
	Counter Counter
	Addr    uint64
}

func (ReportCounterCommand) Type() CommandType { return CmdReportCounter }

// CopyBufferToImageCommand copies linear memory into an image region.
type CopyBufferToImageCommand struct {
	Src  CopyBuf
	Dst  *Image
	Rect ImageRect
}

func (CopyBufferToImageCommand) Type() CommandType { return CmdCopyBufferToImage }

// CopyImageToBufferCommand copies an image region to linear memory.
type CopyImageToBufferCommand struct {
	Src  *Image
	Rect ImageRect
	Dst  CopyBuf
}

func (CopyImageToBufferCommand) Type() CommandType { return CmdCopyImageToBuffer }

// BlitImageCommand copies and scales between images.
type BlitImageCommand struct {
	Src     *Image
	SrcRect ImageRect
	Dst     *Image
	DstRect ImageRect
	Flags   BlitFlags
}

func (BlitImageCommand) Type() CommandType { return CmdBlitImage }

// PushConstantsCommand updates a uniform buffer inline.
type PushConstantsCommand struct {
	Addr   uint64
	Size   uint32
	Offset uint32
	Data   []byte
}

func (PushConstantsCommand) Type() CommandType { return CmdPushConstants }

// PushDataCommand writes Data to Addr inline.
type PushDataCommand struct {
	Addr uint64
	Data []byte
}

func (PushDataCommand) Type() CommandType { return CmdPushData }

// BindRenderTargetCommand selects the color target.
type BindRenderTargetCommand struct {
	Color *Image
}

func (BindRenderTargetCommand) Type() CommandType { return CmdBindRenderTarget }

// SetScissorCommand sets the scissor of target 0.
type SetScissorCommand struct {
	Scissor Scissor
}

func (SetScissorCommand) Type() CommandType { return CmdSetScissor }

// SetViewportCommand sets the viewport of target 0.
type SetViewportCommand struct {
	Viewport Viewport
}

func (SetViewportCommand) Type() CommandType { return CmdSetViewport }

// ClearColorFloatCommand clears the scissored render target.
type ClearColorFloatCommand struct {
	Target uint32
	Mask   ColorMask
	Color  [4]float32
}

func (ClearColorFloatCommand) Type() CommandType { return CmdClearColorFloat }

// ClearColorUintCommand clears an integer render target.
type ClearColorUintCommand struct {
	Target uint32
	Mask   ColorMask
	Color  [4]uint32
}

func (ClearColorUintCommand) Type() CommandType { return CmdClearColorUint }

// DiscardColorCommand drops the render target contents.
type DiscardColorCommand struct {
	Target uint32
}

func (DiscardColorCommand) Type() CommandType { return CmdDiscardColor }

// BindShadersCommand binds shaders to the stages in Mask.
type BindShadersCommand struct {
	Mask    StageFlag
	Shaders []*Shader
}

func (BindShadersCommand) Type() CommandType { return CmdBindShaders }

// BindRasterizerStateCommand binds rasterizer state.
type BindRasterizerStateCommand struct{ State RasterizerState }

func (BindRasterizerStateCommand) Type() CommandType { return CmdBindRasterizerState }

// BindColorStateCommand binds color state.
type BindColorStateCommand struct{ State ColorState }

func (BindColorStateCommand) Type() CommandType { return CmdBindColorState }

// BindColorWriteStateCommand binds write masks.
type BindColorWriteStateCommand struct{ State ColorWriteState }

func (BindColorWriteStateCommand) Type() CommandType { return CmdBindColorWriteState }

// BindDepthStencilStateCommand binds depth/stencil state.
type BindDepthStencilStateCommand struct{ State DepthStencilState }

func (BindDepthStencilStateCommand) Type() CommandType { return CmdBindDepthStencilState }

// BindBlendStateCommand binds the blend equation of Target.
type BindBlendStateCommand struct {
	Target uint32
	State  gputypes.BlendState
}

func (BindBlendStateCommand) Type() CommandType { return CmdBindBlendState }

// BindVtxBufferCommand binds vertex buffer Slot.
type BindVtxBufferCommand struct {
	Slot uint32
	Addr uint64
	Size uint32
}

func (BindVtxBufferCommand) Type() CommandType { return CmdBindVtxBuffer }

// BindVtxAttribStateCommand binds vertex attribute layouts.
type BindVtxAttribStateCommand struct{ Attribs []VtxAttribState }

func (BindVtxAttribStateCommand) Type() CommandType { return CmdBindVtxAttribState }

// BindVtxBufferStateCommand binds vertex buffer layouts.
type BindVtxBufferStateCommand struct{ Buffers []VtxBufferState }

func (BindVtxBufferStateCommand) Type() CommandType { return CmdBindVtxBufferState }

// BindTextureCommand binds a texture handle to a stage slot.
type BindTextureCommand struct {
	Stage  Stage
	Slot   uint32
	Handle ResHandle
}

func (BindTextureCommand) Type() CommandType { return CmdBindTexture }

// BindImageCommand binds a storage image handle to a stage slot.
type BindImageCommand struct {
	Stage  Stage
	Slot   uint32
	Handle ResHandle
}

func (BindImageCommand) Type() CommandType { return CmdBindImage }

// BindUniformBufferCommand binds a uniform buffer range.
type BindUniformBufferCommand struct {
	Stage Stage
	Slot  uint32
	Addr  uint64
	Size  uint32
}

func (BindUniformBufferCommand) Type() CommandType { return CmdBindUniformBuffer }

// BindStorageBufferCommand binds a storage buffer range.
type BindStorageBufferCommand struct {
	Stage Stage
	Slot  uint32
	Addr  uint64
	Size  uint32
}

func (BindStorageBufferCommand) Type() CommandType { return CmdBindStorageBuffer }

// BindSamplerDescriptorSetCommand points the GPU at the sampler table.
type BindSamplerDescriptorSetCommand struct {
	Addr  uint64
	Count uint32
}

func (BindSamplerDescriptorSetCommand) Type() CommandType { return CmdBindSamplerDescriptorSet }

// BindImageDescriptorSetCommand points the GPU at the image table.
type BindImageDescriptorSetCommand struct {
	Addr  uint64
	Count uint32
}

func (BindImageDescriptorSetCommand) Type() CommandType { return CmdBindImageDescriptorSet }

// DrawCommand draws non-indexed primitives.
type DrawCommand struct {
	Primitive     Primitive
	VertexCount   uint32
	InstanceCount uint32
	FirstVertex   uint32
	FirstInstance uint32
}

func (DrawCommand) Type() CommandType { return CmdDraw }

// DispatchComputeCommand launches compute workgroups.
type DispatchComputeCommand struct {
	X, Y, Z uint32
}

func (DispatchComputeCommand) Type() CommandType { return CmdDispatchCompute }

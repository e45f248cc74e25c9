package tile

import (
	"fmt"

	"github.com/gogpu/gputypes"
)

// Stage is a programmable pipeline stage.
type Stage uint8

// Pipeline stages.
const (
	StageVertex Stage = iota
	StageTessCtrl
	StageTessEval
	StageGeometry
	StageFragment
	StageCompute
)

// StageFlag is a bitmask of stages.
type StageFlag uint32

// Stage masks.
const (
	StageFlagVertex   StageFlag = 1 << StageVertex
	StageFlagFragment StageFlag = 1 << StageFragment
	StageFlagCompute  StageFlag = 1 << StageCompute

	StageFlagGraphicsMask = StageFlagVertex | StageFlagFragment
)

// Flag returns the mask bit for s.
func (s Stage) Flag() StageFlag { return 1 << s }

// String returns the stage name.
func (s Stage) String() string {
	switch s {
	case StageVertex:
		return "vertex"
	case StageTessCtrl:
		return "tess_ctrl"
	case StageTessEval:
		return "tess_eval"
	case StageGeometry:
		return "geometry"
	case StageFragment:
		return "fragment"
	case StageCompute:
		return "compute"
	}
	return fmt.Sprintf("Stage(%d)", s)
}

// FromShaderStage maps a gputypes stage to a tile stage.
func FromShaderStage(s gputypes.ShaderStage) (Stage, bool) {
	switch s {
	case gputypes.ShaderStageVertex:
		return StageVertex, true
	case gputypes.ShaderStageFragment:
		return StageFragment, true
	case gputypes.ShaderStageCompute:
		return StageCompute, true
	}
	return 0, false
}

// Shader is compiled code resident in a code memory block.
type Shader struct {
	Mem    *MemBlock
	Offset uint32
	Size   uint32
	Stage  Stage
}

// InitShader describes code already copied to mem at offset.
func InitShader(mem *MemBlock, offset, size uint32, stage Stage) (*Shader, error) {
	if mem == nil || mem.Flags()&MemCode == 0 {
		return nil, fmt.Errorf("%w: shader needs a code block", ErrInvalidLayout)
	}
	if offset%ShaderCodeAlignment != 0 {
		return nil, fmt.Errorf("%w: shader offset %#x", ErrInvalidLayout, offset)
	}
	if uint64(offset)+uint64(size)+ShaderCodeUnusableSize > uint64(mem.Size()) {
		return nil, fmt.Errorf("%w: shader %d bytes at %#x", ErrOutOfRange, size, offset)
	}
	return &Shader{Mem: mem, Offset: offset, Size: size, Stage: stage}, nil
}

// GPUAddr returns the address of the first instruction.
func (s *Shader) GPUAddr() uint64 { return s.Mem.GPUAddr() + uint64(s.Offset) }

// RasterizerState configures primitive rasterization.
type RasterizerState struct {
	CullMode gputypes.CullMode
}

// DefaultRasterizerState culls nothing.
func DefaultRasterizerState() RasterizerState {
	return RasterizerState{CullMode: gputypes.CullModeNone}
}

// ColorState selects which render targets blend.
type ColorState struct {
	BlendEnableMask uint8
}

// ColorWriteState holds the per-target write masks.
type ColorWriteState struct {
	Mask gputypes.ColorWriteMask
}

// DepthStencilState configures depth and stencil tests.
type DepthStencilState struct {
	DepthTestEnable   bool
	DepthWriteEnable  bool
	StencilTestEnable bool
}

// VtxAttribType is the numeric interpretation of a vertex attribute.
type VtxAttribType uint8

// Vertex attribute types.
const (
	VtxAttribSint VtxAttribType = iota + 1
	VtxAttribFloat
	VtxAttribUnorm
)

// VtxAttribSize is the component layout of a vertex attribute.
type VtxAttribSize uint8

// Vertex attribute sizes.
const (
	VtxAttrib1x32 VtxAttribSize = iota + 1
	VtxAttrib2x32
	VtxAttrib3x32
	VtxAttrib4x32
	VtxAttrib1x8
	VtxAttrib2x8
	VtxAttrib3x8
	VtxAttrib4x8
)

// VtxAttribState describes one vertex attribute.
type VtxAttribState struct {
	BufferID uint32
	Offset   uint32
	Size     VtxAttribSize
	Type     VtxAttribType
}

// VtxBufferState describes one vertex buffer binding.
type VtxBufferState struct {
	Stride  uint32
	Divisor uint32
}

// Viewport is a viewport transform.
type Viewport struct {
	X, Y, Width, Height float32
	Near, Far           float32
}

// Scissor is a pixel clip rectangle.
type Scissor struct {
	X, Y, Width, Height uint32
}

// Primitive is the topology of a draw.
type Primitive uint8

// Primitives.
const (
	PrimitiveTriangles Primitive = iota + 1
	PrimitiveTriangleStrip
)

// BarrierMode is how much in-flight work a barrier waits for.
type BarrierMode uint8

// Barrier modes.
const (
	BarrierNone BarrierMode = iota
	BarrierTiles
	BarrierFragments
	BarrierPrimitives
	BarrierFull
)

// InvalidateFlags select caches invalidated by a barrier.
type InvalidateFlags uint32

// Invalidation flags.
const (
	InvalidateImage InvalidateFlags = 1 << iota
	InvalidateShader
	InvalidateDescriptors
	InvalidateL2
)

// BlitFlags modify a blit.
type BlitFlags uint32

// Blit flags.
const (
	BlitModeBlit BlitFlags = 1 << iota
	BlitFlipY
)

// Counter selects what ReportCounter writes.
type Counter uint8

// Counters.
const (
	CounterTimestamp Counter = iota + 1
)

// ColorMask selects color channels.
type ColorMask uint8

// Channel masks.
const (
	ColorMaskR ColorMask = 1 << iota
	ColorMaskG
	ColorMaskB
	ColorMaskA

	ColorMaskRGBA = ColorMaskR | ColorMaskG | ColorMaskB | ColorMaskA
)

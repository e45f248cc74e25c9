package tilera

import (
	"errors"
	"fmt"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/tilera/internal/tile"
	"github.com/gogpu/tilera/shaderc"
	"github.com/gogpu/tilera/shadercache"
)

// PipelineType selects the shader stage variant of a pipeline.
type PipelineType uint8

// Pipeline types.
const (
	PipelineRaster PipelineType = iota + 1
	PipelineCompute
)

// VarType is the type of a pipeline input or vertex attribute.
type VarType uint8

// Variable types.
const (
	VarInvalid VarType = iota
	VarInt
	VarFloat
	VarTex
	VarImageW
	VarByteUnorm
	VarBufRO
	VarBufRW
)

// String returns the type name.
func (v VarType) String() string {
	switch v {
	case VarInt:
		return "int"
	case VarFloat:
		return "float"
	case VarTex:
		return "tex"
	case VarImageW:
		return "img_w"
	case VarByteUnorm:
		return "byte_unorm"
	case VarBufRO:
		return "buf_ro"
	case VarBufRW:
		return "buf_rw"
	}
	return fmt.Sprintf("VarType(%d)", v)
}

// DescNamespace returns the binding namespace of a variable type. Every
// type has its own namespace.
func (c *Context) DescNamespace(t VarType) int { return int(t) }

// Layout places a uniform in a buffer. Size is Stride times the number of
// matrix columns.
type Layout struct {
	Align, Stride, Size int
}

// UniformLayout returns the std140 layout of a buffer-backed uniform.
// Resource types have size 0.
//
// Vectors align to their size, except vec3 which aligns like vec4.
// Matrix columns are padded to 16 bytes.
func (c *Context) UniformLayout(in Input) Layout {
	var el int
	switch in.Type {
	case VarInt, VarFloat:
		el = 4
	case VarByteUnorm:
		el = 1
	}
	dimV, dimM := max(in.DimV, 1), max(in.DimM, 1)
	stride := el * dimV
	align := stride
	if dimV == 3 {
		align += el
	}
	if dimM > 1 {
		stride = int(tile.AlignUp(uint32(stride), 16))
		align = stride
	}
	return Layout{Align: align, Stride: stride, Size: stride * dimM}
}

// Input is a pipeline input or vertex attribute.
type Input struct {
	Name string
	Type VarType

	// DimV is the vector size, DimM the number of matrix columns.
	DimV, DimM int

	// Binding is the shader binding slot of resource inputs.
	Binding int

	// Offset is the byte offset of a vertex attribute.
	Offset int
}

// BlendFactor is a blend equation factor.
type BlendFactor uint8

// Blend factors.
const (
	BlendZero BlendFactor = iota
	BlendOne
	BlendSrcAlpha
	BlendOneMinusSrcAlpha
)

// PipelineParams describes a pipeline to create.
type PipelineParams struct {
	Type PipelineType

	// Inputs are the resources bound at Run time, addressed by index.
	Inputs []Input

	VertexShader  string
	FragShader    string
	ComputeShader string

	// Raster only.
	VertexAttribs    []Input
	VertexStride     int
	TargetFormat     *Format
	EnableBlend      bool
	BlendSrcRGB      BlendFactor
	BlendDstRGB      BlendFactor
	BlendSrcAlpha    BlendFactor
	BlendDstAlpha    BlendFactor
	InvalidateTarget bool

	// CachedProgram is a program blob from a previous Pipeline.CachedProgram.
	// When it decodes and holds every needed stage, no compilation happens.
	CachedProgram []byte
}

// stages returns the stage mask and sources of the pipeline variant.
func (p *PipelineParams) stages() (gputypes.ShaderStage, []string) {
	if p.Type == PipelineCompute {
		return gputypes.ShaderStageCompute, []string{p.ComputeShader}
	}
	return gputypes.ShaderStageVertex | gputypes.ShaderStageFragment,
		[]string{p.VertexShader, p.FragShader}
}

// Pipeline is compiled shader code plus fixed-function state.
type Pipeline struct {
	ctx     *Context
	params  PipelineParams
	codeMem *tile.MemBlock
	shaders []*tile.Shader

	// program is the blob of a fresh compile; nil when loaded from cache.
	program   []byte
	fromCache bool

	// Raster state.
	vtxMem     *tile.MemBlock
	attribs    []tile.VtxAttribState
	vtxState   tile.VtxBufferState
	rasterizer tile.RasterizerState
	color      tile.ColorState
	colorWrite tile.ColorWriteState
	blend      gputypes.BlendState
	depth      tile.DepthStencilState
}

// Params returns the creation parameters. CachedProgram is always nil.
func (p *Pipeline) Params() PipelineParams { return p.params }

// CachedProgram returns the program blob of a fresh compile, for the caller
// to persist. It is nil when the pipeline was loaded from a blob.
func (p *Pipeline) CachedProgram() []byte { return p.program }

// FromCache reports whether the shaders were loaded without compiling.
func (p *Pipeline) FromCache() bool { return p.fromCache }

// Shaders returns the bound shader objects in stage order.
func (p *Pipeline) Shaders() []*tile.Shader { return p.shaders }

// CreatePipeline loads or compiles the shaders of a pipeline and builds its
// fixed-function state. On failure every partial allocation is released.
func (c *Context) CreatePipeline(params PipelineParams) (*Pipeline, error) {
	if params.Type != PipelineRaster && params.Type != PipelineCompute {
		return nil, fmt.Errorf("%w: pipeline type %d", ErrInvalidRunParams, params.Type)
	}
	mask, sources := params.stages()
	cached := params.CachedProgram
	params.CachedProgram = nil
	p := &Pipeline{ctx: c, params: params}

	var key shadercache.Key
	if c.store != nil {
		key = shadercache.KeyFor(c.compiler.Name(), sources...)
		if len(cached) == 0 {
			blob, err := c.store.Get(key)
			switch {
			case err == nil:
				cached = blob
			case !errors.Is(err, shadercache.ErrNotFound):
				slogger().Warn("tilera: shader store lookup", "key", key.String(), "err", err)
			}
		}
	}

	if len(cached) > 0 {
		blob, err := shadercache.Decode(cached)
		switch {
		case err != nil:
			slogger().Debug("tilera: cached program rejected", "err", err)
		case !blob.Has(mask):
			slogger().Debug("tilera: cached program lacks stages", "need", uint32(mask))
		default:
			if err := p.loadCode(blob, mask); err != nil {
				return nil, err
			}
			p.fromCache = true
			slogger().Debug("tilera: pipeline loaded from cache", "size", len(cached))
		}
	}

	if !p.fromCache {
		blob, err := compileBlob(c.compiler, &params)
		if err != nil {
			return nil, err
		}
		if err := p.loadCode(blob, mask); err != nil {
			return nil, err
		}
		p.program = shadercache.Encode(blob)
		if c.store != nil {
			if err := c.store.Put(key, c.compiler.Name(), p.program); err != nil {
				slogger().Warn("tilera: shader store put", "key", key.String(), "err", err)
			}
		}
	}

	if params.Type == PipelineRaster {
		if err := p.initRaster(); err != nil {
			p.Destroy()
			return nil, err
		}
	}
	return p, nil
}

// BuildProgram compiles the shaders of params and returns the program blob
// without creating a pipeline. It needs no Context.
func BuildProgram(compiler shaderc.Compiler, params PipelineParams) ([]byte, error) {
	if params.Type != PipelineRaster && params.Type != PipelineCompute {
		return nil, fmt.Errorf("%w: pipeline type %d", ErrInvalidRunParams, params.Type)
	}
	blob, err := compileBlob(compiler, &params)
	if err != nil {
		return nil, err
	}
	return shadercache.Encode(blob), nil
}

func compileBlob(compiler shaderc.Compiler, p *PipelineParams) (shadercache.Blob, error) {
	compile := func(stage gputypes.ShaderStage, src string) ([]byte, error) {
		code, err := compiler.Compile(stage, src)
		if err != nil {
			slogger().Error("tilera: shader compilation failed",
				"compiler", compiler.Name(), "stage", shaderc.StageName(stage), "err", err)
			return nil, fmt.Errorf("%w: %s: %w", ErrCompileFailed, shaderc.StageName(stage), err)
		}
		if len(code) == 0 {
			return nil, fmt.Errorf("%w: %s: empty code", ErrCompileFailed, shaderc.StageName(stage))
		}
		return code, nil
	}

	var b shadercache.Blob
	var err error
	if p.Type == PipelineCompute {
		b.Compute, err = compile(gputypes.ShaderStageCompute, p.ComputeShader)
		return b, err
	}
	if b.Vertex, err = compile(gputypes.ShaderStageVertex, p.VertexShader); err != nil {
		return shadercache.Blob{}, err
	}
	if b.Fragment, err = compile(gputypes.ShaderStageFragment, p.FragShader); err != nil {
		return shadercache.Blob{}, err
	}
	return b, nil
}

// loadCode copies the stages in mask into a fresh code block and
// initializes a shader for each.
func (p *Pipeline) loadCode(b shadercache.Blob, mask gputypes.ShaderStage) error {
	order := []gputypes.ShaderStage{
		gputypes.ShaderStageVertex, gputypes.ShaderStageFragment, gputypes.ShaderStageCompute,
	}
	size := uint32(tile.ShaderCodeUnusableSize)
	for _, s := range order {
		if mask&s != 0 {
			size += tile.AlignUp(uint32(len(b.Stage(s))), tile.ShaderCodeAlignment)
		}
	}
	mem, err := p.ctx.dev.CreateMemBlock(tile.MemBlockDesc{
		Label: "shader code",
		Size:  tile.AlignUp(size, tile.MemBlockAlignment),
		Flags: tile.MemCPUUncached | tile.MemGPUCached | tile.MemCode,
	})
	if err != nil {
		return err
	}

	var offset uint32
	dst := mem.CPUAddr()
	for _, s := range order {
		if mask&s == 0 {
			continue
		}
		code := b.Stage(s)
		stage, _ := tile.FromShaderStage(s)
		copy(dst[offset:], code)
		sh, err := tile.InitShader(mem, offset, uint32(len(code)), stage)
		if err != nil {
			mem.Destroy()
			p.shaders = nil
			return err
		}
		p.shaders = append(p.shaders, sh)
		offset += tile.AlignUp(uint32(len(code)), tile.ShaderCodeAlignment)
	}
	p.codeMem = mem
	return nil
}

func (p *Pipeline) initRaster() error {
	params := &p.params
	p.attribs = make([]tile.VtxAttribState, len(params.VertexAttribs))
	for i, in := range params.VertexAttribs {
		a, err := vertexAttrib(in)
		if err != nil {
			return err
		}
		p.attribs[i] = a
	}
	p.vtxState = tile.VtxBufferState{Stride: uint32(params.VertexStride)}

	mem, err := p.ctx.dev.CreateMemBlock(tile.MemBlockDesc{
		Label: "vertices",
		// Six vertices draw a rectangle.
		Size:  max(tile.AlignUp(uint32(6*params.VertexStride), tile.MemBlockAlignment), tile.MemBlockAlignment),
		Flags: tile.MemCPUUncached | tile.MemGPUCached,
	})
	if err != nil {
		return err
	}
	p.vtxMem = mem

	p.rasterizer = tile.DefaultRasterizerState()
	p.colorWrite = tile.ColorWriteState{Mask: gputypes.ColorWriteMaskAll}
	p.depth = tile.DepthStencilState{}
	if params.EnableBlend {
		factors := [4]BlendFactor{params.BlendSrcRGB, params.BlendDstRGB, params.BlendSrcAlpha, params.BlendDstAlpha}
		var mapped [4]gputypes.BlendFactor
		for i, f := range factors {
			if mapped[i], err = blendFactor(f); err != nil {
				return err
			}
		}
		p.color.BlendEnableMask = 1
		p.blend = gputypes.BlendState{
			Color: gputypes.BlendComponent{SrcFactor: mapped[0], DstFactor: mapped[1], Operation: gputypes.BlendOperationAdd},
			Alpha: gputypes.BlendComponent{SrcFactor: mapped[2], DstFactor: mapped[3], Operation: gputypes.BlendOperationAdd},
		}
	}
	return nil
}

func vertexAttrib(in Input) (tile.VtxAttribState, error) {
	a := tile.VtxAttribState{Offset: uint32(in.Offset)}
	if in.DimM > 1 || in.DimV < 1 || in.DimV > 4 {
		return a, fmt.Errorf("%w: %s %s %dx%d", ErrInvalidVertexAttrib, in.Name, in.Type, in.DimV, in.DimM)
	}
	switch in.Type {
	case VarInt:
		a.Type = tile.VtxAttribSint
		a.Size = tile.VtxAttrib1x32 + tile.VtxAttribSize(in.DimV-1)
	case VarFloat:
		a.Type = tile.VtxAttribFloat
		a.Size = tile.VtxAttrib1x32 + tile.VtxAttribSize(in.DimV-1)
	case VarByteUnorm:
		a.Type = tile.VtxAttribUnorm
		a.Size = tile.VtxAttrib1x8 + tile.VtxAttribSize(in.DimV-1)
	default:
		return a, fmt.Errorf("%w: %s has type %s", ErrInvalidVertexAttrib, in.Name, in.Type)
	}
	return a, nil
}

func blendFactor(f BlendFactor) (gputypes.BlendFactor, error) {
	switch f {
	case BlendZero:
		return gputypes.BlendFactorZero, nil
	case BlendOne:
		return gputypes.BlendFactorOne, nil
	case BlendSrcAlpha:
		return gputypes.BlendFactorSrcAlpha, nil
	case BlendOneMinusSrcAlpha:
		return gputypes.BlendFactorOneMinusSrcAlpha, nil
	}
	return gputypes.BlendFactorUndefined, fmt.Errorf("%w: blend factor %d", ErrInvalidUsage, f)
}

// Destroy frees the code and vertex memory. The caller must ensure no
// pending GPU work uses the pipeline.
func (p *Pipeline) Destroy() {
	if p == nil {
		return
	}
	p.codeMem.Destroy()
	p.vtxMem.Destroy()
	p.codeMem, p.vtxMem = nil, nil
	p.shaders = nil
}

package tilera

import (
	"errors"
	"testing"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/tilera/internal/tile"
	"github.com/gogpu/tilera/shadercache"
)

const (
	testVertexSrc   = "@vertex fn vs_main() {}"
	testFragSrc     = "@fragment fn fs_main() {}"
	testComputeSrc  = "@compute @workgroup_size(8, 8) fn cs_main() {}"
	testVertexBytes = 4 * 4 // vec2 position + vec2 texcoord as float
)

func rasterParams(t *testing.T) PipelineParams {
	return PipelineParams{
		Type: PipelineRaster,
		Inputs: []Input{
			{Name: "tex", Type: VarTex, Binding: 0},
			{Name: "params", Type: VarBufRO, Binding: 1},
		},
		VertexShader: testVertexSrc,
		FragShader:   testFragSrc,
		VertexAttribs: []Input{
			{Name: "position", Type: VarFloat, DimV: 2, DimM: 1, Offset: 0},
			{Name: "texcoord", Type: VarFloat, DimV: 2, DimM: 1, Offset: 8},
		},
		VertexStride: testVertexBytes,
		TargetFormat: mustFormat(t, "rgba8"),
	}
}

func computeParams() PipelineParams {
	return PipelineParams{
		Type: PipelineCompute,
		Inputs: []Input{
			{Name: "img", Type: VarImageW, Binding: 0},
			{Name: "data", Type: VarBufRW, Binding: 1},
		},
		ComputeShader: testComputeSrc,
	}
}

func mustPipeline(t *testing.T, ctx *Context, p PipelineParams) *Pipeline {
	t.Helper()
	pl, err := ctx.CreatePipeline(p)
	if err != nil {
		t.Fatalf("CreatePipeline() error = %v", err)
	}
	t.Cleanup(pl.Destroy)
	return pl
}

func TestCreatePipelineCompiles(t *testing.T) {
	ctx, cc := newTestContext(t)
	pl := mustPipeline(t, ctx, rasterParams(t))

	if cc.calls != 2 {
		t.Errorf("compiler calls = %d, want 2", cc.calls)
	}
	if pl.FromCache() {
		t.Error("FromCache() = true for a fresh compile")
	}
	if len(pl.CachedProgram()) == 0 {
		t.Error("CachedProgram() is empty after a fresh compile")
	}
	sh := pl.Shaders()
	if len(sh) != 2 || sh[0].Stage != tile.StageVertex || sh[1].Stage != tile.StageFragment {
		t.Fatalf("Shaders() = %+v, want vertex then fragment", sh)
	}
	for _, s := range sh {
		if s.Offset%tile.ShaderCodeAlignment != 0 {
			t.Errorf("%v shader at unaligned offset %#x", s.Stage, s.Offset)
		}
	}
	if pl.Params().CachedProgram != nil {
		t.Error("Params().CachedProgram retained")
	}
}

func TestCreatePipelineFromCachedProgram(t *testing.T) {
	ctx, cc := newTestContext(t)
	first := mustPipeline(t, ctx, rasterParams(t))
	prog := first.CachedProgram()

	p := rasterParams(t)
	p.CachedProgram = prog
	second := mustPipeline(t, ctx, p)

	if cc.calls != 2 {
		t.Errorf("compiler calls = %d, want 2 (second pipeline from cache)", cc.calls)
	}
	if !second.FromCache() {
		t.Error("FromCache() = false")
	}
	if second.CachedProgram() != nil {
		t.Error("CachedProgram() of a cache load is not nil")
	}
	a, b := first.Shaders(), second.Shaders()
	for i := range a {
		if a[i].Size != b[i].Size || a[i].Offset != b[i].Offset {
			t.Errorf("shader %d: cached %d@%#x, compiled %d@%#x", i, b[i].Size, b[i].Offset, a[i].Size, a[i].Offset)
		}
	}
}

func TestCreatePipelineRejectedBlobRecompiles(t *testing.T) {
	ctx, cc := newTestContext(t)
	raster, err := BuildProgram(cc, rasterParams(t))
	if err != nil {
		t.Fatal(err)
	}
	compute, err := BuildProgram(cc, computeParams())
	if err != nil {
		t.Fatal(err)
	}
	cc.calls = 0

	// corrupt returns a copy of raster with byte i replaced by v.
	corrupt := func(i int, v byte) []byte {
		b := append([]byte(nil), raster...)
		b[i] = v
		return b
	}

	tests := []struct {
		name    string
		blob    []byte
		wantErr error
	}{
		{"bad magic", corrupt(0, 'X'), shadercache.ErrBadMagic},
		{"bad version", corrupt(4, 2), shadercache.ErrBadVersion},
		{"short", raster[:shadercache.HeaderSize-1], shadercache.ErrShortBlob},
		{"truncated", raster[:len(raster)-3], shadercache.ErrBlobRange},
		{"missing stages", compute, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := shadercache.Decode(tt.blob); !errors.Is(err, tt.wantErr) {
				t.Fatalf("Decode() error = %v, want %v", err, tt.wantErr)
			}
			before := cc.calls
			p := rasterParams(t)
			p.CachedProgram = tt.blob
			pl := mustPipeline(t, ctx, p)
			if pl.FromCache() {
				t.Error("FromCache() = true for a rejected blob")
			}
			if cc.calls != before+2 {
				t.Errorf("compiler calls = %d, want 2", cc.calls-before)
			}
		})
	}
}

func TestCreatePipelineCompileError(t *testing.T) {
	ctx, _ := newTestContext(t)
	before := ctx.Device().MemoryStats().BlockCount

	p := rasterParams(t)
	p.FragShader = "syntax error"
	_, err := ctx.CreatePipeline(p)
	if !errors.Is(err, ErrCompileFailed) {
		t.Fatalf("CreatePipeline() error = %v, want ErrCompileFailed", err)
	}
	if after := ctx.Device().MemoryStats().BlockCount; after != before {
		t.Errorf("memory blocks %d -> %d after failed create", before, after)
	}
}

func TestCreatePipelineInvalidVertexAttrib(t *testing.T) {
	ctx, _ := newTestContext(t)
	before := ctx.Device().MemoryStats().BlockCount

	tests := []struct {
		name string
		attr Input
	}{
		{"matrix", Input{Name: "m", Type: VarFloat, DimV: 2, DimM: 2}},
		{"vec5", Input{Name: "v", Type: VarFloat, DimV: 5, DimM: 1}},
		{"texture", Input{Name: "t", Type: VarTex, DimV: 1, DimM: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := rasterParams(t)
			p.VertexAttribs = []Input{tt.attr}
			if _, err := ctx.CreatePipeline(p); !errors.Is(err, ErrInvalidVertexAttrib) {
				t.Errorf("CreatePipeline() error = %v, want ErrInvalidVertexAttrib", err)
			}
		})
	}
	if after := ctx.Device().MemoryStats().BlockCount; after != before {
		t.Errorf("memory blocks %d -> %d after failed creates", before, after)
	}
}

func TestUniformLayout(t *testing.T) {
	ctx, _ := newTestContext(t)
	tests := []struct {
		name string
		in   Input
		want Layout
	}{
		{"float", Input{Type: VarFloat, DimV: 1, DimM: 1}, Layout{Align: 4, Stride: 4, Size: 4}},
		{"vec2", Input{Type: VarFloat, DimV: 2, DimM: 1}, Layout{Align: 8, Stride: 8, Size: 8}},
		{"vec3", Input{Type: VarFloat, DimV: 3, DimM: 1}, Layout{Align: 16, Stride: 12, Size: 12}},
		{"ivec4", Input{Type: VarInt, DimV: 4, DimM: 1}, Layout{Align: 16, Stride: 16, Size: 16}},
		{"mat2", Input{Type: VarFloat, DimV: 2, DimM: 2}, Layout{Align: 16, Stride: 16, Size: 32}},
		{"mat3", Input{Type: VarFloat, DimV: 3, DimM: 3}, Layout{Align: 16, Stride: 16, Size: 48}},
		{"unset dims", Input{Type: VarInt}, Layout{Align: 4, Stride: 4, Size: 4}},
		{"texture", Input{Type: VarTex, DimV: 1, DimM: 1}, Layout{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ctx.UniformLayout(tt.in); got != tt.want {
				t.Errorf("UniformLayout() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestVertexAttribMapping(t *testing.T) {
	tests := []struct {
		in       Input
		wantType tile.VtxAttribType
		wantSize tile.VtxAttribSize
	}{
		{Input{Type: VarFloat, DimV: 1, DimM: 1}, tile.VtxAttribFloat, tile.VtxAttrib1x32},
		{Input{Type: VarFloat, DimV: 4, DimM: 1}, tile.VtxAttribFloat, tile.VtxAttrib4x32},
		{Input{Type: VarInt, DimV: 2, DimM: 1}, tile.VtxAttribSint, tile.VtxAttrib2x32},
		{Input{Type: VarByteUnorm, DimV: 4, DimM: 1}, tile.VtxAttribUnorm, tile.VtxAttrib4x8},
		{Input{Type: VarByteUnorm, DimV: 3, DimM: 0, Offset: 12}, tile.VtxAttribUnorm, tile.VtxAttrib3x8},
	}
	for _, tt := range tests {
		a, err := vertexAttrib(tt.in)
		if err != nil {
			t.Errorf("vertexAttrib(%+v) error = %v", tt.in, err)
			continue
		}
		if a.Type != tt.wantType || a.Size != tt.wantSize || a.Offset != uint32(tt.in.Offset) {
			t.Errorf("vertexAttrib(%+v) = %+v, want type %v size %v", tt.in, a, tt.wantType, tt.wantSize)
		}
	}
}

func TestPipelineBlendState(t *testing.T) {
	ctx, _ := newTestContext(t)
	p := rasterParams(t)
	p.EnableBlend = true
	p.BlendSrcRGB, p.BlendDstRGB = BlendSrcAlpha, BlendOneMinusSrcAlpha
	p.BlendSrcAlpha, p.BlendDstAlpha = BlendOne, BlendZero
	pl := mustPipeline(t, ctx, p)

	if pl.color.BlendEnableMask != 1 {
		t.Errorf("BlendEnableMask = %d, want 1", pl.color.BlendEnableMask)
	}
	want := gputypes.BlendState{
		Color: gputypes.BlendComponent{
			SrcFactor: gputypes.BlendFactorSrcAlpha, DstFactor: gputypes.BlendFactorOneMinusSrcAlpha,
			Operation: gputypes.BlendOperationAdd,
		},
		Alpha: gputypes.BlendComponent{
			SrcFactor: gputypes.BlendFactorOne, DstFactor: gputypes.BlendFactorZero,
			Operation: gputypes.BlendOperationAdd,
		},
	}
	if pl.blend != want {
		t.Errorf("blend = %+v, want %+v", pl.blend, want)
	}
	if pl.colorWrite.Mask != gputypes.ColorWriteMaskAll {
		t.Errorf("color write mask = %v, want all", pl.colorWrite.Mask)
	}

	p.BlendDstAlpha = BlendFactor(99)
	if _, err := ctx.CreatePipeline(p); !errors.Is(err, ErrInvalidUsage) {
		t.Errorf("CreatePipeline() with bad factor error = %v, want ErrInvalidUsage", err)
	}
}

func TestPipelineWithShaderStore(t *testing.T) {
	dir := t.TempDir()
	store, err := shadercache.Open(dir)
	if err != nil {
		t.Fatalf("shadercache.Open() error = %v", err)
	}
	ctx, cc := newTestContext(t, WithShaderStore(store))

	first := mustPipeline(t, ctx, computeParams())
	if first.FromCache() || cc.calls != 1 {
		t.Fatalf("first pipeline: FromCache %v, calls %d; want compile", first.FromCache(), cc.calls)
	}
	if store.Len() != 1 {
		t.Fatalf("store.Len() = %d, want 1", store.Len())
	}

	second := mustPipeline(t, ctx, computeParams())
	if !second.FromCache() || cc.calls != 1 {
		t.Errorf("second pipeline: FromCache %v, calls %d; want cache hit", second.FromCache(), cc.calls)
	}

	// A reopened store serves the blob from disk.
	reopened, err := shadercache.Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	ctx2, cc2 := newTestContext(t, WithShaderStore(reopened))
	third := mustPipeline(t, ctx2, computeParams())
	if !third.FromCache() || cc2.calls != 0 {
		t.Errorf("reopened store: FromCache %v, calls %d; want cache hit", third.FromCache(), cc2.calls)
	}
}

func TestBuildProgram(t *testing.T) {
	cc := &countingCompiler{}
	prog, err := BuildProgram(cc, computeParams())
	if err != nil {
		t.Fatalf("BuildProgram() error = %v", err)
	}
	blob, err := shadercache.Decode(prog)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if !blob.Has(gputypes.ShaderStageCompute) || blob.Has(gputypes.ShaderStageVertex) {
		t.Error("compute program has the wrong stages")
	}

	if _, err := BuildProgram(cc, PipelineParams{}); !errors.Is(err, ErrInvalidRunParams) {
		t.Errorf("BuildProgram(zero params) error = %v, want ErrInvalidRunParams", err)
	}
}

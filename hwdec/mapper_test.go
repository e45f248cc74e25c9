package hwdec

import (
	"errors"
	"testing"

	"github.com/gogpu/tilera"
	"github.com/gogpu/tilera/internal/tile"
)

// countingRef records Retain and Release calls.
type countingRef struct {
	retains, releases int
}

func (r *countingRef) Retain()  { r.retains++ }
func (r *countingRef) Release() { r.releases++ }

func newContext(t *testing.T) *tilera.Context {
	t.Helper()
	ctx, err := tilera.NewHeadless()
	if err != nil {
		t.Fatalf("NewHeadless() error = %v", err)
	}
	t.Cleanup(ctx.Destroy)
	return ctx
}

func newMapper(t *testing.T, ctx *tilera.Context, format PixelFormat, w, h int) *Mapper {
	t.Helper()
	m, err := NewMapper(ctx, format, w, h)
	if err != nil {
		t.Fatalf("NewMapper(%s) error = %v", format, err)
	}
	t.Cleanup(m.Close)
	return m
}

// nv12Tiled is a block-linear 64x64 NV12 surface: a 4 KiB luma plane
// followed by a 2 KiB chroma plane.
func nv12Tiled(handle uint32, owner uint64, ref Ref) Frame {
	return Frame{
		Handle:  handle,
		Owner:   owner,
		Mem:     make([]byte, 0x2000),
		Strides: [3]int{64, 64},
		Offsets: [3]int{0, 0x1000},
		Ref:     ref,
	}
}

// nv12Linear is a pitch-linear 64x64 NV12 surface with 256 byte rows.
func nv12Linear(handle uint32, owner uint64) Frame {
	return Frame{
		Handle:  handle,
		Owner:   owner,
		Mem:     make([]byte, 0x6000),
		Linear:  true,
		Strides: [3]int{256, 256},
		Offsets: [3]int{0x1000, 0x5000},
	}
}

func TestPlanes(t *testing.T) {
	ctx := newContext(t)
	tests := []struct {
		format  PixelFormat
		formats []string
		sizes   [][2]int
	}{
		{Y8, []string{"r8"}, [][2]int{{33, 17}}},
		{NV12, []string{"r8", "rg8"}, [][2]int{{33, 17}, {17, 9}}},
		{P010, []string{"r16", "rg16"}, [][2]int{{33, 17}, {17, 9}}},
		{YUV420P, []string{"r8", "r8", "r8"}, [][2]int{{33, 17}, {17, 9}, {17, 9}}},
	}
	for _, tt := range tests {
		t.Run(tt.format.String(), func(t *testing.T) {
			m := newMapper(t, ctx, tt.format, 33, 17)
			planes := m.Planes()
			if len(planes) != len(tt.formats) {
				t.Fatalf("planes = %d, want %d", len(planes), len(tt.formats))
			}
			for i, p := range planes {
				if p.Format.Name != tt.formats[i] {
					t.Errorf("plane %d format = %s, want %s", i, p.Format.Name, tt.formats[i])
				}
				if p.W != tt.sizes[i][0] || p.H != tt.sizes[i][1] {
					t.Errorf("plane %d size = %dx%d, want %dx%d", i, p.W, p.H, tt.sizes[i][0], tt.sizes[i][1])
				}
			}
		})
	}
}

func TestNewMapperErrors(t *testing.T) {
	ctx := newContext(t)
	if _, err := NewMapper(ctx, PixelFormat(9), 16, 16); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("NewMapper(unknown) error = %v, want ErrUnsupportedFormat", err)
	}
	if _, err := NewMapper(ctx, NV12, 0, 16); !errors.Is(err, tilera.ErrInvalidDimensions) {
		t.Errorf("NewMapper(0 wide) error = %v, want ErrInvalidDimensions", err)
	}
	if got := PixelFormat(9).String(); got != "PixelFormat(9)" {
		t.Errorf("String() = %q", got)
	}
}

func TestMapImportsOnce(t *testing.T) {
	ctx := newContext(t)
	m := newMapper(t, ctx, NV12, 64, 64)
	base := ctx.Descriptors()
	ref := &countingRef{}

	first, err := m.Map(nv12Tiled(1, 7, ref))
	if err != nil {
		t.Fatalf("Map() error = %v", err)
	}
	if len(first) != 2 {
		t.Fatalf("Map() returned %d textures, want 2", len(first))
	}
	if ctx.Descriptors() != base+2 {
		t.Errorf("descriptors = %d, want %d", ctx.Descriptors(), base+2)
	}
	if ref.retains != 1 {
		t.Errorf("retains = %d, want 1", ref.retains)
	}
	if s := ctx.Device().MemoryStats(); s.ImportCount != 1 {
		t.Errorf("ImportCount = %d, want 1", s.ImportCount)
	}
	l := first[0].Image().Layout
	if l.Flags&tile.ImageUsageVideo == 0 || l.Flags&tile.ImagePitchLinear != 0 {
		t.Errorf("tiled luma flags = %#x, want video usage", l.Flags)
	}
	if first[1].Image().Offset != 0x1000 {
		t.Errorf("chroma offset = %#x, want 0x1000", first[1].Image().Offset)
	}
	if p := first[1].Params(); p.W != 32 || p.H != 32 || !p.SrcLinear || !p.RenderSrc {
		t.Errorf("chroma params = %+v", p)
	}

	pending := ctx.Queue().Pending()
	again, err := m.Map(nv12Tiled(1, 7, ref))
	if err != nil {
		t.Fatalf("second Map() error = %v", err)
	}
	if again[0] != first[0] || again[1] != first[1] {
		t.Error("second Map() returned new textures")
	}
	if m.Imports() != 1 || m.Len() != 1 {
		t.Errorf("Imports/Len = %d/%d, want 1/1", m.Imports(), m.Len())
	}
	if ref.retains != 1 {
		t.Errorf("reuse retained the surface again")
	}
	if ctx.Queue().Pending() != pending+1 {
		t.Errorf("reuse did not submit the invalidation")
	}

	if _, err := m.Map(nv12Tiled(2, 7, nil)); err != nil {
		t.Fatal(err)
	}
	if m.Imports() != 2 || m.Len() != 2 {
		t.Errorf("Imports/Len after new handle = %d/%d, want 2/2", m.Imports(), m.Len())
	}
}

func TestMapEvictsOtherOwners(t *testing.T) {
	ctx := newContext(t)
	m := newMapper(t, ctx, NV12, 64, 64)
	base := ctx.Descriptors()
	refs := []*countingRef{{}, {}, {}}

	for i, ref := range refs[:2] {
		if _, err := m.Map(nv12Tiled(uint32(i+1), 1, ref)); err != nil {
			t.Fatal(err)
		}
	}
	// A new frame pool reuses handle 1 for different storage.
	if _, err := m.Map(nv12Tiled(1, 2, refs[2])); err != nil {
		t.Fatal(err)
	}
	if m.Len() != 1 || m.Imports() != 3 {
		t.Errorf("Len/Imports = %d/%d, want 1/3", m.Len(), m.Imports())
	}
	for i, ref := range refs[:2] {
		if ref.releases != 1 {
			t.Errorf("old surface %d releases = %d, want 1", i, ref.releases)
		}
	}
	if refs[2].releases != 0 {
		t.Error("current surface released")
	}
	if ctx.Descriptors() != base+2 {
		t.Errorf("descriptors = %d, want %d", ctx.Descriptors(), base+2)
	}
	if s := ctx.Device().MemoryStats(); s.ImportCount != 1 {
		t.Errorf("ImportCount = %d, want 1", s.ImportCount)
	}
}

func TestMapCroppedStride(t *testing.T) {
	tests := []struct {
		name   string
		stride int
		wantW  int
	}{
		{"aligned", 256, 100},
		{"cropped", 512, 512},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := newContext(t)
			m := newMapper(t, ctx, Y8, 100, 16)
			tex, err := m.Map(Frame{
				Handle:  1,
				Mem:     make([]byte, tt.stride*16),
				Linear:  true,
				Strides: [3]int{tt.stride},
			})
			if err != nil {
				t.Fatalf("Map() error = %v", err)
			}
			if got := tex[0].Params().W; got != tt.wantW {
				t.Errorf("width = %d, want %d", got, tt.wantW)
			}
			l := tex[0].Image().Layout
			if l.RowPitch != uint32(tt.stride) || l.Flags&tile.ImagePitchLinear == 0 {
				t.Errorf("layout pitch = %d flags %#x, want pitch-linear %d", l.RowPitch, l.Flags, tt.stride)
			}
		})
	}
}

func TestMapRecomputesOnTilingChange(t *testing.T) {
	ctx := newContext(t)
	m := newMapper(t, ctx, NV12, 64, 64)

	tiled, err := m.Map(nv12Tiled(1, 1, nil))
	if err != nil {
		t.Fatal(err)
	}
	linear, err := m.Map(nv12Linear(2, 1))
	if err != nil {
		t.Fatalf("Map(linear) error = %v", err)
	}
	for i, tex := range linear {
		if tex.Image().Layout.Flags&tile.ImagePitchLinear == 0 {
			t.Errorf("linear plane %d is not pitch-linear", i)
		}
		if tex.Image().Layout.RowPitch != 256 {
			t.Errorf("linear plane %d pitch = %d, want 256", i, tex.Image().Layout.RowPitch)
		}
	}
	// Plane offsets are relative to the first plane.
	if linear[1].Image().Offset != 0x4000 {
		t.Errorf("linear chroma offset = %#x, want 0x4000", linear[1].Image().Offset)
	}
	if tiled[0].Image().Layout.Flags&tile.ImagePitchLinear != 0 {
		t.Error("cached tiled import changed layout")
	}
}

func TestMapInvalidFrames(t *testing.T) {
	ctx := newContext(t)
	m := newMapper(t, ctx, NV12, 64, 64)

	if _, err := m.Map(Frame{Handle: 1}); !errors.Is(err, ErrInvalidFrame) {
		t.Errorf("Map(no storage) error = %v, want ErrInvalidFrame", err)
	}
	f := nv12Tiled(1, 1, nil)
	f.Strides[1] = 0
	if _, err := m.Map(f); !errors.Is(err, ErrInvalidFrame) {
		t.Errorf("Map(zero stride) error = %v, want ErrInvalidFrame", err)
	}

	// A plane past the end of the storage fails without leaking.
	base := ctx.Descriptors()
	ref := &countingRef{}
	f = nv12Tiled(1, 1, ref)
	f.Mem = f.Mem[:0x1000]
	if _, err := m.Map(f); err == nil {
		t.Fatal("Map(short storage) succeeded")
	}
	if ctx.Descriptors() != base || m.Len() != 0 || ref.retains != 0 {
		t.Errorf("failed import leaked: descriptors %d, entries %d, retains %d", ctx.Descriptors(), m.Len(), ref.retains)
	}
	if s := ctx.Device().MemoryStats(); s.ImportCount != 0 {
		t.Errorf("ImportCount = %d, want 0", s.ImportCount)
	}
}

func TestClose(t *testing.T) {
	ctx := newContext(t)
	m, err := NewMapper(ctx, NV12, 64, 64)
	if err != nil {
		t.Fatal(err)
	}
	base := ctx.Descriptors()
	refs := []*countingRef{{}, {}}
	for i, ref := range refs {
		if _, err := m.Map(nv12Tiled(uint32(i), 1, ref)); err != nil {
			t.Fatal(err)
		}
	}
	m.Close()
	m.Close()

	for i, ref := range refs {
		if ref.releases != 1 {
			t.Errorf("surface %d releases = %d, want 1", i, ref.releases)
		}
	}
	if m.Len() != 0 || ctx.Descriptors() != base {
		t.Errorf("after Close: entries %d, descriptors %d (base %d)", m.Len(), ctx.Descriptors(), base)
	}
	if _, err := m.Map(nv12Tiled(9, 1, nil)); !errors.Is(err, ErrClosed) {
		t.Errorf("Map() after Close error = %v, want ErrClosed", err)
	}
}

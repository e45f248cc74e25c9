package hwdec

import (
	"fmt"
	"slices"

	"github.com/gogpu/tilera"
	"github.com/gogpu/tilera/internal/tile"
)

// Ref is a reference on decoder-owned storage. The mapper retains it while
// an import of the storage is cached and releases it on eviction.
type Ref interface {
	Retain()
	Release()
}

// Frame is one decoded surface.
type Frame struct {
	// Handle identifies the surface storage; equal handles share storage.
	Handle uint32

	// Owner identifies the frame pool. A frame from a new pool evicts every
	// import made for the previous one.
	Owner uint64

	// Mem is the surface storage shared with the decoder.
	Mem []byte

	// Linear is true for pitch-linear surfaces, false for block-linear.
	Linear bool

	// Strides and Offsets give the row pitch and the byte offset in Mem
	// of each plane.
	Strides [3]int
	Offsets [3]int

	// Ref, if set, is retained for as long as the import is cached.
	Ref Ref
}

type entry struct {
	owner  uint64
	handle uint32
	mem    *tile.MemBlock
	tex    []*tilera.Texture
	ref    Ref
}

// Mapper caches imports of decoder surfaces of one format and size.
// Like the Context it maps into, it is not safe for concurrent use.
type Mapper struct {
	ctx    *tilera.Context
	format PixelFormat
	planes []Plane

	layouts     []tile.ImageLayout
	haveLayouts bool
	linear      bool

	entries []*entry
	imports int
	closed  bool
}

// NewMapper creates a mapper for w×h surfaces of format.
func NewMapper(ctx *tilera.Context, format PixelFormat, w, h int) (*Mapper, error) {
	planes, err := planesFor(format, w, h)
	if err != nil {
		return nil, err
	}
	tilera.Logger().Debug("hwdec: mapper created", "format", format.String(), "w", w, "h", h, "planes", len(planes))
	return &Mapper{
		ctx:     ctx,
		format:  format,
		planes:  planes,
		layouts: make([]tile.ImageLayout, len(planes)),
	}, nil
}

// Planes returns the current plane shapes. Widths follow the stride of
// the last mapped frame when the stride disagrees with the aligned width.
func (m *Mapper) Planes() []Plane { return slices.Clone(m.planes) }

// Imports returns how many surfaces were imported over the mapper's life.
func (m *Mapper) Imports() int { return m.imports }

// Len returns the number of cached imports.
func (m *Mapper) Len() int { return len(m.entries) }

// Map returns one sampled texture per plane of f. The textures stay valid
// until the surface is evicted or the mapper is closed.
func (m *Mapper) Map(f Frame) ([]*tilera.Texture, error) {
	if m.closed {
		return nil, ErrClosed
	}
	if len(f.Mem) == 0 {
		return nil, fmt.Errorf("%w: no storage", ErrInvalidFrame)
	}
	if err := m.updateLayouts(f); err != nil {
		return nil, err
	}

	m.evict(func(e *entry) bool { return e.owner != f.Owner })

	for _, e := range m.entries {
		if e.handle == f.Handle {
			// The decoder wrote the surface since the last sample.
			if err := m.ctx.InvalidateTextures(); err != nil {
				return nil, err
			}
			return e.tex, nil
		}
	}

	e, err := m.importFrame(f)
	if err != nil {
		return nil, err
	}
	m.entries = append(m.entries, e)
	m.imports++
	return e.tex, nil
}

// updateLayouts recomputes plane layouts when the tiling mode changes.
func (m *Mapper) updateLayouts(f Frame) error {
	if m.haveLayouts && m.linear == f.Linear {
		return nil
	}
	m.haveLayouts = false
	for i := range m.planes {
		p := &m.planes[i]
		bpp := p.Format.Bytes
		stride := f.Strides[i]
		if stride <= 0 {
			return fmt.Errorf("%w: plane %d stride %d", ErrInvalidFrame, i, stride)
		}

		// Block-linear rows align to a GOB, pitch-linear rows to 256 bytes.
		align := 256 / bpp
		if !f.Linear {
			align = 64 / bpp
		}
		// A cropped surface keeps the decoder's stride; sample all of it.
		if texel := stride / bpp; alignUp(p.W, align) != texel {
			p.W = texel
		}

		ld := tile.LayoutDesc{
			Type:   tile.Image2D,
			Format: p.Format.Hardware,
			Flags:  tile.ImageUsageLoadStore | tile.ImageUsage2DEngine,
			Width:  uint32(p.W),
			Height: uint32(p.H),
			Depth:  1,
		}
		if f.Linear {
			ld.Flags |= tile.ImagePitchLinear
			ld.PitchStride = uint32(stride)
		} else {
			ld.Flags |= tile.ImageUsageVideo
		}
		l, err := tile.InitImageLayout(ld)
		if err != nil {
			return fmt.Errorf("hwdec: plane %d layout: %w", i, err)
		}
		m.layouts[i] = l
	}
	m.linear = f.Linear
	m.haveLayouts = true
	tilera.Logger().Debug("hwdec: plane layouts", "format", m.format.String(), "linear", f.Linear)
	return nil
}

func (m *Mapper) importFrame(f Frame) (*entry, error) {
	mem, err := m.ctx.Device().CreateMemBlock(tile.MemBlockDesc{
		Label:   fmt.Sprintf("hwdec surface %#x", f.Handle),
		Size:    tile.AlignUp(uint32(len(f.Mem)), tile.MemBlockAlignment),
		Flags:   tile.MemCPUUncached | tile.MemGPUCached | tile.MemImage,
		Storage: f.Mem,
	})
	if err != nil {
		return nil, fmt.Errorf("hwdec: import surface %#x: %w", f.Handle, err)
	}
	e := &entry{owner: f.Owner, handle: f.Handle, mem: mem}

	for i, p := range m.planes {
		off := f.Offsets[i] - f.Offsets[0]
		if off < 0 {
			m.destroy(e)
			return nil, fmt.Errorf("%w: plane %d offset %d before plane 0", ErrInvalidFrame, i, f.Offsets[i])
		}
		img, err := tile.InitImage(m.layouts[i], mem, uint32(off))
		if err != nil {
			m.destroy(e)
			return nil, fmt.Errorf("hwdec: plane %d: %w", i, err)
		}
		tex, err := m.ctx.ImportTexture(tilera.TextureParams{
			Dimensions: 2,
			W:          p.W,
			H:          p.H,
			D:          1,
			Format:     p.Format,
			RenderSrc:  true,
			SrcLinear:  true,
		}, img)
		if err != nil {
			m.destroy(e)
			return nil, err
		}
		e.tex = append(e.tex, tex)
	}

	if f.Ref != nil {
		f.Ref.Retain()
		e.ref = f.Ref
	}
	tilera.Logger().Debug("hwdec: surface imported",
		"handle", fmt.Sprintf("%#x", f.Handle), "owner", f.Owner, "size", len(f.Mem))
	return e, nil
}

// evict destroys and removes every entry matching drop.
func (m *Mapper) evict(drop func(*entry) bool) {
	m.entries = slices.DeleteFunc(m.entries, func(e *entry) bool {
		if !drop(e) {
			return false
		}
		m.destroy(e)
		return true
	})
}

func (m *Mapper) destroy(e *entry) {
	for _, t := range e.tex {
		t.Destroy()
	}
	e.tex = nil
	if e.mem != nil {
		e.mem.Destroy()
		e.mem = nil
	}
	if e.ref != nil {
		e.ref.Release()
		e.ref = nil
	}
}

// Close destroys every cached import. The caller must ensure no pending
// GPU work samples the textures.
func (m *Mapper) Close() {
	if m.closed {
		return
	}
	m.evict(func(*entry) bool { return true })
	m.closed = true
}

func alignUp(v, a int) int { return (v + a - 1) / a * a }

package tilera

import (
	"fmt"

	"github.com/gogpu/tilera/internal/desc"
	"github.com/gogpu/tilera/internal/tile"
)

// Rect is a pixel rectangle from (X0, Y0) to (X1, Y1), exclusive.
// Y0 > Y1 describes a vertically flipped rectangle.
type Rect struct {
	X0, Y0, X1, Y1 int
}

// W returns the rectangle width.
func (r Rect) W() int { return r.X1 - r.X0 }

// H returns the rectangle height. It is negative for flipped rectangles.
func (r Rect) H() int { return r.Y1 - r.Y0 }

// normalized returns r with a flipped Y range swapped back.
func (r Rect) normalized() Rect {
	if r.Y0 > r.Y1 {
		r.Y0, r.Y1 = r.Y1, r.Y0
	}
	return r
}

// within reports whether r lies inside a w×h image.
func (r Rect) within(w, h int) bool {
	return r.X0 >= 0 && r.Y0 >= 0 && r.X1 <= w && r.Y1 <= h
}

// TextureParams describes a texture to create.
type TextureParams struct {
	// Dimensions is 1, 2 or 3.
	Dimensions int

	W, H, D int
	Format  *Format

	RenderSrc  bool
	RenderDst  bool
	StorageDst bool
	BlitSrc    bool
	BlitDst    bool

	// SrcLinear selects linear filtering when the texture is sampled.
	SrcLinear bool
	// SrcRepeat selects repeat addressing when the texture is sampled.
	SrcRepeat bool

	// InitialData, when set, is uploaded with a row stride of W*Format.Bytes.
	InitialData []byte
}

// Texture is an image in device memory with a descriptor slot.
type Texture struct {
	ctx    *Context
	params TextureParams
	mem    *tile.MemBlock
	image  *tile.Image
	slot   int

	// wrapped textures borrow their image and own no memory.
	wrapped bool
}

// Params returns the creation parameters. InitialData is always nil.
func (t *Texture) Params() TextureParams { return t.params }

// Image returns the underlying image.
func (t *Texture) Image() *tile.Image { return t.image }

// Slot returns the descriptor slot, or -1 when unregistered.
func (t *Texture) Slot() int { return t.slot }

// CreateTexture allocates and registers a texture.
// On any failure everything allocated for the call is released.
func (c *Context) CreateTexture(p TextureParams) (*Texture, error) {
	if p.Format == nil {
		return nil, fmt.Errorf("%w: nil format", ErrUnknownFormat)
	}
	var typ tile.ImageType
	switch p.Dimensions {
	case 1:
		typ = tile.Image1D
		p.H, p.D = 1, 1
	case 2:
		typ = tile.Image2D
		p.D = 1
	case 3:
		typ = tile.Image3D
	default:
		return nil, fmt.Errorf("%w: %d", ErrInvalidDimensions, p.Dimensions)
	}
	lim := c.Limits()
	if p.W < 1 || p.H < 1 || p.D < 1 {
		return nil, fmt.Errorf("%w: %dx%dx%d", ErrInvalidDimensions, p.W, p.H, p.D)
	}
	if p.W > lim.MaxTextureSize || p.H > lim.MaxTextureSize || p.D > lim.MaxTextureSize {
		return nil, fmt.Errorf("%w: %dx%dx%d > %d", ErrTextureTooLarge, p.W, p.H, p.D, lim.MaxTextureSize)
	}

	ld := tile.LayoutDesc{
		Type:   typ,
		Format: p.Format.Hardware,
		Flags:  tile.ImageHwCompression,
		Width:  uint32(p.W),
		Height: uint32(p.H),
		Depth:  uint32(p.D),
	}
	if p.RenderSrc || p.RenderDst {
		ld.Flags |= tile.ImageUsageRender
	}
	if p.StorageDst {
		ld.Flags |= tile.ImageUsageLoadStore
	}
	if p.BlitSrc || p.BlitDst {
		ld.Flags |= tile.ImageUsage2DEngine
	}
	// Short images need the smallest tile or block-linear addressing breaks.
	if p.H <= 8 {
		ld.Flags |= tile.ImageCustomTileSize
		ld.TileSize = tile.TileOneGob
	}
	layout, err := tile.InitImageLayout(ld)
	if err != nil {
		return nil, err
	}

	size := tile.AlignUp(tile.AlignUp(layout.Size, layout.Alignment), tile.MemBlockAlignment)
	mem, err := c.dev.CreateMemBlock(tile.MemBlockDesc{
		Label: "texture " + p.Format.Name,
		Size:  size,
		Flags: tile.MemCPUUncached | tile.MemGPUCached | tile.MemImage,
	})
	if err != nil {
		return nil, err
	}
	img, err := tile.InitImage(layout, mem, 0)
	if err != nil {
		mem.Destroy()
		return nil, err
	}

	initial := p.InitialData
	p.InitialData = nil
	t := &Texture{ctx: c, params: p, mem: mem, image: img, slot: desc.Invalid}

	if initial != nil {
		err := c.Upload(UploadParams{
			Texture: t,
			Src:     initial,
			Stride:  p.W * p.Format.Bytes,
		})
		if err != nil {
			t.Destroy()
			return nil, err
		}
	}

	if err := c.registerTexture(t); err != nil {
		t.Destroy()
		return nil, err
	}
	slogger().Debug("tilera: texture created",
		"format", p.Format.Name, "w", p.W, "h", p.H, "d", p.D,
		"tile_gobs", layout.TileSize.Gobs(), "slot", t.slot)
	return t, nil
}

// Destroy releases the descriptor slot and the texture memory.
// The caller must ensure no pending GPU work references the texture.
func (t *Texture) Destroy() {
	if t == nil {
		return
	}
	t.ctx.unregisterTexture(t)
	if !t.wrapped {
		t.mem.Destroy()
	}
	t.mem = nil
}

// ImportTexture registers img, which lives in memory owned by the caller,
// as a sampled texture. Destroy releases only the descriptor slot.
func (c *Context) ImportTexture(p TextureParams, img *tile.Image) (*Texture, error) {
	if img == nil || p.Format == nil {
		return nil, fmt.Errorf("%w: import without image or format", ErrInvalidUsage)
	}
	p.InitialData = nil
	t := &Texture{ctx: c, params: p, mem: img.Mem, image: img, slot: desc.Invalid, wrapped: true}
	if err := c.registerTexture(t); err != nil {
		return nil, err
	}
	return t, nil
}

// InvalidateTextures makes image writes done outside the context visible
// to samplers and submits.
func (c *Context) InvalidateTextures() error {
	c.cmd().Barrier(tile.BarrierNone, tile.InvalidateImage)
	return c.ring.Submit()
}

// UploadParams describes a transfer into a texture. Exactly one of Src and
// Buf is the source.
type UploadParams struct {
	Texture *Texture

	// Src is host memory.
	Src []byte

	// Buf and BufOffset select a device buffer.
	Buf       *Buffer
	BufOffset int

	// Stride is the source row stride in bytes. Zero means tightly packed.
	Stride int

	// Rect limits the upload to a 2D region. Nil uploads the whole texture.
	Rect *Rect
}

// Upload copies pixels into a texture.
//
// Uploads from a CPU-cached buffer return as soon as the copy is recorded;
// the buffer must stay alive until Buffer.Poll reports completion. All
// other uploads block until the GPU finished the copy.
func (c *Context) Upload(p UploadParams) error {
	t := p.Texture
	if t == nil {
		return fmt.Errorf("%w: nil texture", ErrInvalidUsage)
	}
	if p.Buf != nil && p.Src != nil {
		return fmt.Errorf("%w: upload has both Src and Buf", ErrInvalidUsage)
	}
	rect := tile.ImageRect{
		Width:  uint32(t.params.W),
		Height: uint32(t.params.H),
		Depth:  uint32(t.params.D),
	}
	if p.Rect != nil {
		if p.Rect.W() <= 0 || p.Rect.H() <= 0 || !p.Rect.within(t.params.W, t.params.H) {
			return fmt.Errorf("%w: upload rect %+v", ErrOutOfRange, *p.Rect)
		}
		rect = tile.ImageRect{
			X: uint32(p.Rect.X0), Y: uint32(p.Rect.Y0),
			Width: uint32(p.Rect.W()), Height: uint32(p.Rect.H()), Depth: 1,
		}
	}
	rowBytes := int(rect.Width) * t.params.Format.Bytes
	stride := p.Stride
	if stride == 0 {
		stride = rowBytes
	}
	if stride < rowBytes {
		return fmt.Errorf("%w: stride %d below row size %d", ErrOutOfRange, stride, rowBytes)
	}
	rows := int(rect.Height * rect.Depth)
	span := stride*(rows-1) + rowBytes
	total := stride * rows

	cb := c.cmd()
	var (
		copyBuf tile.CopyBuf
		tmp     *tile.MemBlock
		done    *tile.Fence
	)
	switch {
	case p.Buf != nil:
		b := p.Buf
		if p.BufOffset < 0 || p.BufOffset+span > b.params.Size {
			return fmt.Errorf("%w: %d bytes at %d in %d byte buffer", ErrOutOfRange, span, p.BufOffset, b.params.Size)
		}
		if b.params.HostMapped {
			b.mem.FlushCPUCache(uint32(p.BufOffset), uint32(min(total, int(b.mem.Size())-p.BufOffset)))
		}
		copyBuf = tile.CopyBuf{
			Addr:        b.mem.GPUAddr() + uint64(p.BufOffset),
			RowLength:   uint32(stride),
			ImageHeight: rect.Height,
		}
		done = &b.fence
		cb.WaitFence(done)
	default:
		if len(p.Src) < span {
			return fmt.Errorf("%w: source has %d bytes, need %d", ErrOutOfRange, len(p.Src), span)
		}
		var err error
		tmp, err = c.dev.CreateMemBlock(tile.MemBlockDesc{
			Label:   "upload",
			Size:    tile.AlignUp(uint32(total), tile.MemBlockAlignment),
			Flags:   tile.MemCPUCached | tile.MemGPUCached,
			Storage: p.Src[:min(len(p.Src), total)],
		})
		if err != nil {
			return err
		}
		defer tmp.Destroy()
		tmp.FlushCPUCache(0, uint32(total))
		copyBuf = tile.CopyBuf{Addr: tmp.GPUAddr(), RowLength: uint32(stride), ImageHeight: rect.Height}
		done = new(tile.Fence)
	}

	cb.CopyBufferToImage(copyBuf, t.image, rect)
	cb.Barrier(tile.BarrierNone, tile.InvalidateImage)
	cb.SignalFence(done, false)

	if p.Buf != nil && p.Buf.cpuCached {
		return cb.Err()
	}
	return c.flushWait(done)
}

// DownloadParams describes a transfer out of a texture.
type DownloadParams struct {
	Texture *Texture

	// Dst receives H rows of W pixels.
	Dst []byte

	// Stride is the destination row stride in bytes. Zero means tightly packed.
	Stride int
}

// Download copies the first layer of a texture into host memory and
// blocks until the copy finished.
func (c *Context) Download(p DownloadParams) error {
	t := p.Texture
	if t == nil {
		return fmt.Errorf("%w: nil texture", ErrInvalidUsage)
	}
	rowBytes := t.params.W * t.params.Format.Bytes
	stride := p.Stride
	if stride == 0 {
		stride = rowBytes
	}
	if stride < rowBytes {
		return fmt.Errorf("%w: stride %d below row size %d", ErrOutOfRange, stride, rowBytes)
	}
	span := stride*(t.params.H-1) + rowBytes
	total := stride * t.params.H
	if len(p.Dst) < span {
		return fmt.Errorf("%w: destination has %d bytes, need %d", ErrOutOfRange, len(p.Dst), span)
	}

	tmp, err := c.dev.CreateMemBlock(tile.MemBlockDesc{
		Label:   "download",
		Size:    tile.AlignUp(uint32(total), tile.MemBlockAlignment),
		Flags:   tile.MemCPUCached | tile.MemGPUCached,
		Storage: p.Dst[:min(len(p.Dst), total)],
	})
	if err != nil {
		return err
	}
	defer tmp.Destroy()

	rect := tile.ImageRect{Width: uint32(t.params.W), Height: uint32(t.params.H), Depth: 1}
	dst := tile.CopyBuf{Addr: tmp.GPUAddr(), RowLength: uint32(stride), ImageHeight: uint32(t.params.H)}
	var fence tile.Fence
	cb := c.cmd()
	cb.CopyImageToBuffer(t.image, rect, dst)
	cb.SignalFence(&fence, true)
	return c.flushWait(&fence)
}

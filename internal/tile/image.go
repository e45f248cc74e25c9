package tile

import "fmt"

// Image binds an ImageLayout to memory.
type Image struct {
	Layout ImageLayout
	Mem    *MemBlock
	Offset uint32
}

// InitImage places layout at offset within mem.
func InitImage(layout ImageLayout, mem *MemBlock, offset uint32) (*Image, error) {
	if mem == nil {
		return nil, fmt.Errorf("%w: nil memory block", ErrInvalidLayout)
	}
	if layout.Alignment != 0 && offset%layout.Alignment != 0 {
		return nil, fmt.Errorf("%w: offset %#x not aligned to %#x", ErrInvalidLayout, offset, layout.Alignment)
	}
	if uint64(offset)+uint64(layout.Size) > uint64(mem.Size()) {
		return nil, fmt.Errorf("%w: image %d bytes at %#x in %d byte block",
			ErrOutOfRange, layout.Size, offset, mem.Size())
	}
	return &Image{Layout: layout, Mem: mem, Offset: offset}, nil
}

// GPUAddr returns the GPU address of the first texel.
func (im *Image) GPUAddr() uint64 { return im.Mem.GPUAddr() + uint64(im.Offset) }

// texelOffset returns the byte offset of (x, y, z) from the image base.
func (im *Image) texelOffset(x, y, z uint32) uint64 {
	l := &im.Layout
	bpp := uint64(l.Format.BytesPerPixel())
	return (uint64(z)*uint64(l.Height)+uint64(y))*uint64(l.RowPitch) + uint64(x)*bpp
}

// ImageRect is a texel region.
type ImageRect struct {
	X, Y, Z              uint32
	Width, Height, Depth uint32
}

// fits reports whether r lies inside l.
func (r ImageRect) fits(l *ImageLayout) bool {
	return uint64(r.X)+uint64(r.Width) <= uint64(l.Width) &&
		uint64(r.Y)+uint64(r.Height) <= uint64(l.Height) &&
		uint64(r.Z)+uint64(max(r.Depth, 1)) <= uint64(l.Depth)
}

// CopyBuf describes linear memory on one side of a copy.
type CopyBuf struct {
	Addr uint64

	// RowLength is the row stride in bytes.
	RowLength uint32

	// ImageHeight is the number of rows per slice.
	ImageHeight uint32
}

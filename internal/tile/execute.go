package tile

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// Executor errors.
var (
	// ErrDeadlock is returned when the GPU waits on a fence no earlier work signals.
	ErrDeadlock = errors.New("tile: GPU wait on fence that is never signalled")

	// ErrNoRenderTarget is returned for clears without a bound render target.
	ErrNoRenderTarget = errors.New("tile: no render target bound")

	// ErrFormatMismatch is returned for blits between different formats.
	ErrFormatMismatch = errors.New("tile: image format mismatch")
)

// execute runs one command on the simulated GPU.
func (d *Device) execute(c Command) error {
	d.clock += ticksPerCommand
	switch c := c.(type) {
	case SignalFenceCommand:
		c.Fence.reach(c.Seq)
	case WaitFenceCommand:
		if c.Fence.reached < c.Seq {
			return ErrDeadlock
		}
	case ReportCounterCommand:
		dst, err := d.resolve(c.Addr, 16)
		if err != nil {
			return err
		}
		binary.LittleEndian.PutUint64(dst[0:], uint64(c.Counter))
		binary.LittleEndian.PutUint64(dst[8:], d.clock)
	case PushConstantsCommand:
		if uint64(c.Offset)+uint64(len(c.Data)) > uint64(c.Size) {
			return fmt.Errorf("%w: push %d bytes at %d into %d byte uniform",
				ErrOutOfRange, len(c.Data), c.Offset, c.Size)
		}
		dst, err := d.resolve(c.Addr+uint64(c.Offset), uint64(len(c.Data)))
		if err != nil {
			return err
		}
		copy(dst, c.Data)
	case PushDataCommand:
		dst, err := d.resolve(c.Addr, uint64(len(c.Data)))
		if err != nil {
			return err
		}
		copy(dst, c.Data)
	case CopyBufferToImageCommand:
		return d.copyLinear(c.Dst, c.Rect, c.Src, true)
	case CopyImageToBufferCommand:
		return d.copyLinear(c.Src, c.Rect, c.Dst, false)
	case BlitImageCommand:
		return d.blit(c)
	case BindRenderTargetCommand:
		d.target = c.Color
		if c.Color != nil {
			d.scissor = Scissor{Width: c.Color.Layout.Width, Height: c.Color.Layout.Height}
		}
	case SetScissorCommand:
		d.scissor = c.Scissor
	case ClearColorFloatCommand:
		if d.target == nil {
			return ErrNoRenderTarget
		}
		return d.fillScissor(encodeFloatPixel(d.target.Layout.Format, c.Color))
	case ClearColorUintCommand:
		if d.target == nil {
			return ErrNoRenderTarget
		}
		return d.fillScissor(encodeUintPixel(d.target.Layout.Format, c.Color))
	}
	return nil
}

// row resolves the bytes of one image row segment.
func (d *Device) row(im *Image, x, y, z, width uint32) ([]byte, error) {
	bpp := uint64(im.Layout.Format.BytesPerPixel())
	return d.resolve(im.GPUAddr()+im.texelOffset(x, y, z), uint64(width)*bpp)
}

func (d *Device) copyLinear(im *Image, r ImageRect, buf CopyBuf, toImage bool) error {
	if im == nil {
		return fmt.Errorf("%w: nil image", ErrUnmappedAddress)
	}
	if !r.fits(&im.Layout) {
		return fmt.Errorf("%w: rect %+v outside %dx%dx%d image",
			ErrOutOfRange, r, im.Layout.Width, im.Layout.Height, im.Layout.Depth)
	}
	depth := max(r.Depth, 1)
	rowBytes := uint64(r.Width) * uint64(im.Layout.Format.BytesPerPixel())
	for z := uint32(0); z < depth; z++ {
		for y := uint32(0); y < r.Height; y++ {
			line := uint64(z)*uint64(buf.ImageHeight) + uint64(y)
			lin, err := d.resolve(buf.Addr+line*uint64(buf.RowLength), rowBytes)
			if err != nil {
				return err
			}
			img, err := d.row(im, r.X, r.Y+y, r.Z+z, r.Width)
			if err != nil {
				return err
			}
			if toImage {
				copy(img, lin)
			} else {
				copy(lin, img)
			}
		}
	}
	return nil
}

// blit does a nearest-neighbour scaled copy.
func (d *Device) blit(c BlitImageCommand) error {
	if c.Src == nil || c.Dst == nil {
		return fmt.Errorf("%w: nil blit image", ErrUnmappedAddress)
	}
	if c.Src.Layout.Format != c.Dst.Layout.Format {
		return fmt.Errorf("%w: %s -> %s", ErrFormatMismatch, c.Src.Layout.Format, c.Dst.Layout.Format)
	}
	sr, dr := c.SrcRect, c.DstRect
	if !sr.fits(&c.Src.Layout) || !dr.fits(&c.Dst.Layout) {
		return fmt.Errorf("%w: blit rect outside image", ErrOutOfRange)
	}
	if sr.Width == 0 || sr.Height == 0 || dr.Width == 0 || dr.Height == 0 {
		return nil
	}
	bpp := c.Src.Layout.Format.BytesPerPixel()
	for y := uint32(0); y < dr.Height; y++ {
		sy := uint64(y) * uint64(sr.Height) / uint64(dr.Height)
		if c.Flags&BlitFlipY != 0 {
			sy = uint64(sr.Height) - 1 - sy
		}
		src, err := d.row(c.Src, sr.X, sr.Y+uint32(sy), sr.Z, sr.Width)
		if err != nil {
			return err
		}
		dst, err := d.row(c.Dst, dr.X, dr.Y+y, dr.Z, dr.Width)
		if err != nil {
			return err
		}
		for x := uint32(0); x < dr.Width; x++ {
			sx := uint32(uint64(x) * uint64(sr.Width) / uint64(dr.Width))
			copy(dst[x*bpp:(x+1)*bpp], src[sx*bpp:(sx+1)*bpp])
		}
	}
	return nil
}

// fillScissor writes px to every texel of the bound target inside the scissor.
func (d *Device) fillScissor(px []byte) error {
	if px == nil {
		return fmt.Errorf("%w: cannot clear %s", ErrFormatMismatch, d.target.Layout.Format)
	}
	l := &d.target.Layout
	x0, y0 := min(d.scissor.X, l.Width), min(d.scissor.Y, l.Height)
	x1 := min(uint64(d.scissor.X)+uint64(d.scissor.Width), uint64(l.Width))
	y1 := min(uint64(d.scissor.Y)+uint64(d.scissor.Height), uint64(l.Height))
	if uint64(x0) >= x1 || uint64(y0) >= y1 {
		return nil
	}
	w := uint32(x1) - x0
	for y := y0; y < uint32(y1); y++ {
		dst, err := d.row(d.target, x0, y, 0, w)
		if err != nil {
			return err
		}
		for i := 0; i < len(dst); i += len(px) {
			copy(dst[i:], px)
		}
	}
	return nil
}

func unorm(v float32, bits uint) uint32 {
	m := float32(uint32(1)<<bits - 1)
	return uint32(math.Round(float64(min(max(v, 0), 1) * m)))
}

// encodeFloatPixel packs color into a texel of a UNORM or float format.
func encodeFloatPixel(f ImageFormat, c [4]float32) []byte {
	px := make([]byte, f.BytesPerPixel())
	le := binary.LittleEndian
	switch f {
	case FormatR8Unorm, FormatRG8Unorm, FormatRGBA8Unorm:
		for i := range px {
			px[i] = byte(unorm(c[i], 8))
		}
	case FormatBGRA8Unorm, FormatBGRX8Unorm:
		px[0], px[1], px[2] = byte(unorm(c[2], 8)), byte(unorm(c[1], 8)), byte(unorm(c[0], 8))
		px[3] = 0xff
		if f == FormatBGRA8Unorm {
			px[3] = byte(unorm(c[3], 8))
		}
	case FormatR16Unorm, FormatRG16Unorm, FormatRGBA16Unorm:
		for i := 0; i < len(px)/2; i++ {
			le.PutUint16(px[2*i:], uint16(unorm(c[i], 16)))
		}
	case FormatR16Float, FormatRG16Float, FormatRGBA16Float:
		for i := 0; i < len(px)/2; i++ {
			le.PutUint16(px[2*i:], halfBits(c[i]))
		}
	case FormatR32Float, FormatRG32Float, FormatRGB32Float, FormatRGBA32Float:
		for i := 0; i < len(px)/4; i++ {
			le.PutUint32(px[4*i:], math.Float32bits(c[i]))
		}
	case FormatRGB10A2Unorm:
		le.PutUint32(px, unorm(c[0], 10)|unorm(c[1], 10)<<10|unorm(c[2], 10)<<20|unorm(c[3], 2)<<30)
	case FormatRG11B10Float:
		r := uint32(halfBits(max(c[0], 0))&0x7fff) >> 4
		g := uint32(halfBits(max(c[1], 0))&0x7fff) >> 4
		b := uint32(halfBits(max(c[2], 0))&0x7fff) >> 5
		le.PutUint32(px, r|g<<11|b<<22)
	default:
		return nil
	}
	return px
}

// encodeUintPixel packs color into a texel of an integer format.
func encodeUintPixel(f ImageFormat, c [4]uint32) []byte {
	switch f {
	case FormatR32Uint, FormatRG32Uint, FormatRGB32Uint, FormatRGBA32Uint:
	default:
		return nil
	}
	px := make([]byte, f.BytesPerPixel())
	for i := 0; i < len(px)/4; i++ {
		binary.LittleEndian.PutUint32(px[4*i:], c[i])
	}
	return px
}

// halfBits converts v to IEEE 754 binary16, rounding to nearest even.
func halfBits(v float32) uint16 {
	b := math.Float32bits(v)
	sign := uint16(b>>16) & 0x8000
	exp := int32(b>>23&0xff) - 127 + 15
	mant := b & 0x7fffff

	switch {
	case b&0x7fffffff == 0:
		return sign
	case b>>23&0xff == 0xff:
		if mant != 0 {
			return sign | 0x7e00
		}
		return sign | 0x7c00
	case exp >= 0x1f:
		return sign | 0x7c00
	case exp <= 0:
		if exp < -10 {
			return sign
		}
		mant |= 0x800000
		shift := uint32(14 - exp)
		h := mant >> shift
		rem := mant & (1<<shift - 1)
		half := uint32(1) << (shift - 1)
		if rem > half || (rem == half && h&1 != 0) {
			h++
		}
		return sign | uint16(h)
	}
	h := uint32(exp)<<10 | mant>>13
	rem := mant & 0x1fff
	if rem > 0x1000 || (rem == 0x1000 && h&1 != 0) {
		h++
	}
	return sign | uint16(h)
}

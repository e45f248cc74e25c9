package tilera

import (
	"fmt"

	"github.com/gogpu/tilera/internal/tile"
)

// Clear fills the scissor region of dst with color.
//
// Float and unorm formats take the color as is. Integer formats receive
// each component truncated to uint32.
func (c *Context) Clear(dst *Texture, color [4]float32, scissor Rect) error {
	if dst == nil {
		return fmt.Errorf("%w: nil texture", ErrInvalidUsage)
	}
	if !dst.params.RenderDst {
		return fmt.Errorf("%w: clear target is not renderable", ErrInvalidUsage)
	}
	if scissor.Y0 > scissor.Y1 {
		scissor.Y0, scissor.Y1 = scissor.Y1, scissor.Y0
	}
	cb := c.cmd()
	cb.BindRenderTarget(dst.image)
	cb.SetScissor(tile.Scissor{
		X:      uint32(max(scissor.X0, 0)),
		Y:      uint32(max(scissor.Y0, 0)),
		Width:  uint32(max(scissor.W(), 0)),
		Height: uint32(max(scissor.H(), 0)),
	})
	switch dst.params.Format.CType {
	case CTypeUint:
		var u [4]uint32
		for i, v := range color {
			u[i] = uint32(v)
		}
		cb.ClearColorUint(0, tile.ColorMaskRGBA, u)
	default:
		cb.ClearColorFloat(0, tile.ColorMaskRGBA, color)
	}
	return cb.Err()
}

// Blit copies srcRect of src into dstRect of dst with scaling.
// A dstRect with Y0 > Y1 flips the copy vertically. Rects outside their
// texture fail with ErrOutOfRange before anything is recorded.
func (c *Context) Blit(dst, src *Texture, dstRect, srcRect Rect) error {
	if dst == nil || src == nil {
		return fmt.Errorf("%w: nil texture", ErrInvalidUsage)
	}
	if !dst.params.BlitDst {
		return fmt.Errorf("%w: blit destination lacks BlitDst", ErrInvalidUsage)
	}
	if !src.params.BlitSrc {
		return fmt.Errorf("%w: blit source lacks BlitSrc", ErrInvalidUsage)
	}

	if src.params.Format.Hardware != dst.params.Format.Hardware {
		return fmt.Errorf("%w: blit %s to %s", ErrInvalidUsage, src.params.Format.Name, dst.params.Format.Name)
	}
	if !srcRect.within(src.params.W, src.params.H) || srcRect.W() < 0 || srcRect.H() < 0 {
		return fmt.Errorf("%w: blit source rect %+v in %dx%d", ErrOutOfRange, srcRect, src.params.W, src.params.H)
	}
	if !dstRect.normalized().within(dst.params.W, dst.params.H) || dstRect.W() < 0 {
		return fmt.Errorf("%w: blit destination rect %+v in %dx%d", ErrOutOfRange, dstRect, dst.params.W, dst.params.H)
	}

	flags := tile.BlitModeBlit
	dr := blitRect(dstRect)
	if dstRect.Y0 > dstRect.Y1 {
		flags |= tile.BlitFlipY
		dr.Y = uint32(dstRect.Y1)
		dr.Height = uint32(dstRect.Y0 - dstRect.Y1)
	}
	cb := c.cmd()
	cb.BlitImage(src.image, blitRect(srcRect), dst.image, dr, flags)
	return cb.Err()
}

func blitRect(r Rect) tile.ImageRect {
	return tile.ImageRect{
		X:      uint32(max(r.X0, 0)),
		Y:      uint32(max(r.Y0, 0)),
		Width:  uint32(max(r.W(), 0)),
		Height: uint32(max(r.H(), 0)),
		Depth:  1,
	}
}

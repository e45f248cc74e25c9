// Package hwdec maps hardware decoder output into sampled textures without
// copying. Frames live in memory shared with the decoder; the Mapper
// imports each surface once and hands out the cached plane textures on
// every later Map of the same surface.
package hwdec

import (
	"errors"
	"fmt"

	"github.com/gogpu/tilera"
)

// Errors returned by the mapper.
var (
	ErrUnsupportedFormat = errors.New("hwdec: unsupported pixel format")
	ErrInvalidFrame      = errors.New("hwdec: invalid frame")
	ErrClosed            = errors.New("hwdec: mapper closed")
)

// PixelFormat is a decoder surface format.
type PixelFormat int

// Decoder surface formats.
const (
	// Y8 is a single 8-bit luma plane.
	Y8 PixelFormat = iota
	// NV12 is 8-bit luma with interleaved half-resolution chroma.
	NV12
	// P010 is NV12 with 16-bit samples.
	P010
	// YUV420P is 8-bit luma with two separate half-resolution chroma planes.
	YUV420P
)

var pixelFormatNames = [...]string{"y8", "nv12", "p010", "yuv420p"}

func (f PixelFormat) String() string {
	if f >= 0 && int(f) < len(pixelFormatNames) {
		return pixelFormatNames[f]
	}
	return fmt.Sprintf("PixelFormat(%d)", int(f))
}

// planeFormats lists the texture format of each plane.
var planeFormats = [...][]string{
	Y8:      {"r8"},
	NV12:    {"r8", "rg8"},
	P010:    {"r16", "rg16"},
	YUV420P: {"r8", "r8", "r8"},
}

// Plane is the texture shape of one surface plane.
type Plane struct {
	Format *tilera.Format
	W, H   int
}

// planesFor derives the plane shapes of a w×h surface. Chroma planes are
// subsampled by two in both directions, rounding up.
func planesFor(format PixelFormat, w, h int) ([]Plane, error) {
	if format < 0 || int(format) >= len(planeFormats) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
	if w < 1 || h < 1 {
		return nil, fmt.Errorf("%w: %dx%d", tilera.ErrInvalidDimensions, w, h)
	}
	names := planeFormats[format]
	planes := make([]Plane, len(names))
	for i, name := range names {
		f, err := tilera.FormatByName(name)
		if err != nil {
			return nil, err
		}
		planes[i] = Plane{Format: f, W: w, H: h}
		if i > 0 {
			planes[i].W = (w + 1) / 2
			planes[i].H = (h + 1) / 2
		}
	}
	return planes, nil
}

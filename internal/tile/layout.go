package tile

import (
	"errors"
	"fmt"
)

// Layout errors.
var (
	// ErrInvalidLayout is returned for layouts the hardware cannot represent.
	ErrInvalidLayout = errors.New("tile: invalid image layout")
)

// ImageType is the dimensionality of an image.
type ImageType uint8

// Image types.
const (
	Image1D ImageType = iota + 1
	Image2D
	Image3D
)

// ImageFlags select image usage and tiling.
type ImageFlags uint32

const (
	// ImageUsageRender allows the image as a render target.
	ImageUsageRender ImageFlags = 1 << iota
	// ImageUsageLoadStore allows shader image load/store.
	ImageUsageLoadStore
	// ImageUsage2DEngine allows blits.
	ImageUsage2DEngine
	// ImageUsageVideo marks decoder output surfaces.
	ImageUsageVideo
	// ImagePitchLinear stores rows linearly with an explicit pitch.
	ImagePitchLinear
	// ImageCustomTileSize uses LayoutDesc.TileSize instead of the automatic choice.
	ImageCustomTileSize
	// ImageHwCompression enables framebuffer compression.
	ImageHwCompression
)

// TileSize is the block height of a block-linear image, in GOBs.
type TileSize uint8

// Tile sizes.
const (
	TileOneGob TileSize = iota
	TileTwoGobs
	TileFourGobs
	TileEightGobs
	TileSixteenGobs
)

// Gobs returns the number of GOBs per tile.
func (t TileSize) Gobs() uint32 { return 1 << t }

const (
	gobHeight    = 8
	gobRowBytes  = 64
	gobBytes     = 512
	pitchAlign   = 32
	maxTileIndex = TileSixteenGobs
)

// LayoutDesc describes an image to lay out.
type LayoutDesc struct {
	Type   ImageType
	Format ImageFormat
	Flags  ImageFlags

	Width, Height, Depth uint32

	// PitchStride is the row pitch of pitch-linear images.
	PitchStride uint32

	// TileSize applies when Flags has ImageCustomTileSize.
	TileSize TileSize
}

// ImageLayout is the computed memory layout of an image.
type ImageLayout struct {
	Type   ImageType
	Format ImageFormat
	Flags  ImageFlags

	Width, Height, Depth uint32

	TileSize  TileSize
	RowPitch  uint32
	Size      uint32
	Alignment uint32
}

// InitImageLayout computes the layout for desc.
func InitImageLayout(desc LayoutDesc) (ImageLayout, error) {
	bpp := desc.Format.BytesPerPixel()
	if bpp == 0 {
		return ImageLayout{}, fmt.Errorf("%w: format %s", ErrInvalidLayout, desc.Format)
	}
	if desc.Width == 0 {
		return ImageLayout{}, fmt.Errorf("%w: zero width", ErrInvalidLayout)
	}

	l := ImageLayout{
		Type:   desc.Type,
		Format: desc.Format,
		Flags:  desc.Flags,
		Width:  desc.Width,
		Height: max(desc.Height, 1),
		Depth:  max(desc.Depth, 1),
	}
	switch desc.Type {
	case Image1D:
		l.Height = 1
		l.Depth = 1
	case Image2D:
		l.Depth = 1
	case Image3D:
	default:
		return ImageLayout{}, fmt.Errorf("%w: type %d", ErrInvalidLayout, desc.Type)
	}

	if desc.Flags&ImagePitchLinear != 0 {
		if desc.Type != Image2D {
			return ImageLayout{}, fmt.Errorf("%w: pitch-linear requires 2D", ErrInvalidLayout)
		}
		if desc.PitchStride < l.Width*bpp || desc.PitchStride%pitchAlign != 0 {
			return ImageLayout{}, fmt.Errorf("%w: pitch %d for width %d of %s",
				ErrInvalidLayout, desc.PitchStride, l.Width, desc.Format)
		}
		l.RowPitch = desc.PitchStride
		l.Size = l.RowPitch * l.Height
		l.Alignment = pitchAlign
		return l, nil
	}

	l.RowPitch = AlignUp(l.Width*bpp, gobRowBytes)
	if desc.Flags&ImageCustomTileSize != 0 {
		if desc.TileSize > maxTileIndex {
			return ImageLayout{}, fmt.Errorf("%w: tile size %d", ErrInvalidLayout, desc.TileSize)
		}
		l.TileSize = desc.TileSize
	} else {
		l.TileSize = autoTileSize(l.Height)
	}
	blockRows := gobHeight * l.TileSize.Gobs()
	l.Size = l.RowPitch * AlignUp(l.Height, blockRows) * l.Depth
	l.Alignment = gobBytes * l.TileSize.Gobs()

	slogger().Debug("tile: image layout",
		"format", desc.Format.String(), "w", l.Width, "h", l.Height, "d", l.Depth,
		"tile_gobs", l.TileSize.Gobs(), "size", l.Size)
	return l, nil
}

// autoTileSize picks the smallest tile (at least two GOBs) that still
// covers the image height.
func autoTileSize(height uint32) TileSize {
	needed := (height + gobHeight - 1) / gobHeight
	t := TileSixteenGobs
	for t > TileTwoGobs && (t-1).Gobs() >= needed {
		t--
	}
	return t
}

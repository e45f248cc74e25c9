package tilera

import (
	"fmt"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/tilera/internal/tile"
)

// ComponentType is the numeric class of a format's components.
type ComponentType uint8

// Component types.
const (
	CTypeUnorm ComponentType = iota + 1
	CTypeUint
	CTypeFloat
)

// String returns the component type name.
func (c ComponentType) String() string {
	switch c {
	case CTypeUnorm:
		return "unorm"
	case CTypeUint:
		return "uint"
	case CTypeFloat:
		return "float"
	}
	return fmt.Sprintf("ComponentType(%d)", c)
}

// Format describes a pixel format the device supports.
type Format struct {
	Name       string
	Components int
	Bytes      int
	Bits       [4]int
	Hardware   tile.ImageFormat
	CType      ComponentType

	Renderable   bool
	LinearFilter bool
	Storable     bool

	// Ordered is false when memory order differs from RGBA.
	Ordered bool

	// Interop is the matching WebGPU format, or TextureFormatUndefined.
	Interop gputypes.TextureFormat
}

// String returns the format name.
func (f *Format) String() string { return f.Name }

var formats = []Format{
	{"r8", 1, 1, [4]int{8}, tile.FormatR8Unorm, CTypeUnorm, true, true, true, true, gputypes.TextureFormatR8Unorm},
	{"rg8", 2, 2, [4]int{8, 8}, tile.FormatRG8Unorm, CTypeUnorm, true, true, true, true, gputypes.TextureFormatRG8Unorm},
	{"rgba8", 4, 4, [4]int{8, 8, 8, 8}, tile.FormatRGBA8Unorm, CTypeUnorm, true, true, true, true, gputypes.TextureFormatRGBA8Unorm},
	{"r16", 1, 2, [4]int{16}, tile.FormatR16Unorm, CTypeUnorm, true, true, true, true, gputypes.TextureFormatR16Unorm},
	{"rg16", 2, 4, [4]int{16, 16}, tile.FormatRG16Unorm, CTypeUnorm, true, true, true, true, gputypes.TextureFormatRG16Unorm},
	{"rgba16", 4, 8, [4]int{16, 16, 16, 16}, tile.FormatRGBA16Unorm, CTypeUnorm, true, true, true, true, gputypes.TextureFormatRGBA16Unorm},

	{"r32ui", 1, 4, [4]int{32}, tile.FormatR32Uint, CTypeUint, true, false, true, true, gputypes.TextureFormatR32Uint},
	{"rg32ui", 2, 8, [4]int{32, 32}, tile.FormatRG32Uint, CTypeUint, true, false, true, true, gputypes.TextureFormatRG32Uint},
	{"rgb32ui", 3, 12, [4]int{32, 32, 32}, tile.FormatRGB32Uint, CTypeUint, false, false, false, true, gputypes.TextureFormatUndefined},
	{"rgba32ui", 4, 16, [4]int{32, 32, 32, 32}, tile.FormatRGBA32Uint, CTypeUint, true, false, true, true, gputypes.TextureFormatRGBA32Uint},

	{"r16f", 1, 2, [4]int{16}, tile.FormatR16Float, CTypeFloat, true, true, true, true, gputypes.TextureFormatR16Float},
	{"rg16f", 2, 4, [4]int{16, 16}, tile.FormatRG16Float, CTypeFloat, true, true, true, true, gputypes.TextureFormatRG16Float},
	{"rgba16f", 4, 8, [4]int{16, 16, 16, 16}, tile.FormatRGBA16Float, CTypeFloat, true, true, true, true, gputypes.TextureFormatRGBA16Float},
	{"r32f", 1, 4, [4]int{32}, tile.FormatR32Float, CTypeFloat, true, true, true, true, gputypes.TextureFormatR32Float},
	{"rg32f", 2, 8, [4]int{32, 32}, tile.FormatRG32Float, CTypeFloat, true, true, true, true, gputypes.TextureFormatRG32Float},
	{"rgb32f", 3, 12, [4]int{32, 32, 32}, tile.FormatRGB32Float, CTypeFloat, false, false, false, true, gputypes.TextureFormatUndefined},
	{"rgba32f", 4, 16, [4]int{32, 32, 32, 32}, tile.FormatRGBA32Float, CTypeFloat, true, true, true, true, gputypes.TextureFormatRGBA32Float},

	{"rgb10_a2", 4, 4, [4]int{10, 10, 10, 2}, tile.FormatRGB10A2Unorm, CTypeUnorm, true, true, true, true, gputypes.TextureFormatRGB10A2Unorm},
	{"rg11b10f", 3, 4, [4]int{11, 11, 10}, tile.FormatRG11B10Float, CTypeFloat, true, true, true, true, gputypes.TextureFormatRG11B10Ufloat},
	{"bgra8", 4, 4, [4]int{8, 8, 8, 8}, tile.FormatBGRA8Unorm, CTypeUnorm, true, true, true, false, gputypes.TextureFormatBGRA8Unorm},
	{"bgrx8", 3, 4, [4]int{8, 8, 8}, tile.FormatBGRX8Unorm, CTypeUnorm, true, true, false, false, gputypes.TextureFormatUndefined},
}

// Formats returns the supported formats. The slice must not be modified.
func Formats() []Format { return formats }

// FormatByName looks up a format by its table name, such as "rgba8".
func FormatByName(name string) (*Format, error) {
	for i := range formats {
		if formats[i].Name == name {
			return &formats[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, name)
}

// FormatByHardware looks up a format by its hardware tag.
func FormatByHardware(hw tile.ImageFormat) (*Format, error) {
	for i := range formats {
		if formats[i].Hardware == hw {
			return &formats[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownFormat, hw)
}

// FormatByInterop looks up a format by its WebGPU equivalent.
func FormatByInterop(tf gputypes.TextureFormat) (*Format, error) {
	if tf == gputypes.TextureFormatUndefined {
		return nil, fmt.Errorf("%w: undefined interop format", ErrUnknownFormat)
	}
	for i := range formats {
		if formats[i].Interop == tf {
			return &formats[i], nil
		}
	}
	return nil, fmt.Errorf("%w: interop %d", ErrUnknownFormat, tf)
}

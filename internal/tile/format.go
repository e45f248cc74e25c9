package tile

import "fmt"

// ImageFormat is the hardware image format tag.
type ImageFormat uint16

// Hardware image formats.
const (
	FormatNone ImageFormat = iota
	FormatR8Unorm
	FormatRG8Unorm
	FormatRGBA8Unorm
	FormatR16Unorm
	FormatRG16Unorm
	FormatRGBA16Unorm
	FormatR32Uint
	FormatRG32Uint
	FormatRGB32Uint
	FormatRGBA32Uint
	FormatR16Float
	FormatRG16Float
	FormatRGBA16Float
	FormatR32Float
	FormatRG32Float
	FormatRGB32Float
	FormatRGBA32Float
	FormatRGB10A2Unorm
	FormatRG11B10Float
	FormatBGRA8Unorm
	FormatBGRX8Unorm
)

var formatInfo = [...]struct {
	name string
	bpp  uint32
}{
	FormatNone:         {"None", 0},
	FormatR8Unorm:      {"R8_Unorm", 1},
	FormatRG8Unorm:     {"RG8_Unorm", 2},
	FormatRGBA8Unorm:   {"RGBA8_Unorm", 4},
	FormatR16Unorm:     {"R16_Unorm", 2},
	FormatRG16Unorm:    {"RG16_Unorm", 4},
	FormatRGBA16Unorm:  {"RGBA16_Unorm", 8},
	FormatR32Uint:      {"R32_Uint", 4},
	FormatRG32Uint:     {"RG32_Uint", 8},
	FormatRGB32Uint:    {"RGB32_Uint", 12},
	FormatRGBA32Uint:   {"RGBA32_Uint", 16},
	FormatR16Float:     {"R16_Float", 2},
	FormatRG16Float:    {"RG16_Float", 4},
	FormatRGBA16Float:  {"RGBA16_Float", 8},
	FormatR32Float:     {"R32_Float", 4},
	FormatRG32Float:    {"RG32_Float", 8},
	FormatRGB32Float:   {"RGB32_Float", 12},
	FormatRGBA32Float:  {"RGBA32_Float", 16},
	FormatRGB10A2Unorm: {"RGB10A2_Unorm", 4},
	FormatRG11B10Float: {"RG11B10_Float", 4},
	FormatBGRA8Unorm:   {"BGRA8_Unorm", 4},
	FormatBGRX8Unorm:   {"BGRX8_Unorm", 4},
}

// String returns the hardware format name.
func (f ImageFormat) String() string {
	if int(f) < len(formatInfo) {
		return formatInfo[f].name
	}
	return fmt.Sprintf("Unknown(%d)", f)
}

// BytesPerPixel returns the texel size, or 0 for unknown formats.
func (f ImageFormat) BytesPerPixel() uint32 {
	if int(f) < len(formatInfo) {
		return formatInfo[f].bpp
	}
	return 0
}

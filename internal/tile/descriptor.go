package tile

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/gogpu/gputypes"
)

// Descriptor sizes in bytes.
const (
	SamplerDescriptorSize = 32
	ImageDescriptorSize   = 32
)

// Sampler descriptor word layout.
const (
	sdAddrU   = 0
	sdAddrV   = 1
	sdAddrW   = 2
	sdMag     = 3
	sdMin     = 4
	sdMip     = 5
	sdCompare = 6
	sdLodMin  = 8
	sdLodMax  = 12
	sdAniso   = 16
)

// EncodeSamplerDescriptor writes the hardware form of s into dst.
func EncodeSamplerDescriptor(dst []byte, s gputypes.SamplerDescriptor) error {
	if len(dst) < SamplerDescriptorSize {
		return fmt.Errorf("%w: sampler descriptor needs %d bytes, have %d",
			ErrOutOfRange, SamplerDescriptorSize, len(dst))
	}
	d := dst[:SamplerDescriptorSize]
	clear(d)
	d[sdAddrU] = byte(s.AddressModeU)
	d[sdAddrV] = byte(s.AddressModeV)
	d[sdAddrW] = byte(s.AddressModeW)
	d[sdMag] = byte(s.MagFilter)
	d[sdMin] = byte(s.MinFilter)
	d[sdMip] = byte(s.MipmapFilter)
	d[sdCompare] = byte(s.Compare)
	binary.LittleEndian.PutUint32(d[sdLodMin:], math.Float32bits(s.LodMinClamp))
	binary.LittleEndian.PutUint32(d[sdLodMax:], math.Float32bits(s.LodMaxClamp))
	binary.LittleEndian.PutUint16(d[sdAniso:], s.MaxAnisotropy)
	return nil
}

// DecodeSamplerDescriptor reads a sampler written by EncodeSamplerDescriptor.
func DecodeSamplerDescriptor(src []byte) (gputypes.SamplerDescriptor, error) {
	if len(src) < SamplerDescriptorSize {
		return gputypes.SamplerDescriptor{}, fmt.Errorf("%w: short sampler descriptor", ErrOutOfRange)
	}
	return gputypes.SamplerDescriptor{
		AddressModeU:  gputypes.AddressMode(src[sdAddrU]),
		AddressModeV:  gputypes.AddressMode(src[sdAddrV]),
		AddressModeW:  gputypes.AddressMode(src[sdAddrW]),
		MagFilter:     gputypes.FilterMode(src[sdMag]),
		MinFilter:     gputypes.FilterMode(src[sdMin]),
		MipmapFilter:  gputypes.MipmapFilterMode(src[sdMip]),
		Compare:       gputypes.CompareFunction(src[sdCompare]),
		LodMinClamp:   math.Float32frombits(binary.LittleEndian.Uint32(src[sdLodMin:])),
		LodMaxClamp:   math.Float32frombits(binary.LittleEndian.Uint32(src[sdLodMax:])),
		MaxAnisotropy: binary.LittleEndian.Uint16(src[sdAniso:]),
	}, nil
}

// ImageDescriptor is the decoded form of an image descriptor.
type ImageDescriptor struct {
	Addr                 uint64
	Format               ImageFormat
	Type                 ImageType
	Storage              bool
	Width, Height, Depth uint32
	RowPitch             uint32
}

// EncodeImageDescriptor writes the descriptor of im into dst. storage marks
// the view as usable for shader image stores.
func EncodeImageDescriptor(dst []byte, im *Image, storage bool) error {
	if len(dst) < ImageDescriptorSize {
		return fmt.Errorf("%w: image descriptor needs %d bytes, have %d",
			ErrOutOfRange, ImageDescriptorSize, len(dst))
	}
	d := dst[:ImageDescriptorSize]
	clear(d)
	l := &im.Layout
	binary.LittleEndian.PutUint64(d[0:], im.GPUAddr())
	binary.LittleEndian.PutUint16(d[8:], uint16(l.Format))
	d[10] = byte(l.Type)
	if storage {
		d[11] = 1
	}
	binary.LittleEndian.PutUint32(d[12:], l.Width)
	binary.LittleEndian.PutUint32(d[16:], l.Height)
	binary.LittleEndian.PutUint32(d[20:], l.Depth)
	binary.LittleEndian.PutUint32(d[24:], l.RowPitch)
	return nil
}

// DecodeImageDescriptor reads an image descriptor.
func DecodeImageDescriptor(src []byte) (ImageDescriptor, error) {
	if len(src) < ImageDescriptorSize {
		return ImageDescriptor{}, fmt.Errorf("%w: short image descriptor", ErrOutOfRange)
	}
	return ImageDescriptor{
		Addr:     binary.LittleEndian.Uint64(src[0:]),
		Format:   ImageFormat(binary.LittleEndian.Uint16(src[8:])),
		Type:     ImageType(src[10]),
		Storage:  src[11] != 0,
		Width:    binary.LittleEndian.Uint32(src[12:]),
		Height:   binary.LittleEndian.Uint32(src[16:]),
		Depth:    binary.LittleEndian.Uint32(src[20:]),
		RowPitch: binary.LittleEndian.Uint32(src[24:]),
	}, nil
}

// ResHandle packs descriptor indices into a shader resource handle.
type ResHandle uint32

// TextureHandle combines an image and a sampler descriptor index.
func TextureHandle(image, sampler uint32) ResHandle {
	return ResHandle(image&0xfffff | sampler<<20)
}

// ImageHandle refers to an image descriptor alone.
func ImageHandle(image uint32) ResHandle { return ResHandle(image & 0xfffff) }

// Image returns the image descriptor index.
func (h ResHandle) Image() uint32 { return uint32(h) & 0xfffff }

// Sampler returns the sampler descriptor index.
func (h ResHandle) Sampler() uint32 { return uint32(h) >> 20 }

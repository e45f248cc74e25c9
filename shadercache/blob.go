// Package shadercache serializes compiled shader programs and stores them.
//
// A program blob is a 32-byte little-endian header followed by the code of
// each present stage:
//
//	offset size field
//	0      4    magic "DKCH"
//	4      4    version (1)
//	8      8    vertex offset, size
//	16     8    fragment offset, size
//	24     8    compute offset, size
//
// Absent stages have offset and size 0. Present stages follow each other
// in vertex, fragment, compute order starting at offset 32.
package shadercache

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/gogpu/gputypes"
)

// Blob format constants.
const (
	// Magic is "DKCH" read as a little-endian uint32.
	Magic uint32 = 'D' | 'K'<<8 | 'C'<<16 | 'H'<<24

	// Version is the only accepted blob version.
	Version int32 = 1

	// HeaderSize is the size of the blob header.
	HeaderSize = 32
)

// Decode errors.
var (
	// ErrShortBlob is returned when data is smaller than the header.
	ErrShortBlob = errors.New("shadercache: blob shorter than header")

	// ErrBadMagic is returned when the magic does not match.
	ErrBadMagic = errors.New("shadercache: bad blob magic")

	// ErrBadVersion is returned for unknown blob versions.
	ErrBadVersion = errors.New("shadercache: unsupported blob version")

	// ErrBlobRange is returned when a stage points outside the blob.
	ErrBlobRange = errors.New("shadercache: stage outside blob")
)

// Blob holds the compiled code of each stage. Nil means absent.
type Blob struct {
	Vertex   []byte
	Fragment []byte
	Compute  []byte
}

// Stage returns the code for stage, or nil.
func (b Blob) Stage(stage gputypes.ShaderStage) []byte {
	switch stage {
	case gputypes.ShaderStageVertex:
		return b.Vertex
	case gputypes.ShaderStageFragment:
		return b.Fragment
	case gputypes.ShaderStageCompute:
		return b.Compute
	}
	return nil
}

// Has reports whether every stage in mask is present.
func (b Blob) Has(mask gputypes.ShaderStage) bool {
	for _, s := range []gputypes.ShaderStage{
		gputypes.ShaderStageVertex, gputypes.ShaderStageFragment, gputypes.ShaderStageCompute,
	} {
		if mask&s != 0 && len(b.Stage(s)) == 0 {
			return false
		}
	}
	return true
}

// Size returns the encoded size of b.
func (b Blob) Size() int {
	return HeaderSize + len(b.Vertex) + len(b.Fragment) + len(b.Compute)
}

// Encode serializes b.
func Encode(b Blob) []byte {
	out := make([]byte, HeaderSize, b.Size())
	le := binary.LittleEndian
	le.PutUint32(out[0:], Magic)
	le.PutUint32(out[4:], uint32(Version))

	offset := uint32(HeaderSize)
	for i, code := range [3][]byte{b.Vertex, b.Fragment, b.Compute} {
		if len(code) == 0 {
			continue
		}
		le.PutUint32(out[8+8*i:], offset)
		le.PutUint32(out[12+8*i:], uint32(len(code)))
		offset += uint32(len(code))
	}
	out = append(out, b.Vertex...)
	out = append(out, b.Fragment...)
	out = append(out, b.Compute...)
	return out
}

// Decode parses a blob. Stage slices alias data. On error no stage is returned.
func Decode(data []byte) (Blob, error) {
	if len(data) < HeaderSize {
		return Blob{}, fmt.Errorf("%w: %d bytes", ErrShortBlob, len(data))
	}
	le := binary.LittleEndian
	if m := le.Uint32(data[0:]); m != Magic {
		return Blob{}, fmt.Errorf("%w: %#08x", ErrBadMagic, m)
	}
	if v := int32(le.Uint32(data[4:])); v != Version {
		return Blob{}, fmt.Errorf("%w: %d", ErrBadVersion, v)
	}

	var stages [3][]byte
	for i := range stages {
		off := uint64(le.Uint32(data[8+8*i:]))
		size := uint64(le.Uint32(data[12+8*i:]))
		if size == 0 {
			continue
		}
		if off < HeaderSize || off+size > uint64(len(data)) {
			return Blob{}, fmt.Errorf("%w: stage %d at %d+%d in %d bytes",
				ErrBlobRange, i, off, size, len(data))
		}
		stages[i] = data[off : off+size : off+size]
	}
	return Blob{Vertex: stages[0], Fragment: stages[1], Compute: stages[2]}, nil
}

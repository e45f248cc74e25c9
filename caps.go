package tilera

import (
	"strings"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/tilera/internal/tile"
)

// Caps is a set of optional features the context supports.
type Caps uint32

// Capabilities.
const (
	CapTex1D Caps = 1 << iota
	CapTex3D
	CapBlit
	CapCompute
	CapDirectUpload
	CapBufRO
	CapBufRW
	CapNestedArray
	CapGather
	CapFragCoord
	CapNumGroups
)

var capNames = [...]string{
	"tex1d", "tex3d", "blit", "compute", "direct_upload",
	"buf_ro", "buf_rw", "nested_array", "gather", "frag_coord", "num_groups",
}

// Has reports whether every capability in want is present.
func (c Caps) Has(want Caps) bool { return c&want == want }

// String lists the capability names separated by '|'.
func (c Caps) String() string {
	var names []string
	for i, n := range capNames {
		if c&(1<<i) != 0 {
			names = append(names, n)
		}
	}
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, "|")
}

// Caps returns the supported features. They are the same on every context.
func (c *Context) Caps() Caps {
	return CapTex1D | CapTex3D | CapBlit | CapCompute | CapDirectUpload |
		CapBufRO | CapBufRW | CapNestedArray | CapGather | CapFragCoord | CapNumGroups
}

// Limits are the hard resource limits of the device.
type Limits struct {
	MaxTextureSize         int
	MaxSharedMemory        int
	MaxComputeGroupThreads int
}

// Limits returns the device limits.
func (c *Context) Limits() Limits {
	return Limits{
		MaxTextureSize:         16384,
		MaxSharedMemory:        98304,
		MaxComputeGroupThreads: 1024,
	}
}

// Gputypes converts l for code that speaks gputypes. Fields tilera has no
// opinion on keep their gputypes defaults.
func (l Limits) Gputypes() gputypes.Limits {
	g := gputypes.DefaultLimits()
	n := uint32(l.MaxTextureSize)
	g.MaxTextureDimension1D = n
	g.MaxTextureDimension2D = n
	g.MaxTextureDimension3D = n
	g.MaxComputeWorkgroupStorageSize = uint32(l.MaxSharedMemory)
	g.MaxComputeInvocationsPerWorkgroup = uint32(l.MaxComputeGroupThreads)
	g.MaxComputeWorkgroupSizeX = uint32(l.MaxComputeGroupThreads)
	g.MaxComputeWorkgroupSizeY = uint32(l.MaxComputeGroupThreads)
	g.MaxPushConstantSize = tile.MaxPushSize
	return g
}

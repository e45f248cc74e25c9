package tilera

import (
	"fmt"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/tilera/internal/desc"
	"github.com/gogpu/tilera/internal/tile"
)

// samplerFor derives the sampler of a texture from its sampling flags.
func samplerFor(p *TextureParams) gputypes.SamplerDescriptor {
	s := gputypes.DefaultSamplerDescriptor()
	if p.SrcRepeat {
		s.AddressModeU = gputypes.AddressModeRepeat
		s.AddressModeV = gputypes.AddressModeRepeat
		s.AddressModeW = gputypes.AddressModeRepeat
	}
	if p.SrcLinear {
		s.MagFilter = gputypes.FilterModeLinear
		s.MinFilter = gputypes.FilterModeLinear
		s.MipmapFilter = gputypes.MipmapFilterModeLinear
	}
	s.Compare = gputypes.CompareFunctionNever
	return s
}

// registerTexture assigns t a descriptor slot, writes its sampler and
// image descriptors and records a descriptor invalidation.
func (c *Context) registerTexture(t *Texture) error {
	slot, err := c.descs.Allocate()
	if err != nil {
		slogger().Error("tilera: no free descriptor slots",
			"w", t.params.W, "h", t.params.H, "d", t.params.D, "format", t.params.Format.Name)
		t.slot = desc.Invalid
		return fmt.Errorf("%w: %w", ErrDescriptorsExhausted, err)
	}

	mem := c.descMem.CPUAddr()
	sOff := slot * tile.SamplerDescriptorSize
	iOff := MaxDescriptors*tile.SamplerDescriptorSize + slot*tile.ImageDescriptorSize
	if err := tile.EncodeSamplerDescriptor(mem[sOff:], samplerFor(&t.params)); err != nil {
		c.descs.Release(slot)
		return err
	}
	if err := tile.EncodeImageDescriptor(mem[iOff:], t.image, t.params.StorageDst); err != nil {
		c.descs.Release(slot)
		return err
	}
	t.slot = slot
	c.cmd().Barrier(tile.BarrierNone, tile.InvalidateDescriptors)
	return nil
}

// unregisterTexture returns the slot of t to the table.
func (c *Context) unregisterTexture(t *Texture) {
	if t.slot == desc.Invalid {
		return
	}
	c.descs.Release(t.slot)
	t.slot = desc.Invalid
}

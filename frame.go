package tilera

import (
	"fmt"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/tilera/internal/desc"
	"github.com/gogpu/tilera/internal/tile"
)

// FrameTarget is a presentable image handed over by the windowing host.
type FrameTarget struct {
	Image *tile.Image

	// Ready, if set, is waited on by the queue before the frame's commands run.
	Ready *tile.Fence
	// Done, if set, is signalled when the frame's commands completed.
	Done *tile.Fence

	W, H   int
	Format gputypes.TextureFormat
}

// WrapTarget exposes a frame image as a texture usable as a render and
// blit target. The texture has no descriptor slot and cannot be sampled.
func (c *Context) WrapTarget(ft FrameTarget) (*Texture, error) {
	if ft.Image == nil {
		return nil, fmt.Errorf("%w: frame target without image", ErrInvalidUsage)
	}
	f, err := FormatByInterop(ft.Format)
	if err != nil {
		return nil, err
	}
	return &Texture{
		ctx: c,
		params: TextureParams{
			Dimensions: 2,
			W:          ft.W,
			H:          ft.H,
			D:          1,
			Format:     f,
			RenderDst:  true,
			BlitSrc:    true,
			BlitDst:    true,
		},
		image:   ft.Image,
		slot:    desc.Invalid,
		wrapped: true,
	}, nil
}

// BeginFrame starts recording a frame into the next command slice.
func (c *Context) BeginFrame(ft FrameTarget) error {
	if err := c.ring.Begin(); err != nil {
		return fmt.Errorf("%w: %w", ErrSyncFailed, err)
	}
	c.frameDone = ft.Done
	if ft.Ready != nil {
		c.queue.WaitFence(ft.Ready)
	}
	return nil
}

// EndFrame submits and flushes the frame, signalling the Done fence
// passed to BeginFrame.
func (c *Context) EndFrame() error {
	done := c.frameDone
	c.frameDone = nil
	return c.ring.End(done)
}

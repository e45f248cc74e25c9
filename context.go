package tilera

import (
	"fmt"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/tilera/internal/desc"
	"github.com/gogpu/tilera/internal/ring"
	"github.com/gogpu/tilera/internal/tile"
	"github.com/gogpu/tilera/shaderc"
	"github.com/gogpu/tilera/shadercache"
)

const (
	// MaxDescriptors is the number of sampler/image descriptor pairs.
	MaxDescriptors = desc.Capacity

	// MaxQueries is the number of timestamp queries.
	MaxQueries = 128

	// queryStride is the size of one report: counter and timestamp.
	queryStride = 16
)

// Context owns one device connection: its queue, the command ring, the
// descriptor table and the timer query pool. Every resource is created
// through a Context.
//
// A Context is not safe for concurrent use. All recording happens on the
// caller's goroutine.
type Context struct {
	dev      *tile.Device
	queue    *tile.Queue
	ring     *ring.Ring
	adapter  gpucontext.AdapterInfo
	compiler shaderc.Compiler
	store    *shadercache.Store

	descMem *tile.MemBlock
	descs   desc.Table

	queryMem    *tile.MemBlock
	numQueries  int
	freeQueries [][timerQueries]int

	// frameDone is signalled by EndFrame.
	frameDone *tile.Fence

	destroyed bool
}

// NewContext creates a Context on the device of an external provider, such
// as a windowing host. The provider must also implement HalDevice() any and
// HalQueue() any returning hal.Device and hal.Queue.
func NewContext(provider gpucontext.DeviceProvider, opts ...ContextOption) (*Context, error) {
	type halProvider interface {
		HalDevice() any
		HalQueue() any
	}
	hp, ok := provider.(halProvider)
	if !ok {
		return nil, ErrUnsupportedProvider
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok || device == nil {
		return nil, fmt.Errorf("%w: HalDevice is not hal.Device", ErrUnsupportedProvider)
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return nil, fmt.Errorf("%w: HalQueue is not hal.Queue", ErrUnsupportedProvider)
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	dev, err := tile.Open(device, queue, tile.WithMemoryBudget(o.budget))
	if err != nil {
		return nil, err
	}
	return newContext(dev, provider.AdapterInfo(), o)
}

// NewHeadless creates a Context on the wgpu noop backend. It needs no
// window or GPU and is what tests and the CLI use.
func NewHeadless(opts ...ContextOption) (*Context, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	dev, err := tile.OpenNoop(tile.WithMemoryBudget(o.budget))
	if err != nil {
		return nil, err
	}
	info := gpucontext.AdapterInfo{Name: "noop", Type: gpucontext.AdapterTypeSoftware}
	return newContext(dev, info, o)
}

func newContext(dev *tile.Device, info gpucontext.AdapterInfo, o contextOptions) (*Context, error) {
	c := &Context{
		dev:      dev,
		adapter:  info,
		compiler: o.compiler,
		store:    o.store,
	}
	if c.compiler == nil {
		cc, err := shaderc.New(o.compilerName)
		if err != nil {
			dev.Close()
			return nil, err
		}
		c.compiler = cc
	}
	slogger().Info("tilera: creating context",
		"adapter", info.Name, "type", info.Type.String(), "compiler", c.compiler.Name())

	if err := c.init(o.sliceSize); err != nil {
		c.Destroy()
		return nil, fmt.Errorf("tilera: init: %w", err)
	}
	return c, nil
}

// init creates the queue, the command ring and the descriptor and query
// memory, binds the descriptor sets and waits for the setup to finish.
func (c *Context) init(sliceSize uint32) error {
	q, err := c.dev.CreateQueue()
	if err != nil {
		return err
	}
	c.queue = q

	r, err := ring.New(c.dev, q, sliceSize)
	if err != nil {
		return err
	}
	c.ring = r

	c.descMem, err = c.dev.CreateMemBlock(tile.MemBlockDesc{
		Label: "descriptors",
		Size: tile.AlignUp(uint32(MaxDescriptors*(tile.SamplerDescriptorSize+tile.ImageDescriptorSize)),
			tile.MemBlockAlignment),
		Flags: tile.MemCPUUncached | tile.MemGPUCached,
	})
	if err != nil {
		return err
	}

	c.queryMem, err = c.dev.CreateMemBlock(tile.MemBlockDesc{
		Label: "queries",
		Size:  tile.AlignUp(uint32(MaxQueries*queryStride*2), tile.MemBlockAlignment),
		Flags: tile.MemCPUUncached | tile.MemGPUUncached | tile.MemZeroFill,
	})
	if err != nil {
		return err
	}

	cb := c.cmd()
	cb.BindSamplerDescriptorSet(c.samplerSetAddr(), MaxDescriptors)
	cb.BindImageDescriptorSet(c.imageSetAddr(), MaxDescriptors)
	if err := c.ring.Submit(); err != nil {
		return err
	}
	return c.queue.WaitIdle()
}

// Destroy waits for the GPU to go idle and frees the descriptor, query
// and command memory. Resources created from c must be destroyed first.
func (c *Context) Destroy() {
	if c == nil || c.destroyed {
		return
	}
	c.destroyed = true
	if c.queue != nil {
		if err := c.queue.WaitIdle(); err != nil {
			slogger().Warn("tilera: wait idle on destroy", "err", err)
		}
		slogger().Info("tilera: context destroyed", "queue", c.queue.Stats().String())
	}
	c.descMem.Destroy()
	c.queryMem.Destroy()
	if c.ring != nil {
		c.ring.Destroy()
	}
	c.dev.Close()
}

// Device returns the low-level device.
func (c *Context) Device() *tile.Device { return c.dev }

// Queue returns the submission queue.
func (c *Context) Queue() *tile.Queue { return c.queue }

// AdapterInfo returns the adapter the context runs on.
func (c *Context) AdapterInfo() gpucontext.AdapterInfo { return c.adapter }

// Compiler returns the shader compiler used by CreatePipeline.
func (c *Context) Compiler() shaderc.Compiler { return c.compiler }

// Descriptors returns the number of descriptor slots in use.
func (c *Context) Descriptors() int { return c.descs.Count() }

// DebugMarker logs msg at error level if the queue has faulted.
func (c *Context) DebugMarker(msg string) {
	if c.queue.IsInErrorState() {
		slogger().Error("tilera: queue is in error state", "marker", msg)
	}
}

// cmd returns the command buffer of the current ring slice.
func (c *Context) cmd() *tile.CmdBuf { return c.ring.CmdBuf() }

// waitIdle submits recorded commands and waits until the GPU executed
// everything, so the host may reuse memory those commands reference.
func (c *Context) waitIdle() error {
	if err := c.ring.Flush(); err != nil {
		return err
	}
	if err := c.queue.WaitIdle(); err != nil {
		return fmt.Errorf("%w: %w", ErrSyncFailed, err)
	}
	return nil
}

// flushWait submits recorded commands, flushes and blocks on f.
func (c *Context) flushWait(f *tile.Fence) error {
	if err := c.ring.Flush(); err != nil {
		return err
	}
	if err := f.Wait(tile.Forever); err != nil {
		return fmt.Errorf("%w: %w", ErrSyncFailed, err)
	}
	return nil
}

func (c *Context) samplerSetAddr() uint64 { return c.descMem.GPUAddr() }

func (c *Context) imageSetAddr() uint64 {
	return c.descMem.GPUAddr() + MaxDescriptors*tile.SamplerDescriptorSize
}

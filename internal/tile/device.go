package tile

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"
)

// Device errors.
var (
	// ErrNilDevice is returned when opening a device without a HAL device or queue.
	ErrNilDevice = errors.New("tile: hal device or queue is nil")

	// ErrQueueExists is returned when a second queue is requested.
	ErrQueueExists = errors.New("tile: device already has a queue")

	// ErrNoAdapter is returned when the noop backend exposes no adapter.
	ErrNoAdapter = errors.New("tile: no adapter available")
)

// baseAddr is the first GPU virtual address handed out.
const baseAddr = 0x80000000

// ticksPerCommand is how far the simulated GPU clock advances per executed command.
const ticksPerCommand = 16

// Device is a logical connection to the tile GPU.
type Device struct {
	hal      hal.Device
	halQueue hal.Queue

	// instance and owned are set when OpenNoop created the HAL device.
	instance hal.Instance
	owned    bool

	mu       sync.Mutex
	blocks   map[uint64]*MemBlock
	nextAddr uint64

	mem   memoryTracker
	queue *Queue
	clock uint64

	// Render state seen by the executor.
	target  *Image
	scissor Scissor
}

// DeviceOption configures a Device.
type DeviceOption func(*deviceOptions)

type deviceOptions struct {
	budget uint64
}

// WithMemoryBudget caps device-owned memory at bytes. Zero means unlimited.
func WithMemoryBudget(bytes uint64) DeviceOption {
	return func(o *deviceOptions) {
		o.budget = bytes
	}
}

// Open wraps a HAL device and queue.
func Open(d hal.Device, q hal.Queue, opts ...DeviceOption) (*Device, error) {
	if d == nil || q == nil {
		return nil, ErrNilDevice
	}
	var o deviceOptions
	for _, opt := range opts {
		opt(&o)
	}
	dev := &Device{
		hal:      d,
		halQueue: q,
		blocks:   make(map[uint64]*MemBlock),
		nextAddr: baseAddr,
	}
	dev.mem.budget = o.budget
	return dev, nil
}

// OpenNoop opens a device on the wgpu noop backend.
// The returned device owns the HAL objects and releases them in Close.
func OpenNoop(opts ...DeviceOption) (*Device, error) {
	inst, err := noop.API{}.CreateInstance(nil)
	if err != nil {
		return nil, fmt.Errorf("tile: noop instance: %w", err)
	}
	adapters := inst.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		inst.Destroy()
		return nil, ErrNoAdapter
	}
	od, err := adapters[0].Adapter.Open(0, gputypes.DefaultLimits())
	if err != nil {
		inst.Destroy()
		return nil, fmt.Errorf("tile: noop open: %w", err)
	}
	dev, err := Open(od.Device, od.Queue, opts...)
	if err != nil {
		od.Device.Destroy()
		inst.Destroy()
		return nil, err
	}
	dev.instance = inst
	dev.owned = true
	return dev, nil
}

// HAL returns the underlying HAL device.
func (d *Device) HAL() hal.Device { return d.hal }

// MemoryStats returns current memory accounting.
func (d *Device) MemoryStats() MemoryStats { return d.mem.stats() }

// CreateQueue creates the device's single submission queue.
func (d *Device) CreateQueue() (*Queue, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.queue != nil {
		return nil, ErrQueueExists
	}
	d.queue = &Queue{dev: d}
	return d.queue, nil
}

// Close releases HAL objects owned by the device. Memory blocks still alive
// are reported and left to the garbage collector.
func (d *Device) Close() {
	d.mu.Lock()
	live := len(d.blocks)
	d.mu.Unlock()
	if live > 0 {
		slogger().Warn("tile: device closed with live memory blocks", "count", live)
	}
	if d.owned {
		d.hal.Destroy()
		if d.instance != nil {
			d.instance.Destroy()
		}
		d.owned = false
	}
}

// TimestampToNs converts GPU timestamp ticks (19.2 MHz) to nanoseconds.
func TimestampToNs(ticks uint64) uint64 {
	return ticks * 625 / 12
}

// track assigns a GPU address to m and records it for address resolution.
func (d *Device) track(m *MemBlock) {
	d.mu.Lock()
	defer d.mu.Unlock()
	m.addr = d.nextAddr
	d.nextAddr += uint64(m.size)
	d.blocks[m.addr] = m
}

func (d *Device) untrack(m *MemBlock) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.blocks, m.addr)
}

// resolve returns the CPU bytes backing [addr, addr+n).
func (d *Device) resolve(addr uint64, n uint64) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for base, m := range d.blocks {
		if addr < base || addr >= base+uint64(m.size) {
			continue
		}
		off := addr - base
		if off+n > uint64(len(m.data)) {
			return nil, fmt.Errorf("%w: %#x+%d in %q", ErrOutOfRange, addr, n, m.label)
		}
		return m.data[off : off+n], nil
	}
	return nil, fmt.Errorf("%w: %#x", ErrUnmappedAddress, addr)
}

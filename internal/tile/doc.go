// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package tile implements the low-level command API of a tile-based GPU.
//
// The API mirrors what a console-class driver exposes: memory blocks with
// explicit CPU/GPU cache attributes, a command buffer that records into
// caller-provided memory, a single submission queue, and fences that the host
// can wait on or poll. Images are laid out in 64x8 byte GOBs grouped into
// tiles, or pitch-linear when requested.
//
// The device is simulated on top of a gogpu/wgpu HAL device. Memory blocks
// are HAL buffers mapped once at creation; submitted command lists are
// mirrored to the HAL queue and executed by the simulator when the host
// blocks on them. This keeps the asynchronous contract observable: work that
// has been flushed but not waited on has not completed yet.
//
// # Execution model
//
// Recording into a CmdBuf is synchronous. Queue.Submit hands a finished list
// to the queue, Queue.Flush makes it visible to the GPU, and the GPU runs
// visible lists when the host calls Fence.Wait with Forever, Queue.WaitIdle,
// or Queue.Retire. Fence.Wait with Poll never advances execution.
//
// # Thread safety
//
// A Device may be shared, but a CmdBuf and a Queue assume a single recording
// goroutine.
package tile

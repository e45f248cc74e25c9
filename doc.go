// Package tilera manages GPU resources and command submission for a
// tile-based GPU.
//
// # Overview
//
// tilera sits between a high-level renderer and the low-level command API of
// the device. It owns textures, buffers, compiled pipelines and timer
// queries, and multiplexes them onto one command stream. Fences, barriers
// and cache flushes are recorded where the hardware needs them, so callers
// see a synchronous-looking API.
//
// # Quick Start
//
//	import "github.com/gogpu/tilera"
//
//	ctx, err := tilera.NewHeadless()
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer ctx.Destroy()
//
//	rgba, _ := tilera.FormatByName("rgba8")
//	tex, err := ctx.CreateTexture(tilera.TextureParams{
//		Dimensions: 2, W: 256, H: 256, Format: rgba,
//		RenderDst: true, BlitSrc: true,
//	})
//
// # Command Memory
//
// Commands are recorded into a ring of three slices. BeginFrame moves to the
// next slice after waiting for the GPU to release it; EndFrame submits and
// flushes. Work recorded outside a frame shares the current slice.
//
// # Descriptors
//
// Every texture owns one of 128 sampler/image descriptor pairs. Shaders
// reference textures only by slot.
//
// # Shader Programs
//
// Pipelines compile WGSL through a shaderc.Compiler. The compiled program
// can be serialized, handed back through PipelineParams.CachedProgram and
// persisted with a shadercache.Store.
//
// # Concurrency
//
// A Context is not safe for concurrent use. SetLogger may be called from
// any goroutine.
package tilera

// Version information
const (
	// Version is the current version of the library
	Version = "0.3.0"

	// VersionMajor is the major version
	VersionMajor = 0

	// VersionMinor is the minor version
	VersionMinor = 3

	// VersionPatch is the patch version
	VersionPatch = 0
)

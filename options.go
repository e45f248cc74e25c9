package tilera

import (
	"github.com/gogpu/tilera/shaderc"
	"github.com/gogpu/tilera/shadercache"
)

// ContextOption configures a Context during creation.
//
// Example:
//
//	// Headless context with the default compiler
//	ctx, err := tilera.NewHeadless()
//
//	// Bounded memory and a persistent shader store
//	store, _ := shadercache.Open(dir)
//	ctx, err := tilera.NewHeadless(
//	    tilera.WithMemoryBudget(256<<20),
//	    tilera.WithShaderStore(store),
//	)
type ContextOption func(*contextOptions)

// contextOptions holds optional configuration for Context creation.
type contextOptions struct {
	compiler     shaderc.Compiler
	compilerName string
	budget       uint64
	sliceSize    uint32
	store        *shadercache.Store
}

// defaultOptions returns the default context options.
func defaultOptions() contextOptions {
	return contextOptions{
		compiler:  nil, // resolved from the shaderc registry
		sliceSize: 0,   // ring.DefaultSliceSize
	}
}

// WithCompiler sets the shader compiler used by CreatePipeline.
// It takes precedence over WithCompilerName.
//
// Example:
//
//	ctx, err := tilera.NewHeadless(tilera.WithCompiler(myCompiler))
func WithCompiler(c shaderc.Compiler) ContextOption {
	return func(o *contextOptions) {
		o.compiler = c
	}
}

// WithCompilerName selects a registered compiler by name.
// An empty name selects the registry default.
func WithCompilerName(name string) ContextOption {
	return func(o *contextOptions) {
		o.compilerName = name
	}
}

// WithMemoryBudget caps device memory owned by the context at bytes.
// Allocations beyond the budget fail; nothing is evicted.
func WithMemoryBudget(bytes uint64) ContextOption {
	return func(o *contextOptions) {
		o.budget = bytes
	}
}

// WithCommandSliceSize sets the command memory per ring slice.
// The size is rounded up to the memory block alignment.
func WithCommandSliceSize(size uint32) ContextOption {
	return func(o *contextOptions) {
		o.sliceSize = size
	}
}

// WithShaderStore attaches a persistent program store. CreatePipeline looks
// programs up by source when PipelineParams.CachedProgram is empty and
// stores freshly compiled ones.
//
// Example:
//
//	store, err := shadercache.Open(filepath.Join(cacheDir, "shaders"))
//	if err != nil {
//	    return err
//	}
//	ctx, err := tilera.NewHeadless(tilera.WithShaderStore(store))
func WithShaderStore(s *shadercache.Store) ContextOption {
	return func(o *contextOptions) {
		o.store = s
	}
}

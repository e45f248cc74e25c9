package shaderc

import (
	"fmt"
	"sort"

	"github.com/gogpu/gpucontext"
)

// Factory creates a compiler instance.
type Factory func() Compiler

// registry holds the known compilers; naga wins when present.
var registry = gpucontext.NewRegistry[Compiler](gpucontext.WithPriority(NagaName))

func init() {
	Register(NagaName, func() Compiler { return NewNaga() })
}

// Register registers a compiler factory under name.
//
// Register panics if factory is nil or name is already registered.
func Register(name string, factory Factory) {
	if factory == nil {
		panic("shaderc: Register factory is nil")
	}
	if registry.Has(name) {
		panic("shaderc: Register called twice for " + name)
	}
	registry.Register(name, factory)
}

// Unregister removes a compiler. Unknown names are a no-op.
func Unregister(name string) {
	registry.Unregister(name)
}

// New creates a compiler by name. An empty name selects the default.
func New(name string) (Compiler, error) {
	if name == "" {
		return Default()
	}
	if !registry.Has(name) {
		return nil, fmt.Errorf("shaderc: unknown compiler %q (forgotten import?)", name)
	}
	return registry.Get(name), nil
}

// Default returns the highest-priority registered compiler.
func Default() (Compiler, error) {
	c := registry.Best()
	if c == nil {
		return nil, fmt.Errorf("shaderc: no compiler registered")
	}
	return c, nil
}

// Compilers returns the registered compiler names, sorted.
func Compilers() []string {
	names := registry.Available()
	sort.Strings(names)
	return names
}

// IsRegistered reports whether name is registered.
func IsRegistered(name string) bool { return registry.Has(name) }

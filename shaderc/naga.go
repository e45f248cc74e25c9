package shaderc

import (
	"fmt"
	"strings"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/naga"
	"github.com/gogpu/naga/ir"
	"github.com/gogpu/naga/spirv"
)

// NagaName is the registry name of the naga compiler.
const NagaName = "naga"

// Naga compiles WGSL to SPIR-V with github.com/gogpu/naga.
type Naga struct {
	// Options controls SPIR-V version, debug info and IR validation.
	Options naga.CompileOptions
}

// NewNaga returns a naga compiler with default options.
func NewNaga() *Naga {
	return &Naga{Options: naga.DefaultOptions()}
}

// Name implements Compiler.
func (*Naga) Name() string { return NagaName }

// Compile implements Compiler. The source must declare an entry point
// for stage.
func (n *Naga) Compile(stage gputypes.ShaderStage, source string) ([]byte, error) {
	want, ok := irStage(stage)
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedStage, stage)
	}
	if strings.TrimSpace(source) == "" {
		return nil, ErrEmptySource
	}

	ast, err := naga.Parse(source)
	if err != nil {
		return nil, fmt.Errorf("shaderc: parse %s: %w", StageName(stage), err)
	}
	module, err := naga.LowerWithSource(ast, source)
	if err != nil {
		return nil, fmt.Errorf("shaderc: lower %s: %w", StageName(stage), err)
	}
	if !hasEntryPoint(module, want) {
		return nil, fmt.Errorf("%w: %s", ErrMissingEntryPoint, StageName(stage))
	}
	if n.Options.Validate {
		verrs, err := naga.Validate(module)
		if err != nil {
			return nil, fmt.Errorf("shaderc: validate %s: %w", StageName(stage), err)
		}
		if len(verrs) > 0 {
			return nil, fmt.Errorf("shaderc: validate %s: %w", StageName(stage), &verrs[0])
		}
	}

	version := n.Options.SPIRVVersion
	if version == (spirv.Version{}) {
		version = spirv.Version1_3
	}
	code, err := naga.GenerateSPIRV(module, spirv.Options{Version: version, Debug: n.Options.Debug})
	if err != nil {
		return nil, fmt.Errorf("shaderc: generate %s: %w", StageName(stage), err)
	}
	slogger().Debug("shaderc: compiled", "stage", StageName(stage), "bytes", len(code))
	return code, nil
}

func irStage(s gputypes.ShaderStage) (ir.ShaderStage, bool) {
	switch s {
	case gputypes.ShaderStageVertex:
		return ir.StageVertex, true
	case gputypes.ShaderStageFragment:
		return ir.StageFragment, true
	case gputypes.ShaderStageCompute:
		return ir.StageCompute, true
	}
	return 0, false
}

func hasEntryPoint(m *ir.Module, stage ir.ShaderStage) bool {
	for i := range m.EntryPoints {
		if m.EntryPoints[i].Stage == stage {
			return true
		}
	}
	return false
}

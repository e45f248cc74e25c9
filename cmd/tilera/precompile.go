package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/gogpu/tilera"
	"github.com/gogpu/tilera/shaderc"
	"github.com/gogpu/tilera/shadercache"
)

// Shader source suffixes recognized by precompile.
const (
	suffixVert = ".vert.wgsl"
	suffixFrag = ".frag.wgsl"
	suffixComp = ".comp.wgsl"
)

var errUnpaired = errors.New("precompile: vertex and fragment shaders must come in pairs")

// program is one pipeline's shader sources, read from disk.
type program struct {
	name   string
	params tilera.PipelineParams
}

// sources returns the sources in the order pipelines key them.
func (p program) sources() []string {
	if p.params.Type == tilera.PipelineCompute {
		return []string{p.params.ComputeShader}
	}
	return []string{p.params.VertexShader, p.params.FragShader}
}

func newPrecompileCmd(a *app) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "precompile --out DIR SRC...",
		Short: "Compile shader programs into a cache directory",
		Long: "Compiles NAME.vert.wgsl with NAME.frag.wgsl, or NAME.comp.wgsl, " +
			"and stores each program blob under the key pipelines look it up by.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if out == "" {
				out = a.cfg.CacheDir
			}
			if out == "" {
				return errors.New("precompile: no output directory (--out or cache_dir)")
			}
			compiler, err := shaderc.New(a.cfg.Compiler)
			if err != nil {
				return err
			}
			store, err := shadercache.Open(out)
			if err != nil {
				return err
			}
			return precompile(cmd.Context(), cmd.OutOrStdout(), compiler, store, args)
		},
	}
	cmd.Flags().StringVar(&out, "out", "", "cache directory to write (defaults to cache_dir)")
	return cmd
}

// collectPrograms groups source paths into programs by name.
func collectPrograms(paths []string) ([]program, error) {
	type pair struct{ vert, frag string }
	raster := map[string]*pair{}
	var progs []program

	for _, path := range paths {
		base := filepath.Base(path)
		switch {
		case strings.HasSuffix(base, suffixComp):
			src, err := os.ReadFile(path)
			if err != nil {
				return nil, err
			}
			progs = append(progs, program{
				name:   strings.TrimSuffix(base, suffixComp),
				params: tilera.PipelineParams{Type: tilera.PipelineCompute, ComputeShader: string(src)},
			})
		case strings.HasSuffix(base, suffixVert), strings.HasSuffix(base, suffixFrag):
			name := strings.TrimSuffix(strings.TrimSuffix(base, suffixVert), suffixFrag)
			key := filepath.Join(filepath.Dir(path), name)
			p := raster[key]
			if p == nil {
				p = &pair{}
				raster[key] = p
			}
			src, err := os.ReadFile(path)
			if err != nil {
				return nil, err
			}
			if strings.HasSuffix(base, suffixVert) {
				p.vert = string(src)
			} else {
				p.frag = string(src)
			}
		default:
			return nil, fmt.Errorf("precompile: %s: unknown shader suffix", path)
		}
	}

	keys := make([]string, 0, len(raster))
	for k := range raster {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		p := raster[k]
		if p.vert == "" || p.frag == "" {
			return nil, fmt.Errorf("%w: %s", errUnpaired, k)
		}
		progs = append(progs, program{
			name: filepath.Base(k),
			params: tilera.PipelineParams{
				Type:         tilera.PipelineRaster,
				VertexShader: p.vert,
				FragShader:   p.frag,
			},
		})
	}
	return progs, nil
}

// precompile builds every program in parallel and stores the blobs. The
// first failure cancels the remaining work.
func precompile(ctx context.Context, w io.Writer, compiler shaderc.Compiler, store *shadercache.Store, paths []string) error {
	progs, err := collectPrograms(paths)
	if err != nil {
		return err
	}
	if ctx == nil {
		ctx = context.Background()
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))

	var mu sync.Mutex
	for _, p := range progs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			blob, err := tilera.BuildProgram(compiler, p.params)
			if err != nil {
				return fmt.Errorf("%s: %w", p.name, err)
			}
			key := shadercache.KeyFor(compiler.Name(), p.sources()...)
			if err := store.Put(key, compiler.Name(), blob); err != nil {
				return fmt.Errorf("%s: %w", p.name, err)
			}
			mu.Lock()
			fmt.Fprintf(w, "%s\t%d bytes\t%s\n", p.name, len(blob), key)
			mu.Unlock()
			return nil
		})
	}
	return g.Wait()
}

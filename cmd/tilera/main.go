// Command tilera inspects the device, precompiles shader programs into a
// cache directory and round-trips images through the GPU.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/gogpu/tilera"
)

// app carries the resolved configuration into subcommands.
type app struct {
	configPath string
	flags      Config
	cfg        Config
}

func newRootCmd() (*cobra.Command, *app) {
	a := &app{}
	root := &cobra.Command{
		Use:           "tilera",
		Short:         "Tiled GPU rendering layer tools",
		Version:       tilera.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.resolve(cmd)
		},
	}
	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "", "TOML config file")
	pf.StringVar(&a.flags.CacheDir, "cache-dir", "", "shader cache directory")
	pf.StringVar(&a.flags.Compiler, "compiler", "", "shader compiler name")
	pf.Uint64Var(&a.flags.MemoryBudgetMB, "memory-budget-mb", 0, "device memory budget in MiB (0 = unlimited)")
	pf.StringVar(&a.flags.LogLevel, "log-level", "", "log level: debug, info, warn, error")

	root.AddCommand(
		newInfoCmd(a),
		newPrecompileCmd(a),
		newRoundtripCmd(a),
	)
	return root, a
}

// resolve loads the config file and lets explicitly set flags override it.
func (a *app) resolve(cmd *cobra.Command) error {
	cfg, err := loadConfig(a.configPath, cmd.Flags().Changed("config"))
	if err != nil {
		return err
	}
	f := cmd.Flags()
	if f.Changed("cache-dir") {
		cfg.CacheDir = a.flags.CacheDir
	}
	if f.Changed("compiler") {
		cfg.Compiler = a.flags.Compiler
	}
	if f.Changed("memory-budget-mb") {
		cfg.MemoryBudgetMB = a.flags.MemoryBudgetMB
	}
	if f.Changed("log-level") {
		cfg.LogLevel = a.flags.LogLevel
	}
	level, err := cfg.level()
	if err != nil {
		return err
	}
	tilera.SetLogger(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})))
	a.cfg = cfg
	return nil
}

func main() {
	root, _ := newRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "tilera:", err)
		os.Exit(1)
	}
}

package main

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/gogpu/tilera"
	"github.com/gogpu/tilera/shadercache"
)

// Config holds settings shared by all subcommands.
type Config struct {
	CacheDir       string `toml:"cache_dir"`
	Compiler       string `toml:"compiler"`
	MemoryBudgetMB uint64 `toml:"memory_budget_mb"`
	LogLevel       string `toml:"log_level"`
}

func defaultConfig() Config {
	return Config{LogLevel: "warn"}
}

// loadConfig reads path over the defaults. A missing file is an error only
// when required is set.
func loadConfig(path string, required bool) (Config, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if !required && errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("config: %w", err)
	}
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// level parses LogLevel as a slog level name.
func (c Config) level() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("config: log_level %q: %w", c.LogLevel, err)
	}
	return l, nil
}

// contextOptions turns the config into context options. The returned store
// is nil when no cache directory is configured.
func (c Config) contextOptions() ([]tilera.ContextOption, *shadercache.Store, error) {
	var opts []tilera.ContextOption
	if c.Compiler != "" {
		opts = append(opts, tilera.WithCompilerName(c.Compiler))
	}
	if c.MemoryBudgetMB > 0 {
		opts = append(opts, tilera.WithMemoryBudget(c.MemoryBudgetMB<<20))
	}
	if c.CacheDir == "" {
		return opts, nil, nil
	}
	store, err := shadercache.Open(c.CacheDir)
	if err != nil {
		return nil, nil, err
	}
	return append(opts, tilera.WithShaderStore(store)), store, nil
}

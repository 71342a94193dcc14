// Package config holds the engine configuration and its TOML file format.
//
// A configuration file looks like:
//
//	[cpu]
//	workers = 0          # 0 = GOMAXPROCS
//	tile_size = 1024
//	slab_region_size = 65536
//
//	[gpu]
//	enabled = false
//	backend = "vulkan"
//	tile_size = 1024
//	mode = "realtime"    # or "streamlined"
//	memory_budget_mb = 512
//	precompile_shaders = false
//
//	[pool]
//	acquire_spins = 64
//	acquire_backoff_rounds = 10
//	acquire_backoff_max_us = 1000
//	acquire_timeout_ms = 0
//
//	[cache]
//	curve_luts = 64
//	kernels = 64
package config

import (
	"bytes"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/cockroachdb/errors"
)

// GPU rendering modes.
const (
	ModeRealtime    = "realtime"
	ModeStreamlined = "streamlined"
)

// GPU HAL backends.
const (
	BackendVulkan = "vulkan"
	BackendNoop   = "noop"
)

// ErrInvalid marks configuration validation failures.
var ErrInvalid = errors.New("config: invalid configuration")

// Config is the engine configuration.
type Config struct {
	CPU   CPU   `toml:"cpu"`
	GPU   GPU   `toml:"gpu"`
	Pool  Pool  `toml:"pool"`
	Cache Cache `toml:"cache"`
}

// CPU configures the CPU backend.
type CPU struct {
	Workers        int `toml:"workers"`
	TileSize       int `toml:"tile_size"`
	SlabRegionSize int `toml:"slab_region_size"`
}

// GPU configures the GPU backend.
type GPU struct {
	Enabled           bool   `toml:"enabled"`
	Backend           string `toml:"backend"`
	TileSize          int    `toml:"tile_size"`
	Mode              string `toml:"mode"`
	MemoryBudgetMB    int    `toml:"memory_budget_mb"`
	PrecompileShaders bool   `toml:"precompile_shaders"`
}

// Pool configures pooled resource acquisition.
type Pool struct {
	AcquireSpins         int `toml:"acquire_spins"`
	AcquireBackoffRounds int `toml:"acquire_backoff_rounds"`
	AcquireBackoffMaxUS  int `toml:"acquire_backoff_max_us"`
	AcquireTimeoutMS     int `toml:"acquire_timeout_ms"`
}

// Cache configures the lookup caches.
type Cache struct {
	CurveLUTs int `toml:"curve_luts"`
	Kernels   int `toml:"kernels"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		CPU: CPU{
			TileSize:       1024,
			SlabRegionSize: 64 << 10,
		},
		GPU: GPU{
			Backend:        BackendVulkan,
			TileSize:       1024,
			Mode:           ModeRealtime,
			MemoryBudgetMB: 512,
		},
		Pool: Pool{
			AcquireSpins:         64,
			AcquireBackoffRounds: 10,
			AcquireBackoffMaxUS:  1000,
		},
		Cache: Cache{
			CurveLUTs: 64,
			Kernels:   64,
		},
	}
}

// Load reads path on top of the defaults. Keys missing from the file keep
// their default value.
func Load(path string) (*Config, error) {
	c := Default()
	if _, err := toml.DecodeFile(path, c); err != nil {
		return nil, errors.Wrapf(err, "config: decode %s", path)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Parse decodes TOML text on top of the defaults.
func Parse(text string) (*Config, error) {
	c := Default()
	if _, err := toml.Decode(text, c); err != nil {
		return nil, errors.Wrap(err, "config: decode")
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Save writes c to path, creating the parent directory.
func (c *Config) Save(path string) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(c); err != nil {
		return errors.Wrap(err, "config: encode")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return errors.Wrapf(err, "config: create directory for %s", path)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return errors.Wrapf(err, "config: write %s", path)
	}
	return nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if c.CPU.Workers < 0 {
		return errors.Wrapf(ErrInvalid, "cpu.workers = %d", c.CPU.Workers)
	}
	if c.CPU.TileSize <= 0 {
		return errors.Wrapf(ErrInvalid, "cpu.tile_size = %d", c.CPU.TileSize)
	}
	if c.CPU.SlabRegionSize < 0 {
		return errors.Wrapf(ErrInvalid, "cpu.slab_region_size = %d", c.CPU.SlabRegionSize)
	}
	if c.GPU.TileSize <= 0 || c.GPU.TileSize%64 != 0 {
		return errors.Wrapf(ErrInvalid, "gpu.tile_size = %d, want a positive multiple of 64", c.GPU.TileSize)
	}
	switch c.GPU.Backend {
	case BackendVulkan, BackendNoop:
	default:
		return errors.Wrapf(ErrInvalid, "gpu.backend = %q", c.GPU.Backend)
	}
	switch c.GPU.Mode {
	case ModeRealtime, ModeStreamlined:
	default:
		return errors.Wrapf(ErrInvalid, "gpu.mode = %q", c.GPU.Mode)
	}
	if c.GPU.MemoryBudgetMB < 0 {
		return errors.Wrapf(ErrInvalid, "gpu.memory_budget_mb = %d", c.GPU.MemoryBudgetMB)
	}
	if c.Pool.AcquireSpins < 0 || c.Pool.AcquireBackoffRounds < 0 || c.Pool.AcquireBackoffMaxUS < 0 || c.Pool.AcquireTimeoutMS < 0 {
		return errors.Wrap(ErrInvalid, "pool values must not be negative")
	}
	if c.Cache.CurveLUTs <= 0 || c.Cache.Kernels <= 0 {
		return errors.Wrap(ErrInvalid, "cache sizes must be positive")
	}
	return nil
}

// MemoryBudget returns the GPU memory budget in bytes.
func (g GPU) MemoryBudget() uint64 {
	return uint64(g.MemoryBudgetMB) << 20
}

// BackoffMax returns the acquisition backoff cap.
func (p Pool) BackoffMax() time.Duration {
	return time.Duration(p.AcquireBackoffMaxUS) * time.Microsecond
}

// Timeout returns the acquisition timeout; zero means wait forever.
func (p Pool) Timeout() time.Duration {
	return time.Duration(p.AcquireTimeoutMS) * time.Millisecond
}

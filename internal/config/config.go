// Package config loads the tunables a databank is built and opened
// with: page size, shared cache capacity, run-merger buffer size and
// worker count, and the weighting constants spec.md §4 leaves
// implementation-defined. Values come from an optional mrsdb.toml,
// parsed with the same library the teacher uses for its own TOML
// config files.
package config

import (
	"os"

	"github.com/pelletier/go-toml/v2"
)

// Config holds every implementation-defined constant spec.md §4 calls
// out as tunable, plus the run-merger's scratch directory.
type Config struct {
	Storage  Storage  `toml:"storage"`
	Cache    Cache    `toml:"cache"`
	RunMerge RunMerge `toml:"run_merge"`
	Weighting Weighting `toml:"weighting"`
}

// Storage controls the fixed page size shared by the document store
// and every B+-tree index file (spec.md §4.B: "implementation-defined,
// e.g. 8 KiB").
type Storage struct {
	PageSize int `toml:"page_size"`
}

// Cache sets the capacity of the page cache each databank creates for
// its own files (spec.md §4.B: "Fixed page count C,
// implementation-tunable; default order-of 128-64K").
type Cache struct {
	CapacityPages int `toml:"capacity_pages"`
}

// RunMerge holds the external-sort run merger settings of the batch
// indexer's full-text pipeline (spec.md §4.G/§4.H: "capacity ~8M
// entries per run"). Only ScratchDir reaches the indexer; RunCapacity
// and Workers are loaded but not read, and the indexer's runs use
// sortrun.DefaultRunSize and sortrun's default worker count.
type RunMerge struct {
	RunCapacity int    `toml:"run_capacity"`
	Workers     int    `toml:"workers"`
	ScratchDir  string `toml:"scratch_dir"`
}

// Weighting holds the frequency-to-weight normalization and
// aggregate-saturation constant of spec.md §4.H/§4.I. MaxWeight is
// loaded but not read; the indexer and ranked search use
// postings.MaxAggregateWeight.
type Weighting struct {
	MaxWeight int `toml:"max_weight"`
}

// Default returns the constants spec.md §4 states or implies when it
// leaves a value implementation-defined.
func Default() *Config {
	return &Config{
		Storage: Storage{
			PageSize: 8192,
		},
		Cache: Cache{
			CapacityPages: 4096,
		},
		RunMerge: RunMerge{
			RunCapacity: 8_000_000,
			Workers:     4,
			ScratchDir:  os.TempDir(),
		},
		Weighting: Weighting{
			MaxWeight: 255,
		},
	}
}

// Load reads mrsdb.toml at path, overlaying it onto Default(). A
// missing file is not an error: Default() is returned unchanged, the
// same "optional config" behavior the teacher's own TOML readers use
// (a missing or unparsable Cargo.toml/pyproject.toml just leaves the
// caller's zero-value struct alone).
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

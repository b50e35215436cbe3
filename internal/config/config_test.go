package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "mrsdb.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := Default()
	if *cfg != *want {
		t.Errorf("Load on missing file = %+v, want defaults %+v", cfg, want)
	}
}

func TestLoadOverlaysPartialFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mrsdb.toml")
	body := "[storage]\npage_size = 16384\n\n[cache]\ncapacity_pages = 8192\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Storage.PageSize != 16384 {
		t.Errorf("PageSize = %d, want 16384", cfg.Storage.PageSize)
	}
	if cfg.Cache.CapacityPages != 8192 {
		t.Errorf("CapacityPages = %d, want 8192", cfg.Cache.CapacityPages)
	}
	// Fields absent from the file keep their defaults.
	if cfg.RunMerge.RunCapacity != Default().RunMerge.RunCapacity {
		t.Errorf("RunCapacity = %d, want default %d", cfg.RunMerge.RunCapacity, Default().RunMerge.RunCapacity)
	}
	if cfg.Weighting.MaxWeight != Default().Weighting.MaxWeight {
		t.Errorf("MaxWeight = %d, want default %d", cfg.Weighting.MaxWeight, Default().Weighting.MaxWeight)
	}
}

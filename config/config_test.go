package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	d := cfg.Sim.Dimensions
	if d.X <= 0 || d.Y <= 0 || d.Z <= 0 {
		t.Errorf("default dimensions = %+v, want positive", d)
	}
	if cfg.Sim.PicFlipRatio != 0.95 {
		t.Errorf("default picflip_ratio = %v, want 0.95", cfg.Sim.PicFlipRatio)
	}
	if cfg.Sim.DensityThreshold != 0.04 {
		t.Errorf("default density_threshold = %v, want 0.04", cfg.Sim.DensityThreshold)
	}
	if len(cfg.Scene.Liquids) == 0 {
		t.Error("default scene has no liquid")
	}
}

func TestDerivedValues(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	d := cfg.Sim.Dimensions
	maxd := d.X
	if d.Y > maxd {
		maxd = d.Y
	}
	if d.Z > maxd {
		maxd = d.Z
	}
	if cfg.Derived.Maxd != float64(maxd) {
		t.Errorf("Derived.Maxd = %v, want %v", cfg.Derived.Maxd, maxd)
	}
	if cfg.Derived.CellWidth != 1.0/float64(maxd) {
		t.Errorf("Derived.CellWidth = %v, want %v", cfg.Derived.CellWidth, 1.0/float64(maxd))
	}
}

func TestLoadOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	override := `
sim:
  dimensions: {x: 20, y: 40, z: 20}
  stepsize: 0.01
`
	if err := os.WriteFile(path, []byte(override), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Sim.Dimensions.Y != 40 {
		t.Errorf("override dimensions.y = %d, want 40", cfg.Sim.Dimensions.Y)
	}
	if cfg.Sim.Stepsize != 0.01 {
		t.Errorf("override stepsize = %v, want 0.01", cfg.Sim.Stepsize)
	}
	// Fields absent from the file keep their defaults.
	if cfg.Sim.PicFlipRatio != 0.95 {
		t.Errorf("picflip_ratio = %v, want default 0.95", cfg.Sim.PicFlipRatio)
	}
	if cfg.Derived.Maxd != 40 {
		t.Errorf("Derived.Maxd = %v, want 40", cfg.Derived.Maxd)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"zero dimension", "sim:\n  dimensions: {x: 0, y: 8, z: 8}\n"},
		{"negative density", "sim:\n  density: -1\n"},
		{"ratio above one", "sim:\n  picflip_ratio: 1.5\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(path, []byte(tt.yaml), 0644); err != nil {
				t.Fatal(err)
			}
			if _, err := Load(path); err == nil {
				t.Error("invalid config accepted")
			}
		})
	}
}

func TestWriteYAMLRoundTrip(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "snapshot.yaml")
	if err := cfg.WriteYAML(path); err != nil {
		t.Fatal(err)
	}

	back, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if back.Sim != cfg.Sim {
		t.Errorf("round trip changed sim config: %+v vs %+v", back.Sim, cfg.Sim)
	}
}

// Package config provides configuration loading and access for the
// simulator.
package config

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Config holds all simulation configuration parameters.
type Config struct {
	Sim    SimConfig    `yaml:"sim"`
	Scene  SceneConfig  `yaml:"scene"`
	Output OutputConfig `yaml:"output"`

	// Derived values computed after loading
	Derived DerivedConfig `yaml:"-"`
}

// SimConfig holds the core solver parameters, fixed at construction.
type SimConfig struct {
	Dimensions       DimsConfig `yaml:"dimensions"`
	Density          float64    `yaml:"density"`           // particle spacing in cells
	Stepsize         float64    `yaml:"stepsize"`          // seconds per frame
	Subcell          int        `yaml:"subcell"`           // 1 enables ghost-fluid surface handling
	PicFlipRatio     float64    `yaml:"picflip_ratio"`     // FLIP weight in the velocity blend
	DensityThreshold float64    `yaml:"density_threshold"` // stray-particle cull threshold
	Frames           int        `yaml:"frames"`
	Seed             int64      `yaml:"seed"`
	Verbose          bool       `yaml:"verbose"`
}

// DimsConfig is a logical grid resolution.
type DimsConfig struct {
	X int `yaml:"x"`
	Y int `yaml:"y"`
	Z int `yaml:"z"`
}

// VecConfig is a 3-vector in configuration files.
type VecConfig struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
	Z float64 `yaml:"z"`
}

// GeomConfig describes one shape. Shape selects which fields apply:
// "box" uses min/max, "sphere" uses center/radius. Coordinates are grid
// units. Velocity animates solids (grid units per frame) and sets the
// initial velocity of emitted particles (normalized units per second).
// Start/end bound an emitter's active frames.
type GeomConfig struct {
	Shape    string    `yaml:"shape"`
	Min      VecConfig `yaml:"min"`
	Max      VecConfig `yaml:"max"`
	Center   VecConfig `yaml:"center"`
	Radius   float64   `yaml:"radius"`
	Velocity VecConfig `yaml:"velocity"`
	Start    int       `yaml:"start"`
	End      int       `yaml:"end"`
}

// SceneConfig describes the world: initial liquid volumes, solid
// obstacles, emitters, and external forces.
type SceneConfig struct {
	ExternalForces []VecConfig  `yaml:"external_forces"`
	Liquids        []GeomConfig `yaml:"liquids"`
	Solids         []GeomConfig `yaml:"solids"`
	Emitters       []GeomConfig `yaml:"emitters"`
}

// OutputConfig holds export and telemetry settings.
type OutputConfig struct {
	Dir         string `yaml:"dir"`
	SaveCSV     bool   `yaml:"save_csv"`
	SaveOBJ     bool   `yaml:"save_obj"`
	StatsWindow int    `yaml:"stats_window"` // frames per perf log
}

// DerivedConfig holds values computed from the loaded configuration.
type DerivedConfig struct {
	Maxd      float64 // largest grid dimension
	CellWidth float64 // 1/Maxd, in normalized coordinates
}

// global holds the loaded configuration.
var global *Config

// Init loads configuration from the given path, or uses embedded defaults
// if path is empty. Must be called before Cfg().
func Init(path string) error {
	cfg, err := Load(path)
	if err != nil {
		return err
	}
	global = cfg
	return nil
}

// MustInit is like Init but panics on error.
func MustInit(path string) {
	if err := Init(path); err != nil {
		panic(fmt.Sprintf("config: failed to initialize: %v", err))
	}
}

// Cfg returns the global configuration. Panics if Init was not called.
func Cfg() *Config {
	if global == nil {
		panic("config: Cfg() called before Init()")
	}
	return global
}

// Load loads configuration from a YAML file, merging with embedded
// defaults. If path is empty, only embedded defaults are used.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Unmarshal into the same struct - only overwrites fields present
		// in the file
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	cfg.computeDerived()
	return cfg, nil
}

func (c *Config) validate() error {
	d := c.Sim.Dimensions
	if d.X <= 0 || d.Y <= 0 || d.Z <= 0 {
		return fmt.Errorf("config: dimensions must be positive, got (%d,%d,%d)", d.X, d.Y, d.Z)
	}
	if c.Sim.Density <= 0 {
		return fmt.Errorf("config: density must be positive, got %v", c.Sim.Density)
	}
	if c.Sim.Stepsize <= 0 {
		return fmt.Errorf("config: stepsize must be positive, got %v", c.Sim.Stepsize)
	}
	if c.Sim.PicFlipRatio < 0 || c.Sim.PicFlipRatio > 1 {
		return fmt.Errorf("config: picflip_ratio must be in [0,1], got %v", c.Sim.PicFlipRatio)
	}
	return nil
}

// computeDerived calculates values derived from loaded config.
func (c *Config) computeDerived() {
	d := c.Sim.Dimensions
	maxd := d.X
	if d.Y > maxd {
		maxd = d.Y
	}
	if d.Z > maxd {
		maxd = d.Z
	}
	c.Derived.Maxd = float64(maxd)
	c.Derived.CellWidth = 1.0 / float64(maxd)
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

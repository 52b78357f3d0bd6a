package scene

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/brine/config"
	"github.com/pthm-cable/brine/fluid"
)

// Builder assembles a Scene. The simulator receives a fully-populated
// immutable scene; nothing mutates it afterwards except the level-set
// rebuild hooks.
type Builder struct {
	x, y, z int
	density float64

	solids   []solidEntry
	liquids  []Geom
	emitters []Emitter
	forces   []r3.Vec

	outputDir string
}

// NewBuilder starts a scene for the given grid resolution and particle
// spacing.
func NewBuilder(x, y, z int, density float64) *Builder {
	return &Builder{x: x, y: y, z: z, density: density}
}

// AddSolid adds a solid obstacle. A non-zero velocity (grid units per
// frame) animates it.
func (b *Builder) AddSolid(g Geom, velocity r3.Vec) *Builder {
	b.solids = append(b.solids, solidEntry{geom: g, velocity: velocity})
	return b
}

// AddLiquid adds an initial liquid volume.
func (b *Builder) AddLiquid(g Geom) *Builder {
	b.liquids = append(b.liquids, g)
	return b
}

// AddEmitter adds a fluid source active over [start, end] frames.
func (b *Builder) AddEmitter(g Geom, start, end int, velocity r3.Vec) *Builder {
	b.emitters = append(b.emitters, Emitter{Geom: g, StartFrame: start, EndFrame: end, Velocity: velocity})
	return b
}

// AddExternalForce adds a constant acceleration applied to all particles.
func (b *Builder) AddExternalForce(f r3.Vec) *Builder {
	b.forces = append(b.forces, f)
	return b
}

// OutputDir sets where exported frames are written.
func (b *Builder) OutputDir(dir string) *Builder {
	b.outputDir = dir
	return b
}

// Build assembles the scene and precomputes the liquid level set.
func (b *Builder) Build() *Scene {
	maxd := b.x
	if b.y > maxd {
		maxd = b.y
	}
	if b.z > maxd {
		maxd = b.z
	}
	sc := &Scene{
		x:         b.x,
		y:         b.y,
		z:         b.z,
		maxd:      float64(maxd),
		density:   b.density,
		solids:    b.solids,
		liquids:   b.liquids,
		emitters:  b.emitters,
		forces:    b.forces,
		outputDir: b.outputDir,
	}
	for _, s := range sc.solids {
		if s.moving() {
			sc.hasMoving = true
			break
		}
	}
	sc.liquidLS = sc.buildLiquidLevelSet()
	return sc
}

// FromConfig assembles a scene from the loaded configuration.
func FromConfig(cfg *config.Config) (*Scene, error) {
	d := cfg.Sim.Dimensions
	b := NewBuilder(d.X, d.Y, d.Z, cfg.Sim.Density).OutputDir(cfg.Output.Dir)

	for _, f := range cfg.Scene.ExternalForces {
		b.AddExternalForce(toVec(f))
	}
	for _, g := range cfg.Scene.Liquids {
		geom, err := geomFromConfig(g)
		if err != nil {
			return nil, fmt.Errorf("scene liquid: %w", err)
		}
		b.AddLiquid(geom)
	}
	for _, g := range cfg.Scene.Solids {
		geom, err := geomFromConfig(g)
		if err != nil {
			return nil, fmt.Errorf("scene solid: %w", err)
		}
		b.AddSolid(geom, toVec(g.Velocity))
	}
	for _, g := range cfg.Scene.Emitters {
		geom, err := geomFromConfig(g)
		if err != nil {
			return nil, fmt.Errorf("scene emitter: %w", err)
		}
		end := g.End
		if end == 0 {
			end = cfg.Sim.Frames
		}
		b.AddEmitter(geom, g.Start, end, toVec(g.Velocity))
	}
	return b.Build(), nil
}

func geomFromConfig(g config.GeomConfig) (Geom, error) {
	switch g.Shape {
	case "box":
		return Box{Min: toVec(g.Min), Max: toVec(g.Max)}, nil
	case "sphere":
		return Sphere{Center: toVec(g.Center), Radius: g.Radius}, nil
	default:
		return nil, fmt.Errorf("unknown shape %q", g.Shape)
	}
}

func toVec(v config.VecConfig) r3.Vec {
	return r3.Vec{X: v.X, Y: v.Y, Z: v.Z}
}

var _ fluid.SceneQuery = (*Scene)(nil)

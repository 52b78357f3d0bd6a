package scene

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/brine/export"
	"github.com/pthm-cable/brine/fluid"
)

// solidEntry pairs a solid geom with its per-frame translation velocity.
// A zero velocity means the solid is static and covered by the perma
// level set.
type solidEntry struct {
	geom     Geom
	velocity r3.Vec
}

func (s solidEntry) offset(frame int) r3.Vec {
	return r3.Scale(float64(frame), s.velocity)
}

func (s solidEntry) moving() bool {
	return s.velocity != (r3.Vec{})
}

// Emitter adds fluid into a region over a frame range.
type Emitter struct {
	Geom       Geom
	StartFrame int
	EndFrame   int
	Velocity   r3.Vec // initial particle velocity, normalized units/sec
}

func (e Emitter) active(frame int) bool {
	return frame >= e.StartFrame && frame <= e.EndFrame
}

// Scene is the immutable world the simulator queries: solid and liquid
// geometry, emitters, external forces, and the derived level sets.
// Assemble one with Builder.
type Scene struct {
	x, y, z int
	maxd    float64
	density float64

	solids   []solidEntry
	liquids  []Geom
	emitters []Emitter
	forces   []r3.Vec

	permaLS  *fluid.LevelSet
	solidLS  *fluid.LevelSet
	liquidLS *fluid.LevelSet

	hasMoving bool
	outputDir string
}

// CheckPointInsideSolidGeom reports whether the grid-unit point is inside
// any solid at the given frame.
func (sc *Scene) CheckPointInsideSolidGeom(p r3.Vec, frame int) (bool, int) {
	for id, s := range sc.solids {
		if s.geom.Contains(r3.Sub(p, s.offset(frame))) {
			return true, id
		}
	}
	return false, -1
}

// IntersectSolidGeoms returns the nearest solid intersection along the
// ray, using the ray's frame for animated solids.
func (sc *Scene) IntersectSolidGeoms(r fluid.Ray) fluid.Intersection {
	best := fluid.Intersection{}
	bestDist := 0.0
	for id, s := range sc.solids {
		off := s.offset(r.Frame)
		local := fluid.Ray{Origin: r3.Sub(r.Origin, off), Dir: r.Dir, Frame: r.Frame}
		hit := s.geom.Intersect(local)
		if !hit.Hit {
			continue
		}
		hit.Point = r3.Add(hit.Point, off)
		hit.GeomID = id
		dist := r3.Norm(r3.Sub(hit.Point, r.Origin))
		if !best.Hit || dist < bestDist {
			best = hit
			bestDist = dist
		}
	}
	return best
}

// GetSolidLevelSet returns the solid SDF for the most recently built
// frame.
func (sc *Scene) GetSolidLevelSet() *fluid.LevelSet {
	return sc.solidLS
}

// GetLiquidLevelSet returns the SDF of the initial liquid volumes.
func (sc *Scene) GetLiquidLevelSet() *fluid.LevelSet {
	return sc.liquidLS
}

// GetExternalForces returns the accelerations applied to every particle.
func (sc *Scene) GetExternalForces() []r3.Vec {
	return sc.forces
}

// BuildPermaSolidGeomLevelSet builds the SDF of the static solids. The
// per-frame builder reuses it when nothing moves.
func (sc *Scene) BuildPermaSolidGeomLevelSet() {
	sc.permaLS = sc.buildSolidLevelSet(0, false)
	sc.solidLS = sc.permaLS
}

// BuildSolidGeomLevelSet rebuilds the solid SDF for a frame. A no-op
// unless some solid is animated.
func (sc *Scene) BuildSolidGeomLevelSet(frame int) {
	if !sc.hasMoving {
		sc.solidLS = sc.permaLS
		return
	}
	sc.solidLS = sc.buildSolidLevelSet(frame, true)
}

// buildSolidLevelSet samples the union SDF of the solids at every cell
// center. Values are stored as normalized distances.
func (sc *Scene) buildSolidLevelSet(frame int, includeMoving bool) *fluid.LevelSet {
	ls := fluid.NewLevelSet(sc.x, sc.y, sc.z)
	far := float64(sc.x+sc.y+sc.z) / sc.maxd
	for k := 0; k < sc.z; k++ {
		for j := 0; j < sc.y; j++ {
			for i := 0; i < sc.x; i++ {
				center := r3.Vec{X: float64(i) + 0.5, Y: float64(j) + 0.5, Z: float64(k) + 0.5}
				d := far
				for _, s := range sc.solids {
					if s.moving() && !includeMoving {
						continue
					}
					if sd := s.geom.SignedDistance(r3.Sub(center, s.offset(frame))); sd < d*sc.maxd {
						d = sd / sc.maxd
					}
				}
				ls.SetCellValue(i, j, k, d)
			}
		}
	}
	return ls
}

// buildLiquidLevelSet samples the union SDF of the initial liquid
// volumes.
func (sc *Scene) buildLiquidLevelSet() *fluid.LevelSet {
	ls := fluid.NewLevelSet(sc.x, sc.y, sc.z)
	far := float64(sc.x+sc.y+sc.z) / sc.maxd
	for k := 0; k < sc.z; k++ {
		for j := 0; j < sc.y; j++ {
			for i := 0; i < sc.x; i++ {
				center := r3.Vec{X: float64(i) + 0.5, Y: float64(j) + 0.5, Z: float64(k) + 0.5}
				d := far
				for _, g := range sc.liquids {
					if sd := g.SignedDistance(center); sd < d*sc.maxd {
						d = sd / sc.maxd
					}
				}
				ls.SetCellValue(i, j, k, d)
			}
		}
	}
	return ls
}

// GenerateParticles emits the particles for a frame and returns the
// extended slice. Frame zero seeds the liquid volumes and the solid
// surface markers; later frames drive emitters into cells that are still
// empty.
func (sc *Scene) GenerateParticles(particles []*fluid.Particle, x, y, z int, density float64, pgrid *fluid.ParticleGrid, frame int) []*fluid.Particle {
	if frame == 0 {
		particles = sc.seedLiquids(particles, density)
		particles = sc.seedSolidMarkers(particles)
		return particles
	}
	return sc.runEmitters(particles, density, pgrid, frame)
}

// seedLiquids lattice-fills every liquid volume at the configured
// particle spacing, skipping space occupied by solids and the wall
// margin.
func (sc *Scene) seedLiquids(particles []*fluid.Particle, density float64) []*fluid.Particle {
	w := density / sc.maxd
	wall := 1.0 / sc.maxd
	steps := int(1.0/w) + 1
	for i := 0; i < steps; i++ {
		for j := 0; j < steps; j++ {
			for k := 0; k < steps; k++ {
				p := r3.Vec{
					X: (float64(i) + 0.5) * w,
					Y: (float64(j) + 0.5) * w,
					Z: (float64(k) + 0.5) * w,
				}
				if p.X < wall || p.X > 1-wall || p.Y < wall || p.Y > 1-wall || p.Z < wall || p.Z > 1-wall {
					continue
				}
				gp := r3.Scale(sc.maxd, p)
				if gp.X >= float64(sc.x) || gp.Y >= float64(sc.y) || gp.Z >= float64(sc.z) {
					continue
				}
				if !sc.insideLiquid(gp) {
					continue
				}
				if inside, _ := sc.CheckPointInsideSolidGeom(gp, 0); inside {
					continue
				}
				particles = append(particles, &fluid.Particle{
					P:    p,
					Type: fluid.ParticleFluid,
					Mass: 1,
				})
			}
		}
	}
	return particles
}

func (sc *Scene) insideLiquid(gp r3.Vec) bool {
	for _, g := range sc.liquids {
		if g.Contains(gp) {
			return true
		}
	}
	return false
}

// seedSolidMarkers places one static marker per cell in a thin shell just
// inside each solid surface, with the outward SDF gradient as its normal.
// The markers drive the grid-scale repulsion during advection.
func (sc *Scene) seedSolidMarkers(particles []*fluid.Particle) []*fluid.Particle {
	h := 1.0 / sc.maxd
	shell := 1.5 * h
	for k := 0; k < sc.z; k++ {
		for j := 0; j < sc.y; j++ {
			for i := 0; i < sc.x; i++ {
				d := sc.solidLS.CellValue(i, j, k)
				if d >= 0 || d < -shell {
					continue
				}
				p := r3.Vec{
					X: (float64(i) + 0.5) * h,
					Y: (float64(j) + 0.5) * h,
					Z: (float64(k) + 0.5) * h,
				}
				g := sc.solidLS.Gradient(p)
				normal := r3.Vec{}
				if r3.Norm(g) > 1e-12 {
					normal = r3.Unit(g)
				}
				particles = append(particles, &fluid.Particle{
					P:    p,
					N:    normal,
					Type: fluid.ParticleSolid,
					Mass: 1,
				})
			}
		}
	}
	return particles
}

// runEmitters lattice-fills each active emitter region, emitting only
// into cells that currently hold no fluid particles.
func (sc *Scene) runEmitters(particles []*fluid.Particle, density float64, pgrid *fluid.ParticleGrid, frame int) []*fluid.Particle {
	w := density / sc.maxd
	wall := 1.0 / sc.maxd
	for _, e := range sc.emitters {
		if !e.active(frame) {
			continue
		}
		lo, hi := e.Geom.Bounds()
		i0 := int(lo.X / (w * sc.maxd))
		j0 := int(lo.Y / (w * sc.maxd))
		k0 := int(lo.Z / (w * sc.maxd))
		i1 := int(hi.X/(w*sc.maxd)) + 1
		j1 := int(hi.Y/(w*sc.maxd)) + 1
		k1 := int(hi.Z/(w*sc.maxd)) + 1
		for i := i0; i <= i1; i++ {
			for j := j0; j <= j1; j++ {
				for k := k0; k <= k1; k++ {
					p := r3.Vec{
						X: (float64(i) + 0.5) * w,
						Y: (float64(j) + 0.5) * w,
						Z: (float64(k) + 0.5) * w,
					}
					if p.X < wall || p.X > 1-wall || p.Y < wall || p.Y > 1-wall || p.Z < wall || p.Z > 1-wall {
						continue
					}
					gp := r3.Scale(sc.maxd, p)
					if !e.Geom.Contains(gp) {
						continue
					}
					if inside, _ := sc.CheckPointInsideSolidGeom(gp, frame); inside {
						continue
					}
					ci, cj, ck := pgrid.CellOf(p)
					occupied := false
					for _, n := range pgrid.CellParticles(ci, cj, ck) {
						if particles[n].Type == fluid.ParticleFluid {
							occupied = true
							break
						}
					}
					if occupied {
						continue
					}
					particles = append(particles, &fluid.Particle{
						P:    p,
						U:    e.Velocity,
						UT:   e.Velocity,
						PT:   p,
						Type: fluid.ParticleFluid,
						Mass: 1,
					})
				}
			}
		}
	}
	return particles
}

// ExportParticles writes the frame's particle state in the requested
// formats.
func (sc *Scene) ExportParticles(particles []*fluid.Particle, maxd float64, frame int, saveCSV, saveOBJ bool) error {
	if saveCSV {
		if err := export.WriteCSV(sc.outputDir, frame, particles, maxd); err != nil {
			return err
		}
	}
	if saveOBJ {
		if err := export.WriteOBJ(sc.outputDir, frame, particles, maxd); err != nil {
			return err
		}
	}
	return nil
}

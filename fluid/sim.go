package fluid

import (
	"log/slog"
	"math/rand"
	"time"

	"gonum.org/v1/gonum/spatial/r3"
)

// Options fixes a simulation's configuration at construction.
type Options struct {
	X, Y, Z  int
	Density  float64
	Stepsize float64
	Subcell  bool

	// PICFLIPRatio is the FLIP weight in the velocity blend; 0 is pure
	// PIC, 1 pure FLIP. Zero value defaults to 0.95.
	PICFLIPRatio float64

	// DensityThreshold is the normalized density below which stray
	// particles in air cells are culled. Zero value defaults to 0.04.
	DensityThreshold float64

	// Seed drives the resampler jitter.
	Seed int64

	Verbose bool
}

// StepStats summarizes one simulation step.
type StepStats struct {
	Frame          int
	Particles      int
	FluidParticles int
	FluidCells     int
	PCGIterations  int
	PCGResidual    float64
	MaxSpeed       float64
	Duration       time.Duration
}

// FlipSim owns the per-step pipeline: particle/grid transfers, the
// pressure projection, velocity extrapolation, the PIC/FLIP blend,
// advection, solid constraints, and resampling.
type FlipSim struct {
	// OnPhase, when set, is called with a phase name as each pipeline
	// phase starts. Wired to a telemetry collector by the caller.
	OnPhase func(name string)

	x, y, z int
	maxd    float64

	density          float64
	stepsize         float64
	picflipRatio     float64
	densityThreshold float64
	verbose          bool

	pgrid     *ParticleGrid
	mgrid     *MACGrid
	mgridPrev *MACGrid
	solver    *PressureSolver

	particles  []*Particle
	scene      SceneQuery
	maxDensity float64
	frame      int
	rng        *rand.Rand
}

// NewFlipSim creates a simulator over the given scene. Call Init before
// the first Step.
func NewFlipSim(o Options, scene SceneQuery) *FlipSim {
	if o.PICFLIPRatio == 0 {
		o.PICFLIPRatio = 0.95
	}
	if o.DensityThreshold == 0 {
		o.DensityThreshold = 0.04
	}
	m := NewMACGrid(o.X, o.Y, o.Z)
	return &FlipSim{
		x:                o.X,
		y:                o.Y,
		z:                o.Z,
		maxd:             m.Maxd(),
		density:          o.Density,
		stepsize:         o.Stepsize,
		picflipRatio:     o.PICFLIPRatio,
		densityThreshold: o.DensityThreshold,
		verbose:          o.Verbose,
		pgrid:            NewParticleGrid(o.X, o.Y, o.Z),
		mgrid:            m,
		mgridPrev:        NewMACGrid(o.X, o.Y, o.Z),
		solver:           NewPressureSolver(o.X, o.Y, o.Z, o.Subcell),
		scene:            scene,
		rng:              rand.New(rand.NewSource(o.Seed)),
	}
}

// Particles returns the live particle slice. Valid between steps only.
func (s *FlipSim) Particles() []*Particle {
	return s.particles
}

// Grid returns the MAC grid. Valid between steps only.
func (s *FlipSim) Grid() *MACGrid {
	return s.mgrid
}

// Frame returns the index of the last completed step.
func (s *FlipSim) Frame() int {
	return s.frame
}

// Dimensions returns the logical grid resolution.
func (s *FlipSim) Dimensions() (x, y, z int) {
	return s.x, s.y, s.z
}

// IsCellFluid reports whether a cell is inside the scene's initial liquid
// volume.
func (s *FlipSim) IsCellFluid(i, j, k int) bool {
	return s.scene.GetLiquidLevelSet().CellValue(i, j, k) < 0
}

func (s *FlipSim) phase(name string) {
	if s.OnPhase != nil {
		s.OnPhase(name)
	}
}

// Init builds the static solid level set, calibrates the reference
// density from a filled block at the configured particle spacing, then
// seeds and indexes the scene's initial particles.
func (s *FlipSim) Init() {
	s.scene.BuildPermaSolidGeomLevelSet()
	s.calibrateMaxDensity()

	s.particles = s.scene.GenerateParticles(s.particles, s.x, s.y, s.z, s.density, s.pgrid, 0)
	s.pgrid.Sort(s.particles)
	s.pgrid.MarkCellTypes(s.particles, s.mgrid.A, s.scene.GetSolidLevelSet())

	if s.verbose {
		slog.Info("sim initialized",
			"dimensions", []int{s.x, s.y, s.z},
			"particles", len(s.particles),
			"max_density", s.maxDensity)
	}
}

// calibrateMaxDensity fills a 10x10x10 block at the reference spacing,
// measures the resulting densities with the same kernel ComputeDensity
// uses, and records the maximum as the normalization constant.
func (s *FlipSim) calibrateMaxDensity() {
	h := s.density / s.maxd
	temp := make([]*Particle, 0, 1000)
	for i := 0; i < 10; i++ {
		for j := 0; j < 10; j++ {
			for k := 0; k < 10; k++ {
				temp = append(temp, &Particle{
					P:    r3.Vec{X: (float64(i) + 0.5) * h, Y: (float64(j) + 0.5) * h, Z: (float64(k) + 0.5) * h},
					Type: ParticleFluid,
					Mass: 1,
				})
			}
		}
	}
	s.pgrid.Sort(temp)
	saved := s.particles
	s.particles = temp
	s.maxDensity = 1
	s.ComputeDensity()
	peak := 0.0
	for _, p := range temp {
		if p.Density > peak {
			peak = p.Density
		}
	}
	s.maxDensity = peak
	s.particles = saved
	s.pgrid.Sort(s.particles)
}

// Step advances the simulation by one frame and optionally exports the
// resulting particle state.
func (s *FlipSim) Step(saveCSV, saveOBJ bool) (StepStats, error) {
	start := time.Now()
	s.frame++

	s.phase("emit")
	s.particles = s.scene.GenerateParticles(s.particles, s.x, s.y, s.z, s.density, s.pgrid, s.frame)
	s.scene.BuildSolidGeomLevelSet(s.frame)

	s.phase("unstick")
	s.adjustParticlesStuckInSolids()
	s.storeTempParticleVelocities()

	s.phase("sort")
	s.pgrid.Sort(s.particles)

	s.phase("density")
	s.ComputeDensity()

	s.phase("forces")
	s.applyExternalForces()

	s.phase("splat")
	SplatParticlesToMACGrid(s.pgrid, s.particles, s.mgrid)

	s.phase("mark")
	s.pgrid.MarkCellTypes(s.particles, s.mgrid.A, s.scene.GetSolidLevelSet())
	s.storePreviousGrid()
	s.enforceBoundaryVelocity(s.mgrid)

	s.phase("project")
	s.project()
	s.enforceBoundaryVelocity(s.mgrid)

	s.phase("extrapolate")
	s.extrapolateVelocity()
	s.subtractPreviousGrid()

	s.phase("picflip")
	s.solvePicFlip()

	s.phase("advect")
	s.advectParticles()

	s.phase("constrain")
	s.checkParticleSolidConstraints()
	s.storeTempParticleVelocities()

	s.phase("resample")
	s.resampleParticles()
	s.checkParticleSolidConstraints()

	var err error
	if saveCSV || saveOBJ {
		s.phase("export")
		err = s.scene.ExportParticles(s.particles, s.maxd, s.frame, saveCSV, saveOBJ)
	}

	stats := s.collectStats(start)
	if s.verbose {
		slog.Info("step",
			"frame", stats.Frame,
			"particles", stats.Particles,
			"fluid_cells", stats.FluidCells,
			"pcg_iterations", stats.PCGIterations,
			"pcg_residual", stats.PCGResidual,
			"max_speed", stats.MaxSpeed,
			"duration", stats.Duration)
	}
	return stats, err
}

func (s *FlipSim) collectStats(start time.Time) StepStats {
	fluidCount := 0
	maxSpeed := 0.0
	for _, p := range s.particles {
		if p.Type != ParticleFluid {
			continue
		}
		fluidCount++
		if v := r3.Norm(p.U); v > maxSpeed {
			maxSpeed = v
		}
	}
	return StepStats{
		Frame:          s.frame,
		Particles:      len(s.particles),
		FluidParticles: fluidCount,
		FluidCells:     s.mgrid.FluidCellCount(),
		PCGIterations:  s.solver.Iterations,
		PCGResidual:    s.solver.Residual,
		MaxSpeed:       maxSpeed,
		Duration:       time.Since(start),
	}
}

// storeTempParticleVelocities snapshots position and velocity into the
// particle scratch slots.
func (s *FlipSim) storeTempParticleVelocities() {
	parallelFor(len(s.particles), func(start, end int) {
		for n := start; n < end; n++ {
			p := s.particles[n]
			p.PT = p.P
			p.UT = p.U
		}
	})
}

// adjustParticlesStuckInSolids projects fluid particles that ended up
// inside a solid back to the surface via the solid level set, then
// ray-casts from the projected point toward the original position for a
// precise exit and places the particle just past it.
func (s *FlipSim) adjustParticlesStuckInSolids() {
	maxd := s.maxd
	n := len(s.particles)
	inSolid := make([]bool, n)
	parallelFor(n, func(start, end int) {
		for i := start; i < end; i++ {
			p := s.particles[i]
			if p.Type != ParticleFluid {
				continue
			}
			if inside, _ := s.scene.CheckPointInsideSolidGeom(r3.Scale(maxd, p.P), s.frame); inside {
				inSolid[i] = true
			}
		}
	})

	var stuck []*Particle
	for i := 0; i < n; i++ {
		if inSolid[i] {
			s.particles[i].PT = s.particles[i].P
			stuck = append(stuck, s.particles[i])
		}
	}
	if len(stuck) == 0 {
		return
	}

	s.scene.GetSolidLevelSet().ProjectPointsToSurface(stuck, maxd)
	for _, p := range stuck {
		dir := r3.Unit(r3.Sub(p.P, p.PT))
		if isNaNVec(dir) {
			continue
		}
		d := r3.Norm(r3.Sub(p.P, p.PT))
		ray := Ray{Origin: r3.Scale(maxd, p.PT), Dir: dir, Frame: s.frame}
		hit := s.scene.IntersectSolidGeoms(ray)
		nearest := r3.Norm(r3.Sub(ray.Origin, hit.Point))
		p.P = r3.Scale(1.0/maxd, r3.Add(ray.Origin, r3.Scale(1.05*nearest, ray.Dir)))
		p.U = r3.Scale(d, dir)
	}
}

// applyExternalForces integrates the scene's accelerations over the step.
func (s *FlipSim) applyExternalForces() {
	forces := s.scene.GetExternalForces()
	parallelFor(len(s.particles), func(start, end int) {
		for n := start; n < end; n++ {
			p := s.particles[n]
			for _, f := range forces {
				p.U = r3.Add(p.U, r3.Scale(s.stepsize, f))
			}
		}
	})
}

// ComputeDensity stores the normalized smoothed neighborhood density on
// every fluid particle; solid markers get density one.
func (s *FlipSim) ComputeDensity() {
	re := 4.0 * s.density / s.maxd
	particles := s.particles
	parallelFor(len(particles), func(start, end int) {
		var scratch []int
		for n := start; n < end; n++ {
			p := particles[n]
			if p.Type == ParticleSolid {
				p.Density = 1
				continue
			}
			ci, cj, ck := s.pgrid.CellOf(p.P)
			scratch = s.pgrid.CellNeighborsInto(scratch[:0], ci, cj, ck, 1)
			weight := 0.0
			for _, m := range scratch {
				np := particles[m]
				weight += np.Mass * SmoothKernel(sqrDist(np.P, p.P), re)
			}
			p.Density = weight / s.maxDensity
		}
	})
}

// storePreviousGrid snapshots the face fields before projection.
func (s *FlipSim) storePreviousGrid() {
	s.mgridPrev.CopyVelocityFrom(s.mgrid)
}

// subtractPreviousGrid turns the snapshot into the per-step velocity
// delta: prev <- current - prev.
func (s *FlipSim) subtractPreviousGrid() {
	sub := func(cur, prev *Grid[float64]) {
		fx, fy, fz := cur.Dims()
		parallelFor(fx, func(start, end int) {
			for i := start; i < end; i++ {
				for j := 0; j < fy; j++ {
					for k := 0; k < fz; k++ {
						prev.Set(i, j, k, cur.At(i, j, k)-prev.At(i, j, k))
					}
				}
			}
		})
	}
	sub(s.mgrid.UX, s.mgridPrev.UX)
	sub(s.mgrid.UY, s.mgridPrev.UY)
	sub(s.mgrid.UZ, s.mgridPrev.UZ)
}

// enforceBoundaryVelocity zeroes the normal velocity component on the
// domain boundary and on faces touching a solid cell.
func (s *FlipSim) enforceBoundaryVelocity(m *MACGrid) {
	x, y, z := m.X, m.Y, m.Z
	parallelFor(x+1, func(start, end int) {
		for i := start; i < end; i++ {
			for j := 0; j < y; j++ {
				for k := 0; k < z; k++ {
					if i == 0 || i == x {
						m.UX.Set(i, j, k, 0)
						continue
					}
					if m.A.At(i-1, j, k) == CellSolid || m.A.At(i, j, k) == CellSolid {
						m.UX.Set(i, j, k, 0)
					}
				}
			}
		}
	})
	parallelFor(x, func(start, end int) {
		for i := start; i < end; i++ {
			for j := 0; j < y+1; j++ {
				for k := 0; k < z; k++ {
					if j == 0 || j == y {
						m.UY.Set(i, j, k, 0)
						continue
					}
					if m.A.At(i, j-1, k) == CellSolid || m.A.At(i, j, k) == CellSolid {
						m.UY.Set(i, j, k, 0)
					}
				}
			}
		}
	})
	parallelFor(x, func(start, end int) {
		for i := start; i < end; i++ {
			for j := 0; j < y; j++ {
				for k := 0; k < z+1; k++ {
					if k == 0 || k == z {
						m.UZ.Set(i, j, k, 0)
						continue
					}
					if m.A.At(i, j, k-1) == CellSolid || m.A.At(i, j, k) == CellSolid {
						m.UZ.Set(i, j, k, 0)
					}
				}
			}
		}
	})
}

// project measures divergence, rebuilds the liquid level set, solves for
// pressure, and subtracts the pressure gradient from the faces.
func (s *FlipSim) project() {
	h := 1.0 / s.maxd
	m := s.mgrid
	parallelFor(s.x, func(start, end int) {
		for i := start; i < end; i++ {
			for j := 0; j < s.y; j++ {
				for k := 0; k < s.z; k++ {
					div := (m.UX.At(i+1, j, k) - m.UX.At(i, j, k) +
						m.UY.At(i, j+1, k) - m.UY.At(i, j, k) +
						m.UZ.At(i, j, k+1) - m.UZ.At(i, j, k)) / h
					m.D.Set(i, j, k, div)
				}
			}
		}
	})

	s.pgrid.BuildSDF(m, s.particles, s.density)
	s.solver.Solve(m)
	s.subtractPressureGradient()
}

// subtractPressureGradient applies u -= grad(p)/h per face, with the
// ghost-fluid adjustment where the liquid level set changes sign across
// the face. The ghosted front value clamps its denominator at 1e-3, the
// ghosted back value at 1e-6. The clamped value is the inside level-set
// value, which is negative whenever the sign changes, so neither clamp
// alters it.
func (s *FlipSim) subtractPressureGradient() {
	m := s.mgrid
	subcell := s.solver.subcell
	h := 1.0 / s.maxd

	ghost := func(pFront, pBack, lFront, lBack float64) (pf, pb float64) {
		pf, pb = pFront, pBack
		if subcell && lFront*lBack < 0 {
			if lFront >= 0 {
				pf = lFront / minf(1e-3, lBack) * pBack
			}
			if lBack >= 0 {
				pb = lBack / minf(1e-6, lFront) * pFront
			}
		}
		return pf, pb
	}

	parallelFor(s.x+1, func(start, end int) {
		for i := start; i < end; i++ {
			if i == 0 || i == s.x {
				continue
			}
			for j := 0; j < s.y; j++ {
				for k := 0; k < s.z; k++ {
					pf, pb := ghost(m.P.At(i, j, k), m.P.At(i-1, j, k), m.L.At(i, j, k), m.L.At(i-1, j, k))
					m.UX.Set(i, j, k, m.UX.At(i, j, k)-(pf-pb)/h)
				}
			}
		}
	})
	parallelFor(s.x, func(start, end int) {
		for i := start; i < end; i++ {
			for j := 1; j < s.y; j++ {
				for k := 0; k < s.z; k++ {
					pf, pb := ghost(m.P.At(i, j, k), m.P.At(i, j-1, k), m.L.At(i, j, k), m.L.At(i, j-1, k))
					m.UY.Set(i, j, k, m.UY.At(i, j, k)-(pf-pb)/h)
				}
			}
		}
	})
	parallelFor(s.x, func(start, end int) {
		for i := start; i < end; i++ {
			for j := 0; j < s.y; j++ {
				for k := 1; k < s.z; k++ {
					pf, pb := ghost(m.P.At(i, j, k), m.P.At(i, j, k-1), m.L.At(i, j, k), m.L.At(i, j, k-1))
					m.UZ.Set(i, j, k, m.UZ.At(i, j, k)-(pf-pb)/h)
				}
			}
		}
	})
}

// solvePicFlip blends the FLIP velocity (particle velocity plus grid
// delta) with the PIC velocity (absolute grid velocity) at the configured
// ratio.
func (s *FlipSim) solvePicFlip() {
	particles := s.particles

	parallelFor(len(particles), func(start, end int) {
		for n := start; n < end; n++ {
			particles[n].T = particles[n].U
		}
	})

	// U now holds the grid delta.
	SplatMACGridToParticles(particles, s.mgridPrev)

	parallelFor(len(particles), func(start, end int) {
		for n := start; n < end; n++ {
			particles[n].T = r3.Add(particles[n].U, particles[n].T)
		}
	})

	// U now holds the PIC velocity.
	SplatMACGridToParticles(particles, s.mgrid)

	ratio := s.picflipRatio
	parallelFor(len(particles), func(start, end int) {
		for n := start; n < end; n++ {
			p := particles[n]
			p.U = r3.Add(r3.Scale(1-ratio, p.U), r3.Scale(ratio, p.T))
		}
	})
}

// advectParticles moves fluid particles through the grid velocity field,
// clamps them to the walls, and pushes them off nearby solid markers.
func (s *FlipSim) advectParticles() {
	particles := s.particles
	parallelFor(len(particles), func(start, end int) {
		for n := start; n < end; n++ {
			p := particles[n]
			if p.Type != ParticleFluid {
				continue
			}
			v := InterpolateVelocity(p.P, s.mgrid)
			p.P = r3.Add(p.P, r3.Scale(s.stepsize, v))
		}
	})

	s.pgrid.Sort(particles)

	wall := 1.0 / s.maxd
	re := 1.5 * s.density / s.maxd
	parallelFor(len(particles), func(start, end int) {
		var scratch []int
		for n := start; n < end; n++ {
			p := particles[n]
			if p.Type != ParticleFluid {
				continue
			}
			p.P = clampVec(p.P, wall, 1-wall)

			ci, cj, ck := s.pgrid.CellOf(p.P)
			scratch = s.pgrid.CellNeighborsInto(scratch[:0], ci, cj, ck, 1)
			for _, m := range scratch {
				np := particles[m]
				if np.Type != ParticleSolid {
					continue
				}
				dist := r3.Norm(r3.Sub(p.P, np.P))
				if dist >= re {
					continue
				}
				normal := np.N
				if r3.Norm(normal) < 1e-7 && dist > 0 {
					normal = r3.Unit(r3.Sub(p.P, np.P))
				}
				p.P = r3.Add(p.P, r3.Scale(re-dist, normal))
				p.U = r3.Sub(p.U, r3.Scale(r3.Dot(p.U, normal), normal))
			}
		}
	})
}

// checkParticleSolidConstraints ray-casts each fluid particle's step
// against the solid geometry, bouncing particles that would have crossed
// a surface and backing out particles that remain inside.
func (s *FlipSim) checkParticleSolidConstraints() {
	maxd := s.maxd
	particles := s.particles
	parallelFor(len(particles), func(start, end int) {
		for n := start; n < end; n++ {
			p := particles[n]
			if p.Type != ParticleFluid {
				continue
			}
			dir := r3.Unit(r3.Sub(p.P, p.PT))
			if isNaNVec(dir) {
				continue
			}
			ray := Ray{Origin: r3.Scale(maxd, p.PT), Dir: dir, Frame: s.frame}
			udir := r3.Norm(p.UT)

			hit := s.scene.IntersectSolidGeoms(ray)
			if hit.Hit {
				solidDist := r3.Norm(r3.Sub(ray.Origin, hit.Point))
				velocityDist := r3.Norm(r3.Sub(p.P, p.PT)) * maxd
				if solidDist < velocityDist {
					p.P = r3.Scale(1.0/maxd, r3.Add(ray.Origin, r3.Scale(0.90*solidDist, ray.Dir)))
					refl := r3.Sub(r3.Scale(2*r3.Dot(ray.Dir, hit.Normal), hit.Normal), dir)
					if rn := r3.Norm(refl); rn > 0 {
						p.U = r3.Scale(udir/rn, refl)
					}
				}
			}

			if inside, _ := s.scene.CheckPointInsideSolidGeom(r3.Scale(maxd, p.P), s.frame); inside {
				p.U = r3.Scale(-udir, dir)
				p.P = r3.Add(p.PT, r3.Scale(s.stepsize, p.U))
			}
		}
	})
}

package fluid

import (
	"sort"

	"gonum.org/v1/gonum/spatial/r3"
)

// Resampling keeps the fluid-particle population inside a per-cell band so
// the count stays bounded by the fluid cell count. Overfull cells cull
// their lowest-density particles; underfull interior cells are reseeded
// with jittered particles carrying the local grid velocity, which keeps
// linear momentum to within the splat kernel's accuracy. Stray particles
// thinner than the density threshold in air cells are dropped.
const (
	minParticlesPerCell = 4
	maxParticlesPerCell = 8
)

// resampleParticles runs single-threaded: it mutates the particle slice
// and its jitter must be reproducible for a fixed seed.
func (s *FlipSim) resampleParticles() {
	s.pgrid.Sort(s.particles)

	h := 1.0 / s.maxd
	wall := h
	var spawned []*Particle
	var fluidIdx []int

	for k := 0; k < s.z; k++ {
		for j := 0; j < s.y; j++ {
			for i := 0; i < s.x; i++ {
				bucket := s.pgrid.CellParticles(i, j, k)
				switch s.mgrid.A.At(i, j, k) {
				case CellAir:
					for _, n := range bucket {
						p := s.particles[n]
						if p.Type == ParticleFluid && p.Density < s.densityThreshold {
							p.Invalid = true
						}
					}

				case CellFluid:
					fluidIdx = fluidIdx[:0]
					for _, n := range bucket {
						if s.particles[n].Type == ParticleFluid {
							fluidIdx = append(fluidIdx, n)
						}
					}
					switch {
					case len(fluidIdx) > maxParticlesPerCell:
						// Cull the thinnest particles beyond the cap.
						// Stable order keeps the pass deterministic.
						sort.SliceStable(fluidIdx, func(a, b int) bool {
							return s.particles[fluidIdx[a]].Density < s.particles[fluidIdx[b]].Density
						})
						for _, n := range fluidIdx[:len(fluidIdx)-maxParticlesPerCell] {
							s.particles[n].Invalid = true
						}

					case len(fluidIdx) > 0 && len(fluidIdx) < minParticlesPerCell && s.interiorFluidCell(i, j, k):
						for c := len(fluidIdx); c < minParticlesPerCell; c++ {
							pos := r3.Vec{
								X: (float64(i) + s.rng.Float64()) * h,
								Y: (float64(j) + s.rng.Float64()) * h,
								Z: (float64(k) + s.rng.Float64()) * h,
							}
							pos = clampVec(pos, wall, 1-wall)
							np := &Particle{
								P:       pos,
								Type:    ParticleFluid,
								Mass:    1,
								Density: 1,
							}
							np.U = InterpolateVelocity(pos, s.mgrid)
							np.PT = np.P
							np.UT = np.U
							spawned = append(spawned, np)
						}
					}
				}
			}
		}
	}

	out := s.particles[:0]
	for _, p := range s.particles {
		if !p.Invalid {
			out = append(out, p)
		}
	}
	s.particles = append(out, spawned...)
	s.pgrid.Sort(s.particles)
}

// interiorFluidCell reports whether all six neighbors are fluid, keeping
// reseeding away from the free surface and from solids.
func (s *FlipSim) interiorFluidCell(i, j, k int) bool {
	if i <= 0 || i >= s.x-1 || j <= 0 || j >= s.y-1 || k <= 0 || k >= s.z-1 {
		return false
	}
	a := s.mgrid.A
	return a.At(i-1, j, k) == CellFluid && a.At(i+1, j, k) == CellFluid &&
		a.At(i, j-1, k) == CellFluid && a.At(i, j+1, k) == CellFluid &&
		a.At(i, j, k-1) == CellFluid && a.At(i, j, k+1) == CellFluid
}

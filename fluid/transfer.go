package fluid

import "gonum.org/v1/gonum/spatial/r3"

// SplatParticlesToMACGrid transfers fluid-particle momentum onto the three
// face fields. Each face gathers particles from the one-ring of buckets
// around it and takes the mass-weighted average of their velocities under
// a sharp radial kernel with one cell width of support. Faces that no
// particle reaches are set to zero. Per-face gathering keeps the transfer
// race-free and deterministic for a fixed particle order.
func SplatParticlesToMACGrid(pgrid *ParticleGrid, particles []*Particle, mgrid *MACGrid) {
	x, y, z := mgrid.X, mgrid.Y, mgrid.Z
	maxd := mgrid.Maxd()
	h := 1.0 / maxd
	re := h

	splat := func(face r3.Vec, ci, cj, ck int, component func(u r3.Vec) float64) float64 {
		sum := 0.0
		wsum := 0.0
		for _, n := range pgrid.CellNeighbors(ci, cj, ck, 1) {
			p := particles[n]
			if p.Type != ParticleFluid {
				continue
			}
			w := p.Mass * SharpKernel(sqrDist(p.P, face), re)
			sum += w * component(p.U)
			wsum += w
		}
		if wsum == 0 {
			return 0
		}
		return sum / wsum
	}

	// x faces
	parallelFor(x+1, func(start, end int) {
		for i := start; i < end; i++ {
			for j := 0; j < y; j++ {
				for k := 0; k < z; k++ {
					face := r3.Vec{X: float64(i) * h, Y: (float64(j) + 0.5) * h, Z: (float64(k) + 0.5) * h}
					v := splat(face, clampi(i, 0, x-1), j, k, func(u r3.Vec) float64 { return u.X })
					mgrid.UX.Set(i, j, k, v)
				}
			}
		}
	})
	// y faces
	parallelFor(x, func(start, end int) {
		for i := start; i < end; i++ {
			for j := 0; j < y+1; j++ {
				for k := 0; k < z; k++ {
					face := r3.Vec{X: (float64(i) + 0.5) * h, Y: float64(j) * h, Z: (float64(k) + 0.5) * h}
					v := splat(face, i, clampi(j, 0, y-1), k, func(u r3.Vec) float64 { return u.Y })
					mgrid.UY.Set(i, j, k, v)
				}
			}
		}
	})
	// z faces
	parallelFor(x, func(start, end int) {
		for i := start; i < end; i++ {
			for j := 0; j < y; j++ {
				for k := 0; k < z+1; k++ {
					face := r3.Vec{X: (float64(i) + 0.5) * h, Y: (float64(j) + 0.5) * h, Z: float64(k) * h}
					v := splat(face, i, j, clampi(k, 0, z-1), func(u r3.Vec) float64 { return u.Z })
					mgrid.UZ.Set(i, j, k, v)
				}
			}
		}
	})
}

// SplatMACGridToParticles interpolates the staggered fields at each fluid
// particle position and writes the result to the particle velocity.
func SplatMACGridToParticles(particles []*Particle, mgrid *MACGrid) {
	parallelFor(len(particles), func(start, end int) {
		for n := start; n < end; n++ {
			p := particles[n]
			if p.Type != ParticleFluid {
				continue
			}
			p.U = InterpolateVelocity(p.P, mgrid)
		}
	})
}

// InterpolateVelocity trilinearly interpolates the three staggered velocity
// components at a normalized position.
func InterpolateVelocity(p r3.Vec, mgrid *MACGrid) r3.Vec {
	maxd := mgrid.Maxd()
	gx := p.X * maxd
	gy := p.Y * maxd
	gz := p.Z * maxd
	return r3.Vec{
		X: triSample(mgrid.UX, gx, gy-0.5, gz-0.5),
		Y: triSample(mgrid.UY, gx-0.5, gy, gz-0.5),
		Z: triSample(mgrid.UZ, gx-0.5, gy-0.5, gz),
	}
}

package fluid

import "gonum.org/v1/gonum/spatial/r3"

// LevelSet is a signed-distance field sampled at cell centers of the
// simulation grid. Values are distances in normalized coordinates,
// negative inside.
type LevelSet struct {
	grid *Grid[float64]
	maxd float64
}

// NewLevelSet creates a level set at the given resolution, initialized to
// one cell width of positive distance everywhere.
func NewLevelSet(x, y, z int) *LevelSet {
	d := x
	if y > d {
		d = y
	}
	if z > d {
		d = z
	}
	return &LevelSet{
		grid: NewGrid(x, y, z, 1.0/float64(d)),
		maxd: float64(d),
	}
}

// Dims returns the level set resolution.
func (ls *LevelSet) Dims() (x, y, z int) {
	return ls.grid.Dims()
}

// CellValue returns the stored sample at a cell center, clamped at the
// domain edge.
func (ls *LevelSet) CellValue(i, j, k int) float64 {
	return ls.grid.At(i, j, k)
}

// SetCellValue stores a sample at a cell center.
func (ls *LevelSet) SetCellValue(i, j, k int, v float64) {
	ls.grid.Set(i, j, k, v)
}

// Sample returns the trilinearly interpolated distance at a normalized
// position.
func (ls *LevelSet) Sample(p r3.Vec) float64 {
	return triSample(ls.grid, p.X*ls.maxd-0.5, p.Y*ls.maxd-0.5, p.Z*ls.maxd-0.5)
}

// Gradient returns the central differences of the distance at a normalized
// position, taken a quarter cell either side. The differences are not
// divided by the step, so the result points along the gradient but is
// scaled by half a cell width.
func (ls *LevelSet) Gradient(p r3.Vec) r3.Vec {
	eps := 0.25 / ls.maxd
	return r3.Vec{
		X: ls.Sample(r3.Vec{X: p.X + eps, Y: p.Y, Z: p.Z}) - ls.Sample(r3.Vec{X: p.X - eps, Y: p.Y, Z: p.Z}),
		Y: ls.Sample(r3.Vec{X: p.X, Y: p.Y + eps, Z: p.Z}) - ls.Sample(r3.Vec{X: p.X, Y: p.Y - eps, Z: p.Z}),
		Z: ls.Sample(r3.Vec{X: p.X, Y: p.Y, Z: p.Z + eps}) - ls.Sample(r3.Vec{X: p.X, Y: p.Y, Z: p.Z - eps}),
	}
}

// projectIterations bounds the surface walk; the field is only an
// approximate SDF so a fixed small count is enough.
const projectIterations = 5

// ProjectPointsToSurface moves each particle along the distance gradient
// until it sits near the zero isocontour. The previous position scratch
// slot is left untouched so callers can recover the original position.
func (ls *LevelSet) ProjectPointsToSurface(particles []*Particle, maxd float64) {
	eps := 0.05 / maxd
	parallelFor(len(particles), func(start, end int) {
		for n := start; n < end; n++ {
			p := particles[n]
			pos := p.P
			for iter := 0; iter < projectIterations; iter++ {
				d := ls.Sample(pos)
				if d > -eps && d < eps {
					break
				}
				g := ls.Gradient(pos)
				gn := r3.Norm(g)
				if gn < 1e-12 {
					break
				}
				pos = r3.Sub(pos, r3.Scale(d/gn, g))
			}
			if !isNaNVec(pos) {
				p.P = clampVec(pos, 0, 1)
			}
		}
	})
}

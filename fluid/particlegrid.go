package fluid

import "gonum.org/v1/gonum/spatial/r3"

// ParticleGrid is a bucketed spatial index over particles. Buckets hold
// particle indices into the slice passed to Sort; reads are stable between
// sorts.
type ParticleGrid struct {
	x, y, z int
	maxd    float64
	cells   [][]int
}

// NewParticleGrid creates an empty index at the simulation resolution.
func NewParticleGrid(x, y, z int) *ParticleGrid {
	d := x
	if y > d {
		d = y
	}
	if z > d {
		d = z
	}
	cells := make([][]int, x*y*z)
	for i := range cells {
		cells[i] = make([]int, 0, 8)
	}
	return &ParticleGrid{
		x:     x,
		y:     y,
		z:     z,
		maxd:  float64(d),
		cells: cells,
	}
}

// CellOf returns the clamped cell coordinates containing a normalized
// position.
func (pg *ParticleGrid) CellOf(p r3.Vec) (i, j, k int) {
	i = clampi(int(p.X*pg.maxd), 0, pg.x-1)
	j = clampi(int(p.Y*pg.maxd), 0, pg.y-1)
	k = clampi(int(p.Z*pg.maxd), 0, pg.z-1)
	return i, j, k
}

func (pg *ParticleGrid) cellIndex(i, j, k int) int {
	return i + pg.x*(j+pg.y*k)
}

// Sort rebuilds the buckets from particle positions. Bucket contents are
// ordered by particle index, so iteration order is deterministic for a
// fixed particle order.
func (pg *ParticleGrid) Sort(particles []*Particle) {
	for i := range pg.cells {
		pg.cells[i] = pg.cells[i][:0]
	}
	for n, p := range particles {
		i, j, k := pg.CellOf(p.P)
		idx := pg.cellIndex(i, j, k)
		pg.cells[idx] = append(pg.cells[idx], n)
	}
}

// CellParticles returns the bucket for one cell. The slice must not be
// retained across a Sort.
func (pg *ParticleGrid) CellParticles(i, j, k int) []int {
	if i < 0 || i >= pg.x || j < 0 || j >= pg.y || k < 0 || k >= pg.z {
		return nil
	}
	return pg.cells[pg.cellIndex(i, j, k)]
}

// CellNeighborsInto appends the indices of all particles in cells within
// ±radius of (ci,cj,ck) to dst and returns it. Neighbors are unordered
// across cells. Reuse dst across calls to avoid allocations.
func (pg *ParticleGrid) CellNeighborsInto(dst []int, ci, cj, ck, radius int) []int {
	for k := ck - radius; k <= ck+radius; k++ {
		if k < 0 || k >= pg.z {
			continue
		}
		for j := cj - radius; j <= cj+radius; j++ {
			if j < 0 || j >= pg.y {
				continue
			}
			for i := ci - radius; i <= ci+radius; i++ {
				if i < 0 || i >= pg.x {
					continue
				}
				dst = append(dst, pg.cells[pg.cellIndex(i, j, k)]...)
			}
		}
	}
	return dst
}

// CellNeighbors is the allocating convenience form of CellNeighborsInto.
func (pg *ParticleGrid) CellNeighbors(ci, cj, ck, radius int) []int {
	return pg.CellNeighborsInto(nil, ci, cj, ck, radius)
}

// MarkCellTypes classifies every cell: solid where the solid level set is
// negative at the cell center, fluid where the cell holds at least one
// fluid particle and is not solid, air otherwise. Requires Sort to have
// run on the same particle slice.
func (pg *ParticleGrid) MarkCellTypes(particles []*Particle, a *Grid[CellType], solid *LevelSet) {
	parallelFor(pg.z, func(start, end int) {
		for k := start; k < end; k++ {
			for j := 0; j < pg.y; j++ {
				for i := 0; i < pg.x; i++ {
					if solid != nil && solid.CellValue(i, j, k) < 0 {
						a.Set(i, j, k, CellSolid)
						continue
					}
					marker := CellAir
					for _, n := range pg.cells[pg.cellIndex(i, j, k)] {
						if particles[n].Type == ParticleFluid {
							marker = CellFluid
							break
						}
					}
					a.Set(i, j, k, marker)
				}
			}
		}
	})
}

// BuildSDF fills mgrid.L with the signed distance, at each cell center, to
// the nearest fluid particle minus a radius proportional to the particle
// spacing. Cells with no fluid particle in the one-ring get one cell width
// of positive distance.
func (pg *ParticleGrid) BuildSDF(mgrid *MACGrid, particles []*Particle, density float64) {
	h := 1.0 / pg.maxd
	radius := density / pg.maxd
	parallelFor(pg.z, func(start, end int) {
		var scratch []int
		for k := start; k < end; k++ {
			for j := 0; j < pg.y; j++ {
				for i := 0; i < pg.x; i++ {
					center := r3.Vec{
						X: (float64(i) + 0.5) * h,
						Y: (float64(j) + 0.5) * h,
						Z: (float64(k) + 0.5) * h,
					}
					scratch = pg.CellNeighborsInto(scratch[:0], i, j, k, 1)
					dist := h
					found := false
					for _, n := range scratch {
						p := particles[n]
						if p.Type != ParticleFluid {
							continue
						}
						d := r3.Norm(r3.Sub(p.P, center))
						if !found || d < dist {
							dist = d
							found = true
						}
					}
					if found {
						mgrid.L.Set(i, j, k, dist-radius)
					} else {
						mgrid.L.Set(i, j, k, h)
					}
				}
			}
		}
	})
}

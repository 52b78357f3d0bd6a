package fluid

import (
	"testing"

	"gonum.org/v1/gonum/spatial/r3"
)

func particleAt(x, y, z float64) *Particle {
	return &Particle{P: r3.Vec{X: x, Y: y, Z: z}, Type: ParticleFluid, Mass: 1}
}

func TestParticleGridSort(t *testing.T) {
	pg := NewParticleGrid(4, 4, 4)
	// maxd = 4, so cell width is 0.25
	particles := []*Particle{
		particleAt(0.1, 0.1, 0.1),  // cell (0,0,0)
		particleAt(0.1, 0.12, 0.1), // cell (0,0,0)
		particleAt(0.9, 0.9, 0.9),  // cell (3,3,3)
		particleAt(0.3, 0.1, 0.6),  // cell (1,0,2)
	}
	pg.Sort(particles)

	if got := pg.CellParticles(0, 0, 0); len(got) != 2 || got[0] != 0 || got[1] != 1 {
		t.Errorf("cell (0,0,0) = %v, want [0 1]", got)
	}
	if got := pg.CellParticles(3, 3, 3); len(got) != 1 || got[0] != 2 {
		t.Errorf("cell (3,3,3) = %v, want [2]", got)
	}
	if got := pg.CellParticles(1, 0, 2); len(got) != 1 || got[0] != 3 {
		t.Errorf("cell (1,0,2) = %v, want [3]", got)
	}
	if got := pg.CellParticles(2, 2, 2); len(got) != 0 {
		t.Errorf("cell (2,2,2) = %v, want empty", got)
	}
}

func TestCellNeighbors(t *testing.T) {
	pg := NewParticleGrid(4, 4, 4)
	particles := []*Particle{
		particleAt(0.1, 0.1, 0.1), // (0,0,0)
		particleAt(0.4, 0.4, 0.4), // (1,1,1)
		particleAt(0.9, 0.9, 0.9), // (3,3,3)
	}
	pg.Sort(particles)

	tests := []struct {
		name       string
		ci, cj, ck int
		radius     int
		want       int
	}{
		{"radius 1 around origin", 0, 0, 0, 1, 2},
		{"radius 1 around center misses the origin corner", 2, 2, 2, 1, 2},
		{"radius 3 covers everything", 1, 1, 1, 3, 3},
		{"radius 0 is the cell itself", 1, 1, 1, 0, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := pg.CellNeighbors(tt.ci, tt.cj, tt.ck, tt.radius)
			if len(got) != tt.want {
				t.Errorf("got %d neighbors, want %d", len(got), tt.want)
			}
		})
	}
}

func TestMarkCellTypes(t *testing.T) {
	pg := NewParticleGrid(4, 4, 4)
	particles := []*Particle{
		particleAt(0.1, 0.1, 0.1), // cell (0,0,0)
		particleAt(0.6, 0.6, 0.6), // cell (2,2,2), will be inside solid
	}
	pg.Sort(particles)

	solid := NewLevelSet(4, 4, 4)
	solid.SetCellValue(2, 2, 2, -0.1)

	a := NewGrid(4, 4, 4, CellAir)
	pg.MarkCellTypes(particles, a, solid)

	if got := a.At(0, 0, 0); got != CellFluid {
		t.Errorf("cell with fluid particle = %v, want CellFluid", got)
	}
	// Solid wins over a contained fluid particle.
	if got := a.At(2, 2, 2); got != CellSolid {
		t.Errorf("cell inside solid = %v, want CellSolid", got)
	}
	if got := a.At(1, 1, 1); got != CellAir {
		t.Errorf("empty cell = %v, want CellAir", got)
	}
}

func TestBuildSDFSign(t *testing.T) {
	const n = 8
	pg := NewParticleGrid(n, n, n)
	m := NewMACGrid(n, n, n)
	density := 0.5
	h := 1.0 / float64(n)

	// Fill the lower half with particles at half-cell spacing.
	var particles []*Particle
	w := density * h
	for x := w / 2; x < 1; x += w {
		for y := w / 2; y < 0.5; y += w {
			for z := w / 2; z < 1; z += w {
				particles = append(particles, particleAt(x, y, z))
			}
		}
	}
	pg.Sort(particles)
	pg.BuildSDF(m, particles, density)

	if got := m.L.At(4, 1, 4); got >= 0 {
		t.Errorf("cell deep in fluid has L = %v, want negative", got)
	}
	if got := m.L.At(4, 7, 4); got <= 0 {
		t.Errorf("cell far in air has L = %v, want positive", got)
	}
}

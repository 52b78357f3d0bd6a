package fluid

import "testing"

func TestGridClampedAccess(t *testing.T) {
	g := NewGrid(4, 3, 2, -1.0)
	g.Set(0, 0, 0, 5)
	g.Set(3, 2, 1, 7)

	tests := []struct {
		name    string
		i, j, k int
		want    float64
	}{
		{"in bounds origin", 0, 0, 0, 5},
		{"in bounds far corner", 3, 2, 1, 7},
		{"negative i clamps", -2, 0, 0, 5},
		{"negative all clamp", -1, -1, -1, 5},
		{"overflow clamps", 10, 10, 10, 7},
		{"mixed clamps", -1, 2, 1, g.At(0, 2, 1)},
		{"background elsewhere", 1, 1, 1, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := g.At(tt.i, tt.j, tt.k); got != tt.want {
				t.Errorf("At(%d,%d,%d) = %v, want %v", tt.i, tt.j, tt.k, got, tt.want)
			}
		})
	}
}

func TestGridSetOutOfBoundsDropped(t *testing.T) {
	g := NewGrid(2, 2, 2, 0.0)
	g.Set(-1, 0, 0, 9)
	g.Set(2, 0, 0, 9)
	g.Set(0, 0, 5, 9)
	for k := 0; k < 2; k++ {
		for j := 0; j < 2; j++ {
			for i := 0; i < 2; i++ {
				if g.At(i, j, k) != 0 {
					t.Errorf("cell (%d,%d,%d) modified by out-of-bounds write", i, j, k)
				}
			}
		}
	}
}

func TestGridCopyFromMismatchPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on dimension mismatch")
		}
	}()
	a := NewGrid(2, 2, 2, 0.0)
	b := NewGrid(3, 2, 2, 0.0)
	a.CopyFrom(b)
}

func TestMACGridDims(t *testing.T) {
	m := NewMACGrid(4, 8, 2)
	if x, y, z := m.UX.Dims(); x != 5 || y != 8 || z != 2 {
		t.Errorf("UX dims = (%d,%d,%d), want (5,8,2)", x, y, z)
	}
	if x, y, z := m.UY.Dims(); x != 4 || y != 9 || z != 2 {
		t.Errorf("UY dims = (%d,%d,%d), want (4,9,2)", x, y, z)
	}
	if x, y, z := m.UZ.Dims(); x != 4 || y != 8 || z != 3 {
		t.Errorf("UZ dims = (%d,%d,%d), want (4,8,3)", x, y, z)
	}
	if m.Maxd() != 8 {
		t.Errorf("Maxd = %v, want 8", m.Maxd())
	}
}

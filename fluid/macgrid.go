package fluid

// CellType classifies a grid cell for the pressure solve.
type CellType uint8

const (
	CellAir CellType = iota
	CellFluid
	CellSolid
)

// MACGrid is a staggered discretization over an axis-aligned box of logical
// resolution (X,Y,Z). Velocity components live on face centers, everything
// else on cell centers.
type MACGrid struct {
	X, Y, Z int

	// Face-centered velocity components.
	UX *Grid[float64] // (X+1)*Y*Z
	UY *Grid[float64] // X*(Y+1)*Z
	UZ *Grid[float64] // X*Y*(Z+1)

	P *Grid[float64]  // pressure
	D *Grid[float64]  // divergence, the pressure solve RHS
	A *Grid[CellType] // cell markers
	L *Grid[float64]  // liquid signed distance at cell centers
}

// NewMACGrid allocates all fields of a (x,y,z) staggered grid.
func NewMACGrid(x, y, z int) *MACGrid {
	return &MACGrid{
		X:  x,
		Y:  y,
		Z:  z,
		UX: NewGrid(x+1, y, z, 0.0),
		UY: NewGrid(x, y+1, z, 0.0),
		UZ: NewGrid(x, y, z+1, 0.0),
		P:  NewGrid(x, y, z, 0.0),
		D:  NewGrid(x, y, z, 0.0),
		A:  NewGrid(x, y, z, CellAir),
		L:  NewGrid(x, y, z, 0.0),
	}
}

// Maxd returns the largest logical dimension; particle positions in [0,1]
// scale by this to reach grid units, and the cell width is 1/Maxd.
func (m *MACGrid) Maxd() float64 {
	d := m.X
	if m.Y > d {
		d = m.Y
	}
	if m.Z > d {
		d = m.Z
	}
	return float64(d)
}

// CellWidth returns the width of one cell in normalized coordinates.
func (m *MACGrid) CellWidth() float64 {
	return 1.0 / m.Maxd()
}

// CopyVelocityFrom copies the three face fields from src.
func (m *MACGrid) CopyVelocityFrom(src *MACGrid) {
	m.UX.CopyFrom(src.UX)
	m.UY.CopyFrom(src.UY)
	m.UZ.CopyFrom(src.UZ)
}

// FluidCellCount returns the number of cells currently marked fluid.
func (m *MACGrid) FluidCellCount() int {
	n := 0
	for k := 0; k < m.Z; k++ {
		for j := 0; j < m.Y; j++ {
			for i := 0; i < m.X; i++ {
				if m.A.At(i, j, k) == CellFluid {
					n++
				}
			}
		}
	}
	return n
}

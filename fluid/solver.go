package fluid

import (
	"log/slog"
	"math"

	"gonum.org/v1/gonum/floats"
)

// PressureSolver runs a preconditioned conjugate-gradient Poisson solve
// over the fluid cells of a MACGrid. The matrix is the 7-point Laplacian
// with Neumann boundaries at solid faces and Dirichlet zero at air faces,
// optionally sharpened near the free surface by the ghost-fluid subcell
// rule using the liquid level set. The preconditioner is MIC(0).
//
// Scratch vectors are sized once so repeated solves do not allocate.
type PressureSolver struct {
	// Tolerance is the termination bound on the residual infinity norm.
	Tolerance float64
	// MaxIterations caps the CG loop. On hitting the cap the best-so-far
	// pressure is kept and a warning is logged.
	MaxIterations int

	// Iterations and Residual describe the most recent solve.
	Iterations int
	Residual   float64

	nx, ny, nz int
	maxd       float64
	subcell    bool

	pre []float64
	p   []float64
	r   []float64
	z   []float64
	s   []float64
	ax  []float64
	q   []float64
}

// NewPressureSolver sizes a solver for an (x,y,z) grid. subcell enables the
// ghost-fluid free-surface treatment.
func NewPressureSolver(x, y, z int, subcell bool) *PressureSolver {
	d := x
	if y > d {
		d = y
	}
	if z > d {
		d = z
	}
	n := x * y * z
	return &PressureSolver{
		Tolerance:     1e-4,
		MaxIterations: maxSolverIterations(n),
		nx:            x,
		ny:            y,
		nz:            z,
		maxd:          float64(d),
		subcell:       subcell,
		pre:           make([]float64, n),
		p:             make([]float64, n),
		r:             make([]float64, n),
		z:             make([]float64, n),
		s:             make([]float64, n),
		ax:            make([]float64, n),
		q:             make([]float64, n),
	}
}

// maxSolverIterations is the defensive iteration cap: at least 100, scaled
// with the cube root of the cell count.
func maxSolverIterations(cells int) int {
	limit := 10 * int(math.Ceil(math.Cbrt(float64(cells))))
	if limit < 100 {
		limit = 100
	}
	return limit
}

func (ps *PressureSolver) idx(i, j, k int) int {
	return i + ps.nx*(j+ps.ny*k)
}

// Solve negates the divergence in place, builds the preconditioner, runs
// PCG into mgrid.P, and reports the iteration count and final residual
// infinity norm.
func (ps *PressureSolver) Solve(m *MACGrid) (int, float64) {
	// The RHS is the negated divergence.
	parallelFor(ps.nz, func(start, end int) {
		for k := start; k < end; k++ {
			for j := 0; j < ps.ny; j++ {
				for i := 0; i < ps.nx; i++ {
					m.D.Set(i, j, k, -m.D.At(i, j, k))
				}
			}
		}
	})

	ps.buildPreconditioner(m)
	ps.Iterations, ps.Residual = ps.conjugateGradient(m)
	if ps.Residual > ps.Tolerance {
		slog.Warn("pcg did not converge",
			"iterations", ps.Iterations,
			"residual", ps.Residual,
			"tolerance", ps.Tolerance)
	}
	return ps.Iterations, ps.Residual
}

// aRef is the Laplacian off-diagonal: -1 between two in-bounds fluid
// cells, 0 otherwise.
func (ps *PressureSolver) aRef(a *Grid[CellType], i, j, k, qi, qj, qk int) float64 {
	if i < 0 || i > ps.nx-1 || j < 0 || j > ps.ny-1 || k < 0 || k > ps.nz-1 || a.At(i, j, k) != CellFluid {
		return 0
	}
	if qi < 0 || qi > ps.nx-1 || qj < 0 || qj > ps.ny-1 || qk < 0 || qk > ps.nz-1 || a.At(qi, qj, qk) != CellFluid {
		return 0
	}
	return -1
}

// preRef reads a preconditioner entry, zero outside fluid cells.
func (ps *PressureSolver) preRef(a *Grid[CellType], i, j, k int) float64 {
	if i < 0 || i > ps.nx-1 || j < 0 || j > ps.ny-1 || k < 0 || k > ps.nz-1 || a.At(i, j, k) != CellFluid {
		return 0
	}
	return ps.pre[ps.idx(i, j, k)]
}

// aDiag is the Laplacian diagonal at a fluid cell: 6 minus one per solid
// or out-of-domain neighbor, minus the Enright/Losasso ghost-fluid weight
// per air neighbor when subcell is on. The min with 1e-6 caps a positive
// center value at 1e-6 and leaves a zero or negative one unchanged, so the
// denominator keeps its sign but is not kept away from zero.
func (ps *PressureSolver) aDiag(a *Grid[CellType], l *Grid[float64], i, j, k int) float64 {
	diag := 6.0
	if a.At(i, j, k) != CellFluid {
		return diag
	}
	q := [6][3]int{{i - 1, j, k}, {i + 1, j, k}, {i, j - 1, k}, {i, j + 1, k}, {i, j, k - 1}, {i, j, k + 1}}
	for m := 0; m < 6; m++ {
		qi, qj, qk := q[m][0], q[m][1], q[m][2]
		if qi < 0 || qi > ps.nx-1 || qj < 0 || qj > ps.ny-1 || qk < 0 || qk > ps.nz-1 || a.At(qi, qj, qk) == CellSolid {
			diag -= 1.0
		} else if a.At(qi, qj, qk) == CellAir && ps.subcell {
			diag -= l.At(qi, qj, qk) / minf(1e-6, l.At(i, j, k))
		}
	}
	return diag
}

// buildPreconditioner computes the MIC(0) diagonal, lexicographic order,
// with the sigma=0.25 safety fallback to the plain diagonal.
func (ps *PressureSolver) buildPreconditioner(m *MACGrid) {
	const safety = 0.25
	for i := range ps.pre {
		ps.pre[i] = 0
	}
	for k := 0; k < ps.nz; k++ {
		for j := 0; j < ps.ny; j++ {
			for i := 0; i < ps.nx; i++ {
				if m.A.At(i, j, k) != CellFluid {
					continue
				}
				left := ps.aRef(m.A, i-1, j, k, i, j, k) * ps.preRef(m.A, i-1, j, k)
				bottom := ps.aRef(m.A, i, j-1, k, i, j, k) * ps.preRef(m.A, i, j-1, k)
				back := ps.aRef(m.A, i, j, k-1, i, j, k) * ps.preRef(m.A, i, j, k-1)
				diag := ps.aDiag(m.A, m.L, i, j, k)
				e := diag - left*left - bottom*bottom - back*back
				if diag > 0 {
					if e < safety*diag {
						e = diag
					}
					ps.pre[ps.idx(i, j, k)] = 1.0 / math.Sqrt(e)
				}
			}
		}
	}
}

// xRef reads a neighbor of the solution vector under the boundary rules:
// fluid reads the neighbor, solid reflects the center (Neumann), air under
// subcell scales the center by the ghost-fluid ratio, air otherwise is the
// Dirichlet zero. Out-of-domain neighbors clamp, which at the domain edge
// reflects the center.
func (ps *PressureSolver) xRef(m *MACGrid, x []float64, fi, fj, fk, i, j, k int) float64 {
	ci := clampi(i, 0, ps.nx-1)
	cj := clampi(j, 0, ps.ny-1)
	ck := clampi(k, 0, ps.nz-1)
	switch m.A.At(ci, cj, ck) {
	case CellFluid:
		return x[ps.idx(ci, cj, ck)]
	case CellSolid:
		return x[ps.idx(fi, fj, fk)]
	}
	if ps.subcell {
		return m.L.At(ci, cj, ck) / minf(1e-6, m.L.At(fi, fj, fk)) * x[ps.idx(fi, fj, fk)]
	}
	return 0
}

// computeAx applies the Laplacian, scaled by maxd^2, to x over fluid
// cells; non-fluid entries of the target are zeroed.
func (ps *PressureSolver) computeAx(m *MACGrid, x, target []float64) {
	hsq := 1.0 / (ps.maxd * ps.maxd)
	parallelFor(ps.nz, func(start, end int) {
		for k := start; k < end; k++ {
			for j := 0; j < ps.ny; j++ {
				for i := 0; i < ps.nx; i++ {
					n := ps.idx(i, j, k)
					if m.A.At(i, j, k) != CellFluid {
						target[n] = 0
						continue
					}
					target[n] = (6.0*x[n] -
						ps.xRef(m, x, i, j, k, i+1, j, k) -
						ps.xRef(m, x, i, j, k, i-1, j, k) -
						ps.xRef(m, x, i, j, k, i, j+1, k) -
						ps.xRef(m, x, i, j, k, i, j-1, k) -
						ps.xRef(m, x, i, j, k, i, j, k+1) -
						ps.xRef(m, x, i, j, k, i, j, k-1)) / hsq
				}
			}
		}
	})
}

// applyPreconditioner solves M z = r with the MIC(0) factors: a forward
// substitution into q, then a backward substitution into z.
func (ps *PressureSolver) applyPreconditioner(m *MACGrid, r, z []float64) {
	for i := range ps.q {
		ps.q[i] = 0
	}
	for k := 0; k < ps.nz; k++ {
		for j := 0; j < ps.ny; j++ {
			for i := 0; i < ps.nx; i++ {
				if m.A.At(i, j, k) != CellFluid {
					continue
				}
				n := ps.idx(i, j, k)
				t := r[n]
				if i > 0 && m.A.At(i-1, j, k) == CellFluid {
					t += ps.pre[ps.idx(i-1, j, k)] * ps.q[ps.idx(i-1, j, k)]
				}
				if j > 0 && m.A.At(i, j-1, k) == CellFluid {
					t += ps.pre[ps.idx(i, j-1, k)] * ps.q[ps.idx(i, j-1, k)]
				}
				if k > 0 && m.A.At(i, j, k-1) == CellFluid {
					t += ps.pre[ps.idx(i, j, k-1)] * ps.q[ps.idx(i, j, k-1)]
				}
				ps.q[n] = t * ps.pre[n]
			}
		}
	}
	for i := range z {
		z[i] = 0
	}
	for k := ps.nz - 1; k >= 0; k-- {
		for j := ps.ny - 1; j >= 0; j-- {
			for i := ps.nx - 1; i >= 0; i-- {
				if m.A.At(i, j, k) != CellFluid {
					continue
				}
				n := ps.idx(i, j, k)
				t := ps.q[n]
				if i < ps.nx-1 && m.A.At(i+1, j, k) == CellFluid {
					t += ps.pre[n] * z[ps.idx(i+1, j, k)]
				}
				if j < ps.ny-1 && m.A.At(i, j+1, k) == CellFluid {
					t += ps.pre[n] * z[ps.idx(i, j+1, k)]
				}
				if k < ps.nz-1 && m.A.At(i, j, k+1) == CellFluid {
					t += ps.pre[n] * z[ps.idx(i, j, k+1)]
				}
				z[n] = t * ps.pre[n]
			}
		}
	}
}

// conjugateGradient runs PCG on the fluid cells, warm-started from the
// pressure of the previous step, and writes the solution back to mgrid.P
// (zero outside fluid).
func (ps *PressureSolver) conjugateGradient(m *MACGrid) (int, float64) {
	fluidCells := 0
	for k := 0; k < ps.nz; k++ {
		for j := 0; j < ps.ny; j++ {
			for i := 0; i < ps.nx; i++ {
				n := ps.idx(i, j, k)
				if m.A.At(i, j, k) == CellFluid {
					fluidCells++
					ps.p[n] = m.P.At(i, j, k)
				} else {
					ps.p[n] = 0
				}
			}
		}
	}
	if fluidCells == 0 {
		ps.writeBack(m)
		return 0, 0
	}

	// r = b - A x
	ps.computeAx(m, ps.p, ps.ax)
	for k := 0; k < ps.nz; k++ {
		for j := 0; j < ps.ny; j++ {
			for i := 0; i < ps.nx; i++ {
				n := ps.idx(i, j, k)
				if m.A.At(i, j, k) == CellFluid {
					ps.r[n] = m.D.At(i, j, k) - ps.ax[n]
				} else {
					ps.r[n] = 0
				}
			}
		}
	}

	resid := floats.Norm(ps.r, math.Inf(1))
	if resid < ps.Tolerance {
		ps.writeBack(m)
		return 0, resid
	}

	ps.applyPreconditioner(m, ps.r, ps.z)
	copy(ps.s, ps.z)
	sigma := floats.Dot(ps.z, ps.r)

	iter := 0
	for ; iter < ps.MaxIterations; iter++ {
		ps.computeAx(m, ps.s, ps.ax)
		denom := floats.Dot(ps.ax, ps.s)
		if denom == 0 {
			break
		}
		alpha := sigma / denom
		floats.AddScaled(ps.p, alpha, ps.s)
		floats.AddScaled(ps.r, -alpha, ps.ax)

		resid = floats.Norm(ps.r, math.Inf(1))
		if resid < ps.Tolerance {
			iter++
			break
		}

		ps.applyPreconditioner(m, ps.r, ps.z)
		sigmaNew := floats.Dot(ps.z, ps.r)
		if sigma == 0 {
			break
		}
		beta := sigmaNew / sigma
		for n := range ps.s {
			ps.s[n] = ps.z[n] + beta*ps.s[n]
		}
		sigma = sigmaNew
	}

	ps.writeBack(m)
	return iter, resid
}

// writeBack stores the solution into mgrid.P, zero outside fluid so air
// cells read as the Dirichlet boundary in the gradient subtraction.
func (ps *PressureSolver) writeBack(m *MACGrid) {
	for k := 0; k < ps.nz; k++ {
		for j := 0; j < ps.ny; j++ {
			for i := 0; i < ps.nx; i++ {
				if m.A.At(i, j, k) == CellFluid {
					m.P.Set(i, j, k, ps.p[ps.idx(i, j, k)])
				} else {
					m.P.Set(i, j, k, 0)
				}
			}
		}
	}
}

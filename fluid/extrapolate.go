package fluid

// extrapolateVelocity pushes velocities one ring outward from the fluid:
// faces not adjacent to any fluid cell but adjacent only to solid cells or
// the domain edge take the unweighted average of their marked face
// neighbors. Reads come only from marked faces, which are never written,
// so the pass is order-independent.
func (s *FlipSim) extrapolateVelocity() {
	a := s.mgrid.A
	x, y, z := s.x, s.y, s.z

	extrapolateFace(s.mgrid.UX,
		func(i, j, k int) bool {
			return (i > 0 && a.At(i-1, j, k) == CellFluid) || (i < x && a.At(i, j, k) == CellFluid)
		},
		func(i, j, k int) bool {
			return (i <= 0 || a.At(i-1, j, k) == CellSolid) && (i >= x || a.At(i, j, k) == CellSolid)
		})
	extrapolateFace(s.mgrid.UY,
		func(i, j, k int) bool {
			return (j > 0 && a.At(i, j-1, k) == CellFluid) || (j < y && a.At(i, j, k) == CellFluid)
		},
		func(i, j, k int) bool {
			return (j <= 0 || a.At(i, j-1, k) == CellSolid) && (j >= y || a.At(i, j, k) == CellSolid)
		})
	extrapolateFace(s.mgrid.UZ,
		func(i, j, k int) bool {
			return (k > 0 && a.At(i, j, k-1) == CellFluid) || (k < z && a.At(i, j, k) == CellFluid)
		},
		func(i, j, k int) bool {
			return (k <= 0 || a.At(i, j, k-1) == CellSolid) && (k >= z || a.At(i, j, k) == CellSolid)
		})
}

func extrapolateFace(u *Grid[float64], fluidMark, wallMark func(i, j, k int) bool) {
	fx, fy, fz := u.Dims()

	mark := NewGrid(fx, fy, fz, false)
	wall := NewGrid(fx, fy, fz, false)
	parallelFor(fx, func(start, end int) {
		for i := start; i < end; i++ {
			for j := 0; j < fy; j++ {
				for k := 0; k < fz; k++ {
					mark.Set(i, j, k, fluidMark(i, j, k))
					wall.Set(i, j, k, wallMark(i, j, k))
				}
			}
		}
	})

	parallelFor(fx, func(start, end int) {
		for i := start; i < end; i++ {
			for j := 0; j < fy; j++ {
				for k := 0; k < fz; k++ {
					if mark.At(i, j, k) || !wall.At(i, j, k) {
						continue
					}
					neighbors := [6][3]int{
						{i - 1, j, k}, {i + 1, j, k},
						{i, j - 1, k}, {i, j + 1, k},
						{i, j, k - 1}, {i, j, k + 1},
					}
					sum := 0.0
					wsum := 0
					for _, q := range neighbors {
						qi, qj, qk := q[0], q[1], q[2]
						if qi < 0 || qi >= fx || qj < 0 || qj >= fy || qk < 0 || qk >= fz {
							continue
						}
						if mark.At(qi, qj, qk) {
							sum += u.At(qi, qj, qk)
							wsum++
						}
					}
					if wsum > 0 {
						u.Set(i, j, k, sum/float64(wsum))
					}
				}
			}
		}
	})
}

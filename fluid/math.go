package fluid

import "gonum.org/v1/gonum/spatial/r3"

func clampf(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func minf(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

// sqrDist returns the squared distance between two points.
func sqrDist(a, b r3.Vec) float64 {
	d := r3.Sub(a, b)
	return r3.Dot(d, d)
}

// clampVec clamps each component of v into [lo, hi].
func clampVec(v r3.Vec, lo, hi float64) r3.Vec {
	return r3.Vec{
		X: clampf(v.X, lo, hi),
		Y: clampf(v.Y, lo, hi),
		Z: clampf(v.Z, lo, hi),
	}
}

// isNaNVec reports whether any component is NaN, by self-inequality.
func isNaNVec(v r3.Vec) bool {
	return v.X != v.X || v.Y != v.Y || v.Z != v.Z
}

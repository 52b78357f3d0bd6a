package fluid

import "math"

// SharpKernel is the splat weight for particle-to-grid transfers: a radial
// falloff with a pole at the sample point, zero outside the support radius.
// d2 is the squared distance, re the support radius.
func SharpKernel(d2, re float64) float64 {
	if d2 <= 0 {
		d2 = 1e-12
	}
	w := re*re/d2 - 1.0
	if w < 0 {
		return 0
	}
	return w
}

// SmoothKernel is the density weight: a quadratic falloff over the support
// radius, zero outside.
func SmoothKernel(d2, re float64) float64 {
	w := 1.0 - d2/(re*re)
	if w < 0 {
		return 0
	}
	return w
}

// triSample trilinearly interpolates a scalar grid at a fractional cell
// coordinate. Out-of-range corners clamp to the grid edge.
func triSample(g *Grid[float64], gx, gy, gz float64) float64 {
	i := int(math.Floor(gx))
	j := int(math.Floor(gy))
	k := int(math.Floor(gz))
	fx := gx - float64(i)
	fy := gy - float64(j)
	fz := gz - float64(k)

	c00 := g.At(i, j, k)*(1-fx) + g.At(i+1, j, k)*fx
	c10 := g.At(i, j+1, k)*(1-fx) + g.At(i+1, j+1, k)*fx
	c01 := g.At(i, j, k+1)*(1-fx) + g.At(i+1, j, k+1)*fx
	c11 := g.At(i, j+1, k+1)*(1-fx) + g.At(i+1, j+1, k+1)*fx

	c0 := c00*(1-fy) + c10*fy
	c1 := c01*(1-fy) + c11*fy
	return c0*(1-fz) + c1*fz
}

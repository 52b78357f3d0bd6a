// Package scene implements the simulator's scene contract: analytic solid
// and liquid geometry, level-set builders, particle emission, and frame
// export. Geometry lives in grid units, the space rays are cast in.
package scene

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/brine/fluid"
)

// Geom is a closed shape supporting the point, distance, and ray queries
// the simulator needs. All coordinates are grid units.
type Geom interface {
	Contains(p r3.Vec) bool
	SignedDistance(p r3.Vec) float64
	Intersect(r fluid.Ray) fluid.Intersection
	Bounds() (min, max r3.Vec)
}

// Sphere is a solid ball.
type Sphere struct {
	Center r3.Vec
	Radius float64
}

// Contains reports whether p is inside the sphere.
func (s Sphere) Contains(p r3.Vec) bool {
	return r3.Norm(r3.Sub(p, s.Center)) < s.Radius
}

// SignedDistance returns the exact sphere SDF.
func (s Sphere) SignedDistance(p r3.Vec) float64 {
	return r3.Norm(r3.Sub(p, s.Center)) - s.Radius
}

// Bounds returns the axis-aligned bounding box.
func (s Sphere) Bounds() (min, max r3.Vec) {
	r := r3.Vec{X: s.Radius, Y: s.Radius, Z: s.Radius}
	return r3.Sub(s.Center, r), r3.Add(s.Center, r)
}

// Intersect returns the nearest forward intersection with the sphere
// surface.
func (s Sphere) Intersect(ray fluid.Ray) fluid.Intersection {
	oc := r3.Sub(ray.Origin, s.Center)
	b := r3.Dot(oc, ray.Dir)
	c := r3.Dot(oc, oc) - s.Radius*s.Radius
	disc := b*b - c
	if disc < 0 {
		return fluid.Intersection{}
	}
	sq := math.Sqrt(disc)
	t := -b - sq
	if t < 0 {
		t = -b + sq
	}
	if t < 0 {
		return fluid.Intersection{}
	}
	point := r3.Add(ray.Origin, r3.Scale(t, ray.Dir))
	return fluid.Intersection{
		Hit:    true,
		Point:  point,
		Normal: r3.Unit(r3.Sub(point, s.Center)),
	}
}

// Box is an axis-aligned solid box.
type Box struct {
	Min r3.Vec
	Max r3.Vec
}

// Contains reports whether p is inside the box.
func (b Box) Contains(p r3.Vec) bool {
	return p.X > b.Min.X && p.X < b.Max.X &&
		p.Y > b.Min.Y && p.Y < b.Max.Y &&
		p.Z > b.Min.Z && p.Z < b.Max.Z
}

// SignedDistance returns the exact box SDF.
func (b Box) SignedDistance(p r3.Vec) float64 {
	center := r3.Scale(0.5, r3.Add(b.Min, b.Max))
	half := r3.Scale(0.5, r3.Sub(b.Max, b.Min))
	d := r3.Sub(p, center)
	q := r3.Vec{
		X: math.Abs(d.X) - half.X,
		Y: math.Abs(d.Y) - half.Y,
		Z: math.Abs(d.Z) - half.Z,
	}
	outside := r3.Norm(r3.Vec{
		X: math.Max(q.X, 0),
		Y: math.Max(q.Y, 0),
		Z: math.Max(q.Z, 0),
	})
	inside := math.Min(math.Max(q.X, math.Max(q.Y, q.Z)), 0)
	return outside + inside
}

// Bounds returns the box itself.
func (b Box) Bounds() (min, max r3.Vec) {
	return b.Min, b.Max
}

// Intersect runs the slab test and reports the entry face with its
// outward normal, or the exit face when the origin is inside the box.
func (b Box) Intersect(ray fluid.Ray) fluid.Intersection {
	tmin := math.Inf(-1)
	tmax := math.Inf(1)
	axis := 0
	sign := 0.0
	exitAxis := 0
	exitSign := 0.0

	lo := [3]float64{b.Min.X, b.Min.Y, b.Min.Z}
	hi := [3]float64{b.Max.X, b.Max.Y, b.Max.Z}
	o := [3]float64{ray.Origin.X, ray.Origin.Y, ray.Origin.Z}
	d := [3]float64{ray.Dir.X, ray.Dir.Y, ray.Dir.Z}

	for a := 0; a < 3; a++ {
		if d[a] == 0 {
			if o[a] < lo[a] || o[a] > hi[a] {
				return fluid.Intersection{}
			}
			continue
		}
		t1 := (lo[a] - o[a]) / d[a]
		t2 := (hi[a] - o[a]) / d[a]
		sgn := -1.0
		if t1 > t2 {
			t1, t2 = t2, t1
			sgn = 1.0
		}
		if t1 > tmin {
			tmin = t1
			axis = a
			sign = sgn
		}
		if t2 < tmax {
			tmax = t2
			exitAxis = a
			exitSign = -sgn
		}
		if tmin > tmax {
			return fluid.Intersection{}
		}
	}

	t := tmin
	if t < 0 {
		t = tmax
		axis = exitAxis
		sign = exitSign
	}
	if t < 0 {
		return fluid.Intersection{}
	}

	var normal r3.Vec
	switch axis {
	case 0:
		normal = r3.Vec{X: sign}
	case 1:
		normal = r3.Vec{Y: sign}
	case 2:
		normal = r3.Vec{Z: sign}
	}
	return fluid.Intersection{
		Hit:    true,
		Point:  r3.Add(ray.Origin, r3.Scale(t, ray.Dir)),
		Normal: normal,
	}
}

package fluid

import "gonum.org/v1/gonum/spatial/r3"

// Ray is a query ray in grid units. Frame selects the scene state the ray
// is cast against.
type Ray struct {
	Origin r3.Vec
	Dir    r3.Vec
	Frame  int
}

// Intersection is the result of a ray/solid query, in grid units.
type Intersection struct {
	Hit    bool
	Point  r3.Vec
	Normal r3.Vec
	GeomID int
}

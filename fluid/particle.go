package fluid

import "gonum.org/v1/gonum/spatial/r3"

// ParticleType distinguishes fluid particles from the static solid markers
// used for collision repulsion at the grid scale.
type ParticleType uint8

const (
	ParticleFluid ParticleType = iota
	ParticleSolid
)

// Particle carries the per-particle simulation state. Positions are in
// normalized coordinates, [0,1] on each axis.
type Particle struct {
	P    r3.Vec
	U    r3.Vec
	N    r3.Vec // surface normal, solid markers only
	Mass float64
	Type ParticleType

	// Density is the smoothed neighborhood density normalized by the
	// reference density calibrated during Init.
	Density float64

	// Per-step scratch: previous position, previous velocity, and the
	// PIC/FLIP blend buffer.
	PT r3.Vec
	UT r3.Vec
	T  r3.Vec

	// Invalid marks a particle for removal by the resampler.
	Invalid bool
}

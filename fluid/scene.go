package fluid

import "gonum.org/v1/gonum/spatial/r3"

// SceneQuery is everything the simulator needs from the scene: solid
// geometry queries, level sets, external forces, particle emission, and
// frame export. Point and ray queries are in grid units; level-set values
// are normalized distances. Implementations are expected to be immutable
// apart from the level-set rebuild hooks.
type SceneQuery interface {
	// CheckPointInsideSolidGeom reports whether a grid-unit point is
	// inside any solid geom at the given frame, and which one.
	CheckPointInsideSolidGeom(p r3.Vec, frame int) (bool, int)

	// IntersectSolidGeoms returns the nearest solid intersection along
	// the ray, if any.
	IntersectSolidGeoms(r Ray) Intersection

	// GetSolidLevelSet returns the solid signed-distance field for the
	// frame most recently passed to BuildSolidGeomLevelSet.
	GetSolidLevelSet() *LevelSet

	// GetLiquidLevelSet returns the signed-distance field of the initial
	// liquid regions.
	GetLiquidLevelSet() *LevelSet

	// GetExternalForces returns the per-second accelerations applied to
	// every particle.
	GetExternalForces() []r3.Vec

	// GenerateParticles appends the particles the scene emits for the
	// given frame and returns the extended slice. Frame zero seeds the
	// initial liquid volumes and solid surface markers; later frames
	// drive emitters.
	GenerateParticles(particles []*Particle, x, y, z int, density float64, pgrid *ParticleGrid, frame int) []*Particle

	// BuildPermaSolidGeomLevelSet rebuilds the level set of the static
	// solid geometry. Called once during Init.
	BuildPermaSolidGeomLevelSet()

	// BuildSolidGeomLevelSet rebuilds the solid level set for a frame.
	// A no-op when nothing moves.
	BuildSolidGeomLevelSet(frame int)

	// ExportParticles writes the particle state for a frame in the
	// requested formats.
	ExportParticles(particles []*Particle, maxd float64, frame int, saveCSV, saveOBJ bool) error
}

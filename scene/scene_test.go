package scene

import (
	"testing"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/brine/config"
	"github.com/pthm-cable/brine/fluid"
)

func TestGenerateParticlesFillsLiquid(t *testing.T) {
	const n = 16
	sc := NewBuilder(n, n, n, 0.5).
		AddLiquid(Box{Min: r3.Vec{X: 1, Y: 1, Z: 1}, Max: r3.Vec{X: 8, Y: 8, Z: 8}}).
		Build()
	sc.BuildPermaSolidGeomLevelSet()

	pgrid := fluid.NewParticleGrid(n, n, n)
	particles := sc.GenerateParticles(nil, n, n, n, 0.5, pgrid, 0)

	if len(particles) == 0 {
		t.Fatal("no particles generated")
	}
	for i, p := range particles {
		if p.Type != fluid.ParticleFluid {
			t.Fatalf("particle %d type = %v, want fluid", i, p.Type)
		}
		gp := r3.Scale(float64(n), p.P)
		if gp.X < 1 || gp.X > 8 || gp.Y < 1 || gp.Y > 8 || gp.Z < 1 || gp.Z > 8 {
			t.Fatalf("particle %d at %v is outside the liquid region", i, gp)
		}
	}

	// density 0.5 means two particles per cell per axis; the 7^3-cell
	// region should hold close to 7*7*7*8 particles.
	want := 7 * 7 * 7 * 8
	if len(particles) < want*8/10 || len(particles) > want {
		t.Errorf("generated %d particles, want close to %d", len(particles), want)
	}
}

func TestGenerateParticlesSkipsSolidsAndAddsMarkers(t *testing.T) {
	const n = 16
	solid := Sphere{Center: r3.Vec{X: 8, Y: 8, Z: 8}, Radius: 3}
	sc := NewBuilder(n, n, n, 0.5).
		AddLiquid(Box{Min: r3.Vec{X: 1, Y: 1, Z: 1}, Max: r3.Vec{X: 15, Y: 15, Z: 15}}).
		AddSolid(solid, r3.Vec{}).
		Build()
	sc.BuildPermaSolidGeomLevelSet()

	pgrid := fluid.NewParticleGrid(n, n, n)
	particles := sc.GenerateParticles(nil, n, n, n, 0.5, pgrid, 0)

	markers := 0
	for i, p := range particles {
		gp := r3.Scale(float64(n), p.P)
		switch p.Type {
		case fluid.ParticleFluid:
			if solid.Contains(gp) {
				t.Fatalf("fluid particle %d seeded inside the solid at %v", i, gp)
			}
		case fluid.ParticleSolid:
			markers++
			if !solid.Contains(gp) {
				t.Fatalf("solid marker %d at %v is outside the solid", i, gp)
			}
			if r3.Norm(p.N) < 0.99 {
				t.Fatalf("solid marker %d has degenerate normal %v", i, p.N)
			}
			// Normals point away from the solid center.
			out := r3.Unit(r3.Sub(gp, solid.Center))
			if r3.Dot(p.N, out) < 0.5 {
				t.Fatalf("marker %d normal %v does not point outward (%v)", i, p.N, out)
			}
		}
	}
	if markers == 0 {
		t.Fatal("no solid surface markers generated")
	}
}

func TestEmitters(t *testing.T) {
	const n = 16
	vel := r3.Vec{Y: -1}
	sc := NewBuilder(n, n, n, 0.5).
		AddEmitter(Box{Min: r3.Vec{X: 6, Y: 12, Z: 6}, Max: r3.Vec{X: 10, Y: 14, Z: 10}}, 1, 2, vel).
		Build()
	sc.BuildPermaSolidGeomLevelSet()
	pgrid := fluid.NewParticleGrid(n, n, n)

	if got := sc.GenerateParticles(nil, n, n, n, 0.5, pgrid, 0); len(got) != 0 {
		t.Fatalf("frame 0 emitted %d particles, want 0 (no liquids)", len(got))
	}

	frame1 := sc.GenerateParticles(nil, n, n, n, 0.5, pgrid, 1)
	if len(frame1) == 0 {
		t.Fatal("active emitter produced no particles")
	}
	for i, p := range frame1 {
		if p.U != vel {
			t.Fatalf("emitted particle %d velocity = %v, want %v", i, p.U, vel)
		}
	}

	if got := sc.GenerateParticles(nil, n, n, n, 0.5, pgrid, 3); len(got) != 0 {
		t.Fatalf("expired emitter produced %d particles", len(got))
	}
}

func TestSolidQueriesWithMotion(t *testing.T) {
	const n = 16
	sc := NewBuilder(n, n, n, 0.5).
		AddSolid(Sphere{Center: r3.Vec{X: 4, Y: 8, Z: 8}, Radius: 2}, r3.Vec{X: 1}).
		Build()
	sc.BuildPermaSolidGeomLevelSet()

	p := r3.Vec{X: 4, Y: 8, Z: 8}
	if inside, id := sc.CheckPointInsideSolidGeom(p, 0); !inside || id != 0 {
		t.Errorf("frame 0: inside=%v id=%d, want true 0", inside, id)
	}
	// By frame 4 the sphere has moved 4 cells along +x.
	if inside, _ := sc.CheckPointInsideSolidGeom(p, 4); inside {
		t.Error("frame 4: original center still reported inside")
	}
	if inside, _ := sc.CheckPointInsideSolidGeom(r3.Vec{X: 8, Y: 8, Z: 8}, 4); !inside {
		t.Error("frame 4: moved center not reported inside")
	}

	hit := sc.IntersectSolidGeoms(fluid.Ray{Origin: r3.Vec{X: 0, Y: 8, Z: 8}, Dir: r3.Vec{X: 1}, Frame: 4})
	if !hit.Hit || hit.Point.X < 5.9 || hit.Point.X > 6.1 {
		t.Errorf("frame 4 ray hit = %+v, want x near 6", hit)
	}
}

func TestSolidLevelSetRebuild(t *testing.T) {
	const n = 16
	sc := NewBuilder(n, n, n, 0.5).
		AddSolid(Box{Min: r3.Vec{X: 0, Y: 0, Z: 0}, Max: r3.Vec{X: 16, Y: 2, Z: 16}}, r3.Vec{}).
		Build()
	sc.BuildPermaSolidGeomLevelSet()

	ls := sc.GetSolidLevelSet()
	if got := ls.CellValue(8, 0, 8); got >= 0 {
		t.Errorf("cell inside floor slab has sdf %v, want negative", got)
	}
	if got := ls.CellValue(8, 8, 8); got <= 0 {
		t.Errorf("cell above floor slab has sdf %v, want positive", got)
	}

	// Static scene: the per-frame rebuild must reuse the perma set.
	sc.BuildSolidGeomLevelSet(5)
	if sc.GetSolidLevelSet() != ls {
		t.Error("static scene rebuilt its level set")
	}
}

func TestFromConfig(t *testing.T) {
	cfg := &config.Config{}
	cfg.Sim.Dimensions = config.DimsConfig{X: 16, Y: 16, Z: 16}
	cfg.Sim.Density = 0.5
	cfg.Sim.Frames = 10
	cfg.Scene.ExternalForces = []config.VecConfig{{Y: -9.8}}
	cfg.Scene.Liquids = []config.GeomConfig{{
		Shape: "box",
		Min:   config.VecConfig{X: 1, Y: 1, Z: 1},
		Max:   config.VecConfig{X: 8, Y: 8, Z: 8},
	}}
	cfg.Scene.Solids = []config.GeomConfig{{
		Shape:  "sphere",
		Center: config.VecConfig{X: 12, Y: 4, Z: 12},
		Radius: 2,
	}}

	sc, err := FromConfig(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if len(sc.GetExternalForces()) != 1 {
		t.Errorf("forces = %d, want 1", len(sc.GetExternalForces()))
	}
	if inside, _ := sc.CheckPointInsideSolidGeom(r3.Vec{X: 12, Y: 4, Z: 12}, 0); !inside {
		t.Error("configured solid not queryable")
	}

	if _, err := FromConfig(&config.Config{
		Sim:   config.SimConfig{Dimensions: config.DimsConfig{X: 4, Y: 4, Z: 4}, Density: 0.5},
		Scene: config.SceneConfig{Liquids: []config.GeomConfig{{Shape: "torus"}}},
	}); err == nil {
		t.Error("unknown shape accepted")
	}
}

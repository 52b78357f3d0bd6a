package export

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/brine/fluid"
)

func testParticles() []*fluid.Particle {
	return []*fluid.Particle{
		{P: r3.Vec{X: 0.25, Y: 0.5, Z: 0.75}, U: r3.Vec{X: 1, Y: -2, Z: 0}, Density: 0.9, Type: fluid.ParticleFluid},
		{P: r3.Vec{X: 0.5, Y: 0.5, Z: 0.5}, Type: fluid.ParticleSolid},
	}
}

func TestWriteCSV(t *testing.T) {
	dir := t.TempDir()
	if err := WriteCSV(dir, 7, testParticles(), 8); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "frame_0007.csv"))
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want header + 2 records", len(lines))
	}
	if !strings.HasPrefix(lines[0], "frame,type,x,y,z") {
		t.Errorf("unexpected header %q", lines[0])
	}
	// Positions are exported in grid units.
	if !strings.Contains(lines[1], "7,fluid,2,4,6") {
		t.Errorf("unexpected fluid record %q", lines[1])
	}
	if !strings.Contains(lines[2], "solid") {
		t.Errorf("unexpected solid record %q", lines[2])
	}
}

func TestWriteOBJ(t *testing.T) {
	dir := t.TempDir()
	if err := WriteOBJ(dir, 3, testParticles(), 8); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "frame_0003.obj"))
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	// Only fluid particles become vertices.
	if len(lines) != 1 {
		t.Fatalf("got %d lines, want 1 vertex", len(lines))
	}
	if !strings.HasPrefix(lines[0], "v 2") {
		t.Errorf("unexpected vertex line %q", lines[0])
	}
}

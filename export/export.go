// Package export writes per-frame particle state to disk: CSV records for
// analysis pipelines and vertex-only OBJ point clouds for DCC import.
package export

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gocarina/gocsv"

	"github.com/pthm-cable/brine/fluid"
)

// ParticleRecord is the flat CSV row for one particle. Positions are in
// grid units.
type ParticleRecord struct {
	Frame   int     `csv:"frame"`
	Type    string  `csv:"type"`
	X       float64 `csv:"x"`
	Y       float64 `csv:"y"`
	Z       float64 `csv:"z"`
	VX      float64 `csv:"vx"`
	VY      float64 `csv:"vy"`
	VZ      float64 `csv:"vz"`
	Density float64 `csv:"density"`
}

func typeName(t fluid.ParticleType) string {
	if t == fluid.ParticleSolid {
		return "solid"
	}
	return "fluid"
}

// WriteCSV writes frame_NNNN.csv under dir.
func WriteCSV(dir string, frame int, particles []*fluid.Particle, maxd float64) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating export directory: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("frame_%04d.csv", frame))
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()

	records := make([]ParticleRecord, 0, len(particles))
	for _, p := range particles {
		records = append(records, ParticleRecord{
			Frame:   frame,
			Type:    typeName(p.Type),
			X:       p.P.X * maxd,
			Y:       p.P.Y * maxd,
			Z:       p.P.Z * maxd,
			VX:      p.U.X,
			VY:      p.U.Y,
			VZ:      p.U.Z,
			Density: p.Density,
		})
	}
	if err := gocsv.Marshal(records, f); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// WriteOBJ writes frame_NNNN.obj under dir: one vertex per fluid
// particle, no faces.
func WriteOBJ(dir string, frame int, particles []*fluid.Particle, maxd float64) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating export directory: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("frame_%04d.obj", frame))
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for _, p := range particles {
		if p.Type != fluid.ParticleFluid {
			continue
		}
		fmt.Fprintf(w, "v %f %f %f\n", p.P.X*maxd, p.P.Y*maxd, p.P.Z*maxd)
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

package telemetry

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gocarina/gocsv"

	"github.com/pthm-cable/brine/config"
	"github.com/pthm-cable/brine/fluid"
)

// StepRecord is the flat CSV row for one simulation step.
type StepRecord struct {
	Frame          int     `csv:"frame"`
	Particles      int     `csv:"particles"`
	FluidParticles int     `csv:"fluid_particles"`
	FluidCells     int     `csv:"fluid_cells"`
	PCGIterations  int     `csv:"pcg_iterations"`
	PCGResidual    float64 `csv:"pcg_residual"`
	MaxSpeed       float64 `csv:"max_speed"`
	StepMS         float64 `csv:"step_ms"`
}

// RecordFromStats flattens a step summary into a CSV record.
func RecordFromStats(s fluid.StepStats) StepRecord {
	return StepRecord{
		Frame:          s.Frame,
		Particles:      s.Particles,
		FluidParticles: s.FluidParticles,
		FluidCells:     s.FluidCells,
		PCGIterations:  s.PCGIterations,
		PCGResidual:    s.PCGResidual,
		MaxSpeed:       s.MaxSpeed,
		StepMS:         float64(s.Duration.Microseconds()) / 1000,
	}
}

// OutputManager handles structured run output with CSV logging.
type OutputManager struct {
	dir       string
	statsFile *os.File

	statsHeaderWritten bool
}

// NewOutputManager creates an output manager rooted at dir. Returns nil
// if dir is empty (output disabled); a nil manager is safe to use.
func NewOutputManager(dir string) (*OutputManager, error) {
	if dir == "" {
		return nil, nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	statsPath := filepath.Join(dir, "stats.csv")
	f, err := os.Create(statsPath)
	if err != nil {
		return nil, fmt.Errorf("creating stats.csv: %w", err)
	}
	return &OutputManager{dir: dir, statsFile: f}, nil
}

// WriteConfig saves the current configuration as YAML alongside the run
// output.
func (om *OutputManager) WriteConfig(cfg *config.Config) error {
	if om == nil {
		return nil
	}
	return cfg.WriteYAML(filepath.Join(om.dir, "config.yaml"))
}

// WriteStep appends a step record to stats.csv, writing the header on the
// first call.
func (om *OutputManager) WriteStep(rec StepRecord) error {
	if om == nil {
		return nil
	}
	records := []StepRecord{rec}
	if !om.statsHeaderWritten {
		if err := gocsv.Marshal(records, om.statsFile); err != nil {
			return fmt.Errorf("writing stats: %w", err)
		}
		om.statsHeaderWritten = true
		return nil
	}
	if err := gocsv.MarshalWithoutHeaders(records, om.statsFile); err != nil {
		return fmt.Errorf("writing stats: %w", err)
	}
	return nil
}

// Close flushes and closes the output files.
func (om *OutputManager) Close() error {
	if om == nil {
		return nil
	}
	return om.statsFile.Close()
}

package telemetry

import (
	"math"
	"testing"
	"time"
)

func TestPercentile(t *testing.T) {
	tests := []struct {
		name   string
		sorted []float64
		p      float64
		want   float64
	}{
		{"empty slice", []float64{}, 0.5, 0},
		{"single element", []float64{5.0}, 0.5, 5.0},
		{"p0", []float64{1, 2, 3, 4, 5}, 0.0, 1.0},
		{"p100", []float64{1, 2, 3, 4, 5}, 1.0, 5.0},
		{"p50 odd", []float64{1, 2, 3, 4, 5}, 0.5, 3.0},
		{"p50 even", []float64{1, 2, 3, 4}, 0.5, 2.5},
		{"p90", []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, 0.9, 9.1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Percentile(tt.sorted, tt.p)
			if math.Abs(got-tt.want) > 0.001 {
				t.Errorf("Percentile(%v, %v) = %v, want %v", tt.sorted, tt.p, got, tt.want)
			}
		})
	}
}

func TestPerfCollectorPhases(t *testing.T) {
	p := NewPerfCollector(4)

	p.StartStep()
	p.StartPhase(PhaseSplat)
	time.Sleep(2 * time.Millisecond)
	p.StartPhase(PhaseProject)
	time.Sleep(2 * time.Millisecond)
	p.EndStep()

	stats := p.Stats()
	if stats.AvgStepDuration < 4*time.Millisecond {
		t.Errorf("avg step duration = %v, want >= 4ms", stats.AvgStepDuration)
	}
	for _, phase := range []string{PhaseSplat, PhaseProject} {
		if pct := stats.PhasePct[phase]; pct <= 0 {
			t.Errorf("phase %q pct = %v, want > 0", phase, pct)
		}
	}
}

func TestPerfCollectorWindowRolls(t *testing.T) {
	p := NewPerfCollector(2)
	for i := 0; i < 5; i++ {
		p.StartStep()
		p.EndStep()
	}
	stats := p.Stats()
	if stats.AvgStepDuration < 0 {
		t.Error("negative average after rolling")
	}
	if p.sampleCount != 2 {
		t.Errorf("sampleCount = %d, want window size 2", p.sampleCount)
	}
}

func TestPerfCollectorEmpty(t *testing.T) {
	p := NewPerfCollector(8)
	stats := p.Stats()
	if stats.AvgStepDuration != 0 || stats.StepsPerSecond != 0 {
		t.Errorf("empty collector stats = %+v, want zeros", stats)
	}
}

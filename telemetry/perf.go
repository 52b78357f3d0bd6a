// Package telemetry collects per-step statistics and phase timings and
// writes them to CSV.
package telemetry

import (
	"log/slog"
	"sort"
	"time"
)

// Phase names for the simulation step, matching what FlipSim reports
// through its OnPhase hook.
const (
	PhaseEmit        = "emit"
	PhaseUnstick     = "unstick"
	PhaseSort        = "sort"
	PhaseDensity     = "density"
	PhaseForces      = "forces"
	PhaseSplat       = "splat"
	PhaseMark        = "mark"
	PhaseProject     = "project"
	PhaseExtrapolate = "extrapolate"
	PhasePicFlip     = "picflip"
	PhaseAdvect      = "advect"
	PhaseConstrain   = "constrain"
	PhaseResample    = "resample"
	PhaseExport      = "export"
)

// PerfSample holds timing data for a single step.
type PerfSample struct {
	StepDuration time.Duration
	Phases       map[string]time.Duration
}

// PerfCollector tracks performance metrics over a rolling window.
type PerfCollector struct {
	windowSize    int
	samples       []PerfSample
	writeIndex    int
	sampleCount   int
	currentPhases map[string]time.Duration
	stepStart     time.Time
	phaseStart    time.Time
	lastPhase     string
}

// NewPerfCollector creates a collector averaging over windowSize steps.
func NewPerfCollector(windowSize int) *PerfCollector {
	if windowSize < 1 {
		windowSize = 30
	}
	return &PerfCollector{
		windowSize:    windowSize,
		samples:       make([]PerfSample, windowSize),
		currentPhases: make(map[string]time.Duration),
	}
}

// StartStep begins timing a new simulation step.
func (p *PerfCollector) StartStep() {
	p.stepStart = time.Now()
	p.currentPhases = make(map[string]time.Duration)
	p.lastPhase = ""
}

// StartPhase begins timing a phase, closing the previous one. Matches the
// FlipSim OnPhase hook signature.
func (p *PerfCollector) StartPhase(phase string) {
	now := time.Now()
	if p.lastPhase != "" {
		p.currentPhases[p.lastPhase] += now.Sub(p.phaseStart)
	}
	p.phaseStart = now
	p.lastPhase = phase
}

// EndStep finishes timing the current step and records the sample.
func (p *PerfCollector) EndStep() {
	now := time.Now()
	if p.lastPhase != "" {
		p.currentPhases[p.lastPhase] += now.Sub(p.phaseStart)
	}
	p.samples[p.writeIndex] = PerfSample{
		StepDuration: now.Sub(p.stepStart),
		Phases:       p.currentPhases,
	}
	p.writeIndex = (p.writeIndex + 1) % p.windowSize
	if p.sampleCount < p.windowSize {
		p.sampleCount++
	}
}

// PerfStats holds aggregated performance statistics over a window.
type PerfStats struct {
	AvgStepDuration time.Duration
	P50StepDuration time.Duration
	P90StepDuration time.Duration
	MaxStepDuration time.Duration

	// Phase percentages of total step time.
	PhasePct map[string]float64

	StepsPerSecond float64
}

// Stats computes aggregated statistics over the current window.
func (p *PerfCollector) Stats() PerfStats {
	if p.sampleCount == 0 {
		return PerfStats{PhasePct: make(map[string]float64)}
	}

	var total time.Duration
	var max time.Duration
	durations := make([]float64, 0, p.sampleCount)
	phaseSum := make(map[string]time.Duration)

	for i := 0; i < p.sampleCount; i++ {
		s := p.samples[i]
		total += s.StepDuration
		if s.StepDuration > max {
			max = s.StepDuration
		}
		durations = append(durations, float64(s.StepDuration))
		for phase, dur := range s.Phases {
			phaseSum[phase] += dur
		}
	}
	sort.Float64s(durations)

	avg := total / time.Duration(p.sampleCount)
	phasePct := make(map[string]float64)
	for phase, sum := range phaseSum {
		if total > 0 {
			phasePct[phase] = float64(sum) / float64(total) * 100
		}
	}

	var stepsPerSec float64
	if avg > 0 {
		stepsPerSec = float64(time.Second) / float64(avg)
	}

	return PerfStats{
		AvgStepDuration: avg,
		P50StepDuration: time.Duration(Percentile(durations, 0.5)),
		P90StepDuration: time.Duration(Percentile(durations, 0.9)),
		MaxStepDuration: max,
		PhasePct:        phasePct,
		StepsPerSecond:  stepsPerSec,
	}
}

// LogStats logs performance statistics.
func (s PerfStats) LogStats() {
	attrs := []any{
		"avg_step_ms", float64(s.AvgStepDuration.Microseconds()) / 1000,
		"p50_step_ms", float64(s.P50StepDuration.Microseconds()) / 1000,
		"p90_step_ms", float64(s.P90StepDuration.Microseconds()) / 1000,
		"max_step_ms", float64(s.MaxStepDuration.Microseconds()) / 1000,
		"steps_per_sec", int(s.StepsPerSecond),
	}

	phases := []string{
		PhaseEmit, PhaseUnstick, PhaseSort, PhaseDensity, PhaseForces,
		PhaseSplat, PhaseMark, PhaseProject, PhaseExtrapolate,
		PhasePicFlip, PhaseAdvect, PhaseConstrain, PhaseResample,
		PhaseExport,
	}
	for _, phase := range phases {
		if pct, ok := s.PhasePct[phase]; ok && pct > 0.1 {
			attrs = append(attrs, phase+"_pct", float64(int(pct*10))/10)
		}
	}

	slog.Info("perf", attrs...)
}

// Percentile returns the linearly interpolated p-quantile of a sorted
// slice, p in [0,1]. Returns 0 for an empty slice.
func Percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return sorted[0]
	}
	pos := p * float64(n-1)
	lo := int(pos)
	if lo >= n-1 {
		return sorted[n-1]
	}
	frac := pos - float64(lo)
	return sorted[lo]*(1-frac) + sorted[lo+1]*frac
}

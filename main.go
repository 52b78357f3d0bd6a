// Command brine runs a headless FLIP/PIC fluid simulation described by a
// YAML config and writes per-frame particle exports plus per-step stats.
package main

import (
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/pthm-cable/brine/config"
	"github.com/pthm-cable/brine/fluid"
	"github.com/pthm-cable/brine/scene"
	"github.com/pthm-cable/brine/telemetry"
)

func main() {
	configPath := flag.String("config", "", "Path to config.yaml (empty = use defaults)")
	frames := flag.Int("frames", 0, "Number of frames to simulate (0 = use config)")
	outputDir := flag.String("output-dir", "", "Output directory (overrides config)")
	seed := flag.Int64("seed", 0, "RNG seed (0 = use config; config 0 = time-based)")
	verbose := flag.Bool("verbose", false, "Log per-step detail")
	saveCSV := flag.Bool("save-csv", false, "Export particle CSV per frame (overrides config)")
	saveOBJ := flag.Bool("save-obj", false, "Export OBJ point cloud per frame (overrides config)")

	flag.Parse()

	if err := config.Init(*configPath); err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	cfg := config.Cfg()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if *frames > 0 {
		cfg.Sim.Frames = *frames
	}
	if *outputDir != "" {
		cfg.Output.Dir = *outputDir
	}
	if *verbose {
		cfg.Sim.Verbose = true
	}
	if *saveCSV {
		cfg.Output.SaveCSV = true
	}
	if *saveOBJ {
		cfg.Output.SaveOBJ = true
	}

	rngSeed := cfg.Sim.Seed
	if *seed != 0 {
		rngSeed = *seed
	}
	if rngSeed == 0 {
		rngSeed = time.Now().UnixNano()
	}

	sc, err := scene.FromConfig(cfg)
	if err != nil {
		slog.Error("failed to build scene", "error", err)
		os.Exit(1)
	}

	sim := fluid.NewFlipSim(fluid.Options{
		X:                cfg.Sim.Dimensions.X,
		Y:                cfg.Sim.Dimensions.Y,
		Z:                cfg.Sim.Dimensions.Z,
		Density:          cfg.Sim.Density,
		Stepsize:         cfg.Sim.Stepsize,
		Subcell:          cfg.Sim.Subcell != 0,
		PICFLIPRatio:     cfg.Sim.PicFlipRatio,
		DensityThreshold: cfg.Sim.DensityThreshold,
		Seed:             rngSeed,
		Verbose:          cfg.Sim.Verbose,
	}, sc)

	om, err := telemetry.NewOutputManager(cfg.Output.Dir)
	if err != nil {
		slog.Error("failed to open output", "error", err)
		os.Exit(1)
	}
	defer om.Close()
	if err := om.WriteConfig(cfg); err != nil {
		slog.Warn("failed to snapshot config", "error", err)
	}

	perf := telemetry.NewPerfCollector(cfg.Output.StatsWindow)
	sim.OnPhase = perf.StartPhase

	sim.Init()
	slog.Info("starting simulation",
		"dimensions", []int{cfg.Sim.Dimensions.X, cfg.Sim.Dimensions.Y, cfg.Sim.Dimensions.Z},
		"frames", cfg.Sim.Frames,
		"particles", len(sim.Particles()),
		"seed", rngSeed,
	)

	for frame := 1; frame <= cfg.Sim.Frames; frame++ {
		perf.StartStep()
		stats, err := sim.Step(cfg.Output.SaveCSV, cfg.Output.SaveOBJ)
		perf.EndStep()
		if err != nil {
			slog.Error("export failed", "frame", frame, "error", err)
			os.Exit(1)
		}
		if err := om.WriteStep(telemetry.RecordFromStats(stats)); err != nil {
			slog.Warn("stats write failed", "frame", frame, "error", err)
		}
		if cfg.Output.StatsWindow > 0 && frame%cfg.Output.StatsWindow == 0 {
			perf.Stats().LogStats()
		}
	}

	slog.Info("simulation finished",
		"frames", cfg.Sim.Frames,
		"particles", len(sim.Particles()),
	)
}

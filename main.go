package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/pthm-cable/preytrap/arena"
	"github.com/pthm-cable/preytrap/config"
	"github.com/pthm-cable/preytrap/loop"
	"github.com/pthm-cable/preytrap/placement"
	"github.com/pthm-cable/preytrap/telemetry"
)

func main() {
	// CLI flags
	configPath := flag.String("config", "", "Path to config.yaml (empty = use defaults)")
	output := flag.String("output", "", "Trap series CSV path (empty = use config)")
	seed := flag.Uint64("seed", 0, "Placement RNG seed (0 = use config)")
	steps := flag.Int("steps", -1, "Stop after N steps (-1 = use config, 0 = unlimited)")
	archivePath := flag.String("archive", "", "SQLite run archive (empty = use config)")
	logLevel := flag.String("log-level", "info", "Log level: debug, info, warn, error")
	flag.Parse()

	// Set up slog (JSON to stdout for structured logging)
	var level slog.Level
	if err := level.UnmarshalText([]byte(*logLevel)); err != nil {
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	if err := config.Init(*configPath); err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	cfg := config.Cfg()

	// CLI overrides
	if *output != "" {
		cfg.Output = *output
	}
	if *seed != 0 {
		cfg.Run.Seed = *seed
	}
	if *steps >= 0 {
		cfg.Run.MaxSteps = *steps
	}
	if *archivePath != "" {
		cfg.Archive.Path = *archivePath
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	os.Exit(run(ctx, cfg))
}

// run executes one experiment and returns the process exit code.
func run(ctx context.Context, cfg *config.Config) int {
	metrics, err := telemetry.NewMetrics(nil)
	if err != nil {
		slog.Error("failed to create metrics", "error", err)
		return 1
	}

	opts := loop.Options{Metrics: metrics}
	if cfg.Archive.Path != "" {
		archive, err := telemetry.OpenArchive(cfg.Archive.Path)
		if err != nil {
			slog.Error("failed to open archive", "path", cfg.Archive.Path, "error", err)
			return 1
		}
		defer archive.Close()
		opts.Archive = archive
	}

	// Placement and arena motion share one resolved seed
	seed := cfg.Run.ResolveSeed()
	world := arena.New(cfg.Arena, int64(seed))
	l := loop.New(world, opts)

	if err := l.Init(ctx, cfg); err != nil {
		var perr *placement.PlacementError
		if errors.As(err, &perr) {
			slog.Error("placement_failed", "agent", perr.AgentID, "attempts", perr.Attempts)
		} else {
			slog.Error("init_failed", "error", err)
		}
		return 1
	}
	defer l.Destroy()

	slog.Info("starting headless run",
		"seed", l.Seed(),
		"max_steps", cfg.Run.MaxSteps,
		"stop_when", cfg.Run.StopWhen,
	)

	for !l.Done() {
		if ctx.Err() != nil {
			slog.Info("interrupted", "step", l.Step())
			break
		}
		if err := l.PreStep(); err != nil {
			slog.Error("pre_step_failed", "error", err)
			return 1
		}
		world.Step()
		if _, err := l.PostStep(ctx); err != nil {
			slog.Error("post_step_failed", "step", l.Step(), "error", err)
			return 1
		}
	}

	// Output failures are reported but the run itself completed
	if _, err := l.PostExperiment(context.WithoutCancel(ctx)); err != nil {
		return 2
	}
	return 0
}

// Package main replays a recorded prey trajectory through the trap detector
// and writes the per-step trap series offline.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/gocarina/gocsv"

	"github.com/pthm-cable/preytrap/telemetry"
	"github.com/pthm-cable/preytrap/trap"
)

// Sample is one trajectory row. The input file has an "x,y" header.
type Sample struct {
	X float64 `csv:"x"`
	Y float64 `csv:"y"`
}

func main() {
	in := flag.String("in", "", "Trajectory CSV with x,y header (required)")
	out := flag.String("out", "output.csv", "Trap series output path")
	window := flag.Int("window", trap.DefaultWindow, "Confinement window in steps")
	size := flag.Float64("size", trap.DefaultSize, "Maximum axis span while trapped")
	flag.Parse()

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	if *in == "" {
		fmt.Fprintln(os.Stderr, "replay: -in is required")
		flag.Usage()
		os.Exit(2)
	}
	if err := checkParams(*window, *size); err != nil {
		fmt.Fprintln(os.Stderr, "replay:", err)
		flag.Usage()
		os.Exit(2)
	}

	samples, err := readTrajectory(*in)
	if err != nil {
		slog.Error("failed to read trajectory", "path", *in, "error", err)
		os.Exit(1)
	}

	log := replay(samples, &trap.Detector{Window: *window, Size: *size})
	if err := log.Flush(*out); err != nil {
		slog.Error("output_failed", "path", *out, "error", err)
		os.Exit(1)
	}

	slog.Info("replay_finished",
		"input", *in,
		"output", *out,
		"summary", telemetry.Summarize(log.Records()),
	)
}

// checkParams rejects detector parameters that cannot describe a confinement box.
func checkParams(window int, size float64) error {
	if window < 1 {
		return fmt.Errorf("-window must be at least 1, got %d", window)
	}
	if size <= 0 {
		return fmt.Errorf("-size must be positive, got %g", size)
	}
	return nil
}

func readTrajectory(path string) ([]Sample, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var samples []Sample
	if err := gocsv.UnmarshalFile(f, &samples); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return samples, nil
}

// replay feeds samples through a fresh tracker in order, one step each.
func replay(samples []Sample, detector *trap.Detector) *telemetry.ExperimentLog {
	tracker := trap.NewTracker()
	log := telemetry.NewExperimentLog()

	for step, s := range samples {
		tracker.RecordStep(s.X, s.Y)
		v := detector.Update(tracker.History())
		log.Append(step, v.Trapped, v.Cumulative, s.X, s.Y)
	}
	return log
}

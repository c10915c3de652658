package telemetry

import (
	"log/slog"

	"gonum.org/v1/gonum/stat"
)

// RunSummary holds aggregate statistics for one run's trap series.
type RunSummary struct {
	Steps           int     `db:"steps"`
	TrappedSteps    int     `db:"trapped_steps"`    // equals the final cumulative count
	FirstTrapped    int     `db:"first_trapped"`    // step index, -1 if never trapped
	LongestTrapped  int     `db:"longest_trapped"`  // longest contiguous trapped run
	TrappedFraction float64 `db:"trapped_fraction"` // TrappedSteps / Steps
	MeanX           float64 `db:"mean_x"`
	MeanY           float64 `db:"mean_y"`
}

// Summarize computes the run summary from records in step order.
func Summarize(records []Record) RunSummary {
	s := RunSummary{Steps: len(records), FirstTrapped: -1}
	if len(records) == 0 {
		return s
	}

	flags := make([]float64, len(records))
	xs := make([]float64, len(records))
	ys := make([]float64, len(records))

	run := 0
	for i, r := range records {
		xs[i], ys[i] = r.X, r.Y
		if !r.Trapped {
			run = 0
			continue
		}
		flags[i] = 1
		if s.FirstTrapped < 0 {
			s.FirstTrapped = r.Step
		}
		run++
		if run > s.LongestTrapped {
			s.LongestTrapped = run
		}
	}

	s.TrappedSteps = records[len(records)-1].Cumulative
	s.TrappedFraction = stat.Mean(flags, nil)
	s.MeanX = stat.Mean(xs, nil)
	s.MeanY = stat.Mean(ys, nil)

	return s
}

// LogValue implements slog.LogValuer for structured logging.
func (s RunSummary) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("steps", s.Steps),
		slog.Int("trapped_steps", s.TrappedSteps),
		slog.Int("first_trapped", s.FirstTrapped),
		slog.Int("longest_trapped", s.LongestTrapped),
		slog.Float64("trapped_fraction", s.TrappedFraction),
		slog.Float64("mean_x", s.MeanX),
		slog.Float64("mean_y", s.MeanY),
	)
}

// Package loop drives trap monitoring through the host lifecycle:
// Init, then PreStep/PostStep once per simulation step, then PostExperiment.
package loop

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/pthm-cable/preytrap/components"
	"github.com/pthm-cable/preytrap/config"
	"github.com/pthm-cable/preytrap/placement"
	"github.com/pthm-cable/preytrap/telemetry"
	"github.com/pthm-cable/preytrap/trap"
)

var (
	// ErrInvalidTransition is returned when a lifecycle call is not valid in the current state.
	ErrInvalidTransition = errors.New("invalid lifecycle transition")
	// ErrNoPrey is returned when the world has no prey agent or cannot report its position.
	ErrNoPrey = errors.New("no prey agent")
)

// World is the simulation engine the loop observes.
type World interface {
	// Agents lists every agent in a stable order.
	Agents() []components.Agent
	// PreyPosition returns the current ground position of the agent with the given id.
	PreyPosition(id string) (x, y float64, ok bool)
	// TryPlace moves agent to pose and reports whether the pose is valid.
	TryPlace(agent components.Agent, pose placement.Pose) bool
}

// State is a lifecycle state.
type State uint8

const (
	StateUninitialized State = iota
	StateReady
	StateRunning
	StateFinished
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateReady:
		return "ready"
	case StateRunning:
		return "running"
	case StateFinished:
		return "finished"
	default:
		return "unknown"
	}
}

// Options holds optional collaborators. Zero values disable them.
type Options struct {
	Metrics *telemetry.Metrics
	Archive *telemetry.Archive
}

// Loop owns the run state for one tracked prey: the random source used for
// placement, the position history, the detector and the experiment log.
type Loop struct {
	world World
	opts  Options

	state State
	cfg   *config.Config
	seed  uint64
	stop  *StopCondition

	sampler  *placement.Sampler
	rng      *placement.RandomSource
	tracker  *trap.Tracker
	detector *trap.Detector
	log      *telemetry.ExperimentLog

	prey      components.Agent
	runID     string
	startedAt time.Time
	step      int
	stopped   bool
}

// New creates a loop observing world. Call Init before stepping.
func New(world World, opts Options) *Loop {
	return &Loop{world: world, opts: opts}
}

// State returns the current lifecycle state.
func (l *Loop) State() State { return l.state }

// RunID returns the identifier of the current run.
func (l *Loop) RunID() string { return l.runID }

// Seed returns the resolved placement seed.
func (l *Loop) Seed() uint64 { return l.seed }

// Step returns the number of steps recorded in the current run.
func (l *Loop) Step() int { return l.step }

// Log returns the current run's experiment log.
func (l *Loop) Log() *telemetry.ExperimentLog { return l.log }

// Init configures the loop and places every agent.
// A seed of zero in cfg is replaced by a time-based one, kept for later resets.
func (l *Loop) Init(ctx context.Context, cfg *config.Config) error {
	if l.state != StateUninitialized {
		return l.invalid("init")
	}

	l.cfg = cfg
	l.seed = cfg.Run.ResolveSeed()

	l.sampler = &placement.Sampler{
		PredatorRadius: cfg.Placement.PredatorRadius,
		PreyMinRadius:  cfg.Placement.PreyMinRadius,
		PreyMaxRadius:  cfg.Placement.PreyMaxRadius,
		MaxAttempts:    cfg.Placement.MaxAttempts,
	}

	stop, err := CompileStopCondition(cfg.Run.StopWhen)
	if err != nil {
		slog.Warn("stop_condition_disabled", "error", err)
		cfg.Warnings = append(cfg.Warnings, err.Error())
		stop = nil
	}
	l.stop = stop

	return l.start(ctx)
}

// Reset discards the run state and places every agent again with a fresh
// random source seeded like the first run.
func (l *Loop) Reset(ctx context.Context) error {
	switch l.state {
	case StateReady, StateRunning, StateFinished:
	default:
		return l.invalid("reset")
	}
	return l.start(ctx)
}

// start builds fresh run state and places the agents.
func (l *Loop) start(ctx context.Context) error {
	agents := l.world.Agents()
	prey, err := findPrey(agents)
	if err != nil {
		l.state = StateUninitialized
		return err
	}

	l.rng = placement.NewRandomSource(l.seed)
	l.tracker = trap.NewTracker()
	l.detector = &trap.Detector{Window: l.cfg.Trap.Window, Size: l.cfg.Trap.Size}
	l.log = telemetry.NewExperimentLog()
	l.prey = prey
	l.runID = uuid.NewString()
	l.startedAt = time.Now().UTC()
	l.step = 0
	l.stopped = false

	err = l.sampler.PlaceAll(agents, l.rng, l.world.TryPlace)
	l.opts.Metrics.RecordPlacement(ctx, len(agents), err == nil)
	if err != nil {
		l.state = StateUninitialized
		return err
	}

	l.state = StateReady
	slog.Info("run_started",
		"run_id", l.runID,
		"seed", l.seed,
		"agents", len(agents),
		"prey", prey.ID,
		"output", l.cfg.Output,
	)
	return nil
}

// findPrey returns the first prey agent. Only one prey is tracked.
func findPrey(agents []components.Agent) (components.Agent, error) {
	var prey components.Agent
	found := 0
	for _, a := range agents {
		if !a.IsPrey() {
			continue
		}
		if found == 0 {
			prey = a
		}
		found++
	}

	switch {
	case found == 0:
		return components.Agent{}, ErrNoPrey
	case found > 1:
		slog.Warn("multiple_prey", "tracked", prey.ID, "count", found)
	}
	return prey, nil
}

// PreStep runs before the engine advances. It has no effect on run state.
func (l *Loop) PreStep() error {
	if l.state != StateReady && l.state != StateRunning {
		return l.invalid("pre_step")
	}
	return nil
}

// PostStep observes the prey after the engine has advanced one step:
// the position is recorded, the detector judges the history, and the
// record is appended to the log, in that order.
func (l *Loop) PostStep(ctx context.Context) (trap.Verdict, error) {
	if l.state != StateReady && l.state != StateRunning {
		return trap.Verdict{}, l.invalid("post_step")
	}

	x, y, ok := l.world.PreyPosition(l.prey.ID)
	if !ok {
		return trap.Verdict{}, fmt.Errorf("%w: %s has no position", ErrNoPrey, l.prey.ID)
	}

	l.tracker.RecordStep(x, y)
	verdict := l.detector.Update(l.tracker.History())
	l.log.Append(l.step, verdict.Trapped, verdict.Cumulative, x, y)
	l.state = StateRunning

	if verdict.Cumulative == 0 {
		slog.Debug("prey_not_trapped", "step", l.step)
	} else {
		slog.Debug("prey_trapped",
			"step", l.step,
			"trapped_now", verdict.Trapped,
			"total_trapped_steps", verdict.Cumulative,
		)
	}
	l.opts.Metrics.RecordStep(ctx, l.runID, verdict.Trapped)

	stop, err := l.stop.Eval(l.step, verdict, x, y)
	if err != nil {
		slog.Warn("stop_condition_failed", "step", l.step, "error", err)
	}
	if stop {
		slog.Info("stop_condition_met", "step", l.step, "expr", l.stop.String())
		l.stopped = true
	}

	l.step++
	return verdict, nil
}

// Done reports whether the run should end: the stop condition fired or
// the configured step limit was reached.
func (l *Loop) Done() bool {
	if l.stopped {
		return true
	}
	return l.cfg != nil && l.cfg.Run.MaxSteps > 0 && l.step >= l.cfg.Run.MaxSteps
}

// PostExperiment ends the run: it logs the summary and writes the series
// to the configured output. Output, snapshot and archive failures are
// returned together; the run is finished either way.
func (l *Loop) PostExperiment(ctx context.Context) (telemetry.RunSummary, error) {
	if l.state != StateReady && l.state != StateRunning {
		return telemetry.RunSummary{}, l.invalid("post_experiment")
	}
	l.state = StateFinished

	records := l.log.Records()
	summary := telemetry.Summarize(records)
	slog.Info("experiment_finished",
		"run_id", l.runID,
		"total_trapped_steps", summary.TrappedSteps,
		"summary", summary,
	)

	var errs []error

	if err := l.log.Flush(l.cfg.Output); err != nil {
		slog.Error("output_failed", "path", l.cfg.Output, "error", err)
		errs = append(errs, err)
	}

	if l.cfg.Telemetry.SnapshotConfig {
		path := l.cfg.Output + ".config.yaml"
		if err := l.cfg.WriteYAML(path); err != nil {
			slog.Error("config_snapshot_failed", "path", path, "error", err)
			errs = append(errs, err)
		}
	}

	if l.opts.Archive != nil {
		info := telemetry.RunInfo{
			ID:         l.runID,
			Seed:       telemetry.Seed(l.seed),
			Output:     l.cfg.Output,
			CreatedAt:  l.startedAt,
			RunSummary: summary,
		}
		if err := l.opts.Archive.SaveRun(ctx, info, records); err != nil {
			slog.Error("archive_failed", "run_id", l.runID, "error", err)
			errs = append(errs, err)
		}
	}

	return summary, errors.Join(errs...)
}

// Destroy releases the run state. The loop must be initialized again before use.
func (l *Loop) Destroy() error {
	if l.state == StateUninitialized {
		return l.invalid("destroy")
	}
	*l = Loop{world: l.world, opts: l.opts}
	return nil
}

func (l *Loop) invalid(op string) error {
	return fmt.Errorf("%w: %s in state %s", ErrInvalidTransition, op, l.state)
}

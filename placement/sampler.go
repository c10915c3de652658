// Package placement draws random collision-free starting poses for arena agents.
package placement

import (
	"errors"
	"fmt"
	"math"

	"github.com/pthm-cable/preytrap/components"
)

// Default distribution parameters.
const (
	DefaultPredatorRadius = 2.0
	DefaultPreyMinRadius  = 3.0
	DefaultPreyMaxRadius  = 4.0
	DefaultMaxAttempts    = 100
)

// ErrPlacementExhausted is returned when no candidate pose was accepted.
var ErrPlacementExhausted = errors.New("placement attempts exhausted")

// Pose is a candidate position and yaw for one agent.
type Pose struct {
	X, Y, Z float64
	Yaw     float64 // radians
}

// Radius returns the horizontal distance of the pose from the arena origin.
func (p Pose) Radius() float64 {
	return math.Hypot(p.X, p.Y)
}

// PlaceFunc asks the engine to put agent at pose and reports whether the
// result is geometrically valid. The engine owns the notion of validity.
type PlaceFunc func(agent components.Agent, pose Pose) bool

// PlacementError identifies the agent that could not be placed.
type PlacementError struct {
	AgentID  string
	Attempts int
}

func (e *PlacementError) Error() string {
	return fmt.Sprintf("cannot place agent %q after %d attempts", e.AgentID, e.Attempts)
}

func (e *PlacementError) Unwrap() error {
	return ErrPlacementExhausted
}

// Sampler draws role-dependent poses from polar distributions centred on
// the arena origin: predators fill a disk, the prey a ring outside it.
type Sampler struct {
	PredatorRadius float64
	PreyMinRadius  float64
	PreyMaxRadius  float64
	MaxAttempts    int
}

// NewSampler returns a sampler with the default distributions.
func NewSampler() *Sampler {
	return &Sampler{
		PredatorRadius: DefaultPredatorRadius,
		PreyMinRadius:  DefaultPreyMinRadius,
		PreyMaxRadius:  DefaultPreyMaxRadius,
		MaxAttempts:    DefaultMaxAttempts,
	}
}

// SamplePredatorPose draws a pose with radius uniform in [0, PredatorRadius].
func (s *Sampler) SamplePredatorPose(rng *RandomSource) Pose {
	return samplePose(rng, 0, s.PredatorRadius)
}

// SamplePreyPose draws a pose with radius uniform in [PreyMinRadius, PreyMaxRadius].
func (s *Sampler) SamplePreyPose(rng *RandomSource) Pose {
	return samplePose(rng, s.PreyMinRadius, s.PreyMaxRadius)
}

// samplePose converts a polar draw on the ground plane (inclination pi/2,
// so Z is zero) into a pose with a uniformly random yaw.
func samplePose(rng *RandomSource, minR, maxR float64) Pose {
	r := rng.Uniform(minR, maxR)
	theta := rng.Uniform(-math.Pi, math.Pi)
	yaw := rng.Uniform(0, 2*math.Pi)
	return Pose{
		X:   r * math.Cos(theta),
		Y:   r * math.Sin(theta),
		Yaw: yaw,
	}
}

// PlaceAgent samples poses for agent until tryPlace accepts one, giving up
// after MaxAttempts. Exhaustion returns a *PlacementError; callers must
// abort the run rather than continue with an unplaced agent.
func (s *Sampler) PlaceAgent(agent components.Agent, rng *RandomSource, tryPlace PlaceFunc) error {
	maxAttempts := s.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = DefaultMaxAttempts
	}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		var pose Pose
		if agent.IsPrey() {
			pose = s.SamplePreyPose(rng)
		} else {
			pose = s.SamplePredatorPose(rng)
		}
		if tryPlace(agent, pose) {
			return nil
		}
	}

	return &PlacementError{AgentID: agent.ID, Attempts: maxAttempts}
}

// PlaceAll places every agent in order, stopping at the first failure.
func (s *Sampler) PlaceAll(agents []components.Agent, rng *RandomSource, tryPlace PlaceFunc) error {
	for _, agent := range agents {
		if err := s.PlaceAgent(agent, rng, tryPlace); err != nil {
			return err
		}
	}
	return nil
}

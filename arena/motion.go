package arena

import (
	"math"

	"github.com/mlange-42/ark/ecs"
	opensimplex "github.com/ojrac/opensimplex-go"

	"github.com/pthm-cable/preytrap/components"
)

// noiseTimeScale is how fast the heading drift field evolves per step.
const noiseTimeScale = 0.02

// MotionSystem advances every placed agent at constant speed along a
// heading that drifts with a coherent noise field. A move that would leave
// the arena or overlap another body is not taken; the agent waits for its
// heading to drift free.
type MotionSystem struct {
	filter *ecs.Filter4[components.Position, components.Velocity, components.Rotation, components.Body]
	noise  opensimplex.Noise

	halfSize    float64
	speed       float64
	noiseScale  float64
	noiseWeight float64
	maxRadius   float64

	neighbors []Neighbor
}

// NewMotionSystem creates a motion system for the world.
func NewMotionSystem(w *ecs.World, seed int64, halfSize, speed, noiseScale, noiseWeight, maxRadius float64) *MotionSystem {
	return &MotionSystem{
		filter:      ecs.NewFilter4[components.Position, components.Velocity, components.Rotation, components.Body](w),
		noise:       opensimplex.NewNormalized(seed),
		halfSize:    halfSize,
		speed:       speed,
		noiseScale:  noiseScale,
		noiseWeight: noiseWeight,
		maxRadius:   maxRadius,
	}
}

// Update moves every placed agent once. The grid must hold all placed
// agents; it is read, not rebuilt.
func (s *MotionSystem) Update(tick int, grid *SpatialGrid, posMap *ecs.Map1[components.Position], bodyMap *ecs.Map1[components.Body]) (moved int) {
	t := float64(tick) * noiseTimeScale

	query := s.filter.Query()
	for query.Next() {
		pos, vel, rot, body := query.Get()
		if !body.Placed {
			continue
		}

		// Drift in [-noiseWeight, noiseWeight] radians
		n := s.noise.Eval3(pos.X*s.noiseScale, pos.Y*s.noiseScale, t)
		rot.Heading = wrapAngle(rot.Heading + (2*n-1)*s.noiseWeight)

		vel.X = s.speed * math.Cos(rot.Heading)
		vel.Y = s.speed * math.Sin(rot.Heading)

		nx := pos.X + vel.X
		ny := pos.Y + vel.Y
		if !s.inBounds(nx, ny, body.Radius) || s.blocked(query.Entity(), nx, ny, body.Radius, grid, posMap, bodyMap) {
			vel.X, vel.Y = 0, 0
			continue
		}

		pos.X, pos.Y = nx, ny
		moved++
	}

	return moved
}

func (s *MotionSystem) inBounds(x, y, radius float64) bool {
	limit := s.halfSize - radius
	return math.Abs(x) <= limit && math.Abs(y) <= limit
}

// blocked reports whether a body at (x, y) would overlap any other placed body.
// The query radius covers the widest pair plus one step of grid staleness.
func (s *MotionSystem) blocked(self ecs.Entity, x, y, radius float64, grid *SpatialGrid, posMap *ecs.Map1[components.Position], bodyMap *ecs.Map1[components.Body]) bool {
	s.neighbors = grid.QueryRadiusInto(s.neighbors[:0], x, y, radius+s.maxRadius+s.speed, self, posMap)
	return overlaps(s.neighbors, radius, bodyMap)
}

// overlaps reports whether any neighbor body intersects a body of the given radius.
func overlaps(neighbors []Neighbor, radius float64, bodyMap *ecs.Map1[components.Body]) bool {
	for _, n := range neighbors {
		other := bodyMap.Get(n.E)
		if other == nil || !other.Placed {
			continue
		}
		minDist := radius + other.Radius
		if n.DistSq < minDist*minDist {
			return true
		}
	}
	return false
}

// wrapAngle maps an angle into [0, 2pi).
func wrapAngle(a float64) float64 {
	a = math.Mod(a, 2*math.Pi)
	if a < 0 {
		a += 2 * math.Pi
	}
	return a
}

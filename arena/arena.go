// Package arena is a small in-process simulation engine for trap runs:
// a square floor holding predator and prey bodies stored as ECS entities.
package arena

import (
	"fmt"
	"math"

	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/preytrap/components"
	"github.com/pthm-cable/preytrap/config"
	"github.com/pthm-cable/preytrap/placement"
)

// Arena holds the ECS world and implements the engine side of a trap run:
// agent enumeration, prey position reads and validated placement.
type Arena struct {
	world *ecs.World

	entityMapper *ecs.Map5[
		components.Position,
		components.Velocity,
		components.Rotation,
		components.Body,
		components.Agent,
	]
	placedFilter *ecs.Filter2[components.Position, components.Body]

	posMap  *ecs.Map1[components.Position]
	rotMap  *ecs.Map1[components.Rotation]
	bodyMap *ecs.Map1[components.Body]

	grid   *SpatialGrid
	motion *MotionSystem

	agents   []components.Agent
	byID     map[string]ecs.Entity
	halfSize float64
	tick     int

	neighbors []Neighbor
}

// New creates an arena with cfg.Predators predators and one prey, none of
// them placed. Predators are named PredatorID followed by their index.
func New(cfg config.ArenaConfig, seed int64) *Arena {
	world := ecs.NewWorld()

	a := &Arena{
		world: world,
		entityMapper: ecs.NewMap5[
			components.Position,
			components.Velocity,
			components.Rotation,
			components.Body,
			components.Agent,
		](world),
		placedFilter: ecs.NewFilter2[components.Position, components.Body](world),
		posMap:       ecs.NewMap1[components.Position](world),
		rotMap:       ecs.NewMap1[components.Rotation](world),
		bodyMap:      ecs.NewMap1[components.Body](world),
		byID:         make(map[string]ecs.Entity),
		halfSize:     cfg.HalfSize,
	}

	// Cells wider than the overlap query radius keep lookups to a 3x3 block
	cellSize := math.Max(4*cfg.BodyRadius, 0.25)
	a.grid = NewSpatialGrid(cfg.HalfSize, cellSize)
	a.motion = NewMotionSystem(world, seed, cfg.HalfSize, cfg.Speed, cfg.NoiseScale, cfg.NoiseWeight, cfg.BodyRadius)

	for i := 0; i < cfg.Predators; i++ {
		a.spawn(components.Agent{ID: fmt.Sprintf("%s%d", cfg.PredatorID, i), Role: components.RolePredator}, cfg.BodyRadius)
	}
	a.spawn(components.Agent{ID: cfg.PreyID, Role: components.RolePrey}, cfg.BodyRadius)

	return a
}

// spawn creates an unplaced entity for agent.
func (a *Arena) spawn(agent components.Agent, radius float64) ecs.Entity {
	pos := components.Position{}
	vel := components.Velocity{}
	rot := components.Rotation{}
	body := components.Body{Radius: radius}

	entity := a.entityMapper.NewEntity(&pos, &vel, &rot, &body, &agent)
	a.agents = append(a.agents, agent)
	a.byID[agent.ID] = entity
	return entity
}

// Agents returns every agent in creation order.
func (a *Arena) Agents() []components.Agent {
	return append([]components.Agent(nil), a.agents...)
}

// PreyPosition returns the position of a placed agent.
func (a *Arena) PreyPosition(id string) (x, y float64, ok bool) {
	e, found := a.byID[id]
	if !found || !a.bodyMap.Get(e).Placed {
		return 0, 0, false
	}
	pos := a.posMap.Get(e)
	return pos.X, pos.Y, true
}

// TryPlace moves agent to pose if its body fits inside the arena without
// overlapping another placed body. A rejected pose leaves the agent where it was.
func (a *Arena) TryPlace(agent components.Agent, pose placement.Pose) bool {
	e, ok := a.byID[agent.ID]
	if !ok {
		return false
	}
	body := a.bodyMap.Get(e)

	limit := a.halfSize - body.Radius
	if math.Abs(pose.X) > limit || math.Abs(pose.Y) > limit {
		return false
	}

	a.rebuildGrid()
	a.neighbors = a.grid.QueryRadiusInto(a.neighbors[:0], pose.X, pose.Y, body.Radius+a.motion.maxRadius, e, a.posMap)
	if overlaps(a.neighbors, body.Radius, a.bodyMap) {
		return false
	}

	pos := a.posMap.Get(e)
	pos.X, pos.Y = pose.X, pose.Y
	a.rotMap.Get(e).Heading = pose.Yaw
	body.Placed = true
	return true
}

// Step advances the simulation by one tick and returns how many agents moved.
func (a *Arena) Step() int {
	a.rebuildGrid()
	moved := a.motion.Update(a.tick, a.grid, a.posMap, a.bodyMap)
	a.tick++
	return moved
}

// Tick returns the number of steps taken.
func (a *Arena) Tick() int {
	return a.tick
}

// rebuildGrid reinserts every placed entity at its current position.
func (a *Arena) rebuildGrid() {
	a.grid.Clear()
	query := a.placedFilter.Query()
	for query.Next() {
		pos, body := query.Get()
		if body.Placed {
			a.grid.Insert(query.Entity(), pos.X, pos.Y)
		}
	}
}

package arena

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pthm-cable/preytrap/components"
	"github.com/pthm-cable/preytrap/config"
	"github.com/pthm-cable/preytrap/loop"
	"github.com/pthm-cable/preytrap/placement"
)

func newTestArena(t *testing.T) (*Arena, config.ArenaConfig) {
	t.Helper()
	cfg := config.Defaults().Arena
	return New(cfg, 1), cfg
}

func TestNewArenaAgents(t *testing.T) {
	a, cfg := newTestArena(t)

	agents := a.Agents()
	require.Len(t, agents, cfg.Predators+1)
	for i, ag := range agents[:cfg.Predators] {
		assert.Equal(t, components.RolePredator, ag.Role)
		assert.Equal(t, fmt.Sprintf("%s%d", cfg.PredatorID, i), ag.ID)
	}
	prey := agents[len(agents)-1]
	assert.Equal(t, components.RolePrey, prey.Role)
	assert.Equal(t, cfg.PreyID, prey.ID)

	// Nothing is placed yet
	_, _, ok := a.PreyPosition(cfg.PreyID)
	assert.False(t, ok)
}

func TestTryPlace(t *testing.T) {
	a, cfg := newTestArena(t)
	agents := a.Agents()
	p0, p1 := agents[0], agents[1]

	assert.True(t, a.TryPlace(p0, placement.Pose{X: 0, Y: 0}))
	assert.False(t, a.TryPlace(p1, placement.Pose{X: 0.1, Y: 0}), "overlapping body accepted")
	assert.True(t, a.TryPlace(p1, placement.Pose{X: 0.5, Y: 0}))

	// Re-placing an agent does not collide with itself
	assert.True(t, a.TryPlace(p0, placement.Pose{X: 0.05, Y: 0}))

	edge := cfg.HalfSize - cfg.BodyRadius/2
	assert.False(t, a.TryPlace(p1, placement.Pose{X: edge, Y: 0}), "body outside arena accepted")
	assert.False(t, a.TryPlace(components.Agent{ID: "ghost"}, placement.Pose{}))

	// Rejected poses leave the agent in place
	x, y, ok := a.PreyPosition(p1.ID)
	require.True(t, ok)
	assert.Equal(t, 0.5, x)
	assert.Equal(t, 0.0, y)
}

func TestStepKeepsBodiesApartAndInside(t *testing.T) {
	a, cfg := newTestArena(t)
	sampler := placement.NewSampler()
	rng := placement.NewRandomSource(3)
	require.NoError(t, sampler.PlaceAll(a.Agents(), rng, a.TryPlace))

	x0, y0, _ := a.PreyPosition(cfg.PreyID)
	for i := 0; i < 500; i++ {
		a.Step()
	}
	assert.Equal(t, 500, a.Tick())

	x1, y1, ok := a.PreyPosition(cfg.PreyID)
	require.True(t, ok)
	assert.False(t, x0 == x1 && y0 == y1, "prey never moved")

	agents := a.Agents()
	limit := cfg.HalfSize - cfg.BodyRadius
	for i, ai := range agents {
		xi, yi, _ := a.PreyPosition(ai.ID)
		assert.LessOrEqual(t, math.Abs(xi), limit+1e-9)
		assert.LessOrEqual(t, math.Abs(yi), limit+1e-9)
		for _, aj := range agents[i+1:] {
			xj, yj, _ := a.PreyPosition(aj.ID)
			assert.GreaterOrEqual(t, math.Hypot(xi-xj, yi-yj), 2*cfg.BodyRadius-1e-9,
				"%s overlaps %s", ai.ID, aj.ID)
		}
	}
}

func TestArenaDrivesLoop(t *testing.T) {
	ctx := context.Background()
	cfg := config.Defaults()
	cfg.Output = filepath.Join(t.TempDir(), "output.csv")
	cfg.Run.Seed = 11
	cfg.Run.MaxSteps = 300

	a := New(cfg.Arena, int64(cfg.Run.Seed))
	l := loop.New(a, loop.Options{})
	require.NoError(t, l.Init(ctx, cfg))

	for !l.Done() {
		require.NoError(t, l.PreStep())
		a.Step()
		_, err := l.PostStep(ctx)
		require.NoError(t, err)
	}

	summary, err := l.PostExperiment(ctx)
	require.NoError(t, err)
	assert.Equal(t, 300, summary.Steps)

	records := l.Log().Records()
	for i := 1; i < len(records); i++ {
		d := records[i].Cumulative - records[i-1].Cumulative
		assert.True(t, d == 0 || d == 1, "step %d: cumulative jumped by %d", i, d)
		assert.Equal(t, i, records[i].Step)
	}
	for _, r := range records[:100] {
		assert.False(t, bool(r.Trapped))
	}
}

func TestSpatialGridQuery(t *testing.T) {
	a, _ := newTestArena(t)
	agents := a.Agents()
	require.True(t, a.TryPlace(agents[0], placement.Pose{X: -4.5, Y: -4.5}))
	require.True(t, a.TryPlace(agents[1], placement.Pose{X: -4.2, Y: -4.5}))
	require.True(t, a.TryPlace(agents[2], placement.Pose{X: 4.5, Y: 4.5}))
	a.rebuildGrid()

	got := a.grid.QueryRadiusInto(nil, -4.5, -4.5, 0.5, a.byID[agents[0].ID], a.posMap)
	require.Len(t, got, 1)
	assert.Equal(t, a.byID[agents[1].ID], got[0].E)
	assert.InDelta(t, 0.3, got[0].DX, 1e-12)
	assert.InDelta(t, 0.09, got[0].DistSq, 1e-12)
}

package colony

import (
	"context"
	"io"
	"log/slog"
	"math/rand"
	"testing"

	"github.com/pthm-cable/forage/components"
	"github.com/pthm-cable/forage/config"
	"github.com/pthm-cable/forage/systems"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type testOpts struct {
	seed   int64
	params map[string]float64
	bus    systems.BusMode
	linear bool
}

func newTestColony(t *testing.T, o testOpts) (*Colony, *config.Colony) {
	t.Helper()
	cfg := config.NewColony("test", config.NewMemoryStore(), quietLogger())
	if len(o.params) > 0 {
		if err := cfg.Apply(context.Background(), o.params); err != nil {
			t.Fatalf("Apply: %v", err)
		}
	}
	c := New("test", cfg, Options{
		Rng:        rand.New(rand.NewSource(o.seed)),
		Logger:     quietLogger(),
		BusMode:    o.bus,
		LinearScan: o.linear,
	})
	return c, cfg
}

func busyParams() map[string]float64 {
	return map[string]float64{
		config.KeyNumberOfRobots:      200,
		config.KeyNumberOfSources:     3,
		config.KeyNumberOfStorages:    2,
		config.KeySourceAmount:        10,
		config.KeyStorageAmount:       10,
		config.KeySourceSpeed:         0.5,
		config.KeyNodeRotationJitter:  0.2,
		config.KeyRobotRotationJitter: 0.3,
		config.KeyRobotSpeedJitter:    0.4,
		config.KeyRobotSpeed:          3,
		config.KeyReceiverRadius:      40,
	}
}

func TestTickCreatesConfiguredPopulation(t *testing.T) {
	c, _ := newTestColony(t, testOpts{seed: 1})
	c.Tick(800, 600)

	if got := len(c.Robots()); got != 100 {
		t.Errorf("robots = %d, want 100", got)
	}
	if len(c.Sources()) != 1 || len(c.Storages()) != 1 {
		t.Errorf("nodes = %d/%d, want 1/1", len(c.Sources()), len(c.Storages()))
	}
	if c.Sources()[0].Capacity != 100 || c.Storages()[0].Amount > 1 {
		t.Errorf("source %+v storage %+v", c.Sources()[0], c.Storages()[0])
	}
	if c.TickCount() != 1 {
		t.Errorf("TickCount = %d", c.TickCount())
	}
}

func TestDeterministicReplay(t *testing.T) {
	for _, bus := range []systems.BusMode{systems.BusSequential, systems.BusDoubleBuffered} {
		t.Run(bus.String(), func(t *testing.T) {
			a, _ := newTestColony(t, testOpts{seed: 42, params: busyParams(), bus: bus})
			b, _ := newTestColony(t, testOpts{seed: 42, params: busyParams(), bus: bus})

			for tick := 0; tick < 300; tick++ {
				a.Tick(640, 480)
				b.Tick(640, 480)
				if !a.Frame().Equal(b.Frame()) {
					t.Fatalf("runs diverged at tick %d", tick)
				}
			}
			if a.Counters().EmptiedSources == 0 && a.Counters().FilledStorages == 0 {
				t.Log("no renewals happened; replay covered motion only")
			}
		})
	}
}

func TestGridMatchesLinearScan(t *testing.T) {
	grid, _ := newTestColony(t, testOpts{seed: 7, params: busyParams()})
	linear, _ := newTestColony(t, testOpts{seed: 7, params: busyParams(), linear: true})

	for tick := 0; tick < 200; tick++ {
		grid.Tick(500, 500)
		linear.Tick(500, 500)
		if !grid.Frame().Equal(linear.Frame()) {
			t.Fatalf("grid and linear scan diverged at tick %d", tick)
		}
	}
}

func TestInvariantsHoldEveryTick(t *testing.T) {
	c, _ := newTestColony(t, testOpts{seed: 3, params: busyParams()})
	const w, h = 600.0, 400.0

	var prevSources, prevStorages []components.Node
	var prevEmptied, prevFilled uint64

	for tick := 0; tick < 400; tick++ {
		c.Tick(w, h)
		params := c.Params()

		for _, r := range c.Robots() {
			l := r.Location
			if l.X < params.RobotRadius || l.X > w-params.RobotRadius || l.Y < params.RobotRadius || l.Y > h-params.RobotRadius {
				t.Fatalf("tick %d: robot %d out of bounds at (%v, %v)", tick, r.ID, l.X, l.Y)
			}
			if l.Heading < 0 || l.Heading >= components.TwoPi {
				t.Fatalf("tick %d: heading %v", tick, l.Heading)
			}
		}

		sources := make([]components.Node, 0, len(c.sources))
		for _, e := range c.sources {
			sources = append(sources, *c.nodeMap.Get(e))
		}
		renewed := c.Counters().EmptiedSources != prevEmptied
		if prevSources != nil && !renewed {
			for i := range sources {
				if sources[i].Amount > prevSources[i].Amount {
					t.Fatalf("tick %d: source %d grew from %d to %d without renewal", tick, i, prevSources[i].Amount, sources[i].Amount)
				}
			}
		}
		for _, n := range sources {
			if n.Amount < 0 || n.Amount > n.Capacity {
				t.Fatalf("tick %d: source amount %d outside [0, %d]", tick, n.Amount, n.Capacity)
			}
		}

		storages := make([]components.Node, 0, len(c.storages))
		for _, e := range c.storages {
			storages = append(storages, *c.nodeMap.Get(e))
		}
		filled := c.Counters().FilledStorages != prevFilled
		if prevStorages != nil && !filled {
			for i := range storages {
				if storages[i].Amount < prevStorages[i].Amount {
					t.Fatalf("tick %d: storage %d shrank from %d to %d without renewal", tick, i, prevStorages[i].Amount, storages[i].Amount)
				}
			}
		}
		for _, n := range storages {
			if n.Amount < 0 || n.Amount > n.Capacity {
				t.Fatalf("tick %d: storage amount %d outside [0, %d]", tick, n.Amount, n.Capacity)
			}
		}

		prevSources, prevStorages = sources, storages
		prevEmptied, prevFilled = c.Counters().EmptiedSources, c.Counters().FilledStorages
	}
}

// assertFreshLocation checks that a renewed node left its old spot and sits
// fully inside the field.
func assertFreshLocation(t *testing.T, got, old components.Location, radius, w, h float64) {
	t.Helper()
	if got.X == old.X && got.Y == old.Y {
		t.Errorf("renewed node kept its old location %+v", old)
	}
	if got.X < radius || got.X > w-radius || got.Y < radius || got.Y > h-radius {
		t.Errorf("renewed node at (%v, %v) outside [%v, %v]x[%v, %v]", got.X, got.Y, radius, w-radius, radius, h-radius)
	}
}

func TestRenewalScenario(t *testing.T) {
	c, _ := newTestColony(t, testOpts{seed: 5, params: map[string]float64{
		config.KeyNumberOfRobots: 10,
		config.KeySourceAmount:   50,
	}})
	c.Tick(1000, 1000)

	src := c.sources[0]
	srcLoc := components.Location{X: 200, Y: 200}
	*c.locMap.Get(src) = srcLoc
	*c.locMap.Get(c.storages[0]) = components.Location{X: 800, Y: 800}
	c.nodeMap.Get(src).Amount = 1

	// Only robot 0 is empty-handed, and it stands on the source.
	for i, e := range c.robots {
		r := c.robotMap.Get(e)
		r.Carrying = i != 0
	}
	*c.locMap.Get(c.robots[0]) = srcLoc

	c.Tick(1000, 1000)

	if got := c.Counters().EmptiedSources; got != 1 {
		t.Fatalf("EmptiedSources = %d, want 1", got)
	}
	if c.sources[0] == src {
		t.Error("empty source entity should be replaced")
	}
	fresh := c.Sources()[0]
	if fresh.Amount != 50 || fresh.Capacity != 50 {
		t.Errorf("fresh source = %+v, want amount 50", fresh)
	}
	assertFreshLocation(t, fresh.Location, srcLoc, c.Params().SourceRadius, 1000, 1000)
	if !c.Robots()[0].Carrying {
		t.Error("robot 0 should carry after pickup")
	}

	c.Tick(1000, 1000)
	if got := c.Counters().EmptiedSources; got != 1 {
		t.Errorf("EmptiedSources = %d after a quiet tick, want still 1", got)
	}
}

func TestStorageRenewal(t *testing.T) {
	c, _ := newTestColony(t, testOpts{seed: 6, params: map[string]float64{
		config.KeyNumberOfRobots: 10,
		config.KeyStorageAmount:  20,
	}})
	c.Tick(1000, 1000)

	st := c.storages[0]
	stLoc := components.Location{X: 800, Y: 800}
	*c.locMap.Get(st) = stLoc
	*c.locMap.Get(c.sources[0]) = components.Location{X: 200, Y: 200}
	c.nodeMap.Get(st).Amount = 19
	for i, e := range c.robots {
		c.robotMap.Get(e).Carrying = i == 0
	}
	*c.locMap.Get(c.robots[0]) = stLoc

	c.Tick(1000, 1000)

	if got := c.Counters().FilledStorages; got != 1 {
		t.Fatalf("FilledStorages = %d, want 1", got)
	}
	if c.storages[0] == st {
		t.Error("full storage entity should be replaced")
	}
	fresh := c.Storages()[0]
	if fresh.Amount != 0 || fresh.Capacity != 20 {
		t.Errorf("fresh storage = %+v", fresh)
	}
	assertFreshLocation(t, fresh.Location, stLoc, c.Params().StorageRadius, 1000, 1000)
}

func TestFieldShrinkPullsEverythingInside(t *testing.T) {
	c, _ := newTestColony(t, testOpts{seed: 12, params: busyParams()})
	for i := 0; i < 5; i++ {
		c.Tick(1000, 1000)
	}

	const w, h = 100.0, 80.0
	c.Tick(w, h)

	inside := func(l components.Location, r float64) bool {
		return l.X >= r && l.X <= w-r && l.Y >= r && l.Y <= h-r
	}
	for _, r := range c.Robots() {
		if !inside(r.Location, c.Params().RobotRadius) {
			t.Errorf("robot %d at (%v, %v) after shrink", r.ID, r.Location.X, r.Location.Y)
		}
	}
	for _, n := range append(c.Sources(), c.Storages()...) {
		if !inside(n.Location, n.Radius) {
			t.Errorf("%v node at (%v, %v) after shrink", n.Role, n.Location.X, n.Location.Y)
		}
	}
}

func TestSequentialPartialVisibility(t *testing.T) {
	tests := []struct {
		bus        systems.BusMode
		wantRobot1 float64
	}{
		// Robot 1 hears robot 0's broadcast of this tick.
		{systems.BusSequential, 10},
		// Robot 1 only hears robot 0's previous broadcast.
		{systems.BusDoubleBuffered, 20},
	}

	for _, tt := range tests {
		t.Run(tt.bus.String(), func(t *testing.T) {
			c, _ := newTestColony(t, testOpts{seed: 11, bus: tt.bus, params: map[string]float64{
				config.KeyNumberOfRobots: 10,
				config.KeyRobotSpeed:     0,
			}})
			c.Tick(1000, 1000)

			*c.locMap.Get(c.sources[0]) = components.Location{X: 900, Y: 900}
			*c.locMap.Get(c.storages[0]) = components.Location{X: 900, Y: 100}
			for i, e := range c.robots {
				// Robots 0 and 1 are neighbours, the rest are far from
				// them and from each other.
				loc := components.Location{X: 100 + 10*float64(min(i, 1)), Y: 100}
				if i > 1 {
					loc = components.Location{X: 50 + 100*float64(i), Y: 500}
				}
				*c.locMap.Get(e) = loc
				r := c.robotMap.Get(e)
				r.Carrying = false
				r.DistanceToStorage = components.InitialDistanceEstimate
			}
			c.robotMap.Get(c.robots[0]).DistanceToSource = 10
			c.robotMap.Get(c.robots[1]).DistanceToSource = 20

			c.Tick(1000, 1000)

			robots := c.Robots()
			// Robot 0 reads robot 1's broadcast of the previous tick in
			// both modes, which still advertised the initial estimate.
			if robots[0].DistanceToSource != 10 {
				t.Errorf("robot 0 source estimate = %v, want 10", robots[0].DistanceToSource)
			}
			if robots[1].DistanceToSource != tt.wantRobot1 {
				t.Errorf("robot 1 source estimate = %v, want %v", robots[1].DistanceToSource, tt.wantRobot1)
			}
		})
	}
}

func TestOutOfRangeRobotsNeverAdopt(t *testing.T) {
	c, _ := newTestColony(t, testOpts{seed: 8, params: map[string]float64{
		config.KeyNumberOfRobots: 10,
		config.KeyRobotSpeed:     0,
	}})
	c.Tick(1000, 1000)

	positions := []components.Location{
		{X: 500, Y: 500}, // on the source
		{X: 520, Y: 500}, // in range of robot 0 only
		{X: 100, Y: 100}, {X: 300, Y: 100}, {X: 700, Y: 100}, {X: 900, Y: 100},
		{X: 100, Y: 900}, {X: 300, Y: 900}, {X: 700, Y: 900}, {X: 900, Y: 900},
	}
	for i, e := range c.robots {
		*c.locMap.Get(e) = positions[i]
		r := c.robotMap.Get(e)
		r.Carrying = false
		r.DistanceToSource = components.InitialDistanceEstimate
		r.DistanceToStorage = components.InitialDistanceEstimate
	}
	*c.locMap.Get(c.sources[0]) = components.Location{X: 500, Y: 500}
	*c.locMap.Get(c.storages[0]) = components.Location{X: 900, Y: 500}

	for i := 0; i < 50; i++ {
		c.Tick(1000, 1000)
	}

	robots := c.Robots()
	if robots[1].DistanceToSource != 0 {
		t.Errorf("in-range robot estimate = %v, want 0 from its neighbour", robots[1].DistanceToSource)
	}
	for _, r := range robots[2:] {
		if r.DistanceToSource != components.InitialDistanceEstimate {
			t.Errorf("isolated robot %d adopted %v", r.ID, r.DistanceToSource)
		}
	}
	if got := c.RobotsWithin(0, 30); len(got) != 1 || got[0] != 1 {
		t.Errorf("RobotsWithin(0, 30) = %v, want [1]", got)
	}
	if got := c.NodesWithin(positions[0], 15, components.RoleSource); len(got) != 1 {
		t.Errorf("NodesWithin = %v, want the source", got)
	}
	if got := c.NodesWithin(positions[2], 15, components.RoleStorage); len(got) != 0 {
		t.Errorf("NodesWithin = %v, want none", got)
	}
}

func TestResizeKeepsSurvivors(t *testing.T) {
	ctx := context.Background()
	c, cfg := newTestColony(t, testOpts{seed: 9, params: map[string]float64{config.KeyNumberOfRobots: 100}})
	for i := 0; i < 20; i++ {
		c.Tick(500, 500)
	}
	before := c.Robots()

	if _, err := cfg.SetValue(ctx, config.KeyNumberOfRobots, 40); err != nil {
		t.Fatal(err)
	}
	c.Tick(500, 500)
	after := c.Robots()
	if len(after) != 40 {
		t.Fatalf("robots = %d, want 40", len(after))
	}
	for i := range after {
		if after[i].ID != before[i].ID {
			t.Fatalf("slot %d changed robot %d -> %d", i, before[i].ID, after[i].ID)
		}
	}
	if c.bus.Len() > 40 {
		t.Errorf("bus kept %d messages for 40 robots", c.bus.Len())
	}

	if _, err := cfg.SetValue(ctx, config.KeyNumberOfRobots, 60); err != nil {
		t.Fatal(err)
	}
	c.Tick(500, 500)
	grown := c.Robots()
	if len(grown) != 60 {
		t.Fatalf("robots = %d, want 60", len(grown))
	}
	for _, r := range grown[40:] {
		if r.ID < 100 {
			t.Errorf("regrown slot reused robot id %d", r.ID)
		}
	}

	if _, err := cfg.SetValue(ctx, config.KeyNumberOfSources, 4); err != nil {
		t.Fatal(err)
	}
	c.Tick(500, 500)
	if len(c.Sources()) != 4 {
		t.Errorf("sources = %d, want 4", len(c.Sources()))
	}
}

func TestFlushStats(t *testing.T) {
	cfg := config.NewColony("s", config.NewMemoryStore(), quietLogger())
	c := New("s", cfg, Options{Rng: rand.New(rand.NewSource(1)), Logger: quietLogger(), StatsWindow: 10})

	for i := 0; i < 9; i++ {
		c.Tick(400, 400)
		if _, _, ok := c.FlushStats(); ok {
			t.Fatalf("flushed early at tick %d", c.TickCount())
		}
	}
	c.Tick(400, 400)
	stats, _, ok := c.FlushStats()
	if !ok {
		t.Fatal("expected a window at tick 10")
	}
	if stats.Robots != 100 || stats.WindowEndTick != 10 || stats.Colony != "s" {
		t.Errorf("stats = %+v", stats)
	}
	if stats.MeanHeard < 0 {
		t.Errorf("MeanHeard = %v", stats.MeanHeard)
	}
}

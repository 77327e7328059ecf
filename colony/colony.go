// Package colony runs one foraging colony per simulated field: robots,
// sources and storages stored in an ECS world and advanced one tick at a
// time.
package colony

import (
	"log/slog"
	"math/rand"

	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/forage/components"
	"github.com/pthm-cable/forage/config"
	"github.com/pthm-cable/forage/systems"
	"github.com/pthm-cable/forage/telemetry"
)

// Options configures a Colony. The zero value is usable.
type Options struct {
	// Rng drives every random draw of the colony. Defaults to seed 1.
	Rng    *rand.Rand
	Logger *slog.Logger

	BusMode    systems.BusMode
	LinearScan bool // neighbour queries without the spatial grid

	StatsWindow int32                    // ticks per stats window (default 600)
	Perf        *telemetry.PerfCollector // optional phase timing
}

// Colony owns the robots and nodes of one named colony.
type Colony struct {
	name   string
	cfg    *config.Colony
	logger *slog.Logger
	rng    *rand.Rand
	perf   *telemetry.PerfCollector

	// ECS
	world       *ecs.World
	robotMapper *ecs.Map2[components.Location, components.Robot]
	nodeMapper  *ecs.Map2[components.Location, components.Node]
	locMap      *ecs.Map1[components.Location]
	robotMap    *ecs.Map1[components.Robot]
	nodeMap     *ecs.Map1[components.Node]

	// Entities in iteration order. A robot's index is its bus slot.
	robots   []ecs.Entity
	sources  []ecs.Entity
	storages []ecs.Entity

	// Component pointers for the current tick, rebuilt after structural changes.
	robotLocs   []*components.Location
	robotStates []*components.Robot

	bus       *systems.MessageBus
	grid      *systems.SpatialGrid
	gridReady bool
	linear    bool
	forage    *systems.ForagingSystem
	queryBuf  []int

	params     config.Params // snapshot of the current tick
	applied    config.Params // snapshot the counts were last reconciled to
	reconciled bool
	width      float64
	height     float64

	tick           int32
	nextID         uint32
	emptiedSources uint64
	filledStorages uint64
	breachLogged   bool

	collector *telemetry.Collector
	trips     *telemetry.TripTracker
	bookmarks *telemetry.BookmarkDetector
}

// New creates an empty colony. Robots and nodes are created on the first
// Tick from the configuration snapshot.
func New(name string, cfg *config.Colony, opts Options) *Colony {
	if opts.Rng == nil {
		opts.Rng = rand.New(rand.NewSource(1))
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.StatsWindow <= 0 {
		opts.StatsWindow = 600
	}

	world := ecs.NewWorld()

	return &Colony{
		name:   name,
		cfg:    cfg,
		logger: opts.Logger.With("colony", name),
		rng:    opts.Rng,
		perf:   opts.Perf,

		world:       world,
		robotMapper: ecs.NewMap2[components.Location, components.Robot](world),
		nodeMapper:  ecs.NewMap2[components.Location, components.Node](world),
		locMap:      ecs.NewMap1[components.Location](world),
		robotMap:    ecs.NewMap1[components.Robot](world),
		nodeMap:     ecs.NewMap1[components.Node](world),

		bus:    systems.NewMessageBus(opts.BusMode, 0),
		grid:   systems.NewSpatialGrid(1, 1, 1),
		linear: opts.LinearScan,
		forage: systems.NewForagingSystem(),

		collector: telemetry.NewCollector(opts.StatsWindow),
		trips:     telemetry.NewTripTracker(),
		bookmarks: telemetry.NewBookmarkDetector(10),
	}
}

// Name returns the colony name.
func (c *Colony) Name() string {
	return c.name
}

// Params returns the configuration snapshot of the last tick.
func (c *Colony) Params() config.Params {
	return c.params
}

// TickCount returns the number of completed ticks.
func (c *Colony) TickCount() int32 {
	return c.tick
}

// Tick advances the colony by one step on a field of the given size:
// reconcile sizes, run every robot in index order, drift the nodes, then
// renew exhausted ones.
func (c *Colony) Tick(width, height float64) {
	c.startPhase(telemetry.PhaseReconcile)
	p := c.cfg.Snapshot()
	c.params = p
	c.width, c.height = width, height
	if !c.reconciled || !p.SameCounts(c.applied) {
		c.reconcile(p)
		c.applied = p
		c.reconciled = true
	}
	c.refreshRobotCache()

	c.startPhase(telemetry.PhaseGrid)
	c.rebuildGrid(p.ReceiverRadius)
	c.bus.BeginTick()

	c.startPhase(telemetry.PhaseRobots)
	c.runRobots(p)

	c.startPhase(telemetry.PhaseNodes)
	c.moveNodes(p)

	c.startPhase(telemetry.PhaseRenewal)
	c.renewNodes(p)

	c.tick++
}

func (c *Colony) startPhase(phase string) {
	if c.perf != nil {
		c.perf.StartPhase(phase)
	}
}

func (c *Colony) stepParams(p config.Params) systems.StepParams {
	return systems.StepParams{
		Width:          c.width,
		Height:         c.height,
		RobotRadius:    p.RobotRadius,
		RobotSpeed:     p.RobotSpeed,
		RotationJitter: p.RobotRotationJitter,
		SpeedJitter:    p.RobotSpeedJitter,
		SourceRadius:   p.SourceRadius,
		StorageRadius:  p.StorageRadius,
		ReceiverRadius: p.ReceiverRadius,
		Confidence:     p.SelfConfidentFactor,
	}
}

func (c *Colony) runRobots(p config.Params) {
	sp := c.stepParams(p)
	env := environment{c}

	for i := range c.robots {
		r := c.robotStates[i]
		loc := c.robotLocs[i]

		res := c.forage.Step(env, r, loc, sp, c.rng)
		if !c.linear {
			c.grid.Move(i, loc.X, loc.Y)
		}
		c.record(r, res)
	}
}

func (c *Colony) record(r *components.Robot, res systems.StepResult) {
	c.collector.RecordStep(res)
	if res.PickedUp {
		c.trips.Pickup(r.ID, c.tick)
	}
	if res.Delivered {
		if ticks, ok := c.trips.Deliver(r.ID, c.tick); ok {
			c.collector.RecordTrip(ticks)
		}
	}
	if res.Breach && !c.breachLogged {
		c.breachLogged = true
		c.logger.Warn("node counter breach clamped",
			"tick", c.tick,
			"robot", r.ID,
		)
	}
}

func (c *Colony) moveNodes(p config.Params) {
	for _, e := range c.sources {
		c.locMap.Get(e).MoveForward(p.SourceSpeed, p.SourceRadius, c.width, c.height, p.NodeRotationJitter, c.rng)
	}
	for _, e := range c.storages {
		c.locMap.Get(e).MoveForward(p.StorageSpeed, p.StorageRadius, c.width, c.height, p.NodeRotationJitter, c.rng)
	}
}

// renewNodes replaces every empty source and full storage in place with a
// fresh node at a random location.
func (c *Colony) renewNodes(p config.Params) {
	for i, e := range c.sources {
		if !c.nodeMap.Get(e).IsEmpty() {
			continue
		}
		c.world.RemoveEntity(e)
		c.sources[i] = c.newSource(p)
		c.emptiedSources++
		c.collector.RecordRenewal()
	}
	for i, e := range c.storages {
		if !c.nodeMap.Get(e).IsFull() {
			continue
		}
		c.world.RemoveEntity(e)
		c.storages[i] = c.newStorage(p)
		c.filledStorages++
		c.collector.RecordRenewal()
	}
}

// FlushStats closes the current stats window when it is due and returns
// its stats and any bookmarks it triggered.
func (c *Colony) FlushStats() (telemetry.WindowStats, []telemetry.Bookmark, bool) {
	if !c.collector.ShouldFlush(c.tick) {
		return telemetry.WindowStats{}, nil, false
	}

	sample := telemetry.Sample{
		Colony:         c.name,
		Robots:         len(c.robots),
		EmptiedSources: c.emptiedSources,
		FilledStorages: c.filledStorages,
		GoalDistances:  make([]float64, 0, len(c.robots)),
	}
	for _, e := range c.robots {
		r := c.robotMap.Get(e)
		if r.Carrying {
			sample.Carrying++
			sample.GoalDistances = append(sample.GoalDistances, r.DistanceToStorage)
		} else {
			sample.GoalDistances = append(sample.GoalDistances, r.DistanceToSource)
		}
	}

	stats := c.collector.Flush(c.tick, sample)
	return stats, c.bookmarks.Check(stats), true
}

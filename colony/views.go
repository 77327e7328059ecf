package colony

import (
	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/forage/components"
	"github.com/pthm-cable/forage/telemetry"
)

// RobotView is a read-only copy of one robot for renderers.
type RobotView struct {
	ID       uint32
	Location components.Location
	Carrying bool

	Target    components.Location
	HasTarget bool

	DistanceToSource  float64
	DistanceToStorage float64
}

// NodeView is a read-only copy of one source or storage.
type NodeView struct {
	Role      components.Role
	Location  components.Location
	Radius    float64
	Amount    int
	Capacity  int
	FillRatio float64
}

// Counters holds the lifetime renewal counters.
type Counters struct {
	Ticks          int32
	EmptiedSources uint64
	FilledStorages uint64
}

// Robots returns the robots in iteration order.
func (c *Colony) Robots() []RobotView {
	out := make([]RobotView, len(c.robots))
	for i, e := range c.robots {
		r := c.robotMap.Get(e)
		out[i] = RobotView{
			ID:                r.ID,
			Location:          *c.locMap.Get(e),
			Carrying:          r.Carrying,
			Target:            r.Target,
			HasTarget:         r.HasTarget,
			DistanceToSource:  r.DistanceToSource,
			DistanceToStorage: r.DistanceToStorage,
		}
	}
	return out
}

// Sources returns the sources in colony order.
func (c *Colony) Sources() []NodeView {
	return c.nodeViews(c.sources, c.params.SourceRadius)
}

// Storages returns the storages in colony order.
func (c *Colony) Storages() []NodeView {
	return c.nodeViews(c.storages, c.params.StorageRadius)
}

func (c *Colony) nodeViews(nodes []ecs.Entity, radius float64) []NodeView {
	out := make([]NodeView, len(nodes))
	for i, e := range nodes {
		n := c.nodeMap.Get(e)
		out[i] = NodeView{
			Role:      n.Role,
			Location:  *c.locMap.Get(e),
			Radius:    radius,
			Amount:    n.Amount,
			Capacity:  n.Capacity,
			FillRatio: n.FillRatio(),
		}
	}
	return out
}

// Counters returns the lifetime counters.
func (c *Colony) Counters() Counters {
	return Counters{
		Ticks:          c.tick,
		EmptiedSources: c.emptiedSources,
		FilledStorages: c.filledStorages,
	}
}

// Frame captures the colony's observable state for traces and observers.
func (c *Colony) Frame() *telemetry.Frame {
	f := &telemetry.Frame{
		Version:        telemetry.FrameVersion,
		Colony:         c.name,
		Tick:           c.tick,
		Width:          c.width,
		Height:         c.height,
		Robots:         make([]telemetry.RobotState, 0, len(c.robots)),
		EmptiedSources: c.emptiedSources,
		FilledStorages: c.filledStorages,
		RobotColor:     c.params.RobotColor,
		ResourceColor:  c.params.ResourceColor,
	}
	for _, r := range c.Robots() {
		rs := telemetry.RobotState{
			ID:                r.ID,
			X:                 r.Location.X,
			Y:                 r.Location.Y,
			Heading:           r.Location.Heading,
			Carrying:          r.Carrying,
			HasTarget:         r.HasTarget,
			DistanceToSource:  r.DistanceToSource,
			DistanceToStorage: r.DistanceToStorage,
		}
		if r.HasTarget {
			rs.TargetX, rs.TargetY = r.Target.X, r.Target.Y
		}
		f.Robots = append(f.Robots, rs)
	}
	f.Sources = nodeStates(c.Sources())
	f.Storages = nodeStates(c.Storages())
	return f
}

func nodeStates(views []NodeView) []telemetry.NodeState {
	out := make([]telemetry.NodeState, len(views))
	for i, v := range views {
		out[i] = telemetry.NodeState{
			X:        v.Location.X,
			Y:        v.Location.Y,
			Heading:  v.Location.Heading,
			Radius:   v.Radius,
			Amount:   v.Amount,
			Capacity: v.Capacity,
			Fill:     v.FillRatio,
		}
	}
	return out
}

package colony

import (
	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/forage/components"
	"github.com/pthm-cable/forage/systems"
)

// environment is the colony as seen by one robot update.
type environment struct {
	c *Colony
}

var _ systems.Environment = environment{}

func (e environment) Emit(slot int, msg components.Message) {
	e.c.bus.Emit(slot, msg)
}

func (e environment) Receive(dst []components.Message, slot int, at components.Location, radius float64) []components.Message {
	c := e.c
	c.queryBuf = c.neighbours(c.queryBuf[:0], slot, at, radius)
	for _, j := range c.queryBuf {
		if msg, ok := c.bus.Message(j); ok {
			dst = append(dst, msg)
		}
	}
	return dst
}

func (e environment) ReachedNode(at components.Location, reach float64, role components.Role) *components.Node {
	c := e.c
	for _, ent := range c.nodesOf(role) {
		if at.Distance(*c.locMap.Get(ent)) <= reach {
			return c.nodeMap.Get(ent)
		}
	}
	return nil
}

func (c *Colony) robotPos(slot int) components.Location {
	return *c.robotLocs[slot]
}

// neighbours appends the slots of robots other than slot within radius of
// at, in ascending slot order.
func (c *Colony) neighbours(dst []int, slot int, at components.Location, radius float64) []int {
	if c.linear || !c.gridReady {
		return systems.LinearQueryInto(dst, len(c.robotLocs), at.X, at.Y, radius, slot, c.robotPos)
	}
	return c.grid.QueryRadiusInto(dst, at.X, at.Y, radius, slot, c.robotPos)
}

func (c *Colony) nodesOf(role components.Role) []ecs.Entity {
	if role == components.RoleSource {
		return c.sources
	}
	return c.storages
}

// RobotsWithin returns the indices of all other robots within radius of
// robot slot, in ascending order.
func (c *Colony) RobotsWithin(slot int, radius float64) []int {
	if slot < 0 || slot >= len(c.robotLocs) {
		return nil
	}
	return c.neighbours(nil, slot, *c.robotLocs[slot], radius)
}

// NodesWithin returns the indices of the sources or storages within radius
// of at, in colony order.
func (c *Colony) NodesWithin(at components.Location, radius float64, role components.Role) []int {
	var out []int
	for i, ent := range c.nodesOf(role) {
		if at.Distance(*c.locMap.Get(ent)) <= radius {
			out = append(out, i)
		}
	}
	return out
}

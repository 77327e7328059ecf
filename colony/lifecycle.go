package colony

import (
	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/forage/components"
	"github.com/pthm-cable/forage/config"
)

// reconcile resizes robots, sources and storages to the configured counts.
// Entries below the new count are kept untouched, missing ones are created
// fresh and the tail is dropped. Dropped robots lose their bus slot.
func (c *Colony) reconcile(p config.Params) {
	before := [3]int{len(c.robots), len(c.sources), len(c.storages)}

	if n := p.NumberOfRobots; n < len(c.robots) {
		for _, e := range c.robots[n:] {
			c.trips.Forget(c.robotMap.Get(e).ID)
			c.world.RemoveEntity(e)
		}
		c.robots = c.robots[:n]
	} else {
		for len(c.robots) < n {
			c.robots = append(c.robots, c.newRobot(p, len(c.robots)))
		}
	}
	c.bus.Resize(len(c.robots))

	c.sources = c.resizeNodes(c.sources, p.NumberOfSources, func() ecs.Entity { return c.newSource(p) })
	c.storages = c.resizeNodes(c.storages, p.NumberOfStorages, func() ecs.Entity { return c.newStorage(p) })

	c.logger.Debug("reconciled",
		"tick", c.tick,
		"bus", c.bus.Mode().String(),
		"robots", len(c.robots),
		"sources", len(c.sources),
		"storages", len(c.storages),
		"robots_before", before[0],
		"sources_before", before[1],
		"storages_before", before[2],
	)
}

func (c *Colony) resizeNodes(nodes []ecs.Entity, n int, spawn func() ecs.Entity) []ecs.Entity {
	if n < len(nodes) {
		for _, e := range nodes[n:] {
			c.world.RemoveEntity(e)
		}
		return nodes[:n]
	}
	for len(nodes) < n {
		nodes = append(nodes, spawn())
	}
	return nodes
}

// newRobot creates a robot entity at a random location.
func (c *Colony) newRobot(p config.Params, slot int) ecs.Entity {
	id := c.nextID
	c.nextID++

	loc := components.RandomLocation(c.width, c.height, p.RobotRadius, c.rng)
	robot := components.NewRobot(id, slot, c.rng)
	return c.robotMapper.NewEntity(&loc, &robot)
}

// newSource creates a full source at a random location.
func (c *Colony) newSource(p config.Params) ecs.Entity {
	loc := components.RandomLocation(c.width, c.height, p.SourceRadius, c.rng)
	node := components.NewSource(p.SourceAmount)
	return c.nodeMapper.NewEntity(&loc, &node)
}

// newStorage creates an empty storage at a random location.
func (c *Colony) newStorage(p config.Params) ecs.Entity {
	loc := components.RandomLocation(c.width, c.height, p.StorageRadius, c.rng)
	node := components.NewStorage(p.StorageAmount)
	return c.nodeMapper.NewEntity(&loc, &node)
}

// refreshRobotCache resolves robot component pointers for the tick. No
// robot entity is created or removed between this call and the end of the
// robot pass, so the pointers stay valid.
func (c *Colony) refreshRobotCache() {
	c.robotLocs = c.robotLocs[:0]
	c.robotStates = c.robotStates[:0]
	for _, e := range c.robots {
		c.robotLocs = append(c.robotLocs, c.locMap.Get(e))
		c.robotStates = append(c.robotStates, c.robotMap.Get(e))
	}
}

// rebuildGrid re-buckets every robot with cell size equal to the receiver
// radius.
func (c *Colony) rebuildGrid(receiverRadius float64) {
	if c.linear {
		return
	}
	c.grid.Reset(c.width, c.height, receiverRadius)
	for i, loc := range c.robotLocs {
		c.grid.Insert(i, loc.X, loc.Y)
	}
	c.gridReady = true
}

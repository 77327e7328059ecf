package telemetry

import "github.com/pthm-cable/forage/systems"

// Sample is the colony state the caller provides at flush time.
type Sample struct {
	Colony         string
	Robots         int
	Carrying       int
	EmptiedSources uint64
	FilledStorages uint64
	GoalDistances  []float64
}

// Collector accumulates events within tick windows and produces WindowStats.
type Collector struct {
	windowDurationTicks int32

	// Current window tracking
	windowStartTick int32

	// Event counters for current window
	steps          int
	heard          int
	pickups        int
	deliveries     int
	adoptedSource  int
	adoptedStorage int
	renewals       int
	breaches       int
	trips          []float64
}

// NewCollector creates a new stats collector flushing every windowTicks.
func NewCollector(windowTicks int32) *Collector {
	if windowTicks < 1 {
		windowTicks = 1
	}
	return &Collector{windowDurationTicks: windowTicks}
}

// RecordStep records the outcome of one robot update.
func (c *Collector) RecordStep(res systems.StepResult) {
	c.steps++
	c.heard += res.Heard
	if res.PickedUp {
		c.pickups++
	}
	if res.Delivered {
		c.deliveries++
	}
	if res.AdoptedSource {
		c.adoptedSource++
	}
	if res.AdoptedStorage {
		c.adoptedStorage++
	}
	if res.Breach {
		c.breaches++
	}
}

// RecordRenewal records a node replacement.
func (c *Collector) RecordRenewal() {
	c.renewals++
}

// RecordTrip records a completed pickup-to-delivery trip.
func (c *Collector) RecordTrip(ticks int32) {
	c.trips = append(c.trips, float64(ticks))
}

// ShouldFlush returns true if enough ticks have passed to flush the window.
func (c *Collector) ShouldFlush(currentTick int32) bool {
	return currentTick-c.windowStartTick >= c.windowDurationTicks
}

// Flush produces a WindowStats and resets counters for the next window.
func (c *Collector) Flush(currentTick int32, s Sample) WindowStats {
	var carryingFrac, throughput, meanHeard float64
	if s.Robots > 0 {
		carryingFrac = float64(s.Carrying) / float64(s.Robots)
	}
	if span := currentTick - c.windowStartTick; span > 0 {
		throughput = float64(c.deliveries) / float64(span)
	}
	if c.steps > 0 {
		meanHeard = float64(c.heard) / float64(c.steps)
	}

	distMean, distP50, distP90 := ComputeDistribution(s.GoalDistances)
	tripMean, tripP50, tripP90 := ComputeDistribution(c.trips)

	stats := WindowStats{
		WindowStartTick: c.windowStartTick,
		WindowEndTick:   currentTick,
		Colony:          s.Colony,

		Robots:       s.Robots,
		Carrying:     s.Carrying,
		CarryingFrac: carryingFrac,

		Pickups:         c.pickups,
		Deliveries:      c.deliveries,
		Throughput:      throughput,
		AdoptedSource:   c.adoptedSource,
		AdoptedStorage:  c.adoptedStorage,
		MeanHeard:       meanHeard,
		Renewals:        c.renewals,
		CounterBreaches: c.breaches,

		EmptiedSources: s.EmptiedSources,
		FilledStorages: s.FilledStorages,

		GoalDistMean: distMean,
		GoalDistP50:  distP50,
		GoalDistP90:  distP90,

		TripMean: tripMean,
		TripP50:  tripP50,
		TripP90:  tripP90,
	}

	// Reset for next window
	c.windowStartTick = currentTick
	c.steps = 0
	c.heard = 0
	c.pickups = 0
	c.deliveries = 0
	c.adoptedSource = 0
	c.adoptedStorage = 0
	c.renewals = 0
	c.breaches = 0
	c.trips = c.trips[:0]

	return stats
}

// WindowDurationTicks returns the number of ticks per window.
func (c *Collector) WindowDurationTicks() int32 {
	return c.windowDurationTicks
}

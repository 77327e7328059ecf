package components

import "math/rand"

// InitialDistanceEstimate is the belief a fresh robot holds about both node
// kinds before it has arrived anywhere or heard a neighbour.
const InitialDistanceEstimate = 10000.0

// Robot bundles identity and foraging state for one agent.
type Robot struct {
	ID   uint32 // unique for the colony's lifetime
	Slot int    // index in the colony's ordered robot set, used as bus address

	Carrying          bool
	DistanceToSource  float64
	DistanceToStorage float64

	Target    Location // valid only when HasTarget
	HasTarget bool

	// SpeedBias in [0,1) is drawn once at creation and scales the
	// configured speed jitter for this robot.
	SpeedBias float64
}

// NewRobot returns an empty-handed robot with default estimates.
func NewRobot(id uint32, slot int, rng *rand.Rand) Robot {
	return Robot{
		ID:                id,
		Slot:              slot,
		DistanceToSource:  InitialDistanceEstimate,
		DistanceToStorage: InitialDistanceEstimate,
		SpeedBias:         rng.Float64(),
	}
}

// Goal returns the node role the robot is currently seeking.
func (r *Robot) Goal() Role {
	if r.Carrying {
		return RoleStorage
	}
	return RoleSource
}

// Speed returns the robot's per-tick travel distance.
func (r *Robot) Speed(base, speedJitter float64) float64 {
	return base * (1 - speedJitter*r.SpeedBias)
}

// Relax reports whether an advertised candidate distance should replace
// the own estimate. A confidence factor above one makes the robot resist
// marginally better claims.
func Relax(own, candidate, confidence float64) bool {
	return candidate*confidence < own
}

// Message is the single value a robot broadcasts each tick.
type Message struct {
	SenderX           float64 `json:"x"`
	SenderY           float64 `json:"y"`
	DistanceToSource  float64 `json:"source"`
	DistanceToStorage float64 `json:"storage"`
}

// Sender returns the broadcast position as a Location.
func (m Message) Sender() Location {
	return Location{X: m.SenderX, Y: m.SenderY}
}

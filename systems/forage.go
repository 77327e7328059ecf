package systems

import (
	"math"
	"math/rand"

	"github.com/pthm-cable/forage/components"
)

// Environment is what a robot can sense of its colony during its update.
type Environment interface {
	// Emit publishes the robot's broadcast on the colony bus.
	Emit(slot int, msg components.Message)
	// Receive appends the visible messages of other robots within radius.
	Receive(dst []components.Message, slot int, at components.Location, radius float64) []components.Message
	// ReachedNode returns the first node of the role within reach, or nil.
	ReachedNode(at components.Location, reach float64, role components.Role) *components.Node
}

// StepParams holds the configuration values one robot update reads.
type StepParams struct {
	Width, Height float64

	RobotRadius    float64
	RobotSpeed     float64
	RotationJitter float64
	SpeedJitter    float64

	SourceRadius  float64
	StorageRadius float64

	ReceiverRadius float64
	Confidence     float64
}

// StepResult reports what happened to one robot during its update.
type StepResult struct {
	Travel float64 // distance increment of this tick

	ReachedSource  bool
	ReachedStorage bool
	PickedUp       bool
	Delivered      bool

	AdoptedSource  bool
	AdoptedStorage bool

	// Breach is set when a node refused Take or Put. It can only happen if
	// arrival bookkeeping is wrong.
	Breach bool

	Heard int // messages received
}

// ForagingSystem runs the per-robot update: emit, read, arrive, relax,
// age, move.
type ForagingSystem struct {
	inbox []components.Message
}

// NewForagingSystem creates a foraging system.
func NewForagingSystem() *ForagingSystem {
	return &ForagingSystem{inbox: make([]components.Message, 0, 64)}
}

// Step advances one robot by one tick.
func (s *ForagingSystem) Step(env Environment, r *components.Robot, loc *components.Location, p StepParams, rng *rand.Rand) StepResult {
	res := StepResult{Travel: r.Speed(p.RobotSpeed, p.SpeedJitter)}
	inc := res.Travel

	r.HasTarget = false

	// 1. Emit, already accounting for one more step of propagation
	env.Emit(r.Slot, components.Message{
		SenderX:           loc.X,
		SenderY:           loc.Y,
		DistanceToSource:  r.DistanceToSource + inc,
		DistanceToStorage: r.DistanceToStorage + inc,
	})

	// 2. Read
	s.inbox = env.Receive(s.inbox[:0], r.Slot, *loc, p.ReceiverRadius)
	res.Heard = len(s.inbox)

	// 3. Arrive
	if src := env.ReachedNode(*loc, p.RobotRadius+p.SourceRadius, components.RoleSource); src != nil {
		res.ReachedSource = true
		r.DistanceToSource = 0
		if !r.Carrying {
			if !src.Take() {
				res.Breach = true
			}
			r.Carrying = true
			loc.Rotate(math.Pi, rng)
			res.PickedUp = true
		}
	}
	if st := env.ReachedNode(*loc, p.RobotRadius+p.StorageRadius, components.RoleStorage); st != nil {
		res.ReachedStorage = true
		r.DistanceToStorage = 0
		if r.Carrying {
			if !st.Put() {
				res.Breach = true
			}
			r.Carrying = false
			loc.Rotate(math.Pi, rng)
			res.Delivered = true
		}
	}

	// 4. Relax toward the best advertised route
	if bestSrc, bestSt, ok := bestMessages(s.inbox); ok {
		if components.Relax(r.DistanceToSource, bestSrc.DistanceToSource, p.Confidence) {
			r.DistanceToSource = bestSrc.DistanceToSource
			res.AdoptedSource = true
			if r.Goal() == components.RoleSource {
				r.Target, r.HasTarget = bestSrc.Sender(), true
				loc.RotateTowards(r.Target, rng)
			}
		}
		if components.Relax(r.DistanceToStorage, bestSt.DistanceToStorage, p.Confidence) {
			r.DistanceToStorage = bestSt.DistanceToStorage
			res.AdoptedStorage = true
			if r.Goal() == components.RoleStorage {
				r.Target, r.HasTarget = bestSt.Sender(), true
				loc.RotateTowards(r.Target, rng)
			}
		}
	}

	// 5. Age
	r.DistanceToSource += inc
	r.DistanceToStorage += inc

	// 6. Move
	loc.MoveForward(inc, p.RobotRadius, p.Width, p.Height, p.RotationJitter, rng)

	return res
}

// bestMessages returns the messages advertising the smallest source and
// storage distances. Ties keep the earlier message.
func bestMessages(msgs []components.Message) (src, st components.Message, ok bool) {
	if len(msgs) == 0 {
		return src, st, false
	}
	src, st = msgs[0], msgs[0]
	for _, m := range msgs[1:] {
		if m.DistanceToSource < src.DistanceToSource {
			src = m
		}
		if m.DistanceToStorage < st.DistanceToStorage {
			st = m
		}
	}
	return src, st, true
}

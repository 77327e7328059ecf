package systems

import (
	"math"
	"math/rand"
	"testing"

	"github.com/pthm-cable/forage/components"
)

// stubEnv serves a fixed inbox and fixed nodes to a single robot.
type stubEnv struct {
	inbox    []components.Message
	emitted  []components.Message
	nodes    []*components.Node
	nodeLocs []components.Location
}

func (e *stubEnv) Emit(_ int, msg components.Message) {
	e.emitted = append(e.emitted, msg)
}

func (e *stubEnv) Receive(dst []components.Message, _ int, _ components.Location, _ float64) []components.Message {
	return append(dst, e.inbox...)
}

func (e *stubEnv) ReachedNode(at components.Location, reach float64, role components.Role) *components.Node {
	for i, n := range e.nodes {
		if n.Role == role && at.Distance(e.nodeLocs[i]) <= reach {
			return n
		}
	}
	return nil
}

func testParams() StepParams {
	return StepParams{
		Width:          500,
		Height:         500,
		RobotRadius:    5,
		RobotSpeed:     1,
		SourceRadius:   10,
		StorageRadius:  10,
		ReceiverRadius: 30,
		Confidence:     1.25,
	}
}

func newTestRobot(rng *rand.Rand) components.Robot {
	return components.NewRobot(1, 0, rng)
}

func TestStepPickupAtSource(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	src := components.NewSource(5)
	env := &stubEnv{
		nodes:    []*components.Node{&src},
		nodeLocs: []components.Location{{X: 100, Y: 100}},
	}
	r := newTestRobot(rng)
	loc := components.Location{X: 100, Y: 100, Heading: 1}

	p := testParams()
	p.RobotSpeed = 0
	res := NewForagingSystem().Step(env, &r, &loc, p, rng)

	if !res.ReachedSource || !res.PickedUp {
		t.Fatalf("result = %+v, want pickup", res)
	}
	if !r.Carrying {
		t.Error("robot should carry after pickup")
	}
	if r.DistanceToSource != 0 {
		t.Errorf("DistanceToSource = %v, want 0", r.DistanceToSource)
	}
	if src.Amount != 4 {
		t.Errorf("source amount = %d, want 4", src.Amount)
	}
	if turned := components.NormalizeHeading(loc.Heading - 1 - math.Pi); math.Min(turned, components.TwoPi-turned) > 0.002 {
		t.Errorf("heading = %v, want ~1+π", loc.Heading)
	}
}

func TestStepDeliveryAtStorage(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	st := components.NewStorage(3)
	env := &stubEnv{
		nodes:    []*components.Node{&st},
		nodeLocs: []components.Location{{X: 50, Y: 50}},
	}
	r := newTestRobot(rng)
	r.Carrying = true
	loc := components.Location{X: 60, Y: 55}

	res := NewForagingSystem().Step(env, &r, &loc, testParams(), rng)

	if !res.Delivered || r.Carrying {
		t.Fatalf("result = %+v carrying=%v, want delivery", res, r.Carrying)
	}
	if st.Amount != 1 {
		t.Errorf("storage amount = %d, want 1", st.Amount)
	}
	if r.DistanceToStorage != res.Travel {
		t.Errorf("DistanceToStorage = %v, want reset plus %v", r.DistanceToStorage, res.Travel)
	}
}

func TestStepReachingWrongNodeOnlyResetsEstimate(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	src := components.NewSource(5)
	env := &stubEnv{
		nodes:    []*components.Node{&src},
		nodeLocs: []components.Location{{X: 100, Y: 100}},
	}
	r := newTestRobot(rng)
	r.Carrying = true
	loc := components.Location{X: 100, Y: 100}

	p := testParams()
	p.RobotSpeed = 0
	res := NewForagingSystem().Step(env, &r, &loc, p, rng)

	if res.PickedUp || !r.Carrying {
		t.Error("loaded robot must not pick up again")
	}
	if r.DistanceToSource != 0 || src.Amount != 5 {
		t.Errorf("DistanceToSource = %v, amount = %d", r.DistanceToSource, src.Amount)
	}
}

func TestStepEmitsBeforeMoving(t *testing.T) {
	rng := rand.New(rand.NewSource(4))
	env := &stubEnv{}
	r := newTestRobot(rng)
	r.DistanceToSource = 40
	r.DistanceToStorage = 70
	loc := components.Location{X: 200, Y: 210}

	res := NewForagingSystem().Step(env, &r, &loc, testParams(), rng)

	if len(env.emitted) != 1 {
		t.Fatalf("emitted %d messages, want 1", len(env.emitted))
	}
	msg := env.emitted[0]
	if msg.SenderX != 200 || msg.SenderY != 210 {
		t.Errorf("sender = (%v, %v), want pre-move position", msg.SenderX, msg.SenderY)
	}
	if msg.DistanceToSource != 40+res.Travel || msg.DistanceToStorage != 70+res.Travel {
		t.Errorf("advertised %v/%v, want estimates plus %v", msg.DistanceToSource, msg.DistanceToStorage, res.Travel)
	}
}

func TestStepAgesEstimatesWithoutInformation(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	env := &stubEnv{}
	r := newTestRobot(rng)
	loc := components.Location{X: 250, Y: 250}
	fs := NewForagingSystem()
	p := testParams()
	p.SpeedJitter = 0.5

	for i := 0; i < 50; i++ {
		beforeSrc, beforeSt := r.DistanceToSource, r.DistanceToStorage
		res := fs.Step(env, &r, &loc, p, rng)
		if r.DistanceToSource != beforeSrc+res.Travel || r.DistanceToStorage != beforeSt+res.Travel {
			t.Fatalf("tick %d: estimates %v/%v, want %v/%v", i,
				r.DistanceToSource, r.DistanceToStorage, beforeSrc+res.Travel, beforeSt+res.Travel)
		}
		if res.Travel <= 0 {
			t.Fatalf("tick %d: travel %v, want positive", i, res.Travel)
		}
	}
}

func TestStepConfidenceFactor(t *testing.T) {
	tests := []struct {
		name      string
		candidate float64
		adopt     bool
	}{
		{"marginal neighbour ignored", 100, false},
		{"clearly better neighbour adopted", 80, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rng := rand.New(rand.NewSource(6))
			env := &stubEnv{inbox: []components.Message{{
				SenderX:           230,
				SenderY:           250,
				DistanceToSource:  tt.candidate,
				DistanceToStorage: components.InitialDistanceEstimate,
			}}}
			r := newTestRobot(rng)
			r.DistanceToSource = 120
			loc := components.Location{X: 250, Y: 250}

			p := testParams()
			p.RobotSpeed = 0
			res := NewForagingSystem().Step(env, &r, &loc, p, rng)

			if res.AdoptedSource != tt.adopt || r.HasTarget != tt.adopt {
				t.Fatalf("adopted=%v target=%v, want %v", res.AdoptedSource, r.HasTarget, tt.adopt)
			}
			want := 120.0
			if tt.adopt {
				want = tt.candidate
			}
			if r.DistanceToSource != want {
				t.Errorf("DistanceToSource = %v, want %v", r.DistanceToSource, want)
			}
			if tt.adopt && (r.Target.X != 230 || r.Target.Y != 250) {
				t.Errorf("target = %+v, want sender position", r.Target)
			}
		})
	}
}

func TestStepRelaxesOffGoalWithoutSteering(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	env := &stubEnv{inbox: []components.Message{{
		SenderX:           10,
		SenderY:           10,
		DistanceToSource:  20,
		DistanceToStorage: components.InitialDistanceEstimate,
	}}}
	r := newTestRobot(rng)
	r.Carrying = true
	loc := components.Location{X: 30, Y: 30, Heading: 0}

	p := testParams()
	p.RobotSpeed = 0
	res := NewForagingSystem().Step(env, &r, &loc, p, rng)

	if !res.AdoptedSource || r.DistanceToSource != 20 {
		t.Errorf("source estimate = %v, want 20 adopted", r.DistanceToSource)
	}
	if r.HasTarget {
		t.Error("loaded robot must not steer toward a source")
	}
}

func TestBestMessagesTies(t *testing.T) {
	msgs := []components.Message{
		{SenderX: 1, DistanceToSource: 5, DistanceToStorage: 9},
		{SenderX: 2, DistanceToSource: 5, DistanceToStorage: 3},
		{SenderX: 3, DistanceToSource: 4, DistanceToStorage: 3},
	}
	src, st, ok := bestMessages(msgs)
	if !ok {
		t.Fatal("expected a result")
	}
	if src.SenderX != 3 {
		t.Errorf("best source from sender %v, want 3", src.SenderX)
	}
	if st.SenderX != 2 {
		t.Errorf("best storage from sender %v, want 2 (first of the tie)", st.SenderX)
	}

	if _, _, ok := bestMessages(nil); ok {
		t.Error("empty inbox should report no result")
	}
}

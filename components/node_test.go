package components

import (
	"math/rand"
	"testing"
)

func TestSourceDrainsToEmpty(t *testing.T) {
	src := NewSource(3)
	if src.Capacity != 3 || src.Amount != 3 {
		t.Fatalf("NewSource(3) = %+v", src)
	}

	prev := src.Amount
	for i := 0; i < 3; i++ {
		if src.IsEmpty() {
			t.Fatalf("source empty after %d takes", i)
		}
		if !src.Take() {
			t.Fatalf("Take %d refused", i)
		}
		if src.Amount > prev || src.Amount < 0 {
			t.Fatalf("amount went from %d to %d", prev, src.Amount)
		}
		prev = src.Amount
	}

	if !src.IsEmpty() || !src.Exhausted() {
		t.Error("source should be empty and exhausted")
	}
	if src.Take() {
		t.Error("Take on empty source should be refused")
	}
	if src.Amount != 0 {
		t.Errorf("amount = %d after over-take, want 0", src.Amount)
	}
}

func TestStorageFillsToCapacity(t *testing.T) {
	st := NewStorage(2)
	if st.Amount != 0 || st.IsFull() {
		t.Fatalf("NewStorage(2) = %+v", st)
	}

	for i := 0; i < 2; i++ {
		if !st.Put() {
			t.Fatalf("Put %d refused", i)
		}
	}

	if !st.IsFull() || !st.Exhausted() {
		t.Error("storage should be full and exhausted")
	}
	if st.Put() {
		t.Error("Put on full storage should be refused")
	}
	if st.Amount != 2 {
		t.Errorf("amount = %d after over-put, want 2", st.Amount)
	}
}

func TestFillRatio(t *testing.T) {
	tests := []struct {
		name string
		node Node
		want float64
	}{
		{"full source", NewSource(10), 1},
		{"empty storage", NewStorage(10), 0},
		{"half", Node{Role: RoleStorage, Amount: 5, Capacity: 10}, 0.5},
		{"zero capacity", Node{Role: RoleStorage}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.node.FillRatio(); got != tt.want {
				t.Errorf("FillRatio = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRobotDefaults(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	r := NewRobot(7, 3, rng)

	if r.Carrying || r.Goal() != RoleSource {
		t.Error("new robot should seek a source")
	}
	if r.DistanceToSource != InitialDistanceEstimate || r.DistanceToStorage != InitialDistanceEstimate {
		t.Errorf("estimates = %v/%v", r.DistanceToSource, r.DistanceToStorage)
	}
	if r.SpeedBias < 0 || r.SpeedBias >= 1 {
		t.Errorf("SpeedBias = %v outside [0,1)", r.SpeedBias)
	}

	r.Carrying = true
	if r.Goal() != RoleStorage {
		t.Error("loaded robot should seek a storage")
	}
}

func TestRobotSpeed(t *testing.T) {
	r := Robot{SpeedBias: 0.5}
	if got := r.Speed(2, 0); got != 2 {
		t.Errorf("Speed without jitter = %v, want 2", got)
	}
	if got := r.Speed(2, 1); got != 1 {
		t.Errorf("Speed with full jitter = %v, want 1", got)
	}
}

func TestRelaxConfidence(t *testing.T) {
	tests := []struct {
		name       string
		own        float64
		candidate  float64
		confidence float64
		want       bool
	}{
		{"marginal claim resisted", 120, 100, 1.25, false},
		{"clear improvement adopted", 120, 80, 1.25, true},
		{"equal scaled value resisted", 125, 100, 1.25, false},
		{"confidence one adopts any improvement", 100, 99.9, 1, true},
		{"worse claim resisted", 50, 60, 1, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Relax(tt.own, tt.candidate, tt.confidence); got != tt.want {
				t.Errorf("Relax(%v, %v, %v) = %v, want %v", tt.own, tt.candidate, tt.confidence, got, tt.want)
			}
		})
	}
}

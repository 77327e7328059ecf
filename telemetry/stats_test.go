package telemetry

import (
	"math"
	"testing"

	"github.com/pthm-cable/forage/systems"
)

func TestComputeDistribution(t *testing.T) {
	tests := []struct {
		name     string
		values   []float64
		mean     float64
		p50, p90 float64
	}{
		{"empty slice", nil, 0, 0, 0},
		{"single element", []float64{5}, 5, 5, 5},
		{"one to ten", []float64{10, 9, 8, 7, 6, 5, 4, 3, 2, 1}, 5.5, 5, 9},
		{"skewed", []float64{1, 1, 1, 1, 100}, 20.8, 1, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mean, p50, p90 := ComputeDistribution(tt.values)
			if math.Abs(mean-tt.mean) > 1e-9 || p50 != tt.p50 || p90 != tt.p90 {
				t.Errorf("got mean=%v p50=%v p90=%v, want %v %v %v", mean, p50, p90, tt.mean, tt.p50, tt.p90)
			}
		})
	}
}

func TestComputeDistributionLeavesInputUnsorted(t *testing.T) {
	values := []float64{3, 1, 2}
	ComputeDistribution(values)
	if values[0] != 3 || values[1] != 1 {
		t.Errorf("input reordered: %v", values)
	}
}

func TestCollectorFlush(t *testing.T) {
	c := NewCollector(100)

	if c.ShouldFlush(99) {
		t.Error("flush before the window is complete")
	}

	for i := 0; i < 10; i++ {
		c.RecordStep(systems.StepResult{Heard: 4, PickedUp: i < 3, Delivered: i < 2, AdoptedSource: true})
	}
	c.RecordRenewal()
	c.RecordTrip(40)
	c.RecordTrip(60)

	if !c.ShouldFlush(100) {
		t.Fatal("window should be due")
	}
	stats := c.Flush(100, Sample{
		Colony:         "c",
		Robots:         10,
		Carrying:       4,
		EmptiedSources: 2,
		GoalDistances:  []float64{10, 20, 30},
	})

	if stats.Pickups != 3 || stats.Deliveries != 2 || stats.AdoptedSource != 10 || stats.Renewals != 1 {
		t.Errorf("counters = %+v", stats)
	}
	if stats.Throughput != 0.02 || stats.CarryingFrac != 0.4 || stats.MeanHeard != 4 {
		t.Errorf("rates: throughput=%v carrying=%v heard=%v", stats.Throughput, stats.CarryingFrac, stats.MeanHeard)
	}
	if stats.TripMean != 50 || stats.GoalDistMean != 20 {
		t.Errorf("trip mean=%v goal mean=%v", stats.TripMean, stats.GoalDistMean)
	}
	if stats.EmptiedSources != 2 || stats.Colony != "c" {
		t.Errorf("sample fields not copied: %+v", stats)
	}

	next := c.Flush(200, Sample{})
	if next.WindowStartTick != 100 || next.Pickups != 0 || next.TripMean != 0 {
		t.Errorf("counters not reset: %+v", next)
	}
}

func TestTripTracker(t *testing.T) {
	tt := NewTripTracker()

	if _, ok := tt.Deliver(1, 10); ok {
		t.Error("delivery without pickup should not count")
	}

	tt.Pickup(1, 10)
	tt.Pickup(2, 15)
	if tt.Open() != 2 {
		t.Errorf("Open = %d", tt.Open())
	}

	if ticks, ok := tt.Deliver(1, 40); !ok || ticks != 30 {
		t.Errorf("Deliver = %d, %v", ticks, ok)
	}
	tt.Forget(2)
	if tt.Open() != 0 || tt.Completed() != 1 || tt.MeanTicks() != 30 {
		t.Errorf("open=%d completed=%d mean=%v", tt.Open(), tt.Completed(), tt.MeanTicks())
	}
}

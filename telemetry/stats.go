package telemetry

import (
	"log/slog"
	"slices"

	"gonum.org/v1/gonum/stat"
)

// WindowStats holds aggregated statistics of one colony for a tick window.
type WindowStats struct {
	WindowStartTick int32  `csv:"-"`
	WindowEndTick   int32  `csv:"window_end"`
	Colony          string `csv:"colony"`

	// Population at window end
	Robots       int     `csv:"robots"`
	Carrying     int     `csv:"carrying"`
	CarryingFrac float64 `csv:"carrying_frac"`

	// Events during window
	Pickups         int     `csv:"pickups"`
	Deliveries      int     `csv:"deliveries"`
	Throughput      float64 `csv:"throughput"` // deliveries per tick
	AdoptedSource   int     `csv:"adopted_source"`
	AdoptedStorage  int     `csv:"adopted_storage"`
	MeanHeard       float64 `csv:"mean_heard"` // messages read per robot update
	Renewals        int     `csv:"renewals"`
	CounterBreaches int     `csv:"counter_breaches"`

	// Lifetime counters
	EmptiedSources uint64 `csv:"emptied_sources"`
	FilledStorages uint64 `csv:"filled_storages"`

	// Estimate toward each robot's current goal (sampled at window end)
	GoalDistMean float64 `csv:"goal_dist_mean"`
	GoalDistP50  float64 `csv:"goal_dist_p50"`
	GoalDistP90  float64 `csv:"goal_dist_p90"`

	// Pickup-to-delivery latency of trips completed in the window
	TripMean float64 `csv:"trip_mean"`
	TripP50  float64 `csv:"trip_p50"`
	TripP90  float64 `csv:"trip_p90"`
}

// ComputeDistribution returns the mean and the 50th and 90th percentiles of
// values. Percentiles are empirical (nearest observed value). Empty input
// yields zeros.
func ComputeDistribution(values []float64) (mean, p50, p90 float64) {
	if len(values) == 0 {
		return 0, 0, 0
	}
	sorted := slices.Clone(values)
	slices.Sort(sorted)

	mean = stat.Mean(sorted, nil)
	p50 = stat.Quantile(0.5, stat.Empirical, sorted, nil)
	p90 = stat.Quantile(0.9, stat.Empirical, sorted, nil)
	return mean, p50, p90
}

// LogValue implements slog.LogValuer for structured logging.
func (s WindowStats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("colony", s.Colony),
		slog.Int("window_start", int(s.WindowStartTick)),
		slog.Int("window_end", int(s.WindowEndTick)),
		slog.Int("robots", s.Robots),
		slog.Float64("carrying_frac", s.CarryingFrac),
		slog.Int("pickups", s.Pickups),
		slog.Int("deliveries", s.Deliveries),
		slog.Float64("throughput", s.Throughput),
		slog.Int("adopted_source", s.AdoptedSource),
		slog.Int("adopted_storage", s.AdoptedStorage),
		slog.Float64("mean_heard", s.MeanHeard),
		slog.Int("renewals", s.Renewals),
		slog.Int("counter_breaches", s.CounterBreaches),
		slog.Uint64("emptied_sources", s.EmptiedSources),
		slog.Uint64("filled_storages", s.FilledStorages),
		slog.Float64("goal_dist_mean", s.GoalDistMean),
		slog.Float64("goal_dist_p50", s.GoalDistP50),
		slog.Float64("goal_dist_p90", s.GoalDistP90),
		slog.Float64("trip_mean", s.TripMean),
		slog.Float64("trip_p50", s.TripP50),
		slog.Float64("trip_p90", s.TripP90),
	)
}

// LogStats logs the window stats using slog.
func (s WindowStats) LogStats() {
	slog.Info("stats", "window", s)
}

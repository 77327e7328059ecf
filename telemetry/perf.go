package telemetry

import (
	"log/slog"
	"time"
)

// Phase names of a colony tick.
const (
	PhaseReconcile = "reconcile"
	PhaseGrid      = "grid"
	PhaseRobots    = "robots"
	PhaseNodes     = "nodes"
	PhaseRenewal   = "renewal"
)

// Phases lists the phase names in tick order.
var Phases = []string{PhaseReconcile, PhaseGrid, PhaseRobots, PhaseNodes, PhaseRenewal}

// PerfCollector accumulates tick and phase timings between flushes. A
// phase reported by several colonies in one tick is summed.
type PerfCollector struct {
	ticks    int
	total    time.Duration
	min, max time.Duration
	phases   map[string]time.Duration

	tickStart  time.Time
	phase      string
	phaseStart time.Time
}

// NewPerfCollector creates an empty collector.
func NewPerfCollector() *PerfCollector {
	return &PerfCollector{phases: make(map[string]time.Duration)}
}

// StartTick begins timing a field tick.
func (p *PerfCollector) StartTick() {
	p.tickStart = time.Now()
	p.phase = ""
}

// StartPhase closes the running phase, if any, and opens the named one.
func (p *PerfCollector) StartPhase(phase string) {
	now := time.Now()
	p.closePhase(now)
	p.phase, p.phaseStart = phase, now
}

// EndTick closes the running phase and records the tick duration.
func (p *PerfCollector) EndTick() {
	now := time.Now()
	p.closePhase(now)
	p.phase = ""

	d := now.Sub(p.tickStart)
	if p.ticks == 0 || d < p.min {
		p.min = d
	}
	p.max = max(p.max, d)
	p.total += d
	p.ticks++
}

func (p *PerfCollector) closePhase(now time.Time) {
	if p.phase != "" {
		p.phases[p.phase] += now.Sub(p.phaseStart)
	}
}

// Stats summarizes the ticks recorded since the last flush.
func (p *PerfCollector) Stats() PerfStats {
	s := PerfStats{
		Ticks:    p.ticks,
		PhaseAvg: make(map[string]time.Duration, len(p.phases)),
		PhasePct: make(map[string]float64, len(p.phases)),
	}
	if p.ticks == 0 {
		return s
	}

	n := time.Duration(p.ticks)
	s.AvgTickDuration = p.total / n
	s.MinTickDuration = p.min
	s.MaxTickDuration = p.max
	for phase, sum := range p.phases {
		s.PhaseAvg[phase] = sum / n
		if p.total > 0 {
			s.PhasePct[phase] = float64(sum) / float64(p.total) * 100
		}
	}
	if s.AvgTickDuration > 0 {
		s.TicksPerSecond = float64(time.Second) / float64(s.AvgTickDuration)
	}
	return s
}

// Flush returns Stats and starts a new window.
func (p *PerfCollector) Flush() PerfStats {
	s := p.Stats()
	p.ticks, p.total, p.min, p.max = 0, 0, 0, 0
	clear(p.phases)
	return s
}

// PerfStats summarizes one perf window.
type PerfStats struct {
	Ticks int

	AvgTickDuration time.Duration
	MinTickDuration time.Duration
	MaxTickDuration time.Duration
	TicksPerSecond  float64

	PhaseAvg map[string]time.Duration
	PhasePct map[string]float64 // share of total tick time
}

// LogValue implements slog.LogValuer.
func (s PerfStats) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.Int("ticks", s.Ticks),
		slog.Int64("avg_tick_us", s.AvgTickDuration.Microseconds()),
		slog.Int64("max_tick_us", s.MaxTickDuration.Microseconds()),
		slog.Float64("ticks_per_sec", s.TicksPerSecond),
	}
	for _, phase := range Phases {
		if pct, ok := s.PhasePct[phase]; ok {
			attrs = append(attrs, slog.Float64(phase+"_pct", pct))
		}
	}
	return slog.GroupValue(attrs...)
}

// PerfStatsCSV is one perf.csv row.
type PerfStatsCSV struct {
	WindowEnd    int32   `csv:"window_end"`
	Ticks        int     `csv:"ticks"`
	AvgTickUS    int64   `csv:"avg_tick_us"`
	MinTickUS    int64   `csv:"min_tick_us"`
	MaxTickUS    int64   `csv:"max_tick_us"`
	TicksPerSec  float64 `csv:"ticks_per_sec"`
	ReconcilePct float64 `csv:"reconcile_pct"`
	GridPct      float64 `csv:"grid_pct"`
	RobotsPct    float64 `csv:"robots_pct"`
	NodesPct     float64 `csv:"nodes_pct"`
	RenewalPct   float64 `csv:"renewal_pct"`
}

// ToCSV flattens the stats into a perf.csv row.
func (s PerfStats) ToCSV(windowEnd int32) PerfStatsCSV {
	return PerfStatsCSV{
		WindowEnd:    windowEnd,
		Ticks:        s.Ticks,
		AvgTickUS:    s.AvgTickDuration.Microseconds(),
		MinTickUS:    s.MinTickDuration.Microseconds(),
		MaxTickUS:    s.MaxTickDuration.Microseconds(),
		TicksPerSec:  s.TicksPerSecond,
		ReconcilePct: s.PhasePct[PhaseReconcile],
		GridPct:      s.PhasePct[PhaseGrid],
		RobotsPct:    s.PhasePct[PhaseRobots],
		NodesPct:     s.PhasePct[PhaseNodes],
		RenewalPct:   s.PhasePct[PhaseRenewal],
	}
}

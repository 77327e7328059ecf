// Package game drives a headless foraging run: it ticks a Field of colonies
// and routes their telemetry to CSV, traces, and observers.
package game

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pthm-cable/forage/colony"
	"github.com/pthm-cable/forage/config"
	"github.com/pthm-cable/forage/systems"
	"github.com/pthm-cable/forage/telemetry"
)

// Publisher receives the frames of every colony. Implementations must not
// block the simulation loop.
type Publisher interface {
	Publish(tick int32, frames []*telemetry.Frame) error
}

// Options configures a Game beyond the run file.
type Options struct {
	Seed           int64
	LogStats       bool
	OutputDir      string // CSV logs and config copy; empty = disabled
	SnapshotDir    string // frame JSON on bookmarks; empty = disabled
	TracePath      string // zstd frame trace; empty = disabled
	StepsPerUpdate int
	Publisher      Publisher
	Logger         *slog.Logger
}

// Game holds the complete run state.
type Game struct {
	cfg    *config.Config
	logger *slog.Logger

	field *colony.Field

	// Telemetry
	perfCollector *telemetry.PerfCollector
	outputManager *telemetry.OutputManager
	trace         *telemetry.TraceWriter
	publisher     Publisher
	publishEvery  int32
	statsCallback func(telemetry.WindowStats)

	logStats       bool
	snapshotDir    string
	stepsPerUpdate int

	tick      int32
	startedAt time.Time
}

// NewGameWithOptions builds the field described by cfg. Colony parameter
// overrides from cfg are written to store before the first tick.
func NewGameWithOptions(ctx context.Context, cfg *config.Config, store config.Store, opts Options) (*Game, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.StepsPerUpdate < 1 {
		opts.StepsPerUpdate = 1
	}

	busMode, err := systems.ParseBusMode(cfg.Run.BusMode)
	if err != nil {
		return nil, err
	}

	g := &Game{
		cfg:            cfg,
		logger:         opts.Logger,
		perfCollector:  telemetry.NewPerfCollector(),
		publisher:      opts.Publisher,
		publishEvery:   max(cfg.Serve.Every, 1),
		logStats:       opts.LogStats,
		snapshotDir:    opts.SnapshotDir,
		stepsPerUpdate: opts.StepsPerUpdate,
		startedAt:      time.Now(),
	}

	g.field = colony.NewField(cfg.Field.Width, cfg.Field.Height, store, colony.FieldOptions{
		Seed:        opts.Seed,
		Logger:      opts.Logger,
		BusMode:     busMode,
		LinearScan:  cfg.Run.LinearScan,
		StatsWindow: cfg.Telemetry.StatsWindow,
		Perf:        g.perfCollector,
	})

	for _, cc := range cfg.Colonies {
		if len(cc.Params) > 0 {
			handle := config.NewColony(cc.Name, store, opts.Logger)
			if err := handle.Apply(ctx, cc.Params); err != nil {
				return nil, fmt.Errorf("colony %q: %w", cc.Name, err)
			}
		}
		if _, err := g.field.Add(cc.Name); err != nil {
			return nil, err
		}
	}

	g.outputManager, err = telemetry.NewOutputManager(opts.OutputDir)
	if err != nil {
		return nil, err
	}
	if err := g.outputManager.WriteConfig(cfg); err != nil {
		g.Unload()
		return nil, fmt.Errorf("writing config: %w", err)
	}

	if opts.TracePath != "" {
		g.trace, err = telemetry.CreateTrace(opts.TracePath)
		if err != nil {
			g.Unload()
			return nil, err
		}
	}

	return g, nil
}

// SetStatsCallback registers a function called with every flushed window.
func (g *Game) SetStatsCallback(fn func(telemetry.WindowStats)) {
	g.statsCallback = fn
}

// UpdateHeadless runs StepsPerUpdate ticks.
func (g *Game) UpdateHeadless() {
	for i := 0; i < g.stepsPerUpdate; i++ {
		g.simulationStep()
	}
}

func (g *Game) simulationStep() {
	g.field.Tick()
	g.tick++

	if g.trace != nil || (g.publisher != nil && g.tick%g.publishEvery == 0) {
		frames := g.Frames()
		g.writeTrace(frames)
		if g.publisher != nil && g.tick%g.publishEvery == 0 {
			if err := g.publisher.Publish(g.tick, frames); err != nil {
				g.logger.Error("failed to publish frames", "error", err)
			}
		}
	}

	g.flushTelemetry()
}

// Frames captures every colony in name order.
func (g *Game) Frames() []*telemetry.Frame {
	colonies := g.field.Colonies()
	frames := make([]*telemetry.Frame, len(colonies))
	for i, c := range colonies {
		frames[i] = c.Frame()
	}
	return frames
}

// Field returns the simulated field.
func (g *Game) Field() *colony.Field {
	return g.field
}

// Tick returns the current simulation tick.
func (g *Game) Tick() int32 {
	return g.tick
}

// Elapsed returns the wall time since the game was created.
func (g *Game) Elapsed() time.Duration {
	return time.Since(g.startedAt)
}

// StartedAt returns when the game was created.
func (g *Game) StartedAt() time.Time {
	return g.startedAt
}

// Unload flushes and closes every output.
func (g *Game) Unload() {
	if g.trace != nil {
		if err := g.trace.Close(); err != nil {
			g.logger.Error("failed to close trace", "error", err)
		}
		g.trace = nil
	}
	if g.outputManager != nil {
		if err := g.outputManager.Close(); err != nil {
			g.logger.Error("failed to close output", "error", err)
		}
		g.outputManager = nil
	}
}

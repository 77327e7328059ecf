package main

import (
	"context"
	"io"
	"log/slog"
	"maps"
	"math"
	"slices"
	"sync"

	"gonum.org/v1/gonum/stat"

	"github.com/pthm-cable/forage/config"
	"github.com/pthm-cable/forage/game"
	"github.com/pthm-cable/forage/telemetry"
)

// warmupWindows are skipped before throughput is scored, while the
// gradient has not yet formed.
const warmupWindows = 2

// FitnessEvaluator runs headless simulations and computes fitness.
type FitnessEvaluator struct {
	params     *ParamVector
	maxTicks   int32
	seeds      []int64
	baseConfig *config.Config
	logger     *slog.Logger

	mu          sync.Mutex
	lastQuality float64 // throughput stability of the most recent Evaluate call
}

// NewFitnessEvaluator creates a new evaluator.
func NewFitnessEvaluator(params *ParamVector, maxTicks int32, seeds []int64, baseCfg *config.Config) *FitnessEvaluator {
	return &FitnessEvaluator{
		params:     params,
		maxTicks:   maxTicks,
		seeds:      seeds,
		baseConfig: baseCfg,
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// LastQuality returns the stability score from the most recent evaluation.
func (fe *FitnessEvaluator) LastQuality() float64 {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return fe.lastQuality
}

type seedResult struct {
	throughput float64
	quality    float64
}

// Evaluate computes fitness for a raw parameter vector (lower = better).
// Fitness is the negative mean deliveries per tick over all seeds.
func (fe *FitnessEvaluator) Evaluate(x []float64) float64 {
	results := make([]seedResult, len(fe.seeds))
	var wg sync.WaitGroup

	for i, seed := range fe.seeds {
		wg.Add(1)
		go func(idx int, s int64) {
			defer wg.Done()
			windows := fe.runSimulation(x, s)
			results[idx] = seedResult{
				throughput: meanThroughput(windows),
				quality:    stability(windows),
			}
		}(i, seed)
	}
	wg.Wait()

	var total, quality float64
	for _, r := range results {
		total += r.throughput
		quality += r.quality
	}
	n := float64(len(results))

	fe.mu.Lock()
	fe.lastQuality = quality / n
	fe.mu.Unlock()

	return -total / n
}

// runSimulation executes a single headless run and returns its windows.
func (fe *FitnessEvaluator) runSimulation(x []float64, seed int64) []telemetry.WindowStats {
	cfg := fe.copyConfig()
	fe.params.ApplyToConfig(cfg, x)

	g, err := game.NewGameWithOptions(context.Background(), cfg, config.NewMemoryStore(), game.Options{
		Seed:           seed,
		StepsPerUpdate: 1,
		Logger:         fe.logger,
	})
	if err != nil {
		fe.logger.Error("failed to build run", "error", err)
		return nil
	}
	defer g.Unload()

	var windows []telemetry.WindowStats
	g.SetStatsCallback(func(s telemetry.WindowStats) {
		windows = append(windows, s)
	})
	for g.Tick() < fe.maxTicks {
		g.UpdateHeadless()
	}
	return windows
}

// copyConfig creates a deep copy of the base config.
func (fe *FitnessEvaluator) copyConfig() *config.Config {
	cfg := *fe.baseConfig
	cfg.Colonies = make([]config.ColonyConfig, len(fe.baseConfig.Colonies))
	for i, c := range fe.baseConfig.Colonies {
		cfg.Colonies[i] = config.ColonyConfig{Name: c.Name, Params: maps.Clone(c.Params)}
	}
	return &cfg
}

func scored(windows []telemetry.WindowStats) []float64 {
	if len(windows) <= warmupWindows {
		return nil
	}
	out := make([]float64, 0, len(windows)-warmupWindows)
	for _, w := range windows[warmupWindows:] {
		out = append(out, w.Throughput)
	}
	return out
}

// meanThroughput averages deliveries per tick across the scored windows.
func meanThroughput(windows []telemetry.WindowStats) float64 {
	values := scored(windows)
	if len(values) == 0 {
		return 0
	}
	return stat.Mean(values, nil)
}

// stability maps the coefficient of variation of throughput to (0, 1].
func stability(windows []telemetry.WindowStats) float64 {
	values := scored(windows)
	if len(values) < 2 || slices.Max(values) == 0 {
		return 0
	}
	mean, std := stat.MeanStdDev(values, nil)
	cv := std / mean
	return math.Exp(-cv * cv)
}

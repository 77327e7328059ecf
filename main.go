package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/pthm-cable/forage/config"
	"github.com/pthm-cable/forage/game"
	"github.com/pthm-cable/forage/persistence"
	"github.com/pthm-cable/forage/telemetry"
	"github.com/pthm-cable/forage/transport/observer"
)

func main() {
	// CLI flags
	configPath := flag.String("config", "", "Path to config.yaml (empty = use defaults)")
	seed := flag.Int64("seed", 0, "RNG seed (0 = config seed, or time-based if that is 0 too)")
	maxTicks := flag.Int("max-ticks", -1, "Stop after N ticks (0 = unlimited, -1 = use config)")
	storePath := flag.String("store", "", "SQLite parameter store (empty = use config, none = in-memory)")
	outputDir := flag.String("output-dir", "", "Output directory for CSV logs and config snapshot")
	snapshotDir := flag.String("snapshot-dir", "", "Directory for frame snapshots on bookmarks")
	tracePath := flag.String("trace", "", "Write a zstd frame trace to this path")
	verifyTrace := flag.String("verify-trace", "", "Compare the written trace against this reference trace")
	serveAddr := flag.String("serve", "", "Observer listen address (empty = use config)")
	logStats := flag.Bool("log-stats", false, "Output stats via slog")
	stepsPerUpdate := flag.Int("steps-per-update", 1, "Simulation ticks per update call")

	flag.Parse()

	// Set up slog (JSON to stdout for structured logging)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if err := run(logger, runFlags{
		configPath:     *configPath,
		seed:           *seed,
		maxTicks:       *maxTicks,
		storePath:      *storePath,
		outputDir:      *outputDir,
		snapshotDir:    *snapshotDir,
		tracePath:      *tracePath,
		verifyTrace:    *verifyTrace,
		serveAddr:      *serveAddr,
		logStats:       *logStats,
		stepsPerUpdate: *stepsPerUpdate,
	}); err != nil {
		logger.Error("run failed", "error", err)
		os.Exit(1)
	}
}

type runFlags struct {
	configPath     string
	seed           int64
	maxTicks       int
	storePath      string
	outputDir      string
	snapshotDir    string
	tracePath      string
	verifyTrace    string
	serveAddr      string
	logStats       bool
	stepsPerUpdate int
}

func run(logger *slog.Logger, f runFlags) error {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return err
	}
	if f.maxTicks >= 0 {
		cfg.Run.MaxTicks = int32(f.maxTicks)
	}
	if f.serveAddr != "" {
		cfg.Serve.Addr = f.serveAddr
	}
	switch f.storePath {
	case "":
	case "none":
		cfg.Store.Path = ""
	default:
		cfg.Store.Path = f.storePath
	}
	if f.verifyTrace != "" && f.tracePath == "" {
		return errors.New("-verify-trace needs -trace")
	}

	// Seed precedence: flag, config, clock
	rngSeed := f.seed
	if rngSeed == 0 {
		rngSeed = cfg.Run.Seed
	}
	if rngSeed == 0 {
		rngSeed = time.Now().UnixNano()
	}
	cfg.Run.Seed = rngSeed

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var store config.Store = config.NewMemoryStore()
	var db *persistence.DB
	if cfg.Store.Path != "" {
		db, err = persistence.Open(cfg.Store.Path)
		if err != nil {
			return err
		}
		defer db.Close()
		store = db
	}

	opts := game.Options{
		Seed:           rngSeed,
		LogStats:       f.logStats,
		OutputDir:      f.outputDir,
		SnapshotDir:    f.snapshotDir,
		TracePath:      f.tracePath,
		StepsPerUpdate: f.stepsPerUpdate,
		Logger:         logger,
	}

	var obs *observer.Server
	if cfg.Serve.Addr != "" {
		obs = observer.NewServer(logger)
		opts.Publisher = obs
		go func() {
			if err := obs.ListenAndServe(ctx, cfg.Serve.Addr); err != nil {
				logger.Error("observer stopped", "error", err)
			}
		}()
	}

	g, err := game.NewGameWithOptions(ctx, cfg, store, opts)
	if err != nil {
		return err
	}

	slog.Info("starting simulation",
		"seed", rngSeed,
		"colonies", len(cfg.Colonies),
		"max_ticks", cfg.Run.MaxTicks,
		"steps_per_update", f.stepsPerUpdate,
		"store", cfg.Store.Path,
		"serve", cfg.Serve.Addr,
	)

	for ctx.Err() == nil {
		g.UpdateHeadless()
		if cfg.Run.MaxTicks > 0 && g.Tick() >= cfg.Run.MaxTicks {
			slog.Info("max ticks reached", "tick", g.Tick())
			break
		}
	}
	g.Unload()

	summarize(g, rngSeed)

	if db != nil {
		recordRuns(db, g, rngSeed)
	}

	if f.verifyTrace != "" {
		n, err := telemetry.CompareTraces(f.tracePath, f.verifyTrace)
		if err != nil {
			return err
		}
		slog.Info("trace verified", "frames", n, "reference", f.verifyTrace)
	}
	return nil
}

func summarize(g *game.Game, seed int64) {
	elapsed := g.Elapsed()
	tps := float64(g.Tick()) / max(elapsed.Seconds(), 1e-9)

	for _, c := range g.Field().Colonies() {
		counters := c.Counters()
		slog.Info("colony summary",
			"colony", c.Name(),
			"seed", seed,
			"ticks", humanize.Comma(int64(counters.Ticks)),
			"robots", len(c.Robots()),
			"emptied_sources", humanize.Comma(int64(counters.EmptiedSources)),
			"filled_storages", humanize.Comma(int64(counters.FilledStorages)),
		)
	}
	slog.Info("run finished",
		"ticks", humanize.Comma(int64(g.Tick())),
		"elapsed", elapsed.Round(time.Millisecond).String(),
		"ticks_per_sec", humanize.CommafWithDigits(tps, 1),
		"started", humanize.Time(g.StartedAt()),
	)
}

func recordRuns(db *persistence.DB, g *game.Game, seed int64) {
	// The run context may already be cancelled by a signal.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	finished := time.Now()
	for _, c := range g.Field().Colonies() {
		counters := c.Counters()
		id, err := db.RecordRun(ctx, persistence.RunSummary{
			Colony:     c.Name(),
			Seed:       seed,
			Ticks:      int64(counters.Ticks),
			Emptied:    counters.EmptiedSources,
			Filled:     counters.FilledStorages,
			StartedAt:  g.StartedAt(),
			FinishedAt: finished,
		})
		if err != nil {
			slog.Error("failed to record run", "colony", c.Name(), "error", err)
			continue
		}
		slog.Info("run recorded", "colony", c.Name(), "id", id)
	}
}

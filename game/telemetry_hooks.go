package game

import (
	"github.com/pthm-cable/forage/colony"
	"github.com/pthm-cable/forage/telemetry"
)

// flushTelemetry closes due stats windows of every colony and handles
// bookmarks. Perf timings since the previous flush are written once per
// tick that flushed anything.
func (g *Game) flushTelemetry() {
	flushed := false
	for _, c := range g.field.Colonies() {
		stats, bookmarks, ok := c.FlushStats()
		if !ok {
			continue
		}
		flushed = true

		if g.statsCallback != nil {
			g.statsCallback(stats)
		}

		// Log stats if enabled (console output)
		if g.logStats {
			stats.LogStats()
		}

		if err := g.outputManager.WriteTelemetry(stats); err != nil {
			g.logger.Error("failed to write telemetry", "error", err)
		}

		for _, bm := range bookmarks {
			if g.logStats {
				bm.LogBookmark()
			}
			if err := g.outputManager.WriteBookmark(bm); err != nil {
				g.logger.Error("failed to write bookmark", "error", err)
			}
			if g.snapshotDir != "" {
				g.saveFrame(c)
			}
		}
	}
	if !flushed {
		return
	}

	perfStats := g.perfCollector.Flush()
	if g.logStats {
		g.logger.Info("perf", "window_end", g.tick, "perf", perfStats)
	}
	if err := g.outputManager.WritePerf(perfStats, g.tick); err != nil {
		g.logger.Error("failed to write perf", "error", err)
	}
}

// saveFrame writes the colony's current frame to the snapshot directory.
func (g *Game) saveFrame(c *colony.Colony) {
	path, err := telemetry.SaveFrame(c.Frame(), g.snapshotDir)
	if err != nil {
		g.logger.Error("failed to save frame", "error", err)
		return
	}
	g.logger.Info("frame saved", "path", path, "colony", c.Name(), "tick", g.tick)
}

func (g *Game) writeTrace(frames []*telemetry.Frame) {
	if g.trace == nil {
		return
	}
	for _, f := range frames {
		if err := g.trace.WriteFrame(f); err != nil {
			g.logger.Error("failed to write trace", "error", err)
			return
		}
	}
}

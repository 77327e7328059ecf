package telemetry

import (
	"fmt"
	"log/slog"
)

// BookmarkType identifies the type of bookmark.
type BookmarkType string

const (
	BookmarkFirstDelivery          BookmarkType = "first_delivery"
	BookmarkThroughputBreakthrough BookmarkType = "throughput_breakthrough"
	BookmarkRouteCollapse          BookmarkType = "route_collapse"
	BookmarkSteadyState            BookmarkType = "steady_state"
)

// Bookmark represents an automatically triggered bookmark.
type Bookmark struct {
	Type        BookmarkType `csv:"type"`
	Tick        int32        `csv:"tick"`
	Colony      string       `csv:"colony"`
	Description string       `csv:"description"`
}

// LogBookmark logs the bookmark using slog.
func (b Bookmark) LogBookmark() {
	slog.Info("bookmark",
		"type", string(b.Type),
		"tick", b.Tick,
		"colony", b.Colony,
		"description", b.Description,
	)
}

// BookmarkDetector detects interesting moments in one colony's stats.
type BookmarkDetector struct {
	// Rolling history (circular buffer)
	history     []WindowStats
	historySize int
	historyIdx  int
	historyFull bool

	// State tracking
	delivered          bool    // a delivery has been seen
	recentPeak         float64 // peak throughput since the last collapse
	steadyWindowsCount int     // consecutive windows with steady throughput
}

// NewBookmarkDetector creates a detector with the given history size.
func NewBookmarkDetector(historySize int) *BookmarkDetector {
	if historySize < 5 {
		historySize = 5 // minimum for steady state detection
	}
	return &BookmarkDetector{
		history:     make([]WindowStats, historySize),
		historySize: historySize,
	}
}

// Check analyzes the latest stats and returns any triggered bookmarks.
func (bd *BookmarkDetector) Check(stats WindowStats) []Bookmark {
	var bookmarks []Bookmark

	if b := bd.checkFirstDelivery(stats); b != nil {
		bookmarks = append(bookmarks, *b)
	}

	if bd.historyFull || bd.historyIdx > 0 {
		// Throughput breakthrough: > 2x rolling average
		if b := bd.checkThroughputBreakthrough(stats); b != nil {
			bookmarks = append(bookmarks, *b)
		}

		// Route collapse: dropped >50% from recent peak
		if b := bd.checkRouteCollapse(stats); b != nil {
			bookmarks = append(bookmarks, *b)
		}

		// Steady state: low throughput variance over 5+ windows
		if b := bd.checkSteadyState(stats); b != nil {
			bookmarks = append(bookmarks, *b)
		}
	}

	bd.addToHistory(stats)
	if stats.Throughput > bd.recentPeak {
		bd.recentPeak = stats.Throughput
	}

	return bookmarks
}

func (bd *BookmarkDetector) addToHistory(stats WindowStats) {
	bd.history[bd.historyIdx] = stats
	bd.historyIdx = (bd.historyIdx + 1) % bd.historySize
	if bd.historyIdx == 0 {
		bd.historyFull = true
	}
}

func (bd *BookmarkDetector) getHistory() []WindowStats {
	if bd.historyFull {
		return bd.history
	}
	return bd.history[:bd.historyIdx]
}

func (bd *BookmarkDetector) checkFirstDelivery(stats WindowStats) *Bookmark {
	if bd.delivered || stats.Deliveries == 0 {
		return nil
	}
	bd.delivered = true
	return &Bookmark{
		Type:        BookmarkFirstDelivery,
		Tick:        stats.WindowEndTick,
		Colony:      stats.Colony,
		Description: fmt.Sprintf("First %d deliveries in window ending %d", stats.Deliveries, stats.WindowEndTick),
	}
}

func (bd *BookmarkDetector) checkThroughputBreakthrough(stats WindowStats) *Bookmark {
	history := bd.getHistory()
	if len(history) < 3 {
		return nil
	}

	var total float64
	for _, h := range history {
		total += h.Throughput
	}
	avg := total / float64(len(history))
	if avg == 0 {
		return nil
	}

	if stats.Throughput > avg*2.0 && stats.Deliveries >= 3 {
		return &Bookmark{
			Type:        BookmarkThroughputBreakthrough,
			Tick:        stats.WindowEndTick,
			Colony:      stats.Colony,
			Description: fmt.Sprintf("Throughput %.3f is %.1fx average (%.3f)", stats.Throughput, stats.Throughput/avg, avg),
		}
	}

	return nil
}

func (bd *BookmarkDetector) checkRouteCollapse(stats WindowStats) *Bookmark {
	if bd.recentPeak == 0 {
		return nil
	}

	drop := 1.0 - stats.Throughput/bd.recentPeak
	peakDeliveries := bd.recentPeak * float64(stats.WindowEndTick-stats.WindowStartTick)
	if drop > 0.5 && peakDeliveries >= 5 {
		// Reset peak after collapse
		oldPeak := bd.recentPeak
		bd.recentPeak = stats.Throughput

		return &Bookmark{
			Type:        BookmarkRouteCollapse,
			Tick:        stats.WindowEndTick,
			Colony:      stats.Colony,
			Description: fmt.Sprintf("Throughput fell %.0f%% from peak %.3f to %.3f", drop*100, oldPeak, stats.Throughput),
		}
	}

	return nil
}

func (bd *BookmarkDetector) checkSteadyState(stats WindowStats) *Bookmark {
	if stats.Deliveries == 0 {
		bd.steadyWindowsCount = 0
		return nil
	}

	history := bd.getHistory()
	if len(history) < 4 {
		return nil
	}

	recent := history[len(history)-4:]
	var sum float64
	for _, h := range recent {
		sum += h.Throughput
	}
	mean := sum / 4

	var variance float64
	for _, h := range recent {
		d := h.Throughput - mean
		variance += d * d
	}
	variance /= 4

	cv2 := 0.0
	if mean > 0 {
		cv2 = variance / (mean * mean)
	}

	if mean > 0 && cv2 < 0.04 { // CV^2 < 0.04 means CV < 0.2
		bd.steadyWindowsCount++
	} else {
		bd.steadyWindowsCount = 0
	}

	if bd.steadyWindowsCount == 5 { // trigger exactly once at 5 windows
		return &Bookmark{
			Type:        BookmarkSteadyState,
			Tick:        stats.WindowEndTick,
			Colony:      stats.Colony,
			Description: fmt.Sprintf("Steady throughput around %.3f over 5+ windows", mean),
		}
	}

	return nil
}

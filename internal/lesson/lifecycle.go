package lesson

import "TradeBraid/internal/model"

// Thresholds are the lifecycle transition guards.
type Thresholds struct {
	PromoteSample   int64
	PromoteEdge     float64
	PromoteWindow   int
	DeprecateWindow int
	DeprecateEdge   float64
}

// PerfWindow is a lesson's performance snapshot at evaluation time:
// current backing-pattern sample size and edge, plus the trailing edge
// observations recorded over recent sweeps (most recent last).
type PerfWindow struct {
	SampleN     int64
	Edge        float64
	RecentEdges []float64
}

// NextStatus advances the lesson lifecycle:
//
//	candidate -> active      when sample and edge thresholds are met and
//	                         the edge stayed positive over the trailing
//	                         promote window
//	active    -> deprecated  when the mean edge over the trailing
//	                         deprecate window falls below the deprecate
//	                         threshold
//	deprecated               terminal; purged after the retention window
func NextStatus(cur model.LessonStatus, w PerfWindow, th Thresholds) model.LessonStatus {
	switch cur {
	case model.StatusCandidate:
		if w.SampleN >= th.PromoteSample && w.Edge > th.PromoteEdge && positiveTrailing(w.RecentEdges, th.PromoteWindow) {
			return model.StatusActive
		}
		return model.StatusCandidate
	case model.StatusActive:
		if trailingMeanBelow(w.RecentEdges, th.DeprecateWindow, th.DeprecateEdge) {
			return model.StatusDeprecated
		}
		return model.StatusActive
	default:
		return model.StatusDeprecated
	}
}

func positiveTrailing(edges []float64, window int) bool {
	if window <= 0 || len(edges) < window {
		return false
	}
	for _, e := range edges[len(edges)-window:] {
		if e <= 0 {
			return false
		}
	}
	return true
}

func trailingMeanBelow(edges []float64, window int, threshold float64) bool {
	if window <= 0 || len(edges) < window {
		return false
	}
	tail := edges[len(edges)-window:]
	sum := 0.0
	for _, e := range tail {
		sum += e
	}
	return sum/float64(window) < threshold
}

package model

import (
	"time"

	"TradeBraid/internal/stats"
)

// Reserved dimension names produced by the extractor. OutcomeDim is part
// of every pattern key; neither is observable at decision time, so both
// are stripped from lesson triggers.
const (
	OutcomeDim  = "outcome_class"
	HoldTimeDim = "hold_time_class"
)

// Outcome classes, from realized reward/risk.
const (
	OutcomeBigWin    = "big_win"
	OutcomeSmallWin  = "small_win"
	OutcomeBreakeven = "breakeven"
	OutcomeSmallLoss = "small_loss"
	OutcomeBigLoss   = "big_loss"
)

// Hold-time classes.
const (
	HoldShort  = "short"
	HoldMedium = "medium"
	HoldLong   = "long"
)

// PatternRecord is the persisted aggregate for one unique combination of
// bucketed dimension values plus an outcome class. Statistics only grow;
// records are never deleted.
type PatternRecord struct {
	Module    string
	Key       string
	Dims      map[string]string
	Family    string
	Stats     stats.RunningStats
	UpdatedAt time.Time
}

// BaselineRecord is a segment-level reference aggregate, same shape as a
// pattern but keyed by market segment instead of dimension combination.
// The empty segment is the module-wide global baseline.
type BaselineRecord struct {
	Module    string
	Segment   string
	Stats     stats.RunningStats
	UpdatedAt time.Time
}

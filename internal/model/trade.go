package model

import "time"

// ClosedTrade is the input event for the learning pipeline: one fully
// exited position, emitted exactly once by the position manager.
// Immutable after creation; TradeID drives idempotent reprocessing.
type ClosedTrade struct {
	TradeID string `json:"trade_id"`
	Module  string `json:"module"`

	// Categorical context captured at entry (curator, chain, mcap_bucket,
	// timeframe, ...). Values are already discrete labels.
	Dimensions map[string]string `json:"dimensions"`

	// Continuous scores to be bucketed into low/med/high by the extractor.
	// The bucketed dimension is named "<key>_bucket".
	Scores map[string]float64 `json:"scores"`

	// Boolean signal flags; surfaced as "<key>_flag" = "true"/"false".
	Flags map[string]bool `json:"flags"`

	EntryPrice     float64       `json:"entry_price"`
	ExitPrice      float64       `json:"exit_price"`
	RealizedReturn float64       `json:"realized_return"`
	MaxDrawdown    float64       `json:"max_drawdown"`
	MaxGain        float64       `json:"max_gain"`
	HoldTime       time.Duration `json:"hold_time"`
	ClosedAt       time.Time     `json:"closed_at"`
}

// Closed reports whether the trade carries complete outcome data.
// A trade without an exit cannot be learned from.
func (t *ClosedTrade) Closed() bool {
	return t.ExitPrice != 0 && !t.ClosedAt.IsZero()
}

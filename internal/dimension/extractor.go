package dimension

import (
	"errors"
	"fmt"
	"time"

	"TradeBraid/internal/config"
	"TradeBraid/internal/model"
	"TradeBraid/internal/stats"
)

// ErrIncompleteTrade is returned for a trade missing required outcome
// data. Such an event is logged and dropped; it cannot be completed later.
var ErrIncompleteTrade = errors.New("trade missing outcome data")

// ErrUnknownDimension is returned when a trade carries a dimension the
// module has not declared. Free-form context keys are rejected at the
// boundary instead of flowing through the pipeline.
var ErrUnknownDimension = errors.New("unknown dimension")

// Extractor converts a closed trade's raw context into a flat map of
// bucketed categorical dimensions. Pure over the trade and configuration.
type Extractor struct {
	learning config.Learning
	modules  map[string]map[string]bool
}

// NewExtractor builds an extractor from the configured modules.
func NewExtractor(cfg *config.Config) *Extractor {
	mods := make(map[string]map[string]bool, len(cfg.Modules))
	for _, m := range cfg.Modules {
		allowed := make(map[string]bool, len(m.Dimensions)+2)
		for _, d := range m.Dimensions {
			allowed[d] = true
		}
		allowed[model.OutcomeDim] = true
		allowed[model.HoldTimeDim] = true
		mods[m.Name] = allowed
	}
	return &Extractor{learning: cfg.Learning, modules: mods}
}

// Extract returns the bucketed dimension map for a closed trade,
// including outcome_class and hold_time_class.
func (e *Extractor) Extract(t *model.ClosedTrade) (map[string]string, error) {
	allowed, ok := e.modules[t.Module]
	if !ok {
		return nil, fmt.Errorf("module %q not configured: %w", t.Module, ErrUnknownDimension)
	}
	if !t.Closed() {
		return nil, fmt.Errorf("trade %s: %w", t.TradeID, ErrIncompleteTrade)
	}

	dims := make(map[string]string, len(t.Dimensions)+len(t.Scores)+len(t.Flags)+2)

	for k, v := range t.Dimensions {
		if !allowed[k] {
			return nil, fmt.Errorf("trade %s dimension %q: %w", t.TradeID, k, ErrUnknownDimension)
		}
		dims[k] = v
	}
	for k, v := range t.Scores {
		name := k + "_bucket"
		if !allowed[name] {
			return nil, fmt.Errorf("trade %s score %q: %w", t.TradeID, k, ErrUnknownDimension)
		}
		dims[name] = e.ScoreBucket(v)
	}
	for k, v := range t.Flags {
		name := k + "_flag"
		if !allowed[name] {
			return nil, fmt.Errorf("trade %s flag %q: %w", t.TradeID, k, ErrUnknownDimension)
		}
		if v {
			dims[name] = "true"
		} else {
			dims[name] = "false"
		}
	}

	rr, err := stats.RewardRisk(t.RealizedReturn, t.MaxDrawdown, e.learning.MinDrawdown)
	if err != nil {
		return nil, err
	}
	dims[model.OutcomeDim] = ClassifyOutcome(rr)
	dims[model.HoldTimeDim] = ClassifyHoldTime(t.HoldTime)

	return dims, nil
}

// RewardRisk derives the trade's reward/risk ratio using the configured
// drawdown floor.
func (e *Extractor) RewardRisk(t *model.ClosedTrade) (float64, error) {
	return stats.RewardRisk(t.RealizedReturn, t.MaxDrawdown, e.learning.MinDrawdown)
}

// ScoreBucket maps a continuous score to low/med/high. Exact threshold
// values fall into the middle bucket.
func (e *Extractor) ScoreBucket(score float64) string {
	switch {
	case score < e.learning.ScoreLow:
		return "low"
	case score <= e.learning.ScoreHigh:
		return "med"
	default:
		return "high"
	}
}

// ClassifyOutcome maps a reward/risk ratio to an outcome class. The
// ranges are disjoint and exhaustive over the real line; exact boundary
// values fall to the lower-magnitude bucket, so rr=2.0 is still a
// small_win and only rr>2.0 counts as big_win.
func ClassifyOutcome(rr float64) string {
	switch {
	case rr > 2.0:
		return model.OutcomeBigWin
	case rr >= 0.1:
		return model.OutcomeSmallWin
	case rr > -0.1:
		return model.OutcomeBreakeven
	case rr >= -1.0:
		return model.OutcomeSmallLoss
	default:
		return model.OutcomeBigLoss
	}
}

// ClassifyHoldTime maps a hold duration to short/medium/long.
// Both 7-day and 30-day boundaries belong to medium.
func ClassifyHoldTime(hold time.Duration) string {
	const day = 24 * time.Hour
	switch {
	case hold < 7*day:
		return model.HoldShort
	case hold <= 30*day:
		return model.HoldMedium
	default:
		return model.HoldLong
	}
}

package edge

import (
	"fmt"
	"math"

	"TradeBraid/internal/baseline"
	"TradeBraid/internal/model"
	"TradeBraid/internal/pattern"
	"TradeBraid/internal/store"
)

// Score is the edge evaluation of one pattern against its baseline.
type Score struct {
	// Raw is (avg_rr - baseline) x coherence x support. Coherence
	// 1/(1+variance) rewards consistent patterns; support ln(1+n) grows
	// with sample size with diminishing returns.
	Raw float64
	// Incremental is Raw minus the best parent's Raw: the part of the
	// edge not already explained by a simpler pattern. Non-positive
	// incremental edge means the extra dimension adds nothing.
	Incremental float64

	BaselineValue float64
	BaselineN     int64
}

// Scorer computes edge scores from persisted pattern stats. Pure reads:
// each parent is a keyed lookup scored from its own independently
// maintained stats and its own segment baseline, never a re-aggregation.
type Scorer struct {
	store     store.Store
	baselines *baseline.Resolver
}

func NewScorer(st store.Store, res *baseline.Resolver) *Scorer {
	return &Scorer{store: st, baselines: res}
}

// Raw computes the raw edge of a pattern record against its resolved
// segment baseline.
func Raw(p *model.PatternRecord, base baseline.Baseline) float64 {
	avg := p.Stats.AvgRR()
	coherence := 1.0 / (1.0 + p.Stats.Variance())
	support := math.Log1p(float64(p.Stats.N))
	return (avg - base.Value) * coherence * support
}

// Score evaluates a pattern: raw edge plus incremental edge over its
// parents. A pattern with no parents (the outcome-only pattern) has
// incremental edge equal to its raw edge.
func (s *Scorer) Score(p *model.PatternRecord) (Score, error) {
	base := s.baselines.Resolve(p.Module, p.Dims)
	raw := Raw(p, base)
	sc := Score{Raw: raw, Incremental: raw, BaselineValue: base.Value, BaselineN: base.N}

	parents := pattern.ParentKeys(p.Dims)
	if len(parents) == 0 {
		return sc, nil
	}

	best := math.Inf(-1)
	found := false
	for _, pk := range parents {
		pr, err := s.store.GetPattern(p.Module, pk)
		if err != nil {
			return sc, fmt.Errorf("load parent %s: %w", pk, err)
		}
		if pr == nil {
			continue
		}
		// The parent may live in a different segment if the dropped
		// dimension was mcap or timeframe; resolve its own baseline.
		pRaw := Raw(pr, s.baselines.Resolve(pr.Module, pr.Dims))
		if pRaw > best {
			best = pRaw
			found = true
		}
	}
	if found {
		sc.Incremental = raw - best
	}
	return sc, nil
}

package baseline

import (
	"fmt"

	"TradeBraid/internal/stats"
	"TradeBraid/internal/store"
)

// Segment dimension names used for baseline segmentation.
const (
	MCapDim      = "mcap_bucket"
	TimeframeDim = "timeframe"
)

// GlobalSegment is the always-present module-wide fallback.
const GlobalSegment = ""

// Baseline is a resolved reference reward/risk value with its effective
// sample size. N=0 means "no information": downstream scoring treats the
// neutral 0.0 value as the absence of a signal, not a negative one.
type Baseline struct {
	Value float64
	N     int64
}

// Resolver resolves segmented reward/risk baselines with a total fallback
// hierarchy: exact segment, then a sample-weighted combination of looser
// segments, then the global baseline. Resolve never fails.
type Resolver struct {
	store    store.Store
	exactMin int64
	looseMin int64
}

// NewResolver builds a resolver over the given store with the minimum
// sample counts required of the exact and loose segments.
func NewResolver(st store.Store, exactMin, looseMin int64) *Resolver {
	return &Resolver{store: st, exactMin: exactMin, looseMin: looseMin}
}

// SegmentKey builds the segment key for an mcap bucket and timeframe.
// Either may be empty; both empty yields the global segment.
func SegmentKey(mcap, timeframe string) string {
	switch {
	case mcap != "" && timeframe != "":
		return fmt.Sprintf("%s=%s|%s=%s", MCapDim, mcap, TimeframeDim, timeframe)
	case mcap != "":
		return fmt.Sprintf("%s=%s", MCapDim, mcap)
	case timeframe != "":
		return fmt.Sprintf("%s=%s", TimeframeDim, timeframe)
	default:
		return GlobalSegment
	}
}

// SegmentKeys returns every segment key a trade with the given fields
// contributes to, from most to least specific, always ending with the
// global segment.
func SegmentKeys(mcap, timeframe string) []string {
	keys := []string{}
	if mcap != "" && timeframe != "" {
		keys = append(keys, SegmentKey(mcap, timeframe))
	}
	if mcap != "" {
		keys = append(keys, SegmentKey(mcap, ""))
	}
	if timeframe != "" {
		keys = append(keys, SegmentKey("", timeframe))
	}
	return append(keys, GlobalSegment)
}

// Resolve returns the baseline for a pattern's own segment fields taken
// from its dimension map.
func (r *Resolver) Resolve(module string, dims map[string]string) Baseline {
	return r.ResolveSegment(module, dims[MCapDim], dims[TimeframeDim])
}

// ResolveSegment resolves the baseline for explicit segment fields.
// Fallback order: exact segment when it has enough samples, then a
// sample-weighted mean of qualifying loose segments, then global. On a
// total cold start the result is the neutral Baseline{0, 0}.
func (r *Resolver) ResolveSegment(module, mcap, timeframe string) Baseline {
	if mcap != "" && timeframe != "" {
		if b := r.lookup(module, SegmentKey(mcap, timeframe)); b != nil && b.N >= r.exactMin {
			return *b
		}
	}

	var loose []stats.RunningStats
	if mcap != "" {
		if b, raw := r.lookupRaw(module, SegmentKey(mcap, "")); b != nil && b.N >= r.looseMin {
			loose = append(loose, raw)
		}
	}
	if timeframe != "" {
		if b, raw := r.lookupRaw(module, SegmentKey("", timeframe)); b != nil && b.N >= r.looseMin {
			loose = append(loose, raw)
		}
	}
	if len(loose) > 0 {
		value, n := stats.WeightedMean(loose)
		return Baseline{Value: value, N: n}
	}

	if b := r.lookup(module, GlobalSegment); b != nil {
		return *b
	}
	return Baseline{}
}

func (r *Resolver) lookup(module, segment string) *Baseline {
	b, _ := r.lookupRaw(module, segment)
	return b
}

// lookupRaw reads a segment aggregate. Store failures degrade to "segment
// absent" so that resolution always completes; the global fallback keeps
// the contract total.
func (r *Resolver) lookupRaw(module, segment string) (*Baseline, stats.RunningStats) {
	rec, err := r.store.GetBaseline(module, segment)
	if err != nil || rec == nil {
		return nil, stats.RunningStats{}
	}
	return &Baseline{Value: rec.Stats.AvgRR(), N: rec.Stats.N}, rec.Stats
}

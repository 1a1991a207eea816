package edge

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TradeBraid/internal/baseline"
	"TradeBraid/internal/model"
	"TradeBraid/internal/pattern"
	"TradeBraid/internal/stats"
	"TradeBraid/internal/store"
)

func record(n int, rr float64) stats.RunningStats {
	var s stats.RunningStats
	for i := 0; i < n; i++ {
		s.Observe(rr, rr > 0, 0)
	}
	return s
}

func TestRaw_SupportMonotonicInSampleSize(t *testing.T) {
	base := baseline.Baseline{Value: 0.0}

	// Identical mean and variance, differing only in n.
	small := &model.PatternRecord{Stats: record(5, 1.0)}
	large := &model.PatternRecord{Stats: record(50, 1.0)}

	eSmall := Raw(small, base)
	eLarge := Raw(large, base)
	assert.Greater(t, math.Abs(eLarge), math.Abs(eSmall))

	// Same monotonicity on the negative side.
	smallNeg := &model.PatternRecord{Stats: record(5, -1.0)}
	largeNeg := &model.PatternRecord{Stats: record(50, -1.0)}
	assert.Greater(t, math.Abs(Raw(largeNeg, base)), math.Abs(Raw(smallNeg, base)))
}

func TestRaw_Formula(t *testing.T) {
	p := &model.PatternRecord{Stats: record(3, 2.0)} // avg 2, variance 0
	got := Raw(p, baseline.Baseline{Value: 0.5})
	want := (2.0 - 0.5) * 1.0 * math.Log1p(3)
	assert.InDelta(t, want, got, 1e-9)
}

func TestRaw_CoherencePenalizesVariance(t *testing.T) {
	var noisy stats.RunningStats
	for _, v := range []float64{-2.0, 6.0, -2.0, 6.0} { // avg 2, variance 16
		noisy.Observe(v, v > 0, 0)
	}
	steady := record(4, 2.0)

	base := baseline.Baseline{}
	assert.Greater(t,
		Raw(&model.PatternRecord{Stats: steady}, base),
		Raw(&model.PatternRecord{Stats: noisy}, base))
}

func seed(t *testing.T, st store.Store, module string, dims map[string]string, n int, rr float64) *model.PatternRecord {
	t.Helper()
	key := pattern.Key(dims)
	for i := 0; i < n; i++ {
		require.NoError(t, st.RecordPatternObservation(module, key, dims, "fam", rr, rr > 0, time.Hour))
	}
	p, err := st.GetPattern(module, key)
	require.NoError(t, err)
	require.NotNil(t, p)
	return p
}

func TestScore_IncrementalAgainstBestParent(t *testing.T) {
	st := store.NewMemoryStore()
	scorer := NewScorer(st, baseline.NewResolver(st, 10, 5))

	child := map[string]string{"state": "S1", "a_bucket": "med", model.OutcomeDim: model.OutcomeBigWin}
	parentA := map[string]string{"state": "S1", model.OutcomeDim: model.OutcomeBigWin}
	parentB := map[string]string{"a_bucket": "med", model.OutcomeDim: model.OutcomeBigWin}

	pa := seed(t, st, "position", parentA, 20, 2.0)
	seed(t, st, "position", parentB, 20, 0.5)
	pc := seed(t, st, "position", child, 20, 2.0)

	sc, err := scorer.Score(pc)
	require.NoError(t, err)

	bestParent := Raw(pa, baseline.Baseline{})
	assert.InDelta(t, sc.Raw-bestParent, sc.Incremental, 1e-9)
	// The child repeats its strongest parent: no incremental value.
	assert.LessOrEqual(t, sc.Incremental, 0.0)
}

func TestScore_NoParents(t *testing.T) {
	st := store.NewMemoryStore()
	scorer := NewScorer(st, baseline.NewResolver(st, 10, 5))

	root := map[string]string{model.OutcomeDim: model.OutcomeSmallWin}
	p := seed(t, st, "position", root, 10, 1.5)

	sc, err := scorer.Score(p)
	require.NoError(t, err)
	assert.InDelta(t, sc.Raw, sc.Incremental, 1e-9)
}

func TestScore_MissingParentsIgnored(t *testing.T) {
	st := store.NewMemoryStore()
	scorer := NewScorer(st, baseline.NewResolver(st, 10, 5))

	child := map[string]string{"state": "S1", model.OutcomeDim: model.OutcomeBigWin}
	p := seed(t, st, "position", child, 10, 2.0)

	// Parent (outcome-only) was never persisted in this store.
	sc, err := scorer.Score(p)
	require.NoError(t, err)
	assert.InDelta(t, sc.Raw, sc.Incremental, 1e-9)
}

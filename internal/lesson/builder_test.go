package lesson

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TradeBraid/internal/baseline"
	"TradeBraid/internal/config"
	"TradeBraid/internal/edge"
	"TradeBraid/internal/model"
	"TradeBraid/internal/pattern"
	"TradeBraid/internal/store"
)

func testLearning() config.Learning {
	return config.Learning{
		MaxSubsetSize:       3,
		MinSample:           8,
		MinEdge:             0.3,
		MinIncremental:      0.05,
		MaxLessonsPerFamily: 1,
		EdgeScale:           20,
		MultiplierCap:       0.10,
		PromoteSample:       20,
		PromoteEdge:         0.5,
		PromoteWindow:       3,
		DeprecateWindow:     5,
		DeprecateEdge:       0.0,
		BaselineExactMin:    10,
		BaselineLooseMin:    5,
	}
}

func newTestBuilder(st store.Store, learning config.Learning) *Builder {
	scorer := edge.NewScorer(st, baseline.NewResolver(st, learning.BaselineExactMin, learning.BaselineLooseMin))
	return NewBuilder(st, scorer, learning)
}

func observe(t *testing.T, st store.Store, module string, coreDims []string, dims map[string]string, n int, rr float64) {
	t.Helper()
	key := pattern.Key(dims)
	fam := pattern.FamilyID(module, coreDims, dims)
	for i := 0; i < n; i++ {
		require.NoError(t, st.RecordPatternObservation(module, key, dims, fam, rr, rr > 0, time.Hour))
	}
}

func TestBuild_PrefersSimplerParent(t *testing.T) {
	st := store.NewMemoryStore()
	b := newTestBuilder(st, testLearning())
	mod := config.ModuleConfig{Name: "position", CoreDimensions: []string{"state"}}

	parent := map[string]string{"state": "S1", model.OutcomeDim: model.OutcomeBigWin}
	child := map[string]string{"state": "S1", "a_bucket": "med", model.OutcomeDim: model.OutcomeBigWin}

	// Identical stats: the extra dimension explains nothing.
	observe(t, st, "position", mod.CoreDimensions, parent, 30, 2.0)
	observe(t, st, "position", mod.CoreDimensions, child, 30, 2.0)

	n, err := b.Build(mod)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	lessons, err := st.ListLessons("position")
	require.NoError(t, err)
	require.Len(t, lessons, 1)
	assert.Equal(t, "state=S1", lessons[0].TriggerKey)
	assert.Equal(t, map[string]string{"state": "S1"}, lessons[0].Trigger)
}

func TestBuild_TriggerExcludesOutcomeAndHoldTime(t *testing.T) {
	st := store.NewMemoryStore()
	b := newTestBuilder(st, testLearning())
	mod := config.ModuleConfig{Name: "position", CoreDimensions: []string{"state"}}

	dims := map[string]string{
		"state":          "S1",
		model.HoldTimeDim: model.HoldShort,
		model.OutcomeDim:  model.OutcomeBigWin,
	}
	observe(t, st, "position", mod.CoreDimensions, dims, 30, 2.0)

	_, err := b.Build(mod)
	require.NoError(t, err)

	lessons, err := st.ListLessons("position")
	require.NoError(t, err)
	require.Len(t, lessons, 1)
	assert.NotContains(t, lessons[0].Trigger, model.OutcomeDim)
	assert.NotContains(t, lessons[0].Trigger, model.HoldTimeDim)
	assert.Equal(t, "state=S1", lessons[0].TriggerKey)
}

func TestBuild_OutcomeOnlyPatternYieldsNoLesson(t *testing.T) {
	st := store.NewMemoryStore()
	b := newTestBuilder(st, testLearning())
	mod := config.ModuleConfig{Name: "position"}

	dims := map[string]string{model.OutcomeDim: model.OutcomeBigWin}
	observe(t, st, "position", nil, dims, 30, 2.0)

	n, err := b.Build(mod)
	require.NoError(t, err)
	assert.Zero(t, n)

	lessons, err := st.ListLessons("position")
	require.NoError(t, err)
	assert.Empty(t, lessons)
}

func TestBuild_FiltersThinAndFlatPatterns(t *testing.T) {
	st := store.NewMemoryStore()
	b := newTestBuilder(st, testLearning())
	mod := config.ModuleConfig{Name: "position", CoreDimensions: []string{"state"}}

	// Below MinSample.
	thin := map[string]string{"state": "S1", model.OutcomeDim: model.OutcomeBigWin}
	observe(t, st, "position", mod.CoreDimensions, thin, 3, 2.0)

	// Enough samples, but edge below MinEdge (mean rr ~0 against a neutral baseline).
	flat := map[string]string{"state": "S2", model.OutcomeDim: model.OutcomeBreakeven}
	observe(t, st, "position", mod.CoreDimensions, flat, 30, 0.0)

	n, err := b.Build(mod)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestBuild_MultiplierClamped(t *testing.T) {
	st := store.NewMemoryStore()
	learning := testLearning()
	b := newTestBuilder(st, learning)
	mod := config.ModuleConfig{Name: "position", CoreDimensions: []string{"state"}}

	// Raw edge ~ 2.0 * ln(31) >> EdgeScale * MultiplierCap.
	up := map[string]string{"state": "S1", model.OutcomeDim: model.OutcomeBigWin}
	observe(t, st, "position", mod.CoreDimensions, up, 30, 2.0)

	down := map[string]string{"state": "S2", model.OutcomeDim: model.OutcomeBigLoss}
	observe(t, st, "position", mod.CoreDimensions, down, 30, -2.0)

	_, err := b.Build(mod)
	require.NoError(t, err)

	lessons, err := st.ListLessons("position")
	require.NoError(t, err)
	require.Len(t, lessons, 2)
	for _, l := range lessons {
		if l.Edge > 0 {
			assert.InDelta(t, 1+learning.MultiplierCap, l.Multiplier, 1e-9)
		} else {
			assert.InDelta(t, 1-learning.MultiplierCap, l.Multiplier, 1e-9)
		}
	}
}

func TestBuild_PromotesAfterTrailingWindow(t *testing.T) {
	st := store.NewMemoryStore()
	b := newTestBuilder(st, testLearning())
	mod := config.ModuleConfig{Name: "position", CoreDimensions: []string{"state"}}

	dims := map[string]string{"state": "S1", model.OutcomeDim: model.OutcomeBigWin}
	observe(t, st, "position", mod.CoreDimensions, dims, 25, 2.0)

	statusAfter := func() model.LessonStatus {
		lessons, err := st.ListLessons("position")
		require.NoError(t, err)
		require.Len(t, lessons, 1)
		return lessons[0].Status
	}

	// New lessons start as candidates and need PromoteWindow consecutive
	// positive sweeps before going active.
	_, err := b.Build(mod)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCandidate, statusAfter())

	_, err = b.Build(mod)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCandidate, statusAfter())

	_, err = b.Build(mod)
	require.NoError(t, err)
	assert.Equal(t, model.StatusActive, statusAfter())
}

func TestBuild_IdempotentUpsert(t *testing.T) {
	st := store.NewMemoryStore()
	b := newTestBuilder(st, testLearning())
	mod := config.ModuleConfig{Name: "position", CoreDimensions: []string{"state"}}

	dims := map[string]string{"state": "S1", model.OutcomeDim: model.OutcomeBigWin}
	observe(t, st, "position", mod.CoreDimensions, dims, 30, 2.0)

	_, err := b.Build(mod)
	require.NoError(t, err)
	first, err := st.ListLessons("position")
	require.NoError(t, err)
	require.Len(t, first, 1)

	_, err = b.Build(mod)
	require.NoError(t, err)
	second, err := st.ListLessons("position")
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, first[0].ID, second[0].ID, "re-sweeping updates in place")
}

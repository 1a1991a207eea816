package baseline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TradeBraid/internal/store"
)

func TestSegmentKeys(t *testing.T) {
	keys := SegmentKeys("1m-2m", "1h")
	assert.Equal(t, []string{
		"mcap_bucket=1m-2m|timeframe=1h",
		"mcap_bucket=1m-2m",
		"timeframe=1h",
		GlobalSegment,
	}, keys)

	assert.Equal(t, []string{GlobalSegment}, SegmentKeys("", ""))
}

func TestResolve_ColdStart(t *testing.T) {
	r := NewResolver(store.NewMemoryStore(), 10, 5)

	// Totality: always resolves, even with zero history.
	b := r.ResolveSegment("decision", "1m-2m", "1h")
	assert.Equal(t, 0.0, b.Value)
	assert.Equal(t, int64(0), b.N)
}

func TestResolve_ExactSegmentWins(t *testing.T) {
	st := store.NewMemoryStore()
	r := NewResolver(st, 10, 5)

	for i := 0; i < 10; i++ {
		require.NoError(t, st.RecordBaselineObservation("decision", SegmentKey("1m-2m", "1h"), 2.0))
	}
	// A noisy global that must not be preferred.
	for i := 0; i < 50; i++ {
		require.NoError(t, st.RecordBaselineObservation("decision", GlobalSegment, -1.0))
	}

	b := r.ResolveSegment("decision", "1m-2m", "1h")
	assert.InDelta(t, 2.0, b.Value, 1e-9)
	assert.Equal(t, int64(10), b.N)
}

func TestResolve_LooseWeightedFallback(t *testing.T) {
	st := store.NewMemoryStore()
	r := NewResolver(st, 10, 5)

	// Exact segment below its minimum.
	for i := 0; i < 3; i++ {
		require.NoError(t, st.RecordBaselineObservation("decision", SegmentKey("1m-2m", "1h"), 9.0))
	}
	// Qualifying loose segments.
	for i := 0; i < 6; i++ {
		require.NoError(t, st.RecordBaselineObservation("decision", SegmentKey("1m-2m", ""), 1.0))
	}
	for i := 0; i < 5; i++ {
		require.NoError(t, st.RecordBaselineObservation("decision", SegmentKey("", "1h"), 3.0))
	}

	b := r.ResolveSegment("decision", "1m-2m", "1h")
	assert.Equal(t, int64(11), b.N)
	assert.InDelta(t, 21.0/11.0, b.Value, 1e-9)
}

func TestResolve_GlobalFallback(t *testing.T) {
	st := store.NewMemoryStore()
	r := NewResolver(st, 10, 5)

	for i := 0; i < 4; i++ {
		require.NoError(t, st.RecordBaselineObservation("decision", GlobalSegment, 0.5))
	}

	b := r.ResolveSegment("decision", "1m-2m", "1h")
	assert.InDelta(t, 0.5, b.Value, 1e-9)
	assert.Equal(t, int64(4), b.N)
}

func TestResolve_FromPatternDims(t *testing.T) {
	st := store.NewMemoryStore()
	r := NewResolver(st, 10, 5)

	for i := 0; i < 10; i++ {
		require.NoError(t, st.RecordBaselineObservation("decision", SegmentKey("1m-2m", "1h"), 1.2))
	}

	dims := map[string]string{MCapDim: "1m-2m", TimeframeDim: "1h", "curator": "alpha"}
	b := r.Resolve("decision", dims)
	assert.InDelta(t, 1.2, b.Value, 1e-9)
}

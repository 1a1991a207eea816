package stats

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserve_OrderIndependent(t *testing.T) {
	values := []float64{1.5, -0.3, 2.7, 0.0, -1.2, 0.9, 3.1}

	var forward RunningStats
	for _, v := range values {
		forward.Observe(v, v > 0, time.Hour)
	}

	for trial := 0; trial < 10; trial++ {
		shuffled := append([]float64(nil), values...)
		rand.New(rand.NewSource(int64(trial))).Shuffle(len(shuffled), func(i, j int) {
			shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
		})

		var s RunningStats
		for _, v := range shuffled {
			s.Observe(v, v > 0, time.Hour)
		}

		assert.Equal(t, forward.N, s.N)
		assert.InDelta(t, forward.SumRR, s.SumRR, 1e-9)
		assert.InDelta(t, forward.SumRRSq, s.SumRRSq, 1e-9)
		assert.Equal(t, forward.Wins, s.Wins)
	}
}

func TestVariance_NeverNegative(t *testing.T) {
	var s RunningStats
	for i := 0; i < 100; i++ {
		s.Observe(1.7, true, 0) // identical values, theoretical variance 0
	}
	assert.GreaterOrEqual(t, s.Variance(), 0.0)
	assert.InDelta(t, 0.0, s.Variance(), 1e-9)
}

func TestVariance_Population(t *testing.T) {
	var s RunningStats
	for _, v := range []float64{1.0, 2.0, 3.0} {
		s.Observe(v, true, 0)
	}
	assert.Equal(t, int64(3), s.N)
	assert.InDelta(t, 2.0, s.AvgRR(), 1e-9)
	assert.InDelta(t, 2.0/3.0, s.Variance(), 1e-9)
}

func TestEmptyStats_Derived(t *testing.T) {
	var s RunningStats
	assert.Equal(t, 0.0, s.AvgRR())
	assert.Equal(t, 0.0, s.Variance())
	assert.Equal(t, 0.0, s.WinRate())
}

func TestRewardRisk_DrawdownFloor(t *testing.T) {
	rr, err := RewardRisk(1.5, 1.0, 0.01)
	require.NoError(t, err)
	assert.InDelta(t, 1.5, rr, 1e-9)

	// Flat trade: drawdown 0 must not divide by zero.
	rr, err = RewardRisk(0.5, 0, 0.01)
	require.NoError(t, err)
	assert.InDelta(t, 50.0, rr, 1e-9)

	_, err = RewardRisk(1.0, 1.0, 0)
	assert.Error(t, err)
}

func TestWeightedMean(t *testing.T) {
	a := RunningStats{N: 6, SumRR: 6.0}  // mean 1.0
	b := RunningStats{N: 5, SumRR: 15.0} // mean 3.0

	mean, n := WeightedMean([]RunningStats{a, b})
	assert.Equal(t, int64(11), n)
	assert.InDelta(t, 21.0/11.0, mean, 1e-9)

	mean, n = WeightedMean(nil)
	assert.Equal(t, int64(0), n)
	assert.Equal(t, 0.0, mean)
}

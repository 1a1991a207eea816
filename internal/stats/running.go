package stats

import (
	"errors"
	"math"
	"time"
)

// RunningStats holds the online aggregate for one pattern or baseline key.
// All fields are plain sums so that updates are commutative: applying a set
// of observations in any order yields the same final aggregate. The fields
// mirror the store's increment columns one to one.
type RunningStats struct {
	N       int64   `json:"n"`
	SumRR   float64 `json:"sum_rr"`
	SumRRSq float64 `json:"sum_rr_sq"`
	SumHold float64 `json:"sum_hold"` // seconds
	Wins    int64   `json:"wins"`
}

// Observe folds one trade's reward/risk outcome into the aggregate.
func (s *RunningStats) Observe(rr float64, win bool, hold time.Duration) {
	s.N++
	s.SumRR += rr
	s.SumRRSq += rr * rr
	s.SumHold += hold.Seconds()
	if win {
		s.Wins++
	}
}

// Merge adds another aggregate into this one.
func (s *RunningStats) Merge(o RunningStats) {
	s.N += o.N
	s.SumRR += o.SumRR
	s.SumRRSq += o.SumRRSq
	s.SumHold += o.SumHold
	s.Wins += o.Wins
}

// AvgRR returns the mean reward/risk, 0 for an empty aggregate.
func (s *RunningStats) AvgRR() float64 {
	if s.N == 0 {
		return 0
	}
	return s.SumRR / float64(s.N)
}

// Variance returns the population variance of reward/risk, clamped at zero
// to absorb floating-point cancellation on near-constant series.
func (s *RunningStats) Variance() float64 {
	if s.N == 0 {
		return 0
	}
	mean := s.AvgRR()
	v := s.SumRRSq/float64(s.N) - mean*mean
	if v < 0 {
		return 0
	}
	return v
}

// WinRate returns wins/n, 0 for an empty aggregate.
func (s *RunningStats) WinRate() float64 {
	if s.N == 0 {
		return 0
	}
	return float64(s.Wins) / float64(s.N)
}

// AvgHold returns the mean hold time.
func (s *RunningStats) AvgHold() time.Duration {
	if s.N == 0 {
		return 0
	}
	return time.Duration(s.SumHold / float64(s.N) * float64(time.Second))
}

// RewardRisk derives the reward/risk ratio from a realized return and the
// max drawdown observed over the position's life. A flat or monotonically
// favorable trade has drawdown 0; the floor keeps the ratio finite.
func RewardRisk(realizedReturn, maxDrawdown, minDrawdown float64) (float64, error) {
	if minDrawdown <= 0 {
		return 0, errors.New("min drawdown floor must be positive")
	}
	dd := math.Abs(maxDrawdown)
	if dd < minDrawdown {
		dd = minDrawdown
	}
	return realizedReturn / dd, nil
}

// WeightedMean combines several aggregates' means weighted by sample size.
// Used when no single baseline segment has enough samples on its own.
// Returns the combined mean and total sample count; (0, 0) when all inputs
// are empty.
func WeightedMean(aggs []RunningStats) (float64, int64) {
	var sum float64
	var n int64
	for _, a := range aggs {
		sum += a.SumRR
		n += a.N
	}
	if n == 0 {
		return 0, 0
	}
	return sum / float64(n), n
}

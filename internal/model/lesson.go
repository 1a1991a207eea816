package model

import "time"

// LessonStatus is the lifecycle state of a lesson.
type LessonStatus string

const (
	StatusCandidate  LessonStatus = "candidate"
	StatusActive     LessonStatus = "active"
	StatusDeprecated LessonStatus = "deprecated"
)

// Lesson is a compressed decision-time rule: when the trigger dimensions
// are all present in a decision context, the multiplier applies. Derived
// from the best pattern of its family; only active lessons match.
type Lesson struct {
	ID         string            `json:"id"`
	Module     string            `json:"module"`
	Trigger    map[string]string `json:"trigger"`
	TriggerKey string            `json:"trigger_key"`
	Multiplier float64           `json:"multiplier"`

	// Supporting snapshot from the backing pattern at last evaluation.
	Edge            float64 `json:"edge"`
	IncrementalEdge float64 `json:"incremental_edge"`
	SampleN         int64   `json:"sample_n"`
	MeanRR          float64 `json:"mean_rr"`
	Family          string  `json:"family"`
	PatternKey      string  `json:"pattern_key"`

	Status LessonStatus `json:"status"`

	// Trailing edge observations, one per builder sweep that re-evaluated
	// this lesson. Drives promotion and deprecation.
	RecentEdges []float64 `json:"recent_edges"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Matches reports whether every trigger dimension is present in ctx with
// an equal value.
func (l *Lesson) Matches(ctx map[string]string) bool {
	for k, v := range l.Trigger {
		if ctx[k] != v {
			return false
		}
	}
	return true
}

// Specificity is the number of trigger dimensions; the matcher prefers
// the most specific matching lesson.
func (l *Lesson) Specificity() int { return len(l.Trigger) }

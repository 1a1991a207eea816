package store

import (
	"time"

	"TradeBraid/internal/model"
)

// Store persists pattern aggregates, baseline aggregates, lessons, and the
// processed-trade ledger. All mutation is single-key atomic upsert with
// commutative increments: the per-trade pipeline only increments pattern
// and baseline rows, the lesson sweep only reads them and writes lessons,
// so the two never race on the same record.
//
// Lookups of absent records return (nil, nil); errors are reserved for
// real persistence failures.
type Store interface {
	// RecordPatternObservation folds one trade's outcome into the pattern
	// aggregate, creating the record on first occurrence.
	RecordPatternObservation(module, key string, dims map[string]string, family string, rr float64, win bool, hold time.Duration) error
	GetPattern(module, key string) (*model.PatternRecord, error)
	ListPatterns(module string) ([]model.PatternRecord, error)

	// RecordBaselineObservation folds one trade into a baseline segment
	// aggregate. The empty segment is the module-wide global baseline.
	RecordBaselineObservation(module, segment string, rr float64) error
	GetBaseline(module, segment string) (*model.BaselineRecord, error)

	// UpsertLesson creates or replaces a lesson keyed by (module, trigger
	// key), so re-running an interrupted sweep converges.
	UpsertLesson(l *model.Lesson) error
	GetLesson(module, triggerKey string) (*model.Lesson, error)
	ListLessons(module string) ([]model.Lesson, error)
	ListActiveLessons(module string) ([]model.Lesson, error)

	// PurgeDeprecated removes deprecated lessons not updated since the
	// cutoff and returns the number removed.
	PurgeDeprecated(olderThan time.Time) (int64, error)

	// TryMarkProcessed records a trade id in the dedupe ledger. Returns
	// false when the trade was already processed.
	TryMarkProcessed(module, tradeID string) (bool, error)

	Close() error
}

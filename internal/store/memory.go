package store

import (
	"sync"
	"time"

	"TradeBraid/internal/model"
)

// MemoryStore is an in-memory Store used in tests and when no database
// path is configured. Same upsert semantics as the SQLite store.
type MemoryStore struct {
	mu        sync.Mutex
	patterns  map[string]*model.PatternRecord
	baselines map[string]*model.BaselineRecord
	lessons   map[string]*model.Lesson
	processed map[string]bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		patterns:  make(map[string]*model.PatternRecord),
		baselines: make(map[string]*model.BaselineRecord),
		lessons:   make(map[string]*model.Lesson),
		processed: make(map[string]bool),
	}
}

func composite(module, key string) string { return module + "\x00" + key }

func (s *MemoryStore) RecordPatternObservation(module, key string, dims map[string]string, family string, rr float64, win bool, hold time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ck := composite(module, key)
	p, ok := s.patterns[ck]
	if !ok {
		p = &model.PatternRecord{Module: module, Key: key, Dims: copyDims(dims), Family: family}
		s.patterns[ck] = p
	}
	p.Stats.Observe(rr, win, hold)
	p.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryStore) GetPattern(module, key string) (*model.PatternRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.patterns[composite(module, key)]
	if !ok {
		return nil, nil
	}
	cp := *p
	cp.Dims = copyDims(p.Dims)
	return &cp, nil
}

func (s *MemoryStore) ListPatterns(module string) ([]model.PatternRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []model.PatternRecord
	for _, p := range s.patterns {
		if p.Module != module {
			continue
		}
		cp := *p
		cp.Dims = copyDims(p.Dims)
		out = append(out, cp)
	}
	return out, nil
}

func (s *MemoryStore) RecordBaselineObservation(module, segment string, rr float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ck := composite(module, segment)
	b, ok := s.baselines[ck]
	if !ok {
		b = &model.BaselineRecord{Module: module, Segment: segment}
		s.baselines[ck] = b
	}
	b.Stats.Observe(rr, rr > 0, 0)
	b.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryStore) GetBaseline(module, segment string) (*model.BaselineRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.baselines[composite(module, segment)]
	if !ok {
		return nil, nil
	}
	cp := *b
	return &cp, nil
}

func (s *MemoryStore) UpsertLesson(l *model.Lesson) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *l
	cp.Trigger = copyDims(l.Trigger)
	cp.RecentEdges = append([]float64(nil), l.RecentEdges...)
	s.lessons[composite(l.Module, l.TriggerKey)] = &cp
	return nil
}

func (s *MemoryStore) GetLesson(module, triggerKey string) (*model.Lesson, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.lessons[composite(module, triggerKey)]
	if !ok {
		return nil, nil
	}
	cp := *l
	cp.Trigger = copyDims(l.Trigger)
	cp.RecentEdges = append([]float64(nil), l.RecentEdges...)
	return &cp, nil
}

func (s *MemoryStore) ListLessons(module string) ([]model.Lesson, error) {
	return s.listLessons(module, "")
}

func (s *MemoryStore) ListActiveLessons(module string) ([]model.Lesson, error) {
	return s.listLessons(module, model.StatusActive)
}

func (s *MemoryStore) listLessons(module string, status model.LessonStatus) ([]model.Lesson, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []model.Lesson
	for _, l := range s.lessons {
		if l.Module != module {
			continue
		}
		if status != "" && l.Status != status {
			continue
		}
		cp := *l
		cp.Trigger = copyDims(l.Trigger)
		cp.RecentEdges = append([]float64(nil), l.RecentEdges...)
		out = append(out, cp)
	}
	return out, nil
}

func (s *MemoryStore) PurgeDeprecated(olderThan time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for k, l := range s.lessons {
		if l.Status == model.StatusDeprecated && l.UpdatedAt.Before(olderThan) {
			delete(s.lessons, k)
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) TryMarkProcessed(module, tradeID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ck := composite(module, tradeID)
	if s.processed[ck] {
		return false, nil
	}
	s.processed[ck] = true
	return true, nil
}

func (s *MemoryStore) Close() error { return nil }

func copyDims(dims map[string]string) map[string]string {
	cp := make(map[string]string, len(dims))
	for k, v := range dims {
		cp[k] = v
	}
	return cp
}

package lesson

import (
	"errors"
	"fmt"
	"log"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"TradeBraid/internal/config"
	"TradeBraid/internal/edge"
	"TradeBraid/internal/model"
	"TradeBraid/internal/pattern"
	"TradeBraid/internal/store"
)

// ErrMalformedTrigger flags a lesson trigger that still contains the
// outcome dimension. The generator never produces one; this is a
// defensive check, fatal to the single candidate only.
var ErrMalformedTrigger = errors.New("trigger contains outcome dimension")

// Builder runs the periodic lesson sweep for one or more modules: it
// reads pattern aggregates, scores them, compresses each family to its
// simplest sufficient patterns, and upserts lessons. It writes only to
// lessons, never back into pattern or baseline records.
type Builder struct {
	store    store.Store
	scorer   *edge.Scorer
	learning config.Learning
	now      func() time.Time
}

func NewBuilder(st store.Store, scorer *edge.Scorer, learning config.Learning) *Builder {
	return &Builder{store: st, scorer: scorer, learning: learning, now: time.Now}
}

type candidate struct {
	rec   model.PatternRecord
	score edge.Score
}

// Build re-evaluates all lessons for a module and returns the number of
// lessons created or updated. Failures local to one pattern or candidate
// are logged and skipped; the sweep continues.
func (b *Builder) Build(mod config.ModuleConfig) (int, error) {
	patterns, err := b.store.ListPatterns(mod.Name)
	if err != nil {
		return 0, fmt.Errorf("list patterns for %s: %w", mod.Name, err)
	}

	byKey := make(map[string]*candidate)
	families := make(map[string][]*candidate)
	for i := range patterns {
		p := &patterns[i]
		if p.Stats.N < b.learning.MinSample {
			continue
		}
		sc, err := b.scorer.Score(p)
		if err != nil {
			log.Printf("[WARN] score pattern %s: %v", p.Key, err)
			continue
		}
		if math.Abs(sc.Raw) < b.learning.MinEdge {
			continue
		}
		c := &candidate{rec: *p, score: sc}
		byKey[p.Key] = c
		families[p.Family] = append(families[p.Family], c)
	}

	selected := b.selectRepresentatives(families, byKey)

	count := 0
	for _, c := range selected {
		updated, err := b.upsertLesson(mod.Name, c)
		if err != nil {
			log.Printf("[WARN] lesson for pattern %s: %v", c.rec.Key, err)
			continue
		}
		if updated {
			count++
		}
	}
	return count, nil
}

// selectRepresentatives picks up to MaxLessonsPerFamily patterns per
// family, strongest |edge| first. A candidate whose incremental edge does
// not clear the threshold is replaced by its best still-unselected parent
// candidate in the same family: the simpler pattern wins when the extra
// dimension explains nothing new. Colliding triggers (same dimensions,
// different outcome class) keep the stronger candidate.
func (b *Builder) selectRepresentatives(families map[string][]*candidate, byKey map[string]*candidate) []*candidate {
	byTrigger := make(map[string]*candidate)

	famIDs := make([]string, 0, len(families))
	for f := range families {
		famIDs = append(famIDs, f)
	}
	sort.Strings(famIDs)

	for _, fam := range famIDs {
		cands := families[fam]
		sort.Slice(cands, func(i, j int) bool {
			ai, aj := math.Abs(cands[i].score.Raw), math.Abs(cands[j].score.Raw)
			if ai != aj {
				return ai > aj
			}
			if len(cands[i].rec.Dims) != len(cands[j].rec.Dims) {
				return len(cands[i].rec.Dims) < len(cands[j].rec.Dims)
			}
			return cands[i].rec.Key < cands[j].rec.Key
		})

		taken := make(map[string]bool)
		picked := 0
		for _, c := range cands {
			if picked >= b.learning.MaxLessonsPerFamily {
				break
			}
			pick := c
			if c.score.Incremental <= b.learning.MinIncremental {
				if parent := bestParent(c, fam, byKey, taken); parent != nil {
					pick = parent
				}
			}
			if taken[pick.rec.Key] {
				continue
			}
			taken[pick.rec.Key] = true
			picked++

			tk := triggerKeyFor(pick.rec.Dims)
			if tk == "" {
				continue // outcome-only pattern, no decision-time precondition
			}
			if prev, ok := byTrigger[tk]; ok && math.Abs(prev.score.Raw) >= math.Abs(pick.score.Raw) {
				continue
			}
			byTrigger[tk] = pick
		}
	}

	keys := make([]string, 0, len(byTrigger))
	for k := range byTrigger {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]*candidate, 0, len(keys))
	for _, k := range keys {
		out = append(out, byTrigger[k])
	}
	return out
}

// bestParent returns the unselected same-family parent candidate with the
// strongest edge, or nil when no parent survived the candidate filters.
func bestParent(c *candidate, family string, byKey map[string]*candidate, taken map[string]bool) *candidate {
	var best *candidate
	for _, pk := range pattern.ParentKeys(c.rec.Dims) {
		p, ok := byKey[pk]
		if !ok || taken[pk] || p.rec.Family != family {
			continue
		}
		if best == nil || math.Abs(p.score.Raw) > math.Abs(best.score.Raw) {
			best = p
		}
	}
	return best
}

func (b *Builder) upsertLesson(module string, c *candidate) (bool, error) {
	trigger := TriggerFor(c.rec.Dims)
	if err := ValidateTrigger(trigger); err != nil {
		return false, err
	}
	tk := pattern.Key(trigger)

	existing, err := b.store.GetLesson(module, tk)
	if err != nil {
		return false, fmt.Errorf("load lesson: %w", err)
	}

	now := b.now()
	l := existing
	if l == nil {
		l = &model.Lesson{
			ID:        uuid.NewString(),
			Module:    module,
			Status:    model.StatusCandidate,
			CreatedAt: now,
		}
	}

	l.Trigger = trigger
	l.TriggerKey = tk
	l.Edge = c.score.Raw
	l.IncrementalEdge = c.score.Incremental
	l.SampleN = c.rec.Stats.N
	l.MeanRR = c.rec.Stats.AvgRR()
	l.Family = c.rec.Family
	l.PatternKey = c.rec.Key
	l.Multiplier = b.multiplier(c.score.Raw)
	l.UpdatedAt = now

	window := b.learning.PromoteWindow
	if b.learning.DeprecateWindow > window {
		window = b.learning.DeprecateWindow
	}
	l.RecentEdges = append(l.RecentEdges, c.score.Raw)
	if len(l.RecentEdges) > window {
		l.RecentEdges = l.RecentEdges[len(l.RecentEdges)-window:]
	}

	prev := l.Status
	l.Status = NextStatus(l.Status, PerfWindow{
		SampleN:     l.SampleN,
		Edge:        l.Edge,
		RecentEdges: l.RecentEdges,
	}, Thresholds{
		PromoteSample:   b.learning.PromoteSample,
		PromoteEdge:     b.learning.PromoteEdge,
		PromoteWindow:   b.learning.PromoteWindow,
		DeprecateWindow: b.learning.DeprecateWindow,
		DeprecateEdge:   b.learning.DeprecateEdge,
	})
	if l.Status != prev {
		log.Printf("[INFO] lesson %s (%s): %s -> %s", l.ID, l.TriggerKey, prev, l.Status)
	}

	if err := b.store.UpsertLesson(l); err != nil {
		return false, fmt.Errorf("upsert lesson: %w", err)
	}
	return true, nil
}

// multiplier bounds a single lesson's influence on position sizing:
// 1 + clamp(edge/scale, -cap, +cap).
func (b *Builder) multiplier(rawEdge float64) float64 {
	adj := rawEdge / b.learning.EdgeScale
	if adj > b.learning.MultiplierCap {
		adj = b.learning.MultiplierCap
	}
	if adj < -b.learning.MultiplierCap {
		adj = -b.learning.MultiplierCap
	}
	return 1 + adj
}

// TriggerFor strips the dimensions unknowable at decision time (outcome
// and hold-time class) from a pattern's dimension map.
func TriggerFor(dims map[string]string) map[string]string {
	trigger := make(map[string]string, len(dims))
	for k, v := range dims {
		if k == model.OutcomeDim || k == model.HoldTimeDim {
			continue
		}
		trigger[k] = v
	}
	return trigger
}

// triggerKeyFor returns the canonical trigger key, "" for an empty trigger.
func triggerKeyFor(dims map[string]string) string {
	return pattern.Key(TriggerFor(dims))
}

// ValidateTrigger rejects triggers that leak the outcome dimension.
func ValidateTrigger(trigger map[string]string) error {
	if _, ok := trigger[model.OutcomeDim]; ok {
		return ErrMalformedTrigger
	}
	return nil
}

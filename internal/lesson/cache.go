package lesson

import (
	"encoding/json"
	"log"
	"os"
	"sync"

	"TradeBraid/internal/model"
	"TradeBraid/internal/store"
)

// Cache is the decision-time lesson matcher: a mutex-guarded in-memory
// set of active lessons per module, refreshed after each sweep and
// snapshotted to a JSON file for warm start. Decision code only ever
// touches this cache, so a store outage can never surface into the
// trading path; the worst case is a stale or neutral multiplier.
type Cache struct {
	mu       sync.Mutex
	byModule map[string][]model.Lesson
	filePath string
}

// NewCache creates a cache, loading the snapshot file if one exists.
func NewCache(filePath string) (*Cache, error) {
	c := &Cache{byModule: make(map[string][]model.Lesson), filePath: filePath}

	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return c, nil
		}
		return nil, err
	}
	if err := json.Unmarshal(data, &c.byModule); err != nil {
		return nil, err
	}
	return c, nil
}

// Refresh reloads active lessons for the given modules from the store and
// rewrites the snapshot file.
func (c *Cache) Refresh(st store.Store, modules []string) error {
	fresh := make(map[string][]model.Lesson, len(modules))
	for _, m := range modules {
		lessons, err := st.ListActiveLessons(m)
		if err != nil {
			return err
		}
		fresh[m] = lessons
	}

	c.mu.Lock()
	c.byModule = fresh
	c.mu.Unlock()

	if err := c.save(); err != nil {
		log.Printf("[ERROR] save lesson cache snapshot: %v", err)
	}
	return nil
}

// Match returns the multiplier of the most specific active lesson whose
// trigger is a subset of the decision-time context, or exactly 1.0 when
// nothing matches. Ties on specificity break to the highest raw edge,
// then to the lexicographically smallest trigger key. Never fails.
func (c *Cache) Match(module string, ctx map[string]string) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	var best *model.Lesson
	for i := range c.byModule[module] {
		l := &c.byModule[module][i]
		if l.Status != model.StatusActive || !l.Matches(ctx) {
			continue
		}
		if best == nil || moreSpecific(l, best) {
			best = l
		}
	}
	if best == nil {
		return 1.0
	}
	return best.Multiplier
}

// Active returns a copy of the cached active lessons for a module.
func (c *Cache) Active(module string) []model.Lesson {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]model.Lesson(nil), c.byModule[module]...)
}

func moreSpecific(a, b *model.Lesson) bool {
	if a.Specificity() != b.Specificity() {
		return a.Specificity() > b.Specificity()
	}
	if a.Edge != b.Edge {
		return a.Edge > b.Edge
	}
	return a.TriggerKey < b.TriggerKey
}

func (c *Cache) save() error {
	c.mu.Lock()
	data, err := json.MarshalIndent(c.byModule, "", "  ")
	c.mu.Unlock()
	if err != nil {
		return err
	}
	return os.WriteFile(c.filePath, data, 0644)
}

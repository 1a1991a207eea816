package notifier

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"TradeBraid/internal/model"
)

// FormatSweepReport formats the result of a lesson-building sweep.
func FormatSweepReport(results map[string]int, elapsed time.Duration) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("🧵 <b>Lesson sweep</b> | %s\n\n", time.Now().Format("2006-01-02 15:04")))

	modules := make([]string, 0, len(results))
	for m := range results {
		modules = append(modules, m)
	}
	sort.Strings(modules)

	total := 0
	for _, m := range modules {
		b.WriteString(fmt.Sprintf("  %s: %d lessons updated\n", m, results[m]))
		total += results[m]
	}
	b.WriteString(fmt.Sprintf("\nTotal: %d | took %s", total, elapsed.Round(time.Millisecond)))
	return b.String()
}

// FormatLessonList formats lessons for the /lessons command.
func FormatLessonList(module string, lessons []model.Lesson) string {
	if len(lessons) == 0 {
		return fmt.Sprintf("No lessons for module <b>%s</b> yet.", module)
	}

	sorted := append([]model.Lesson(nil), lessons...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Edge > sorted[j].Edge })

	var b strings.Builder
	b.WriteString(fmt.Sprintf("📚 <b>Lessons</b> | %s\n\n", module))
	for _, l := range sorted {
		b.WriteString(fmt.Sprintf("  [%s] %s\n    ×%.3f | edge %+.3f (incr %+.3f) | n=%d | rr %.2f\n",
			l.Status, l.TriggerKey, l.Multiplier, l.Edge, l.IncrementalEdge, l.SampleN, l.MeanRR))
	}
	return b.String()
}

// FormatPatternTop formats the strongest patterns for the /patterns command.
func FormatPatternTop(module string, patterns []model.PatternRecord, limit int) string {
	if len(patterns) == 0 {
		return fmt.Sprintf("No patterns for module <b>%s</b> yet.", module)
	}

	sorted := append([]model.PatternRecord(nil), patterns...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Stats.N > sorted[j].Stats.N })
	if limit > 0 && len(sorted) > limit {
		sorted = sorted[:limit]
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("🔬 <b>Patterns</b> | %s (top %d by samples)\n\n", module, len(sorted)))
	for _, p := range sorted {
		b.WriteString(fmt.Sprintf("  %s\n    n=%d | avg rr %.2f | var %.3f | win %.0f%%\n",
			p.Key, p.Stats.N, p.Stats.AvgRR(), p.Stats.Variance(), p.Stats.WinRate()*100))
	}
	return b.String()
}

// FormatStatus formats per-module counts for the /status command.
func FormatStatus(counts map[string][2]int) string {
	var b strings.Builder
	b.WriteString("📦 <b>Braid status</b>\n\n")

	modules := make([]string, 0, len(counts))
	for m := range counts {
		modules = append(modules, m)
	}
	sort.Strings(modules)

	for _, m := range modules {
		c := counts[m]
		b.WriteString(fmt.Sprintf("  %s: %d patterns, %d lessons\n", m, c[0], c[1]))
	}
	return b.String()
}

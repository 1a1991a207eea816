package pattern

import (
	"sort"

	"TradeBraid/internal/model"
)

// Candidate is one pattern key produced for a closed trade, together with
// its dimension map and the keys of its parents (every subset one
// non-outcome dimension smaller; the outcome class is always retained).
type Candidate struct {
	Key        string
	Dims       map[string]string
	ParentKeys []string
}

// Generator enumerates pattern candidates for one module: every
// combination of 1..maxSubset whitelisted non-outcome dimensions, each
// with the outcome class appended, plus the degenerate outcome-only
// pattern (the universal ancestor).
type Generator struct {
	whitelist map[string]bool
	maxSubset int
}

// NewGenerator builds a generator over a dimension whitelist. The outcome
// dimension never counts toward the subset size.
func NewGenerator(whitelist []string, maxSubset int) *Generator {
	wl := make(map[string]bool, len(whitelist))
	for _, d := range whitelist {
		wl[d] = true
	}
	return &Generator{whitelist: wl, maxSubset: maxSubset}
}

// Generate returns every pattern candidate for the given bucketed
// dimension map. A map without an outcome class produces no candidates.
func (g *Generator) Generate(dims map[string]string) []Candidate {
	outcome, ok := dims[model.OutcomeDim]
	if !ok || outcome == "" {
		return nil
	}

	// Participating non-outcome dimensions, sorted for determinism.
	names := make([]string, 0, len(dims))
	for k := range dims {
		if k == model.OutcomeDim {
			continue
		}
		if g.whitelist[k] {
			names = append(names, k)
		}
	}
	sort.Strings(names)

	// Degenerate outcome-only pattern first.
	base := map[string]string{model.OutcomeDim: outcome}
	out := []Candidate{{Key: Key(base), Dims: base}}

	for size := 1; size <= g.maxSubset && size <= len(names); size++ {
		for _, combo := range combinations(names, size) {
			cd := make(map[string]string, size+1)
			for _, n := range combo {
				cd[n] = dims[n]
			}
			cd[model.OutcomeDim] = outcome
			out = append(out, Candidate{
				Key:        Key(cd),
				Dims:       cd,
				ParentKeys: ParentKeys(cd),
			})
		}
	}
	return out
}

// ParentKeys returns the keys of every pattern obtained by dropping
// exactly one non-outcome dimension. A map with k non-outcome dimensions
// has exactly k parents; the outcome-only map has none.
func ParentKeys(dims map[string]string) []string {
	names := make([]string, 0, len(dims))
	for k := range dims {
		if k != model.OutcomeDim {
			names = append(names, k)
		}
	}
	sort.Strings(names)

	parents := make([]string, 0, len(names))
	for _, drop := range names {
		pd := make(map[string]string, len(dims)-1)
		for k, v := range dims {
			if k != drop {
				pd[k] = v
			}
		}
		parents = append(parents, Key(pd))
	}
	return parents
}

// FamilyID projects a pattern onto its module's core dimensions plus the
// outcome class. Patterns sharing core values belong to one family and
// compete for the same lesson slots.
func FamilyID(module string, coreDims []string, dims map[string]string) string {
	proj := make(map[string]string, len(coreDims)+1)
	for _, c := range coreDims {
		if v, ok := dims[c]; ok {
			proj[c] = v
		}
	}
	if v, ok := dims[model.OutcomeDim]; ok {
		proj[model.OutcomeDim] = v
	}
	return module + "|" + Key(proj)
}

// combinations enumerates all size-k subsets of names in lexicographic
// order.
func combinations(names []string, k int) [][]string {
	var out [][]string
	combo := make([]string, k)
	var rec func(start, depth int)
	rec = func(start, depth int) {
		if depth == k {
			c := make([]string, k)
			copy(c, combo)
			out = append(out, c)
			return
		}
		for i := start; i <= len(names)-(k-depth); i++ {
			combo[depth] = names[i]
			rec(i+1, depth+1)
		}
	}
	rec(0, 0)
	return out
}

package engine

import (
	"sort"

	"github.com/coolbeans/quarry/pkg/rdf"
	"github.com/coolbeans/quarry/pkg/solution"
	"github.com/coolbeans/quarry/pkg/store"
)

// Match yields one solution per quad in the active graph matching pattern.
// Variables and blank nodes in the pattern act as placeholders and are bound
// to the matched components.
func Match(pattern rdf.Triple, ctx *Context) Solutions {
	return MatchWith(pattern, solution.Empty(), ctx)
}

// MatchWith matches pattern after substituting placeholders already bound in
// input. Each result is input extended with the newly bound placeholders.
//
// When the active graph is the default graph and that graph is a merge of
// several store graphs, each constituent is searched and duplicate solutions
// are removed, so a triple present in several constituents is reported once.
func MatchWith(pattern rdf.Triple, input solution.Solution, ctx *Context) Solutions {
	graphs := ctx.activeGraphs()
	switch len(graphs) {
	case 0:
		return empty
	case 1:
		return matchGraph(pattern, input, graphs[0], ctx.store)
	}

	return func(yield func(solution.Solution, error) bool) {
		seen := solution.NewSet()
		for _, g := range graphs {
			for sol, err := range matchGraph(pattern, input, g, ctx.store) {
				if err != nil {
					yield(solution.Solution{}, err)
					return
				}
				if !seen.Add(sol) {
					continue
				}
				if !yield(sol, nil) {
					return
				}
			}
		}
	}
}

// slot is one resolved pattern position: either a concrete term passed to
// Find, or a placeholder to bind from the matched quad.
type slot struct {
	term rdf.Node
	bind string
}

func resolveSlots(pattern rdf.Triple, input solution.Solution) [3]slot {
	var slots [3]slot
	for i, n := range pattern.Nodes() {
		if !n.IsPlaceholder() {
			slots[i].term = n
			continue
		}
		name := n.PlaceholderName()
		if bound, ok := input.Get(name); ok {
			slots[i].term = bound
			continue
		}
		slots[i].bind = name
	}
	return slots
}

func matchGraph(pattern rdf.Triple, input solution.Solution, graph rdf.Node, st store.QuadStore) Solutions {
	return func(yield func(solution.Solution, error) bool) {
		slots := resolveSlots(pattern, input)
		quads := st.Find(graph, slots[0].term, slots[1].term, slots[2].term)

		for q, err := range quads {
			if err != nil {
				yield(solution.Solution{}, stageError(StagePatternMatch, pattern, err))
				return
			}
			sol, ok := bindQuad(slots, q, input)
			if !ok {
				continue
			}
			if !yield(sol, nil) {
				return
			}
		}
	}
}

// bindQuad extends input with the placeholder positions of q. It reports
// false when a placeholder repeated within the pattern matched two different
// terms.
func bindQuad(slots [3]slot, q rdf.Quad, input solution.Solution) (solution.Solution, bool) {
	nodes := q.Nodes()
	var fresh map[string]rdf.Node
	for i, sl := range slots {
		if sl.bind == "" {
			continue
		}
		if fresh == nil {
			fresh = make(map[string]rdf.Node, 3)
		}
		if prev, ok := fresh[sl.bind]; ok {
			if prev != nodes[i] {
				return solution.Solution{}, false
			}
			continue
		}
		fresh[sl.bind] = nodes[i]
	}
	if fresh == nil {
		// ground after substitution: multiplicity only
		return input, true
	}
	return input.ExtendAll(fresh), true
}

// matchAll evaluates a conjunction of patterns by chaining each pattern's
// output into the next as input.
func matchAll(patterns []rdf.Triple, input solution.Solution, ctx *Context) Solutions {
	if len(patterns) == 0 {
		return func(yield func(solution.Solution, error) bool) {
			yield(input, nil)
		}
	}
	if len(patterns) == 1 {
		return MatchWith(patterns[0], input, ctx)
	}
	return func(yield func(solution.Solution, error) bool) {
		for sol, err := range MatchWith(patterns[0], input, ctx) {
			if err != nil {
				yield(solution.Solution{}, err)
				return
			}
			for out, err := range matchAll(patterns[1:], sol, ctx) {
				if !yield(out, err) || err != nil {
					return
				}
			}
		}
	}
}

// planPatterns orders patterns so the most selective runs first, preferring
// at each step a pattern connected to variables already bound.
func planPatterns(patterns []rdf.Triple, input solution.Solution, stats *store.IndexStats) []rdf.Triple {
	if len(patterns) <= 1 || stats == nil || stats.TotalQuads == 0 {
		return patterns
	}

	type candidate struct {
		pattern     rdf.Triple
		selectivity float64
	}
	remaining := make([]candidate, len(patterns))
	for i, p := range patterns {
		remaining[i] = candidate{pattern: p, selectivity: estimateSelectivity(p, *stats)}
	}
	sort.SliceStable(remaining, func(i, j int) bool {
		return remaining[i].selectivity < remaining[j].selectivity
	})

	bound := make(map[string]bool)
	for _, name := range input.Variables() {
		bound[name] = true
	}
	ordered := make([]rdf.Triple, 0, len(patterns))
	for len(remaining) > 0 {
		pick := 0
		for i, c := range remaining {
			if connected(c.pattern, bound) {
				pick = i
				break
			}
		}
		chosen := remaining[pick].pattern
		remaining = append(remaining[:pick], remaining[pick+1:]...)
		ordered = append(ordered, chosen)
		for _, name := range chosen.Placeholders() {
			bound[name] = true
		}
	}
	return ordered
}

func connected(p rdf.Triple, bound map[string]bool) bool {
	if len(bound) == 0 {
		return false
	}
	for _, name := range p.Placeholders() {
		if bound[name] {
			return true
		}
	}
	return false
}

// estimateSelectivity estimates how many quads a pattern matches. Lower
// values are more selective.
func estimateSelectivity(p rdf.Triple, stats store.IndexStats) float64 {
	if stats.TotalQuads == 0 {
		return 1.0
	}

	total := float64(stats.TotalQuads)
	selectivity := total
	boundCount := 0

	positions := []struct {
		node   rdf.Node
		counts map[string]int
	}{
		{p.Subject, stats.SubjectCounts},
		{p.Predicate, stats.PredicateCounts},
		{p.Object, stats.ObjectCounts},
	}
	for _, pos := range positions {
		if pos.node.IsPlaceholder() {
			continue
		}
		boundCount++
		count, ok := pos.counts[pos.node.String()]
		switch {
		case !ok && boundCount == 1:
			selectivity = 0.1 // unknown term is very selective
		case !ok:
			selectivity *= 0.1
		case boundCount == 1:
			selectivity = float64(count)
		default:
			selectivity *= float64(count) / total
		}
	}

	if selectivity < 0.1 {
		selectivity = 0.1
	}
	return selectivity
}

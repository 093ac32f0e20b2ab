package engine

import (
	"cmp"
	"slices"
	"strings"

	"github.com/coolbeans/quarry/pkg/algebra"
	"github.com/coolbeans/quarry/pkg/errors"
	"github.com/coolbeans/quarry/pkg/rdf"
	"github.com/coolbeans/quarry/pkg/solution"
)

// JoinKind distinguishes inner joins from left (OPTIONAL) joins.
type JoinKind int

const (
	InnerJoin JoinKind = iota
	LeftOuterJoin
)

func (k JoinKind) String() string {
	if k == LeftOuterJoin {
		return "left"
	}
	return "inner"
}

// JoinSpec describes one join to perform.
type JoinSpec struct {
	Kind JoinKind
	// Filter is the OPTIONAL filter of a left join, evaluated on each
	// merged row. Rows where it is false or errors do not count as matches.
	Filter algebra.Expr
	// Shared lists the variables both sides may bind.
	Shared []string
}

// JoinStrategy evaluates a join given the left solutions and the right
// sub-tree. Every strategy produces the same multiset of solutions; they
// differ only in cost and output order.
type JoinStrategy interface {
	Name() string
	Join(left Solutions, right algebra.Operator, spec JoinSpec, ctx *Context) Solutions
}

// Strategy names, also accepted by ParseStrategy.
const (
	StrategyNestedLoop      = "nested_loop"
	StrategyHash            = "hash"
	StrategyMerge           = "merge"
	StrategyPatternPushdown = "pattern_pushdown"
)

// ParseStrategy returns the strategy with the given name.
func ParseStrategy(name string) (JoinStrategy, error) {
	switch name {
	case StrategyNestedLoop:
		return NestedLoopJoin{}, nil
	case StrategyHash:
		return HashJoin{}, nil
	case StrategyMerge:
		return MergeJoin{}, nil
	case StrategyPatternPushdown:
		return PatternPushdownJoin{}, nil
	}
	return nil, errors.InvalidConfigurationf("unknown join strategy %q", name)
}

// joinRow emits the merges of l with candidates for one left row, applying
// the left-join rules. It returns false when the consumer stopped.
func joinRow(l solution.Solution, candidates Solutions, spec JoinSpec, ctx *Context, yield func(solution.Solution, error) bool) bool {
	matched := false
	for r, err := range candidates {
		if err != nil {
			yield(solution.Solution{}, err)
			return false
		}
		m, ok := l.Merge(r)
		if !ok {
			continue
		}
		if spec.Filter != nil {
			pass, err := ctx.test(spec.Filter, m)
			if err != nil {
				ctx.opts.Observer.RowDropped(StageFilter, spec.Filter.String(), err)
				continue
			}
			if !pass {
				continue
			}
		}
		matched = true
		if !yield(m, nil) {
			return false
		}
	}
	if spec.Kind == LeftOuterJoin && !matched {
		return yield(l, nil)
	}
	return true
}

func sliceSeq(rows []solution.Solution) Solutions {
	return func(yield func(solution.Solution, error) bool) {
		for _, r := range rows {
			if !yield(r, nil) {
				return
			}
		}
	}
}

func collect(seq Solutions) ([]solution.Solution, error) {
	var rows []solution.Solution
	for s, err := range seq {
		if err != nil {
			return nil, err
		}
		rows = append(rows, s)
	}
	return rows, nil
}

// NestedLoopJoin evaluates the right side once per left solution, with that
// solution as input. It is correct for every operator combination.
type NestedLoopJoin struct{}

func (NestedLoopJoin) Name() string { return StrategyNestedLoop }

func (NestedLoopJoin) Join(left Solutions, right algebra.Operator, spec JoinSpec, ctx *Context) Solutions {
	return func(yield func(solution.Solution, error) bool) {
		for l, err := range left {
			if err != nil {
				yield(solution.Solution{}, err)
				return
			}
			if !joinRow(l, EvaluateWith(right, l, ctx), spec, ctx, yield) {
				return
			}
		}
	}
}

// PatternPushdownJoin matches a BGP right side directly with each left
// solution substituted into its patterns. Other right sides fall back to
// nested-loop evaluation.
type PatternPushdownJoin struct{}

func (PatternPushdownJoin) Name() string { return StrategyPatternPushdown }

func (PatternPushdownJoin) Join(left Solutions, right algebra.Operator, spec JoinSpec, ctx *Context) Solutions {
	bgp, ok := right.(*algebra.BGP)
	if !ok {
		return NestedLoopJoin{}.Join(left, right, spec, ctx)
	}
	return func(yield func(solution.Solution, error) bool) {
		for l, err := range left {
			if err != nil {
				yield(solution.Solution{}, err)
				return
			}
			patterns := bgp.Patterns
			if ctx.opts.Planning {
				patterns = planPatterns(patterns, l, ctx.indexStats())
			}
			if !joinRow(l, matchAll(patterns, l, ctx), spec, ctx, yield) {
				return
			}
		}
	}
}

// HashJoin evaluates the right side once, indexes it by the shared
// variables, and probes the index with each left solution. Right rows that
// leave a shared variable unbound are checked against every left row.
type HashJoin struct{}

func (HashJoin) Name() string { return StrategyHash }

func (HashJoin) Join(left Solutions, right algebra.Operator, spec JoinSpec, ctx *Context) Solutions {
	return func(yield func(solution.Solution, error) bool) {
		rows, err := collect(Evaluate(right, ctx))
		if err != nil {
			yield(solution.Solution{}, err)
			return
		}
		table := newHashTable(rows, spec.Shared)

		for l, err := range left {
			if err != nil {
				yield(solution.Solution{}, err)
				return
			}
			if !joinRow(l, sliceSeq(table.probe(l)), spec, ctx, yield) {
				return
			}
		}
	}
}

type hashTable struct {
	keys    []string
	buckets map[uint64][]solution.Solution
	// loose rows do not bind every key and may match any left row
	loose []solution.Solution
	all   []solution.Solution
}

func newHashTable(rows []solution.Solution, keys []string) *hashTable {
	t := &hashTable{keys: keys, buckets: make(map[uint64][]solution.Solution), all: rows}
	for _, r := range rows {
		if h, ok := keyHash(r, keys); ok {
			t.buckets[h] = append(t.buckets[h], r)
		} else {
			t.loose = append(t.loose, r)
		}
	}
	return t
}

// probe returns candidate rows for l in right-side order within each class.
// Merge compatibility is checked by the caller.
func (t *hashTable) probe(l solution.Solution) []solution.Solution {
	h, ok := keyHash(l, t.keys)
	if !ok {
		return t.all
	}
	bucket := t.buckets[h]
	if len(t.loose) == 0 {
		return bucket
	}
	out := make([]solution.Solution, 0, len(bucket)+len(t.loose))
	out = append(out, bucket...)
	return append(out, t.loose...)
}

func keyHash(s solution.Solution, keys []string) (uint64, bool) {
	var h uint64 = 14695981039346656037
	for _, k := range keys {
		n, ok := s.Get(k)
		if !ok {
			return 0, false
		}
		h = (h ^ n.Hash()) * 1099511628211
	}
	return h, true
}

// MergeJoin sorts both sides on the shared variables and merges runs of equal
// keys. Rows missing a shared variable are joined by comparison against the
// whole other side.
type MergeJoin struct{}

func (MergeJoin) Name() string { return StrategyMerge }

func (MergeJoin) Join(left Solutions, right algebra.Operator, spec JoinSpec, ctx *Context) Solutions {
	return func(yield func(solution.Solution, error) bool) {
		leftRows, err := collect(left)
		if err != nil {
			yield(solution.Solution{}, err)
			return
		}
		rightRows, err := collect(Evaluate(right, ctx))
		if err != nil {
			yield(solution.Solution{}, err)
			return
		}

		keys := spec.Shared
		lKeyed, lLoose := splitKeyed(leftRows, keys)
		rKeyed, rLoose := splitKeyed(rightRows, keys)
		byKey := func(a, b solution.Solution) int { return compareKeys(a, b, keys) }
		slices.SortStableFunc(lKeyed, byKey)
		slices.SortStableFunc(rKeyed, byKey)

		emit := func(l solution.Solution, candidates []solution.Solution) bool {
			return joinRow(l, sliceSeq(candidates), spec, ctx, yield)
		}

		i, j := 0, 0
		for i < len(lKeyed) {
			iEnd := i + 1
			for iEnd < len(lKeyed) && byKey(lKeyed[iEnd], lKeyed[i]) == 0 {
				iEnd++
			}
			for j < len(rKeyed) && byKey(rKeyed[j], lKeyed[i]) < 0 {
				j++
			}
			jEnd := j
			for jEnd < len(rKeyed) && byKey(rKeyed[jEnd], lKeyed[i]) == 0 {
				jEnd++
			}
			run := rKeyed[j:jEnd]
			if len(rLoose) > 0 {
				run = append(slices.Clip(run), rLoose...)
			}
			for _, l := range lKeyed[i:iEnd] {
				if !emit(l, run) {
					return
				}
			}
			i = iEnd
		}
		for _, l := range lLoose {
			if !emit(l, rightRows) {
				return
			}
		}
	}
}

func splitKeyed(rows []solution.Solution, keys []string) (keyed, loose []solution.Solution) {
	for _, r := range rows {
		if bindsAll(r, keys) {
			keyed = append(keyed, r)
		} else {
			loose = append(loose, r)
		}
	}
	return keyed, loose
}

func bindsAll(s solution.Solution, keys []string) bool {
	for _, k := range keys {
		if !s.Has(k) {
			return false
		}
	}
	return true
}

// compareKeys orders solutions by the terms bound to keys. The order is
// by term identity, matching the equality Merge uses.
func compareKeys(a, b solution.Solution, keys []string) int {
	for _, k := range keys {
		if c := compareTerms(a.Value(k), b.Value(k)); c != 0 {
			return c
		}
	}
	return 0
}

func compareTerms(x, y rdf.Node) int {
	if x.Kind() != y.Kind() {
		return cmp.Compare(x.Kind(), y.Kind())
	}
	if c := strings.Compare(x.Value(), y.Value()); c != 0 {
		return c
	}
	if c := strings.Compare(x.Datatype(), y.Datatype()); c != 0 {
		return c
	}
	return strings.Compare(x.Lang(), y.Lang())
}

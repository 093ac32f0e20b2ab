package engine

import (
	"fmt"

	"github.com/coolbeans/quarry/pkg/algebra"
	"github.com/coolbeans/quarry/pkg/errors"
	"github.com/coolbeans/quarry/pkg/logging"
	"github.com/coolbeans/quarry/pkg/rdf"
	"github.com/coolbeans/quarry/pkg/solution"
)

// Grouping partitions solutions by key expressions and folds each partition
// through a set of aggregates. A Grouping is a reusable description; every
// call to Apply builds its own group table.
type Grouping struct {
	keys []algebra.GroupKey
	aggs []algebra.AggregateBinding
}

// groupingSubject renders a grouping for error messages.
type groupingSubject struct{ g *Grouping }

func (s groupingSubject) String() string {
	return (&algebra.Group{Keys: s.g.keys, Aggregates: s.g.aggs}).String()
}

// NewGrouping validates keys and aggregates. A grouping with neither is a
// configuration error.
func NewGrouping(keys []algebra.GroupKey, aggs []algebra.AggregateBinding) (*Grouping, error) {
	g := &Grouping{keys: keys, aggs: aggs}
	if len(keys) == 0 && len(aggs) == 0 {
		return nil, stageError(StageGrouping, groupingSubject{g},
			errors.InvalidConfigurationf("group without keys or aggregates"))
	}
	for i, k := range keys {
		if k.Expr == nil {
			return nil, stageError(StageGrouping, nil,
				errors.InvalidConfigurationf("group key %d has no expression", i))
		}
	}
	for _, a := range aggs {
		if a.Aggregate == nil {
			return nil, stageError(StageAggregate, nil,
				errors.InvalidConfigurationf("binding ?%s has no aggregate", a.Var))
		}
		if a.Var == "" {
			return nil, stageError(StageAggregate, a.Aggregate,
				errors.InvalidConfigurationf("aggregate without output variable"))
		}
		if _, err := NewAccumulator(a.Aggregate); err != nil {
			return nil, stageError(StageAggregate, a.Aggregate, err)
		}
	}
	return g, nil
}

// KeyName returns the variable the i-th key is bound to in group solutions.
func (g *Grouping) KeyName(i int) string {
	if v := g.keys[i].Var; v != "" {
		return v
	}
	return fmt.Sprintf(".key%d", i)
}

// Key computes the group key of s. Evaluation stops at the first failing key
// expression, so the key holds only the components before it.
func (g *Grouping) Key(s solution.Solution, ctx *Context) solution.Solution {
	bound := make(map[string]rdf.Node, len(g.keys))
	for i, k := range g.keys {
		v, err := ctx.evaluate(k.Expr, s)
		if err != nil {
			ctx.opts.Observer.RowDropped(StageGrouping, k.Expr.String(), err)
			break
		}
		bound[g.KeyName(i)] = v
	}
	return solution.From(bound)
}

// NewGroup starts an empty group for key.
func (g *Grouping) NewGroup(key solution.Solution) *SolutionGroup {
	grp := &SolutionGroup{key: key, vars: make([]string, len(g.aggs)), accs: make([]Accumulator, len(g.aggs))}
	for i, a := range g.aggs {
		// validated by NewGrouping
		grp.accs[i], _ = NewAccumulator(a.Aggregate)
		grp.vars[i] = a.Var
	}
	return grp
}

// Apply groups the whole input and yields one solution per group, in order
// of first appearance. With no keys and no input a single empty group is
// still emitted, so COUNT(*) over nothing is 0.
func (g *Grouping) Apply(input Solutions, ctx *Context) Solutions {
	return func(yield func(solution.Solution, error) bool) {
		table := newGroupTable()
		for s, err := range input {
			if err != nil {
				yield(solution.Solution{}, err)
				return
			}
			grp := table.lookup(g.Key(s, ctx), g)
			if err := grp.Accumulate(s, ctx); err != nil {
				yield(solution.Solution{}, stageError(StageGrouping, groupingSubject{g}, err))
				return
			}
		}
		if len(table.order) == 0 && len(g.keys) == 0 {
			table.lookup(solution.Empty(), g)
		}

		ctx.opts.Observer.GroupsEmitted(len(table.order))
		ctx.opts.Logger.Debugw("groups finalized", logging.FieldCount, len(table.order))
		for _, grp := range table.order {
			if !yield(grp.Finalize(), nil) {
				return
			}
		}
	}
}

// groupTable indexes groups by key hash. Buckets resolve collisions with
// full key equality.
type groupTable struct {
	buckets map[uint64][]*SolutionGroup
	order   []*SolutionGroup
}

func newGroupTable() *groupTable {
	return &groupTable{buckets: make(map[uint64][]*SolutionGroup)}
}

func (t *groupTable) lookup(key solution.Solution, g *Grouping) *SolutionGroup {
	h := key.Hash()
	for _, grp := range t.buckets[h] {
		if grp.key.Equal(key) {
			return grp
		}
	}
	grp := g.NewGroup(key)
	t.buckets[h] = append(t.buckets[h], grp)
	t.order = append(t.order, grp)
	return grp
}

// SolutionGroup holds one group's key and the running state of its
// aggregates.
type SolutionGroup struct {
	key     solution.Solution
	vars    []string
	accs    []Accumulator
	members int

	result    solution.Solution
	finalized bool
}

// Key returns the group key.
func (grp *SolutionGroup) Key() solution.Solution { return grp.key }

// Members returns how many solutions were accumulated.
func (grp *SolutionGroup) Members() int { return grp.members }

// Finalized reports whether Finalize has run.
func (grp *SolutionGroup) Finalized() bool { return grp.finalized }

// Accumulate feeds s to every aggregate of the group.
func (grp *SolutionGroup) Accumulate(s solution.Solution, ctx *Context) error {
	if grp.finalized {
		return errors.New("accumulate after finalize")
	}
	for _, acc := range grp.accs {
		acc.Accumulate(s, ctx)
	}
	grp.members++
	return nil
}

// Finalize binds each aggregate result into the key solution. Aggregates
// without a value stay unbound. Later calls return the first result.
func (grp *SolutionGroup) Finalize() solution.Solution {
	if grp.finalized {
		return grp.result
	}
	out := make(map[string]rdf.Node, len(grp.accs))
	for i, acc := range grp.accs {
		if v, ok := acc.Result(); ok {
			out[grp.vars[i]] = v
		}
	}
	grp.result = grp.key.ExtendAll(out)
	grp.finalized = true
	return grp.result
}

package engine

import (
	"github.com/coolbeans/quarry/pkg/algebra"
	"github.com/coolbeans/quarry/pkg/rdf"
)

// Selector chooses the strategy for a join. Selection never fails: a
// selector with no opinion returns nil and the engine uses NestedLoopJoin.
type Selector interface {
	Select(left, right algebra.Operator, kind JoinKind, ctx *Context) JoinStrategy
}

// Rule inspects a join and returns a strategy, or nil to defer to the next
// rule.
type Rule func(left, right algebra.Operator, kind JoinKind, ctx *Context) JoinStrategy

// Rules is a Selector that tries each rule in order.
type Rules []Rule

func (rs Rules) Select(left, right algebra.Operator, kind JoinKind, ctx *Context) JoinStrategy {
	for _, r := range rs {
		if s := r(left, right, kind, ctx); s != nil {
			return s
		}
	}
	return NestedLoopJoin{}
}

// Fixed returns a selector that always picks s.
func Fixed(s JoinStrategy) Selector {
	return Rules{func(algebra.Operator, algebra.Operator, JoinKind, *Context) JoinStrategy { return s }}
}

// SelectorConfig tunes DefaultSelector.
type SelectorConfig struct {
	// HashMinSharedVars is the number of shared variables from which two
	// large sides are hash joined.
	HashMinSharedVars int
	// LargeCardinality is the estimated row count above which a side counts
	// as large.
	LargeCardinality float64
}

// DefaultSelectorConfig returns the built-in thresholds.
func DefaultSelectorConfig() SelectorConfig {
	return SelectorConfig{HashMinSharedVars: 2, LargeCardinality: 1000}
}

// DefaultSelector builds the standard rule chain:
//  1. large sides sharing several variables are hash joined;
//  2. a BGP right side is matched by pattern pushdown;
//  3. a right side that cannot take substituted input and shares variables
//     with the left is hash joined rather than re-evaluated per row;
//  4. anything else uses nested-loop substitution.
func DefaultSelector(cfg SelectorConfig) Rules {
	return Rules{
		HashForLargeSides(cfg),
		PushdownForPatterns,
		HashForOpaqueRight,
	}
}

// HashForLargeSides picks HashJoin when both sides are estimated large and
// share at least cfg.HashMinSharedVars variables.
func HashForLargeSides(cfg SelectorConfig) Rule {
	return func(left, right algebra.Operator, _ JoinKind, ctx *Context) JoinStrategy {
		if cfg.HashMinSharedVars <= 0 {
			return nil
		}
		if len(algebra.SharedVariables(left, right)) < cfg.HashMinSharedVars {
			return nil
		}
		if estimateCardinality(left, ctx) < cfg.LargeCardinality ||
			estimateCardinality(right, ctx) < cfg.LargeCardinality {
			return nil
		}
		return HashJoin{}
	}
}

// PushdownForPatterns picks PatternPushdownJoin for a BGP right side.
func PushdownForPatterns(_, right algebra.Operator, _ JoinKind, _ *Context) JoinStrategy {
	if _, ok := right.(*algebra.BGP); ok {
		return PatternPushdownJoin{}
	}
	return nil
}

// HashForOpaqueRight picks HashJoin when the right side shares variables with
// the left but would be evaluated from scratch for every left row.
func HashForOpaqueRight(left, right algebra.Operator, _ JoinKind, _ *Context) JoinStrategy {
	if acceptsInput(right) {
		return nil
	}
	if len(algebra.SharedVariables(left, right)) == 0 {
		return nil
	}
	return HashJoin{}
}

// estimateCardinality guesses the row count of op from store statistics.
// Without statistics every side counts as unbounded.
func estimateCardinality(op algebra.Operator, ctx *Context) float64 {
	stats := ctx.indexStats()
	if stats == nil {
		return inf
	}
	switch o := op.(type) {
	case *algebra.BGP:
		if len(o.Patterns) == 0 {
			return 1
		}
		best := inf
		for _, p := range o.Patterns {
			best = min(best, estimateSelectivity(p, *stats))
		}
		return best
	case *algebra.Join:
		return max(estimateCardinality(o.Left, ctx), estimateCardinality(o.Right, ctx))
	case *algebra.LeftJoin:
		return estimateCardinality(o.Left, ctx)
	case *algebra.Union:
		return estimateCardinality(o.Left, ctx) + estimateCardinality(o.Right, ctx)
	case *algebra.Filter:
		return estimateCardinality(o.Input, ctx)
	case *algebra.Graph:
		return estimateCardinality(o.Input, ctx)
	case *algebra.Extend:
		return estimateCardinality(o.Input, ctx)
	}
	return inf
}

const inf = 1e18

// acceptsInput reports whether op can be evaluated with an input solution
// substituted into its patterns without changing its meaning.
func acceptsInput(op algebra.Operator) bool {
	switch o := op.(type) {
	case *algebra.BGP:
		return true
	case *algebra.Join:
		return acceptsInput(o.Left) && acceptsInput(o.Right)
	case *algebra.Union:
		return acceptsInput(o.Left) && acceptsInput(o.Right)
	case *algebra.Graph:
		return !o.Name.IsVariable() && !o.Name.IsZero() && acceptsInput(o.Input)
	}
	return false
}

// graphName is a small helper for log output.
func graphName(g rdf.Node) string {
	if g.IsDefaultGraph() || g.IsZero() {
		return "DEFAULT"
	}
	return g.String()
}

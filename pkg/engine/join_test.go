package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coolbeans/quarry/pkg/algebra"
	"github.com/coolbeans/quarry/pkg/errors"
	"github.com/coolbeans/quarry/pkg/solution"
)

var allStrategies = []JoinStrategy{NestedLoopJoin{}, PatternPushdownJoin{}, HashJoin{}, MergeJoin{}}

func TestJoinStrategies_Agree(t *testing.T) {
	spo := algebra.NewBGP(tp(v("s"), exP, v("o")))
	chained := algebra.NewBGP(tp(v("o"), exP, v("o2")))
	eqO1 := &algebra.Binary{Op: algebra.OpEq, Left: algebra.V("o2"), Right: algebra.C(exO1)}
	partial := &algebra.Union{
		Left:  algebra.NewBGP(tp(v("s"), exP, exO1)),
		Right: algebra.NewBGP(tp(v("x"), exP, lTest)),
	}

	tests := []struct {
		name string
		op   algebra.Operator
		want int
	}{
		{"inner", &algebra.Join{Left: spo, Right: chained}, 2},
		{"left", &algebra.LeftJoin{Left: spo, Right: chained}, 6},
		{"left with filter", &algebra.LeftJoin{Left: spo, Right: chained, Expr: eqO1}, 5},
		{"right rows missing a shared variable", &algebra.Join{Left: spo, Right: partial}, 15},
		{"no shared variables", &algebra.Join{Left: spo, Right: algebra.NewBGP(tp(v("a"), exP, exO1))}, 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reference := runOp(t, tt.op, NewContext(exampleStore(t), WithSelector(Fixed(NestedLoopJoin{}))))
			require.Len(t, reference, tt.want)

			for _, s := range allStrategies {
				rec := &recorder{}
				ctx := NewContext(exampleStore(t), WithSelector(Fixed(s)), WithObserver(rec))
				got := runOp(t, tt.op, ctx)
				assertSameSolutions(t, reference, got)
				assert.Contains(t, rec.strategies, s.Name())
			}
		})
	}
}

func TestLeftJoin_KeepsUnmatchedRows(t *testing.T) {
	op := &algebra.LeftJoin{
		Left:  algebra.NewBGP(tp(exS, exP, v("o"))),
		Right: algebra.NewBGP(tp(v("o"), exP, v("o2"))),
	}
	rows := runOp(t, op, NewContext(exampleStore(t)))

	assertSameSolutions(t, []solution.Solution{
		solution.Of("o", exO1),
		solution.Of("o", lTest),
		solution.Of("o", blankB, "o2", exO1),
		solution.Of("o", blankB, "o2", lTest),
	}, rows)
}

func TestJoin_StopsPullingEarly(t *testing.T) {
	op := &algebra.Join{
		Left:  algebra.NewBGP(tp(v("s"), exP, v("o"))),
		Right: algebra.NewBGP(tp(v("a"), exP, v("b"))),
	}
	seq, err := Run(op, NewContext(exampleStore(t)))
	require.NoError(t, err)

	n := 0
	for _, err := range seq {
		require.NoError(t, err)
		n++
		if n == 3 {
			break
		}
	}
	assert.Equal(t, 3, n)
}

func TestParseStrategy(t *testing.T) {
	for _, s := range allStrategies {
		parsed, err := ParseStrategy(s.Name())
		require.NoError(t, err)
		assert.Equal(t, s, parsed)
	}

	_, err := ParseStrategy("sideways")
	require.Error(t, err)
	assert.True(t, errors.IsInvalidConfiguration(err))
}

func TestDefaultSelector(t *testing.T) {
	bgp := algebra.NewBGP(tp(v("s"), exP, v("o")))
	both := algebra.NewBGP(tp(v("s"), exP, v("o")), tp(v("s"), v("q"), v("o")))
	filtered := &algebra.Filter{Expr: algebra.C(lTest), Input: bgp}
	unrelated := &algebra.Filter{Expr: algebra.C(lTest), Input: algebra.NewBGP(tp(v("x"), exP, v("y")))}

	withStats := NewContext(exampleStore(t))
	withoutStats := NewContext(plainStore{exampleStore(t)})
	sel := DefaultSelector(DefaultSelectorConfig())

	tests := []struct {
		name        string
		left, right algebra.Operator
		ctx         *Context
		want        string
	}{
		{"pattern right side", bgp, bgp, withStats, StrategyPatternPushdown},
		{"opaque right side sharing variables", bgp, filtered, withStats, StrategyHash},
		{"opaque right side sharing nothing", bgp, unrelated, withStats, StrategyNestedLoop},
		{"large sides sharing two variables", both, both, withoutStats, StrategyHash},
		{"small sides sharing two variables", both, both, withStats, StrategyPatternPushdown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, sel.Select(tt.left, tt.right, InnerJoin, tt.ctx).Name())
		})
	}
}

func TestRules_FallBackToNestedLoop(t *testing.T) {
	ctx := NewContext(exampleStore(t))
	bgp := algebra.NewBGP(tp(v("s"), exP, v("o")))

	assert.Equal(t, StrategyNestedLoop, Rules{}.Select(bgp, bgp, InnerJoin, ctx).Name())

	abstain := func(algebra.Operator, algebra.Operator, JoinKind, *Context) JoinStrategy { return nil }
	assert.Equal(t, StrategyNestedLoop, Rules{abstain, abstain}.Select(bgp, bgp, InnerJoin, ctx).Name())

	merge := func(algebra.Operator, algebra.Operator, JoinKind, *Context) JoinStrategy { return MergeJoin{} }
	assert.Equal(t, StrategyMerge, Rules{abstain, merge}.Select(bgp, bgp, InnerJoin, ctx).Name())
}

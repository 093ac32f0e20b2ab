package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coolbeans/quarry/pkg/algebra"
	"github.com/coolbeans/quarry/pkg/errors"
	"github.com/coolbeans/quarry/pkg/rdf"
	"github.com/coolbeans/quarry/pkg/solution"
	"github.com/coolbeans/quarry/pkg/store"
)

var spo = algebra.NewBGP(tp(v("s"), exP, v("o")))

func TestFilter(t *testing.T) {
	rows := runOp(t, &algebra.Filter{
		Expr:  &algebra.Binary{Op: algebra.OpEq, Left: algebra.V("o"), Right: algebra.C(lTest)},
		Input: spo,
	}, NewContext(exampleStore(t)))

	assertSameSolutions(t, []solution.Solution{
		solution.Of("s", exS, "o", lTest),
		solution.Of("s", blankB, "o", lTest),
	}, rows)
}

func TestFilter_DropsRowsThatFail(t *testing.T) {
	rec := &recorder{}
	ctx := NewContext(exampleStore(t), WithObserver(rec))

	rows := runOp(t, &algebra.Filter{
		Expr:  &algebra.Binary{Op: algebra.OpGt, Left: algebra.V("missing"), Right: algebra.C(rdf.NewInteger(1))},
		Input: spo,
	}, ctx)

	assert.Empty(t, rows)
	require.Len(t, rec.dropped, 5)
	for _, stage := range rec.dropped {
		assert.Equal(t, StageFilter, stage)
	}
}

func TestFilter_UnsupportedFunctionAborts(t *testing.T) {
	seq, err := Run(&algebra.Filter{
		Expr:  &algebra.Call{Func: "NO_SUCH_FUNCTION", Args: []algebra.Expr{algebra.V("o")}},
		Input: spo,
	}, NewContext(exampleStore(t)))
	require.NoError(t, err)

	_, err = collect(seq)
	require.Error(t, err)
	assert.True(t, errors.IsNotSupported(err))
	stage, ok := StageOf(err)
	require.True(t, ok)
	assert.Equal(t, StageFilter, stage)
	assert.Contains(t, err.Error(), "NO_SUCH_FUNCTION")
}

func TestFilter_Exists(t *testing.T) {
	outgoing := algebra.NewBGP(tp(v("o"), exP, v("o2")))
	ctx := NewContext(exampleStore(t))

	rows := runOp(t, &algebra.Filter{Expr: &algebra.Exists{Pattern: outgoing}, Input: spo}, ctx)
	assertSameSolutions(t, []solution.Solution{solution.Of("s", exS, "o", blankB)}, rows)

	rows = runOp(t, &algebra.Filter{Expr: &algebra.Exists{Pattern: outgoing, Not: true}, Input: spo}, ctx)
	assert.Len(t, rows, 4)
}

func TestUnion(t *testing.T) {
	rows := runOp(t, &algebra.Union{
		Left:  algebra.NewBGP(tp(v("s"), exP, exO1)),
		Right: algebra.NewBGP(tp(v("s"), exP, lTest)),
	}, NewContext(exampleStore(t)))

	assertSameSolutions(t, []solution.Solution{
		solution.Of("s", exS),
		solution.Of("s", blankB),
		solution.Of("s", exS),
		solution.Of("s", blankB),
	}, rows)
}

func TestMinus(t *testing.T) {
	ctx := NewContext(exampleStore(t))

	rows := runOp(t, &algebra.Minus{Left: spo, Right: algebra.NewBGP(tp(v("o"), exP, v("o2")))}, ctx)
	assert.Len(t, rows, 4)
	for _, r := range rows {
		assert.NotEqual(t, blankB, r.Value("o"))
	}

	// no shared variable: nothing is removed
	rows = runOp(t, &algebra.Minus{Left: spo, Right: algebra.NewBGP(tp(v("x"), exP, v("y")))}, ctx)
	assert.Len(t, rows, 5)
}

func TestGraph(t *testing.T) {
	pattern := algebra.NewBGP(tp(v("x"), exP, v("y")))
	ctx := NewContext(namedStore(t))

	tests := []struct {
		name string
		op   algebra.Operator
		ctx  *Context
		want []solution.Solution
	}{
		{
			name: "named graph",
			op:   &algebra.Graph{Name: graphA, Input: pattern},
			ctx:  ctx,
			want: []solution.Solution{solution.Of("x", iri("a"), "y", iri("b"))},
		},
		{
			name: "unknown graph",
			op:   &algebra.Graph{Name: iri("nowhere"), Input: pattern},
			ctx:  ctx,
		},
		{
			name: "graph variable",
			op:   &algebra.Graph{Name: v("g"), Input: pattern},
			ctx:  ctx,
			want: []solution.Solution{
				solution.Of("g", graphA, "x", iri("a"), "y", iri("b")),
				solution.Of("g", graphB, "x", iri("c"), "y", iri("d")),
			},
		},
		{
			name: "graph variable with restricted named graphs",
			op:   &algebra.Graph{Name: v("g"), Input: pattern},
			ctx:  ctx.WithNamedGraphs(graphB),
			want: []solution.Solution{solution.Of("g", graphB, "x", iri("c"), "y", iri("d"))},
		},
		{
			name: "hidden named graph",
			op:   &algebra.Graph{Name: graphA, Input: pattern},
			ctx:  ctx.WithNamedGraphs(graphB),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assertSameSolutions(t, tt.want, runOp(t, tt.op, tt.ctx))
		})
	}
}

func TestGraph_JoinedWithDefaultGraph(t *testing.T) {
	ms := namedStore(t)
	require.NoError(t, ms.Assert(rdf.NewQuad(iri("e"), iri("in"), graphB, rdf.DefaultGraph)))

	op := &algebra.Join{
		Left:  algebra.NewBGP(tp(v("e"), iri("in"), v("g"))),
		Right: &algebra.Graph{Name: v("g"), Input: algebra.NewBGP(tp(v("x"), exP, v("y")))},
	}
	rows := runOp(t, op, NewContext(ms))
	assertSameSolutions(t, []solution.Solution{
		solution.Of("e", iri("e"), "g", graphB, "x", iri("c"), "y", iri("d")),
	}, rows)
}

func TestWithDataset(t *testing.T) {
	ctx := NewContext(namedStore(t)).WithDataset(&algebra.Dataset{Default: []rdf.Node{graphA, graphB}})

	rows := runOp(t, algebra.NewBGP(tp(v("x"), exP, v("y"))), ctx)
	assert.Len(t, rows, 2)

	// named graphs are hidden when the dataset lists none
	rows = runOp(t, &algebra.Graph{Name: v("g"), Input: algebra.NewBGP(tp(v("x"), exP, v("y")))}, ctx)
	assert.Empty(t, rows)

	assert.Same(t, ctx, ctx.WithDataset(nil))
}

func TestExtend(t *testing.T) {
	rec := &recorder{}
	rows := runOp(t, &algebra.Extend{
		Input: spo,
		Var:   "len",
		Expr:  &algebra.Call{Func: "STRLEN", Args: []algebra.Expr{algebra.V("o")}},
	}, NewContext(exampleStore(t), WithObserver(rec)))

	require.Len(t, rows, 5)
	bound := 0
	for _, r := range rows {
		if n, ok := r.Get("len"); ok {
			bound++
			assert.Equal(t, rdf.NewInteger(4), n)
			assert.Equal(t, lTest, r.Value("o"))
		}
	}
	assert.Equal(t, 2, bound)
	assert.Len(t, rec.dropped, 3)
}

func TestProjectDistinct(t *testing.T) {
	ctx := NewContext(exampleStore(t))

	projected := runOp(t, &algebra.Project{Input: spo, Vars: []string{"s"}}, ctx)
	assert.Len(t, projected, 5)
	for _, r := range projected {
		assert.Equal(t, []string{"s"}, r.Variables())
	}

	distinct := runOp(t, &algebra.Distinct{Input: &algebra.Project{Input: spo, Vars: []string{"s"}}}, ctx)
	assertSameSolutions(t, []solution.Solution{solution.Of("s", exS), solution.Of("s", blankB)}, distinct)
}

func valueStore(t testing.TB) *store.MemoryStore {
	t.Helper()
	ms := store.NewMemoryStore()
	for i, n := range []int64{3, 1, 2} {
		require.NoError(t, ms.Assert(rdf.NewQuad(iri(string(rune('a'+i))), iri("val"), rdf.NewInteger(n), rdf.DefaultGraph)))
	}
	return ms
}

func values(rows []solution.Solution, name string) []rdf.Node {
	out := make([]rdf.Node, len(rows))
	for i, r := range rows {
		out[i] = r.Value(name)
	}
	return out
}

func TestOrderBy(t *testing.T) {
	ctx := NewContext(valueStore(t))
	vals := algebra.NewBGP(tp(v("x"), iri("val"), v("v")))
	one, two, three := rdf.NewInteger(1), rdf.NewInteger(2), rdf.NewInteger(3)

	asc := runOp(t, &algebra.OrderBy{Input: vals, Conditions: []algebra.OrderCondition{{Expr: algebra.V("v")}}}, ctx)
	assert.Equal(t, []rdf.Node{one, two, three}, values(asc, "v"))

	desc := runOp(t, &algebra.OrderBy{Input: vals, Conditions: []algebra.OrderCondition{{Expr: algebra.V("v"), Descending: true}}}, ctx)
	assert.Equal(t, []rdf.Node{three, two, one}, values(desc, "v"))
}

func TestSlice(t *testing.T) {
	ctx := NewContext(valueStore(t))
	ordered := &algebra.OrderBy{
		Input:      algebra.NewBGP(tp(v("x"), iri("val"), v("v"))),
		Conditions: []algebra.OrderCondition{{Expr: algebra.V("v")}},
	}

	tests := []struct {
		name          string
		offset, limit int
		want          []rdf.Node
	}{
		{"offset and limit", 1, 1, []rdf.Node{rdf.NewInteger(2)}},
		{"no limit", 2, -1, []rdf.Node{rdf.NewInteger(3)}},
		{"zero limit", 0, 0, []rdf.Node{}},
		{"offset past end", 5, -1, []rdf.Node{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows := runOp(t, &algebra.Slice{Input: ordered, Offset: tt.offset, Limit: tt.limit}, ctx)
			assert.Equal(t, tt.want, values(rows, "v"))
		})
	}
}

func TestPrepare_ConfigurationErrors(t *testing.T) {
	tests := []struct {
		name  string
		op    algebra.Operator
		stage Stage
	}{
		{"join without right side", &algebra.Join{Left: spo}, StageJoin},
		{"filter without expression", &algebra.Filter{Input: spo}, StageFilter},
		{"literal graph name", &algebra.Graph{Name: lTest, Input: spo}, StageGraph},
		{"extend without variable", &algebra.Extend{Input: spo, Expr: algebra.V("o")}, StageExtend},
		{"group without keys or aggregates", &algebra.Group{Input: spo}, StageGrouping},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := &failingStore{}
			seq, err := Run(tt.op, NewContext(fs))
			require.Error(t, err)
			assert.Nil(t, seq)
			assert.True(t, errors.IsInvalidConfiguration(err))
			stage, ok := StageOf(err)
			require.True(t, ok)
			assert.Equal(t, tt.stage, stage)
			assert.Zero(t, fs.finds)
		})
	}

	err := Prepare(&algebra.Slice{Input: spo, Offset: -1})
	assert.True(t, errors.IsInvalidConfiguration(err))
	assert.NoError(t, Prepare(&algebra.Slice{Input: spo, Limit: -1}))
}

func TestEvaluate_StoreErrorsPropagate(t *testing.T) {
	op := &algebra.Join{Left: spo, Right: algebra.NewBGP(tp(v("o"), exP, v("o2")))}
	seq, err := Run(op, NewContext(&failingStore{}))
	require.NoError(t, err)

	_, err = collect(seq)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errBackend))
	stage, _ := StageOf(err)
	assert.Equal(t, StagePatternMatch, stage)
}

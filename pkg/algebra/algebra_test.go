package algebra

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/coolbeans/quarry/pkg/rdf"
)

var (
	ex = func(local string) rdf.Node { return rdf.NewIRI("http://example.org/" + local) }
	s  = rdf.NewVariable("s")
	o  = rdf.NewVariable("o")
	b  = rdf.NewBlank("b")
)

func TestVariables(t *testing.T) {
	tests := []struct {
		name string
		op   Operator
		want []string
	}{
		{
			name: "bgp with blank placeholder",
			op:   NewBGP(rdf.NewTriple(s, ex("p"), o), rdf.NewTriple(o, ex("p"), b)),
			want: []string{"s", "o", "_:b"},
		},
		{
			name: "minus ignores right side",
			op: &Minus{
				Left:  NewBGP(rdf.NewTriple(s, ex("p"), o)),
				Right: NewBGP(rdf.NewTriple(s, ex("q"), rdf.NewVariable("x"))),
			},
			want: []string{"s", "o"},
		},
		{
			name: "group exposes keys and aggregates only",
			op: &Group{
				Input:      NewBGP(rdf.NewTriple(s, ex("p"), o)),
				Keys:       []GroupKey{{Expr: V("s"), Var: "s"}},
				Aggregates: []AggregateBinding{{Aggregate: &Aggregate{Func: AggCount}, Var: "n"}},
			},
			want: []string{"s", "n"},
		},
		{
			name: "graph variable and extend",
			op: &Extend{
				Input: &Graph{Name: rdf.NewVariable("g"), Input: NewBGP(rdf.NewTriple(s, ex("p"), o))},
				Var:   "label",
				Expr:  &Call{Func: "STR", Args: []Expr{V("o")}},
			},
			want: []string{"g", "s", "o", "label"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Variables(tt.op))
		})
	}
}

func TestSharedVariables(t *testing.T) {
	left := NewBGP(rdf.NewTriple(s, ex("p"), o))
	right := NewBGP(rdf.NewTriple(o, ex("q"), s), rdf.NewTriple(s, ex("r"), rdf.NewVariable("z")))
	assert.Equal(t, []string{"s", "o"}, SharedVariables(left, right))
	assert.Empty(t, SharedVariables(left, NewBGP(rdf.NewTriple(rdf.NewVariable("x"), ex("p"), ex("y")))))
}

func TestJoinAll(t *testing.T) {
	assert.Equal(t, &BGP{}, JoinAll())

	a := NewBGP(rdf.NewTriple(s, ex("p"), o))
	assert.Same(t, a, JoinAll(nil, a))

	c := NewBGP(rdf.NewTriple(o, ex("q"), s))
	joined, ok := JoinAll(a, nil, c).(*Join)
	if assert.True(t, ok) {
		assert.Same(t, a, joined.Left)
		assert.Same(t, c, joined.Right)
	}
}

func TestString(t *testing.T) {
	op := &Slice{
		Offset: 1,
		Limit:  -1,
		Input: &Filter{
			Expr:  &Binary{Op: OpGt, Left: V("?n"), Right: C(rdf.NewInteger(2))},
			Input: NewBGP(rdf.NewTriple(s, ex("p"), o)),
		},
	}
	assert.Equal(t,
		`(slice 1 _ (filter (> ?n "2"^^<http://www.w3.org/2001/XMLSchema#integer>) (bgp (triple ?s <http://example.org/p> ?o))))`,
		op.String())

	agg := &Aggregate{Func: AggGroupConcat, Expr: V("o"), Distinct: true, Separator: ", "}
	assert.Equal(t, `GROUP_CONCAT(DISTINCT ?o; SEPARATOR=", ")`, agg.String())
	assert.Equal(t, "COUNT(*)", (&Aggregate{Func: AggCount}).String())
	assert.Equal(t, `(?x NOT IN ("a", "b"))`,
		(&In{Expr: V("x"), List: []Expr{C(rdf.NewLiteral("a")), C(rdf.NewLiteral("b"))}, Not: true}).String())
}

package expr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coolbeans/quarry/pkg/algebra"
	"github.com/coolbeans/quarry/pkg/errors"
	"github.com/coolbeans/quarry/pkg/rdf"
	"github.com/coolbeans/quarry/pkg/solution"
)

type existsFunc func(algebra.Operator, solution.Solution) (bool, error)

func (f existsFunc) Exists(p algebra.Operator, s solution.Solution) (bool, error) { return f(p, s) }

func call(name string, args ...algebra.Expr) *algebra.Call {
	return &algebra.Call{Func: name, Args: args}
}

func lit(v string) *algebra.Const { return algebra.C(rdf.NewLiteral(v)) }

func num(v int64) *algebra.Const { return algebra.C(rdf.NewInteger(v)) }

func TestEvaluate(t *testing.T) {
	ev := New()
	row := solution.Of(
		"name", rdf.NewLangLiteral("Regulation", "en"),
		"age", rdf.NewInteger(30),
		"score", rdf.NewDecimal(2.5),
		"doc", rdf.NewIRI("http://example.org/doc1"),
	)

	tests := []struct {
		name string
		expr algebra.Expr
		want rdf.Node
	}{
		{"variable", algebra.V("age"), rdf.NewInteger(30)},
		{"integer addition", &algebra.Binary{Op: algebra.OpAdd, Left: algebra.V("age"), Right: num(12)}, rdf.NewInteger(42)},
		{"promotion to decimal", &algebra.Binary{Op: algebra.OpMul, Left: algebra.V("age"), Right: algebra.V("score")}, rdf.NewDecimal(75)},
		{"integer division yields decimal", &algebra.Binary{Op: algebra.OpDiv, Left: num(7), Right: num(2)}, rdf.NewDecimal(3.5)},
		{"negation", &algebra.Unary{Op: algebra.OpNeg, Operand: algebra.V("age")}, rdf.NewInteger(-30)},
		{"numeric equality across types", &algebra.Binary{Op: algebra.OpEq, Left: num(1), Right: algebra.C(rdf.NewDouble(1))}, rdf.NewBoolean(true)},
		{"greater than", &algebra.Binary{Op: algebra.OpGt, Left: algebra.V("age"), Right: num(18)}, rdf.NewBoolean(true)},
		{"string order", &algebra.Binary{Op: algebra.OpLt, Left: lit("abc"), Right: lit("abd")}, rdf.NewBoolean(true)},
		{"different terms unequal", &algebra.Binary{Op: algebra.OpNe, Left: algebra.V("doc"), Right: algebra.C(rdf.NewIRI("http://example.org/doc2"))}, rdf.NewBoolean(true)},
		{"STR of IRI", call("str", algebra.V("doc")), rdf.NewLiteral("http://example.org/doc1")},
		{"LANG", call("LANG", algebra.V("name")), rdf.NewLiteral("en")},
		{"DATATYPE", call("DATATYPE", algebra.V("age")), rdf.NewIRI(rdf.XSDInteger)},
		{"CONTAINS", call("CONTAINS", algebra.V("name"), lit("gula")), rdf.NewBoolean(true)},
		{"STRSTARTS", call("STRSTARTS", call("STR", algebra.V("doc")), lit("http://")), rdf.NewBoolean(true)},
		{"STRENDS", call("STRENDS", lit("article.pdf"), lit(".txt")), rdf.NewBoolean(false)},
		{"UCASE keeps language", call("UCASE", algebra.V("name")), rdf.NewLangLiteral("REGULATION", "en")},
		{"STRLEN counts runes", call("STRLEN", lit("Ärger")), rdf.NewInteger(5)},
		{"SUBSTR", call("SUBSTR", lit("Regulation"), num(3), num(4)), rdf.NewLiteral("gula")},
		{"CONCAT", call("CONCAT", lit("a"), lit("b")), rdf.NewLiteral("ab")},
		{"REGEX case-insensitive", call("REGEX", algebra.V("name"), lit("^reg"), lit("i")), rdf.NewBoolean(true)},
		{"REGEX no match", call("REGEX", algebra.V("name"), lit("^reg")), rdf.NewBoolean(false)},
		{"BOUND", call("BOUND", algebra.V("age")), rdf.NewBoolean(true)},
		{"not BOUND", &algebra.Unary{Op: algebra.OpNot, Operand: call("BOUND", algebra.V("missing"))}, rdf.NewBoolean(true)},
		{"COALESCE skips errors", call("COALESCE", algebra.V("missing"), num(7)), rdf.NewInteger(7)},
		{"IF", call("IF", &algebra.Binary{Op: algebra.OpLt, Left: algebra.V("age"), Right: num(18)}, lit("minor"), lit("adult")), rdf.NewLiteral("adult")},
		{"ABS", call("ABS", num(-4)), rdf.NewInteger(4)},
		{"ROUND", call("ROUND", algebra.C(rdf.NewDecimal(2.5))), rdf.NewDecimal(3)},
		{"IN", &algebra.In{Expr: algebra.V("age"), List: []algebra.Expr{num(1), num(30)}}, rdf.NewBoolean(true)},
		{"NOT IN", &algebra.In{Expr: algebra.V("age"), List: []algebra.Expr{num(1)}, Not: true}, rdf.NewBoolean(true)},
		{"isIRI", call("isIRI", algebra.V("doc")), rdf.NewBoolean(true)},
		{"LANGMATCHES", call("LANGMATCHES", call("LANG", algebra.V("name")), lit("*")), rdf.NewBoolean(true)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ev.Evaluate(tt.expr, row, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvaluateErrors(t *testing.T) {
	ev := New()
	row := solution.Of("doc", rdf.NewIRI("http://example.org/doc1"))

	_, err := ev.Evaluate(algebra.V("missing"), row, nil)
	assert.True(t, errors.Is(err, ErrUnbound))

	_, err = ev.Evaluate(&algebra.Binary{Op: algebra.OpAdd, Left: algebra.V("doc"), Right: num(1)}, row, nil)
	assert.True(t, errors.Is(err, ErrType))

	_, err = ev.Evaluate(&algebra.Binary{Op: algebra.OpDiv, Left: num(1), Right: num(0)}, row, nil)
	assert.True(t, errors.Is(err, rdf.ErrDivideByZero))

	_, err = ev.Evaluate(call("NOSUCHFN"), row, nil)
	assert.True(t, errors.IsNotSupported(err))

	_, err = ev.Evaluate(&algebra.Exists{Pattern: algebra.NewBGP()}, row, nil)
	assert.True(t, errors.IsNotSupported(err))

	_, err = ev.Evaluate(&algebra.Aggregate{Func: algebra.AggCount}, row, nil)
	assert.Error(t, err)
}

func TestLogicalErrorMasking(t *testing.T) {
	ev := New()
	row := solution.Empty()
	failing := algebra.V("missing")
	yes := algebra.C(rdf.NewBoolean(true))
	no := algebra.C(rdf.NewBoolean(false))

	got, err := ev.Test(&algebra.Binary{Op: algebra.OpOr, Left: failing, Right: yes}, row, nil)
	require.NoError(t, err)
	assert.True(t, got)

	got, err = ev.Test(&algebra.Binary{Op: algebra.OpAnd, Left: no, Right: failing}, row, nil)
	require.NoError(t, err)
	assert.False(t, got)

	_, err = ev.Test(&algebra.Binary{Op: algebra.OpAnd, Left: yes, Right: failing}, row, nil)
	assert.Error(t, err)
}

func TestExistsUsesEnv(t *testing.T) {
	ev := New()
	var seen solution.Solution
	env := existsFunc(func(_ algebra.Operator, s solution.Solution) (bool, error) {
		seen = s
		return s.Has("x"), nil
	})
	row := solution.Of("x", rdf.NewInteger(1))

	got, err := ev.Test(&algebra.Exists{Pattern: algebra.NewBGP()}, row, env)
	require.NoError(t, err)
	assert.True(t, got)
	assert.True(t, seen.Equal(row))

	got, err = ev.Test(&algebra.Exists{Pattern: algebra.NewBGP(), Not: true}, row, env)
	require.NoError(t, err)
	assert.False(t, got)
}

func TestEBV(t *testing.T) {
	tests := []struct {
		node    rdf.Node
		want    bool
		wantErr bool
	}{
		{rdf.NewBoolean(true), true, false},
		{rdf.NewBoolean(false), false, false},
		{rdf.NewLiteral(""), false, false},
		{rdf.NewLiteral("x"), true, false},
		{rdf.NewInteger(0), false, false},
		{rdf.NewDouble(0.5), true, false},
		{rdf.NewTypedLiteral("abc", rdf.XSDInteger), false, false},
		{rdf.NewIRI("http://example.org/x"), false, true},
		{rdf.NewTypedLiteral("2024-01-01T00:00:00Z", rdf.XSDDateTime), false, true},
	}
	for _, tt := range tests {
		got, err := EBV(tt.node)
		if tt.wantErr {
			assert.Error(t, err, tt.node.String())
			continue
		}
		require.NoError(t, err, tt.node.String())
		assert.Equal(t, tt.want, got, tt.node.String())
	}
}

func TestEqualUnknownDatatypes(t *testing.T) {
	a := rdf.NewTypedLiteral("1", "http://example.org/dt1")
	b := rdf.NewTypedLiteral("1", "http://example.org/dt2")
	_, err := Equal(a, b)
	assert.True(t, errors.Is(err, ErrType))

	eq, err := Equal(rdf.NewLiteral("a"), rdf.NewLangLiteral("a", "en"))
	require.NoError(t, err)
	assert.False(t, eq)
}

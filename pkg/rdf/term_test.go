package rdf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNodeEquality(t *testing.T) {
	tests := []struct {
		name  string
		a, b  Node
		equal bool
	}{
		{"same IRI", NewIRI("http://ex/a"), NewIRI("http://ex/a"), true},
		{"different IRI", NewIRI("http://ex/a"), NewIRI("http://ex/b"), false},
		{"IRI vs literal", NewIRI("a"), NewLiteral("a"), false},
		{"blank vs variable", NewBlank("x"), NewVariable("x"), false},
		{"variable vs literal", NewVariable("x"), NewLiteral("x"), false},
		{"plain equals xsd:string", NewLiteral("x"), NewTypedLiteral("x", XSDString), true},
		{"language tag case", NewLangLiteral("chat", "EN-us"), NewLangLiteral("chat", "en-US"), true},
		{"language differs", NewLangLiteral("chat", "en"), NewLangLiteral("chat", "fr"), false},
		{"lang vs plain", NewLangLiteral("chat", "en"), NewLiteral("chat"), false},
		{"integer canonical", NewTypedLiteral("01", XSDInteger), NewInteger(1), true},
		{"integer vs decimal", NewInteger(1), NewDecimal(1), false},
		{"boolean canonical", NewTypedLiteral("1", XSDBoolean), NewBoolean(true), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.equal, tt.a.Equal(tt.b))
			if tt.equal {
				assert.Equal(t, tt.a.Hash(), tt.b.Hash())
			}
		})
	}
}

func TestNodeString(t *testing.T) {
	assert.Equal(t, "<http://ex/a>", NewIRI("http://ex/a").String())
	assert.Equal(t, "_:b1", NewBlank("b1").String())
	assert.Equal(t, "?x", NewVariable("?x").String())
	assert.Equal(t, `"hi"`, NewLiteral("hi").String())
	assert.Equal(t, `"hi"@en`, NewLangLiteral("hi", "en").String())
	assert.Equal(t, `"5"^^<http://www.w3.org/2001/XMLSchema#integer>`, NewInteger(5).String())
	assert.Equal(t, `"a\"b"`, NewLiteral(`a"b`).String())
	assert.Equal(t, "DEFAULT", DefaultGraph.String())
}

func TestPlaceholders(t *testing.T) {
	pattern := NewTriple(NewVariable("s"), NewIRI("http://ex/p"), NewBlank("b"))
	assert.False(t, pattern.IsGround())
	assert.Equal(t, []string{"s", "_:b"}, pattern.Placeholders())

	repeated := NewTriple(NewVariable("x"), NewIRI("http://ex/p"), NewVariable("x"))
	assert.Equal(t, []string{"x"}, repeated.Placeholders())

	ground := NewTriple(NewIRI("http://ex/s"), NewIRI("http://ex/p"), NewLiteral("o"))
	assert.True(t, ground.IsGround())
	assert.Empty(t, ground.Placeholders())
}

func TestCompare(t *testing.T) {
	assert.Equal(t, -1, Compare(Node{}, NewBlank("a")))
	assert.Equal(t, -1, Compare(NewBlank("z"), NewIRI("a")))
	assert.Equal(t, -1, Compare(NewIRI("z"), NewLiteral("a")))
	assert.Equal(t, -1, Compare(NewInteger(2), NewInteger(10)))
	assert.Equal(t, 1, Compare(NewDecimal(2.5), NewInteger(2)))
	assert.Equal(t, 0, Compare(NewLiteral("a"), NewLiteral("a")))
	assert.Equal(t, -1, Compare(NewLiteral("a"), NewLiteral("b")))
}

func TestNumberArithmetic(t *testing.T) {
	sum := IntNumber(2).Add(IntNumber(3))
	assert.Equal(t, Integer, sum.Type)
	assert.Equal(t, NewInteger(5), sum.Node())

	mixed := IntNumber(2).Add(DecimalNumber(0.5))
	assert.Equal(t, Decimal, mixed.Type)
	assert.Equal(t, NewDecimal(2.5), mixed.Node())

	q, err := IntNumber(3).Div(IntNumber(2))
	require.NoError(t, err)
	assert.Equal(t, Decimal, q.Type)
	assert.InDelta(t, 1.5, q.Float(), 1e-9)

	_, err = IntNumber(1).Div(IntNumber(0))
	assert.ErrorIs(t, err, ErrDivideByZero)

	n, ok := NumberOf(NewTypedLiteral("42", XSDInt))
	require.True(t, ok)
	assert.Equal(t, float64(42), n.Float())

	_, ok = NumberOf(NewLiteral("42"))
	assert.False(t, ok)
}

func TestDecimalLiteralsAreExact(t *testing.T) {
	long := NewTypedLiteral("0.10000000000000000001", XSDDecimal)
	short := NewTypedLiteral("0.1", XSDDecimal)
	assert.False(t, long.Equal(short))
	assert.Equal(t, "0.10000000000000000001", long.Value())
	assert.Equal(t, 1, Compare(long, short))

	tests := []struct{ lexical, want string }{
		{"1", "1.0"},
		{"+001.500", "1.5"},
		{"-.5", "-0.5"},
		{"5.", "5.0"},
		{"-0.000", "0.0"},
		{"100", "100.0"},
		{"1e3", "1e3"},
		{"abc", "abc"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NewTypedLiteral(tt.lexical, XSDDecimal).Value(), tt.lexical)
	}

	sum := DecimalNumber(0.1).Add(DecimalNumber(0.2))
	assert.Equal(t, NewTypedLiteral("0.3", XSDDecimal), sum.Node())
}

func TestIntegerLiteralsBeyondInt64(t *testing.T) {
	big := NewTypedLiteral("+099999999999999999999", XSDInteger)
	assert.Equal(t, "99999999999999999999", big.Value())

	n, ok := NumberOf(big)
	require.True(t, ok)
	assert.Equal(t, Integer, n.Type)

	maxInt, ok := NumberOf(NewInteger(9223372036854775807))
	require.True(t, ok)
	sum := maxInt.Add(IntNumber(1))
	assert.Equal(t, NewTypedLiteral("9223372036854775808", XSDInteger), sum.Node())
	assert.Equal(t, 1, sum.Cmp(maxInt))

	product := n.Mul(IntNumber(-2))
	assert.Equal(t, "-199999999999999999998", product.Node().Value())

	assert.Equal(t, "0", NewTypedLiteral("-0", XSDInteger).Value())
	_, ok = NumberOf(NewTypedLiteral("1.0", XSDInteger))
	assert.False(t, ok)
}

package rdf

import (
	"math"
	"strconv"
	"strings"

	"github.com/cockroachdb/apd/v3"

	"github.com/coolbeans/quarry/pkg/errors"
)

// NumericType orders the numeric datatypes by promotion rank.
type NumericType uint8

const (
	NotNumeric NumericType = iota
	Integer
	Decimal
	Double
)

// divisionPrecision is the number of significant digits kept by decimal
// division, the only inexact operation on integers and decimals.
const divisionPrecision = 34

var (
	// exact performs addition, subtraction and multiplication without
	// rounding.
	exact = apd.BaseContext
	// division rounds quotients to divisionPrecision digits.
	division = apd.BaseContext.WithPrecision(divisionPrecision)
)

// ErrDivideByZero is returned for integer and decimal division by zero.
var ErrDivideByZero = errors.New("division by zero")

// Number is a numeric literal value with its promotion type. Integers and
// decimals are held exactly at arbitrary precision; doubles as float64.
// Numbers are immutable: operations always allocate their result.
type Number struct {
	Type NumericType
	d    *apd.Decimal
	f    float64
}

// IntNumber returns an integer Number.
func IntNumber(v int64) Number { return Number{Type: Integer, d: apd.New(v, 0)} }

// DecimalNumber returns the decimal Number written by the shortest
// representation of v. Non-finite values have no decimal form and become
// doubles.
func DecimalNumber(v float64) Number {
	d, ok := parseDecimal(strconv.FormatFloat(v, 'f', -1, 64))
	if !ok {
		return DoubleNumber(v)
	}
	return Number{Type: Decimal, d: d}
}

// DoubleNumber returns a double Number.
func DoubleNumber(v float64) Number { return Number{Type: Double, f: v} }

// NumberOf extracts the numeric value of a literal. It reports false for
// non-literals, non-numeric datatypes and malformed lexical forms.
func NumberOf(n Node) (Number, bool) {
	if n.kind != KindLiteral {
		return Number{}, false
	}
	switch n.datatype {
	case XSDInteger, XSDInt, XSDLong, XSDShort, XSDByte,
		XSDNonNegativeInteger, XSDPositiveInteger, XSDNegativeInteger, XSDNonPositiveInteger:
		d, ok := parseInteger(n.value)
		if !ok {
			return Number{}, false
		}
		return Number{Type: Integer, d: d}, true
	case XSDDecimal:
		d, ok := parseDecimal(n.value)
		if !ok {
			return Number{}, false
		}
		return Number{Type: Decimal, d: d}, true
	case XSDDouble, XSDFloat:
		v, err := strconv.ParseFloat(strings.TrimSpace(n.value), 64)
		if err != nil {
			return Number{}, false
		}
		return DoubleNumber(v), true
	}
	return Number{}, false
}

// IsNumeric reports whether the node is a well-formed numeric literal.
func IsNumeric(n Node) bool {
	_, ok := NumberOf(n)
	return ok
}

// Float returns the value as float64, rounding integers and decimals that
// have no exact float64 form.
func (a Number) Float() float64 {
	if a.Type == Double || a.d == nil {
		return a.f
	}
	f, err := a.d.Float64()
	if err != nil {
		return math.NaN()
	}
	return f
}

func promote(a, b Number) NumericType {
	if a.Type > b.Type {
		return a.Type
	}
	return b.Type
}

type exactOp func(c *apd.Context, d, x, y *apd.Decimal) (apd.Condition, error)

// arith applies op exactly when neither side is a double.
func arith(a, b Number, op exactOp, fallback func(x, y float64) float64) Number {
	t := promote(a, b)
	if t == Double {
		return DoubleNumber(fallback(a.Float(), b.Float()))
	}
	res := new(apd.Decimal)
	if _, err := op(&exact, res, a.d, b.d); err != nil {
		// Only exponent overflow can fail here.
		return DoubleNumber(fallback(a.Float(), b.Float()))
	}
	return Number{Type: t, d: res}
}

// Add returns a+b with type promotion.
func (a Number) Add(b Number) Number {
	return arith(a, b, (*apd.Context).Add, func(x, y float64) float64 { return x + y })
}

// Sub returns a-b with type promotion.
func (a Number) Sub(b Number) Number {
	return arith(a, b, (*apd.Context).Sub, func(x, y float64) float64 { return x - y })
}

// Mul returns a*b with type promotion.
func (a Number) Mul(b Number) Number {
	return arith(a, b, (*apd.Context).Mul, func(x, y float64) float64 { return x * y })
}

// Div returns a/b. Integer division yields a decimal.
func (a Number) Div(b Number) (Number, error) {
	if promote(a, b) == Double {
		return DoubleNumber(a.Float() / b.Float()), nil
	}
	if b.d.IsZero() {
		return Number{}, ErrDivideByZero
	}
	res := new(apd.Decimal)
	if _, err := division.Quo(res, a.d, b.d); err != nil {
		return Number{}, errors.Wrap(err, "decimal division")
	}
	return Number{Type: Decimal, d: res}, nil
}

// Cmp compares a and b by value.
func (a Number) Cmp(b Number) int {
	if a.Type != Double && b.Type != Double {
		return a.d.Cmp(b.d)
	}
	af, bf := a.Float(), b.Float()
	switch {
	case math.IsNaN(af) || math.IsNaN(bf):
		return 0
	case af < bf:
		return -1
	case af > bf:
		return 1
	}
	return 0
}

// Node returns the canonical literal for the number.
func (a Number) Node() Node {
	switch a.Type {
	case Integer:
		return Node{kind: KindLiteral, value: integerLexical(a.d), datatype: XSDInteger}
	case Decimal:
		return Node{kind: KindLiteral, value: decimalLexical(a.d), datatype: XSDDecimal}
	default:
		return NewDouble(a.f)
	}
}

// splitSign separates an optional leading sign from s.
func splitSign(s string) (negative bool, body string) {
	if s != "" && (s[0] == '+' || s[0] == '-') {
		return s[0] == '-', s[1:]
	}
	return false, s
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// parseInteger parses the xsd:integer lexical space: an optional sign and
// one or more digits.
func parseInteger(lexical string) (*apd.Decimal, bool) {
	negative, body := splitSign(strings.TrimSpace(lexical))
	if body == "" || !allDigits(body) {
		return nil, false
	}
	if negative {
		body = "-" + body
	}
	d, _, err := apd.NewFromString(body)
	if err != nil {
		return nil, false
	}
	return d, true
}

// parseDecimal parses the xsd:decimal lexical space: an optional sign and
// digits with at most one decimal point, e.g. "1", "-1.50", ".5", "5.".
func parseDecimal(lexical string) (*apd.Decimal, bool) {
	negative, body := splitSign(strings.TrimSpace(lexical))
	whole, frac, _ := strings.Cut(body, ".")
	if whole == "" && frac == "" {
		return nil, false
	}
	if !allDigits(whole) || !allDigits(frac) {
		return nil, false
	}
	if whole == "" {
		whole = "0"
	}
	s := whole
	if frac != "" {
		s += "." + frac
	}
	if negative {
		s = "-" + s
	}
	d, _, err := apd.NewFromString(s)
	if err != nil {
		return nil, false
	}
	return d, true
}

// integerLexical writes an integral value without exponent or leading zeros.
func integerLexical(d *apd.Decimal) string {
	if d.IsZero() {
		return "0"
	}
	var r apd.Decimal
	r.Reduce(d)
	return r.Text('f')
}

// decimalLexical writes the canonical xsd:decimal form: no trailing
// fractional zeros, and at least one digit on each side of the point.
func decimalLexical(d *apd.Decimal) string {
	if d.IsZero() {
		return "0.0"
	}
	var r apd.Decimal
	r.Reduce(d)
	s := r.Text('f')
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

package expr

import (
	"math"
	"strings"

	"github.com/coolbeans/quarry/pkg/errors"
	"github.com/coolbeans/quarry/pkg/rdf"
)

// EBV returns the effective boolean value of n.
func EBV(n rdf.Node) (bool, error) {
	if !n.IsLiteral() {
		return false, errors.Wrapf(ErrType, "no boolean value for %s", n)
	}
	switch dt := n.Datatype(); {
	case dt == rdf.XSDBoolean:
		switch n.Value() {
		case "true":
			return true, nil
		case "false":
			return false, nil
		}
		return false, nil
	case dt == rdf.XSDString || dt == rdf.RDFLangString:
		return n.Value() != "", nil
	}
	if num, ok := rdf.NumberOf(n); ok {
		f := num.Float()
		return f != 0 && !math.IsNaN(f), nil
	}
	if isNumericDatatype(n.Datatype()) {
		// malformed numeric lexical form
		return false, nil
	}
	return false, errors.Wrapf(ErrType, "no boolean value for %s", n)
}

// Equal implements the = operator. Numbers compare by value; other terms by
// identity. Literals of two different unrecognized datatypes cannot be
// compared and yield a type error.
func Equal(a, b rdf.Node) (bool, error) {
	if na, ok := rdf.NumberOf(a); ok {
		if nb, ok := rdf.NumberOf(b); ok {
			return na.Cmp(nb) == 0, nil
		}
	}
	if a == b {
		return true, nil
	}
	if a.IsLiteral() && b.IsLiteral() && a.Datatype() != b.Datatype() &&
		!knownDatatype(a.Datatype()) && !knownDatatype(b.Datatype()) {
		return false, errors.Wrapf(ErrType, "cannot compare %s and %s", a, b)
	}
	return false, nil
}

// Order implements <, <=, > and >=. It returns a negative, zero or positive
// number, or a type error when the operands are not comparable.
func Order(a, b rdf.Node) (int, error) {
	if na, ok := rdf.NumberOf(a); ok {
		if nb, ok := rdf.NumberOf(b); ok {
			return na.Cmp(nb), nil
		}
	}
	if a.IsLiteral() && b.IsLiteral() {
		switch {
		case isStringLike(a) && isStringLike(b) && a.Lang() == b.Lang():
			return strings.Compare(a.Value(), b.Value()), nil
		case a.Datatype() == rdf.XSDBoolean && b.Datatype() == rdf.XSDBoolean:
			return boolRank(a.Value()) - boolRank(b.Value()), nil
		case a.Datatype() == rdf.XSDDateTime && b.Datatype() == rdf.XSDDateTime:
			return strings.Compare(a.Value(), b.Value()), nil
		}
	}
	return 0, errors.Wrapf(ErrType, "cannot order %s and %s", a, b)
}

func boolRank(v string) int {
	if v == "true" {
		return 1
	}
	return 0
}

func isStringLike(n rdf.Node) bool {
	return n.IsLiteral() && (n.Datatype() == rdf.XSDString || n.Datatype() == rdf.RDFLangString)
}

func isNumericDatatype(dt string) bool {
	switch dt {
	case rdf.XSDInteger, rdf.XSDInt, rdf.XSDLong, rdf.XSDShort, rdf.XSDByte,
		rdf.XSDNonNegativeInteger, rdf.XSDPositiveInteger, rdf.XSDNegativeInteger, rdf.XSDNonPositiveInteger,
		rdf.XSDDecimal, rdf.XSDDouble, rdf.XSDFloat:
		return true
	}
	return false
}

func knownDatatype(dt string) bool {
	switch dt {
	case rdf.XSDString, rdf.RDFLangString, rdf.XSDBoolean, rdf.XSDDateTime:
		return true
	}
	return isNumericDatatype(dt)
}

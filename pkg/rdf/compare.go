package rdf

import "strings"

// kindRank orders kinds for ORDER BY: unbound, blank, IRI, literal.
func kindRank(k Kind) int {
	switch k {
	case KindNone:
		return 0
	case KindBlank:
		return 1
	case KindIRI:
		return 2
	case KindLiteral:
		return 3
	case KindDefaultGraph:
		return 4
	default:
		return 5
	}
}

// Compare imposes a total order on nodes. Numeric literals compare by value;
// other literals by lexical form, then datatype, then language.
func Compare(a, b Node) int {
	if ra, rb := kindRank(a.kind), kindRank(b.kind); ra != rb {
		if ra < rb {
			return -1
		}
		return 1
	}
	if a.kind == KindLiteral {
		if na, ok := NumberOf(a); ok {
			if nb, ok := NumberOf(b); ok {
				if c := na.Cmp(nb); c != 0 {
					return c
				}
			}
		}
	}
	if c := strings.Compare(a.value, b.value); c != 0 {
		return c
	}
	if c := strings.Compare(a.datatype, b.datatype); c != 0 {
		return c
	}
	return strings.Compare(a.lang, b.lang)
}

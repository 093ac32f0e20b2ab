// Package rdf defines the term model shared by the store, the engine and the
// query front-end: IRIs, blank nodes, literals, variables, triples and quads.
package rdf

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/text/language"
)

// Kind tags the variant held by a Node.
type Kind uint8

const (
	// KindNone is the zero Node: an unbound position or a lookup wildcard.
	KindNone Kind = iota
	KindIRI
	KindBlank
	KindLiteral
	KindVariable
	// KindDefaultGraph is the distinguished default-graph marker.
	KindDefaultGraph
)

func (k Kind) String() string {
	switch k {
	case KindIRI:
		return "iri"
	case KindBlank:
		return "blank"
	case KindLiteral:
		return "literal"
	case KindVariable:
		return "variable"
	case KindDefaultGraph:
		return "default-graph"
	default:
		return "none"
	}
}

// Node is an RDF term or a query variable.
//
// Node is a comparable value type: two nodes are equal iff they have the same
// kind and the same value, datatype and language. Literal constructors
// canonicalize language tags and numeric lexical forms, so == is term
// equality. The zero Node is the wildcard.
type Node struct {
	kind     Kind
	value    string
	datatype string
	lang     string
}

// DefaultGraph addresses the default graph of a dataset.
var DefaultGraph = Node{kind: KindDefaultGraph}

// NewIRI returns an IRI node.
func NewIRI(iri string) Node {
	return Node{kind: KindIRI, value: iri}
}

// NewBlank returns a blank node with the given label.
func NewBlank(label string) Node {
	return Node{kind: KindBlank, value: label}
}

// NewVariable returns a variable. A leading '?' or '$' is stripped.
func NewVariable(name string) Node {
	name = strings.TrimLeft(name, "?$")
	return Node{kind: KindVariable, value: name}
}

// NewLiteral returns a simple literal (datatype xsd:string).
func NewLiteral(lexical string) Node {
	return Node{kind: KindLiteral, value: lexical, datatype: XSDString}
}

// NewLangLiteral returns a language-tagged string.
func NewLangLiteral(lexical, lang string) Node {
	return Node{kind: KindLiteral, value: lexical, datatype: RDFLangString, lang: canonicalLang(lang)}
}

// NewTypedLiteral returns a literal with an explicit datatype. Numeric and
// boolean lexical forms are canonicalized when they parse.
func NewTypedLiteral(lexical, datatype string) Node {
	if datatype == "" {
		datatype = XSDString
	}
	return Node{kind: KindLiteral, value: canonicalLexical(lexical, datatype), datatype: datatype}
}

// NewInteger returns an xsd:integer literal.
func NewInteger(v int64) Node {
	return Node{kind: KindLiteral, value: strconv.FormatInt(v, 10), datatype: XSDInteger}
}

// NewDecimal returns an xsd:decimal literal for the shortest decimal
// representation of v.
func NewDecimal(v float64) Node {
	return DecimalNumber(v).Node()
}

// NewDouble returns an xsd:double literal.
func NewDouble(v float64) Node {
	return Node{kind: KindLiteral, value: formatDouble(v), datatype: XSDDouble}
}

// NewBoolean returns an xsd:boolean literal.
func NewBoolean(v bool) Node {
	return Node{kind: KindLiteral, value: strconv.FormatBool(v), datatype: XSDBoolean}
}

// Kind returns the node's tag.
func (n Node) Kind() Kind { return n.kind }

// Value returns the IRI, blank label, lexical form or variable name.
func (n Node) Value() string { return n.value }

// Datatype returns the datatype IRI of a literal.
func (n Node) Datatype() string { return n.datatype }

// Lang returns the language tag of a literal, or "".
func (n Node) Lang() string { return n.lang }

func (n Node) IsZero() bool         { return n.kind == KindNone }
func (n Node) IsIRI() bool          { return n.kind == KindIRI }
func (n Node) IsBlank() bool        { return n.kind == KindBlank }
func (n Node) IsLiteral() bool      { return n.kind == KindLiteral }
func (n Node) IsVariable() bool     { return n.kind == KindVariable }
func (n Node) IsDefaultGraph() bool { return n.kind == KindDefaultGraph }

// IsPlaceholder reports whether the node acts as a variable inside a pattern.
// Blank nodes in patterns are scoped to the pattern and join on identity.
func (n Node) IsPlaceholder() bool {
	return n.kind == KindVariable || n.kind == KindBlank
}

// IsTerm reports whether the node is a concrete RDF term that may be bound in
// a solution.
func (n Node) IsTerm() bool {
	return n.kind == KindIRI || n.kind == KindBlank || n.kind == KindLiteral
}

// Equal reports term equality.
func (n Node) Equal(other Node) bool { return n == other }

// PlaceholderName returns the solution variable a placeholder binds. Blank
// nodes map to a name that cannot collide with a query variable.
func (n Node) PlaceholderName() string {
	switch n.kind {
	case KindVariable:
		return n.value
	case KindBlank:
		return "_:" + n.value
	default:
		return ""
	}
}

// Hash returns a hash consistent with Equal.
func (n Node) Hash() uint64 {
	d := xxhash.New()
	_, _ = d.Write([]byte{byte(n.kind)})
	_, _ = d.WriteString(n.value)
	_, _ = d.Write([]byte{0})
	_, _ = d.WriteString(n.datatype)
	_, _ = d.Write([]byte{0})
	_, _ = d.WriteString(n.lang)
	return d.Sum64()
}

// String returns the N-Triples form of the node.
func (n Node) String() string {
	switch n.kind {
	case KindIRI:
		return "<" + n.value + ">"
	case KindBlank:
		return "_:" + n.value
	case KindVariable:
		return "?" + n.value
	case KindDefaultGraph:
		return "DEFAULT"
	case KindLiteral:
		quoted := `"` + escapeLiteral(n.value) + `"`
		switch {
		case n.lang != "":
			return quoted + "@" + n.lang
		case n.datatype == XSDString || n.datatype == "":
			return quoted
		default:
			return quoted + "^^<" + n.datatype + ">"
		}
	default:
		return "UNDEF"
	}
}

// GoString keeps test failure output readable.
func (n Node) GoString() string {
	return fmt.Sprintf("rdf.Node(%s)", n.String())
}

func canonicalLang(tag string) string {
	if tag == "" {
		return ""
	}
	parsed, err := language.Parse(tag)
	if err != nil {
		return strings.ToLower(tag)
	}
	return strings.ToLower(parsed.String())
}

func canonicalLexical(lexical, datatype string) string {
	switch datatype {
	case XSDInteger, XSDInt, XSDLong, XSDShort, XSDByte,
		XSDNonNegativeInteger, XSDPositiveInteger, XSDNegativeInteger, XSDNonPositiveInteger:
		if d, ok := parseInteger(lexical); ok {
			return integerLexical(d)
		}
	case XSDDecimal:
		if d, ok := parseDecimal(lexical); ok {
			return decimalLexical(d)
		}
	case XSDDouble, XSDFloat:
		if v, err := strconv.ParseFloat(strings.TrimSpace(lexical), 64); err == nil {
			return formatDouble(v)
		}
	case XSDBoolean:
		switch strings.TrimSpace(lexical) {
		case "true", "1":
			return "true"
		case "false", "0":
			return "false"
		}
	}
	return lexical
}

func formatDouble(v float64) string {
	return strconv.FormatFloat(v, 'E', -1, 64)
}

func escapeLiteral(s string) string {
	if !strings.ContainsAny(s, "\"\\\n\r\t") {
		return s
	}
	var sb strings.Builder
	for _, r := range s {
		switch r {
		case '"':
			sb.WriteString(`\"`)
		case '\\':
			sb.WriteString(`\\`)
		case '\n':
			sb.WriteString(`\n`)
		case '\r':
			sb.WriteString(`\r`)
		case '\t':
			sb.WriteString(`\t`)
		default:
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

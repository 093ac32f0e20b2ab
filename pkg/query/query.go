// Package query provides SPARQL query parsing, compilation to the query
// algebra, and result formatting.
package query

import (
	"github.com/coolbeans/quarry/pkg/algebra"
	"github.com/coolbeans/quarry/pkg/rdf"
)

// Query represents a parsed SPARQL query.
type Query struct {
	Type     QueryType
	Prefixes map[string]string // Prefix declarations, including the defaults
	Base     string            // BASE IRI, if any

	Distinct   bool
	Reduced    bool
	Star       bool         // SELECT *
	Projection []Projection // SELECT clause items in order

	From      []rdf.Node // FROM graphs
	FromNamed []rdf.Node // FROM NAMED graphs

	Where *GroupPattern

	GroupBy []algebra.GroupKey
	Having  []algebra.Expr
	OrderBy []algebra.OrderCondition
	Limit   int // -1 = no limit
	Offset  int

	Template []rdf.Triple // CONSTRUCT template
	Describe []rdf.Node   // DESCRIBE targets; variables allowed
}

// QueryType represents the type of SPARQL query.
type QueryType string

const (
	// SelectQueryType represents a SELECT query.
	SelectQueryType QueryType = "SELECT"
	// AskQueryType represents an ASK query.
	AskQueryType QueryType = "ASK"
	// ConstructQueryType represents a CONSTRUCT query.
	ConstructQueryType QueryType = "CONSTRUCT"
	// DescribeQueryType represents a DESCRIBE query.
	DescribeQueryType QueryType = "DESCRIBE"
)

// Projection is one SELECT clause item: a plain variable, or an expression
// bound with AS.
type Projection struct {
	Var  string
	Expr algebra.Expr // nil for a plain variable
}

// HasAggregates returns true if the query uses aggregate functions or GROUP BY.
func (q *Query) HasAggregates() bool {
	if len(q.GroupBy) > 0 || len(q.Having) > 0 {
		return true
	}
	for _, p := range q.Projection {
		if p.Expr != nil && containsAggregate(p.Expr) {
			return true
		}
	}
	for _, c := range q.OrderBy {
		if containsAggregate(c.Expr) {
			return true
		}
	}
	return false
}

// OutputVariables returns the variables of the result, in order. For
// SELECT * these are the variables the WHERE clause binds.
func (q *Query) OutputVariables() []string {
	if q.Type != SelectQueryType {
		return nil
	}
	if !q.Star {
		vars := make([]string, len(q.Projection))
		for i, p := range q.Projection {
			vars[i] = p.Var
		}
		return vars
	}
	var vars []string
	seen := make(map[string]bool)
	q.Where.visibleVariables(func(name string) {
		if !seen[name] {
			seen[name] = true
			vars = append(vars, name)
		}
	})
	return vars
}

// GroupPattern is a group graph pattern: the elements between braces.
type GroupPattern struct {
	Elements []Element
}

// Element is one part of a group graph pattern.
type Element interface {
	element()
}

// TriplesBlock is a run of triple patterns.
type TriplesBlock struct {
	Patterns []rdf.Triple
}

// OptionalPattern is OPTIONAL { ... }.
type OptionalPattern struct {
	Pattern *GroupPattern
}

// UnionPattern is { ... } UNION { ... } [UNION ...].
type UnionPattern struct {
	Branches []*GroupPattern
}

// MinusPattern is MINUS { ... }.
type MinusPattern struct {
	Pattern *GroupPattern
}

// GraphPattern is GRAPH <name>|?var { ... }.
type GraphPattern struct {
	Name    rdf.Node
	Pattern *GroupPattern
}

// Filter is a FILTER constraint. It applies to the whole group it appears in.
type Filter struct {
	Expr algebra.Expr
}

// Bind is BIND(expr AS ?var).
type Bind struct {
	Expr algebra.Expr
	Var  string
}

func (*GroupPattern) element()    {}
func (*TriplesBlock) element()    {}
func (*OptionalPattern) element() {}
func (*UnionPattern) element()    {}
func (*MinusPattern) element()    {}
func (*GraphPattern) element()    {}
func (*Filter) element()          {}
func (*Bind) element()            {}

// visibleVariables reports the variables a group pattern can bind, as seen by
// SELECT *. Blank-node placeholders are not visible.
func (g *GroupPattern) visibleVariables(visit func(string)) {
	if g == nil {
		return
	}
	for _, el := range g.Elements {
		switch e := el.(type) {
		case *GroupPattern:
			e.visibleVariables(visit)
		case *TriplesBlock:
			for _, t := range e.Patterns {
				for _, n := range t.Nodes() {
					if n.IsVariable() {
						visit(n.Value())
					}
				}
			}
		case *OptionalPattern:
			e.Pattern.visibleVariables(visit)
		case *UnionPattern:
			for _, b := range e.Branches {
				b.visibleVariables(visit)
			}
		case *GraphPattern:
			if e.Name.IsVariable() {
				visit(e.Name.Value())
			}
			e.Pattern.visibleVariables(visit)
		case *Bind:
			visit(e.Var)
		}
	}
}

// containsAggregate reports whether e has an aggregate anywhere inside it.
func containsAggregate(e algebra.Expr) bool {
	found := false
	walkExpr(e, func(x algebra.Expr) {
		if _, ok := x.(*algebra.Aggregate); ok {
			found = true
		}
	})
	return found
}

// walkExpr visits e and its sub-expressions depth first. It does not descend
// into aggregates or EXISTS patterns.
func walkExpr(e algebra.Expr, visit func(algebra.Expr)) {
	if e == nil {
		return
	}
	visit(e)
	switch x := e.(type) {
	case *algebra.Binary:
		walkExpr(x.Left, visit)
		walkExpr(x.Right, visit)
	case *algebra.Unary:
		walkExpr(x.Operand, visit)
	case *algebra.Call:
		for _, a := range x.Args {
			walkExpr(a, visit)
		}
	case *algebra.In:
		walkExpr(x.Expr, visit)
		for _, a := range x.List {
			walkExpr(a, visit)
		}
	}
}

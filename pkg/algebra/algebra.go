// Package algebra defines the compiled query algebra: the operator tree the
// engine evaluates and the expression AST used by filters, bindings, group
// keys and aggregates.
//
// Trees are plain values built by the query compiler (or by hand in tests).
// They carry no evaluation state and may be executed any number of times.
package algebra

import (
	"fmt"
	"strings"

	"github.com/coolbeans/quarry/pkg/rdf"
)

// Operator is a node of the algebra tree.
type Operator interface {
	fmt.Stringer
	operator()
}

// BGP is a basic graph pattern: a conjunction of triple patterns matched
// against the active graph.
type BGP struct {
	Patterns []rdf.Triple
}

// Join is the inner join of two sub-trees.
type Join struct {
	Left, Right Operator
}

// LeftJoin keeps every left solution, extended by compatible right solutions
// when there are any. Expr, when set, is the OPTIONAL's filter.
type LeftJoin struct {
	Left, Right Operator
	Expr        Expr
}

// Filter keeps solutions whose expression has effective boolean value true.
type Filter struct {
	Expr  Expr
	Input Operator
}

// Union concatenates both branches, keeping duplicates.
type Union struct {
	Left, Right Operator
}

// Minus removes left solutions that are compatible with, and share a variable
// with, some right solution.
type Minus struct {
	Left, Right Operator
}

// Graph evaluates Input with Name as the active graph. A variable Name
// iterates every named graph and binds the variable.
type Graph struct {
	Name  rdf.Node
	Input Operator
}

// Extend binds Var to the value of Expr (BIND). Rows where Expr errors pass
// through with Var left unbound.
type Extend struct {
	Input Operator
	Var   string
	Expr  Expr
}

// GroupKey is one grouping expression. Var names the output variable; when
// empty the engine assigns a synthetic name.
type GroupKey struct {
	Expr Expr
	Var  string
}

// AggregateBinding binds the result of an aggregate to Var in each group.
type AggregateBinding struct {
	Aggregate *Aggregate
	Var       string
}

// Group partitions Input by Keys and computes Aggregates per group.
type Group struct {
	Input      Operator
	Keys       []GroupKey
	Aggregates []AggregateBinding
}

// Project restricts solutions to Vars.
type Project struct {
	Input Operator
	Vars  []string
}

// Distinct removes duplicate solutions.
type Distinct struct {
	Input Operator
}

// OrderCondition is one ORDER BY key.
type OrderCondition struct {
	Expr       Expr
	Descending bool
}

// OrderBy sorts Input. Sorting is stable.
type OrderBy struct {
	Input      Operator
	Conditions []OrderCondition
}

// Slice skips Offset solutions and then emits at most Limit. A negative
// Limit means no limit.
type Slice struct {
	Input  Operator
	Offset int
	Limit  int
}

func (*BGP) operator()      {}
func (*Join) operator()     {}
func (*LeftJoin) operator() {}
func (*Filter) operator()   {}
func (*Union) operator()    {}
func (*Minus) operator()    {}
func (*Graph) operator()    {}
func (*Extend) operator()   {}
func (*Group) operator()    {}
func (*Project) operator()  {}
func (*Distinct) operator() {}
func (*OrderBy) operator()  {}
func (*Slice) operator()    {}

// NewBGP is shorthand for a BGP over the given patterns.
func NewBGP(patterns ...rdf.Triple) *BGP {
	return &BGP{Patterns: patterns}
}

// JoinAll folds operators into a left-deep join tree. Nil operands are
// skipped; an empty argument list yields an empty BGP, the join identity.
func JoinAll(ops ...Operator) Operator {
	var out Operator
	for _, op := range ops {
		if op == nil {
			continue
		}
		if out == nil {
			out = op
			continue
		}
		out = &Join{Left: out, Right: op}
	}
	if out == nil {
		return &BGP{}
	}
	return out
}

func (o *BGP) String() string {
	parts := make([]string, len(o.Patterns))
	for i, p := range o.Patterns {
		parts[i] = fmt.Sprintf("(triple %s %s %s)", p.Subject, p.Predicate, p.Object)
	}
	return "(bgp" + prefixSpace(strings.Join(parts, " ")) + ")"
}

func (o *Join) String() string {
	return fmt.Sprintf("(join %s %s)", o.Left, o.Right)
}

func (o *LeftJoin) String() string {
	if o.Expr != nil {
		return fmt.Sprintf("(leftjoin %s %s %s)", o.Left, o.Right, o.Expr)
	}
	return fmt.Sprintf("(leftjoin %s %s)", o.Left, o.Right)
}

func (o *Filter) String() string {
	return fmt.Sprintf("(filter %s %s)", o.Expr, o.Input)
}

func (o *Union) String() string {
	return fmt.Sprintf("(union %s %s)", o.Left, o.Right)
}

func (o *Minus) String() string {
	return fmt.Sprintf("(minus %s %s)", o.Left, o.Right)
}

func (o *Graph) String() string {
	return fmt.Sprintf("(graph %s %s)", o.Name, o.Input)
}

func (o *Extend) String() string {
	return fmt.Sprintf("(extend ((?%s %s)) %s)", o.Var, o.Expr, o.Input)
}

func (o *Group) String() string {
	keys := make([]string, len(o.Keys))
	for i, k := range o.Keys {
		if k.Var != "" {
			keys[i] = fmt.Sprintf("(?%s %s)", k.Var, k.Expr)
		} else {
			keys[i] = k.Expr.String()
		}
	}
	aggs := make([]string, len(o.Aggregates))
	for i, a := range o.Aggregates {
		aggs[i] = fmt.Sprintf("(?%s %s)", a.Var, a.Aggregate)
	}
	return fmt.Sprintf("(group (%s) (%s) %s)", strings.Join(keys, " "), strings.Join(aggs, " "), o.Input)
}

func (o *Project) String() string {
	vars := make([]string, len(o.Vars))
	for i, v := range o.Vars {
		vars[i] = "?" + v
	}
	return fmt.Sprintf("(project (%s) %s)", strings.Join(vars, " "), o.Input)
}

func (o *Distinct) String() string {
	return fmt.Sprintf("(distinct %s)", o.Input)
}

func (o *OrderBy) String() string {
	conds := make([]string, len(o.Conditions))
	for i, c := range o.Conditions {
		if c.Descending {
			conds[i] = fmt.Sprintf("(desc %s)", c.Expr)
		} else {
			conds[i] = c.Expr.String()
		}
	}
	return fmt.Sprintf("(order (%s) %s)", strings.Join(conds, " "), o.Input)
}

func (o *Slice) String() string {
	limit := "_"
	if o.Limit >= 0 {
		limit = fmt.Sprint(o.Limit)
	}
	return fmt.Sprintf("(slice %d %s %s)", o.Offset, limit, o.Input)
}

func prefixSpace(s string) string {
	if s == "" {
		return ""
	}
	return " " + s
}

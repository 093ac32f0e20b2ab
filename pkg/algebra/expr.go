package algebra

import (
	"fmt"
	"strings"

	"github.com/coolbeans/quarry/pkg/rdf"
)

// Expr is a node of the expression AST.
type Expr interface {
	fmt.Stringer
	expr()
}

// Op identifies a unary or binary operator.
type Op int

const (
	OpOr Op = iota
	OpAnd
	OpEq
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpNot
	OpNeg
	OpPlus
)

var opSymbols = map[Op]string{
	OpOr: "||", OpAnd: "&&",
	OpEq: "=", OpNe: "!=", OpLt: "<", OpLe: "<=", OpGt: ">", OpGe: ">=",
	OpAdd: "+", OpSub: "-", OpMul: "*", OpDiv: "/",
	OpNot: "!", OpNeg: "-", OpPlus: "+",
}

func (o Op) String() string {
	if s, ok := opSymbols[o]; ok {
		return s
	}
	return fmt.Sprintf("Op(%d)", int(o))
}

// Var references a solution variable.
type Var struct {
	Name string
}

// Const is a constant term.
type Const struct {
	Node rdf.Node
}

// Binary applies Op to two operands.
type Binary struct {
	Op          Op
	Left, Right Expr
}

// Unary applies Op to one operand.
type Unary struct {
	Op      Op
	Operand Expr
}

// Call invokes a built-in function. Func is upper case.
type Call struct {
	Func string
	Args []Expr
}

// In tests membership of Expr in List.
type In struct {
	Expr Expr
	List []Expr
	Not  bool
}

// Exists tests whether Pattern has at least one solution compatible with the
// current row.
type Exists struct {
	Pattern Operator
	Not     bool
}

// AggregateFunc names a set function.
type AggregateFunc string

const (
	AggCount       AggregateFunc = "COUNT"
	AggSum         AggregateFunc = "SUM"
	AggAvg         AggregateFunc = "AVG"
	AggMin         AggregateFunc = "MIN"
	AggMax         AggregateFunc = "MAX"
	AggSample      AggregateFunc = "SAMPLE"
	AggGroupConcat AggregateFunc = "GROUP_CONCAT"
)

// DefaultSeparator is the GROUP_CONCAT separator when none is given.
const DefaultSeparator = " "

// Aggregate is a set function over the members of a group. Expr is nil for
// COUNT(*).
type Aggregate struct {
	Func      AggregateFunc
	Expr      Expr
	Distinct  bool
	Separator string
}

func (*Var) expr()       {}
func (*Const) expr()     {}
func (*Binary) expr()    {}
func (*Unary) expr()     {}
func (*Call) expr()      {}
func (*In) expr()        {}
func (*Exists) expr()    {}
func (*Aggregate) expr() {}

// V is shorthand for a variable reference.
func V(name string) *Var { return &Var{Name: strings.TrimLeft(name, "?$")} }

// C is shorthand for a constant.
func C(n rdf.Node) *Const { return &Const{Node: n} }

func (e *Var) String() string   { return "?" + e.Name }
func (e *Const) String() string { return e.Node.String() }

func (e *Binary) String() string {
	return fmt.Sprintf("(%s %s %s)", e.Op, e.Left, e.Right)
}

func (e *Unary) String() string {
	return fmt.Sprintf("(%s %s)", e.Op, e.Operand)
}

func (e *Call) String() string {
	args := make([]string, len(e.Args))
	for i, a := range e.Args {
		args[i] = a.String()
	}
	return fmt.Sprintf("%s(%s)", e.Func, strings.Join(args, ", "))
}

func (e *In) String() string {
	items := make([]string, len(e.List))
	for i, a := range e.List {
		items[i] = a.String()
	}
	op := "IN"
	if e.Not {
		op = "NOT IN"
	}
	return fmt.Sprintf("(%s %s (%s))", e.Expr, op, strings.Join(items, ", "))
}

func (e *Exists) String() string {
	if e.Not {
		return fmt.Sprintf("(notexists %s)", e.Pattern)
	}
	return fmt.Sprintf("(exists %s)", e.Pattern)
}

func (e *Aggregate) String() string {
	var sb strings.Builder
	sb.WriteString(string(e.Func))
	sb.WriteString("(")
	if e.Distinct {
		sb.WriteString("DISTINCT ")
	}
	if e.Expr == nil {
		sb.WriteString("*")
	} else {
		sb.WriteString(e.Expr.String())
	}
	if e.Func == AggGroupConcat && e.Separator != DefaultSeparator {
		fmt.Fprintf(&sb, "; SEPARATOR=%q", e.Separator)
	}
	sb.WriteString(")")
	return sb.String()
}

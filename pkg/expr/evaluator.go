// Package expr evaluates algebra expressions against solutions.
//
// Evaluation follows the query language's error model: a type error or an
// unbound variable is an ordinary error value, and callers decide what an
// error means for the row (Filter drops it, Extend leaves the variable
// unbound, grouping builds a partial key).
package expr

import (
	"regexp"
	"sync"

	"github.com/coolbeans/quarry/pkg/algebra"
	"github.com/coolbeans/quarry/pkg/errors"
	"github.com/coolbeans/quarry/pkg/rdf"
	"github.com/coolbeans/quarry/pkg/solution"
)

var (
	// ErrUnbound is returned when an expression reads an unbound variable.
	ErrUnbound = errors.New("unbound variable")
	// ErrType is returned when operands have the wrong kind for an operator.
	ErrType = errors.New("type error")
)

// Env gives the evaluator access to pattern evaluation for EXISTS.
type Env interface {
	Exists(pattern algebra.Operator, input solution.Solution) (bool, error)
}

// Evaluator is the default expression evaluator. It is safe for concurrent
// use; compiled regular expressions are cached per pattern and flags.
type Evaluator struct {
	mu      sync.Mutex
	regexes map[string]*regexp.Regexp
}

// New creates an Evaluator.
func New() *Evaluator {
	return &Evaluator{regexes: make(map[string]*regexp.Regexp)}
}

// Evaluate computes the value of e for the row s. env may be nil, in which
// case EXISTS is not supported.
func (ev *Evaluator) Evaluate(e algebra.Expr, s solution.Solution, env Env) (rdf.Node, error) {
	switch x := e.(type) {
	case nil:
		return rdf.Node{}, errors.New("cannot evaluate nil expression")
	case *algebra.Var:
		n, ok := s.Get(x.Name)
		if !ok {
			return rdf.Node{}, errors.Wrapf(ErrUnbound, "?%s", x.Name)
		}
		return n, nil
	case *algebra.Const:
		return x.Node, nil
	case *algebra.Binary:
		return ev.binary(x, s, env)
	case *algebra.Unary:
		return ev.unary(x, s, env)
	case *algebra.Call:
		return ev.call(x, s, env)
	case *algebra.In:
		return ev.in(x, s, env)
	case *algebra.Exists:
		if env == nil {
			return rdf.Node{}, errors.NotSupportedf("EXISTS outside a query")
		}
		found, err := env.Exists(x.Pattern, s)
		if err != nil {
			return rdf.Node{}, err
		}
		return rdf.NewBoolean(found != x.Not), nil
	case *algebra.Aggregate:
		return rdf.Node{}, errors.Newf("aggregate %s outside of a group", x)
	default:
		return rdf.Node{}, errors.NotSupportedf("expression %T", e)
	}
}

// Test evaluates e and returns its effective boolean value.
func (ev *Evaluator) Test(e algebra.Expr, s solution.Solution, env Env) (bool, error) {
	n, err := ev.Evaluate(e, s, env)
	if err != nil {
		return false, err
	}
	return EBV(n)
}

func (ev *Evaluator) binary(x *algebra.Binary, s solution.Solution, env Env) (rdf.Node, error) {
	switch x.Op {
	case algebra.OpOr, algebra.OpAnd:
		return ev.logical(x, s, env)
	}

	left, err := ev.Evaluate(x.Left, s, env)
	if err != nil {
		return rdf.Node{}, err
	}
	right, err := ev.Evaluate(x.Right, s, env)
	if err != nil {
		return rdf.Node{}, err
	}

	switch x.Op {
	case algebra.OpEq, algebra.OpNe:
		eq, err := Equal(left, right)
		if err != nil {
			return rdf.Node{}, err
		}
		return rdf.NewBoolean(eq == (x.Op == algebra.OpEq)), nil
	case algebra.OpLt, algebra.OpLe, algebra.OpGt, algebra.OpGe:
		c, err := Order(left, right)
		if err != nil {
			return rdf.Node{}, err
		}
		var ok bool
		switch x.Op {
		case algebra.OpLt:
			ok = c < 0
		case algebra.OpLe:
			ok = c <= 0
		case algebra.OpGt:
			ok = c > 0
		default:
			ok = c >= 0
		}
		return rdf.NewBoolean(ok), nil
	case algebra.OpAdd, algebra.OpSub, algebra.OpMul, algebra.OpDiv:
		return arithmetic(x.Op, left, right)
	}
	return rdf.Node{}, errors.NotSupportedf("binary operator %s", x.Op)
}

// logical implements || and && with the three-valued error semantics: an
// error on one side is masked when the other side decides the result.
func (ev *Evaluator) logical(x *algebra.Binary, s solution.Solution, env Env) (rdf.Node, error) {
	decisive := x.Op == algebra.OpOr

	left, lerr := ev.Test(x.Left, s, env)
	if lerr == nil && left == decisive {
		return rdf.NewBoolean(decisive), nil
	}
	right, rerr := ev.Test(x.Right, s, env)
	if rerr == nil && right == decisive {
		return rdf.NewBoolean(decisive), nil
	}
	if lerr != nil {
		return rdf.Node{}, lerr
	}
	if rerr != nil {
		return rdf.Node{}, rerr
	}
	return rdf.NewBoolean(!decisive), nil
}

func (ev *Evaluator) unary(x *algebra.Unary, s solution.Solution, env Env) (rdf.Node, error) {
	if x.Op == algebra.OpNot {
		b, err := ev.Test(x.Operand, s, env)
		if err != nil {
			return rdf.Node{}, err
		}
		return rdf.NewBoolean(!b), nil
	}

	n, err := ev.Evaluate(x.Operand, s, env)
	if err != nil {
		return rdf.Node{}, err
	}
	num, ok := rdf.NumberOf(n)
	if !ok {
		return rdf.Node{}, errors.Wrapf(ErrType, "%s applied to %s", x.Op, n)
	}
	switch x.Op {
	case algebra.OpNeg:
		return rdf.IntNumber(0).Sub(num).Node(), nil
	case algebra.OpPlus:
		return num.Node(), nil
	}
	return rdf.Node{}, errors.NotSupportedf("unary operator %s", x.Op)
}

func (ev *Evaluator) in(x *algebra.In, s solution.Solution, env Env) (rdf.Node, error) {
	needle, err := ev.Evaluate(x.Expr, s, env)
	if err != nil {
		return rdf.Node{}, err
	}
	var firstErr error
	for _, item := range x.List {
		v, err := ev.Evaluate(item, s, env)
		if err == nil {
			var eq bool
			eq, err = Equal(needle, v)
			if err == nil && eq {
				return rdf.NewBoolean(!x.Not), nil
			}
		}
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if firstErr != nil {
		return rdf.Node{}, firstErr
	}
	return rdf.NewBoolean(x.Not), nil
}

func arithmetic(op algebra.Op, left, right rdf.Node) (rdf.Node, error) {
	a, ok := rdf.NumberOf(left)
	if !ok {
		return rdf.Node{}, errors.Wrapf(ErrType, "%s is not numeric", left)
	}
	b, ok := rdf.NumberOf(right)
	if !ok {
		return rdf.Node{}, errors.Wrapf(ErrType, "%s is not numeric", right)
	}
	switch op {
	case algebra.OpAdd:
		return a.Add(b).Node(), nil
	case algebra.OpSub:
		return a.Sub(b).Node(), nil
	case algebra.OpMul:
		return a.Mul(b).Node(), nil
	default:
		q, err := a.Div(b)
		if err != nil {
			return rdf.Node{}, err
		}
		return q.Node(), nil
	}
}

func (ev *Evaluator) regex(pattern, flags string) (*regexp.Regexp, error) {
	key := flags + "/" + pattern
	ev.mu.Lock()
	defer ev.mu.Unlock()
	if re, ok := ev.regexes[key]; ok {
		return re, nil
	}

	prefix := ""
	for _, f := range flags {
		switch f {
		case 'i', 's', 'm':
			prefix += string(f)
		case 'q':
			pattern = regexp.QuoteMeta(pattern)
		default:
			return nil, errors.Wrapf(ErrType, "unsupported regex flag %q", f)
		}
	}
	if prefix != "" {
		pattern = "(?" + prefix + ")" + pattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, errors.Wrapf(ErrType, "invalid regex %q: %v", pattern, err)
	}
	ev.regexes[key] = re
	return re, nil
}

package engine

import (
	"slices"

	"github.com/coolbeans/quarry/pkg/algebra"
	"github.com/coolbeans/quarry/pkg/errors"
	"github.com/coolbeans/quarry/pkg/logging"
	"github.com/coolbeans/quarry/pkg/rdf"
	"github.com/coolbeans/quarry/pkg/solution"
)

func empty(func(solution.Solution, error) bool) {}

func fail(err error) Solutions {
	return func(yield func(solution.Solution, error) bool) {
		yield(solution.Solution{}, err)
	}
}

// Prepare checks op for configuration errors. Evaluation of a tree that
// passes Prepare only fails on store or per-row errors.
func Prepare(op algebra.Operator) error {
	switch o := op.(type) {
	case nil:
		return errors.InvalidConfigurationf("missing operator")
	case *algebra.BGP:
		return nil
	case *algebra.Join:
		return prepareBinary(StageJoin, o, o.Left, o.Right)
	case *algebra.LeftJoin:
		return prepareBinary(StageJoin, o, o.Left, o.Right)
	case *algebra.Union:
		return prepareBinary(StageJoin, o, o.Left, o.Right)
	case *algebra.Minus:
		return prepareBinary(StageJoin, o, o.Left, o.Right)
	case *algebra.Filter:
		if o.Expr == nil {
			return stageError(StageFilter, o, errors.InvalidConfigurationf("filter without expression"))
		}
		return Prepare(o.Input)
	case *algebra.Graph:
		if !o.Name.IsIRI() && !o.Name.IsVariable() {
			return stageError(StageGraph, o, errors.InvalidConfigurationf("graph name %s is neither an IRI nor a variable", o.Name))
		}
		return Prepare(o.Input)
	case *algebra.Extend:
		if o.Var == "" || o.Expr == nil {
			return stageError(StageExtend, o, errors.InvalidConfigurationf("extend needs a variable and an expression"))
		}
		return Prepare(o.Input)
	case *algebra.Group:
		if _, err := NewGrouping(o.Keys, o.Aggregates); err != nil {
			return err
		}
		return Prepare(o.Input)
	case *algebra.Project:
		return Prepare(o.Input)
	case *algebra.Distinct:
		return Prepare(o.Input)
	case *algebra.OrderBy:
		return Prepare(o.Input)
	case *algebra.Slice:
		if o.Offset < 0 {
			return errors.InvalidConfigurationf("negative offset %d", o.Offset)
		}
		return Prepare(o.Input)
	default:
		return errors.NotSupportedf("operator %T", op)
	}
}

func prepareBinary(stage Stage, op algebra.Operator, left, right algebra.Operator) error {
	if left == nil || right == nil {
		return stageError(stage, op, errors.InvalidConfigurationf("operator with a missing operand"))
	}
	if err := Prepare(left); err != nil {
		return err
	}
	return Prepare(right)
}

// Run checks op with Prepare and returns its lazy solutions. Configuration
// errors are returned here, before any store access.
func Run(op algebra.Operator, ctx *Context) (Solutions, error) {
	if err := Prepare(op); err != nil {
		return nil, err
	}
	return Evaluate(op, ctx), nil
}

// Evaluate returns the solutions of op. It does not validate op; a
// malformed tree surfaces as an error element of the sequence.
func Evaluate(op algebra.Operator, ctx *Context) Solutions {
	return EvaluateWith(op, solution.Empty(), ctx)
}

// EvaluateWith returns the solutions of op that are compatible with input,
// merged with input. Operators that can take input directly (patterns and
// joins and unions of patterns) have it substituted; the rest are evaluated
// on their own and merged afterwards.
func EvaluateWith(op algebra.Operator, input solution.Solution, ctx *Context) Solutions {
	if input.IsEmpty() || acceptsInput(op) {
		return eval(op, input, ctx)
	}
	inner := eval(op, solution.Empty(), ctx)
	return func(yield func(solution.Solution, error) bool) {
		for s, err := range inner {
			if err != nil {
				yield(solution.Solution{}, err)
				return
			}
			if m, ok := input.Merge(s); ok {
				if !yield(m, nil) {
					return
				}
			}
		}
	}
}

func eval(op algebra.Operator, input solution.Solution, ctx *Context) Solutions {
	switch o := op.(type) {
	case *algebra.BGP:
		return evalBGP(o, input, ctx)
	case *algebra.Join:
		return evalJoin(o.Left, o.Right, JoinSpec{Kind: InnerJoin}, input, ctx)
	case *algebra.LeftJoin:
		return evalJoin(o.Left, o.Right, JoinSpec{Kind: LeftOuterJoin, Filter: o.Expr}, input, ctx)
	case *algebra.Union:
		return evalUnion(o, input, ctx)
	case *algebra.Minus:
		return evalMinus(o, ctx)
	case *algebra.Filter:
		return evalFilter(o, ctx)
	case *algebra.Graph:
		return evalGraph(o, input, ctx)
	case *algebra.Extend:
		return evalExtend(o, ctx)
	case *algebra.Group:
		g, err := NewGrouping(o.Keys, o.Aggregates)
		if err != nil {
			return fail(err)
		}
		return g.Apply(Evaluate(o.Input, ctx), ctx)
	case *algebra.Project:
		return evalProject(o, ctx)
	case *algebra.Distinct:
		return evalDistinct(o, ctx)
	case *algebra.OrderBy:
		return evalOrderBy(o, ctx)
	case *algebra.Slice:
		return evalSlice(o, ctx)
	case nil:
		return fail(errors.InvalidConfigurationf("missing operator"))
	default:
		return fail(errors.NotSupportedf("operator %T", op))
	}
}

func evalBGP(o *algebra.BGP, input solution.Solution, ctx *Context) Solutions {
	patterns := o.Patterns
	if ctx.opts.Planning {
		patterns = planPatterns(patterns, input, ctx.indexStats())
	}
	return matchAll(patterns, input, ctx)
}

func evalJoin(left, right algebra.Operator, spec JoinSpec, input solution.Solution, ctx *Context) Solutions {
	if left == nil || right == nil {
		return fail(stageError(StageJoin, nil, errors.InvalidConfigurationf("join with a missing operand")))
	}
	spec.Shared = algebra.SharedVariables(left, right)
	strategy := ctx.opts.Selector.Select(left, right, spec.Kind, ctx)
	if strategy == nil {
		strategy = NestedLoopJoin{}
	}
	ctx.opts.Observer.StrategySelected(strategy.Name(), spec.Kind, left, right)

	joined := strategy.Join(EvaluateWith(left, input, ctx), right, spec, ctx)
	return func(yield func(solution.Solution, error) bool) {
		for s, err := range joined {
			if err != nil {
				yield(solution.Solution{}, stageError(StageJoin, right, err))
				return
			}
			if !yield(s, nil) {
				return
			}
		}
	}
}

func evalUnion(o *algebra.Union, input solution.Solution, ctx *Context) Solutions {
	return func(yield func(solution.Solution, error) bool) {
		for _, branch := range []algebra.Operator{o.Left, o.Right} {
			for s, err := range EvaluateWith(branch, input, ctx) {
				if !yield(s, err) || err != nil {
					return
				}
			}
		}
	}
}

func evalMinus(o *algebra.Minus, ctx *Context) Solutions {
	return func(yield func(solution.Solution, error) bool) {
		removals, err := collect(Evaluate(o.Right, ctx))
		if err != nil {
			yield(solution.Solution{}, stageError(StageJoin, o.Right, err))
			return
		}
		for l, err := range Evaluate(o.Left, ctx) {
			if err != nil {
				yield(solution.Solution{}, err)
				return
			}
			if slices.ContainsFunc(removals, func(r solution.Solution) bool {
				return l.SharesVariable(r) && l.Compatible(r)
			}) {
				continue
			}
			if !yield(l, nil) {
				return
			}
		}
	}
}

// evalFilter drops rows whose expression is false or fails to evaluate.
func evalFilter(o *algebra.Filter, ctx *Context) Solutions {
	return func(yield func(solution.Solution, error) bool) {
		for s, err := range Evaluate(o.Input, ctx) {
			if err != nil {
				yield(solution.Solution{}, err)
				return
			}
			ok, err := ctx.test(o.Expr, s)
			if err != nil {
				if errors.IsNotSupported(err) {
					yield(solution.Solution{}, stageError(StageFilter, o.Expr, err))
					return
				}
				ctx.opts.Observer.RowDropped(StageFilter, o.Expr.String(), err)
				continue
			}
			if ok && !yield(s, nil) {
				return
			}
		}
	}
}

func evalGraph(o *algebra.Graph, input solution.Solution, ctx *Context) Solutions {
	if !o.Name.IsVariable() {
		if !ctx.isNamedGraph(o.Name) {
			return empty
		}
		return EvaluateWith(o.Input, input, ctx.WithActiveGraph(o.Name))
	}

	name := o.Name.PlaceholderName()
	return func(yield func(solution.Solution, error) bool) {
		var graphs []rdf.Node
		if g, ok := input.Get(name); ok {
			if ctx.isNamedGraph(g) {
				graphs = []rdf.Node{g}
			}
		} else {
			var err error
			graphs, err = ctx.namedGraphNames()
			if err != nil {
				yield(solution.Solution{}, stageError(StageGraph, o, err))
				return
			}
		}

		for _, g := range graphs {
			ctx.opts.Logger.Debugw("evaluating graph scope", logging.FieldGraph, graphName(g))
			scoped := input.Extend(name, g)
			for s, err := range EvaluateWith(o.Input, scoped, ctx.WithActiveGraph(g)) {
				if err != nil {
					yield(solution.Solution{}, err)
					return
				}
				// the inner pattern may itself bind the graph variable
				if v, ok := s.Get(name); ok && v != g {
					continue
				}
				if !yield(s.Extend(name, g), nil) {
					return
				}
			}
		}
	}
}

// evalExtend binds Var where Expr evaluates; failing rows keep Var unbound.
func evalExtend(o *algebra.Extend, ctx *Context) Solutions {
	return func(yield func(solution.Solution, error) bool) {
		for s, err := range Evaluate(o.Input, ctx) {
			if err != nil {
				yield(solution.Solution{}, err)
				return
			}
			v, err := ctx.evaluate(o.Expr, s)
			if err != nil {
				ctx.opts.Observer.RowDropped(StageExtend, o.Expr.String(), err)
			} else {
				s = s.Extend(o.Var, v)
			}
			if !yield(s, nil) {
				return
			}
		}
	}
}

func evalProject(o *algebra.Project, ctx *Context) Solutions {
	return func(yield func(solution.Solution, error) bool) {
		for s, err := range Evaluate(o.Input, ctx) {
			if err != nil {
				yield(solution.Solution{}, err)
				return
			}
			if !yield(s.Project(o.Vars), nil) {
				return
			}
		}
	}
}

func evalDistinct(o *algebra.Distinct, ctx *Context) Solutions {
	return func(yield func(solution.Solution, error) bool) {
		seen := solution.NewSet()
		for s, err := range Evaluate(o.Input, ctx) {
			if err != nil {
				yield(solution.Solution{}, err)
				return
			}
			if seen.Add(s) && !yield(s, nil) {
				return
			}
		}
	}
}

func evalOrderBy(o *algebra.OrderBy, ctx *Context) Solutions {
	return func(yield func(solution.Solution, error) bool) {
		type keyed struct {
			sol  solution.Solution
			keys []rdf.Node
		}
		var rows []keyed
		for s, err := range Evaluate(o.Input, ctx) {
			if err != nil {
				yield(solution.Solution{}, err)
				return
			}
			keys := make([]rdf.Node, len(o.Conditions))
			for i, c := range o.Conditions {
				// errors sort as unbound
				keys[i], _ = ctx.evaluate(c.Expr, s)
			}
			rows = append(rows, keyed{sol: s, keys: keys})
		}

		slices.SortStableFunc(rows, func(a, b keyed) int {
			for i, c := range o.Conditions {
				cmp := rdf.Compare(a.keys[i], b.keys[i])
				if c.Descending {
					cmp = -cmp
				}
				if cmp != 0 {
					return cmp
				}
			}
			return 0
		})

		for _, r := range rows {
			if !yield(r.sol, nil) {
				return
			}
		}
	}
}

// evalSlice stops pulling from its input once Limit rows are out.
func evalSlice(o *algebra.Slice, ctx *Context) Solutions {
	return func(yield func(solution.Solution, error) bool) {
		if o.Limit == 0 {
			return
		}
		skipped, emitted := 0, 0
		for s, err := range Evaluate(o.Input, ctx) {
			if err != nil {
				yield(solution.Solution{}, err)
				return
			}
			if skipped < o.Offset {
				skipped++
				continue
			}
			if !yield(s, nil) {
				return
			}
			emitted++
			if o.Limit > 0 && emitted >= o.Limit {
				return
			}
		}
	}
}

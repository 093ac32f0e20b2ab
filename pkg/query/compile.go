package query

import (
	"fmt"
	"slices"
	"strings"

	"github.com/coolbeans/quarry/pkg/algebra"
	"github.com/coolbeans/quarry/pkg/errors"
	"github.com/coolbeans/quarry/pkg/rdf"
)

var queryForms = map[QueryType]algebra.QueryForm{
	SelectQueryType:    algebra.FormSelect,
	AskQueryType:       algebra.FormAsk,
	ConstructQueryType: algebra.FormConstruct,
	DescribeQueryType:  algebra.FormDescribe,
}

// Compile translates a parsed query into an algebra tree. The solution
// modifiers are applied in the standard order: grouping, HAVING, SELECT
// expressions, ORDER BY, projection, DISTINCT, then OFFSET/LIMIT.
func Compile(q *Query) (*algebra.Query, error) {
	form, ok := queryForms[q.Type]
	if !ok {
		return nil, errors.InvalidQueryf("unknown query type %q", q.Type)
	}

	op, err := translateGroup(q.Where)
	if err != nil {
		return nil, err
	}

	var extends []*algebra.Extend
	order := q.OrderBy
	if q.HasAggregates() {
		if q.Star {
			return nil, errors.InvalidQueryf("SELECT * cannot be combined with grouping")
		}
		op, extends, order, err = compileGrouping(q, op)
	} else {
		extends, err = projectionExtends(q, op)
	}
	if err != nil {
		return nil, err
	}

	for _, ext := range extends {
		ext.Input = op
		op = ext
	}
	if len(order) > 0 {
		op = &algebra.OrderBy{Input: op, Conditions: order}
	}

	vars := q.OutputVariables()
	if q.Type == SelectQueryType {
		op = &algebra.Project{Input: op, Vars: vars}
		if q.Distinct {
			op = &algebra.Distinct{Input: op}
		}
	}
	if q.Limit >= 0 || q.Offset > 0 {
		op = &algebra.Slice{Input: op, Offset: q.Offset, Limit: q.Limit}
	}

	out := &algebra.Query{
		Form:      form,
		Algebra:   op,
		Variables: vars,
		Template:  q.Template,
		Describe:  q.Describe,
	}
	if len(q.From) > 0 || len(q.FromNamed) > 0 {
		out.Dataset = &algebra.Dataset{Default: q.From, Named: q.FromNamed}
	}
	return out, nil
}

// projectionExtends turns SELECT expressions of an ungrouped query into
// Extend steps. Their Input is filled in by the caller.
func projectionExtends(q *Query, where algebra.Operator) ([]*algebra.Extend, error) {
	bound := variableSet(where)
	var out []*algebra.Extend
	for _, p := range q.Projection {
		if p.Expr == nil {
			continue
		}
		if bound[p.Var] {
			return nil, errors.InvalidQueryf("variable ?%s is already bound before AS", p.Var)
		}
		bound[p.Var] = true
		out = append(out, &algebra.Extend{Var: p.Var, Expr: p.Expr})
	}
	return out, nil
}

// compileGrouping wraps where in a Group operator. Aggregates in the SELECT
// clause, HAVING and ORDER BY are replaced by variables bound by the group.
func compileGrouping(q *Query, where algebra.Operator) (algebra.Operator, []*algebra.Extend, []algebra.OrderCondition, error) {
	g := &aggregateCollector{byText: make(map[string]string)}

	visible := make(map[string]bool)
	for _, k := range q.GroupBy {
		if containsAggregate(k.Expr) {
			return nil, nil, nil, errors.InvalidQueryf("aggregate in GROUP BY %s", k.Expr)
		}
		if k.Var != "" {
			visible[k.Var] = true
		}
	}

	var extends []*algebra.Extend
	for _, p := range q.Projection {
		if p.Expr == nil {
			if !visible[p.Var] {
				return nil, nil, nil, errors.InvalidQueryf("variable ?%s is neither grouped nor aggregated", p.Var)
			}
			continue
		}
		if visible[p.Var] {
			return nil, nil, nil, errors.InvalidQueryf("variable ?%s is already bound before AS", p.Var)
		}
		if agg, ok := p.Expr.(*algebra.Aggregate); ok {
			if err := g.bind(agg, p.Var); err != nil {
				return nil, nil, nil, err
			}
			visible[p.Var] = true
			continue
		}
		e, err := g.rewrite(p.Expr)
		if err != nil {
			return nil, nil, nil, err
		}
		if name, ok := ungroupedVariable(e, visible); ok {
			return nil, nil, nil, errors.InvalidQueryf("variable ?%s in %s is neither grouped nor aggregated", name, p.Expr)
		}
		visible[p.Var] = true
		extends = append(extends, &algebra.Extend{Var: p.Var, Expr: e})
	}

	var having []algebra.Expr
	for _, h := range q.Having {
		e, err := g.rewrite(h)
		if err != nil {
			return nil, nil, nil, err
		}
		having = append(having, e)
	}

	order := make([]algebra.OrderCondition, len(q.OrderBy))
	for i, c := range q.OrderBy {
		e, err := g.rewrite(c.Expr)
		if err != nil {
			return nil, nil, nil, err
		}
		order[i] = algebra.OrderCondition{Expr: e, Descending: c.Descending}
	}

	var op algebra.Operator = &algebra.Group{Input: where, Keys: q.GroupBy, Aggregates: g.bindings}
	for _, h := range having {
		op = &algebra.Filter{Expr: h, Input: op}
	}
	return op, extends, order, nil
}

// aggregateCollector gathers the aggregates of a grouped query. Identical
// aggregates share one binding.
type aggregateCollector struct {
	bindings []algebra.AggregateBinding
	byText   map[string]string
}

func (g *aggregateCollector) bind(agg *algebra.Aggregate, name string) error {
	if agg.Expr != nil && containsAggregate(agg.Expr) {
		return errors.InvalidQueryf("nested aggregate in %s", agg)
	}
	g.bindings = append(g.bindings, algebra.AggregateBinding{Aggregate: agg, Var: name})
	if _, ok := g.byText[agg.String()]; !ok {
		g.byText[agg.String()] = name
	}
	return nil
}

// rewrite returns e with every aggregate replaced by the variable bound to it.
func (g *aggregateCollector) rewrite(e algebra.Expr) (algebra.Expr, error) {
	switch x := e.(type) {
	case *algebra.Aggregate:
		if name, ok := g.byText[x.String()]; ok {
			return algebra.V(name), nil
		}
		name := fmt.Sprintf(".agg%d", len(g.bindings))
		if err := g.bind(x, name); err != nil {
			return nil, err
		}
		return algebra.V(name), nil
	case *algebra.Binary:
		left, err := g.rewrite(x.Left)
		if err != nil {
			return nil, err
		}
		right, err := g.rewrite(x.Right)
		if err != nil {
			return nil, err
		}
		return &algebra.Binary{Op: x.Op, Left: left, Right: right}, nil
	case *algebra.Unary:
		operand, err := g.rewrite(x.Operand)
		if err != nil {
			return nil, err
		}
		return &algebra.Unary{Op: x.Op, Operand: operand}, nil
	case *algebra.Call:
		args, err := g.rewriteAll(x.Args)
		if err != nil {
			return nil, err
		}
		return &algebra.Call{Func: x.Func, Args: args}, nil
	case *algebra.In:
		target, err := g.rewrite(x.Expr)
		if err != nil {
			return nil, err
		}
		list, err := g.rewriteAll(x.List)
		if err != nil {
			return nil, err
		}
		return &algebra.In{Expr: target, List: list, Not: x.Not}, nil
	default:
		return e, nil
	}
}

func (g *aggregateCollector) rewriteAll(es []algebra.Expr) ([]algebra.Expr, error) {
	out := make([]algebra.Expr, len(es))
	for i, e := range es {
		r, err := g.rewrite(e)
		if err != nil {
			return nil, err
		}
		out[i] = r
	}
	return out, nil
}

// ungroupedVariable returns a variable of e that is not visible after
// grouping. Aggregate variables start with '.' and are always visible.
func ungroupedVariable(e algebra.Expr, visible map[string]bool) (string, bool) {
	var name string
	walkExpr(e, func(x algebra.Expr) {
		if v, ok := x.(*algebra.Var); ok && name == "" && !visible[v.Name] && !strings.HasPrefix(v.Name, ".") {
			name = v.Name
		}
	})
	return name, name != ""
}

// translateGroup translates a group graph pattern. Filters apply to the
// whole group; a filter directly inside OPTIONAL becomes the left join's
// condition.
func translateGroup(g *GroupPattern) (algebra.Operator, error) {
	if g == nil {
		return &algebra.BGP{}, nil
	}
	var (
		acc     algebra.Operator
		filters []algebra.Expr
	)
	for _, el := range g.Elements {
		switch e := el.(type) {
		case *TriplesBlock:
			acc = joinPatterns(acc, e.Patterns)
		case *GroupPattern:
			sub, err := translateGroup(e)
			if err != nil {
				return nil, err
			}
			acc = join(acc, sub)
		case *UnionPattern:
			u, err := translateUnion(e)
			if err != nil {
				return nil, err
			}
			acc = join(acc, u)
		case *OptionalPattern:
			sub, err := translateGroup(e.Pattern)
			if err != nil {
				return nil, err
			}
			lj := &algebra.LeftJoin{Left: orEmpty(acc), Right: sub}
			if f, ok := sub.(*algebra.Filter); ok {
				lj.Right, lj.Expr = f.Input, f.Expr
			}
			acc = lj
		case *MinusPattern:
			sub, err := translateGroup(e.Pattern)
			if err != nil {
				return nil, err
			}
			acc = &algebra.Minus{Left: orEmpty(acc), Right: sub}
		case *GraphPattern:
			sub, err := translateGroup(e.Pattern)
			if err != nil {
				return nil, err
			}
			acc = join(acc, &algebra.Graph{Name: e.Name, Input: sub})
		case *Filter:
			if containsAggregate(e.Expr) {
				return nil, errors.InvalidQueryf("aggregate in FILTER %s", e.Expr)
			}
			filters = append(filters, e.Expr)
		case *Bind:
			if containsAggregate(e.Expr) {
				return nil, errors.InvalidQueryf("aggregate in BIND %s", e.Expr)
			}
			in := orEmpty(acc)
			if slices.Contains(algebra.Variables(in), e.Var) {
				return nil, errors.InvalidQueryf("BIND of ?%s, which is already in scope", e.Var)
			}
			acc = &algebra.Extend{Input: in, Var: e.Var, Expr: e.Expr}
		default:
			return nil, errors.InvalidQueryf("unexpected element %T", el)
		}
	}

	op := orEmpty(acc)
	for _, f := range filters {
		op = &algebra.Filter{Expr: f, Input: op}
	}
	return op, nil
}

func translateUnion(u *UnionPattern) (algebra.Operator, error) {
	var out algebra.Operator
	for _, b := range u.Branches {
		op, err := translateGroup(b)
		if err != nil {
			return nil, err
		}
		if out == nil {
			out = op
		} else {
			out = &algebra.Union{Left: out, Right: op}
		}
	}
	return orEmpty(out), nil
}

// joinPatterns adds triple patterns to acc, extending a trailing BGP rather
// than joining a new one.
func joinPatterns(acc algebra.Operator, patterns []rdf.Triple) algebra.Operator {
	if bgp, ok := acc.(*algebra.BGP); ok {
		merged := slices.Concat(bgp.Patterns, patterns)
		return &algebra.BGP{Patterns: merged}
	}
	return join(acc, &algebra.BGP{Patterns: slices.Clone(patterns)})
}

// join joins two operators, treating nil and the empty BGP as the identity.
func join(left, right algebra.Operator) algebra.Operator {
	if isEmptyBGP(left) {
		return right
	}
	if isEmptyBGP(right) {
		return left
	}
	return &algebra.Join{Left: left, Right: right}
}

func isEmptyBGP(op algebra.Operator) bool {
	if op == nil {
		return true
	}
	bgp, ok := op.(*algebra.BGP)
	return ok && len(bgp.Patterns) == 0
}

func orEmpty(op algebra.Operator) algebra.Operator {
	if op == nil {
		return &algebra.BGP{}
	}
	return op
}

func variableSet(op algebra.Operator) map[string]bool {
	set := make(map[string]bool)
	for _, v := range algebra.Variables(op) {
		set[v] = true
	}
	return set
}

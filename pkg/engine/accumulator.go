package engine

import (
	"strings"

	"github.com/coolbeans/quarry/pkg/algebra"
	"github.com/coolbeans/quarry/pkg/errors"
	"github.com/coolbeans/quarry/pkg/rdf"
	"github.com/coolbeans/quarry/pkg/solution"
)

// Accumulator folds the members of one group into an aggregate value.
//
// Accumulate never fails: a member whose expression errors is skipped, or
// poisons the accumulator so that its result is unbound, depending on the
// aggregate. Result may be read at any time and reflects the members seen so
// far; ok is false when the aggregate has no value.
type Accumulator interface {
	Accumulate(s solution.Solution, ctx *Context)
	Result() (value rdf.Node, ok bool)
}

// NewAccumulator returns a fresh accumulator for agg.
func NewAccumulator(agg *algebra.Aggregate) (Accumulator, error) {
	if agg == nil {
		return nil, errors.InvalidConfigurationf("nil aggregate")
	}
	var fold folder
	switch agg.Func {
	case algebra.AggCount:
		fold = &countFold{}
	case algebra.AggSum:
		fold = &sumFold{sum: rdf.IntNumber(0)}
	case algebra.AggAvg:
		fold = &avgFold{sum: rdf.IntNumber(0)}
	case algebra.AggMin:
		fold = &extremeFold{want: -1}
	case algebra.AggMax:
		fold = &extremeFold{want: 1}
	case algebra.AggSample:
		fold = &sampleFold{}
	case algebra.AggGroupConcat:
		sep := agg.Separator
		if sep == "" {
			sep = algebra.DefaultSeparator
		}
		fold = &concatFold{sep: sep}
	default:
		return nil, errors.NotSupportedf("aggregate %s", agg.Func)
	}
	if agg.Expr == nil && agg.Func != algebra.AggCount {
		return nil, errors.InvalidConfigurationf("%s requires an expression", agg.Func)
	}

	acc := &exprAccumulator{agg: agg, fold: fold}
	if agg.Distinct {
		acc.seen = make(map[rdf.Node]struct{})
		acc.seenRows = solution.NewSet()
	}
	return acc, nil
}

// folder consumes one evaluated member value at a time.
type folder interface {
	add(v rdf.Node)
	result() (rdf.Node, bool)
}

// exprAccumulator evaluates the aggregate expression per member and feeds
// the value to its folder, applying DISTINCT first.
type exprAccumulator struct {
	agg  *algebra.Aggregate
	fold folder

	seen     map[rdf.Node]struct{}
	seenRows *solution.Set
}

func (a *exprAccumulator) Accumulate(s solution.Solution, ctx *Context) {
	if a.agg.Expr == nil {
		// COUNT(*) counts rows; DISTINCT counts distinct rows
		if a.seenRows != nil && !a.seenRows.Add(s) {
			return
		}
		a.fold.add(rdf.Node{})
		return
	}

	v, err := ctx.evaluate(a.agg.Expr, s)
	if err != nil {
		ctx.opts.Observer.RowDropped(StageAggregate, a.agg.String(), err)
		return
	}
	if a.seen != nil {
		if _, dup := a.seen[v]; dup {
			return
		}
		a.seen[v] = struct{}{}
	}
	a.fold.add(v)
}

func (a *exprAccumulator) Result() (rdf.Node, bool) { return a.fold.result() }

type countFold struct{ n int64 }

func (f *countFold) add(rdf.Node)              { f.n++ }
func (f *countFold) result() (rdf.Node, bool) { return rdf.NewInteger(f.n), true }

// sumFold adds numeric values. A non-numeric value poisons the sum.
type sumFold struct {
	sum      rdf.Number
	poisoned bool
}

func (f *sumFold) add(v rdf.Node) {
	n, ok := rdf.NumberOf(v)
	if !ok {
		f.poisoned = true
		return
	}
	f.sum = f.sum.Add(n)
}

func (f *sumFold) result() (rdf.Node, bool) {
	if f.poisoned {
		return rdf.Node{}, false
	}
	return f.sum.Node(), true
}

type avgFold struct {
	sum      rdf.Number
	count    int64
	poisoned bool
}

func (f *avgFold) add(v rdf.Node) {
	n, ok := rdf.NumberOf(v)
	if !ok {
		f.poisoned = true
		return
	}
	f.sum = f.sum.Add(n)
	f.count++
}

func (f *avgFold) result() (rdf.Node, bool) {
	if f.poisoned {
		return rdf.Node{}, false
	}
	if f.count == 0 {
		return rdf.NewInteger(0), true
	}
	avg, err := f.sum.Div(rdf.IntNumber(f.count))
	if err != nil {
		return rdf.Node{}, false
	}
	return avg.Node(), true
}

// extremeFold keeps the minimum (want -1) or maximum (want 1) value under
// rdf.Compare.
type extremeFold struct {
	want int
	best rdf.Node
	has  bool
}

func (f *extremeFold) add(v rdf.Node) {
	if !f.has || rdf.Compare(v, f.best)*f.want > 0 {
		f.best = v
		f.has = true
	}
}

func (f *extremeFold) result() (rdf.Node, bool) { return f.best, f.has }

// sampleFold keeps the first value seen.
type sampleFold struct {
	value rdf.Node
	has   bool
}

func (f *sampleFold) add(v rdf.Node) {
	if !f.has {
		f.value = v
		f.has = true
	}
}

func (f *sampleFold) result() (rdf.Node, bool) { return f.value, f.has }

// concatFold joins lexical forms in arrival order. Blank nodes poison it.
type concatFold struct {
	sep      string
	parts    []string
	poisoned bool
}

func (f *concatFold) add(v rdf.Node) {
	if !v.IsLiteral() && !v.IsIRI() {
		f.poisoned = true
		return
	}
	f.parts = append(f.parts, v.Value())
}

func (f *concatFold) result() (rdf.Node, bool) {
	if f.poisoned {
		return rdf.Node{}, false
	}
	return rdf.NewLiteral(strings.Join(f.parts, f.sep)), true
}

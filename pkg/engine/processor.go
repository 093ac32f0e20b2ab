package engine

import (
	"context"
	"time"

	"github.com/coolbeans/quarry/pkg/algebra"
	"github.com/coolbeans/quarry/pkg/errors"
	"github.com/coolbeans/quarry/pkg/logging"
	"github.com/coolbeans/quarry/pkg/solution"
	"github.com/coolbeans/quarry/pkg/store"
)

// Processor executes compiled queries against a store.
type Processor struct {
	store store.QuadStore
	opts  []Option
}

// NewProcessor returns a processor over st. opts apply to every query.
func NewProcessor(st store.QuadStore, opts ...Option) *Processor {
	return &Processor{store: st, opts: opts}
}

// Result is the outcome of one query. For ASK, Boolean holds the answer.
// For SELECT, Solutions streams the rows; it may be ranged over once.
type Result struct {
	Form      algebra.QueryForm
	Variables []string
	Boolean   bool

	rows Solutions
}

// Solutions returns the SELECT rows. It is empty for other forms.
func (r *Result) Solutions() Solutions {
	if r.rows == nil {
		return empty
	}
	return r.rows
}

// Collect drains the SELECT rows into a slice.
func (r *Result) Collect() ([]solution.Solution, error) {
	return collect(r.Solutions())
}

// Execute runs q. Configuration errors, and the query forms the engine
// cannot evaluate, are returned before any store access. SELECT rows are
// produced lazily as the caller ranges over Result.Solutions; cancelling ctx
// stops the sequence with ctx's error.
func (p *Processor) Execute(ctx context.Context, q *algebra.Query) (*Result, error) {
	ec := NewContext(p.store, p.opts...).WithDataset(q.Dataset)
	obs := ec.opts.Observer
	start := time.Now()

	switch q.Form {
	case algebra.FormConstruct, algebra.FormDescribe:
		err := stageError(StageQuery, q.Form, errors.NotSupportedf("%s queries", q.Form))
		obs.QueryFinished(q.Form, 0, time.Since(start), err)
		return nil, err
	case algebra.FormSelect, algebra.FormAsk:
	default:
		return nil, stageError(StageQuery, q.Form, errors.InvalidConfigurationf("unknown query form %d", int(q.Form)))
	}

	if err := Prepare(q.Algebra); err != nil {
		obs.QueryFinished(q.Form, 0, time.Since(start), err)
		return nil, err
	}
	ec.opts.Logger.Debugw("executing query", logging.FieldQuery, q.Algebra.String())

	if q.Form == algebra.FormAsk {
		found, err := ask(ctx, Evaluate(q.Algebra, ec))
		rows := 0
		if found {
			rows = 1
		}
		obs.QueryFinished(q.Form, rows, time.Since(start), err)
		if err != nil {
			return nil, err
		}
		return &Result{Form: q.Form, Boolean: found}, nil
	}

	return &Result{
		Form:      q.Form,
		Variables: q.Variables,
		rows:      stream(ctx, q.Form, Evaluate(q.Algebra, ec), obs, start),
	}, nil
}

// ask pulls at most one row.
func ask(ctx context.Context, rows Solutions) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	for _, err := range rows {
		if err != nil {
			return false, err
		}
		return true, nil
	}
	return false, nil
}

// stream checks ctx between rows and reports the final count to obs.
func stream(ctx context.Context, form algebra.QueryForm, rows Solutions, obs Observer, start time.Time) Solutions {
	return func(yield func(solution.Solution, error) bool) {
		n := 0
		var failure error
		defer func() { obs.QueryFinished(form, n, time.Since(start), failure) }()

		if failure = ctx.Err(); failure != nil {
			yield(solution.Solution{}, failure)
			return
		}
		for s, err := range rows {
			if err != nil {
				failure = err
				yield(solution.Solution{}, err)
				return
			}
			n++
			if !yield(s, nil) {
				return
			}
			if failure = ctx.Err(); failure != nil {
				yield(solution.Solution{}, failure)
				return
			}
		}
	}
}

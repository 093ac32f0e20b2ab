// Package engine evaluates compiled algebra against a quad store: basic graph
// pattern matching, join strategy selection, lazy operator evaluation,
// grouping with aggregation, and query form dispatch.
//
// Every sequence the engine returns is a single-pass, pull-driven iterator.
// Nothing runs until the caller ranges over it, and a caller that stops
// ranging stops all upstream work. The engine takes no locks; the store is
// read concurrently by as many evaluations as the caller starts.
package engine

import (
	"iter"
	"slices"
	"sync"

	"go.uber.org/zap"

	"github.com/coolbeans/quarry/pkg/algebra"
	"github.com/coolbeans/quarry/pkg/expr"
	"github.com/coolbeans/quarry/pkg/logging"
	"github.com/coolbeans/quarry/pkg/rdf"
	"github.com/coolbeans/quarry/pkg/solution"
	"github.com/coolbeans/quarry/pkg/store"
)

// Solutions is a lazy sequence of solutions. A failing sequence yields a
// final (zero, err) pair and stops.
type Solutions = iter.Seq2[solution.Solution, error]

// Evaluator computes expression values. expr.Evaluator is the default.
type Evaluator interface {
	Evaluate(e algebra.Expr, s solution.Solution, env expr.Env) (rdf.Node, error)
}

// Options configures evaluation.
type Options struct {
	Evaluator Evaluator
	Selector  Selector
	Observer  Observer
	Logger    *zap.SugaredLogger
	// Planning reorders BGP patterns by estimated selectivity.
	Planning bool
}

// Option sets an evaluation option.
type Option func(*Options)

// WithEvaluator replaces the expression evaluator.
func WithEvaluator(e Evaluator) Option {
	return func(o *Options) { o.Evaluator = e }
}

// WithSelector replaces the join strategy selector.
func WithSelector(s Selector) Option {
	return func(o *Options) { o.Selector = s }
}

// WithObserver adds observers. Observers are called in the order added.
func WithObserver(obs ...Observer) Option {
	return func(o *Options) {
		var list Observers
		if existing, ok := o.Observer.(Observers); ok {
			list = existing
		} else if o.Observer != nil {
			list = Observers{o.Observer}
		}
		o.Observer = append(list, obs...)
	}
}

// WithLogger sets the logger used for stage-boundary debug output.
func WithLogger(l *zap.SugaredLogger) Option {
	return func(o *Options) { o.Logger = l }
}

// WithPlanning enables or disables selectivity-based pattern ordering.
func WithPlanning(enabled bool) Option {
	return func(o *Options) { o.Planning = enabled }
}

func newOptions(opts []Option) *Options {
	o := &Options{Planning: true}
	for _, opt := range opts {
		opt(o)
	}
	if o.Evaluator == nil {
		o.Evaluator = expr.New()
	}
	if o.Selector == nil {
		o.Selector = DefaultSelector(DefaultSelectorConfig())
	}
	if o.Logger == nil {
		o.Logger = logging.Nop()
	}
	if o.Observer == nil {
		o.Observer = Observers{}
	}
	return o
}

// shared is per-evaluation state common to every derived Context.
type shared struct {
	store store.QuadStore
	opts  *Options

	statsOnce sync.Once
	stats     *store.IndexStats
}

// Context carries the active graph and dataset through evaluation. It is
// immutable; With* methods return derived contexts.
type Context struct {
	*shared

	activeGraph   rdf.Node
	defaultGraphs []rdf.Node
	// namedGraphs restricts GRAPH patterns when restrictNamed is set.
	namedGraphs   []rdf.Node
	restrictNamed bool
}

// NewContext creates a context whose active graph is the default graph, made
// of the store's own default graph.
func NewContext(st store.QuadStore, opts ...Option) *Context {
	return &Context{
		shared:        &shared{store: st, opts: newOptions(opts)},
		activeGraph:   rdf.DefaultGraph,
		defaultGraphs: []rdf.Node{rdf.DefaultGraph},
	}
}

// Store returns the quad store being queried.
func (c *Context) Store() store.QuadStore { return c.store }

// Options returns the evaluation options.
func (c *Context) Options() *Options { return c.opts }

// ActiveGraph returns the graph patterns currently match against.
func (c *Context) ActiveGraph() rdf.Node { return c.activeGraph }

// DefaultGraphs returns the graphs merged into the default graph.
func (c *Context) DefaultGraphs() []rdf.Node { return slices.Clone(c.defaultGraphs) }

// WithActiveGraph returns a context matching against g. rdf.DefaultGraph
// selects the (possibly merged) default graph.
func (c *Context) WithActiveGraph(g rdf.Node) *Context {
	out := *c
	out.activeGraph = g
	return &out
}

// WithDefaultGraphs returns a context whose default graph is the merge of
// graphs. An empty list makes the default graph empty.
func (c *Context) WithDefaultGraphs(graphs ...rdf.Node) *Context {
	out := *c
	out.defaultGraphs = slices.Clone(graphs)
	return &out
}

// WithNamedGraphs returns a context where GRAPH patterns only see graphs.
func (c *Context) WithNamedGraphs(graphs ...rdf.Node) *Context {
	out := *c
	out.namedGraphs = slices.Clone(graphs)
	out.restrictNamed = true
	return &out
}

// WithDataset applies a FROM / FROM NAMED description. A nil dataset leaves
// the context unchanged. A dataset naming only default graphs hides every
// named graph, as does one naming only named graphs for the default graph.
func (c *Context) WithDataset(ds *algebra.Dataset) *Context {
	if ds == nil {
		return c
	}
	return c.WithDefaultGraphs(ds.Default...).WithNamedGraphs(ds.Named...)
}

// Exists implements expr.Env.
func (c *Context) Exists(pattern algebra.Operator, input solution.Solution) (bool, error) {
	for _, err := range EvaluateWith(pattern, input, c) {
		if err != nil {
			return false, err
		}
		return true, nil
	}
	return false, nil
}

// activeGraphs resolves the active graph to the store graphs to search.
func (c *Context) activeGraphs() []rdf.Node {
	if c.activeGraph.IsDefaultGraph() || c.activeGraph.IsZero() {
		return c.defaultGraphs
	}
	return []rdf.Node{c.activeGraph}
}

// namedGraphNames lists the graphs a GRAPH ?g pattern iterates.
func (c *Context) namedGraphNames() ([]rdf.Node, error) {
	if c.restrictNamed {
		return c.namedGraphs, nil
	}
	var names []rdf.Node
	for g, err := range c.store.GraphNames() {
		if err != nil {
			return nil, err
		}
		names = append(names, g)
	}
	return names, nil
}

// isNamedGraph reports whether g is visible to GRAPH patterns.
func (c *Context) isNamedGraph(g rdf.Node) bool {
	if !c.restrictNamed {
		return true
	}
	return slices.Contains(c.namedGraphs, g)
}

// indexStats returns store statistics when the store provides them.
func (c *Context) indexStats() *store.IndexStats {
	c.statsOnce.Do(func() {
		if sp, ok := c.store.(store.StatsProvider); ok {
			st := sp.Stats()
			c.stats = &st
		}
	})
	return c.stats
}

func (c *Context) evaluate(e algebra.Expr, s solution.Solution) (rdf.Node, error) {
	return c.opts.Evaluator.Evaluate(e, s, c)
}

func (c *Context) test(e algebra.Expr, s solution.Solution) (bool, error) {
	n, err := c.evaluate(e, s)
	if err != nil {
		return false, err
	}
	return expr.EBV(n)
}

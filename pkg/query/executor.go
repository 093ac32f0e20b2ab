package query

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/coolbeans/quarry/pkg/algebra"
	"github.com/coolbeans/quarry/pkg/engine"
	"github.com/coolbeans/quarry/pkg/errors"
	"github.com/coolbeans/quarry/pkg/rdf"
	"github.com/coolbeans/quarry/pkg/solution"
	"github.com/coolbeans/quarry/pkg/store"
)

// Executor parses, compiles and executes SPARQL queries against a quad store.
type Executor struct {
	store      store.QuadStore
	engineOpts []engine.Option
	timeout    time.Duration
}

// ExecutorOption configures an executor.
type ExecutorOption func(*Executor)

// WithPlanning enables or disables reordering of triple patterns by
// estimated selectivity.
func WithPlanning(enabled bool) ExecutorOption {
	return func(e *Executor) {
		e.engineOpts = append(e.engineOpts, engine.WithPlanning(enabled))
	}
}

// WithTimeout sets the query execution timeout. Zero disables it.
func WithTimeout(d time.Duration) ExecutorOption {
	return func(e *Executor) {
		e.timeout = d
	}
}

// WithEngineOptions passes options through to the engine.
func WithEngineOptions(opts ...engine.Option) ExecutorOption {
	return func(e *Executor) {
		e.engineOpts = append(e.engineOpts, opts...)
	}
}

// NewExecutor creates a new query executor.
func NewExecutor(st store.QuadStore, opts ...ExecutorOption) *Executor {
	e := &Executor{
		store:   st,
		timeout: 30 * time.Second, // Default 30s timeout
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// QueryResult represents the result of a query execution.
type QueryResult struct {
	Type      QueryType
	Variables []string            // Variable names (without ?)
	Rows      []solution.Solution // SELECT rows
	Boolean   bool                // ASK answer
	Count     int                 // Number of result rows
	Metrics   QueryMetrics        // Execution metrics
}

// QueryMetrics contains performance metrics for query execution.
type QueryMetrics struct {
	ParseTime     time.Duration `json:"parse_time"`
	CompileTime   time.Duration `json:"compile_time"`
	ExecuteTime   time.Duration `json:"execute_time"`
	TotalTime     time.Duration `json:"total_time"`
	PatternsCount int           `json:"patterns_count"`
	ResultCount   int           `json:"result_count"`
}

// Execute executes a parsed query.
func (e *Executor) Execute(query *Query) (*QueryResult, error) {
	return e.ExecuteWithContext(context.Background(), query)
}

// ExecuteWithContext executes a parsed query with context for cancellation.
func (e *Executor) ExecuteWithContext(ctx context.Context, query *Query) (*QueryResult, error) {
	startTime := time.Now()
	metrics := QueryMetrics{}

	// Apply timeout if set
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	compiled, err := Compile(query)
	if err != nil {
		return nil, err
	}
	metrics.CompileTime = time.Since(startTime)
	metrics.PatternsCount = countPatterns(compiled.Algebra)

	execStart := time.Now()
	res, err := engine.NewProcessor(e.store, e.engineOpts...).Execute(ctx, compiled)
	if err != nil {
		return nil, err
	}
	result := &QueryResult{Type: query.Type, Variables: res.Variables, Boolean: res.Boolean}
	if res.Form == algebra.FormSelect {
		if result.Rows, err = res.Collect(); err != nil {
			return nil, err
		}
	}
	result.Count = len(result.Rows)

	metrics.ExecuteTime = time.Since(execStart)
	metrics.ResultCount = result.Count
	metrics.TotalTime = time.Since(startTime)
	result.Metrics = metrics
	return result, nil
}

// ExecuteString parses and executes a SPARQL query string.
func (e *Executor) ExecuteString(queryStr string) (*QueryResult, error) {
	return e.ExecuteStringWithContext(context.Background(), queryStr)
}

// ExecuteStringWithContext parses and executes a SPARQL query string with context.
func (e *Executor) ExecuteStringWithContext(ctx context.Context, queryStr string) (*QueryResult, error) {
	startTime := time.Now()

	query, err := ParseQuery(queryStr)
	if err != nil {
		return nil, errors.Wrap(err, "parse error")
	}
	parseTime := time.Since(startTime)

	result, err := e.ExecuteWithContext(ctx, query)
	if err != nil {
		return nil, err
	}

	result.Metrics.ParseTime = parseTime
	result.Metrics.TotalTime += parseTime
	return result, nil
}

// countPatterns returns the number of triple patterns in op.
func countPatterns(op algebra.Operator) int {
	switch o := op.(type) {
	case *algebra.BGP:
		return len(o.Patterns)
	case *algebra.Join:
		return countPatterns(o.Left) + countPatterns(o.Right)
	case *algebra.LeftJoin:
		return countPatterns(o.Left) + countPatterns(o.Right)
	case *algebra.Union:
		return countPatterns(o.Left) + countPatterns(o.Right)
	case *algebra.Minus:
		return countPatterns(o.Left) + countPatterns(o.Right)
	case *algebra.Filter:
		return countPatterns(o.Input)
	case *algebra.Graph:
		return countPatterns(o.Input)
	case *algebra.Extend:
		return countPatterns(o.Input)
	case *algebra.Group:
		return countPatterns(o.Input)
	case *algebra.Project:
		return countPatterns(o.Input)
	case *algebra.Distinct:
		return countPatterns(o.Input)
	case *algebra.OrderBy:
		return countPatterns(o.Input)
	case *algebra.Slice:
		return countPatterns(o.Input)
	default:
		return 0
	}
}

// Output format types.
type OutputFormat string

const (
	FormatTable OutputFormat = "table"
	FormatJSON  OutputFormat = "json"
	FormatCSV   OutputFormat = "csv"
)

// Format formats the query result in the specified format.
func (r *QueryResult) Format(format OutputFormat) (string, error) {
	switch format {
	case FormatJSON:
		return r.FormatJSON()
	case FormatCSV:
		return r.FormatCSV()
	case FormatTable:
		return r.FormatTable(), nil
	default:
		return "", errors.NotSupportedf("format %q", format)
	}
}

// Cells returns the rows as N-Triples strings, one slice per row in
// Variables order. Unbound cells are empty.
func (r *QueryResult) Cells() [][]string {
	out := make([][]string, len(r.Rows))
	for i, row := range r.Rows {
		cells := make([]string, len(r.Variables))
		for j, v := range r.Variables {
			if n, ok := row.Get(v); ok {
				cells[j] = n.String()
			}
		}
		out[i] = cells
	}
	return out
}

// FormatTable formats the result as an ASCII table.
func (r *QueryResult) FormatTable() string {
	if r.Type == AskQueryType {
		return fmt.Sprintf("%t\n", r.Boolean)
	}
	if len(r.Variables) == 0 || len(r.Rows) == 0 {
		return fmt.Sprintf("No results (%d rows)\n", r.Count)
	}

	var sb strings.Builder
	cells := r.Cells()

	// Calculate column widths
	widths := make([]int, len(r.Variables))
	for i, v := range r.Variables {
		widths[i] = len(v)
	}
	for _, row := range cells {
		for i, cell := range row {
			if len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	// Header separator
	var sep strings.Builder
	sep.WriteString("+")
	for _, w := range widths {
		sep.WriteString(strings.Repeat("-", w+2))
		sep.WriteString("+")
	}
	sep.WriteString("\n")

	sb.WriteString(sep.String())

	// Header row
	sb.WriteString("|")
	for i, v := range r.Variables {
		fmt.Fprintf(&sb, " %-*s |", widths[i], v)
	}
	sb.WriteString("\n")
	sb.WriteString(sep.String())

	// Data rows
	for _, row := range cells {
		sb.WriteString("|")
		for i, cell := range row {
			fmt.Fprintf(&sb, " %-*s |", widths[i], cell)
		}
		sb.WriteString("\n")
	}
	sb.WriteString(sep.String())

	fmt.Fprintf(&sb, "%d rows\n", r.Count)
	return sb.String()
}

type jsonTerm struct {
	Type     string `json:"type"`
	Value    string `json:"value"`
	Lang     string `json:"xml:lang,omitempty"`
	Datatype string `json:"datatype,omitempty"`
}

type jsonHead struct {
	Vars []string `json:"vars,omitempty"`
}

type jsonBindings struct {
	Bindings []map[string]jsonTerm `json:"bindings"`
}

// FormatJSON formats the result in the SPARQL 1.1 query results JSON format.
func (r *QueryResult) FormatJSON() (string, error) {
	var doc any
	if r.Type == AskQueryType {
		doc = struct {
			Head    jsonHead `json:"head"`
			Boolean bool     `json:"boolean"`
		}{Boolean: r.Boolean}
	} else {
		bindings := make([]map[string]jsonTerm, len(r.Rows))
		for i, row := range r.Rows {
			b := make(map[string]jsonTerm)
			for _, v := range r.Variables {
				if n, ok := row.Get(v); ok {
					b[v] = toJSONTerm(n)
				}
			}
			bindings[i] = b
		}
		doc = struct {
			Head    jsonHead     `json:"head"`
			Results jsonBindings `json:"results"`
		}{Head: jsonHead{Vars: r.Variables}, Results: jsonBindings{Bindings: bindings}}
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func toJSONTerm(n rdf.Node) jsonTerm {
	switch n.Kind() {
	case rdf.KindIRI:
		return jsonTerm{Type: "uri", Value: n.Value()}
	case rdf.KindBlank:
		return jsonTerm{Type: "bnode", Value: n.Value()}
	default:
		t := jsonTerm{Type: "literal", Value: n.Value(), Lang: n.Lang()}
		if t.Lang == "" && n.Datatype() != rdf.XSDString {
			t.Datatype = n.Datatype()
		}
		return t
	}
}

// FormatCSV formats the result as CSV. Cells hold lexical values: IRIs
// without brackets, literals without quotes or datatype, blank nodes as _:label.
func (r *QueryResult) FormatCSV() (string, error) {
	var sb strings.Builder
	writer := csv.NewWriter(&sb)

	if r.Type == AskQueryType {
		if err := writer.Write([]string{fmt.Sprint(r.Boolean)}); err != nil {
			return "", err
		}
		writer.Flush()
		return sb.String(), writer.Error()
	}

	// Header row
	if err := writer.Write(r.Variables); err != nil {
		return "", err
	}

	// Data rows
	for _, binding := range r.Rows {
		row := make([]string, len(r.Variables))
		for i, v := range r.Variables {
			n, ok := binding.Get(v)
			switch {
			case !ok:
			case n.IsBlank():
				row[i] = n.String()
			default:
				row[i] = n.Value()
			}
		}
		if err := writer.Write(row); err != nil {
			return "", err
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return "", err
	}

	return sb.String(), nil
}

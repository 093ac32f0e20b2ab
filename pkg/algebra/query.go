package algebra

import "github.com/coolbeans/quarry/pkg/rdf"

// QueryForm is the result shape a query asks for.
type QueryForm int

const (
	FormSelect QueryForm = iota
	FormAsk
	FormConstruct
	FormDescribe
)

func (f QueryForm) String() string {
	switch f {
	case FormSelect:
		return "SELECT"
	case FormAsk:
		return "ASK"
	case FormConstruct:
		return "CONSTRUCT"
	case FormDescribe:
		return "DESCRIBE"
	default:
		return "UNKNOWN"
	}
}

// Dataset describes the RDF dataset a query runs against (FROM / FROM NAMED).
type Dataset struct {
	// Default lists the graphs merged into the default graph. rdf.DefaultGraph
	// stands for the store's own default graph.
	Default []rdf.Node
	// Named lists the graphs visible to GRAPH patterns.
	Named []rdf.Node
}

// Query is a compiled query ready for execution.
type Query struct {
	Form    QueryForm
	Algebra Operator
	// Variables are the projected variables of a SELECT, in order.
	Variables []string
	// Dataset is nil when the query uses the store's dataset as is.
	Dataset *Dataset
	// Template holds the CONSTRUCT template. It is kept for completeness;
	// CONSTRUCT evaluation is not supported.
	Template []rdf.Triple
	// Describe holds the DESCRIBE targets.
	Describe []rdf.Node
}

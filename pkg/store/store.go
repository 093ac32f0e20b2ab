// Package store provides quad storage behind the QuadStore interface the
// query engine reads from: an indexed in-memory store, a SQLite-backed store,
// and a compressed snapshot codec.
package store

import (
	"iter"

	"github.com/coolbeans/quarry/pkg/rdf"
)

// QuadStore is the read contract the engine evaluates against.
//
// Find returns quads matching the given positions. A zero rdf.Node in any
// position is a wildcard; a zero graph matches every graph, rdf.DefaultGraph
// matches only the store's default graph. Implementations must be safe for
// concurrent readers; the engine takes no locks of its own.
type QuadStore interface {
	Find(graph, subject, predicate, object rdf.Node) iter.Seq2[rdf.Quad, error]
	GraphNames() iter.Seq2[rdf.Node, error]
}

// Writer mutates a store.
type Writer interface {
	Assert(q rdf.Quad) error
	Retract(q rdf.Quad) error
}

// StatsProvider exposes index statistics for join planning.
type StatsProvider interface {
	Stats() IndexStats
}

// Listener is notified synchronously, after the store has applied the change.
// Notifications fire only for quads that were actually added or removed.
type Listener interface {
	OnAssert(q rdf.Quad)
	OnRetract(q rdf.Quad)
}

// ListenerFuncs adapts plain functions to Listener. Nil fields are skipped.
type ListenerFuncs struct {
	Assert  func(q rdf.Quad)
	Retract func(q rdf.Quad)
}

func (l ListenerFuncs) OnAssert(q rdf.Quad) {
	if l.Assert != nil {
		l.Assert(q)
	}
}

func (l ListenerFuncs) OnRetract(q rdf.Quad) {
	if l.Retract != nil {
		l.Retract(q)
	}
}

// IndexStats contains statistics about the store for query optimization.
// Count maps are keyed by the N-Triples form of the term.
type IndexStats struct {
	TotalQuads       int            `json:"total_quads"`
	Graphs           int            `json:"graphs"`
	UniqueSubjects   int            `json:"unique_subjects"`
	UniquePredicates int            `json:"unique_predicates"`
	UniqueObjects    int            `json:"unique_objects"`
	PredicateCounts  map[string]int `json:"predicate_counts"`
	SubjectCounts    map[string]int `json:"subject_counts"`
	ObjectCounts     map[string]int `json:"object_counts"`
}

// Collect drains a quad sequence into a slice.
func Collect(seq iter.Seq2[rdf.Quad, error]) ([]rdf.Quad, error) {
	var out []rdf.Quad
	for q, err := range seq {
		if err != nil {
			return out, err
		}
		out = append(out, q)
	}
	return out, nil
}

// AssertAll adds every quad to w, stopping at the first error.
func AssertAll(w Writer, quads []rdf.Quad) error {
	for _, q := range quads {
		if err := w.Assert(q); err != nil {
			return err
		}
	}
	return nil
}

func validQuad(q rdf.Quad) bool {
	return q.Subject.IsTerm() && !q.Subject.IsLiteral() &&
		q.Predicate.IsIRI() &&
		q.Object.IsTerm() &&
		(q.Graph.IsZero() || q.Graph.IsDefaultGraph() || q.Graph.IsIRI() || q.Graph.IsBlank())
}

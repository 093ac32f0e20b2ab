package rdf

import "fmt"

// Triple is an ordered (subject, predicate, object). Used both for data and,
// with variables or blank nodes in any position, as a triple pattern.
type Triple struct {
	Subject   Node
	Predicate Node
	Object    Node
}

// NewTriple creates a new triple with the given components.
func NewTriple(subject, predicate, object Node) Triple {
	return Triple{Subject: subject, Predicate: predicate, Object: object}
}

// Nodes returns the three positions in order.
func (t Triple) Nodes() [3]Node {
	return [3]Node{t.Subject, t.Predicate, t.Object}
}

// IsGround reports whether no position is a variable or blank-node placeholder.
func (t Triple) IsGround() bool {
	return !t.Subject.IsPlaceholder() && !t.Predicate.IsPlaceholder() && !t.Object.IsPlaceholder()
}

// Placeholders returns the distinct placeholder names in the pattern, in
// subject, predicate, object order.
func (t Triple) Placeholders() []string {
	var names []string
	seen := make(map[string]bool, 3)
	for _, n := range t.Nodes() {
		if !n.IsPlaceholder() {
			continue
		}
		name := n.PlaceholderName()
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	return names
}

// String returns the N-Triples form of the triple.
func (t Triple) String() string {
	return fmt.Sprintf("%s %s %s .", t.Subject, t.Predicate, t.Object)
}

// Quad is a triple plus the graph it belongs to. Graph is DefaultGraph for
// triples in the store's default graph.
type Quad struct {
	Triple
	Graph Node
}

// NewQuad creates a quad. A zero graph is normalized to DefaultGraph.
func NewQuad(subject, predicate, object, graph Node) Quad {
	if graph.IsZero() {
		graph = DefaultGraph
	}
	return Quad{Triple: NewTriple(subject, predicate, object), Graph: graph}
}

// NQuads returns the quad as one N-Quads line without the trailing newline.
func (q Quad) NQuads() string {
	if q.Graph.IsZero() || q.Graph.IsDefaultGraph() {
		return q.Triple.String()
	}
	return fmt.Sprintf("%s %s %s %s .", q.Subject, q.Predicate, q.Object, q.Graph)
}

// String returns the N-Quads form.
func (q Quad) String() string { return q.NQuads() }

// Package solution implements the binding sets that flow between query
// stages: one Solution per result row, mapping variable names to terms.
package solution

import (
	"iter"
	"maps"
	"slices"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/coolbeans/quarry/pkg/rdf"
)

// Solution maps variable names to bound terms.
//
// A Solution is immutable once constructed: Extend, Merge and Project return
// new values and never touch the receiver, so a solution handed to several
// consumers can be shared freely. The zero value is the empty solution.
type Solution struct {
	bindings map[string]rdf.Node
}

// Empty returns the solution with no bindings.
func Empty() Solution { return Solution{} }

// From builds a solution from a map. The map is copied; zero and variable
// nodes are skipped since they can never be bound values.
func From(bindings map[string]rdf.Node) Solution {
	out := make(map[string]rdf.Node, len(bindings))
	for name, node := range bindings {
		if node.IsZero() || node.IsVariable() {
			continue
		}
		out[name] = node
	}
	return Solution{bindings: out}
}

// Of is a test-friendly constructor taking name/node pairs.
func Of(pairs ...any) Solution {
	m := make(map[string]rdf.Node, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		name, _ := pairs[i].(string)
		node, _ := pairs[i+1].(rdf.Node)
		m[strings.TrimLeft(name, "?$")] = node
	}
	return From(m)
}

// Get returns the term bound to name.
func (s Solution) Get(name string) (rdf.Node, bool) {
	n, ok := s.bindings[name]
	return n, ok
}

// Value returns the term bound to name or the zero Node.
func (s Solution) Value(name string) rdf.Node {
	return s.bindings[name]
}

// Has reports whether name is bound.
func (s Solution) Has(name string) bool {
	_, ok := s.bindings[name]
	return ok
}

// Len returns the number of bound variables.
func (s Solution) Len() int { return len(s.bindings) }

// IsEmpty reports whether no variable is bound.
func (s Solution) IsEmpty() bool { return len(s.bindings) == 0 }

// Variables returns the bound variable names in sorted order.
func (s Solution) Variables() []string {
	return slices.Sorted(maps.Keys(s.bindings))
}

// All iterates bindings in sorted variable order.
func (s Solution) All() iter.Seq2[string, rdf.Node] {
	return func(yield func(string, rdf.Node) bool) {
		for _, name := range s.Variables() {
			if !yield(name, s.bindings[name]) {
				return
			}
		}
	}
}

// Extend returns a copy of s with name bound to node. If name is already
// bound the receiver is returned unchanged.
func (s Solution) Extend(name string, node rdf.Node) Solution {
	if s.Has(name) || node.IsZero() || node.IsVariable() {
		return s
	}
	out := make(map[string]rdf.Node, len(s.bindings)+1)
	maps.Copy(out, s.bindings)
	out[name] = node
	return Solution{bindings: out}
}

// ExtendAll returns a copy of s with every binding in add that s does not
// already bind.
func (s Solution) ExtendAll(add map[string]rdf.Node) Solution {
	if len(add) == 0 {
		return s
	}
	out := make(map[string]rdf.Node, len(s.bindings)+len(add))
	maps.Copy(out, s.bindings)
	for name, node := range add {
		if _, ok := out[name]; ok || node.IsZero() || node.IsVariable() {
			continue
		}
		out[name] = node
	}
	return Solution{bindings: out}
}

// Compatible reports whether every variable bound in both solutions is bound
// to the same term.
func (s Solution) Compatible(other Solution) bool {
	small, large := s, other
	if small.Len() > large.Len() {
		small, large = large, small
	}
	for name, node := range small.bindings {
		if v, ok := large.bindings[name]; ok && v != node {
			return false
		}
	}
	return true
}

// Merge returns the union of two compatible solutions. ok is false when they
// disagree on a shared variable.
func (s Solution) Merge(other Solution) (merged Solution, ok bool) {
	if !s.Compatible(other) {
		return Solution{}, false
	}
	if other.IsEmpty() {
		return s, true
	}
	if s.IsEmpty() {
		return other, true
	}
	return s.ExtendAll(other.bindings), true
}

// SharesVariable reports whether the two solutions bind at least one common
// variable.
func (s Solution) SharesVariable(other Solution) bool {
	for name := range s.bindings {
		if other.Has(name) {
			return true
		}
	}
	return false
}

// Project keeps only the named variables.
func (s Solution) Project(names []string) Solution {
	out := make(map[string]rdf.Node, len(names))
	for _, name := range names {
		if v, ok := s.bindings[name]; ok {
			out[name] = v
		}
	}
	return Solution{bindings: out}
}

// Equal reports whether both solutions bind exactly the same variables to
// equal terms.
func (s Solution) Equal(other Solution) bool {
	if len(s.bindings) != len(other.bindings) {
		return false
	}
	for name, node := range s.bindings {
		if v, ok := other.bindings[name]; !ok || v != node {
			return false
		}
	}
	return true
}

// Hash returns an order-independent hash consistent with Equal.
func (s Solution) Hash() uint64 {
	var h uint64
	for name, node := range s.bindings {
		h += bindingHash(name, node)
	}
	return h
}

func bindingHash(name string, node rdf.Node) uint64 {
	nh := xxhash.Sum64String(name)
	return (nh*0x9E3779B97F4A7C15 ^ node.Hash()) * 0xBF58476D1CE4E5B9
}

// String renders the solution with sorted variables.
func (s Solution) String() string {
	var sb strings.Builder
	sb.WriteString("{")
	first := true
	for name, node := range s.All() {
		if !first {
			sb.WriteString(", ")
		}
		first = false
		sb.WriteString("?")
		sb.WriteString(name)
		sb.WriteString("=")
		sb.WriteString(node.String())
	}
	sb.WriteString("}")
	return sb.String()
}

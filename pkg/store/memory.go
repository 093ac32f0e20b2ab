package store

import (
	"fmt"
	"iter"
	"sync"

	"github.com/coolbeans/quarry/pkg/errors"
	"github.com/coolbeans/quarry/pkg/rdf"
)

type nodeSet map[rdf.Node]struct{}

// graphIndex holds the three permutation indexes for one graph:
//   - SPO: Subject -> Predicate -> Object (find facts about a subject)
//   - POS: Predicate -> Object -> Subject (find subjects with property=value)
//   - OSP: Object -> Subject -> Predicate (find subjects pointing to object)
type graphIndex struct {
	spo   map[rdf.Node]map[rdf.Node]nodeSet
	pos   map[rdf.Node]map[rdf.Node]nodeSet
	osp   map[rdf.Node]map[rdf.Node]nodeSet
	count int
}

func newGraphIndex() *graphIndex {
	return &graphIndex{
		spo: make(map[rdf.Node]map[rdf.Node]nodeSet),
		pos: make(map[rdf.Node]map[rdf.Node]nodeSet),
		osp: make(map[rdf.Node]map[rdf.Node]nodeSet),
	}
}

// MemoryStore is an in-memory quad store with per-graph indexes.
type MemoryStore struct {
	mu sync.RWMutex

	graphs map[rdf.Node]*graphIndex
	// order of first appearance, for deterministic GraphNames
	graphOrder []rdf.Node

	count int

	// Statistics for query optimization
	predicateCounts map[rdf.Node]int
	subjectCounts   map[rdf.Node]int
	objectCounts    map[rdf.Node]int

	listeners []Listener
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		graphs:          make(map[rdf.Node]*graphIndex),
		predicateCounts: make(map[rdf.Node]int),
		subjectCounts:   make(map[rdf.Node]int),
		objectCounts:    make(map[rdf.Node]int),
	}
}

// AddListener registers l for assert/retract notifications.
func (ms *MemoryStore) AddListener(l Listener) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.listeners = append(ms.listeners, l)
}

// Assert inserts a quad. Asserting an existing quad is a no-op.
func (ms *MemoryStore) Assert(q rdf.Quad) error {
	if !validQuad(q) {
		return errors.Newf("invalid quad: %s", q)
	}
	if q.Graph.IsZero() {
		q.Graph = rdf.DefaultGraph
	}

	ms.mu.Lock()
	added := ms.assertUnsafe(q)
	listeners := ms.listeners
	ms.mu.Unlock()

	if added {
		for _, l := range listeners {
			l.OnAssert(q)
		}
	}
	return nil
}

// Add is a convenience wrapper asserting a triple into graph.
func (ms *MemoryStore) Add(graph, subject, predicate, object rdf.Node) error {
	return ms.Assert(rdf.NewQuad(subject, predicate, object, graph))
}

// BulkAdd inserts multiple quads holding the write lock once.
// Invalid quads are skipped.
func (ms *MemoryStore) BulkAdd(quads []rdf.Quad) int {
	ms.mu.Lock()
	var added []rdf.Quad
	for _, q := range quads {
		if !validQuad(q) {
			continue
		}
		if q.Graph.IsZero() {
			q.Graph = rdf.DefaultGraph
		}
		if ms.assertUnsafe(q) {
			added = append(added, q)
		}
	}
	listeners := ms.listeners
	ms.mu.Unlock()

	for _, q := range added {
		for _, l := range listeners {
			l.OnAssert(q)
		}
	}
	return len(added)
}

// Retract removes a quad. Retracting a missing quad is a no-op.
func (ms *MemoryStore) Retract(q rdf.Quad) error {
	if q.Graph.IsZero() {
		q.Graph = rdf.DefaultGraph
	}

	ms.mu.Lock()
	removed := ms.retractUnsafe(q)
	listeners := ms.listeners
	ms.mu.Unlock()

	if removed {
		for _, l := range listeners {
			l.OnRetract(q)
		}
	}
	return nil
}

// Find implements QuadStore. Matches are collected under the read lock, so
// the sequence reflects the store at the time iteration starts.
func (ms *MemoryStore) Find(graph, subject, predicate, object rdf.Node) iter.Seq2[rdf.Quad, error] {
	return func(yield func(rdf.Quad, error) bool) {
		ms.mu.RLock()
		var results []rdf.Quad
		if graph.IsZero() {
			for _, g := range ms.graphOrder {
				results = ms.graphs[g].find(g, subject, predicate, object, results)
			}
		} else if idx, ok := ms.graphs[graph]; ok {
			results = idx.find(graph, subject, predicate, object, results)
		}
		ms.mu.RUnlock()

		for _, q := range results {
			if !yield(q, nil) {
				return
			}
		}
	}
}

// GraphNames implements QuadStore. The default graph is not listed.
func (ms *MemoryStore) GraphNames() iter.Seq2[rdf.Node, error] {
	return func(yield func(rdf.Node, error) bool) {
		ms.mu.RLock()
		names := make([]rdf.Node, 0, len(ms.graphOrder))
		for _, g := range ms.graphOrder {
			if !g.IsDefaultGraph() {
				names = append(names, g)
			}
		}
		ms.mu.RUnlock()

		for _, g := range names {
			if !yield(g, nil) {
				return
			}
		}
	}
}

// Exists checks if a specific quad exists in the store.
func (ms *MemoryStore) Exists(q rdf.Quad) bool {
	if q.Graph.IsZero() {
		q.Graph = rdf.DefaultGraph
	}
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	idx, ok := ms.graphs[q.Graph]
	return ok && idx.exists(q.Subject, q.Predicate, q.Object)
}

// Count returns the total number of quads in the store.
func (ms *MemoryStore) Count() int {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	return ms.count
}

// Clear removes all quads. Listeners are not notified.
func (ms *MemoryStore) Clear() {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	ms.graphs = make(map[rdf.Node]*graphIndex)
	ms.graphOrder = nil
	ms.count = 0
	ms.predicateCounts = make(map[rdf.Node]int)
	ms.subjectCounts = make(map[rdf.Node]int)
	ms.objectCounts = make(map[rdf.Node]int)
}

// Stats returns statistics about the store for query optimization.
func (ms *MemoryStore) Stats() IndexStats {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	stats := IndexStats{
		TotalQuads:       ms.count,
		UniqueSubjects:   len(ms.subjectCounts),
		UniquePredicates: len(ms.predicateCounts),
		UniqueObjects:    len(ms.objectCounts),
		PredicateCounts:  make(map[string]int, len(ms.predicateCounts)),
		SubjectCounts:    make(map[string]int, len(ms.subjectCounts)),
		ObjectCounts:     make(map[string]int, len(ms.objectCounts)),
	}
	for _, g := range ms.graphOrder {
		if !g.IsDefaultGraph() {
			stats.Graphs++
		}
	}
	for k, v := range ms.predicateCounts {
		stats.PredicateCounts[k.String()] = v
	}
	for k, v := range ms.subjectCounts {
		stats.SubjectCounts[k.String()] = v
	}
	for k, v := range ms.objectCounts {
		stats.ObjectCounts[k.String()] = v
	}
	return stats
}

// String returns a string representation of the store statistics.
func (ms *MemoryStore) String() string {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	return fmt.Sprintf("MemoryStore{quads: %d, graphs: %d, subjects: %d, predicates: %d}",
		ms.count, len(ms.graphs), len(ms.subjectCounts), len(ms.predicateCounts))
}

func (ms *MemoryStore) assertUnsafe(q rdf.Quad) bool {
	idx, ok := ms.graphs[q.Graph]
	if !ok {
		idx = newGraphIndex()
		ms.graphs[q.Graph] = idx
		ms.graphOrder = append(ms.graphOrder, q.Graph)
	}
	if !idx.add(q.Subject, q.Predicate, q.Object) {
		return false
	}
	ms.predicateCounts[q.Predicate]++
	ms.subjectCounts[q.Subject]++
	ms.objectCounts[q.Object]++
	ms.count++
	return true
}

func (ms *MemoryStore) retractUnsafe(q rdf.Quad) bool {
	idx, ok := ms.graphs[q.Graph]
	if !ok || !idx.remove(q.Subject, q.Predicate, q.Object) {
		return false
	}
	decrement(ms.predicateCounts, q.Predicate)
	decrement(ms.subjectCounts, q.Subject)
	decrement(ms.objectCounts, q.Object)
	ms.count--

	if idx.count == 0 {
		delete(ms.graphs, q.Graph)
		for i, g := range ms.graphOrder {
			if g == q.Graph {
				ms.graphOrder = append(ms.graphOrder[:i], ms.graphOrder[i+1:]...)
				break
			}
		}
	}
	return true
}

func decrement(counts map[rdf.Node]int, key rdf.Node) {
	counts[key]--
	if counts[key] <= 0 {
		delete(counts, key)
	}
}

func insert(index map[rdf.Node]map[rdf.Node]nodeSet, a, b, c rdf.Node) {
	if index[a] == nil {
		index[a] = make(map[rdf.Node]nodeSet)
	}
	if index[a][b] == nil {
		index[a][b] = make(nodeSet)
	}
	index[a][b][c] = struct{}{}
}

func erase(index map[rdf.Node]map[rdf.Node]nodeSet, a, b, c rdf.Node) {
	if bMap, ok := index[a]; ok {
		if cSet, ok := bMap[b]; ok {
			delete(cSet, c)
			if len(cSet) == 0 {
				delete(bMap, b)
			}
		}
		if len(bMap) == 0 {
			delete(index, a)
		}
	}
}

func (g *graphIndex) exists(s, p, o rdf.Node) bool {
	if pMap, ok := g.spo[s]; ok {
		if oSet, ok := pMap[p]; ok {
			_, found := oSet[o]
			return found
		}
	}
	return false
}

func (g *graphIndex) add(s, p, o rdf.Node) bool {
	if g.exists(s, p, o) {
		return false
	}
	insert(g.spo, s, p, o)
	insert(g.pos, p, o, s)
	insert(g.osp, o, s, p)
	g.count++
	return true
}

func (g *graphIndex) remove(s, p, o rdf.Node) bool {
	if !g.exists(s, p, o) {
		return false
	}
	erase(g.spo, s, p, o)
	erase(g.pos, p, o, s)
	erase(g.osp, o, s, p)
	g.count--
	return true
}

// find appends matches to results using the most specific index.
func (g *graphIndex) find(graph, subject, predicate, object rdf.Node, results []rdf.Quad) []rdf.Quad {
	emit := func(s, p, o rdf.Node) {
		results = append(results, rdf.Quad{Triple: rdf.NewTriple(s, p, o), Graph: graph})
	}

	switch {
	case !subject.IsZero():
		pMap, ok := g.spo[subject]
		if !ok {
			return results
		}
		if !predicate.IsZero() {
			oSet, ok := pMap[predicate]
			if !ok {
				return results
			}
			if !object.IsZero() {
				if _, ok := oSet[object]; ok {
					emit(subject, predicate, object)
				}
				return results
			}
			for o := range oSet {
				emit(subject, predicate, o)
			}
			return results
		}
		for p, oSet := range pMap {
			if !object.IsZero() {
				if _, ok := oSet[object]; ok {
					emit(subject, p, object)
				}
				continue
			}
			for o := range oSet {
				emit(subject, p, o)
			}
		}
	case !predicate.IsZero():
		oMap, ok := g.pos[predicate]
		if !ok {
			return results
		}
		if !object.IsZero() {
			for s := range oMap[object] {
				emit(s, predicate, object)
			}
			return results
		}
		for o, sSet := range oMap {
			for s := range sSet {
				emit(s, predicate, o)
			}
		}
	case !object.IsZero():
		for s, pSet := range g.osp[object] {
			for p := range pSet {
				emit(s, p, object)
			}
		}
	default:
		for s, pMap := range g.spo {
			for p, oSet := range pMap {
				for o := range oSet {
					emit(s, p, o)
				}
			}
		}
	}
	return results
}

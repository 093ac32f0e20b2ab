// Package dataset loads RDF documents into quad stores.
//
// A dataset is either a single N-Triples/N-Quads file or a YAML manifest
// naming the files for the default graph and each named graph. Blank nodes
// are scoped per document: two files that both use _:b0 describe two
// different nodes. A Watcher keeps a store in sync with the files on disk.
package dataset

import (
	"bufio"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/coolbeans/quarry/pkg/errors"
	"github.com/coolbeans/quarry/pkg/rdf"
	"github.com/coolbeans/quarry/pkg/store"
)

// Source is one document and the graph its triples are loaded into.
type Source struct {
	Path  string
	Graph rdf.Node // rdf.DefaultGraph or a named graph IRI
}

// NewScope returns a fresh blank-node scope.
func NewScope() string {
	return uuid.NewString()
}

// Parse reads N-Triples or N-Quads from r. Triples without a graph term go
// to graph; statements naming their own graph keep it. Blank node labels
// are suffixed with scope so that documents never share blank nodes.
func Parse(r io.Reader, graph rdf.Node, scope string) ([]rdf.Quad, error) {
	if graph.IsZero() {
		graph = rdf.DefaultGraph
	}

	var quads []rdf.Quad
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		q, ok, err := rdf.ParseNQuad(scanner.Text())
		if err != nil {
			return nil, errors.Wrapf(err, "line %d", lineNo)
		}
		if !ok {
			continue
		}
		if q.Graph.IsDefaultGraph() {
			q.Graph = graph
		}
		quads = append(quads, scoped(q, scope))
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "read statements")
	}
	return quads, nil
}

func scoped(q rdf.Quad, scope string) rdf.Quad {
	if scope == "" {
		return q
	}
	relabel := func(n rdf.Node) rdf.Node {
		if n.IsBlank() {
			return rdf.NewBlank(n.Value() + "-" + scope)
		}
		return n
	}
	return rdf.NewQuad(relabel(q.Subject), q.Predicate, relabel(q.Object), relabel(q.Graph))
}

// ParseFile parses the document at src.Path with a fresh blank-node scope.
func ParseFile(src Source, scope string) ([]rdf.Quad, error) {
	f, err := os.Open(src.Path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", src.Path)
	}
	defer f.Close()

	quads, err := Parse(f, src.Graph, scope)
	if err != nil {
		return nil, errors.Wrapf(err, "parse %s", src.Path)
	}
	return quads, nil
}

// Resolve returns the sources named by path: the entries of a manifest for
// .yaml/.yml files, otherwise the file itself loaded into the default graph.
func Resolve(path string) ([]Source, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		m, err := LoadManifest(path)
		if err != nil {
			return nil, err
		}
		return m.Sources(), nil
	default:
		return []Source{{Path: path, Graph: rdf.DefaultGraph}}, nil
	}
}

// Load parses every source and asserts its quads into w. It returns the
// number of statements read.
func Load(w store.Writer, sources []Source) (int, error) {
	total := 0
	for _, src := range sources {
		quads, err := ParseFile(src, NewScope())
		if err != nil {
			return total, err
		}
		if err := store.AssertAll(w, quads); err != nil {
			return total, errors.Wrapf(err, "load %s", src.Path)
		}
		total += len(quads)
	}
	return total, nil
}

// Open resolves path and loads it into a new in-memory store.
func Open(path string) (*store.MemoryStore, int, error) {
	sources, err := Resolve(path)
	if err != nil {
		return nil, 0, err
	}
	ms := store.NewMemoryStore()
	n, err := Load(ms, sources)
	if err != nil {
		return nil, 0, err
	}
	return ms, n, nil
}

package store

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coolbeans/quarry/pkg/rdf"
)

func exportFixture(t *testing.T) *MemoryStore {
	t.Helper()
	ms := NewMemoryStore()
	mustAdd(t, ms, rdf.DefaultGraph, ex("alice"), rdf.NewIRI(rdf.RDFType), ex("Person"))
	mustAdd(t, ms, rdf.DefaultGraph, ex("alice"), rdf.NewIRI(rdfsLabel), rdf.NewLiteral("Alice A."))
	mustAdd(t, ms, rdf.DefaultGraph, ex("alice"), ex("age"), rdf.NewInteger(30))
	mustAdd(t, ms, rdf.DefaultGraph, ex("alice"), ex("knows"), ex("bob"))
	mustAdd(t, ms, ex("g1"), ex("bob"), ex("knows"), rdf.NewBlank("x"))
	return ms
}

func TestExportGraph(t *testing.T) {
	g, err := ExportGraph(exportFixture(t))
	require.NoError(t, err)

	require.Len(t, g.Nodes, 3)
	assert.Equal(t, "_:x", g.Nodes[0].ID)
	assert.Equal(t, "http://example.org/alice", g.Nodes[1].ID)
	assert.Equal(t, "http://example.org/bob", g.Nodes[2].ID)

	alice := g.Nodes[1]
	assert.Equal(t, "Alice A.", alice.Label)
	assert.Equal(t, "Person", alice.Type)
	assert.Equal(t, map[string]string{"age": "30"}, alice.Metadata)

	bob := g.Nodes[2]
	assert.Equal(t, "bob", bob.Label)
	assert.Equal(t, "Node", bob.Type)
	assert.Nil(t, bob.Metadata)

	require.Len(t, g.Edges, 2)
	assert.Equal(t, GraphEdge{
		Source: "http://example.org/alice",
		Target: "http://example.org/bob",
		Label:  "knows",
		Type:   "http://example.org/knows",
	}, g.Edges[0])
	assert.Equal(t, "http://example.org/g1", g.Edges[1].Graph)

	assert.Equal(t, 3, g.Stats.TotalNodes)
	assert.Equal(t, 2, g.Stats.TotalEdges)
	assert.Equal(t, 2, g.Stats.EdgesByType["http://example.org/knows"])
	assert.Equal(t, 1, g.Stats.NodesByType["Person"])
}

func TestGraphExport_ToJSON(t *testing.T) {
	g, err := ExportGraph(exportFixture(t))
	require.NoError(t, err)

	data, err := g.ToJSON()
	require.NoError(t, err)

	var decoded GraphExport
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, g.Stats.TotalEdges, decoded.Stats.TotalEdges)
	assert.Len(t, decoded.Nodes, 3)
}

func TestGraphExport_ToDOT(t *testing.T) {
	g, err := ExportGraph(exportFixture(t))
	require.NoError(t, err)

	dot := g.ToDOT()
	assert.True(t, strings.HasPrefix(dot, "digraph Dataset {\n"))
	assert.Contains(t, dot, `"http://example.org/alice" [label="Alice A." style=filled fillcolor=lightblue];`)
	assert.Contains(t, dot, `"http://example.org/bob" [label="bob" style=filled fillcolor=white];`)
	assert.Contains(t, dot, `"http://example.org/bob" -> "_:x" [label="knows"];`)
	assert.True(t, strings.HasSuffix(dot, "}\n"))
}

func TestExtractURILabel(t *testing.T) {
	assert.Equal(t, "type", extractURILabel(rdf.RDFType))
	assert.Equal(t, "alice", extractURILabel("http://example.org/alice"))
	assert.Equal(t, "123", extractURILabel("urn:isbn:123"))
}

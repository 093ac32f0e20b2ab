package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/coolbeans/quarry/pkg/logging"
	"github.com/coolbeans/quarry/pkg/rdf"
)

func openTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "quads.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteStore_AssertAndFind(t *testing.T) {
	s := openTestSQLite(t)
	ms := NewMemoryStore()
	populateTestStore(t, ms)

	quads := findAll(t, ms, rdf.Node{}, rdf.Node{}, rdf.Node{}, rdf.Node{})
	n, err := s.BulkAdd(context.Background(), quads)
	require.NoError(t, err)
	assert.Equal(t, 6, n)

	count, err := s.Count()
	require.NoError(t, err)
	assert.Equal(t, 6, count)

	assert.Len(t, findAll(t, s, rdf.DefaultGraph, rdf.Node{}, rdf.Node{}, rdf.Node{}), 4)
	assert.Len(t, findAll(t, s, rdf.Node{}, rdf.Node{}, pType, rdf.Node{}), 3)

	titles := findAll(t, s, graphA, rdf.Node{}, pTitle, rdf.Node{})
	require.Len(t, titles, 1)
	assert.Equal(t, rdf.NewLangLiteral("Scope", "en"), titles[0].Object)
	assert.Equal(t, graphA, titles[0].Graph)
}

func TestSQLiteStore_RetractAndListeners(t *testing.T) {
	s := openTestSQLite(t)
	var events []string
	s.AddListener(ListenerFuncs{
		Assert:  func(q rdf.Quad) { events = append(events, "+"+q.Object.Value()) },
		Retract: func(q rdf.Quad) { events = append(events, "-"+q.Object.Value()) },
	})

	q := rdf.NewQuad(iri("s"), iri("p"), rdf.NewInteger(7), rdf.DefaultGraph)
	require.NoError(t, s.Assert(q))
	require.NoError(t, s.Assert(q))
	require.NoError(t, s.Retract(q))
	require.NoError(t, s.Retract(q))

	assert.Equal(t, []string{"+7", "-7"}, events)
	assert.Empty(t, findAll(t, s, rdf.Node{}, rdf.Node{}, rdf.Node{}, rdf.Node{}))
}

func TestSQLiteStore_NestedFind(t *testing.T) {
	s := openTestSQLite(t)
	require.NoError(t, AssertAll(s, []rdf.Quad{
		rdf.NewQuad(iri("a"), pRefs, iri("b"), rdf.DefaultGraph),
		rdf.NewQuad(iri("b"), pRefs, iri("c"), rdf.DefaultGraph),
	}))

	var paths int
	for outer, err := range s.Find(rdf.Node{}, rdf.Node{}, pRefs, rdf.Node{}) {
		require.NoError(t, err)
		for _, err := range s.Find(rdf.Node{}, outer.Object, pRefs, rdf.Node{}) {
			require.NoError(t, err)
			paths++
		}
	}
	assert.Equal(t, 1, paths)
}

func TestSQLiteStore_GraphNamesAndStats(t *testing.T) {
	s := openTestSQLite(t)
	ms := NewMemoryStore()
	populateTestStore(t, ms)
	require.NoError(t, AssertAll(s, findAll(t, ms, rdf.Node{}, rdf.Node{}, rdf.Node{}, rdf.Node{})))

	var names []rdf.Node
	for g, err := range s.GraphNames() {
		require.NoError(t, err)
		names = append(names, g)
	}
	assert.ElementsMatch(t, []rdf.Node{graphA, graphB}, names)

	stats := s.Stats()
	assert.Equal(t, 6, stats.TotalQuads)
	assert.Equal(t, 2, stats.Graphs)
	assert.Equal(t, 3, stats.PredicateCounts[pType.String()])
}

func TestSQLiteStore_StatsReportsDatabaseErrors(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "quads.db"), WithSQLiteLogger(zap.New(core).Sugar()))
	require.NoError(t, err)
	require.NoError(t, s.Assert(rdf.NewQuad(ex("alice"), rdf.NewIRI(rdf.RDFType), ex("Person"), rdf.DefaultGraph)))

	stats, err := s.ReadStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalQuads)

	require.NoError(t, s.Close())

	_, err = s.ReadStats(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read quad totals")

	stats = s.Stats()
	assert.Zero(t, stats.TotalQuads)
	assert.Empty(t, stats.PredicateCounts)

	entries := logs.FilterMessage("index statistics unavailable, planning without them").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "sqlite", entries[0].ContextMap()[logging.FieldBackend])
}

package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coolbeans/quarry/pkg/algebra"
	"github.com/coolbeans/quarry/pkg/engine"
	"github.com/coolbeans/quarry/pkg/errors"
	"github.com/coolbeans/quarry/pkg/query"
	"github.com/coolbeans/quarry/pkg/rdf"
	"github.com/coolbeans/quarry/pkg/store"
)

func TestObserver_Events(t *testing.T) {
	reg := prometheus.NewRegistry()
	o := NewObserver(reg)

	o.StrategySelected(engine.StrategyHash, engine.InnerJoin, nil, nil)
	o.StrategySelected(engine.StrategyHash, engine.InnerJoin, nil, nil)
	o.StrategySelected(engine.StrategyNestedLoop, engine.LeftOuterJoin, nil, nil)
	o.RowDropped(engine.StageFilter, "(> ?x 1)", errors.New("unbound"))
	o.GroupsEmitted(3)
	o.QueryFinished(algebra.FormSelect, 10, time.Millisecond, nil)
	o.QueryFinished(algebra.FormAsk, 0, time.Millisecond, errors.New("boom"))

	assert.Equal(t, 2.0, testutil.ToFloat64(o.JoinsTotal.WithLabelValues("hash", "inner")))
	assert.Equal(t, 1.0, testutil.ToFloat64(o.JoinsTotal.WithLabelValues("nested_loop", "left")))
	assert.Equal(t, 1.0, testutil.ToFloat64(o.RowsDroppedTotal.WithLabelValues("filter")))
	assert.Equal(t, 1.0, testutil.ToFloat64(o.QueriesTotal.WithLabelValues("SELECT", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(o.QueriesTotal.WithLabelValues("ASK", "error")))

	assert.Equal(t, 1, testutil.CollectAndCount(o.Groups))
	assert.Equal(t, 2, testutil.CollectAndCount(o.QueryDuration))
	assert.Equal(t, 1, testutil.CollectAndCount(o.QueryRows), "failed queries record no row count")
}

func TestObserver_RegistersOnce(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewObserver(reg)
	assert.Panics(t, func() { NewObserver(reg) }, "duplicate registration")
}

func TestObserver_WiredIntoExecutor(t *testing.T) {
	ms := store.NewMemoryStore()
	ex := func(l string) rdf.Node { return rdf.NewIRI("http://example.org/" + l) }
	require.NoError(t, ms.Add(rdf.DefaultGraph, ex("alice"), ex("knows"), ex("bob")))
	require.NoError(t, ms.Add(rdf.DefaultGraph, ex("bob"), ex("knows"), ex("carol")))

	reg := prometheus.NewRegistry()
	o := NewObserver(reg)
	executor := query.NewExecutor(ms, query.WithEngineOptions(engine.WithObserver(o)))

	result, err := executor.ExecuteString(`SELECT ?a WHERE { ?a <http://example.org/knows> ?b FILTER(?missing > 1) }`)
	require.NoError(t, err)
	assert.Zero(t, result.Count)

	assert.Equal(t, 2.0, testutil.ToFloat64(o.RowsDroppedTotal.WithLabelValues("filter")))
	assert.Equal(t, 1.0, testutil.ToFloat64(o.QueriesTotal.WithLabelValues("SELECT", "ok")))
}

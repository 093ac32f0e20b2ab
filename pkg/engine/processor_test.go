package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coolbeans/quarry/pkg/algebra"
	"github.com/coolbeans/quarry/pkg/errors"
	"github.com/coolbeans/quarry/pkg/rdf"
	"github.com/coolbeans/quarry/pkg/solution"
)

func TestProcessor_Ask(t *testing.T) {
	p := NewProcessor(exampleStore(t))

	tests := []struct {
		name    string
		pattern rdf.Triple
		want    bool
	}{
		{"match", tp(v("s"), exP, exO1), true},
		{"no match", tp(exO1, exP, v("o")), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := p.Execute(context.Background(), &algebra.Query{Form: algebra.FormAsk, Algebra: algebra.NewBGP(tt.pattern)})
			require.NoError(t, err)
			assert.Equal(t, algebra.FormAsk, res.Form)
			assert.Equal(t, tt.want, res.Boolean)
			assert.Empty(t, drain(t, res.Solutions()))
		})
	}
}

func TestProcessor_Select(t *testing.T) {
	rec := &recorder{}
	p := NewProcessor(exampleStore(t), WithObserver(rec))
	q := &algebra.Query{
		Form:      algebra.FormSelect,
		Algebra:   &algebra.Project{Input: algebra.NewBGP(tp(exS, exP, v("o"))), Vars: []string{"o"}},
		Variables: []string{"o"},
	}

	res, err := p.Execute(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, []string{"o"}, res.Variables)
	assert.Empty(t, rec.finished, "nothing runs before the rows are pulled")

	rows, err := res.Collect()
	require.NoError(t, err)
	assertSameSolutions(t, []solution.Solution{
		solution.Of("o", exO1),
		solution.Of("o", lTest),
		solution.Of("o", blankB),
	}, rows)
	assert.Equal(t, []int{3}, rec.finished)
	assert.Equal(t, []error{nil}, rec.finishErr)
}

func TestProcessor_SelectHonoursCancellation(t *testing.T) {
	p := NewProcessor(exampleStore(t))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	res, err := p.Execute(ctx, &algebra.Query{Form: algebra.FormSelect, Algebra: spo})
	require.NoError(t, err)

	n := 0
	var last error
	for _, err := range res.Solutions() {
		if err != nil {
			last = err
			break
		}
		n++
		cancel()
	}
	assert.Equal(t, 1, n)
	assert.ErrorIs(t, last, context.Canceled)
}

func TestProcessor_UnsupportedForms(t *testing.T) {
	rec := &recorder{}
	fs := &failingStore{}
	p := NewProcessor(fs, WithObserver(rec))

	for _, form := range []algebra.QueryForm{algebra.FormConstruct, algebra.FormDescribe} {
		t.Run(form.String(), func(t *testing.T) {
			res, err := p.Execute(context.Background(), &algebra.Query{Form: form, Algebra: spo})
			require.Error(t, err)
			assert.Nil(t, res)
			assert.True(t, errors.Is(err, errors.ErrNotSupported))

			var se *StageError
			require.True(t, errors.As(err, &se))
			assert.Equal(t, StageQuery, se.Stage)
			assert.Equal(t, form.String(), se.Subject)
		})
	}
	assert.Zero(t, fs.finds)
	assert.Len(t, rec.finishErr, 2)
}

func TestProcessor_ConfigurationErrorBeforeEvaluation(t *testing.T) {
	fs := &failingStore{}
	p := NewProcessor(fs)

	_, err := p.Execute(context.Background(), &algebra.Query{
		Form:    algebra.FormSelect,
		Algebra: &algebra.Group{Input: spo},
	})
	require.Error(t, err)
	assert.True(t, errors.IsInvalidConfiguration(err))
	assert.Zero(t, fs.finds)
}

func TestProcessor_DatasetScoping(t *testing.T) {
	p := NewProcessor(namedStore(t))
	q := &algebra.Query{
		Form:    algebra.FormSelect,
		Algebra: algebra.NewBGP(tp(v("x"), exP, v("y"))),
		Dataset: &algebra.Dataset{Default: []rdf.Node{graphA}},
	}

	res, err := p.Execute(context.Background(), q)
	require.NoError(t, err)
	rows, err := res.Collect()
	require.NoError(t, err)
	assertSameSolutions(t, []solution.Solution{solution.Of("x", iri("a"), "y", iri("b"))}, rows)
}

func TestProcessor_StoreErrorReachesCaller(t *testing.T) {
	rec := &recorder{}
	p := NewProcessor(&failingStore{}, WithObserver(rec))

	res, err := p.Execute(context.Background(), &algebra.Query{Form: algebra.FormSelect, Algebra: spo})
	require.NoError(t, err)
	_, err = res.Collect()
	require.Error(t, err)
	assert.True(t, errors.Is(err, errBackend))
	require.Len(t, rec.finishErr, 1)
	assert.Error(t, rec.finishErr[0])

	_, err = p.Execute(context.Background(), &algebra.Query{Form: algebra.FormAsk, Algebra: spo})
	assert.True(t, errors.Is(err, errBackend))
}

package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coolbeans/quarry/pkg/algebra"
	"github.com/coolbeans/quarry/pkg/errors"
	"github.com/coolbeans/quarry/pkg/rdf"
)

func compile(t *testing.T, text string) *algebra.Query {
	t.Helper()
	q, err := ParseQuery(text)
	require.NoError(t, err)
	compiled, err := Compile(q)
	require.NoError(t, err)
	return compiled
}

func intLit(n string) string { return `"` + n + `"^^<` + rdf.XSDInteger + `>` }

func TestCompile_Algebra(t *testing.T) {
	spo := "(bgp (triple ?s <http://e/p> ?o))"

	tests := []struct {
		name  string
		query string
		want  string
	}{
		{
			name:  "adjacent triples share one BGP",
			query: `SELECT ?s WHERE { ?s <http://e/p> ?o . ?o <http://e/q> ?x }`,
			want:  "(project (?s) (bgp (triple ?s <http://e/p> ?o) (triple ?o <http://e/q> ?x)))",
		},
		{
			name:  "filter applies to the whole group",
			query: `SELECT ?s WHERE { FILTER(?o = 1) ?s <http://e/p> ?o }`,
			want:  "(project (?s) (filter (= ?o " + intLit("1") + ") " + spo + "))",
		},
		{
			name:  "optional filter becomes the left join condition",
			query: `SELECT ?s WHERE { ?s <http://e/p> ?o OPTIONAL { ?o <http://e/q> ?x FILTER(?x > 1) } }`,
			want:  "(project (?s) (leftjoin " + spo + " (bgp (triple ?o <http://e/q> ?x)) (> ?x " + intLit("1") + ")))",
		},
		{
			name:  "union and minus",
			query: `SELECT ?s WHERE { { ?s <http://e/p> ?o } UNION { ?s <http://e/q> ?o } MINUS { ?s <http://e/r> ?o } }`,
			want:  "(project (?s) (minus (union " + spo + " (bgp (triple ?s <http://e/q> ?o))) (bgp (triple ?s <http://e/r> ?o))))",
		},
		{
			name:  "graph joined with the default graph",
			query: `SELECT ?s WHERE { ?s <http://e/p> ?o GRAPH ?g { ?o <http://e/q> ?x } }`,
			want:  "(project (?s) (join " + spo + " (graph ?g (bgp (triple ?o <http://e/q> ?x)))))",
		},
		{
			name:  "bind closes the basic graph pattern",
			query: `SELECT ?z WHERE { ?s <http://e/p> ?o BIND(?o AS ?y) ?y <http://e/q> ?z }`,
			want:  "(project (?z) (join (extend ((?y ?o)) " + spo + ") (bgp (triple ?y <http://e/q> ?z))))",
		},
		{
			name:  "empty group",
			query: `SELECT * WHERE { }`,
			want:  "(project () (bgp))",
		},
		{
			name:  "modifiers",
			query: `SELECT DISTINCT ?s WHERE { ?s <http://e/p> ?o } ORDER BY DESC(?o) OFFSET 2`,
			want:  "(slice 2 _ (distinct (project (?s) (order ((desc ?o)) " + spo + "))))",
		},
		{
			name:  "select expression",
			query: `SELECT ?s (STR(?o) AS ?label) WHERE { ?s <http://e/p> ?o } LIMIT 3`,
			want:  "(slice 0 3 (project (?s ?label) (extend ((?label STR(?o))) " + spo + ")))",
		},
		{
			name:  "grouping",
			query: `SELECT ?s (COUNT(*) AS ?n) WHERE { ?s <http://e/p> ?o } GROUP BY ?s HAVING (COUNT(*) > 1)`,
			want:  "(project (?s ?n) (filter (> ?n " + intLit("1") + ") (group ((?s ?s)) ((?n COUNT(*))) " + spo + ")))",
		},
		{
			name:  "ask",
			query: `ASK { ?s <http://e/p> ?o }`,
			want:  spo,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := compile(t, tt.query)
			assert.Equal(t, tt.want, got.Algebra.String())
		})
	}
}

func TestCompile_AggregateRewriting(t *testing.T) {
	q := compile(t, `
		SELECT ?dept (SUM(?age) * 2 AS ?double) (AVG(?age) AS ?avg)
		WHERE { ?p <http://e/dept> ?dept ; <http://e/age> ?age }
		GROUP BY ?dept
		HAVING (AVG(?age) > 20)
		ORDER BY ?double`)

	assert.Equal(t, []string{"dept", "double", "avg"}, q.Variables)

	project, ok := q.Algebra.(*algebra.Project)
	require.True(t, ok)
	order, ok := project.Input.(*algebra.OrderBy)
	require.True(t, ok)
	extend, ok := order.Input.(*algebra.Extend)
	require.True(t, ok)
	assert.Equal(t, "double", extend.Var)
	assert.Equal(t, "(* ?.agg0 "+intLit("2")+")", extend.Expr.String())

	having, ok := extend.Input.(*algebra.Filter)
	require.True(t, ok)
	assert.Equal(t, "(> ?avg "+intLit("20")+")", having.Expr.String(), "HAVING reuses the projected aggregate")

	group, ok := having.Input.(*algebra.Group)
	require.True(t, ok)
	require.Len(t, group.Aggregates, 2)
	assert.Equal(t, ".agg0", group.Aggregates[0].Var)
	assert.Equal(t, "avg", group.Aggregates[1].Var)
}

func TestCompile_Dataset(t *testing.T) {
	plain := compile(t, `SELECT ?s WHERE { ?s ?p ?o }`)
	assert.Nil(t, plain.Dataset)

	scoped := compile(t, `SELECT ?s FROM <http://e/g1> FROM NAMED <http://e/g2> WHERE { ?s ?p ?o }`)
	require.NotNil(t, scoped.Dataset)
	assert.Equal(t, []rdf.Node{rdf.NewIRI("http://e/g1")}, scoped.Dataset.Default)
	assert.Equal(t, []rdf.Node{rdf.NewIRI("http://e/g2")}, scoped.Dataset.Named)
}

func TestCompile_Forms(t *testing.T) {
	construct := compile(t, `CONSTRUCT { ?s <http://e/copy> ?o } WHERE { ?s ?p ?o }`)
	assert.Equal(t, algebra.FormConstruct, construct.Form)
	assert.Len(t, construct.Template, 1)

	describe := compile(t, `DESCRIBE <http://e/a>`)
	assert.Equal(t, algebra.FormDescribe, describe.Form)
	assert.Equal(t, []rdf.Node{rdf.NewIRI("http://e/a")}, describe.Describe)
	assert.Equal(t, "(bgp)", describe.Algebra.String())
}

func TestCompile_Errors(t *testing.T) {
	tests := []struct {
		name    string
		query   string
		wantErr string
	}{
		{"ungrouped projection", `SELECT ?p (COUNT(*) AS ?n) WHERE { ?p ?q ?o }`, "?p is neither grouped nor aggregated"},
		{"ungrouped expression", `SELECT (?o + 1 AS ?x) WHERE { ?p ?q ?o } GROUP BY ?p`, "?o in"},
		{"select star with grouping", `SELECT * WHERE { ?s ?p ?o } GROUP BY ?s`, "SELECT * cannot be combined with grouping"},
		{"aggregate in filter", `SELECT ?s WHERE { ?s ?p ?o FILTER(COUNT(?o) > 1) }`, "aggregate in FILTER"},
		{"aggregate in bind", `SELECT ?s WHERE { ?s ?p ?o BIND(SUM(?o) AS ?x) }`, "aggregate in BIND"},
		{"bind of a bound variable", `SELECT ?s WHERE { ?s ?p ?o BIND(1 AS ?o) }`, "already in scope"},
		{"as of a bound variable", `SELECT (1 AS ?s) WHERE { ?s ?p ?o }`, "already bound before AS"},
		{"nested aggregate", `SELECT (SUM(COUNT(?o)) AS ?n) WHERE { ?s ?p ?o }`, "nested aggregate"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := ParseQuery(tt.query)
			require.NoError(t, err)
			_, err = Compile(q)
			require.Error(t, err)
			assert.True(t, errors.IsInvalidQuery(err))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

package query

import (
	"context"
	"strings"
	"testing"
	"time"
)

// FuzzParseQuery tests the SPARQL query parser with arbitrary input.
// Run with: go test -fuzz=FuzzParseQuery -fuzztime=30s ./pkg/query/...
func FuzzParseQuery(f *testing.F) {
	// Add seed corpus with SPARQL query patterns
	seeds := []string{
		// Basic SELECT queries
		"SELECT ?s WHERE { ?s ?p ?o }",
		"SELECT ?s ?p ?o WHERE { ?s ?p ?o }",
		"SELECT * WHERE { ?s ?p ?o }",

		// With DISTINCT
		"SELECT DISTINCT ?s WHERE { ?s ?p ?o }",

		// With LIMIT/OFFSET
		"SELECT ?s WHERE { ?s ?p ?o } LIMIT 10",
		"SELECT ?s WHERE { ?s ?p ?o } LIMIT 10 OFFSET 5",

		// With ORDER BY
		"SELECT ?s WHERE { ?s ?p ?o } ORDER BY ?s",
		"SELECT ?s WHERE { ?s ?p ?o } ORDER BY DESC(?s)",
		"SELECT ?s WHERE { ?s ?p ?o } ORDER BY ASC(?s)",

		// With PREFIX
		`PREFIX ex: <http://example.org/>
SELECT ?person WHERE { ?person rdf:type ex:Person }`,

		// With FILTER, OPTIONAL, UNION, MINUS, GRAPH, BIND
		`SELECT ?p WHERE { ?p <http://example.org/name> ?n . FILTER(CONTAINS(?n, "test")) }`,
		`SELECT ?p ?f WHERE { ?p ?q ?o OPTIONAL { ?p <http://example.org/knows> ?f } }`,
		`SELECT ?x WHERE { { ?x ?p ?o } UNION { ?o ?p ?x } MINUS { ?x a ?t } }`,
		`SELECT ?g WHERE { GRAPH ?g { ?s ?p ?o } BIND(STR(?s) AS ?label) }`,
		`SELECT ?s WHERE { ?s ?p ?o FILTER NOT EXISTS { ?o ?p ?s } }`,

		// Aggregates
		`SELECT ?s (COUNT(*) AS ?n) WHERE { ?s ?p ?o } GROUP BY ?s HAVING (COUNT(*) > 1)`,
		`SELECT (GROUP_CONCAT(?o; SEPARATOR=", ") AS ?all) WHERE { ?s ?p ?o }`,

		// Other forms
		"ASK { ?s ?p ?o }",
		"CONSTRUCT { ?s ?p ?o } WHERE { ?s ?p ?o }",
		"DESCRIBE <http://example.org/a>",

		// Edge cases
		"",
		"SELECT",
		"WHERE",
		"SELECT WHERE {}",
		"SELECT ?s WHERE {}",
		"SELECT ?s",

		// Malformed queries
		"SELECT ?s ?p ?o",
		"?s ?p ?o",
		"SELECT ?s WHERE ?s ?p ?o",
		"SELECT ?s WHERE { ?s ?p ?o",
		"SELECT ?s WHERE ?s ?p ?o }",
		"SELECT ?s WHERE { [ ?p [ ?q ] ; ] ?r ?o }",
		"SELECT ?s WHERE { ?s ?p ?o FILTER((((?o) }",

		// Long queries
		"SELECT ?s WHERE { " + strings.Repeat("?s ?p ?o . ", 100) + "}",

		// Unicode
		"SELECT ?s WHERE { ?s ?p \"Droit à l'effacement\"@fr }",

		// Special characters in URIs
		`SELECT ?s WHERE { ?s <http://example.org/path?query=value> ?o }`,

		// Literals with escapes
		`SELECT ?s WHERE { ?s ?p "test \"quoted\" text" }`,

		// Numbers
		"SELECT ?s WHERE { ?s ?p ?o } LIMIT 0",
		"SELECT ?s WHERE { ?s ?p ?o } LIMIT -1",
		"SELECT ?s WHERE { ?s ?p ?o } LIMIT 999999999999999999999",
		"SELECT ?s WHERE { ?s ?p -1.5e-3 }",

		// Mixed case
		"select ?s where { ?s ?p ?o }",
		"Select ?s Where { ?s ?p ?o }",
	}

	for _, seed := range seeds {
		f.Add(seed)
	}

	f.Fuzz(func(t *testing.T, data string) {
		// The parser should not panic on any input
		query, err := ParseQuery(data)

		// We don't care about errors for malformed input
		if err != nil {
			return
		}

		if query == nil {
			t.Error("ParseQuery returned nil without error")
			return
		}

		// Neither should the compiler
		_ = query.OutputVariables()
		compiled, err := Compile(query)
		if err == nil && compiled.Algebra == nil {
			t.Error("Compile returned a nil algebra without error")
		}
	})
}

// FuzzExecuteQuery tests the SPARQL query executor with arbitrary queries.
// Run with: go test -fuzz=FuzzExecuteQuery -fuzztime=30s ./pkg/query/...
func FuzzExecuteQuery(f *testing.F) {
	// Add seed corpus with executable SPARQL queries
	seeds := []string{
		"SELECT ?s WHERE { ?s ?p ?o }",
		"SELECT * WHERE { ?s ?p ?o }",
		"SELECT DISTINCT ?s WHERE { ?s ?p ?o } LIMIT 10",
		"SELECT ?s WHERE { ?s ?p ?o } ORDER BY ?s",
		prologue + "SELECT ?n WHERE { ?p a ex:Person ; ex:name ?n }",
		prologue + "SELECT ?d (AVG(?a) AS ?avg) WHERE { ?p ex:dept ?d ; ex:age ?a } GROUP BY ?d",
		prologue + "ASK { ex:alice ex:knows ?x }",
		"CONSTRUCT { ?s <http://example.org/type> ?o } WHERE { ?s a ?o }",
	}

	for _, seed := range seeds {
		f.Add(seed)
	}

	executor := NewExecutor(setupTestStore(f), WithTimeout(time.Second))

	f.Fuzz(func(t *testing.T, data string) {
		// The executor should not panic on any query text
		result, err := executor.ExecuteStringWithContext(context.Background(), data)
		if err != nil {
			return
		}
		if result == nil {
			t.Error("ExecuteString returned nil result without error")
			return
		}

		// Format methods shouldn't panic
		_, _ = result.Format(FormatTable)
		_, _ = result.Format(FormatJSON)
		_, _ = result.Format(FormatCSV)
	})
}

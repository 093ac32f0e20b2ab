package rdf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTerm(t *testing.T) {
	tests := []struct {
		input string
		want  Node
	}{
		{"<http://ex/a>", NewIRI("http://ex/a")},
		{"_:b0", NewBlank("b0")},
		{"?name", NewVariable("name")},
		{`"plain"`, NewLiteral("plain")},
		{`"bonjour"@fr`, NewLangLiteral("bonjour", "fr")},
		{`"7"^^<http://www.w3.org/2001/XMLSchema#integer>`, NewInteger(7)},
		{`"line\nbreak"`, NewLiteral("line\nbreak")},
	}
	for _, tt := range tests {
		got, err := ParseTerm(tt.input)
		require.NoError(t, err, tt.input)
		assert.Equal(t, tt.want, got, tt.input)
	}

	for _, bad := range []string{"", "<unterminated", `"open`, "plain", "_:"} {
		_, err := ParseTerm(bad)
		assert.Error(t, err, bad)
	}
}

func TestParseNQuad(t *testing.T) {
	q, ok, err := ParseNQuad(`<http://ex/s> <http://ex/p> "o" .`)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, DefaultGraph, q.Graph)
	assert.Equal(t, NewLiteral("o"), q.Object)

	q, ok, err = ParseNQuad(`_:a <http://ex/p> <http://ex/o> <http://ex/g> .`)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, NewIRI("http://ex/g"), q.Graph)
	assert.Equal(t, NewBlank("a"), q.Subject)

	_, ok, err = ParseNQuad("# comment")
	assert.NoError(t, err)
	assert.False(t, ok)

	_, _, err = ParseNQuad(`<http://ex/s> <http://ex/p> "o"`)
	assert.Error(t, err)

	_, _, err = ParseNQuad(`"lit" <http://ex/p> "o" .`)
	assert.Error(t, err)
}

func TestNQuadsRoundTrip(t *testing.T) {
	original := NewQuad(NewIRI("http://ex/s"), NewIRI("http://ex/p"), NewLangLiteral("say \"hi\"", "en"), NewIRI("http://ex/g"))
	parsed, ok, err := ParseNQuad(original.NQuads())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, original, parsed)
}

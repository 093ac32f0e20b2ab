package rdf

import (
	"strings"

	"github.com/coolbeans/quarry/pkg/errors"
)

// ParseTerm parses a single N-Triples term: <iri>, _:label, "literal",
// "literal"@lang, "literal"^^<datatype> or ?variable.
func ParseTerm(s string) (Node, error) {
	s = strings.TrimSpace(s)
	n, rest, err := scanTerm(s)
	if err != nil {
		return Node{}, err
	}
	if strings.TrimSpace(rest) != "" {
		return Node{}, errors.Newf("trailing input after term: %q", rest)
	}
	return n, nil
}

// ParseNQuad parses one N-Triples or N-Quads statement. Blank lines and
// comments return ok=false with no error.
func ParseNQuad(line string) (q Quad, ok bool, err error) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return Quad{}, false, nil
	}

	var terms []Node
	rest := line
	for {
		rest = strings.TrimLeft(rest, " \t")
		if rest == "" {
			return Quad{}, false, errors.Newf("statement not terminated by '.': %q", line)
		}
		if rest[0] == '.' {
			tail := strings.TrimSpace(rest[1:])
			if tail != "" && !strings.HasPrefix(tail, "#") {
				return Quad{}, false, errors.Newf("trailing input after '.': %q", tail)
			}
			break
		}
		var n Node
		n, rest, err = scanTerm(rest)
		if err != nil {
			return Quad{}, false, errors.Wrapf(err, "parse statement %q", line)
		}
		terms = append(terms, n)
	}

	switch len(terms) {
	case 3:
		q = NewQuad(terms[0], terms[1], terms[2], DefaultGraph)
	case 4:
		q = NewQuad(terms[0], terms[1], terms[2], terms[3])
	default:
		return Quad{}, false, errors.Newf("expected 3 or 4 terms, got %d: %q", len(terms), line)
	}

	if q.Subject.IsLiteral() || !q.Predicate.IsIRI() || q.Graph.IsLiteral() {
		return Quad{}, false, errors.Newf("malformed statement: %q", line)
	}
	return q, true, nil
}

// scanTerm reads one term from the front of s and returns the remainder.
func scanTerm(s string) (Node, string, error) {
	if s == "" {
		return Node{}, "", errors.New("empty term")
	}
	switch s[0] {
	case '<':
		end := strings.IndexByte(s, '>')
		if end < 0 {
			return Node{}, "", errors.Newf("unterminated IRI: %q", s)
		}
		return NewIRI(s[1:end]), s[end+1:], nil
	case '_':
		if !strings.HasPrefix(s, "_:") {
			return Node{}, "", errors.Newf("malformed blank node: %q", s)
		}
		end := termEnd(s, 2)
		if end == 2 {
			return Node{}, "", errors.Newf("empty blank node label: %q", s)
		}
		return NewBlank(s[2:end]), s[end:], nil
	case '?', '$':
		end := termEnd(s, 1)
		if end == 1 {
			return Node{}, "", errors.Newf("empty variable name: %q", s)
		}
		return NewVariable(s[1:end]), s[end:], nil
	case '"':
		return scanLiteral(s)
	default:
		return Node{}, "", errors.Newf("unexpected term start %q", s)
	}
}

func termEnd(s string, from int) int {
	i := from
	for i < len(s) {
		c := s[i]
		if c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '<' || c == '"' || c == ',' || c == ';' || c == ')' || c == '}' {
			break
		}
		// a '.' ends the term unless more name characters follow
		if c == '.' && (i+1 >= len(s) || s[i+1] == ' ' || s[i+1] == '\t' || s[i+1] == '\n') {
			break
		}
		i++
	}
	return i
}

func scanLiteral(s string) (Node, string, error) {
	var sb strings.Builder
	i := 1
	closed := false
	for i < len(s) {
		c := s[i]
		if c == '\\' && i+1 < len(s) {
			switch s[i+1] {
			case 'n':
				sb.WriteByte('\n')
			case 'r':
				sb.WriteByte('\r')
			case 't':
				sb.WriteByte('\t')
			case '"':
				sb.WriteByte('"')
			case '\\':
				sb.WriteByte('\\')
			default:
				sb.WriteByte('\\')
				sb.WriteByte(s[i+1])
			}
			i += 2
			continue
		}
		if c == '"' {
			closed = true
			i++
			break
		}
		sb.WriteByte(c)
		i++
	}
	if !closed {
		return Node{}, "", errors.Newf("unterminated literal: %q", s)
	}

	lexical := sb.String()
	rest := s[i:]
	switch {
	case strings.HasPrefix(rest, "@"):
		end := termEnd(rest, 1)
		return NewLangLiteral(lexical, rest[1:end]), rest[end:], nil
	case strings.HasPrefix(rest, "^^<"):
		end := strings.IndexByte(rest, '>')
		if end < 0 {
			return Node{}, "", errors.Newf("unterminated datatype IRI: %q", rest)
		}
		return NewTypedLiteral(lexical, rest[3:end]), rest[end+1:], nil
	default:
		return NewLiteral(lexical), rest, nil
	}
}

package query

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/coolbeans/quarry/pkg/errors"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIRI
	tokPName
	tokVar
	tokBlank
	tokString
	tokLangTag
	tokInteger
	tokDecimal
	tokDouble
	tokIdent
	tokPunct
)

func (k tokenKind) String() string {
	switch k {
	case tokEOF:
		return "end of query"
	case tokIRI:
		return "IRI"
	case tokPName:
		return "prefixed name"
	case tokVar:
		return "variable"
	case tokBlank:
		return "blank node"
	case tokString:
		return "string"
	case tokLangTag:
		return "language tag"
	case tokInteger, tokDecimal, tokDouble:
		return "number"
	case tokIdent:
		return "keyword"
	default:
		return "punctuation"
	}
}

// token is one lexical unit. For IRIs, variables, blank nodes and strings
// text holds the content without delimiters; for prefixed names it is the
// full prefix:local form.
type token struct {
	kind tokenKind
	text string
	line int
	col  int
}

func (t token) String() string {
	switch t.kind {
	case tokEOF:
		return t.kind.String()
	case tokIRI:
		return "<" + t.text + ">"
	case tokVar:
		return "?" + t.text
	case tokString:
		return fmt.Sprintf("%q", t.text)
	}
	return t.text
}

// is reports whether t is the keyword or punctuation s. Keywords match
// case-insensitively.
func (t token) is(s string) bool {
	switch t.kind {
	case tokIdent:
		return strings.EqualFold(t.text, s)
	case tokPunct:
		return t.text == s
	}
	return false
}

// punctuation, longest first
var punctuation = []string{"^^", "&&", "||", "!=", "<=", ">=", "{", "}", "(", ")", "[", "]", ".", ";", ",", "*", "=", "<", ">", "!", "+", "-", "/"}

// lex splits a query into tokens.
func lex(src string) ([]token, error) {
	l := &lexer{src: src, line: 1, col: 1}
	var toks []token
	for {
		tok, err := l.next()
		if err != nil {
			return nil, err
		}
		toks = append(toks, tok)
		if tok.kind == tokEOF {
			return toks, nil
		}
	}
}

type lexer struct {
	src  string
	pos  int
	line int
	col  int
}

func (l *lexer) errorf(format string, args ...any) error {
	return errors.InvalidQueryf("line %d col %d: %s", l.line, l.col, fmt.Sprintf(format, args...))
}

func (l *lexer) advance(n int) {
	for _, r := range l.src[l.pos : l.pos+n] {
		if r == '\n' {
			l.line++
			l.col = 1
		} else {
			l.col++
		}
	}
	l.pos += n
}

func (l *lexer) skipSpace() {
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		switch {
		case c == '#':
			end := strings.IndexByte(l.src[l.pos:], '\n')
			if end < 0 {
				end = len(l.src) - l.pos
			}
			l.advance(end)
		case c == ' ' || c == '\t' || c == '\r' || c == '\n':
			l.advance(1)
		default:
			return
		}
	}
}

func (l *lexer) next() (token, error) {
	l.skipSpace()
	tok := token{line: l.line, col: l.col}
	if l.pos >= len(l.src) {
		tok.kind = tokEOF
		return tok, nil
	}
	rest := l.src[l.pos:]
	c := rest[0]

	switch {
	case c == '<':
		if end := iriEnd(rest); end > 0 {
			tok.kind, tok.text = tokIRI, rest[1:end]
			l.advance(end + 1)
			return tok, nil
		}
	case c == '?' || c == '$':
		n := identLen(rest[1:])
		if n == 0 {
			return tok, l.errorf("empty variable name")
		}
		tok.kind, tok.text = tokVar, rest[1:1+n]
		l.advance(1 + n)
		return tok, nil
	case c == '"' || c == '\'':
		text, n, err := scanString(rest)
		if err != nil {
			return tok, l.errorf("%v", err)
		}
		tok.kind, tok.text = tokString, text
		l.advance(n)
		return tok, nil
	case c == '@':
		n := 1
		for n < len(rest) && (isAlnum(rest[n]) || rest[n] == '-') {
			n++
		}
		if n == 1 {
			return tok, l.errorf("empty language tag")
		}
		tok.kind, tok.text = tokLangTag, rest[1:n]
		l.advance(n)
		return tok, nil
	case strings.HasPrefix(rest, "_:"):
		n := trimDots(rest[2:], nameLen(rest[2:]))
		if n == 0 {
			return tok, l.errorf("empty blank node label")
		}
		tok.kind, tok.text = tokBlank, rest[2:2+n]
		l.advance(2 + n)
		return tok, nil
	case isDigit(c) || (c == '.' && len(rest) > 1 && isDigit(rest[1])):
		kind, n := scanNumber(rest)
		tok.kind, tok.text = kind, rest[:n]
		l.advance(n)
		return tok, nil
	case isNameStart(rest) || c == ':':
		return l.name(tok, rest)
	}

	for _, p := range punctuation {
		if strings.HasPrefix(rest, p) {
			tok.kind, tok.text = tokPunct, p
			l.advance(len(p))
			return tok, nil
		}
	}
	r, _ := utf8.DecodeRuneInString(rest)
	return tok, l.errorf("unexpected character %q", r)
}

// name lexes a keyword, function name or prefixed name.
func (l *lexer) name(tok token, rest string) (token, error) {
	if n := trimDots(rest, nameLen(rest)); n < len(rest) && rest[n] == ':' {
		local := trimDots(rest[n+1:], nameLen(rest[n+1:]))
		tok.kind, tok.text = tokPName, rest[:n+1+local]
		l.advance(n + 1 + local)
		return tok, nil
	}
	n := identLen(rest)
	tok.kind, tok.text = tokIdent, rest[:n]
	l.advance(n)
	return tok, nil
}

// trimDots shortens the name s[:n] so that it does not end with a dot.
func trimDots(s string, n int) int {
	for n > 0 && s[n-1] == '.' {
		n--
	}
	return n
}

// iriEnd returns the index of the '>' closing an IRI reference starting at
// s[0], or -1 when s does not start one. The comparison operators "<" and
// "<=" never form a valid IRI because they are followed by white space.
func iriEnd(s string) int {
	for i := 1; i < len(s); i++ {
		switch s[i] {
		case '>':
			return i
		case ' ', '\t', '\n', '\r', '<', '"', '{', '}', '|', '^', '`', '\\':
			return -1
		}
	}
	return -1
}

func scanString(s string) (string, int, error) {
	quote := s[0]
	long := len(s) >= 3 && s[1] == quote && s[2] == quote
	start := 1
	if long {
		start = 3
	}
	var sb strings.Builder
	for i := start; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '\\':
			if i+1 >= len(s) {
				return "", 0, errors.New("unterminated escape")
			}
			i++
			switch s[i] {
			case 't':
				sb.WriteByte('\t')
			case 'n':
				sb.WriteByte('\n')
			case 'r':
				sb.WriteByte('\r')
			case 'b':
				sb.WriteByte('\b')
			case 'f':
				sb.WriteByte('\f')
			case '"', '\'', '\\':
				sb.WriteByte(s[i])
			default:
				return "", 0, errors.Newf("unknown escape \\%c", s[i])
			}
		case c == quote && !long:
			return sb.String(), i + 1, nil
		case c == quote && long && strings.HasPrefix(s[i:], strings.Repeat(string(quote), 3)):
			return sb.String(), i + 3, nil
		case (c == '\n' || c == '\r') && !long:
			return "", 0, errors.New("newline in string")
		default:
			sb.WriteByte(c)
		}
	}
	return "", 0, errors.New("unterminated string")
}

func scanNumber(s string) (tokenKind, int) {
	kind := tokInteger
	n := 0
	for n < len(s) && isDigit(s[n]) {
		n++
	}
	if n < len(s) && s[n] == '.' && n+1 < len(s) && isDigit(s[n+1]) {
		kind = tokDecimal
		n++
		for n < len(s) && isDigit(s[n]) {
			n++
		}
	}
	if n < len(s) && (s[n] == 'e' || s[n] == 'E') {
		m := n + 1
		if m < len(s) && (s[m] == '+' || s[m] == '-') {
			m++
		}
		if m < len(s) && isDigit(s[m]) {
			kind = tokDouble
			n = m
			for n < len(s) && isDigit(s[n]) {
				n++
			}
		}
	}
	return kind, n
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isAlnum(c byte) bool {
	return isDigit(c) || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isNameStart(s string) bool {
	r, _ := utf8.DecodeRuneInString(s)
	return unicode.IsLetter(r)
}

// nameLen returns the byte length of the name at the start of s: letters,
// digits, '_', '-' and '.'.
func nameLen(s string) int {
	return scanName(s, func(r rune) bool { return r == '_' || r == '-' || r == '.' })
}

// identLen is nameLen for keywords and variables, which take only letters,
// digits and '_'.
func identLen(s string) int {
	return scanName(s, func(r rune) bool { return r == '_' })
}

func scanName(s string, extra func(rune) bool) int {
	n := 0
	for n < len(s) {
		r, size := utf8.DecodeRuneInString(s[n:])
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && !extra(r) {
			break
		}
		n += size
	}
	return n
}

package query

import (
	"fmt"
	"maps"
	"net/url"
	"strconv"
	"strings"

	"github.com/coolbeans/quarry/pkg/algebra"
	"github.com/coolbeans/quarry/pkg/errors"
	"github.com/coolbeans/quarry/pkg/rdf"
)

var aggregateFuncs = map[string]algebra.AggregateFunc{
	"COUNT":        algebra.AggCount,
	"SUM":          algebra.AggSum,
	"AVG":          algebra.AggAvg,
	"MIN":          algebra.AggMin,
	"MAX":          algebra.AggMax,
	"SAMPLE":       algebra.AggSample,
	"GROUP_CONCAT": algebra.AggGroupConcat,
}

// clauseKeywords end the open-ended lists of GROUP BY, HAVING and ORDER BY.
var clauseKeywords = []string{"GROUP", "HAVING", "ORDER", "LIMIT", "OFFSET"}

// ParseQuery parses a SPARQL query string. Syntax errors carry the line and
// column of the offending token and match errors.ErrInvalidQuery.
func ParseQuery(queryStr string) (*Query, error) {
	toks, err := lex(queryStr)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks, prefixes: maps.Clone(rdf.DefaultPrefixes)}
	return p.parseQuery()
}

type parser struct {
	toks     []token
	pos      int
	prefixes map[string]string
	base     string
	anon     int
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) next() token {
	tok := p.toks[p.pos]
	if tok.kind != tokEOF {
		p.pos++
	}
	return tok
}

// accept consumes the next token if it is the keyword or punctuation s.
func (p *parser) accept(s string) bool {
	if p.peek().is(s) {
		p.pos++
		return true
	}
	return false
}

func (p *parser) expect(s string) error {
	if !p.accept(s) {
		return p.unexpected(fmt.Sprintf("%q", s))
	}
	return nil
}

func (p *parser) errorf(tok token, format string, args ...any) error {
	return errors.InvalidQueryf("line %d col %d: %s", tok.line, tok.col, fmt.Sprintf(format, args...))
}

func (p *parser) unexpected(want string) error {
	tok := p.peek()
	return p.errorf(tok, "expected %s, found %s", want, tok)
}

func (p *parser) atClauseKeyword() bool {
	for _, kw := range clauseKeywords {
		if p.peek().is(kw) {
			return true
		}
	}
	return false
}

func (p *parser) parseQuery() (*Query, error) {
	q := &Query{Limit: -1}
	if err := p.prologue(); err != nil {
		return nil, err
	}

	var err error
	tok := p.next()
	switch {
	case tok.is("SELECT"):
		q.Type = SelectQueryType
		err = p.selectClause(q)
	case tok.is("ASK"):
		q.Type = AskQueryType
	case tok.is("CONSTRUCT"):
		q.Type = ConstructQueryType
		q.Template, err = p.template()
	case tok.is("DESCRIBE"):
		q.Type = DescribeQueryType
		err = p.describeClause(q)
	default:
		return nil, p.errorf(tok, "expected SELECT, ASK, CONSTRUCT or DESCRIBE, found %s", tok)
	}
	if err != nil {
		return nil, err
	}

	if err := p.datasetClauses(q); err != nil {
		return nil, err
	}

	hasWhere := p.accept("WHERE")
	if hasWhere || q.Type != DescribeQueryType || p.peek().is("{") {
		if q.Where, err = p.groupPattern(); err != nil {
			return nil, err
		}
	}

	if err := p.solutionModifiers(q); err != nil {
		return nil, err
	}
	if tok := p.peek(); tok.kind != tokEOF {
		return nil, p.errorf(tok, "unexpected %s after query", tok)
	}

	q.Prefixes = p.prefixes
	q.Base = p.base
	return q, nil
}

func (p *parser) prologue() error {
	for {
		switch {
		case p.accept("PREFIX"):
			tok := p.next()
			if tok.kind != tokPName || !strings.HasSuffix(tok.text, ":") {
				return p.errorf(tok, "expected prefix name, found %s", tok)
			}
			iri := p.next()
			if iri.kind != tokIRI {
				return p.errorf(iri, "expected IRI, found %s", iri)
			}
			p.prefixes[strings.TrimSuffix(tok.text, ":")] = p.resolve(iri.text)
		case p.accept("BASE"):
			iri := p.next()
			if iri.kind != tokIRI {
				return p.errorf(iri, "expected IRI, found %s", iri)
			}
			p.base = p.resolve(iri.text)
		default:
			return nil
		}
	}
}

func (p *parser) selectClause(q *Query) error {
	switch {
	case p.accept("DISTINCT"):
		q.Distinct = true
	case p.accept("REDUCED"):
		q.Reduced = true
	}
	if p.accept("*") {
		q.Star = true
		return nil
	}

	seen := make(map[string]bool)
	for {
		tok := p.peek()
		var item Projection
		switch {
		case tok.kind == tokVar:
			p.next()
			item.Var = tok.text
		case tok.is("("):
			p.next()
			e, err := p.expression()
			if err != nil {
				return err
			}
			if err := p.expect("AS"); err != nil {
				return err
			}
			v := p.next()
			if v.kind != tokVar {
				return p.errorf(v, "expected variable after AS, found %s", v)
			}
			if err := p.expect(")"); err != nil {
				return err
			}
			item = Projection{Var: v.text, Expr: e}
		default:
			if len(q.Projection) == 0 {
				return p.unexpected("variable, expression or '*'")
			}
			return nil
		}
		if seen[item.Var] {
			return p.errorf(tok, "variable ?%s projected twice", item.Var)
		}
		seen[item.Var] = true
		q.Projection = append(q.Projection, item)
	}
}

func (p *parser) describeClause(q *Query) error {
	if p.accept("*") {
		q.Star = true
		return nil
	}
	for {
		switch p.peek().kind {
		case tokVar, tokIRI, tokPName:
			n, err := p.term()
			if err != nil {
				return err
			}
			q.Describe = append(q.Describe, n)
		default:
			if len(q.Describe) == 0 {
				return p.unexpected("variable, IRI or '*'")
			}
			return nil
		}
	}
}

func (p *parser) template() ([]rdf.Triple, error) {
	if err := p.expect("{"); err != nil {
		return nil, err
	}
	var out []rdf.Triple
	for !p.accept("}") {
		if err := p.triplesSameSubject(&out); err != nil {
			return nil, err
		}
		if !p.accept(".") && !p.peek().is("}") {
			return nil, p.unexpected("'.' or '}'")
		}
	}
	return out, nil
}

func (p *parser) datasetClauses(q *Query) error {
	for p.accept("FROM") {
		named := p.accept("NAMED")
		tok := p.peek()
		if tok.kind != tokIRI && tok.kind != tokPName {
			return p.unexpected("graph IRI")
		}
		g, err := p.term()
		if err != nil {
			return err
		}
		if named {
			q.FromNamed = append(q.FromNamed, g)
		} else {
			q.From = append(q.From, g)
		}
	}
	return nil
}

func (p *parser) groupPattern() (*GroupPattern, error) {
	if err := p.expect("{"); err != nil {
		return nil, err
	}
	g := &GroupPattern{}
	for {
		tok := p.peek()
		var (
			el  Element
			err error
		)
		switch {
		case tok.is("}"):
			p.next()
			return g, nil
		case tok.kind == tokEOF:
			return nil, p.unexpected("'}'")
		case tok.is("OPTIONAL"):
			p.next()
			var sub *GroupPattern
			sub, err = p.groupPattern()
			el = &OptionalPattern{Pattern: sub}
		case tok.is("MINUS"):
			p.next()
			var sub *GroupPattern
			sub, err = p.groupPattern()
			el = &MinusPattern{Pattern: sub}
		case tok.is("GRAPH"):
			p.next()
			el, err = p.graphPattern()
		case tok.is("FILTER"):
			p.next()
			var e algebra.Expr
			e, err = p.constraint()
			el = &Filter{Expr: e}
		case tok.is("BIND"):
			p.next()
			el, err = p.bind()
		case tok.is("{"):
			el, err = p.groupOrUnion()
		case tok.is("VALUES"), tok.is("SERVICE"), tok.is("SELECT"):
			return nil, errors.Mark(p.errorf(tok, "%s is not supported", strings.ToUpper(tok.text)), errors.ErrNotSupported)
		default:
			err = p.triplesBlock(g)
		}
		if err != nil {
			return nil, err
		}
		if el != nil {
			g.Elements = append(g.Elements, el)
			p.accept(".")
		}
	}
}

// triplesBlock parses one subject's triples and appends them to the trailing
// TriplesBlock of g, starting a new one when needed.
func (p *parser) triplesBlock(g *GroupPattern) error {
	var block *TriplesBlock
	if n := len(g.Elements); n > 0 {
		block, _ = g.Elements[n-1].(*TriplesBlock)
	}
	if block == nil {
		block = &TriplesBlock{}
		g.Elements = append(g.Elements, block)
	}
	if err := p.triplesSameSubject(&block.Patterns); err != nil {
		return err
	}
	if p.accept(".") {
		return nil
	}
	if tok := p.peek(); tok.is("}") || tok.is("{") || tok.kind == tokIdent {
		return nil
	}
	return p.unexpected("'.'")
}

func (p *parser) graphPattern() (Element, error) {
	tok := p.peek()
	if tok.kind != tokVar && tok.kind != tokIRI && tok.kind != tokPName {
		return nil, p.unexpected("graph name")
	}
	name, err := p.term()
	if err != nil {
		return nil, err
	}
	sub, err := p.groupPattern()
	if err != nil {
		return nil, err
	}
	return &GraphPattern{Name: name, Pattern: sub}, nil
}

func (p *parser) groupOrUnion() (Element, error) {
	first, err := p.groupPattern()
	if err != nil {
		return nil, err
	}
	if !p.peek().is("UNION") {
		return first, nil
	}
	u := &UnionPattern{Branches: []*GroupPattern{first}}
	for p.accept("UNION") {
		b, err := p.groupPattern()
		if err != nil {
			return nil, err
		}
		u.Branches = append(u.Branches, b)
	}
	return u, nil
}

func (p *parser) bind() (Element, error) {
	if err := p.expect("("); err != nil {
		return nil, err
	}
	e, err := p.expression()
	if err != nil {
		return nil, err
	}
	if err := p.expect("AS"); err != nil {
		return nil, err
	}
	v := p.next()
	if v.kind != tokVar {
		return nil, p.errorf(v, "expected variable after AS, found %s", v)
	}
	if err := p.expect(")"); err != nil {
		return nil, err
	}
	return &Bind{Expr: e, Var: v.text}, nil
}

// triplesSameSubject parses a subject and its property list.
func (p *parser) triplesSameSubject(out *[]rdf.Triple) error {
	if p.accept("[") {
		subj := p.freshBlank()
		if p.accept("]") {
			return p.propertyList(subj, out)
		}
		if err := p.propertyList(subj, out); err != nil {
			return err
		}
		if err := p.expect("]"); err != nil {
			return err
		}
		if p.atVerb() {
			return p.propertyList(subj, out)
		}
		return nil
	}
	subj, err := p.term()
	if err != nil {
		return err
	}
	return p.propertyList(subj, out)
}

func (p *parser) atVerb() bool {
	tok := p.peek()
	switch tok.kind {
	case tokVar, tokIRI, tokPName:
		return true
	case tokIdent:
		return tok.text == "a"
	}
	return false
}

func (p *parser) propertyList(subj rdf.Node, out *[]rdf.Triple) error {
	for {
		pred, err := p.verb()
		if err != nil {
			return err
		}
		for {
			obj, err := p.object(out)
			if err != nil {
				return err
			}
			*out = append(*out, rdf.NewTriple(subj, pred, obj))
			if !p.accept(",") {
				break
			}
		}
		if !p.accept(";") {
			return nil
		}
		for p.accept(";") {
		}
		if !p.atVerb() {
			return nil
		}
	}
}

func (p *parser) verb() (rdf.Node, error) {
	tok := p.peek()
	if tok.kind == tokIdent && tok.text == "a" {
		p.next()
		return rdf.NewIRI(rdf.RDFType), nil
	}
	if !p.atVerb() {
		return rdf.Node{}, p.unexpected("predicate")
	}
	return p.term()
}

func (p *parser) object(out *[]rdf.Triple) (rdf.Node, error) {
	if !p.accept("[") {
		return p.term()
	}
	b := p.freshBlank()
	if p.accept("]") {
		return b, nil
	}
	if err := p.propertyList(b, out); err != nil {
		return rdf.Node{}, err
	}
	return b, p.expect("]")
}

// freshBlank returns a blank node for an anonymous [] that no label written
// in a query can collide with.
func (p *parser) freshBlank() rdf.Node {
	p.anon++
	return rdf.NewBlank("#anon" + strconv.Itoa(p.anon))
}

// term parses a variable, IRI, blank node or literal.
func (p *parser) term() (rdf.Node, error) {
	tok := p.next()
	switch tok.kind {
	case tokVar:
		return rdf.NewVariable(tok.text), nil
	case tokIRI:
		return rdf.NewIRI(p.resolve(tok.text)), nil
	case tokPName:
		return p.expand(tok)
	case tokBlank:
		return rdf.NewBlank(tok.text), nil
	case tokString:
		return p.literal(tok)
	case tokInteger, tokDecimal, tokDouble:
		return numericLiteral(tok.kind, tok.text), nil
	case tokPunct:
		if (tok.text == "-" || tok.text == "+") && isNumberKind(p.peek().kind) {
			num := p.next()
			text := num.text
			if tok.text == "-" {
				text = "-" + text
			}
			return numericLiteral(num.kind, text), nil
		}
	case tokIdent:
		switch tok.text {
		case "true":
			return rdf.NewBoolean(true), nil
		case "false":
			return rdf.NewBoolean(false), nil
		}
	}
	return rdf.Node{}, p.errorf(tok, "expected term, found %s", tok)
}

func (p *parser) literal(tok token) (rdf.Node, error) {
	if lang := p.peek(); lang.kind == tokLangTag {
		p.next()
		return rdf.NewLangLiteral(tok.text, lang.text), nil
	}
	if p.accept("^^") {
		dt := p.next()
		var iri rdf.Node
		switch dt.kind {
		case tokIRI:
			iri = rdf.NewIRI(p.resolve(dt.text))
		case tokPName:
			var err error
			if iri, err = p.expand(dt); err != nil {
				return rdf.Node{}, err
			}
		default:
			return rdf.Node{}, p.errorf(dt, "expected datatype IRI, found %s", dt)
		}
		return rdf.NewTypedLiteral(tok.text, iri.Value()), nil
	}
	return rdf.NewLiteral(tok.text), nil
}

func isNumberKind(k tokenKind) bool {
	return k == tokInteger || k == tokDecimal || k == tokDouble
}

func numericLiteral(kind tokenKind, text string) rdf.Node {
	switch kind {
	case tokDecimal:
		return rdf.NewTypedLiteral(text, rdf.XSDDecimal)
	case tokDouble:
		return rdf.NewTypedLiteral(text, rdf.XSDDouble)
	default:
		return rdf.NewTypedLiteral(text, rdf.XSDInteger)
	}
}

// expand resolves a prefixed name against the declared prefixes.
func (p *parser) expand(tok token) (rdf.Node, error) {
	prefix, local, _ := strings.Cut(tok.text, ":")
	ns, ok := p.prefixes[prefix]
	if !ok {
		return rdf.Node{}, p.errorf(tok, "undeclared prefix %q", prefix)
	}
	return rdf.NewIRI(ns + local), nil
}

// resolve resolves a relative IRI reference against BASE.
func (p *parser) resolve(ref string) string {
	if p.base == "" {
		return ref
	}
	r, err := url.Parse(ref)
	if err != nil || r.IsAbs() {
		return ref
	}
	b, err := url.Parse(p.base)
	if err != nil {
		return ref
	}
	return b.ResolveReference(r).String()
}

func (p *parser) solutionModifiers(q *Query) error {
	if p.accept("GROUP") {
		if err := p.expect("BY"); err != nil {
			return err
		}
		if err := p.groupBy(q); err != nil {
			return err
		}
	}
	if p.accept("HAVING") {
		for {
			e, err := p.constraint()
			if err != nil {
				return err
			}
			q.Having = append(q.Having, e)
			if !p.atConstraint() {
				break
			}
		}
	}
	if p.accept("ORDER") {
		if err := p.expect("BY"); err != nil {
			return err
		}
		if err := p.orderBy(q); err != nil {
			return err
		}
	}
	for range 2 {
		switch {
		case p.accept("LIMIT"):
			n, err := p.integer()
			if err != nil {
				return err
			}
			q.Limit = n
		case p.accept("OFFSET"):
			n, err := p.integer()
			if err != nil {
				return err
			}
			q.Offset = n
		}
	}
	return nil
}

func (p *parser) atConstraint() bool {
	tok := p.peek()
	return tok.is("(") || tok.kind == tokIRI || tok.kind == tokPName ||
		(tok.kind == tokIdent && !p.atClauseKeyword())
}

func (p *parser) groupBy(q *Query) error {
	for {
		tok := p.peek()
		switch {
		case tok.kind == tokVar:
			p.next()
			q.GroupBy = append(q.GroupBy, algebra.GroupKey{Expr: algebra.V(tok.text), Var: tok.text})
		case tok.is("("):
			p.next()
			e, err := p.expression()
			if err != nil {
				return err
			}
			key := algebra.GroupKey{Expr: e}
			if p.accept("AS") {
				v := p.next()
				if v.kind != tokVar {
					return p.errorf(v, "expected variable after AS, found %s", v)
				}
				key.Var = v.text
			}
			if err := p.expect(")"); err != nil {
				return err
			}
			q.GroupBy = append(q.GroupBy, key)
		case p.atConstraint():
			e, err := p.primary()
			if err != nil {
				return err
			}
			q.GroupBy = append(q.GroupBy, algebra.GroupKey{Expr: e})
		default:
			if len(q.GroupBy) == 0 {
				return p.unexpected("grouping condition")
			}
			return nil
		}
	}
}

func (p *parser) orderBy(q *Query) error {
	for {
		tok := p.peek()
		var cond algebra.OrderCondition
		switch {
		case tok.is("ASC"), tok.is("DESC"):
			p.next()
			if err := p.expect("("); err != nil {
				return err
			}
			e, err := p.expression()
			if err != nil {
				return err
			}
			if err := p.expect(")"); err != nil {
				return err
			}
			cond = algebra.OrderCondition{Expr: e, Descending: tok.is("DESC")}
		case tok.kind == tokVar:
			p.next()
			cond.Expr = algebra.V(tok.text)
		case p.atConstraint():
			e, err := p.constraint()
			if err != nil {
				return err
			}
			cond.Expr = e
		default:
			if len(q.OrderBy) == 0 {
				return p.unexpected("order condition")
			}
			return nil
		}
		q.OrderBy = append(q.OrderBy, cond)
	}
}

func (p *parser) integer() (int, error) {
	tok := p.next()
	if tok.kind != tokInteger {
		return 0, p.errorf(tok, "expected integer, found %s", tok)
	}
	n, err := strconv.Atoi(tok.text)
	if err != nil {
		return 0, p.errorf(tok, "integer %s out of range", tok.text)
	}
	return n, nil
}

// constraint parses the argument of FILTER and HAVING: a bracketed
// expression or a function call.
func (p *parser) constraint() (algebra.Expr, error) {
	tok := p.peek()
	if tok.is("(") || tok.kind == tokIdent || tok.kind == tokIRI || tok.kind == tokPName {
		return p.primary()
	}
	return nil, p.unexpected("constraint")
}

func (p *parser) expression() (algebra.Expr, error) {
	left, err := p.andExpr()
	if err != nil {
		return nil, err
	}
	for p.accept("||") {
		right, err := p.andExpr()
		if err != nil {
			return nil, err
		}
		left = &algebra.Binary{Op: algebra.OpOr, Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) andExpr() (algebra.Expr, error) {
	left, err := p.relational()
	if err != nil {
		return nil, err
	}
	for p.accept("&&") {
		right, err := p.relational()
		if err != nil {
			return nil, err
		}
		left = &algebra.Binary{Op: algebra.OpAnd, Left: left, Right: right}
	}
	return left, nil
}

var relationalOps = map[string]algebra.Op{
	"=": algebra.OpEq, "!=": algebra.OpNe,
	"<": algebra.OpLt, "<=": algebra.OpLe,
	">": algebra.OpGt, ">=": algebra.OpGe,
}

func (p *parser) relational() (algebra.Expr, error) {
	left, err := p.additive()
	if err != nil {
		return nil, err
	}
	tok := p.peek()
	if tok.kind == tokPunct {
		if op, ok := relationalOps[tok.text]; ok {
			p.next()
			right, err := p.additive()
			if err != nil {
				return nil, err
			}
			return &algebra.Binary{Op: op, Left: left, Right: right}, nil
		}
	}
	not := false
	switch {
	case tok.is("IN"):
		p.next()
	case tok.is("NOT"):
		p.next()
		if err := p.expect("IN"); err != nil {
			return nil, err
		}
		not = true
	default:
		return left, nil
	}
	list, err := p.argList()
	if err != nil {
		return nil, err
	}
	return &algebra.In{Expr: left, List: list, Not: not}, nil
}

func (p *parser) additive() (algebra.Expr, error) {
	left, err := p.multiplicative()
	if err != nil {
		return nil, err
	}
	for {
		var op algebra.Op
		switch {
		case p.accept("+"):
			op = algebra.OpAdd
		case p.accept("-"):
			op = algebra.OpSub
		default:
			return left, nil
		}
		right, err := p.multiplicative()
		if err != nil {
			return nil, err
		}
		left = &algebra.Binary{Op: op, Left: left, Right: right}
	}
}

func (p *parser) multiplicative() (algebra.Expr, error) {
	left, err := p.unary()
	if err != nil {
		return nil, err
	}
	for {
		var op algebra.Op
		switch {
		case p.accept("*"):
			op = algebra.OpMul
		case p.accept("/"):
			op = algebra.OpDiv
		default:
			return left, nil
		}
		right, err := p.unary()
		if err != nil {
			return nil, err
		}
		left = &algebra.Binary{Op: op, Left: left, Right: right}
	}
}

func (p *parser) unary() (algebra.Expr, error) {
	var op algebra.Op
	switch {
	case p.accept("!"):
		op = algebra.OpNot
	case p.accept("-"):
		op = algebra.OpNeg
	case p.accept("+"):
		op = algebra.OpPlus
	default:
		return p.primary()
	}
	operand, err := p.unary()
	if err != nil {
		return nil, err
	}
	return &algebra.Unary{Op: op, Operand: operand}, nil
}

func (p *parser) primary() (algebra.Expr, error) {
	tok := p.peek()
	switch tok.kind {
	case tokPunct:
		if !tok.is("(") {
			break
		}
		p.next()
		e, err := p.expression()
		if err != nil {
			return nil, err
		}
		return e, p.expect(")")
	case tokVar:
		p.next()
		return algebra.V(tok.text), nil
	case tokIRI, tokPName:
		n, err := p.term()
		if err != nil {
			return nil, err
		}
		if !p.peek().is("(") {
			return algebra.C(n), nil
		}
		args, err := p.argList()
		if err != nil {
			return nil, err
		}
		return &algebra.Call{Func: n.Value(), Args: args}, nil
	case tokString, tokInteger, tokDecimal, tokDouble:
		n, err := p.term()
		if err != nil {
			return nil, err
		}
		return algebra.C(n), nil
	case tokIdent:
		return p.keywordExpr()
	}
	return nil, p.errorf(tok, "expected expression, found %s", tok)
}

// keywordExpr parses the expressions introduced by a keyword: boolean
// literals, aggregates, EXISTS and built-in calls.
func (p *parser) keywordExpr() (algebra.Expr, error) {
	tok := p.next()
	name := strings.ToUpper(tok.text)
	switch {
	case tok.text == "true" || tok.text == "false":
		return algebra.C(rdf.NewBoolean(tok.text == "true")), nil
	case name == "EXISTS":
		return p.exists(false)
	case name == "NOT":
		if err := p.expect("EXISTS"); err != nil {
			return nil, err
		}
		return p.exists(true)
	}
	if fn, ok := aggregateFuncs[name]; ok {
		return p.aggregate(fn)
	}
	if !p.peek().is("(") {
		return nil, p.errorf(tok, "unexpected keyword %s", tok.text)
	}
	args, err := p.argList()
	if err != nil {
		return nil, err
	}
	return &algebra.Call{Func: name, Args: args}, nil
}

func (p *parser) exists(not bool) (algebra.Expr, error) {
	g, err := p.groupPattern()
	if err != nil {
		return nil, err
	}
	op, err := translateGroup(g)
	if err != nil {
		return nil, err
	}
	return &algebra.Exists{Pattern: op, Not: not}, nil
}

func (p *parser) aggregate(fn algebra.AggregateFunc) (algebra.Expr, error) {
	if err := p.expect("("); err != nil {
		return nil, err
	}
	agg := &algebra.Aggregate{Func: fn, Distinct: p.accept("DISTINCT")}
	if fn == algebra.AggCount && p.accept("*") {
		return agg, p.expect(")")
	}
	e, err := p.expression()
	if err != nil {
		return nil, err
	}
	agg.Expr = e
	if fn == algebra.AggGroupConcat {
		agg.Separator = algebra.DefaultSeparator
		if p.accept(";") {
			if err := p.expect("SEPARATOR"); err != nil {
				return nil, err
			}
			if err := p.expect("="); err != nil {
				return nil, err
			}
			sep := p.next()
			if sep.kind != tokString {
				return nil, p.errorf(sep, "expected separator string, found %s", sep)
			}
			agg.Separator = sep.text
		}
	}
	return agg, p.expect(")")
}

// argList parses a parenthesised, comma-separated expression list.
func (p *parser) argList() ([]algebra.Expr, error) {
	if err := p.expect("("); err != nil {
		return nil, err
	}
	var args []algebra.Expr
	if p.accept(")") {
		return args, nil
	}
	for {
		e, err := p.expression()
		if err != nil {
			return nil, err
		}
		args = append(args, e)
		if p.accept(")") {
			return args, nil
		}
		if err := p.expect(","); err != nil {
			return nil, err
		}
	}
}

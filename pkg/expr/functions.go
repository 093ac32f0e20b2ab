package expr

import (
	"math"
	"strings"
	"unicode/utf8"

	"github.com/coolbeans/quarry/pkg/algebra"
	"github.com/coolbeans/quarry/pkg/errors"
	"github.com/coolbeans/quarry/pkg/rdf"
	"github.com/coolbeans/quarry/pkg/solution"
)

type builtin func(args []rdf.Node) (rdf.Node, error)

type builtinSpec struct {
	min, max int // max < 0 means variadic
	fn       builtin
}

var builtins map[string]builtinSpec

func init() {
	builtins = map[string]builtinSpec{
		"STR":         {1, 1, fnStr},
		"LANG":        {1, 1, fnLang},
		"DATATYPE":    {1, 1, fnDatatype},
		"IRI":         {1, 1, fnIRI},
		"URI":         {1, 1, fnIRI},
		"ISIRI":       {1, 1, kindTest(rdf.Node.IsIRI)},
		"ISURI":       {1, 1, kindTest(rdf.Node.IsIRI)},
		"ISBLANK":     {1, 1, kindTest(rdf.Node.IsBlank)},
		"ISLITERAL":   {1, 1, kindTest(rdf.Node.IsLiteral)},
		"ISNUMERIC":   {1, 1, kindTest(rdf.IsNumeric)},
		"SAMETERM":    {2, 2, fnSameTerm},
		"LANGMATCHES": {2, 2, fnLangMatches},
		"STRLEN":      {1, 1, fnStrlen},
		"UCASE":       {1, 1, caseMap(strings.ToUpper)},
		"LCASE":       {1, 1, caseMap(strings.ToLower)},
		"CONTAINS":    {2, 2, stringTest(strings.Contains)},
		"STRSTARTS":   {2, 2, stringTest(strings.HasPrefix)},
		"STRENDS":     {2, 2, stringTest(strings.HasSuffix)},
		"CONCAT":      {0, -1, fnConcat},
		"SUBSTR":      {2, 3, fnSubstr},
		"ABS":         {1, 1, numericMap(math.Abs)},
		"CEIL":        {1, 1, numericMap(math.Ceil)},
		"FLOOR":       {1, 1, numericMap(math.Floor)},
		"ROUND":       {1, 1, numericMap(roundHalfUp)},
	}
}

func (ev *Evaluator) call(x *algebra.Call, s solution.Solution, env Env) (rdf.Node, error) {
	name := strings.ToUpper(x.Func)

	// Functions that do not evaluate all arguments eagerly.
	switch name {
	case "BOUND":
		if len(x.Args) != 1 {
			return rdf.Node{}, arity(name, len(x.Args))
		}
		v, ok := x.Args[0].(*algebra.Var)
		if !ok {
			return rdf.Node{}, errors.Wrap(ErrType, "BOUND requires a variable")
		}
		return rdf.NewBoolean(s.Has(v.Name)), nil
	case "COALESCE":
		for _, arg := range x.Args {
			if n, err := ev.Evaluate(arg, s, env); err == nil {
				return n, nil
			}
		}
		return rdf.Node{}, errors.Wrap(ErrUnbound, "COALESCE: no argument has a value")
	case "IF":
		if len(x.Args) != 3 {
			return rdf.Node{}, arity(name, len(x.Args))
		}
		cond, err := ev.Test(x.Args[0], s, env)
		if err != nil {
			return rdf.Node{}, err
		}
		if cond {
			return ev.Evaluate(x.Args[1], s, env)
		}
		return ev.Evaluate(x.Args[2], s, env)
	}

	args := make([]rdf.Node, len(x.Args))
	for i, arg := range x.Args {
		n, err := ev.Evaluate(arg, s, env)
		if err != nil {
			return rdf.Node{}, err
		}
		args[i] = n
	}

	if name == "REGEX" {
		return ev.fnRegex(args)
	}
	spec, ok := builtins[name]
	if !ok {
		return rdf.Node{}, errors.NotSupportedf("function %s", name)
	}
	if len(args) < spec.min || (spec.max >= 0 && len(args) > spec.max) {
		return rdf.Node{}, arity(name, len(args))
	}
	return spec.fn(args)
}

func arity(name string, got int) error {
	return errors.Wrapf(ErrType, "%s: wrong number of arguments (%d)", name, got)
}

// stringArg returns the lexical form and language of a string literal.
func stringArg(n rdf.Node) (string, string, error) {
	if !isStringLike(n) {
		return "", "", errors.Wrapf(ErrType, "%s is not a string", n)
	}
	return n.Value(), n.Lang(), nil
}

func stringLike(value, lang string) rdf.Node {
	if lang != "" {
		return rdf.NewLangLiteral(value, lang)
	}
	return rdf.NewLiteral(value)
}

func fnStr(args []rdf.Node) (rdf.Node, error) {
	switch n := args[0]; {
	case n.IsIRI(), n.IsLiteral():
		return rdf.NewLiteral(n.Value()), nil
	default:
		return rdf.Node{}, errors.Wrapf(ErrType, "STR(%s)", n)
	}
}

func fnLang(args []rdf.Node) (rdf.Node, error) {
	if !args[0].IsLiteral() {
		return rdf.Node{}, errors.Wrapf(ErrType, "LANG(%s)", args[0])
	}
	return rdf.NewLiteral(args[0].Lang()), nil
}

func fnDatatype(args []rdf.Node) (rdf.Node, error) {
	if !args[0].IsLiteral() {
		return rdf.Node{}, errors.Wrapf(ErrType, "DATATYPE(%s)", args[0])
	}
	return rdf.NewIRI(args[0].Datatype()), nil
}

func fnIRI(args []rdf.Node) (rdf.Node, error) {
	switch n := args[0]; {
	case n.IsIRI():
		return n, nil
	case isStringLike(n) && n.Lang() == "":
		return rdf.NewIRI(n.Value()), nil
	default:
		return rdf.Node{}, errors.Wrapf(ErrType, "IRI(%s)", n)
	}
}

func kindTest(test func(rdf.Node) bool) builtin {
	return func(args []rdf.Node) (rdf.Node, error) {
		return rdf.NewBoolean(test(args[0])), nil
	}
}

func fnSameTerm(args []rdf.Node) (rdf.Node, error) {
	return rdf.NewBoolean(args[0] == args[1]), nil
}

func fnLangMatches(args []rdf.Node) (rdf.Node, error) {
	tag, _, err := stringArg(args[0])
	if err != nil {
		return rdf.Node{}, err
	}
	rng, _, err := stringArg(args[1])
	if err != nil {
		return rdf.Node{}, err
	}
	tag, rng = strings.ToLower(tag), strings.ToLower(rng)
	if rng == "*" {
		return rdf.NewBoolean(tag != ""), nil
	}
	return rdf.NewBoolean(tag == rng || strings.HasPrefix(tag, rng+"-")), nil
}

func fnStrlen(args []rdf.Node) (rdf.Node, error) {
	v, _, err := stringArg(args[0])
	if err != nil {
		return rdf.Node{}, err
	}
	return rdf.NewInteger(int64(utf8.RuneCountInString(v))), nil
}

func caseMap(fn func(string) string) builtin {
	return func(args []rdf.Node) (rdf.Node, error) {
		v, lang, err := stringArg(args[0])
		if err != nil {
			return rdf.Node{}, err
		}
		return stringLike(fn(v), lang), nil
	}
}

func stringTest(fn func(s, sub string) bool) builtin {
	return func(args []rdf.Node) (rdf.Node, error) {
		v, lang, err := stringArg(args[0])
		if err != nil {
			return rdf.Node{}, err
		}
		sub, subLang, err := stringArg(args[1])
		if err != nil {
			return rdf.Node{}, err
		}
		if subLang != "" && subLang != lang {
			return rdf.Node{}, errors.Wrapf(ErrType, "incompatible language tags %q and %q", lang, subLang)
		}
		return rdf.NewBoolean(fn(v, sub)), nil
	}
}

func fnConcat(args []rdf.Node) (rdf.Node, error) {
	var sb strings.Builder
	lang := ""
	for i, a := range args {
		v, l, err := stringArg(a)
		if err != nil {
			return rdf.Node{}, err
		}
		if i == 0 {
			lang = l
		} else if l != lang {
			lang = ""
		}
		sb.WriteString(v)
	}
	return stringLike(sb.String(), lang), nil
}

func fnSubstr(args []rdf.Node) (rdf.Node, error) {
	v, lang, err := stringArg(args[0])
	if err != nil {
		return rdf.Node{}, err
	}
	start, ok := rdf.NumberOf(args[1])
	if !ok {
		return rdf.Node{}, errors.Wrapf(ErrType, "SUBSTR start %s", args[1])
	}
	runes := []rune(v)
	from := int(math.Round(start.Float())) - 1
	to := len(runes)
	if len(args) == 3 {
		length, ok := rdf.NumberOf(args[2])
		if !ok {
			return rdf.Node{}, errors.Wrapf(ErrType, "SUBSTR length %s", args[2])
		}
		to = from + int(math.Round(length.Float()))
	}
	from = max(from, 0)
	to = min(to, len(runes))
	if from >= to {
		return stringLike("", lang), nil
	}
	return stringLike(string(runes[from:to]), lang), nil
}

func numericMap(fn func(float64) float64) builtin {
	return func(args []rdf.Node) (rdf.Node, error) {
		num, ok := rdf.NumberOf(args[0])
		if !ok {
			return rdf.Node{}, errors.Wrapf(ErrType, "%s is not numeric", args[0])
		}
		v := fn(num.Float())
		switch num.Type {
		case rdf.Integer:
			return rdf.NewInteger(int64(v)), nil
		case rdf.Decimal:
			return rdf.NewDecimal(v), nil
		default:
			return rdf.NewDouble(v), nil
		}
	}
}

func roundHalfUp(v float64) float64 {
	return math.Floor(v + 0.5)
}

func (ev *Evaluator) fnRegex(args []rdf.Node) (rdf.Node, error) {
	if len(args) < 2 || len(args) > 3 {
		return rdf.Node{}, arity("REGEX", len(args))
	}
	text, _, err := stringArg(args[0])
	if err != nil {
		return rdf.Node{}, err
	}
	pattern, _, err := stringArg(args[1])
	if err != nil {
		return rdf.Node{}, err
	}
	flags := ""
	if len(args) == 3 {
		if flags, _, err = stringArg(args[2]); err != nil {
			return rdf.Node{}, err
		}
	}
	re, err := ev.regex(pattern, flags)
	if err != nil {
		return rdf.Node{}, err
	}
	return rdf.NewBoolean(re.MatchString(text)), nil
}

package store

import (
	"fmt"
	"io"
	"slices"
	"sort"
	"strings"

	"github.com/coolbeans/quarry/pkg/errors"
	"github.com/coolbeans/quarry/pkg/rdf"
)

// PrefixMapping associates a short prefix label with its full namespace URI.
type PrefixMapping struct {
	Prefix    string
	Namespace string
}

// TurtleSerializer writes a store as TriG: the default graph as plain Turtle
// statements, each named graph as a `<graph> { ... }` block.
type TurtleSerializer struct {
	prefixMappings []PrefixMapping
	namespaceIndex map[string]string // namespace -> prefix
}

// TurtleOption is a functional option for configuring the TurtleSerializer.
type TurtleOption func(*TurtleSerializer)

// NewTurtleSerializer creates a TurtleSerializer with the rdf, rdfs and xsd
// prefixes declared.
func NewTurtleSerializer(options ...TurtleOption) *TurtleSerializer {
	serializer := &TurtleSerializer{
		prefixMappings: defaultPrefixMappings(),
	}

	for _, option := range options {
		option(serializer)
	}

	serializer.rebuildIndexes()

	return serializer
}

// WithPrefix adds or overrides a prefix mapping.
func WithPrefix(prefix, namespace string) TurtleOption {
	return func(serializer *TurtleSerializer) {
		serializer.prefixMappings = slices.DeleteFunc(serializer.prefixMappings, func(m PrefixMapping) bool {
			return m.Prefix == prefix
		})
		serializer.prefixMappings = append(serializer.prefixMappings, PrefixMapping{
			Prefix:    prefix,
			Namespace: namespace,
		})
	}
}

// WithoutDefaultPrefixes clears default prefixes so only custom ones are used.
func WithoutDefaultPrefixes() TurtleOption {
	return func(serializer *TurtleSerializer) {
		serializer.prefixMappings = nil
	}
}

func defaultPrefixMappings() []PrefixMapping {
	return []PrefixMapping{
		{Prefix: "rdf", Namespace: rdf.NamespaceRDF},
		{Prefix: "rdfs", Namespace: rdf.NamespaceRDFS},
		{Prefix: "xsd", Namespace: rdf.NamespaceXSD},
	}
}

func (serializer *TurtleSerializer) rebuildIndexes() {
	serializer.namespaceIndex = make(map[string]string, len(serializer.prefixMappings))
	for _, mapping := range serializer.prefixMappings {
		serializer.namespaceIndex[mapping.Namespace] = mapping.Prefix
	}
}

// Serialize writes every quad of src to w.
func (serializer *TurtleSerializer) Serialize(w io.Writer, src QuadStore) error {
	graphs, err := groupQuads(src)
	if err != nil {
		return err
	}

	var builder strings.Builder
	serializer.writePrefixDeclarations(&builder)

	graphNames := make([]rdf.Node, 0, len(graphs))
	for g := range graphs {
		graphNames = append(graphNames, g)
	}
	// Default graph first, then named graphs in term order.
	sort.Slice(graphNames, func(i, j int) bool {
		if graphNames[i].IsDefaultGraph() != graphNames[j].IsDefaultGraph() {
			return graphNames[i].IsDefaultGraph()
		}
		return rdf.Compare(graphNames[i], graphNames[j]) < 0
	})

	for graphIndex, g := range graphNames {
		if graphIndex > 0 {
			builder.WriteString("\n")
		}
		indent := ""
		if !g.IsDefaultGraph() {
			builder.WriteString(serializer.formatNode(g) + " {\n")
			indent = "    "
		}
		subjects := graphs[g]
		for subjectIndex, subject := range sortedNodes(subjects) {
			if subjectIndex > 0 {
				builder.WriteString("\n")
			}
			serializer.writeSubjectGroup(&builder, indent, subject, subjects[subject])
		}
		if !g.IsDefaultGraph() {
			builder.WriteString("}\n")
		}
	}

	_, err = io.WriteString(w, builder.String())
	return err
}

// groupQuads organizes quads into graph -> subject -> predicate -> []object.
func groupQuads(src QuadStore) (map[rdf.Node]map[rdf.Node]map[rdf.Node][]rdf.Node, error) {
	graphs := make(map[rdf.Node]map[rdf.Node]map[rdf.Node][]rdf.Node)
	for q, err := range src.Find(rdf.Node{}, rdf.Node{}, rdf.Node{}, rdf.Node{}) {
		if err != nil {
			return nil, errors.Wrap(err, "read quads for serialization")
		}
		subjects, ok := graphs[q.Graph]
		if !ok {
			subjects = make(map[rdf.Node]map[rdf.Node][]rdf.Node)
			graphs[q.Graph] = subjects
		}
		predicates, ok := subjects[q.Subject]
		if !ok {
			predicates = make(map[rdf.Node][]rdf.Node)
			subjects[q.Subject] = predicates
		}
		predicates[q.Predicate] = append(predicates[q.Predicate], q.Object)
	}
	return graphs, nil
}

func (serializer *TurtleSerializer) writePrefixDeclarations(builder *strings.Builder) {
	sortedPrefixes := slices.Clone(serializer.prefixMappings)
	sort.Slice(sortedPrefixes, func(i, j int) bool {
		return sortedPrefixes[i].Prefix < sortedPrefixes[j].Prefix
	})

	for _, mapping := range sortedPrefixes {
		fmt.Fprintf(builder, "@prefix %s: <%s> .\n", mapping.Prefix, mapping.Namespace)
	}

	if len(serializer.prefixMappings) > 0 {
		builder.WriteString("\n")
	}
}

func (serializer *TurtleSerializer) writeSubjectGroup(
	builder *strings.Builder,
	indent string,
	subject rdf.Node,
	predicateObjectMap map[rdf.Node][]rdf.Node,
) {
	builder.WriteString(indent + serializer.formatNode(subject))

	for predicateIndex, predicate := range sortPredicatesTypeFirst(predicateObjectMap) {
		objects := predicateObjectMap[predicate]
		sort.Slice(objects, func(i, j int) bool { return rdf.Compare(objects[i], objects[j]) < 0 })

		if predicateIndex == 0 {
			builder.WriteString(" ")
		} else {
			builder.WriteString(" ;\n    " + indent)
		}

		builder.WriteString(serializer.formatPredicate(predicate))

		for objectIndex, object := range objects {
			if objectIndex > 0 {
				builder.WriteString(" ,\n        " + indent)
			} else {
				builder.WriteString(" ")
			}
			builder.WriteString(serializer.formatNode(object))
		}
	}

	builder.WriteString(" .\n")
}

// formatPredicate formats a predicate, using "a" shorthand for rdf:type.
func (serializer *TurtleSerializer) formatPredicate(predicate rdf.Node) string {
	if predicate.Value() == rdf.RDFType {
		return "a"
	}
	return serializer.formatNode(predicate)
}

// formatNode writes IRIs as prefixed names where a prefix applies, literals
// with compacted datatypes, and everything else in N-Triples form.
func (serializer *TurtleSerializer) formatNode(n rdf.Node) string {
	switch {
	case n.IsIRI():
		if compacted, ok := serializer.compactURI(n.Value()); ok {
			return compacted
		}
		return "<" + escapeIRI(n.Value()) + ">"
	case n.IsLiteral():
		quoted := formatLiteral(n.Value())
		switch {
		case n.Lang() != "":
			return quoted + "@" + n.Lang()
		case n.Datatype() == "" || n.Datatype() == rdf.XSDString:
			return quoted
		default:
			return quoted + "^^" + serializer.formatNode(rdf.NewIRI(n.Datatype()))
		}
	default:
		return n.String()
	}
}

// compactURI replaces a full namespace URI with its prefix form.
func (serializer *TurtleSerializer) compactURI(fullURI string) (string, bool) {
	// Try longest namespace match first for correctness
	bestPrefix := ""
	bestNamespace := ""
	for namespace, prefix := range serializer.namespaceIndex {
		if strings.HasPrefix(fullURI, namespace) && len(namespace) > len(bestNamespace) {
			localName := fullURI[len(namespace):]
			if isValidLocalName(localName) {
				bestPrefix = prefix
				bestNamespace = namespace
			}
		}
	}

	if bestNamespace != "" {
		return bestPrefix + ":" + fullURI[len(bestNamespace):], true
	}
	return "", false
}

// sortPredicatesTypeFirst sorts predicates with rdf:type first, then by IRI.
func sortPredicatesTypeFirst(predicateObjectMap map[rdf.Node][]rdf.Node) []rdf.Node {
	predicates := sortedNodes(predicateObjectMap)
	if i := slices.IndexFunc(predicates, func(p rdf.Node) bool { return p.Value() == rdf.RDFType }); i > 0 {
		typ := predicates[i]
		copy(predicates[1:i+1], predicates[:i])
		predicates[0] = typ
	}
	return predicates
}

// isValidLocalName checks if a string can follow a prefix unescaped.
func isValidLocalName(localName string) bool {
	if localName == "" || strings.HasSuffix(localName, ".") {
		return false
	}
	return !strings.ContainsAny(localName, " \t\n\r<>\"{}|^`\\/#?&=%~,;()[]'!$*+@")
}

// formatLiteral wraps a string value in Turtle-compliant double quotes.
func formatLiteral(value string) string {
	var builder strings.Builder
	builder.Grow(len(value) + 2 + len(value)/8)
	builder.WriteByte('"')

	for _, char := range value {
		switch char {
		case '\\':
			builder.WriteString(`\\`)
		case '"':
			builder.WriteString(`\"`)
		case '\n':
			builder.WriteString(`\n`)
		case '\r':
			builder.WriteString(`\r`)
		case '\t':
			builder.WriteString(`\t`)
		default:
			builder.WriteRune(char)
		}
	}

	builder.WriteByte('"')
	return builder.String()
}

// escapeIRI escapes characters not allowed in IRIs within angle brackets.
func escapeIRI(iri string) string {
	var builder strings.Builder
	builder.Grow(len(iri))

	for _, char := range iri {
		switch char {
		case '<':
			builder.WriteString(`\u003C`)
		case '>':
			builder.WriteString(`\u003E`)
		case '"':
			builder.WriteString(`\u0022`)
		case ' ':
			builder.WriteString(`\u0020`)
		case '{':
			builder.WriteString(`\u007B`)
		case '}':
			builder.WriteString(`\u007D`)
		default:
			builder.WriteRune(char)
		}
	}

	return builder.String()
}

// sortedNodes returns the keys of a map in term order.
func sortedNodes[V any](m map[rdf.Node]V) []rdf.Node {
	keys := make([]rdf.Node, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return rdf.Compare(keys[i], keys[j]) < 0 })
	return keys
}

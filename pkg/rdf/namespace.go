package rdf

// Namespace URIs.
const (
	// NamespaceRDF is the standard RDF namespace.
	NamespaceRDF = "http://www.w3.org/1999/02/22-rdf-syntax-ns#"

	// NamespaceRDFS is the RDF Schema namespace.
	NamespaceRDFS = "http://www.w3.org/2000/01/rdf-schema#"

	// NamespaceXSD is the XML Schema namespace for datatypes.
	NamespaceXSD = "http://www.w3.org/2001/XMLSchema#"
)

// Datatype IRIs.
const (
	XSDString             = NamespaceXSD + "string"
	XSDBoolean            = NamespaceXSD + "boolean"
	XSDInteger            = NamespaceXSD + "integer"
	XSDInt                = NamespaceXSD + "int"
	XSDLong               = NamespaceXSD + "long"
	XSDShort              = NamespaceXSD + "short"
	XSDByte               = NamespaceXSD + "byte"
	XSDNonNegativeInteger = NamespaceXSD + "nonNegativeInteger"
	XSDPositiveInteger    = NamespaceXSD + "positiveInteger"
	XSDNegativeInteger    = NamespaceXSD + "negativeInteger"
	XSDNonPositiveInteger = NamespaceXSD + "nonPositiveInteger"
	XSDDecimal            = NamespaceXSD + "decimal"
	XSDDouble             = NamespaceXSD + "double"
	XSDFloat              = NamespaceXSD + "float"
	XSDDateTime           = NamespaceXSD + "dateTime"

	RDFLangString = NamespaceRDF + "langString"
	RDFType       = NamespaceRDF + "type"
)

// DefaultPrefixes are the prefixes every query may use without declaring them.
var DefaultPrefixes = map[string]string{
	"rdf":  NamespaceRDF,
	"rdfs": NamespaceRDFS,
	"xsd":  NamespaceXSD,
}

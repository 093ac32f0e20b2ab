package store

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/coolbeans/quarry/pkg/errors"
	"github.com/coolbeans/quarry/pkg/rdf"
)

// GraphNode represents a resource in the graph visualization.
type GraphNode struct {
	ID       string            `json:"id"`
	Label    string            `json:"label"`
	Type     string            `json:"type"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// GraphEdge represents a link between two resources.
type GraphEdge struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Label  string `json:"label"`
	Type   string `json:"type"`
	Graph  string `json:"graph,omitempty"`
}

// GraphExport represents the complete graph for visualization.
type GraphExport struct {
	Nodes []GraphNode `json:"nodes"`
	Edges []GraphEdge `json:"edges"`
	Stats GraphStats  `json:"stats"`
}

// GraphStats contains summary statistics for the graph.
type GraphStats struct {
	TotalNodes  int            `json:"total_nodes"`
	TotalEdges  int            `json:"total_edges"`
	NodesByType map[string]int `json:"nodes_by_type"`
	EdgesByType map[string]int `json:"edges_by_type"`
}

const rdfsLabel = rdf.NamespaceRDFS + "label"

// maxMetadataValue bounds literal values copied into node metadata.
const maxMetadataValue = 100

// ExportGraph builds a node/edge view of every quad in src. IRIs and blank
// nodes become nodes; quads with a literal object become node metadata,
// except rdfs:label and rdf:type which set the label and type.
func ExportGraph(src QuadStore) (*GraphExport, error) {
	export := &GraphExport{
		Nodes: make([]GraphNode, 0),
		Edges: make([]GraphEdge, 0),
		Stats: GraphStats{
			NodesByType: make(map[string]int),
			EdgesByType: make(map[string]int),
		},
	}

	nodeMap := make(map[rdf.Node]*GraphNode)
	node := func(n rdf.Node) *GraphNode {
		if gn, ok := nodeMap[n]; ok {
			return gn
		}
		gn := &GraphNode{
			ID:       nodeID(n),
			Label:    extractURILabel(n.Value()),
			Type:     "Node",
			Metadata: make(map[string]string),
		}
		nodeMap[n] = gn
		return gn
	}

	for q, err := range src.Find(rdf.Node{}, rdf.Node{}, rdf.Node{}, rdf.Node{}) {
		if err != nil {
			return nil, errors.Wrap(err, "read quads for graph export")
		}
		subject := node(q.Subject)

		switch {
		case q.Predicate.Value() == rdfsLabel && q.Object.IsLiteral():
			subject.Label = q.Object.Value()
		case q.Predicate.Value() == rdf.RDFType && q.Object.IsIRI():
			subject.Type = extractURILabel(q.Object.Value())
		case q.Object.IsLiteral():
			if len(q.Object.Value()) < maxMetadataValue {
				subject.Metadata[extractURILabel(q.Predicate.Value())] = q.Object.Value()
			}
		default:
			node(q.Object)
			edge := GraphEdge{
				Source: subject.ID,
				Target: nodeID(q.Object),
				Label:  extractURILabel(q.Predicate.Value()),
				Type:   q.Predicate.Value(),
			}
			if !q.Graph.IsDefaultGraph() {
				edge.Graph = nodeID(q.Graph)
			}
			export.Edges = append(export.Edges, edge)
			export.Stats.EdgesByType[edge.Type]++
		}
	}

	for _, gn := range nodeMap {
		if len(gn.Metadata) == 0 {
			gn.Metadata = nil
		}
		export.Nodes = append(export.Nodes, *gn)
		export.Stats.NodesByType[gn.Type]++
	}

	sort.Slice(export.Nodes, func(i, j int) bool { return export.Nodes[i].ID < export.Nodes[j].ID })
	sort.Slice(export.Edges, func(i, j int) bool {
		a, b := export.Edges[i], export.Edges[j]
		if a.Source != b.Source {
			return a.Source < b.Source
		}
		if a.Type != b.Type {
			return a.Type < b.Type
		}
		if a.Target != b.Target {
			return a.Target < b.Target
		}
		return a.Graph < b.Graph
	})

	export.Stats.TotalNodes = len(export.Nodes)
	export.Stats.TotalEdges = len(export.Edges)

	return export, nil
}

// nodeID is the IRI for IRIs and "_:label" for blank nodes.
func nodeID(n rdf.Node) string {
	if n.IsBlank() {
		return n.String()
	}
	return n.Value()
}

// extractURILabel extracts a label from a URI.
func extractURILabel(uri string) string {
	// Find the last segment
	if idx := strings.LastIndex(uri, "#"); idx != -1 && idx < len(uri)-1 {
		return uri[idx+1:]
	}
	if idx := strings.LastIndex(uri, "/"); idx != -1 && idx < len(uri)-1 {
		return uri[idx+1:]
	}
	if idx := strings.LastIndex(uri, ":"); idx != -1 && idx < len(uri)-1 {
		return uri[idx+1:]
	}
	return uri
}

// ToJSON serializes the graph export to JSON.
func (g *GraphExport) ToJSON() ([]byte, error) {
	return json.MarshalIndent(g, "", "  ")
}

// dotPalette colors node types in order of first appearance.
var dotPalette = []string{
	"lightblue", "lightgreen", "lightyellow", "lightpink",
	"lightcoral", "lightsalmon", "lavender", "gold",
}

// ToDOT exports the graph in DOT format for Graphviz.
func (g *GraphExport) ToDOT() string {
	var sb strings.Builder

	sb.WriteString("digraph Dataset {\n")
	sb.WriteString("  rankdir=LR;\n")
	sb.WriteString("  node [shape=box];\n\n")

	typeColors := make(map[string]string)
	for _, node := range g.Nodes {
		color, ok := typeColors[node.Type]
		if !ok {
			color = "white"
			if node.Type != "Node" {
				color = dotPalette[len(typeColors)%len(dotPalette)]
				typeColors[node.Type] = color
			}
		}
		label := node.Label
		if len(label) > 30 {
			label = label[:30] + "..."
		}
		fmt.Fprintf(&sb, "  %s [label=%s style=filled fillcolor=%s];\n",
			dotQuote(node.ID), dotQuote(label), color)
	}

	sb.WriteString("\n")

	for _, edge := range g.Edges {
		fmt.Fprintf(&sb, "  %s -> %s [label=%s];\n",
			dotQuote(edge.Source), dotQuote(edge.Target), dotQuote(edge.Label))
	}

	sb.WriteString("}\n")
	return sb.String()
}

func dotQuote(s string) string {
	return `"` + strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`).Replace(s) + `"`
}

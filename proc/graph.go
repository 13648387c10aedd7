package proc

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// Graph is the concrete resource graph a procedure is compiled against:
// the vessels, devices and connections of the physical platform. The
// compile phase resolves graph-derived step properties against it, and
// its content hash binds a compiled plan to the exact topology it was
// compiled for.
type Graph struct {
	// Nodes maps node id to its attributes (class, capacity, etc.).
	Nodes map[string]GraphNode `json:"nodes"`

	// Edges lists directed connections between nodes.
	Edges []GraphEdge `json:"edges,omitempty"`
}

// GraphNode is one resource in the graph.
type GraphNode struct {
	// Class is the node's hardware class (e.g. "reactor", "valve").
	Class string `json:"class"`

	// Attrs holds free-form node attributes.
	Attrs map[string]string `json:"attrs,omitempty"`
}

// GraphEdge is a directed connection between two nodes.
type GraphEdge struct {
	From string `json:"from"`
	To   string `json:"to"`

	// Port qualifies the connection on the source side, if any.
	Port string `json:"port,omitempty"`
}

// NewGraph creates an empty graph.
func NewGraph() *Graph {
	return &Graph{Nodes: make(map[string]GraphNode)}
}

// AddNode inserts or replaces a node.
func (g *Graph) AddNode(id string, n GraphNode) {
	g.Nodes[id] = n
}

// AddEdge appends a directed edge.
func (g *Graph) AddEdge(from, to, port string) {
	g.Edges = append(g.Edges, GraphEdge{From: from, To: to, Port: port})
}

// Node returns a node and whether it exists.
func (g *Graph) Node(id string) (GraphNode, bool) {
	n, ok := g.Nodes[id]
	return n, ok
}

// NodesOfClass returns the ids of all nodes of the given class, sorted.
func (g *Graph) NodesOfClass(class string) []string {
	var out []string
	for id, n := range g.Nodes {
		if n.Class == class {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

// Neighbors returns the ids reachable by one outgoing edge from id,
// sorted.
func (g *Graph) Neighbors(id string) []string {
	var out []string
	for _, e := range g.Edges {
		if e.From == id {
			out = append(out, e.To)
		}
	}
	sort.Strings(out)
	return out
}

// Hash returns the hex SHA-256 of the graph's canonical serialization.
// Nodes and edges are rendered in sorted order so the hash depends only
// on content, not on construction order. Two graphs with equal hashes
// are topologically identical for planning purposes.
func (g *Graph) Hash() string {
	var b strings.Builder

	ids := make([]string, 0, len(g.Nodes))
	for id := range g.Nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		n := g.Nodes[id]
		fmt.Fprintf(&b, "n:%s:%s", id, n.Class)
		keys := make([]string, 0, len(n.Attrs))
		for k := range n.Attrs {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, ":%s=%s", k, n.Attrs[k])
		}
		b.WriteByte('\n')
	}

	edges := make([]string, 0, len(g.Edges))
	for _, e := range g.Edges {
		edges = append(edges, fmt.Sprintf("e:%s>%s:%s", e.From, e.To, e.Port))
	}
	sort.Strings(edges)
	for _, e := range edges {
		b.WriteString(e)
		b.WriteByte('\n')
	}

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

package domain

// Edge is a directed link between two nodes.
// Edges describe the graph for validation and visualization; the authoritative
// transition of a Decision is its match table.
type Edge struct {
	From string `json:"from" yaml:"from"`
	To   string `json:"to" yaml:"to"`
}

// FlowGraph is an immutable conversation graph.
type FlowGraph struct {
	ID      string
	Version int
	Name    string

	nodes []Node
	edges []Edge
	index map[string]Node
}

// NewFlowGraph builds a graph from its nodes and edges.
// It does not validate the structure; see the validator package.
// When two nodes share an ID the first one wins in lookups.
func NewFlowGraph(id string, version int, name string, nodes []Node, edges []Edge) *FlowGraph {
	g := &FlowGraph{
		ID:      id,
		Version: version,
		Name:    name,
		nodes:   append([]Node(nil), nodes...),
		edges:   append([]Edge(nil), edges...),
		index:   make(map[string]Node, len(nodes)),
	}
	for _, n := range g.nodes {
		if n == nil {
			continue
		}
		if _, exists := g.index[n.NodeID()]; !exists {
			g.index[n.NodeID()] = n
		}
	}
	return g
}

// WithVersion returns a copy of the graph stamped with another version.
func (g *FlowGraph) WithVersion(version int) *FlowGraph {
	return NewFlowGraph(g.ID, version, g.Name, g.nodes, g.edges)
}

// Node looks up a node by ID.
func (g *FlowGraph) Node(id string) (Node, bool) {
	if g == nil {
		return nil, false
	}
	n, ok := g.index[id]
	return n, ok
}

// Nodes returns the nodes in declaration order.
func (g *FlowGraph) Nodes() []Node {
	return append([]Node(nil), g.nodes...)
}

// Edges returns the declared edges.
func (g *FlowGraph) Edges() []Edge {
	return append([]Edge(nil), g.edges...)
}

// NodeIDs returns node IDs in declaration order.
func (g *FlowGraph) NodeIDs() []string {
	ids := make([]string, 0, len(g.nodes))
	for _, n := range g.nodes {
		if n != nil {
			ids = append(ids, n.NodeID())
		}
	}
	return ids
}

// EntryCandidates returns every node that nothing in the graph points at.
// A valid graph has exactly one.
func (g *FlowGraph) EntryCandidates() []string {
	incoming := make(map[string]bool)
	for _, n := range g.nodes {
		if n == nil {
			continue
		}
		for _, t := range Targets(n) {
			incoming[t] = true
		}
	}
	for _, e := range g.edges {
		incoming[e.To] = true
	}

	var out []string
	seen := make(map[string]bool)
	for _, n := range g.nodes {
		if n == nil || seen[n.NodeID()] {
			continue
		}
		seen[n.NodeID()] = true
		if !incoming[n.NodeID()] {
			out = append(out, n.NodeID())
		}
	}
	return out
}

// Entry returns the entry node ID, or "" if there is not exactly one candidate.
func (g *FlowGraph) Entry() string {
	if g == nil {
		return ""
	}
	c := g.EntryCandidates()
	if len(c) != 1 {
		return ""
	}
	return c[0]
}

// Successors returns the outgoing node IDs of id, combining node references and edges.
func (g *FlowGraph) Successors(id string) []string {
	n, ok := g.Node(id)
	if !ok {
		return nil
	}
	seen := make(map[string]bool)
	var out []string
	for _, t := range Targets(n) {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	for _, e := range g.edges {
		if e.From == id && !seen[e.To] {
			seen[e.To] = true
			out = append(out, e.To)
		}
	}
	return out
}

// Package graph is the committed workflow model: typed nodes, directed edges,
// and nested phase sub-graphs, kept acyclic by guarding every edge insertion.
//
// Nodes and edges live in ordered slices indexed by id; adjacency is stored as
// edge ids keyed by node id, so no node ever references another node directly.
package graph

import (
	"github.com/google/uuid"
)

// Graph holds nodes and edges of one scope. A phase node's sub-graph is a
// separate Graph, so an edge can never name a node of another scope. The zero
// value is an empty graph ready to use.
type Graph struct {
	nodes     []Node
	nodeIndex map[string]int
	edges     []Edge
	edgeIndex map[string]int
	out       map[string][]string // node id → outgoing edge ids
	in        map[string][]string // node id → incoming edge ids
}

// New allocates an empty Graph.
func New() *Graph {
	g := &Graph{}
	g.init()
	return g
}

func (g *Graph) init() {
	if g.nodeIndex == nil {
		g.nodeIndex = make(map[string]int)
		g.edgeIndex = make(map[string]int)
		g.out = make(map[string][]string)
		g.in = make(map[string][]string)
	}
}

// Node returns a node by id. The returned value shares its Config map and
// SubGraph with the graph; treat it as read-only.
func (g *Graph) Node(id string) (Node, bool) {
	i, ok := g.nodeIndex[id]
	if !ok {
		return Node{}, false
	}
	return g.nodes[i], true
}

// Edge returns an edge by id.
func (g *Graph) Edge(id string) (Edge, bool) {
	i, ok := g.edgeIndex[id]
	if !ok {
		return Edge{}, false
	}
	return g.edges[i], true
}

// Nodes returns all nodes in insertion order.
func (g *Graph) Nodes() []Node {
	out := make([]Node, len(g.nodes))
	copy(out, g.nodes)
	return out
}

// Edges returns all edges in insertion order.
func (g *Graph) Edges() []Edge {
	out := make([]Edge, len(g.edges))
	copy(out, g.edges)
	return out
}

// NodeCount returns the number of nodes in this scope.
func (g *Graph) NodeCount() int { return len(g.nodes) }

// EdgeCount returns the number of edges in this scope.
func (g *Graph) EdgeCount() int { return len(g.edges) }

// Outgoing returns the edges leaving id.
func (g *Graph) Outgoing(id string) []Edge { return g.lookupEdges(g.out[id]) }

// Incoming returns the edges entering id.
func (g *Graph) Incoming(id string) []Edge { return g.lookupEdges(g.in[id]) }

// Successors returns the ids of the direct successors of id.
func (g *Graph) Successors(id string) []string {
	ids := make([]string, 0, len(g.out[id]))
	for _, e := range g.Outgoing(id) {
		ids = append(ids, e.To)
	}
	return ids
}

// Predecessors returns the ids of the direct predecessors of id.
func (g *Graph) Predecessors(id string) []string {
	ids := make([]string, 0, len(g.in[id]))
	for _, e := range g.Incoming(id) {
		ids = append(ids, e.From)
	}
	return ids
}

// Roots returns the nodes with no incoming edge.
func (g *Graph) Roots() []Node {
	var out []Node
	for _, n := range g.nodes {
		if len(g.in[n.ID]) == 0 {
			out = append(out, n)
		}
	}
	return out
}

// Leaves returns the nodes with no outgoing edge.
func (g *Graph) Leaves() []Node {
	var out []Node
	for _, n := range g.nodes {
		if len(g.out[n.ID]) == 0 {
			out = append(out, n)
		}
	}
	return out
}

// HasEdge reports whether a direct edge from → to exists.
func (g *Graph) HasEdge(from, to string) bool {
	for _, id := range g.out[from] {
		if g.edges[g.edgeIndex[id]].To == to {
			return true
		}
	}
	return false
}

func (g *Graph) lookupEdges(ids []string) []Edge {
	out := make([]Edge, 0, len(ids))
	for _, id := range ids {
		out = append(out, g.edges[g.edgeIndex[id]])
	}
	return out
}

// AddNode inserts n. The id must be new to this scope, the kind valid, and a
// sub-graph is only accepted on phase nodes. An empty status becomes idle.
func (g *Graph) AddNode(n Node) error {
	if n.ID == "" {
		return &NodeError{Err: ErrInvalidNode, Msg: "id is required"}
	}
	if _, exists := g.nodeIndex[n.ID]; exists {
		return &NodeError{NodeID: n.ID, Err: ErrDuplicate}
	}
	n, err := checkNode(n)
	if err != nil {
		return err
	}
	if n.Status == "" {
		n.Status = StatusIdle
	}
	g.init()
	g.nodeIndex[n.ID] = len(g.nodes)
	g.nodes = append(g.nodes, n)
	return nil
}

// checkNode normalizes the kind and enforces the sub-graph rule.
func checkNode(n Node) (Node, error) {
	kind, err := ParseKind(string(n.Kind))
	if err != nil {
		return n, &NodeError{NodeID: n.ID, Err: ErrInvalidNode, Msg: err.Error()}
	}
	n.Kind = kind
	if n.SubGraph != nil && n.Kind != KindPhase {
		return n, nodeErrf(n.ID, ErrInvalidNode, "sub-graph on %s node", n.Kind)
	}
	return n, nil
}

// UpdateNode applies fn to a deep copy of the node and commits it if it is
// still valid, so a rejected edit leaves the committed node untouched. The id
// cannot be changed.
func (g *Graph) UpdateNode(id string, fn func(*Node)) error {
	i, ok := g.nodeIndex[id]
	if !ok {
		return &NodeError{NodeID: id, Err: ErrUnknownNode}
	}
	n := g.nodes[i].clone()
	fn(&n)
	if n.ID != id {
		return nodeErrf(id, ErrInvalidNode, "id cannot change to %q", n.ID)
	}
	n, err := checkNode(n)
	if err != nil {
		return err
	}
	g.nodes[i] = n
	return nil
}

// RemoveNode deletes a node and every edge touching it.
func (g *Graph) RemoveNode(id string) error {
	if _, ok := g.nodeIndex[id]; !ok {
		return &NodeError{NodeID: id, Err: ErrUnknownNode}
	}
	drop := make(map[string]bool)
	for _, eid := range g.out[id] {
		drop[eid] = true
	}
	for _, eid := range g.in[id] {
		drop[eid] = true
	}

	nodes := g.nodes[:0]
	for _, n := range g.nodes {
		if n.ID != id {
			nodes = append(nodes, n)
		}
	}
	g.nodes = nodes

	edges := make([]Edge, 0, len(g.edges))
	for _, e := range g.edges {
		if !drop[e.ID] {
			edges = append(edges, e)
		}
	}
	g.edges = edges
	g.reindex()
	return nil
}

// AddEdge commits e after the cycle guard approves it. An empty id is replaced
// by a generated one; the committed edge is returned.
func (g *Graph) AddEdge(e Edge) (Edge, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if _, exists := g.edgeIndex[e.ID]; exists {
		return Edge{}, edgeErr(e, ErrDuplicate)
	}
	if _, ok := g.nodeIndex[e.From]; !ok {
		return Edge{}, edgeErr(e, &NodeError{NodeID: e.From, Err: ErrUnknownNode})
	}
	if _, ok := g.nodeIndex[e.To]; !ok {
		return Edge{}, edgeErr(e, &NodeError{NodeID: e.To, Err: ErrUnknownNode})
	}
	if e.From == e.To {
		return Edge{}, edgeErr(e, ErrSelfLoop)
	}
	if g.HasEdge(e.From, e.To) {
		return Edge{}, edgeErr(e, ErrDuplicate)
	}
	if WouldCreateCycle(g, e.From, e.To) {
		return Edge{}, edgeErr(e, ErrCycle)
	}
	g.init()
	g.edgeIndex[e.ID] = len(g.edges)
	g.edges = append(g.edges, e)
	g.out[e.From] = append(g.out[e.From], e.ID)
	g.in[e.To] = append(g.in[e.To], e.ID)
	return e, nil
}

// RemoveEdge deletes an edge by id.
func (g *Graph) RemoveEdge(id string) error {
	if _, ok := g.edgeIndex[id]; !ok {
		return edgeErr(Edge{ID: id}, ErrUnknownEdge)
	}
	edges := make([]Edge, 0, len(g.edges)-1)
	for _, e := range g.edges {
		if e.ID != id {
			edges = append(edges, e)
		}
	}
	g.edges = edges
	g.reindex()
	return nil
}

// ApplyStatuses writes run results back into the committed nodes. Unknown ids
// are ignored.
func (g *Graph) ApplyStatuses(statuses map[string]Status) {
	for id, st := range statuses {
		if i, ok := g.nodeIndex[id]; ok {
			g.nodes[i].Status = st
		}
	}
}

// Clone returns a deep, independently owned copy, sub-graphs included.
func (g *Graph) Clone() *Graph {
	c := New()
	c.nodes = make([]Node, 0, len(g.nodes))
	for _, n := range g.nodes {
		c.nodes = append(c.nodes, n.clone())
	}
	c.edges = make([]Edge, len(g.edges))
	copy(c.edges, g.edges)
	c.reindex()
	return c
}

func (g *Graph) reindex() {
	g.nodeIndex = make(map[string]int, len(g.nodes))
	for i, n := range g.nodes {
		g.nodeIndex[n.ID] = i
	}
	g.edgeIndex = make(map[string]int, len(g.edges))
	g.out = make(map[string][]string)
	g.in = make(map[string][]string)
	for i, e := range g.edges {
		g.edgeIndex[e.ID] = i
		g.out[e.From] = append(g.out[e.From], e.ID)
		g.in[e.To] = append(g.in[e.To], e.ID)
	}
}

// Package analyze holds structural checks for any graph of nodes and edges.
//
// The functions work on a plain projection (Graph) rather than on a concrete
// model so that unrelated features can share them: workflow graphs, task
// dependency boards, and anything else that can list its node ids, optional
// parent links, and directed edges.
package analyze

// Node is a vertex in the projection. Parent is an optional containment link
// (empty when the node has no parent).
type Node struct {
	ID     string `json:"id"`
	Parent string `json:"parent,omitempty"`
}

// Edge is a directed link From → To.
type Edge struct {
	ID   string `json:"id"`
	From string `json:"from"`
	To   string `json:"to"`
}

// Graph is the projection every analyzer function accepts.
// Node order is significant: it is used to break ties deterministically.
type Graph struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// nodeSet returns the set of node ids and the position of each id in g.Nodes.
func (g Graph) nodeSet() map[string]int {
	pos := make(map[string]int, len(g.Nodes))
	for i, n := range g.Nodes {
		if _, dup := pos[n.ID]; !dup {
			pos[n.ID] = i
		}
	}
	return pos
}

// adjacency builds an outgoing list restricted to edges whose endpoints both exist.
func (g Graph) adjacency(known map[string]int) map[string][]string {
	out := make(map[string][]string, len(known))
	for _, e := range g.Edges {
		if _, ok := known[e.From]; !ok {
			continue
		}
		if _, ok := known[e.To]; !ok {
			continue
		}
		out[e.From] = append(out[e.From], e.To)
	}
	return out
}

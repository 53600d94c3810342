package graph

// WouldCreateCycle reports whether committing an edge from → to would close a
// cycle, i.e. whether to already reaches from through existing edges. An edge
// from a node to itself is always a cycle.
//
// AddEdge consults this before committing, which keeps every committed Graph
// acyclic.
func WouldCreateCycle(g *Graph, from, to string) bool {
	if from == to {
		return true
	}
	seen := map[string]bool{to: true}
	queue := []string{to}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, next := range g.Successors(cur) {
			if next == from {
				return true
			}
			if !seen[next] {
				seen[next] = true
				queue = append(queue, next)
			}
		}
	}
	return false
}

package analyze

import (
	"errors"
	"fmt"
	"strings"
)

// ErrCyclic is returned by TopologicalSort when no total order exists.
var ErrCyclic = errors.New("graph is cyclic")

// TopologicalSort orders node ids so that every edge points forward (Kahn's
// algorithm). Ready nodes are taken in g.Nodes order. Edges with a missing
// endpoint are ignored. When a cycle blocks the sort, the error wraps ErrCyclic
// and names the nodes that could not be placed.
func TopologicalSort(g Graph) ([]string, error) {
	known := g.nodeSet()
	out := g.adjacency(known)

	indeg := make(map[string]int, len(known))
	for from := range out {
		for _, to := range out[from] {
			indeg[to]++
		}
	}

	// Ready set is kept ordered by node position for determinism.
	var ready []string
	seen := make(map[string]bool, len(known))
	for _, n := range g.Nodes {
		if seen[n.ID] {
			continue
		}
		seen[n.ID] = true
		if indeg[n.ID] == 0 {
			ready = append(ready, n.ID)
		}
	}

	order := make([]string, 0, len(known))
	for len(ready) > 0 {
		v := ready[0]
		ready = ready[1:]
		order = append(order, v)
		for _, w := range out[v] {
			indeg[w]--
			if indeg[w] == 0 {
				ready = insertByPosition(ready, w, known)
			}
		}
	}

	if len(order) != len(known) {
		placed := make(map[string]bool, len(order))
		for _, id := range order {
			placed[id] = true
		}
		var stuck []string
		for _, n := range g.Nodes {
			if !placed[n.ID] {
				stuck = append(stuck, n.ID)
				placed[n.ID] = true
			}
		}
		return nil, fmt.Errorf("%w: unresolved nodes %s", ErrCyclic, strings.Join(stuck, ", "))
	}
	return order, nil
}

func insertByPosition(ready []string, id string, pos map[string]int) []string {
	i := len(ready)
	for i > 0 && pos[ready[i-1]] > pos[id] {
		i--
	}
	ready = append(ready, "")
	copy(ready[i+1:], ready[i:])
	ready[i] = id
	return ready
}

package analyze

import "sort"

// FindCycles returns every strongly connected component that contains a cycle:
// components with more than one node, plus single nodes with an edge to
// themselves. Ids inside a group are sorted; groups are sorted by their first id.
//
// Tarjan's algorithm runs with an explicit frame stack so deep graphs cannot
// overflow the goroutine stack.
func FindCycles(g Graph) [][]string {
	known := g.nodeSet()
	out := g.adjacency(known)

	selfLoop := make(map[string]bool)
	for _, e := range g.Edges {
		if e.From == e.To {
			if _, ok := known[e.From]; ok {
				selfLoop[e.From] = true
			}
		}
	}

	index := 0
	nodeIndex := make(map[string]int, len(known))
	lowLink := make(map[string]int, len(known))
	onStack := make(map[string]bool, len(known))
	var stack []string
	var groups [][]string

	type frame struct {
		id   string
		next int // next outgoing edge to visit
	}

	strongConnect := func(start string) {
		calls := []frame{{id: start}}
		nodeIndex[start], lowLink[start] = index, index
		index++
		stack = append(stack, start)
		onStack[start] = true

		for len(calls) > 0 {
			f := &calls[len(calls)-1]
			succ := out[f.id]
			if f.next < len(succ) {
				w := succ[f.next]
				f.next++
				if _, seen := nodeIndex[w]; !seen {
					nodeIndex[w], lowLink[w] = index, index
					index++
					stack = append(stack, w)
					onStack[w] = true
					calls = append(calls, frame{id: w})
				} else if onStack[w] && nodeIndex[w] < lowLink[f.id] {
					lowLink[f.id] = nodeIndex[w]
				}
				continue
			}

			// All successors visited: close the frame.
			v := f.id
			if lowLink[v] == nodeIndex[v] {
				var scc []string
				for {
					w := stack[len(stack)-1]
					stack = stack[:len(stack)-1]
					onStack[w] = false
					scc = append(scc, w)
					if w == v {
						break
					}
				}
				if len(scc) > 1 || selfLoop[v] {
					sort.Strings(scc)
					groups = append(groups, scc)
				}
			}
			calls = calls[:len(calls)-1]
			if len(calls) > 0 {
				parent := calls[len(calls)-1].id
				if lowLink[v] < lowLink[parent] {
					lowLink[parent] = lowLink[v]
				}
			}
		}
	}

	for _, n := range g.Nodes {
		if _, seen := nodeIndex[n.ID]; !seen {
			strongConnect(n.ID)
		}
	}

	sort.Slice(groups, func(i, j int) bool { return groups[i][0] < groups[j][0] })
	return groups
}

package config

import (
	"fmt"
	"strings"
)

// Validate checks the catalog for:
//   - Required fields (version, workflow/node ids, node kinds, edge endpoints)
//   - Duplicate workflow ids, and duplicate node or edge ids within one scope
//   - Sub-graphs attached to anything other than a phase node
//
// Dangling edges and cycles are not rejected here; graph.Build reports and
// repairs the former and refuses the latter.
func Validate(cfg *Catalog) error {
	if cfg.Version == "" {
		return fmt.Errorf("config: version is required")
	}
	ids := make(map[string]string) // workflow id → location
	var errs []string

	for i, wf := range cfg.Workflows {
		if wf.ID == "" {
			errs = append(errs, fmt.Sprintf("workflows[%d]: id is required", i))
			continue
		}
		loc := fmt.Sprintf("workflow %s", wf.ID)
		if prev, ok := ids[wf.ID]; ok {
			errs = append(errs, fmt.Sprintf("duplicate workflow id %q (first seen at %s, again at %s)", wf.ID, prev, loc))
		} else {
			ids[wf.ID] = loc
		}
		validateGraph(wf.GraphDef, loc, &errs)
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

func validateGraph(g GraphDef, scope string, errs *[]string) {
	nodeIDs := make(map[string]struct{}, len(g.Nodes))
	for j, n := range g.Nodes {
		if n.ID == "" {
			*errs = append(*errs, fmt.Sprintf("%s.nodes[%d]: id is required", scope, j))
			continue
		}
		if _, dup := nodeIDs[n.ID]; dup {
			*errs = append(*errs, fmt.Sprintf("%s: duplicate node id %q", scope, n.ID))
		}
		nodeIDs[n.ID] = struct{}{}
		if n.Kind == "" {
			*errs = append(*errs, fmt.Sprintf("%s node %s: kind is required", scope, n.ID))
		}
		if n.SubGraph != nil {
			if !strings.EqualFold(strings.TrimSpace(n.Kind), "phase") {
				*errs = append(*errs, fmt.Sprintf("%s node %s: subgraph is only allowed on phase nodes", scope, n.ID))
				continue
			}
			validateGraph(*n.SubGraph, scope+"/"+n.ID, errs)
		}
	}

	edgeIDs := make(map[string]struct{}, len(g.Edges))
	for j, e := range g.Edges {
		if e.From == "" || e.To == "" {
			*errs = append(*errs, fmt.Sprintf("%s.edges[%d]: from and to are required", scope, j))
		}
		if e.ID == "" {
			continue
		}
		if _, dup := edgeIDs[e.ID]; dup {
			*errs = append(*errs, fmt.Sprintf("%s: duplicate edge id %q", scope, e.ID))
		}
		edgeIDs[e.ID] = struct{}{}
	}
}

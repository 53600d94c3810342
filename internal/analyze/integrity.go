package analyze

import (
	"fmt"
	"sort"
	"strings"
)

// Orphan is a node whose parent link names a node that does not exist.
type Orphan struct {
	NodeID string `json:"node_id"`
	Parent string `json:"parent"`
}

// FindingKind classifies a Validate result.
type FindingKind string

const (
	FindingMissingDependency FindingKind = "missing_dependency"
	FindingOrphanedComponent FindingKind = "orphaned_component"
	FindingCycle             FindingKind = "cycle"
)

// Finding is one problem reported by Validate.
type Finding struct {
	Kind    FindingKind `json:"kind"`
	IDs     []string    `json:"ids"`
	Message string      `json:"message"`
}

// FindMissingDependencies returns the sorted, de-duplicated ids that edges
// reference but that are not nodes of g.
func FindMissingDependencies(g Graph) []string {
	known := g.nodeSet()
	missing := make(map[string]struct{})
	for _, e := range g.Edges {
		if _, ok := known[e.From]; !ok {
			missing[e.From] = struct{}{}
		}
		if _, ok := known[e.To]; !ok {
			missing[e.To] = struct{}{}
		}
	}
	out := make([]string, 0, len(missing))
	for id := range missing {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// FindOrphanedComponents returns nodes whose Parent is set but absent from g,
// in node order.
func FindOrphanedComponents(g Graph) []Orphan {
	known := g.nodeSet()
	var out []Orphan
	for _, n := range g.Nodes {
		if n.Parent == "" {
			continue
		}
		if _, ok := known[n.Parent]; !ok {
			out = append(out, Orphan{NodeID: n.ID, Parent: n.Parent})
		}
	}
	return out
}

// CleanupInvalidReferences returns a copy of g with dangling edges dropped and
// dangling parent links cleared. g itself is not modified.
func CleanupInvalidReferences(g Graph) Graph {
	known := g.nodeSet()
	repaired := Graph{
		Nodes: make([]Node, 0, len(g.Nodes)),
		Edges: make([]Edge, 0, len(g.Edges)),
	}
	for _, n := range g.Nodes {
		if n.Parent != "" {
			if _, ok := known[n.Parent]; !ok {
				n.Parent = ""
			}
		}
		repaired.Nodes = append(repaired.Nodes, n)
	}
	for _, e := range g.Edges {
		_, fromOK := known[e.From]
		_, toOK := known[e.To]
		if fromOK && toOK {
			repaired.Edges = append(repaired.Edges, e)
		}
	}
	return repaired
}

// Validate runs every check and returns the findings in a stable order:
// missing dependencies, orphans, then cycles.
func Validate(g Graph) []Finding {
	var findings []Finding
	if missing := FindMissingDependencies(g); len(missing) > 0 {
		findings = append(findings, Finding{
			Kind:    FindingMissingDependency,
			IDs:     missing,
			Message: fmt.Sprintf("edges reference unknown nodes: %s", strings.Join(missing, ", ")),
		})
	}
	for _, o := range FindOrphanedComponents(g) {
		findings = append(findings, Finding{
			Kind:    FindingOrphanedComponent,
			IDs:     []string{o.NodeID},
			Message: fmt.Sprintf("node %s has unknown parent %s", o.NodeID, o.Parent),
		})
	}
	for _, group := range FindCycles(g) {
		findings = append(findings, Finding{
			Kind:    FindingCycle,
			IDs:     group,
			Message: fmt.Sprintf("cycle among %s", strings.Join(group, ", ")),
		})
	}
	return findings
}

package graph

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/gyaneshwarpardhi/wavegraph/internal/analyze"
	"github.com/gyaneshwarpardhi/wavegraph/internal/config"
)

// ScopedFinding is an analyzer finding tagged with the scope it was found in
// ("" for the root, "phase/inner" for nested sub-graphs).
type ScopedFinding struct {
	Scope string `json:"scope"`
	analyze.Finding
}

// RawGraph is unvalidated node/edge data as a host hands it over, possibly
// with dangling references.
type RawGraph struct {
	Nodes []RawNode `json:"nodes"`
	Edges []Edge    `json:"edges"`
}

// RawNode mirrors Node with an unvalidated sub-graph.
type RawNode struct {
	ID       string            `json:"id"`
	Kind     Kind              `json:"kind"`
	Title    string            `json:"title"`
	Position Position          `json:"position"`
	Status   Status            `json:"status"`
	Config   map[string]string `json:"config,omitempty"`
	SubGraph *RawGraph         `json:"subgraph,omitempty"`
}

// Build converts a catalog workflow into a committed Graph through Import.
func Build(def config.WorkflowDef) (*Graph, []ScopedFinding, error) {
	raw, err := rawFromDef(def.GraphDef)
	if err != nil {
		return nil, nil, fmt.Errorf("workflow %s: %w", def.ID, err)
	}
	g, findings, err := Import(raw)
	if err != nil {
		return nil, findings, fmt.Errorf("workflow %s: %w", def.ID, err)
	}
	return g, findings, nil
}

func rawFromDef(def config.GraphDef) (RawGraph, error) {
	var raw RawGraph
	for _, nd := range def.Nodes {
		kind, err := ParseKind(nd.Kind)
		if err != nil {
			return RawGraph{}, &NodeError{NodeID: nd.ID, Err: ErrInvalidNode, Msg: err.Error()}
		}
		rn := RawNode{
			ID:       nd.ID,
			Kind:     kind,
			Title:    nd.Title,
			Position: Position{X: nd.X, Y: nd.Y},
			Config:   nd.Config,
		}
		if nd.SubGraph != nil {
			sub, err := rawFromDef(*nd.SubGraph)
			if err != nil {
				return RawGraph{}, fmt.Errorf("phase %s: %w", nd.ID, err)
			}
			rn.SubGraph = &sub
		}
		raw.Nodes = append(raw.Nodes, rn)
	}
	for _, ed := range def.Edges {
		raw.Edges = append(raw.Edges, Edge{ID: ed.ID, From: ed.From, To: ed.To})
	}
	return raw, nil
}

// ImportJSON decodes {"nodes", "edges"} tolerantly and commits it through Import.
func ImportJSON(data []byte) (*Graph, []ScopedFinding, error) {
	var raw RawGraph
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, nil, fmt.Errorf("import graph: %w", err)
	}
	return Import(raw)
}

// Import validates raw data with the analyzer before committing it. Edges that
// reference missing nodes are reported and dropped; a cyclic import is refused
// because the committed model must never be cyclic. Sub-graphs are imported
// recursively as their own scopes.
func Import(raw RawGraph) (*Graph, []ScopedFinding, error) {
	return importScope(raw, "")
}

func importScope(raw RawGraph, scope string) (*Graph, []ScopedFinding, error) {
	edges := make([]Edge, len(raw.Edges))
	copy(edges, raw.Edges)
	for i := range edges {
		if edges[i].ID == "" {
			edges[i].ID = uuid.NewString()
		}
	}

	proj := analyze.Graph{}
	for _, n := range raw.Nodes {
		proj.Nodes = append(proj.Nodes, analyze.Node{ID: n.ID})
	}
	for _, e := range edges {
		proj.Edges = append(proj.Edges, analyze.Edge{ID: e.ID, From: e.From, To: e.To})
	}

	var findings []ScopedFinding
	for _, f := range analyze.Validate(proj) {
		findings = append(findings, ScopedFinding{Scope: scope, Finding: f})
	}
	if cycles := analyze.FindCycles(proj); len(cycles) > 0 {
		groups := make([]string, 0, len(cycles))
		for _, c := range cycles {
			groups = append(groups, "["+strings.Join(c, ", ")+"]")
		}
		return nil, findings, fmt.Errorf("%w: scope %q contains %s", ErrCycle, scope, strings.Join(groups, " "))
	}

	kept := make(map[string]bool, len(edges))
	for _, e := range analyze.CleanupInvalidReferences(proj).Edges {
		kept[e.ID] = true
	}

	g := New()
	for _, rn := range raw.Nodes {
		n := Node{
			ID:       rn.ID,
			Kind:     rn.Kind,
			Title:    rn.Title,
			Position: rn.Position,
			Status:   rn.Status,
			Config:   rn.Config,
		}
		if rn.SubGraph != nil {
			sub, subFindings, err := importScope(*rn.SubGraph, joinScope(scope, rn.ID))
			findings = append(findings, subFindings...)
			if err != nil {
				return nil, findings, err
			}
			n.SubGraph = sub
		}
		if err := g.AddNode(n); err != nil {
			return nil, findings, err
		}
	}
	for _, e := range edges {
		if !kept[e.ID] {
			continue
		}
		if _, err := g.AddEdge(e); err != nil {
			return nil, findings, err
		}
	}
	return g, findings, nil
}

func joinScope(scope, id string) string {
	if scope == "" {
		return id
	}
	return scope + "/" + id
}

// Project returns the analyzer view of this scope. Workflow nodes carry no
// parent links; scope ownership is expressed by sub-graphs instead.
func (g *Graph) Project() analyze.Graph {
	proj := analyze.Graph{
		Nodes: make([]analyze.Node, 0, len(g.nodes)),
		Edges: make([]analyze.Edge, 0, len(g.edges)),
	}
	for _, n := range g.nodes {
		proj.Nodes = append(proj.Nodes, analyze.Node{ID: n.ID})
	}
	for _, e := range g.edges {
		proj.Edges = append(proj.Edges, analyze.Edge{ID: e.ID, From: e.From, To: e.To})
	}
	return proj
}

// Analyze validates g and every nested sub-graph.
func Analyze(g *Graph) []ScopedFinding {
	var out []ScopedFinding
	walkScopes(g, "", func(scope string, sg *Graph) {
		for _, f := range analyze.Validate(sg.Project()) {
			out = append(out, ScopedFinding{Scope: scope, Finding: f})
		}
	})
	return out
}

// TopologicalOrder returns the ids of this scope in dependency order.
func (g *Graph) TopologicalOrder() ([]string, error) {
	return analyze.TopologicalSort(g.Project())
}

// Repair returns a deep copy of g with dangling references removed in every
// scope, plus the ids of the edges that were dropped.
func Repair(g *Graph) (*Graph, []string) {
	c := g.Clone()
	var removed []string
	walkScopes(c, "", func(_ string, sg *Graph) {
		kept := make(map[string]bool, len(sg.edges))
		for _, e := range analyze.CleanupInvalidReferences(sg.Project()).Edges {
			kept[e.ID] = true
		}
		edges := make([]Edge, 0, len(sg.edges))
		for _, e := range sg.edges {
			if kept[e.ID] {
				edges = append(edges, e)
			} else {
				removed = append(removed, e.ID)
			}
		}
		sg.edges = edges
		sg.reindex()
	})
	return c, removed
}

func walkScopes(g *Graph, scope string, fn func(scope string, g *Graph)) {
	fn(scope, g)
	for _, n := range g.nodes {
		if n.SubGraph != nil {
			walkScopes(n.SubGraph, joinScope(scope, n.ID), fn)
		}
	}
}

package graph

import (
	"encoding/json"
	"fmt"
)

type graphJSON struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// MarshalJSON encodes the graph as {"nodes": [...], "edges": [...]}.
func (g *Graph) MarshalJSON() ([]byte, error) {
	doc := graphJSON{Nodes: g.nodes, Edges: g.edges}
	if doc.Nodes == nil {
		doc.Nodes = []Node{}
	}
	if doc.Edges == nil {
		doc.Edges = []Edge{}
	}
	return json.Marshal(doc)
}

// UnmarshalJSON decodes a graph strictly: every node and edge goes through
// AddNode/AddEdge, so a document that violates an invariant is rejected.
// Use Import for tolerant loading of possibly damaged data.
func (g *Graph) UnmarshalJSON(data []byte) error {
	var doc graphJSON
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	fresh := New()
	for _, n := range doc.Nodes {
		if err := fresh.AddNode(n); err != nil {
			return fmt.Errorf("decode graph: %w", err)
		}
	}
	for _, e := range doc.Edges {
		if _, err := fresh.AddEdge(e); err != nil {
			return fmt.Errorf("decode graph: %w", err)
		}
	}
	*g = *fresh
	return nil
}

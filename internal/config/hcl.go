package config

import (
	"fmt"

	"github.com/hashicorp/hcl/v2/hclsimple"
)

// HCL catalogs use labelled blocks instead of lists:
//
//	version = "v1"
//	workflow "onboarding" {
//	  node "start" { kind = "start" }
//	  node "a"     { kind = "task" }
//	  edge "e1"    { from = "start", to = "a" }
//	}
type hclCatalog struct {
	Version   string        `hcl:"version"`
	Runner    *hclRunner    `hcl:"runner,block"`
	Workflows []hclWorkflow `hcl:"workflow,block"`
}

type hclRunner struct {
	Workers      int `hcl:"workers,optional"`
	QueueDepth   int `hcl:"queue_depth,optional"`
	RunTimeoutMs int `hcl:"run_timeout_ms,optional"`
	HistoryLimit int `hcl:"history_limit,optional"`
}

type hclWorkflow struct {
	ID    string    `hcl:"id,label"`
	Title string    `hcl:"title,optional"`
	Nodes []hclNode `hcl:"node,block"`
	Edges []hclEdge `hcl:"edge,block"`
}

type hclGraph struct {
	Nodes []hclNode `hcl:"node,block"`
	Edges []hclEdge `hcl:"edge,block"`
}

type hclNode struct {
	ID       string            `hcl:"id,label"`
	Kind     string            `hcl:"kind"`
	Title    string            `hcl:"title,optional"`
	X        float64           `hcl:"x,optional"`
	Y        float64           `hcl:"y,optional"`
	Config   map[string]string `hcl:"config,optional"`
	SubGraph *hclGraph         `hcl:"subgraph,block"`
}

type hclEdge struct {
	ID   string `hcl:"id,label"`
	From string `hcl:"from"`
	To   string `hcl:"to"`
}

func decodeHCL(path string, data []byte) (*Catalog, error) {
	var doc hclCatalog
	if err := hclsimple.Decode(path, data, nil, &doc); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cat := &Catalog{Version: doc.Version}
	if doc.Runner != nil {
		cat.Runner = RunnerConf(*doc.Runner)
	}
	for _, w := range doc.Workflows {
		cat.Workflows = append(cat.Workflows, WorkflowDef{
			ID:       w.ID,
			Title:    w.Title,
			GraphDef: fromHCLGraph(hclGraph{Nodes: w.Nodes, Edges: w.Edges}),
		})
	}
	return cat, nil
}

func fromHCLGraph(g hclGraph) GraphDef {
	var out GraphDef
	for _, n := range g.Nodes {
		def := NodeDef{ID: n.ID, Kind: n.Kind, Title: n.Title, X: n.X, Y: n.Y, Config: n.Config}
		if n.SubGraph != nil {
			sub := fromHCLGraph(*n.SubGraph)
			def.SubGraph = &sub
		}
		out.Nodes = append(out.Nodes, def)
	}
	for _, e := range g.Edges {
		out.Edges = append(out.Edges, EdgeDef(e))
	}
	return out
}

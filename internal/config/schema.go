package config

// Catalog is the top-level workflow catalog document.
type Catalog struct {
	Version   string        `yaml:"version" toml:"version" json:"version"`
	Runner    RunnerConf    `yaml:"runner" toml:"runner" json:"runner"`
	Workflows []WorkflowDef `yaml:"workflows" toml:"workflows" json:"workflows"`
}

// RunnerConf holds tunable execution settings.
type RunnerConf struct {
	Workers      int `yaml:"workers" toml:"workers" json:"workers"`
	QueueDepth   int `yaml:"queue_depth" toml:"queue_depth" json:"queue_depth"`
	RunTimeoutMs int `yaml:"run_timeout_ms" toml:"run_timeout_ms" json:"run_timeout_ms"`
	HistoryLimit int `yaml:"history_limit" toml:"history_limit" json:"history_limit"`
}

// WorkflowDef is one named workflow graph.
type WorkflowDef struct {
	ID       string `yaml:"id" toml:"id" json:"id"`
	Title    string `yaml:"title" toml:"title" json:"title"`
	GraphDef `yaml:",inline"`
}

// GraphDef is the node/edge body shared by workflows and phase sub-graphs.
type GraphDef struct {
	Nodes []NodeDef `yaml:"nodes" toml:"nodes" json:"nodes"`
	Edges []EdgeDef `yaml:"edges" toml:"edges" json:"edges"`
}

// NodeDef describes a node. SubGraph is only meaningful for kind "phase".
type NodeDef struct {
	ID       string            `yaml:"id" toml:"id" json:"id"`
	Kind     string            `yaml:"kind" toml:"kind" json:"kind"`
	Title    string            `yaml:"title" toml:"title" json:"title"`
	X        float64           `yaml:"x" toml:"x" json:"x"`
	Y        float64           `yaml:"y" toml:"y" json:"y"`
	Config   map[string]string `yaml:"config,omitempty" toml:"config,omitempty" json:"config,omitempty"`
	SubGraph *GraphDef         `yaml:"subgraph,omitempty" toml:"subgraph,omitempty" json:"subgraph,omitempty"`
}

// EdgeDef is a directed edge. An empty ID is filled in at build time.
type EdgeDef struct {
	ID   string `yaml:"id" toml:"id" json:"id"`
	From string `yaml:"from" toml:"from" json:"from"`
	To   string `yaml:"to" toml:"to" json:"to"`
}

package graph

import (
	"fmt"
	"strings"
)

// Kind discriminates the six workflow node kinds.
type Kind string

const (
	KindStart    Kind = "start"
	KindEnd      Kind = "end"
	KindTask     Kind = "task"
	KindPhase    Kind = "phase"
	KindDecision Kind = "decision"
	KindParallel Kind = "parallel"
)

// Kinds lists every valid kind in declaration order.
var Kinds = []Kind{KindStart, KindEnd, KindTask, KindPhase, KindDecision, KindParallel}

// ParseKind maps a string onto the closed Kind set.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	for _, valid := range Kinds {
		if k == valid {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown node kind %q", s)
}

// Status is the execution status of a node.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusRunning Status = "running"
	StatusSuccess Status = "success"
	StatusError   Status = "error"
	StatusSkipped Status = "skipped"
)

// Terminal reports whether no further transition can leave s.
func (s Status) Terminal() bool {
	return s == StatusSuccess || s == StatusError || s == StatusSkipped
}

// Position is the canvas location of a node. Only carried, never interpreted.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Node is a workflow vertex. Nodes refer to each other only by id.
type Node struct {
	ID       string            `json:"id"`
	Kind     Kind              `json:"kind"`
	Title    string            `json:"title"`
	Position Position          `json:"position"`
	Status   Status            `json:"status"`
	Config   map[string]string `json:"config,omitempty"`
	SubGraph *Graph            `json:"subgraph,omitempty"`
}

// clone returns a deep copy of n, including its sub-graph.
func (n Node) clone() Node {
	out := n
	if n.Config != nil {
		out.Config = make(map[string]string, len(n.Config))
		for k, v := range n.Config {
			out.Config[k] = v
		}
	}
	if n.SubGraph != nil {
		out.SubGraph = n.SubGraph.Clone()
	}
	return out
}

// Edge is a directed link between two nodes of the same scope.
type Edge struct {
	ID   string `json:"id"`
	From string `json:"from"`
	To   string `json:"to"`
}

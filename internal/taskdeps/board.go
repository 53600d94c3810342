// Package taskdeps checks task dependency boards with the same analyzer the
// workflow graphs use. A task may name a parent task and any number of tasks
// it depends on; both are plain id references that can dangle.
package taskdeps

import (
	"github.com/gyaneshwarpardhi/wavegraph/internal/analyze"
)

// Task is one card on a board.
type Task struct {
	ID        string   `json:"id" yaml:"id"`
	Title     string   `json:"title" yaml:"title"`
	Parent    string   `json:"parent,omitempty" yaml:"parent,omitempty"`
	DependsOn []string `json:"depends_on,omitempty" yaml:"depends_on,omitempty"`
}

// Board is an ordered list of tasks.
type Board struct {
	Tasks []Task `json:"tasks" yaml:"tasks"`
}

// project maps dependencies to edges dep → task, so a topological order
// lists prerequisites first.
func (b Board) project() analyze.Graph {
	var g analyze.Graph
	for _, t := range b.Tasks {
		g.Nodes = append(g.Nodes, analyze.Node{ID: t.ID, Parent: t.Parent})
		for _, dep := range t.DependsOn {
			g.Edges = append(g.Edges, analyze.Edge{ID: edgeID(dep, t.ID), From: dep, To: t.ID})
		}
	}
	return g
}

func edgeID(dep, task string) string { return dep + "->" + task }

// Validate reports unknown dependencies, unknown parents and dependency cycles.
func (b Board) Validate() []analyze.Finding {
	return analyze.Validate(b.project())
}

// Order returns task ids with every dependency ahead of its dependents.
func (b Board) Order() ([]string, error) {
	return analyze.TopologicalSort(b.project())
}

// Repair returns a copy of b without dangling dependencies or parents.
func (b Board) Repair() Board {
	kept := make(map[string]bool)
	for _, e := range analyze.CleanupInvalidReferences(b.project()).Edges {
		kept[e.ID] = true
	}
	known := make(map[string]bool, len(b.Tasks))
	for _, t := range b.Tasks {
		known[t.ID] = true
	}

	out := Board{Tasks: make([]Task, 0, len(b.Tasks))}
	for _, t := range b.Tasks {
		fixed := Task{ID: t.ID, Title: t.Title, Parent: t.Parent}
		if !known[fixed.Parent] {
			fixed.Parent = ""
		}
		for _, dep := range t.DependsOn {
			if kept[edgeID(dep, t.ID)] {
				fixed.DependsOn = append(fixed.DependsOn, dep)
			}
		}
		out.Tasks = append(out.Tasks, fixed)
	}
	return out
}

package subgraph

import (
	"fmt"
	"strings"

	"github.com/gyaneshwarpardhi/wavegraph/internal/graph"
)

// Navigator tracks the scope a host is currently editing. The zero depth is
// the root graph.
type Navigator struct {
	stack []frame
}

type frame struct {
	id string
	g  *graph.Graph
}

// NewNavigator starts at root.
func NewNavigator(root *graph.Graph) *Navigator {
	return &Navigator{stack: []frame{{g: root}}}
}

// Enter descends into the sub-graph of phaseID, which must be a phase node of
// the current scope that owns a sub-graph.
func (n *Navigator) Enter(phaseID string) error {
	node, ok := n.Current().Node(phaseID)
	if !ok || node.Kind != graph.KindPhase || node.SubGraph == nil {
		return fmt.Errorf("%w: %s in scope %q", ErrNoSuchPhase, phaseID, strings.Join(n.Path(), Separator))
	}
	n.stack = append(n.stack, frame{id: phaseID, g: node.SubGraph})
	return nil
}

// EnterPath enters each segment of path in turn. On failure the navigator is
// left where it was.
func (n *Navigator) EnterPath(path string) error {
	depth := len(n.stack)
	for _, seg := range SplitPath(path) {
		if err := n.Enter(seg); err != nil {
			n.stack = n.stack[:depth]
			return err
		}
	}
	return nil
}

// Exit returns to the enclosing scope. It reports false at the root.
func (n *Navigator) Exit() bool {
	if len(n.stack) == 1 {
		return false
	}
	n.stack = n.stack[:len(n.stack)-1]
	return true
}

// Current returns the scope being edited.
func (n *Navigator) Current() *graph.Graph {
	return n.stack[len(n.stack)-1].g
}

// Path returns the phase ids entered so far, outermost first.
func (n *Navigator) Path() []string {
	out := make([]string, 0, len(n.stack)-1)
	for _, f := range n.stack[1:] {
		out = append(out, f.id)
	}
	return out
}

// Depth is the number of phases entered.
func (n *Navigator) Depth() int { return len(n.stack) - 1 }

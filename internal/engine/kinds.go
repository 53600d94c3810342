package engine

import (
	"context"
	"fmt"

	"github.com/gyaneshwarpardhi/wavegraph/internal/graph"
)

// OutcomeKey is the config key a task or decision node reads its simulated
// outcome from. The value "error" makes the node fail.
const OutcomeKey = "outcome"

type behavior func(n graph.Node) error

func succeed(graph.Node) error { return nil }

func configuredOutcome(n graph.Node) error {
	if n.Config[OutcomeKey] == "error" {
		if msg := n.Config["message"]; msg != "" {
			return fmt.Errorf("%s %s: %s", n.Kind, n.ID, msg)
		}
		return fmt.Errorf("%s %s: simulated failure", n.Kind, n.ID)
	}
	return nil
}

// behaviors is the per-kind simulation table.
var behaviors = map[graph.Kind]behavior{
	graph.KindStart:    succeed,
	graph.KindEnd:      succeed,
	graph.KindParallel: succeed,
	graph.KindPhase:    succeed,
	graph.KindTask:     configuredOutcome,
	graph.KindDecision: configuredOutcome,
}

// Simulate runs the built-in behaviour for n's kind. It is the action used
// when Hooks.Action is nil, and the fallback for host actions that do not
// handle a node.
func Simulate(_ context.Context, n graph.Node) error {
	b, ok := behaviors[n.Kind]
	if !ok {
		return fmt.Errorf("node %s: no behaviour for kind %q", n.ID, n.Kind)
	}
	return b(n)
}

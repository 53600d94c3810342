package action

import (
	"context"

	"github.com/gyaneshwarpardhi/wavegraph/internal/graph"
)

// ConfigKey is the node config key naming the executor for that node.
const ConfigKey = "action"

// Executor is the interface all node actions must satisfy.
type Executor interface {
	// Type returns the string key this executor is registered under.
	Type() string
	// Execute runs the action for n. A non-nil error marks the node failed.
	Execute(ctx context.Context, n graph.Node) error
	// Validate checks a node's config when it enters the catalog.
	Validate(config map[string]string) error
}

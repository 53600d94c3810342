package action

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/gyaneshwarpardhi/wavegraph/internal/engine"
	"github.com/gyaneshwarpardhi/wavegraph/internal/graph"
)

// ErrUnknownAction is returned for a node naming an unregistered executor.
var ErrUnknownAction = errors.New("unknown action")

// Registry maps action type strings to their executors.
// It is safe for concurrent reads; Register should only be called at startup.
type Registry struct {
	mu        sync.RWMutex
	executors map[string]Executor
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{executors: make(map[string]Executor)}
}

// Register adds an executor. Panics on duplicate type to surface misconfiguration early.
func (r *Registry) Register(e Executor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.executors[e.Type()]; exists {
		panic(fmt.Sprintf("action registry: duplicate type %q", e.Type()))
	}
	r.executors[e.Type()] = e
}

// Get returns the executor for the given type.
func (r *Registry) Get(actionType string) (Executor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.executors[actionType]
	if !ok {
		return nil, fmt.Errorf("%w: no executor registered for %q", ErrUnknownAction, actionType)
	}
	return e, nil
}

// Types returns all registered action type strings, sorted.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.executors))
	for k := range r.executors {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Hook adapts the registry into an engine action. Nodes without an action
// key fall back to the engine's per-kind simulation.
func Hook(r *Registry) func(ctx context.Context, n graph.Node) error {
	return func(ctx context.Context, n graph.Node) error {
		name := n.Config[ConfigKey]
		if name == "" {
			return engine.Simulate(ctx, n)
		}
		exec, err := r.Get(name)
		if err != nil {
			return err
		}
		return exec.Execute(ctx, n)
	}
}

// ValidateGraph runs every executor's Validate over the nodes that name it,
// descending into sub-graphs, and reports all problems at once.
func (r *Registry) ValidateGraph(g *graph.Graph) error {
	var errs []string
	r.validateScope(g, "", &errs)
	if len(errs) > 0 {
		return fmt.Errorf("action validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

func (r *Registry) validateScope(g *graph.Graph, prefix string, errs *[]string) {
	for _, n := range g.Nodes() {
		if err := r.ValidateNode(n); err != nil {
			*errs = append(*errs, fmt.Sprintf("node %s%s: %v", prefix, n.ID, err))
		}
		if n.SubGraph != nil {
			r.validateScope(n.SubGraph, prefix+n.ID+"/", errs)
		}
	}
}

// ValidateNode checks the executor named by n's config, if any.
func (r *Registry) ValidateNode(n graph.Node) error {
	name := n.Config[ConfigKey]
	if name == "" {
		return nil
	}
	exec, err := r.Get(name)
	if err != nil {
		return err
	}
	return exec.Validate(n.Config)
}

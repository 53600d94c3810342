// Package subgraph resolves phase nodes to the sub-graphs they own and lets
// callers descend into them. Every scope is an ordinary *graph.Graph, so the
// cycle guard, the analyzer and the engine work on a nested scope unchanged.
package subgraph

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/gyaneshwarpardhi/wavegraph/internal/graph"
)

// ErrNoSuchPhase is returned when a path does not name a phase that owns a
// sub-graph.
var ErrNoSuchPhase = errors.New("no such phase")

// Separator joins phase ids into a scope path.
const Separator = "/"

// Registry maps path-qualified phase ids ("outer/inner") to their sub-graphs.
type Registry struct {
	root   *graph.Graph
	scopes map[string]*graph.Graph
}

// Index walks root and records every phase that owns a sub-graph. The
// registry holds references, not copies; re-index after structural edits.
func Index(root *graph.Graph) *Registry {
	r := &Registry{root: root, scopes: make(map[string]*graph.Graph)}
	r.walk(root, "")
	return r
}

func (r *Registry) walk(g *graph.Graph, prefix string) {
	for _, n := range g.Nodes() {
		if n.Kind != graph.KindPhase || n.SubGraph == nil {
			continue
		}
		path := n.ID
		if prefix != "" {
			path = prefix + Separator + n.ID
		}
		r.scopes[path] = n.SubGraph
		r.walk(n.SubGraph, path)
	}
}

// Root returns the graph the registry was built from.
func (r *Registry) Root() *graph.Graph { return r.root }

// Lookup returns the scope named by path. The empty path is the root.
func (r *Registry) Lookup(path string) (*graph.Graph, error) {
	path = strings.Trim(path, Separator)
	if path == "" {
		return r.root, nil
	}
	g, ok := r.scopes[path]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoSuchPhase, path)
	}
	return g, nil
}

// Phases returns every indexed path, sorted.
func (r *Registry) Phases() []string {
	out := make([]string, 0, len(r.scopes))
	for p := range r.scopes {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// SplitPath turns "a/b" into ["a", "b"]; empty segments are dropped.
func SplitPath(path string) []string {
	var out []string
	for _, seg := range strings.Split(path, Separator) {
		if seg = strings.TrimSpace(seg); seg != "" {
			out = append(out, seg)
		}
	}
	return out
}

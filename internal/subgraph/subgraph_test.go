package subgraph_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gyaneshwarpardhi/wavegraph/internal/graph"
	"github.com/gyaneshwarpardhi/wavegraph/internal/subgraph"
)

// nested builds root{start, design(phase){draft, review(phase){check}}, task}.
func nested(t *testing.T) *graph.Graph {
	t.Helper()
	review := graph.New()
	require.NoError(t, review.AddNode(graph.Node{ID: "check", Kind: graph.KindTask}))

	design := graph.New()
	require.NoError(t, design.AddNode(graph.Node{ID: "draft", Kind: graph.KindTask}))
	require.NoError(t, design.AddNode(graph.Node{ID: "review", Kind: graph.KindPhase, SubGraph: review}))
	_, err := design.AddEdge(graph.Edge{From: "draft", To: "review"})
	require.NoError(t, err)

	root := graph.New()
	require.NoError(t, root.AddNode(graph.Node{ID: "start", Kind: graph.KindStart}))
	require.NoError(t, root.AddNode(graph.Node{ID: "design", Kind: graph.KindPhase, SubGraph: design}))
	require.NoError(t, root.AddNode(graph.Node{ID: "empty", Kind: graph.KindPhase}))
	require.NoError(t, root.AddNode(graph.Node{ID: "task", Kind: graph.KindTask}))
	return root
}

func TestIndex(t *testing.T) {
	root := nested(t)
	reg := subgraph.Index(root)

	assert.Equal(t, []string{"design", "design/review"}, reg.Phases())

	g, err := reg.Lookup("")
	require.NoError(t, err)
	assert.Same(t, root, g)

	g, err = reg.Lookup("design/review")
	require.NoError(t, err)
	_, ok := g.Node("check")
	assert.True(t, ok)

	for _, path := range []string{"task", "empty", "review", "design/missing"} {
		_, err = reg.Lookup(path)
		assert.Truef(t, errors.Is(err, subgraph.ErrNoSuchPhase), "path %q", path)
	}
}

func TestNavigator(t *testing.T) {
	root := nested(t)
	nav := subgraph.NewNavigator(root)
	assert.Equal(t, 0, nav.Depth())
	assert.Empty(t, nav.Path())
	assert.False(t, nav.Exit(), "cannot exit the root")

	require.NoError(t, nav.Enter("design"))
	require.NoError(t, nav.Enter("review"))
	assert.Equal(t, []string{"design", "review"}, nav.Path())
	assert.Equal(t, 2, nav.Depth())
	_, ok := nav.Current().Node("check")
	assert.True(t, ok)

	assert.True(t, errors.Is(nav.Enter("check"), subgraph.ErrNoSuchPhase))

	assert.True(t, nav.Exit())
	_, ok = nav.Current().Node("draft")
	assert.True(t, ok)
	assert.True(t, nav.Exit())
	assert.Same(t, root, nav.Current())
}

func TestNavigator_EnterPathRollsBack(t *testing.T) {
	nav := subgraph.NewNavigator(nested(t))
	err := nav.EnterPath("design/nope")
	assert.True(t, errors.Is(err, subgraph.ErrNoSuchPhase))
	assert.Equal(t, 0, nav.Depth())

	require.NoError(t, nav.EnterPath("/design/review/"))
	assert.Equal(t, []string{"design", "review"}, nav.Path())
}

// Edits through the navigator land in the owning scope and keep the guard.
func TestNavigator_ScopedEditsAreGuarded(t *testing.T) {
	root := nested(t)
	nav := subgraph.NewNavigator(root)
	require.NoError(t, nav.Enter("design"))

	_, err := nav.Current().AddEdge(graph.Edge{From: "review", To: "draft"})
	assert.True(t, errors.Is(err, graph.ErrCycle))

	_, err = nav.Current().AddEdge(graph.Edge{From: "draft", To: "start"})
	assert.True(t, errors.Is(err, graph.ErrUnknownNode), "root nodes are not visible from a sub-scope")

	reg := subgraph.Index(root)
	design, err := reg.Lookup("design")
	require.NoError(t, err)
	assert.Equal(t, 1, design.EdgeCount())
}

package action_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gyaneshwarpardhi/wavegraph/internal/action"
	"github.com/gyaneshwarpardhi/wavegraph/internal/action/builtin"
	"github.com/gyaneshwarpardhi/wavegraph/internal/engine"
	"github.com/gyaneshwarpardhi/wavegraph/internal/graph"
)

func TestRegistry(t *testing.T) {
	reg := builtin.NewRegistry()
	assert.Equal(t, []string{"delay", "fail", "succeed"}, reg.Types())

	_, err := reg.Get("teleport")
	assert.ErrorIs(t, err, action.ErrUnknownAction)

	assert.Panics(t, func() { reg.Register(builtin.Succeed{}) })
}

func TestHook(t *testing.T) {
	hook := action.Hook(builtin.NewRegistry())
	ctx := context.Background()

	tests := []struct {
		name    string
		node    graph.Node
		wantErr string
	}{
		{"kind table fallback", graph.Node{ID: "t", Kind: graph.KindTask}, ""},
		{"kind table error", graph.Node{ID: "t", Kind: graph.KindTask, Config: map[string]string{"outcome": "error"}}, "simulated failure"},
		{"succeed", graph.Node{ID: "t", Kind: graph.KindTask, Config: map[string]string{"action": "succeed", "outcome": "error"}}, ""},
		{"fail with message", graph.Node{ID: "t", Kind: graph.KindTask, Config: map[string]string{"action": "fail", "message": "card declined"}}, "card declined"},
		{"unknown", graph.Node{ID: "t", Kind: graph.KindTask, Config: map[string]string{"action": "teleport"}}, "unknown action"},
		{"delay", graph.Node{ID: "t", Kind: graph.KindTask, Config: map[string]string{"action": "delay", "delay_ms": "1"}}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := hook(ctx, tt.node)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestDelayHonoursContext(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	n := graph.Node{ID: "slow", Kind: graph.KindTask, Config: map[string]string{"delay_ms": "60000"}}
	err := builtin.Delay{}.Execute(ctx, n)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestValidateGraph(t *testing.T) {
	reg := builtin.NewRegistry()
	sub := graph.New()
	require.NoError(t, sub.AddNode(graph.Node{ID: "wait", Kind: graph.KindTask, Config: map[string]string{"action": "delay", "delay_ms": "soon"}}))

	g := graph.New()
	require.NoError(t, g.AddNode(graph.Node{ID: "ok", Kind: graph.KindTask, Config: map[string]string{"action": "succeed"}}))
	require.NoError(t, g.AddNode(graph.Node{ID: "bad", Kind: graph.KindTask, Config: map[string]string{"action": "teleport"}}))
	require.NoError(t, g.AddNode(graph.Node{ID: "p", Kind: graph.KindPhase, SubGraph: sub}))

	err := reg.ValidateGraph(g)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "node bad:")
	assert.Contains(t, err.Error(), "node p/wait: delay: delay_ms must be")
}

func TestHookDrivesEngine(t *testing.T) {
	g := graph.New()
	require.NoError(t, g.AddNode(graph.Node{ID: "a", Kind: graph.KindTask, Config: map[string]string{"action": "fail"}}))
	require.NoError(t, g.AddNode(graph.Node{ID: "b", Kind: graph.KindTask}))
	_, err := g.AddEdge(graph.Edge{From: "a", To: "b"})
	require.NoError(t, err)

	res, err := engine.Execute(context.Background(), g, engine.Hooks{Action: action.Hook(builtin.NewRegistry())})
	require.NoError(t, err)
	assert.Equal(t, engine.RunFailed, res.Status)
	assert.Equal(t, graph.StatusSkipped, res.Statuses["b"])
}

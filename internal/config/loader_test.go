package config

import (
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const yamlCatalog = `
version: v1
runner:
  workers: 2
workflows:
  - id: onboarding
    title: Onboarding
    nodes:
      - {id: start, kind: start, title: Start}
      - {id: design, kind: phase, title: Design, subgraph: {nodes: [{id: draft, kind: task}], edges: []}}
      - {id: end, kind: end, x: 10, y: 20, config: {action: succeed}}
    edges:
      - {id: e1, from: start, to: design}
      - {id: e2, from: design, to: end}
`

const tomlCatalog = `
version = "v1"

[[workflows]]
id = "release"
title = "Release"

  [[workflows.nodes]]
  id = "start"
  kind = "start"

  [[workflows.nodes]]
  id = "ship"
  kind = "task"
  config = { action = "fail", message = "boom" }

  [[workflows.edges]]
  id = "e1"
  from = "start"
  to = "ship"
`

const hclCatalogSrc = `
version = "v1"

runner {
  workers = 3
}

workflow "review" {
  title = "Review"

  node "start" {
    kind = "start"
  }

  node "check" {
    kind = "phase"
    subgraph {
      node "lint" {
        kind = "task"
      }
    }
  }

  edge "e1" {
    from = "start"
    to   = "check"
  }
}
`

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoader_YAML(t *testing.T) {
	l, err := NewLoader(writeFile(t, "catalog.yaml", yamlCatalog))
	require.NoError(t, err)

	cfg := l.Config()
	require.NoError(t, Validate(cfg))
	assert.Equal(t, 2, cfg.Runner.Workers)
	assert.Equal(t, 64, cfg.Runner.QueueDepth, "default applied")
	require.Len(t, cfg.Workflows, 1)

	wf := cfg.Workflows[0]
	assert.Equal(t, "onboarding", wf.ID)
	require.Len(t, wf.Nodes, 3)
	require.NotNil(t, wf.Nodes[1].SubGraph)
	assert.Equal(t, "draft", wf.Nodes[1].SubGraph.Nodes[0].ID)
	assert.Equal(t, "succeed", wf.Nodes[2].Config["action"])
	assert.Equal(t, 20.0, wf.Nodes[2].Y)
	assert.Len(t, wf.Edges, 2)
}

func TestLoader_TOML(t *testing.T) {
	l, err := NewLoader(writeFile(t, "catalog.toml", tomlCatalog))
	require.NoError(t, err)

	cfg := l.Config()
	require.NoError(t, Validate(cfg))
	require.Len(t, cfg.Workflows, 1)
	wf := cfg.Workflows[0]
	assert.Equal(t, "release", wf.ID)
	require.Len(t, wf.Nodes, 2)
	assert.Equal(t, "boom", wf.Nodes[1].Config["message"])
	assert.Equal(t, []EdgeDef{{ID: "e1", From: "start", To: "ship"}}, wf.Edges)
}

func TestLoader_HCL(t *testing.T) {
	l, err := NewLoader(writeFile(t, "catalog.hcl", hclCatalogSrc))
	require.NoError(t, err)

	cfg := l.Config()
	require.NoError(t, Validate(cfg))
	assert.Equal(t, 3, cfg.Runner.Workers)
	require.Len(t, cfg.Workflows, 1)
	wf := cfg.Workflows[0]
	assert.Equal(t, "Review", wf.Title)
	require.Len(t, wf.Nodes, 2)
	require.NotNil(t, wf.Nodes[1].SubGraph)
	assert.Equal(t, "lint", wf.Nodes[1].SubGraph.Nodes[0].ID)
	assert.Equal(t, []EdgeDef{{ID: "e1", From: "start", To: "check"}}, wf.Edges)
}

func TestLoader_MissingFile(t *testing.T) {
	_, err := NewLoader(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestLoader_ReloadNotifies(t *testing.T) {
	path := writeFile(t, "catalog.yaml", yamlCatalog)
	l, err := NewLoader(path)
	require.NoError(t, err)

	var calls atomic.Int32
	l.OnChange(func(c *Catalog) error {
		calls.Add(1)
		return nil
	})

	require.NoError(t, os.WriteFile(path, []byte("version: v2\nworkflows: []\n"), 0o600))
	cfg, err := l.Reload()
	require.NoError(t, err)
	assert.Equal(t, "v2", cfg.Version)
	assert.Equal(t, "v2", l.Config().Version)
	assert.EqualValues(t, 1, calls.Load())
}

func TestLoader_ReloadKeepsOldOnError(t *testing.T) {
	path := writeFile(t, "catalog.yaml", yamlCatalog)
	l, err := NewLoader(path)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("version: [unclosed"), 0o600))
	_, err = l.Reload()
	require.Error(t, err)
	assert.Equal(t, "v1", l.Config().Version)
}

func TestLoader_ReloadRejectsInvalidCatalog(t *testing.T) {
	path := writeFile(t, "catalog.yaml", yamlCatalog)
	l, err := NewLoader(path)
	require.NoError(t, err)

	var calls atomic.Int32
	l.OnChange(func(c *Catalog) error {
		calls.Add(1)
		return nil
	})

	require.NoError(t, os.WriteFile(path, []byte("version: \"\"\nworkflows: []\n"), 0o600))
	_, err = l.Reload()
	require.ErrorIs(t, err, ErrRejected)
	assert.Equal(t, "v1", l.Config().Version)
	assert.Zero(t, calls.Load(), "callbacks only see valid catalogs")
}

func TestLoader_CallbackCanRejectReload(t *testing.T) {
	path := writeFile(t, "catalog.yaml", yamlCatalog)
	l, err := NewLoader(path)
	require.NoError(t, err)
	l.OnChange(func(c *Catalog) error { return errors.New("build failed") })

	require.NoError(t, os.WriteFile(path, []byte("version: v2\nworkflows: []\n"), 0o600))
	_, err = l.Reload()
	require.ErrorIs(t, err, ErrRejected)
	assert.Contains(t, err.Error(), "build failed")
	assert.Equal(t, "v1", l.Config().Version)
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name    string
		cfg     Catalog
		wantErr string
	}{
		{name: "missing version", cfg: Catalog{}, wantErr: "version is required"},
		{
			name: "duplicate workflow",
			cfg: Catalog{Version: "v1", Workflows: []WorkflowDef{
				{ID: "a"}, {ID: "a"},
			}},
			wantErr: `duplicate workflow id "a"`,
		},
		{
			name: "duplicate node in scope",
			cfg: Catalog{Version: "v1", Workflows: []WorkflowDef{{
				ID: "a",
				GraphDef: GraphDef{Nodes: []NodeDef{
					{ID: "n", Kind: "task"}, {ID: "n", Kind: "task"},
				}},
			}}},
			wantErr: `duplicate node id "n"`,
		},
		{
			name: "subgraph on task",
			cfg: Catalog{Version: "v1", Workflows: []WorkflowDef{{
				ID: "a",
				GraphDef: GraphDef{Nodes: []NodeDef{
					{ID: "n", Kind: "task", SubGraph: &GraphDef{}},
				}},
			}}},
			wantErr: "only allowed on phase nodes",
		},
		{
			name: "missing kind and endpoints",
			cfg: Catalog{Version: "v1", Workflows: []WorkflowDef{{
				ID: "a",
				GraphDef: GraphDef{
					Nodes: []NodeDef{{ID: "n"}},
					Edges: []EdgeDef{{ID: "e", From: "n"}},
				},
			}}},
			wantErr: "kind is required",
		},
		{
			name: "same node id in different scopes is fine",
			cfg: Catalog{Version: "v1", Workflows: []WorkflowDef{{
				ID: "a",
				GraphDef: GraphDef{Nodes: []NodeDef{
					{ID: "n", Kind: "phase", SubGraph: &GraphDef{Nodes: []NodeDef{{ID: "n", Kind: "task"}}}},
				}},
			}}},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := Validate(&tc.cfg)
			if tc.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

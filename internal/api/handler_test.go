package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gyaneshwarpardhi/wavegraph/internal/action/builtin"
	"github.com/gyaneshwarpardhi/wavegraph/internal/api"
	"github.com/gyaneshwarpardhi/wavegraph/internal/config"
	"github.com/gyaneshwarpardhi/wavegraph/internal/metrics"
	"github.com/gyaneshwarpardhi/wavegraph/internal/runner"
)

const catalog = `
version: v1
runner: {workers: 1, queue_depth: 4}
workflows:
  - id: onboarding
    title: Onboarding
    nodes:
      - {id: start, kind: start}
      - {id: account, kind: task}
      - {id: laptop, kind: task, config: {outcome: error}}
      - {id: welcome, kind: task}
      - id: design
        kind: phase
        subgraph:
          nodes: [{id: draft, kind: task}, {id: review, kind: decision}]
          edges: [{id: d1, from: draft, to: review}]
    edges:
      - {id: e1, from: start, to: account}
      - {id: e2, from: start, to: laptop}
      - {id: e3, from: laptop, to: welcome}
`

type fixture struct {
	srv  *httptest.Server
	path string
}

func setup(t *testing.T) *fixture {
	t.Helper()
	path := filepath.Join(t.TempDir(), "workflows.yaml")
	require.NoError(t, os.WriteFile(path, []byte(catalog), 0o644))

	loader, err := config.NewLoader(path)
	require.NoError(t, err)
	cfg := loader.Config()
	require.NoError(t, config.Validate(cfg))

	r, _, err := runner.New(context.Background(), cfg.Workflows, builtin.NewRegistry(), cfg.Runner)
	require.NoError(t, err)
	t.Cleanup(r.Shutdown)
	r.Follow(loader)

	srv := httptest.NewServer(api.New(r, loader))
	t.Cleanup(srv.Close)
	return &fixture{srv: srv, path: path}
}

func (f *fixture) do(t *testing.T, method, path, body string) (int, map[string]interface{}) {
	t.Helper()
	req, err := http.NewRequest(method, f.srv.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	out := map[string]interface{}{}
	if resp.StatusCode != http.StatusNoContent {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	}
	return resp.StatusCode, out
}

func TestListAndGet(t *testing.T) {
	f := setup(t)
	status, body := f.do(t, http.MethodGet, "/v1/workflows", "")
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["workflows"], 1)

	status, body = f.do(t, http.MethodGet, "/v1/workflows/onboarding?scope=design", "")
	require.Equal(t, http.StatusOK, status)
	g := body["graph"].(map[string]interface{})
	assert.Len(t, g["nodes"], 2)

	status, body = f.do(t, http.MethodGet, "/v1/workflows/onbording", "")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "did you mean onboarding?", body["hint"])
}

func TestEdgeEditing(t *testing.T) {
	f := setup(t)

	status, body := f.do(t, http.MethodPost, "/v1/workflows/onboarding/edges", `{"from":"account","to":"welcome"}`)
	require.Equal(t, http.StatusCreated, status)
	edgeID := body["id"].(string)
	assert.NotEmpty(t, edgeID)

	status, body = f.do(t, http.MethodGet, "/v1/workflows/onboarding/cycle-check?from=welcome&to=start", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["would_create_cycle"])

	status, _ = f.do(t, http.MethodPost, "/v1/workflows/onboarding/edges", `{"from":"welcome","to":"start"}`)
	assert.Equal(t, http.StatusConflict, status, "cycle rejected")

	status, body = f.do(t, http.MethodPost, "/v1/workflows/onboarding/edges", `{"from":"account","to":"welcom"}`)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "did you mean welcome?", body["hint"])

	status, _ = f.do(t, http.MethodPost, "/v1/workflows/onboarding/edges", `{"from":"account"}`)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = f.do(t, http.MethodDelete, "/v1/workflows/onboarding/edges/"+edgeID, "")
	assert.Equal(t, http.StatusNoContent, status)
	status, _ = f.do(t, http.MethodDelete, "/v1/workflows/onboarding/edges/"+edgeID, "")
	assert.Equal(t, http.StatusNotFound, status)
}

func TestScopedNodeEditing(t *testing.T) {
	f := setup(t)

	status, _ := f.do(t, http.MethodPost, "/v1/workflows/onboarding/nodes?scope=design", `{"id":"sign","kind":"task"}`)
	require.Equal(t, http.StatusCreated, status)

	status, _ = f.do(t, http.MethodPost, "/v1/workflows/onboarding/nodes?scope=design", `{"id":"sign","kind":"task"}`)
	assert.Equal(t, http.StatusConflict, status)

	status, _ = f.do(t, http.MethodPost, "/v1/workflows/onboarding/nodes", `{"id":"x","kind":"widget"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, status)

	status, body := f.do(t, http.MethodPost, "/v1/workflows/onboarding/nodes?scope=desing", `{"id":"y","kind":"task"}`)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "did you mean design?", body["hint"])

	status, _ = f.do(t, http.MethodDelete, "/v1/workflows/onboarding/nodes/sign?scope=design", "")
	assert.Equal(t, http.StatusNoContent, status)
}

func TestRunsAndWriteBack(t *testing.T) {
	f := setup(t)

	status, body := f.do(t, http.MethodPost, "/v1/workflows/onboarding/runs", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "finished", body["state"])
	result := body["result"].(map[string]interface{})
	assert.Equal(t, "failed", result["status"])
	statuses := result["statuses"].(map[string]interface{})
	assert.Equal(t, "skipped", statuses["welcome"])
	assert.Equal(t, "success", statuses["account"])

	runID := body["id"].(string)
	status, _ = f.do(t, http.MethodPost, "/v1/runs/"+runID+"/write-back", "")
	require.Equal(t, http.StatusOK, status)

	status, body = f.do(t, http.MethodGet, "/v1/workflows/onboarding", "")
	require.Equal(t, http.StatusOK, status)
	for _, raw := range body["graph"].(map[string]interface{})["nodes"].([]interface{}) {
		n := raw.(map[string]interface{})
		if n["id"] == "laptop" {
			assert.Equal(t, "error", n["status"])
		}
	}

	status, body = f.do(t, http.MethodPost, "/v1/workflows/onboarding/runs?async=true&scope=design", "")
	require.Equal(t, http.StatusAccepted, status)
	assert.NotEmpty(t, body["id"])

	status, _ = f.do(t, http.MethodGet, "/v1/runs/"+body["id"].(string), "")
	assert.Equal(t, http.StatusOK, status)

	status, _ = f.do(t, http.MethodGet, "/v1/runs/nope", "")
	assert.Equal(t, http.StatusNotFound, status)
}

func TestAnalysisAndRepair(t *testing.T) {
	f := setup(t)
	status, body := f.do(t, http.MethodGet, "/v1/workflows/onboarding/analysis", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["clean"])

	status, body = f.do(t, http.MethodPost, "/v1/workflows/onboarding/repair", "")
	require.Equal(t, http.StatusOK, status)
	assert.Empty(t, body["removed_edges"])
}

func TestReload(t *testing.T) {
	f := setup(t)
	updated := strings.Replace(catalog, "id: onboarding", "id: offboarding", 1)
	require.NoError(t, os.WriteFile(f.path, []byte(updated), 0o644))

	status, body := f.do(t, http.MethodPost, "/v1/workflows/reload", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(1), body["workflows_count"])

	status, _ = f.do(t, http.MethodGet, "/v1/workflows/offboarding", "")
	assert.Equal(t, http.StatusOK, status)

	require.NoError(t, os.WriteFile(f.path, []byte("version: \"\"\nworkflows: []\n"), 0o644))
	status, _ = f.do(t, http.MethodPost, "/v1/workflows/reload", "")
	assert.Equal(t, http.StatusUnprocessableEntity, status)
}

func TestReloadBuildsCatalogOnce(t *testing.T) {
	f := setup(t)
	dangling := strings.Replace(catalog, "      - {id: e3, from: laptop, to: welcome}",
		"      - {id: e3, from: laptop, to: welcome}\n      - {id: e9, from: welcome, to: ghost}", 1)
	require.NoError(t, os.WriteFile(f.path, []byte(dangling), 0o644))

	counter := metrics.AnalysisFindings.WithLabelValues("missing_dependency")
	before := testutil.ToFloat64(counter)
	status, _ := f.do(t, http.MethodPost, "/v1/workflows/reload", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(1), testutil.ToFloat64(counter)-before)
}

func TestReloadRejectedKeepsCatalog(t *testing.T) {
	f := setup(t)
	broken := strings.Replace(catalog, "{id: account, kind: task}", "{id: account, kind: task, config: {action: teleport}}", 1)
	require.NoError(t, os.WriteFile(f.path, []byte(broken), 0o644))

	status, _ := f.do(t, http.MethodPost, "/v1/workflows/reload", "")
	assert.Equal(t, http.StatusUnprocessableEntity, status)

	status, body := f.do(t, http.MethodGet, "/v1/workflows/onboarding", "")
	require.Equal(t, http.StatusOK, status)
	nodes := body["graph"].(map[string]interface{})["nodes"].([]interface{})
	for _, raw := range nodes {
		n := raw.(map[string]interface{})
		if n["id"] == "account" {
			assert.Nil(t, n["config"])
		}
	}
}

func TestHealthEndpoints(t *testing.T) {
	f := setup(t)
	status, body := f.do(t, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body["status"])

	status, body = f.do(t, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ready", body["status"])
}

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gyaneshwarpardhi/wavegraph/internal/config"
	"github.com/gyaneshwarpardhi/wavegraph/internal/graph"
	"github.com/gyaneshwarpardhi/wavegraph/internal/metrics"
	"github.com/gyaneshwarpardhi/wavegraph/internal/runner"
)

// Handler holds all HTTP handler dependencies.
type Handler struct {
	runner *runner.Runner
	loader *config.Loader
	mux    *http.ServeMux
}

// New creates an HTTP handler and registers all routes.
func New(r *runner.Runner, loader *config.Loader) http.Handler {
	h := &Handler{runner: r, loader: loader, mux: http.NewServeMux()}

	h.mux.HandleFunc("GET /v1/workflows", h.listWorkflows)
	h.mux.HandleFunc("POST /v1/workflows/reload", h.reload)
	h.mux.HandleFunc("GET /v1/workflows/{id}", h.getWorkflow)
	h.mux.HandleFunc("POST /v1/workflows/{id}/nodes", h.addNode)
	h.mux.HandleFunc("DELETE /v1/workflows/{id}/nodes/{node}", h.removeNode)
	h.mux.HandleFunc("POST /v1/workflows/{id}/edges", h.addEdge)
	h.mux.HandleFunc("DELETE /v1/workflows/{id}/edges/{edge}", h.removeEdge)
	h.mux.HandleFunc("GET /v1/workflows/{id}/cycle-check", h.cycleCheck)
	h.mux.HandleFunc("GET /v1/workflows/{id}/analysis", h.analysis)
	h.mux.HandleFunc("POST /v1/workflows/{id}/repair", h.repair)
	h.mux.HandleFunc("POST /v1/workflows/{id}/runs", h.startRun)
	h.mux.HandleFunc("GET /v1/runs", h.listRuns)
	h.mux.HandleFunc("GET /v1/runs/{run}", h.getRun)
	h.mux.HandleFunc("POST /v1/runs/{run}/write-back", h.writeBack)
	h.mux.HandleFunc("GET /healthz", h.healthz)
	h.mux.HandleFunc("GET /readyz", h.readyz)
	h.mux.Handle("GET /metrics", promhttp.Handler())

	return loggingMiddleware(h.mux)
}

// GET /v1/workflows — list the catalog.
func (h *Handler) listWorkflows(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"workflows": h.runner.Workflows(),
	})
}

// GET /v1/workflows/{id} — one scope of a workflow as {nodes, edges}.
func (h *Handler) getWorkflow(w http.ResponseWriter, r *http.Request) {
	id, scope := r.PathValue("id"), r.URL.Query().Get("scope")
	g, err := h.runner.Workflow(id, scope)
	if err != nil {
		h.fail(w, err, id, scope, "")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"id":    id,
		"scope": scope,
		"graph": g,
	})
}

// POST /v1/workflows/{id}/nodes — add a node to a scope.
func (h *Handler) addNode(w http.ResponseWriter, r *http.Request) {
	id, scope := r.PathValue("id"), r.URL.Query().Get("scope")
	var n graph.Node
	if err := json.NewDecoder(r.Body).Decode(&n); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %s", err))
		return
	}
	if err := h.runner.AddNode(id, scope, n); err != nil {
		h.fail(w, err, id, scope, "")
		return
	}
	writeJSON(w, http.StatusCreated, n)
}

// DELETE /v1/workflows/{id}/nodes/{node}
func (h *Handler) removeNode(w http.ResponseWriter, r *http.Request) {
	id, scope, node := r.PathValue("id"), r.URL.Query().Get("scope"), r.PathValue("node")
	if err := h.runner.RemoveNode(id, scope, node); err != nil {
		h.fail(w, err, id, scope, node)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// POST /v1/workflows/{id}/edges — commit an edge through the cycle guard.
func (h *Handler) addEdge(w http.ResponseWriter, r *http.Request) {
	id, scope := r.PathValue("id"), r.URL.Query().Get("scope")
	var e graph.Edge
	if err := json.NewDecoder(r.Body).Decode(&e); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %s", err))
		return
	}
	if e.From == "" || e.To == "" {
		writeError(w, http.StatusBadRequest, "from and to are required")
		return
	}
	committed, err := h.runner.AddEdge(id, scope, e)
	if err != nil {
		h.fail(w, err, id, scope, "")
		return
	}
	writeJSON(w, http.StatusCreated, committed)
}

// DELETE /v1/workflows/{id}/edges/{edge}
func (h *Handler) removeEdge(w http.ResponseWriter, r *http.Request) {
	id, scope, edge := r.PathValue("id"), r.URL.Query().Get("scope"), r.PathValue("edge")
	if err := h.runner.RemoveEdge(id, scope, edge); err != nil {
		h.fail(w, err, id, scope, edge)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GET /v1/workflows/{id}/cycle-check?from=&to= — ask the guard without committing.
func (h *Handler) cycleCheck(w http.ResponseWriter, r *http.Request) {
	id, q := r.PathValue("id"), r.URL.Query()
	scope, from, to := q.Get("scope"), q.Get("from"), q.Get("to")
	if from == "" || to == "" {
		writeError(w, http.StatusBadRequest, "from and to are required")
		return
	}
	cyclic, err := h.runner.WouldCreateCycle(id, scope, from, to)
	if err != nil {
		h.fail(w, err, id, scope, "")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"from":               from,
		"to":                 to,
		"would_create_cycle": cyclic,
	})
}

// GET /v1/workflows/{id}/analysis — analyzer findings for a scope and below.
func (h *Handler) analysis(w http.ResponseWriter, r *http.Request) {
	id, scope := r.PathValue("id"), r.URL.Query().Get("scope")
	findings, err := h.runner.Analyze(id, scope)
	if err != nil {
		h.fail(w, err, id, scope, "")
		return
	}
	if findings == nil {
		findings = []graph.ScopedFinding{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"clean":    len(findings) == 0,
		"findings": findings,
	})
}

// POST /v1/workflows/{id}/repair — drop dangling references.
func (h *Handler) repair(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	removed, err := h.runner.Repair(id)
	if err != nil {
		h.fail(w, err, id, "", "")
		return
	}
	if removed == nil {
		removed = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"removed_edges": removed,
	})
}

// POST /v1/workflows/{id}/runs — synchronous by default, ?async=true queues it.
func (h *Handler) startRun(w http.ResponseWriter, r *http.Request) {
	id, q := r.PathValue("id"), r.URL.Query()
	scope := q.Get("scope")
	async, _ := strconv.ParseBool(q.Get("async"))

	if async {
		rec, err := h.runner.Submit(id, scope)
		if err != nil {
			h.fail(w, err, id, scope, "")
			return
		}
		writeJSON(w, http.StatusAccepted, rec)
		return
	}
	rec, err := h.runner.Run(r.Context(), id, scope)
	if err != nil {
		h.fail(w, err, id, scope, "")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// GET /v1/runs — run history, newest first.
func (h *Handler) listRuns(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"runs": h.runner.Runs(),
	})
}

// GET /v1/runs/{run}
func (h *Handler) getRun(w http.ResponseWriter, r *http.Request) {
	rec, err := h.runner.RunResult(r.PathValue("run"))
	if err != nil {
		h.fail(w, err, "", "", "")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// POST /v1/runs/{run}/write-back — apply final statuses to the committed graph.
func (h *Handler) writeBack(w http.ResponseWriter, r *http.Request) {
	runID := r.PathValue("run")
	if err := h.runner.WriteBack(runID); err != nil {
		h.fail(w, err, "", "", "")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"run":          runID,
		"written_back": true,
	})
}

// POST /v1/workflows/reload — hot-reload the catalog from disk. The runner
// picks the new catalog up through its loader subscription.
func (h *Handler) reload(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.loader.Reload()
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, config.ErrRejected) {
			status = http.StatusUnprocessableEntity
		}
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"reloaded":        true,
		"workflows_count": len(cfg.Workflows),
	})
}

// GET /healthz — always 200 (liveness).
func (h *Handler) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GET /readyz — 503 if the run queue is >80% full.
func (h *Handler) readyz(w http.ResponseWriter, r *http.Request) {
	util := h.runner.QueueUtilization()
	metrics.QueueUtilization.Set(util)
	if util > 0.8 {
		writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status":            "overloaded",
			"queue_utilization": util,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":            "ready",
		"queue_utilization": util,
	})
}

package api

import (
	"errors"
	"net/http"

	"github.com/agnivade/levenshtein"

	"github.com/gyaneshwarpardhi/wavegraph/internal/graph"
	"github.com/gyaneshwarpardhi/wavegraph/internal/runner"
	"github.com/gyaneshwarpardhi/wavegraph/internal/subgraph"
)

// suggest returns the candidate closest to target, or "" when nothing is
// close enough to be a plausible typo.
func suggest(target string, candidates []string) string {
	if target == "" {
		return ""
	}
	limit := len(target) / 3
	if limit < 2 {
		limit = 2
	}
	best, bestDist := "", limit+1
	for _, c := range candidates {
		if c == target {
			continue
		}
		if d := levenshtein.ComputeDistance(target, c); d < bestDist {
			best, bestDist = c, d
		}
	}
	return best
}

// hint builds a "did you mean" suggestion for not-found errors.
func (h *Handler) hint(err error, workflowID, scope string, missing string) string {
	var candidates []string
	switch {
	case errors.Is(err, runner.ErrUnknownWorkflow):
		candidates, missing = h.runner.WorkflowIDs(), workflowID
	case errors.Is(err, subgraph.ErrNoSuchPhase):
		for _, s := range h.runner.Workflows() {
			if s.ID == workflowID {
				candidates = s.Phases
			}
		}
		missing = scope
	case errors.Is(err, graph.ErrUnknownEdge):
		candidates = h.runner.NodeIDs(workflowID, scope, true)
	case errors.Is(err, graph.ErrUnknownNode):
		var nodeErr *graph.NodeError
		if errors.As(err, &nodeErr) {
			missing = nodeErr.NodeID
		}
		candidates = h.runner.NodeIDs(workflowID, scope, false)
	}
	if s := suggest(missing, candidates); s != "" {
		return "did you mean " + s + "?"
	}
	return ""
}

func (h *Handler) fail(w http.ResponseWriter, err error, workflowID, scope, missing string) {
	status := statusFor(err)
	resp := errorResponse{Error: err.Error()}
	if status == http.StatusNotFound {
		resp.Hint = h.hint(err, workflowID, scope, missing)
	}
	writeJSON(w, status, resp)
}

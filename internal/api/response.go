package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gyaneshwarpardhi/wavegraph/internal/graph"
	"github.com/gyaneshwarpardhi/wavegraph/internal/runner"
	"github.com/gyaneshwarpardhi/wavegraph/internal/subgraph"
)

// writeJSON encodes v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// errorResponse is the standard error envelope.
type errorResponse struct {
	Error string `json:"error"`
	Hint  string `json:"hint,omitempty"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, runner.ErrUnknownWorkflow),
		errors.Is(err, runner.ErrUnknownRun),
		errors.Is(err, graph.ErrUnknownNode),
		errors.Is(err, graph.ErrUnknownEdge),
		errors.Is(err, subgraph.ErrNoSuchPhase):
		return http.StatusNotFound
	case errors.Is(err, graph.ErrCycle),
		errors.Is(err, graph.ErrDuplicate),
		errors.Is(err, graph.ErrSelfLoop),
		errors.Is(err, runner.ErrRunNotFinished):
		return http.StatusConflict
	case errors.Is(err, graph.ErrInvalidNode):
		return http.StatusUnprocessableEntity
	case errors.Is(err, runner.ErrQueueFull):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

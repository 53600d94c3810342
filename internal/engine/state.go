package engine

import (
	"errors"
	"fmt"

	"github.com/gyaneshwarpardhi/wavegraph/internal/graph"
)

// ErrIllegalTransition marks a status change the state tables forbid. It can
// only surface through a scheduler bug.
var ErrIllegalTransition = errors.New("illegal transition")

// RunStatus is the lifecycle of a whole run.
type RunStatus string

const (
	RunIdle      RunStatus = "idle"
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// Terminal reports whether the run has finished.
func (s RunStatus) Terminal() bool { return s == RunCompleted || s == RunFailed }

var nodeTransitions = map[graph.Status][]graph.Status{
	graph.StatusIdle:    {graph.StatusRunning, graph.StatusSkipped},
	graph.StatusRunning: {graph.StatusSuccess, graph.StatusError},
}

var runTransitions = map[RunStatus][]RunStatus{
	RunIdle:    {RunRunning},
	RunRunning: {RunCompleted, RunFailed},
}

func checkNodeTransition(id string, from, to graph.Status) error {
	for _, ok := range nodeTransitions[from] {
		if ok == to {
			return nil
		}
	}
	return fmt.Errorf("%w: node %s %s -> %s", ErrIllegalTransition, id, from, to)
}

func checkRunTransition(from, to RunStatus) error {
	for _, ok := range runTransitions[from] {
		if ok == to {
			return nil
		}
	}
	return fmt.Errorf("%w: run %s -> %s", ErrIllegalTransition, from, to)
}

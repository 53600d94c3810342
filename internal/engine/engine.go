// Package engine simulates a workflow run wave by wave.
//
// A run works on a private deep copy of the committed graph. Roots form the
// first wave; a node joins a later wave only once every predecessor is
// terminal, so fork/join patterns cannot start a join early. A node whose
// predecessors all failed or were skipped is skipped itself, while branches
// that do not depend on the failure run on.
//
// Waves are processed sequentially inside Step. Callers that want to yield
// between waves drive Step themselves; Execute loops until done and checks
// the context between waves.
package engine

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/gyaneshwarpardhi/wavegraph/internal/graph"
	"github.com/gyaneshwarpardhi/wavegraph/internal/subgraph"
)

var (
	ErrNoRoots     = errors.New("graph has no root nodes")
	ErrCyclicGraph = errors.New("graph is cyclic")
)

// Hooks lets the host supply node actions and observe transitions. Every
// field is optional.
type Hooks struct {
	// Action decides a node's outcome; a non-nil error marks it failed.
	// Defaults to Simulate.
	Action func(ctx context.Context, n graph.Node) error

	OnNodeStart    func(n graph.Node)
	OnNodeComplete func(n graph.Node)
	OnNodeError    func(n graph.Node, err error)
	OnNodeSkip     func(n graph.Node)
	OnWave         func(wave int, ids []string)

	Clock func() time.Time
}

// TransitionRecord is one entry of the execution log. The abort marker has
// an empty NodeID and Wave -1.
type TransitionRecord struct {
	Wave      int          `json:"wave"`
	NodeID    string       `json:"node_id"`
	From      graph.Status `json:"from"`
	To        graph.Status `json:"to"`
	Timestamp time.Time    `json:"timestamp"`
	Message   string       `json:"message,omitempty"`
}

// IsAbort reports whether r is the abort marker of a fatal run.
func (r TransitionRecord) IsAbort() bool { return r.NodeID == "" && r.Wave < 0 }

// Result is the outcome of a finished run.
type Result struct {
	Status   RunStatus               `json:"status"`
	Log      []TransitionRecord      `json:"log"`
	Statuses map[string]graph.Status `json:"statuses"`
	Waves    [][]string              `json:"waves"`
}

// Aborted reports whether the run stopped before scheduling any node.
func (r Result) Aborted() bool { return len(r.Log) == 1 && r.Log[0].IsAbort() }

// Run is one in-flight execution. It owns its snapshot exclusively and is
// not safe for concurrent use.
type Run struct {
	snap     *graph.Graph
	hooks    Hooks
	status   RunStatus
	position map[string]int
	pending  map[string]int
	current  []string
	wave     int
	waves    [][]string
	log      []TransitionRecord
	failed   bool
}

// NewRun snapshots g and seeds the first wave. A graph without roots, or a
// cyclic one, produces a run that is already failed with only the abort
// marker in its log.
func NewRun(g *graph.Graph, hooks Hooks) *Run {
	if hooks.Action == nil {
		hooks.Action = Simulate
	}
	if hooks.Clock == nil {
		hooks.Clock = time.Now
	}
	r := &Run{
		snap:     g.Clone(),
		hooks:    hooks,
		status:   RunIdle,
		position: make(map[string]int, g.NodeCount()),
		pending:  make(map[string]int, g.NodeCount()),
	}
	_ = r.setStatus(RunRunning)

	statuses := make(map[string]graph.Status, r.snap.NodeCount())
	for i, n := range r.snap.Nodes() {
		r.position[n.ID] = i
		r.pending[n.ID] = len(r.snap.Incoming(n.ID))
		statuses[n.ID] = graph.StatusIdle
	}
	r.snap.ApplyStatuses(statuses)

	roots := r.snap.Roots()
	if len(roots) == 0 {
		r.abort(ErrNoRoots)
		return r
	}
	if _, err := r.snap.TopologicalOrder(); err != nil {
		r.abort(ErrCyclicGraph)
		return r
	}

	ids := make([]string, 0, len(roots))
	for _, n := range roots {
		ids = append(ids, n.ID)
	}
	r.startWave(ids)
	return r
}

func (r *Run) abort(cause error) {
	r.log = []TransitionRecord{{
		Wave:      -1,
		Timestamp: r.hooks.Clock(),
		Message:   "run aborted: " + cause.Error(),
	}}
	_ = r.setStatus(RunFailed)
}

func (r *Run) setStatus(to RunStatus) error {
	if err := checkRunTransition(r.status, to); err != nil {
		return err
	}
	r.status = to
	return nil
}

// Status returns the current run status.
func (r *Run) Status() RunStatus { return r.status }

// Done reports whether no wave is left to process.
func (r *Run) Done() bool { return r.status.Terminal() }

// Wave returns the index of the wave the next Step will process.
func (r *Run) Wave() int { return r.wave }

// Pending returns the ids of the wave the next Step will process.
func (r *Run) Pending() []string {
	out := make([]string, len(r.current))
	copy(out, r.current)
	return out
}

// Step processes the current wave: every node in it runs its action and
// reaches a terminal status, then successors whose predecessors are all
// terminal either form the next wave or are skipped. Step on a finished run
// is a no-op.
func (r *Run) Step(ctx context.Context) error {
	if r.Done() {
		return nil
	}
	var ready []string
	for _, id := range r.current {
		n, _ := r.snap.Node(id)
		to, msg := graph.StatusSuccess, ""
		err := r.hooks.Action(ctx, n)
		if err != nil {
			to, msg = graph.StatusError, err.Error()
			r.failed = true
		}
		if terr := r.transition(id, to, msg); terr != nil {
			return terr
		}
		n, _ = r.snap.Node(id)
		if err != nil {
			if r.hooks.OnNodeError != nil {
				r.hooks.OnNodeError(n, err)
			}
		} else if r.hooks.OnNodeComplete != nil {
			r.hooks.OnNodeComplete(n)
		}
		next, terr := r.resolve(id)
		if terr != nil {
			return terr
		}
		ready = append(ready, next...)
	}

	if len(ready) == 0 {
		if r.failed {
			return r.setStatus(RunFailed)
		}
		return r.setStatus(RunCompleted)
	}
	r.wave++
	r.startWave(ready)
	return nil
}

// resolve decrements the successors of a terminal node. Successors that
// become eligible are returned; those whose predecessors all failed or were
// skipped are skipped here, cascading through their own successors.
func (r *Run) resolve(id string) ([]string, error) {
	var ready []string
	queue := []string{id}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, succ := range r.snap.Successors(cur) {
			r.pending[succ]--
			if r.pending[succ] > 0 {
				continue
			}
			if !r.allPredecessorsFailed(succ) {
				ready = append(ready, succ)
				continue
			}
			if err := r.transition(succ, graph.StatusSkipped, "no successful predecessor"); err != nil {
				return nil, err
			}
			if r.hooks.OnNodeSkip != nil {
				n, _ := r.snap.Node(succ)
				r.hooks.OnNodeSkip(n)
			}
			queue = append(queue, succ)
		}
	}
	return ready, nil
}

func (r *Run) allPredecessorsFailed(id string) bool {
	for _, p := range r.snap.Predecessors(id) {
		n, _ := r.snap.Node(p)
		if n.Status == graph.StatusSuccess {
			return false
		}
	}
	return true
}

// startWave orders ids by insertion position and marks them running.
func (r *Run) startWave(ids []string) {
	sort.Slice(ids, func(i, j int) bool { return r.position[ids[i]] < r.position[ids[j]] })
	r.current = ids
	r.waves = append(r.waves, append([]string(nil), ids...))
	if r.hooks.OnWave != nil {
		r.hooks.OnWave(r.wave, r.Pending())
	}
	for _, id := range ids {
		// idle -> running is always legal for a freshly scheduled node.
		_ = r.transition(id, graph.StatusRunning, "")
		if r.hooks.OnNodeStart != nil {
			n, _ := r.snap.Node(id)
			r.hooks.OnNodeStart(n)
		}
	}
}

func (r *Run) transition(id string, to graph.Status, msg string) error {
	n, ok := r.snap.Node(id)
	if !ok {
		return &graph.NodeError{NodeID: id, Err: graph.ErrUnknownNode}
	}
	if err := checkNodeTransition(id, n.Status, to); err != nil {
		return err
	}
	r.snap.ApplyStatuses(map[string]graph.Status{id: to})
	r.log = append(r.log, TransitionRecord{
		Wave:      r.wave,
		NodeID:    id,
		From:      n.Status,
		To:        to,
		Timestamp: r.hooks.Clock(),
		Message:   msg,
	})
	return nil
}

// Result returns the log and final statuses gathered so far.
func (r *Run) Result() Result {
	res := Result{
		Status:   r.status,
		Log:      append([]TransitionRecord(nil), r.log...),
		Statuses: make(map[string]graph.Status, r.snap.NodeCount()),
		Waves:    make([][]string, 0, len(r.waves)),
	}
	for _, n := range r.snap.Nodes() {
		res.Statuses[n.ID] = n.Status
	}
	for _, w := range r.waves {
		res.Waves = append(res.Waves, append([]string(nil), w...))
	}
	return res
}

// Execute runs g to completion. The context is checked between waves; on
// cancellation the snapshot is dropped and ctx's error returned.
func Execute(ctx context.Context, g *graph.Graph, hooks Hooks) (Result, error) {
	r := NewRun(g, hooks)
	for !r.Done() {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		if err := r.Step(ctx); err != nil {
			return Result{}, err
		}
	}
	return r.Result(), nil
}

// ExecuteScope runs the sub-graph at path as a run of its own. The phase
// node in the enclosing scope is not touched.
func ExecuteScope(ctx context.Context, reg *subgraph.Registry, path string, hooks Hooks) (Result, error) {
	g, err := reg.Lookup(path)
	if err != nil {
		return Result{}, err
	}
	return Execute(ctx, g, hooks)
}

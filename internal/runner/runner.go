// Package runner hosts the workflow catalog: it owns the committed graphs,
// applies scoped edits to them, and executes runs synchronously or on a
// bounded worker pool.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gyaneshwarpardhi/wavegraph/internal/action"
	"github.com/gyaneshwarpardhi/wavegraph/internal/config"
	"github.com/gyaneshwarpardhi/wavegraph/internal/engine"
	"github.com/gyaneshwarpardhi/wavegraph/internal/graph"
	"github.com/gyaneshwarpardhi/wavegraph/internal/metrics"
	"github.com/gyaneshwarpardhi/wavegraph/internal/subgraph"
)

var (
	ErrUnknownWorkflow = errors.New("unknown workflow")
	ErrUnknownRun      = errors.New("unknown run")
	ErrQueueFull       = errors.New("run queue full")
	ErrRunNotFinished  = errors.New("run not finished")
)

// RunState tracks a run record through the runner, independent of the
// engine's own run status.
type RunState string

const (
	RunQueued   RunState = "queued"
	RunActive   RunState = "running"
	RunFinished RunState = "finished"
	RunAborted  RunState = "aborted" // cancelled, timed out, or failed inside the engine
)

// RunRecord is one entry of the run history.
type RunRecord struct {
	ID          string         `json:"id"`
	WorkflowID  string         `json:"workflow_id"`
	Scope       string         `json:"scope,omitempty"`
	State       RunState       `json:"state"`
	Result      *engine.Result `json:"result,omitempty"`
	Error       string         `json:"error,omitempty"`
	SubmittedAt time.Time      `json:"submitted_at"`
	FinishedAt  time.Time      `json:"finished_at,omitempty"`
	DurationMs  int64          `json:"duration_ms"`
	WrittenBack bool           `json:"written_back"`
}

// Summary describes a catalog entry.
type Summary struct {
	ID     string   `json:"id"`
	Title  string   `json:"title"`
	Nodes  int      `json:"nodes"`
	Edges  int      `json:"edges"`
	Phases []string `json:"phases"`
}

type workflow struct {
	id    string
	title string
	graph *graph.Graph
}

type runJob struct {
	rec  *RunRecord
	root *graph.Graph
}

// Runner owns the committed workflow graphs. Edits take the write lock; runs
// clone the graph under the read lock and execute on the clone.
type Runner struct {
	mu        sync.RWMutex
	workflows map[string]*workflow
	order     []string

	registry *action.Registry
	conf     config.RunnerConf
	pool     *workerPool[*runJob, *RunRecord]

	histMu  sync.Mutex
	runs    map[string]*RunRecord
	history []string
}

// New builds every workflow in defs and starts the async worker pool. A
// workflow that fails to build fails the whole catalog. Analyzer findings
// from the import are returned for reporting.
func New(ctx context.Context, defs []config.WorkflowDef, reg *action.Registry, conf config.RunnerConf) (*Runner, []graph.ScopedFinding, error) {
	r := &Runner{
		registry: reg,
		conf:     conf,
		runs:     make(map[string]*RunRecord),
	}
	findings, err := r.Replace(defs)
	if err != nil {
		return nil, findings, err
	}
	r.pool = newWorkerPool[*runJob, *RunRecord](ctx, conf.Workers, conf.QueueDepth,
		func(ctx context.Context, j *runJob) (*RunRecord, error) {
			r.execute(ctx, j.rec, j.root)
			return j.rec, nil
		},
	)
	return r, findings, nil
}

// Replace swaps in a freshly built catalog (used on hot-reload). The old
// catalog stays in place if any workflow fails to build.
func (r *Runner) Replace(defs []config.WorkflowDef) ([]graph.ScopedFinding, error) {
	built := make(map[string]*workflow, len(defs))
	order := make([]string, 0, len(defs))
	var findings []graph.ScopedFinding
	for _, def := range defs {
		if _, dup := built[def.ID]; dup {
			return findings, fmt.Errorf("workflow %s: %w", def.ID, graph.ErrDuplicate)
		}
		g, fs, err := graph.Build(def)
		findings = append(findings, fs...)
		if err != nil {
			return findings, err
		}
		if err := r.registry.ValidateGraph(g); err != nil {
			return findings, fmt.Errorf("workflow %s: %w", def.ID, err)
		}
		built[def.ID] = &workflow{id: def.ID, title: def.Title, graph: g}
		order = append(order, def.ID)
	}
	for _, f := range findings {
		metrics.AnalysisFindings.WithLabelValues(string(f.Kind)).Inc()
	}

	r.mu.Lock()
	r.workflows = built
	r.order = order
	r.mu.Unlock()
	metrics.WorkflowsLoaded.Set(float64(len(order)))
	return findings, nil
}

// Follow makes l's reloads replace the catalog. It is the only place a
// reloaded catalog reaches the runner; a build failure rejects the reload.
func (r *Runner) Follow(l *config.Loader) {
	l.OnChange(func(cfg *config.Catalog) error {
		findings, err := r.Replace(cfg.Workflows)
		if err != nil {
			return err
		}
		for _, f := range findings {
			slog.Warn("import finding", "scope", f.Scope, "kind", f.Kind, "ids", f.IDs, "msg", f.Message)
		}
		slog.Info("workflows reloaded", "count", len(cfg.Workflows), "findings", len(findings))
		return nil
	})
}

// Workflows lists the catalog in load order.
func (r *Runner) Workflows() []Summary {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Summary, 0, len(r.order))
	for _, id := range r.order {
		wf := r.workflows[id]
		out = append(out, Summary{
			ID:     wf.id,
			Title:  wf.title,
			Nodes:  wf.graph.NodeCount(),
			Edges:  wf.graph.EdgeCount(),
			Phases: subgraph.Index(wf.graph).Phases(),
		})
	}
	return out
}

// WorkflowIDs returns the catalog ids in load order.
func (r *Runner) WorkflowIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Workflow returns a deep copy of the scope of workflow id.
func (r *Runner) Workflow(id, scope string) (*graph.Graph, error) {
	var out *graph.Graph
	err := r.read(id, scope, func(g *graph.Graph) error {
		out = g.Clone()
		return nil
	})
	return out, err
}

// NodeIDs lists the node ids of a scope; edges is true for edge ids instead.
func (r *Runner) NodeIDs(id, scope string, edges bool) []string {
	var out []string
	_ = r.read(id, scope, func(g *graph.Graph) error {
		if edges {
			for _, e := range g.Edges() {
				out = append(out, e.ID)
			}
			return nil
		}
		for _, n := range g.Nodes() {
			out = append(out, n.ID)
		}
		return nil
	})
	return out
}

func (r *Runner) lookup(id string) (*workflow, error) {
	wf, ok := r.workflows[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownWorkflow, id)
	}
	return wf, nil
}

func (r *Runner) scoped(id, scope string, fn func(*graph.Graph) error) error {
	wf, err := r.lookup(id)
	if err != nil {
		return err
	}
	nav := subgraph.NewNavigator(wf.graph)
	if err := nav.EnterPath(scope); err != nil {
		return err
	}
	return fn(nav.Current())
}

func (r *Runner) read(id, scope string, fn func(*graph.Graph) error) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.scoped(id, scope, fn)
}

func (r *Runner) write(id, scope string, fn func(*graph.Graph) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.scoped(id, scope, fn)
}

// AddNode inserts n into a scope after checking its action config.
func (r *Runner) AddNode(id, scope string, n graph.Node) error {
	if err := r.registry.ValidateNode(n); err != nil {
		return &graph.NodeError{NodeID: n.ID, Err: graph.ErrInvalidNode, Msg: err.Error()}
	}
	return r.write(id, scope, func(g *graph.Graph) error {
		return g.AddNode(n)
	})
}

// RemoveNode deletes a node and its incident edges from a scope.
func (r *Runner) RemoveNode(id, scope, nodeID string) error {
	return r.write(id, scope, func(g *graph.Graph) error {
		return g.RemoveNode(nodeID)
	})
}

// AddEdge commits e to a scope through the cycle guard.
func (r *Runner) AddEdge(id, scope string, e graph.Edge) (graph.Edge, error) {
	var committed graph.Edge
	err := r.write(id, scope, func(g *graph.Graph) error {
		var err error
		committed, err = g.AddEdge(e)
		return err
	})
	if err != nil {
		if reason := rejectReason(err); reason != "" {
			metrics.EdgesRejected.WithLabelValues(reason).Inc()
		}
		return graph.Edge{}, err
	}
	return committed, nil
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, graph.ErrCycle):
		return "cycle"
	case errors.Is(err, graph.ErrSelfLoop):
		return "self_loop"
	case errors.Is(err, graph.ErrDuplicate):
		return "duplicate"
	case errors.Is(err, graph.ErrUnknownNode):
		return "unknown_node"
	default:
		return ""
	}
}

// RemoveEdge deletes an edge from a scope.
func (r *Runner) RemoveEdge(id, scope, edgeID string) error {
	return r.write(id, scope, func(g *graph.Graph) error {
		return g.RemoveEdge(edgeID)
	})
}

// WouldCreateCycle asks the cycle guard about a proposed edge without
// committing anything. Both endpoints must exist in the scope.
func (r *Runner) WouldCreateCycle(id, scope, from, to string) (bool, error) {
	var cyclic bool
	err := r.read(id, scope, func(g *graph.Graph) error {
		for _, nid := range []string{from, to} {
			if _, ok := g.Node(nid); !ok {
				return &graph.NodeError{NodeID: nid, Err: graph.ErrUnknownNode}
			}
		}
		cyclic = graph.WouldCreateCycle(g, from, to)
		return nil
	})
	return cyclic, err
}

// Analyze validates a scope and everything nested under it. Finding scopes
// are reported relative to the workflow root.
func (r *Runner) Analyze(id, scope string) ([]graph.ScopedFinding, error) {
	var findings []graph.ScopedFinding
	err := r.read(id, scope, func(g *graph.Graph) error {
		findings = graph.Analyze(g)
		return nil
	})
	if err != nil {
		return nil, err
	}
	prefix := strings.Join(subgraph.SplitPath(scope), subgraph.Separator)
	for i := range findings {
		metrics.AnalysisFindings.WithLabelValues(string(findings[i].Kind)).Inc()
		if prefix == "" {
			continue
		}
		if findings[i].Scope == "" {
			findings[i].Scope = prefix
		} else {
			findings[i].Scope = prefix + subgraph.Separator + findings[i].Scope
		}
	}
	return findings, nil
}

// Repair drops dangling edges across the whole workflow and returns the
// removed edge ids.
func (r *Runner) Repair(id string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	wf, err := r.lookup(id)
	if err != nil {
		return nil, err
	}
	repaired, removed := graph.Repair(wf.graph)
	wf.graph = repaired
	return removed, nil
}

// Run executes a scope synchronously and records it in the history.
func (r *Runner) Run(ctx context.Context, id, scope string) (*RunRecord, error) {
	rec, root, err := r.prepare(id, scope)
	if err != nil {
		return nil, err
	}
	r.remember(rec)
	r.execute(ctx, rec, root)
	return r.snapshot(rec), nil
}

// Submit queues a scope for execution on the worker pool. The graph is
// snapshotted now, so later edits do not affect the queued run.
func (r *Runner) Submit(id, scope string) (*RunRecord, error) {
	rec, root, err := r.prepare(id, scope)
	if err != nil {
		return nil, err
	}
	r.remember(rec)
	if !r.pool.Submit(&runJob{rec: rec, root: root}) {
		r.forget(rec.ID)
		metrics.RunsDropped.Inc()
		return nil, fmt.Errorf("%w (capacity %d)", ErrQueueFull, r.pool.QueueCap())
	}
	metrics.QueueUtilization.Set(r.QueueUtilization())
	return r.snapshot(rec), nil
}

func (r *Runner) prepare(id, scope string) (*RunRecord, *graph.Graph, error) {
	r.mu.RLock()
	wf, err := r.lookup(id)
	if err != nil {
		r.mu.RUnlock()
		return nil, nil, err
	}
	root := wf.graph.Clone()
	r.mu.RUnlock()

	scope = strings.Join(subgraph.SplitPath(scope), subgraph.Separator)
	if _, err := subgraph.Index(root).Lookup(scope); err != nil {
		return nil, nil, err
	}
	rec := &RunRecord{
		ID:          uuid.NewString(),
		WorkflowID:  id,
		Scope:       scope,
		State:       RunQueued,
		SubmittedAt: time.Now(),
	}
	return rec, root, nil
}

func (r *Runner) execute(ctx context.Context, rec *RunRecord, root *graph.Graph) {
	if r.conf.RunTimeoutMs > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(r.conf.RunTimeoutMs)*time.Millisecond)
		defer cancel()
	}
	r.update(rec, func(rec *RunRecord) { rec.State = RunActive })
	slog.Info("run started", "run", rec.ID, "workflow", rec.WorkflowID, "scope", rec.Scope)

	start := time.Now()
	res, err := engine.ExecuteScope(ctx, subgraph.Index(root), rec.Scope, r.hooks())
	elapsed := time.Since(start)

	metrics.RunDuration.Observe(float64(elapsed.Milliseconds()))
	r.update(rec, func(rec *RunRecord) {
		rec.FinishedAt = time.Now()
		rec.DurationMs = elapsed.Milliseconds()
		if err != nil {
			rec.State = RunAborted
			rec.Error = err.Error()
			return
		}
		rec.State = RunFinished
		rec.Result = &res
	})
	if err != nil {
		metrics.RunsTotal.WithLabelValues(string(RunAborted)).Inc()
		slog.Warn("run aborted", "run", rec.ID, "workflow", rec.WorkflowID, "err", err)
		return
	}
	metrics.RunsTotal.WithLabelValues(string(res.Status)).Inc()
	metrics.RunWaves.Observe(float64(len(res.Waves)))
	slog.Info("run finished", "run", rec.ID, "workflow", rec.WorkflowID,
		"status", res.Status, "waves", len(res.Waves), "duration_ms", elapsed.Milliseconds())
}

func (r *Runner) hooks() engine.Hooks {
	count := func(to graph.Status) { metrics.NodeTransitions.WithLabelValues(string(to)).Inc() }
	return engine.Hooks{
		Action:         action.Hook(r.registry),
		OnNodeStart:    func(graph.Node) { count(graph.StatusRunning) },
		OnNodeComplete: func(graph.Node) { count(graph.StatusSuccess) },
		OnNodeSkip:     func(graph.Node) { count(graph.StatusSkipped) },
		OnNodeError: func(n graph.Node, err error) {
			count(graph.StatusError)
			slog.Debug("node failed", "node", n.ID, "err", err)
		},
	}
}

// RunResult returns a copy of a history entry.
func (r *Runner) RunResult(runID string) (*RunRecord, error) {
	r.histMu.Lock()
	defer r.histMu.Unlock()
	rec, ok := r.runs[runID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownRun, runID)
	}
	cp := *rec
	return &cp, nil
}

// Runs returns the history, newest first.
func (r *Runner) Runs() []RunRecord {
	r.histMu.Lock()
	defer r.histMu.Unlock()
	out := make([]RunRecord, 0, len(r.history))
	for i := len(r.history) - 1; i >= 0; i-- {
		out = append(out, *r.runs[r.history[i]])
	}
	return out
}

// WriteBack applies a finished run's final statuses to the committed scope
// it ran on. Node ids that no longer exist are ignored.
func (r *Runner) WriteBack(runID string) error {
	rec, err := r.RunResult(runID)
	if err != nil {
		return err
	}
	if rec.State != RunFinished || rec.Result == nil {
		return fmt.Errorf("%w: %s is %s", ErrRunNotFinished, runID, rec.State)
	}
	err = r.write(rec.WorkflowID, rec.Scope, func(g *graph.Graph) error {
		g.ApplyStatuses(rec.Result.Statuses)
		return nil
	})
	if err != nil {
		return err
	}
	r.histMu.Lock()
	if live, ok := r.runs[runID]; ok {
		live.WrittenBack = true
	}
	r.histMu.Unlock()
	return nil
}

func (r *Runner) remember(rec *RunRecord) {
	r.histMu.Lock()
	defer r.histMu.Unlock()
	r.runs[rec.ID] = rec
	r.history = append(r.history, rec.ID)
	limit := r.conf.HistoryLimit
	for limit > 0 && len(r.history) > limit {
		delete(r.runs, r.history[0])
		r.history = r.history[1:]
	}
}

func (r *Runner) forget(runID string) {
	r.histMu.Lock()
	defer r.histMu.Unlock()
	delete(r.runs, runID)
	for i, id := range r.history {
		if id == runID {
			r.history = append(r.history[:i], r.history[i+1:]...)
			break
		}
	}
}

func (r *Runner) update(rec *RunRecord, fn func(*RunRecord)) {
	r.histMu.Lock()
	defer r.histMu.Unlock()
	fn(rec)
}

func (r *Runner) snapshot(rec *RunRecord) *RunRecord {
	r.histMu.Lock()
	defer r.histMu.Unlock()
	cp := *rec
	return &cp
}

// QueueUtilization returns queue used / capacity (0–1).
func (r *Runner) QueueUtilization() float64 {
	if r.pool.QueueCap() == 0 {
		return 0
	}
	return float64(r.pool.QueueLen()) / float64(r.pool.QueueCap())
}

// Shutdown stops accepting async runs and waits for queued ones to finish.
func (r *Runner) Shutdown() {
	r.pool.Drain()
}

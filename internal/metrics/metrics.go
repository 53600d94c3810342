package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wavegraph_runs_total",
		Help: "Total number of finished runs, labelled by final run status.",
	}, []string{"status"})

	RunsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wavegraph_runs_dropped_total",
		Help: "Total number of async runs rejected due to a full queue.",
	})

	NodeTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wavegraph_node_transitions_total",
		Help: "Total number of node status transitions, labelled by target status.",
	}, []string{"to"})

	RunDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "wavegraph_run_duration_ms",
		Help:    "End-to-end run latency in milliseconds.",
		Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 10000},
	})

	RunWaves = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "wavegraph_run_waves",
		Help:    "Number of waves scheduled per run.",
		Buckets: prometheus.LinearBuckets(1, 2, 10),
	})

	EdgesRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wavegraph_edges_rejected_total",
		Help: "Total number of proposed edges refused, labelled by reason.",
	}, []string{"reason"})

	QueueUtilization = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "wavegraph_queue_utilization_ratio",
		Help: "Current async run queue utilization (0–1).",
	})

	AnalysisFindings = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wavegraph_analysis_findings_total",
		Help: "Total number of analyzer findings reported, labelled by kind.",
	}, []string{"kind"})

	WorkflowsLoaded = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "wavegraph_workflows_loaded",
		Help: "Number of workflows in the current catalog.",
	})
)

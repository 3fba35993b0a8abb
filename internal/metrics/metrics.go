package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RunsTotal counts finished agent runs by backend and outcome
	// ("success", "failed", "interrupted", "error").
	RunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agentrunner_runs_total",
			Help: "Total number of agent runs",
		},
		[]string{"backend", "status"},
	)

	// RunDuration tracks agent run wall-clock duration in seconds.
	RunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "agentrunner_run_duration_seconds",
			Help:    "Agent run duration in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"backend"},
	)

	// RunsInProgress tracks the number of agent subprocesses currently running.
	RunsInProgress = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "agentrunner_runs_in_progress",
			Help: "Number of agent runs currently in progress",
		},
		[]string{"backend"},
	)

	// ProbesTotal counts availability probes by result ("available", "unavailable").
	ProbesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agentrunner_probes_total",
			Help: "Total number of backend availability probes",
		},
		[]string{"backend", "result"},
	)

	// StreamEvents counts events delivered to stream consumers by kind.
	StreamEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agentrunner_stream_events_total",
			Help: "Total number of stream events delivered",
		},
		[]string{"backend", "kind"},
	)
)

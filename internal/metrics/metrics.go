// Package metrics exposes the Prometheus counters and histograms the
// gateway's long-running loops are instrumented with (SPEC_FULL.md §4.9:
// ambient observability, carried because the teacher instruments every
// long-running loop this way, not a named spec.md feature).
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// OrchestratorIterations counts loop iterations run, labeled by whether
	// the iteration ended in a tool call.
	OrchestratorIterations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rants_orchestrator_iterations_total",
		Help: "Orchestrator loop iterations run.",
	}, []string{"had_tool_intent"})

	// ToolExecutions counts tool dispatches by tool name and outcome.
	ToolExecutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rants_tool_executions_total",
		Help: "Tool executions, by tool name and outcome.",
	}, []string{"tool", "outcome"})

	// UpstreamCallDuration tracks latency of upstream model calls.
	UpstreamCallDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "rants_upstream_call_duration_seconds",
		Help:    "Upstream model call latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"endpoint"})

	// UpstreamRetries counts retry attempts issued by the upstream client.
	UpstreamRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rants_upstream_retries_total",
		Help: "Upstream call retry attempts.",
	}, []string{"endpoint"})

	// RateLimitRejections counts requests rejected by the token bucket limiter.
	RateLimitRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rants_rate_limit_rejections_total",
		Help: "Requests rejected by the rate limiter, by tenant.",
	}, []string{"tenant_id"})
)

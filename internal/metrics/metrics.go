// Package metrics holds the Prometheus instruments for engine and tool calls.
// Instruments live on a private registry that the CLI exposes on /metrics
// when --metrics-addr is set; recording is always on and cheap.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels.
const (
	OutcomeSuccess   = "success"
	OutcomeError     = "error"
	OutcomeTimeout   = "timeout"
	OutcomeCancelled = "cancelled"
)

type instruments struct {
	once     sync.Once
	registry *prometheus.Registry

	engineInvocations *prometheus.CounterVec
	engineDuration    *prometheus.HistogramVec
	engineResolutions *prometheus.CounterVec

	toolCalls    *prometheus.CounterVec
	toolDuration *prometheus.HistogramVec
	toolResults  *prometheus.CounterVec

	filesRewritten prometheus.Counter
	rewriteErrors  prometheus.Counter
}

var m instruments

func (i *instruments) init() {
	i.once.Do(func() {
		i.registry = prometheus.NewRegistry()

		buckets := []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30}

		i.engineInvocations = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tree_grep_engine_invocations_total",
			Help: "ast-grep subprocess launches by operation and outcome",
		}, []string{"op", "outcome"})
		i.engineDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tree_grep_engine_invocation_seconds",
			Help:    "Wall time of ast-grep subprocesses",
			Buckets: buckets,
		}, []string{"op"})
		i.engineResolutions = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tree_grep_engine_resolutions_total",
			Help: "Engine binary resolution attempts by source and outcome",
		}, []string{"source", "outcome"})

		i.toolCalls = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tree_grep_tool_calls_total",
			Help: "Tool calls by tool and outcome (error kind on failure)",
		}, []string{"tool", "outcome"})
		i.toolDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tree_grep_tool_call_seconds",
			Help:    "Tool call latency including engine time",
			Buckets: buckets,
		}, []string{"tool"})
		i.toolResults = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tree_grep_tool_results_total",
			Help: "Matches, findings and changes produced by tool",
		}, []string{"tool"})

		i.filesRewritten = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tree_grep_replace_files_written_total",
			Help: "Files rewritten on disk by ast_replace",
		})
		i.rewriteErrors = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tree_grep_replace_file_errors_total",
			Help: "Per-file write failures in ast_replace",
		})

		i.registry.MustRegister(
			i.engineInvocations, i.engineDuration, i.engineResolutions,
			i.toolCalls, i.toolDuration, i.toolResults,
			i.filesRewritten, i.rewriteErrors,
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	})
}

// Registry returns the registry holding every instrument.
func Registry() *prometheus.Registry {
	m.init()
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func Handler() http.Handler {
	m.init()
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func ObserveEngineInvocation(op, outcome string, d time.Duration) {
	m.init()
	m.engineInvocations.WithLabelValues(op, outcome).Inc()
	m.engineDuration.WithLabelValues(op).Observe(d.Seconds())
}

func RecordEngineResolution(source, outcome string) {
	m.init()
	if source == "" {
		source = "none"
	}
	m.engineResolutions.WithLabelValues(source, outcome).Inc()
}

// ObserveToolCall records one tool call. outcome is OutcomeSuccess or an error kind.
func ObserveToolCall(tool, outcome string, d time.Duration, results int) {
	m.init()
	m.toolCalls.WithLabelValues(tool, outcome).Inc()
	m.toolDuration.WithLabelValues(tool).Observe(d.Seconds())
	if results > 0 {
		m.toolResults.WithLabelValues(tool).Add(float64(results))
	}
}

func RecordFileRewritten() { m.init(); m.filesRewritten.Inc() }

func RecordRewriteError() { m.init(); m.rewriteErrors.Inc() }

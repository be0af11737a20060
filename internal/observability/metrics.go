package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides a centralized interface for collecting application metrics.
//
// The metrics system is built on Prometheus and tracks:
//   - Agent steps and chaining behavior
//   - LLM request performance and token consumption
//   - Tool dispatch outcomes and latencies
//   - Context compactions
//   - HTTP surface traffic and busy rejections
//
// Usage:
//
//	metrics := observability.NewMetrics()
//	metrics.RecordStep(agentID, false, completionTokens)
type Metrics struct {
	// StepCounter counts agent steps.
	// Labels: outcome (ok|tool_failed)
	StepCounter *prometheus.CounterVec

	// StepCompletionTokens tracks completion tokens consumed per step.
	StepCompletionTokens prometheus.Counter

	// ChainLength observes how many steps a single inbound request chained.
	// Buckets: 1..20
	ChainLength prometheus.Histogram

	// LLMRequestDuration measures LLM API call latency in seconds.
	// Labels: provider, model
	// Buckets: 0.1s, 0.5s, 1s, 2s, 5s, 10s, 30s, 60s
	LLMRequestDuration *prometheus.HistogramVec

	// LLMRequestCounter counts LLM requests by provider and model.
	// Labels: provider, model, status (success|error)
	LLMRequestCounter *prometheus.CounterVec

	// LLMTokensUsed tracks token consumption.
	// Labels: provider, model, type (prompt|completion)
	LLMTokensUsed *prometheus.CounterVec

	// ToolExecutionCounter counts tool invocations.
	// Labels: tool, status (success|error)
	ToolExecutionCounter *prometheus.CounterVec

	// ToolExecutionDuration measures tool execution latency in seconds.
	// Labels: tool
	ToolExecutionDuration *prometheus.HistogramVec

	// CompactionCounter counts summarize-and-trim runs.
	CompactionCounter prometheus.Counter

	// CompactionMessages tracks how many messages compactions condensed.
	CompactionMessages prometheus.Counter

	// HTTPRequestCounter counts HTTP requests.
	// Labels: method, path, status
	HTTPRequestCounter *prometheus.CounterVec

	// HTTPRequestDuration measures HTTP request latency in seconds.
	// Labels: method, path
	HTTPRequestDuration *prometheus.HistogramVec

	// BusyRejections counts requests bounced off a locked agent.
	BusyRejections prometheus.Counter

	// ErrorCounter tracks errors by component and type.
	// Labels: component, error_type
	ErrorCounter *prometheus.CounterVec
}

// NewMetrics creates and registers all application metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	return &Metrics{
		StepCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mnemos_agent_steps_total",
				Help: "Total number of agent steps by outcome",
			},
			[]string{"outcome"},
		),
		StepCompletionTokens: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "mnemos_step_completion_tokens_total",
				Help: "Completion tokens consumed across steps",
			},
		),
		ChainLength: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "mnemos_chain_length_steps",
				Help:    "Number of steps chained per inbound request",
				Buckets: prometheus.LinearBuckets(1, 1, 20),
			},
		),
		LLMRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mnemos_llm_request_duration_seconds",
				Help:    "LLM API request duration in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"provider", "model"},
		),
		LLMRequestCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mnemos_llm_requests_total",
				Help: "Total number of LLM requests",
			},
			[]string{"provider", "model", "status"},
		),
		LLMTokensUsed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mnemos_llm_tokens_total",
				Help: "Total tokens used by type",
			},
			[]string{"provider", "model", "type"},
		),
		ToolExecutionCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mnemos_tool_executions_total",
				Help: "Total number of tool executions",
			},
			[]string{"tool", "status"},
		),
		ToolExecutionDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mnemos_tool_execution_duration_seconds",
				Help:    "Tool execution duration in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
			},
			[]string{"tool"},
		),
		CompactionCounter: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "mnemos_compactions_total",
				Help: "Total number of context compactions",
			},
		),
		CompactionMessages: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "mnemos_compaction_messages_total",
				Help: "Messages condensed into summaries by compactions",
			},
		),
		HTTPRequestCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mnemos_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mnemos_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
			},
			[]string{"method", "path"},
		),
		BusyRejections: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "mnemos_busy_rejections_total",
				Help: "Requests rejected because the agent was mid-step",
			},
		),
		ErrorCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mnemos_errors_total",
				Help: "Total errors by component and type",
			},
			[]string{"component", "error_type"},
		),
	}
}

// RecordStep records one completed agent step.
func (m *Metrics) RecordStep(agentID string, toolFailed bool, completionTokens int) {
	if m == nil {
		return
	}
	outcome := "ok"
	if toolFailed {
		outcome = "tool_failed"
	}
	m.StepCounter.WithLabelValues(outcome).Inc()
	if completionTokens > 0 {
		m.StepCompletionTokens.Add(float64(completionTokens))
	}
}

// RecordChain records a finished chaining run.
func (m *Metrics) RecordChain(steps int) {
	if m == nil {
		return
	}
	m.ChainLength.Observe(float64(steps))
}

// RecordLLMRequest records a completed LLM call.
func (m *Metrics) RecordLLMRequest(provider, model, status string, durationSeconds float64, promptTokens, completionTokens int) {
	if m == nil {
		return
	}
	m.LLMRequestCounter.WithLabelValues(provider, model, status).Inc()
	m.LLMRequestDuration.WithLabelValues(provider, model).Observe(durationSeconds)
	if promptTokens > 0 {
		m.LLMTokensUsed.WithLabelValues(provider, model, "prompt").Add(float64(promptTokens))
	}
	if completionTokens > 0 {
		m.LLMTokensUsed.WithLabelValues(provider, model, "completion").Add(float64(completionTokens))
	}
}

// RecordToolExecution records a tool dispatch outcome.
func (m *Metrics) RecordToolExecution(toolName, status string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.ToolExecutionCounter.WithLabelValues(toolName, status).Inc()
	m.ToolExecutionDuration.WithLabelValues(toolName).Observe(durationSeconds)
}

// RecordCompaction records one summarize-and-trim run.
func (m *Metrics) RecordCompaction(summarizedMessages int) {
	if m == nil {
		return
	}
	m.CompactionCounter.Inc()
	m.CompactionMessages.Add(float64(summarizedMessages))
}

// RecordHTTPRequest records an HTTP request.
func (m *Metrics) RecordHTTPRequest(method, path, statusCode string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.HTTPRequestCounter.WithLabelValues(method, path, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(durationSeconds)
}

// RecordBusyRejection records a request bounced off a locked agent.
func (m *Metrics) RecordBusyRejection() {
	if m == nil {
		return
	}
	m.BusyRejections.Inc()
}

// RecordError records an error by component and type.
func (m *Metrics) RecordError(component, errorType string) {
	if m == nil {
		return
	}
	m.ErrorCounter.WithLabelValues(component, errorType).Inc()
}

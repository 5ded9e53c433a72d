package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for the query pipeline and daemon.
type Metrics struct {
	registry       *prometheus.Registry
	QueryRequests  *prometheus.CounterVec
	QueryDuration  *prometheus.HistogramVec
	ModelCalls     *prometheus.CounterVec
	ModelFailures  *prometheus.CounterVec
	ToolExecutions *prometheus.CounterVec
	ActiveSession  *prometheus.GaugeVec
	TransportErrs  *prometheus.CounterVec
}

// NewMetrics constructs a metrics registry with query pipeline collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()

	reqs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "courselens_query_requests_total",
		Help: "Total query requests by outcome",
	}, []string{"outcome"})

	durs := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "courselens_query_duration_seconds",
		Help:    "Query handling duration in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"outcome"})

	modelCalls := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "courselens_model_calls_total",
		Help: "Model calls by provider and model",
	}, []string{"provider", "model"})

	modelFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "courselens_model_failures_total",
		Help: "Model call failures by provider and model",
	}, []string{"provider", "model"})

	toolExecs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "courselens_tool_executions_total",
		Help: "Tool executions by tool name and status",
	}, []string{"tool", "status"})

	active := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "courselens_transport_active_sessions",
		Help: "Active streaming sessions by transport",
	}, []string{"transport"})

	trErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "courselens_transport_errors_total",
		Help: "Transport-level errors (handler/streaming) by transport and reason",
	}, []string{"transport", "reason"})

	reg.MustRegister(reqs, durs, modelCalls, modelFailures, toolExecs, active, trErrors)

	return &Metrics{
		registry:       reg,
		QueryRequests:  reqs,
		QueryDuration:  durs,
		ModelCalls:     modelCalls,
		ModelFailures:  modelFailures,
		ToolExecutions: toolExecs,
		ActiveSession:  active,
		TransportErrs:  trErrors,
	}
}

// Registry returns the underlying Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordQuery records one handled query with its outcome and duration.
func (m *Metrics) RecordQuery(outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	if outcome == "" {
		outcome = "unknown"
	}
	m.QueryRequests.WithLabelValues(outcome).Inc()
	m.QueryDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

// RecordModelCall increments the call counter for a provider/model pair.
func (m *Metrics) RecordModelCall(provider, model string) {
	if m == nil {
		return
	}
	if provider == "" {
		provider = "unknown"
	}
	if model == "" {
		model = "unknown"
	}
	m.ModelCalls.WithLabelValues(provider, model).Inc()
}

// RecordModelFailure increments the failure counter for a provider/model pair.
func (m *Metrics) RecordModelFailure(provider, model string) {
	if m == nil {
		return
	}
	if provider == "" {
		provider = "unknown"
	}
	if model == "" {
		model = "unknown"
	}
	m.ModelFailures.WithLabelValues(provider, model).Inc()
}

// RecordToolExecution increments the tool execution counter.
func (m *Metrics) RecordToolExecution(tool, status string) {
	if m == nil {
		return
	}
	if tool == "" {
		tool = "unknown"
	}
	if status == "" {
		status = "unknown"
	}
	m.ToolExecutions.WithLabelValues(tool, status).Inc()
}

// IncActiveSessions increments the active session gauge.
func (m *Metrics) IncActiveSessions(transport string) {
	if m == nil {
		return
	}
	m.ActiveSession.WithLabelValues(transport).Inc()
}

// DecActiveSessions decrements the active session gauge.
func (m *Metrics) DecActiveSessions(transport string) {
	if m == nil {
		return
	}
	m.ActiveSession.WithLabelValues(transport).Dec()
}

// RecordTransportError records a transport-level error.
func (m *Metrics) RecordTransportError(transport, reason string) {
	if m == nil {
		return
	}
	if transport == "" {
		transport = "unknown"
	}
	if reason == "" {
		reason = "unknown"
	}
	m.TransportErrs.WithLabelValues(transport, reason).Inc()
}

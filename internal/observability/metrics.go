package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics is the set of Prometheus collectors an orchestrator run exports,
// mirroring the teacher's internal/observability.Metrics shape (promauto
// counters/histograms registered up front) but scoped to this domain:
// agent steps, tool dispatch, PTY sessions, and wire backpressure — there
// is no message/channel/HTTP/database traffic here to measure.
type Metrics struct {
	// AgentSteps counts agent-loop activity by agent name and outcome:
	// cmd/reagent records "step" once per completed loop step and the
	// run's final outcome (complete|max_steps|error) once per run.
	AgentSteps *prometheus.CounterVec

	// ToolDispatchDuration measures tool execution latency in seconds.
	// Labels: tool_name, status (ok|error).
	ToolDispatchDuration *prometheus.HistogramVec

	// ToolDispatchCounter counts tool invocations.
	// Labels: tool_name, status (ok|error).
	ToolDispatchCounter *prometheus.CounterVec

	// DMailReverts counts D-Mail/RevertSignal triggered reverts by agent name.
	DMailReverts *prometheus.CounterVec

	// PTYSessionsActive is a gauge of currently tracked PTY sessions.
	PTYSessionsActive prometheus.Gauge

	// WireSubscribers is a gauge of currently subscribed wire consumers.
	WireSubscribers prometheus.Gauge

	// WireDropped counts droppable events discarded under backpressure.
	// Labels: event_type.
	WireDropped *prometheus.CounterVec
}

// NewMetrics registers and returns the Metrics collector set against the
// default Prometheus registerer. Call once per process.
func NewMetrics() *Metrics {
	return NewMetricsWith(prometheus.DefaultRegisterer)
}

// NewMetricsWith registers the Metrics collector set against reg, for
// tests that need an isolated registry to avoid the duplicate-registration
// panic promauto's package-level helpers would otherwise hit across
// multiple test functions.
func NewMetricsWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		AgentSteps: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reagent_agent_steps_total",
				Help: "Total number of agent loop steps by agent and outcome",
			},
			[]string{"agent", "outcome"},
		),

		ToolDispatchDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "reagent_tool_dispatch_duration_seconds",
				Help:    "Duration of tool dispatch calls in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
			},
			[]string{"tool_name", "status"},
		),

		ToolDispatchCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reagent_tool_dispatch_total",
				Help: "Total number of tool dispatch calls by tool name and status",
			},
			[]string{"tool_name", "status"},
		),

		DMailReverts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reagent_dmail_reverts_total",
				Help: "Total number of D-Mail reverts by agent name",
			},
			[]string{"agent"},
		),

		PTYSessionsActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "reagent_pty_sessions_active",
				Help: "Current number of tracked PTY sessions",
			},
		),

		WireSubscribers: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "reagent_wire_subscribers",
				Help: "Current number of subscribed wire consumers",
			},
		),

		WireDropped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reagent_wire_dropped_total",
				Help: "Total number of droppable wire events discarded under backpressure, by event type",
			},
			[]string{"event_type"},
		),
	}
}

// RecordToolDispatch records one tool dispatch's outcome and latency.
func (m *Metrics) RecordToolDispatch(toolName string, isError bool, durationSeconds float64) {
	status := "ok"
	if isError {
		status = "error"
	}
	m.ToolDispatchCounter.WithLabelValues(toolName, status).Inc()
	m.ToolDispatchDuration.WithLabelValues(toolName, status).Observe(durationSeconds)
}

// RecordAgentStep records one completed loop step's outcome.
func (m *Metrics) RecordAgentStep(agentName, outcome string) {
	m.AgentSteps.WithLabelValues(agentName, outcome).Inc()
}

// RecordDMailRevert records one D-Mail revert for agentName.
func (m *Metrics) RecordDMailRevert(agentName string) {
	m.DMailReverts.WithLabelValues(agentName).Inc()
}

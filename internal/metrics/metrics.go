// Package metrics provides Prometheus metrics for the assistant core.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the assistant.
type Metrics struct {
	ModelCallsTotal     *prometheus.CounterVec
	ModelCallDuration   *prometheus.HistogramVec
	ParseOutcomesTotal  *prometheus.CounterVec
	SummaryRunsTotal    *prometheus.CounterVec
	CalendarWritesTotal *prometheus.CounterVec
	SessionsActive      prometheus.Gauge
	ErrorsTotal         *prometheus.CounterVec

	registry *prometheus.Registry
}

// New creates and registers all metrics.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		ModelCallsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "assistant_model_calls_total",
				Help: "Total model invocations by purpose (chat, summary) and status.",
			},
			[]string{"purpose", "status"},
		),
		ModelCallDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "assistant_model_call_duration_seconds",
				Help:    "Model call duration by purpose.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"purpose"},
		),
		ParseOutcomesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "assistant_parse_outcomes_total",
				Help: "Parsed model responses by outcome (events, task_plan, text, apology, unrecognized).",
			},
			[]string{"outcome"},
		),
		SummaryRunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "assistant_summary_runs_total",
				Help: "Summarization controller runs by result (created, updated, skipped, fallback).",
			},
			[]string{"result"},
		),
		CalendarWritesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "assistant_calendar_writes_total",
				Help: "Calendar API write attempts by target (primary, shared) and status.",
			},
			[]string{"target", "status"},
		),
		SessionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "assistant_sessions_active",
				Help: "Number of live in-memory model sessions.",
			},
		),
		ErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "assistant_errors_total",
				Help: "Total errors by module and type.",
			},
			[]string{"module", "type"},
		),
		registry: reg,
	}

	reg.MustRegister(m.ModelCallsTotal)
	reg.MustRegister(m.ModelCallDuration)
	reg.MustRegister(m.ParseOutcomesTotal)
	reg.MustRegister(m.SummaryRunsTotal)
	reg.MustRegister(m.CalendarWritesTotal)
	reg.MustRegister(m.SessionsActive)
	reg.MustRegister(m.ErrorsTotal)

	return m
}

// Handler returns an http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordModelCall increments the model call counter.
func (m *Metrics) RecordModelCall(purpose, status string) {
	m.ModelCallsTotal.WithLabelValues(purpose, status).Inc()
}

// ObserveModelCall records model call duration.
func (m *Metrics) ObserveModelCall(purpose string, seconds float64) {
	m.ModelCallDuration.WithLabelValues(purpose).Observe(seconds)
}

// RecordParseOutcome increments the parse outcome counter.
func (m *Metrics) RecordParseOutcome(outcome string) {
	m.ParseOutcomesTotal.WithLabelValues(outcome).Inc()
}

// RecordSummaryRun increments the summary run counter.
func (m *Metrics) RecordSummaryRun(result string) {
	m.SummaryRunsTotal.WithLabelValues(result).Inc()
}

// RecordCalendarWrite increments the calendar write counter.
func (m *Metrics) RecordCalendarWrite(target, status string) {
	m.CalendarWritesTotal.WithLabelValues(target, status).Inc()
}

// RecordError increments the error counter.
func (m *Metrics) RecordError(module, errType string) {
	m.ErrorsTotal.WithLabelValues(module, errType).Inc()
}

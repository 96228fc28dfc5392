package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Turn outcome labels.
const (
	StatusOK       = "ok"
	StatusEmpty    = "empty"
	StatusOverflow = "overflow"
	StatusError    = "error"
)

// Turn describes one finished HandleUserMessage call.
type Turn struct {
	// Mode is the context strategy or "summary".
	Mode         string
	Status       string
	Duration     time.Duration
	PromptTokens int
	// CostUSD is zero when the endpoint reported no usage.
	CostUSD float64
}

// TurnRecorder receives per-turn telemetry from the agents.
type TurnRecorder interface {
	RecordTurn(t Turn)
	RecordCompression()
}

// NopRecorder discards everything.
type NopRecorder struct{}

func (NopRecorder) RecordTurn(Turn)    {}
func (NopRecorder) RecordCompression() {}

// Metrics is a Prometheus-backed TurnRecorder.
type Metrics struct {
	turnsTotal       *prometheus.CounterVec
	turnDuration     *prometheus.HistogramVec
	promptTokens     *prometheus.HistogramVec
	costTotal        *prometheus.CounterVec
	overflowsTotal   *prometheus.CounterVec
	compressionTotal prometheus.Counter
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		turnsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chatcore_turns_total",
				Help: "Total number of conversation turns",
			},
			[]string{"mode", "status"},
		),
		turnDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "chatcore_turn_duration_seconds",
				Help:    "Turn duration in seconds, including the completion call",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"mode"},
		),
		promptTokens: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "chatcore_prompt_tokens",
				Help:    "Estimated prompt tokens per turn",
				Buckets: prometheus.ExponentialBuckets(64, 2, 12),
			},
			[]string{"mode"},
		),
		costTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chatcore_cost_usd_total",
				Help: "Estimated spend in USD from reported token usage",
			},
			[]string{"mode"},
		),
		overflowsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chatcore_context_overflows_total",
				Help: "Turns rejected because the prompt would exceed the context budget",
			},
			[]string{"mode"},
		),
		compressionTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "chatcore_compressions_total",
				Help: "History batches folded into the running summary",
			},
		),
	}

	if reg != nil {
		reg.MustRegister(
			m.turnsTotal,
			m.turnDuration,
			m.promptTokens,
			m.costTotal,
			m.overflowsTotal,
			m.compressionTotal,
		)
	}
	return m
}

var (
	defaultMetrics *Metrics
	initOnce       sync.Once
)

// InitMetrics registers the process-wide collectors with the default
// Prometheus registry and returns them. Safe to call more than once.
func InitMetrics() *Metrics {
	initOnce.Do(func() {
		defaultMetrics = NewMetrics(prometheus.DefaultRegisterer)
	})
	return defaultMetrics
}

// MetricsHandler returns an HTTP handler for Prometheus metrics
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}

// RecordTurn implements TurnRecorder.
func (m *Metrics) RecordTurn(t Turn) {
	m.turnsTotal.WithLabelValues(t.Mode, t.Status).Inc()

	switch t.Status {
	case StatusOverflow:
		m.overflowsTotal.WithLabelValues(t.Mode).Inc()
	case StatusOK:
		m.turnDuration.WithLabelValues(t.Mode).Observe(t.Duration.Seconds())
		m.promptTokens.WithLabelValues(t.Mode).Observe(float64(t.PromptTokens))
		if t.CostUSD > 0 {
			m.costTotal.WithLabelValues(t.Mode).Add(t.CostUSD)
		}
	}
}

// RecordCompression implements TurnRecorder.
func (m *Metrics) RecordCompression() {
	m.compressionTotal.Inc()
}

// Package metrics provides Prometheus-based metrics recording for conversation turns.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder receives per-turn observations from the orchestrator.
type Recorder interface {
	ObserveTurn(phase, intent, outcome string, duration time.Duration)
	ObserveTransition(from, to string)
	ObserveCollaborator(name string, success bool, duration time.Duration)
	IncInterrupt(tag, action string)
}

// Nop discards all observations.
type Nop struct{}

func (Nop) ObserveTurn(string, string, string, time.Duration) {}
func (Nop) ObserveTransition(string, string)                  {}
func (Nop) ObserveCollaborator(string, bool, time.Duration)   {}
func (Nop) IncInterrupt(string, string)                       {}

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	turnsTotal          *prometheus.CounterVec
	turnDuration        *prometheus.HistogramVec
	transitionsTotal    *prometheus.CounterVec
	collaboratorCalls   *prometheus.CounterVec
	collaboratorLatency *prometheus.HistogramVec
	interruptsTotal     *prometheus.CounterVec
}

// NewPrometheusRecorder registers collectors on reg. A nil reg uses the default registerer.
func NewPrometheusRecorder(reg prometheus.Registerer) *PrometheusRecorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &PrometheusRecorder{
		turnsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "autofinance_turns_total",
				Help: "Total conversation turns by phase at start, classified intent, and outcome",
			},
			[]string{"phase", "intent", "outcome"},
		),
		turnDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "autofinance_turn_duration_seconds",
				Help:    "Duration of conversation turns in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"phase"},
		),
		transitionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "autofinance_phase_transitions_total",
				Help: "Total phase transitions by source and target phase",
			},
			[]string{"from", "to"},
		),
		collaboratorCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "autofinance_collaborator_calls_total",
				Help: "Total collaborator calls by collaborator and status",
			},
			[]string{"collaborator", "status"},
		),
		collaboratorLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "autofinance_collaborator_duration_seconds",
				Help:    "Duration of collaborator calls in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"collaborator"},
		),
		interruptsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "autofinance_interrupts_total",
				Help: "Total interrupt suspensions and resumptions by tag",
			},
			[]string{"tag", "action"},
		),
	}
}

// ObserveTurn records a completed turn.
func (p *PrometheusRecorder) ObserveTurn(phase, intent, outcome string, duration time.Duration) {
	p.turnsTotal.WithLabelValues(phase, intent, outcome).Inc()
	p.turnDuration.WithLabelValues(phase).Observe(duration.Seconds())
}

// ObserveTransition records a phase change. Self-transitions are ignored.
func (p *PrometheusRecorder) ObserveTransition(from, to string) {
	if from == to {
		return
	}
	p.transitionsTotal.WithLabelValues(from, to).Inc()
}

// ObserveCollaborator records one call to a collaborator.
func (p *PrometheusRecorder) ObserveCollaborator(name string, success bool, duration time.Duration) {
	status := "success"
	if !success {
		status = "error"
	}
	p.collaboratorCalls.WithLabelValues(name, status).Inc()
	p.collaboratorLatency.WithLabelValues(name).Observe(duration.Seconds())
}

// IncInterrupt counts a suspend or resume for tag.
func (p *PrometheusRecorder) IncInterrupt(tag, action string) {
	p.interruptsTotal.WithLabelValues(tag, action).Inc()
}

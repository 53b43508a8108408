package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	GenerationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "soulmate_gen_generations_total",
			Help: "Total number of generation requests",
		},
		[]string{"capability", "provider", "status"},
	)

	GenerationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "soulmate_gen_generation_duration_seconds",
			Help:    "Generation duration in seconds (end to end, including fallbacks)",
			Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"capability"},
	)

	ProviderFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "soulmate_gen_provider_failures_total",
			Help: "Total number of adapter failures by provider and reason",
		},
		[]string{"provider", "reason"},
	)

	FallbacksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "soulmate_gen_fallbacks_total",
			Help: "Total number of times the orchestrator fell through to a secondary provider",
		},
		[]string{"capability"},
	)

	InsufficientFundsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "soulmate_gen_insufficient_funds_total",
			Help: "Total number of requests rejected before any provider call for lack of balance",
		},
	)

	PollerExhaustedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "soulmate_gen_poller_exhausted_total",
			Help: "Total number of asynchronous tasks abandoned after the polling budget ran out",
		},
		[]string{"provider"},
	)

	StreamSessionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "soulmate_gen_stream_sessions_total",
			Help: "Total number of streaming sessions by backing source and terminal status",
		},
		[]string{"source", "status"},
	)

	StreamTokensTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "soulmate_gen_stream_tokens_total",
			Help: "Total number of tokens delivered over streaming sessions",
		},
	)
)

type Metrics struct {
	enabled bool
}

func New(enabled bool) *Metrics {
	return &Metrics{
		enabled: enabled,
	}
}

func (m *Metrics) isEnabled() bool {
	return m != nil && m.enabled
}

func (m *Metrics) RecordGeneration(capability, provider, status string, duration time.Duration) {
	if !m.isEnabled() {
		return
	}
	GenerationsTotal.WithLabelValues(capability, provider, status).Inc()
	GenerationDuration.WithLabelValues(capability).Observe(duration.Seconds())
}

func (m *Metrics) RecordProviderFailure(provider, reason string) {
	if !m.isEnabled() {
		return
	}
	ProviderFailuresTotal.WithLabelValues(provider, reason).Inc()
}

func (m *Metrics) RecordFallback(capability string) {
	if !m.isEnabled() {
		return
	}
	FallbacksTotal.WithLabelValues(capability).Inc()
}

func (m *Metrics) RecordInsufficientFunds() {
	if !m.isEnabled() {
		return
	}
	InsufficientFundsTotal.Inc()
}

func (m *Metrics) RecordPollerExhausted(provider string) {
	if !m.isEnabled() {
		return
	}
	PollerExhaustedTotal.WithLabelValues(provider).Inc()
}

func (m *Metrics) RecordStreamSession(source, status string) {
	if !m.isEnabled() {
		return
	}
	StreamSessionsTotal.WithLabelValues(source, status).Inc()
}

func (m *Metrics) RecordStreamTokens(count int) {
	if !m.isEnabled() || count <= 0 {
		return
	}
	StreamTokensTotal.Add(float64(count))
}

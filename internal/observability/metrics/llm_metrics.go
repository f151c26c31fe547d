package metrics

import (
	"errors"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	LLMOutcomeSuccess = "success"
	LLMOutcomeError   = "error"
)

// LLMMetrics captures provider call outcomes for the completion orchestrator.
type LLMMetrics struct {
	requests   *prometheus.CounterVec
	latency    *prometheus.HistogramVec
	fallbacks  *prometheus.CounterVec
	exhausted  prometheus.Counter
	healthy    *prometheus.GaugeVec
	tokensUsed *prometheus.CounterVec
}

// NewLLMMetrics registers the LLM collectors on registerer.
// Collectors that are already registered are reused.
func NewLLMMetrics(registerer prometheus.Registerer, cfg Config) *LLMMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "quorum"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	constLabels := prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}

	m := &LLMMetrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "quorum_llm_requests_total",
			Help:        "LLM provider attempts by provider and outcome.",
			ConstLabels: constLabels,
		}, []string{"provider", "outcome"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "quorum_llm_request_duration_seconds",
			Help:        "LLM provider call latency.",
			Buckets:     []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30, 60},
			ConstLabels: constLabels,
		}, []string{"provider"}),
		fallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "quorum_llm_fallbacks_total",
			Help:        "Requests served by a provider other than the first in order.",
			ConstLabels: constLabels,
		}, []string{"provider"}),
		exhausted: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "quorum_llm_exhausted_total",
			Help:        "Requests for which every provider failed.",
			ConstLabels: constLabels,
		}),
		healthy: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name:        "quorum_llm_provider_healthy",
			Help:        "Last health probe result per provider.",
			ConstLabels: constLabels,
		}, []string{"provider"}),
		tokensUsed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "quorum_llm_tokens_total",
			Help:        "Tokens reported by providers.",
			ConstLabels: constLabels,
		}, []string{"provider"}),
	}

	m.requests = register(registerer, m.requests)
	m.latency = register(registerer, m.latency)
	m.fallbacks = register(registerer, m.fallbacks)
	m.exhausted = register(registerer, m.exhausted)
	m.healthy = register(registerer, m.healthy)
	m.tokensUsed = register(registerer, m.tokensUsed)
	return m
}

func register[C prometheus.Collector](registerer prometheus.Registerer, c C) C {
	if err := registerer.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(C); ok {
				return existing
			}
		}
	}
	return c
}

func (m *LLMMetrics) ObserveAttempt(provider string, err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	outcome := LLMOutcomeSuccess
	if err != nil {
		outcome = LLMOutcomeError
	}
	m.requests.WithLabelValues(provider, outcome).Inc()
	m.latency.WithLabelValues(provider).Observe(elapsed.Seconds())
}

func (m *LLMMetrics) ObserveFallback(provider string) {
	if m == nil {
		return
	}
	m.fallbacks.WithLabelValues(provider).Inc()
}

func (m *LLMMetrics) ObserveExhausted() {
	if m == nil {
		return
	}
	m.exhausted.Inc()
}

func (m *LLMMetrics) ObserveHealth(provider string, healthy bool) {
	if m == nil {
		return
	}
	v := 0.0
	if healthy {
		v = 1
	}
	m.healthy.WithLabelValues(provider).Set(v)
}

func (m *LLMMetrics) ObserveTokens(provider string, tokens int) {
	if m == nil || tokens <= 0 {
		return
	}
	m.tokensUsed.WithLabelValues(provider).Add(float64(tokens))
}

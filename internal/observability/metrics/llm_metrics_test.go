package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestLLMMetricsCountsAttempts(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewLLMMetrics(reg, Config{ServiceName: "quorum", Environment: "test"})

	m.ObserveAttempt("openai", nil, 20*time.Millisecond)
	m.ObserveAttempt("openai", errors.New("boom"), 10*time.Millisecond)
	m.ObserveAttempt("qwen", nil, 10*time.Millisecond)
	m.ObserveExhausted()
	m.ObserveHealth("qwen", true)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("openai", LLMOutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("openai", LLMOutcomeError)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.exhausted))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.healthy.WithLabelValues("qwen")))
}

func TestLLMMetricsReusesRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	first := NewLLMMetrics(reg, Config{})
	second := NewLLMMetrics(reg, Config{})

	first.ObserveFallback("deepseek")
	second.ObserveFallback("deepseek")

	assert.Equal(t, 2.0, testutil.ToFloat64(first.fallbacks.WithLabelValues("deepseek")))
}

func TestNilLLMMetricsIsSafe(t *testing.T) {
	var m *LLMMetrics
	m.ObserveAttempt("openai", nil, time.Second)
	m.ObserveTokens("openai", 10)
}

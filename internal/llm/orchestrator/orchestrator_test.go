package orchestrator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/smallbiznis/quorum/internal/llm/adapters"
	"github.com/smallbiznis/quorum/internal/llm/domain"
	"github.com/smallbiznis/quorum/internal/llm/mocks"
	obsmetrics "github.com/smallbiznis/quorum/internal/observability/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var errProvider = errors.New("upstream 503")

func helloRequest() domain.CompletionRequest {
	return domain.CompletionRequest{Messages: []domain.Message{{Role: domain.RoleUser, Content: "hello"}}}
}

func newMock(ctrl *gomock.Controller, provider string) *mocks.MockAdapter {
	m := mocks.NewMockAdapter(ctrl)
	m.EXPECT().Provider().Return(provider).AnyTimes()
	return m
}

func build(t *testing.T, opts []Option, adapters ...*mocks.MockAdapter) *Orchestrator {
	t.Helper()
	b := NewBuilder(nil, zap.NewNop(), opts...)
	for _, a := range adapters {
		require.NoError(t, b.AddAdapter(a.Provider(), a))
	}
	return b.Build()
}

func counterValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	var total float64
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		for _, m := range family.GetMetric() {
			total += counterOf(m)
		}
	}
	return total
}

func counterOf(m *dto.Metric) float64 {
	if m.GetCounter() == nil {
		return 0
	}
	return m.GetCounter().GetValue()
}

func TestGenerateCompletionFallsBackInOrder(t *testing.T) {
	ctrl := gomock.NewController(t)
	primary := newMock(ctrl, "huggingface")
	secondary := newMock(ctrl, "openai")
	tertiary := newMock(ctrl, "deepseek")

	gomock.InOrder(
		primary.EXPECT().GenerateCompletion(gomock.Any(), gomock.Any()).Return(nil, errProvider),
		secondary.EXPECT().GenerateCompletion(gomock.Any(), gomock.Any()).Return(&domain.Completion{Content: "hi there", Model: "gpt-3.5-turbo"}, nil),
	)
	tertiary.EXPECT().GenerateCompletion(gomock.Any(), gomock.Any()).Times(0)

	reg := prometheus.NewRegistry()
	o := build(t, []Option{
		WithOrder("huggingface", "openai", "deepseek"),
		WithMetrics(obsmetrics.NewLLMMetrics(reg, obsmetrics.Config{})),
	}, primary, secondary, tertiary)

	completion, err := o.GenerateCompletion(context.Background(), helloRequest())
	require.NoError(t, err)
	assert.Equal(t, "hi there", completion.Content)
	assert.Equal(t, "openai", completion.Provider)

	assert.Equal(t, float64(1), counterValue(t, reg, "quorum_llm_fallbacks_total"))
	assert.Equal(t, float64(2), counterValue(t, reg, "quorum_llm_requests_total"))
}

func TestGenerateCompletionPrimarySucceeds(t *testing.T) {
	ctrl := gomock.NewController(t)
	primary := newMock(ctrl, "openai")
	fallback := newMock(ctrl, "qwen")

	primary.EXPECT().GenerateCompletion(gomock.Any(), gomock.Any()).
		Return(&domain.Completion{Content: "ok", Provider: "openai"}, nil)
	fallback.EXPECT().GenerateCompletion(gomock.Any(), gomock.Any()).Times(0)

	o := build(t, []Option{WithOrder("openai", "qwen")}, primary, fallback)

	completion, err := o.GenerateCompletion(context.Background(), helloRequest())
	require.NoError(t, err)
	assert.Equal(t, "openai", completion.Provider)
}

func TestGenerateCompletionAllProvidersExhausted(t *testing.T) {
	ctrl := gomock.NewController(t)
	names := []string{"huggingface", "openai", "deepseek", "qwen"}
	mocksByName := make([]*mocks.MockAdapter, 0, len(names))
	for _, name := range names {
		m := newMock(ctrl, name)
		// Each adapter owns its retry budget, so the orchestrator calls it once.
		m.EXPECT().GenerateCompletion(gomock.Any(), gomock.Any()).Return(nil, errProvider).Times(1)
		mocksByName = append(mocksByName, m)
	}

	reg := prometheus.NewRegistry()
	o := build(t, []Option{
		WithOrder(names[0], names[1:]...),
		WithMetrics(obsmetrics.NewLLMMetrics(reg, obsmetrics.Config{})),
	}, mocksByName...)

	_, err := o.GenerateCompletion(context.Background(), helloRequest())
	require.ErrorIs(t, err, domain.ErrAllProvidersExhausted)
	assert.NotContains(t, err.Error(), "503")
	assert.Equal(t, float64(1), counterValue(t, reg, "quorum_llm_exhausted_total"))
}

func TestGenerateCompletionWithoutAdapters(t *testing.T) {
	o := NewBuilder(nil, zap.NewNop()).Build()

	_, err := o.GenerateCompletion(context.Background(), helloRequest())
	assert.ErrorIs(t, err, domain.ErrAllProvidersExhausted)
	assert.Empty(t, o.Providers())
}

func TestGenerateCompletionRejectsEmptyRequest(t *testing.T) {
	ctrl := gomock.NewController(t)
	primary := newMock(ctrl, "openai")
	o := build(t, nil, primary)

	_, err := o.GenerateCompletion(context.Background(), domain.CompletionRequest{})
	assert.ErrorIs(t, err, domain.ErrNoMessages)
}

func TestGenerateCompletionStopsOnCancelledContext(t *testing.T) {
	ctrl := gomock.NewController(t)
	primary := newMock(ctrl, "openai")
	fallback := newMock(ctrl, "qwen")

	ctx, cancel := context.WithCancel(context.Background())
	primary.EXPECT().GenerateCompletion(gomock.Any(), gomock.Any()).DoAndReturn(
		func(context.Context, domain.CompletionRequest) (*domain.Completion, error) {
			cancel()
			return nil, context.Canceled
		})
	fallback.EXPECT().GenerateCompletion(gomock.Any(), gomock.Any()).Times(0)

	o := build(t, []Option{WithOrder("openai", "qwen")}, primary, fallback)

	_, err := o.GenerateCompletion(ctx, helloRequest())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGenerateAnalysisBuildsPrompt(t *testing.T) {
	ctrl := gomock.NewController(t)
	primary := newMock(ctrl, "openai")

	primary.EXPECT().GenerateCompletion(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, req domain.CompletionRequest) (*domain.Completion, error) {
			require.Len(t, req.Messages, 3)
			assert.Equal(t, domain.RoleSystem, req.Messages[0].Role)
			assert.Equal(t, domain.AnalysisPersona, req.Messages[0].Content)
			assert.Equal(t, "Context: survey about onboarding", req.Messages[1].Content)
			assert.Equal(t, domain.Message{Role: domain.RoleUser, Content: "summarize"}, req.Messages[2])
			require.NotNil(t, req.Temperature)
			assert.Equal(t, domain.AnalysisTemperature, *req.Temperature)
			assert.Equal(t, domain.AnalysisMaxTokens, req.MaxTokens)
			return &domain.Completion{Content: "summary"}, nil
		})

	o := build(t, nil, primary)

	text, err := o.GenerateAnalysis(context.Background(), "summarize", "survey about onboarding")
	require.NoError(t, err)
	assert.Equal(t, "summary", text)
}

func TestCheckHealthProbesConcurrently(t *testing.T) {
	ctrl := gomock.NewController(t)
	up := newMock(ctrl, "openai")
	down := newMock(ctrl, "qwen")
	slow := newMock(ctrl, "deepseek")

	up.EXPECT().IsAvailable(gomock.Any()).Return(true)
	down.EXPECT().IsAvailable(gomock.Any()).Return(false)
	slow.EXPECT().IsAvailable(gomock.Any()).DoAndReturn(func(ctx context.Context) bool {
		<-ctx.Done()
		return true
	})

	o := build(t, []Option{
		WithOrder("openai", "qwen", "deepseek"),
		WithHealthTimeout(50 * time.Millisecond),
	}, up, down, slow)

	started := time.Now()
	health := o.CheckHealth(context.Background())
	assert.Less(t, time.Since(started), 2*time.Second)
	assert.Equal(t, map[string]bool{"openai": true, "qwen": false, "deepseek": false}, health)

	// Health never reorders providers.
	assert.Equal(t, []string{"openai", "qwen", "deepseek"}, o.Providers())
}

func TestBuilderRules(t *testing.T) {
	ctrl := gomock.NewController(t)
	adapter := newMock(ctrl, "openai")

	factory := mocks.NewMockAdapterFactory(ctrl)
	factory.EXPECT().Provider().Return("openai").AnyTimes()
	factory.EXPECT().NewAdapter(gomock.Any()).DoAndReturn(func(cfg domain.AdapterConfig) (domain.Adapter, error) {
		assert.Equal(t, "sk-test", cfg.APIKey)
		assert.Equal(t, domain.DefaultMaxAttempts, cfg.MaxAttempts)
		return adapter, nil
	}).Times(1)

	b := NewBuilder(adapters.NewRegistry(factory), zap.NewNop(), WithOrder("huggingface", "openai"))

	// Missing key: absent, not an error.
	require.NoError(t, b.RegisterAdapter("huggingface", domain.AdapterConfig{}))
	require.NoError(t, b.RegisterAdapter("openai", domain.AdapterConfig{APIKey: "sk-test", BaseURL: "http://x"}))
	assert.ErrorIs(t, b.RegisterAdapter("openai", domain.AdapterConfig{APIKey: "sk-test"}), domain.ErrAdapterRegistered)
	assert.ErrorIs(t, b.RegisterAdapter("mistral", domain.AdapterConfig{APIKey: "k"}), domain.ErrProviderNotFound)

	o := b.Build()
	assert.Equal(t, []string{"openai"}, o.Providers())
	assert.ErrorIs(t, b.RegisterAdapter("qwen", domain.AdapterConfig{APIKey: "k"}), domain.ErrRegistryFrozen)
	assert.ErrorIs(t, b.AddAdapter("qwen", adapter), domain.ErrRegistryFrozen)
}

func TestBuildUsesRegistrationOrderWithoutExplicitOrder(t *testing.T) {
	ctrl := gomock.NewController(t)
	a := newMock(ctrl, "qwen")
	b := newMock(ctrl, "openai")

	o := build(t, nil, a, b)
	assert.Equal(t, []string{"qwen", "openai"}, o.Providers())
}

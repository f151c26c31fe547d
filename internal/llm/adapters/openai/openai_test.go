package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/smallbiznis/quorum/internal/llm/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newAdapter(t *testing.T, factory *Factory, url string) domain.Adapter {
	t.Helper()
	adapter, err := factory.NewAdapter(domain.AdapterConfig{
		APIKey:      "sk-test",
		BaseURL:     url,
		MaxAttempts: 3,
		RetryDelay:  time.Millisecond,
		Timeout:     time.Second,
	})
	require.NoError(t, err)
	return adapter
}

func request() domain.CompletionRequest {
	return domain.CompletionRequest{Messages: []domain.Message{{Role: domain.RoleUser, Content: "hello"}}}
}

func TestGenerateCompletion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var body chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "gpt-3.5-turbo", body.Model)
		assert.Equal(t, 0.7, body.Temperature)
		assert.Equal(t, 1000, body.MaxTokens)
		assert.False(t, body.Stream)

		_, _ = w.Write([]byte(`{"id":"c1","model":"gpt-3.5-turbo","choices":[{"message":{"role":"assistant","content":"hi"},"finish_reason":"stop"}],"usage":{"prompt_tokens":3,"completion_tokens":1,"total_tokens":4}}`))
	}))
	defer srv.Close()

	completion, err := newAdapter(t, NewFactory(zap.NewNop()), srv.URL).GenerateCompletion(context.Background(), request())
	require.NoError(t, err)
	assert.Equal(t, "hi", completion.Content)
	assert.Equal(t, ProviderOpenAI, completion.Provider)
	assert.Equal(t, "stop", completion.FinishReason)
	require.NotNil(t, completion.Usage)
	assert.Equal(t, 4, completion.Usage.TotalTokens)
}

func TestDeepSeekDefaults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "deepseek-chat", body.Model)
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"ok"}}]}`))
	}))
	defer srv.Close()

	adapter := newAdapter(t, NewDeepSeekFactory(zap.NewNop()), srv.URL)
	assert.Equal(t, ProviderDeepSeek, adapter.Provider())

	completion, err := adapter.GenerateCompletion(context.Background(), request())
	require.NoError(t, err)
	assert.Equal(t, "deepseek-chat", completion.Model)
}

func TestRetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"third time"}}]}`))
	}))
	defer srv.Close()

	completion, err := newAdapter(t, NewFactory(zap.NewNop()), srv.URL).GenerateCompletion(context.Background(), request())
	require.NoError(t, err)
	assert.Equal(t, "third time", completion.Content)
	assert.Equal(t, int32(3), calls.Load())
}

func TestRetryBudgetExhausted(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"error":{"message":"secret upstream detail"}}`))
	}))
	defer srv.Close()

	_, err := newAdapter(t, NewFactory(zap.NewNop()), srv.URL).GenerateCompletion(context.Background(), request())
	require.Error(t, err)
	assert.Equal(t, int32(3), calls.Load())
	assert.NotContains(t, err.Error(), "secret upstream detail")

	var providerErr *domain.ProviderError
	require.True(t, errors.As(err, &providerErr))
	assert.Equal(t, http.StatusBadGateway, providerErr.StatusCode)
}

func TestClientErrorsAreNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := newAdapter(t, NewFactory(zap.NewNop()), srv.URL).GenerateCompletion(context.Background(), request())
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestEmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	_, err := newAdapter(t, NewFactory(zap.NewNop()), srv.URL).GenerateCompletion(context.Background(), request())
	assert.ErrorIs(t, err, domain.ErrEmptyCompletion)
}

func TestIsAvailable(t *testing.T) {
	var healthy atomic.Bool
	healthy.Store(true)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/models", r.URL.Path)
		if !healthy.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"data":[]}`))
	}))
	defer srv.Close()

	adapter := newAdapter(t, NewFactory(zap.NewNop()), srv.URL)
	assert.True(t, adapter.IsAvailable(context.Background()))

	healthy.Store(false)
	assert.False(t, adapter.IsAvailable(context.Background()))
}

func TestNewAdapterRequiresKey(t *testing.T) {
	_, err := NewFactory(zap.NewNop()).NewAdapter(domain.AdapterConfig{BaseURL: "http://localhost"})
	assert.ErrorIs(t, err, domain.ErrInvalidConfig)
}

func TestZeroTemperatureIsSent(t *testing.T) {
	var got atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		got.Store(body["temperature"])
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"ok"}}]}`))
	}))
	defer srv.Close()

	req := request()
	req.Temperature = domain.Temp(0)
	_, err := newAdapter(t, NewFactory(zap.NewNop()), srv.URL).GenerateCompletion(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, float64(0), got.Load())
}

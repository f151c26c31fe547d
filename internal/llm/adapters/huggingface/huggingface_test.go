package huggingface

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/smallbiznis/quorum/internal/llm/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestFormatPrompt(t *testing.T) {
	prompt := FormatPrompt([]domain.Message{
		{Role: domain.RoleSystem, Content: "be brief"},
		{Role: domain.RoleUser, Content: "hello"},
		{Role: domain.RoleAssistant, Content: "hi"},
		{Role: domain.RoleUser, Content: "how are you"},
	})
	assert.Equal(t, "System: be brief\nHuman: hello\nAssistant: hi\nHuman: how are you\nAssistant:", prompt)
}

func TestCleanGeneratedText(t *testing.T) {
	prompt := "Human: hello\nAssistant:"
	generated := prompt + " Assistant: fine\nfine\nthanks"
	assert.Equal(t, "fine\nthanks", CleanGeneratedText(generated, prompt))
	assert.Equal(t, "", CleanGeneratedText(prompt, prompt))
}

func TestEstimateTokens(t *testing.T) {
	assert.Equal(t, 3, EstimateTokens("hello big world"))
	assert.Equal(t, 4, EstimateTokens("你好"))
	assert.Equal(t, 6, EstimateTokens("hi 你好, there"))
	assert.Equal(t, 0, EstimateTokens("123 !!"))
}

func TestGenerateCompletion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models/microsoft/DialoGPT-medium", r.URL.Path)

		var body inferenceRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.True(t, body.Options.WaitForModel)
		assert.False(t, body.Options.UseCache)
		assert.Equal(t, 1000, body.Parameters.MaxLength)

		resp := []generation{{GeneratedText: body.Inputs + " Sure thing"}}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	adapter, err := NewFactory(zap.NewNop()).NewAdapter(domain.AdapterConfig{
		APIKey: "hf-key", BaseURL: srv.URL, MaxAttempts: 1, RetryDelay: time.Millisecond,
	})
	require.NoError(t, err)

	completion, err := adapter.GenerateCompletion(context.Background(), domain.CompletionRequest{
		Messages: []domain.Message{{Role: domain.RoleUser, Content: "can you help"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "Sure thing", completion.Content)
	assert.Equal(t, Provider, completion.Provider)
	require.NotNil(t, completion.Usage)
	assert.Equal(t, 2, completion.Usage.CompletionTokens)
	assert.Equal(t, completion.Usage.PromptTokens+2, completion.Usage.TotalTokens)
}

func TestIsAvailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/models/gpt2", r.URL.Path)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	adapter, err := NewFactory(zap.NewNop()).NewAdapter(domain.AdapterConfig{APIKey: "k", BaseURL: srv.URL, Model: "gpt2"})
	require.NoError(t, err)
	assert.True(t, adapter.IsAvailable(context.Background()))
}

// Package openai talks to OpenAI-compatible chat completion APIs. DeepSeek
// serves the same wire format under its own base URL.
package openai

import (
	"context"
	"net/http"
	"strings"

	"github.com/smallbiznis/quorum/internal/llm/adapters"
	"github.com/smallbiznis/quorum/internal/llm/domain"
	"go.uber.org/zap"
)

const (
	ProviderOpenAI   = "openai"
	ProviderDeepSeek = "deepseek"

	defaultOpenAIModel   = "gpt-3.5-turbo"
	defaultDeepSeekModel = "deepseek-chat"
)

type Factory struct {
	provider     string
	defaultModel string
	log          *zap.Logger
}

func NewFactory(log *zap.Logger) *Factory {
	return &Factory{provider: ProviderOpenAI, defaultModel: defaultOpenAIModel, log: log}
}

func NewDeepSeekFactory(log *zap.Logger) *Factory {
	return &Factory{provider: ProviderDeepSeek, defaultModel: defaultDeepSeekModel, log: log}
}

func (f *Factory) Provider() string {
	return f.provider
}

func (f *Factory) NewAdapter(cfg domain.AdapterConfig) (domain.Adapter, error) {
	if strings.TrimSpace(cfg.Model) == "" {
		cfg.Model = f.defaultModel
	}
	client, err := adapters.NewClient(f.provider, cfg, adapters.WithLogger(f.log))
	if err != nil {
		return nil, err
	}
	return &Adapter{provider: f.provider, client: client}, nil
}

type Adapter struct {
	provider string
	client   *adapters.Client
}

type chatRequest struct {
	Model       string           `json:"model"`
	Messages    []domain.Message `json:"messages"`
	Temperature float64          `json:"temperature"`
	MaxTokens   int              `json:"max_tokens"`
	Stream      bool             `json:"stream"`
}

type chatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage *domain.Usage `json:"usage"`
}

func (a *Adapter) Provider() string {
	return a.provider
}

func (a *Adapter) GenerateCompletion(ctx context.Context, req domain.CompletionRequest) (*domain.Completion, error) {
	if err := domain.ValidateRequest(req); err != nil {
		return nil, err
	}
	payload := chatRequest{
		Model:       adapters.Model(req, a.client.Config()),
		Messages:    req.Messages,
		Temperature: adapters.Temperature(req),
		MaxTokens:   adapters.MaxTokens(req),
	}

	var resp chatResponse
	err := a.client.Retry(ctx, func(ctx context.Context) error {
		resp = chatResponse{}
		return a.client.DoJSON(ctx, http.MethodPost, "/chat/completions", payload, &resp)
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, domain.ErrEmptyCompletion
	}

	model := resp.Model
	if model == "" {
		model = payload.Model
	}
	return &domain.Completion{
		Content:      resp.Choices[0].Message.Content,
		Model:        model,
		Provider:     a.provider,
		Usage:        resp.Usage,
		FinishReason: resp.Choices[0].FinishReason,
	}, nil
}

func (a *Adapter) GenerateAnalysis(ctx context.Context, prompt, background string) (string, error) {
	completion, err := a.GenerateCompletion(ctx, domain.AnalysisRequest(prompt, background))
	if err != nil {
		return "", err
	}
	return completion.Content, nil
}

func (a *Adapter) IsAvailable(ctx context.Context) bool {
	return a.client.Probe(ctx, http.MethodGet, "/models", nil) == nil
}

// Package qwen talks to the DashScope text generation API.
package qwen

import (
	"context"
	"net/http"
	"strings"

	"github.com/smallbiznis/quorum/internal/llm/adapters"
	"github.com/smallbiznis/quorum/internal/llm/domain"
	"go.uber.org/zap"
)

const (
	Provider = "qwen"

	defaultModel   = "qwen-turbo"
	generationPath = "/services/aigc/text-generation/generation"
	topP           = 0.8
)

type Factory struct {
	log *zap.Logger
}

func NewFactory(log *zap.Logger) *Factory {
	return &Factory{log: log}
}

func (f *Factory) Provider() string {
	return Provider
}

func (f *Factory) NewAdapter(cfg domain.AdapterConfig) (domain.Adapter, error) {
	if strings.TrimSpace(cfg.Model) == "" {
		cfg.Model = defaultModel
	}
	client, err := adapters.NewClient(Provider, cfg,
		adapters.WithLogger(f.log),
		adapters.WithHeader("X-DashScope-SSE", "disable"),
	)
	if err != nil {
		return nil, err
	}
	return &Adapter{client: client}, nil
}

type Adapter struct {
	client *adapters.Client
}

type generationRequest struct {
	Model      string               `json:"model"`
	Input      generationInput      `json:"input"`
	Parameters generationParameters `json:"parameters"`
}

type generationInput struct {
	Messages []domain.Message `json:"messages"`
}

type generationParameters struct {
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
	TopP        float64 `json:"top_p,omitempty"`
}

type generationResponse struct {
	RequestID string `json:"request_id"`
	Output    struct {
		Text         string `json:"text"`
		FinishReason string `json:"finish_reason"`
	} `json:"output"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
		TotalTokens  int `json:"total_tokens"`
	} `json:"usage"`
}

func (a *Adapter) Provider() string {
	return Provider
}

func (a *Adapter) GenerateCompletion(ctx context.Context, req domain.CompletionRequest) (*domain.Completion, error) {
	if err := domain.ValidateRequest(req); err != nil {
		return nil, err
	}
	payload := generationRequest{
		Model: adapters.Model(req, a.client.Config()),
		Input: generationInput{Messages: req.Messages},
		Parameters: generationParameters{
			Temperature: adapters.Temperature(req),
			MaxTokens:   adapters.MaxTokens(req),
			TopP:        topP,
		},
	}

	var resp generationResponse
	err := a.client.Retry(ctx, func(ctx context.Context) error {
		resp = generationResponse{}
		return a.client.DoJSON(ctx, http.MethodPost, generationPath, payload, &resp)
	})
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(resp.Output.Text) == "" {
		return nil, domain.ErrEmptyCompletion
	}

	finish := resp.Output.FinishReason
	if finish == "" {
		finish = "stop"
	}
	total := resp.Usage.TotalTokens
	if total == 0 {
		total = resp.Usage.InputTokens + resp.Usage.OutputTokens
	}
	return &domain.Completion{
		Content:  resp.Output.Text,
		Model:    payload.Model,
		Provider: Provider,
		Usage: &domain.Usage{
			PromptTokens:     resp.Usage.InputTokens,
			CompletionTokens: resp.Usage.OutputTokens,
			TotalTokens:      total,
		},
		FinishReason: finish,
	}, nil
}

func (a *Adapter) GenerateAnalysis(ctx context.Context, prompt, background string) (string, error) {
	completion, err := a.GenerateCompletion(ctx, domain.AnalysisRequest(prompt, background))
	if err != nil {
		return "", err
	}
	return completion.Content, nil
}

// IsAvailable issues a one token generation; DashScope has no health endpoint.
func (a *Adapter) IsAvailable(ctx context.Context) bool {
	probe := generationRequest{
		Model:      a.client.Config().Model,
		Input:      generationInput{Messages: []domain.Message{{Role: domain.RoleUser, Content: "ping"}}},
		Parameters: generationParameters{Temperature: domain.DefaultTemperature, MaxTokens: 1},
	}
	return a.client.Probe(ctx, http.MethodPost, generationPath, probe) == nil
}

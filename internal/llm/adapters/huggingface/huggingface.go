// Package huggingface talks to the Hugging Face Inference API. Chat messages
// are flattened into a single prompt and usage is estimated from text.
package huggingface

import (
	"context"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"unicode"

	"github.com/smallbiznis/quorum/internal/llm/adapters"
	"github.com/smallbiznis/quorum/internal/llm/domain"
	"go.uber.org/zap"
)

const (
	Provider = "huggingface"

	defaultModel = "microsoft/DialoGPT-medium"
	topP         = 0.9
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
	client, err := adapters.NewClient(Provider, cfg, adapters.WithLogger(f.log))
	if err != nil {
		return nil, err
	}
	return &Adapter{client: client}, nil
}

type Adapter struct {
	client *adapters.Client
}

type inferenceRequest struct {
	Inputs     string              `json:"inputs"`
	Parameters inferenceParameters `json:"parameters"`
	Options    inferenceOptions    `json:"options"`
}

type inferenceParameters struct {
	MaxLength   int     `json:"max_length"`
	Temperature float64 `json:"temperature"`
	DoSample    bool    `json:"do_sample"`
	TopP        float64 `json:"top_p"`
}

type inferenceOptions struct {
	WaitForModel bool `json:"wait_for_model"`
	UseCache     bool `json:"use_cache"`
}

type generation struct {
	GeneratedText string `json:"generated_text"`
}

func (a *Adapter) Provider() string {
	return Provider
}

func (a *Adapter) GenerateCompletion(ctx context.Context, req domain.CompletionRequest) (*domain.Completion, error) {
	if err := domain.ValidateRequest(req); err != nil {
		return nil, err
	}
	model := adapters.Model(req, a.client.Config())
	prompt := FormatPrompt(req.Messages)
	payload := inferenceRequest{
		Inputs: prompt,
		Parameters: inferenceParameters{
			MaxLength:   adapters.MaxTokens(req),
			Temperature: adapters.Temperature(req),
			DoSample:    true,
			TopP:        topP,
		},
		Options: inferenceOptions{WaitForModel: true},
	}

	var resp []generation
	err := a.client.Retry(ctx, func(ctx context.Context) error {
		resp = nil
		return a.client.DoJSON(ctx, http.MethodPost, modelPath(model), payload, &resp)
	})
	if err != nil {
		return nil, err
	}
	if len(resp) == 0 {
		return nil, domain.ErrEmptyCompletion
	}
	text := CleanGeneratedText(resp[0].GeneratedText, prompt)
	if text == "" {
		return nil, domain.ErrEmptyCompletion
	}

	promptTokens := EstimateTokens(prompt)
	completionTokens := EstimateTokens(text)
	return &domain.Completion{
		Content:  text,
		Model:    model,
		Provider: Provider,
		Usage: &domain.Usage{
			PromptTokens:     promptTokens,
			CompletionTokens: completionTokens,
			TotalTokens:      promptTokens + completionTokens,
		},
		FinishReason: "stop",
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
	return a.client.Probe(ctx, http.MethodGet, modelPath(a.client.Config().Model), nil) == nil
}

func modelPath(model string) string {
	parts := strings.Split(model, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return "/models/" + strings.Join(parts, "/")
}

// FormatPrompt flattens chat messages into a role-prefixed transcript that
// ends with an open assistant turn.
func FormatPrompt(messages []domain.Message) string {
	var b strings.Builder
	for _, msg := range messages {
		switch msg.Role {
		case domain.RoleSystem:
			b.WriteString("System: ")
		case domain.RoleUser:
			b.WriteString("Human: ")
		case domain.RoleAssistant:
			b.WriteString("Assistant: ")
		}
		b.WriteString(msg.Content)
		b.WriteString("\n")
	}
	b.WriteString("Assistant:")
	return b.String()
}

var rolePrefix = regexp.MustCompile(`^(Assistant:|Human:|System:)`)

// CleanGeneratedText removes the echoed prompt, a leading role prefix and
// repeated lines from generated text.
func CleanGeneratedText(generated, prompt string) string {
	cleaned := strings.TrimSpace(strings.Replace(generated, prompt, "", 1))
	cleaned = strings.TrimSpace(rolePrefix.ReplaceAllString(cleaned, ""))

	seen := map[string]struct{}{}
	lines := make([]string, 0)
	for _, line := range strings.Split(cleaned, "\n") {
		if _, ok := seen[line]; ok {
			continue
		}
		seen[line] = struct{}{}
		lines = append(lines, line)
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// EstimateTokens counts two tokens per Han character and one per Latin word.
func EstimateTokens(text string) int {
	tokens := 0
	inWord := false
	for _, r := range text {
		switch {
		case unicode.Is(unicode.Han, r):
			tokens += 2
			inWord = false
		case r < unicode.MaxASCII && unicode.IsLetter(r):
			if !inWord {
				tokens++
				inWord = true
			}
		default:
			inWord = false
		}
	}
	return tokens
}

package domain

import (
	"context"
	"time"
)

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// CompletionRequest is provider independent. A nil Temperature and a zero
// MaxTokens fall back to the adapter defaults. Stream is accepted but always answered
// with a single non-streamed completion.
type CompletionRequest struct {
	Messages    []Message
	Model       string
	Temperature *float64
	MaxTokens   int
	Stream      bool
}

// Temp returns a Temperature for a CompletionRequest. Temp(0) asks for
// deterministic output.
func Temp(v float64) *float64 {
	return &v
}

type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type Completion struct {
	Content      string `json:"content"`
	Model        string `json:"model"`
	Provider     string `json:"provider"`
	Usage        *Usage `json:"usage,omitempty"`
	FinishReason string `json:"finish_reason,omitempty"`
}

const (
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 1000

	AnalysisTemperature = 0.3
	AnalysisMaxTokens   = 2000

	DefaultTimeout       = 30 * time.Second
	DefaultMaxAttempts   = 3
	DefaultRetryDelay    = time.Second
	DefaultHealthTimeout = 5 * time.Second
)

// AdapterConfig carries one provider's credentials and call policy.
type AdapterConfig struct {
	Name          string
	Provider      string
	APIKey        string
	BaseURL       string
	Model         string
	Timeout       time.Duration
	MaxAttempts   int
	RetryDelay    time.Duration
	HealthTimeout time.Duration
}

// WithDefaults fills unset call policy fields.
func (c AdapterConfig) WithDefaults() AdapterConfig {
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = DefaultRetryDelay
	}
	if c.HealthTimeout <= 0 {
		c.HealthTimeout = DefaultHealthTimeout
	}
	return c
}

// Adapter is one text generation provider. GenerateCompletion exhausts the
// adapter's own retry budget before returning an error.
type Adapter interface {
	Provider() string
	GenerateCompletion(ctx context.Context, req CompletionRequest) (*Completion, error)
	GenerateAnalysis(ctx context.Context, prompt, background string) (string, error)
	IsAvailable(ctx context.Context) bool
}

//go:generate mockgen -destination=../mocks/adapter.go -package=mocks github.com/smallbiznis/quorum/internal/llm/domain Adapter,AdapterFactory

type AdapterFactory interface {
	Provider() string
	NewAdapter(cfg AdapterConfig) (Adapter, error)
}

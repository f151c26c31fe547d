package config

import (
	"strings"
	"time"
)

// LLMConfig enumerates the generation providers available to this process.
type LLMConfig struct {
	Primary       string
	Fallbacks     []string
	Timeout       time.Duration
	MaxAttempts   int
	RetryDelay    time.Duration
	HealthTimeout time.Duration
	Providers     map[string]LLMProviderConfig
}

// LLMProviderConfig is the credential block of a single provider.
type LLMProviderConfig struct {
	Name    string
	APIKey  string
	BaseURL string
	Model   string
}

// Configured reports whether the provider has credentials.
func (c LLMProviderConfig) Configured() bool {
	return strings.TrimSpace(c.APIKey) != ""
}

type llmProviderEnvSpec struct {
	name           string
	prefix         string
	defaultBaseURL string
	defaultModel   string
}

var llmProviderSpecs = []llmProviderEnvSpec{
	{name: "huggingface", prefix: "HUGGINGFACE_", defaultBaseURL: "https://api-inference.huggingface.co", defaultModel: "microsoft/DialoGPT-medium"},
	{name: "openai", prefix: "OPENAI_", defaultBaseURL: "https://api.openai.com/v1", defaultModel: "gpt-3.5-turbo"},
	{name: "deepseek", prefix: "DEEPSEEK_", defaultBaseURL: "https://api.deepseek.com/v1", defaultModel: "deepseek-chat"},
	{name: "qwen", prefix: "QWEN_", defaultBaseURL: "https://dashscope.aliyuncs.com/api/v1", defaultModel: "qwen-turbo"},
}

func loadLLMConfig() LLMConfig {
	providers := make(map[string]LLMProviderConfig, len(llmProviderSpecs))
	for _, spec := range llmProviderSpecs {
		providers[spec.name] = LLMProviderConfig{
			Name:    spec.name,
			APIKey:  strings.TrimSpace(getenv(spec.prefix+"API_KEY", "")),
			BaseURL: strings.TrimRight(strings.TrimSpace(getenv(spec.prefix+"BASE_URL", spec.defaultBaseURL)), "/"),
			Model:   strings.TrimSpace(getenv(spec.prefix+"MODEL", spec.defaultModel)),
		}
	}

	attempts := int(getenvInt64("LLM_RETRY_ATTEMPTS", 3))
	if attempts <= 0 {
		attempts = 1
	}

	return LLMConfig{
		Primary:       strings.ToLower(strings.TrimSpace(getenv("LLM_PRIMARY", "huggingface"))),
		Fallbacks:     parseList(getenv("LLM_FALLBACKS", "openai,deepseek,qwen")),
		Timeout:       getenvDuration("LLM_TIMEOUT", 30*time.Second),
		MaxAttempts:   attempts,
		RetryDelay:    getenvDuration("LLM_RETRY_DELAY", time.Second),
		HealthTimeout: getenvDuration("LLM_HEALTH_TIMEOUT", 5*time.Second),
		Providers:     providers,
	}
}

// Order returns provider names in priority order: primary first, then fallbacks,
// without duplicates.
func (c LLMConfig) Order() []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, 1+len(c.Fallbacks))
	for _, name := range append([]string{c.Primary}, c.Fallbacks...) {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}

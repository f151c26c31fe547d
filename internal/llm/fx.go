package llm

import (
	"github.com/smallbiznis/quorum/internal/config"
	"github.com/smallbiznis/quorum/internal/llm/adapters"
	"github.com/smallbiznis/quorum/internal/llm/adapters/huggingface"
	"github.com/smallbiznis/quorum/internal/llm/adapters/openai"
	"github.com/smallbiznis/quorum/internal/llm/adapters/qwen"
	"github.com/smallbiznis/quorum/internal/llm/domain"
	"github.com/smallbiznis/quorum/internal/llm/orchestrator"
	obsmetrics "github.com/smallbiznis/quorum/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("llm",
	fx.Provide(provideRegistry),
	fx.Provide(provideOrchestrator),
)

func provideRegistry(log *zap.Logger) *adapters.Registry {
	return adapters.NewRegistry(
		huggingface.NewFactory(log),
		openai.NewFactory(log),
		openai.NewDeepSeekFactory(log),
		qwen.NewFactory(log),
	)
}

type orchestratorParams struct {
	fx.In

	Cfg      config.Config
	Registry *adapters.Registry
	Log      *zap.Logger
	Metrics  *obsmetrics.LLMMetrics `optional:"true"`
}

func provideOrchestrator(p orchestratorParams) (*orchestrator.Orchestrator, error) {
	return NewOrchestrator(p.Cfg.LLM, p.Registry, p.Log, p.Metrics)
}

// NewOrchestrator registers every configured provider in priority order.
func NewOrchestrator(cfg config.LLMConfig, registry *adapters.Registry, log *zap.Logger, metrics *obsmetrics.LLMMetrics) (*orchestrator.Orchestrator, error) {
	builder := orchestrator.NewBuilder(registry, log,
		orchestrator.WithOrder(cfg.Primary, cfg.Fallbacks...),
		orchestrator.WithMetrics(metrics),
		orchestrator.WithHealthTimeout(cfg.HealthTimeout),
	)
	for _, name := range cfg.Order() {
		provider, ok := cfg.Providers[name]
		if !ok || !registry.ProviderExists(name) {
			log.Warn("unknown llm provider in priority order", zap.String("provider", name))
			continue
		}
		err := builder.RegisterAdapter(name, domain.AdapterConfig{
			Name:          name,
			Provider:      name,
			APIKey:        provider.APIKey,
			BaseURL:       provider.BaseURL,
			Model:         provider.Model,
			Timeout:       cfg.Timeout,
			MaxAttempts:   cfg.MaxAttempts,
			RetryDelay:    cfg.RetryDelay,
			HealthTimeout: cfg.HealthTimeout,
		})
		if err != nil {
			return nil, err
		}
	}
	return builder.Build(), nil
}

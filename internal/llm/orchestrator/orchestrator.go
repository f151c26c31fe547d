package orchestrator

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/smallbiznis/quorum/internal/llm/adapters"
	"github.com/smallbiznis/quorum/internal/llm/domain"
	obsmetrics "github.com/smallbiznis/quorum/internal/observability/metrics"
	"github.com/smallbiznis/quorum/internal/observability/tracing"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type Option func(*Builder)

// WithOrder sets the priority order: primary first, then fallbacks.
func WithOrder(primary string, fallbacks ...string) Option {
	return func(b *Builder) {
		b.order = dedupe(append([]string{primary}, fallbacks...))
	}
}

func WithMetrics(m *obsmetrics.LLMMetrics) Option {
	return func(b *Builder) { b.metrics = m }
}

func WithHealthTimeout(d time.Duration) Option {
	return func(b *Builder) {
		if d > 0 {
			b.healthTimeout = d
		}
	}
}

// Builder collects adapters before the orchestrator is built. It is not safe
// for concurrent use.
type Builder struct {
	registry      *adapters.Registry
	log           *zap.Logger
	metrics       *obsmetrics.LLMMetrics
	healthTimeout time.Duration

	order      []string
	registered []string
	adapters   map[string]domain.Adapter
	built      bool
}

func NewBuilder(registry *adapters.Registry, log *zap.Logger, opts ...Option) *Builder {
	if log == nil {
		log = zap.NewNop()
	}
	b := &Builder{
		registry:      registry,
		log:           log.Named("llm.orchestrator"),
		healthTimeout: domain.DefaultHealthTimeout,
		adapters:      map[string]domain.Adapter{},
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// RegisterAdapter builds the adapter for name through the registry. A
// provider without an API key is skipped and stays absent.
func (b *Builder) RegisterAdapter(name string, cfg domain.AdapterConfig) error {
	name, err := b.checkName(name)
	if err != nil {
		return err
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		b.log.Info("llm provider not configured, skipping", zap.String("provider", name))
		return nil
	}
	provider := cfg.Provider
	if strings.TrimSpace(provider) == "" {
		provider = name
	}
	cfg.Name = name
	cfg.Provider = provider

	adapter, err := b.registry.NewAdapter(provider, cfg)
	if err != nil {
		return err
	}
	b.add(name, adapter)
	return nil
}

// AddAdapter registers an already constructed adapter under name.
func (b *Builder) AddAdapter(name string, adapter domain.Adapter) error {
	if adapter == nil {
		return domain.ErrInvalidConfig
	}
	name, err := b.checkName(name)
	if err != nil {
		return err
	}
	b.add(name, adapter)
	return nil
}

func (b *Builder) checkName(name string) (string, error) {
	if b.built {
		return "", domain.ErrRegistryFrozen
	}
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return "", domain.ErrInvalidConfig
	}
	if _, ok := b.adapters[name]; ok {
		return "", domain.ErrAdapterRegistered
	}
	return name, nil
}

func (b *Builder) add(name string, adapter domain.Adapter) {
	b.adapters[name] = adapter
	b.registered = append(b.registered, name)
	b.log.Info("llm provider registered", zap.String("provider", name))
}

// Build freezes the builder. Without an explicit order, adapters are tried in
// registration order; otherwise adapters missing from the order are unused.
func (b *Builder) Build() *Orchestrator {
	b.built = true

	order := b.order
	if len(order) == 0 {
		order = b.registered
	}
	o := &Orchestrator{
		log:           b.log,
		metrics:       b.metrics,
		tracer:        otel.Tracer("quorum/llm"),
		healthTimeout: b.healthTimeout,
		adapters:      make(map[string]domain.Adapter, len(b.adapters)),
	}
	for _, name := range order {
		adapter, ok := b.adapters[name]
		if !ok {
			continue
		}
		o.order = append(o.order, name)
		o.adapters[name] = adapter
	}
	for _, name := range b.registered {
		if _, ok := o.adapters[name]; !ok {
			b.log.Warn("llm provider registered but not in priority order", zap.String("provider", name))
		}
	}
	if len(o.order) == 0 {
		b.log.Warn("no llm providers available")
	}
	return o
}

// Orchestrator fronts the adapters with ordered fallback. It is immutable
// after Build and safe for concurrent use.
type Orchestrator struct {
	log           *zap.Logger
	metrics       *obsmetrics.LLMMetrics
	tracer        trace.Tracer
	healthTimeout time.Duration

	order    []string
	adapters map[string]domain.Adapter
}

// GenerateCompletion tries each adapter in priority order and returns the
// first success. Adapter failures are logged, never returned.
func (o *Orchestrator) GenerateCompletion(ctx context.Context, req domain.CompletionRequest) (*domain.Completion, error) {
	if err := domain.ValidateRequest(req); err != nil {
		return nil, err
	}

	ctx, span := o.tracer.Start(ctx, "llm.generate_completion")
	defer span.End()

	for i, name := range o.order {
		adapter := o.adapters[name]

		started := time.Now()
		completion, err := o.attempt(ctx, name, adapter, req)
		o.metrics.ObserveAttempt(name, err, time.Since(started))
		if err == nil {
			if completion.Provider == "" {
				completion.Provider = name
			}
			if completion.Usage != nil {
				o.metrics.ObserveTokens(name, completion.Usage.TotalTokens)
			}
			span.SetAttributes(attribute.String("llm.provider", name), attribute.Int("llm.attempted", i+1))
			o.log.Debug("completion generated", zap.String("provider", name), zap.Int("attempted", i+1))
			return completion, nil
		}

		o.log.Warn("llm provider failed", zap.String("provider", name), zap.Error(err))
		if ctxErr := ctx.Err(); ctxErr != nil {
			span.SetStatus(codes.Error, "context done")
			return nil, ctxErr
		}
		if i < len(o.order)-1 {
			o.metrics.ObserveFallback(name)
		}
	}

	o.metrics.ObserveExhausted()
	span.SetStatus(codes.Error, domain.ErrAllProvidersExhausted.Error())
	o.log.Error("all llm providers failed", zap.Strings("providers", o.order))
	return nil, domain.ErrAllProvidersExhausted
}

func (o *Orchestrator) attempt(ctx context.Context, name string, adapter domain.Adapter, req domain.CompletionRequest) (*domain.Completion, error) {
	ctx, span := o.tracer.Start(ctx, "llm.attempt", trace.WithAttributes(
		tracing.SafeAttributes(attribute.String("llm.provider", name))...,
	))
	defer span.End()

	completion, err := adapter.GenerateCompletion(ctx, req)
	if err == nil && completion == nil {
		err = domain.ErrEmptyCompletion
	}
	if err != nil {
		span.RecordError(tracing.SafeError(err))
		span.SetStatus(codes.Error, "provider failed")
		return nil, err
	}
	return completion, nil
}

// GenerateAnalysis runs an analysis prompt with the fixed persona, optional
// context, low temperature and a 2000 token budget. Only the text is returned.
func (o *Orchestrator) GenerateAnalysis(ctx context.Context, prompt, background string) (string, error) {
	completion, err := o.GenerateCompletion(ctx, domain.AnalysisRequest(prompt, background))
	if err != nil {
		return "", err
	}
	return completion.Content, nil
}

// CheckHealth probes every adapter concurrently. A failed or slow probe marks
// the provider unhealthy; results do not affect the priority order.
func (o *Orchestrator) CheckHealth(ctx context.Context) map[string]bool {
	var (
		mu     sync.Mutex
		health = make(map[string]bool, len(o.order))
	)
	g, gctx := errgroup.WithContext(ctx)
	for _, name := range o.order {
		name, adapter := name, o.adapters[name]
		g.Go(func() error {
			probeCtx, cancel := context.WithTimeout(gctx, o.healthTimeout)
			defer cancel()

			ok := adapter.IsAvailable(probeCtx)
			if errors.Is(probeCtx.Err(), context.DeadlineExceeded) {
				ok = false
			}
			o.metrics.ObserveHealth(name, ok)
			if !ok {
				o.log.Warn("llm provider unhealthy", zap.String("provider", name))
			}

			mu.Lock()
			health[name] = ok
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return health
}

// Providers returns the provider names in priority order.
func (o *Orchestrator) Providers() []string {
	out := make([]string, len(o.order))
	copy(out, o.order)
	return out
}

func dedupe(names []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(names))
	for _, name := range names {
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

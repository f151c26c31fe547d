package adapters

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/smallbiznis/quorum/internal/llm/domain"
	"github.com/smallbiznis/quorum/internal/observability/tracing"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const maxErrorBody = 4 << 10

// Client is the HTTP transport shared by the provider adapters. Every call is
// bounded by the adapter timeout and authenticated with a bearer key.
type Client struct {
	provider string
	cfg      domain.AdapterConfig
	http     *http.Client
	headers  map[string]string
	log      *zap.Logger
	tracer   trace.Tracer
}

type ClientOption func(*Client)

// WithHeader adds a static header to every request.
func WithHeader(key, value string) ClientOption {
	return func(c *Client) { c.headers[key] = value }
}

// WithHTTPClient replaces the underlying transport.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithLogger sets the logger used for provider error bodies.
func WithLogger(log *zap.Logger) ClientOption {
	return func(c *Client) {
		if log != nil {
			c.log = log
		}
	}
}

func NewClient(provider string, cfg domain.AdapterConfig, opts ...ClientOption) (*Client, error) {
	cfg = cfg.WithDefaults()
	if strings.TrimSpace(cfg.APIKey) == "" || strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, domain.ErrInvalidConfig
	}
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")

	c := &Client{
		provider: provider,
		cfg:      cfg,
		http:     &http.Client{},
		headers:  map[string]string{},
		log:      zap.NewNop(),
		tracer:   otel.Tracer("quorum/llm"),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.Named("llm." + provider)
	return c, nil
}

func (c *Client) Config() domain.AdapterConfig { return c.cfg }

// Retry runs op until it succeeds, returns a permanent error, or the attempt
// budget is spent. Attempts are spaced by the fixed retry delay.
func (c *Client) Retry(ctx context.Context, op func(ctx context.Context) error) error {
	attempt := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempt++
		err := op(ctx)
		if err == nil {
			return struct{}{}, nil
		}
		if !retryable(err) {
			return struct{}{}, backoff.Permanent(err)
		}
		c.log.Debug("provider attempt failed",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", c.cfg.MaxAttempts),
			zap.Error(err),
		)
		return struct{}{}, err
	},
		backoff.WithBackOff(backoff.NewConstantBackOff(c.cfg.RetryDelay)),
		backoff.WithMaxTries(uint(c.cfg.MaxAttempts)),
		backoff.WithMaxElapsedTime(0),
	)
	return err
}

func retryable(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	var providerErr *domain.ProviderError
	if errors.As(err, &providerErr) {
		return providerErr.Retryable()
	}
	return true
}

// DoJSON sends one request with a JSON body (nil for none) and decodes a 2xx
// JSON answer into out (nil to discard).
func (c *Client) DoJSON(ctx context.Context, method, path string, body, out any) error {
	return c.do(ctx, c.cfg.Timeout, method, path, body, out)
}

// Probe is DoJSON bounded by the health timeout.
func (c *Client) Probe(ctx context.Context, method, path string, body any) error {
	return c.do(ctx, c.cfg.HealthTimeout, method, path, body, nil)
}

func (c *Client) do(ctx context.Context, timeout time.Duration, method, path string, body, out any) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ctx, span := c.tracer.Start(ctx, "llm.http", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(tracing.SafeAttributes(
		attribute.String("llm.provider", c.provider),
		attribute.String("http.method", method),
		attribute.String("http.route", path),
	)...)

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		span.RecordError(tracing.SafeError(err))
		span.SetStatus(codes.Error, "request failed")
		return fmt.Errorf("%s: %w", c.provider, err)
	}
	defer resp.Body.Close()
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		c.log.Warn("provider returned error status",
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(raw)),
		)
		span.SetStatus(codes.Error, http.StatusText(resp.StatusCode))
		return &domain.ProviderError{Provider: c.provider, StatusCode: resp.StatusCode, Body: string(raw)}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decode response: %w", c.provider, err)
	}
	return nil
}

// Temperature returns the request temperature or the adapter default.
func Temperature(req domain.CompletionRequest) float64 {
	if req.Temperature != nil && *req.Temperature >= 0 {
		return *req.Temperature
	}
	return domain.DefaultTemperature
}

// MaxTokens returns the request token budget or the adapter default.
func MaxTokens(req domain.CompletionRequest) int {
	if req.MaxTokens > 0 {
		return req.MaxTokens
	}
	return domain.DefaultMaxTokens
}

// Model returns the request model or the configured one.
func Model(req domain.CompletionRequest, cfg domain.AdapterConfig) string {
	if m := strings.TrimSpace(req.Model); m != "" {
		return m
	}
	return cfg.Model
}

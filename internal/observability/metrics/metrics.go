package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const exportInterval = 10 * time.Second

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

// Metrics exposes points ledger instruments.
type Metrics struct {
	ledgerTransactions metric.Int64Counter
	ledgerPoints       metric.Int64Counter
	awardsSkipped      metric.Int64Counter
	rateLimitDenied    metric.Int64Counter
}

// NewProvider installs the global meter provider. Without export enabled a
// noop provider keeps every instrument cheap.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}
	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(exportInterval))),
	)
	otel.SetMeterProvider(provider)
	if lc != nil {
		lc.Append(fx.StopHook(provider.Shutdown))
	}

	log.Info("metric export enabled",
		zap.String("endpoint", cfg.ExporterEndpoint),
		zap.String("protocol", cfg.ExporterProtocol),
	)
	return provider, nil
}

// New configures the points instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "quorum"
	}
	meter := provider.Meter(name)

	ledgerTransactions, err := meter.Int64Counter("quorum_points_transactions_total",
		metric.WithDescription("Committed point transactions by direction and source."))
	if err != nil {
		return nil, err
	}
	ledgerPoints, err := meter.Int64Counter("quorum_points_amount_total",
		metric.WithDescription("Points moved by direction and source."))
	if err != nil {
		return nil, err
	}
	awardsSkipped, err := meter.Int64Counter("quorum_points_awards_skipped_total",
		metric.WithDescription("Awards skipped by reason."))
	if err != nil {
		return nil, err
	}
	rateLimitDenied, err := meter.Int64Counter("quorum_rate_limit_denied_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		ledgerTransactions: ledgerTransactions,
		ledgerPoints:       ledgerPoints,
		awardsSkipped:      awardsSkipped,
		rateLimitDenied:    rateLimitDenied,
	}, nil
}

// RecordLedgerTransaction counts a committed transaction and the points it moved.
func (m *Metrics) RecordLedgerTransaction(ctx context.Context, direction, source string, amount int64) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("direction", strings.TrimSpace(direction)),
		attribute.String("source", strings.TrimSpace(source)),
	)
	m.ledgerTransactions.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.ledgerPoints.Add(ctx, amount, metric.WithAttributes(attrs...))
}

// RecordAwardSkipped counts an award that produced no transaction.
func (m *Metrics) RecordAwardSkipped(ctx context.Context, rule, reason string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("rule", strings.TrimSpace(rule)),
		attribute.String("reason", strings.TrimSpace(reason)),
	)
	m.awardsSkipped.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordRateLimitDenied counts requests rejected by a rate limiter.
func (m *Metrics) RecordRateLimitDenied(ctx context.Context, endpoint string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("endpoint", strings.TrimSpace(endpoint)))
	m.rateLimitDenied.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	ctx := context.Background()
	switch strings.ToLower(strings.TrimSpace(protocol)) {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{otlpmetrichttp.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(ctx, opts...)
	case "grpc", "grpc/protobuf", "":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(ctx, opts...)
	}
	return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
}

var allowedLabelKeys = map[attribute.Key]struct{}{
	"direction": {},
	"source":    {},
	"rule":      {},
	"reason":    {},
	"endpoint":  {},
	"provider":  {},
}

// FilterAttributes keeps only the bounded label keys above. User ids and
// reference ids never become labels.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedLabelKeys[attr.Key]; !ok {
			continue
		}
		filtered = append(filtered, attr)
	}
	return filtered
}

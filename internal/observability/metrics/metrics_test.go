package metrics

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric/noop"
)

func TestFilterAttributesDropsForbiddenLabels(t *testing.T) {
	attrs := FilterAttributes(
		attribute.String("source", "survey_complete"),
		attribute.String("user_id", "456"),
		attribute.String("direction", "EARN"),
	)
	if len(attrs) != 2 {
		t.Fatalf("expected 2 attributes, got %d", len(attrs))
	}
	for _, attr := range attrs {
		if attr.Key == "user_id" {
			t.Fatalf("expected user_id to be dropped")
		}
	}
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.RecordLedgerTransaction(context.Background(), "EARN", "daily_login", 5)
	m.RecordAwardSkipped(context.Background(), "daily_login", "cap_reached")
	m.RecordRateLimitDenied(context.Background(), "assist")
}

func TestNewWithNoopProvider(t *testing.T) {
	m, err := New(Config{}, noop.NewMeterProvider())
	require.NoError(t, err)
	m.RecordLedgerTransaction(context.Background(), "SPEND", "template_purchase", 100)
}

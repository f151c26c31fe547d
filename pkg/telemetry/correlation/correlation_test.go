package correlation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureCorrelationIDKeepsExisting(t *testing.T) {
	ctx := ContextWithCorrelationID(context.Background(), "cid-1")
	ctx, cid := EnsureCorrelationID(ctx)
	assert.Equal(t, "cid-1", cid)
	assert.Equal(t, "cid-1", ExtractCorrelationID(ctx))
}

func TestEnsureCorrelationIDGenerates(t *testing.T) {
	ctx, cid := EnsureCorrelationID(context.Background())
	require.NotEmpty(t, cid)
	assert.Len(t, cid, 26)
	assert.Equal(t, cid, ExtractCorrelationID(ctx))
}

func TestStamp(t *testing.T) {
	ctx := ContextWithCorrelationID(context.Background(), "cid-2")

	md := Stamp(ctx, nil)
	assert.Equal(t, "cid-2", md["correlation_id"])

	md = Stamp(ctx, map[string]any{"correlation_id": "keep"})
	assert.Equal(t, "keep", md["correlation_id"])

	md = Stamp(context.Background(), map[string]any{})
	assert.NotContains(t, md, "correlation_id")
}

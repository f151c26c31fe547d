package tracing

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/attribute"
)

func TestSafeAttributesDropsSensitiveKeys(t *testing.T) {
	attrs := SafeAttributes(
		attribute.String("llm.provider", "openai"),
		attribute.String("api_key", "sk-secret"),
		attribute.String("prompt", "hello"),
	)
	assert.Len(t, attrs, 1)
	assert.Equal(t, attribute.Key("llm.provider"), attrs[0].Key)
}

func TestSafeErrorTruncates(t *testing.T) {
	assert.Nil(t, SafeError(nil))

	long := errors.New(strings.Repeat("x", 1000))
	assert.Len(t, SafeError(long).Error(), maxErrorLength)
}

func TestSamplingRatio(t *testing.T) {
	assert.Equal(t, 1.0, samplingRatio(0))
	assert.Equal(t, 1.0, samplingRatio(2))
	assert.Equal(t, 0.25, samplingRatio(0.25))
}

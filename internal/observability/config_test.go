package observability

import (
	"testing"

	"github.com/smallbiznis/quorum/internal/config"
	"github.com/stretchr/testify/assert"
)

func TestLoadConfigDefaultsServiceName(t *testing.T) {
	cfg := LoadConfig(config.Config{Environment: "production", Telemetry: config.TelemetryConfig{LogLevel: "info"}})
	assert.Equal(t, "quorum", cfg.ServiceName)
	assert.False(t, cfg.Debug())

	cfg = LoadConfig(config.Config{AppName: "quorum-api", Environment: "local"})
	assert.Equal(t, "quorum-api", cfg.ServiceName)
	assert.True(t, cfg.Debug())
}

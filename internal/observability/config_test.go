package observability

import (
	"testing"
	"time"

	"github.com/smallbiznis/esimmock/internal/config"
	"github.com/stretchr/testify/assert"
)

func clearEnv(t *testing.T) {
	for _, key := range []string{
		"LOG_LEVEL", "LOG_FORMAT", "LOG_SLOW_QUERY", "LOG_QUIET_PROBES",
		"DEPLOYMENT_ENV", "SERVICE_VERSION", "OTEL_ENABLED",
		"OTEL_EXPORTER_OTLP_ENDPOINT", "OTEL_EXPORTER_OTLP_PROTOCOL", "OTEL_EXPORTER_OTLP_TRACES_PROTOCOL",
		"OTEL_SAMPLING_RATIO",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	clearEnv(t)

	cfg := LoadConfig(config.Config{Environment: "development", AppVersion: "0.1.0", OTLPEndpoint: "collector:4317"})

	assert.Equal(t, "esimmock", cfg.ServiceName)
	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, "0.1.0", cfg.Version)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, 200*time.Millisecond, cfg.Log.SlowQuery)
	assert.True(t, cfg.Log.QuietProbes)
	assert.Equal(t, "grpc", cfg.Otel.Protocol)
	assert.Equal(t, "collector:4317", cfg.Otel.Endpoint)
	assert.False(t, cfg.Otel.Enabled)
	assert.True(t, cfg.Debug())
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("OTEL_EXPORTER_OTLP_PROTOCOL", "grpc")
	t.Setenv("OTEL_EXPORTER_OTLP_TRACES_PROTOCOL", "HTTP/protobuf")
	t.Setenv("OTEL_ENABLED", "true")
	t.Setenv("LOG_SLOW_QUERY", "1s")

	cfg := LoadConfig(config.Config{AppName: "mock", Environment: "production"})

	assert.Equal(t, "mock", cfg.ServiceName)
	assert.Equal(t, "http/protobuf", cfg.Otel.Protocol)
	assert.True(t, cfg.Otel.Enabled)
	assert.Equal(t, time.Second, cfg.Log.SlowQuery)
	assert.False(t, cfg.Debug())
}

func TestDebugFollowsLevel(t *testing.T) {
	cfg := Config{Environment: "production", Log: LogConfig{Level: "debug"}}
	assert.True(t, cfg.Debug())
}

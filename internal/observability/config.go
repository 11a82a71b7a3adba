package observability

import (
	"strings"
	"time"

	"github.com/smallbiznis/esimmock/internal/config"
	"github.com/spf13/viper"
)

// Config is the observability slice of the environment. Values come from
// the app config first and can be overridden by the OTEL_* and LOG_* variables.
type Config struct {
	ServiceName string
	Environment string
	Version     string

	Log  LogConfig
	Otel OtelConfig
}

type LogConfig struct {
	Level  string
	Format string
	// SlowQuery is the threshold above which SQL statements are logged at warn.
	SlowQuery time.Duration
	// QuietProbes drops health and metrics requests to debug.
	QuietProbes bool
}

type OtelConfig struct {
	Enabled       bool
	Endpoint      string
	Protocol      string
	SamplingRatio float64
}

func LoadConfig(cfg config.Config) Config {
	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("LOG_SLOW_QUERY", "200ms")
	v.SetDefault("LOG_QUIET_PROBES", true)
	v.SetDefault("DEPLOYMENT_ENV", cfg.Environment)
	v.SetDefault("SERVICE_VERSION", cfg.AppVersion)
	v.SetDefault("OTEL_ENABLED", cfg.IsProduction())
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", cfg.OTLPEndpoint)
	v.SetDefault("OTEL_EXPORTER_OTLP_PROTOCOL", "grpc")
	v.SetDefault("OTEL_SAMPLING_RATIO", 0.1)

	serviceName := strings.TrimSpace(cfg.AppName)
	if serviceName == "" {
		serviceName = "esimmock"
	}

	protocol := v.GetString("OTEL_EXPORTER_OTLP_PROTOCOL")
	if traces := strings.TrimSpace(v.GetString("OTEL_EXPORTER_OTLP_TRACES_PROTOCOL")); traces != "" {
		protocol = traces
	}

	return Config{
		ServiceName: serviceName,
		Environment: strings.TrimSpace(v.GetString("DEPLOYMENT_ENV")),
		Version:     strings.TrimSpace(v.GetString("SERVICE_VERSION")),
		Log: LogConfig{
			Level:       lower(v.GetString("LOG_LEVEL")),
			Format:      lower(v.GetString("LOG_FORMAT")),
			SlowQuery:   v.GetDuration("LOG_SLOW_QUERY"),
			QuietProbes: v.GetBool("LOG_QUIET_PROBES"),
		},
		Otel: OtelConfig{
			Enabled:       v.GetBool("OTEL_ENABLED"),
			Endpoint:      strings.TrimSpace(v.GetString("OTEL_EXPORTER_OTLP_ENDPOINT")),
			Protocol:      lower(protocol),
			SamplingRatio: v.GetFloat64("OTEL_SAMPLING_RATIO"),
		},
	}
}

// Debug is true for an explicit debug level or any local environment.
func (c Config) Debug() bool {
	if c.Log.Level == "debug" {
		return true
	}
	switch lower(c.Environment) {
	case "dev", "development", "local", "test":
		return true
	}
	return false
}

func lower(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

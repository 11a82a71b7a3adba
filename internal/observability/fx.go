package observability

import (
	"github.com/smallbiznis/esimmock/internal/observability/logger"
	"github.com/smallbiznis/esimmock/internal/observability/metrics"
	"github.com/smallbiznis/esimmock/internal/observability/tracing"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/fx"
	gormlogger "gorm.io/gorm/logger"
)

var Module = fx.Module("observability",
	fx.Provide(LoadConfig),
	fx.Provide(
		loggerConfig,
		gormLoggerConfig,
		logger.New,
	),
	fx.Provide(
		tracingConfig,
		tracing.NewProvider,
	),
	fx.Provide(
		metricsConfig,
		metrics.NewProvider,
		metrics.New,
		metrics.NewHTTPMetrics,
		metrics.LifecycleWithConfig,
	),
	fx.Invoke(func(*sdktrace.TracerProvider) {}),
)

func loggerConfig(cfg Config) logger.Config {
	return logger.Config{
		ServiceName: cfg.ServiceName,
		Environment: cfg.Environment,
		Version:     cfg.Version,
		Level:       cfg.Log.Level,
		Format:      cfg.Log.Format,
		Development: cfg.Debug(),
	}
}

func gormLoggerConfig(cfg Config) logger.GormLoggerConfig {
	level := gormlogger.Warn
	if cfg.Log.Level == "debug" {
		level = gormlogger.Info
	}
	return logger.GormLoggerConfig{
		Level:         level,
		SlowThreshold: cfg.Log.SlowQuery,
	}
}

func tracingConfig(cfg Config) tracing.Config {
	return tracing.Config{
		Enabled:          cfg.Otel.Enabled,
		ServiceName:      cfg.ServiceName,
		ServiceVersion:   cfg.Version,
		Environment:      cfg.Environment,
		ExporterEndpoint: cfg.Otel.Endpoint,
		ExporterProtocol: cfg.Otel.Protocol,
		SamplingRatio:    cfg.Otel.SamplingRatio,
	}
}

func metricsConfig(cfg Config) metrics.Config {
	return metrics.Config{
		Enabled:          cfg.Otel.Enabled,
		ExporterEndpoint: cfg.Otel.Endpoint,
		ExporterProtocol: cfg.Otel.Protocol,
		ServiceName:      cfg.ServiceName,
		Environment:      cfg.Environment,
	}
}

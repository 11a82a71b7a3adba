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

type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

// Metrics holds the OTLP counters for eSIM lifecycle, usage simulation and
// the mock failure and rate-limit layers. A nil *Metrics records nothing.
type Metrics struct {
	esimsProvisioned metric.Int64Counter
	provisionReplays metric.Int64Counter
	plansAttached    metric.Int64Counter
	usageSimulatedMB metric.Int64Counter
	plansDepleted    metric.Int64Counter
	injectedFailures metric.Int64Counter
	rateLimitAllowed metric.Int64Counter
	rateLimitDenied  metric.Int64Counter
}

// NewProvider returns a periodic OTLP meter provider, or a noop provider when
// export is disabled. Either way it becomes the otel global.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		mp := noop.NewMeterProvider()
		otel.SetMeterProvider(mp)
		return mp, nil
	}
	if log == nil {
		log = zap.NewNop()
	}

	exporter, err := dialExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, fmt.Errorf("metric exporter: %w", err)
	}
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(exportInterval))),
	)
	otel.SetMeterProvider(mp)

	if lc != nil {
		lc.Append(fx.StopHook(func(ctx context.Context) error {
			log.Info("flushing metrics")
			return mp.Shutdown(ctx)
		}))
	}
	log.Info("meter provider ready",
		zap.String("protocol", cfg.ExporterProtocol),
		zap.Duration("interval", exportInterval),
	)
	return mp, nil
}

// New registers the domain counters on the service meter.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	meter := provider.Meter(orService(cfg.ServiceName))
	m := &Metrics{}

	counters := []struct {
		dst  *metric.Int64Counter
		name string
		opts []metric.Int64CounterOption
	}{
		{&m.esimsProvisioned, "esimmock_esims_provisioned_total", nil},
		{&m.provisionReplays, "esimmock_provision_replays_total", nil},
		{&m.plansAttached, "esimmock_plans_attached_total", nil},
		{&m.usageSimulatedMB, "esimmock_usage_simulated_mb_total", []metric.Int64CounterOption{metric.WithUnit("MBy")}},
		{&m.plansDepleted, "esimmock_plans_depleted_total", nil},
		{&m.injectedFailures, "esimmock_injected_failures_total", nil},
		{&m.rateLimitAllowed, "esimmock_rate_limit_allowed_total", nil},
		{&m.rateLimitDenied, "esimmock_rate_limit_denied_total", nil},
	}
	for _, c := range counters {
		counter, err := meter.Int64Counter(c.name, c.opts...)
		if err != nil {
			return nil, fmt.Errorf("counter %s: %w", c.name, err)
		}
		*c.dst = counter
	}
	return m, nil
}

func (m *Metrics) add(ctx context.Context, counter metric.Int64Counter, n int64, attrs ...attribute.KeyValue) {
	if m == nil || counter == nil || n <= 0 {
		return
	}
	counter.Add(ctx, n, metric.WithAttributes(FilterAttributes(attrs...)...))
}

func label(key, value string) attribute.KeyValue {
	return attribute.String(key, strings.TrimSpace(value))
}

func (m *Metrics) RecordProvisioned(ctx context.Context, planID, profileType string) {
	if m == nil {
		return
	}
	m.add(ctx, m.esimsProvisioned, 1, label("plan_id", planID), label("profile_type", profileType))
}

// RecordProvisionReplay counts provisioning calls answered from an existing order.
func (m *Metrics) RecordProvisionReplay(ctx context.Context) {
	if m == nil {
		return
	}
	m.add(ctx, m.provisionReplays, 1)
}

func (m *Metrics) RecordPlanAttached(ctx context.Context, planID string) {
	if m == nil {
		return
	}
	m.add(ctx, m.plansAttached, 1, label("plan_id", planID))
}

// RecordUsage adds applied and discarded megabytes under the outcome label.
func (m *Metrics) RecordUsage(ctx context.Context, appliedMB, discardedMB int) {
	if m == nil {
		return
	}
	m.add(ctx, m.usageSimulatedMB, int64(appliedMB), label("outcome", "applied"))
	m.add(ctx, m.usageSimulatedMB, int64(discardedMB), label("outcome", "discarded"))
}

func (m *Metrics) RecordPlanDepleted(ctx context.Context, planID string) {
	if m == nil {
		return
	}
	m.add(ctx, m.plansDepleted, 1, label("plan_id", planID))
}

func (m *Metrics) RecordInjectedFailure(ctx context.Context, endpoint, reason string) {
	if m == nil {
		return
	}
	m.add(ctx, m.injectedFailures, 1, label("endpoint", endpoint), label("reason", reason))
}

func (m *Metrics) RecordRateLimitAllowed(ctx context.Context, endpoint string) {
	if m == nil {
		return
	}
	m.add(ctx, m.rateLimitAllowed, 1, label("endpoint", endpoint))
}

func (m *Metrics) RecordRateLimitDenied(ctx context.Context, endpoint, reason string) {
	if m == nil {
		return
	}
	m.add(ctx, m.rateLimitDenied, 1, label("endpoint", endpoint), label("reason", reason))
}

func dialExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	ctx := context.Background()
	switch strings.ToLower(strings.TrimSpace(protocol)) {
	case "", "grpc", "grpc/protobuf":
		var opts []otlpmetricgrpc.Option
		opts = append(opts, otlpmetricgrpc.WithInsecure())
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(ctx, opts...)
	case "http", "http/protobuf":
		var opts []otlpmetrichttp.Option
		opts = append(opts, otlpmetrichttp.WithInsecure())
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(ctx, opts...)
	}
	return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
}

func orService(name string) string {
	if name = strings.TrimSpace(name); name != "" {
		return name
	}
	return "esimmock"
}

// labels that may reach a metric; identifiers such as esim_id or iccid are
// unbounded and stay in logs and spans.
var allowedLabelKeys = map[attribute.Key]bool{
	"plan_id":      true,
	"profile_type": true,
	"endpoint":     true,
	"method":       true,
	"status_code":  true,
	"status":       true,
	"outcome":      true,
	"reason":       true,
}

// FilterAttributes keeps only low-cardinality labels.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	out := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if allowedLabelKeys[attr.Key] {
			out = append(out, attr)
		}
	}
	return out
}

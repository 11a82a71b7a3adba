package metrics

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestFilterAttributesDropsForbiddenLabels(t *testing.T) {
	attrs := FilterAttributes(
		attribute.String("plan_id", "bundle_usa_1gb_7d"),
		attribute.String("esim_id", "maya_1a2b3c4d"),
		attribute.String("endpoint", "/v1/connectivity/esims"),
	)
	if len(attrs) != 2 {
		t.Fatalf("expected 2 attributes, got %d", len(attrs))
	}
	if attrs[0].Key != "plan_id" && attrs[1].Key != "plan_id" {
		t.Fatalf("expected plan_id to be retained")
	}
	if attrs[0].Key != "endpoint" && attrs[1].Key != "endpoint" {
		t.Fatalf("expected endpoint to be retained")
	}
}

func TestNilMetricsAreNoops(t *testing.T) {
	var m *Metrics
	ctx := context.Background()
	m.RecordProvisioned(ctx, "bundle_usa_1gb_7d", "consumer")
	m.RecordProvisionReplay(ctx)
	m.RecordPlanAttached(ctx, "bundle_usa_1gb_7d")
	m.RecordUsage(ctx, 10, 5)
	m.RecordPlanDepleted(ctx, "bundle_usa_1gb_7d")
	m.RecordInjectedFailure(ctx, "/v1/connectivity/esims", "TIMEOUT")
	m.RecordRateLimitAllowed(ctx, "provision")
	m.RecordRateLimitDenied(ctx, "provision", "exhausted")
}

func TestNewWithNoopProvider(t *testing.T) {
	m, err := New(Config{ServiceName: "esimmock"}, noop.NewMeterProvider())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	m.RecordUsage(context.Background(), 100, 0)
}

func TestRecordUsageSplitsOutcomes(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	m, err := New(Config{ServiceName: "esimmock"}, mp)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	ctx := context.Background()
	m.RecordUsage(ctx, 1500, 0)
	m.RecordUsage(ctx, 2596, 2404)

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		t.Fatalf("collect: %v", err)
	}

	totals := map[string]int64{}
	for _, scope := range rm.ScopeMetrics {
		for _, md := range scope.Metrics {
			if md.Name != "esimmock_usage_simulated_mb_total" {
				continue
			}
			sum, ok := md.Data.(metricdata.Sum[int64])
			if !ok {
				t.Fatalf("unexpected data type %T", md.Data)
			}
			for _, dp := range sum.DataPoints {
				outcome, _ := dp.Attributes.Value("outcome")
				totals[outcome.AsString()] += dp.Value
			}
		}
	}
	if totals["applied"] != 4096 {
		t.Fatalf("expected 4096 applied MB, got %d", totals["applied"])
	}
	if totals["discarded"] != 2404 {
		t.Fatalf("expected 2404 discarded MB, got %d", totals["discarded"])
	}
}

package service

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/golang/mock/gomock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	catalogdomain "github.com/smallbiznis/esimmock/internal/catalog/domain"
	"github.com/smallbiznis/esimmock/internal/catalog/mocks"
	"github.com/smallbiznis/esimmock/internal/clock"
	"github.com/smallbiznis/esimmock/internal/esim/domain"
	"github.com/smallbiznis/esimmock/internal/esim/repository"
	"github.com/smallbiznis/esimmock/internal/identifier"
	"github.com/smallbiznis/esimmock/internal/observability/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var testNow = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

type fixture struct {
	svc      domain.Service
	db       *gorm.DB
	repo     domain.Repository
	lookup   *mocks.MockLookup
	clock    *clock.FakeClock
	registry *prometheus.Registry
}

func setup(t *testing.T) *fixture {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.Esim{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	ctrl := gomock.NewController(t)
	lookup := mocks.NewMockLookup(ctrl)
	clk := clock.NewFakeClock(testNow)
	registry := prometheus.NewRegistry()
	repo := repository.Provide()

	svc := New(Params{
		DB:          db,
		Log:         zap.NewNop(),
		GenID:       node,
		Repo:        repo,
		Catalog:     lookup,
		Identifiers: identifier.New(rand.New(rand.NewSource(42))),
		Clock:       clk,
		Lifecycle:   metrics.NewLifecycleMetrics(registry, metrics.Config{ServiceName: "esimmock", Environment: "test"}),
	})
	return &fixture{svc: svc, db: db, repo: repo, lookup: lookup, clock: clk, registry: registry}
}

func entry(id string, allowanceMB int) *catalogdomain.Entry {
	return &catalogdomain.Entry{
		PlanID:       id,
		DisplayName:  "Plan " + id,
		AllowanceMB:  allowanceMB,
		ValidityDays: 7,
		Coverage:     []string{"us"},
		PackageType:  catalogdomain.PackageTypeCountry,
	}
}

func (f *fixture) expectPlan(e *catalogdomain.Entry) {
	f.lookup.EXPECT().Resolve(gomock.Any(), e.PlanID).Return(e, nil).AnyTimes()
}

func (f *fixture) provision(t *testing.T, planID string) *domain.Esim {
	t.Helper()
	esim, err := f.svc.Provision(context.Background(), domain.ProvisionRequest{PlanID: planID})
	require.NoError(t, err)
	return esim
}

func (f *fixture) count(t *testing.T) int64 {
	t.Helper()
	n, err := f.repo.Count(context.Background(), f.db, "")
	require.NoError(t, err)
	return n
}

func TestProvisionCreatesActiveEsim(t *testing.T) {
	f := setup(t)
	f.expectPlan(entry("bundle_usa_1gb_7d", 1024))

	esim, err := f.svc.Provision(context.Background(), domain.ProvisionRequest{
		PlanID:      "bundle_usa_1gb_7d",
		CustomerRef: "qa@example.com",
	})
	require.NoError(t, err)

	assert.Equal(t, domain.StatusActive, esim.Status)
	assert.True(t, strings.HasPrefix(esim.EsimID, identifier.EsimIDPrefix))
	assert.True(t, identifier.Validate(esim.Iccid), "iccid %s", esim.Iccid)
	assert.Equal(t, "LPA:1$smdp.mock-maya.com$"+esim.ActivationCode, esim.LPA)
	assert.Equal(t, domain.DefaultProfileType, esim.ProfileType)
	assert.Empty(t, esim.ManualCode)
	require.NotNil(t, esim.ActivatedAt)
	assert.Equal(t, testNow, *esim.ActivatedAt)

	require.Len(t, esim.Plans, 1)
	plan := esim.Plans[0]
	assert.Equal(t, "bundle_usa_1gb_7d", plan.PlanID)
	assert.Equal(t, 1024, plan.AllowanceMB)
	assert.Equal(t, testNow.AddDate(0, 0, 7), plan.ExpiresAt)
	assert.Equal(t, 1024, esim.TotalRemaining())

	stored, err := f.svc.Get(context.Background(), esim.EsimID)
	require.NoError(t, err)
	assert.Equal(t, esim.Iccid, stored.Iccid)
}

func TestProvisionExtendedProfile(t *testing.T) {
	f := setup(t)
	f.expectPlan(entry("bundle_usa_1gb_7d", 1024))

	esim, err := f.svc.Provision(context.Background(), domain.ProvisionRequest{
		PlanID:   "bundle_usa_1gb_7d",
		Extended: true,
	})
	require.NoError(t, err)
	assert.Regexp(t, `^[0-9A-F]{16}$`, esim.ManualCode)
	assert.Equal(t, identifier.SmdpAddress, esim.SmdpAddress)
	assert.Equal(t, identifier.DefaultAPN, esim.APN)
	assert.True(t, esim.AutoAPN)
}

func TestProvisionIsIdempotentPerOrder(t *testing.T) {
	f := setup(t)
	f.lookup.EXPECT().
		Resolve(gomock.Any(), "bundle_usa_1gb_7d").
		Return(entry("bundle_usa_1gb_7d", 1024), nil).
		Times(1)

	req := domain.ProvisionRequest{
		PlanID:   "bundle_usa_1gb_7d",
		Metadata: map[string]any{"orderId": "order-123"},
	}
	first, err := f.svc.Provision(context.Background(), req)
	require.NoError(t, err)

	f.clock.Advance(time.Hour)
	second, err := f.svc.Provision(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, first.EsimID, second.EsimID)
	assert.Equal(t, first.Iccid, second.Iccid)
	assert.Len(t, second.Plans, 1)
	assert.EqualValues(t, 1, f.count(t))
}

func TestProvisionUnknownPlan(t *testing.T) {
	f := setup(t)
	f.lookup.EXPECT().Resolve(gomock.Any(), "bundle_nope").Return(nil, catalogdomain.ErrNotFound)

	_, err := f.svc.Provision(context.Background(), domain.ProvisionRequest{PlanID: "bundle_nope"})
	require.ErrorIs(t, err, domain.ErrNotFound)
	var nf *domain.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, domain.KindPlan, nf.Kind)
	assert.Equal(t, "bundle_nope", nf.ID)
	assert.Zero(t, f.count(t))

	_, err = f.svc.Provision(context.Background(), domain.ProvisionRequest{})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestAttachPlanTopOff(t *testing.T) {
	f := setup(t)
	f.expectPlan(entry("p100", 100))
	f.expectPlan(entry("p200", 200))

	esim := f.provision(t, "p100")
	f.clock.Advance(time.Hour)

	updated, err := f.svc.AttachPlan(context.Background(), esim.EsimID, "p200")
	require.NoError(t, err)
	require.Len(t, updated.Plans, 2)
	assert.Equal(t, "p100", updated.Plans[0].PlanID)
	assert.Equal(t, "p200", updated.Plans[1].PlanID)
	assert.Equal(t, testNow.Add(time.Hour), updated.Plans[1].AttachedAt)
	assert.Equal(t, 300, updated.TotalAllowance)
	assert.Equal(t, 300, updated.TotalRemaining())
	assert.Equal(t, testNow, *updated.ActivatedAt)
}

func TestAttachPlanPromotesProvisionedEsim(t *testing.T) {
	f := setup(t)
	f.expectPlan(entry("p100", 100))
	esim := f.provision(t, "p100")

	_, err := f.svc.ForceStatusChange(context.Background(), esim.EsimID, "provisioned")
	require.NoError(t, err)

	f.clock.Advance(time.Minute)
	updated, err := f.svc.AttachPlan(context.Background(), esim.EsimID, "p100")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusActive, updated.Status)
	assert.Equal(t, testNow.Add(time.Minute), *updated.ActivatedAt)
}

func TestAttachPlanGuards(t *testing.T) {
	f := setup(t)
	f.expectPlan(entry("p100", 100))
	ctx := context.Background()

	_, err := f.svc.AttachPlan(ctx, "maya_missing", "p100")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	deactivated := f.provision(t, "p100")
	_, err = f.svc.Deactivate(ctx, deactivated.EsimID)
	require.NoError(t, err)
	_, err = f.svc.AttachPlan(ctx, deactivated.EsimID, "p100")
	assert.ErrorIs(t, err, domain.ErrInvalidState)
	assert.NotErrorIs(t, err, domain.ErrExpired)

	expired := f.provision(t, "p100")
	_, err = f.svc.ForceStatusChange(ctx, expired.EsimID, "expired")
	require.NoError(t, err)
	_, err = f.svc.AttachPlan(ctx, expired.EsimID, "p100")
	assert.ErrorIs(t, err, domain.ErrExpired)
	assert.NotErrorIs(t, err, domain.ErrInvalidState)

	reloaded, err := f.svc.Get(ctx, expired.EsimID)
	require.NoError(t, err)
	assert.Len(t, reloaded.Plans, 1)
}

func TestSimulateUsageFIFO(t *testing.T) {
	f := setup(t)
	f.expectPlan(entry("p100", 100))
	f.expectPlan(entry("p200", 200))
	ctx := context.Background()

	esim := f.provision(t, "p100")
	_, err := f.svc.AttachPlan(ctx, esim.EsimID, "p200")
	require.NoError(t, err)

	f.clock.Advance(time.Hour)
	report, err := f.svc.SimulateUsage(ctx, esim.EsimID, 150)
	require.NoError(t, err)
	got := report.Esim
	assert.Equal(t, domain.PlanStatusDepleted, got.Plans[0].Status)
	assert.Equal(t, 0, got.Plans[0].RemainingMB)
	assert.Equal(t, domain.PlanStatusActive, got.Plans[1].Status)
	assert.Equal(t, 150, got.Plans[1].RemainingMB)
	assert.Equal(t, 150, got.TotalRemaining())
	assert.Equal(t, testNow.Add(time.Hour), *got.LastUsedAt)
	assert.True(t, got.UpdatedAt.Equal(testNow.Add(time.Hour)), "updatedAt %s", got.UpdatedAt)
	assert.True(t, got.CreatedAt.Equal(testNow), "createdAt %s", got.CreatedAt)

	report, err = f.svc.SimulateUsage(ctx, esim.EsimID, 300)
	require.NoError(t, err)
	got = report.Esim
	assert.Equal(t, domain.PlanStatusDepleted, got.Plans[1].Status)
	assert.Equal(t, 150, report.Result.DiscardedMB)
	assert.Equal(t, 0, got.TotalRemaining())
	assert.Equal(t, 300, got.TotalUsed)
	assert.Equal(t, domain.StatusActive, got.Status, "depletion does not change the eSIM status")

	stored, err := f.svc.Get(ctx, esim.EsimID)
	require.NoError(t, err)
	assert.True(t, stored.UpdatedAt.Equal(testNow.Add(time.Hour)), "stored updatedAt %s", stored.UpdatedAt)
	assert.True(t, stored.CreatedAt.Equal(testNow), "stored createdAt %s", stored.CreatedAt)
	for _, p := range stored.Plans {
		assert.Equal(t, p.AllowanceMB, p.UsedMB+p.RemainingMB)
	}

	expected := `
# HELP esimmock_usage_mb_total Simulated usage in megabytes, split into applied and discarded overflow.
# TYPE esimmock_usage_mb_total counter
esimmock_usage_mb_total{env="test",outcome="applied",service="esimmock"} 300
esimmock_usage_mb_total{env="test",outcome="discarded",service="esimmock"} 150
`
	require.NoError(t, testutil.GatherAndCompare(f.registry, strings.NewReader(expected), "esimmock_usage_mb_total"))
}

func TestSimulateUsageRequiresActive(t *testing.T) {
	f := setup(t)
	f.expectPlan(entry("p100", 100))
	ctx := context.Background()

	esim := f.provision(t, "p100")
	_, err := f.svc.ForceStatusChange(ctx, esim.EsimID, "provisioned")
	require.NoError(t, err)

	_, err = f.svc.SimulateUsage(ctx, esim.EsimID, 10)
	require.ErrorIs(t, err, domain.ErrInvalidState)
	var invalid *domain.InvalidStateError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, domain.StatusProvisioned, invalid.Status)

	stored, err := f.svc.Get(ctx, esim.EsimID)
	require.NoError(t, err)
	assert.Equal(t, 0, stored.Plans[0].UsedMB)
	assert.Nil(t, stored.LastUsedAt)

	_, err = f.svc.SimulateUsage(ctx, esim.EsimID, 0)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestForceStatusChange(t *testing.T) {
	f := setup(t)
	f.expectPlan(entry("p100", 100))
	ctx := context.Background()
	esim := f.provision(t, "p100")

	_, err := f.svc.ForceStatusChange(ctx, esim.EsimID, "suspended")
	assert.ErrorIs(t, err, domain.ErrValidation)

	for _, status := range []string{"expired", "ACTIVE", "deactivated", "provisioned", "active"} {
		got, err := f.svc.ForceStatusChange(ctx, esim.EsimID, status)
		require.NoError(t, err, status)
		assert.Equal(t, strings.ToLower(status), string(got.Status))
	}

	_, err = f.svc.ForceStatusChange(ctx, "maya_missing", "active")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDeactivateIsAbsolute(t *testing.T) {
	f := setup(t)
	f.expectPlan(entry("p100", 100))
	f.expectPlan(entry("p200", 200))
	ctx := context.Background()

	esim := f.provision(t, "p100")
	_, err := f.svc.AttachPlan(ctx, esim.EsimID, "p200")
	require.NoError(t, err)
	_, err = f.svc.SimulateUsage(ctx, esim.EsimID, 50)
	require.NoError(t, err)

	got, err := f.svc.Deactivate(ctx, esim.EsimID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDeactivated, got.Status)
	for _, p := range got.Plans {
		assert.Equal(t, domain.PlanStatusDeactivated, p.Status)
	}
	assert.Equal(t, 50, got.Plans[0].RemainingMB)
	require.NotNil(t, got.DeactivatedAt)

	_, err = f.svc.Deactivate(ctx, esim.EsimID)
	assert.ErrorIs(t, err, domain.ErrInvalidState)
}

func TestGetByIccidAndList(t *testing.T) {
	f := setup(t)
	f.expectPlan(entry("p100", 100))
	ctx := context.Background()

	first := f.provision(t, "p100")
	f.clock.Advance(time.Minute)
	second := f.provision(t, "p100")
	_, err := f.svc.Deactivate(ctx, first.EsimID)
	require.NoError(t, err)

	got, err := f.svc.GetByIccid(ctx, second.Iccid)
	require.NoError(t, err)
	assert.Equal(t, second.EsimID, got.EsimID)

	_, err = f.svc.GetByIccid(ctx, "89012345000000000000")
	var nf *domain.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, domain.KindIccid, nf.Kind)

	all, err := f.svc.List(ctx, domain.ListRequest{})
	require.NoError(t, err)
	assert.EqualValues(t, 2, all.Total)
	assert.Equal(t, 1, all.TotalPages)
	assert.Equal(t, 20, all.Size)
	require.Len(t, all.Esims, 2)
	assert.Equal(t, second.EsimID, all.Esims[0].EsimID)

	active, err := f.svc.List(ctx, domain.ListRequest{Status: "active", Size: 1})
	require.NoError(t, err)
	assert.EqualValues(t, 1, active.Total)
	require.Len(t, active.Esims, 1)

	_, err = f.svc.List(ctx, domain.ListRequest{Status: "bogus"})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestStatisticsAndDeleteAll(t *testing.T) {
	f := setup(t)
	f.expectPlan(entry("p100", 100))
	ctx := context.Background()

	a := f.provision(t, "p100")
	f.provision(t, "p100")
	c := f.provision(t, "p100")
	_, err := f.svc.Deactivate(ctx, a.EsimID)
	require.NoError(t, err)
	_, err = f.svc.ForceStatusChange(ctx, c.EsimID, "expired")
	require.NoError(t, err)

	stats, err := f.svc.Statistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.Statistics{Total: 3, Active: 1, Deactivated: 1, Expired: 1}, *stats)

	collector := NewStatusCollector(f.db, f.repo, zap.NewNop())
	expected := `
# HELP esimmock_esims eSIMs currently in the store by lifecycle status.
# TYPE esimmock_esims gauge
esimmock_esims{status="active"} 1
esimmock_esims{status="deactivated"} 1
esimmock_esims{status="expired"} 1
esimmock_esims{status="provisioned"} 0
`
	require.NoError(t, testutil.CollectAndCompare(collector, strings.NewReader(expected), "esimmock_esims"))

	deleted, err := f.svc.DeleteAll(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, deleted)

	stats, err = f.svc.Statistics(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.Total)
}

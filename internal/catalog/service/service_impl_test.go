package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/esimmock/internal/cache"
	"github.com/smallbiznis/esimmock/internal/catalog/domain"
	"github.com/smallbiznis/esimmock/internal/catalog/repository"
	"github.com/smallbiznis/esimmock/internal/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
)

func setupCatalog(t *testing.T) domain.Service {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.Plan{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	return New(Params{
		DB:    db,
		Log:   zaptest.NewLogger(t),
		GenID: node,
		Repo:  repository.Provide(),
		Clock: clock.NewFakeClock(time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)),
		Cache: cache.NewCatalogCache(),
	})
}

func usa1GB() domain.CreateRequest {
	return domain.CreateRequest{
		PlanID:        "bundle_usa_1gb_7d",
		ProductNumber: 1001,
		Name:          "USA 1GB 7 Days",
		DataGB:        1.0,
		ValidityDays:  7,
		Price:         5.99,
		PackageType:   domain.PackageTypeCountry,
		Countries:     []string{"US"},
	}
}

func TestResolveByIDAndSlug(t *testing.T) {
	svc := setupCatalog(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, usa1GB())
	require.NoError(t, err)
	assert.Equal(t, "usa-1gb-7-days", created.Slug)
	assert.Equal(t, "1GB data valid for 7 days", created.Description)
	assert.Equal(t, []string{"us"}, created.Countries)

	byID, err := svc.Resolve(ctx, "bundle_usa_1gb_7d")
	require.NoError(t, err)
	assert.Equal(t, 1024, byID.AllowanceMB)
	assert.Equal(t, 7, byID.ValidityDays)
	assert.Equal(t, "USA 1GB 7 Days", byID.DisplayName)

	bySlug, err := svc.Resolve(ctx, "usa-1gb-7-days")
	require.NoError(t, err)
	assert.Equal(t, byID.PlanID, bySlug.PlanID)
}

func TestResolveIsCaseExactWhetherCachedOrNot(t *testing.T) {
	svc := setupCatalog(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, usa1GB())
	require.NoError(t, err)

	_, err = svc.Resolve(ctx, "BUNDLE_USA_1GB_7D")
	assert.ErrorIs(t, err, domain.ErrNotFound, "cold cache")

	_, err = svc.Resolve(ctx, "bundle_usa_1gb_7d")
	require.NoError(t, err)

	_, err = svc.Resolve(ctx, "BUNDLE_USA_1GB_7D")
	assert.ErrorIs(t, err, domain.ErrNotFound, "warm cache")

	entry, err := svc.Resolve(ctx, " bundle_usa_1gb_7d ")
	require.NoError(t, err)
	assert.Equal(t, "bundle_usa_1gb_7d", entry.PlanID)
}

func TestResolveUnknownAndInactive(t *testing.T) {
	svc := setupCatalog(t)
	ctx := context.Background()

	_, err := svc.Resolve(ctx, "bundle_missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = svc.Create(ctx, usa1GB())
	require.NoError(t, err)
	_, err = svc.Resolve(ctx, "bundle_usa_1gb_7d")
	require.NoError(t, err)

	inactive := false
	_, err = svc.Update(ctx, domain.UpdateRequest{PlanID: "bundle_usa_1gb_7d", Active: &inactive})
	require.NoError(t, err)

	_, err = svc.Resolve(ctx, "bundle_usa_1gb_7d")
	assert.ErrorIs(t, err, domain.ErrNotFound, "cached entry must be invalidated on update")
}

func TestAllowanceTruncatesFractionalGigabytes(t *testing.T) {
	svc := setupCatalog(t)
	ctx := context.Background()

	req := usa1GB()
	req.PlanID = "bundle_tiny"
	req.Name = "Tiny"
	req.DataGB = 0.5005
	_, err := svc.Create(ctx, req)
	require.NoError(t, err)

	entry, err := svc.Resolve(ctx, "bundle_tiny")
	require.NoError(t, err)
	assert.Equal(t, 512, entry.AllowanceMB)
}

func TestCreateRejectsInvalidInput(t *testing.T) {
	svc := setupCatalog(t)
	ctx := context.Background()

	cases := []struct {
		name   string
		mutate func(*domain.CreateRequest)
		want   error
	}{
		{name: "name", mutate: func(r *domain.CreateRequest) { r.Name = " " }, want: domain.ErrInvalidName},
		{name: "data", mutate: func(r *domain.CreateRequest) { r.DataGB = 0 }, want: domain.ErrInvalidDataGB},
		{name: "validity", mutate: func(r *domain.CreateRequest) { r.ValidityDays = -1 }, want: domain.ErrInvalidValidity},
		{name: "package type", mutate: func(r *domain.CreateRequest) { r.PackageType = "planet" }, want: domain.ErrInvalidPackageType},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := usa1GB()
			tc.mutate(&req)
			_, err := svc.Create(ctx, req)
			assert.ErrorIs(t, err, tc.want)
		})
	}

	_, err := svc.Create(ctx, usa1GB())
	require.NoError(t, err)
	_, err = svc.Create(ctx, usa1GB())
	assert.ErrorIs(t, err, domain.ErrAlreadyExists)
}

func TestListFiltersByCountryAndPaginates(t *testing.T) {
	svc := setupCatalog(t)
	ctx := context.Background()

	plans := []domain.CreateRequest{
		usa1GB(),
		{PlanID: "bundle_mexico_1gb_7d", ProductNumber: 2001, Name: "Mexico 1GB 7 Days", DataGB: 1, ValidityDays: 7, Countries: []string{"mx"}},
		{PlanID: "bundle_latam_5gb_30d", ProductNumber: 6001, Name: "Latin America 5GB 30 Days", DataGB: 5, ValidityDays: 30, PackageType: "region", Region: "latam", Countries: []string{"mx", "br"}},
	}
	for _, p := range plans {
		_, err := svc.Create(ctx, p)
		require.NoError(t, err)
	}

	mx, err := svc.List(ctx, domain.ListRequest{Country: "MX"})
	require.NoError(t, err)
	assert.Equal(t, 2, mx.Total)
	require.Len(t, mx.Plans, 2)
	assert.Equal(t, "bundle_mexico_1gb_7d", mx.Plans[0].PlanID)

	latam, err := svc.List(ctx, domain.ListRequest{Region: "LATAM"})
	require.NoError(t, err)
	assert.Equal(t, 1, latam.Total)

	page, err := svc.List(ctx, domain.ListRequest{Page: 1, Size: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, page.Total)
	require.Len(t, page.Plans, 1)
	assert.Equal(t, "bundle_latam_5gb_30d", page.Plans[0].PlanID)
}

func TestBulkUpsertCreatesAndUpdates(t *testing.T) {
	svc := setupCatalog(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, usa1GB())
	require.NoError(t, err)

	updated := usa1GB()
	updated.Price = 6.49
	result, err := svc.BulkUpsert(ctx, []domain.CreateRequest{
		updated,
		{PlanID: "bundle_canada_3gb_15d", Name: "Canada 3GB 15 Days", DataGB: 3, ValidityDays: 15, Countries: []string{"ca"}},
		{PlanID: "broken"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Created)
	assert.Equal(t, 1, result.Updated)
	assert.Equal(t, 1, result.Failed)
	assert.Len(t, result.Errors, 1)

	got, err := svc.Get(ctx, "bundle_usa_1gb_7d")
	require.NoError(t, err)
	assert.Equal(t, 6.49, got.Price)
	assert.Equal(t, "usa-1gb-7-days", got.Slug)

	count, err := svc.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)
}

func TestDeleteAllClearsCatalogAndCache(t *testing.T) {
	svc := setupCatalog(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, usa1GB())
	require.NoError(t, err)
	_, err = svc.Resolve(ctx, "bundle_usa_1gb_7d")
	require.NoError(t, err)

	require.NoError(t, svc.DeleteAll(ctx))

	_, err = svc.Resolve(ctx, "bundle_usa_1gb_7d")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	count, err := svc.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestDeleteUnknownPlan(t *testing.T) {
	svc := setupCatalog(t)
	assert.ErrorIs(t, svc.Delete(context.Background(), "nope"), domain.ErrNotFound)
}

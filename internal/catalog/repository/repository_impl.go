package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/smallbiznis/esimmock/internal/catalog/domain"
	"github.com/smallbiznis/esimmock/pkg/db/option"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, plan *domain.Plan) error {
	if plan == nil {
		return gorm.ErrInvalidData
	}
	return db.WithContext(ctx).Create(plan).Error
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, plan *domain.Plan) error {
	if plan == nil {
		return gorm.ErrInvalidData
	}
	return db.WithContext(ctx).Save(plan).Error
}

func (r *repo) FindByPlanID(ctx context.Context, db *gorm.DB, planID string) (*domain.Plan, error) {
	return r.findOne(ctx, db, "plan_id = ?", strings.TrimSpace(planID))
}

func (r *repo) FindBySlug(ctx context.Context, db *gorm.DB, slug string) (*domain.Plan, error) {
	return r.findOne(ctx, db, "slug = ?", strings.TrimSpace(slug))
}

func (r *repo) findOne(ctx context.Context, db *gorm.DB, query string, arg any) (*domain.Plan, error) {
	var plan domain.Plan
	err := db.WithContext(ctx).Where(query, arg).First(&plan).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &plan, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter) ([]domain.Plan, error) {
	var items []domain.Plan
	stmt := db.WithContext(ctx).Model(&domain.Plan{})

	if filter.ActiveOnly {
		stmt = stmt.Where("active = ?", true)
	}
	if region := strings.ToLower(strings.TrimSpace(filter.Region)); region != "" {
		stmt = stmt.Where("LOWER(region) = ?", region)
	}
	if packageType := strings.ToLower(strings.TrimSpace(filter.PackageType)); packageType != "" {
		stmt = stmt.Where("package_type = ?", packageType)
	}

	stmt = option.WithSortBy(option.WithQuerySortBy("product_number", "asc", map[string]bool{
		"product_number": true,
	})).Apply(stmt)

	if err := stmt.Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) Count(ctx context.Context, db *gorm.DB) (int64, error) {
	var count int64
	err := db.WithContext(ctx).Model(&domain.Plan{}).Count(&count).Error
	return count, err
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, planID string) error {
	return db.WithContext(ctx).
		Where("plan_id = ?", strings.TrimSpace(planID)).
		Delete(&domain.Plan{}).Error
}

func (r *repo) DeleteAll(ctx context.Context, db *gorm.DB) error {
	return db.WithContext(ctx).
		Session(&gorm.Session{AllowGlobalUpdate: true}).
		Delete(&domain.Plan{}).Error
}

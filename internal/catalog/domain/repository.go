package domain

import (
	"context"

	"gorm.io/gorm"
)

type ListFilter struct {
	Region      string
	PackageType string
	ActiveOnly  bool
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, plan *Plan) error
	Update(ctx context.Context, db *gorm.DB, plan *Plan) error
	FindByPlanID(ctx context.Context, db *gorm.DB, planID string) (*Plan, error)
	FindBySlug(ctx context.Context, db *gorm.DB, slug string) (*Plan, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]Plan, error)
	Count(ctx context.Context, db *gorm.DB) (int64, error)
	Delete(ctx context.Context, db *gorm.DB, planID string) error
	DeleteAll(ctx context.Context, db *gorm.DB) error
}

package domain

import (
	"context"

	"gorm.io/gorm"
)

type ListFilter struct {
	Status Status
	Page   int
	Size   int
}

// Repository persists whole Esim aggregates. Finders return nil, nil when absent.
type Repository interface {
	FindByEsimID(ctx context.Context, db *gorm.DB, esimID string) (*Esim, error)
	FindByIccid(ctx context.Context, db *gorm.DB, iccid string) (*Esim, error)
	FindByOrderID(ctx context.Context, db *gorm.DB, orderID string) (*Esim, error)
	Save(ctx context.Context, db *gorm.DB, esim *Esim) error
	DeleteAll(ctx context.Context, db *gorm.DB) (int64, error)
	CountByStatus(ctx context.Context, db *gorm.DB, status Status) (int64, error)
	CountGroupedByStatus(ctx context.Context, db *gorm.DB) (map[Status]int64, error)
	Count(ctx context.Context, db *gorm.DB, status Status) (int64, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]Esim, error)
}

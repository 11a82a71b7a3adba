package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/smallbiznis/esimmock/internal/esim/domain"
	"github.com/smallbiznis/esimmock/pkg/db/option"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) FindByEsimID(ctx context.Context, db *gorm.DB, esimID string) (*domain.Esim, error) {
	return r.findOne(ctx, db, "esim_id = ?", strings.TrimSpace(esimID))
}

func (r *repo) FindByIccid(ctx context.Context, db *gorm.DB, iccid string) (*domain.Esim, error) {
	return r.findOne(ctx, db, "iccid = ?", strings.TrimSpace(iccid))
}

// FindByOrderID returns the oldest eSIM provisioned for orderID.
func (r *repo) FindByOrderID(ctx context.Context, db *gorm.DB, orderID string) (*domain.Esim, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return nil, nil
	}
	var esim domain.Esim
	err := db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at asc, id asc").
		First(&esim).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &esim, nil
}

func (r *repo) findOne(ctx context.Context, db *gorm.DB, query string, arg string) (*domain.Esim, error) {
	if arg == "" {
		return nil, nil
	}
	var esim domain.Esim
	err := db.WithContext(ctx).Where(query, arg).First(&esim).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &esim, nil
}

// Save writes the whole aggregate, inserting it when the row key is new.
func (r *repo) Save(ctx context.Context, db *gorm.DB, esim *domain.Esim) error {
	if esim == nil {
		return gorm.ErrInvalidData
	}
	return db.WithContext(ctx).Save(esim).Error
}

func (r *repo) DeleteAll(ctx context.Context, db *gorm.DB) (int64, error) {
	result := db.WithContext(ctx).
		Session(&gorm.Session{AllowGlobalUpdate: true}).
		Delete(&domain.Esim{})
	return result.RowsAffected, result.Error
}

func (r *repo) CountByStatus(ctx context.Context, db *gorm.DB, status domain.Status) (int64, error) {
	var count int64
	err := db.WithContext(ctx).
		Model(&domain.Esim{}).
		Where("status = ?", status).
		Count(&count).Error
	return count, err
}

type statusCount struct {
	Status domain.Status
	Total  int64
}

func (r *repo) CountGroupedByStatus(ctx context.Context, db *gorm.DB) (map[domain.Status]int64, error) {
	var rows []statusCount
	err := db.WithContext(ctx).
		Model(&domain.Esim{}).
		Select("status, COUNT(*) AS total").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[domain.Status]int64, len(domain.Statuses))
	for _, s := range domain.Statuses {
		counts[s] = 0
	}
	for _, row := range rows {
		counts[row.Status] = row.Total
	}
	return counts, nil
}

// Count counts every eSIM, or only those in status when it is set.
func (r *repo) Count(ctx context.Context, db *gorm.DB, status domain.Status) (int64, error) {
	var count int64
	stmt := db.WithContext(ctx).Model(&domain.Esim{})
	if status != "" {
		stmt = stmt.Where("status = ?", status)
	}
	err := stmt.Count(&count).Error
	return count, err
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter) ([]domain.Esim, error) {
	var items []domain.Esim
	stmt := db.WithContext(ctx).Model(&domain.Esim{})
	if filter.Status != "" {
		stmt = stmt.Where("status = ?", filter.Status)
	}
	stmt = option.WithSortBy(option.WithQuerySortBy("created_at", "desc", nil)).Apply(stmt)
	stmt = option.WithPage(filter.Page, filter.Size).Apply(stmt)

	if err := stmt.Order("id desc").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

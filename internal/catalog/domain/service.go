package domain

import (
	"context"
	"errors"
	"time"
)

//go:generate mockgen -destination=../mocks/lookup_mock.go -package=mocks github.com/smallbiznis/esimmock/internal/catalog/domain Lookup

// Lookup is the only catalog surface the lifecycle engine depends on.
type Lookup interface {
	Resolve(ctx context.Context, id string) (*Entry, error)
}

type Service interface {
	Lookup

	Create(ctx context.Context, req CreateRequest) (*Response, error)
	Update(ctx context.Context, req UpdateRequest) (*Response, error)
	Get(ctx context.Context, id string) (*Response, error)
	List(ctx context.Context, req ListRequest) (*ListResponse, error)
	Delete(ctx context.Context, id string) error
	BulkUpsert(ctx context.Context, reqs []CreateRequest) (*BulkResult, error)
	Count(ctx context.Context) (int64, error)
	DeleteAll(ctx context.Context) error
}

type CreateRequest struct {
	PlanID        string             `json:"bundleId"`
	ProductNumber int                `json:"productId"`
	Name          string             `json:"name"`
	Description   string             `json:"description"`
	DataGB        float64            `json:"dataGB"`
	ValidityDays  int                `json:"validityDays"`
	Price         float64            `json:"price"`
	Currency      string             `json:"currency"`
	Prices        map[string]float64 `json:"prices"`
	WholesaleCost float64            `json:"wholesaleCost"`
	PackageType   string             `json:"packageType"`
	Countries     []string           `json:"countries"`
	Region        string             `json:"region"`
	Active        *bool              `json:"isActive"`
	Badge         string             `json:"badge"`
	Terms         string             `json:"terms"`
}

type UpdateRequest struct {
	PlanID       string             `json:"-"`
	Name         *string            `json:"name,omitempty"`
	Description  *string            `json:"description,omitempty"`
	DataGB       *float64           `json:"dataGB,omitempty"`
	ValidityDays *int               `json:"validityDays,omitempty"`
	Price        *float64           `json:"price,omitempty"`
	Prices       map[string]float64 `json:"prices,omitempty"`
	Countries    []string           `json:"countries,omitempty"`
	Region       *string            `json:"region,omitempty"`
	Active       *bool              `json:"isActive,omitempty"`
	Badge        *string            `json:"badge,omitempty"`
}

type ListRequest struct {
	Country     string
	Region      string
	PackageType string
	Page        int
	Size        int
}

type Response struct {
	PlanID        string             `json:"bundleId"`
	ProductNumber int                `json:"productId"`
	Slug          string             `json:"slug"`
	Name          string             `json:"name"`
	Description   string             `json:"description"`
	DataGB        float64            `json:"dataGB"`
	DataMB        int                `json:"dataMB"`
	ValidityDays  int                `json:"validityDays"`
	Price         float64            `json:"price"`
	Currency      string             `json:"currency"`
	Prices        map[string]float64 `json:"prices,omitempty"`
	WholesaleCost float64            `json:"wholesaleCost"`
	PackageType   string             `json:"packageType"`
	Countries     []string           `json:"countries"`
	Region        string             `json:"region,omitempty"`
	Active        bool               `json:"isActive"`
	Badge         string             `json:"badge,omitempty"`
	Terms         string             `json:"terms,omitempty"`
	CreatedAt     time.Time          `json:"createdAt"`
	UpdatedAt     time.Time          `json:"updatedAt"`
}

type ListResponse struct {
	Plans []Response `json:"bundles"`
	Page  int        `json:"page"`
	Size  int        `json:"size"`
	Total int        `json:"totalElements"`
}

type BulkResult struct {
	Created int      `json:"created"`
	Updated int      `json:"updated"`
	Failed  int      `json:"failed"`
	Errors  []string `json:"errors,omitempty"`
}

var (
	ErrNotFound           = errors.New("plan_not_found")
	ErrAlreadyExists      = errors.New("plan_already_exists")
	ErrInvalidID          = errors.New("invalid_bundle_id")
	ErrInvalidName        = errors.New("invalid_name")
	ErrInvalidDataGB      = errors.New("invalid_data_gb")
	ErrInvalidValidity    = errors.New("invalid_validity_days")
	ErrInvalidPackageType = errors.New("invalid_package_type")
)

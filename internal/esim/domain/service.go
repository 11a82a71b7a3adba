package domain

import "context"

type ProvisionRequest struct {
	PlanID      string
	CustomerRef string
	Tag         string
	ProfileType string
	Metadata    map[string]any
	// Extended adds a manual code and network profile (SM-DP+ address, APN).
	Extended bool
}

type ListRequest struct {
	Status string
	Page   int
	Size   int
}

type ListResponse struct {
	Esims      []Esim
	Page       int
	Size       int
	Total      int64
	TotalPages int
}

type Statistics struct {
	Total       int64 `json:"total"`
	Provisioned int64 `json:"provisioned"`
	Active      int64 `json:"active"`
	Deactivated int64 `json:"deactivated"`
	Expired     int64 `json:"expired"`
}

// UsageReport pairs the updated eSIM with what the consumption pass did.
type UsageReport struct {
	Esim   *Esim
	Result UsageResult
}

type Service interface {
	Provision(ctx context.Context, req ProvisionRequest) (*Esim, error)
	AttachPlan(ctx context.Context, esimID, planID string) (*Esim, error)
	SimulateUsage(ctx context.Context, esimID string, usageMB int) (*UsageReport, error)
	ForceStatusChange(ctx context.Context, esimID, status string) (*Esim, error)
	Deactivate(ctx context.Context, esimID string) (*Esim, error)

	Get(ctx context.Context, esimID string) (*Esim, error)
	GetByIccid(ctx context.Context, iccid string) (*Esim, error)
	List(ctx context.Context, req ListRequest) (*ListResponse, error)
	Statistics(ctx context.Context) (*Statistics, error)
	DeleteAll(ctx context.Context) (int64, error)
}

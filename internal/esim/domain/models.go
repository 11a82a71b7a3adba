package domain

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type Status string

const (
	StatusProvisioned Status = "provisioned"
	StatusActive      Status = "active"
	StatusDeactivated Status = "deactivated"
	StatusExpired     Status = "expired"
)

// Statuses lists every lifecycle status in reporting order.
var Statuses = []Status{StatusProvisioned, StatusActive, StatusDeactivated, StatusExpired}

// ParseStatus accepts any casing of the four lifecycle statuses.
func ParseStatus(raw string) (Status, bool) {
	status := Status(strings.ToLower(strings.TrimSpace(raw)))
	for _, s := range Statuses {
		if s == status {
			return s, true
		}
	}
	return "", false
}

type PlanStatus string

const (
	PlanStatusActive      PlanStatus = "active"
	PlanStatusDepleted    PlanStatus = "depleted"
	PlanStatusExpired     PlanStatus = "expired"
	PlanStatusDeactivated PlanStatus = "deactivated"
)

const DefaultProfileType = "consumer"

// MetadataOrderID is the metadata key that makes provisioning idempotent.
const MetadataOrderID = "orderId"

// AttachedPlan is a snapshot of a catalog plan taken at attach time. It has no
// identity outside its owning Esim.
type AttachedPlan struct {
	PlanID      string     `json:"planId"`
	Name        string     `json:"name"`
	AttachedAt  time.Time  `json:"attachedAt"`
	ExpiresAt   time.Time  `json:"expiryDate"`
	AllowanceMB int        `json:"dataAllowanceMB"`
	UsedMB      int        `json:"dataUsedMB"`
	RemainingMB int        `json:"remainingDataMB"`
	Status      PlanStatus `json:"status"`
	Coverage    []string   `json:"countries"`
	PackageType string     `json:"packageType"`
}

// IsPastExpiry reports whether now is after the plan expiry. Nothing in the
// engine acts on it; plan status never moves to expired by itself.
func (p AttachedPlan) IsPastExpiry(now time.Time) bool {
	return !p.ExpiresAt.IsZero() && now.After(p.ExpiresAt)
}

// Esim is the aggregate root. Plans are stored in attachment order, which is
// also the order usage is drawn from them.
type Esim struct {
	ID             snowflake.ID                      `gorm:"primaryKey" json:"-"`
	EsimID         string                            `gorm:"column:esim_id;uniqueIndex;not null" json:"esimId"`
	Iccid          string                            `gorm:"column:iccid;uniqueIndex;not null" json:"iccid"`
	MatchingID     string                            `gorm:"column:matching_id;not null" json:"matchingId"`
	ActivationCode string                            `gorm:"column:activation_code;not null" json:"activationCode"`
	ManualCode     string                            `gorm:"column:manual_code" json:"manualCode,omitempty"`
	LPA            string                            `gorm:"column:lpa;not null" json:"qrCodeData"`
	SmdpAddress    string                            `gorm:"column:smdp_address" json:"smdpAddress,omitempty"`
	APN            string                            `gorm:"column:apn" json:"apn,omitempty"`
	AutoAPN        bool                              `gorm:"column:auto_apn" json:"autoApn"`
	Status         Status                            `gorm:"column:status;index;not null" json:"status"`
	ProfileType    string                            `gorm:"column:profile_type" json:"profileType"`
	CustomerRef    string                            `gorm:"column:customer_ref" json:"customerRef,omitempty"`
	Tag            string                            `gorm:"column:tag" json:"tag,omitempty"`
	OrderID        string                            `gorm:"column:order_id;index" json:"-"`
	Metadata       datatypes.JSONMap                 `gorm:"column:metadata" json:"metadata,omitempty"`
	Plans          datatypes.JSONSlice[AttachedPlan] `gorm:"column:plans" json:"attachedPlans"`
	TotalAllowance int                               `gorm:"column:total_allowance_mb" json:"totalDataMB"`
	TotalUsed      int                               `gorm:"column:total_used_mb" json:"totalDataUsedMB"`
	ActivatedAt    *time.Time                        `gorm:"column:activated_at" json:"activationDate,omitempty"`
	DeactivatedAt  *time.Time                        `gorm:"column:deactivated_at" json:"deactivationDate,omitempty"`
	LastUsedAt     *time.Time                        `gorm:"column:last_used_at" json:"lastUsed,omitempty"`
	CreatedAt      time.Time                         `gorm:"column:created_at;index;autoCreateTime:false" json:"createdAt"`
	UpdatedAt      time.Time                         `gorm:"column:updated_at;autoUpdateTime:false" json:"updatedAt"`
}

func (Esim) TableName() string { return "esims" }

// TotalRemaining is derived from active plans on every call.
func (e *Esim) TotalRemaining() int {
	total := 0
	for _, p := range e.Plans {
		if p.Status == PlanStatusActive {
			total += p.RemainingMB
		}
	}
	return total
}

// ActivePlans counts plans that can still absorb usage.
func (e *Esim) ActivePlans() int {
	n := 0
	for _, p := range e.Plans {
		if p.Status == PlanStatusActive {
			n++
		}
	}
	return n
}

// OrderIDFromMetadata returns the trimmed orderId entry, if it is a non-empty string.
func OrderIDFromMetadata(metadata map[string]any) string {
	if metadata == nil {
		return ""
	}
	raw, ok := metadata[MetadataOrderID]
	if !ok {
		return ""
	}
	value, ok := raw.(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(value)
}

package domain

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/lib/pq"
	"gorm.io/datatypes"
)

const (
	PackageTypeCountry = "country"
	PackageTypeRegion  = "region"
	PackageTypeGlobal  = "global"
)

// Plan is a sellable data bundle. The engine only ever reads it.
type Plan struct {
	ID            snowflake.ID                           `gorm:"primaryKey"`
	PlanID        string                                 `gorm:"column:plan_id;uniqueIndex"`
	ProductNumber int                                    `gorm:"column:product_number"`
	Slug          string                                 `gorm:"column:slug;uniqueIndex"`
	Name          string                                 `gorm:"column:name"`
	Description   string                                 `gorm:"column:description"`
	DataGB        float64                                `gorm:"column:data_gb"`
	ValidityDays  int                                    `gorm:"column:validity_days"`
	Price         float64                                `gorm:"column:price"`
	Currency      string                                 `gorm:"column:currency"`
	Prices        datatypes.JSONType[map[string]float64] `gorm:"column:prices"`
	WholesaleCost float64                                `gorm:"column:wholesale_cost"`
	PackageType   string                                 `gorm:"column:package_type"`
	Countries     pq.StringArray                         `gorm:"column:countries;type:text"`
	Region        string                                 `gorm:"column:region"`
	Active        bool                                   `gorm:"column:active"`
	Badge         string                                 `gorm:"column:badge"`
	Terms         string                                 `gorm:"column:terms"`
	CreatedAt     time.Time                              `gorm:"column:created_at;autoCreateTime:false"`
	UpdatedAt     time.Time                              `gorm:"column:updated_at;autoUpdateTime:false"`
}

func (Plan) TableName() string { return "catalog_plans" }

// Entry is the resolved, read-only view of a plan handed to the lifecycle engine.
type Entry struct {
	PlanID       string
	DisplayName  string
	DataGB       float64
	AllowanceMB  int
	ValidityDays int
	Coverage     []string
	PackageType  string
	Region       string
}

// AllowanceMB converts a GB quota into whole megabytes, truncating fractions.
func AllowanceMB(dataGB float64) int {
	return int(dataGB * 1024)
}

func (p *Plan) Entry() Entry {
	coverage := make([]string, 0, len(p.Countries))
	for _, c := range p.Countries {
		coverage = append(coverage, strings.ToLower(strings.TrimSpace(c)))
	}
	return Entry{
		PlanID:       p.PlanID,
		DisplayName:  p.Name,
		DataGB:       p.DataGB,
		AllowanceMB:  AllowanceMB(p.DataGB),
		ValidityDays: p.ValidityDays,
		Coverage:     coverage,
		PackageType:  p.PackageType,
		Region:       p.Region,
	}
}

func (p *Plan) Covers(country string) bool {
	country = strings.ToLower(strings.TrimSpace(country))
	for _, c := range p.Countries {
		if strings.EqualFold(strings.TrimSpace(c), country) {
			return true
		}
	}
	return false
}

package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"github.com/lib/pq"
	"github.com/smallbiznis/esimmock/internal/cache"
	"github.com/smallbiznis/esimmock/internal/catalog/domain"
	"github.com/smallbiznis/esimmock/internal/clock"
	"github.com/smallbiznis/esimmock/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	defaultPageSize = 20
	maxPageSize     = 500
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Repo  domain.Repository
	Clock clock.Clock
	Cache cache.CatalogCache `optional:"true"`
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	repo  domain.Repository
	clock clock.Clock
	cache cache.CatalogCache
}

func New(p Params) domain.Service {
	c := p.Cache
	if c == nil {
		c = cache.NewCatalogCache()
	}
	clk := p.Clock
	if clk == nil {
		clk = clock.SystemClock{}
	}
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("catalog.service"),
		genID: p.GenID,
		repo:  p.Repo,
		clock: clk,
		cache: c,
	}
}

// Resolve accepts either a plan id or its slug. Inactive plans do not resolve.
func (s *Service) Resolve(ctx context.Context, id string) (*domain.Entry, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, domain.ErrNotFound
	}
	if entry, ok := s.cache.GetEntry(id); ok {
		return &entry, nil
	}

	plan, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if !plan.Active {
		return nil, domain.ErrNotFound
	}

	entry := plan.Entry()
	s.cache.SetEntry(id, entry)
	return &entry, nil
}

func (s *Service) Get(ctx context.Context, id string) (*domain.Response, error) {
	plan, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	return toResponse(plan), nil
}

func (s *Service) List(ctx context.Context, req domain.ListRequest) (*domain.ListResponse, error) {
	items, err := s.repo.List(ctx, s.db, domain.ListFilter{
		Region:      req.Region,
		PackageType: req.PackageType,
		ActiveOnly:  true,
	})
	if err != nil {
		return nil, err
	}

	country := strings.TrimSpace(req.Country)
	filtered := make([]domain.Plan, 0, len(items))
	for i := range items {
		if country != "" && !items[i].Covers(country) {
			continue
		}
		filtered = append(filtered, items[i])
	}

	page := pagination.Pagination{Page: req.Page, Size: req.Size}.Normalize(defaultPageSize, maxPageSize)
	start, end := page.Window(len(filtered))

	resp := &domain.ListResponse{
		Plans: make([]domain.Response, 0, end-start),
		Page:  page.Page,
		Size:  page.Size,
		Total: len(filtered),
	}
	for i := start; i < end; i++ {
		resp.Plans = append(resp.Plans, *toResponse(&filtered[i]))
	}
	return resp, nil
}

func (s *Service) Create(ctx context.Context, req domain.CreateRequest) (*domain.Response, error) {
	plan, err := s.buildPlan(req)
	if err != nil {
		return nil, err
	}

	existing, err := s.repo.FindByPlanID(ctx, s.db, plan.PlanID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, domain.ErrAlreadyExists
	}

	if err := s.assignSlug(ctx, plan); err != nil {
		return nil, err
	}
	if err := s.repo.Insert(ctx, s.db, plan); err != nil {
		return nil, err
	}

	s.log.Info("catalog plan created", zap.String("plan_id", plan.PlanID))
	return toResponse(plan), nil
}

func (s *Service) Update(ctx context.Context, req domain.UpdateRequest) (*domain.Response, error) {
	plan, err := s.find(ctx, req.PlanID)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, domain.ErrInvalidName
		}
		plan.Name = name
	}
	if req.Description != nil {
		plan.Description = strings.TrimSpace(*req.Description)
	}
	if req.DataGB != nil {
		if *req.DataGB <= 0 {
			return nil, domain.ErrInvalidDataGB
		}
		plan.DataGB = *req.DataGB
	}
	if req.ValidityDays != nil {
		if *req.ValidityDays <= 0 {
			return nil, domain.ErrInvalidValidity
		}
		plan.ValidityDays = *req.ValidityDays
	}
	if req.Price != nil {
		plan.Price = *req.Price
	}
	if req.Prices != nil {
		plan.Prices = datatypes.NewJSONType(req.Prices)
	}
	if req.Countries != nil {
		plan.Countries = normalizeCountries(req.Countries)
	}
	if req.Region != nil {
		plan.Region = strings.ToLower(strings.TrimSpace(*req.Region))
	}
	if req.Active != nil {
		plan.Active = *req.Active
	}
	if req.Badge != nil {
		plan.Badge = strings.TrimSpace(*req.Badge)
	}
	plan.UpdatedAt = s.clock.Now()

	if err := s.repo.Update(ctx, s.db, plan); err != nil {
		return nil, err
	}
	s.invalidate(plan)
	return toResponse(plan), nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	plan, err := s.find(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, s.db, plan.PlanID); err != nil {
		return err
	}
	s.invalidate(plan)
	return nil
}

// BulkUpsert creates unknown plans and overwrites known ones, reporting per-item failures.
func (s *Service) BulkUpsert(ctx context.Context, reqs []domain.CreateRequest) (*domain.BulkResult, error) {
	result := &domain.BulkResult{}
	for i, req := range reqs {
		incoming, err := s.buildPlan(req)
		if err != nil {
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("row %d: %v", i+1, err))
			continue
		}

		existing, err := s.repo.FindByPlanID(ctx, s.db, incoming.PlanID)
		if err != nil {
			return nil, err
		}
		if existing == nil {
			if err := s.assignSlug(ctx, incoming); err != nil {
				return nil, err
			}
			if err := s.repo.Insert(ctx, s.db, incoming); err != nil {
				result.Failed++
				result.Errors = append(result.Errors, fmt.Sprintf("row %d: %v", i+1, err))
				continue
			}
			result.Created++
			continue
		}

		incoming.ID = existing.ID
		incoming.Slug = existing.Slug
		incoming.CreatedAt = existing.CreatedAt
		if err := s.repo.Update(ctx, s.db, incoming); err != nil {
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("row %d: %v", i+1, err))
			continue
		}
		s.invalidate(existing)
		result.Updated++
	}

	s.log.Info("catalog bulk upsert finished",
		zap.Int("created", result.Created),
		zap.Int("updated", result.Updated),
		zap.Int("failed", result.Failed),
	)
	return result, nil
}

func (s *Service) Count(ctx context.Context) (int64, error) {
	return s.repo.Count(ctx, s.db)
}

func (s *Service) DeleteAll(ctx context.Context) error {
	if err := s.repo.DeleteAll(ctx, s.db); err != nil {
		return err
	}
	s.cache.Reset()
	return nil
}

func (s *Service) find(ctx context.Context, id string) (*domain.Plan, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, domain.ErrNotFound
	}
	plan, err := s.repo.FindByPlanID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if plan == nil {
		plan, err = s.repo.FindBySlug(ctx, s.db, id)
		if err != nil {
			return nil, err
		}
	}
	if plan == nil {
		return nil, domain.ErrNotFound
	}
	return plan, nil
}

func (s *Service) buildPlan(req domain.CreateRequest) (*domain.Plan, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.ErrInvalidName
	}
	planID := strings.TrimSpace(req.PlanID)
	if planID == "" {
		planID = "bundle_" + strings.ReplaceAll(slug.Make(name), "-", "_")
	}
	if req.DataGB <= 0 {
		return nil, domain.ErrInvalidDataGB
	}
	if req.ValidityDays <= 0 {
		return nil, domain.ErrInvalidValidity
	}
	packageType := strings.ToLower(strings.TrimSpace(req.PackageType))
	switch packageType {
	case "":
		packageType = domain.PackageTypeCountry
	case domain.PackageTypeCountry, domain.PackageTypeRegion, domain.PackageTypeGlobal:
	default:
		return nil, domain.ErrInvalidPackageType
	}

	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = "USD"
	}
	description := strings.TrimSpace(req.Description)
	if description == "" {
		description = DefaultDescription(req.DataGB, req.ValidityDays)
	}
	terms := strings.TrimSpace(req.Terms)
	if terms == "" {
		terms = DefaultTerms(req.ValidityDays)
	}
	active := true
	if req.Active != nil {
		active = *req.Active
	}
	prices := req.Prices
	if prices == nil {
		prices = map[string]float64{currency: req.Price}
	}

	now := s.clock.Now()
	return &domain.Plan{
		ID:            s.genID.Generate(),
		PlanID:        planID,
		ProductNumber: req.ProductNumber,
		Name:          name,
		Description:   description,
		DataGB:        req.DataGB,
		ValidityDays:  req.ValidityDays,
		Price:         req.Price,
		Currency:      currency,
		Prices:        datatypes.NewJSONType(prices),
		WholesaleCost: req.WholesaleCost,
		PackageType:   packageType,
		Countries:     normalizeCountries(req.Countries),
		Region:        strings.ToLower(strings.TrimSpace(req.Region)),
		Active:        active,
		Badge:         strings.TrimSpace(req.Badge),
		Terms:         terms,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

func (s *Service) assignSlug(ctx context.Context, plan *domain.Plan) error {
	candidate := slug.Make(plan.Name)
	taken, err := s.repo.FindBySlug(ctx, s.db, candidate)
	if err != nil {
		return err
	}
	if taken != nil {
		candidate = slug.Make(plan.Name + " " + plan.PlanID)
	}
	plan.Slug = candidate
	return nil
}

func (s *Service) invalidate(plan *domain.Plan) {
	s.cache.Invalidate(plan.PlanID)
	s.cache.Invalidate(plan.Slug)
}

// DefaultDescription renders "1GB data valid for 7 days" style copy.
func DefaultDescription(dataGB float64, validityDays int) string {
	return fmt.Sprintf("%s data valid for %d days", formatDataSize(dataGB), validityDays)
}

func DefaultTerms(validityDays int) string {
	return fmt.Sprintf("Data valid for %d days from activation. No voice/SMS included.", validityDays)
}

func formatDataSize(dataGB float64) string {
	if dataGB >= 1 {
		return fmt.Sprintf("%.0fGB", dataGB)
	}
	return fmt.Sprintf("%.0fMB", dataGB*1024)
}

func normalizeCountries(in []string) pq.StringArray {
	out := make(pq.StringArray, 0, len(in))
	for _, c := range in {
		c = strings.ToLower(strings.TrimSpace(c))
		if c == "" {
			continue
		}
		out = append(out, c)
	}
	return out
}

func toResponse(p *domain.Plan) *domain.Response {
	return &domain.Response{
		PlanID:        p.PlanID,
		ProductNumber: p.ProductNumber,
		Slug:          p.Slug,
		Name:          p.Name,
		Description:   p.Description,
		DataGB:        p.DataGB,
		DataMB:        domain.AllowanceMB(p.DataGB),
		ValidityDays:  p.ValidityDays,
		Price:         p.Price,
		Currency:      p.Currency,
		Prices:        p.Prices.Data(),
		WholesaleCost: p.WholesaleCost,
		PackageType:   p.PackageType,
		Countries:     []string(p.Countries),
		Region:        p.Region,
		Active:        p.Active,
		Badge:         p.Badge,
		Terms:         p.Terms,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
}

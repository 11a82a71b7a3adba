package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	catalogdomain "github.com/smallbiznis/esimmock/internal/catalog/domain"
	"github.com/smallbiznis/esimmock/internal/clock"
	"github.com/smallbiznis/esimmock/internal/esim/domain"
	"github.com/smallbiznis/esimmock/internal/identifier"
	"github.com/smallbiznis/esimmock/internal/observability/metrics"
	"github.com/smallbiznis/esimmock/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	defaultPageSize = 20
	maxPageSize     = 200
)

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Repo        domain.Repository
	Catalog     catalogdomain.Lookup
	Identifiers *identifier.Generator
	Clock       clock.Clock
	Metrics     *metrics.Metrics          `optional:"true"`
	Lifecycle   *metrics.LifecycleMetrics `optional:"true"`
}

// Service is the lifecycle and consumption engine. Every mutation of an eSIM
// goes through it as load, mutate in memory, save once. There is no locking:
// two concurrent calls on the same eSIM can lose an update.
type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	repo        domain.Repository
	catalog     catalogdomain.Lookup
	identifiers *identifier.Generator
	clock       clock.Clock
	metrics     *metrics.Metrics
	lifecycle   *metrics.LifecycleMetrics
}

func New(p Params) domain.Service {
	clk := p.Clock
	if clk == nil {
		clk = clock.SystemClock{}
	}
	ids := p.Identifiers
	if ids == nil {
		ids = identifier.New(nil)
	}
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("esim.service"),
		genID:       p.GenID,
		repo:        p.Repo,
		catalog:     p.Catalog,
		identifiers: ids,
		clock:       clk,
		metrics:     p.Metrics,
		lifecycle:   p.Lifecycle,
	}
}

func (s *Service) Provision(ctx context.Context, req domain.ProvisionRequest) (*domain.Esim, error) {
	start := time.Now()
	esim, err := s.provision(ctx, req)
	s.observe(metrics.OperationProvision, start, err)
	return esim, err
}

func (s *Service) provision(ctx context.Context, req domain.ProvisionRequest) (*domain.Esim, error) {
	planID := strings.TrimSpace(req.PlanID)
	if planID == "" {
		return nil, domain.NewValidation("planId", "is required")
	}

	orderID := domain.OrderIDFromMetadata(req.Metadata)
	if orderID != "" {
		existing, err := s.repo.FindByOrderID(ctx, s.db, orderID)
		if err != nil {
			s.lifecycle.IncStoreError(metrics.OperationProvision, err)
			return nil, err
		}
		if existing != nil {
			s.log.Info("order already provisioned, returning existing esim",
				zap.String("order_id", orderID),
				zap.String("esim_id", existing.EsimID),
			)
			s.metrics.RecordProvisionReplay(ctx)
			return existing, nil
		}
	}

	entry, err := s.resolve(ctx, planID)
	if err != nil {
		return nil, err
	}

	esim, err := s.newEsim(req, orderID)
	if err != nil {
		return nil, err
	}

	// Timestamps come from the injected clock only; gorm's auto time is off on Esim.
	now := s.clock.Now()
	esim.CreatedAt = now
	esim.UpdatedAt = now
	esim.AttachPlan(domain.NewAttachedPlan(planSource(entry), now), now)

	if err := s.repo.Save(ctx, s.db, esim); err != nil {
		s.lifecycle.IncStoreError(metrics.OperationProvision, err)
		return nil, err
	}

	s.lifecycle.IncTransition(string(domain.StatusProvisioned), string(esim.Status))
	s.metrics.RecordProvisioned(ctx, entry.PlanID, esim.ProfileType)
	s.log.Info("esim provisioned",
		zap.String("esim_id", esim.EsimID),
		zap.String("iccid", esim.Iccid),
		zap.String("plan_id", entry.PlanID),
		zap.Int("allowance_mb", esim.TotalAllowance),
	)
	return esim, nil
}

// newEsim builds an unsaved record with freshly synthesized identifiers.
func (s *Service) newEsim(req domain.ProvisionRequest, orderID string) (*domain.Esim, error) {
	esimID, err := s.identifiers.EsimID()
	if err != nil {
		return nil, err
	}
	iccid, err := s.identifiers.ICCID()
	if err != nil {
		return nil, err
	}
	matchingID, err := s.identifiers.MatchingID()
	if err != nil {
		return nil, err
	}
	activationCode, err := s.identifiers.ActivationCode()
	if err != nil {
		return nil, err
	}

	profileType := strings.TrimSpace(req.ProfileType)
	if profileType == "" {
		profileType = domain.DefaultProfileType
	}

	var metadata datatypes.JSONMap
	if len(req.Metadata) > 0 {
		metadata = make(datatypes.JSONMap, len(req.Metadata))
		for k, v := range req.Metadata {
			metadata[k] = v
		}
	}

	esim := &domain.Esim{
		ID:             s.genID.Generate(),
		EsimID:         esimID,
		Iccid:          iccid,
		MatchingID:     matchingID,
		ActivationCode: activationCode,
		LPA:            identifier.LPA(activationCode),
		Status:         domain.StatusProvisioned,
		ProfileType:    profileType,
		CustomerRef:    strings.TrimSpace(req.CustomerRef),
		Tag:            strings.TrimSpace(req.Tag),
		OrderID:        orderID,
		Metadata:       metadata,
	}

	if req.Extended {
		manualCode, err := s.identifiers.ManualCode()
		if err != nil {
			return nil, err
		}
		esim.ManualCode = manualCode
		esim.SmdpAddress = identifier.SmdpAddress
		esim.APN = identifier.DefaultAPN
		esim.AutoAPN = true
	}
	return esim, nil
}

func (s *Service) AttachPlan(ctx context.Context, esimID, planID string) (*domain.Esim, error) {
	start := time.Now()
	esim, err := s.attachPlan(ctx, esimID, planID)
	s.observe(metrics.OperationAttachPlan, start, err)
	return esim, err
}

func (s *Service) attachPlan(ctx context.Context, esimID, planID string) (*domain.Esim, error) {
	planID = strings.TrimSpace(planID)
	if planID == "" {
		return nil, domain.NewValidation("planId", "is required")
	}

	esim, err := s.load(ctx, esimID)
	if err != nil {
		return nil, err
	}

	switch esim.Status {
	case domain.StatusDeactivated:
		return nil, &domain.InvalidStateError{EsimID: esim.EsimID, Status: esim.Status, Operation: "attach plan to"}
	case domain.StatusExpired:
		return nil, &domain.ExpiredError{EsimID: esim.EsimID}
	}

	entry, err := s.resolve(ctx, planID)
	if err != nil {
		return nil, err
	}

	previous := esim.Status
	now := s.clock.Now()
	esim.AttachPlan(domain.NewAttachedPlan(planSource(entry), now), now)

	if err := s.repo.Save(ctx, s.db, esim); err != nil {
		s.lifecycle.IncStoreError(metrics.OperationAttachPlan, err)
		return nil, err
	}

	s.lifecycle.IncTransition(string(previous), string(esim.Status))
	s.metrics.RecordPlanAttached(ctx, entry.PlanID)
	s.log.Info("plan attached",
		zap.String("esim_id", esim.EsimID),
		zap.String("plan_id", entry.PlanID),
		zap.Int("plans", len(esim.Plans)),
		zap.Int("remaining_mb", esim.TotalRemaining()),
	)
	return esim, nil
}

func (s *Service) SimulateUsage(ctx context.Context, esimID string, usageMB int) (*domain.UsageReport, error) {
	start := time.Now()
	report, err := s.simulateUsage(ctx, esimID, usageMB)
	s.observe(metrics.OperationSimulateUse, start, err)
	return report, err
}

func (s *Service) simulateUsage(ctx context.Context, esimID string, usageMB int) (*domain.UsageReport, error) {
	if usageMB < 1 {
		return nil, domain.NewValidation("usageMB", "must be at least 1")
	}

	esim, err := s.load(ctx, esimID)
	if err != nil {
		return nil, err
	}
	if esim.Status != domain.StatusActive {
		return nil, &domain.InvalidStateError{EsimID: esim.EsimID, Status: esim.Status, Operation: "simulate usage on"}
	}

	result := esim.ConsumeUsage(usageMB, s.clock.Now())

	if err := s.repo.Save(ctx, s.db, esim); err != nil {
		s.lifecycle.IncStoreError(metrics.OperationSimulateUse, err)
		return nil, err
	}

	s.lifecycle.AddUsage(result.AppliedMB, result.DiscardedMB)
	s.lifecycle.AddPlansDepleted(len(result.Depleted))
	s.metrics.RecordUsage(ctx, result.AppliedMB, result.DiscardedMB)
	for _, planID := range result.Depleted {
		s.metrics.RecordPlanDepleted(ctx, planID)
		s.log.Info("plan depleted", zap.String("esim_id", esim.EsimID), zap.String("plan_id", planID))
	}
	if result.DiscardedMB > 0 {
		s.log.Debug("usage exceeded remaining allowance",
			zap.String("esim_id", esim.EsimID),
			zap.Int("discarded_mb", result.DiscardedMB),
		)
	}
	if esim.ActivePlans() == 0 {
		s.log.Info("all plans depleted", zap.String("esim_id", esim.EsimID))
	}

	return &domain.UsageReport{Esim: esim, Result: result}, nil
}

// ForceStatusChange sets any of the four statuses from any status. It exists
// for test harness control and skips every transition guard.
func (s *Service) ForceStatusChange(ctx context.Context, esimID, status string) (*domain.Esim, error) {
	start := time.Now()
	esim, err := s.forceStatusChange(ctx, esimID, status)
	s.observe(metrics.OperationForceStatus, start, err)
	return esim, err
}

func (s *Service) forceStatusChange(ctx context.Context, esimID, raw string) (*domain.Esim, error) {
	status, ok := domain.ParseStatus(raw)
	if !ok {
		return nil, domain.NewValidation("newStatus", "must be one of provisioned, active, deactivated, expired")
	}

	esim, err := s.load(ctx, esimID)
	if err != nil {
		return nil, err
	}

	previous := esim.Status
	esim.ForceStatus(status, s.clock.Now())

	if err := s.repo.Save(ctx, s.db, esim); err != nil {
		s.lifecycle.IncStoreError(metrics.OperationForceStatus, err)
		return nil, err
	}

	s.lifecycle.IncTransition(string(previous), string(status))
	s.log.Info("esim status forced",
		zap.String("esim_id", esim.EsimID),
		zap.String("from", string(previous)),
		zap.String("to", string(status)),
	)
	return esim, nil
}

func (s *Service) Deactivate(ctx context.Context, esimID string) (*domain.Esim, error) {
	start := time.Now()
	esim, err := s.deactivate(ctx, esimID)
	s.observe(metrics.OperationDeactivate, start, err)
	return esim, err
}

func (s *Service) deactivate(ctx context.Context, esimID string) (*domain.Esim, error) {
	esim, err := s.load(ctx, esimID)
	if err != nil {
		return nil, err
	}
	if esim.Status != domain.StatusProvisioned && esim.Status != domain.StatusActive {
		return nil, &domain.InvalidStateError{EsimID: esim.EsimID, Status: esim.Status, Operation: "deactivate"}
	}

	previous := esim.Status
	esim.Deactivate(s.clock.Now())

	if err := s.repo.Save(ctx, s.db, esim); err != nil {
		s.lifecycle.IncStoreError(metrics.OperationDeactivate, err)
		return nil, err
	}

	s.lifecycle.IncTransition(string(previous), string(esim.Status))
	s.log.Info("esim deactivated", zap.String("esim_id", esim.EsimID), zap.Int("plans", len(esim.Plans)))
	return esim, nil
}

func (s *Service) Get(ctx context.Context, esimID string) (*domain.Esim, error) {
	return s.load(ctx, esimID)
}

func (s *Service) GetByIccid(ctx context.Context, iccid string) (*domain.Esim, error) {
	iccid = strings.TrimSpace(iccid)
	esim, err := s.repo.FindByIccid(ctx, s.db, iccid)
	if err != nil {
		return nil, err
	}
	if esim == nil {
		return nil, domain.NewNotFound(domain.KindIccid, iccid)
	}
	return esim, nil
}

func (s *Service) List(ctx context.Context, req domain.ListRequest) (*domain.ListResponse, error) {
	var status domain.Status
	if raw := strings.TrimSpace(req.Status); raw != "" {
		parsed, ok := domain.ParseStatus(raw)
		if !ok {
			return nil, domain.NewValidation("status", "must be one of provisioned, active, deactivated, expired")
		}
		status = parsed
	}

	page := pagination.Pagination{Page: req.Page, Size: req.Size}.Normalize(defaultPageSize, maxPageSize)

	total, err := s.repo.Count(ctx, s.db, status)
	if err != nil {
		return nil, err
	}
	items, err := s.repo.List(ctx, s.db, domain.ListFilter{Status: status, Page: page.Page, Size: page.Size})
	if err != nil {
		return nil, err
	}

	return &domain.ListResponse{
		Esims:      items,
		Page:       page.Page,
		Size:       page.Size,
		Total:      total,
		TotalPages: pagination.TotalPages(total, page.Size),
	}, nil
}

func (s *Service) DeleteAll(ctx context.Context) (int64, error) {
	start := time.Now()
	deleted, err := s.repo.DeleteAll(ctx, s.db)
	s.observe(metrics.OperationDeleteAll, start, err)
	if err != nil {
		s.lifecycle.IncStoreError(metrics.OperationDeleteAll, err)
		return 0, err
	}
	s.log.Warn("all esims deleted", zap.Int64("deleted", deleted))
	return deleted, nil
}

func (s *Service) load(ctx context.Context, esimID string) (*domain.Esim, error) {
	esimID = strings.TrimSpace(esimID)
	esim, err := s.repo.FindByEsimID(ctx, s.db, esimID)
	if err != nil {
		return nil, err
	}
	if esim == nil {
		return nil, domain.NewNotFound(domain.KindEsim, esimID)
	}
	return esim, nil
}

func (s *Service) resolve(ctx context.Context, planID string) (*catalogdomain.Entry, error) {
	entry, err := s.catalog.Resolve(ctx, planID)
	if err != nil {
		if errors.Is(err, catalogdomain.ErrNotFound) {
			return nil, domain.NewNotFound(domain.KindPlan, planID)
		}
		return nil, err
	}
	if entry == nil {
		return nil, domain.NewNotFound(domain.KindPlan, planID)
	}
	return entry, nil
}

func (s *Service) observe(operation string, start time.Time, err error) {
	s.lifecycle.ObserveOperation(operation, time.Since(start), err, isRejection(err))
}

// isRejection reports whether err is a domain outcome rather than a failure.
func isRejection(err error) bool {
	return errors.Is(err, domain.ErrNotFound) ||
		errors.Is(err, domain.ErrInvalidState) ||
		errors.Is(err, domain.ErrExpired) ||
		errors.Is(err, domain.ErrValidation) ||
		errors.Is(err, domain.ErrAlreadyActive)
}

func planSource(entry *catalogdomain.Entry) domain.PlanSource {
	return domain.PlanSource{
		PlanID:       entry.PlanID,
		Name:         entry.DisplayName,
		AllowanceMB:  entry.AllowanceMB,
		ValidityDays: entry.ValidityDays,
		Coverage:     entry.Coverage,
		PackageType:  entry.PackageType,
	}
}

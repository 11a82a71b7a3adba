package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	catalogdomain "github.com/smallbiznis/esimmock/internal/catalog/domain"
	esimdomain "github.com/smallbiznis/esimmock/internal/esim/domain"
	"github.com/smallbiznis/esimmock/pkg/db/pagination"
)

const mayaPrefix = "/connectivity/v1"

const bytesPerMB = 1024 * 1024

// mayaEnvelope is the response wrapper shared by every Maya style endpoint.
type mayaEnvelope struct {
	Result           int            `json:"result"`
	Status           int            `json:"status"`
	RequestID        string         `json:"request_id"`
	Message          string         `json:"message"`
	DeveloperMessage string         `json:"developer_message,omitempty"`
	Esim             *mayaEsim      `json:"esim,omitempty"`
	Plan             *mayaPlan      `json:"plan,omitempty"`
	Plans            []mayaPlan     `json:"plans,omitempty"`
	Products         []mayaProduct  `json:"products,omitempty"`
	Product          *mayaProduct   `json:"product,omitempty"`
	Balance          *mayaBalance   `json:"balance,omitempty"`
	AdditionalData   map[string]any `json:"additional_data,omitempty"`
}

type mayaEsim struct {
	UID            string `json:"uid"`
	Iccid          string `json:"iccid"`
	ActivationCode string `json:"activation_code"`
	ManualCode     string `json:"manual_code,omitempty"`
	SmdpAddress    string `json:"smdp_address,omitempty"`
	AutoAPN        bool   `json:"auto_apn"`
	APN            string `json:"apn,omitempty"`
	State          string `json:"state"`
	ServiceStatus  string `json:"service_status"`
	NetworkStatus  string `json:"network_status"`
	CustomerID     string `json:"customer_id,omitempty"`
	Tag            string `json:"tag,omitempty"`
	DateAssigned   string `json:"date_assigned"`
}

type mayaPlan struct {
	ID                 string       `json:"id"`
	CountriesEnabled   []string     `json:"countries_enabled"`
	DataQuotaBytes     int64        `json:"data_quota_bytes"`
	DataBytesRemaining int64        `json:"data_bytes_remaining"`
	StartTime          string       `json:"start_time"`
	EndTime            string       `json:"end_time"`
	NetworkStatus      string       `json:"network_status"`
	Product            *mayaProduct `json:"product,omitempty"`
}

type mayaProduct struct {
	UID               string   `json:"uid"`
	Name              string   `json:"name"`
	CountriesEnabled  []string `json:"countries_enabled"`
	DataQuotaMB       int      `json:"data_quota_mb"`
	DataQuotaBytes    int64    `json:"data_quota_bytes"`
	ValidityDays      int      `json:"validity_days"`
	PolicyID          string   `json:"policy_id,omitempty"`
	PolicyName        string   `json:"policy_name,omitempty"`
	WholesalePriceUSD float64  `json:"wholesale_price_usd"`
	RRPUSD            float64  `json:"rrp_usd"`
	RRPEUR            float64  `json:"rrp_eur,omitempty"`
	RRPGBP            float64  `json:"rrp_gbp,omitempty"`
	RRPCAD            float64  `json:"rrp_cad,omitempty"`
	RRPAUD            float64  `json:"rrp_aud,omitempty"`
	RRPJPY            float64  `json:"rrp_jpy,omitempty"`
	UnlimitedType     string   `json:"unlimited_type,omitempty"`
}

type mayaBalance struct {
	Balance  float64 `json:"balance"`
	Currency string  `json:"currency"`
}

type mayaCreateEsimRequest struct {
	PlanTypeID string         `json:"plan_type_id"`
	Region     string         `json:"region"`
	CustomerID string         `json:"customer_id"`
	Tag        string         `json:"tag"`
	Metadata   map[string]any `json:"metadata"`
}

type mayaAttachPlanRequest struct {
	PlanTypeID string `json:"plan_type_id"`
}

func newMayaEnvelope(status int, message string) mayaEnvelope {
	return mayaEnvelope{
		Result:    1,
		Status:    status,
		RequestID: mayaRequestID(),
		Message:   message,
	}
}

func mayaError(status int, payload errorPayload) mayaEnvelope {
	developerMessage := payload.Type
	if len(payload.Errors) > 0 {
		parts := make([]string, 0, len(payload.Errors))
		for _, e := range payload.Errors {
			parts = append(parts, e.Field+": "+e.Message)
		}
		developerMessage = "Request validation failed: " + strings.Join(parts, ", ")
	}
	return mayaEnvelope{
		Result:           0,
		Status:           status,
		RequestID:        mayaRequestID(),
		Message:          payload.Message,
		DeveloperMessage: developerMessage,
	}
}

func mayaRequestID() string {
	return "req_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

func (s *Server) MayaCreateEsim(c *gin.Context) {
	var req mayaCreateEsimRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	planID := strings.TrimSpace(req.PlanTypeID)
	if planID == "" {
		AbortWithError(c, esimdomain.NewValidation("plan_type_id", "plan_type_id is required"))
		return
	}

	metadata := req.Metadata
	if region := strings.TrimSpace(req.Region); region != "" {
		metadata = withMetadata(metadata, "region", region)
	}

	esim, err := s.esimSvc.Provision(c.Request.Context(), esimdomain.ProvisionRequest{
		PlanID:      planID,
		CustomerRef: req.CustomerID,
		Tag:         req.Tag,
		Metadata:    metadata,
		Extended:    true,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp := newMayaEnvelope(http.StatusCreated, "eSIM created successfully")
	resp.Esim = toMayaEsim(esim)
	resp.Plans = s.toMayaPlans(c, esim)
	c.JSON(http.StatusCreated, resp)
}

func (s *Server) MayaGetEsim(c *gin.Context) {
	esim, err := s.esimSvc.GetByIccid(c.Request.Context(), strings.TrimSpace(c.Param("iccid")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp := newMayaEnvelope(http.StatusOK, "eSIM retrieved successfully")
	resp.Esim = toMayaEsim(esim)
	resp.Plans = s.toMayaPlans(c, esim)
	c.JSON(http.StatusOK, resp)
}

func (s *Server) MayaAttachPlan(c *gin.Context) {
	var req mayaAttachPlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	planID := strings.TrimSpace(req.PlanTypeID)
	if planID == "" {
		AbortWithError(c, esimdomain.NewValidation("plan_type_id", "plan_type_id is required"))
		return
	}

	ctx := c.Request.Context()
	current, err := s.esimSvc.GetByIccid(ctx, strings.TrimSpace(c.Param("iccid")))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	esim, err := s.esimSvc.AttachPlan(ctx, current.EsimID, planID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp := newMayaEnvelope(http.StatusOK, "Plan added successfully")
	resp.Esim = toMayaEsim(esim)
	if n := len(esim.Plans); n > 0 {
		plan := s.toMayaPlan(c, esim, esim.Plans[n-1])
		resp.Plan = &plan
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) MayaListProducts(c *gin.Context) {
	var query struct {
		pagination.Pagination
		Country string `form:"country"`
		Region  string `form:"region"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	list, err := s.catalogSvc.List(c.Request.Context(), catalogdomain.ListRequest{
		Country: strings.TrimSpace(query.Country),
		Region:  strings.TrimSpace(query.Region),
		Page:    query.Page,
		Size:    query.Size,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	products := make([]mayaProduct, 0, len(list.Plans))
	for i := range list.Plans {
		products = append(products, toMayaProduct(&list.Plans[i]))
	}

	resp := newMayaEnvelope(http.StatusOK, "Products retrieved successfully")
	resp.Products = products
	resp.AdditionalData = map[string]any{"total": list.Total}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) MayaGetProduct(c *gin.Context) {
	plan, err := s.catalogSvc.Get(c.Request.Context(), strings.TrimSpace(c.Param("productId")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	product := toMayaProduct(plan)
	resp := newMayaEnvelope(http.StatusOK, "Product retrieved successfully")
	resp.Product = &product
	c.JSON(http.StatusOK, resp)
}

// MayaGetBalance reports a fixed account balance; the mock does no billing.
func (s *Server) MayaGetBalance(c *gin.Context) {
	resp := newMayaEnvelope(http.StatusOK, "Balance retrieved successfully")
	resp.Balance = &mayaBalance{Balance: 1000.00, Currency: "USD"}
	c.JSON(http.StatusOK, resp)
}

func toMayaEsim(e *esimdomain.Esim) *mayaEsim {
	return &mayaEsim{
		UID:            e.EsimID,
		Iccid:          e.Iccid,
		ActivationCode: e.ActivationCode,
		ManualCode:     e.ManualCode,
		SmdpAddress:    e.SmdpAddress,
		AutoAPN:        e.AutoAPN,
		APN:            e.APN,
		State:          string(e.Status),
		ServiceStatus:  mayaServiceStatus(e.Status),
		NetworkStatus:  mayaNetworkStatus(e.Status == esimdomain.StatusActive && e.TotalRemaining() > 0),
		CustomerID:     e.CustomerRef,
		Tag:            e.Tag,
		DateAssigned:   e.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func (s *Server) toMayaPlans(c *gin.Context, e *esimdomain.Esim) []mayaPlan {
	plans := make([]mayaPlan, 0, len(e.Plans))
	for _, p := range e.Plans {
		plans = append(plans, s.toMayaPlan(c, e, p))
	}
	return plans
}

// toMayaPlan embeds the catalog product when it still exists. A plan whose
// catalog entry was removed is reported without one.
func (s *Server) toMayaPlan(c *gin.Context, e *esimdomain.Esim, p esimdomain.AttachedPlan) mayaPlan {
	plan := mayaPlan{
		ID:                 p.PlanID,
		CountriesEnabled:   p.Coverage,
		DataQuotaBytes:     int64(p.AllowanceMB) * bytesPerMB,
		DataBytesRemaining: int64(p.RemainingMB) * bytesPerMB,
		StartTime:          p.AttachedAt.UTC().Format(time.RFC3339),
		EndTime:            p.ExpiresAt.UTC().Format(time.RFC3339),
		NetworkStatus: mayaNetworkStatus(
			e.Status == esimdomain.StatusActive && p.Status == esimdomain.PlanStatusActive,
		),
	}
	if plan.CountriesEnabled == nil {
		plan.CountriesEnabled = []string{}
	}
	if product, err := s.catalogSvc.Get(c.Request.Context(), p.PlanID); err == nil {
		mp := toMayaProduct(product)
		plan.Product = &mp
	}
	return plan
}

func toMayaProduct(p *catalogdomain.Response) mayaProduct {
	product := mayaProduct{
		UID:               p.PlanID,
		Name:              p.Name,
		CountriesEnabled:  p.Countries,
		DataQuotaMB:       p.DataMB,
		DataQuotaBytes:    int64(p.DataMB) * bytesPerMB,
		ValidityDays:      p.ValidityDays,
		PolicyName:        p.PackageType,
		WholesalePriceUSD: p.WholesaleCost,
		RRPUSD:            p.Price,
	}
	if product.CountriesEnabled == nil {
		product.CountriesEnabled = []string{}
	}
	if v, ok := p.Prices["USD"]; ok {
		product.RRPUSD = v
	}
	product.RRPEUR = p.Prices["EUR"]
	product.RRPGBP = p.Prices["GBP"]
	product.RRPCAD = p.Prices["CAD"]
	product.RRPAUD = p.Prices["AUD"]
	product.RRPJPY = p.Prices["JPY"]
	return product
}

func mayaServiceStatus(status esimdomain.Status) string {
	switch status {
	case esimdomain.StatusActive:
		return "active"
	case esimdomain.StatusExpired:
		return "expired"
	case esimdomain.StatusProvisioned:
		return "inactive"
	default:
		return "suspended"
	}
}

func mayaNetworkStatus(connected bool) string {
	if connected {
		return "connected"
	}
	return "disconnected"
}

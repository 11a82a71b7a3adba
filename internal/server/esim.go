package server

import (
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	esimdomain "github.com/smallbiznis/esimmock/internal/esim/domain"
	"github.com/smallbiznis/esimmock/pkg/db/pagination"
)

type provisionEsimRequest struct {
	BundleID    string         `json:"bundleId"`
	UserEmail   string         `json:"userEmail"`
	ProfileType string         `json:"profileType"`
	Metadata    map[string]any `json:"metadata"`
}

func (r provisionEsimRequest) validate() error {
	v := &esimdomain.ValidationError{}
	if strings.TrimSpace(r.BundleID) == "" {
		v.Add("bundleId", "Bundle ID is required")
	}
	if email := strings.TrimSpace(r.UserEmail); email != "" {
		if _, err := mail.ParseAddress(email); err != nil {
			v.Add("userEmail", "Valid email is required")
		}
	}
	return v.OrNil()
}

type attachBundleRequest struct {
	BundleID       string `json:"bundleId"`
	ActivationType string `json:"activationType"`
	StackData      *bool  `json:"stackData"`
}

type provisionEsimResponse struct {
	EsimID         string            `json:"esimId"`
	Iccid          string            `json:"iccid"`
	MatchingID     string            `json:"matchingId"`
	QRCodeURL      string            `json:"qrCodeUrl"`
	QRCodeData     string            `json:"qrCodeData"`
	ActivationCode string            `json:"activationCode"`
	Status         esimdomain.Status `json:"status"`
	CreatedAt      time.Time         `json:"createdAt"`
}

type esimProfile struct {
	SmdpAddress string `json:"smdpAddress,omitempty"`
	APN         string `json:"apn,omitempty"`
	AutoAPN     bool   `json:"autoApn"`
	ManualCode  string `json:"manualCode,omitempty"`
}

type esimDetailResponse struct {
	EsimID               string                    `json:"esimId"`
	Iccid                string                    `json:"iccid"`
	MatchingID           string                    `json:"matchingId"`
	QRCodeURL            string                    `json:"qrCodeUrl"`
	Status               esimdomain.Status         `json:"status"`
	ProfileType          string                    `json:"profileType"`
	ActivationDate       *time.Time                `json:"activationDate"`
	TotalDataAllowanceMB int                       `json:"totalDataAllowanceMB"`
	TotalDataUsedMB      int                       `json:"totalDataUsedMB"`
	TotalRemainingDataMB int                       `json:"totalRemainingDataMB"`
	LastUsed             *time.Time                `json:"lastUsed"`
	AttachedBundles      []esimdomain.AttachedPlan `json:"attachedBundles"`
	Profile              *esimProfile              `json:"profile,omitempty"`
	Metadata             map[string]any            `json:"metadata,omitempty"`
	CreatedAt            time.Time                 `json:"createdAt"`
	UpdatedAt            time.Time                 `json:"updatedAt"`
}

type esimListItem struct {
	EsimID               string            `json:"esimId"`
	Iccid                string            `json:"iccid"`
	Status               esimdomain.Status `json:"status"`
	TotalRemainingDataMB int               `json:"totalRemainingDataMB"`
	BundleCount          int               `json:"bundleCount"`
	CreatedAt            time.Time         `json:"createdAt"`
}

type paginationResponse struct {
	Page          int   `json:"page"`
	Size          int   `json:"size"`
	TotalElements int64 `json:"totalElements"`
	TotalPages    int   `json:"totalPages"`
}

func (s *Server) ProvisionEsim(c *gin.Context) {
	var req provisionEsimRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if err := req.validate(); err != nil {
		AbortWithError(c, err)
		return
	}

	email := strings.TrimSpace(req.UserEmail)
	metadata := req.Metadata
	if email != "" {
		metadata = withMetadata(metadata, "userEmail", email)
	}

	esim, err := s.esimSvc.Provision(c.Request.Context(), esimdomain.ProvisionRequest{
		PlanID:      strings.TrimSpace(req.BundleID),
		ProfileType: strings.TrimSpace(req.ProfileType),
		CustomerRef: email,
		Metadata:    metadata,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, provisionEsimResponse{
		EsimID:         esim.EsimID,
		Iccid:          esim.Iccid,
		MatchingID:     esim.MatchingID,
		QRCodeURL:      s.qrCodeURL(esim.EsimID),
		QRCodeData:     esim.LPA,
		ActivationCode: esim.ActivationCode,
		Status:         esim.Status,
		CreatedAt:      esim.CreatedAt,
	})
}

func (s *Server) GetEsim(c *gin.Context) {
	esim, err := s.esimSvc.Get(c.Request.Context(), strings.TrimSpace(c.Param("esimId")))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.esimDetail(esim))
}

func (s *Server) GetEsimByIccid(c *gin.Context) {
	esim, err := s.esimSvc.GetByIccid(c.Request.Context(), strings.TrimSpace(c.Param("iccid")))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.esimDetail(esim))
}

func (s *Server) ListEsims(c *gin.Context) {
	var query struct {
		pagination.Pagination
		Status string `form:"status"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.esimSvc.List(c.Request.Context(), esimdomain.ListRequest{
		Status: strings.TrimSpace(query.Status),
		Page:   query.Page,
		Size:   query.Size,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	items := make([]esimListItem, 0, len(resp.Esims))
	for i := range resp.Esims {
		e := &resp.Esims[i]
		items = append(items, esimListItem{
			EsimID:               e.EsimID,
			Iccid:                e.Iccid,
			Status:               e.Status,
			TotalRemainingDataMB: e.TotalRemaining(),
			BundleCount:          len(e.Plans),
			CreatedAt:            e.CreatedAt,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"esims": items,
		"pagination": paginationResponse{
			Page:          resp.Page,
			Size:          resp.Size,
			TotalElements: resp.Total,
			TotalPages:    resp.TotalPages,
		},
	})
}

func (s *Server) AttachBundle(c *gin.Context) {
	var req attachBundleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	bundleID := strings.TrimSpace(req.BundleID)
	if bundleID == "" {
		AbortWithError(c, esimdomain.NewValidation("bundleId", "Bundle ID is required"))
		return
	}

	esim, err := s.esimSvc.AttachPlan(c.Request.Context(), strings.TrimSpace(c.Param("esimId")), bundleID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"esimId":               esim.EsimID,
		"bundleId":             bundleID,
		"status":               "attached",
		"activationDate":       esim.ActivatedAt,
		"totalRemainingDataMB": esim.TotalRemaining(),
		"attachedBundles":      plansOrEmpty(esim.Plans),
	})
}

func (s *Server) DeactivateEsim(c *gin.Context) {
	esim, err := s.esimSvc.Deactivate(c.Request.Context(), strings.TrimSpace(c.Param("esimId")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"esimId":           esim.EsimID,
		"status":           esim.Status,
		"deactivationDate": esim.DeactivatedAt,
	})
}

func (s *Server) esimDetail(e *esimdomain.Esim) esimDetailResponse {
	resp := esimDetailResponse{
		EsimID:               e.EsimID,
		Iccid:                e.Iccid,
		MatchingID:           e.MatchingID,
		QRCodeURL:            s.qrCodeURL(e.EsimID),
		Status:               e.Status,
		ProfileType:          e.ProfileType,
		ActivationDate:       e.ActivatedAt,
		TotalDataAllowanceMB: e.TotalAllowance,
		TotalDataUsedMB:      e.TotalUsed,
		TotalRemainingDataMB: e.TotalRemaining(),
		LastUsed:             e.LastUsedAt,
		AttachedBundles:      plansOrEmpty(e.Plans),
		Metadata:             e.Metadata,
		CreatedAt:            e.CreatedAt,
		UpdatedAt:            e.UpdatedAt,
	}
	if e.SmdpAddress != "" {
		resp.Profile = &esimProfile{
			SmdpAddress: e.SmdpAddress,
			APN:         e.APN,
			AutoAPN:     e.AutoAPN,
			ManualCode:  e.ManualCode,
		}
	}
	return resp
}

func (s *Server) qrCodeURL(esimID string) string {
	return s.cfg.PublicBaseURL + "/qr/" + esimID
}

func plansOrEmpty(plans []esimdomain.AttachedPlan) []esimdomain.AttachedPlan {
	if plans == nil {
		return []esimdomain.AttachedPlan{}
	}
	return plans
}

func withMetadata(metadata map[string]any, key string, value any) map[string]any {
	out := make(map[string]any, len(metadata)+1)
	for k, v := range metadata {
		out[k] = v
	}
	if _, exists := out[key]; !exists {
		out[key] = value
	}
	return out
}

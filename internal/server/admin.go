package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	esimdomain "github.com/smallbiznis/esimmock/internal/esim/domain"
	"github.com/smallbiznis/esimmock/internal/observability/logger"
	"go.uber.org/zap"
)

type simulateUsageRequest struct {
	EsimID    string `json:"esimId"`
	UsageMB   int    `json:"usageMB"`
	Timestamp string `json:"timestamp"`
}

type forceStatusRequest struct {
	EsimID    string `json:"esimId"`
	NewStatus string `json:"newStatus"`
	Reason    string `json:"reason"`
}

func (s *Server) AdminHealth(c *gin.Context) {
	ctx := c.Request.Context()
	products, err := s.catalogSvc.Count(ctx)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	stats, err := s.esimSvc.Statistics(ctx)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    "UP",
		"service":   s.cfg.AppName,
		"version":   s.cfg.AppVersion,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"statistics": gin.H{
			"products": products,
			"esims":    stats,
		},
	})
}

func (s *Server) SimulateUsage(c *gin.Context) {
	var req simulateUsageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	v := &esimdomain.ValidationError{}
	if strings.TrimSpace(req.EsimID) == "" {
		v.Add("esimId", "eSIM ID is required")
	}
	if req.UsageMB < 1 {
		v.Add("usageMB", "Usage must be at least 1 MB")
	}
	if err := v.OrNil(); err != nil {
		AbortWithError(c, err)
		return
	}

	report, err := s.esimSvc.SimulateUsage(c.Request.Context(), strings.TrimSpace(req.EsimID), req.UsageMB)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	depleted := report.Result.Depleted
	if depleted == nil {
		depleted = []string{}
	}
	c.JSON(http.StatusOK, gin.H{
		"success":              true,
		"message":              "Usage simulated successfully",
		"esimId":               report.Esim.EsimID,
		"usageSimulatedMB":     req.UsageMB,
		"appliedMB":            report.Result.AppliedMB,
		"discardedMB":          report.Result.DiscardedMB,
		"depletedBundles":      depleted,
		"totalDataUsedMB":      report.Esim.TotalUsed,
		"totalRemainingDataMB": report.Esim.TotalRemaining(),
	})
}

func (s *Server) ForceStatus(c *gin.Context) {
	var req forceStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	v := &esimdomain.ValidationError{}
	if strings.TrimSpace(req.EsimID) == "" {
		v.Add("esimId", "eSIM ID is required")
	}
	if strings.TrimSpace(req.NewStatus) == "" {
		v.Add("newStatus", "New status is required")
	}
	if err := v.OrNil(); err != nil {
		AbortWithError(c, err)
		return
	}

	esim, err := s.esimSvc.ForceStatusChange(c.Request.Context(), strings.TrimSpace(req.EsimID), req.NewStatus)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if reason := strings.TrimSpace(req.Reason); reason != "" {
		logger.WithEsim(logger.FromContext(c.Request.Context()), esim.EsimID).
			Info("forced status reason", zap.String("reason", reason))
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"message":   "Status changed successfully",
		"esimId":    esim.EsimID,
		"newStatus": esim.Status,
	})
}

func (s *Server) ResetData(c *gin.Context) {
	ctx := c.Request.Context()
	logger.FromContext(ctx).Warn("resetting all data")

	deleted, err := s.esimSvc.DeleteAll(ctx)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if err := s.catalogSvc.DeleteAll(ctx); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"message":      "All data has been reset",
		"esimsDeleted": deleted,
	})
}

func (s *Server) SeedData(c *gin.Context) {
	created, err := s.seeder.EnsureCatalog(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":         true,
		"message":         "Test data seeded successfully",
		"productsCreated": created,
	})
}

func (s *Server) GetStatistics(c *gin.Context) {
	ctx := c.Request.Context()
	products, err := s.catalogSvc.Count(ctx)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	stats, err := s.esimSvc.Statistics(ctx)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"products": gin.H{"total": products},
		"esims":    stats,
	})
}

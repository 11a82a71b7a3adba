package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	catalogdomain "github.com/smallbiznis/esimmock/internal/catalog/domain"
	"github.com/smallbiznis/esimmock/pkg/db/pagination"
)

type bulkUpsertBundlesRequest struct {
	Bundles []catalogdomain.CreateRequest `json:"bundles"`
}

func (s *Server) ListBundles(c *gin.Context) {
	var query struct {
		pagination.Pagination
		Country     string `form:"country"`
		Region      string `form:"region"`
		PackageType string `form:"packageType"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.catalogSvc.List(c.Request.Context(), catalogdomain.ListRequest{
		Country:     strings.TrimSpace(query.Country),
		Region:      strings.TrimSpace(query.Region),
		PackageType: strings.TrimSpace(query.PackageType),
		Page:        query.Page,
		Size:        query.Size,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) GetBundle(c *gin.Context) {
	resp, err := s.catalogSvc.Get(c.Request.Context(), strings.TrimSpace(c.Param("bundleId")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) CreateBundle(c *gin.Context) {
	var req catalogdomain.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.catalogSvc.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

func (s *Server) UpdateBundle(c *gin.Context) {
	var req catalogdomain.UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.PlanID = strings.TrimSpace(c.Param("bundleId"))

	resp, err := s.catalogSvc.Update(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) DeleteBundle(c *gin.Context) {
	bundleID := strings.TrimSpace(c.Param("bundleId"))
	if err := s.catalogSvc.Delete(c.Request.Context(), bundleID); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"bundleId": bundleID,
	})
}

func (s *Server) BulkUpsertBundles(c *gin.Context) {
	var req bulkUpsertBundlesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if len(req.Bundles) == 0 {
		AbortWithError(c, newValidationError("bundles", "required", "at least one bundle is required"))
		return
	}

	result, err := s.catalogSvc.BulkUpsert(c.Request.Context(), req.Bundles)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": result.Failed == 0,
		"created": result.Created,
		"updated": result.Updated,
		"failed":  result.Failed,
		"total":   len(req.Bundles),
		"errors":  result.Errors,
	})
}

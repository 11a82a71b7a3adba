package server

import (
	"strings"

	"github.com/gin-gonic/gin"
	obscontext "github.com/smallbiznis/esimmock/internal/observability/context"
)

func (s *Server) authorize(object, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := s.authorizeWithContext(c, object, action); err != nil {
			AbortWithError(c, err)
			return
		}
		c.Next()
	}
}

func (s *Server) authorizeWithContext(c *gin.Context, object, action string) error {
	if !s.cfg.Auth.Enabled {
		return nil
	}
	caller := obscontext.CallerFromContext(c.Request.Context())
	if caller.Role == "" {
		return ErrUnauthorized
	}
	if s.authzSvc == nil {
		return ErrForbidden
	}
	return s.authzSvc.Authorize(c.Request.Context(), caller.Role, strings.TrimSpace(object), strings.TrimSpace(action))
}

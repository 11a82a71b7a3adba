package server

import (
	"bytes"
	"encoding/json"
	"io"
	"strconv"

	"github.com/gin-gonic/gin"
	esimdomain "github.com/smallbiznis/esimmock/internal/esim/domain"
	obscontext "github.com/smallbiznis/esimmock/internal/observability/context"
	"github.com/smallbiznis/esimmock/internal/observability/logger"
	"go.uber.org/zap"
)

const (
	rateLimitReasonCallerRate    = "caller-rate"
	rateLimitReasonOrderInFlight = "order-in-flight"
)

type provisionRateLimitKey struct {
	Metadata map[string]any `json:"metadata"`
}

// ProvisionRateLimit applies the per-caller token bucket and holds a short
// lock on metadata.orderId so concurrent retries of one order are serialized.
func (s *Server) ProvisionRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.limiter.Enabled() {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		endpoint := normalizeEndpoint(c)
		log := logger.FromContext(ctx)

		caller := obscontext.CallerFromContext(ctx).Key
		if caller == "" {
			caller = c.ClientIP()
		}

		result, err := s.limiter.AllowCaller(ctx, caller)
		if err != nil {
			log.Warn("provision rate limit check failed", zap.Error(err))
			AbortWithError(c, ErrServiceUnavailable)
			return
		}
		if !result.Allowed {
			retryAfter := int(result.RetryAfter.Seconds())
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			s.denyProvision(c, endpoint, rateLimitReasonCallerRate, ErrRateLimited)
			return
		}

		orderID, err := readProvisionOrderID(c)
		if err != nil {
			log.Warn("provision rate limit read body failed", zap.Error(err))
			AbortWithError(c, invalidRequestError())
			return
		}

		if orderID != "" {
			token, ok, err := s.limiter.TryLockOrder(ctx, orderID)
			if err != nil {
				log.Warn("provision order lock failed", zap.Error(err))
				AbortWithError(c, ErrServiceUnavailable)
				return
			}
			if !ok {
				s.denyProvision(c, endpoint, rateLimitReasonOrderInFlight, ErrOrderInFlight)
				return
			}
			defer func() {
				if err := s.limiter.ReleaseOrder(ctx, orderID, token); err != nil {
					log.Warn("provision order unlock failed", zap.Error(err))
				}
			}()
		}

		s.obsMetrics.RecordRateLimitAllowed(ctx, endpoint)
		c.Next()
	}
}

func (s *Server) denyProvision(c *gin.Context, endpoint, reason string, err error) {
	ctx := c.Request.Context()
	logger.FromContext(ctx).Warn("provision rate limit exceeded",
		zap.String("reason", reason),
		zap.String("endpoint", endpoint),
	)
	s.obsMetrics.RecordRateLimitDenied(ctx, endpoint, reason)
	c.Header("X-Rate-Limited-Reason", reason)
	AbortWithError(c, err)
}

func readProvisionOrderID(c *gin.Context) (string, error) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return "", err
	}
	c.Request.Body = io.NopCloser(bytes.NewBuffer(body))
	if len(body) == 0 {
		return "", nil
	}

	var payload provisionRateLimitKey
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", nil
	}
	return esimdomain.OrderIDFromMetadata(payload.Metadata), nil
}

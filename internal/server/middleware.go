package server

import (
	"math/rand/v2"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/esimmock/internal/config"
	obscontext "github.com/smallbiznis/esimmock/internal/observability/context"
	"github.com/smallbiznis/esimmock/internal/observability/logger"
	"go.uber.org/zap"
)

const contextInjectedFailureKey = "injected_failure"

// BasicAuth resolves the caller from HTTP Basic credentials. Public prefixes
// and a disabled auth config let the request through anonymously.
func (s *Server) BasicAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.cfg.Auth.Enabled || s.isPublicPath(c.Request.URL.Path) {
			c.Next()
			return
		}

		key, secret, ok := c.Request.BasicAuth()
		if !ok {
			c.Header("WWW-Authenticate", `Basic realm="esimmock"`)
			AbortWithError(c, ErrUnauthorized)
			return
		}

		principal, err := s.authzSvc.Authenticate(c.Request.Context(), key, secret)
		if err != nil {
			logger.FromContext(c.Request.Context()).Warn("invalid api credentials",
				zap.String("path", c.Request.URL.Path),
			)
			c.Header("WWW-Authenticate", `Basic realm="esimmock"`)
			AbortWithError(c, err)
			return
		}

		ctx := obscontext.WithCaller(c.Request.Context(), principal.Role, principal.Key)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func (s *Server) isPublicPath(path string) bool {
	for _, prefix := range s.cfg.Auth.PublicPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// MockBehavior applies the configured latency and failure injection before
// the handler runs. Probes and admin routes are never affected.
func (s *Server) MockBehavior() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.behavior == nil || skipMockBehavior(c.Request.URL.Path) {
			c.Next()
			return
		}
		behavior := s.behavior.Get()

		if behavior.Latency.Enabled {
			delay := s.latency(behavior.Latency)
			if delay > 0 {
				timer := time.NewTimer(delay)
				select {
				case <-timer.C:
				case <-c.Request.Context().Done():
					timer.Stop()
					AbortWithError(c, ErrInjectedTimeout)
					return
				}
			}
		}

		if behavior.Failure.Rate > 0 && s.randFloat() < behavior.Failure.Rate {
			failure := s.pickFailure(behavior.Failure.Types)
			c.Set(contextInjectedFailureKey, failure)
			s.obsMetrics.RecordInjectedFailure(c.Request.Context(), normalizeEndpoint(c), failure)
			if failure == config.FailureTimeout {
				AbortWithError(c, ErrInjectedTimeout)
				return
			}
			AbortWithError(c, ErrInjectedFailure)
			return
		}

		c.Next()
	}
}

func skipMockBehavior(path string) bool {
	switch {
	case path == "/health", path == "/metrics":
		return true
	case strings.HasPrefix(path, "/v1/admin"):
		return true
	default:
		return false
	}
}

func (s *Server) latency(l config.LatencyBehavior) time.Duration {
	minMs, maxMs := l.MinMs, l.MaxMs
	if maxMs < minMs {
		maxMs = minMs
	}
	if minMs < 0 {
		minMs = 0
	}
	ms := minMs
	if maxMs > minMs {
		ms += s.randIntN(maxMs - minMs + 1)
	}
	return time.Duration(ms) * time.Millisecond
}

func (s *Server) pickFailure(types []string) string {
	if len(types) == 0 {
		return config.FailureServerError
	}
	choice := strings.ToUpper(strings.TrimSpace(types[s.randIntN(len(types))]))
	if choice == config.FailureTimeout {
		return config.FailureTimeout
	}
	return config.FailureServerError
}

func (s *Server) randFloat() float64 {
	if s.rng != nil {
		return s.rng.Float64()
	}
	return rand.Float64()
}

func (s *Server) randIntN(n int) int {
	if s.rng != nil {
		return s.rng.IntN(n)
	}
	return rand.IntN(n)
}

func normalizeEndpoint(c *gin.Context) string {
	if c == nil {
		return "unknown"
	}
	endpoint := strings.TrimSpace(c.FullPath())
	if endpoint == "" {
		endpoint = strings.TrimSpace(c.Request.URL.Path)
	}
	if endpoint == "" {
		endpoint = "unknown"
	}
	return endpoint
}

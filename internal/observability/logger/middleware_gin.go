package logger

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	obscontext "github.com/smallbiznis/esimmock/internal/observability/context"
	"github.com/smallbiznis/esimmock/pkg/telemetry/correlation"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const requestIDHeader = "X-Request-Id"

type MiddlewareConfig struct {
	Debug bool
	// QuietProbes logs health and metrics requests at debug.
	QuietProbes bool
	// ErrorClassifier maps a handler error to the (type, code) pair that is logged.
	ErrorClassifier func(err error) (string, string)
}

// GinMiddleware assigns request and correlation ids, then writes one
// http_request entry per request once the handler chain has finished.
func GinMiddleware(cfg MiddlewareConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		requestID := strings.TrimSpace(c.GetHeader(requestIDHeader))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set("request_id", requestID)
		c.Header(requestIDHeader, requestID)

		ctx := obscontext.WithRequestID(c.Request.Context(), requestID)
		ctx = correlation.ContextWithCorrelationID(ctx, c.GetHeader(correlation.HeaderName))
		ctx, correlationID := correlation.EnsureCorrelationID(ctx)
		c.Header(correlation.HeaderName, correlationID)
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unknown"
		}
		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("route", route),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.Int("bytes_out", max(c.Writer.Size(), 0)),
			zap.String("client_ip", c.ClientIP()),
		}
		fields = append(fields, resourceFields(c)...)
		if injected := c.GetString("injected_failure"); injected != "" {
			fields = append(fields, zap.String("injected_failure", injected))
		}

		errorType := ""
		if last := c.Errors.Last(); last != nil {
			code := ""
			if cfg.ErrorClassifier != nil {
				errorType, code = cfg.ErrorClassifier(last.Err)
			}
			fields = append(fields, zap.String("error_type", errorType), zap.String("error_code", code))
			if cfg.Debug && status >= http.StatusInternalServerError {
				fields = append(fields, zap.Stack("stack"))
			}
		}

		if log := FromContext(c.Request.Context()); log != nil {
			log.Log(requestLevel(cfg, route, status, errorType), "http_request", fields...)
		}
	}
}

// resourceFields lifts the eSIM and bundle identifiers out of the route params.
func resourceFields(c *gin.Context) []zap.Field {
	var fields []zap.Field
	for _, p := range []struct{ param, key string }{
		{"esimId", "esim_id"},
		{"iccid", "iccid"},
		{"bundleId", "bundle_id"},
		{"productId", "bundle_id"},
	} {
		if v := strings.TrimSpace(c.Param(p.param)); v != "" {
			fields = append(fields, zap.String(p.key, v))
		}
	}
	return fields
}

// requestLevel keeps probes and rejected simulation input out of info logs.
func requestLevel(cfg MiddlewareConfig, route string, status int, errorType string) zapcore.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return zapcore.ErrorLevel
	case cfg.QuietProbes && isProbe(route):
		return zapcore.DebugLevel
	case strings.HasPrefix(route, "/v1/admin/simulate/") && errorType == "validation_error":
		return zapcore.DebugLevel
	default:
		return zapcore.InfoLevel
	}
}

func isProbe(route string) bool {
	switch route {
	case "/health", "/metrics", "/v1/admin/health":
		return true
	}
	return false
}

package server

import (
	"errors"
	"net/http"
	"sort"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/esimmock/internal/authorization"
	catalogdomain "github.com/smallbiznis/esimmock/internal/catalog/domain"
	esimdomain "github.com/smallbiznis/esimmock/internal/esim/domain"
	"gorm.io/gorm"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	if len(v.Errors) == 0 {
		return "validation error"
	}
	return "validation error: " + v.Errors[0].Field + " " + v.Errors[0].Code
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrNotFound           = errors.New("not_found")
	ErrRateLimited        = errors.New("rate_limited")
	ErrOrderInFlight      = errors.New("order_in_flight")
	ErrServiceUnavailable = errors.New("service_unavailable")
	ErrInjectedFailure    = errors.New("injected_failure")
	ErrInjectedTimeout    = errors.New("injected_timeout")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		last := c.Errors.Last()
		if last == nil {
			return
		}

		status, payload := mapError(last.Err)
		if strings.HasPrefix(c.Request.URL.Path, mayaPrefix) {
			c.AbortWithStatusJSON(status, mayaError(status, payload))
			return
		}
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{Errors: []ValidationError{{Field: field, Code: code, Message: message}}}
}

// errorRule maps a family of sentinel errors onto one HTTP status and
// error type. An empty message echoes the error text.
type errorRule struct {
	status  int
	kind    string
	message string
	targets []error
}

var errorRules = []errorRule{
	{http.StatusUnauthorized, "unauthorized", "unauthorized", []error{ErrUnauthorized, authorization.ErrInvalidCredentials}},
	{http.StatusForbidden, "forbidden", "forbidden", []error{ErrForbidden, authorization.ErrForbidden, authorization.ErrInvalidRole}},
	{http.StatusNotFound, "not_found", "", []error{esimdomain.ErrNotFound, catalogdomain.ErrNotFound, ErrNotFound, gorm.ErrRecordNotFound}},
	{http.StatusBadRequest, "invalid_state", "", []error{esimdomain.ErrInvalidState}},
	{http.StatusConflict, "already_active", "", []error{esimdomain.ErrAlreadyActive}},
	{http.StatusGone, "expired", "", []error{esimdomain.ErrExpired}},
	{http.StatusConflict, "conflict", "", []error{ErrOrderInFlight, catalogdomain.ErrAlreadyExists}},
	{http.StatusTooManyRequests, "rate_limited", "too many requests", []error{ErrRateLimited}},
	{http.StatusServiceUnavailable, "SERVER_ERROR", "simulated server error", []error{ErrInjectedFailure}},
	{http.StatusGatewayTimeout, "TIMEOUT", "simulated timeout", []error{ErrInjectedTimeout}},
	{http.StatusServiceUnavailable, "service_unavailable", "service unavailable", []error{ErrServiceUnavailable}},
}

var internalErrorPayload = errorPayload{Type: "internal_error", Message: "internal server error"}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, internalErrorPayload
	}
	if details := validationDetails(err); details != nil {
		return http.StatusBadRequest, errorPayload{Type: "validation_error", Message: "validation error", Errors: details}
	}

	for _, rule := range errorRules {
		for _, target := range rule.targets {
			if !errors.Is(err, target) {
				continue
			}
			msg := rule.message
			if msg == "" {
				msg = err.Error()
			}
			return rule.status, errorPayload{Type: rule.kind, Message: msg}
		}
	}
	return http.StatusInternalServerError, internalErrorPayload
}

// validationDetails returns the field errors carried by err, or nil when err
// is not a validation failure of any layer.
func validationDetails(err error) []ValidationError {
	var handlerErr *ValidationErrors
	if errors.As(err, &handlerErr) && handlerErr != nil {
		return handlerErr.Errors
	}
	var fieldErr *esimdomain.ValidationError
	if errors.As(err, &fieldErr) {
		return fieldErrors(fieldErr.Fields)
	}
	if field, ok := catalogErrorField(err); ok {
		return []ValidationError{{Field: field, Code: err.Error(), Message: "invalid value"}}
	}
	return nil
}

// classifyErrorForLog feeds the request logger. Unexpected errors keep their
// text in the log while the response stays generic.
func classifyErrorForLog(err error) (string, string) {
	status, payload := mapError(err)
	if status == http.StatusInternalServerError {
		return payload.Type, err.Error()
	}
	return payload.Type, payload.Message
}

func fieldErrors(fields map[string]string) []ValidationError {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]ValidationError, 0, len(keys))
	for _, k := range keys {
		out = append(out, ValidationError{Field: k, Code: "invalid_" + k, Message: fields[k]})
	}
	return out
}

var catalogErrorFields = []struct {
	target error
	field  string
}{
	{catalogdomain.ErrInvalidID, "bundleId"},
	{catalogdomain.ErrInvalidName, "name"},
	{catalogdomain.ErrInvalidDataGB, "dataGB"},
	{catalogdomain.ErrInvalidValidity, "validityDays"},
	{catalogdomain.ErrInvalidPackageType, "packageType"},
}

func catalogErrorField(err error) (string, bool) {
	for _, f := range catalogErrorFields {
		if errors.Is(err, f.target) {
			return f.field, true
		}
	}
	return "", false
}

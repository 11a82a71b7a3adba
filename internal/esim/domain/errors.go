package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrNotFound      = errors.New("not_found")
	ErrInvalidState  = errors.New("invalid_state")
	ErrExpired       = errors.New("esim_expired")
	ErrValidation    = errors.New("validation_failed")
	ErrAlreadyActive = errors.New("esim_already_active")
)

// Not-found kinds.
const (
	KindEsim  = "esim"
	KindIccid = "iccid"
	KindPlan  = "bundle"
)

type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

func NewNotFound(kind, id string) error {
	return &NotFoundError{Kind: kind, ID: id}
}

type InvalidStateError struct {
	EsimID    string
	Status    Status
	Operation string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("cannot %s eSIM %s in status %s", e.Operation, e.EsimID, e.Status)
}

func (e *InvalidStateError) Unwrap() error { return ErrInvalidState }

type ExpiredError struct {
	EsimID string
}

func (e *ExpiredError) Error() string {
	return fmt.Sprintf("eSIM %s has expired", e.EsimID)
}

func (e *ExpiredError) Unwrap() error { return ErrExpired }

// ValidationError aggregates field level problems.
type ValidationError struct {
	Fields map[string]string
}

func NewValidation(field, message string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: message}}
}

// Add records a field problem, returning the receiver for chaining.
func (e *ValidationError) Add(field, message string) *ValidationError {
	if e.Fields == nil {
		e.Fields = map[string]string{}
	}
	e.Fields[field] = message
	return e
}

// OrNil returns nil when no field was recorded.
func (e *ValidationError) OrNil() error {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	return e
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorKindsUnwrap(t *testing.T) {
	notFound := fmt.Errorf("wrapped: %w", NewNotFound(KindEsim, "maya_1"))
	assert.ErrorIs(t, notFound, ErrNotFound)
	var nf *NotFoundError
	require.ErrorAs(t, notFound, &nf)
	assert.Equal(t, "maya_1", nf.ID)

	invalid := &InvalidStateError{EsimID: "maya_1", Status: StatusProvisioned, Operation: "simulate usage on"}
	assert.ErrorIs(t, invalid, ErrInvalidState)
	assert.False(t, errors.Is(invalid, ErrExpired))
	assert.Contains(t, invalid.Error(), "provisioned")

	assert.ErrorIs(t, &ExpiredError{EsimID: "maya_1"}, ErrExpired)
}

func TestValidationError(t *testing.T) {
	var empty *ValidationError
	assert.NoError(t, empty.OrNil())

	v := (&ValidationError{}).Add("usageMB", "must be at least 1").Add("esimId", "is required")
	err := v.OrNil()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, "validation failed: esimId: is required, usageMB: must be at least 1", err.Error())
}

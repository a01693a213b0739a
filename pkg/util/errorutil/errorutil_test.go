package errorutil

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToDomainError(t *testing.T) {
	assert.Nil(t, ToDomainError(nil))

	wrapped := fmt.Errorf("load: %w", NewConflict("taken", map[string]any{"email": "a@b.c"}))
	derr := ToDomainError(wrapped)
	require.NotNil(t, derr)
	assert.Equal(t, CodeConflict, derr.Code)
	assert.Equal(t, http.StatusConflict, derr.HTTPStatus)

	notFound := ToDomainError(fmt.Errorf("get: %w", pgx.ErrNoRows))
	assert.Equal(t, CodeNotFound, notFound.Code)
	assert.Equal(t, http.StatusNotFound, notFound.HTTPStatus)

	cause := errors.New("boom")
	internal := ToDomainError(cause)
	assert.Equal(t, CodeInternal, internal.Code)
	assert.ErrorIs(t, internal, cause)
	assert.Equal(t, "internal server error: boom", internal.Error())
}

func TestIsCode(t *testing.T) {
	err := fmt.Errorf("wrap: %w", NewOrderingViolation("out of order", nil))
	assert.True(t, IsCode(err, CodeOrderingViolation))
	assert.False(t, IsCode(err, CodeDuplicateKey))
	assert.False(t, IsCode(errors.New("plain"), CodeInternal))
}

func TestStatusByCode(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{NewValidationError("bad", nil), http.StatusBadRequest},
		{NewInvalidState("closed", nil), http.StatusBadRequest},
		{NewDuplicateKey("dup", nil), http.StatusBadRequest},
		{NewUnauthorized("who"), http.StatusUnauthorized},
		{NewForbidden("no"), http.StatusForbidden},
		{NewNotFoundMessage("gone", nil), http.StatusNotFound},
		{NewTooManyAttempts("slow down", nil), http.StatusTooManyRequests},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.status, ToDomainError(tc.err).HTTPStatus, tc.err.Error())
	}
}

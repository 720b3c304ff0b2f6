package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSentinelErrors_AreDistinct(t *testing.T) {
	sentinels := []error{
		ErrNotFound, ErrInvalidInput, ErrConflict, ErrUnprocessable,
		ErrForbidden, ErrServiceUnavail, ErrInternal,
	}

	for i := 0; i < len(sentinels); i++ {
		for j := i + 1; j < len(sentinels); j++ {
			assert.NotEqual(t, sentinels[i], sentinels[j])
		}
	}
}

func TestAppError_ErrorString(t *testing.T) {
	withCause := &AppError{Code: "INTERNAL_ERROR", Message: "something broke", Err: fmt.Errorf("db connection lost")}
	assert.Equal(t, "INTERNAL_ERROR: something broke: db connection lost", withCause.Error())

	bare := &AppError{Code: "NOT_FOUND", Message: "order not found"}
	assert.Equal(t, "NOT_FOUND: order not found", bare.Error())
}

func TestAppError_Unwrap(t *testing.T) {
	err := NotFound("order", "o-1")
	assert.True(t, errors.Is(err, ErrNotFound))

	wrapped := fmt.Errorf("get order: %w", err)
	var appErr *AppError
	require.True(t, errors.As(wrapped, &appErr))
	assert.Equal(t, "NOT_FOUND", appErr.Code)
}

func TestAppError_WithDetail(t *testing.T) {
	err := Conflict("not enough stock").
		WithDetail("available", 3).
		WithDetail("product_id", "p-1")

	assert.Equal(t, 3, err.Details["available"])
	assert.Equal(t, "p-1", err.Details["product_id"])
}

func TestConstructors(t *testing.T) {
	tests := []struct {
		name     string
		err      *AppError
		code     string
		status   int
		sentinel error
	}{
		{"not found", NotFound("product", "abc"), "NOT_FOUND", http.StatusNotFound, ErrNotFound},
		{"invalid input", InvalidInput("bad"), "INVALID_INPUT", http.StatusBadRequest, ErrInvalidInput},
		{"conflict", Conflict("busy"), "CONFLICT", http.StatusConflict, ErrConflict},
		{"forbidden", Forbidden("no"), "FORBIDDEN", http.StatusForbidden, ErrForbidden},
		{"unavailable", ServiceUnavailable("down", errors.New("dial tcp")), "SERVICE_UNAVAILABLE", http.StatusServiceUnavailable, ErrServiceUnavail},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, tt.err.Code)
			assert.Equal(t, tt.status, tt.err.Status)
			assert.ErrorIs(t, tt.err, tt.sentinel)
		})
	}
}

func TestServiceUnavailable_KeepsCause(t *testing.T) {
	cause := errors.New("redis: connection refused")
	err := ServiceUnavailable("cart store unavailable", cause)
	assert.ErrorIs(t, err, cause)
}

func TestNotFound_Message(t *testing.T) {
	assert.Equal(t, "product with id abc-123 not found", NotFound("product", "abc-123").Message)
}

func TestInternal(t *testing.T) {
	cause := errors.New("boom")
	err := Internal(cause)
	assert.Equal(t, http.StatusInternalServerError, err.Status)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "an internal error occurred", err.Message)
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"app error", New("EMPTY_CART", "cart is empty", http.StatusUnprocessableEntity, nil), http.StatusUnprocessableEntity},
		{"wrapped app error", fmt.Errorf("checkout: %w", Conflict("x")), http.StatusConflict},
		{"sentinel not found", fmt.Errorf("load: %w", ErrNotFound), http.StatusNotFound},
		{"sentinel invalid", ErrInvalidInput, http.StatusBadRequest},
		{"sentinel unprocessable", ErrUnprocessable, http.StatusUnprocessableEntity},
		{"sentinel unavailable", ErrServiceUnavail, http.StatusServiceUnavailable},
		{"unknown", errors.New("mystery"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(tt.err))
		})
	}
}

func TestCode(t *testing.T) {
	assert.Equal(t, "CONFLICT", Code(fmt.Errorf("wrap: %w", Conflict("x"))))
	assert.Equal(t, "INTERNAL_ERROR", Code(errors.New("plain")))
}

func TestWrap(t *testing.T) {
	err := Wrap(ErrNotFound, "load cart")
	assert.Equal(t, "load cart: resource not found", err.Error())
	assert.ErrorIs(t, err, ErrNotFound)
}
